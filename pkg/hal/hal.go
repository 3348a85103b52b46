// Package hal defines the hardware interfaces the telemetry core consumes.
// The real peripherals (radio stack, ADC, DHT driver) live behind these
// interfaces; a simulated backend is provided for host builds and tests.
package hal

import (
	"context"
	"errors"
)

// Pin identifies a GPIO pin by its board number.
type Pin uint8

// MaxCount is the full-scale value of the 12-bit ADC.
const MaxCount uint16 = 4095

// DHTModel selects the sensor variant the DHT driver is configured for.
type DHTModel int

const (
	DHT11 DHTModel = iota
	DHT22
)

func (m DHTModel) String() string {
	switch m {
	case DHT11:
		return "DHT11"
	case DHT22:
		return "DHT22"
	default:
		return "unknown"
	}
}

var (
	// ErrNotConfigured is returned when a sensor is read before Configure.
	ErrNotConfigured = errors.New("hal: sensor not configured")
)

// ADC is a single analog input channel producing 12-bit samples.
type ADC interface {
	// Read performs one conversion and returns counts in [0, 4095].
	Read(ctx context.Context) (uint16, error)
}

// TempHumiditySensor is a DHT-family digital sensor. Humidity and
// Temperature follow the driver convention of returning NaN when the
// one-wire read failed; callers gate on that.
type TempHumiditySensor interface {
	Configure(pin Pin, model DHTModel) error
	Humidity() float64    // % relative humidity, NaN on read failure
	Temperature() float64 // degrees Celsius, NaN on read failure
}

// Radio models the wireless station interface. Join starts association
// with the network and returns immediately; the radio retries on its own
// until it associates. Callers poll Associated.
type Radio interface {
	Join(ssid, passphrase string) error
	Associated() bool
}
