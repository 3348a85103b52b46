package station

import (
	"fmt"
	"time"

	"github.com/agromon/agrinode-go/pkg/hal"
	"github.com/agromon/agrinode-go/pkg/thingspeak"
)

// MinCyclePeriod is the floor on the sampling cadence, set by the
// ingestion endpoint's update rate limit.
const MinCyclePeriod = 15 * time.Second

// PinMap assigns board pins to the sensor panel.
type PinMap struct {
	DHT  hal.Pin
	Soil hal.Pin
	LDR  hal.Pin
	Gas  hal.Pin
	Rain hal.Pin
}

// Config carries the station's deployment constants. The zero value is not
// usable; start from DefaultConfig.
type Config struct {
	SSID       string
	Passphrase string

	APIKey  string
	BaseURL string

	Pins     PinMap
	BaudRate int

	// Period is the spacing between cycle starts. The sleep runs at the
	// top of each iteration, so publish latency extends the wall-clock
	// spacing. Set CompensateDrift to schedule against a fixed-rate
	// ticker instead.
	Period          time.Duration
	CompensateDrift bool

	// Moisture thresholds for future hysteresis-gated alerting. Declared
	// for parity with the field deployment; nothing reads them yet.
	MoistureThresholdLow  int
	MoistureThresholdHigh int
}

// DefaultConfig returns the constants of the default deployment: the Wokwi
// simulation network and the shared ingestion endpoint.
func DefaultConfig() Config {
	return Config{
		SSID:                  "Wokwi-GUEST",
		Passphrase:            "",
		APIKey:                "WVW7SRHXIYQJPXSG",
		BaseURL:               thingspeak.DefaultBaseURL,
		Pins:                  PinMap{DHT: 15, Soil: 34, LDR: 35, Gas: 32, Rain: 33},
		BaudRate:              115200,
		Period:                15 * time.Second,
		MoistureThresholdLow:  15,
		MoistureThresholdHigh: 85,
	}
}

// Validate checks the parts of the configuration the station depends on.
func (c Config) Validate() error {
	if c.SSID == "" {
		return fmt.Errorf("station: SSID is required")
	}
	if c.APIKey == "" {
		return fmt.Errorf("station: API key is required")
	}
	if c.Period < MinCyclePeriod {
		return fmt.Errorf("station: cycle period %s below the %s endpoint minimum", c.Period, MinCyclePeriod)
	}
	return nil
}
