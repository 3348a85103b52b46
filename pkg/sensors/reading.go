package sensors

import (
	"math"
	"time"

	"github.com/agromon/agrinode-go/pkg/scale"
)

// Reading is one cycle's worth of raw samples. Analog channels are 12-bit
// counts; humidity and temperature come from the DHT driver and are NaN
// when the one-wire read failed.
type Reading struct {
	SoilRaw     uint16
	LDRRaw      uint16
	GasRaw      uint16
	RainRaw     uint16
	Humidity    float64
	Temperature float64
	Timestamp   time.Time
}

// Valid reports whether the DHT portion of the reading can be trusted.
// Analog samples are never rejected; any count is a legitimate value.
func (r Reading) Valid() bool {
	return !math.IsNaN(r.Humidity) && !math.IsNaN(r.Temperature)
}

// SoilPercent returns the normalized soil moisture in 0..100 %.
func (r Reading) SoilPercent() int {
	return scale.SoilPercent(r.SoilRaw)
}

// RainPercent returns the normalized rain intensity in 0..70 %.
func (r Reading) RainPercent() int {
	return scale.RainPercent(r.RainRaw)
}
