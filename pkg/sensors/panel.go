// Package sensors acquires the fixed panel of field sensors: soil
// moisture, ambient light, combustible gas and a rainfall proxy on the
// ADC, plus a DHT-family sensor for air temperature and humidity.
package sensors

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/agromon/agrinode-go/pkg/hal"
)

// Panel reads all channels of the sensor panel in one pass.
type Panel struct {
	log  *zap.Logger
	soil hal.ADC
	ldr  hal.ADC
	gas  hal.ADC
	rain hal.ADC
	dht  hal.TempHumiditySensor
}

type Option func(p *Panel) error

// NewPanel builds a panel from the given channels. All five channels must
// be supplied; there is no useful default for board wiring.
func NewPanel(opts ...Option) (*Panel, error) {
	p := &Panel{
		log: zap.L(),
	}

	// apply the options
	for _, o := range opts {
		err := o(p)
		if err != nil {
			return nil, err
		}
	}

	if p.soil == nil || p.ldr == nil || p.gas == nil || p.rain == nil {
		return nil, fmt.Errorf("sensors: all four analog channels must be wired")
	}
	if p.dht == nil {
		return nil, fmt.Errorf("sensors: temperature/humidity sensor must be wired")
	}

	return p, nil
}

func WithLogger(l *zap.Logger) Option {
	return func(p *Panel) error {
		p.log = l
		return nil
	}
}

func WithSoil(a hal.ADC) Option {
	return func(p *Panel) error {
		p.soil = a
		return nil
	}
}

func WithLDR(a hal.ADC) Option {
	return func(p *Panel) error {
		p.ldr = a
		return nil
	}
}

func WithGas(a hal.ADC) Option {
	return func(p *Panel) error {
		p.gas = a
		return nil
	}
}

func WithRain(a hal.ADC) Option {
	return func(p *Panel) error {
		p.rain = a
		return nil
	}
}

func WithDHT(d hal.TempHumiditySensor) Option {
	return func(p *Panel) error {
		p.dht = d
		return nil
	}
}

// ConfigureDHT sets up the digital sensor for the given pin and variant.
func (p *Panel) ConfigureDHT(pin hal.Pin, model hal.DHTModel) error {
	p.log.Debug("configuring DHT sensor",
		zap.Uint8("pin", uint8(pin)),
		zap.Stringer("model", model),
	)
	return p.dht.Configure(pin, model)
}

// Sample acquires one reading from every channel. Acquisition order is
// fixed: soil, LDR, gas, rain, then humidity and temperature. No
// averaging or filtering is applied; the panel only acquires.
func (p *Panel) Sample(ctx context.Context) (Reading, error) {
	var (
		r   Reading
		err error
	)

	if r.SoilRaw, err = p.soil.Read(ctx); err != nil {
		return r, fmt.Errorf("sensors: soil moisture read: %w", err)
	}
	if r.LDRRaw, err = p.ldr.Read(ctx); err != nil {
		return r, fmt.Errorf("sensors: LDR read: %w", err)
	}
	if r.GasRaw, err = p.gas.Read(ctx); err != nil {
		return r, fmt.Errorf("sensors: gas read: %w", err)
	}
	if r.RainRaw, err = p.rain.Read(ctx); err != nil {
		return r, fmt.Errorf("sensors: rain read: %w", err)
	}

	r.Humidity = p.dht.Humidity()
	r.Temperature = p.dht.Temperature()
	r.Timestamp = time.Now()

	p.log.Debug("sampled panel",
		zap.Uint16("soilRaw", r.SoilRaw),
		zap.Uint16("ldrRaw", r.LDRRaw),
		zap.Uint16("gasRaw", r.GasRaw),
		zap.Uint16("rainRaw", r.RainRaw),
		zap.Float64("humidity", r.Humidity),
		zap.Float64("temperature", r.Temperature),
	)

	return r, nil
}
