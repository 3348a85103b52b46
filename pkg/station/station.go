// Package station runs the field node's sampling-and-publishing loop:
// join the wireless network once, then sample the sensor panel on a fixed
// cadence, normalize, gate on DHT validity and push each tuple to the
// ingestion endpoint.
package station

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	"github.com/agromon/agrinode-go/pkg/hal"
	"github.com/agromon/agrinode-go/pkg/sensors"
	"github.com/agromon/agrinode-go/pkg/thingspeak"
)

// ErrSensorRead aborts a cycle whose DHT reading came back NaN.
var ErrSensorRead = errors.New("station: DHT read failed")

// Outcome classifies how a cycle ended.
type Outcome int

const (
	// Published means the tuple reached the endpoint.
	Published Outcome = iota
	// SensorFailed means the DHT read was NaN and the cycle was aborted.
	SensorFailed
	// SampleFailed means an analog channel returned an error.
	SampleFailed
	// RadioDown means the radio was not associated at publish time.
	RadioDown
	// PublishFailed means the HTTP transaction failed; the tuple is lost.
	PublishFailed
)

func (o Outcome) String() string {
	switch o {
	case Published:
		return "published"
	case SensorFailed:
		return "sensor_failed"
	case SampleFailed:
		return "sample_failed"
	case RadioDown:
		return "radio_down"
	case PublishFailed:
		return "publish_failed"
	default:
		return "unknown"
	}
}

// Observer is notified after every cycle with its outcome.
type Observer func(o Outcome, r sensors.Reading)

// Station owns the radio, the sensor panel and the publisher and drives
// them from a single loop. Cycles are strictly serial.
type Station struct {
	cfg     Config
	log     *zap.Logger
	console io.Writer

	radio    hal.Radio
	panel    *sensors.Panel
	pub      thingspeak.Publisher
	observer Observer

	bootID       uuid.UUID
	pollInterval time.Duration

	temperature metric.Float64Gauge
	humidity    metric.Float64Gauge
	soil        metric.Int64Gauge
	light       metric.Int64Gauge
	gas         metric.Int64Gauge
	rain        metric.Int64Gauge
	cycles      metric.Int64Counter
	cycleTime   metric.Float64Histogram
}

type Option func(s *Station) error

// New builds a station. Radio, panel and publisher are mandatory.
func New(cfg Config, opts ...Option) (*Station, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	s := &Station{
		cfg:          cfg,
		log:          zap.L(),
		console:      os.Stdout,
		bootID:       uuid.New(),
		pollInterval: 500 * time.Millisecond,
	}

	// apply the options
	for _, o := range opts {
		err := o(s)
		if err != nil {
			return nil, err
		}
	}

	if s.radio == nil {
		return nil, fmt.Errorf("station: radio is required")
	}
	if s.panel == nil {
		return nil, fmt.Errorf("station: sensor panel is required")
	}
	if s.pub == nil {
		return nil, fmt.Errorf("station: publisher is required")
	}

	meter := otel.Meter("github.com/agromon/agrinode-go/pkg/station")
	s.temperature, _ = meter.Float64Gauge("sensor.temperature",
		metric.WithUnit("°C"),
		metric.WithDescription("Air temperature in degrees Celsius"),
	)
	s.humidity, _ = meter.Float64Gauge("sensor.humidity",
		metric.WithUnit("%rH"),
		metric.WithDescription("Relative humidity as a percentage"),
	)
	s.soil, _ = meter.Int64Gauge("sensor.soil_moisture",
		metric.WithUnit("%"),
		metric.WithDescription("Normalized soil moisture"),
	)
	s.light, _ = meter.Int64Gauge("sensor.light",
		metric.WithDescription("Ambient light in raw ADC counts"),
	)
	s.gas, _ = meter.Int64Gauge("sensor.gas",
		metric.WithDescription("Combustible gas concentration in raw ADC counts"),
	)
	s.rain, _ = meter.Int64Gauge("sensor.rain_intensity",
		metric.WithUnit("%"),
		metric.WithDescription("Normalized rain intensity"),
	)
	s.cycles, _ = meter.Int64Counter("station.cycles",
		metric.WithDescription("Completed sampling cycles by outcome"),
	)
	s.cycleTime, _ = meter.Float64Histogram("station.cycle.duration",
		metric.WithUnit("s"),
		metric.WithDescription("Wall-clock duration of one sampling cycle"),
	)

	return s, nil
}

func WithLogger(l *zap.Logger) Option {
	return func(s *Station) error {
		s.log = l
		return nil
	}
}

// WithConsole redirects the serial-console style field-debug output.
func WithConsole(w io.Writer) Option {
	return func(s *Station) error {
		s.console = w
		return nil
	}
}

func WithRadio(r hal.Radio) Option {
	return func(s *Station) error {
		s.radio = r
		return nil
	}
}

func WithPanel(p *sensors.Panel) Option {
	return func(s *Station) error {
		s.panel = p
		return nil
	}
}

func WithPublisher(p thingspeak.Publisher) Option {
	return func(s *Station) error {
		s.pub = p
		return nil
	}
}

func WithObserver(o Observer) Option {
	return func(s *Station) error {
		s.observer = o
		return nil
	}
}

// WithJoinPollInterval changes how often association is polled during
// bootstrap. The board default is 500 ms.
func WithJoinPollInterval(d time.Duration) Option {
	return func(s *Station) error {
		s.pollInterval = d
		return nil
	}
}

// BootID identifies this process lifetime in logs.
func (s *Station) BootID() uuid.UUID { return s.bootID }

// Bootstrap configures the DHT sensor and joins the wireless network,
// blocking until the radio reports associated. Association is retried
// indefinitely by the radio itself; there is no timeout beyond ctx.
func (s *Station) Bootstrap(ctx context.Context) error {
	s.log.Info("starting up",
		zap.String("bootID", s.bootID.String()),
		zap.Int("baud", s.cfg.BaudRate),
		zap.Duration("period", s.cfg.Period),
	)

	if err := s.panel.ConfigureDHT(s.cfg.Pins.DHT, hal.DHT22); err != nil {
		return fmt.Errorf("station: configuring DHT: %w", err)
	}

	if err := s.radio.Join(s.cfg.SSID, s.cfg.Passphrase); err != nil {
		return fmt.Errorf("station: joining %q: %w", s.cfg.SSID, err)
	}

	fmt.Fprint(s.console, "Connecting to WiFi")
	for !s.radio.Associated() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(s.pollInterval):
		}
		fmt.Fprint(s.console, ".")
	}
	fmt.Fprintln(s.console)
	fmt.Fprintln(s.console, "WiFi Connected")
	fmt.Fprintln(s.console, "System Started")

	s.log.Info("wifi associated", zap.String("ssid", s.cfg.SSID))
	return nil
}

// Run drives the loop until ctx is cancelled. The sleep runs at the top of
// each iteration; with CompensateDrift set, cycles are scheduled by a
// fixed-rate ticker instead so publish latency does not accumulate.
func (s *Station) Run(ctx context.Context) error {
	if s.cfg.CompensateDrift {
		ticker := time.NewTicker(s.cfg.Period)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-ticker.C:
			}
			s.cycle(ctx)
		}
	}

	timer := time.NewTimer(s.cfg.Period)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}
		s.cycle(ctx)
		timer.Reset(s.cfg.Period)
	}
}

func (s *Station) cycle(ctx context.Context) {
	if err := s.RunCycle(ctx); err != nil {
		s.log.Warn("cycle aborted", zap.Error(err))
	}
}

// RunCycle performs one sample -> normalize -> validate -> publish pass.
// An invalid DHT reading aborts the cycle with ErrSensorRead; a radio that
// is not associated skips the publish silently. Either way the next cycle
// proceeds normally.
func (s *Station) RunCycle(ctx context.Context) error {
	start := time.Now()

	fmt.Fprintln(s.console, "-------------")

	r, err := s.panel.Sample(ctx)
	if err != nil {
		s.log.Error("sampling failed", zap.Error(err))
		s.finish(ctx, SampleFailed, r, start)
		return err
	}

	fmt.Fprintf(s.console, "Soil Moisture: %d %%\n", r.SoilPercent())
	fmt.Fprintf(s.console, "LDR Value: %d\n", r.LDRRaw)
	fmt.Fprintf(s.console, "MQ-2 Gas Value: %d\n", r.GasRaw)
	fmt.Fprintf(s.console, "Rain Intensity: %d %%\n", r.RainPercent())

	if !r.Valid() {
		fmt.Fprintln(s.console, "DHT read failed")
		s.finish(ctx, SensorFailed, r, start)
		return ErrSensorRead
	}

	fmt.Fprintf(s.console, "Humidity: %.2f %% | Temperature: %.2f °C\n", r.Humidity, r.Temperature)

	s.temperature.Record(ctx, r.Temperature)
	s.humidity.Record(ctx, r.Humidity)
	s.soil.Record(ctx, int64(r.SoilPercent()))
	s.light.Record(ctx, int64(r.LDRRaw))
	s.gas.Record(ctx, int64(r.GasRaw))
	s.rain.Record(ctx, int64(r.RainPercent()))

	if !s.radio.Associated() {
		s.log.Debug("radio not associated, skipping publish")
		s.finish(ctx, RadioDown, r, start)
		fmt.Fprintln(s.console, "-------------")
		return nil
	}

	code, err := s.pub.Publish(ctx, thingspeak.Update{
		Temperature: r.Temperature,
		Humidity:    r.Humidity,
		SoilPercent: r.SoilPercent(),
		LDRRaw:      int(r.LDRRaw),
		GasRaw:      int(r.GasRaw),
		RainPercent: r.RainPercent(),
	})
	if err != nil || code < 0 {
		fmt.Fprintln(s.console, "Error sending data")
		s.log.Error("publish failed", zap.Int("code", code), zap.Error(err))
		s.finish(ctx, PublishFailed, r, start)
	} else {
		fmt.Fprintln(s.console, "Data sent")
		s.log.Info("published reading",
			zap.Int("code", code),
			zap.Float64("temperature", r.Temperature),
			zap.Float64("humidity", r.Humidity),
			zap.Int("soilMoisture", r.SoilPercent()),
			zap.Uint16("ldr", r.LDRRaw),
			zap.Uint16("gas", r.GasRaw),
			zap.Int("rainIntensity", r.RainPercent()),
		)
		s.finish(ctx, Published, r, start)
	}

	fmt.Fprintln(s.console, "-------------")
	return nil
}

func (s *Station) finish(ctx context.Context, o Outcome, r sensors.Reading, start time.Time) {
	s.cycles.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", o.String())))
	s.cycleTime.Record(ctx, time.Since(start).Seconds())
	if s.observer != nil {
		s.observer(o, r)
	}
}
