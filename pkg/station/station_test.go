package station

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/agromon/agrinode-go/pkg/hal"
	"github.com/agromon/agrinode-go/pkg/sensors"
	"github.com/agromon/agrinode-go/pkg/thingspeak"
)

type fakePublisher struct {
	mu      sync.Mutex
	updates []thingspeak.Update
	code    int
	err     error
}

func (f *fakePublisher) Publish(ctx context.Context, u thingspeak.Update) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updates = append(f.updates, u)
	return f.code, f.err
}

func (f *fakePublisher) published() []thingspeak.Update {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]thingspeak.Update(nil), f.updates...)
}

type fixture struct {
	station  *Station
	radio    *hal.SimRadio
	dht      *hal.SimDHT
	soil     *hal.SimADC
	pub      *fakePublisher
	console  *bytes.Buffer
	outcomes *[]Outcome
}

// newFixture wires a station over simulated hardware with the readings of
// a mild field day: soil and rain mid-scale, DHT at 25 °C / 60 %.
func newFixture(t *testing.T, radioPolls int) *fixture {
	t.Helper()

	f := &fixture{
		radio:    hal.NewSimRadio(radioPolls),
		dht:      hal.NewSimDHT(25.0, 60.0),
		soil:     hal.NewSimADC(2048),
		pub:      &fakePublisher{code: http.StatusOK},
		console:  &bytes.Buffer{},
		outcomes: &[]Outcome{},
	}

	panel, err := sensors.NewPanel(
		sensors.WithSoil(f.soil),
		sensors.WithLDR(hal.NewSimADC(1000)),
		sensors.WithGas(hal.NewSimADC(500)),
		sensors.WithRain(hal.NewSimADC(2048)),
		sensors.WithDHT(f.dht),
	)
	require.NoError(t, err)

	f.station, err = New(DefaultConfig(),
		WithRadio(f.radio),
		WithPanel(panel),
		WithPublisher(f.pub),
		WithConsole(f.console),
		WithJoinPollInterval(time.Millisecond),
		WithObserver(func(o Outcome, _ sensors.Reading) {
			*f.outcomes = append(*f.outcomes, o)
		}),
	)
	require.NoError(t, err)
	return f
}

func (f *fixture) bootstrap(t *testing.T) {
	t.Helper()
	require.NoError(t, f.station.Bootstrap(context.Background()))
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{
			name:   "defaults are valid",
			mutate: func(c *Config) {},
		},
		{
			name:    "period below endpoint minimum",
			mutate:  func(c *Config) { c.Period = 10 * time.Second },
			wantErr: "below",
		},
		{
			name:    "missing SSID",
			mutate:  func(c *Config) { c.SSID = "" },
			wantErr: "SSID",
		},
		{
			name:    "missing API key",
			mutate:  func(c *Config) { c.APIKey = "" },
			wantErr: "API key",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				assert.ErrorContains(t, err, tt.wantErr)
			}
		})
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, "Wokwi-GUEST", cfg.SSID)
	assert.Empty(t, cfg.Passphrase)
	assert.Equal(t, PinMap{DHT: 15, Soil: 34, LDR: 35, Gas: 32, Rain: 33}, cfg.Pins)
	assert.Equal(t, 115200, cfg.BaudRate)
	assert.Equal(t, 15*time.Second, cfg.Period)

	// Reserved for hysteresis-gated alerting; declared but not consumed.
	assert.Equal(t, 15, cfg.MoistureThresholdLow)
	assert.Equal(t, 85, cfg.MoistureThresholdHigh)
}

func TestNewRequiresComponents(t *testing.T) {
	_, err := New(DefaultConfig())
	assert.ErrorContains(t, err, "radio")

	_, err = New(DefaultConfig(), WithRadio(hal.NewSimRadio(0)))
	assert.ErrorContains(t, err, "panel")
}

func TestBootstrap(t *testing.T) {
	f := newFixture(t, 2)

	require.NoError(t, f.station.Bootstrap(context.Background()))

	out := f.console.String()
	assert.Contains(t, out, "Connecting to WiFi..")
	assert.Contains(t, out, "WiFi Connected")
	assert.Contains(t, out, "System Started")

	ssid, joined := f.radio.SSID()
	assert.True(t, joined)
	assert.Equal(t, "Wokwi-GUEST", ssid)

	pin, model, configured := f.dht.Pin()
	assert.True(t, configured)
	assert.Equal(t, hal.Pin(15), pin)
	assert.Equal(t, hal.DHT22, model)
}

func TestBootstrapHonorsContext(t *testing.T) {
	f := newFixture(t, 1<<30) // radio never associates

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := f.station.Bootstrap(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestRunCyclePublishes(t *testing.T) {
	f := newFixture(t, 0)
	f.bootstrap(t)

	require.NoError(t, f.station.RunCycle(context.Background()))

	got := f.pub.published()
	require.Len(t, got, 1)
	assert.Equal(t, thingspeak.Update{
		Temperature: 25.0,
		Humidity:    60.0,
		SoilPercent: 49,
		LDRRaw:      1000,
		GasRaw:      500,
		RainPercent: 34,
	}, got[0])

	out := f.console.String()
	assert.Contains(t, out, "Soil Moisture: 49 %")
	assert.Contains(t, out, "LDR Value: 1000")
	assert.Contains(t, out, "MQ-2 Gas Value: 500")
	assert.Contains(t, out, "Rain Intensity: 34 %")
	assert.Contains(t, out, "Humidity: 60.00 % | Temperature: 25.00 °C")
	assert.Contains(t, out, "Data sent")
	assert.Equal(t, []Outcome{Published}, *f.outcomes)

	// One separator before the readings, one after the publish.
	assert.Equal(t, 2, strings.Count(out, "-------------"))
}

func TestRunCycleAbortsOnDHTFailure(t *testing.T) {
	f := newFixture(t, 0)
	f.bootstrap(t)
	f.dht.FailReads(true)

	err := f.station.RunCycle(context.Background())
	assert.ErrorIs(t, err, ErrSensorRead)

	assert.Empty(t, f.pub.published(), "no HTTP request may be issued on an invalid DHT read")

	out := f.console.String()
	assert.Contains(t, out, "DHT read failed")
	assert.NotContains(t, out, "Data sent")
	assert.Equal(t, []Outcome{SensorFailed}, *f.outcomes)

	// The next cycle proceeds normally once the sensor recovers.
	f.dht.FailReads(false)
	require.NoError(t, f.station.RunCycle(context.Background()))
	assert.Len(t, f.pub.published(), 1)
}

func TestRunCycleSkipsWhenRadioDown(t *testing.T) {
	f := newFixture(t, 0)
	f.bootstrap(t)
	f.radio.Drop()

	require.NoError(t, f.station.RunCycle(context.Background()))

	assert.Empty(t, f.pub.published())
	out := f.console.String()
	assert.NotContains(t, out, "Data sent")
	assert.NotContains(t, out, "Error sending data")
	assert.Equal(t, []Outcome{RadioDown}, *f.outcomes)

	// Once the radio re-associates the next cycle publishes again.
	f.radio.Restore()
	require.NoError(t, f.station.RunCycle(context.Background()))
	assert.Len(t, f.pub.published(), 1)
}

func TestRunCycleReportsPublishFailure(t *testing.T) {
	f := newFixture(t, 0)
	f.bootstrap(t)
	f.pub.code = thingspeak.ErrTransport
	f.pub.err = errors.New("connection reset")

	require.NoError(t, f.station.RunCycle(context.Background()),
		"a lost tuple does not abort the loop")

	out := f.console.String()
	assert.Contains(t, out, "Error sending data")
	assert.NotContains(t, out, "Data sent")
	assert.Equal(t, []Outcome{PublishFailed}, *f.outcomes)
}

func TestRunCycleAbortsOnSampleFailure(t *testing.T) {
	f := newFixture(t, 0)
	f.bootstrap(t)
	f.soil.Fail(errors.New("bus fault"))

	err := f.station.RunCycle(context.Background())
	assert.Error(t, err)
	assert.Empty(t, f.pub.published())
	assert.Equal(t, []Outcome{SampleFailed}, *f.outcomes)
}

func TestRunStopsOnContextCancel(t *testing.T) {
	for _, drift := range []bool{false, true} {
		f := newFixture(t, 0)
		f.station.cfg.CompensateDrift = drift

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		err := f.station.Run(ctx)
		assert.ErrorIs(t, err, context.Canceled)
	}
}

// End-to-end: simulated panel through the real HTTP client against a test
// server, checking the exact query string on the wire.
func TestStationPublishesExactQuery(t *testing.T) {
	var gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
	}))
	defer srv.Close()

	panel, err := sensors.NewPanel(
		sensors.WithSoil(hal.NewSimADC(2048)),
		sensors.WithLDR(hal.NewSimADC(1000)),
		sensors.WithGas(hal.NewSimADC(500)),
		sensors.WithRain(hal.NewSimADC(2048)),
		sensors.WithDHT(hal.NewSimDHT(25.0, 60.0)),
	)
	require.NoError(t, err)

	pub, err := thingspeak.NewClient(
		thingspeak.WithAPIKey("WVW7SRHXIYQJPXSG"),
		thingspeak.WithBaseURL(srv.URL),
		thingspeak.WithRateLimit(rate.NewLimiter(rate.Inf, 1)),
	)
	require.NoError(t, err)

	s, err := New(DefaultConfig(),
		WithRadio(hal.NewSimRadio(0)),
		WithPanel(panel),
		WithPublisher(pub),
		WithConsole(&bytes.Buffer{}),
	)
	require.NoError(t, err)

	require.NoError(t, s.Bootstrap(context.Background()))
	require.NoError(t, s.RunCycle(context.Background()))

	assert.Equal(t,
		"api_key=WVW7SRHXIYQJPXSG&field1=25.00&field2=60.00&field3=49&field4=1000&field5=500&field6=34",
		gotQuery,
	)
}
