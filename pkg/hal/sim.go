package hal

import (
	"context"
	"math"
	"math/rand"
	"sync"
)

// SimADC simulates a 12-bit analog channel. The value can be pinned for
// tests or left to wander between bounds for livelier host runs.
type SimADC struct {
	mu     sync.Mutex
	value  uint16
	err    error
	wander uint16
	rng    *rand.Rand
}

var _ ADC = (*SimADC)(nil)

// NewSimADC creates a simulated channel reading the given value.
func NewSimADC(value uint16) *SimADC {
	return &SimADC{value: value}
}

// NewWanderingADC creates a simulated channel whose value takes a random
// step of at most step counts on every read, clamped to the 12-bit range.
func NewWanderingADC(start, step uint16, seed int64) *SimADC {
	return &SimADC{value: start, wander: step, rng: rand.New(rand.NewSource(seed))}
}

func (a *SimADC) Read(ctx context.Context) (uint16, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.err != nil {
		return 0, a.err
	}
	if a.wander > 0 {
		delta := a.rng.Intn(int(a.wander)*2+1) - int(a.wander)
		next := int(a.value) + delta
		if next < 0 {
			next = 0
		}
		if next > int(MaxCount) {
			next = int(MaxCount)
		}
		a.value = uint16(next)
	}
	return a.value, nil
}

// Set pins the channel to a fixed value, clamped to full scale.
func (a *SimADC) Set(value uint16) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if value > MaxCount {
		value = MaxCount
	}
	a.value = value
}

// Fail makes subsequent reads return err; pass nil to clear.
func (a *SimADC) Fail(err error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.err = err
}

// SimDHT simulates a DHT-family sensor. A failed read is modelled the way
// the real driver reports it: both channels return NaN.
type SimDHT struct {
	mu         sync.Mutex
	configured bool
	pin        Pin
	model      DHTModel
	humidity   float64
	temp       float64
	failing    bool
}

var _ TempHumiditySensor = (*SimDHT)(nil)

// NewSimDHT creates a simulated sensor reporting the given climate until
// told otherwise. Configure must still be called before reads are
// meaningful, mirroring the real driver.
func NewSimDHT(temperature, humidity float64) *SimDHT {
	return &SimDHT{temp: temperature, humidity: humidity}
}

func (d *SimDHT) Configure(pin Pin, model DHTModel) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.pin = pin
	d.model = model
	d.configured = true
	return nil
}

func (d *SimDHT) Humidity() float64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.configured || d.failing {
		return math.NaN()
	}
	return d.humidity
}

func (d *SimDHT) Temperature() float64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.configured || d.failing {
		return math.NaN()
	}
	return d.temp
}

// Set updates the simulated climate.
func (d *SimDHT) Set(temperature, humidity float64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.temp = temperature
	d.humidity = humidity
}

// FailReads toggles the NaN failure mode.
func (d *SimDHT) FailReads(fail bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.failing = fail
}

// Pin reports the pin the sensor was configured on.
func (d *SimDHT) Pin() (Pin, DHTModel, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.pin, d.model, d.configured
}

// SimRadio simulates the wireless station interface. Association is
// reported after the configured number of polls, modelling the window
// between Join and the radio actually attaching to the network.
type SimRadio struct {
	mu         sync.Mutex
	ssid       string
	passphrase string
	joined     bool
	pollsLeft  int
	associated bool
}

var _ Radio = (*SimRadio)(nil)

// NewSimRadio creates a radio that reports associated after pollsUntilUp
// calls to Associated following Join. Zero means immediately.
func NewSimRadio(pollsUntilUp int) *SimRadio {
	return &SimRadio{pollsLeft: pollsUntilUp}
}

func (r *SimRadio) Join(ssid, passphrase string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ssid = ssid
	r.passphrase = passphrase
	r.joined = true
	return nil
}

func (r *SimRadio) Associated() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.joined {
		return false
	}
	if r.associated {
		return true
	}
	if r.pollsLeft > 0 {
		r.pollsLeft--
		return false
	}
	r.associated = true
	return true
}

// Drop forces the radio out of the associated state until Restore.
func (r *SimRadio) Drop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.associated = false
	r.pollsLeft = int(^uint(0) >> 1)
}

// Restore re-associates a dropped radio on the next poll.
func (r *SimRadio) Restore() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pollsLeft = 0
}

// SSID reports the network Join was called with.
func (r *SimRadio) SSID() (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.ssid, r.joined
}
