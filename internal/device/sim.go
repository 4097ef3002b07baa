package device

import (
	"math"
	"sync"
	"time"

	"codeberg.org/veldt/ventctl/internal/errors"
)

// Disconnected 1-Wire probes read as -127 before a conversion settles.
const disconnectedCelsius = -127.0

const (
	ppgBaseline  = 33000.0
	ppgAmplitude = 12000.0
)

// SimOximeter synthesizes a plausible PPG waveform and steady vitals.
// It is serviced from one goroutine only, like a real driver.
type SimOximeter struct {
	// InitFailures makes the next n Begin calls fail, for exercising
	// the acquisition loop's retry path.
	InitFailures int

	saturation float64
	pulseRate  float64
	begun      bool
	start      time.Time
	lastPhase  float64
	raw        uint16
	onBeat     func(at time.Time)
}

func NewSimOximeter(saturation, pulseRate float64) *SimOximeter {
	return &SimOximeter{
		saturation: saturation,
		pulseRate:  pulseRate,
	}
}

func (o *SimOximeter) Begin() error {
	if o.InitFailures > 0 {
		o.InitFailures--
		return errors.New().New(ErrOximeterInit)
	}

	o.begun = true
	o.start = time.Time{}

	return nil
}

func (o *SimOximeter) Update(now time.Time) {
	if !o.begun {
		return
	}
	if o.start.IsZero() {
		o.start = now
	}

	beatPeriod := 60.0 / o.pulseRate
	elapsed := now.Sub(o.start).Seconds()
	phase := math.Mod(elapsed, beatPeriod) / beatPeriod

	if phase < o.lastPhase && o.onBeat != nil {
		o.onBeat(now)
	}
	o.lastPhase = phase

	o.raw = uint16(ppgBaseline + ppgAmplitude*math.Sin(2*math.Pi*phase))
}

func (o *SimOximeter) Saturation() float64 {
	if !o.begun {
		return 0
	}

	return o.saturation
}

func (o *SimOximeter) PulseRate() float64 {
	if !o.begun {
		return 0
	}

	return o.pulseRate
}

func (o *SimOximeter) RawSample() uint16 {
	return o.raw
}

func (o *SimOximeter) SetBeatHandler(fn func(at time.Time)) {
	o.onBeat = fn
}

// SetSaturation adjusts the synthesized SpO2, e.g. to script a scenario.
func (o *SimOximeter) SetSaturation(v float64) {
	o.saturation = v
}

// SimThermometer models a probe with a one-shot conversion latency.
type SimThermometer struct {
	mu          sync.Mutex
	temp        float64
	delay       time.Duration
	requestedAt time.Time
	pending     bool
}

func NewSimThermometer(celsius float64) *SimThermometer {
	return &SimThermometer{
		temp:  celsius,
		delay: 375 * time.Millisecond,
	}
}

func (t *SimThermometer) RequestConversion(now time.Time) {
	t.mu.Lock()
	t.requestedAt = now
	t.pending = true
	t.mu.Unlock()
}

func (t *SimThermometer) ReadCelsius(now time.Time) float64 {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.pending || now.Sub(t.requestedAt) < t.delay {
		return disconnectedCelsius
	}
	t.pending = false

	return t.temp
}

// SetCelsius adjusts the synthesized temperature.
func (t *SimThermometer) SetCelsius(v float64) {
	t.mu.Lock()
	t.temp = v
	t.mu.Unlock()
}

// SimActuator records the last commanded position.
type SimActuator struct {
	mu  sync.Mutex
	pos int
}

func NewSimActuator() *SimActuator {
	return &SimActuator{}
}

func (a *SimActuator) SetPosition(pos int) {
	a.mu.Lock()
	a.pos = pos
	a.mu.Unlock()
}

func (a *SimActuator) Position() int {
	a.mu.Lock()
	defer a.mu.Unlock()

	return a.pos
}

// SimBuzzer records the output signal and how often it was driven.
type SimBuzzer struct {
	mu      sync.Mutex
	on      bool
	sets    int
	toggles int
}

func NewSimBuzzer() *SimBuzzer {
	return &SimBuzzer{}
}

func (b *SimBuzzer) Set(on bool) {
	b.mu.Lock()
	b.on = on
	b.sets++
	b.mu.Unlock()
}

func (b *SimBuzzer) Toggle() {
	b.mu.Lock()
	b.on = !b.on
	b.toggles++
	b.mu.Unlock()
}

func (b *SimBuzzer) Active() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.on
}

// Sets reports how many times Set was called.
func (b *SimBuzzer) Sets() int {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.sets
}

// Toggles reports how many times Toggle was called.
func (b *SimBuzzer) Toggles() int {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.toggles
}
