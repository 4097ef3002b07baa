// Package bridge carries sensor readings from the acquisition loop to the
// control loop without locks. Every scalar field has exactly one writer
// (the acquisition loop) and one reader (the control loop); values are
// stored through atomics so the reader may see a stale value but never a
// torn one. The PPG buffer is the single composite structure and is
// guarded by a mutex held only for one sample write or one batch copy.
package bridge

import (
	"math"
	"sync"
	"sync/atomic"
	"time"
)

type Bridge struct {
	saturation atomic.Uint64 // float64 bits, NaN when unknown
	pulseRate  atomic.Uint64 // float64 bits, NaN when unknown
	tempC      atomic.Uint64 // float64 bits, NaN when unknown
	sensorOK   atomic.Bool
	beat       atomic.Bool
	lastBeatMS atomic.Int64 // unix milliseconds
	suggested  atomic.Int32 // breaths per minute

	mu       sync.Mutex
	ppg      []uint16
	ppgIdx   int
	ppgReady bool
}

func New(ppgCapacity, fallbackRate int) *Bridge {
	b := &Bridge{
		ppg: make([]uint16, ppgCapacity),
	}
	b.saturation.Store(math.Float64bits(math.NaN()))
	b.pulseRate.Store(math.Float64bits(math.NaN()))
	b.tempC.Store(math.Float64bits(math.NaN()))
	b.suggested.Store(int32(fallbackRate))

	return b
}

// Acquisition-side write surface.

// PublishVitals stores a saturation and pulse rate pair.
func (b *Bridge) PublishVitals(saturation, pulseRate float64) {
	b.saturation.Store(math.Float64bits(saturation))
	b.pulseRate.Store(math.Float64bits(pulseRate))
}

// PublishSensorOK marks the pulse-oximetry sensor available or not.
func (b *Bridge) PublishSensorOK(ok bool) {
	b.sensorOK.Store(ok)
}

// PublishTemperature stores a temperature reading in Celsius.
func (b *Bridge) PublishTemperature(celsius float64) {
	b.tempC.Store(math.Float64bits(celsius))
}

// PublishBeat flags a detected pulse beat at the given instant.
func (b *Bridge) PublishBeat(at time.Time) {
	b.lastBeatMS.Store(at.UnixMilli())
	b.beat.Store(true)
}

// SuggestRate stores a target ventilation rate suggestion. The privileged
// rate-override command writes here too; the next acquisition publish
// simply overwrites it, which is what makes the override transient.
func (b *Bridge) SuggestRate(rate int) {
	b.suggested.Store(int32(rate))
}

// PushPPG appends one raw waveform sample, wrapping at capacity, and marks
// the buffer ready for a batch copy.
func (b *Bridge) PushPPG(sample uint16) {
	b.mu.Lock()
	b.ppg[b.ppgIdx] = sample
	b.ppgIdx = (b.ppgIdx + 1) % len(b.ppg)
	b.ppgReady = true
	b.mu.Unlock()
}

// Control-side read surface.

func (b *Bridge) Saturation() float64 {
	return math.Float64frombits(b.saturation.Load())
}

func (b *Bridge) PulseRate() float64 {
	return math.Float64frombits(b.pulseRate.Load())
}

func (b *Bridge) Temperature() float64 {
	return math.Float64frombits(b.tempC.Load())
}

func (b *Bridge) SensorOK() bool {
	return b.sensorOK.Load()
}

// ConsumeBeat reports whether a beat was detected since the last call and
// clears the flag, returning the beat timestamp.
func (b *Bridge) ConsumeBeat() (bool, time.Time) {
	detected := b.beat.Swap(false)
	ms := b.lastBeatMS.Load()
	if ms == 0 {
		return detected, time.Time{}
	}

	return detected, time.UnixMilli(ms)
}

func (b *Bridge) SuggestedRate() int {
	return int(b.suggested.Load())
}

// CopyPPG copies the full buffer into dst and clears the ready flag.
// It returns false, copying nothing, when no new data arrived since the
// previous copy or dst cannot hold a complete batch. Readers always see a
// complete capacity-sized batch or none.
func (b *Bridge) CopyPPG(dst []uint16) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.ppgReady || len(dst) < len(b.ppg) {
		return false
	}

	copy(dst, b.ppg)
	b.ppgReady = false

	return true
}

// PPGCapacity returns the fixed sample capacity of the PPG buffer.
func (b *Bridge) PPGCapacity() int {
	return len(b.ppg)
}
