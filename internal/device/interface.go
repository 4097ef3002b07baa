// Package device defines the opaque hardware capabilities the controller
// drives: a pulse oximeter, a temperature probe, the breathing actuator and
// the alarm buzzer. Real transports live behind these interfaces; the
// package ships simulated implementations for host operation and tests.
package device

import "time"

// Oximeter is a pulse-oximetry sensor. Implementations are serviced from a
// single goroutine (the acquisition loop) and need not be goroutine-safe.
type Oximeter interface {
	// Begin initializes or re-initializes the sensor. Failure is
	// non-fatal; callers retry on a fixed backoff.
	Begin() error

	// Update services the sensor's internal sampling state machine and
	// must be called frequently while the sensor is available.
	Update(now time.Time)

	// Saturation returns the current SpO2 percentage. Implementations
	// return 0 until a valid measurement exists.
	Saturation() float64

	// PulseRate returns the current pulse in beats per minute, 0 until
	// a valid measurement exists.
	PulseRate() float64

	// RawSample returns the latest raw IR waveform magnitude for PPG
	// visualization.
	RawSample() uint16

	// SetBeatHandler registers a callback fired once per detected beat.
	SetBeatHandler(fn func(at time.Time))
}

// Thermometer is a one-shot-conversion temperature probe in the 1-Wire
// style: request a conversion, wait, then read.
type Thermometer interface {
	// RequestConversion starts a temperature conversion.
	RequestConversion(now time.Time)

	// ReadCelsius returns the conversion result. Reading before the
	// conversion settles yields an implausible sentinel value that
	// callers are expected to range-filter.
	ReadCelsius(now time.Time) float64
}

// Actuator positions the breathing mechanism.
type Actuator interface {
	SetPosition(pos int)
}

// Buzzer is the audible alarm output.
type Buzzer interface {
	Set(on bool)
	Toggle()
	Active() bool
}
