// Package alarm watches the published vitals and drives the audible
// buzzer. Thresholds are evaluated on a coarse cadence while the beep
// toggle runs on its own faster timer, so an active alarm pulses
// regardless of how often the thresholds are re-checked.
package alarm

import (
	"math"
	"time"

	"codeberg.org/veldt/ventctl/internal/device"
	"codeberg.org/veldt/ventctl/internal/logger"
)

const (
	evalInterval   = time.Second
	toggleInterval = 500 * time.Millisecond
)

// Monitor is owned by the control loop and is not safe for concurrent
// use. Check is expected every tick; internal timers decide what runs.
type Monitor struct {
	buzzer              device.Buzzer
	tempThresholdF      float64
	saturationThreshold float64

	active     bool
	lastCheck  time.Time
	lastToggle time.Time
}

func New(buzzer device.Buzzer, tempThresholdF, saturationThreshold float64) *Monitor {
	return &Monitor{
		buzzer:              buzzer,
		tempThresholdF:      tempThresholdF,
		saturationThreshold: saturationThreshold,
	}
}

func (m *Monitor) Active() bool {
	return m.active
}

// Check evaluates the thresholds at most once per second and pulses the
// buzzer while the alarm is active. Unknown readings (NaN) never trip.
// Returns whether the alarm is active after this call.
func (m *Monitor) Check(now time.Time, tempF, saturation float64) bool {
	if m.lastCheck.IsZero() || now.Sub(m.lastCheck) >= evalInterval {
		m.lastCheck = now
		m.evaluate(now, tempF, saturation)
	}

	if m.active && now.Sub(m.lastToggle) >= toggleInterval {
		m.lastToggle = now
		m.buzzer.Toggle()
	}

	return m.active
}

func (m *Monitor) evaluate(now time.Time, tempF, saturation float64) {
	tripped := (!math.IsNaN(tempF) && tempF < m.tempThresholdF) ||
		(!math.IsNaN(saturation) && saturation < m.saturationThreshold)

	if tripped == m.active {
		return
	}
	m.active = tripped

	if tripped {
		m.buzzer.Set(true)
		m.lastToggle = now
		logger.Warn().
			Float64("temp_f", tempF).
			Float64("saturation", saturation).
			Msg("Alarm raised")

		return
	}

	m.buzzer.Set(false)
	logger.Info().
		Float64("temp_f", tempF).
		Float64("saturation", saturation).
		Msg("Alarm cleared")
}
