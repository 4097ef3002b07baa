// Package policy maps an oxygen-saturation reading to a target ventilation
// rate using a fixed threshold table. The mapping is evaluated fresh on
// every reading and carries no hysteresis band; a reading oscillating at a
// threshold changes the target rate on each evaluation.
package policy

import "math"

// Table holds the saturation thresholds and the rates they select.
type Table struct {
	LowThreshold float64 // below this: LowRate
	MidThreshold float64 // below this: MidRate, at or above: HighRate
	LowRate      int
	MidRate      int
	HighRate     int
	FallbackRate int // used while no valid reading exists
}

// Default returns the standard table: <90% -> 20/min, <95% -> 17/min,
// otherwise 15/min, falling back to 15/min without sensor data.
func Default() Table {
	return Table{
		LowThreshold: 90,
		MidThreshold: 95,
		LowRate:      20,
		MidRate:      17,
		HighRate:     15,
		FallbackRate: 15,
	}
}

// RateFor returns the target ventilation rate in breaths per minute for
// the given saturation percentage. NaN (no reading yet) selects the
// fallback rate.
func (t Table) RateFor(saturation float64) int {
	if math.IsNaN(saturation) {
		return t.FallbackRate
	}
	if saturation < t.LowThreshold {
		return t.LowRate
	}
	if saturation < t.MidThreshold {
		return t.MidRate
	}

	return t.HighRate
}
