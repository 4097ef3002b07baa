package telemetry

import (
	"context"
	"time"
)

// Collector defines the core domain interface
type Collector interface {
	Record(ctx context.Context, sample *Sample) error
	Close() error
}

// Sample is one journaled vitals row. Unknown readings carry NaN and
// are stored as NULL.
type Sample struct {
	Timestamp   time.Time
	Saturation  float64
	PulseRate   float64
	TempF       float64
	TargetRate  int
	AlarmActive bool
	Running     bool
}
