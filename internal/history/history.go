// Package history keeps a bounded in-memory record of vitals for the
// trend endpoint. Points are appended on a fixed cadence and the oldest
// entries are overwritten once the ring is full.
package history

import (
	"sync"
	"time"

	"codeberg.org/veldt/ventctl/internal/errors"
)

// Point is one recorded sample. Unknown readings carry NaN.
type Point struct {
	Timestamp  time.Time
	Saturation float64
	PulseRate  float64
	TempF      float64
	TargetRate int
}

// Window bounds how far back Since reaches. Zero means unbounded.
type Window time.Duration

const WindowAll Window = 0

var windows = map[string]Window{
	"1h":  Window(time.Hour),
	"6h":  Window(6 * time.Hour),
	"12h": Window(12 * time.Hour),
	"all": WindowAll,
}

// ParseWindow maps the query-string duration names onto windows.
func ParseWindow(name string) (Window, error) {
	w, ok := windows[name]
	if !ok {
		return 0, errors.New().WithData(errors.ErrInvalidWindow, name)
	}

	return w, nil
}

// Recorder is a fixed-capacity ring of points. Appends come from the
// control loop while reads come from HTTP handlers.
type Recorder struct {
	mu         sync.RWMutex
	points     []Point
	head       int
	count      int
	interval   time.Duration
	lastAppend time.Time
}

func NewRecorder(capacity int, interval time.Duration) *Recorder {
	return &Recorder{
		points:   make([]Point, capacity),
		interval: interval,
	}
}

// MaybeAppend records the point if the append cadence has elapsed.
// Reports whether the point was recorded.
func (r *Recorder) MaybeAppend(now time.Time, p Point) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.lastAppend.IsZero() && now.Sub(r.lastAppend) < r.interval {
		return false
	}
	r.lastAppend = now
	r.appendLocked(p)

	return true
}

// Append records the point unconditionally, bypassing the cadence.
func (r *Recorder) Append(p Point) {
	r.mu.Lock()
	r.appendLocked(p)
	r.mu.Unlock()
}

func (r *Recorder) appendLocked(p Point) {
	r.points[r.head] = p
	r.head = (r.head + 1) % len(r.points)
	if r.count < len(r.points) {
		r.count++
	}
}

func (r *Recorder) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.count
}

// Since returns the recorded points no older than the window, oldest
// first. The result is a copy and safe to hold across appends.
func (r *Recorder) Since(now time.Time, w Window) []Point {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Point, 0, r.count)
	start := (r.head - r.count + len(r.points)) % len(r.points)
	for i := 0; i < r.count; i++ {
		p := r.points[(start+i)%len(r.points)]
		if w != WindowAll && now.Sub(p.Timestamp) > time.Duration(w) {
			continue
		}
		out = append(out, p)
	}

	return out
}
