// Package breath converts a target ventilation rate into a smoothly eased
// actuator position waveform. Motion is update-based: the controller never
// sleeps mid-cycle, it computes the position for the current wall-clock
// instant on every control-loop tick.
package breath

import (
	"math"
	"sync"
	"time"

	"codeberg.org/veldt/ventctl/internal/device"
)

const millisPerMinute = 60000

// Controller drives the breathing actuator through inhale/exhale cycles.
// Commands arrive from HTTP handler goroutines while Update runs on the
// control loop, so all state is mutex-guarded.
type Controller struct {
	actuator       device.Actuator
	minPos, maxPos int
	inhaleFraction float64

	mu            sync.Mutex
	running       bool
	rate          int
	cycleStart    time.Time
	cycleDuration time.Duration
}

func New(actuator device.Actuator, minPos, maxPos int, inhaleFraction float64, initialRate int) *Controller {
	c := &Controller{
		actuator:       actuator,
		minPos:         minPos,
		maxPos:         maxPos,
		inhaleFraction: inhaleFraction,
	}
	c.setRateLocked(initialRate, time.Time{})

	return c
}

// Start begins ventilation, re-basing the cycle so motion starts at the
// minimum position. Starting while already running only resets timing.
func (c *Controller) Start(now time.Time) {
	c.mu.Lock()
	c.running = true
	c.cycleStart = now
	c.mu.Unlock()
}

// Stop halts ventilation. Every subsequent Update forces the actuator to
// the minimum position. Safe to call repeatedly.
func (c *Controller) Stop() {
	c.mu.Lock()
	c.running = false
	c.mu.Unlock()
}

func (c *Controller) Running() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.running
}

func (c *Controller) Rate() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.rate
}

func (c *Controller) CycleDuration() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.cycleDuration
}

// SetRate adopts a new target rate, recomputing the cycle duration and
// re-basing the cycle. Calls with the current rate are no-ops, so the
// control loop may invoke this every tick.
func (c *Controller) SetRate(rate int, now time.Time) {
	c.mu.Lock()
	c.setRateLocked(rate, now)
	c.mu.Unlock()
}

func (c *Controller) setRateLocked(rate int, now time.Time) {
	if rate <= 0 || rate == c.rate {
		return
	}
	c.rate = rate
	c.cycleDuration = time.Duration(millisPerMinute/rate) * time.Millisecond
	c.cycleStart = now
}

// Update drives the actuator for the given instant. While stopped it
// forces the minimum position unconditionally, every tick; this is the
// single safe-state guarantee of the whole system.
func (c *Controller) Update(now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.running {
		c.actuator.SetPosition(c.minPos)
		return
	}

	if c.cycleStart.IsZero() {
		c.cycleStart = now
	}

	elapsed := now.Sub(c.cycleStart)
	if elapsed >= c.cycleDuration {
		c.cycleStart = now
		elapsed = 0
	}

	c.actuator.SetPosition(PositionAt(elapsed, c.cycleDuration, c.inhaleFraction, c.minPos, c.maxPos))
}

// PositionAt computes the eased actuator position for a cycle-relative
// elapsed time: rising from minPos to maxPos over the inhale fraction of
// the cycle, then falling back over the remainder.
func PositionAt(elapsed, duration time.Duration, inhaleFraction float64, minPos, maxPos int) int {
	if duration <= 0 {
		return minPos
	}

	inhale := time.Duration(float64(duration) * inhaleFraction)
	span := float64(maxPos - minPos)

	if elapsed < inhale {
		t := float64(elapsed) / float64(inhale)
		return minPos + int(span*easeInOutSine(t))
	}

	exhale := duration - inhale
	t := float64(elapsed-inhale) / float64(exhale)

	return maxPos - int(span*easeInOutSine(t))
}

func easeInOutSine(t float64) float64 {
	return -0.5 * (math.Cos(math.Pi*t) - 1)
}
