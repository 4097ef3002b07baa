package breath_test

import (
	"testing"
	"time"

	"codeberg.org/veldt/ventctl/internal/breath"
	"codeberg.org/veldt/ventctl/internal/device"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newController(act *device.SimActuator, rate int) *breath.Controller {
	return breath.New(act, 0, 90, 0.4, rate)
}

func TestPositionAtCycleEdges(t *testing.T) {
	for _, rate := range []int{5, 15, 17, 20, 40} {
		duration := time.Duration(60000/rate) * time.Millisecond
		boundary := time.Duration(float64(duration) * 0.4)

		assert.Equalf(t, 0, breath.PositionAt(0, duration, 0.4, 0, 90), "rate %d: cycle start", rate)
		assert.Equalf(t, 90, breath.PositionAt(boundary, duration, 0.4, 0, 90), "rate %d: inhale/exhale boundary", rate)
	}
}

func TestPositionRisesThenFalls(t *testing.T) {
	duration := 3 * time.Second // rate 20

	mid := breath.PositionAt(600*time.Millisecond, duration, 0.4, 0, 90)
	assert.Equal(t, 45, mid, "half of the inhale phase is half of the sweep")

	early := breath.PositionAt(1500*time.Millisecond, duration, 0.4, 0, 90)
	late := breath.PositionAt(2900*time.Millisecond, duration, 0.4, 0, 90)
	assert.Less(t, early, 90)
	assert.Less(t, late, early, "position falls through the exhale phase")
}

func TestStartBeginsAtMinimum(t *testing.T) {
	act := device.NewSimActuator()
	c := newController(act, 15)
	t0 := time.Unix(1000, 0)

	c.Start(t0)
	c.Update(t0)

	assert.Equal(t, 0, act.Position())
	assert.True(t, c.Running())
}

func TestRateDerivesCycleDuration(t *testing.T) {
	act := device.NewSimActuator()
	c := newController(act, 15)
	t0 := time.Unix(1000, 0)

	c.SetRate(20, t0)
	require.Equal(t, 3*time.Second, c.CycleDuration(), "60000/20 ms")

	c.Start(t0)
	c.Update(t0.Add(1200 * time.Millisecond))
	assert.Equal(t, 90, act.Position(), "40% of 3000 ms is the inhale/exhale boundary")
}

func TestStopForcesMinimumEveryTick(t *testing.T) {
	act := device.NewSimActuator()
	c := newController(act, 20)
	t0 := time.Unix(1000, 0)

	c.Start(t0)
	c.Update(t0.Add(1200 * time.Millisecond))
	require.Equal(t, 90, act.Position())

	c.Stop()
	for i := 0; i < 5; i++ {
		c.Update(t0.Add(time.Duration(1300+i) * time.Millisecond))
		assert.Equal(t, 0, act.Position())
	}

	// Repeated Stop stays at the minimum.
	c.Stop()
	c.Update(t0.Add(2 * time.Second))
	assert.Equal(t, 0, act.Position())
	assert.False(t, c.Running())
}

func TestStartWhileRunningResetsTiming(t *testing.T) {
	act := device.NewSimActuator()
	c := newController(act, 20)
	t0 := time.Unix(1000, 0)

	c.Start(t0)
	c.Update(t0.Add(1200 * time.Millisecond))
	require.Equal(t, 90, act.Position())

	t1 := t0.Add(90 * time.Second)
	c.Start(t1)
	c.Update(t1)
	assert.Equal(t, 0, act.Position(), "restart re-bases the cycle at the minimum")
}

func TestCycleWrapsByRebasing(t *testing.T) {
	act := device.NewSimActuator()
	c := newController(act, 20)
	t0 := time.Unix(1000, 0)

	c.Start(t0)
	c.Update(t0.Add(3 * time.Second))
	assert.Equal(t, 0, act.Position(), "a completed cycle restarts at the minimum")

	c.Update(t0.Add(4200 * time.Millisecond))
	assert.Equal(t, 90, act.Position(), "the re-based cycle reaches its boundary on schedule")
}

func TestRateChangeRebasesCycle(t *testing.T) {
	act := device.NewSimActuator()
	c := newController(act, 20)
	t0 := time.Unix(1000, 0)

	c.Start(t0)
	c.Update(t0.Add(1200 * time.Millisecond))
	require.Equal(t, 90, act.Position())

	t1 := t0.Add(1300 * time.Millisecond)
	c.SetRate(15, t1)
	assert.Equal(t, 4*time.Second, c.CycleDuration())

	c.Update(t1)
	assert.Equal(t, 0, act.Position(), "rate change restarts the cycle")

	// Same-rate calls are no-ops and must not reset timing.
	c.Update(t1.Add(800 * time.Millisecond))
	mid := act.Position()
	require.Greater(t, mid, 0)
	c.SetRate(15, t1.Add(810*time.Millisecond))
	c.Update(t1.Add(820 * time.Millisecond))
	assert.GreaterOrEqual(t, act.Position(), mid)
}
