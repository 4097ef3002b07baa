package control_test

import (
	"context"
	"math"
	"testing"
	"time"

	"codeberg.org/veldt/ventctl/internal/alarm"
	"codeberg.org/veldt/ventctl/internal/breath"
	"codeberg.org/veldt/ventctl/internal/bridge"
	"codeberg.org/veldt/ventctl/internal/control"
	"codeberg.org/veldt/ventctl/internal/device"
	"codeberg.org/veldt/ventctl/internal/errors"
	"codeberg.org/veldt/ventctl/internal/history"
	"codeberg.org/veldt/ventctl/internal/policy"
	"codeberg.org/veldt/ventctl/internal/telemetry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type harness struct {
	ctl *control.Controller
	br  *bridge.Bridge
	act *device.SimActuator
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	table := policy.Default()
	br := bridge.New(50, table.FallbackRate)
	act := device.NewSimActuator()
	breather := breath.New(act, 0, 90, 0.4, table.FallbackRate)
	alarms := alarm.New(device.NewSimBuzzer(), 80, 80)
	recorder := history.NewRecorder(720, time.Minute)

	journal, err := telemetry.NewService(telemetry.Config{Enabled: false})
	require.NoError(t, err)

	cfg := control.Config{
		Passphrase:   "12345678",
		MinRate:      5,
		MaxRate:      40,
		TickInterval: 5 * time.Millisecond,
	}

	return &harness{
		ctl: control.New(cfg, br, breather, alarms, recorder, journal, table),
		br:  br,
		act: act,
	}
}

func TestSnapshotStartsUnknown(t *testing.T) {
	h := newHarness(t)
	t0 := time.Unix(1000, 0)

	h.ctl.Tick(context.Background(), t0)

	snap := h.ctl.Snapshot()
	assert.True(t, math.IsNaN(snap.Saturation))
	assert.True(t, math.IsNaN(snap.PulseRate))
	assert.True(t, math.IsNaN(snap.TempC))
	assert.True(t, math.IsNaN(snap.TempF))
	assert.False(t, snap.SensorOK)
	assert.False(t, snap.Running)
	assert.Equal(t, 15, snap.TargetRate, "fallback rate until a reading arrives")
	assert.Nil(t, snap.PPG)
}

func TestAutoAdoptsSuggestedRate(t *testing.T) {
	h := newHarness(t)
	t0 := time.Unix(1000, 0)

	h.br.PublishVitals(88, 90)
	h.br.SuggestRate(20)
	h.ctl.Start(t0)
	h.ctl.Tick(context.Background(), t0)

	snap := h.ctl.Snapshot()
	assert.Equal(t, 20, snap.TargetRate)
	assert.True(t, snap.Running)
	assert.InDelta(t, 88.0, snap.Saturation, 0.001)
	assert.Equal(t, 3*time.Second, snap.CycleDuration)
}

func TestManualModeSubstitutesSaturation(t *testing.T) {
	h := newHarness(t)
	t0 := time.Unix(1000, 0)

	h.br.PublishVitals(97, 70)
	h.br.SuggestRate(15)

	require.NoError(t, h.ctl.SetManualSaturation(85))
	h.ctl.Tick(context.Background(), t0)

	snap := h.ctl.Snapshot()
	assert.True(t, snap.ManualMode)
	assert.InDelta(t, 85.0, snap.Saturation, 0.001, "manual value replaces the sensor reading")
	assert.Equal(t, 20, snap.TargetRate, "rate recomputed from the manual value")

	h.ctl.SetAuto()
	h.ctl.Tick(context.Background(), t0.Add(5*time.Millisecond))

	snap = h.ctl.Snapshot()
	assert.False(t, snap.ManualMode)
	assert.InDelta(t, 97.0, snap.Saturation, 0.001)
	assert.Equal(t, 15, snap.TargetRate)
}

func TestManualSaturationValidation(t *testing.T) {
	h := newHarness(t)

	for _, v := range []float64{0, -5, 100.5, math.NaN()} {
		err := h.ctl.SetManualSaturation(v)
		require.Errorf(t, err, "value %v", v)
		assert.Equal(t, control.ErrSaturationOutOfRange, errors.CodeOf(err))
	}

	assert.NoError(t, h.ctl.SetManualSaturation(100))
	assert.NoError(t, h.ctl.SetManualSaturation(0.5))
}

func TestRateOverrideIsTransient(t *testing.T) {
	h := newHarness(t)
	t0 := time.Unix(1000, 0)

	require.NoError(t, h.ctl.SetTargetRate("12345678", 30))
	h.ctl.Tick(context.Background(), t0)
	assert.Equal(t, 30, h.ctl.Snapshot().TargetRate)

	// The next acquisition report overwrites the override.
	h.br.PublishVitals(97, 70)
	h.br.SuggestRate(15)
	h.ctl.Tick(context.Background(), t0.Add(5*time.Millisecond))
	assert.Equal(t, 15, h.ctl.Snapshot().TargetRate)
}

func TestRateOverrideRejectsBadPassphrase(t *testing.T) {
	h := newHarness(t)
	t0 := time.Unix(1000, 0)

	err := h.ctl.SetTargetRate("guessing", 20)
	require.Error(t, err)
	assert.Equal(t, control.ErrBadPassphrase, errors.CodeOf(err))

	h.ctl.Tick(context.Background(), t0)
	assert.Equal(t, 15, h.ctl.Snapshot().TargetRate, "rate unchanged after rejection")
}

func TestRateOverrideRejectsOutOfRange(t *testing.T) {
	h := newHarness(t)

	for _, rate := range []int{4, 0, -1, 41, 45} {
		err := h.ctl.SetTargetRate("12345678", rate)
		require.Errorf(t, err, "rate %d", rate)
		assert.Equal(t, control.ErrRateOutOfRange, errors.CodeOf(err))
	}

	assert.NoError(t, h.ctl.SetTargetRate("12345678", 5))
	assert.NoError(t, h.ctl.SetTargetRate("12345678", 40))
}

func TestStopParksActuator(t *testing.T) {
	h := newHarness(t)
	t0 := time.Unix(1000, 0)
	ctx := context.Background()

	h.ctl.Start(t0)
	h.ctl.Tick(ctx, t0.Add(1600*time.Millisecond)) // rate 15: boundary at 40% of 4 s
	require.Equal(t, 90, h.act.Position())

	h.ctl.Stop()
	h.ctl.Tick(ctx, t0.Add(1700*time.Millisecond))
	assert.Equal(t, 0, h.act.Position())
	assert.False(t, h.ctl.Snapshot().Running)

	h.ctl.Stop() // repeat is harmless
	h.ctl.Tick(ctx, t0.Add(1800*time.Millisecond))
	assert.Equal(t, 0, h.act.Position())
}

func TestCelsiusToFahrenheit(t *testing.T) {
	h := newHarness(t)
	t0 := time.Unix(1000, 0)

	h.br.PublishTemperature(30)
	h.ctl.Tick(context.Background(), t0)

	snap := h.ctl.Snapshot()
	assert.InDelta(t, 30.0, snap.TempC, 0.001)
	assert.InDelta(t, 86.0, snap.TempF, 0.001)
}

func TestBeatLatchedAcrossTicks(t *testing.T) {
	h := newHarness(t)
	t0 := time.Unix(1000, 0)
	ctx := context.Background()

	at := t0.Add(-100 * time.Millisecond)
	h.br.PublishBeat(at)
	h.ctl.Tick(ctx, t0)

	snap := h.ctl.Snapshot()
	assert.True(t, snap.BeatDetected)
	assert.Equal(t, at.UnixMilli(), snap.LastBeat.UnixMilli())

	h.ctl.Tick(ctx, t0.Add(5*time.Millisecond))
	snap = h.ctl.Snapshot()
	assert.False(t, snap.BeatDetected, "beat flag consumed by the previous tick")
	assert.Equal(t, at.UnixMilli(), snap.LastBeat.UnixMilli(), "last beat time retained")
}

func TestPPGBatchAppearsInSnapshot(t *testing.T) {
	h := newHarness(t)
	t0 := time.Unix(1000, 0)

	for i := 0; i < h.br.PPGCapacity(); i++ {
		h.br.PushPPG(uint16(30000 + i))
	}
	h.ctl.Tick(context.Background(), t0)

	snap := h.ctl.Snapshot()
	require.Len(t, snap.PPG, h.br.PPGCapacity())
	assert.Equal(t, uint16(30000), snap.PPG[0])
}

func TestHistoryRecordedOnCadence(t *testing.T) {
	h := newHarness(t)
	t0 := time.Unix(1000, 0)
	ctx := context.Background()

	h.br.PublishVitals(97, 70)
	h.ctl.Tick(ctx, t0)
	h.ctl.Tick(ctx, t0.Add(time.Second))
	h.ctl.Tick(ctx, t0.Add(61*time.Second))

	points, err := h.ctl.History(t0.Add(62*time.Second), "all")
	require.NoError(t, err)
	assert.Len(t, points, 2, "one point per minute")

	_, err = h.ctl.History(t0, "2d")
	require.Error(t, err)
	assert.Equal(t, errors.ErrInvalidWindow, errors.CodeOf(err))
}
