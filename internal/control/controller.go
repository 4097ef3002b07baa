// Package control runs the decision loop: each tick it reads the latest
// sensor values from the bridge, picks the target ventilation rate,
// drives the breathing cycle and the alarm, and publishes a consistent
// snapshot for the HTTP API.
package control

import (
	"context"
	"math"
	"sync/atomic"
	"time"

	"codeberg.org/veldt/ventctl/internal/alarm"
	"codeberg.org/veldt/ventctl/internal/breath"
	"codeberg.org/veldt/ventctl/internal/bridge"
	"codeberg.org/veldt/ventctl/internal/errors"
	"codeberg.org/veldt/ventctl/internal/history"
	"codeberg.org/veldt/ventctl/internal/logger"
	"codeberg.org/veldt/ventctl/internal/policy"
	"codeberg.org/veldt/ventctl/internal/telemetry"
)

type Config struct {
	Passphrase   string
	MinRate      int
	MaxRate      int
	TickInterval time.Duration
}

// Snapshot is the immutable per-tick view served to HTTP readers.
// Unknown readings carry NaN.
type Snapshot struct {
	Timestamp     time.Time
	SensorOK      bool
	ManualMode    bool
	Running       bool
	TargetRate    int
	CycleDuration time.Duration
	Saturation    float64
	PulseRate     float64
	TempC         float64
	TempF         float64
	AlarmActive   bool
	BeatDetected  bool
	LastBeat      time.Time
	PPG           []uint16 // nil until the first full waveform batch
}

// Controller owns the decision loop. Commands arrive from HTTP handler
// goroutines through atomics and the guarded subcomponents; Tick itself
// runs on a single goroutine.
type Controller struct {
	cfg      Config
	br       *bridge.Bridge
	breather *breath.Controller
	alarms   *alarm.Monitor
	recorder *history.Recorder
	journal  telemetry.Collector
	table    policy.Table

	manualMode atomic.Bool
	manualSat  atomic.Uint64 // float64 bits
	snap       atomic.Pointer[Snapshot]

	// Tick-goroutine state.
	ppg      []uint16
	ppgValid bool
	lastBeat time.Time
}

func New(
	cfg Config,
	br *bridge.Bridge,
	breather *breath.Controller,
	alarms *alarm.Monitor,
	recorder *history.Recorder,
	journal telemetry.Collector,
	table policy.Table,
) *Controller {
	c := &Controller{
		cfg:      cfg,
		br:       br,
		breather: breather,
		alarms:   alarms,
		recorder: recorder,
		journal:  journal,
		table:    table,
		ppg:      make([]uint16, br.PPGCapacity()),
	}
	c.manualSat.Store(math.Float64bits(math.NaN()))
	c.snap.Store(&Snapshot{
		Saturation: math.NaN(),
		PulseRate:  math.NaN(),
		TempC:      math.NaN(),
		TempF:      math.NaN(),
		TargetRate: table.FallbackRate,
	})

	return c
}

// Tick runs one decision iteration at the given instant.
func (c *Controller) Tick(ctx context.Context, now time.Time) {
	saturation := c.br.Saturation()
	pulse := c.br.PulseRate()
	manual := c.manualMode.Load()
	if manual {
		saturation = math.Float64frombits(c.manualSat.Load())
	}

	// In manual mode the rate is recomputed from the substituted
	// saturation; otherwise the acquisition loop's suggestion (or a
	// still-pending operator override) is adopted as-is.
	target := c.br.SuggestedRate()
	if manual {
		target = c.table.RateFor(saturation)
	}

	tempC := c.br.Temperature()
	tempF := tempC*9/5 + 32 // NaN propagates

	beat, at := c.br.ConsumeBeat()
	if beat {
		c.lastBeat = at
	}

	if c.br.CopyPPG(c.ppg) {
		c.ppgValid = true
	}

	c.breather.SetRate(target, now)
	c.breather.Update(now)

	alarmActive := c.alarms.Check(now, tempF, saturation)

	if c.recorder.MaybeAppend(now, history.Point{
		Timestamp:  now,
		Saturation: saturation,
		PulseRate:  pulse,
		TempF:      tempF,
		TargetRate: target,
	}) {
		err := c.journal.Record(ctx, &telemetry.Sample{
			Timestamp:   now,
			Saturation:  saturation,
			PulseRate:   pulse,
			TempF:       tempF,
			TargetRate:  target,
			AlarmActive: alarmActive,
			Running:     c.breather.Running(),
		})
		if err != nil {
			logger.Warn().Err(err).Msg("Failed to journal vitals sample")
		}
	}

	snap := &Snapshot{
		Timestamp:     now,
		SensorOK:      c.br.SensorOK(),
		ManualMode:    manual,
		Running:       c.breather.Running(),
		TargetRate:    target,
		CycleDuration: c.breather.CycleDuration(),
		Saturation:    saturation,
		PulseRate:     pulse,
		TempC:         tempC,
		TempF:         tempF,
		AlarmActive:   alarmActive,
		BeatDetected:  beat,
		LastBeat:      c.lastBeat,
	}
	if c.ppgValid {
		snap.PPG = append([]uint16(nil), c.ppg...)
	}
	c.snap.Store(snap)
}

// Run drives Tick until the context is canceled.
func (c *Controller) Run(ctx context.Context) {
	logger.Info().
		Dur("tick", c.cfg.TickInterval).
		Msg("Control loop started")

	ticker := time.NewTicker(c.cfg.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.Tick(ctx, time.Now())
		}
	}
}

// Command surface, called from HTTP handler goroutines.

// Start begins ventilation.
func (c *Controller) Start(now time.Time) {
	c.breather.Start(now)
	logger.Info().Msg("Ventilation started")
}

// Stop halts ventilation; the next tick parks the actuator.
func (c *Controller) Stop() {
	c.breather.Stop()
	logger.Info().Msg("Ventilation stopped")
}

// SetManualSaturation substitutes an operator-supplied saturation for
// the sensor reading until SetAuto is called.
func (c *Controller) SetManualSaturation(v float64) error {
	if math.IsNaN(v) || v <= 0 || v > 100 {
		return errors.New().WithData(ErrSaturationOutOfRange, v)
	}

	c.manualSat.Store(math.Float64bits(v))
	c.manualMode.Store(true)
	logger.Info().Float64("saturation", v).Msg("Manual saturation engaged")

	return nil
}

// SetAuto returns rate selection to the live sensor reading.
func (c *Controller) SetAuto() {
	c.manualMode.Store(false)
	logger.Info().Msg("Automatic rate selection engaged")
}

// SetTargetRate applies a privileged operator override of the target
// rate. The override is transient: the next acquisition-loop report
// overwrites it.
func (c *Controller) SetTargetRate(passphrase string, rate int) error {
	errFactory := errors.New()

	if passphrase != c.cfg.Passphrase {
		return errFactory.New(ErrBadPassphrase)
	}
	if rate < c.cfg.MinRate || rate > c.cfg.MaxRate {
		return errFactory.WithData(ErrRateOutOfRange, rate)
	}

	c.br.SuggestRate(rate)
	logger.Info().Int("rate", rate).Msg("Target rate override applied")

	return nil
}

// Snapshot returns the most recent per-tick view.
func (c *Controller) Snapshot() *Snapshot {
	return c.snap.Load()
}

// History returns recorded vitals no older than the named window.
func (c *Controller) History(now time.Time, window string) ([]history.Point, error) {
	w, err := history.ParseWindow(window)
	if err != nil {
		return nil, err
	}

	return c.recorder.Since(now, w), nil
}
