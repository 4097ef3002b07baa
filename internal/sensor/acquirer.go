// Package sensor runs the acquisition loop: it services the pulse
// oximeter and the temperature probe on their own cadences and publishes
// results into the telemetry bridge, independently of the control loop.
package sensor

import (
	"context"
	"time"

	"codeberg.org/veldt/ventctl/internal/bridge"
	"codeberg.org/veldt/ventctl/internal/device"
	"codeberg.org/veldt/ventctl/internal/logger"
	"codeberg.org/veldt/ventctl/internal/policy"
)

// Readings outside this range are obvious probe faults and are dropped.
const (
	minPlausibleCelsius = -100.0
	maxPlausibleCelsius = 150.0
)

// Config holds the per-subtask cadences of the acquisition loop.
type Config struct {
	TempRequestInterval time.Duration // between conversion requests
	TempConversionWait  time.Duration // request-to-read settle time
	PPGSampleInterval   time.Duration // raw waveform sampling
	ReportInterval      time.Duration // saturation/pulse publish
	RetryInterval       time.Duration // sensor re-init backoff
	YieldInterval       time.Duration // loop yield between iterations
}

func DefaultConfig() Config {
	return Config{
		TempRequestInterval: 1000 * time.Millisecond,
		TempConversionWait:  400 * time.Millisecond,
		PPGSampleInterval:   20 * time.Millisecond,
		ReportInterval:      100 * time.Millisecond,
		RetryInterval:       5000 * time.Millisecond,
		YieldInterval:       2 * time.Millisecond,
	}
}

// Acquirer owns the sensors and is the single writer of the bridge.
type Acquirer struct {
	cfg      Config
	oximeter device.Oximeter
	probe    device.Thermometer
	br       *bridge.Bridge
	table    policy.Table

	sensorOK        bool
	tempRequested   bool
	lastTempRequest time.Time
	lastPPGSample   time.Time
	lastReport      time.Time
	lastRetry       time.Time
}

func New(cfg Config, oximeter device.Oximeter, probe device.Thermometer, br *bridge.Bridge, table policy.Table) *Acquirer {
	a := &Acquirer{
		cfg:      cfg,
		oximeter: oximeter,
		probe:    probe,
		br:       br,
		table:    table,
	}
	oximeter.SetBeatHandler(br.PublishBeat)

	return a
}

// Init performs the first oximeter bring-up. Failure is non-fatal: the
// loop keeps retrying on the configured backoff.
func (a *Acquirer) Init(now time.Time) {
	if err := a.oximeter.Begin(); err != nil {
		logger.Warn().Err(err).Msg("Pulse oximeter not available, will retry")
		a.lastRetry = now
	} else {
		a.sensorOK = true
	}
	a.br.PublishSensorOK(a.sensorOK)
}

// Step runs one acquisition iteration at the given instant.
func (a *Acquirer) Step(now time.Time) {
	a.stepTemperature(now)

	if a.sensorOK {
		a.stepOximeter(now)
	} else {
		a.stepRetry(now)
	}
}

// Run drives Step until the context is canceled, yielding between
// iterations so the loop never starves the scheduler.
func (a *Acquirer) Run(ctx context.Context) {
	a.Init(time.Now())
	logger.Info().
		Bool("sensor_ok", a.sensorOK).
		Dur("yield", a.cfg.YieldInterval).
		Msg("Acquisition loop started")

	ticker := time.NewTicker(a.cfg.YieldInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			a.Step(time.Now())
		}
	}
}

// stepTemperature drives the non-blocking request/wait/read conversion
// cycle. Implausible readings are discarded silently, retaining the
// previous published value.
func (a *Acquirer) stepTemperature(now time.Time) {
	if !a.tempRequested {
		if a.lastTempRequest.IsZero() || now.Sub(a.lastTempRequest) >= a.cfg.TempRequestInterval {
			a.lastTempRequest = now
			a.probe.RequestConversion(now)
			a.tempRequested = true
		}

		return
	}

	if now.Sub(a.lastTempRequest) >= a.cfg.TempConversionWait {
		celsius := a.probe.ReadCelsius(now)
		if celsius > minPlausibleCelsius && celsius < maxPlausibleCelsius {
			a.br.PublishTemperature(celsius)
		}
		a.tempRequested = false
	}
}

func (a *Acquirer) stepOximeter(now time.Time) {
	a.oximeter.Update(now)

	if a.lastPPGSample.IsZero() || now.Sub(a.lastPPGSample) >= a.cfg.PPGSampleInterval {
		a.lastPPGSample = now
		a.br.PushPPG(a.oximeter.RawSample())
	}

	if now.Sub(a.lastReport) > a.cfg.ReportInterval {
		a.lastReport = now
		saturation := a.oximeter.Saturation()
		// The sensor reports 0 until it has locked on; publishing
		// only positive values preserves last-known-good readings.
		if saturation > 0.01 {
			a.br.PublishVitals(saturation, a.oximeter.PulseRate())
			a.br.SuggestRate(a.table.RateFor(saturation))
		}
	}
}

func (a *Acquirer) stepRetry(now time.Time) {
	if !a.lastRetry.IsZero() && now.Sub(a.lastRetry) <= a.cfg.RetryInterval {
		return
	}
	a.lastRetry = now

	logger.Debug().Msg("Retrying pulse oximeter init")
	if err := a.oximeter.Begin(); err != nil {
		logger.Debug().Err(err).Msg("Pulse oximeter init failed")
		return
	}

	a.sensorOK = true
	a.br.PublishSensorOK(true)
	logger.Info().Msg("Pulse oximeter online")
}
