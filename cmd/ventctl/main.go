package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"codeberg.org/veldt/ventctl/internal/alarm"
	"codeberg.org/veldt/ventctl/internal/breath"
	"codeberg.org/veldt/ventctl/internal/bridge"
	"codeberg.org/veldt/ventctl/internal/config"
	"codeberg.org/veldt/ventctl/internal/control"
	"codeberg.org/veldt/ventctl/internal/device"
	"codeberg.org/veldt/ventctl/internal/history"
	"codeberg.org/veldt/ventctl/internal/httpapi"
	"codeberg.org/veldt/ventctl/internal/logger"
	"codeberg.org/veldt/ventctl/internal/pid"
	"codeberg.org/veldt/ventctl/internal/policy"
	"codeberg.org/veldt/ventctl/internal/sensor"
	"codeberg.org/veldt/ventctl/internal/telemetry"
)

var cfg *config.Config

func init() {
	var err error
	cfg, err = config.Load()
	if err != nil {
		fmt.Printf("failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Init(cfg.Debug, cfg.Verbose, logger.IsService())
	logger.Debug().Msg("Config loaded")
}

func main() {
	if err := pid.Write(); err != nil {
		logger.Fatal().Err(err).Msg("failed to write PID file")
	}
	defer func() {
		if err := pid.Remove(); err != nil {
			logger.Error().Err(err).Msg("failed to remove PID file")
		}
	}()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go handleSignals(cancel)

	table := policy.Table{
		LowThreshold: cfg.LowSaturation,
		MidThreshold: cfg.MidSaturation,
		LowRate:      cfg.LowRate,
		MidRate:      cfg.MidRate,
		HighRate:     cfg.HighRate,
		FallbackRate: cfg.HighRate,
	}

	br := bridge.New(cfg.PPGCapacity, table.FallbackRate)

	// Simulated transports; real sensor and actuator drivers slot in
	// behind the same interfaces.
	oximeter := device.NewSimOximeter(97, 70)
	probe := device.NewSimThermometer(36.5)
	actuator := device.NewSimActuator()
	buzzer := device.NewSimBuzzer()

	acquirer := sensor.New(sensorConfig(cfg), oximeter, probe, br, table)

	breather := breath.New(actuator, cfg.MinPosition, cfg.MaxPosition, cfg.InhaleFraction, table.FallbackRate)
	alarms := alarm.New(buzzer, cfg.AlarmTempF, cfg.AlarmSaturation)
	recorder := history.NewRecorder(cfg.HistoryCapacity, time.Duration(cfg.HistoryInterval)*time.Second)

	journal, err := telemetry.NewService(telemetry.Config{
		Enabled: cfg.Telemetry,
		DBPath:  cfg.TelemetryDB,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to open vitals journal")
	}

	ctl := control.New(control.Config{
		Passphrase:   cfg.Passphrase,
		MinRate:      cfg.MinRate,
		MaxRate:      cfg.MaxRate,
		TickInterval: time.Duration(cfg.TickInterval) * time.Millisecond,
	}, br, breather, alarms, recorder, journal, table)

	srv := httpapi.NewServer(cfg.ListenAddress, ctl)

	go acquirer.Run(ctx)
	go ctl.Run(ctx)

	go func() {
		<-ctx.Done()
		if err := srv.Shutdown(context.Background()); err != nil {
			logger.Error().Err(err).Msg("HTTP shutdown failed")
		}
	}()

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error().Err(err).Msg("HTTP server failed")
	}
	cancel()

	cleanup(breather, buzzer, journal)
}

func sensorConfig(cfg *config.Config) sensor.Config {
	sc := sensor.DefaultConfig()
	sc.YieldInterval = time.Duration(cfg.YieldInterval) * time.Millisecond

	return sc
}

func handleSignals(cancel context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	<-sigs
	logger.Info().Msg("Received termination signal.")
	cancel()
}

// cleanup parks the actuator at the minimum position and silences the
// buzzer before exit.
func cleanup(breather *breath.Controller, buzzer device.Buzzer, journal telemetry.Collector) {
	breather.Stop()
	breather.Update(time.Now())
	buzzer.Set(false)

	if err := journal.Close(); err != nil {
		logger.Error().Err(err).Msg("failed to close vitals journal")
	}
	logger.Info().Msg("Shutdown complete")
}
