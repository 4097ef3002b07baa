package config

import (
	"os"
	"strings"

	"codeberg.org/veldt/ventctl/internal/errors"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const DefaultLogLevel = "info"

// Config holds every tunable of the controller. Values come from
// ventctl.toml, VENTCTL_* environment variables and command-line flags,
// flags winning over the file.
type Config struct {
	ListenAddress string `mapstructure:"listen_address"`

	// Loop cadence, milliseconds
	TickInterval  int `mapstructure:"tick_interval"`
	YieldInterval int `mapstructure:"yield_interval"`

	// Actuator sweep
	MinPosition    int     `mapstructure:"min_position"`
	MaxPosition    int     `mapstructure:"max_position"`
	InhaleFraction float64 `mapstructure:"inhale_fraction"`

	// Saturation -> ventilation rate table
	LowSaturation float64 `mapstructure:"low_saturation"`
	MidSaturation float64 `mapstructure:"mid_saturation"`
	LowRate       int     `mapstructure:"low_rate"`
	MidRate       int     `mapstructure:"mid_rate"`
	HighRate      int     `mapstructure:"high_rate"`

	// Alarm thresholds
	AlarmTempF      float64 `mapstructure:"alarm_temp_f"`
	AlarmSaturation float64 `mapstructure:"alarm_saturation"`

	// History ring: capacity in samples, interval in seconds
	HistoryCapacity int `mapstructure:"history_capacity"`
	HistoryInterval int `mapstructure:"history_interval"`

	PPGCapacity int `mapstructure:"ppg_capacity"`

	// Privileged rate override
	Passphrase string `mapstructure:"passphrase"`
	MinRate    int    `mapstructure:"min_rate"`
	MaxRate    int    `mapstructure:"max_rate"`

	// Optional sqlite vitals journal
	Telemetry   bool   `mapstructure:"telemetry"`
	TelemetryDB string `mapstructure:"database"`

	LogLevel string `mapstructure:"log_level"`
	Debug    bool   `mapstructure:"debug"`
	Verbose  bool   `mapstructure:"verbose"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("listen_address", ":8080")
	v.SetDefault("tick_interval", 5)
	v.SetDefault("yield_interval", 2)
	v.SetDefault("min_position", 0)
	v.SetDefault("max_position", 90)
	v.SetDefault("inhale_fraction", 0.4)
	v.SetDefault("low_saturation", 90.0)
	v.SetDefault("mid_saturation", 95.0)
	v.SetDefault("low_rate", 20)
	v.SetDefault("mid_rate", 17)
	v.SetDefault("high_rate", 15)
	v.SetDefault("alarm_temp_f", 80.0)
	v.SetDefault("alarm_saturation", 80.0)
	v.SetDefault("history_capacity", 720)
	v.SetDefault("history_interval", 60)
	v.SetDefault("ppg_capacity", 50)
	v.SetDefault("passphrase", "12345678")
	v.SetDefault("min_rate", 5)
	v.SetDefault("max_rate", 40)
	v.SetDefault("telemetry", false)
	v.SetDefault("database", "/var/lib/ventctl/vitals.db")
	v.SetDefault("log_level", DefaultLogLevel)
	v.SetDefault("debug", false)
	v.SetDefault("verbose", false)
}

// Load reads configuration from all sources and validates it.
func Load() (*Config, error) {
	errFactory := errors.New()

	v := viper.New()
	setDefaults(v)

	fs := pflag.NewFlagSet("ventctl", pflag.ContinueOnError)
	fs.String("config", "", "Path to config file")
	fs.String("listen-address", "", "HTTP listen address")
	fs.String("log-level", "", "Log level (debug, info, warning, error)")
	fs.Bool("debug", false, "Enable debugging mode")
	fs.Bool("verbose", false, "Enable verbose logging")
	fs.Bool("telemetry", false, "Enable the sqlite vitals journal")
	fs.String("database", "", "Path to the vitals journal database")
	if err := fs.Parse(os.Args[1:]); err != nil {
		return nil, errFactory.Wrap(errors.ErrBindFlags, err)
	}

	v.SetEnvPrefix("VENTCTL")
	v.AutomaticEnv()

	configPath := os.Getenv("VENTCTL_CONFIG")
	if flagPath, err := fs.GetString("config"); err == nil && flagPath != "" {
		configPath = flagPath
	}

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, errFactory.Wrap(errors.ErrReadConfig, err)
		}
	} else {
		v.SetConfigName("ventctl")
		v.SetConfigType("toml")
		v.AddConfigPath("/etc")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, errFactory.Wrap(errors.ErrReadConfig, err)
			}
		}
	}

	// Flags set on the command line override file and env values
	fs.Visit(func(f *pflag.Flag) {
		if f.Name == "config" {
			return
		}
		v.Set(strings.ReplaceAll(f.Name, "-", "_"), f.Value.String())
	})

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, errFactory.Wrap(errors.ErrInvalidConfig, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks invariants the rest of the system relies on.
func (c *Config) Validate() error {
	errFactory := errors.New()

	switch c.LogLevel {
	case "debug", "info", "warning", "warn", "error":
	default:
		return errFactory.WithData(errors.ErrInvalidLogLevel, c.LogLevel)
	}

	if c.TickInterval <= 0 || c.YieldInterval <= 0 {
		return errFactory.WithData(errors.ErrInvalidConfig, "loop intervals must be positive")
	}
	if c.MinPosition >= c.MaxPosition {
		return errFactory.WithData(errors.ErrInvalidConfig, "min_position must be below max_position")
	}
	if c.InhaleFraction <= 0 || c.InhaleFraction >= 1 {
		return errFactory.WithData(errors.ErrInvalidConfig, "inhale_fraction must be in (0,1)")
	}
	if c.LowSaturation >= c.MidSaturation {
		return errFactory.WithData(errors.ErrInvalidConfig, "low_saturation must be below mid_saturation")
	}
	if c.LowRate <= 0 || c.MidRate <= 0 || c.HighRate <= 0 {
		return errFactory.WithData(errors.ErrInvalidConfig, "rate table entries must be positive")
	}
	if c.MinRate <= 0 || c.MinRate >= c.MaxRate {
		return errFactory.WithData(errors.ErrInvalidConfig, "rate override bounds are inverted")
	}
	if c.HistoryCapacity <= 0 || c.HistoryInterval <= 0 {
		return errFactory.WithData(errors.ErrInvalidConfig, "history capacity and interval must be positive")
	}
	if c.PPGCapacity <= 0 {
		return errFactory.WithData(errors.ErrInvalidConfig, "ppg_capacity must be positive")
	}
	if c.Telemetry && c.TelemetryDB == "" {
		return errFactory.WithData(errors.ErrMissingConfig, "telemetry enabled without a database path")
	}

	return nil
}
