// Package config loads the command line configuration from flags, the
// environment, an optional .env file and an optional YAML file.
//
// Precedence, highest first: flags, LARGEPOOL_* environment variables
// (including those set by the .env file), the YAML file, defaults.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/stat-ml/ncvis/internal/logger"
	"github.com/stat-ml/ncvis/pool"
)

// EnvPrefix prefixes every environment variable read by Load.
const EnvPrefix = "LARGEPOOL"

// Config holds the settings shared by every subcommand.
type Config struct {
	Workers      int           `mapstructure:"workers"`
	Poll         time.Duration `mapstructure:"poll"`
	StallTimeout time.Duration `mapstructure:"stall-timeout"`
	NoProgress   bool          `mapstructure:"no-progress"`
	LogProgress  bool          `mapstructure:"log-progress"`
	Message      string        `mapstructure:"message"`
	Rate         float64       `mapstructure:"rate"`
	Burst        int           `mapstructure:"burst"`
	Retries      int           `mapstructure:"retries"`
	RetryDelay   time.Duration `mapstructure:"retry-delay"`
	FailFast     bool          `mapstructure:"fail-fast"`
	PinCPU       bool          `mapstructure:"pin-cpu"`
	Metrics      bool          `mapstructure:"metrics"`

	Log logger.Config `mapstructure:"log"`
}

// ApplyDefaults fills zero fields.
func (c *Config) ApplyDefaults() {
	if c.Poll == 0 {
		c.Poll = pool.DefaultPollInterval
	}
	if c.Message == "" {
		c.Message = pool.DefaultMessage
	}
	if c.Rate > 0 && c.Burst == 0 {
		c.Burst = 1
	}
	c.Log.ApplyDefaults()
}

// Validate rejects settings the pool cannot honour.
func (c *Config) Validate() error {
	var errs []error
	if c.Workers < 0 {
		errs = append(errs, fmt.Errorf("workers must not be negative (got: %d)", c.Workers))
	}
	if c.Poll <= 0 {
		errs = append(errs, fmt.Errorf("poll must be positive (got: %s)", c.Poll))
	}
	if c.StallTimeout < 0 {
		errs = append(errs, fmt.Errorf("stall-timeout must not be negative (got: %s)", c.StallTimeout))
	}
	if c.Rate < 0 || c.Burst < 0 {
		errs = append(errs, fmt.Errorf("rate and burst must not be negative (got: %g/%d)", c.Rate, c.Burst))
	}
	if c.Retries < 0 {
		errs = append(errs, fmt.Errorf("retries must not be negative (got: %d)", c.Retries))
	}
	if err := c.Log.Validate(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// PoolOptions translates the configuration into pool options.
func (c *Config) PoolOptions(log zerolog.Logger, metrics *pool.Metrics) []pool.Option {
	opts := []pool.Option{
		pool.WithPollInterval(c.Poll),
		pool.WithStallTimeout(c.StallTimeout),
		pool.WithMessage(c.Message),
		pool.WithProgress(!c.NoProgress),
		pool.WithLogger(log),
	}
	if c.Workers > 0 {
		opts = append(opts, pool.WithWorkerCount(c.Workers))
	}
	if c.LogProgress {
		opts = append(opts, pool.WithLogProgress())
	}
	if c.Rate > 0 {
		opts = append(opts, pool.WithRateLimit(c.Rate, c.Burst))
	}
	if c.Retries > 0 {
		opts = append(opts, pool.WithRetryPolicy(c.Retries+1, c.RetryDelay))
	}
	if c.FailFast {
		opts = append(opts, pool.WithFailFast())
	}
	if c.PinCPU {
		opts = append(opts, pool.WithCPUAffinity())
	}
	if metrics != nil {
		opts = append(opts, pool.WithMetrics(metrics))
	}
	return opts
}

// RegisterFlags adds the global flags to fs.
func RegisterFlags(fs *pflag.FlagSet) {
	fs.IntP("workers", "w", 0, "number of workers (0 = GOMAXPROCS)")
	fs.Duration("poll", pool.DefaultPollInterval, "progress poll interval")
	fs.Duration("stall-timeout", 0, "abort when no task completes for this long (0 = wait forever)")
	fs.Bool("no-progress", false, "disable the progress indicator")
	fs.Bool("log-progress", false, "report progress as log lines instead of a bar")
	fs.String("message", pool.DefaultMessage, "label printed before the progress bar")
	fs.Float64("rate", 0, "max task attempts per second (0 = unlimited)")
	fs.Int("burst", 1, "rate limiter burst")
	fs.Int("retries", 0, "retries per failed task")
	fs.Duration("retry-delay", 100*time.Millisecond, "delay before the first retry")
	fs.Bool("fail-fast", false, "stop on the first failed task")
	fs.Bool("pin-cpu", false, "pin workers to CPU cores")
	fs.Bool("metrics", false, "print Prometheus metrics on exit")
	fs.String("log-level", "info", "log level (trace, debug, info, warn, error, disabled)")
	fs.String("log-format", "console", "log format (console, json)")
	fs.String("log-output", "stderr", "log destination (stderr, stdout or a file path)")
	fs.StringP("config", "c", "", "YAML configuration file")
	fs.String("env-file", ".env", "dotenv file loaded when present")
}

// flagKeys maps flags whose config key differs from the flag name.
var flagKeys = map[string]string{
	"log-level":  "log.level",
	"log-format": "log.format",
	"log-output": "log.output",
}

// Load resolves the configuration for flags already parsed into fs.
func Load(fs *pflag.FlagSet) (*Config, error) {
	if err := loadEnvFile(fs); err != nil {
		return nil, err
	}

	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()

	var bindErr error
	fs.VisitAll(func(f *pflag.Flag) {
		if f.Name == "config" || f.Name == "env-file" {
			return
		}
		key := f.Name
		if k, ok := flagKeys[f.Name]; ok {
			key = k
		}
		bindErr = errors.Join(bindErr, v.BindPFlag(key, f))
	})
	if bindErr != nil {
		return nil, fmt.Errorf("bind flags: %w", bindErr)
	}

	if path, _ := fs.GetString("config"); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

func loadEnvFile(fs *pflag.FlagSet) error {
	path, _ := fs.GetString("env-file")
	if path == "" {
		return nil
	}
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) && !fs.Changed("env-file") {
			return nil
		}
		return fmt.Errorf("env file %s: %w", path, err)
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("load env file %s: %w", path, err)
	}
	return nil
}
