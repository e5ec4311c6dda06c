// Package config loads the tpool command configuration from YAML.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/adrg/xdg"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	yamlv3 "gopkg.in/yaml.v3"

	"github.com/tahsin716/tpool"
	"github.com/tahsin716/tpool/errsink"
	"github.com/tahsin716/tpool/internal/logging"
)

const AppName = "tpool"

// Config holds the settings of a `tpool run` invocation. Durations are
// kept as strings ("200ms", "2s") so the file round-trips unchanged.
type Config struct {
	Concurrency  int    `koanf:"concurrency" yaml:"concurrency"`       // Workers to spawn.
	Runs         int    `koanf:"runs" yaml:"runs"`                     // Tasks to push.
	BaseDelay    string `koanf:"base_delay" yaml:"base_delay"`         // Sleep of the first task.
	Step         string `koanf:"step" yaml:"step"`                     // Extra sleep per task index.
	Drain        bool   `koanf:"drain" yaml:"drain"`                   // Wait for every task before Stop.
	FailEvery    int    `koanf:"fail_every" yaml:"fail_every"`         // Every n-th task returns an error; 0 disables.
	PollInterval string `koanf:"poll_interval" yaml:"poll_interval"`   // Idle worker wait between stop checks.
	StopMode     string `koanf:"stop_mode" yaml:"stop_mode"`           // "poll" or "interrupt".
	ErrorMode    string `koanf:"error_mode" yaml:"error_mode"`         // "collect", "fail-fast" or "ignore".
	LockOSThread bool   `koanf:"lock_os_thread" yaml:"lock_os_thread"` // Pin workers to OS threads.
	LogLevel     string `koanf:"log_level" yaml:"log_level"`           // debug, info, warn, error.
	LogJSON      bool   `koanf:"log_json" yaml:"log_json"`             // JSON log output.
	MetricsAddr  string `koanf:"metrics_addr" yaml:"metrics_addr"`     // Serve /metrics here when set.
}

// Default returns the default configuration, matching a run of 20 tasks
// on 5 workers with delays of 2s + i*100ms.
func Default() *Config {
	return &Config{
		Concurrency:  5,
		Runs:         20,
		BaseDelay:    "2s",
		Step:         "100ms",
		Drain:        false,
		PollInterval: tpool.DefaultPollInterval.String(),
		StopMode:     tpool.PollStop.String(),
		ErrorMode:    errsink.CollectAll.String(),
		LogLevel:     "info",
	}
}

// DefaultPath returns the config file location under the XDG config home.
func DefaultPath() string {
	return filepath.Join(xdg.ConfigHome, AppName, "config.yaml")
}

// Load reads the configuration at path on top of the defaults. An empty
// path means DefaultPath; a missing default file yields the defaults, a
// missing explicit file is an error.
func Load(path string) (*Config, error) {
	cfg := Default()

	cfgPath := path
	if cfgPath == "" {
		cfgPath = DefaultPath()
		if _, err := os.Stat(cfgPath); errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
	}

	k := koanf.New(".")
	if err := k.Load(file.Provider(cfgPath), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("failed to load config file: %w", err)
	}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", cfgPath, err)
	}
	return cfg, nil
}

// Validate checks every field that has a restricted domain.
func (c *Config) Validate() error {
	if c.Concurrency < 0 {
		return errors.New("concurrency must be >= 0")
	}
	if c.Runs < 0 {
		return errors.New("runs must be >= 0")
	}
	if c.FailEvery < 0 {
		return errors.New("fail_every must be >= 0")
	}
	if _, _, err := c.Delays(); err != nil {
		return err
	}
	if _, err := c.pollInterval(); err != nil {
		return err
	}
	if _, err := tpool.ParseStopMode(c.StopMode); err != nil {
		return err
	}
	if _, err := errsink.ParseErrorMode(c.ErrorMode); err != nil {
		return err
	}
	if _, err := logging.ParseLevel(c.LogLevel); err != nil {
		return err
	}
	return nil
}

// Delays returns the parsed base delay and per-task step.
func (c *Config) Delays() (base, step time.Duration, err error) {
	if base, err = time.ParseDuration(c.BaseDelay); err != nil {
		return 0, 0, fmt.Errorf("base_delay: %w", err)
	}
	if step, err = time.ParseDuration(c.Step); err != nil {
		return 0, 0, fmt.Errorf("step: %w", err)
	}
	if base < 0 || step < 0 {
		return 0, 0, errors.New("base_delay and step must be >= 0")
	}
	return base, step, nil
}

func (c *Config) pollInterval() (time.Duration, error) {
	d, err := time.ParseDuration(c.PollInterval)
	if err != nil {
		return 0, fmt.Errorf("poll_interval: %w", err)
	}
	if d <= 0 {
		return 0, errors.New("poll_interval must be > 0")
	}
	return d, nil
}

// PoolOptions translates the pool-related settings into tpool options.
func (c *Config) PoolOptions() ([]tpool.Option, error) {
	poll, err := c.pollInterval()
	if err != nil {
		return nil, err
	}
	mode, err := tpool.ParseStopMode(c.StopMode)
	if err != nil {
		return nil, err
	}

	return []tpool.Option{
		tpool.WithPollInterval(poll),
		tpool.WithStopMode(mode),
		tpool.WithLockOSThread(c.LockOSThread),
	}, nil
}

// Marshal renders the configuration as YAML.
func (c *Config) Marshal() ([]byte, error) {
	return yamlv3.Marshal(c)
}

const header = `# tpool configuration file.
# Durations use Go syntax: "200ms", "2s", "1m".
# stop_mode: "poll" re-checks the stop flag every poll_interval,
#            "interrupt" wakes idle workers immediately.
# error_mode: "collect", "fail-fast" (first failure stops the pool) or "ignore".
`

// WriteDefault writes the default configuration to path. An existing file
// is left alone unless force is set.
func WriteDefault(path string, force bool) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config file %s already exists", path)
		}
	}

	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	body, err := Default().Marshal()
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}

	if err := os.WriteFile(path, append([]byte(header), body...), 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}
