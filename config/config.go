package config

import (
	"fmt"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/pingcap/errors"
)

// Duration is a toml-friendly time.Duration accepting "4s"-style strings.
type Duration struct {
	time.Duration
}

func NewDuration(d time.Duration) Duration {
	return Duration{Duration: d}
}

func (d *Duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return errors.Trace(err)
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// Config holds the tuning knobs of the bulk engine. The adaptive defaults are
// not contractual: they were picked so that an average generation finishes
// near, but under, the store's transaction duration ceiling. Override them
// per operation when the workload is unusual.
type Config struct {
	LogLevel string `toml:"log-level"`

	// InitStep is the chunk size the first generation attempts.
	InitStep int `toml:"init-step"`
	// MaxStep caps adaptive chunk growth.
	MaxStep int `toml:"max-step"`
	// TargetGenerationTime is the duration budget one generation aims for.
	// Generations finishing in under half of it let the step grow; the
	// store's own ceiling is a little above it.
	TargetGenerationTime Duration `toml:"target-generation-time"`
	// CooldownFloor is the smallest non-zero pause inserted between
	// generations after a failure.
	CooldownFloor Duration `toml:"cooldown-floor"`
	// CooldownCeiling bounds the exponential cooldown growth.
	CooldownCeiling Duration `toml:"cooldown-ceiling"`
	// MaxRetries bounds internal retries of a single generation, and also
	// the consecutive shrink cycles the controller spends on one chunk
	// before giving up. Zero means no bound.
	MaxRetries int `toml:"max-retries"`
	// MaxRetryTime bounds the elapsed time spent retrying one generation.
	// Zero means no bound.
	MaxRetryTime Duration `toml:"max-retry-time"`
	// ExportRate throttles streaming export, in bytes per second.
	// Zero disables throttling.
	ExportRate int64 `toml:"export-rate"`
}

func NewDefaultConfig() *Config {
	return &Config{
		LogLevel:             "info",
		InitStep:             128,
		MaxStep:              10000,
		TargetGenerationTime: NewDuration(4 * time.Second),
		CooldownFloor:        NewDuration(10 * time.Millisecond),
		CooldownCeiling:      NewDuration(5 * time.Second),
		MaxRetries:           10,
		MaxRetryTime:         NewDuration(time.Minute),
	}
}

func (c *Config) Validate() error {
	if c.InitStep < 1 {
		return fmt.Errorf("init-step must be at least 1, got %d", c.InitStep)
	}
	if c.MaxStep < c.InitStep {
		return fmt.Errorf("max-step (%d) must not be below init-step (%d)", c.MaxStep, c.InitStep)
	}
	if c.TargetGenerationTime.Duration <= 0 {
		return fmt.Errorf("target-generation-time must be positive")
	}
	if c.CooldownFloor.Duration < 0 || c.CooldownCeiling.Duration < c.CooldownFloor.Duration {
		return fmt.Errorf("cooldown bounds invalid: floor %v, ceiling %v", c.CooldownFloor, c.CooldownCeiling)
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("max-retries must not be negative")
	}
	if c.ExportRate < 0 {
		return fmt.Errorf("export-rate must not be negative")
	}
	return nil
}

// Load reads a toml file over the defaults.
func Load(path string) (*Config, error) {
	c := NewDefaultConfig()
	if _, err := toml.DecodeFile(path, c); err != nil {
		return nil, errors.Annotatef(err, "load config %s", path)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}
