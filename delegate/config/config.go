// Package config loads the Delegation Core's tunables from YAML, matching
// the teacher's use of gopkg.in/yaml.v3 (a direct dependency; BurntSushi/toml
// is only pulled in transitively by the teacher's lint tooling and is not
// part of its application stack).
package config

import (
	"os"

	"gopkg.in/yaml.v3"
)

// Scheduler holds the DAG Scheduler's tunables (spec.md section 5).
type Scheduler struct {
	MaxConcurrency int `yaml:"maxConcurrency"`
}

// Subtask holds the Sub-Task Runner's tunables (spec.md section 4.3).
type Subtask struct {
	MaxAttempts    int `yaml:"maxAttempts"`
	TimeoutSeconds int `yaml:"timeoutSeconds"`
}

// EventBus holds the quiescence-drain tunables (spec.md section 4.5).
type EventBus struct {
	DrainGraceMillis int `yaml:"drainGraceMillis"`
}

// ModelRateLimit holds the per-sub-agent model call throttle's tunables
// (SPEC_FULL.md section 11's model.RateLimiter row).
type ModelRateLimit struct {
	InitialRPM float64 `yaml:"initialRpm"`
	MaxRPM     float64 `yaml:"maxRpm"`
}

// Config is the Delegation Core's top-level configuration. spec.md's Design
// Notes section 9 flags the retry count and timeout default as
// configuration constants that should not be hard-coded; this struct is
// where they live.
type Config struct {
	Scheduler      Scheduler      `yaml:"scheduler"`
	Subtask        Subtask        `yaml:"subtask"`
	EventBus       EventBus       `yaml:"eventBus"`
	ModelRateLimit ModelRateLimit `yaml:"modelRateLimit"`
}

// Defaults returns the configuration spec.md names as the empirically
// configured defaults: max concurrency 6, five attempts, 120s per-attempt
// timeout, 250ms drain grace window, 60 initial/120 max requests per minute
// per sub-agent model client.
func Defaults() Config {
	return Config{
		Scheduler:      Scheduler{MaxConcurrency: 6},
		Subtask:        Subtask{MaxAttempts: 5, TimeoutSeconds: 120},
		EventBus:       EventBus{DrainGraceMillis: 250},
		ModelRateLimit: ModelRateLimit{InitialRPM: 60, MaxRPM: 120},
	}
}

// Load reads and parses a YAML configuration file at path, filling any
// unset field from Defaults().
func Load(path string) (Config, error) {
	cfg := Defaults()
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, err
	}
	cfg.withDefaults()
	return cfg, nil
}

// withDefaults fills zero-valued fields with Defaults(), so a partial YAML
// document (e.g. one that only overrides maxConcurrency) does not zero out
// the rest.
func (c *Config) withDefaults() {
	d := Defaults()
	if c.Scheduler.MaxConcurrency <= 0 {
		c.Scheduler.MaxConcurrency = d.Scheduler.MaxConcurrency
	}
	if c.Subtask.MaxAttempts <= 0 {
		c.Subtask.MaxAttempts = d.Subtask.MaxAttempts
	}
	if c.Subtask.TimeoutSeconds <= 0 {
		c.Subtask.TimeoutSeconds = d.Subtask.TimeoutSeconds
	}
	if c.EventBus.DrainGraceMillis <= 0 {
		c.EventBus.DrainGraceMillis = d.EventBus.DrainGraceMillis
	}
	if c.ModelRateLimit.InitialRPM <= 0 {
		c.ModelRateLimit.InitialRPM = d.ModelRateLimit.InitialRPM
	}
	if c.ModelRateLimit.MaxRPM <= 0 {
		c.ModelRateLimit.MaxRPM = d.ModelRateLimit.MaxRPM
	}
}
