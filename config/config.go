// Package config loads the kernel's runtime configuration: retry defaults,
// CRV confidence floor, degradation thresholds, approval token TTL, outbox
// GC window, and reflexion bounds (spec.md AMBIENT STACK / "Configuration").
// Decoding follows the pack's layered-override convention (defaults, then a
// YAML file, then environment variables), adapted from
// itsneelabh-gomind/core/config.go's three-layer priority to a YAML file
// instead of functional options as the middle layer.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the kernel's top-level configuration.
type Config struct {
	Retry       RetryConfig       `yaml:"retry"`
	CRV         CRVConfig         `yaml:"crv"`
	Degradation DegradationConfig `yaml:"degradation"`
	Approval    ApprovalConfig    `yaml:"approval"`
	Outbox      OutboxConfig      `yaml:"outbox"`
	Reflexion   ReflexionConfig   `yaml:"reflexion"`
}

// RetryConfig mirrors reliability.RetryConfig's tunables.
type RetryConfig struct {
	MaxAttempts  int           `yaml:"max_attempts" env:"KERNEL_RETRY_MAX_ATTEMPTS"`
	InitialDelay time.Duration `yaml:"initial_delay" env:"KERNEL_RETRY_INITIAL_DELAY"`
	MaxDelay     time.Duration `yaml:"max_delay" env:"KERNEL_RETRY_MAX_DELAY"`
	Multiplier   float64       `yaml:"multiplier" env:"KERNEL_RETRY_MULTIPLIER"`
	JitterFactor float64       `yaml:"jitter_factor" env:"KERNEL_RETRY_JITTER_FACTOR"`
}

// CRVConfig carries the confidence floor below which the gate must block
// regardless of an individual validator's verdict (spec.md §4.3).
type CRVConfig struct {
	RequiredConfidence float64 `yaml:"required_confidence" env:"KERNEL_CRV_REQUIRED_CONFIDENCE"`
}

// DegradationConfig carries the healthy-service-ratio thresholds that
// separate FULL/PARTIAL/MINIMAL/EMERGENCY (spec.md §4.6).
type DegradationConfig struct {
	PartialThreshold   float64 `yaml:"partial_threshold" env:"KERNEL_DEGRADATION_PARTIAL"`
	MinimalThreshold   float64 `yaml:"minimal_threshold" env:"KERNEL_DEGRADATION_MINIMAL"`
	EmergencyThreshold float64 `yaml:"emergency_threshold" env:"KERNEL_DEGRADATION_EMERGENCY"`
}

// ApprovalConfig carries the human-approval token lifetime (spec.md §4.4).
type ApprovalConfig struct {
	TokenTTL time.Duration `yaml:"token_ttl" env:"KERNEL_APPROVAL_TOKEN_TTL"`
}

// OutboxConfig carries the window after which COMMITTED/FAILED outbox
// entries are eligible for garbage collection (spec.md §4.1).
type OutboxConfig struct {
	GCWindow time.Duration `yaml:"gc_window" env:"KERNEL_OUTBOX_GC_WINDOW"`
}

// ReflexionConfig carries C8's bounded-retry and confidence-floor tunables
// (spec.md §4.8).
type ReflexionConfig struct {
	MaxFixAttempts int     `yaml:"max_fix_attempts" env:"KERNEL_REFLEXION_MAX_FIX_ATTEMPTS"`
	MinConfidence  float64 `yaml:"min_confidence" env:"KERNEL_REFLEXION_MIN_CONFIDENCE"`
}

// Default returns the configuration spec.md's components fall back to
// absent a file or environment override.
func Default() Config {
	return Config{
		Retry: RetryConfig{
			MaxAttempts:  3,
			InitialDelay: time.Second,
			MaxDelay:     30 * time.Second,
			Multiplier:   2.0,
			JitterFactor: 0.1,
		},
		CRV: CRVConfig{RequiredConfidence: 0.7},
		Degradation: DegradationConfig{
			PartialThreshold:   0.9,
			MinimalThreshold:   0.7,
			EmergencyThreshold: 0.4,
		},
		Approval:  ApprovalConfig{TokenTTL: time.Hour},
		Outbox:    OutboxConfig{GCWindow: 24 * time.Hour},
		Reflexion: ReflexionConfig{MaxFixAttempts: 3, MinConfidence: 0.6},
	}
}

// Load reads Config from path if non-empty, layering environment variable
// overrides on top, and falling back to Default for anything left unset.
// A missing path is not an error: defaults (plus any env overrides) apply.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return Config{}, fmt.Errorf("config: read %s: %w", path, err)
			}
		} else if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}
	applyEnvOverrides(&cfg)
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	overrideInt("KERNEL_RETRY_MAX_ATTEMPTS", &cfg.Retry.MaxAttempts)
	overrideDuration("KERNEL_RETRY_INITIAL_DELAY", &cfg.Retry.InitialDelay)
	overrideDuration("KERNEL_RETRY_MAX_DELAY", &cfg.Retry.MaxDelay)
	overrideFloat("KERNEL_RETRY_MULTIPLIER", &cfg.Retry.Multiplier)
	overrideFloat("KERNEL_RETRY_JITTER_FACTOR", &cfg.Retry.JitterFactor)
	overrideFloat("KERNEL_CRV_REQUIRED_CONFIDENCE", &cfg.CRV.RequiredConfidence)
	overrideFloat("KERNEL_DEGRADATION_PARTIAL", &cfg.Degradation.PartialThreshold)
	overrideFloat("KERNEL_DEGRADATION_MINIMAL", &cfg.Degradation.MinimalThreshold)
	overrideFloat("KERNEL_DEGRADATION_EMERGENCY", &cfg.Degradation.EmergencyThreshold)
	overrideDuration("KERNEL_APPROVAL_TOKEN_TTL", &cfg.Approval.TokenTTL)
	overrideDuration("KERNEL_OUTBOX_GC_WINDOW", &cfg.Outbox.GCWindow)
	overrideInt("KERNEL_REFLEXION_MAX_FIX_ATTEMPTS", &cfg.Reflexion.MaxFixAttempts)
	overrideFloat("KERNEL_REFLEXION_MIN_CONFIDENCE", &cfg.Reflexion.MinConfidence)
}

func overrideInt(key string, dst *int) {
	v, ok := os.LookupEnv(key)
	if !ok {
		return
	}
	if n, err := strconv.Atoi(v); err == nil {
		*dst = n
	}
}

func overrideFloat(key string, dst *float64) {
	v, ok := os.LookupEnv(key)
	if !ok {
		return
	}
	if f, err := strconv.ParseFloat(v, 64); err == nil {
		*dst = f
	}
}

func overrideDuration(key string, dst *time.Duration) {
	v, ok := os.LookupEnv(key)
	if !ok {
		return
	}
	if d, err := time.ParseDuration(v); err == nil {
		*dst = d
	}
}
