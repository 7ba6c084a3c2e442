// Package config holds every tunable threshold of the autonomy core in one
// yaml-loadable struct, with env-var overrides for the knobs operators most
// often turn in the field.
package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// #region types

// Config is the full threshold set for the autonomy core.
type Config struct {
	Autonomy AutonomyConfig `yaml:"autonomy"`
	Decay    DecayConfig    `yaml:"decay"`
	Health   HealthConfig   `yaml:"health"`
}

// AutonomyConfig gates promotion, upgrade, and the confidence policy.
type AutonomyConfig struct {
	// MinSuccessesForEligible is the success count at which a locked class
	// may be promoted to eligible.
	MinSuccessesForEligible int `yaml:"min_successes_for_eligible"`
	// EligibilityScoreForL1 is the minimum derived trust score for an L1
	// upgrade.
	EligibilityScoreForL1 float32 `yaml:"eligibility_score_for_l1"`
	// L1ConfirmDowngradeThreshold is the live-confidence floor below which
	// no class, however trusted, upgrades to L1.
	L1ConfirmDowngradeThreshold float32 `yaml:"l1_confirm_downgrade_threshold"`
	// AutoWriteThreshold and ConfirmThreshold drive the confidence-to-write-
	// mode policy: >= auto, >= confirm, else proposed.
	AutoWriteThreshold float32 `yaml:"auto_write_threshold"`
	ConfirmThreshold   float32 `yaml:"confirm_threshold"`
}

// DecayConfig models "use it or lose it": trust earned through repetition
// silently erodes once the pattern stops recurring.
type DecayConfig struct {
	InactivityThresholdDays int     `yaml:"inactivity_threshold_days"`
	PerDay                  float32 `yaml:"per_day"`
	Cap                     float32 `yaml:"cap"`
}

// HealthConfig drives the healthy → degraded → locked state machine.
type HealthConfig struct {
	ConfusionLockThreshold int     `yaml:"confusion_lock_threshold"`
	DecayDegradeThreshold  float32 `yaml:"decay_degrade_threshold"`
	DecaySevereThreshold   float32 `yaml:"decay_severe_threshold"`
	RevertsForDegrade      int     `yaml:"reverts_for_degrade"`
	MaxRecoveryAttempts    int     `yaml:"max_recovery_attempts"`
}

// #endregion types

// #region defaults

// Default returns the shipped threshold set.
func Default() Config {
	return Config{
		Autonomy: AutonomyConfig{
			MinSuccessesForEligible:     3,
			EligibilityScoreForL1:       0.7,
			L1ConfirmDowngradeThreshold: 0.7,
			AutoWriteThreshold:          0.85,
			ConfirmThreshold:            0.6,
		},
		Decay: DecayConfig{
			InactivityThresholdDays: 14,
			PerDay:                  0.05,
			Cap:                     0.8,
		},
		Health: HealthConfig{
			ConfusionLockThreshold: 3,
			DecayDegradeThreshold:  0.3,
			DecaySevereThreshold:   0.6,
			RevertsForDegrade:      2,
			MaxRecoveryAttempts:    3,
		},
	}
}

// #endregion defaults

// #region load

// Load reads a yaml config file over the defaults, applies env overrides,
// and validates. A missing path returns defaults with overrides applied.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return Config{}, fmt.Errorf("read config %s: %w", path, err)
			}
		} else if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// applyEnv layers PULSE_* env vars over the loaded values.
func (c *Config) applyEnv() {
	envFloat("PULSE_AUTO_WRITE_THRESHOLD", &c.Autonomy.AutoWriteThreshold)
	envFloat("PULSE_CONFIRM_THRESHOLD", &c.Autonomy.ConfirmThreshold)
	envFloat("PULSE_ELIGIBILITY_SCORE_FOR_L1", &c.Autonomy.EligibilityScoreForL1)
	envInt("PULSE_MIN_SUCCESSES_FOR_ELIGIBLE", &c.Autonomy.MinSuccessesForEligible)
	envInt("PULSE_MAX_RECOVERY_ATTEMPTS", &c.Health.MaxRecoveryAttempts)
}

func envFloat(key string, dst *float32) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 32); err == nil {
			*dst = float32(f)
		}
	}
}

func envInt(key string, dst *int) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

// #endregion load

// #region validate

// Validate rejects threshold sets that would let the engine misbehave.
func (c Config) Validate() error {
	a := c.Autonomy
	if a.MinSuccessesForEligible < 1 {
		return fmt.Errorf("config: min_successes_for_eligible must be >= 1, got %d", a.MinSuccessesForEligible)
	}
	for name, v := range map[string]float32{
		"eligibility_score_for_l1":       a.EligibilityScoreForL1,
		"l1_confirm_downgrade_threshold": a.L1ConfirmDowngradeThreshold,
		"auto_write_threshold":           a.AutoWriteThreshold,
		"confirm_threshold":              a.ConfirmThreshold,
	} {
		if v < 0 || v > 1 {
			return fmt.Errorf("config: %s must be in [0,1], got %v", name, v)
		}
	}
	if a.ConfirmThreshold > a.AutoWriteThreshold {
		return fmt.Errorf("config: confirm_threshold %v exceeds auto_write_threshold %v", a.ConfirmThreshold, a.AutoWriteThreshold)
	}
	d := c.Decay
	if d.InactivityThresholdDays < 0 || d.PerDay < 0 || d.Cap < 0 || d.Cap > 1 {
		return fmt.Errorf("config: invalid decay section %+v", d)
	}
	h := c.Health
	if h.ConfusionLockThreshold < 1 {
		return fmt.Errorf("config: confusion_lock_threshold must be >= 1, got %d", h.ConfusionLockThreshold)
	}
	if h.DecaySevereThreshold < h.DecayDegradeThreshold {
		return fmt.Errorf("config: decay_severe_threshold %v below decay_degrade_threshold %v",
			h.DecaySevereThreshold, h.DecayDegradeThreshold)
	}
	if h.MaxRecoveryAttempts < 0 {
		return fmt.Errorf("config: max_recovery_attempts must be >= 0, got %d", h.MaxRecoveryAttempts)
	}
	return nil
}

// #endregion validate
