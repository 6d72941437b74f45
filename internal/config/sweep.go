package config

import "time"

// SweepConfig controls the abandoned-checkout sweeper.  Schedule uses the
// robfig/cron spec syntax ("@every 1m", "*/5 * * * *").  MaxAge is how old a
// pending PayPal order must be before it is deleted.
type SweepConfig struct {
	Enabled  bool
	Schedule string
	MaxAge   time.Duration
}

func LoadSweepConfig() SweepConfig {
	cfg := SweepConfig{
		Enabled:  envBool("SWEEP_ENABLED", true),
		Schedule: envStr("SWEEP_SCHEDULE", "@every 1m"),
		MaxAge:   envDur("SWEEP_MAX_AGE", time.Minute),
	}
	if cfg.MaxAge <= 0 {
		cfg.MaxAge = time.Minute
	}
	return cfg
}
