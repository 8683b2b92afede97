package release

import (
	"os"
	"strconv"
	"time"
)

// LinkerConfig controls the background release linker.
type LinkerConfig struct {
	PollInterval    time.Duration // How often to poll for unlinked rows. Default 30s.
	BatchSize       int           // Max rows processed per poll. Default 50.
	AttemptBackoff  time.Duration // How long a ledger entry suppresses re-querying. Default 24h.
	SweepInterval   time.Duration // How often stale ledger entries are swept. Default 1h.
	LedgerRetention time.Duration // How long ledger entries are kept at all. Default 30d.
	Enabled         bool          // Whether the linker runs. Default true.
}

// DefaultLinkerConfig returns the default linker configuration.
func DefaultLinkerConfig() *LinkerConfig {
	return &LinkerConfig{
		PollInterval:    30 * time.Second,
		BatchSize:       50,
		AttemptBackoff:  24 * time.Hour,
		SweepInterval:   time.Hour,
		LedgerRetention: 30 * 24 * time.Hour,
		Enabled:         true,
	}
}

// LinkerConfigFromEnv loads config from environment variables.
// APPTRAIL_LINKER_POLL_INTERVAL_SECONDS, APPTRAIL_LINKER_BATCH_SIZE,
// APPTRAIL_LINKER_ATTEMPT_BACKOFF_HOURS, APPTRAIL_LINKER_SWEEP_INTERVAL_MINUTES,
// APPTRAIL_LINKER_LEDGER_RETENTION_DAYS, APPTRAIL_LINKER_ENABLED
func LinkerConfigFromEnv() *LinkerConfig {
	cfg := DefaultLinkerConfig()

	if v := os.Getenv("APPTRAIL_LINKER_POLL_INTERVAL_SECONDS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.PollInterval = time.Duration(n) * time.Second
		}
	}

	if v := os.Getenv("APPTRAIL_LINKER_BATCH_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.BatchSize = n
		}
	}

	if v := os.Getenv("APPTRAIL_LINKER_ATTEMPT_BACKOFF_HOURS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.AttemptBackoff = time.Duration(n) * time.Hour
		}
	}

	if v := os.Getenv("APPTRAIL_LINKER_SWEEP_INTERVAL_MINUTES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.SweepInterval = time.Duration(n) * time.Minute
		}
	}

	if v := os.Getenv("APPTRAIL_LINKER_LEDGER_RETENTION_DAYS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.LedgerRetention = time.Duration(n) * 24 * time.Hour
		}
	}

	if v := os.Getenv("APPTRAIL_LINKER_ENABLED"); v != "" {
		cfg.Enabled, _ = strconv.ParseBool(v)
	}

	return cfg
}
