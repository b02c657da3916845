package config

import (
	"fmt"
)

// Validate performs business-rule validation on the loaded configuration.
// Load calls it automatically.
func (c *Config) Validate() error {
	if c.Library.MaxBooksPerUser <= 0 {
		return fmt.Errorf("library.max_books_per_user must be > 0 (got %d)", c.Library.MaxBooksPerUser)
	}
	if c.Library.LoanPeriod <= 0 {
		return fmt.Errorf("library.loan_period must be > 0 (got %v)", c.Library.LoanPeriod)
	}
	if c.Library.OverdueAfter <= 0 {
		return fmt.Errorf("library.overdue_after_days must be > 0 (got %d)", c.Library.OverdueAfter)
	}

	if err := c.Store.validate(); err != nil {
		return fmt.Errorf("store: %w", err)
	}

	if c.Events.Capacity <= 0 {
		return fmt.Errorf("events.capacity must be > 0 (got %d)", c.Events.Capacity)
	}
	if c.Search.Timeout <= 0 {
		return fmt.Errorf("search.timeout must be > 0 (got %v)", c.Search.Timeout)
	}

	if c.Retry.MaxAttempts <= 0 {
		return fmt.Errorf("retry.max_attempts must be > 0 (got %d)", c.Retry.MaxAttempts)
	}
	if c.Retry.JitterFactor < 0 || c.Retry.JitterFactor > 1 {
		return fmt.Errorf("retry.jitter_factor must be between 0.0 and 1.0 (got %v)", c.Retry.JitterFactor)
	}

	return nil
}

func (s *StoreConfig) validate() error {
	switch s.Engine {
	case "memory":
		// no DSN needed
	case "postgres":
		if s.DSN == "" {
			return fmt.Errorf("dsn is required for the postgres engine")
		}
		if s.TableName == "" {
			return fmt.Errorf("table_name must not be empty")
		}
	default:
		return fmt.Errorf("engine must be memory or postgres (got %q)", s.Engine)
	}

	if s.BaseLatency < 0 {
		return fmt.Errorf("base_latency must not be negative (got %v)", s.BaseLatency)
	}
	if s.DegradedSaveProbability < 0 || s.DegradedSaveProbability > 1 {
		return fmt.Errorf("degraded_save_probability must be between 0.0 and 1.0 (got %v)", s.DegradedSaveProbability)
	}
	if s.FailureProbability < 0 || s.FailureProbability > 1 {
		return fmt.Errorf("failure_probability must be between 0.0 and 1.0 (got %v)", s.FailureProbability)
	}

	return nil
}
