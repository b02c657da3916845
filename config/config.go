package config

import (
	"time"
)

// Config is the root application configuration.
type Config struct {
	Library LibraryConfig `yaml:"library"`
	Store   StoreConfig   `yaml:"store"`
	Events  EventsConfig  `yaml:"events"`
	Search  SearchConfig  `yaml:"search"`
	Retry   RetryConfig   `yaml:"retry"`
}

// LibraryConfig holds the lending rules.
type LibraryConfig struct {
	Name            string        `yaml:"name"               env:"LIBRARY_NAME"                env-default:"City Library"`
	MaxBooksPerUser int           `yaml:"max_books_per_user" env:"LIBRARY_MAX_BOOKS_PER_USER"  env-default:"5"`
	LoanPeriod      time.Duration `yaml:"loan_period"        env:"LIBRARY_LOAN_PERIOD"         env-default:"720h"`
	OverdueAfter    int           `yaml:"overdue_after_days" env:"LIBRARY_OVERDUE_AFTER_DAYS"  env-default:"30"`
}

// StoreConfig holds the backing-store settings. The latency and probability
// knobs only apply to the in-memory engine; the postgres engine ignores
// them and uses the DSN.
type StoreConfig struct {
	Engine                 string        `yaml:"engine"                   env:"STORE_ENGINE"                   env-default:"memory"`
	DSN                    string        `yaml:"dsn"                      env:"STORE_DSN"`
	TableName              string        `yaml:"table_name"               env:"STORE_TABLE_NAME"               env-default:"records"`
	BaseLatency            time.Duration `yaml:"base_latency"             env:"STORE_BASE_LATENCY"             env-default:"50ms"`
	DegradedSaveProbability float64      `yaml:"degraded_save_probability" env:"STORE_DEGRADED_SAVE_PROBABILITY" env-default:"0.1"`
	FailureProbability     float64       `yaml:"failure_probability"      env:"STORE_FAILURE_PROBABILITY"      env-default:"0"`
}

// EventsConfig holds the event-log settings.
type EventsConfig struct {
	Capacity int `yaml:"capacity" env:"EVENTS_CAPACITY" env-default:"50"`
}

// SearchConfig holds the multi-source lookup settings.
type SearchConfig struct {
	Timeout time.Duration `yaml:"timeout" env:"SEARCH_TIMEOUT" env-default:"2s"`
}

// RetryConfig holds the store-write retry settings.
type RetryConfig struct {
	MaxAttempts  int           `yaml:"max_attempts"  env:"RETRY_MAX_ATTEMPTS"  env-default:"6"`
	BaseDelay    time.Duration `yaml:"base_delay"    env:"RETRY_BASE_DELAY"    env-default:"10ms"`
	JitterFactor float64       `yaml:"jitter_factor" env:"RETRY_JITTER_FACTOR" env-default:"0.3"`
}
