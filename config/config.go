// Package config holds the pool's tunables. The pool has no files,
// environment variables, or persisted state of its own to load this from;
// callers construct a Config programmatically (wiring it from whatever
// configuration system the surrounding node uses) and pass it to the pool
// constructor.
package config

import (
	"time"

	"github.com/pkg/errors"
)

// Config holds the pool's tunables.
type Config struct {
	// PoolLimit is the maximum number of pending transactions the pool
	// will accept at admission time.
	PoolLimit int

	// NotifierWorkerNum is the size of the notifier pool that delivers
	// submit-result callbacks and drains invalid transactions.
	NotifierWorkerNum int

	// MaxRetryTime bounds the number of unsealed-size notification
	// retries performed when the registered notifier's ack reports an
	// error.
	MaxRetryTime int

	// PreCommitAttempts bounds the number of ledger pre-commit attempts
	// (the initial attempt plus retries) before the pool gives up on
	// persisting a freshly admitted transaction.
	PreCommitAttempts uint

	// PreCommitBackoff is the delay between ledger pre-commit retries.
	PreCommitBackoff time.Duration
}

// DefaultConfig returns the pool's default configuration.
func DefaultConfig() *Config {
	return &Config{
		PoolLimit:         15000,
		NotifierWorkerNum: 2,
		MaxRetryTime:      3,
		PreCommitAttempts: 4,
		PreCommitBackoff:  100 * time.Millisecond,
	}
}

// TestConfig returns a configuration tuned for fast, deterministic tests.
func TestConfig() *Config {
	cfg := DefaultConfig()
	cfg.PoolLimit = 100
	cfg.PreCommitBackoff = time.Millisecond
	return cfg
}

// Validate performs basic bounds checking and returns an error describing
// the first invalid field found.
func (cfg *Config) Validate() error {
	if cfg.PoolLimit <= 0 {
		return errors.New("pool_limit must be positive")
	}
	if cfg.NotifierWorkerNum <= 0 {
		return errors.New("notifier_worker_num must be positive")
	}
	if cfg.MaxRetryTime < 0 {
		return errors.New("max_retry_time can't be negative")
	}
	if cfg.PreCommitAttempts == 0 {
		return errors.Wrap(errors.New("must allow at least one attempt"), "pre_commit_attempts")
	}
	if cfg.PreCommitBackoff < 0 {
		return errors.New("pre_commit_backoff can't be negative")
	}
	return nil
}
