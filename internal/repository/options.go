package repository

import (
	"errors"
	"log/slog"
	"time"
)

const (
	defaultMessageLimit = 50
	maxMessageLimit     = 100
)

// Option configures a Client.
type Option func(*Options)

// Options holds the Client configuration. Use the With* functions to change
// the defaults.
type Options struct {
	logger       *slog.Logger
	ledger       RoomLedger
	messageLimit int
	batchBackoff time.Duration
	batchRetries int
}

func newOptions() *Options {
	return &Options{
		logger:       slog.Default(),
		messageLimit: defaultMessageLimit,
		batchBackoff: 50 * time.Millisecond,
		batchRetries: 5,
	}
}

func (o *Options) validate() error {
	if o.logger == nil {
		return errors.New("repository: logger must not be nil")
	}
	if o.messageLimit <= 0 || o.messageLimit > maxMessageLimit {
		return errors.New("repository: default message limit must be between 1 and 100")
	}
	if o.batchBackoff <= 0 {
		return errors.New("repository: batch backoff must be greater than zero")
	}
	if o.batchRetries < 0 {
		return errors.New("repository: batch retries must not be negative")
	}
	return nil
}

// WithLogger sets the logger used for diagnostics. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(o *Options) {
		o.logger = logger
	}
}

// WithLedger replaces the active rooms ledger, e.g. with one backed by a
// conditional write.
func WithLedger(ledger RoomLedger) Option {
	return func(o *Options) {
		o.ledger = ledger
	}
}

// WithDefaultMessageLimit sets the page size used when ListMessages is called
// with a non-positive limit. The default is 50.
func WithDefaultMessageLimit(n int) Option {
	return func(o *Options) {
		o.messageLimit = n
	}
}

// WithBatchBackoff sets the initial delay before re-requesting unprocessed
// batch keys, and how many times that happens before giving up.
func WithBatchBackoff(initial time.Duration, retries int) Option {
	return func(o *Options) {
		o.batchBackoff = initial
		o.batchRetries = retries
	}
}
