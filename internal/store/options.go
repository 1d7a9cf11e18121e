package store

import (
	"time"

	"go.uber.org/zap"
)

type options struct {
	now    func() time.Time
	logger *zap.Logger
}

// Option configures a Store or a Catalog
type Option func(*options)

// WithClock set the time source used to stamp updatedAt
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		o.now = now
	}
}

// WithLogger set the logger used to report failing subscribers
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

func newOptions(opts []Option) *options {
	o := &options{now: time.Now, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(o)
	}
	return o
}
