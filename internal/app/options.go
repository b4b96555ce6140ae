package app

import (
	"io"
	"time"

	"github.com/sirupsen/logrus"
)

const (
	defaultHoldTTL         = 10 * time.Minute
	defaultMaxHoldTTL      = 30 * time.Minute
	defaultReserveAttempts = 3
	defaultSweepBatchSize  = 500
	DefaultFreeGrantLimit  = 1000
)

type options struct {
	log             logrus.FieldLogger
	cache           AvailabilityCache
	holdTTL         time.Duration
	maxHoldTTL      time.Duration
	reserveAttempts int
	sweepBatchSize  int
	freeGrantLimit  int
}

func newOptions(opts []Option) options {
	o := options{
		log:             discardLogger(),
		cache:           nopCache{},
		holdTTL:         defaultHoldTTL,
		maxHoldTTL:      defaultMaxHoldTTL,
		reserveAttempts: defaultReserveAttempts,
		sweepBatchSize:  defaultSweepBatchSize,
		freeGrantLimit:  DefaultFreeGrantLimit,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.maxHoldTTL < o.holdTTL {
		o.maxHoldTTL = o.holdTTL
	}
	return o
}

// Option configures a service. Options a service has no use for are ignored.
type Option func(*options)

func WithLogger(log logrus.FieldLogger) Option {
	return func(o *options) {
		if log != nil {
			o.log = log
		}
	}
}

// WithAvailabilityCache sets the cache invalidated after every ledger change.
func WithAvailabilityCache(c AvailabilityCache) Option {
	return func(o *options) {
		if c != nil {
			o.cache = c
		}
	}
}

// WithHoldTTL overrides the default TTL for new reservations.
func WithHoldTTL(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.holdTTL = d
		}
	}
}

// WithMaxHoldTTL caps caller-requested hold durations.
func WithMaxHoldTTL(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.maxHoldTTL = d
		}
	}
}

// WithReserveAttempts bounds how many times a reserve is tried when the
// ledger reports transient contention.
func WithReserveAttempts(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.reserveAttempts = n
		}
	}
}

func WithSweepBatchSize(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.sweepBatchSize = n
		}
	}
}

func WithFreeGrantLimit(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.freeGrantLimit = n
		}
	}
}

func discardLogger() logrus.FieldLogger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}
