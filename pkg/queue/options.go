package queue

import (
	"github.com/jzx17/goworkq/pkg/metrics"
	"github.com/jzx17/goworkq/pkg/types"
	"go.uber.org/zap"
)

// Option is a functional option for configuring a BoundedQueue.
type Option func(*options)

type options struct {
	clock   types.Clock
	metrics *metrics.Registry
	name    string
	logger  *zap.Logger
}

func defaultOptions() options {
	return options{
		clock:  types.NewRealClock(),
		name:   "queue",
		logger: zap.NewNop(),
	}
}

// WithClock sets the clock used for PutTimeout and GetTimeout.
// If not specified, the real clock is used.
func WithClock(clock types.Clock) Option {
	return func(o *options) {
		if clock != nil {
			o.clock = clock
		}
	}
}

// WithMetrics reports depth, pending work, waiters and throughput to reg
// under the given name label.
func WithMetrics(reg *metrics.Registry, name string) Option {
	return func(o *options) {
		o.metrics = reg
		if name != "" {
			o.name = name
		}
	}
}

// WithName sets the name used in logs and metric labels.
func WithName(name string) Option {
	return func(o *options) {
		if name != "" {
			o.name = name
		}
	}
}

// WithLogger sets the logger. If not specified, logging is disabled.
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}
