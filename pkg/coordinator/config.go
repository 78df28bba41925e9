package coordinator

import (
	"time"

	"github.com/jzx17/goworkq/pkg/metrics"
	"github.com/jzx17/goworkq/pkg/retry"
	"github.com/jzx17/goworkq/pkg/types"
	"go.uber.org/zap"
)

// Config defines configuration for a producer/consumer run
type Config struct {
	// Capacity is the size of the shared queue
	Capacity int

	// Producers is the number of producer goroutines
	Producers int

	// Consumers is the number of consumer goroutines
	Consumers int

	// GetTimeout bounds each consumer poll. After an empty poll a consumer
	// checks whether shutdown has been signalled.
	GetTimeout time.Duration

	// PutTimeout bounds each producer put attempt. Zero blocks until there
	// is room or the run's context is done.
	PutTimeout time.Duration

	// PutRetry decides whether a timed-out put is attempted again
	// (optional, defaults to a single attempt)
	PutRetry *retry.Policy

	// ProduceRate caps emitted items per second across all producers
	// (optional, zero means unlimited)
	ProduceRate float64

	// ProduceBurst is the limiter bucket size, defaults to 1
	ProduceBurst int

	// MaxErrors is the number of failures retained in the report
	MaxErrors int

	// Clock for time operations (optional, defaults to real clock)
	Clock types.Clock

	// Logger (optional, defaults to a no-op logger)
	Logger *zap.Logger

	// Metrics (optional)
	Metrics *metrics.Registry

	// Name labels logs and metrics
	Name string
}

// DefaultConfig returns default configuration
func DefaultConfig() *Config {
	return &Config{
		Capacity:   10,
		Producers:  2,
		Consumers:  3,
		GetTimeout: 500 * time.Millisecond,
		PutTimeout: 5 * time.Second,
		MaxErrors:  100,
		Clock:      types.NewRealClock(),
		Name:       "coordinator",
	}
}

// Validate checks the configuration
func (c *Config) Validate() error {
	if c.Capacity <= 0 {
		return types.InvalidConfig("capacity must be positive, got %d", c.Capacity)
	}
	if c.Producers < 1 {
		return types.InvalidConfig("producers must be at least 1, got %d", c.Producers)
	}
	if c.Consumers < 1 {
		return types.InvalidConfig("consumers must be at least 1, got %d", c.Consumers)
	}
	if c.GetTimeout <= 0 {
		return types.InvalidConfig("get timeout must be positive, got %v", c.GetTimeout)
	}
	if c.PutTimeout < 0 {
		return types.InvalidConfig("put timeout must not be negative, got %v", c.PutTimeout)
	}
	if c.ProduceRate < 0 {
		return types.InvalidConfig("produce rate must not be negative, got %v", c.ProduceRate)
	}
	return nil
}

func (c *Config) withDefaults() Config {
	out := *c
	out.Clock = types.OrRealClock(out.Clock)
	if out.Logger == nil {
		out.Logger = zap.NewNop()
	}
	if out.Name == "" {
		out.Name = "coordinator"
	}
	if out.ProduceBurst <= 0 {
		out.ProduceBurst = 1
	}
	return out
}
