package interact

import (
	"math/big"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/time/rate"
)

// DispatcherOption configures a Dispatcher.
type DispatcherOption func(*dispatcherConfig)

// dispatcherConfig holds configuration for NewDispatcher.
type dispatcherConfig struct {
	submitRate       rate.Limit
	submitBurst      int
	queryRetries     uint64
	queryBackoff     time.Duration
	batchConcurrency int
	registerer       prometheus.Registerer
	tracer           *Tracer
}

// defaultDispatcherConfig returns the default dispatcher configuration.
func defaultDispatcherConfig() *dispatcherConfig {
	return &dispatcherConfig{
		submitRate:   rate.Inf,
		submitBurst:  1,
		queryRetries: 3,
		queryBackoff: 200 * time.Millisecond,
	}
}

// WithSubmitRate limits transaction submissions to rps per second with the
// given burst. A non-positive rps disables the limit (default).
func WithSubmitRate(rps float64, burst int) DispatcherOption {
	return func(c *dispatcherConfig) {
		if rps <= 0 {
			c.submitRate = rate.Inf
			return
		}
		if burst < 1 {
			burst = 1
		}
		c.submitRate = rate.Limit(rps)
		c.submitBurst = burst
	}
}

// WithQueryRetries sets how often a failed query is repeated.
// Default is 3 retries.
func WithQueryRetries(n uint64) DispatcherOption {
	return func(c *dispatcherConfig) {
		c.queryRetries = n
	}
}

// WithQueryBackoff sets the initial interval between query retries.
// Default is 200ms.
func WithQueryBackoff(initial time.Duration) DispatcherOption {
	return func(c *dispatcherConfig) {
		if initial > 0 {
			c.queryBackoff = initial
		}
	}
}

// WithBatchConcurrency caps the number of batch elements in flight.
// Zero (default) dispatches every element at once.
func WithBatchConcurrency(n int) DispatcherOption {
	return func(c *dispatcherConfig) {
		if n < 0 {
			n = 0
		}
		c.batchConcurrency = n
	}
}

// WithMetrics registers the dispatcher metrics with reg.
func WithMetrics(reg prometheus.Registerer) DispatcherOption {
	return func(c *dispatcherConfig) {
		c.registerer = reg
	}
}

// WithTracer records every dispatched transaction into t.
func WithTracer(t *Tracer) DispatcherOption {
	return func(c *dispatcherConfig) {
		c.tracer = t
	}
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// GasSchedule holds the gas limits the client attaches per operation.
type GasSchedule struct {
	Deploy      uint64
	MultiDeploy uint64
	Call        uint64
	Upgrade     uint64
	Feed        uint64
}

// DefaultGasSchedule returns the default gas limits. No limit exceeds the
// 30M block gas limit of mainnet and Anvil; a node rejects a transaction
// asking for more than a block holds.
func DefaultGasSchedule() GasSchedule {
	return GasSchedule{
		Deploy:      30_000_000,
		MultiDeploy: 30_000_000,
		Call:        30_000_000,
		Upgrade:     30_000_000,
		Feed:        50_000,
	}
}

// DefaultFeedValue is the value transferred by Client.Feed.
var DefaultFeedValue = MustNumExpr("0,050000000000000000")

// WithGasSchedule overrides the gas limits. Zero fields keep their defaults.
func WithGasSchedule(gas GasSchedule) ClientOption {
	return func(c *Client) {
		if gas.Deploy != 0 {
			c.gas.Deploy = gas.Deploy
		}
		if gas.MultiDeploy != 0 {
			c.gas.MultiDeploy = gas.MultiDeploy
		}
		if gas.Call != 0 {
			c.gas.Call = gas.Call
		}
		if gas.Upgrade != 0 {
			c.gas.Upgrade = gas.Upgrade
		}
		if gas.Feed != 0 {
			c.gas.Feed = gas.Feed
		}
	}
}

// WithFeedValue sets the value transferred by Feed.
func WithFeedValue(amount *big.Int) ClientOption {
	return func(c *Client) {
		if amount != nil {
			c.feedValue = new(big.Int).Set(amount)
		}
	}
}

// WithDispatcher replaces the default dispatcher.
func WithDispatcher(d *Dispatcher) ClientOption {
	return func(c *Client) {
		if d != nil {
			c.dispatcher = d
		}
	}
}
