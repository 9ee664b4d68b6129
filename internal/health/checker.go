// Package health reports process readiness for the HTTP health endpoints.
package health

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Pinger checks connectivity to a dependency.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingerFunc adapts a function to the Pinger interface.
type PingerFunc func(ctx context.Context) error

// Ping implements Pinger.
func (f PingerFunc) Ping(ctx context.Context) error { return f(ctx) }

// Status is the readiness snapshot for one dependency.
type Status struct {
	Healthy   bool      `json:"healthy"`
	Error     string    `json:"error,omitempty"`
	CheckedAt time.Time `json:"checked_at"`
}

// Checker pings named dependencies with a per-check timeout.
type Checker struct {
	mu      sync.Mutex
	checks  map[string]Pinger
	timeout time.Duration
	logger  *zap.Logger
}

// NewChecker creates a Checker. A zero timeout defaults to 5 seconds.
func NewChecker(timeout time.Duration, logger *zap.Logger) *Checker {
	if timeout == 0 {
		timeout = 5 * time.Second
	}
	return &Checker{
		checks:  make(map[string]Pinger),
		timeout: timeout,
		logger:  logger,
	}
}

// Register adds a named dependency check.
func (c *Checker) Register(name string, p Pinger) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.checks[name] = p
}

// Check pings every registered dependency and returns per-dependency status
// plus overall readiness.
func (c *Checker) Check(ctx context.Context) (map[string]Status, bool) {
	c.mu.Lock()
	checks := make(map[string]Pinger, len(c.checks))
	for name, p := range c.checks {
		checks[name] = p
	}
	c.mu.Unlock()

	out := make(map[string]Status, len(checks))
	ready := true
	for name, p := range checks {
		pingCtx, cancel := context.WithTimeout(ctx, c.timeout)
		err := p.Ping(pingCtx)
		cancel()

		st := Status{Healthy: err == nil, CheckedAt: time.Now().UTC()}
		if err != nil {
			st.Error = err.Error()
			ready = false
			c.logger.Warn("dependency unhealthy",
				zap.String("dependency", name),
				zap.Error(err),
			)
		}
		out[name] = st
	}
	return out, ready
}
