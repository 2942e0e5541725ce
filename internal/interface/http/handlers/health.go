// Package handlers contains the health checking used by the HTTP interface.
package handlers

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// HealthCheckFunc reports a dependency as unhealthy by returning an error.
type HealthCheckFunc func(ctx context.Context) error

// Pinger is satisfied by the Postgres and Redis clients.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingCheck adapts a Pinger.
func PingCheck(p Pinger) HealthCheckFunc {
	return p.Ping
}

// Overall service states.
const (
	StatusOK       = "ok"
	StatusDegraded = "degraded"
	StatusDown     = "down"
)

// HealthStatus is the aggregated result served by /readyz.
type HealthStatus struct {
	Status    string                 `json:"status"`
	Healthy   bool                   `json:"healthy"`
	Message   string                 `json:"message,omitempty"`
	Checks    map[string]CheckResult `json:"checks,omitempty"`
	Uptime    string                 `json:"uptime,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
	Version   string                 `json:"version,omitempty"`
}

// CheckResult is the outcome of one named check.
type CheckResult struct {
	Healthy  bool   `json:"healthy"`
	Advisory bool   `json:"advisory,omitempty"`
	Message  string `json:"message,omitempty"`
	Duration string `json:"duration,omitempty"`
}

type registeredCheck struct {
	fn       HealthCheckFunc
	advisory bool
}

// CompositeHealthChecker runs named checks concurrently. A failing required
// check makes the service unhealthy; a failing advisory check only marks
// it degraded. XP storage is required, Discord delivery is advisory.
type CompositeHealthChecker struct {
	mu        sync.RWMutex
	checks    map[string]registeredCheck
	startTime time.Time
	version   string
	timeout   time.Duration
}

// NewCompositeHealthChecker creates a checker with a 5s per-check timeout.
func NewCompositeHealthChecker(version string) *CompositeHealthChecker {
	return &CompositeHealthChecker{
		checks:    make(map[string]registeredCheck),
		startTime: time.Now(),
		version:   version,
		timeout:   5 * time.Second,
	}
}

// SetTimeout bounds each individual check.
func (c *CompositeHealthChecker) SetTimeout(timeout time.Duration) {
	c.timeout = timeout
}

// AddCheck registers a required check.
func (c *CompositeHealthChecker) AddCheck(name string, check HealthCheckFunc) {
	c.add(name, check, false)
}

// AddAdvisoryCheck registers a check whose failure degrades but does not
// fail readiness.
func (c *CompositeHealthChecker) AddAdvisoryCheck(name string, check HealthCheckFunc) {
	c.add(name, check, true)
}

func (c *CompositeHealthChecker) add(name string, check HealthCheckFunc, advisory bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.checks[name] = registeredCheck{fn: check, advisory: advisory}
}

// Check runs every registered check and aggregates the results.
func (c *CompositeHealthChecker) Check(ctx context.Context) HealthStatus {
	c.mu.RLock()
	checks := make(map[string]registeredCheck, len(c.checks))
	for name, check := range c.checks {
		checks[name] = check
	}
	c.mu.RUnlock()

	results := make(map[string]CheckResult, len(checks))
	var (
		mu sync.Mutex
		g  errgroup.Group
	)
	for name, check := range checks {
		g.Go(func() error {
			checkCtx, cancel := context.WithTimeout(ctx, c.timeout)
			defer cancel()

			start := time.Now()
			err := check.fn(checkCtx)
			r := CheckResult{
				Healthy:  err == nil,
				Advisory: check.advisory,
				Message:  "OK",
				Duration: time.Since(start).Round(time.Millisecond).String(),
			}
			if err != nil {
				r.Message = err.Error()
			}

			mu.Lock()
			results[name] = r
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	status := HealthStatus{
		Checks:    results,
		Uptime:    time.Since(c.startTime).Round(time.Second).String(),
		Timestamp: time.Now().UTC(),
		Version:   c.version,
	}
	status.Status, status.Message = summarize(results)
	status.Healthy = status.Status != StatusDown
	return status
}

func summarize(results map[string]CheckResult) (string, string) {
	if len(results) == 0 {
		return StatusOK, "No health checks registered"
	}

	var down, degraded []string
	for name, r := range results {
		switch {
		case r.Healthy:
		case r.Advisory:
			degraded = append(degraded, name)
		default:
			down = append(down, name)
		}
	}
	sort.Strings(down)
	sort.Strings(degraded)

	switch {
	case len(down) > 0:
		return StatusDown, "Some checks failed: " + strings.Join(down, ", ")
	case len(degraded) > 0:
		return StatusDegraded, "Degraded: " + strings.Join(degraded, ", ")
	default:
		return StatusOK, "All checks passed"
	}
}
