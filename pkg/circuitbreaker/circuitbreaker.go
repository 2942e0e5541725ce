// Package circuitbreaker stops calls to an upstream that keeps failing and
// lets a trial request through once a cool-down has passed.
package circuitbreaker

import (
	"context"
	"errors"
	"sync"
	"time"
)

// State of a breaker.
type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// ErrOpen is returned without calling the upstream while the breaker is open,
// or while the half-open trial slots are taken.
var ErrOpen = errors.New("circuit breaker is open")

// Config holds breaker settings.
type Config struct {
	// Name identifies the upstream in logs.
	Name string

	// FailureThreshold is the number of consecutive failures that opens the breaker.
	FailureThreshold int

	// SuccessThreshold is the number of consecutive half-open successes that closes it.
	SuccessThreshold int

	// Cooldown is how long the breaker stays open before a trial request.
	Cooldown time.Duration

	// HalfOpenRequests caps concurrent trial requests.
	HalfOpenRequests int

	// OnStateChange is called with the breaker lock held; keep it short.
	OnStateChange func(name string, from, to State)

	// IsFailure decides whether an error counts against the upstream.
	// Nil counts every error.
	IsFailure func(error) bool
}

// DefaultConfig returns defaults suited to a chat platform REST API.
func DefaultConfig(name string) Config {
	return Config{
		Name:             name,
		FailureThreshold: 5,
		SuccessThreshold: 1,
		Cooldown:         30 * time.Second,
		HalfOpenRequests: 1,
	}
}

// Option configures a breaker.
type Option func(*Config)

func WithFailureThreshold(n int) Option {
	return func(c *Config) {
		if n > 0 {
			c.FailureThreshold = n
		}
	}
}

func WithSuccessThreshold(n int) Option {
	return func(c *Config) {
		if n > 0 {
			c.SuccessThreshold = n
		}
	}
}

func WithCooldown(d time.Duration) Option {
	return func(c *Config) {
		if d > 0 {
			c.Cooldown = d
		}
	}
}

func WithHalfOpenRequests(n int) Option {
	return func(c *Config) {
		if n > 0 {
			c.HalfOpenRequests = n
		}
	}
}

func WithOnStateChange(fn func(name string, from, to State)) Option {
	return func(c *Config) { c.OnStateChange = fn }
}

func WithIsFailure(fn func(error) bool) Option {
	return func(c *Config) { c.IsFailure = fn }
}

// CircuitBreaker guards one upstream. It is safe for concurrent use.
type CircuitBreaker struct {
	config Config
	now    func() time.Time

	mu          sync.Mutex
	state       State
	failures    int
	successes   int
	openedAt    time.Time
	trialsInUse int
}

// New creates a closed breaker.
func New(name string, opts ...Option) *CircuitBreaker {
	config := DefaultConfig(name)
	for _, opt := range opts {
		opt(&config)
	}
	return &CircuitBreaker{config: config, now: time.Now}
}

// Execute runs fn unless the breaker is open, and records its outcome.
func (cb *CircuitBreaker) Execute(ctx context.Context, fn func(context.Context) error) error {
	trial, err := cb.admit()
	if err != nil {
		return err
	}
	err = fn(ctx)
	cb.record(err, trial)
	return err
}

func (cb *CircuitBreaker) admit() (trial bool, err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state == StateOpen {
		if cb.now().Sub(cb.openedAt) < cb.config.Cooldown {
			return false, ErrOpen
		}
		cb.setState(StateHalfOpen)
	}
	if cb.state == StateHalfOpen {
		if cb.trialsInUse >= cb.config.HalfOpenRequests {
			return false, ErrOpen
		}
		cb.trialsInUse++
		return true, nil
	}
	return false, nil
}

func (cb *CircuitBreaker) record(err error, trial bool) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if trial && cb.trialsInUse > 0 {
		cb.trialsInUse--
	}

	failed := err != nil
	if failed && cb.config.IsFailure != nil {
		failed = cb.config.IsFailure(err)
	}

	if !failed {
		cb.failures = 0
		cb.successes++
		if cb.state == StateHalfOpen && cb.successes >= cb.config.SuccessThreshold {
			cb.setState(StateClosed)
		}
		return
	}

	cb.successes = 0
	cb.failures++
	switch cb.state {
	case StateClosed:
		if cb.failures >= cb.config.FailureThreshold {
			cb.setState(StateOpen)
		}
	case StateHalfOpen:
		cb.setState(StateOpen)
	}
}

func (cb *CircuitBreaker) setState(to State) {
	if cb.state == to {
		return
	}
	from := cb.state
	cb.state = to
	cb.failures = 0
	cb.successes = 0
	cb.trialsInUse = 0
	if to == StateOpen {
		cb.openedAt = cb.now()
	}
	if cb.config.OnStateChange != nil {
		cb.config.OnStateChange(cb.config.Name, from, to)
	}
}

// State returns the current state. An open breaker whose cool-down has
// elapsed still reports open until the next request.
func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// Name returns the upstream name.
func (cb *CircuitBreaker) Name() string {
	return cb.config.Name
}
