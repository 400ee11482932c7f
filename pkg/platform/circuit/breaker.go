// Package circuit wraps sony/gobreaker with the defaults used by the ledger's
// downstream publishers.
package circuit

import (
	"errors"
	"time"

	"github.com/sony/gobreaker"
)

// State mirrors gobreaker's states so callers do not import it directly.
type State = gobreaker.State

const (
	StateClosed   = gobreaker.StateClosed
	StateHalfOpen = gobreaker.StateHalfOpen
	StateOpen     = gobreaker.StateOpen
)

// ErrOpen is returned when a call is short-circuited.
var ErrOpen = errors.New("circuit open")

type config struct {
	failureThreshold uint32
	minRequests      uint32
	failureRatio     float64
	maxRequests      uint32
	interval         time.Duration
	timeout          time.Duration
	onStateChange    func(name string, from, to State)
}

// Option configures a Breaker.
type Option func(*config)

// WithFailureThreshold trips the breaker after n consecutive failures.
func WithFailureThreshold(n uint32) Option {
	return func(c *config) { c.failureThreshold = n }
}

// WithFailureRatio trips the breaker once at least minRequests were seen in the
// current interval and the failure ratio reaches ratio.
func WithFailureRatio(ratio float64, minRequests uint32) Option {
	return func(c *config) {
		c.failureRatio = ratio
		c.minRequests = minRequests
	}
}

// WithHalfOpenRequests bounds the requests allowed while half-open.
func WithHalfOpenRequests(n uint32) Option {
	return func(c *config) { c.maxRequests = n }
}

// WithInterval sets the cyclic period at which closed-state counts reset.
func WithInterval(d time.Duration) Option {
	return func(c *config) { c.interval = d }
}

// WithOpenTimeout sets how long the breaker stays open before probing.
func WithOpenTimeout(d time.Duration) Option {
	return func(c *config) { c.timeout = d }
}

// WithStateChange registers a hook fired on every transition.
func WithStateChange(fn func(name string, from, to State)) Option {
	return func(c *config) { c.onStateChange = fn }
}

// Breaker guards calls to a flaky dependency.
type Breaker struct {
	cb *gobreaker.CircuitBreaker
}

// New builds a breaker named name.
func New(name string, opts ...Option) *Breaker {
	cfg := config{
		failureThreshold: 5,
		maxRequests:      1,
		interval:         time.Minute,
		timeout:          30 * time.Second,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	settings := gobreaker.Settings{
		Name:        name,
		MaxRequests: cfg.maxRequests,
		Interval:    cfg.interval,
		Timeout:     cfg.timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if cfg.failureThreshold > 0 && counts.ConsecutiveFailures >= cfg.failureThreshold {
				return true
			}
			if cfg.failureRatio > 0 && counts.Requests >= cfg.minRequests && counts.Requests > 0 {
				ratio := float64(counts.TotalFailures) / float64(counts.Requests)
				return ratio >= cfg.failureRatio
			}
			return false
		},
	}
	if cfg.onStateChange != nil {
		settings.OnStateChange = cfg.onStateChange
	}

	return &Breaker{cb: gobreaker.NewCircuitBreaker(settings)}
}

// Execute runs fn unless the breaker is open. Short-circuited calls return an
// error wrapping ErrOpen.
func (b *Breaker) Execute(fn func() error) error {
	_, err := b.cb.Execute(func() (interface{}, error) {
		return nil, fn()
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return errors.Join(ErrOpen, err)
	}
	return err
}

func (b *Breaker) State() State { return b.cb.State() }

func (b *Breaker) Name() string { return b.cb.Name() }

func (b *Breaker) IsOpen() bool { return b.cb.State() == StateOpen }
