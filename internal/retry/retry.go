// Package retry bounds blocking store calls with per-attempt timeouts,
// exponential backoff and an optional circuit breaker.
package retry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/sony/gobreaker"

	"github.com/dwsmith1983/vidtrend/pkg/types"
)

// Policy describes how a call is retried.
type Policy struct {
	MaxAttempts     int
	InitialInterval time.Duration
	MaxInterval     time.Duration
	Multiplier      float64
	CallTimeout     time.Duration
}

// DefaultPolicy returns the default retry configuration.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts:     3,
		InitialInterval: 200 * time.Millisecond,
		MaxInterval:     5 * time.Second,
		Multiplier:      2.0,
		CallTimeout:     30 * time.Second,
	}
}

// PolicyFromConfig overlays cfg onto DefaultPolicy.
func PolicyFromConfig(cfg types.RetryConfig) (Policy, error) {
	p := DefaultPolicy()
	if cfg.MaxAttempts > 0 {
		p.MaxAttempts = cfg.MaxAttempts
	}
	for _, f := range []struct {
		name string
		raw  string
		dst  *time.Duration
	}{
		{"initialInterval", cfg.InitialInterval, &p.InitialInterval},
		{"maxInterval", cfg.MaxInterval, &p.MaxInterval},
		{"callTimeout", cfg.CallTimeout, &p.CallTimeout},
	} {
		if f.raw == "" {
			continue
		}
		d, err := time.ParseDuration(f.raw)
		if err != nil {
			return Policy{}, fmt.Errorf("retry.%s: %w", f.name, err)
		}
		*f.dst = d
	}
	return p, nil
}

// Permanent marks err as not worth retrying.
func Permanent(err error) error {
	return backoff.Permanent(err)
}

// Runner executes operations under a Policy.
type Runner struct {
	policy  Policy
	breaker *Breaker
	logger  *slog.Logger
}

// Option configures a Runner.
type Option func(*Runner)

// WithBreaker routes every attempt through b.
func WithBreaker(b *Breaker) Option {
	return func(r *Runner) { r.breaker = b }
}

// WithLogger sets the logger used to report retried failures.
func WithLogger(l *slog.Logger) Option {
	return func(r *Runner) { r.logger = l }
}

// NewRunner creates a Runner for p.
func NewRunner(p Policy, opts ...Option) *Runner {
	r := &Runner{policy: p, logger: slog.New(slog.DiscardHandler)}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Run executes op until it succeeds, fails permanently or the attempts are
// exhausted. A nil Runner runs op exactly once.
func (r *Runner) Run(ctx context.Context, name string, op func(context.Context) error) error {
	_, err := Value(ctx, r, name, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, op(ctx)
	})
	return err
}

// Value is Run for operations that produce a result.
func Value[T any](ctx context.Context, r *Runner, name string, op func(context.Context) (T, error)) (T, error) {
	if r == nil {
		return op(ctx)
	}

	attempt := 0
	call := func() (T, error) {
		attempt++
		callCtx := ctx
		if r.policy.CallTimeout > 0 {
			var cancel context.CancelFunc
			callCtx, cancel = context.WithTimeout(ctx, r.policy.CallTimeout)
			defer cancel()
		}
		if r.breaker == nil {
			return op(callCtx)
		}
		return Guard(r.breaker, func() (T, error) { return op(callCtx) })
	}

	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = r.policy.InitialInterval
	eb.MaxInterval = r.policy.MaxInterval
	if r.policy.Multiplier > 0 {
		eb.Multiplier = r.policy.Multiplier
	}

	tries := r.policy.MaxAttempts
	if tries < 1 {
		tries = 1
	}
	res, err := backoff.Retry(ctx, call,
		backoff.WithBackOff(eb),
		backoff.WithMaxTries(uint(tries)),
		backoff.WithNotify(func(err error, wait time.Duration) {
			r.logger.Warn("retrying call", "call", name, "attempt", attempt, "wait", wait, "error", err)
		}),
	)
	if err != nil {
		return res, fmt.Errorf("%s: %w", name, err)
	}
	return res, nil
}

// ErrBreakerOpen is returned when the breaker rejects a call.
var ErrBreakerOpen = errors.New("circuit breaker open")

// Breaker trips after a run of consecutive failures and rejects calls until
// its cooldown elapses.
type Breaker struct {
	cb *gobreaker.CircuitBreaker
}

// NewBreaker creates a Breaker that opens after failures consecutive errors.
func NewBreaker(name string, failures uint32, cooldown time.Duration, logger *slog.Logger) *Breaker {
	if failures == 0 {
		failures = 5
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Breaker{cb: gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Timeout:     cooldown,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= failures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state change", "breaker", name, "from", from.String(), "to", to.String())
		},
	})}
}

// Guard runs fn through b. Rejections are permanent so retry loops stop
// hammering an open breaker.
func Guard[T any](b *Breaker, fn func() (T, error)) (T, error) {
	out, err := b.cb.Execute(func() (interface{}, error) {
		return fn()
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		var zero T
		return zero, backoff.Permanent(fmt.Errorf("%w: %s", ErrBreakerOpen, b.cb.Name()))
	}
	if err != nil {
		var zero T
		return zero, err
	}
	v, _ := out.(T)
	return v, nil
}
