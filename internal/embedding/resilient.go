package embedding

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sony/gobreaker"

	"rag-retrieval/internal/domain"
)

// RetryPolicy bounds and retries remote embedding calls. The zero value means
// a single attempt with no per-attempt deadline.
type RetryPolicy struct {
	MaxRetries      int
	AttemptTimeout  time.Duration
	InitialInterval time.Duration
	MaxInterval     time.Duration
	MaxElapsedTime  time.Duration

	// BreakerFailures consecutive transport failures open the breaker for
	// BreakerCooldown. Zero disables the breaker.
	BreakerFailures uint32
	BreakerCooldown time.Duration
}

// DefaultRetryPolicy returns the policy used when none is configured.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries:      2,
		AttemptTimeout:  30 * time.Second,
		InitialInterval: 200 * time.Millisecond,
		MaxInterval:     5 * time.Second,
		MaxElapsedTime:  60 * time.Second,
		BreakerFailures: 5,
		BreakerCooldown: 30 * time.Second,
	}
}

// Resilient decorates a Provider with per-attempt deadlines, exponential
// backoff and a circuit breaker. Configuration and malformed-response
// failures are never retried.
type Resilient struct {
	next    Provider
	policy  RetryPolicy
	breaker *gobreaker.CircuitBreaker
	logger  *slog.Logger
}

// NewResilient wraps next with the given policy.
func NewResilient(next Provider, policy RetryPolicy, logger *slog.Logger) *Resilient {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "embedding", "provider", next.Name())
	r := &Resilient{next: next, policy: policy, logger: logger}
	if policy.BreakerFailures > 0 {
		r.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        next.Name(),
			MaxRequests: 1,
			Timeout:     policy.BreakerCooldown,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= policy.BreakerFailures
			},
			IsSuccessful: func(err error) bool {
				return err == nil || !errors.Is(err, ErrTransport)
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				logger.Warn("circuit breaker state change", "from", from.String(), "to", to.String())
			},
		})
	}
	return r
}

// Name returns the wrapped provider's name.
func (r *Resilient) Name() string { return r.next.Name() }

// EmbedOne embeds a single text.
func (r *Resilient) EmbedOne(ctx context.Context, text string) (domain.Vector, error) {
	vecs, err := r.run(ctx, func(ctx context.Context) ([]domain.Vector, error) {
		v, err := r.next.EmbedOne(ctx, text)
		if err != nil {
			return nil, err
		}
		return []domain.Vector{v}, nil
	})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// EmbedMany embeds texts in one call per attempt. A retry re-sends the whole
// batch; partial results are never returned.
func (r *Resilient) EmbedMany(ctx context.Context, texts []string) ([]domain.Vector, error) {
	return r.run(ctx, func(ctx context.Context) ([]domain.Vector, error) {
		return r.next.EmbedMany(ctx, texts)
	})
}

func (r *Resilient) run(ctx context.Context, call func(context.Context) ([]domain.Vector, error)) ([]domain.Vector, error) {
	var out []domain.Vector
	attempt := 0
	op := func() error {
		attempt++
		vecs, err := r.attempt(ctx, call)
		if err == nil {
			out = vecs
			return nil
		}
		if errors.Is(err, ErrConfiguration) || errors.Is(err, ErrMalformedResponse) {
			return backoff.Permanent(err)
		}
		return err
	}
	notify := func(err error, wait time.Duration) {
		r.logger.Debug("retrying embedding call", "attempt", attempt, "wait", wait, "error", err)
	}
	if err := backoff.RetryNotify(op, r.backoff(ctx), notify); err != nil {
		if !errors.Is(err, ErrUnavailable) {
			// context expiry surfaces from the backoff loop unwrapped
			err = fmt.Errorf("%w: %w: %w", ErrUnavailable, ErrTransport, err)
		}
		return nil, err
	}
	return out, nil
}

func (r *Resilient) attempt(ctx context.Context, call func(context.Context) ([]domain.Vector, error)) ([]domain.Vector, error) {
	if r.policy.AttemptTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.policy.AttemptTimeout)
		defer cancel()
	}
	if r.breaker == nil {
		return call(ctx)
	}
	res, err := r.breaker.Execute(func() (interface{}, error) {
		return call(ctx)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, Fail(ErrTransport, "%v", err)
	}
	if err != nil {
		return nil, err
	}
	return res.([]domain.Vector), nil
}

func (r *Resilient) backoff(ctx context.Context) backoff.BackOff {
	if r.policy.MaxRetries <= 0 {
		return backoff.WithContext(&backoff.StopBackOff{}, ctx)
	}
	b := backoff.NewExponentialBackOff()
	if r.policy.InitialInterval > 0 {
		b.InitialInterval = r.policy.InitialInterval
	}
	if r.policy.MaxInterval > 0 {
		b.MaxInterval = r.policy.MaxInterval
	}
	b.MaxElapsedTime = r.policy.MaxElapsedTime
	b.Reset()
	return backoff.WithContext(backoff.WithMaxRetries(b, uint64(r.policy.MaxRetries)), ctx)
}

var _ Provider = (*Resilient)(nil)
