package embedding

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rag-retrieval/internal/domain"
)

type scriptedProvider struct {
	errs  []error // returned in order, then success
	calls int
	seen  []string
}

func (p *scriptedProvider) Name() string { return "scripted" }

func (p *scriptedProvider) EmbedOne(ctx context.Context, text string) (domain.Vector, error) {
	vecs, err := p.EmbedMany(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

func (p *scriptedProvider) EmbedMany(ctx context.Context, texts []string) ([]domain.Vector, error) {
	p.calls++
	p.seen = append(p.seen, texts...)
	if p.calls <= len(p.errs) {
		return nil, p.errs[p.calls-1]
	}
	out := make([]domain.Vector, len(texts))
	for i := range texts {
		out[i] = domain.Vector{float32(i)}
	}
	return out, nil
}

func fastPolicy(retries int) RetryPolicy {
	return RetryPolicy{
		MaxRetries:      retries,
		AttemptTimeout:  time.Second,
		InitialInterval: time.Millisecond,
		MaxInterval:     2 * time.Millisecond,
	}
}

func TestResilient_RetriesTransportFailures(t *testing.T) {
	p := &scriptedProvider{errs: []error{Fail(ErrTransport, "reset"), Fail(ErrTransport, "reset")}}
	r := NewResilient(p, fastPolicy(2), nil)

	vec, err := r.EmbedOne(context.Background(), "q")
	require.NoError(t, err)
	assert.Equal(t, domain.Vector{0}, vec)
	assert.Equal(t, 3, p.calls)
}

func TestResilient_GivesUpAfterMaxRetries(t *testing.T) {
	p := &scriptedProvider{errs: []error{Fail(ErrTransport, "1"), Fail(ErrTransport, "2"), Fail(ErrTransport, "3")}}
	r := NewResilient(p, fastPolicy(1), nil)

	_, err := r.EmbedOne(context.Background(), "q")
	assert.ErrorIs(t, err, ErrTransport)
	assert.Equal(t, 2, p.calls)
}

func TestResilient_DoesNotRetryPermanentFailures(t *testing.T) {
	for _, class := range []error{ErrConfiguration, ErrMalformedResponse} {
		p := &scriptedProvider{errs: []error{Fail(class, "nope")}}
		r := NewResilient(p, fastPolicy(3), nil)

		_, err := r.EmbedMany(context.Background(), []string{"a", "b"})
		assert.ErrorIs(t, err, class)
		assert.Equal(t, 1, p.calls)
	}
}

func TestResilient_ZeroPolicyIsSingleAttempt(t *testing.T) {
	p := &scriptedProvider{errs: []error{Fail(ErrTransport, "down")}}
	r := NewResilient(p, RetryPolicy{}, nil)

	_, err := r.EmbedOne(context.Background(), "q")
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.Equal(t, 1, p.calls)
}

func TestResilient_BatchRetryResendsWholeBatch(t *testing.T) {
	p := &scriptedProvider{errs: []error{Fail(ErrTransport, "timeout")}}
	r := NewResilient(p, fastPolicy(1), nil)

	vecs, err := r.EmbedMany(context.Background(), []string{"a", "b", "c"})
	require.NoError(t, err)
	assert.Len(t, vecs, 3)
	assert.Equal(t, []string{"a", "b", "c", "a", "b", "c"}, p.seen)
}

func TestResilient_BreakerOpensAfterConsecutiveFailures(t *testing.T) {
	errs := make([]error, 10)
	for i := range errs {
		errs[i] = Fail(ErrTransport, "down")
	}
	p := &scriptedProvider{errs: errs}
	policy := RetryPolicy{BreakerFailures: 2, BreakerCooldown: time.Minute}
	r := NewResilient(p, policy, nil)

	for i := 0; i < 2; i++ {
		_, err := r.EmbedOne(context.Background(), "q")
		require.ErrorIs(t, err, ErrTransport)
	}
	_, err := r.EmbedOne(context.Background(), "q")
	assert.ErrorIs(t, err, ErrTransport)
	assert.Contains(t, err.Error(), "circuit breaker is open")
	assert.Equal(t, 2, p.calls)
}

func TestResilient_ConfigurationFailuresDoNotTripBreaker(t *testing.T) {
	p := &scriptedProvider{errs: []error{Fail(ErrConfiguration, "bad key"), Fail(ErrConfiguration, "bad key")}}
	r := NewResilient(p, RetryPolicy{BreakerFailures: 1, BreakerCooldown: time.Minute}, nil)

	for i := 0; i < 2; i++ {
		_, err := r.EmbedOne(context.Background(), "q")
		require.ErrorIs(t, err, ErrConfiguration)
	}
	_, err := r.EmbedOne(context.Background(), "q")
	assert.NoError(t, err)
	assert.Equal(t, 3, p.calls)
}

func TestResilient_CancelledContext(t *testing.T) {
	p := &scriptedProvider{errs: []error{Fail(ErrTransport, "x"), Fail(ErrTransport, "x")}}
	r := NewResilient(p, RetryPolicy{MaxRetries: 5, InitialInterval: time.Hour, MaxInterval: time.Hour}, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := r.EmbedOne(ctx, "q")
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestFail(t *testing.T) {
	err := Fail(ErrMalformedResponse, "entry %d", 3)
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.ErrorIs(t, err, ErrMalformedResponse)
	assert.False(t, IsConfiguration(err))
	assert.True(t, IsConfiguration(Fail(ErrConfiguration, "x")))
	assert.Contains(t, err.Error(), "entry 3")
}
