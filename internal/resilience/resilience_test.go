package resilience

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	errUpstream = errors.New("upstream down")
	errRefused  = errors.New("prompt refused")
)

func newBreaker(cooldown time.Duration) *Breaker {
	return NewBreaker(BreakerConfig{
		Name:        "test",
		MaxFailures: 2,
		Cooldown:    cooldown,
		Ignore:      func(err error) bool { return errors.Is(err, errRefused) },
		Logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
}

func fail(err error) func(context.Context) error {
	return func(context.Context) error { return err }
}

func TestBreakerOpensAfterConsecutiveFailures(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	b := newBreaker(time.Hour)

	assert.ErrorIs(t, b.Execute(ctx, fail(errUpstream)), errUpstream)
	assert.Equal(t, "closed", b.State())
	assert.ErrorIs(t, b.Execute(ctx, fail(errUpstream)), errUpstream)
	assert.Equal(t, "open", b.State())

	called := false
	err := b.Execute(ctx, func(context.Context) error { called = true; return nil })
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.False(t, called)
}

func TestBreakerIgnoresCallerErrors(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	b := newBreaker(time.Hour)

	for range 5 {
		assert.ErrorIs(t, b.Execute(ctx, fail(errRefused)), errRefused)
		assert.ErrorIs(t, b.Execute(ctx, fail(context.Canceled)), context.Canceled)
	}
	assert.Equal(t, "closed", b.State())
}

func TestBreakerRecoversAfterCooldown(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	b := newBreaker(20 * time.Millisecond)

	_ = b.Execute(ctx, fail(errUpstream))
	_ = b.Execute(ctx, fail(errUpstream))
	require.Equal(t, "open", b.State())

	time.Sleep(40 * time.Millisecond)
	require.NoError(t, b.Execute(ctx, fail(nil)))
	assert.Equal(t, "closed", b.State())
}

func TestBreakerSkipsDoneContext(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	err := newBreaker(time.Hour).Execute(ctx, func(context.Context) error { called = true; return nil })
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, called)
}
