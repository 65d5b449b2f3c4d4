package llm

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/teleagent/teleagent/internal/resilience"
)

type failingProvider struct {
	err   error
	calls int
}

func (f *failingProvider) Complete(context.Context, Request) (string, error) {
	f.calls++
	return "", f.err
}

func (f *failingProvider) CompleteJSON(context.Context, Request, *Schema, any) error {
	f.calls++
	return f.err
}

func (f *failingProvider) GenerateImage(context.Context, string) ([]byte, error) {
	f.calls++
	return nil, f.err
}

func TestBreakerStopsCallingFailedBackend(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	next := &failingProvider{err: errors.New("503 service unavailable")}
	p := WithBreaker(next, "test", 2, time.Hour, slog.New(slog.NewTextHandler(io.Discard, nil)))

	_, err := p.Complete(ctx, UserPrompt("sys", "hi"))
	assert.Error(t, err)
	assert.Error(t, p.CompleteJSON(ctx, UserPrompt("sys", "hi"), nil, &struct{}{}))

	_, err = p.GenerateImage(ctx, "a cat")
	assert.ErrorIs(t, err, resilience.ErrCircuitOpen)
	assert.Equal(t, 2, next.calls)
}

func TestBreakerIgnoresBlockedPrompts(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	next := &failingProvider{err: ErrBlocked}
	p := WithBreaker(next, "test", 1, time.Hour, slog.New(slog.NewTextHandler(io.Discard, nil)))

	for range 3 {
		_, err := p.Complete(ctx, UserPrompt("sys", "hi"))
		assert.ErrorIs(t, err, ErrBlocked)
	}
	assert.Equal(t, 3, next.calls)
}
