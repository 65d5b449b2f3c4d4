package llm

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/teleagent/teleagent/internal/resilience"
)

// guarded routes every call of a Provider through a circuit breaker so that
// an unreachable backend fails fast instead of stalling each turn for the
// whole retry budget.
type guarded struct {
	next    Provider
	breaker *resilience.Breaker
}

// WithBreaker wraps p in a circuit breaker that opens after maxFailures
// consecutive upstream failures.
func WithBreaker(p Provider, name string, maxFailures int, cooldown time.Duration, log *slog.Logger) Provider {
	return &guarded{
		next: p,
		breaker: resilience.NewBreaker(resilience.BreakerConfig{
			Name:        name,
			MaxFailures: maxFailures,
			Cooldown:    cooldown,
			Ignore:      callerError,
			Logger:      log,
		}),
	}
}

// callerError reports errors caused by the request rather than the backend.
func callerError(err error) bool {
	return errors.Is(err, ErrBlocked) || errors.Is(err, ErrEmptyResponse) || errors.Is(err, ErrUnsupported)
}

func (g *guarded) Complete(ctx context.Context, req Request) (string, error) {
	var out string
	err := g.breaker.Execute(ctx, func(ctx context.Context) error {
		var err error
		out, err = g.next.Complete(ctx, req)
		return err
	})
	return out, err
}

func (g *guarded) CompleteJSON(ctx context.Context, req Request, schema *Schema, out any) error {
	return g.breaker.Execute(ctx, func(ctx context.Context) error {
		return g.next.CompleteJSON(ctx, req, schema, out)
	})
}

func (g *guarded) GenerateImage(ctx context.Context, prompt string) ([]byte, error) {
	var img []byte
	err := g.breaker.Execute(ctx, func(ctx context.Context) error {
		var err error
		img, err = g.next.GenerateImage(ctx, prompt)
		return err
	})
	return img, err
}
