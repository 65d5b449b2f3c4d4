package llm

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/teleagent/teleagent/internal/config"
)

// New builds the Provider selected by cfg.Provider. A positive
// cfg.CircuitFailures puts it behind a circuit breaker.
func New(ctx context.Context, cfg config.LLMConfig, log *slog.Logger) (Provider, error) {
	var (
		p   Provider
		err error
	)
	switch cfg.Provider {
	case "gemini":
		p, err = NewGemini(ctx, cfg, log)
	case "openai":
		p, err = NewOpenAI(cfg, log)
	default:
		return nil, fmt.Errorf("unknown llm provider %q", cfg.Provider)
	}
	if err != nil {
		return nil, err
	}
	if cfg.CircuitFailures > 0 {
		p = WithBreaker(p, cfg.Provider, cfg.CircuitFailures, cfg.CircuitCooldown, log)
	}
	return p, nil
}
