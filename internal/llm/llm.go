// Package llm defines the language model and image generation interfaces
// used by teleagent, with Gemini and OpenAI backends.
package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

var (
	// ErrUnsupported is returned when a backend lacks a capability.
	ErrUnsupported = errors.New("operation not supported by llm provider")
	// ErrEmptyResponse is returned when the model produced no usable text.
	ErrEmptyResponse = errors.New("empty llm response")
	// ErrBlocked is returned when the provider refused the prompt.
	ErrBlocked = errors.New("llm request blocked")
)

// Role is the author of a conversation message.
type Role string

// Conversation roles.
const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one turn of a conversation sent to the model.
type Message struct {
	Role Role
	// Name optionally identifies the speaker in multi-party chats.
	Name    string
	Content string
}

// Request is a provider-neutral completion request.
type Request struct {
	System   string
	Messages []Message
	// Temperature overrides the configured temperature when set.
	Temperature *float32
}

// UserPrompt builds a request with a system instruction and one user message.
func UserPrompt(system, prompt string) Request {
	return Request{System: system, Messages: []Message{{Role: RoleUser, Content: prompt}}}
}

// Client generates text.
type Client interface {
	Complete(ctx context.Context, req Request) (string, error)
	// CompleteJSON asks for output matching schema and decodes it into out.
	CompleteJSON(ctx context.Context, req Request, schema *Schema, out any) error
}

// ImageGenerator renders an image from a prompt and returns PNG bytes.
type ImageGenerator interface {
	GenerateImage(ctx context.Context, prompt string) ([]byte, error)
}

// Provider is a backend offering both text and images.
type Provider interface {
	Client
	ImageGenerator
}

// Float32 returns a pointer to v, for Request.Temperature.
func Float32(v float32) *float32 { return &v }

// retrier runs vendor calls again when they fail with a retriable error.
type retrier struct {
	log        *slog.Logger
	maxRetries int
	delay      time.Duration
	retriable  func(error) (code int, ok bool)
}

func (r retrier) do(ctx context.Context, op string, call func() error) error {
	var err error
	for i := 0; i <= r.maxRetries; i++ {
		if err = call(); err == nil {
			return nil
		}

		code, ok := r.retriable(err)
		if !ok {
			r.log.ErrorContext(ctx, "LLM call failed with non-retriable error", "operation", op, "error", err)
			return fmt.Errorf("%s failed: %w", op, err)
		}
		if i == r.maxRetries {
			break
		}

		r.log.WarnContext(ctx, "Retrying LLM call after retriable error", "operation", op, "attempt", i+1, "max_retries", r.maxRetries, "code", code, "delay", r.delay)
		select {
		case <-ctx.Done():
			return fmt.Errorf("%s cancelled while retrying: %w", op, ctx.Err())
		case <-time.After(r.delay):
		}
	}

	r.log.ErrorContext(ctx, "LLM call failed after max retries", "operation", op, "error", err)
	return fmt.Errorf("%s failed after %d retries: %w", op, r.maxRetries, err)
}

func retriableStatus(code int) bool {
	return code == 429 || code == 500 || code == 503
}

// speakerName makes a name acceptable as a chat message author.
func speakerName(name string) string {
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == '-':
			b.WriteRune(r)
		case r == ' ':
			b.WriteRune('_')
		}
	}
	s := b.String()
	if len(s) > 64 {
		s = s[:64]
	}
	return s
}
