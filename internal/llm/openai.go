package llm

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/teleagent/teleagent/internal/config"
	"github.com/teleagent/teleagent/internal/text"
)

type openaiProvider struct {
	client      *openai.Client
	log         *slog.Logger
	model       string
	imageModel  string
	temperature float32
	retry       retrier
}

// NewOpenAI creates a Provider backed by an OpenAI compatible API. BaseURL
// may point at any compatible endpoint.
func NewOpenAI(cfg config.LLMConfig, log *slog.Logger) (Provider, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openai API key is required")
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}

	logger := log.With("component", "openai_client")
	logger.Info("OpenAI client initialized successfully", "model", cfg.Model, "image_model", cfg.ImageModel)
	return &openaiProvider{
		client:      openai.NewClientWithConfig(clientCfg),
		log:         logger,
		model:       cfg.Model,
		imageModel:  cfg.ImageModel,
		temperature: cfg.Temperature,
		retry: retrier{
			log:        logger,
			maxRetries: cfg.MaxRetries,
			delay:      cfg.RetryDelay,
			retriable:  openaiRetriable,
		},
	}, nil
}

func openaiRetriable(err error) (int, bool) {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) && retriableStatus(apiErr.HTTPStatusCode) {
		return apiErr.HTTPStatusCode, true
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) && retriableStatus(reqErr.HTTPStatusCode) {
		return reqErr.HTTPStatusCode, true
	}
	return 0, false
}

func (o *openaiProvider) buildRequest(req Request) openai.ChatCompletionRequest {
	msgs := make([]openai.ChatCompletionMessage, 0, len(req.Messages)+1)
	if req.System != "" {
		msgs = append(msgs, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: req.System})
	}
	for _, m := range req.Messages {
		role := openai.ChatMessageRoleUser
		if m.Role == RoleAssistant {
			role = openai.ChatMessageRoleAssistant
		}
		msgs = append(msgs, openai.ChatCompletionMessage{Role: role, Name: speakerName(m.Name), Content: m.Content})
	}

	temperature := o.temperature
	if req.Temperature != nil {
		temperature = *req.Temperature
	}
	return openai.ChatCompletionRequest{
		Model:       o.model,
		Messages:    msgs,
		Temperature: temperature,
	}
}

func (o *openaiProvider) chat(ctx context.Context, op string, req openai.ChatCompletionRequest) (string, error) {
	var resp openai.ChatCompletionResponse
	err := o.retry.do(ctx, op, func() error {
		var err error
		resp, err = o.client.CreateChatCompletion(ctx, req)
		return err
	})
	if err != nil {
		return "", err
	}

	if len(resp.Choices) == 0 {
		o.log.WarnContext(ctx, "OpenAI response has no choices", "operation", op)
		return "", fmt.Errorf("%s: %w", op, ErrEmptyResponse)
	}
	choice := resp.Choices[0]
	if choice.FinishReason == openai.FinishReasonContentFilter {
		return "", fmt.Errorf("%w: content filter", ErrBlocked)
	}
	if choice.Message.Refusal != "" {
		return "", fmt.Errorf("%w: %s", ErrBlocked, choice.Message.Refusal)
	}

	clean := text.StripHistoryPrefix(choice.Message.Content)
	if clean == "" {
		o.log.WarnContext(ctx, "OpenAI response text is empty after stripping prefixes", "operation", op, "finish_reason", choice.FinishReason)
		return "", fmt.Errorf("%s: %w", op, ErrEmptyResponse)
	}
	return clean, nil
}

func (o *openaiProvider) Complete(ctx context.Context, req Request) (string, error) {
	r := o.buildRequest(req)
	o.log.DebugContext(ctx, "Generating completion", "message_count", len(r.Messages))
	return o.chat(ctx, "openai completion", r)
}

func (o *openaiProvider) CompleteJSON(ctx context.Context, req Request, schema *Schema, out any) error {
	r := o.buildRequest(req)
	r.ResponseFormat = &openai.ChatCompletionResponseFormat{
		Type: openai.ChatCompletionResponseFormatTypeJSONSchema,
		JSONSchema: &openai.ChatCompletionResponseFormatJSONSchema{
			Name:   "response",
			Schema: schema,
			Strict: true,
		},
	}

	raw, err := o.chat(ctx, "openai json completion", r)
	if err != nil {
		return err
	}
	if err := json.Unmarshal([]byte(text.ExtractJSON(raw)), out); err != nil {
		o.log.ErrorContext(ctx, "Failed to parse JSON from OpenAI response", "error", err, "response_text", text.Truncate(raw, 500))
		return fmt.Errorf("invalid JSON received: %w", err)
	}
	return nil
}

func (o *openaiProvider) GenerateImage(ctx context.Context, prompt string) ([]byte, error) {
	model := o.imageModel
	if model == "" {
		model = openai.CreateImageModelDallE3
	}

	var resp openai.ImageResponse
	err := o.retry.do(ctx, "openai image generation", func() error {
		var err error
		resp, err = o.client.CreateImage(ctx, openai.ImageRequest{
			Prompt:         prompt,
			Model:          model,
			N:              1,
			Size:           openai.CreateImageSize1024x1024,
			ResponseFormat: openai.CreateImageResponseFormatB64JSON,
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	if len(resp.Data) == 0 || resp.Data[0].B64JSON == "" {
		return nil, fmt.Errorf("openai image generation: %w", ErrEmptyResponse)
	}
	img, err := base64.StdEncoding.DecodeString(resp.Data[0].B64JSON)
	if err != nil {
		return nil, fmt.Errorf("failed to decode generated image: %w", err)
	}
	return img, nil
}
