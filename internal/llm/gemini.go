package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"google.golang.org/genai"

	"github.com/teleagent/teleagent/internal/config"
	"github.com/teleagent/teleagent/internal/text"
)

type geminiProvider struct {
	client     *genai.Client
	log        *slog.Logger
	baseConfig *genai.GenerateContentConfig
	model      string
	imageModel string
	retry      retrier
}

// NewGemini creates a Provider backed by the Gemini API. Image generation
// uses Imagen through the same client.
func NewGemini(ctx context.Context, cfg config.LLMConfig, log *slog.Logger) (Provider, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}

	clientCfg := &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if cfg.BaseURL != "" {
		clientCfg.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.BaseURL}
	}
	gi, err := genai.NewClient(ctx, clientCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}

	temperature := cfg.Temperature
	baseCfg := &genai.GenerateContentConfig{
		Temperature: &temperature,
		SafetySettings: []*genai.SafetySetting{
			{Category: genai.HarmCategoryHarassment, Threshold: genai.HarmBlockThresholdBlockNone},
			{Category: genai.HarmCategoryHateSpeech, Threshold: genai.HarmBlockThresholdBlockNone},
			{Category: genai.HarmCategorySexuallyExplicit, Threshold: genai.HarmBlockThresholdBlockNone},
			{Category: genai.HarmCategoryDangerousContent, Threshold: genai.HarmBlockThresholdBlockNone},
		},
	}

	logger := log.With("component", "gemini_client")
	logger.Info("Gemini client initialized successfully", "model", cfg.Model, "image_model", cfg.ImageModel)
	return &geminiProvider{
		client:     gi,
		log:        logger,
		baseConfig: baseCfg,
		model:      cfg.Model,
		imageModel: cfg.ImageModel,
		retry: retrier{
			log:        logger,
			maxRetries: cfg.MaxRetries,
			delay:      cfg.RetryDelay,
			retriable: func(err error) (int, bool) {
				code := geminiStatus(err)
				return code, retriableStatus(code)
			},
		},
	}, nil
}

// geminiStatus returns the HTTP status of a genai API error, or 0. The
// client returns APIError by value.
func geminiStatus(err error) int {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) && apiErrPtr != nil {
		return apiErrPtr.Code
	}
	return 0
}

func (g *geminiProvider) buildRequest(req Request) ([]*genai.Content, *genai.GenerateContentConfig) {
	cfg := *g.baseConfig
	if req.Temperature != nil {
		t := *req.Temperature
		cfg.Temperature = &t
	}
	if req.System != "" {
		cfg.SystemInstruction = &genai.Content{Parts: []*genai.Part{{Text: req.System}}}
	}

	contents := make([]*genai.Content, 0, len(req.Messages))
	for _, m := range req.Messages {
		var role genai.Role = genai.RoleUser
		if m.Role == RoleAssistant {
			role = genai.RoleModel
		}
		content := m.Content
		if m.Name != "" && m.Role == RoleUser {
			content = m.Name + ": " + content
		}
		contents = append(contents, genai.NewContentFromText(content, role))
	}
	return contents, &cfg
}

func (g *geminiProvider) generate(ctx context.Context, op string, contents []*genai.Content, cfg *genai.GenerateContentConfig) (string, error) {
	var resp *genai.GenerateContentResponse
	err := g.retry.do(ctx, op, func() error {
		var err error
		resp, err = g.client.Models.GenerateContent(ctx, g.model, contents, cfg)
		return err
	})
	if err != nil {
		return "", err
	}
	return g.extractText(ctx, op, resp)
}

func (g *geminiProvider) Complete(ctx context.Context, req Request) (string, error) {
	contents, cfg := g.buildRequest(req)
	g.log.DebugContext(ctx, "Generating completion", "message_count", len(contents))
	return g.generate(ctx, "gemini completion", contents, cfg)
}

func (g *geminiProvider) CompleteJSON(ctx context.Context, req Request, schema *Schema, out any) error {
	contents, cfg := g.buildRequest(req)
	cfg.ResponseMIMEType = "application/json"
	cfg.ResponseSchema = schema.ToGenai()

	raw, err := g.generate(ctx, "gemini json completion", contents, cfg)
	if err != nil {
		return err
	}
	if err := json.Unmarshal([]byte(text.ExtractJSON(raw)), out); err != nil {
		g.log.ErrorContext(ctx, "Failed to parse JSON from Gemini response", "error", err, "response_text", text.Truncate(raw, 500))
		return fmt.Errorf("invalid JSON received: %w", err)
	}
	return nil
}

func (g *geminiProvider) GenerateImage(ctx context.Context, prompt string) ([]byte, error) {
	if g.imageModel == "" {
		return nil, fmt.Errorf("%w: no image model configured", ErrUnsupported)
	}

	var resp *genai.GenerateImagesResponse
	err := g.retry.do(ctx, "gemini image generation", func() error {
		var err error
		resp, err = g.client.Models.GenerateImages(ctx, g.imageModel, prompt, &genai.GenerateImagesConfig{
			NumberOfImages: 1,
			OutputMIMEType: "image/png",
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	if resp == nil || len(resp.GeneratedImages) == 0 || resp.GeneratedImages[0].Image == nil {
		return nil, fmt.Errorf("gemini image generation: %w", ErrEmptyResponse)
	}
	img := resp.GeneratedImages[0]
	if len(img.Image.ImageBytes) == 0 {
		if img.RAIFilteredReason != "" {
			return nil, fmt.Errorf("%w: %s", ErrBlocked, img.RAIFilteredReason)
		}
		return nil, fmt.Errorf("gemini image generation: %w", ErrEmptyResponse)
	}
	return img.Image.ImageBytes, nil
}

func (g *geminiProvider) extractText(ctx context.Context, op string, resp *genai.GenerateContentResponse) (string, error) {
	if fb := resp.PromptFeedback; fb != nil && fb.BlockReason != "" && fb.BlockReason != genai.BlockedReasonUnspecified {
		reasonMsg := fmt.Sprintf("%v", resp.PromptFeedback.BlockReason)
		if resp.PromptFeedback.BlockReasonMessage != "" {
			reasonMsg = resp.PromptFeedback.BlockReasonMessage
		}
		g.log.ErrorContext(ctx, "Gemini request blocked", "operation", op, "reason", reasonMsg)
		return "", fmt.Errorf("%w: %s", ErrBlocked, reasonMsg)
	}

	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		finishReason := "unknown"
		if len(resp.Candidates) > 0 && resp.Candidates[0].FinishReason != genai.FinishReasonUnspecified {
			finishReason = fmt.Sprintf("%v", resp.Candidates[0].FinishReason)
		}
		g.log.WarnContext(ctx, "Gemini response missing candidates or content", "operation", op, "finish_reason", finishReason)
		return "", fmt.Errorf("%s: %w (finish reason %s)", op, ErrEmptyResponse, finishReason)
	}

	clean := text.StripHistoryPrefix(resp.Text())
	if clean == "" {
		g.log.WarnContext(ctx, "Gemini response text is empty after stripping prefixes", "operation", op)
		return "", fmt.Errorf("%s: %w", op, ErrEmptyResponse)
	}
	return clean, nil
}
