package llm_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teleagent/teleagent/internal/config"
	"github.com/teleagent/teleagent/internal/llm"
)

func newGemini(t *testing.T, handler http.HandlerFunc) llm.Provider {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	p, err := llm.NewGemini(context.Background(), config.LLMConfig{
		Provider:    "gemini",
		APIKey:      "test-key",
		BaseURL:     srv.URL,
		Model:       "gemini-test",
		Temperature: 0.7,
		MaxRetries:  2,
	}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	return p
}

func geminiReply(w http.ResponseWriter, text string) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"candidates": []map[string]any{{
			"content":      map[string]any{"role": "model", "parts": []map[string]any{{"text": text}}},
			"finishReason": "STOP",
		}},
		"promptFeedback": map[string]any{"safetyRatings": []any{}},
	})
}

func geminiError(w http.ResponseWriter, code int, status string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]any{"code": code, "message": strings.ToLower(status), "status": status},
	})
}

func TestGeminiComplete(t *testing.T) {
	t.Parallel()

	var got map[string]any
	p := newGemini(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.True(t, strings.HasSuffix(r.URL.Path, "/models/gemini-test:generateContent"), r.URL.Path)
		assert.Equal(t, "test-key", r.Header.Get("x-goog-api-key"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		geminiReply(w, "[2024-01-01 10:00:00] UID 42: Hello there")
	})

	out, err := p.Complete(context.Background(), llm.Request{
		System: "be nice",
		Messages: []llm.Message{
			{Role: llm.RoleUser, Name: "Alice", Content: "hi"},
			{Role: llm.RoleAssistant, Content: "hello"},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "Hello there", out)

	contents := got["contents"].([]any)
	require.Len(t, contents, 2)
	first := contents[0].(map[string]any)
	assert.Equal(t, "user", first["role"])
	assert.Equal(t, "Alice: hi", first["parts"].([]any)[0].(map[string]any)["text"])
	assert.Equal(t, "model", contents[1].(map[string]any)["role"])
	assert.Contains(t, got, "systemInstruction")
}

func TestGeminiCompleteJSON(t *testing.T) {
	t.Parallel()

	var generation map[string]any
	p := newGemini(t, func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		generation, _ = body["generationConfig"].(map[string]any)
		geminiReply(w, "```json\n{\"emotion\":\"negative\"}\n```")
	})

	var out struct {
		Emotion string `json:"emotion"`
	}
	schema := llm.Object(llm.Field("emotion", llm.Enum("", "positive", "negative")))
	err := p.CompleteJSON(context.Background(), llm.UserPrompt("sys", "classify"), schema, &out)
	require.NoError(t, err)
	assert.Equal(t, "negative", out.Emotion)
	require.NotNil(t, generation)
	assert.Equal(t, "application/json", generation["responseMimeType"])
	assert.Contains(t, generation, "responseSchema")
}

func TestGeminiCompleteJSONInvalid(t *testing.T) {
	t.Parallel()

	p := newGemini(t, func(w http.ResponseWriter, _ *http.Request) {
		geminiReply(w, "not json at all")
	})

	var out map[string]any
	err := p.CompleteJSON(context.Background(), llm.UserPrompt("sys", "classify"), llm.Object(), &out)
	assert.ErrorContains(t, err, "invalid JSON")
}

func TestGeminiRetriesServerErrors(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	p := newGemini(t, func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) < 3 {
			geminiError(w, http.StatusServiceUnavailable, "UNAVAILABLE")
			return
		}
		geminiReply(w, "finally")
	})

	out, err := p.Complete(context.Background(), llm.UserPrompt("", "hi"))
	require.NoError(t, err)
	assert.Equal(t, "finally", out)
	assert.Equal(t, int32(3), calls.Load())
}

func TestGeminiGivesUpAfterMaxRetries(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	p := newGemini(t, func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		geminiError(w, http.StatusInternalServerError, "INTERNAL")
	})

	_, err := p.Complete(context.Background(), llm.UserPrompt("", "hi"))
	assert.ErrorContains(t, err, "after 2 retries")
	assert.Equal(t, int32(3), calls.Load())
}

func TestGeminiDoesNotRetryClientErrors(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	p := newGemini(t, func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		geminiError(w, http.StatusBadRequest, "INVALID_ARGUMENT")
	})

	_, err := p.Complete(context.Background(), llm.UserPrompt("", "hi"))
	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())
}

func TestGeminiBlockedPrompt(t *testing.T) {
	t.Parallel()

	p := newGemini(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"promptFeedback":{"blockReason":"SAFETY"}}`)
	})

	_, err := p.Complete(context.Background(), llm.UserPrompt("", "hi"))
	assert.ErrorIs(t, err, llm.ErrBlocked)
}

func TestGeminiImageNeedsModel(t *testing.T) {
	t.Parallel()

	p := newGemini(t, func(w http.ResponseWriter, _ *http.Request) {
		t.Error("no request expected")
	})

	_, err := p.GenerateImage(context.Background(), "a fox")
	assert.ErrorIs(t, err, llm.ErrUnsupported)
}
