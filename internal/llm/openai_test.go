package llm_test

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teleagent/teleagent/internal/config"
	"github.com/teleagent/teleagent/internal/llm"
)

func newOpenAI(t *testing.T, handler http.HandlerFunc) llm.Provider {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	p, err := llm.NewOpenAI(config.LLMConfig{
		Provider:    "openai",
		APIKey:      "test-key",
		BaseURL:     srv.URL + "/v1",
		Model:       "gpt-test",
		Temperature: 0.5,
		MaxRetries:  2,
	}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	return p
}

func chatReply(w http.ResponseWriter, content string) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"id":     "chatcmpl-1",
		"object": "chat.completion",
		"model":  "gpt-test",
		"choices": []map[string]any{{
			"index":         0,
			"finish_reason": "stop",
			"message":       map[string]any{"role": "assistant", "content": content},
		}},
	})
}

func TestOpenAIComplete(t *testing.T) {
	t.Parallel()

	var got map[string]any
	p := newOpenAI(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		chatReply(w, "[2024-01-01 10:00:00] UID 42: Hello there")
	})

	out, err := p.Complete(context.Background(), llm.Request{
		System:   "be nice",
		Messages: []llm.Message{{Role: llm.RoleUser, Name: "Alice Smith", Content: "hi"}},
	})
	require.NoError(t, err)
	assert.Equal(t, "Hello there", out)

	msgs := got["messages"].([]any)
	require.Len(t, msgs, 2)
	assert.Equal(t, "system", msgs[0].(map[string]any)["role"])
	assert.Equal(t, "Alice_Smith", msgs[1].(map[string]any)["name"])
	assert.InDelta(t, 0.5, got["temperature"], 1e-6)
}

func TestOpenAICompleteJSON(t *testing.T) {
	t.Parallel()

	var format map[string]any
	p := newOpenAI(t, func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		format = body["response_format"].(map[string]any)
		chatReply(w, "```json\n{\"emotion\":\"positive\"}\n```")
	})

	var out struct {
		Emotion string `json:"emotion"`
	}
	schema := llm.Object(llm.Field("emotion", llm.Enum("", "positive", "negative")))
	err := p.CompleteJSON(context.Background(), llm.UserPrompt("sys", "classify"), schema, &out)
	require.NoError(t, err)
	assert.Equal(t, "positive", out.Emotion)
	assert.Equal(t, "json_schema", format["type"])
	js := format["json_schema"].(map[string]any)
	assert.Equal(t, true, js["strict"])
	assert.Equal(t, "object", js["schema"].(map[string]any)["type"])
}

func TestOpenAIRetriesServerErrors(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	p := newOpenAI(t, func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) < 3 {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = io.WriteString(w, `{"error":{"message":"overloaded","type":"server_error"}}`)
			return
		}
		chatReply(w, "finally")
	})

	out, err := p.Complete(context.Background(), llm.UserPrompt("", "hi"))
	require.NoError(t, err)
	assert.Equal(t, "finally", out)
	assert.Equal(t, int32(3), calls.Load())
}

func TestOpenAIDoesNotRetryClientErrors(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	p := newOpenAI(t, func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = io.WriteString(w, `{"error":{"message":"bad request","type":"invalid_request_error"}}`)
	})

	_, err := p.Complete(context.Background(), llm.UserPrompt("", "hi"))
	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())
}

func TestOpenAIEmptyReply(t *testing.T) {
	t.Parallel()

	p := newOpenAI(t, func(w http.ResponseWriter, _ *http.Request) {
		chatReply(w, "   ")
	})

	_, err := p.Complete(context.Background(), llm.UserPrompt("", "hi"))
	assert.ErrorIs(t, err, llm.ErrEmptyResponse)
}

func TestOpenAIGenerateImage(t *testing.T) {
	t.Parallel()

	png := []byte("\x89PNG\r\n\x1a\nimage")
	p := newOpenAI(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/images/generations", r.URL.Path)
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "b64_json", body["response_format"])
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"created": 1,
			"data":    []map[string]any{{"b64_json": base64.StdEncoding.EncodeToString(png)}},
		})
	})

	img, err := p.GenerateImage(context.Background(), "a cat facing right")
	require.NoError(t, err)
	assert.Equal(t, png, img)
}

func TestNewUnknownProvider(t *testing.T) {
	t.Parallel()

	_, err := llm.New(context.Background(), config.LLMConfig{Provider: "nope", APIKey: "k"}, slog.Default())
	assert.Error(t, err)
}
