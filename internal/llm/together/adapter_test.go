package together_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/nulzo/content-gateway/internal/config"
	"github.com/nulzo/content-gateway/internal/llm"
	"github.com/nulzo/content-gateway/internal/llm/together"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type adapter interface {
	llm.Completer
	llm.ImageGenerator
}

func newAdapter(t *testing.T, baseURL, apiKey string) adapter {
	t.Helper()
	p, err := together.NewAdapter(config.ProviderConfig{ID: "together-test", Type: "together", APIKey: apiKey, BaseURL: baseURL})
	require.NoError(t, err)
	a, ok := p.(adapter)
	require.True(t, ok)
	return a
}

func TestComplete(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/completions", r.URL.Path)
		assert.Equal(t, "Bearer caller-key", r.Header.Get("Authorization"))

		var body map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		prompt := body["prompt"].(string)
		assert.Contains(t, prompt, "<<SYS>>\nWrite HTML.\n<</SYS>>")
		assert.Contains(t, prompt, "Ten tips for remote teams [/INST]")

		_, _ = w.Write([]byte(`{"id": "c1", "model": "llama-2", "choices": [{"text": "  Fallback answer\n"}]}`))
	}))
	defer server.Close()

	resp, err := newAdapter(t, server.URL, "").Complete(context.Background(), &llm.CompletionRequest{
		Model:        "togethercomputer/llama-2-70b-chat",
		SystemPrompt: "Write HTML.",
		Prompt:       "Ten tips for remote teams",
		Credential:   "caller-key",
	})
	require.NoError(t, err)
	assert.Equal(t, "Fallback answer", resp.Text)
}

func TestComplete_Malformed(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"choices": [{"text": ""}]}`))
	}))
	defer server.Close()

	_, err := newAdapter(t, server.URL, "k").Complete(context.Background(), &llm.CompletionRequest{Model: "m", Prompt: "p"})
	assert.ErrorIs(t, err, llm.ErrMalformedResponse)
}

func TestGenerateImage(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/images/generations", r.URL.Path)
		assert.Equal(t, "Bearer server-key", r.Header.Get("Authorization"))

		var body map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "base64", body["response_format"])
		assert.EqualValues(t, 1024, body["width"])
		assert.EqualValues(t, 768, body["height"])

		_, _ = w.Write([]byte(`{"id": "img-1", "data": [{"index": 0, "b64_json": "QUJD"}]}`))
	}))
	defer server.Close()

	img, err := newAdapter(t, server.URL, "server-key").GenerateImage(context.Background(), &llm.ImageRequest{
		Model:  "black-forest-labs/FLUX.1-schnell",
		Prompt: "a lighthouse at dusk",
		Width:  1024,
		Height: 768,
	})
	require.NoError(t, err)
	assert.Equal(t, "data:image/jpeg;base64,QUJD", img.DataURL())
}

func TestGenerateImage_Malformed(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data": []}`))
	}))
	defer server.Close()

	_, err := newAdapter(t, server.URL, "k").GenerateImage(context.Background(), &llm.ImageRequest{Model: "m", Prompt: "p"})
	assert.ErrorIs(t, err, llm.ErrMalformedResponse)
}

func TestGenerateImage_UpstreamError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error": {"message": "invalid model", "type": "invalid_request_error"}}`))
	}))
	defer server.Close()

	_, err := newAdapter(t, server.URL, "k").GenerateImage(context.Background(), &llm.ImageRequest{Model: "m", Prompt: "p"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid model")
}
