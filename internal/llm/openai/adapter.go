package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/nulzo/content-gateway/internal/config"
	"github.com/nulzo/content-gateway/internal/httpclient"
	"github.com/nulzo/content-gateway/internal/llm"
	"github.com/nulzo/content-gateway/pkg/api"
)

func init() {
	llm.Register("openai", NewAdapter)
}

// Adapter speaks the OpenAI chat-completions protocol, which Groq, DeepSeek,
// Ollama and most hosted inference APIs also implement.
type Adapter struct {
	config config.ProviderConfig
	client *http.Client
}

func NewAdapter(config config.ProviderConfig) (llm.Provider, error) {
	if config.BaseURL == "" {
		config.BaseURL = "https://api.openai.com/v1"
	}
	return &Adapter{
		config: config,
		client: &http.Client{Timeout: 60 * time.Second},
	}, nil
}

func (a *Adapter) Name() string {
	return a.config.ID
}

func (a *Adapter) Type() string {
	return "openai"
}

func (a *Adapter) HasServerKey() bool {
	return a.config.APIKey != ""
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string    `json:"model"`
	Messages    []message `json:"messages"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
	Temperature float64   `json:"temperature,omitempty"`
	Stream      bool      `json:"stream"`
}

type chatResponse struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Choices []struct {
		Index        int      `json:"index"`
		Message      *message `json:"message"`
		FinishReason string   `json:"finish_reason"`
	} `json:"choices"`
}

// upstreamErrorResponse mirrors the standard OpenAI error shape
type upstreamErrorResponse struct {
	Error struct {
		Message string      `json:"message"`
		Type    string      `json:"type"`
		Code    interface{} `json:"code"`
	} `json:"error"`
}

func (a *Adapter) handleUpstreamError(err error) error {
	var upstreamErr *httpclient.UpstreamError
	if !errors.As(err, &upstreamErr) {
		return fmt.Errorf("%s: %w", a.config.ID, err)
	}

	var apiErr upstreamErrorResponse
	if jsonErr := json.Unmarshal(upstreamErr.Body, &apiErr); jsonErr != nil || apiErr.Error.Message == "" {
		return fmt.Errorf("%s: %w", a.config.ID, err)
	}

	return fmt.Errorf("%s: %w: %s (type=%s, code=%v)",
		a.config.ID, err, apiErr.Error.Message, apiErr.Error.Type, apiErr.Error.Code)
}

func (a *Adapter) headers(key string) map[string]string {
	headers := map[string]string{
		"Authorization": "Bearer " + key,
	}
	if org, ok := a.config.Config["organization"]; ok {
		headers["OpenAI-Organization"] = org
	}
	return headers
}

func (a *Adapter) Complete(ctx context.Context, req *llm.CompletionRequest) (*llm.Completion, error) {
	key, err := llm.ResolveCredential(req.Credential, a.config.APIKey)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", a.config.ID, err)
	}

	body := chatRequest{
		Model:       req.Model,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
	}
	if req.SystemPrompt != "" {
		body.Messages = append(body.Messages, message{Role: string(api.System), Content: req.SystemPrompt})
	}
	body.Messages = append(body.Messages, message{Role: string(api.User), Content: req.Prompt})

	url := fmt.Sprintf("%s/chat/completions", strings.TrimRight(a.config.BaseURL, "/"))

	var resp chatResponse
	if err := httpclient.SendRequest(ctx, a.client, http.MethodPost, url, a.headers(key), body, &resp); err != nil {
		return nil, a.handleUpstreamError(err)
	}

	return a.decode(&resp)
}

// decode extracts choices[0].message.content.
func (a *Adapter) decode(resp *chatResponse) (*llm.Completion, error) {
	if len(resp.Choices) == 0 {
		return nil, llm.Malformed(a.config.ID, "no choices")
	}
	msg := resp.Choices[0].Message
	if msg == nil {
		return nil, llm.Malformed(a.config.ID, "choice has no message")
	}
	if strings.TrimSpace(msg.Content) == "" {
		return nil, llm.Malformed(a.config.ID, "empty message content")
	}
	return &llm.Completion{Text: msg.Content, Model: resp.Model}, nil
}

// Health lists models with the server key. Without one there is nothing to probe.
func (a *Adapter) Health(ctx context.Context) error {
	if !a.HasServerKey() {
		return nil
	}

	url := fmt.Sprintf("%s/models", strings.TrimRight(a.config.BaseURL, "/"))
	if err := httpclient.SendRequest(ctx, a.client, http.MethodGet, url, a.headers(a.config.APIKey), nil, nil); err != nil {
		return a.handleUpstreamError(err)
	}
	return nil
}
