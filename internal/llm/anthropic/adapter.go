package anthropic

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

const defaultMaxTokens = 4096

func init() {
	llm.Register("anthropic", NewAdapter)
}

type Adapter struct {
	config config.ProviderConfig
	client *http.Client
}

func NewAdapter(config config.ProviderConfig) (llm.Provider, error) {
	if config.BaseURL == "" {
		config.BaseURL = "https://api.anthropic.com/v1"
	}
	return &Adapter{
		config: config,
		client: &http.Client{Timeout: 60 * time.Second},
	}, nil
}

func (a *Adapter) Name() string       { return a.config.ID }
func (a *Adapter) Type() string       { return "anthropic" }
func (a *Adapter) HasServerKey() bool { return a.config.APIKey != "" }

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type Request struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	System      string    `json:"system,omitempty"`
	MaxTokens   int       `json:"max_tokens"`
	Temperature float64   `json:"temperature,omitempty"`
}

type Response struct {
	ID         string    `json:"id"`
	Content    []Content `json:"content"`
	Model      string    `json:"model"`
	StopReason string    `json:"stop_reason"`
}

type Content struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

type errorResponse struct {
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

func (a *Adapter) headers(key string) map[string]string {
	version := a.config.Config["version"]
	if version == "" {
		version = "2023-06-01"
	}
	return map[string]string{
		"x-api-key":         key,
		"anthropic-version": version,
	}
}

func (a *Adapter) handleUpstreamError(err error) error {
	var upstreamErr *httpclient.UpstreamError
	if !errors.As(err, &upstreamErr) {
		return fmt.Errorf("%s: %w", a.config.ID, err)
	}
	var apiErr errorResponse
	if jsonErr := json.Unmarshal(upstreamErr.Body, &apiErr); jsonErr != nil || apiErr.Error.Message == "" {
		return fmt.Errorf("%s: %w", a.config.ID, err)
	}
	return fmt.Errorf("%s: %w: %s (%s)", a.config.ID, err, apiErr.Error.Message, apiErr.Error.Type)
}

func (a *Adapter) Complete(ctx context.Context, req *llm.CompletionRequest) (*llm.Completion, error) {
	key, err := llm.ResolveCredential(req.Credential, a.config.APIKey)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", a.config.ID, err)
	}

	body := Request{
		Model:       req.Model,
		System:      req.SystemPrompt,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
		Messages:    []Message{{Role: string(api.User), Content: req.Prompt}},
	}
	if body.MaxTokens == 0 {
		body.MaxTokens = defaultMaxTokens
	}

	url := fmt.Sprintf("%s/messages", strings.TrimRight(a.config.BaseURL, "/"))

	var resp Response
	if err := httpclient.SendRequest(ctx, a.client, http.MethodPost, url, a.headers(key), body, &resp); err != nil {
		return nil, a.handleUpstreamError(err)
	}

	return a.decode(&resp)
}

// decode joins the text blocks of the reply.
func (a *Adapter) decode(resp *Response) (*llm.Completion, error) {
	var sb strings.Builder
	for _, c := range resp.Content {
		if c.Type == "text" {
			sb.WriteString(c.Text)
		}
	}
	if strings.TrimSpace(sb.String()) == "" {
		return nil, llm.Malformed(a.config.ID, "no text content blocks")
	}
	return &llm.Completion{Text: sb.String(), Model: resp.Model}, nil
}

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
