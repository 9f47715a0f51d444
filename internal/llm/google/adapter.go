package google

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/nulzo/content-gateway/internal/config"
	"github.com/nulzo/content-gateway/internal/httpclient"
	"github.com/nulzo/content-gateway/internal/llm"
	"github.com/nulzo/content-gateway/pkg/api"
)

const pn string = "google"

func init() {
	llm.Register(pn, NewAdapter)
}

type Adapter struct {
	config config.ProviderConfig
	client *http.Client
}

func NewAdapter(config config.ProviderConfig) (llm.Provider, error) {
	if config.BaseURL == "" {
		config.BaseURL = "https://generativelanguage.googleapis.com/v1beta"
	}
	return &Adapter{
		config: config,
		client: &http.Client{Timeout: 60 * time.Second},
	}, nil
}

func (a *Adapter) Name() string       { return a.config.ID }
func (a *Adapter) Type() string       { return pn }
func (a *Adapter) HasServerKey() bool { return a.config.APIKey != "" }

type GeminiPart struct {
	Text string `json:"text,omitempty"`
}

type GeminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []GeminiPart `json:"parts"`
}

type GenerationConfig struct {
	MaxOutputTokens int     `json:"maxOutputTokens,omitempty"`
	Temperature     float64 `json:"temperature,omitempty"`
}

type GeminiRequest struct {
	SystemInstruction *GeminiContent   `json:"systemInstruction,omitempty"`
	Contents          []GeminiContent  `json:"contents"`
	GenerationConfig  GenerationConfig `json:"generationConfig"`
}

type GeminiCandidate struct {
	Content      GeminiContent `json:"content"`
	FinishReason string        `json:"finishReason"`
}

type GeminiResponse struct {
	Candidates   []GeminiCandidate `json:"candidates"`
	ModelVersion string            `json:"modelVersion"`
}

// Shape maps a completion request onto generateContent.
func Shape(req *llm.CompletionRequest) GeminiRequest {
	gr := GeminiRequest{
		Contents: []GeminiContent{{
			Role:  string(api.User),
			Parts: []GeminiPart{{Text: req.Prompt}},
		}},
		GenerationConfig: GenerationConfig{
			MaxOutputTokens: req.MaxTokens,
			Temperature:     req.Temperature,
		},
	}
	if req.SystemPrompt != "" {
		gr.SystemInstruction = &GeminiContent{Parts: []GeminiPart{{Text: req.SystemPrompt}}}
	}
	return gr
}

func (a *Adapter) endpoint(model, method string) string {
	return fmt.Sprintf("%s/models/%s:%s",
		strings.TrimRight(a.config.BaseURL, "/"),
		url.PathEscape(model),
		method,
	)
}

func (a *Adapter) Complete(ctx context.Context, req *llm.CompletionRequest) (*llm.Completion, error) {
	key, err := llm.ResolveCredential(req.Credential, a.config.APIKey)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", a.config.ID, err)
	}

	// header auth keeps the key out of logged URLs
	headers := map[string]string{"x-goog-api-key": key}

	var gResp GeminiResponse
	if err := httpclient.SendRequest(ctx, a.client, http.MethodPost, a.endpoint(req.Model, "generateContent"), headers, Shape(req), &gResp); err != nil {
		var upstreamErr *httpclient.UpstreamError
		if errors.As(err, &upstreamErr) {
			return nil, fmt.Errorf("%s: %w: %s", a.config.ID, err, strings.TrimSpace(string(upstreamErr.Body)))
		}
		return nil, fmt.Errorf("%s: %w", a.config.ID, err)
	}

	return a.decode(&gResp)
}

// decode extracts candidates[0].content.parts[*].text.
func (a *Adapter) decode(resp *GeminiResponse) (*llm.Completion, error) {
	if len(resp.Candidates) == 0 {
		return nil, llm.Malformed(a.config.ID, "no candidates")
	}
	var sb strings.Builder
	for _, p := range resp.Candidates[0].Content.Parts {
		sb.WriteString(p.Text)
	}
	if strings.TrimSpace(sb.String()) == "" {
		return nil, llm.Malformed(a.config.ID, "candidate has no text")
	}
	return &llm.Completion{Text: sb.String(), Model: resp.ModelVersion}, nil
}

func (a *Adapter) Health(ctx context.Context) error {
	if !a.HasServerKey() {
		return nil
	}
	headers := map[string]string{"x-goog-api-key": a.config.APIKey}
	u := fmt.Sprintf("%s/models", strings.TrimRight(a.config.BaseURL, "/"))
	if err := httpclient.SendRequest(ctx, a.client, http.MethodGet, u, headers, nil, nil); err != nil {
		return fmt.Errorf("%s: %w", a.config.ID, err)
	}
	return nil
}
