package together

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
)

const pn string = "together"

func init() {
	llm.Register(pn, NewAdapter)
}

// Adapter calls Together AI's raw completion and image endpoints.
type Adapter struct {
	config config.ProviderConfig
	client *http.Client
}

func NewAdapter(config config.ProviderConfig) (llm.Provider, error) {
	if config.BaseURL == "" {
		config.BaseURL = "https://api.together.xyz/v1"
	}
	return &Adapter{
		config: config,
		client: &http.Client{Timeout: 120 * time.Second},
	}, nil
}

func (a *Adapter) Name() string       { return a.config.ID }
func (a *Adapter) Type() string       { return pn }
func (a *Adapter) HasServerKey() bool { return a.config.APIKey != "" }

type completionRequest struct {
	Model       string   `json:"model"`
	Prompt      string   `json:"prompt"`
	MaxTokens   int      `json:"max_tokens,omitempty"`
	Temperature float64  `json:"temperature,omitempty"`
	Stop        []string `json:"stop,omitempty"`
}

type completionResponse struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Choices []struct {
		Text         string `json:"text"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
}

type imageRequest struct {
	Model          string `json:"model"`
	Prompt         string `json:"prompt"`
	Width          int    `json:"width,omitempty"`
	Height         int    `json:"height,omitempty"`
	N              int    `json:"n"`
	ResponseFormat string `json:"response_format"`
}

type imageResponse struct {
	ID   string `json:"id"`
	Data []struct {
		Index   int    `json:"index"`
		B64JSON string `json:"b64_json"`
		URL     string `json:"url"`
	} `json:"data"`
}

type upstreamErrorResponse struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
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
	return fmt.Errorf("%s: %w: %s", a.config.ID, err, apiErr.Error.Message)
}

func (a *Adapter) url(path string) string {
	return fmt.Sprintf("%s/%s", strings.TrimRight(a.config.BaseURL, "/"), path)
}

// instructPrompt frames the prompt with the Llama chat template the hosted
// chat models were tuned on.
func instructPrompt(system, prompt string) string {
	if system == "" {
		return fmt.Sprintf("[INST] %s [/INST]", prompt)
	}
	return fmt.Sprintf("[INST] <<SYS>>\n%s\n<</SYS>>\n\n%s [/INST]", system, prompt)
}

func (a *Adapter) Complete(ctx context.Context, req *llm.CompletionRequest) (*llm.Completion, error) {
	key, err := llm.ResolveCredential(req.Credential, a.config.APIKey)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", a.config.ID, err)
	}

	body := completionRequest{
		Model:       req.Model,
		Prompt:      instructPrompt(req.SystemPrompt, req.Prompt),
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
		Stop:        []string{"[INST]", "</s>"},
	}

	var resp completionResponse
	headers := map[string]string{"Authorization": "Bearer " + key}
	if err := httpclient.SendRequest(ctx, a.client, http.MethodPost, a.url("completions"), headers, body, &resp); err != nil {
		return nil, a.handleUpstreamError(err)
	}

	return a.decodeCompletion(&resp)
}

// decodeCompletion extracts choices[0].text.
func (a *Adapter) decodeCompletion(resp *completionResponse) (*llm.Completion, error) {
	if len(resp.Choices) == 0 {
		return nil, llm.Malformed(a.config.ID, "no choices")
	}
	text := strings.TrimSpace(resp.Choices[0].Text)
	if text == "" {
		return nil, llm.Malformed(a.config.ID, "empty completion text")
	}
	return &llm.Completion{Text: text, Model: resp.Model}, nil
}

func (a *Adapter) GenerateImage(ctx context.Context, req *llm.ImageRequest) (*llm.Image, error) {
	key, err := llm.ResolveCredential(req.Credential, a.config.APIKey)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", a.config.ID, err)
	}

	body := imageRequest{
		Model:          req.Model,
		Prompt:         req.Prompt,
		Width:          req.Width,
		Height:         req.Height,
		N:              1,
		ResponseFormat: "base64",
	}

	var resp imageResponse
	headers := map[string]string{"Authorization": "Bearer " + key}
	if err := httpclient.SendRequest(ctx, a.client, http.MethodPost, a.url("images/generations"), headers, body, &resp); err != nil {
		return nil, a.handleUpstreamError(err)
	}

	return a.decodeImage(&resp)
}

// decodeImage extracts data[0].b64_json.
func (a *Adapter) decodeImage(resp *imageResponse) (*llm.Image, error) {
	if len(resp.Data) == 0 {
		return nil, llm.Malformed(a.config.ID, "no image data")
	}
	if resp.Data[0].B64JSON == "" {
		return nil, llm.Malformed(a.config.ID, "image has no base64 payload")
	}
	// FLUX endpoints return JPEG
	return &llm.Image{Base64: resp.Data[0].B64JSON, MIMEType: "image/jpeg"}, nil
}

func (a *Adapter) Health(ctx context.Context) error {
	if !a.HasServerKey() {
		return nil
	}
	headers := map[string]string{"Authorization": "Bearer " + a.config.APIKey}
	if err := httpclient.SendRequest(ctx, a.client, http.MethodGet, a.url("models"), headers, nil, nil); err != nil {
		return a.handleUpstreamError(err)
	}
	return nil
}
