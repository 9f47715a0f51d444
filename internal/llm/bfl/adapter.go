package bfl

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/nulzo/content-gateway/internal/config"
	"github.com/nulzo/content-gateway/internal/httpclient"
	"github.com/nulzo/content-gateway/internal/llm"
)

const pn string = "bfl"

func init() {
	llm.Register(pn, NewAdapter)
}

type Adapter struct {
	config       config.ProviderConfig
	client       *http.Client
	pollInterval time.Duration
}

func NewAdapter(config config.ProviderConfig) (llm.Provider, error) {
	if config.BaseURL == "" {
		config.BaseURL = "https://api.bfl.ai/v1"
	}
	interval := 500 * time.Millisecond
	if raw := config.Config["poll_interval"]; raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil {
			return nil, fmt.Errorf("bfl: invalid poll_interval %q: %w", raw, err)
		}
		interval = d
	}
	return &Adapter{
		config: config,
		// the attempt context bounds generation + polling
		client:       &http.Client{Timeout: 300 * time.Second},
		pollInterval: interval,
	}, nil
}

func (a *Adapter) Name() string       { return a.config.ID }
func (a *Adapter) Type() string       { return pn }
func (a *Adapter) HasServerKey() bool { return a.config.APIKey != "" }

type GenerationRequest struct {
	Prompt string `json:"prompt"`
	Width  int    `json:"width,omitempty"`
	Height int    `json:"height,omitempty"`
}

type GenerationResponse struct {
	ID         string `json:"id"`
	PollingURL string `json:"polling_url"`
}

type PollingResult struct {
	Sample string `json:"sample"`
}

type PollingResponse struct {
	Status  string         `json:"status"` // Ready, Processing, Pending, Error, Failed
	Result  *PollingResult `json:"result,omitempty"`
	Message string         `json:"message,omitempty"`
}

func (a *Adapter) GenerateImage(ctx context.Context, req *llm.ImageRequest) (*llm.Image, error) {
	key, err := llm.ResolveCredential(req.Credential, a.config.APIKey)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", a.config.ID, err)
	}
	headers := map[string]string{"x-key": key}

	body := GenerationRequest{
		Prompt: req.Prompt,
		Width:  req.Width,
		Height: req.Height,
	}
	endpoint := fmt.Sprintf("%s/%s", strings.TrimRight(a.config.BaseURL, "/"), req.Model)

	var genResp GenerationResponse
	if err := httpclient.SendRequest(ctx, a.client, http.MethodPost, endpoint, headers, body, &genResp); err != nil {
		return nil, fmt.Errorf("%s: submit: %w", a.config.ID, err)
	}
	if genResp.PollingURL == "" {
		return nil, llm.Malformed(a.config.ID, "submission has no polling_url")
	}

	sample, err := a.poll(ctx, genResp.PollingURL, headers)
	if err != nil {
		return nil, err
	}

	data, contentType, err := httpclient.Fetch(ctx, a.client, sample, nil)
	if err != nil {
		return nil, fmt.Errorf("%s: download sample: %w", a.config.ID, err)
	}
	if len(data) == 0 {
		return nil, llm.Malformed(a.config.ID, "empty sample")
	}
	if contentType == "" || !strings.HasPrefix(contentType, "image/") {
		contentType = "image/jpeg"
	}

	return &llm.Image{
		Base64:   base64.StdEncoding.EncodeToString(data),
		MIMEType: contentType,
	}, nil
}

// poll waits for the job to settle and returns the signed sample URL.
func (a *Adapter) poll(ctx context.Context, pollingURL string, headers map[string]string) (string, error) {
	ticker := time.NewTicker(a.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return "", fmt.Errorf("%s: polling: %w", a.config.ID, ctx.Err())
		case <-ticker.C:
			var res PollingResponse
			if err := httpclient.SendRequest(ctx, a.client, http.MethodGet, pollingURL, headers, nil, &res); err != nil {
				return "", fmt.Errorf("%s: polling: %w", a.config.ID, err)
			}

			switch res.Status {
			case "Ready":
				if res.Result == nil || res.Result.Sample == "" {
					return "", llm.Malformed(a.config.ID, "ready result has no sample")
				}
				return res.Result.Sample, nil
			case "Error", "Failed", "Request Moderated", "Content Moderated":
				return "", fmt.Errorf("%s: generation %s: %s", a.config.ID, strings.ToLower(res.Status), res.Message)
			}
		}
	}
}

func (a *Adapter) Health(ctx context.Context) error {
	if !a.HasServerKey() {
		return fmt.Errorf("%s: missing API key", a.config.ID)
	}
	return nil
}
