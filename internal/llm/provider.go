package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrMalformedResponse marks a call that succeeded at the transport level
	// but whose payload lacks the expected content.
	ErrMalformedResponse = errors.New("malformed provider response")

	// ErrMissingCredential is returned when neither the caller nor the
	// provider configuration supplies a key.
	ErrMissingCredential = errors.New("no credential available for provider")
)

// Malformed wraps ErrMalformedResponse with the vendor specific reason.
func Malformed(provider, reason string) error {
	return fmt.Errorf("%s: %w: %s", provider, ErrMalformedResponse, reason)
}

// Provider is the common surface of every upstream adapter.
type Provider interface {
	Name() string
	Type() string // e.g., "openai", "together"
	// HasServerKey reports whether a configured key can stand in for the caller's.
	HasServerKey() bool
	Health(ctx context.Context) error
}

// Completer turns a prompt into text.
type Completer interface {
	Provider
	Complete(ctx context.Context, req *CompletionRequest) (*Completion, error)
}

// ImageGenerator turns a prompt into an image.
type ImageGenerator interface {
	Provider
	GenerateImage(ctx context.Context, req *ImageRequest) (*Image, error)
}

type CompletionRequest struct {
	Model        string
	SystemPrompt string
	Prompt       string
	Credential   string
	MaxTokens    int
	Temperature  float64
}

type Completion struct {
	Text  string
	Model string
}

type ImageRequest struct {
	Model      string
	Prompt     string
	Credential string
	Width      int
	Height     int
}

type Image struct {
	Base64   string
	MIMEType string
}

// DataURL renders the image the way browsers accept it in an <img> src.
func (i *Image) DataURL() string {
	mime := i.MIMEType
	if mime == "" {
		mime = "image/png"
	}
	return "data:" + mime + ";base64," + i.Base64
}

// ResolveCredential prefers the caller's credential over the server key.
func ResolveCredential(caller, serverKey string) (string, error) {
	if key := strings.TrimSpace(caller); key != "" {
		return key, nil
	}
	if serverKey != "" {
		return serverKey, nil
	}
	return "", ErrMissingCredential
}
