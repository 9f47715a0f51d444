package gateway

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/nulzo/content-gateway/internal/analytics"
	"github.com/nulzo/content-gateway/internal/config"
	"github.com/nulzo/content-gateway/internal/llm"
	"github.com/nulzo/content-gateway/internal/store/model"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const (
	RouteChat    = "chat"
	RouteContent = "content"
	RouteImage   = "image"
)

var tracer = otel.Tracer("github.com/nulzo/content-gateway/internal/gateway")

// Request is a validated generation request. Credential may be empty when
// the serving provider holds a server-side key.
type Request struct {
	Prompt     string
	Credential string
}

// Result is a successful text generation. Provider details are kept for
// logging and must not be exposed to callers.
type Result struct {
	ID       string
	Text     string
	Provider string
	Model    string
	Attempts int
	FellBack bool
}

// Service defines the business logic for generating content.
type Service interface {
	RegisterProvider(ctx context.Context, p llm.Provider) error
	// SetRoutes replaces the route table. Every attempt must name a
	// registered provider with the right capability.
	SetRoutes(routes map[string]config.RouteConfig) error

	// Generate runs the route's failover chain: each attempt is tried in
	// order and only after the previous one failed.
	Generate(ctx context.Context, route string, req *Request) (*Result, error)
	GenerateImage(ctx context.Context, req *Request) (*llm.Image, error)

	// ImageServerKey reports whether the image provider can serve callers
	// that send no credential.
	ImageServerKey() bool
}

type service struct {
	logger   *zap.Logger
	ingestor analytics.Ingestor
	registry *registry
	now      func() time.Time
}

func NewService(logger *zap.Logger, ingestor analytics.Ingestor) Service {
	if ingestor == nil {
		ingestor = analytics.NopIngestor{}
	}
	return &service{
		logger:   logger,
		ingestor: ingestor,
		registry: newRegistry(),
		now:      time.Now,
	}
}

func (s *service) RegisterProvider(_ context.Context, p llm.Provider) error {
	if p == nil || p.Name() == "" {
		return errors.New("provider must have a name")
	}
	s.registry.addProvider(p)
	return nil
}

func (s *service) SetRoutes(routes map[string]config.RouteConfig) error {
	return s.registry.setRoutes(routes)
}

func (s *service) ImageServerKey() bool {
	chain, err := s.registry.route(RouteImage)
	if err != nil {
		return false
	}
	return chain[0].provider.HasServerKey()
}

func (s *service) Generate(ctx context.Context, route string, req *Request) (*Result, error) {
	if route == RouteImage {
		return nil, fmt.Errorf("%w: %s is not a text route", ErrUnknownRoute, route)
	}
	chain, err := s.registry.route(route)
	if err != nil {
		return nil, err
	}

	start := s.now()
	id := uuid.NewString()

	ctx, span := tracer.Start(ctx, "gateway.Generate", trace.WithAttributes(
		attribute.String("gateway.route", route),
		attribute.String("gateway.generation_id", id),
	))
	defer span.End()

	failures := make([]ProviderFailure, 0, len(chain))

	for i, a := range chain {
		position := i + 1

		if ctxErr := ctx.Err(); ctxErr != nil {
			// the caller is gone; record the attempt without starting it
			failures = append(failures, ProviderFailure{
				Provider: a.provider.Name(),
				Position: position,
				Err:      fmt.Errorf("not attempted: %w", ctxErr),
			})
			continue
		}

		completion, err := s.complete(ctx, route, position, a, req)
		if err != nil {
			failures = append(failures, ProviderFailure{Provider: a.provider.Name(), Position: position, Err: err})
			continue
		}

		res := &Result{
			ID:       id,
			Text:     completion.Text,
			Provider: a.provider.Name(),
			Model:    a.cfg.Model,
			Attempts: position,
			FellBack: position > 1,
		}
		span.SetAttributes(
			attribute.String("gateway.provider", res.Provider),
			attribute.Bool("gateway.fell_back", res.FellBack),
		)

		s.record(&model.GenerationLog{
			ID:              id,
			Route:           route,
			ProviderID:      res.Provider,
			Model:           res.Model,
			Attempts:        res.Attempts,
			FellBack:        res.FellBack,
			FailedProviders: failedProviders(failures),
			StatusCode:      http.StatusOK,
			LatencyMS:       s.now().Sub(start).Milliseconds(),
			PromptChars:     utf8.RuneCountInString(req.Prompt),
			OutputChars:     utf8.RuneCountInString(res.Text),
			CreatedAt:       start.UTC(),
		})

		return res, nil
	}

	allErr := &AllProvidersFailedError{Route: route, Failures: failures}
	span.RecordError(allErr)
	span.SetStatus(codes.Error, "all providers failed")

	s.logger.Error("All providers failed",
		zap.String("generation_id", id),
		zap.String("route", route),
		zap.Error(allErr),
	)

	s.record(&model.GenerationLog{
		ID:              id,
		Route:           route,
		Attempts:        len(chain),
		FellBack:        len(chain) > 1,
		FailedProviders: failedProviders(failures),
		StatusCode:      http.StatusInternalServerError,
		LatencyMS:       s.now().Sub(start).Milliseconds(),
		PromptChars:     utf8.RuneCountInString(req.Prompt),
		CreatedAt:       start.UTC(),
	})

	return nil, allErr
}

// complete runs one attempt under its own deadline and span. A reply with
// no usable text counts as a failure for every provider alike.
func (s *service) complete(ctx context.Context, route string, position int, a attempt, req *Request) (*llm.Completion, error) {
	completer := a.provider.(llm.Completer)

	ctx, cancel := context.WithTimeout(ctx, a.cfg.Timeout)
	defer cancel()

	ctx, span := tracer.Start(ctx, "gateway.attempt", trace.WithAttributes(
		attribute.String("gateway.route", route),
		attribute.Int("gateway.position", position),
		attribute.String("gateway.provider", a.provider.Name()),
		attribute.String("gateway.model", a.cfg.Model),
	))
	defer span.End()

	started := s.now()
	completion, err := completer.Complete(ctx, &llm.CompletionRequest{
		Model:        a.cfg.Model,
		SystemPrompt: a.cfg.SystemPrompt,
		Prompt:       req.Prompt,
		Credential:   req.Credential,
		MaxTokens:    a.cfg.MaxTokens,
		Temperature:  a.cfg.Temperature,
	})
	if err == nil && (completion == nil || strings.TrimSpace(completion.Text) == "") {
		err = llm.Malformed(a.provider.Name(), "empty completion")
	}

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "attempt failed")
		s.logger.Warn("Provider attempt failed",
			zap.String("route", route),
			zap.Int("position", position),
			zap.String("provider", a.provider.Name()),
			zap.String("model", a.cfg.Model),
			zap.Duration("latency", s.now().Sub(started)),
			zap.Bool("timeout", errors.Is(err, context.DeadlineExceeded)),
			zap.Error(err),
		)
		return nil, err
	}

	s.logger.Debug("Provider attempt succeeded",
		zap.String("route", route),
		zap.Int("position", position),
		zap.String("provider", a.provider.Name()),
		zap.Duration("latency", s.now().Sub(started)),
	)
	return completion, nil
}

func (s *service) GenerateImage(ctx context.Context, req *Request) (*llm.Image, error) {
	chain, err := s.registry.route(RouteImage)
	if err != nil {
		return nil, err
	}
	a := chain[0]
	generator := a.provider.(llm.ImageGenerator)

	start := s.now()
	id := uuid.NewString()

	ctx, cancel := context.WithTimeout(ctx, a.cfg.Timeout)
	defer cancel()

	ctx, span := tracer.Start(ctx, "gateway.GenerateImage", trace.WithAttributes(
		attribute.String("gateway.generation_id", id),
		attribute.String("gateway.provider", a.provider.Name()),
		attribute.String("gateway.model", a.cfg.Model),
	))
	defer span.End()

	img, err := generator.GenerateImage(ctx, &llm.ImageRequest{
		Model:      a.cfg.Model,
		Prompt:     req.Prompt,
		Credential: req.Credential,
		Width:      a.cfg.Width,
		Height:     a.cfg.Height,
	})
	if err == nil && (img == nil || img.Base64 == "") {
		err = llm.Malformed(a.provider.Name(), "empty image")
	}

	entry := &model.GenerationLog{
		ID:          id,
		Route:       RouteImage,
		Model:       a.cfg.Model,
		Attempts:    1,
		LatencyMS:   s.now().Sub(start).Milliseconds(),
		PromptChars: utf8.RuneCountInString(req.Prompt),
		CreatedAt:   start.UTC(),
	}

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "image generation failed")
		s.logger.Error("Image generation failed",
			zap.String("generation_id", id),
			zap.String("provider", a.provider.Name()),
			zap.String("model", a.cfg.Model),
			zap.Error(err),
		)
		entry.FailedProviders = a.provider.Name()
		entry.StatusCode = http.StatusInternalServerError
		s.record(entry)

		return nil, fmt.Errorf("%w: %w", ErrGenerationFailed, &ProviderFailure{Provider: a.provider.Name(), Position: 1, Err: err})
	}

	entry.ProviderID = a.provider.Name()
	entry.StatusCode = http.StatusOK
	entry.OutputChars = len(img.Base64)
	s.record(entry)

	return img, nil
}

func (s *service) record(log *model.GenerationLog) {
	s.ingestor.Log(log)
}

func failedProviders(failures []ProviderFailure) string {
	names := make([]string, len(failures))
	for i, f := range failures {
		names[i] = f.Provider
	}
	return strings.Join(names, ",")
}
