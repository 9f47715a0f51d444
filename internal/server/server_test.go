package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/nulzo/content-gateway/internal/analytics"
	"github.com/nulzo/content-gateway/internal/config"
	"github.com/nulzo/content-gateway/internal/gateway"
	"github.com/nulzo/content-gateway/internal/llm"
	"github.com/nulzo/content-gateway/internal/server/middleware"
	"github.com/nulzo/content-gateway/internal/store/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type mockGateway struct {
	mock.Mock
	imageServerKey bool
}

func (m *mockGateway) RegisterProvider(context.Context, llm.Provider) error { return nil }
func (m *mockGateway) SetRoutes(map[string]config.RouteConfig) error       { return nil }
func (m *mockGateway) ImageServerKey() bool                                { return m.imageServerKey }

func (m *mockGateway) Generate(ctx context.Context, route string, req *gateway.Request) (*gateway.Result, error) {
	args := m.Called(ctx, route, req)
	res, _ := args.Get(0).(*gateway.Result)
	return res, args.Error(1)
}

func (m *mockGateway) GenerateImage(ctx context.Context, req *gateway.Request) (*llm.Image, error) {
	args := m.Called(ctx, req)
	img, _ := args.Get(0).(*llm.Image)
	return img, args.Error(1)
}

type mockAnalytics struct {
	mock.Mock
}

func (m *mockAnalytics) GetUsageOverview(ctx context.Context, days int) ([]model.DailyStats, error) {
	args := m.Called(ctx, days)
	stats, _ := args.Get(0).([]model.DailyStats)
	return stats, args.Error(1)
}

func (m *mockAnalytics) GetGeneration(ctx context.Context, id string) (*model.GenerationLog, error) {
	args := m.Called(ctx, id)
	log, _ := args.Get(0).(*model.GenerationLog)
	return log, args.Error(1)
}

func newTestServer(t *testing.T, deps Deps, adminKeys ...string) http.Handler {
	t.Helper()
	cfg := &config.Config{Server: config.ServerConfig{Env: "test", AdminKeys: adminKeys}}
	s, err := New(cfg, zap.NewNop(), deps)
	require.NoError(t, err)
	return s.Handler()
}

func post(h http.Handler, path, auth, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func assertCORS(t *testing.T, w *httptest.ResponseRecorder) {
	t.Helper()
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "POST, OPTIONS", w.Header().Get("Access-Control-Allow-Methods"))
	assert.Equal(t, "Content-Type, Authorization", w.Header().Get("Access-Control-Allow-Headers"))
}

var textRoutes = map[string]string{
	"/api/ai-agent/chatbot":           gateway.RouteChat,
	"/api/ai-agent/content-generator": gateway.RouteContent,
}

func TestTextRoutes_Success(t *testing.T) {
	for path, route := range textRoutes {
		t.Run(route, func(t *testing.T) {
			gw := &mockGateway{}
			gw.On("Generate", mock.Anything, route, &gateway.Request{Prompt: "Hi", Credential: "gsk_key"}).
				Return(&gateway.Result{ID: "gen-1", Text: "Hello!", Provider: "groq"}, nil).Once()

			w := post(newTestServer(t, Deps{Service: gw}), path, "Bearer gsk_key ", `{"prompt": "Hi"}`)

			assert.Equal(t, http.StatusOK, w.Code)
			assert.JSONEq(t, `{"content": "Hello!"}`, w.Body.String())
			assert.Equal(t, "gen-1", w.Header().Get("X-Generation-ID"))
			assertCORS(t, w)
			gw.AssertExpectations(t)
		})
	}
}

func TestTextRoutes_MissingCredential(t *testing.T) {
	for path := range textRoutes {
		t.Run(path, func(t *testing.T) {
			gw := &mockGateway{}
			h := newTestServer(t, Deps{Service: gw})

			for _, auth := range []string{"", "Bearer ", "Bearer    "} {
				// body is invalid too: the credential is checked first
				w := post(h, path, auth, `{}`)

				assert.Equal(t, http.StatusUnauthorized, w.Code)
				assert.Equal(t, "Authorization header is missing API key", decode(t, w)["error"])
				assertCORS(t, w)
			}
			gw.AssertNotCalled(t, "Generate", mock.Anything, mock.Anything, mock.Anything)
		})
	}
}

func TestTextRoutes_InvalidPrompt(t *testing.T) {
	bodies := map[string]string{
		"missing":    `{}`,
		"blank":      `{"prompt": "  \n\t "}`,
		"number":     `{"prompt": 5}`,
		"null":       `{"prompt": null}`,
		"not json":   `prompt`,
		"empty body": ``,
	}

	gw := &mockGateway{}
	h := newTestServer(t, Deps{Service: gw})

	for name, body := range bodies {
		t.Run(name, func(t *testing.T) {
			w := post(h, "/api/ai-agent/chatbot", "Bearer key", body)

			assert.Equal(t, http.StatusBadRequest, w.Code)
			resp := decode(t, w)
			assert.Equal(t, "No valid prompt provided", resp["error"])
			assert.NotContains(t, resp, "content")
			assertCORS(t, w)
		})
	}
	gw.AssertNotCalled(t, "Generate", mock.Anything, mock.Anything, mock.Anything)
}

func TestTextRoutes_AllProvidersFailed(t *testing.T) {
	gw := &mockGateway{}
	gw.On("Generate", mock.Anything, gateway.RouteChat, mock.Anything).Return(nil, &gateway.AllProvidersFailedError{
		Route: gateway.RouteChat,
		Failures: []gateway.ProviderFailure{
			{Provider: "groq", Position: 1, Err: errors.New("429 rate limited")},
			{Provider: "together", Position: 2, Err: errors.New("invalid api key sk-secret")},
		},
	}).Once()

	w := post(newTestServer(t, Deps{Service: gw}), "/api/ai-agent/chatbot", "Bearer key", `{"prompt": "Hi"}`)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	resp := decode(t, w)
	assert.Equal(t, "All AI service providers failed", resp["error"])
	assert.NotContains(t, resp, "content")
	assert.NotContains(t, w.Body.String(), "sk-secret")
	assert.NotContains(t, w.Body.String(), "groq")
	assertCORS(t, w)
}

func TestImageRoute(t *testing.T) {
	gw := &mockGateway{imageServerKey: true}
	gw.On("GenerateImage", mock.Anything, &gateway.Request{Prompt: "a fox"}).
		Return(&llm.Image{Base64: "QUJD", MIMEType: "image/jpeg"}, nil).Once()

	// no caller key is fine while the provider holds one
	w := post(newTestServer(t, Deps{Service: gw}), "/api/ai-agent/image-generator", "", `{"prompt": "a fox"}`)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"image": "data:image/jpeg;base64,QUJD"}`, w.Body.String())
	assertCORS(t, w)
}

func TestImageRoute_NoKeyAnywhere(t *testing.T) {
	gw := &mockGateway{imageServerKey: false}

	w := post(newTestServer(t, Deps{Service: gw}), "/api/ai-agent/image-generator", "", `{"prompt": "a fox"}`)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	gw.AssertNotCalled(t, "GenerateImage", mock.Anything, mock.Anything)
}

func TestImageRoute_Failure(t *testing.T) {
	gw := &mockGateway{imageServerKey: true}
	gw.On("GenerateImage", mock.Anything, mock.Anything).
		Return(nil, errors.Join(gateway.ErrGenerationFailed, errors.New("upstream 500"))).Once()

	w := post(newTestServer(t, Deps{Service: gw}), "/api/ai-agent/image-generator", "Bearer k", `{"prompt": "a fox"}`)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	resp := decode(t, w)
	assert.Equal(t, "Image generation failed", resp["error"])
	assert.NotContains(t, resp, "image")
	assert.NotContains(t, w.Body.String(), "upstream 500")
}

func TestPreflight(t *testing.T) {
	gw := &mockGateway{}
	h := newTestServer(t, Deps{Service: gw})

	for _, path := range []string{"/api/ai-agent/chatbot", "/api/ai-agent/content-generator", "/api/ai-agent/image-generator"} {
		req := httptest.NewRequest(http.MethodOptions, path, nil)
		w := httptest.NewRecorder()
		h.ServeHTTP(w, req)

		assert.Equal(t, http.StatusNoContent, w.Code, path)
		assert.Empty(t, w.Body.String())
		assertCORS(t, w)
	}
}

func TestHealth(t *testing.T) {
	h := newTestServer(t, Deps{Service: &mockGateway{}, Version: "v1.2.3"})

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status": "ok", "version": "v1.2.3"}`, w.Body.String())
}

func TestRateLimited(t *testing.T) {
	gw := &mockGateway{}
	gw.On("Generate", mock.Anything, mock.Anything, mock.Anything).Return(&gateway.Result{Text: "ok"}, nil)

	h := newTestServer(t, Deps{Service: gw, Limiter: denyAll{}})
	w := post(h, "/api/ai-agent/chatbot", "Bearer k", `{"prompt": "Hi"}`)

	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assertCORS(t, w)
	gw.AssertNotCalled(t, "Generate", mock.Anything, mock.Anything, mock.Anything)
}

func TestRateLimit_PreflightAndMissingKeyUnaffected(t *testing.T) {
	gw := &mockGateway{}
	gw.On("Generate", mock.Anything, mock.Anything, mock.Anything).Return(&gateway.Result{Text: "ok"}, nil)

	h := newTestServer(t, Deps{Service: gw, Limiter: middleware.NewRateLimiter(0.0001, 1)})

	assert.Equal(t, http.StatusOK, post(h, "/api/ai-agent/chatbot", "Bearer k", `{"prompt": "Hi"}`).Code)
	assert.Equal(t, http.StatusTooManyRequests, post(h, "/api/ai-agent/chatbot", "Bearer k", `{"prompt": "Hi"}`).Code)

	w := post(h, "/api/ai-agent/chatbot", "", `{"prompt": "Hi"}`)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "Authorization header is missing API key", decode(t, w)["error"])

	for _, path := range []string{"/api/ai-agent/chatbot", "/api/ai-agent/content-generator", "/api/ai-agent/image-generator"} {
		w := httptest.NewRecorder()
		h.ServeHTTP(w, httptest.NewRequest(http.MethodOptions, path, nil))

		assert.Equal(t, http.StatusNoContent, w.Code, path)
		assert.Empty(t, w.Body.String())
		assertCORS(t, w)
	}
}

type denyAll struct{}

func (denyAll) Allow(context.Context, string) (bool, error) { return false, nil }

func get(h http.Handler, path, auth string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestAdmin_DisabledWithoutKeys(t *testing.T) {
	h := newTestServer(t, Deps{Service: &mockGateway{}, Analytics: &mockAnalytics{}})
	assert.Equal(t, http.StatusNotFound, get(h, "/v1/analytics/usage", "Bearer x").Code)
}

func TestAdmin_Generation(t *testing.T) {
	an := &mockAnalytics{}
	an.On("GetGeneration", mock.Anything, "gen-1").Return(&model.GenerationLog{
		ID:              "gen-1",
		Route:           "chat",
		ProviderID:      "together",
		Attempts:        2,
		FellBack:        true,
		FailedProviders: "groq",
		StatusCode:      200,
		LatencyMS:       420,
		CreatedAt:       time.Date(2026, 10, 16, 12, 0, 0, 0, time.UTC),
	}, nil).Once()
	an.On("GetGeneration", mock.Anything, "nope").Return(nil, analytics.ErrNotFound).Once()

	h := newTestServer(t, Deps{Service: &mockGateway{}, Analytics: an}, "admin")

	assert.Equal(t, http.StatusUnauthorized, get(h, "/v1/generations?id=gen-1", "").Code)
	assert.Equal(t, http.StatusBadRequest, get(h, "/v1/generations", "Bearer admin").Code)
	assert.Equal(t, http.StatusNotFound, get(h, "/v1/generations?id=nope", "Bearer admin").Code)

	w := get(h, "/v1/generations?id=gen-1", "Bearer admin")
	require.Equal(t, http.StatusOK, w.Code)
	data := decode(t, w)["data"].(map[string]interface{})
	assert.Equal(t, "together", data["provider_name"])
	assert.Equal(t, true, data["fell_back"])
	assert.Equal(t, []interface{}{"groq"}, data["failed_attempts"])
}

func TestAdmin_Usage(t *testing.T) {
	an := &mockAnalytics{}
	an.On("GetUsageOverview", mock.Anything, 3).Return([]model.DailyStats{
		{Date: "2026-10-16", TotalRequests: 10, Failed: 1, FallbackServed: 2, AverageLatency: 350},
	}, nil).Once()

	h := newTestServer(t, Deps{Service: &mockGateway{}, Analytics: an}, "admin")

	w := get(h, "/v1/analytics/usage?days=3", "Bearer admin")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{
		"object": "list",
		"data": [{"date": "2026-10-16", "total_requests": 10, "failed": 1, "fallback_served": 2, "avg_latency": 350}]
	}`, w.Body.String())

	assert.Equal(t, http.StatusBadRequest, get(h, "/v1/analytics/usage?days=400", "Bearer admin").Code)
	assert.Equal(t, http.StatusBadRequest, get(h, "/v1/analytics/usage?days=abc", "Bearer admin").Code)
}

func TestAdmin_ConfigHidesKeys(t *testing.T) {
	cfg := &config.Config{
		Server: config.ServerConfig{AdminKeys: []string{"admin"}},
		Providers: []config.ProviderConfig{
			{ID: "groq", Type: "openai", APIKey: "gsk_server_secret", Enabled: true},
		},
		Routes: map[string]config.RouteConfig{
			"chat": {Attempts: []config.AttemptConfig{{Provider: "groq", Model: "llama", Timeout: 30 * time.Second}}},
		},
	}
	s, err := New(cfg, zap.NewNop(), Deps{Service: &mockGateway{}, Analytics: &mockAnalytics{}})
	require.NoError(t, err)

	w := get(s.Handler(), "/v1/config", "Bearer admin")
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotContains(t, w.Body.String(), "gsk_server_secret")
	assert.Contains(t, w.Body.String(), `"has_server_key":true`)
	assert.Contains(t, w.Body.String(), `"timeout":"30s"`)
}
