package gateway

import (
	"context"
	"errors"
	"testing"

	"github.com/nulzo/content-gateway/internal/config"
	"github.com/nulzo/content-gateway/internal/llm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type unhealthyProvider struct{ id string }

func (u *unhealthyProvider) Name() string                 { return u.id }
func (u *unhealthyProvider) Type() string                 { return "bootstrap-test" }
func (u *unhealthyProvider) HasServerKey() bool           { return false }
func (u *unhealthyProvider) Health(context.Context) error { return errors.New("unreachable") }
func (u *unhealthyProvider) Complete(context.Context, *llm.CompletionRequest) (*llm.Completion, error) {
	return &llm.Completion{Text: "ok"}, nil
}

func init() {
	llm.Register("bootstrap-test", func(cfg config.ProviderConfig) (llm.Provider, error) {
		return &unhealthyProvider{id: cfg.ID}, nil
	})
}

func TestBootstrapProviders(t *testing.T) {
	svc := NewService(zap.NewNop(), nil)

	n := BootstrapProviders(context.Background(), svc, []config.ProviderConfig{
		{ID: "flaky", Type: "bootstrap-test", Enabled: true},
		{ID: "off", Type: "bootstrap-test", Enabled: false},
		{ID: "", Type: "bootstrap-test", Enabled: true},
		{ID: "weird", Type: "no-such-type", Enabled: true},
		{ID: "bad-url", Type: "bootstrap-test", BaseURL: "not a url", Enabled: true},
	}, zap.NewNop())

	// unhealthy providers are still registered
	assert.Equal(t, 1, n)

	require.NoError(t, svc.SetRoutes(map[string]config.RouteConfig{
		RouteChat: {Attempts: []config.AttemptConfig{{Provider: "flaky", Model: "m"}}},
	}))
	assert.Error(t, svc.SetRoutes(map[string]config.RouteConfig{
		RouteChat: {Attempts: []config.AttemptConfig{{Provider: "off", Model: "m"}}},
	}))
}
