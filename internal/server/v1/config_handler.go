package v1

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/nulzo/content-gateway/internal/config"
)

type ConfigHandler struct {
	config *config.Config
}

func NewConfigHandler(cfg *config.Config) *ConfigHandler {
	return &ConfigHandler{config: cfg}
}

type providerView struct {
	ID           string `json:"id"`
	Type         string `json:"type"`
	Name         string `json:"name,omitempty"`
	BaseURL      string `json:"base_url,omitempty"`
	Enabled      bool   `json:"enabled"`
	HasServerKey bool   `json:"has_server_key"`
}

type attemptView struct {
	Provider  string `json:"provider"`
	Model     string `json:"model"`
	MaxTokens int    `json:"max_tokens,omitempty"`
	Timeout   string `json:"timeout"`
	Width     int    `json:"width,omitempty"`
	Height    int    `json:"height,omitempty"`
}

// Get returns the provider and route tables with secrets removed.
//
// GET /v1/config
func (h *ConfigHandler) Get(c *gin.Context) {
	providers := make([]providerView, 0, len(h.config.Providers))
	for _, p := range h.config.Providers {
		providers = append(providers, providerView{
			ID:           p.ID,
			Type:         p.Type,
			Name:         p.Name,
			BaseURL:      p.BaseURL,
			Enabled:      p.Enabled,
			HasServerKey: p.APIKey != "",
		})
	}

	routes := make(map[string][]attemptView, len(h.config.Routes))
	for name, r := range h.config.Routes {
		for _, a := range r.Attempts {
			routes[name] = append(routes[name], attemptView{
				Provider:  a.Provider,
				Model:     a.Model,
				MaxTokens: a.MaxTokens,
				Timeout:   a.Timeout.String(),
				Width:     a.Width,
				Height:    a.Height,
			})
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"providers": providers,
		"routes":    routes,
	})
}
