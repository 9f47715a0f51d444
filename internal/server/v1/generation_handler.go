package v1

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/nulzo/content-gateway/internal/analytics"
	"github.com/nulzo/content-gateway/internal/store/model"
	"github.com/nulzo/content-gateway/pkg/api"
)

type GenerationHandler struct {
	service analytics.Service
}

func NewGenerationHandler(service analytics.Service) *GenerationHandler {
	return &GenerationHandler{service: service}
}

// GetGeneration returns how a single request was served.
//
// GET /v1/generations?id=
func (h *GenerationHandler) GetGeneration(c *gin.Context) {
	id := c.Query("id")
	if id == "" {
		_ = c.Error(api.BadRequestError("id parameter is required"))
		return
	}

	log, err := h.service.GetGeneration(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, analytics.ErrNotFound) {
			_ = c.Error(api.NotFoundError("Generation not found"))
			return
		}
		_ = c.Error(api.InternalError("Failed to fetch generation", err))
		return
	}

	c.JSON(http.StatusOK, mapGenerationLog(log))
}

func mapGenerationLog(log *model.GenerationLog) api.GenerationResponse {
	return api.GenerationResponse{Data: api.GenerationData{
		ID:             log.ID,
		Route:          log.Route,
		ProviderName:   log.ProviderID,
		Model:          log.Model,
		Attempts:       log.Attempts,
		FellBack:       log.FellBack,
		StatusCode:     log.StatusCode,
		Latency:        float64(log.LatencyMS),
		PromptChars:    log.PromptChars,
		OutputChars:    log.OutputChars,
		FailedAttempts: log.Failed(),
		CreatedAt:      log.CreatedAt,
	}}
}
