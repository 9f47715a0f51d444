package v1

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/nulzo/content-gateway/internal/analytics"
	"github.com/nulzo/content-gateway/internal/server/validator"
	"github.com/nulzo/content-gateway/pkg/api"
)

type AnalyticsHandler struct {
	service   analytics.Service
	validator *validator.Validator
}

func NewAnalyticsHandler(service analytics.Service, v *validator.Validator) *AnalyticsHandler {
	return &AnalyticsHandler{
		service:   service,
		validator: v,
	}
}

// GetUsage returns per-day request counts for the last `days` days (default 7).
//
// GET /v1/analytics/usage?days=
func (h *AnalyticsHandler) GetUsage(c *gin.Context) {
	var q api.UsageQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		_ = c.Error(api.BadRequestError("Invalid 'days' parameter",
			api.WithExtension("errors", h.validator.ParseError(err))))
		return
	}

	stats, err := h.service.GetUsageOverview(c.Request.Context(), q.Days)
	if err != nil {
		_ = c.Error(api.InternalError("Failed to fetch analytics", err))
		return
	}

	data := make([]api.DailyUsage, len(stats))
	for i, s := range stats {
		data[i] = api.DailyUsage{
			Date:           s.Date,
			TotalRequests:  s.TotalRequests,
			Failed:         s.Failed,
			FallbackServed: s.FallbackServed,
			AverageLatency: s.AverageLatency,
		}
	}

	c.JSON(http.StatusOK, api.UsageResponse{Object: "list", Data: data})
}
