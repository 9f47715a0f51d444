package v1

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/nulzo/content-gateway/internal/gateway"
	"github.com/nulzo/content-gateway/internal/server/middleware"
	"github.com/nulzo/content-gateway/internal/server/validator"
	"github.com/nulzo/content-gateway/pkg/api"
)

type GenerateHandler struct {
	service   gateway.Service
	validator *validator.Validator
}

func NewGenerateHandler(service gateway.Service, v *validator.Validator) *GenerateHandler {
	return &GenerateHandler{
		service:   service,
		validator: v,
	}
}

// Text serves a text route. The credential was already checked by
// middleware.Credential, so only the body is validated here.
//
// POST /api/ai-agent/chatbot, POST /api/ai-agent/content-generator
func (h *GenerateHandler) Text(route string) gin.HandlerFunc {
	return func(c *gin.Context) {
		req, ok := h.bind(c)
		if !ok {
			return
		}

		res, err := h.service.Generate(c.Request.Context(), route, req)
		if err != nil {
			var allErr *gateway.AllProvidersFailedError
			if errors.As(err, &allErr) {
				_ = c.Error(api.AllProvidersFailed(err))
				return
			}
			_ = c.Error(api.InternalError("Failed to process request", err))
			return
		}

		c.Header("X-Generation-ID", res.ID)
		c.JSON(http.StatusOK, api.ContentResponse{Content: res.Text})
	}
}

// Image serves the single-provider image route.
//
// POST /api/ai-agent/image-generator
func (h *GenerateHandler) Image(c *gin.Context) {
	req, ok := h.bind(c)
	if !ok {
		return
	}

	img, err := h.service.GenerateImage(c.Request.Context(), req)
	if err != nil {
		_ = c.Error(api.GenerationFailed(api.MsgImageFailed, err))
		return
	}

	c.JSON(http.StatusOK, api.ImageResponse{Image: img.DataURL()})
}

// Preflight answers CORS preflight requests; the headers come from middleware.CORS.
func Preflight(c *gin.Context) {
	c.Status(http.StatusNoContent)
}

func (h *GenerateHandler) bind(c *gin.Context) (*gateway.Request, bool) {
	var body api.GenerateRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		_ = c.Error(api.ValidationError(h.validator.ParseError(err)))
		return nil, false
	}
	return &gateway.Request{
		Prompt:     body.Prompt,
		Credential: middleware.GetCredential(c),
	}, true
}
