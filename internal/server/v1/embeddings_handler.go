package v1

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/puku-sh/gateway/internal/gateway"
	"github.com/puku-sh/gateway/internal/server/validator"
	"github.com/puku-sh/gateway/pkg/api"
)

type EmbeddingsHandler struct {
	service gateway.Service
}

func NewEmbeddingsHandler(service gateway.Service) *EmbeddingsHandler {
	return &EmbeddingsHandler{service: service}
}

func (h *EmbeddingsHandler) CreateEmbeddings(c *gin.Context) {
	var req api.EmbeddingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(api.ValidationError(validator.ParseError(err)))
		return
	}
	if req.Model == "" {
		_ = c.Error(api.ValidationError("model is required"))
		return
	}

	resp, err := h.service.Embed(c.Request.Context(), &req)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, resp)
}
