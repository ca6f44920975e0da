package v1

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/puku-sh/gateway/internal/gateway"
	"github.com/puku-sh/gateway/internal/server/validator"
	"github.com/puku-sh/gateway/pkg/api"
)

// CompletionHandler serves fill-in-middle completions: prompt prefix plus
// suffix, text choices back. Editors that omit the model field get the
// configured default.
type CompletionHandler struct {
	service      gateway.Service
	logger       *zap.Logger
	defaultModel string
}

func NewCompletionHandler(service gateway.Service, logger *zap.Logger, defaultModel string) *CompletionHandler {
	return &CompletionHandler{service: service, logger: logger, defaultModel: defaultModel}
}

func (h *CompletionHandler) CreateCompletion(c *gin.Context) {
	var req api.CompletionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(api.ValidationError(validator.ParseError(err)))
		return
	}

	if req.Model == "" {
		req.Model = h.defaultModel
	}

	if req.Stream {
		h.stream(c, &req)
		return
	}

	resp, err := h.service.Complete(c.Request.Context(), &req)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (h *CompletionHandler) stream(c *gin.Context, req *api.CompletionRequest) {
	streamChan, err := h.service.CompleteStream(c.Request.Context(), req)
	if err != nil {
		_ = c.Error(err)
		return
	}

	WriteSSEHeaders(c)

	c.Stream(func(w io.Writer) bool {
		result, ok := <-streamChan
		if !ok {
			_, _ = io.WriteString(w, "data: [DONE]\n\n")
			return false
		}

		if result.Err != nil {
			h.logger.Warn("completion stream ended abnormally", zap.Error(result.Err))
			WriteSSEError(w, result.Err)
			return false
		}

		data, err := json.Marshal(result.Response)
		if err != nil {
			h.logger.Error("failed to encode stream chunk", zap.Error(err))
			return false
		}
		_, err = io.WriteString(w, "data: "+string(data)+"\n\n")
		return err == nil
	})
}
