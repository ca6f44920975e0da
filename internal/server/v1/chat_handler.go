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

type ChatHandler struct {
	service gateway.Service
	logger  *zap.Logger
}

func NewChatHandler(service gateway.Service, logger *zap.Logger) *ChatHandler {
	return &ChatHandler{service: service, logger: logger}
}

func (h *ChatHandler) CreateChatCompletion(c *gin.Context) {
	var req api.ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(api.ValidationError(validator.ParseError(err)))
		return
	}

	if req.Stream {
		h.stream(c, &req)
		return
	}

	resp, err := h.service.Chat(c.Request.Context(), &req)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (h *ChatHandler) stream(c *gin.Context, req *api.ChatRequest) {
	streamChan, err := h.service.ChatStream(c.Request.Context(), req)
	if err != nil {
		_ = c.Error(err)
		return
	}

	WriteSSEHeaders(c)

	c.Stream(func(w io.Writer) bool {
		result, ok := <-streamChan
		if !ok {
			// Normal end of sequence.
			_, _ = io.WriteString(w, "data: [DONE]\n\n")
			return false
		}

		if result.Err != nil {
			// Flushed output stands; report the failure in-band and end
			// without the terminator.
			h.logger.Warn("chat stream ended abnormally", zap.Error(result.Err))
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
