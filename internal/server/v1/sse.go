package v1

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/puku-sh/gateway/pkg/api"
)

// WriteSSEHeaders prepares the response for server-sent events.
func WriteSSEHeaders(c *gin.Context) {
	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
	c.Writer.Header().Set("X-Accel-Buffering", "no")

	c.Writer.WriteHeader(http.StatusOK)
	c.Writer.Flush()
}

// WriteSSEError emits a terminal in-band error event. The stream ends
// after it; the [DONE] terminator is deliberately not sent.
func WriteSSEError(w io.Writer, err error) {
	var apiErr *api.Error
	if !errors.As(err, &apiErr) {
		apiErr = api.InternalError(err.Error(), nil)
	}
	data, _ := json.Marshal(apiErr.Envelope())
	_, _ = io.WriteString(w, "data: "+string(data)+"\n\n")
}
