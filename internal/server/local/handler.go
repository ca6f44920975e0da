// Package local serves the local-inference-compatible surface: the routes
// an editor configured for a localhost model runner expects. Models are
// backed by remote providers, so weight-file metadata (size, digest,
// quantization) is synthesized deterministically from the descriptor
// table.
package local

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/puku-sh/gateway/internal/gateway"
	"github.com/puku-sh/gateway/pkg/api"
	"github.com/puku-sh/gateway/pkg/version"
)

// modifiedAt is a fixed timestamp so repeated listings are byte-identical.
var modifiedAt = time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC)

type Handler struct {
	service gateway.Service
}

func NewHandler(service gateway.Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) Health(c *gin.Context) {
	c.String(http.StatusOK, "Puku Gateway is running")
}

func (h *Handler) Version(c *gin.Context) {
	c.JSON(http.StatusOK, api.LocalVersionResponse{Version: version.Version})
}

// digestFor derives a stable pseudo-digest for a model that has no weight
// file behind it.
func digestFor(id string) string {
	sum := sha256.Sum256([]byte(id))
	return hex.EncodeToString(sum[:])
}

// sizeFor derives a stable pseudo-size in the single-digit-gigabyte range.
func sizeFor(id string) int64 {
	sum := sha256.Sum256([]byte(id))
	n := binary.BigEndian.Uint64(sum[:8])
	return int64(n%8_000_000_000) + 1_000_000_000
}

func detailsFor(m api.ModelDescriptor) api.LocalModelDetails {
	family := m.Family
	if family == "" {
		family = "puku"
	}
	parameterSize := m.ParameterSize
	if parameterSize == "" {
		parameterSize = "unknown"
	}
	quantization := m.Quantization
	if quantization == "" {
		quantization = "Q4_K_M"
	}
	return api.LocalModelDetails{
		Format:            "gguf",
		Family:            family,
		Families:          []string{family},
		ParameterSize:     parameterSize,
		QuantizationLevel: quantization,
	}
}

func (h *Handler) Tags(c *gin.Context) {
	descriptors := h.service.Models()

	models := make([]api.LocalModel, 0, len(descriptors))
	for _, m := range descriptors {
		models = append(models, api.LocalModel{
			Name:       m.ID,
			Model:      m.ID,
			ModifiedAt: modifiedAt,
			Size:       sizeFor(m.ID),
			Digest:     digestFor(m.ID),
			Details:    detailsFor(m),
		})
	}

	c.JSON(http.StatusOK, api.LocalTagsResponse{Models: models})
}

func capabilitiesFor(m api.ModelDescriptor) []string {
	caps := []string{}
	if m.Capabilities.Chat {
		caps = append(caps, "completion")
	}
	if m.Capabilities.Tools {
		caps = append(caps, "tools")
	}
	if m.Capabilities.Vision {
		caps = append(caps, "vision")
	}
	if m.Capabilities.FIM {
		caps = append(caps, "insert")
	}
	if m.Capabilities.Embeddings {
		caps = append(caps, "embedding")
	}
	return caps
}

func (h *Handler) Show(c *gin.Context) {
	var req api.LocalShowRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(api.ValidationError("model name is required"))
		return
	}

	name := req.ModelName()
	if name == "" {
		_ = c.Error(api.ValidationError("model name is required"))
		return
	}

	m, err := h.service.Resolve(name)
	if err != nil {
		_ = c.Error(err)
		return
	}

	details := detailsFor(m)
	c.JSON(http.StatusOK, api.LocalShowResponse{
		Details:      details,
		Capabilities: capabilitiesFor(m),
		ModelInfo: map[string]interface{}{
			"general.architecture":   details.Family,
			"general.parameter_size": details.ParameterSize,
			"puku.context_length":    m.Capabilities.ContextLength,
		},
	})
}

// Pull reports synthetic progress: there is nothing to download, but
// clients block on the pull flow before using a model. Any name pulls
// successfully; only /api/show rejects unknown models.
func (h *Handler) Pull(c *gin.Context) {
	var req api.LocalPullRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(api.ValidationError("model name is required"))
		return
	}

	name := req.ModelName()
	if name == "" {
		_ = c.Error(api.ValidationError("model name is required"))
		return
	}

	streaming := req.Stream == nil || *req.Stream

	if !streaming {
		c.JSON(http.StatusOK, api.LocalPullStatus{Status: "success"})
		return
	}

	digest := "sha256:" + digestFor(name)
	size := sizeFor(name)
	statuses := []api.LocalPullStatus{
		{Status: "pulling manifest"},
		{Status: "downloading", Digest: digest, Total: size, Completed: size},
		{Status: "verifying sha256 digest"},
		{Status: "writing manifest"},
		{Status: "success"},
	}

	c.Writer.Header().Set("Content-Type", "application/x-ndjson")
	c.Writer.WriteHeader(http.StatusOK)
	enc := json.NewEncoder(c.Writer)
	for _, s := range statuses {
		_ = enc.Encode(s)
		c.Writer.Flush()
	}
}
