// Package puku serves the product surface the editor talks to directly:
// model catalog, session tokens, fixed-model embeddings, status, and
// quota reporting.
package puku

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/puku-sh/gateway/internal/gateway"
	"github.com/puku-sh/gateway/internal/server/validator"
	"github.com/puku-sh/gateway/internal/token"
	"github.com/puku-sh/gateway/internal/usage"
	"github.com/puku-sh/gateway/pkg/api"
	"github.com/puku-sh/gateway/pkg/version"
)

// catalogCreated is a fixed timestamp so the model catalog is stable
// across calls.
var catalogCreated = time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC).Unix()

type Handler struct {
	service gateway.Service
	store   *token.Store
	quotas  *usage.Service

	embeddingsModel string
	sessionTTL      time.Duration
	authEnforced    bool
}

type Options struct {
	EmbeddingsModel string
	SessionTTL      time.Duration
	AuthEnforced    bool
}

func NewHandler(service gateway.Service, store *token.Store, quotas *usage.Service, opts Options) *Handler {
	return &Handler{
		service:         service,
		store:           store,
		quotas:          quotas,
		embeddingsModel: opts.EmbeddingsModel,
		sessionTTL:      opts.SessionTTL,
		authEnforced:    opts.AuthEnforced,
	}
}

// Models lists the chat-capable catalog in OpenAI list shape.
func (h *Handler) Models(c *gin.Context) {
	list := api.ModelList{Object: "list", Data: []api.Model{}}

	for _, m := range h.service.Models() {
		if !m.Capabilities.Chat {
			continue
		}
		list.Data = append(list.Data, api.Model{
			ID:      m.ID,
			Object:  "model",
			Created: catalogCreated,
			OwnedBy: "puku",
			Name:    m.DisplayName,
		})
	}

	c.JSON(http.StatusOK, list)
}

// Token mints a session capability token. Expiry is advisory: it is
// recorded in metadata for the caller, not enforced server-side.
func (h *Handler) Token(c *gin.Context) {
	expiresAt := time.Now().UTC().Add(h.sessionTTL)

	t := h.store.Issue("puku-session", map[string]string{
		"kind":       "session",
		"expires_at": expiresAt.Format(time.RFC3339),
	})

	c.JSON(http.StatusOK, api.SessionTokenResponse{
		Token:     t.Value,
		TokenType: "bearer",
		ExpiresAt: expiresAt,
	})
}

// Embeddings fronts the embeddings provider with a fixed model. The
// caller never chooses, or sees, which model serves the request.
func (h *Handler) Embeddings(c *gin.Context) {
	var req api.EmbeddingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(api.ValidationError(validator.ParseError(err)))
		return
	}

	req.Model = h.embeddingsModel

	resp, err := h.service.Embed(c.Request.Context(), &req)
	if err != nil {
		_ = c.Error(err)
		return
	}

	resp.Model = h.embeddingsModel
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) Status(c *gin.Context) {
	auth := "disabled"
	if h.authEnforced {
		auth = "enforced"
	}

	c.JSON(http.StatusOK, api.StatusResponse{
		Status:    "ok",
		Version:   version.Version,
		Providers: h.service.ProviderCount(),
		Auth:      auth,
	})
}

func (h *Handler) Usage(c *gin.Context) {
	resp, err := h.quotas.Quotas(c.Request.Context())
	if err != nil {
		_ = c.Error(api.InternalError("failed to read usage ledger", err))
		return
	}

	c.JSON(http.StatusOK, resp)
}
