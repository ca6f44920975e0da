// Package admin serves the token management surface.
package admin

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/puku-sh/gateway/internal/server/validator"
	"github.com/puku-sh/gateway/internal/token"
	"github.com/puku-sh/gateway/pkg/api"
)

type TokenHandler struct {
	store *token.Store
}

func NewTokenHandler(store *token.Store) *TokenHandler {
	return &TokenHandler{store: store}
}

func toResponse(t token.Token) api.TokenResponse {
	return api.TokenResponse{
		Token:      t.Value,
		Owner:      t.Owner,
		CreatedAt:  t.CreatedAt,
		LastUsedAt: t.LastUsedAt,
		Metadata:   t.Metadata,
	}
}

func (h *TokenHandler) Issue(c *gin.Context) {
	var req api.IssueTokenRequest
	// body is optional; an empty issue request mints an anonymous token
	_ = c.ShouldBindJSON(&req)

	t := h.store.Issue(req.Owner, req.Metadata)
	c.JSON(http.StatusCreated, toResponse(t))
}

func (h *TokenHandler) Register(c *gin.Context) {
	var req api.RegisterTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(api.ValidationError(validator.ParseError(err)))
		return
	}

	if !h.store.Register(req.Token, req.Owner, nil) {
		_ = c.Error(api.ValidationError("token already registered"))
		return
	}

	t, _ := h.store.Get(req.Token)
	c.JSON(http.StatusCreated, toResponse(t))
}

func (h *TokenHandler) List(c *gin.Context) {
	tokens := h.store.List()

	resp := api.TokenListResponse{
		Tokens: make([]api.TokenResponse, 0, len(tokens)),
		Count:  len(tokens),
	}
	for _, t := range tokens {
		resp.Tokens = append(resp.Tokens, toResponse(t))
	}

	c.JSON(http.StatusOK, resp)
}

// Validate reports on the bearer token the caller presented. Reaching
// this handler at all means the auth middleware accepted it.
func (h *TokenHandler) Validate(c *gin.Context) {
	resp := api.ValidateTokenResponse{Valid: true}

	if tok, ok := c.Request.Context().Value(token.ContextKeyToken).(string); ok {
		if t, found := h.store.Get(tok); found {
			resp.Owner = t.Owner
		}
	}

	c.JSON(http.StatusOK, resp)
}

func (h *TokenHandler) Revoke(c *gin.Context) {
	value := c.Param("token")

	if !h.store.Revoke(value) {
		_ = c.Error(api.NotFoundError("token not found"))
		return
	}

	c.JSON(http.StatusOK, api.RevokeTokenResponse{Revoked: true})
}
