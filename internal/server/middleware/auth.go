package middleware

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/puku-sh/gateway/internal/token"
	"github.com/puku-sh/gateway/pkg/api"
)

func abortUnauthenticated(c *gin.Context, msg string) {
	apiErr := api.AuthenticationError(msg)
	c.AbortWithStatusJSON(apiErr.Status, apiErr.Envelope())
}

// bearerToken extracts the token from an Authorization header. The second
// return is false when the header is present but malformed: a non-Bearer
// scheme or an empty credential. A malformed header is rejected even on
// routes where authentication is optional.
func bearerToken(header string) (string, bool) {
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}
	tok := strings.TrimSpace(parts[1])
	if tok == "" {
		return "", false
	}
	return tok, true
}

// authenticate attaches the validated token and its owner to the request
// context for downstream accounting.
func authenticate(c *gin.Context, store *token.Store, tok string) {
	ctx := context.WithValue(c.Request.Context(), token.ContextKeyToken, tok)
	if t, ok := store.Get(tok); ok && t.Owner != "" {
		ctx = context.WithValue(ctx, token.ContextKeyOwner, t.Owner)
	}
	c.Request = c.Request.WithContext(ctx)
}

// Auth validates bearer tokens against the store. In required mode a
// missing or invalid token is a 401. In optional mode a missing header or
// an unknown token proceeds unauthenticated; only a malformed header is
// rejected.
func Auth(store *token.Store, required bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")

		if header == "" {
			if required {
				abortUnauthenticated(c, "missing Authorization header")
				return
			}
			c.Next()
			return
		}

		tok, ok := bearerToken(header)
		if !ok {
			abortUnauthenticated(c, "invalid Authorization header format, expected 'Bearer <token>'")
			return
		}

		if !store.Validate(tok) {
			if required {
				abortUnauthenticated(c, "invalid token")
				return
			}
			c.Next()
			return
		}

		authenticate(c, store, tok)
		c.Next()
	}
}
