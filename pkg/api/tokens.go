package api

import "time"

// Wire shapes for the management surface (family C).

type IssueTokenRequest struct {
	Owner    string            `json:"owner,omitempty"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

type RegisterTokenRequest struct {
	Token string `json:"token" binding:"required"`
	Owner string `json:"owner,omitempty"`
}

type TokenResponse struct {
	Token      string            `json:"token"`
	Owner      string            `json:"owner,omitempty"`
	CreatedAt  time.Time         `json:"created_at"`
	LastUsedAt time.Time         `json:"last_used_at"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}

type TokenListResponse struct {
	Tokens []TokenResponse `json:"tokens"`
	Count  int             `json:"count"`
}

type ValidateTokenResponse struct {
	Valid bool   `json:"valid"`
	Owner string `json:"owner,omitempty"`
}

type RevokeTokenResponse struct {
	Revoked bool `json:"revoked"`
}

// SessionTokenResponse is the short-lived capability token minted by
// GET /puku/v1/token for the editor session.
type SessionTokenResponse struct {
	Token     string    `json:"token"`
	TokenType string    `json:"token_type"` // "bearer"
	ExpiresAt time.Time `json:"expires_at"`
}

type StatusResponse struct {
	Status    string `json:"status"`
	Version   string `json:"version"`
	Providers int    `json:"providers"`
	Auth      string `json:"auth"` // "enforced" or "disabled"
}

// UsageResponse is the quota report polled by the editor's entitlement
// service. Snapshot keys are "chat" and "completions".
type UsageResponse struct {
	QuotaSnapshots    map[string]QuotaSnapshot `json:"quota_snapshots"`
	QuotaResetDateUTC string                   `json:"quota_reset_date_utc"`
}

type QuotaSnapshot struct {
	Entitlement      int64   `json:"entitlement"`
	Remaining        int64   `json:"remaining"`
	PercentRemaining float64 `json:"percent_remaining"`
	OveragePermitted bool    `json:"overage_permitted"`
	OverageCount     int64   `json:"overage_count"`
	Unlimited        bool    `json:"unlimited"`
}
