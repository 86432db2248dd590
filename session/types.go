package session

import (
	"context"
	"errors"
	"time"
)

// Sentinel errors for user-initiated credential operations.
var (
	// ErrInvalidResponse means the login response lacked a required token.
	ErrInvalidResponse = errors.New("session: login response missing access or refresh token")
	// ErrNoRefreshToken means no refresh credential is stored.
	ErrNoRefreshToken = errors.New("session: no refresh token available")
	// ErrRefreshFailed means the refresh response lacked a new access token.
	ErrRefreshFailed = errors.New("session: token refresh failed")
	// ErrMissingEntitlement means the entitlement response carried no token.
	ErrMissingEntitlement = errors.New("session: response missing entitlement token")
)

// Metadata is the persisted session record. It is created on login, mutated
// in place on refresh (LoggedInAt survives), and destroyed on logout.
type Metadata struct {
	AccessToken              string     `json:"access_token"`
	AccessTokenExpiresAt     *time.Time `json:"access_token_expires_at,omitempty"`
	UserID                   string     `json:"user_id,omitempty"`
	Email                    string     `json:"email,omitempty"`
	LoggedInAt               time.Time  `json:"logged_in_at"`
	LastEntitlementRefreshAt *time.Time `json:"last_entitlement_refresh_at,omitempty"`
}

// MetadataStore persists session metadata as an opaque record.
type MetadataStore interface {
	Load(ctx context.Context) (*Metadata, bool, error)
	Save(ctx context.Context, meta *Metadata) error
	Clear(ctx context.Context) error
}

// SecretStore holds the long-lived refresh credential. Implementations may
// use a stronger-isolation backing than the metadata store; Strategy reports
// which backing is active, for user-facing transparency only.
type SecretStore interface {
	Load(ctx context.Context) (string, bool, error)
	Save(ctx context.Context, secret string) error
	Clear(ctx context.Context) error
	Strategy() string
}

// LoginResponse is the raw identity-endpoint login result. EntitlementJWT,
// when present, lets the caller activate entitlement without an extra round
// trip.
type LoginResponse struct {
	AccessToken          string     `json:"access_token"`
	RefreshToken         string     `json:"refresh_token"`
	AccessTokenExpiresAt *time.Time `json:"access_token_expires_at,omitempty"`
	EntitlementJWT       string     `json:"entitlement_jwt,omitempty"`
	UserID               string     `json:"user_id,omitempty"`
}

// RefreshResponse is the raw token-refresh result. RefreshToken is set only
// when the server rotated the credential.
type RefreshResponse struct {
	AccessToken          string     `json:"access_token"`
	RefreshToken         string     `json:"refresh_token,omitempty"`
	AccessTokenExpiresAt *time.Time `json:"access_token_expires_at,omitempty"`
	EntitlementJWT       string     `json:"entitlement_jwt,omitempty"`
}

type entitlementResponse struct {
	EntitlementJWT string `json:"entitlement_jwt"`
}
