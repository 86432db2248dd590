package authgin

import (
	"context"

	"github.com/open-rails/licensekit/entitlement"
	"github.com/open-rails/licensekit/session"
)

// SessionService is the slice of session.Session the handlers use.
type SessionService interface {
	Login(ctx context.Context, email, password string) (*session.LoginResponse, error)
	Logout(ctx context.Context) error
	Metadata() *session.Metadata
	Authenticated() bool
	SecretStrategy() string
}

// CacheService is the slice of entitlement.Cache the handlers use.
type CacheService interface {
	Clear(ctx context.Context) error
	Snapshot() entitlement.Snapshot
}

// GateService evaluates feature decisions.
type GateService interface {
	CanUse(featureID string) entitlement.Decision
}

// RefresherService triggers entitlement refreshes.
type RefresherService interface {
	OnLoginSuccess(ctx context.Context, bundledToken string) bool
	RequestRefresh(ctx context.Context, reason string, force bool) bool
}
