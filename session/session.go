package session

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// expirySkew is how far ahead of access-token expiry ValidAccessToken starts
// refreshing.
const expirySkew = 60 * time.Second

// Session owns the credential lifecycle against one identity endpoint: it is
// the only component that talks to /login, /refresh and /entitlement, and the
// only writer of the session metadata and refresh credential.
type Session struct {
	client  *Client
	meta    MetadataStore
	secrets SecretStore
	log     *logrus.Logger
	now     func() time.Time

	mu      sync.Mutex
	current *Metadata
}

// Opt configures a Session.
type Opt func(*Session)

// WithLogger sets the logger used for best-effort failures.
func WithLogger(log *logrus.Logger) Opt {
	return func(s *Session) {
		if log != nil {
			s.log = log
		}
	}
}

// WithSessionClock overrides the session's clock.
func WithSessionClock(now func() time.Time) Opt {
	return func(s *Session) {
		if now != nil {
			s.now = now
		}
	}
}

// New builds a session over the given identity client and stores.
func New(client *Client, meta MetadataStore, secrets SecretStore, opts ...Opt) *Session {
	s := &Session{
		client:  client,
		meta:    meta,
		secrets: secrets,
		log:     logrus.StandardLogger(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Hydrate loads persisted session metadata into memory at startup.
func (s *Session) Hydrate(ctx context.Context) error {
	meta, ok, err := s.meta.Load(ctx)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if ok {
		s.current = meta
	}
	return nil
}

// Login authenticates against the identity endpoint and establishes a new
// session, overwriting any prior one. The raw response is returned so the
// caller can activate a bundled entitlement token without a second round
// trip.
func (s *Session) Login(ctx context.Context, email, password string) (*LoginResponse, error) {
	resp, err := s.client.Login(ctx, email, password)
	if err != nil {
		return nil, errors.New(errorDetail(err, "login failed, please try again"))
	}
	if resp.AccessToken == "" || resp.RefreshToken == "" {
		return nil, ErrInvalidResponse
	}
	if err := s.secrets.Save(ctx, resp.RefreshToken); err != nil {
		return nil, fmt.Errorf("session: storing refresh token: %w", err)
	}
	meta := &Metadata{
		AccessToken:          resp.AccessToken,
		AccessTokenExpiresAt: resp.AccessTokenExpiresAt,
		UserID:               resp.UserID,
		Email:                email,
		LoggedInAt:           s.now(),
	}
	if err := s.meta.Save(ctx, meta); err != nil {
		return nil, fmt.Errorf("session: storing session metadata: %w", err)
	}
	s.mu.Lock()
	s.current = meta
	s.mu.Unlock()
	return resp, nil
}

// Logout clears the in-memory session and both stores. No network call is
// made; repeated calls are harmless.
func (s *Session) Logout(ctx context.Context) error {
	s.mu.Lock()
	s.current = nil
	s.mu.Unlock()
	return errors.Join(s.meta.Clear(ctx), s.secrets.Clear(ctx))
}

// RefreshAccessToken exchanges the stored refresh credential for a new
// access token, preserving the original login time. The credential rotates
// only when the server supplies a replacement.
func (s *Session) RefreshAccessToken(ctx context.Context) (*RefreshResponse, error) {
	secret, ok, err := s.secrets.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("session: loading refresh token: %w", err)
	}
	if !ok || secret == "" {
		return nil, ErrNoRefreshToken
	}
	resp, err := s.client.Refresh(ctx, secret)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrRefreshFailed, errorDetail(err, "identity endpoint rejected the refresh"))
	}
	if resp.AccessToken == "" {
		return nil, ErrRefreshFailed
	}
	if resp.RefreshToken != "" && resp.RefreshToken != secret {
		if err := s.secrets.Save(ctx, resp.RefreshToken); err != nil {
			return nil, fmt.Errorf("session: rotating refresh token: %w", err)
		}
	}
	s.mu.Lock()
	meta := s.current
	if meta == nil {
		meta = &Metadata{LoggedInAt: s.now()}
	}
	meta.AccessToken = resp.AccessToken
	meta.AccessTokenExpiresAt = resp.AccessTokenExpiresAt
	s.current = meta
	cp := *meta
	s.mu.Unlock()
	// Persist a copy: the live struct may be mutated under s.mu by a
	// concurrent caller while the store serializes it.
	if err := s.meta.Save(ctx, &cp); err != nil {
		return nil, fmt.Errorf("session: storing session metadata: %w", err)
	}
	return resp, nil
}

// ValidAccessToken returns an access token usable right now, best effort.
// If the current token expires within the skew it attempts one refresh; on
// failure the stale token is returned rather than an error.
func (s *Session) ValidAccessToken(ctx context.Context) string {
	s.mu.Lock()
	meta := s.current
	var token string
	fresh := false
	if meta != nil {
		token = meta.AccessToken
		fresh = meta.AccessTokenExpiresAt == nil ||
			meta.AccessTokenExpiresAt.After(s.now().Add(expirySkew))
	}
	s.mu.Unlock()
	if token == "" || fresh {
		return token
	}
	resp, err := s.RefreshAccessToken(ctx)
	if err != nil {
		s.log.WithError(err).Warn("access token refresh failed, using stale token")
		return token
	}
	return resp.AccessToken
}

// FetchEntitlementJWT fetches the signed entitlement token. A 401 triggers
// exactly one refresh-and-retry before the failure surfaces.
func (s *Session) FetchEntitlementJWT(ctx context.Context) (string, error) {
	token := s.ValidAccessToken(ctx)
	jwt, status, err := s.client.Entitlement(ctx, token)
	if status == http.StatusUnauthorized {
		resp, rerr := s.RefreshAccessToken(ctx)
		if rerr != nil {
			return "", fmt.Errorf("session: fetching entitlement: %w", rerr)
		}
		jwt, _, err = s.client.Entitlement(ctx, resp.AccessToken)
	}
	if err != nil {
		return "", fmt.Errorf("session: fetching entitlement: %s", errorDetail(err, "entitlement fetch failed"))
	}
	if jwt == "" {
		return "", ErrMissingEntitlement
	}
	return jwt, nil
}

// MarkEntitlementRefresh stamps the session with the time of the last
// successful entitlement refresh. No-op without an active session.
func (s *Session) MarkEntitlementRefresh(ctx context.Context, t time.Time) error {
	s.mu.Lock()
	meta := s.current
	if meta == nil {
		s.mu.Unlock()
		return nil
	}
	meta.LastEntitlementRefreshAt = &t
	cp := *meta
	s.mu.Unlock()
	return s.meta.Save(ctx, &cp)
}

// Authenticated reports whether a session with an access token is active.
func (s *Session) Authenticated() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current != nil && s.current.AccessToken != ""
}

// Metadata returns a copy of the current session metadata, or nil.
func (s *Session) Metadata() *Metadata {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return nil
	}
	cp := *s.current
	return &cp
}

// UserEmail returns the signed-in user's email, or "" when signed out.
func (s *Session) UserEmail() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return ""
	}
	return s.current.Email
}

// UserID returns the signed-in user's id, or "" when signed out.
func (s *Session) UserID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return ""
	}
	return s.current.UserID
}

// SecretStrategy reports which backing the refresh credential currently
// lives in (e.g. "keychain", "encrypted_file", "memory").
func (s *Session) SecretStrategy() string {
	return s.secrets.Strategy()
}
