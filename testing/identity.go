// Package testing provides a mock identity endpoint for testing applications
// that use licensekit. It serves /login, /refresh and /entitlement, signs
// entitlement tokens with an in-memory RSA key, and publishes the matching
// JWKS, so integration tests never need a real identity server.
//
// Example usage:
//
//	srv := testing.NewIdentityServer()
//	defer srv.Close()
//
//	client := session.NewClient(srv.URL())
//	keys, _ := entitlement.KeySetFromRSAPublicKey(srv.PublicKey())
package testing

import (
	"crypto/rsa"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/open-rails/licensekit/jwtkeys"
)

// IdentityServer is a scriptable mock of the identity endpoint.
//
// Knob fields may be set between requests; they are read under the server's
// lock. The zero configuration serves a successful login with a bundled
// entitlement token for a premium plan expiring in 30 days with a 7-day
// grace window.
type IdentityServer struct {
	server *httptest.Server
	signer *jwtkeys.RSASigner
	rogue  *jwtkeys.RSASigner // unrelated key, used when Tamper is set

	mu sync.Mutex

	// Knobs.
	FailLoginDetail      string // non-empty: /login returns 401 with this detail
	OmitRefreshToken     bool   // login response omits refresh_token
	OmitAccessToken      bool   // refresh response omits access_token
	BundleEntitlement    bool   // include entitlement_jwt in login/refresh responses
	RotateOnRefresh      bool   // /refresh returns a new refresh_token
	UnauthorizedRequests int    // number of /entitlement 401s before success
	OmitEntitlement      bool   // /entitlement response omits entitlement_jwt
	Tamper               bool   // sign entitlement tokens with an unrelated key
	AccessTokenTTL       time.Duration

	// Entitlement payload knobs.
	Subject        string
	Plan           string
	Features       map[string]bool
	ExpiresAt      time.Time
	GraceExpiresAt time.Time
	Revision       int64

	loginCalls       int
	refreshCalls     int
	entitlementCalls int
	accessSeq        int
	refreshSeq       int
	currentRefresh   string
}

// NewIdentityServer starts a mock identity server. Call Close when done.
func NewIdentityServer() *IdentityServer {
	signer, err := jwtkeys.NewRSASigner(2048, "test-key-1")
	if err != nil {
		panic("failed to create RSA signer: " + err.Error())
	}
	rogue, err := jwtkeys.NewRSASigner(2048, "rogue-key-1")
	if err != nil {
		panic("failed to create rogue RSA signer: " + err.Error())
	}
	now := time.Now()
	s := &IdentityServer{
		signer:            signer,
		rogue:             rogue,
		BundleEntitlement: true,
		AccessTokenTTL:    time.Hour,
		Subject:           "user-123",
		Plan:              "premium",
		Features:          map[string]bool{"cloud_sync": true},
		ExpiresAt:         now.Add(30 * 24 * time.Hour),
		GraceExpiresAt:    now.Add(37 * 24 * time.Hour),
		Revision:          1,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/login", s.handleLogin)
	mux.HandleFunc("/refresh", s.handleRefresh)
	mux.HandleFunc("/entitlement", s.handleEntitlement)
	mux.HandleFunc("/.well-known/jwks.json", s.handleJWKS)

	s.server = httptest.NewServer(mux)
	return s
}

// URL returns the base URL of the mock server.
func (s *IdentityServer) URL() string { return s.server.URL }

// JWKSURL returns the URL of the published key set.
func (s *IdentityServer) JWKSURL() string { return s.server.URL + "/.well-known/jwks.json" }

// PublicKey returns the verification key for entitlement tokens.
func (s *IdentityServer) PublicKey() *rsa.PublicKey { return s.signer.PublicKey() }

// Close shuts down the server.
func (s *IdentityServer) Close() { s.server.Close() }

// LoginCalls reports how many /login requests were served.
func (s *IdentityServer) LoginCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loginCalls
}

// RefreshCalls reports how many /refresh requests were served.
func (s *IdentityServer) RefreshCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.refreshCalls
}

// EntitlementCalls reports how many /entitlement requests were served.
func (s *IdentityServer) EntitlementCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.entitlementCalls
}

// CurrentRefreshToken returns the refresh token the server currently
// accepts.
func (s *IdentityServer) CurrentRefreshToken() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.currentRefresh
}

// EntitlementToken mints a signed entitlement token with the current payload
// knobs, for tests that feed the cache directly.
func (s *IdentityServer) EntitlementToken() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mintEntitlement()
}

func (s *IdentityServer) mintEntitlement() string {
	signer := s.signer
	if s.Tamper {
		signer = s.rogue
	}
	claims := jwtkeys.EntitlementClaims(
		s.Subject, s.Plan, s.Features,
		time.Now(), s.ExpiresAt, s.GraceExpiresAt,
		uuid.NewString(), s.Revision,
	)
	token, err := signer.Sign(claims)
	if err != nil {
		panic("failed to sign entitlement token: " + err.Error())
	}
	return token
}

func (s *IdentityServer) handleLogin(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loginCalls++
	if s.FailLoginDetail != "" {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"detail": s.FailLoginDetail})
		return
	}
	var body struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Email == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"detail": "malformed login request"})
		return
	}
	s.accessSeq++
	s.refreshSeq++
	s.currentRefresh = fmt.Sprintf("refresh-%d", s.refreshSeq)
	resp := map[string]any{
		"access_token":            fmt.Sprintf("access-%d", s.accessSeq),
		"access_token_expires_at": time.Now().Add(s.AccessTokenTTL),
		"user_id":                 s.Subject,
	}
	if !s.OmitRefreshToken {
		resp["refresh_token"] = s.currentRefresh
	}
	if s.BundleEntitlement {
		resp["entitlement_jwt"] = s.mintEntitlement()
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *IdentityServer) handleRefresh(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.refreshCalls++
	var body struct {
		RefreshToken string `json:"refresh_token"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.RefreshToken != s.currentRefresh {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"detail": "unknown refresh token"})
		return
	}
	resp := map[string]any{}
	if !s.OmitAccessToken {
		s.accessSeq++
		resp["access_token"] = fmt.Sprintf("access-%d", s.accessSeq)
		resp["access_token_expires_at"] = time.Now().Add(s.AccessTokenTTL)
	}
	if s.RotateOnRefresh {
		s.refreshSeq++
		s.currentRefresh = fmt.Sprintf("refresh-%d", s.refreshSeq)
		resp["refresh_token"] = s.currentRefresh
	}
	if s.BundleEntitlement {
		resp["entitlement_jwt"] = s.mintEntitlement()
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *IdentityServer) handleEntitlement(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entitlementCalls++
	token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	if token == "" || token != fmt.Sprintf("access-%d", s.accessSeq) {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"detail": "invalid access token"})
		return
	}
	if s.UnauthorizedRequests > 0 {
		s.UnauthorizedRequests--
		writeJSON(w, http.StatusUnauthorized, map[string]string{"detail": "access token expired"})
		return
	}
	resp := map[string]any{}
	if !s.OmitEntitlement {
		resp["entitlement_jwt"] = s.mintEntitlement()
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *IdentityServer) handleJWKS(w http.ResponseWriter, r *http.Request) {
	jwk := jwtkeys.RSAPublicToJWK(s.signer.PublicKey(), s.signer.KID(), s.signer.Algorithm())
	jwtkeys.ServeJWKS(w, r, jwtkeys.JWKS{Keys: []jwtkeys.JWK{jwk}})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
