package authgin

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/open-rails/licensekit/entitlement"
	"github.com/open-rails/licensekit/refresh"
	"github.com/open-rails/licensekit/session"
	memorystore "github.com/open-rails/licensekit/storage/memory"
	identitytest "github.com/open-rails/licensekit/testing"
)

func newRouter(t *testing.T) (*gin.Engine, *identitytest.IdentityServer) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	srv := identitytest.NewIdentityServer()
	t.Cleanup(srv.Close)

	keys, err := entitlement.KeySetFromRSAPublicKey(srv.PublicKey())
	if err != nil {
		t.Fatalf("KeySetFromRSAPublicKey: %v", err)
	}
	sess := session.New(session.NewClient(srv.URL()),
		memorystore.NewMetadataStore(), memorystore.NewSecretStore())
	cache := entitlement.NewCache(memorystore.NewRecordStore(), keys)
	core := &Core{
		Session:   sess,
		Cache:     cache,
		Gate:      entitlement.NewGate(cache),
		Refresher: refresh.New(sess, cache),
	}

	r := gin.New()
	RegisterRoutes(r, core)
	return r, srv
}

func do(t *testing.T, r *gin.Engine, method, path, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	out := map[string]any{}
	_ = json.Unmarshal(w.Body.Bytes(), &out)
	return w, out
}

func login(t *testing.T, r *gin.Engine) {
	t.Helper()
	w, _ := do(t, r, http.MethodPost, "/auth/login", `{"email":"user@example.com","password":"hunter2"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("login status = %d: %s", w.Code, w.Body.String())
	}
}

func TestLoginActivatesEntitlement(t *testing.T) {
	r, _ := newRouter(t)
	w, body := do(t, r, http.MethodPost, "/auth/login", `{"email":"user@example.com","password":"hunter2"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}
	if body["entitlement_status"] != "ok" {
		t.Errorf("entitlement_status = %v, want ok", body["entitlement_status"])
	}
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	r, srv := newRouter(t)
	srv.FailLoginDetail = "invalid credentials"
	w, body := do(t, r, http.MethodPost, "/auth/login", `{"email":"user@example.com","password":"wrong"}`)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d", w.Code)
	}
	if body["error"] != "invalid credentials" {
		t.Errorf("error = %v, want server detail", body["error"])
	}
}

func TestLoginValidatesInput(t *testing.T) {
	r, _ := newRouter(t)
	w, _ := do(t, r, http.MethodPost, "/auth/login", `{"email":"  "}`)
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestFeatureDecision(t *testing.T) {
	r, _ := newRouter(t)
	login(t, r)

	w, body := do(t, r, http.MethodGet, "/entitlement/features/cloud_sync", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if body["allowed"] != true {
		t.Errorf("cloud_sync allowed = %v, want true (%v)", body["allowed"], body["reason"])
	}

	_, body = do(t, r, http.MethodGet, "/entitlement/features/unknown_feature", "")
	if body["allowed"] != false {
		t.Errorf("unknown_feature allowed = %v, want false", body["allowed"])
	}
}

func TestEntitlementStatus(t *testing.T) {
	r, _ := newRouter(t)
	login(t, r)

	w, body := do(t, r, http.MethodGet, "/entitlement/status", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if body["status"] != "ok" || body["signature_valid"] != true {
		t.Errorf("unexpected status body: %v", body)
	}
	if body["plan"] != "premium" {
		t.Errorf("plan = %v, want premium", body["plan"])
	}
}

func TestManualRefresh(t *testing.T) {
	r, srv := newRouter(t)
	login(t, r)

	before := srv.EntitlementCalls()
	w, body := do(t, r, http.MethodPost, "/entitlement/refresh", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if body["refreshed"] != true {
		t.Errorf("refreshed = %v, want true", body["refreshed"])
	}
	if srv.EntitlementCalls() != before+1 {
		t.Errorf("entitlement calls = %d, want %d", srv.EntitlementCalls(), before+1)
	}
}

func TestLogoutClearsEverything(t *testing.T) {
	r, _ := newRouter(t)
	login(t, r)

	w, _ := do(t, r, http.MethodPost, "/auth/logout", "")
	if w.Code != http.StatusOK {
		t.Fatalf("logout status = %d", w.Code)
	}

	_, body := do(t, r, http.MethodGet, "/auth/session", "")
	if body["authenticated"] != false {
		t.Errorf("authenticated = %v, want false", body["authenticated"])
	}
	_, body = do(t, r, http.MethodGet, "/entitlement/features/cloud_sync", "")
	if body["allowed"] != false || body["status"] != "no_entitlement" {
		t.Errorf("post-logout decision = %v", body)
	}
}

func TestSessionView(t *testing.T) {
	r, _ := newRouter(t)
	login(t, r)

	_, body := do(t, r, http.MethodGet, "/auth/session", "")
	if body["authenticated"] != true {
		t.Errorf("authenticated = %v", body["authenticated"])
	}
	if body["email"] != "user@example.com" {
		t.Errorf("email = %v", body["email"])
	}
	if body["secret_strategy"] != "memory" {
		t.Errorf("secret_strategy = %v", body["secret_strategy"])
	}
}
