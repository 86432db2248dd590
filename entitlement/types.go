package entitlement

import "time"

// Status describes the trust/lifetime state of the cached entitlement.
// It is always derived from the record and the clock, never stored.
type Status string

const (
	StatusOK               Status = "ok"
	StatusGrace            Status = "grace"
	StatusExpired          Status = "expired"
	StatusNoEntitlement    Status = "no_entitlement"
	StatusInvalidSignature Status = "invalid_signature"
)

// Payload holds the verified claims of a signed entitlement token.
// It is immutable once verified; a newer token replaces it wholesale.
type Payload struct {
	Subject        string          `json:"subject"`
	Plan           string          `json:"plan"`
	Features       map[string]bool `json:"features"`
	IssuedAt       time.Time       `json:"issued_at"`
	ExpiresAt      time.Time       `json:"expires_at"`
	GraceExpiresAt time.Time       `json:"grace_expires_at"`
	EntitlementID  string          `json:"entitlement_id"`
	Revision       int64           `json:"revision"`
}

// Record is the persisted form of the last entitlement verification.
// A record with SignatureValid=false must never back an allow decision,
// regardless of what its payload claims.
type Record struct {
	Token          string    `json:"token"`
	Payload        *Payload  `json:"payload,omitempty"`
	VerifiedAt     time.Time `json:"verified_at"`
	LastRefreshAt  time.Time `json:"last_refresh_at"`
	SignatureValid bool      `json:"signature_valid"`
}

// Snapshot is the derived view of the cached record at a point in time.
// It is recomputed on every read and never persisted.
type Snapshot struct {
	Status               Status
	Reason               string
	Payload              *Payload
	SignatureValid       bool
	DaysUntilExpiry      int
	DaysUntilGraceExpiry int
	LastRefreshAt        time.Time
}

// Decision is the outcome of a feature-gate evaluation.
type Decision struct {
	Allowed bool   `json:"allowed"`
	Status  Status `json:"status"`
	Reason  string `json:"reason"`
}

// wholeDays returns the signed whole-day count from now to the boundary,
// truncated toward zero.
func wholeDays(boundary, now time.Time) int {
	return int(boundary.Sub(now).Hours() / 24)
}
