package entitlement

import "fmt"

// DefaultNearExpiryRefreshDays is the expiry horizon at which an allowed
// decision starts recommending a refresh.
const DefaultNearExpiryRefreshDays = 2

// SnapshotSource supplies the current entitlement view. *Cache satisfies it.
type SnapshotSource interface {
	Snapshot() Snapshot
}

// Gate maps an entitlement snapshot and a feature id to an allow/deny
// verdict. It is read-only and side-effect free.
type Gate struct {
	source         SnapshotSource
	nearExpiryDays int
}

// GateOpt configures a Gate.
type GateOpt func(*Gate)

// WithNearExpiryRefreshDays overrides the refresh-recommendation horizon.
func WithNearExpiryRefreshDays(days int) GateOpt {
	return func(g *Gate) { g.nearExpiryDays = days }
}

// NewGate builds a feature gate over the given snapshot source.
func NewGate(source SnapshotSource, opts ...GateOpt) *Gate {
	g := &Gate{source: source, nearExpiryDays: DefaultNearExpiryRefreshDays}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// CanUse decides whether the named feature is usable right now.
//
// The check order is load-bearing: signature and hard-expiry checks precede
// the feature-flag lookup, so a tampered or stale payload can never grant a
// feature even if its embedded flags say yes.
func (g *Gate) CanUse(featureID string) Decision {
	snap := g.source.Snapshot()
	switch snap.Status {
	case StatusNoEntitlement:
		return Decision{Allowed: false, Status: snap.Status, Reason: "no entitlement found, please sign in"}
	case StatusInvalidSignature:
		return Decision{Allowed: false, Status: snap.Status, Reason: "entitlement could not be verified, please refresh"}
	case StatusExpired:
		return Decision{Allowed: false, Status: snap.Status, Reason: "entitlement expired, please refresh"}
	}
	if snap.Payload == nil || !snap.Payload.Features[featureID] {
		return Decision{Allowed: false, Status: snap.Status, Reason: "plan does not include this feature"}
	}
	if snap.Status == StatusGrace {
		days := snap.DaysUntilGraceExpiry
		if days < 0 {
			days = 0
		}
		return Decision{
			Allowed: true,
			Status:  snap.Status,
			Reason:  fmt.Sprintf("subscription lapsed, %d %s remaining in grace period", days, pluralDays(days)),
		}
	}
	if snap.DaysUntilExpiry <= g.nearExpiryDays {
		return Decision{
			Allowed: true,
			Status:  snap.Status,
			Reason:  fmt.Sprintf("valid, expires in %d %s, refresh recommended", snap.DaysUntilExpiry, pluralDays(snap.DaysUntilExpiry)),
		}
	}
	return Decision{Allowed: true, Status: snap.Status, Reason: "valid"}
}

func pluralDays(n int) string {
	if n == 1 {
		return "day"
	}
	return "days"
}
