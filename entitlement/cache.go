package entitlement

import (
	"context"
	"sync"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwk"
)

// RecordStore persists the last entitlement verification across restarts.
type RecordStore interface {
	Load(ctx context.Context) (*Record, bool, error)
	Save(ctx context.Context, rec *Record) error
	Clear(ctx context.Context) error
}

// Cache is the trust boundary for entitlement claims: it verifies signed
// tokens against a known key set, persists the verified record, and derives
// point-in-time snapshots from it.
type Cache struct {
	store RecordStore
	keys  jwk.Set
	now   func() time.Time

	mu  sync.Mutex
	rec *Record
}

// CacheOpt configures a Cache.
type CacheOpt func(*Cache)

// WithClock overrides the cache's clock.
func WithClock(now func() time.Time) CacheOpt {
	return func(c *Cache) {
		if now != nil {
			c.now = now
		}
	}
}

// NewCache builds a cache verifying against the given key set and persisting
// to the given store.
func NewCache(store RecordStore, keys jwk.Set, opts ...CacheOpt) *Cache {
	c := &Cache{store: store, keys: keys, now: time.Now}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Hydrate loads a previously persisted record into memory. The signature is
// not re-verified (the record carries the prior verdict); status is always
// recomputed on read, so a hydrated record may surface as grace or expired
// purely because the clock moved on.
func (c *Cache) Hydrate(ctx context.Context) error {
	rec, ok, err := c.store.Load(ctx)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if ok {
		c.rec = rec
	}
	return nil
}

// StoreSignedEntitlement verifies the token and persists the outcome.
//
// A failed verification still persists a signature_valid=false record: a
// freshly fetched token that does not verify is an untrustworthy data point,
// and prior trust is not retroactively extended past it.
func (c *Cache) StoreSignedEntitlement(ctx context.Context, token string, refreshedAt time.Time) (Snapshot, error) {
	now := c.now()
	payload, err := verifyAndParse(c.keys, token)
	rec := &Record{
		Token:          token,
		VerifiedAt:     now,
		LastRefreshAt:  refreshedAt,
		SignatureValid: err == nil,
	}
	if err == nil {
		rec.Payload = payload
	}
	c.mu.Lock()
	c.rec = rec
	c.mu.Unlock()
	if saveErr := c.store.Save(ctx, rec); saveErr != nil {
		return derive(rec, now), saveErr
	}
	return derive(rec, now), err
}

// Snapshot derives the current entitlement view from the cached record and
// the wall clock. Pure read.
func (c *Cache) Snapshot() Snapshot {
	c.mu.Lock()
	rec := c.rec
	c.mu.Unlock()
	return derive(rec, c.now())
}

// Clear wipes the record in memory and in the store. Used on logout.
func (c *Cache) Clear(ctx context.Context) error {
	c.mu.Lock()
	c.rec = nil
	c.mu.Unlock()
	return c.store.Clear(ctx)
}

// derive computes the snapshot for a record at the given instant. Status is
// never stored; it is always a function of (record, now) so it cannot drift
// from the data it reflects.
func derive(rec *Record, now time.Time) Snapshot {
	if rec == nil {
		return Snapshot{Status: StatusNoEntitlement, Reason: "no entitlement on record"}
	}
	snap := Snapshot{
		SignatureValid: rec.SignatureValid,
		LastRefreshAt:  rec.LastRefreshAt,
	}
	if !rec.SignatureValid || rec.Payload == nil {
		snap.Status = StatusInvalidSignature
		snap.Reason = "entitlement signature could not be verified"
		return snap
	}
	p := rec.Payload
	snap.Payload = p
	snap.DaysUntilExpiry = wholeDays(p.ExpiresAt, now)
	snap.DaysUntilGraceExpiry = wholeDays(p.GraceExpiresAt, now)
	switch {
	case now.After(p.GraceExpiresAt):
		snap.Status = StatusExpired
		snap.Reason = "entitlement expired"
	case now.After(p.ExpiresAt):
		snap.Status = StatusGrace
		snap.Reason = "entitlement past expiry, inside grace period"
	default:
		snap.Status = StatusOK
		snap.Reason = "entitlement valid"
	}
	return snap
}
