// Package refresh decides when the session and entitlement cache talk to the
// network. It owns the periodic schedule, the refresh cooldown, and the
// single-flight guarantee around entitlement fetches.
package refresh

import (
	"context"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/open-rails/licensekit/entitlement"
)

// Refresh reasons accepted by RequestRefresh. Manual requests bypass the
// cooldown; daily requests are additionally gated on NeedsDailyRefresh.
const (
	ReasonDaily  = "daily"
	ReasonManual = "manual"
	ReasonLogin  = "login"
)

const (
	// DefaultDailyInterval is how stale the cached entitlement may get
	// before a daily refresh is due.
	DefaultDailyInterval = 24 * time.Hour
	// DefaultCooldown is the minimum spacing between non-forced attempts.
	DefaultCooldown = 5 * time.Minute
	// DefaultSchedule is the periodic timer's cron spec.
	DefaultSchedule = "@every 6h"
)

// Session is the slice of the auth session the refresher drives.
type Session interface {
	Authenticated() bool
	FetchEntitlementJWT(ctx context.Context) (string, error)
	MarkEntitlementRefresh(ctx context.Context, t time.Time) error
}

// Cache is the slice of the entitlement cache the refresher feeds.
type Cache interface {
	StoreSignedEntitlement(ctx context.Context, token string, refreshedAt time.Time) (entitlement.Snapshot, error)
	Snapshot() entitlement.Snapshot
}

// attempt is one in-flight refresh; joiners wait on done and read ok.
type attempt struct {
	done chan struct{}
	ok   bool
}

// Refresher coordinates entitlement refreshes: at most one attempt is in
// flight at a time, attempts are rate limited by a cooldown, and a periodic
// schedule re-triggers the daily path without UI involvement.
type Refresher struct {
	session  Session
	cache    Cache
	online   func() bool
	log      *logrus.Logger
	now      func() time.Time
	daily    time.Duration
	cooldown time.Duration
	schedule string

	mu          sync.Mutex
	lastAttempt time.Time
	inflight    *attempt
	cron        *cron.Cron
}

// Opt configures a Refresher.
type Opt func(*Refresher)

// WithOnline injects the device's connectivity probe. When it reports false
// the refresher declines to start attempts.
func WithOnline(online func() bool) Opt {
	return func(r *Refresher) {
		if online != nil {
			r.online = online
		}
	}
}

// WithDailyInterval overrides the daily refresh staleness threshold.
func WithDailyInterval(d time.Duration) Opt {
	return func(r *Refresher) {
		if d > 0 {
			r.daily = d
		}
	}
}

// WithCooldown overrides the minimum spacing between non-forced attempts.
func WithCooldown(d time.Duration) Opt {
	return func(r *Refresher) {
		if d > 0 {
			r.cooldown = d
		}
	}
}

// WithSchedule overrides the periodic timer's cron spec.
func WithSchedule(spec string) Opt {
	return func(r *Refresher) {
		if spec != "" {
			r.schedule = spec
		}
	}
}

// WithLogger sets the logger for swallowed background failures.
func WithLogger(log *logrus.Logger) Opt {
	return func(r *Refresher) {
		if log != nil {
			r.log = log
		}
	}
}

// WithClock overrides the refresher's clock.
func WithClock(now func() time.Time) Opt {
	return func(r *Refresher) {
		if now != nil {
			r.now = now
		}
	}
}

// New builds a refresher over the given session and cache.
func New(session Session, cache Cache, opts ...Opt) *Refresher {
	r := &Refresher{
		session:  session,
		cache:    cache,
		online:   func() bool { return true },
		log:      logrus.StandardLogger(),
		now:      time.Now,
		daily:    DefaultDailyInterval,
		cooldown: DefaultCooldown,
		schedule: DefaultSchedule,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Start arms the periodic timer. Repeated calls are no-ops.
func (r *Refresher) Start() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cron != nil {
		return
	}
	c := cron.New()
	if _, err := c.AddFunc(r.schedule, func() {
		r.RequestRefresh(context.Background(), ReasonDaily, false)
	}); err != nil {
		r.log.WithError(err).Error("invalid refresh schedule, periodic refresh disabled")
		return
	}
	c.Start()
	r.cron = c
}

// Stop disarms the periodic timer. Must be called on teardown so timers do
// not leak across session lifetimes. An in-flight refresh runs to
// completion; there is no cancellation.
func (r *Refresher) Stop() {
	r.mu.Lock()
	c := r.cron
	r.cron = nil
	r.mu.Unlock()
	if c != nil {
		c.Stop()
	}
}

// NeedsDailyRefresh reports whether the cached entitlement is stale enough
// for the daily path: no prior refresh on record, or one older than the
// daily interval.
func (r *Refresher) NeedsDailyRefresh() bool {
	last := r.cache.Snapshot().LastRefreshAt
	return last.IsZero() || r.now().Sub(last) > r.daily
}

// OnLoginSuccess activates entitlement after a login. A bundled token from
// the login response is stored directly, saving a round trip; otherwise a
// forced refresh runs. Returns whether a trusted record resulted.
func (r *Refresher) OnLoginSuccess(ctx context.Context, bundledToken string) bool {
	if bundledToken == "" {
		return r.RequestRefresh(ctx, ReasonLogin, true)
	}
	now := r.now()
	r.mu.Lock()
	r.lastAttempt = now
	r.mu.Unlock()
	snap, err := r.cache.StoreSignedEntitlement(ctx, bundledToken, now)
	if err != nil {
		r.log.WithError(err).Warn("bundled entitlement token rejected")
	}
	if snap.Status != entitlement.StatusInvalidSignature {
		if err := r.session.MarkEntitlementRefresh(ctx, now); err != nil {
			r.log.WithError(err).Warn("failed to stamp entitlement refresh time")
		}
	}
	return snap.SignatureValid
}

// RequestRefresh is the single coordination point for entitlement refreshes.
//
// It returns false without network I/O when the session is unauthenticated,
// the device is offline, a daily refresh is not yet due (reason "daily",
// non-forced), or a non-forced, non-manual attempt lands inside the
// cooldown. A caller arriving while an attempt is in flight joins it and
// observes the same outcome. All failures resolve to false and stay local;
// nothing propagates to the caller.
func (r *Refresher) RequestRefresh(ctx context.Context, reason string, force bool) bool {
	if !r.session.Authenticated() {
		return false
	}
	if !r.online() {
		return false
	}
	if reason == ReasonDaily && !force && !r.NeedsDailyRefresh() {
		return false
	}

	r.mu.Lock()
	if a := r.inflight; a != nil {
		r.mu.Unlock()
		<-a.done
		return a.ok
	}
	now := r.now()
	if !force && reason != ReasonManual && !r.lastAttempt.IsZero() && now.Sub(r.lastAttempt) < r.cooldown {
		r.mu.Unlock()
		return false
	}
	a := &attempt{done: make(chan struct{})}
	r.inflight = a
	r.lastAttempt = now
	r.mu.Unlock()

	a.ok = r.refresh(ctx, reason)

	r.mu.Lock()
	r.inflight = nil
	r.mu.Unlock()
	close(a.done)
	return a.ok
}

func (r *Refresher) refresh(ctx context.Context, reason string) bool {
	token, err := r.session.FetchEntitlementJWT(ctx)
	if err != nil {
		r.log.WithError(err).WithField("reason", reason).Warn("entitlement fetch failed")
		return false
	}
	now := r.now()
	snap, err := r.cache.StoreSignedEntitlement(ctx, token, now)
	if err != nil {
		r.log.WithError(err).WithField("reason", reason).Warn("entitlement verification failed")
	}
	if snap.Status != entitlement.StatusInvalidSignature {
		if err := r.session.MarkEntitlementRefresh(ctx, now); err != nil {
			r.log.WithError(err).Warn("failed to stamp entitlement refresh time")
		}
	}
	return snap.SignatureValid
}
