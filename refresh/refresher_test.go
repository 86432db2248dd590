package refresh

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/open-rails/licensekit/entitlement"
)

type fakeSession struct {
	authed     bool
	token      string
	fetchErr   error
	fetchCalls atomic.Int32
	fetchDelay time.Duration
	marks      atomic.Int32
}

func (s *fakeSession) Authenticated() bool { return s.authed }

func (s *fakeSession) FetchEntitlementJWT(ctx context.Context) (string, error) {
	s.fetchCalls.Add(1)
	if s.fetchDelay > 0 {
		time.Sleep(s.fetchDelay)
	}
	if s.fetchErr != nil {
		return "", s.fetchErr
	}
	return s.token, nil
}

func (s *fakeSession) MarkEntitlementRefresh(ctx context.Context, t time.Time) error {
	s.marks.Add(1)
	return nil
}

type fakeCache struct {
	mu       sync.Mutex
	snapshot entitlement.Snapshot
	storeErr error
	stored   []string
	result   entitlement.Snapshot
}

func (c *fakeCache) StoreSignedEntitlement(ctx context.Context, token string, refreshedAt time.Time) (entitlement.Snapshot, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stored = append(c.stored, token)
	c.snapshot = c.result
	c.snapshot.LastRefreshAt = refreshedAt
	return c.snapshot, c.storeErr
}

func (c *fakeCache) Snapshot() entitlement.Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshot
}

func (c *fakeCache) storedCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.stored)
}

func okSnapshot() entitlement.Snapshot {
	return entitlement.Snapshot{Status: entitlement.StatusOK, SignatureValid: true}
}

func TestRequestRefreshHappyPath(t *testing.T) {
	sess := &fakeSession{authed: true, token: "jwt-1"}
	cache := &fakeCache{result: okSnapshot()}
	r := New(sess, cache)

	if !r.RequestRefresh(context.Background(), ReasonManual, false) {
		t.Fatal("refresh should succeed")
	}
	if got := cache.storedCount(); got != 1 {
		t.Errorf("stored %d tokens, want 1", got)
	}
	if got := sess.marks.Load(); got != 1 {
		t.Errorf("mark calls = %d, want 1", got)
	}
}

func TestRequestRefreshUnauthenticated(t *testing.T) {
	sess := &fakeSession{authed: false}
	cache := &fakeCache{result: okSnapshot()}
	r := New(sess, cache)

	if r.RequestRefresh(context.Background(), ReasonManual, true) {
		t.Error("refresh must no-op without a session")
	}
	if sess.fetchCalls.Load() != 0 {
		t.Error("no network call expected")
	}
}

func TestRequestRefreshOffline(t *testing.T) {
	sess := &fakeSession{authed: true, token: "jwt-1"}
	cache := &fakeCache{result: okSnapshot()}
	r := New(sess, cache, WithOnline(func() bool { return false }))

	if r.RequestRefresh(context.Background(), ReasonManual, true) {
		t.Error("refresh must no-op while offline")
	}
	if sess.fetchCalls.Load() != 0 {
		t.Error("no network call expected")
	}
}

func TestSingleFlight(t *testing.T) {
	sess := &fakeSession{authed: true, token: "jwt-1", fetchDelay: 50 * time.Millisecond}
	cache := &fakeCache{result: okSnapshot()}
	r := New(sess, cache)

	var wg sync.WaitGroup
	results := make([]bool, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = r.RequestRefresh(context.Background(), ReasonManual, true)
		}(i)
	}
	wg.Wait()

	if sess.fetchCalls.Load() != 1 {
		t.Errorf("fetch calls = %d, want 1", sess.fetchCalls.Load())
	}
	if !results[0] || !results[1] {
		t.Errorf("both callers must observe the shared outcome, got %v", results)
	}
}

func TestCooldownGatesRepeatAttempts(t *testing.T) {
	now := time.Date(2026, 8, 26, 9, 0, 0, 0, time.UTC)
	sess := &fakeSession{authed: true, token: "jwt-1"}
	cache := &fakeCache{result: okSnapshot()}
	r := New(sess, cache, WithClock(func() time.Time { return now }),
		WithDailyInterval(time.Nanosecond)) // keep the daily gate open

	if !r.RequestRefresh(context.Background(), ReasonDaily, false) {
		t.Fatal("first daily refresh should run")
	}
	now = now.Add(2 * time.Minute)
	if r.RequestRefresh(context.Background(), ReasonDaily, false) {
		t.Error("second attempt inside the cooldown must no-op")
	}
	if sess.fetchCalls.Load() != 1 {
		t.Errorf("fetch calls = %d, want 1", sess.fetchCalls.Load())
	}

	// Manual and forced requests bypass the cooldown.
	if !r.RequestRefresh(context.Background(), ReasonManual, false) {
		t.Error("manual refresh should bypass the cooldown")
	}
	if !r.RequestRefresh(context.Background(), ReasonDaily, true) {
		t.Error("forced refresh should bypass the cooldown")
	}
}

func TestDailyRefreshOnlyWhenDue(t *testing.T) {
	now := time.Date(2026, 8, 26, 9, 0, 0, 0, time.UTC)
	sess := &fakeSession{authed: true, token: "jwt-1"}
	cache := &fakeCache{result: okSnapshot()}
	cache.snapshot = okSnapshot()
	cache.snapshot.LastRefreshAt = now.Add(-time.Hour)
	r := New(sess, cache, WithClock(func() time.Time { return now }))

	if r.NeedsDailyRefresh() {
		t.Error("refresh an hour ago should not be due")
	}
	if r.RequestRefresh(context.Background(), ReasonDaily, false) {
		t.Error("daily refresh must no-op when not due")
	}
	if sess.fetchCalls.Load() != 0 {
		t.Error("no network call expected")
	}

	now = now.Add(25 * time.Hour)
	if !r.NeedsDailyRefresh() {
		t.Error("refresh 26 hours ago should be due")
	}
	if !r.RequestRefresh(context.Background(), ReasonDaily, false) {
		t.Error("due daily refresh should run")
	}
}

func TestNeedsDailyRefreshWithoutPriorRefresh(t *testing.T) {
	sess := &fakeSession{authed: true}
	cache := &fakeCache{}
	r := New(sess, cache)
	if !r.NeedsDailyRefresh() {
		t.Error("no prior refresh timestamp must mean due")
	}
}

func TestFetchFailureResolvesFalse(t *testing.T) {
	sess := &fakeSession{authed: true, fetchErr: context.DeadlineExceeded}
	cache := &fakeCache{result: okSnapshot()}
	r := New(sess, cache)

	if r.RequestRefresh(context.Background(), ReasonManual, true) {
		t.Error("failed fetch must resolve false")
	}
	if cache.storedCount() != 0 {
		t.Error("nothing should be stored on fetch failure")
	}
}

func TestInvalidSignatureSkipsMark(t *testing.T) {
	sess := &fakeSession{authed: true, token: "tampered"}
	cache := &fakeCache{result: entitlement.Snapshot{Status: entitlement.StatusInvalidSignature}}
	cache.storeErr = context.Canceled // stand-in verification error
	r := New(sess, cache)

	if r.RequestRefresh(context.Background(), ReasonManual, true) {
		t.Error("untrusted record must resolve false")
	}
	if sess.marks.Load() != 0 {
		t.Error("invalid_signature must not stamp the refresh timestamp")
	}
}

func TestOnLoginSuccessBundledToken(t *testing.T) {
	sess := &fakeSession{authed: true}
	cache := &fakeCache{result: okSnapshot()}
	r := New(sess, cache)

	if !r.OnLoginSuccess(context.Background(), "bundled-jwt") {
		t.Error("bundled token should activate entitlement")
	}
	if sess.fetchCalls.Load() != 0 {
		t.Error("bundled token must not trigger a network fetch")
	}
	if cache.storedCount() != 1 {
		t.Error("bundled token should be stored")
	}
	if sess.marks.Load() != 1 {
		t.Error("bundled token should stamp the refresh timestamp")
	}
}

func TestOnLoginSuccessWithoutBundleForcesRefresh(t *testing.T) {
	sess := &fakeSession{authed: true, token: "jwt-1"}
	cache := &fakeCache{result: okSnapshot()}
	r := New(sess, cache)

	if !r.OnLoginSuccess(context.Background(), "") {
		t.Error("fallback refresh should succeed")
	}
	if sess.fetchCalls.Load() != 1 {
		t.Errorf("fetch calls = %d, want 1", sess.fetchCalls.Load())
	}
}

func TestStartStopIdempotent(t *testing.T) {
	sess := &fakeSession{authed: false}
	cache := &fakeCache{}
	r := New(sess, cache, WithSchedule("@every 1h"))

	r.Start()
	r.Start()
	r.Stop()
	r.Stop()
}
