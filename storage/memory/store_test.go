package memorystore

import (
	"context"
	"testing"
	"time"

	"github.com/open-rails/licensekit/entitlement"
	"github.com/open-rails/licensekit/session"
)

func TestMetadataRoundtrip(t *testing.T) {
	ctx := context.Background()
	s := NewMetadataStore()

	if _, ok, err := s.Load(ctx); ok || err != nil {
		t.Fatalf("empty store: ok=%v err=%v", ok, err)
	}

	meta := &session.Metadata{AccessToken: "tok", Email: "a@b.c", LoggedInAt: time.Now()}
	if err := s.Save(ctx, meta); err != nil {
		t.Fatalf("Save: %v", err)
	}
	// Mutating the caller's copy must not leak into the store.
	meta.AccessToken = "mutated"

	got, ok, err := s.Load(ctx)
	if err != nil || !ok {
		t.Fatalf("Load: ok=%v err=%v", ok, err)
	}
	if got.AccessToken != "tok" {
		t.Errorf("AccessToken = %q, want tok", got.AccessToken)
	}

	if err := s.Clear(ctx); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if _, ok, _ := s.Load(ctx); ok {
		t.Error("store not empty after clear")
	}
}

func TestSecretRoundtrip(t *testing.T) {
	ctx := context.Background()
	s := NewSecretStore()

	if s.Strategy() != "memory" {
		t.Errorf("strategy = %q", s.Strategy())
	}
	if _, ok, _ := s.Load(ctx); ok {
		t.Fatal("empty store reported a secret")
	}
	if err := s.Save(ctx, "refresh-1"); err != nil {
		t.Fatalf("Save: %v", err)
	}
	secret, ok, _ := s.Load(ctx)
	if !ok || secret != "refresh-1" {
		t.Errorf("Load = %q/%v", secret, ok)
	}
	if err := s.Clear(ctx); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if _, ok, _ := s.Load(ctx); ok {
		t.Error("secret survived clear")
	}
}

func TestRecordRoundtrip(t *testing.T) {
	ctx := context.Background()
	s := NewRecordStore()

	rec := &entitlement.Record{Token: "jwt", SignatureValid: true, VerifiedAt: time.Now()}
	if err := s.Save(ctx, rec); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, ok, err := s.Load(ctx)
	if err != nil || !ok {
		t.Fatalf("Load: ok=%v err=%v", ok, err)
	}
	if got.Token != "jwt" || !got.SignatureValid {
		t.Errorf("record mismatch: %+v", got)
	}
	if err := s.Clear(ctx); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if _, ok, _ := s.Load(ctx); ok {
		t.Error("record survived clear")
	}
}
