// Package memorystore provides in-memory store implementations, used in
// tests and for sessions that should not survive a restart.
package memorystore

import (
	"context"
	"sync"

	"github.com/open-rails/licensekit/entitlement"
	"github.com/open-rails/licensekit/session"
)

// MetadataStore keeps session metadata in memory.
type MetadataStore struct {
	mu   sync.Mutex
	meta *session.Metadata
}

func NewMetadataStore() *MetadataStore { return &MetadataStore{} }

func (s *MetadataStore) Load(ctx context.Context) (*session.Metadata, bool, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.meta == nil {
		return nil, false, nil
	}
	cp := *s.meta
	return &cp, true, nil
}

func (s *MetadataStore) Save(ctx context.Context, meta *session.Metadata) error {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *meta
	s.meta = &cp
	return nil
}

func (s *MetadataStore) Clear(ctx context.Context) error {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	s.meta = nil
	return nil
}

// SecretStore keeps the refresh credential in process memory only.
type SecretStore struct {
	mu     sync.Mutex
	secret string
	set    bool
}

func NewSecretStore() *SecretStore { return &SecretStore{} }

func (s *SecretStore) Load(ctx context.Context) (string, bool, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.secret, s.set, nil
}

func (s *SecretStore) Save(ctx context.Context, secret string) error {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	s.secret = secret
	s.set = true
	return nil
}

func (s *SecretStore) Clear(ctx context.Context) error {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	s.secret = ""
	s.set = false
	return nil
}

func (s *SecretStore) Strategy() string { return "memory" }

// RecordStore keeps the entitlement record in memory.
type RecordStore struct {
	mu  sync.Mutex
	rec *entitlement.Record
}

func NewRecordStore() *RecordStore { return &RecordStore{} }

func (s *RecordStore) Load(ctx context.Context) (*entitlement.Record, bool, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.rec == nil {
		return nil, false, nil
	}
	cp := *s.rec
	return &cp, true, nil
}

func (s *RecordStore) Save(ctx context.Context, rec *entitlement.Record) error {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *rec
	s.rec = &cp
	return nil
}

func (s *RecordStore) Clear(ctx context.Context) error {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rec = nil
	return nil
}
