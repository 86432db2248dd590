// Package pgstore persists sessions and entitlement records in Postgres,
// keyed per account, for multi-account server-side tooling. Schema is set up
// by migrations/postgres.
package pgstore

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/open-rails/licensekit/entitlement"
	"github.com/open-rails/licensekit/session"
)

// Stores bundles the per-account stores sharing one pool. Postgres is not a
// secret backing; pair these with a keychain or sealed-file SecretStore.
type Stores struct {
	Metadata *MetadataStore
	Record   *RecordStore
}

// New builds the store set for one account.
func New(pg *pgxpool.Pool, account uuid.UUID) *Stores {
	return &Stores{
		Metadata: &MetadataStore{pg: pg, account: account},
		Record:   &RecordStore{pg: pg, account: account},
	}
}

// MetadataStore persists session metadata as a jsonb column.
type MetadataStore struct {
	pg      *pgxpool.Pool
	account uuid.UUID
}

func (s *MetadataStore) Load(ctx context.Context) (*session.Metadata, bool, error) {
	var raw []byte
	err := s.pg.QueryRow(ctx,
		`SELECT metadata FROM licensekit_sessions WHERE account_id=$1`, s.account,
	).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	var meta session.Metadata
	if err := json.Unmarshal(raw, &meta); err != nil {
		return nil, false, err
	}
	return &meta, true, nil
}

func (s *MetadataStore) Save(ctx context.Context, meta *session.Metadata) error {
	b, err := json.Marshal(meta)
	if err != nil {
		return err
	}
	_, err = s.pg.Exec(ctx,
		`INSERT INTO licensekit_sessions (account_id, metadata, updated_at)
		 VALUES ($1, $2::jsonb, NOW())
		 ON CONFLICT (account_id) DO UPDATE SET metadata=EXCLUDED.metadata, updated_at=NOW()`,
		s.account, b)
	return err
}

func (s *MetadataStore) Clear(ctx context.Context) error {
	_, err := s.pg.Exec(ctx, `DELETE FROM licensekit_sessions WHERE account_id=$1`, s.account)
	return err
}

// RecordStore persists the entitlement record as a jsonb column.
type RecordStore struct {
	pg      *pgxpool.Pool
	account uuid.UUID
}

func (s *RecordStore) Load(ctx context.Context) (*entitlement.Record, bool, error) {
	var raw []byte
	err := s.pg.QueryRow(ctx,
		`SELECT record FROM licensekit_entitlements WHERE account_id=$1`, s.account,
	).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	var rec entitlement.Record
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, false, err
	}
	return &rec, true, nil
}

func (s *RecordStore) Save(ctx context.Context, rec *entitlement.Record) error {
	b, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	_, err = s.pg.Exec(ctx,
		`INSERT INTO licensekit_entitlements (account_id, record, updated_at)
		 VALUES ($1, $2::jsonb, NOW())
		 ON CONFLICT (account_id) DO UPDATE SET record=EXCLUDED.record, updated_at=NOW()`,
		s.account, b)
	return err
}

func (s *RecordStore) Clear(ctx context.Context) error {
	_, err := s.pg.Exec(ctx, `DELETE FROM licensekit_entitlements WHERE account_id=$1`, s.account)
	return err
}
