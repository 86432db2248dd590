// Package redisstore persists sessions and entitlement records in Redis,
// keyed per account, for multi-account server-side tooling.
package redisstore

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"

	"github.com/open-rails/licensekit/entitlement"
	"github.com/open-rails/licensekit/session"
)

const defaultPrefix = "licensekit:"

// Stores bundles the three per-account stores sharing one client and key
// namespace.
type Stores struct {
	Metadata *MetadataStore
	Secret   *SecretStore
	Record   *RecordStore
}

// New builds the store set for one account. An empty prefix uses
// "licensekit:".
func New(rdb *redis.Client, prefix, account string) *Stores {
	if prefix == "" {
		prefix = defaultPrefix
	}
	return &Stores{
		Metadata: &MetadataStore{rdb: rdb, key: prefix + "session:" + account},
		Secret:   &SecretStore{rdb: rdb, key: prefix + "refresh:" + account},
		Record:   &RecordStore{rdb: rdb, key: prefix + "entitlement:" + account},
	}
}

// MetadataStore persists session metadata as a JSON value.
type MetadataStore struct {
	rdb *redis.Client
	key string
}

func (s *MetadataStore) Load(ctx context.Context) (*session.Metadata, bool, error) {
	var meta session.Metadata
	ok, err := loadJSON(ctx, s.rdb, s.key, &meta)
	if !ok || err != nil {
		return nil, false, err
	}
	return &meta, true, nil
}

func (s *MetadataStore) Save(ctx context.Context, meta *session.Metadata) error {
	return saveJSON(ctx, s.rdb, s.key, meta)
}

func (s *MetadataStore) Clear(ctx context.Context) error {
	return s.rdb.Del(ctx, s.key).Err()
}

// SecretStore persists the refresh credential as a plain string value.
type SecretStore struct {
	rdb *redis.Client
	key string
}

func (s *SecretStore) Load(ctx context.Context) (string, bool, error) {
	val, err := s.rdb.Get(ctx, s.key).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return val, true, nil
}

func (s *SecretStore) Save(ctx context.Context, secret string) error {
	return s.rdb.Set(ctx, s.key, secret, 0).Err()
}

func (s *SecretStore) Clear(ctx context.Context) error {
	return s.rdb.Del(ctx, s.key).Err()
}

func (s *SecretStore) Strategy() string { return "redis" }

// RecordStore persists the entitlement record as a JSON value.
type RecordStore struct {
	rdb *redis.Client
	key string
}

func (s *RecordStore) Load(ctx context.Context) (*entitlement.Record, bool, error) {
	var rec entitlement.Record
	ok, err := loadJSON(ctx, s.rdb, s.key, &rec)
	if !ok || err != nil {
		return nil, false, err
	}
	return &rec, true, nil
}

func (s *RecordStore) Save(ctx context.Context, rec *entitlement.Record) error {
	return saveJSON(ctx, s.rdb, s.key, rec)
}

func (s *RecordStore) Clear(ctx context.Context) error {
	return s.rdb.Del(ctx, s.key).Err()
}

func loadJSON(ctx context.Context, rdb *redis.Client, key string, out interface{}) (bool, error) {
	val, err := rdb.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(val, out); err != nil {
		return false, err
	}
	return true, nil
}

func saveJSON(ctx context.Context, rdb *redis.Client, key string, v interface{}) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return rdb.Set(ctx, key, b, 0).Err()
}
