// Package filestore persists session metadata and entitlement records as
// JSON files in a directory, and the refresh credential as a sealed blob.
package filestore

import (
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/open-rails/licensekit/entitlement"
	"github.com/open-rails/licensekit/session"
)

const (
	metadataFile = "session.json"
	recordFile   = "entitlement.json"
)

// MetadataStore persists session metadata to <dir>/session.json.
type MetadataStore struct {
	path string
}

func NewMetadataStore(dir string) *MetadataStore {
	return &MetadataStore{path: filepath.Join(dir, metadataFile)}
}

func (s *MetadataStore) Load(ctx context.Context) (*session.Metadata, bool, error) {
	_ = ctx
	var meta session.Metadata
	ok, err := readJSON(s.path, &meta)
	if !ok || err != nil {
		return nil, false, err
	}
	return &meta, true, nil
}

func (s *MetadataStore) Save(ctx context.Context, meta *session.Metadata) error {
	_ = ctx
	return writeJSON(s.path, meta)
}

func (s *MetadataStore) Clear(ctx context.Context) error {
	_ = ctx
	return removeIfExists(s.path)
}

// RecordStore persists the entitlement record to <dir>/entitlement.json.
type RecordStore struct {
	path string
}

func NewRecordStore(dir string) *RecordStore {
	return &RecordStore{path: filepath.Join(dir, recordFile)}
}

func (s *RecordStore) Load(ctx context.Context) (*entitlement.Record, bool, error) {
	_ = ctx
	var rec entitlement.Record
	ok, err := readJSON(s.path, &rec)
	if !ok || err != nil {
		return nil, false, err
	}
	return &rec, true, nil
}

func (s *RecordStore) Save(ctx context.Context, rec *entitlement.Record) error {
	_ = ctx
	return writeJSON(s.path, rec)
}

func (s *RecordStore) Clear(ctx context.Context) error {
	_ = ctx
	return removeIfExists(s.path)
}

func readJSON(path string, out interface{}) (bool, error) {
	b, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(b, out); err != nil {
		return false, err
	}
	return true, nil
}

// writeJSON writes via a temp file and rename so a crash mid-write never
// leaves a truncated record behind.
func writeJSON(path string, v interface{}) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

func removeIfExists(path string) error {
	err := os.Remove(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}
