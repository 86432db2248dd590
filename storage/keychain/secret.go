// Package keychainstore backs the refresh credential with the operating
// system's credential vault (Keychain, Secret Service, Credential Manager)
// via go-keyring.
package keychainstore

import (
	"context"
	"errors"

	"github.com/zalando/go-keyring"
)

// SecretStore stores the refresh credential under a service/account pair in
// the OS vault.
type SecretStore struct {
	service string
	account string
}

// NewSecretStore builds a vault-backed secret store. Typical values are the
// application id for service and the signed-in email for account.
func NewSecretStore(service, account string) *SecretStore {
	return &SecretStore{service: service, account: account}
}

func (s *SecretStore) Load(ctx context.Context) (string, bool, error) {
	_ = ctx
	secret, err := keyring.Get(s.service, s.account)
	if errors.Is(err, keyring.ErrNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return secret, true, nil
}

func (s *SecretStore) Save(ctx context.Context, secret string) error {
	_ = ctx
	return keyring.Set(s.service, s.account, secret)
}

func (s *SecretStore) Clear(ctx context.Context) error {
	_ = ctx
	err := keyring.Delete(s.service, s.account)
	if errors.Is(err, keyring.ErrNotFound) {
		return nil
	}
	return err
}

func (s *SecretStore) Strategy() string { return "keychain" }

// Available probes the vault with a throwaway entry so callers can fall back
// to the encrypted-file store on headless hosts.
func (s *SecretStore) Available() bool {
	const probe = "licensekit-probe"
	if err := keyring.Set(s.service, probe, "ok"); err != nil {
		return false
	}
	_ = keyring.Delete(s.service, probe)
	return true
}
