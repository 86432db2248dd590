package filestore

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"path/filepath"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/chacha20poly1305"
)

const secretFile = "refresh_token.sealed"

// Argon2id parameters for deriving the sealing key from the passphrase.
const (
	argonTime    = 1
	argonMemory  = 64 * 1024
	argonThreads = 1
	argonSaltLen = 16
)

// SecretStore seals the refresh credential to <dir>/refresh_token.sealed
// with XChaCha20-Poly1305 under an Argon2id-derived key. It is the fallback
// backing for hosts without an OS credential vault.
type SecretStore struct {
	path       string
	passphrase []byte
}

// NewSecretStore builds a sealed file store. The passphrase is typically a
// machine- or install-scoped secret supplied by the embedding application.
func NewSecretStore(dir string, passphrase []byte) *SecretStore {
	return &SecretStore{path: filepath.Join(dir, secretFile), passphrase: passphrase}
}

type sealedBlob struct {
	Salt       string `json:"salt"`
	Nonce      string `json:"nonce"`
	Ciphertext string `json:"ciphertext"`
}

func (s *SecretStore) Load(ctx context.Context) (string, bool, error) {
	_ = ctx
	var blob sealedBlob
	ok, err := readJSON(s.path, &blob)
	if !ok || err != nil {
		return "", false, err
	}
	salt, err := base64.StdEncoding.DecodeString(blob.Salt)
	if err != nil {
		return "", false, fmt.Errorf("filestore: corrupt secret salt: %w", err)
	}
	nonce, err := base64.StdEncoding.DecodeString(blob.Nonce)
	if err != nil {
		return "", false, fmt.Errorf("filestore: corrupt secret nonce: %w", err)
	}
	ct, err := base64.StdEncoding.DecodeString(blob.Ciphertext)
	if err != nil {
		return "", false, fmt.Errorf("filestore: corrupt secret ciphertext: %w", err)
	}
	aead, err := chacha20poly1305.NewX(s.deriveKey(salt))
	if err != nil {
		return "", false, err
	}
	if len(nonce) != aead.NonceSize() {
		return "", false, errors.New("filestore: corrupt secret nonce length")
	}
	plain, err := aead.Open(nil, nonce, ct, nil)
	if err != nil {
		return "", false, fmt.Errorf("filestore: unsealing refresh token: %w", err)
	}
	return string(plain), true, nil
}

func (s *SecretStore) Save(ctx context.Context, secret string) error {
	_ = ctx
	salt := make([]byte, argonSaltLen)
	if _, err := rand.Read(salt); err != nil {
		return err
	}
	aead, err := chacha20poly1305.NewX(s.deriveKey(salt))
	if err != nil {
		return err
	}
	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return err
	}
	ct := aead.Seal(nil, nonce, []byte(secret), nil)
	blob := sealedBlob{
		Salt:       base64.StdEncoding.EncodeToString(salt),
		Nonce:      base64.StdEncoding.EncodeToString(nonce),
		Ciphertext: base64.StdEncoding.EncodeToString(ct),
	}
	return writeJSON(s.path, &blob)
}

func (s *SecretStore) Clear(ctx context.Context) error {
	_ = ctx
	return removeIfExists(s.path)
}

func (s *SecretStore) Strategy() string { return "encrypted_file" }

func (s *SecretStore) deriveKey(salt []byte) []byte {
	return argon2.IDKey(s.passphrase, salt, argonTime, argonMemory, argonThreads, chacha20poly1305.KeySize)
}
