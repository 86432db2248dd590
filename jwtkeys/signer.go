// Package jwtkeys holds the RSA signing and JWKS plumbing for signed
// entitlement tokens. Clients only ever verify; signing lives here for
// servers that mint tokens and for the test identity server.
package jwtkeys

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
)

// RSASigner signs entitlement tokens with an in-memory RSA key. Production
// issuers should load the key from a KMS or database rather than generating
// one.
type RSASigner struct {
	key *rsa.PrivateKey
	kid string
}

// NewRSASigner generates a fresh RSA key of the given size (2048 if zero).
func NewRSASigner(bits int, kid string) (*RSASigner, error) {
	if bits == 0 {
		bits = 2048
	}
	k, err := rsa.GenerateKey(rand.Reader, bits)
	if err != nil {
		return nil, err
	}
	return &RSASigner{key: k, kid: kid}, nil
}

// NewRSASignerFromPEM constructs an RSASigner from a PEM-encoded private key.
func NewRSASignerFromPEM(kid string, pemBytes []byte) (*RSASigner, error) {
	if len(pemBytes) == 0 {
		return nil, errors.New("jwtkeys: empty RSA private key pem")
	}
	blk, _ := pem.Decode(pemBytes)
	if blk == nil {
		return nil, errors.New("jwtkeys: failed to decode RSA private key pem")
	}
	var parsed *rsa.PrivateKey
	var err error
	switch blk.Type {
	case "RSA PRIVATE KEY":
		parsed, err = x509.ParsePKCS1PrivateKey(blk.Bytes)
	default:
		var key any
		key, err = x509.ParsePKCS8PrivateKey(blk.Bytes)
		if err == nil {
			var ok bool
			if parsed, ok = key.(*rsa.PrivateKey); !ok {
				err = errors.New("jwtkeys: pkcs8 key is not RSA private key")
			}
		}
	}
	if err != nil {
		return nil, err
	}
	return &RSASigner{key: parsed, kid: kid}, nil
}

func (s *RSASigner) Algorithm() string         { return jwt.SigningMethodRS256.Alg() }
func (s *RSASigner) KID() string               { return s.kid }
func (s *RSASigner) PublicKey() *rsa.PublicKey { return &s.key.PublicKey }

// Sign creates a signed token with the provided claims.
func (s *RSASigner) Sign(claims jwt.MapClaims) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	token.Header["kid"] = s.kid
	return token.SignedString(s.key)
}

// PublicKeyPEM encodes the signer's public key as PKIX PEM, the format the
// entitlement verifier's KeySetFromPEM accepts.
func (s *RSASigner) PublicKeyPEM() ([]byte, error) {
	der, err := x509.MarshalPKIXPublicKey(s.PublicKey())
	if err != nil {
		return nil, err
	}
	return pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der}), nil
}

// EntitlementClaims builds the claims set of a signed entitlement token:
// subject, plan, feature map, issue time, hard expiry, grace expiry,
// entitlement id and revision counter.
func EntitlementClaims(subject, plan string, features map[string]bool, issuedAt, expiresAt, graceExpiresAt time.Time, entitlementID string, revision int64) jwt.MapClaims {
	return jwt.MapClaims{
		"sub":              subject,
		"plan":             plan,
		"features":         features,
		"iat":              issuedAt.Unix(),
		"exp":              expiresAt.Unix(),
		"grace_expires_at": graceExpiresAt.Unix(),
		"entitlement_id":   entitlementID,
		"revision":         revision,
	}
}
