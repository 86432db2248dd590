package entitlement

import (
	"context"
	"crypto/rsa"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"errors"
	"fmt"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwk"
	"github.com/lestrrat-go/jwx/v2/jws"
	"github.com/lestrrat-go/jwx/v2/jwt"
)

// KeySetFromRSAPublicKey wraps a single RSA public key in a jwk.Set suitable
// for verifying entitlement tokens.
func KeySetFromRSAPublicKey(pub *rsa.PublicKey) (jwk.Set, error) {
	if pub == nil {
		return nil, errors.New("entitlement: nil public key")
	}
	key, err := jwk.FromRaw(pub)
	if err != nil {
		return nil, err
	}
	if err := key.Set(jwk.AlgorithmKey, jwa.RS256); err != nil {
		return nil, err
	}
	if err := key.Set(jwk.KeyUsageKey, "sig"); err != nil {
		return nil, err
	}
	set := jwk.NewSet()
	if err := set.AddKey(key); err != nil {
		return nil, err
	}
	return set, nil
}

// KeySetFromPEM parses a PEM-encoded RSA public key (PKIX or PKCS1) into a
// verification key set.
func KeySetFromPEM(pemBytes []byte) (jwk.Set, error) {
	if len(pemBytes) == 0 {
		return nil, errors.New("entitlement: empty public key pem")
	}
	blk, _ := pem.Decode(pemBytes)
	if blk == nil {
		return nil, errors.New("entitlement: failed to decode public key pem")
	}
	var pub *rsa.PublicKey
	switch blk.Type {
	case "RSA PUBLIC KEY":
		parsed, err := x509.ParsePKCS1PublicKey(blk.Bytes)
		if err != nil {
			return nil, err
		}
		pub = parsed
	default:
		key, err := x509.ParsePKIXPublicKey(blk.Bytes)
		if err != nil {
			return nil, err
		}
		var ok bool
		if pub, ok = key.(*rsa.PublicKey); !ok {
			return nil, errors.New("entitlement: pem is not an RSA public key")
		}
	}
	return KeySetFromRSAPublicKey(pub)
}

// FetchKeySet fetches the issuer's published JWKS for verification.
func FetchKeySet(ctx context.Context, jwksURL string) (jwk.Set, error) {
	if jwksURL == "" {
		return nil, errors.New("entitlement: missing jwks url")
	}
	return jwk.Fetch(ctx, jwksURL)
}

// verifyAndParse checks the token signature against the key set and extracts
// the entitlement claims. Lifetime validation is deliberately skipped here:
// expiry is graded (ok/grace/expired) by snapshot derivation, not rejected
// at the signature boundary.
func verifyAndParse(keys jwk.Set, rawToken string) (*Payload, error) {
	if keys == nil {
		return nil, errors.New("entitlement: missing verification key set")
	}
	// The pinned key may not carry the issuer's kid, so match on algorithm
	// instead of requiring a kid hit.
	token, err := jwt.ParseString(rawToken,
		jwt.WithKeySet(keys, jws.WithRequireKid(false), jws.WithInferAlgorithmFromKey(true)),
		jwt.WithValidate(false))
	if err != nil {
		return nil, err
	}
	p := &Payload{
		Subject:   token.Subject(),
		IssuedAt:  token.IssuedAt(),
		ExpiresAt: token.Expiration(),
		Features:  map[string]bool{},
	}
	if raw, ok := token.Get("plan"); ok {
		if plan, ok := raw.(string); ok {
			p.Plan = plan
		}
	}
	if raw, ok := token.Get("entitlement_id"); ok {
		if id, ok := raw.(string); ok {
			p.EntitlementID = id
		}
	}
	if raw, ok := token.Get("revision"); ok {
		if rev, err := asInt64(raw); err == nil {
			p.Revision = rev
		}
	}
	if raw, ok := token.Get("grace_expires_at"); ok {
		ts, err := asTime(raw)
		if err != nil {
			return nil, fmt.Errorf("entitlement: bad grace_expires_at claim: %w", err)
		}
		p.GraceExpiresAt = ts
	}
	if p.GraceExpiresAt.IsZero() {
		// Tokens minted without an explicit grace boundary get none.
		p.GraceExpiresAt = p.ExpiresAt
	}
	if raw, ok := token.Get("features"); ok {
		m, ok := raw.(map[string]interface{})
		if !ok {
			return nil, errors.New("entitlement: features claim is not an object")
		}
		for name, v := range m {
			if b, ok := v.(bool); ok {
				p.Features[name] = b
			}
		}
	}
	return p, nil
}

func asInt64(v interface{}) (int64, error) {
	switch n := v.(type) {
	case float64:
		return int64(n), nil
	case int64:
		return n, nil
	case int:
		return int64(n), nil
	case json.Number:
		return n.Int64()
	default:
		return 0, fmt.Errorf("unexpected numeric claim type %T", v)
	}
}

// asTime accepts unix seconds or an RFC3339 string.
func asTime(v interface{}) (time.Time, error) {
	switch t := v.(type) {
	case time.Time:
		return t, nil
	case string:
		return time.Parse(time.RFC3339, t)
	default:
		secs, err := asInt64(v)
		if err != nil {
			return time.Time{}, err
		}
		return time.Unix(secs, 0), nil
	}
}
