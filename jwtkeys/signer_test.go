package jwtkeys

import (
	"testing"
	"time"
)

func TestSignAndPEMRoundtrip(t *testing.T) {
	signer, err := NewRSASigner(2048, "k1")
	if err != nil {
		t.Fatalf("NewRSASigner: %v", err)
	}
	if signer.Algorithm() != "RS256" || signer.KID() != "k1" {
		t.Errorf("signer identity: alg=%q kid=%q", signer.Algorithm(), signer.KID())
	}

	now := time.Now()
	claims := EntitlementClaims("user-1", "premium",
		map[string]bool{"cloud_sync": true},
		now, now.Add(30*24*time.Hour), now.Add(37*24*time.Hour), "ent-1", 3)
	token, err := signer.Sign(claims)
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	if token == "" {
		t.Fatal("empty token")
	}

	pemBytes, err := signer.PublicKeyPEM()
	if err != nil {
		t.Fatalf("PublicKeyPEM: %v", err)
	}
	if len(pemBytes) == 0 {
		t.Fatal("empty pem")
	}
}

func TestNewRSASignerFromPEMRejectsGarbage(t *testing.T) {
	if _, err := NewRSASignerFromPEM("k1", nil); err == nil {
		t.Error("empty pem must fail")
	}
	if _, err := NewRSASignerFromPEM("k1", []byte("not pem")); err == nil {
		t.Error("garbage pem must fail")
	}
}
