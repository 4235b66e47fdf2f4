package tokens

import (
	"encoding/base64"
	"encoding/hex"
	"testing"
)

func TestGenerateOpaqueToken(t *testing.T) {
	a, err := GenerateOpaqueToken(32)
	if err != nil {
		t.Fatal(err)
	}
	b, err := GenerateOpaqueToken(32)
	if err != nil {
		t.Fatal(err)
	}
	if a == b {
		t.Fatal("two tokens must differ")
	}
	raw, err := base64.RawURLEncoding.DecodeString(a)
	if err != nil || len(raw) != 32 {
		t.Fatalf("token not 32 raw bytes of base64url: %v", err)
	}
}

func TestGenerateHexToken(t *testing.T) {
	tok, err := GenerateHexToken(32)
	if err != nil {
		t.Fatal(err)
	}
	if len(tok) != 64 {
		t.Fatalf("got %d hex chars, want 64", len(tok))
	}
	if _, err := hex.DecodeString(tok); err != nil {
		t.Fatalf("not hex: %v", err)
	}
}

func TestSHA256Base64URL_Deterministic(t *testing.T) {
	h1 := SHA256Base64URL("refresh-token-value")
	h2 := SHA256Base64URL("refresh-token-value")
	if h1 != h2 {
		t.Fatal("hash must be deterministic")
	}
	if h1 == SHA256Base64URL("other-value") {
		t.Fatal("distinct inputs must not collide")
	}
	raw, err := base64.RawURLEncoding.DecodeString(h1)
	if err != nil || len(raw) != 32 {
		t.Fatalf("hash not a base64url sha256: %v", err)
	}
}
