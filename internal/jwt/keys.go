package jwt

import (
	"crypto/ed25519"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"os"
	"sync"
)

// Keystore holds the signing keypair. A single active key is enough here;
// rotation replaces the keypair and old tokens fail closed.
type Keystore struct {
	mu   sync.RWMutex
	kid  string
	priv ed25519.PrivateKey
	pub  ed25519.PublicKey
}

// NewEphemeralKeystore generates a fresh keypair. Used in dev and tests.
func NewEphemeralKeystore() (*Keystore, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, err
	}
	return &Keystore{kid: kidFor(pub), priv: priv, pub: pub}, nil
}

// LoadKeystore reads a base64url-encoded ed25519 seed from path.
// If the file does not exist, a new seed is generated and persisted (0600).
func LoadKeystore(path string) (*Keystore, error) {
	raw, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		seed := make([]byte, ed25519.SeedSize)
		if _, err := rand.Read(seed); err != nil {
			return nil, err
		}
		enc := base64.RawURLEncoding.EncodeToString(seed)
		if err := os.WriteFile(path, []byte(enc), 0o600); err != nil {
			return nil, fmt.Errorf("jwt: persist seed: %w", err)
		}
		raw = []byte(enc)
	} else if err != nil {
		return nil, err
	}

	seed, err := base64.RawURLEncoding.DecodeString(string(raw))
	if err != nil || len(seed) != ed25519.SeedSize {
		return nil, fmt.Errorf("jwt: invalid seed file %s", path)
	}
	priv := ed25519.NewKeyFromSeed(seed)
	pub := priv.Public().(ed25519.PublicKey)
	return &Keystore{kid: kidFor(pub), priv: priv, pub: pub}, nil
}

// Active returns the current kid and keypair.
func (k *Keystore) Active() (string, ed25519.PrivateKey, ed25519.PublicKey) {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return k.kid, k.priv, k.pub
}

// PublicKeyByKID returns the public key for kid, failing on unknown kids so
// rotated-out tokens are rejected rather than silently accepted.
func (k *Keystore) PublicKeyByKID(kid string) (ed25519.PublicKey, error) {
	k.mu.RLock()
	defer k.mu.RUnlock()
	if kid != "" && kid != k.kid {
		return nil, fmt.Errorf("jwt: unknown kid %q", kid)
	}
	return k.pub, nil
}

func kidFor(pub ed25519.PublicKey) string {
	sum := sha256.Sum256(pub)
	return hex.EncodeToString(sum[:8])
}
