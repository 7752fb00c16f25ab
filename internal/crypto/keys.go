package crypto

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"os"
	"strings"
)

// KeyPairFromSeed derives an Ed25519 keypair from a 32-byte seed.
func KeyPairFromSeed(seed []byte) (ed25519.PrivateKey, ed25519.PublicKey, error) {
	if len(seed) != ed25519.SeedSize {
		return nil, nil, ErrInvalidSeedSize
	}
	priv := ed25519.NewKeyFromSeed(seed)
	return priv, priv.Public().(ed25519.PublicKey), nil
}

// EphemeralKeyPair generates a random keypair for development gateways.
func EphemeralKeyPair() (ed25519.PrivateKey, ed25519.PublicKey, error) {
	seed := make([]byte, ed25519.SeedSize)
	if _, err := rand.Read(seed); err != nil {
		return nil, nil, err
	}
	return KeyPairFromSeed(seed)
}

// LoadPrivateKey reads an Ed25519 seed or full private key from path.
// The file may hold raw bytes, or text prefixed "hex:" / "base64:", or bare hex.
func LoadPrivateKey(path string) (ed25519.PrivateKey, ed25519.PublicKey, error) {
	// #nosec G304 -- path is operator-configured.
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, err
	}
	data, err := decodeKeyMaterial(raw)
	if err != nil {
		return nil, nil, err
	}

	switch len(data) {
	case ed25519.SeedSize:
		return KeyPairFromSeed(data)
	case ed25519.PrivateKeySize:
		priv := ed25519.PrivateKey(data)
		return priv, priv.Public().(ed25519.PublicKey), nil
	default:
		return nil, nil, fmt.Errorf("unsupported private key length: %d", len(data))
	}
}

func decodeKeyMaterial(raw []byte) ([]byte, error) {
	text := strings.TrimSpace(string(raw))
	switch {
	case text == "":
		return nil, ErrEmptyKeyFile
	case strings.HasPrefix(text, "hex:"):
		return hex.DecodeString(strings.TrimPrefix(text, "hex:"))
	case strings.HasPrefix(text, "base64:"):
		return base64.StdEncoding.DecodeString(strings.TrimPrefix(text, "base64:"))
	}

	if out, err := hex.DecodeString(text); err == nil {
		return out, nil
	}
	if out, err := base64.StdEncoding.DecodeString(text); err == nil {
		return out, nil
	}
	// binary key files
	if len(raw) == ed25519.SeedSize || len(raw) == ed25519.PrivateKeySize {
		return raw, nil
	}
	return nil, fmt.Errorf("unrecognized key encoding")
}
