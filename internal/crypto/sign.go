package crypto

import (
	"crypto/ed25519"
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

const digestPrefix = "sha256:"

// DigestBytes returns the raw SHA-256 digest bytes.
func DigestBytes(data []byte) []byte {
	sum := sha256.Sum256(data)
	return sum[:]
}

// DigestWithPrefix returns the SHA-256 digest as "sha256:<hex>".
func DigestWithPrefix(data []byte) string {
	return digestPrefix + hex.EncodeToString(DigestBytes(data))
}

// ShortDigest trims the prefix and keeps the first n hex characters, for display.
func ShortDigest(digest string, n int) string {
	trimmed := strings.TrimPrefix(digest, digestPrefix)
	if n > 0 && len(trimmed) > n {
		return trimmed[:n]
	}
	return trimmed
}

func SignDigest(priv ed25519.PrivateKey, digest []byte) ([]byte, error) {
	if len(digest) != sha256.Size {
		return nil, ErrInvalidDigestLen
	}
	return ed25519.Sign(priv, digest), nil
}

func VerifyDigest(pub ed25519.PublicKey, digest, sig []byte) (bool, error) {
	if len(digest) != sha256.Size {
		return false, ErrInvalidDigestLen
	}
	return ed25519.Verify(pub, digest, sig), nil
}
