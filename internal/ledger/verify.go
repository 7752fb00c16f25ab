package ledger

import (
	"crypto/ed25519"
	"errors"

	"github.com/davidahmann/spendgate/internal/crypto"
)

var (
	ErrAuditDigestMismatch = errors.New("audit digest mismatch")
	ErrAuditSignature      = errors.New("audit signature invalid")
	ErrPublicKeySize       = errors.New("invalid public key size")
)

// VerifyAuditRecord validates digest consistency and signature.
func VerifyAuditRecord(rec AuditRecord, publicKey ed25519.PublicKey) error {
	if len(publicKey) != ed25519.PublicKeySize {
		return ErrPublicKeySize
	}
	if rec.BodyDigest != crypto.DigestWithPrefix(rec.BodyJSON) {
		return ErrAuditDigestMismatch
	}

	ok, err := crypto.VerifyDigest(publicKey, crypto.DigestBytes(rec.BodyJSON), rec.Sig)
	if err != nil {
		return err
	}
	if !ok {
		return ErrAuditSignature
	}
	return nil
}
