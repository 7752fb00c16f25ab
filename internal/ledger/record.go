package ledger

import (
	"crypto/ed25519"
	"fmt"

	"github.com/davidahmann/spendgate/internal/crypto"
	"github.com/davidahmann/spendgate/pkg/types"
)

const AuditSchema = "spendgate.audit.v0.1"

type Signer interface {
	KeyID() string
	SignEd25519(message []byte) ([]byte, error)
}

// KeySigner signs with an in-process ed25519 key.
type KeySigner struct {
	ID   string
	Priv ed25519.PrivateKey
}

func (s KeySigner) KeyID() string { return s.ID }

func (s KeySigner) SignEd25519(message []byte) ([]byte, error) {
	return crypto.SignDigest(s.Priv, message)
}

func (s KeySigner) PublicKey() ed25519.PublicKey {
	return s.Priv.Public().(ed25519.PublicKey)
}

// MakeAuditRecord canonicalizes, hashes and signs one evaluation result.
func MakeAuditRecord(result types.EvaluationResult, createdAt string, signer Signer) (AuditRecord, error) {
	if result.CorrelationID == "" || result.ContextID == "" || result.DecisionID == "" {
		return AuditRecord{}, fmt.Errorf("missing required audit fields")
	}

	body := map[string]any{
		"schema":         AuditSchema,
		"created_at":     createdAt,
		"correlation_id": result.CorrelationID,
		"context_id":     result.ContextID,
		"decision_id":    result.DecisionID,
		"result":         result,
	}

	canonical, err := crypto.Canonicalize(body)
	if err != nil {
		return AuditRecord{}, err
	}

	sig, err := signer.SignEd25519(crypto.DigestBytes(canonical))
	if err != nil {
		return AuditRecord{}, err
	}

	return AuditRecord{
		CorrelationID: result.CorrelationID,
		ContextID:     result.ContextID,
		DecisionID:    result.DecisionID,
		PolicyHash:    result.Audit.Meta("policy_hash"),
		Outcome:       string(result.Outcome),
		BodyJSON:      canonical,
		BodyDigest:    crypto.DigestWithPrefix(canonical),
		KeyID:         signer.KeyID(),
		Sig:           sig,
		CreatedAt:     createdAt,
	}, nil
}
