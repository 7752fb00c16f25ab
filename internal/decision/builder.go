package decision

import (
	"github.com/davidahmann/spendgate/internal/crypto"
	"github.com/davidahmann/spendgate/pkg/types"
)

const DecisionSchema = "spendgate.decision.v0.1"

// BuildDecision builds a decision record and computes its decision_id.
func BuildDecision(contextID string, policy types.DecisionPolicy, outcome types.Outcome, availability types.Availability, reasonCodes []string, createdAt string) (types.DecisionRecord, error) {
	record := types.DecisionRecord{
		Schema:       DecisionSchema,
		CreatedAt:    createdAt,
		ContextID:    contextID,
		Policy:       policy,
		Outcome:      outcome,
		Availability: availability,
		ReasonCodes:  reasonCodes,
	}

	signingView := map[string]any{
		"schema":     record.Schema,
		"created_at": record.CreatedAt,
		"context_id": record.ContextID,
		"policy": map[string]any{
			"policy_id":      record.Policy.PolicyID,
			"policy_version": record.Policy.PolicyVersion,
			"policy_hash":    record.Policy.PolicyHash,
		},
		"outcome":      string(record.Outcome),
		"availability": string(record.Availability),
		"reason_codes": record.ReasonCodes,
	}

	id, err := crypto.CanonicalDigest(signingView)
	if err != nil {
		return types.DecisionRecord{}, err
	}

	record.DecisionID = id
	return record, nil
}
