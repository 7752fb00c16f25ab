package api

import (
	"fmt"

	ctxbuilder "github.com/davidahmann/spendgate/internal/context"
	"github.com/davidahmann/spendgate/internal/policy"
	"github.com/davidahmann/spendgate/pkg/types"
)

// EvaluateRequest is the body of POST /v1/policy/evaluate. An inline Policy
// replaces the server's active policy for this call only.
type EvaluateRequest struct {
	types.TransactionContext

	// Aliases accepted for the *_epoch_ms spellings.
	GraceEndAtEpochMs *int64 `json:"grace_end_at_epoch_ms,omitempty"`
	NowEpochMs        *int64 `json:"now_epoch_ms,omitempty"`

	Policy *policy.Policy `json:"policy,omitempty"`
}

// Context returns the transaction context with aliases folded in. A zero
// now falls back to nowMs, the server clock.
func (r EvaluateRequest) Context(nowMs int64) types.TransactionContext {
	tx := r.TransactionContext
	if r.GraceEndAtEpochMs != nil && tx.GraceEndAtMs == 0 {
		tx.GraceEndAtMs = *r.GraceEndAtEpochMs
	}
	if r.NowEpochMs != nil && tx.NowMs == 0 {
		tx.NowMs = *r.NowEpochMs
	}
	if tx.NowMs == 0 {
		tx.NowMs = nowMs
	}
	return tx
}

// inlinePolicy wraps an inline policy. A policy without an id is a caller
// error.
func inlinePolicy(p policy.Policy) (policy.LoadedPolicy, error) {
	if p.PolicyID == "" {
		return policy.LoadedPolicy{}, &ctxbuilder.FieldError{Field: "policy.policy_id", Message: "is required"}
	}
	loaded, err := policy.FromPolicy(p)
	if err != nil {
		return policy.LoadedPolicy{}, fmt.Errorf("%w: policy: %v", ctxbuilder.ErrInvalidRequest, err)
	}
	return loaded, nil
}
