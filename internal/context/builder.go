package context

import (
	"github.com/davidahmann/spendgate/internal/crypto"
	"github.com/davidahmann/spendgate/pkg/types"
)

const ContextSchema = "spendgate.context.v0.1"

// BuildContext validates a transaction context and computes its context_id.
// Validation failures wrap ErrInvalidRequest.
func BuildContext(tx types.TransactionContext) (types.ContextRecord, error) {
	if err := Validate(tx); err != nil {
		return types.ContextRecord{}, err
	}

	record := types.ContextRecord{
		Schema:  ContextSchema,
		Context: tx,
	}

	signingView := map[string]any{
		"schema":  record.Schema,
		"context": record.Context,
	}
	id, err := crypto.CanonicalDigest(signingView)
	if err != nil {
		return types.ContextRecord{}, err
	}

	record.ContextID = id
	return record, nil
}
