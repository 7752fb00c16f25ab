package alternatives

import (
	"github.com/davidahmann/spendgate/internal/decision"
	"github.com/davidahmann/spendgate/internal/policy"
	"github.com/davidahmann/spendgate/internal/rules"
	"github.com/davidahmann/spendgate/pkg/types"
)

// Apply returns a patched copy of tx. The input is not modified.
func Apply(tx types.TransactionContext, patch types.Patch) types.TransactionContext {
	out := tx.Clone()
	if patch.PaymentMethod != "" {
		out.PaymentMethod = patch.PaymentMethod
	}
	if patch.RemoveItemID != "" {
		kept := out.Items[:0]
		for _, item := range out.Items {
			if item.ID != patch.RemoveItemID {
				kept = append(kept, item)
			}
		}
		out.Items = kept
	}
	if patch.ItemID != "" && patch.VendorID != "" {
		for i := range out.Items {
			if out.Items[i].ID == patch.ItemID {
				out.Items[i].VendorID = patch.VendorID
			}
		}
	}
	if patch.CostCenter != "" {
		out.CostCenter = patch.CostCenter
	}
	if patch.ProjectTag != "" {
		out.ProjectTag = patch.ProjectTag
	}
	if patch.Purpose != "" {
		out.Purpose = patch.Purpose
	}
	if patch.ItemAllocation != "" {
		for i := range out.Items {
			if out.Items[i].Allocation == "" {
				out.Items[i].Allocation = patch.ItemAllocation
			}
		}
	}
	return out
}

// Verify re-evaluates every patched context and records the real outcome.
// Alternatives without a patch keep their advisory outcome.
func Verify(tx types.TransactionContext, p policy.Policy, alts []types.Alternative) []types.Alternative {
	out := make([]types.Alternative, len(alts))
	for i, alt := range alts {
		out[i] = alt
		if alt.Patch == nil || alt.Patch.IsZero() {
			continue
		}
		res := rules.Evaluate(Apply(tx, *alt.Patch), p)
		out[i].ExpectedOutcome = decision.Aggregate(res.Reasons)
		out[i].Verified = true
	}
	return out
}
