package alternatives

import (
	"testing"

	"github.com/davidahmann/spendgate/internal/rules"
	"github.com/davidahmann/spendgate/pkg/types"
)

func TestApplyDoesNotMutateInput(t *testing.T) {
	tx := baseContext()
	tx.Items = append(tx.Items, types.LineItem{ID: "x", Category: "alcohol", VendorID: "officehub", UnitAmount: 1, Qty: 1})

	patched := Apply(tx, types.Patch{RemoveItemID: "i1", CostCenter: "CC-9", ItemAllocation: "CC-9"})
	if len(tx.Items) != 2 || tx.Items[0].ID != "i1" || tx.CostCenter != "CC-100" {
		t.Fatalf("input mutated: %+v", tx)
	}
	if len(patched.Items) != 1 || patched.Items[0].ID != "x" {
		t.Fatalf("unexpected items: %+v", patched.Items)
	}
	if patched.CostCenter != "CC-9" || patched.Items[0].Allocation != "CC-9" {
		t.Fatalf("patch not applied: %+v", patched)
	}
}

func TestApplySwitchVendor(t *testing.T) {
	tx := baseContext()
	patched := Apply(tx, types.Patch{ItemID: "i1", VendorID: "deskdepot"})
	if patched.Items[0].VendorID != "deskdepot" || tx.Items[0].VendorID != "officehub" {
		t.Fatalf("unexpected vendors: patched=%s original=%s", patched.Items[0].VendorID, tx.Items[0].VendorID)
	}
}

func TestVerifyReplacesOptimisticOutcome(t *testing.T) {
	p := loadPolicy(t)
	tx := baseContext()
	tx.CostCenter = ""
	tx.Items = append(tx.Items, types.LineItem{ID: "w", Name: "Wine", Category: "alcohol", VendorID: "officehub", UnitAmount: 4000, Qty: 1})

	alts := Verify(tx, p, Synthesize(tx, rules.Evaluate(tx, p).Reasons, p))

	// Removing the wine leaves the missing cost center, so the basket is still blocked.
	remove, ok := byID(alts, "remove-w")
	if !ok || !remove.Verified || remove.ExpectedOutcome != types.OutcomeBlocked {
		t.Fatalf("unexpected remove alternative: %+v", remove)
	}
	personal, ok := byID(alts, payPersonallyID)
	if !ok || !personal.Verified || personal.ExpectedOutcome != types.OutcomeAllowed {
		t.Fatalf("unexpected pay personally: %+v", personal)
	}
}

func TestVerifyKeepsUnpatchedAlternatives(t *testing.T) {
	tx := baseContext()
	alts := Verify(tx, loadPolicy(t), []types.Alternative{contactAdmin()})
	if alts[0].Verified || alts[0].ExpectedOutcome != types.OutcomeAllowed {
		t.Fatalf("unpatched alternative should be untouched: %+v", alts[0])
	}
}
