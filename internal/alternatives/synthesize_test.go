package alternatives

import (
	"testing"
	"time"

	"github.com/davidahmann/spendgate/internal/policy"
	"github.com/davidahmann/spendgate/internal/rules"
	"github.com/davidahmann/spendgate/pkg/types"
)

func loadPolicy(t *testing.T) policy.Policy {
	t.Helper()
	loaded, err := policy.LoadPolicy("../../policies/spendgate.yaml")
	if err != nil {
		t.Fatalf("load policy: %v", err)
	}
	return loaded.Policy
}

func baseContext() types.TransactionContext {
	return types.TransactionContext{
		Module:           "ecommerce",
		PaymentMethod:    types.PaymentCorporatePay,
		ProgramStatus:    types.ProgramEligible,
		NowMs:            time.Date(2026, 10, 14, 9, 30, 0, 0, time.UTC).UnixMilli(),
		CostCenter:       "CC-100",
		Purpose:          "Team supplies",
		AttachmentsCount: 1,
		Items: []types.LineItem{
			{ID: "i1", Name: "Paper", Category: "office_supplies", VendorID: "officehub", UnitAmount: 25000, Qty: 2},
		},
	}
}

func synthesize(t *testing.T, tx types.TransactionContext) []types.Alternative {
	t.Helper()
	p := loadPolicy(t)
	return Synthesize(tx, rules.Evaluate(tx, p).Reasons, p)
}

func byID(alts []types.Alternative, id string) (types.Alternative, bool) {
	for _, a := range alts {
		if a.ID == id {
			return a, true
		}
	}
	return types.Alternative{}, false
}

func TestSynthesizeNoneForPersonalPayment(t *testing.T) {
	tx := baseContext()
	tx.PaymentMethod = types.PaymentMobileMoney
	if alts := synthesize(t, tx); len(alts) != 0 {
		t.Fatalf("expected no alternatives, got %v", alts)
	}
}

func TestSynthesizePayPersonallyAlwaysPresent(t *testing.T) {
	alts := synthesize(t, baseContext())
	if len(alts) != 1 || alts[0].ID != payPersonallyID {
		t.Fatalf("expected only pay personally, got %v", alts)
	}
	if alts[0].Patch == nil || alts[0].Patch.PaymentMethod != types.PaymentPersonalCard {
		t.Fatalf("unexpected patch: %+v", alts[0].Patch)
	}
}

func TestSynthesizeProgramBlock(t *testing.T) {
	tx := baseContext()
	tx.ProgramStatus = types.ProgramDepositDepleted
	alts := synthesize(t, tx)
	if _, ok := byID(alts, "contact-admin"); !ok {
		t.Fatalf("expected contact admin, got %v", alts)
	}
	if _, ok := byID(alts, payPersonallyID); !ok {
		t.Fatalf("expected pay personally, got %v", alts)
	}
}

func TestSynthesizeGraceWarningNeedsNoAdmin(t *testing.T) {
	tx := baseContext()
	tx.ProgramStatus = types.ProgramBillingDelinquency
	tx.GraceEnabled = true
	tx.GraceEndAtMs = tx.NowMs + int64(time.Hour/time.Millisecond)
	alts := synthesize(t, tx)
	if _, ok := byID(alts, "contact-admin"); ok {
		t.Fatalf("grace-active account should not be sent to the admin, got %v", alts)
	}

	tx.GraceEndAtMs = tx.NowMs - 1
	if _, ok := byID(synthesize(t, tx), "contact-admin"); !ok {
		t.Fatalf("expired grace should suggest contacting the admin")
	}
}

func TestSynthesizeRemovesEachSameNamedItem(t *testing.T) {
	tx := baseContext()
	tx.Items = []types.LineItem{
		{ID: "a", Name: "Wine", Category: "alcohol", VendorID: "officehub", UnitAmount: 3000, Qty: 1},
		{ID: "b", Name: "Wine", Category: "alcohol", VendorID: "officehub", UnitAmount: 3000, Qty: 1},
	}
	alts := synthesize(t, tx)
	for _, id := range []string{"a", "b"} {
		if _, ok := byID(alts, "remove-"+id); !ok {
			t.Fatalf("expected remove-%s, got %v", id, alts)
		}
	}
}

func TestSynthesizeRemoveRestrictedItem(t *testing.T) {
	tx := baseContext()
	tx.Items = append(tx.Items,
		types.LineItem{ID: "w", Name: "Wine", Category: "alcohol", VendorID: "officehub", UnitAmount: 4000, Qty: 1},
		types.LineItem{ID: "s", Name: "Widget", Category: "office_supplies", VendorID: "shadytrade", UnitAmount: 4000, Qty: 1},
	)
	alts := synthesize(t, tx)
	for _, id := range []string{"w", "s"} {
		alt, ok := byID(alts, "remove-"+id)
		if !ok {
			t.Fatalf("expected remove-%s, got %v", id, alts)
		}
		if alt.ExpectedOutcome != types.OutcomeApprovalRequired || alt.Patch.RemoveItemID != id {
			t.Fatalf("unexpected alternative: %+v", alt)
		}
	}
}

func TestSynthesizeSwitchVendorPrefersPreferred(t *testing.T) {
	tx := baseContext()
	tx.Items = []types.LineItem{
		{ID: "l", Name: "Laptop", Category: "electronics", VendorID: "gadgetbarn", UnitAmount: 450000, Qty: 1},
		{ID: "c", Name: "Chair", Category: "furniture", VendorID: "gadgetbarn", UnitAmount: 10000, Qty: 1},
	}
	alts := synthesize(t, tx)

	laptop, ok := byID(alts, "switch-l-officehub")
	if !ok {
		t.Fatalf("expected switch to Preferred officehub, got %v", alts)
	}
	if laptop.Patch.ItemID != "l" || laptop.Patch.VendorID != "officehub" || laptop.ExpectedOutcome != types.OutcomeAllowed {
		t.Fatalf("unexpected alternative: %+v", laptop)
	}
	// Furniture is only served by the Allowlisted deskdepot.
	if _, ok := byID(alts, "switch-c-deskdepot"); !ok {
		t.Fatalf("expected fallback to Allowlisted deskdepot, got %v", alts)
	}
}

func TestSynthesizeDefaultCostCenter(t *testing.T) {
	tx := baseContext()
	tx.CostCenter = ""
	alts := synthesize(t, tx)
	alt, ok := byID(alts, "default-cost-center")
	if !ok {
		t.Fatalf("expected default cost center, got %v", alts)
	}
	if alt.Patch.CostCenter != "CC-100" || alt.ExpectedOutcome != types.OutcomeAllowed {
		t.Fatalf("unexpected alternative: %+v", alt)
	}
}

func TestSynthesizeSkipsFieldsWithoutDefault(t *testing.T) {
	tx := baseContext()
	tx.Module = "service"
	tx.Items = []types.LineItem{{ID: "s", Category: "cleaning", VendorID: "cleanpro", UnitAmount: 1000, Qty: 1}}
	tx.Purpose = ""
	alts := synthesize(t, tx)
	if _, ok := byID(alts, "default-purpose"); ok {
		t.Fatalf("service has no default purpose: %v", alts)
	}
	if _, ok := byID(alts, "default-project-tag"); !ok {
		t.Fatalf("expected default project tag, got %v", alts)
	}
}

func TestSynthesizeSplitAllocation(t *testing.T) {
	tx := baseContext()
	tx.SplitAllocation = true
	alt, ok := byID(synthesize(t, tx), "allocate-items")
	if !ok || alt.Patch.ItemAllocation != "CC-100" {
		t.Fatalf("expected allocate-items to CC-100, got %+v", alt)
	}
}

func TestSynthesizeReduceBasketOnce(t *testing.T) {
	tx := baseContext()
	tx.Channel = "marketplace"
	tx.Items[0].UnitAmount = 300000
	alts := synthesize(t, tx)

	count := 0
	for _, a := range alts {
		if a.ID == "reduce-basket" {
			count++
			if a.Patch != nil {
				t.Fatalf("reduce basket carries no patch")
			}
		}
	}
	if count != 1 {
		t.Fatalf("basket and channel reasons should collapse to one alternative, got %d", count)
	}
}

func TestSynthesizeBoundedAndUnique(t *testing.T) {
	tx := baseContext()
	tx.CostCenter = ""
	tx.Purpose = ""
	tx.ProgramStatus = types.ProgramNotLinked
	tx.SplitAllocation = true
	tx.Items = nil
	for _, id := range []string{"a", "b", "c", "d", "e", "f", "g", "h", "i", "j"} {
		tx.Items = append(tx.Items, types.LineItem{ID: id, Category: "alcohol", VendorID: "officehub", UnitAmount: 1000, Qty: 1})
	}

	alts := synthesize(t, tx)
	if len(alts) > MaxAlternatives {
		t.Fatalf("expected at most %d alternatives, got %d", MaxAlternatives, len(alts))
	}
	if alts[len(alts)-1].ID != payPersonallyID {
		t.Fatalf("pay personally must survive truncation, got %v", alts)
	}
	seen := map[string]bool{}
	for _, a := range alts {
		k := dedupKey(a)
		if seen[k] {
			t.Fatalf("duplicate alternative %s", k)
		}
		seen[k] = true
	}
}
