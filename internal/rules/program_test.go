package rules

import (
	"testing"
	"time"

	"github.com/davidahmann/spendgate/pkg/types"
)

func TestResolveAvailability(t *testing.T) {
	cases := []struct {
		name    string
		method  types.PaymentMethod
		status  types.ProgramStatus
		grace   bool
		outcome types.Outcome
		want    types.Availability
	}{
		{"personal ignores everything", types.PaymentPersonalCard, types.ProgramDepositDepleted, false, types.OutcomeBlocked, types.AvailabilityAvailable},
		{"cash", types.PaymentCash, "", false, types.OutcomeAllowed, types.AvailabilityAvailable},
		{"not linked", types.PaymentCorporatePay, types.ProgramNotLinked, false, types.OutcomeAllowed, types.AvailabilityNotAvailable},
		{"not eligible", types.PaymentCorporatePay, types.ProgramNotEligible, false, types.OutcomeAllowed, types.AvailabilityNotAvailable},
		{"deposit", types.PaymentCorporatePay, types.ProgramDepositDepleted, false, types.OutcomeAllowed, types.AvailabilityNotAvailable},
		{"credit", types.PaymentCorporatePay, types.ProgramCreditLimitExceeded, true, types.OutcomeAllowed, types.AvailabilityNotAvailable},
		{"delinquent no grace", types.PaymentCorporatePay, types.ProgramBillingDelinquency, false, types.OutcomeApprovalRequired, types.AvailabilityNotAvailable},
		{"delinquent in grace", types.PaymentCorporatePay, types.ProgramBillingDelinquency, true, types.OutcomeApprovalRequired, types.AvailabilityRequiresApproval},
		{"blocked outcome", types.PaymentCorporatePay, types.ProgramEligible, false, types.OutcomeBlocked, types.AvailabilityNotAvailable},
		{"approval outcome", types.PaymentCorporatePay, types.ProgramEligible, false, types.OutcomeApprovalRequired, types.AvailabilityRequiresApproval},
		{"allowed", types.PaymentCorporatePay, types.ProgramEligible, false, types.OutcomeAllowed, types.AvailabilityAvailable},
	}
	for _, tc := range cases {
		if got := ResolveAvailability(tc.method, tc.status, tc.grace, tc.outcome); got != tc.want {
			t.Fatalf("%s: got %s want %s", tc.name, got, tc.want)
		}
	}
}

func TestGraceActive(t *testing.T) {
	now := time.UnixMilli(1_700_000_000_000)
	later := now.Add(time.Minute)

	if !GraceActive(types.ProgramBillingDelinquency, true, later, now) {
		t.Fatalf("expected grace active")
	}
	if GraceActive(types.ProgramBillingDelinquency, true, now, now) {
		t.Fatalf("grace ending exactly now is expired")
	}
	if GraceActive(types.ProgramBillingDelinquency, false, later, now) {
		t.Fatalf("disabled grace is never active")
	}
	if GraceActive(types.ProgramEligible, true, later, now) {
		t.Fatalf("grace only applies to delinquency")
	}
	if GraceActive(types.ProgramBillingDelinquency, true, time.Time{}, now) {
		t.Fatalf("zero end is no grace")
	}
}
