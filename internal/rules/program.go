package rules

import (
	"time"

	"github.com/davidahmann/spendgate/internal/policy"
	"github.com/davidahmann/spendgate/pkg/types"
)

// ResolveAvailability decides whether corporate payment is selectable.
// Account-level stops win over the transaction outcome.
func ResolveAvailability(method types.PaymentMethod, status types.ProgramStatus, graceActive bool, outcome types.Outcome) types.Availability {
	if !method.Corporate() {
		return types.AvailabilityAvailable
	}
	if status.AccountBlocked() || (status == types.ProgramBillingDelinquency && !graceActive) {
		return types.AvailabilityNotAvailable
	}
	switch outcome {
	case types.OutcomeBlocked:
		return types.AvailabilityNotAvailable
	case types.OutcomeApprovalRequired:
		return types.AvailabilityRequiresApproval
	default:
		return types.AvailabilityAvailable
	}
}

// GraceActive is a pure time comparison; the caller supplies now.
func GraceActive(status types.ProgramStatus, graceEnabled bool, graceEnd, now time.Time) bool {
	return status == types.ProgramBillingDelinquency && graceEnabled && !graceEnd.IsZero() && graceEnd.After(now)
}

// GraceEnd prefers the caller's explicit end, otherwise derives it from the
// delinquency start and the policy window. Zero means no grace window.
func GraceEnd(tx types.TransactionContext, p policy.Policy) time.Time {
	if tx.GraceEndAtMs > 0 {
		return time.UnixMilli(tx.GraceEndAtMs).UTC()
	}
	if tx.DelinquentSinceMs > 0 && p.Grace.WindowHours > 0 {
		return time.UnixMilli(tx.DelinquentSinceMs).UTC().Add(time.Duration(p.Grace.WindowHours) * time.Hour)
	}
	return time.Time{}
}

type programReason struct {
	title  string
	detail string
}

var programReasons = map[types.ProgramStatus]programReason{
	types.ProgramNotLinked: {
		title:  "Corporate account not linked",
		detail: "Link your profile to the organization program before paying with CorporatePay.",
	},
	types.ProgramNotEligible: {
		title:  "Not eligible for corporate program",
		detail: "Your profile is not eligible for CorporatePay under the organization program.",
	},
	types.ProgramDepositDepleted: {
		title:  "Corporate deposit depleted",
		detail: "The organization's prepaid deposit has no remaining balance.",
	},
	types.ProgramCreditLimitExceeded: {
		title:  "Corporate credit limit exceeded",
		detail: "The organization has reached its credit limit.",
	},
}

func checkProgram(in Input) []types.Reason {
	status := in.Tx.ProgramStatus
	if pr, ok := programReasons[status]; ok {
		return []types.Reason{{Code: types.CodeProgram, Title: pr.title, Detail: pr.detail, Severity: types.SeverityCritical, Subject: types.SubjectField + "program_status"}}
	}
	if status != types.ProgramBillingDelinquency {
		return nil
	}
	if in.GraceActive {
		return []types.Reason{{
			Code:     types.CodeProgram,
			Title:    "Billing overdue: grace period active",
			Detail:   "CorporatePay remains usable until " + in.GraceEnd.Format(time.RFC3339) + "; settle the outstanding invoice to avoid suspension.",
			Severity: types.SeverityWarning,
			Subject:  types.SubjectField + "program_status",
		}}
	}
	return []types.Reason{{
		Code:     types.CodeProgram,
		Title:    "Billing overdue",
		Detail:   "The organization account is suspended for overdue billing and no grace period applies.",
		Severity: types.SeverityCritical,
		Subject:  types.SubjectField + "program_status",
	}}
}

func checkPaymentBypass(in Input) []types.Reason {
	if corporate(in) {
		return nil
	}
	return []types.Reason{{
		Code:     types.CodePayment,
		Title:    "Personal payment",
		Detail:   "Corporate policy checks do not apply to " + string(in.Tx.PaymentMethod) + ".",
		Severity: types.SeverityInfo,
		Subject:  types.SubjectField + "payment_method",
	}}
}

func checkConfiguration(in Input) []types.Reason {
	problems := policy.ModuleProblems(in.Policy, in.Tx.Module)
	out := make([]types.Reason, 0, len(problems))
	for _, pr := range problems {
		out = append(out, misconfiguration(pr.Field, pr.String()))
	}
	return out
}

func misconfiguration(field, detail string) types.Reason {
	return types.Reason{
		Code:     types.CodePolicyConfig,
		Title:    "Policy misconfiguration: " + field,
		Detail:   detail,
		Severity: types.SeverityCritical,
		Subject:  types.SubjectField + field,
	}
}
