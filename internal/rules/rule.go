// Package rules evaluates a transaction context against an organization
// policy. Rules are declared in a table and run in order; each is pure and
// returns zero or more reasons. Table order decides reason order only.
package rules

import (
	"fmt"
	"time"

	"github.com/davidahmann/spendgate/internal/policy"
	"github.com/davidahmann/spendgate/pkg/types"
)

type Stage string

const (
	StagePayment       Stage = "payment"
	StageConfiguration Stage = "configuration"
	StageEligibility   Stage = "eligibility"
	StageAllocation    Stage = "allocation"
	StageRestrictions  Stage = "restrictions"
	StageThresholds    Stage = "thresholds"
	StageContext       Stage = "context"
	StageAdvisory      Stage = "advisory"
)

// Input is everything a rule may read. It is built once per evaluation.
type Input struct {
	Tx          types.TransactionContext
	Policy      policy.Policy
	Module      policy.ModulePolicy
	ModuleFound bool
	GraceActive bool
	GraceEnd    time.Time
}

func NewInput(tx types.TransactionContext, p policy.Policy) Input {
	m, ok := p.Module(tx.Module)
	end := GraceEnd(tx, p)
	return Input{
		Tx:          tx,
		Policy:      p,
		Module:      m,
		ModuleFound: ok,
		GraceEnd:    end,
		GraceActive: GraceActive(tx.ProgramStatus, tx.GraceEnabled && p.GraceEnabled(), end, tx.Now()),
	}
}

type Rule struct {
	ID    string
	Stage Stage
	// Applies gates the rule; nil means always.
	Applies func(Input) bool
	Check   func(Input) []types.Reason
	// Terminal stops evaluation after this rule when it fires.
	Terminal bool
}

type Table []Rule

// Failure records a rule that panicked. Its reason is already in the result.
type Failure struct {
	RuleID string
	Err    error
}

type Result struct {
	Reasons     []types.Reason
	Failures    []Failure
	GraceActive bool
	// Bypassed is true when the payment method skipped corporate rules.
	Bypassed bool
}

// Evaluate runs the default table.
func Evaluate(tx types.TransactionContext, p policy.Policy) Result {
	return DefaultTable().Evaluate(NewInput(tx, p))
}

// Evaluate runs every applicable rule. A panicking rule produces a Critical
// EVALUATION_ERROR reason and does not stop the remaining rules. The result
// always holds at least one reason.
func (t Table) Evaluate(in Input) Result {
	res := Result{GraceActive: in.GraceActive}
	seen := map[string]bool{}
	add := func(reasons []types.Reason) {
		for _, r := range reasons {
			if seen[r.Key()] {
				continue
			}
			seen[r.Key()] = true
			res.Reasons = append(res.Reasons, r)
		}
	}

	for _, rule := range t {
		reasons, err := runRule(rule, in)
		if err != nil {
			res.Failures = append(res.Failures, Failure{RuleID: rule.ID, Err: err})
			add([]types.Reason{{
				Code:     types.CodeEvaluationError,
				Title:    "Evaluation error in " + rule.ID,
				Detail:   "A policy check could not be completed; the request is blocked until it is resolved.",
				Severity: types.SeverityCritical,
				Subject:  types.SubjectRule + rule.ID,
			}})
			continue
		}
		add(reasons)
		if rule.Terminal && len(reasons) > 0 {
			res.Bypassed = rule.Stage == StagePayment
			break
		}
	}

	if len(res.Reasons) == 0 {
		res.Reasons = []types.Reason{{
			Code:     types.CodeWithinPolicy,
			Title:    "Within policy",
			Detail:   "All policy checks passed.",
			Severity: types.SeverityInfo,
		}}
	}
	return res
}

func runRule(rule Rule, in Input) (reasons []types.Reason, err error) {
	defer func() {
		if r := recover(); r != nil {
			reasons = nil
			err = fmt.Errorf("rule %s panicked: %v", rule.ID, r)
		}
	}()
	if rule.Applies != nil && !rule.Applies(in) {
		return nil, nil
	}
	return rule.Check(in), nil
}

// when declares a single-reason rule as a predicate plus a reason factory.
func when(pred func(Input) bool, reason func(Input) types.Reason) func(Input) []types.Reason {
	return func(in Input) []types.Reason {
		if !pred(in) {
			return nil
		}
		return []types.Reason{reason(in)}
	}
}

func corporate(in Input) bool {
	return in.Tx.PaymentMethod.Corporate()
}

// DefaultTable returns the rule table in evaluation order.
func DefaultTable() Table {
	return Table{
		{ID: "payment.bypass", Stage: StagePayment, Check: checkPaymentBypass, Terminal: true},
		{ID: "policy.configuration", Stage: StageConfiguration, Check: checkConfiguration},
		{ID: "program.eligibility", Stage: StageEligibility, Check: checkProgram},
		{ID: "allocation.required", Stage: StageAllocation, Check: checkRequiredAllocation},
		{ID: "allocation.split", Stage: StageAllocation, Applies: splitActive, Check: checkSplitAllocation},
		{ID: "restriction.category", Stage: StageRestrictions, Check: checkRestrictedCategories},
		{ID: "restriction.vendor", Stage: StageRestrictions, Check: checkDenylistedVendors},
		{ID: "threshold.unapproved_vendor", Stage: StageThresholds, Check: checkUnapprovedVendors},
		{ID: "threshold.basket", Stage: StageThresholds, Check: checkBasket},
		{ID: "threshold.channel", Stage: StageThresholds, Applies: channelConfigured, Check: checkChannel},
		{ID: "context.time_window", Stage: StageContext, Applies: hasTimeWindows, Check: checkTimeWindow},
		{ID: "context.zone", Stage: StageContext, Check: checkListed("zone", func(m policy.ModulePolicy) []string { return m.Zones }, func(tx types.TransactionContext) string { return tx.Zone })},
		{ID: "context.site", Stage: StageContext, Check: checkListed("site", func(m policy.ModulePolicy) []string { return m.Sites }, func(tx types.TransactionContext) string { return tx.SiteID })},
		{ID: "context.connector", Stage: StageContext, Check: checkListed("connector", func(m policy.ModulePolicy) []string { return m.Connectors }, func(tx types.TransactionContext) string { return tx.Connector })},
		{ID: "advisory.attachments", Stage: StageAdvisory, Check: when(attachmentsMissing, attachmentReason)},
		{ID: "advisory.notes", Stage: StageAdvisory, Check: when(notesMissing, notesReason)},
		{ID: "advisory.quote", Stage: StageAdvisory, Check: checkQuoteAssets},
	}
}
