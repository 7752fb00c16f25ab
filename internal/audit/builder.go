// Package audit builds the explanation trail for one evaluation.
package audit

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/davidahmann/spendgate/internal/crypto"
	"github.com/davidahmann/spendgate/internal/policy"
	"github.com/davidahmann/spendgate/pkg/types"
	"github.com/google/uuid"
)

// Audit meta keys.
const (
	MetaCorrelationID = "correlation_id"
	MetaRequestID     = "request_id"
	MetaContextID     = "context_id"
	MetaDecisionID    = "decision_id"
	MetaPolicyID      = "policy_id"
	MetaPolicyVersion = "policy_version"
	MetaPolicyHash    = "policy_hash"
	MetaEvaluatedAt   = "evaluated_at"
)

// Meta correlates a trail with one evaluation call.
type Meta struct {
	CorrelationID string
	RequestID     string
	ContextID     string
	DecisionID    string
	PolicyHash    string
	EvaluatedAt   time.Time
}

// NewCorrelationID returns a fresh random id. Ids are never reused.
func NewCorrelationID() string {
	return uuid.NewString()
}

// Build assembles the audit trail and its digest. A missing correlation id
// is generated here.
func Build(tx types.TransactionContext, p policy.Policy, reasons []types.Reason, outcome types.Outcome, meta Meta) (types.AuditTrail, error) {
	if meta.CorrelationID == "" {
		meta.CorrelationID = NewCorrelationID()
	}
	if meta.EvaluatedAt.IsZero() {
		meta.EvaluatedAt = tx.Now()
	}

	trail := types.AuditTrail{
		Summary:    summary(tx, reasons, outcome),
		Triggers:   triggers(tx),
		PolicyPath: policyPath(tx, reasons, outcome),
		AuditMeta:  auditMeta(p, meta),
	}

	digest, err := Digest(trail)
	if err != nil {
		return types.AuditTrail{}, fmt.Errorf("audit digest: %w", err)
	}
	trail.Digest = digest
	return trail, nil
}

// Digest hashes the canonical trail without its digest field.
func Digest(trail types.AuditTrail) (string, error) {
	trail.Digest = ""
	return crypto.CanonicalDigest(trail)
}

func summary(tx types.TransactionContext, reasons []types.Reason, outcome types.Outcome) string {
	total := formatAmount(tx.Total())
	if !tx.PaymentMethod.Corporate() {
		return fmt.Sprintf("%s purchase of %s paid with %s; corporate policy not applied.", tx.Module, total, tx.PaymentMethod)
	}
	var blocking []string
	for _, r := range reasons {
		if r.Severity.Rank() > types.SeverityInfo.Rank() {
			blocking = append(blocking, r.Title)
		}
	}
	switch outcome {
	case types.OutcomeBlocked:
		return fmt.Sprintf("%s purchase of %s is blocked: %s.", tx.Module, total, strings.Join(blocking, "; "))
	case types.OutcomeApprovalRequired:
		return fmt.Sprintf("%s purchase of %s requires approval: %s.", tx.Module, total, strings.Join(blocking, "; "))
	default:
		return fmt.Sprintf("%s purchase of %s is within policy.", tx.Module, total)
	}
}

func triggers(tx types.TransactionContext) []types.AuditField {
	fields := []types.AuditField{
		{Key: "module", Value: tx.Module},
		{Key: "payment_method", Value: string(tx.PaymentMethod)},
	}
	if tx.ProgramStatus != "" {
		fields = append(fields, types.AuditField{Key: "program_status", Value: string(tx.ProgramStatus)})
	}
	fields = append(fields,
		types.AuditField{Key: "vendors", Value: strings.Join(vendors(tx), ",")},
		types.AuditField{Key: "total", Value: formatAmount(tx.Total())},
		types.AuditField{Key: "item_count", Value: strconv.Itoa(len(tx.Items))},
	)
	if tx.Channel != "" {
		fields = append(fields, types.AuditField{Key: "channel", Value: tx.Channel})
	}
	return fields
}

func vendors(tx types.TransactionContext) []string {
	seen := map[string]bool{}
	var out []string
	for _, item := range tx.Items {
		if !seen[item.VendorID] {
			seen[item.VendorID] = true
			out = append(out, item.VendorID)
		}
	}
	sort.Strings(out)
	return out
}

// stages lists the narrative stages in order with their all-clear sentence.
var stages = []struct {
	stage string
	clear string
}{
	{"eligibility", "Corporate program is active for this account."},
	{"allocation", "Required allocation fields are present."},
	{"restrictions", "No restricted categories or vendors in the basket."},
	{"thresholds", "Spend is within the configured thresholds."},
	{"context", "Time and location are within the allowed windows."},
	{"advisory", "No advisories."},
}

// stageOf places a reason in the narrative. VENDOR reasons about a single
// item are denylist restrictions; those about a vendor subtotal are
// threshold breaches.
func stageOf(r types.Reason) string {
	switch r.Code {
	case types.CodePolicyConfig, types.CodeProgram, types.CodeEvaluationError:
		return "eligibility"
	case types.CodeAllocation:
		return "allocation"
	case types.CodeCategory:
		return "restrictions"
	case types.CodeVendor:
		if strings.HasPrefix(r.Subject, types.SubjectVendor) {
			return "thresholds"
		}
		return "restrictions"
	case types.CodeBasket, types.CodeChannel:
		return "thresholds"
	case types.CodeContext:
		return "context"
	case types.CodeAttachment, types.CodeNotes, types.CodeAsset:
		return "advisory"
	}
	return ""
}

func policyPath(tx types.TransactionContext, reasons []types.Reason, outcome types.Outcome) []types.PathStep {
	if !tx.PaymentMethod.Corporate() {
		return []types.PathStep{
			{Stage: "payment", Detail: fmt.Sprintf("%s is not gated by corporate policy.", tx.PaymentMethod)},
			{Stage: "decision", Detail: fmt.Sprintf("Outcome %s.", outcome)},
		}
	}
	steps := make([]types.PathStep, 0, len(stages)+1)
	for _, st := range stages {
		var titles []string
		for _, r := range reasons {
			if stageOf(r) == st.stage {
				titles = append(titles, fmt.Sprintf("%s (%s)", r.Title, r.Severity))
			}
		}
		detail := st.clear
		if len(titles) > 0 {
			detail = strings.Join(titles, "; ") + "."
		}
		steps = append(steps, types.PathStep{Stage: st.stage, Detail: detail})
	}
	steps = append(steps, types.PathStep{Stage: "decision", Detail: fmt.Sprintf("Outcome %s from %d reason(s).", outcome, len(reasons))})
	return steps
}

func auditMeta(p policy.Policy, meta Meta) []types.AuditField {
	fields := []types.AuditField{
		{Key: MetaCorrelationID, Value: meta.CorrelationID},
	}
	if meta.RequestID != "" {
		fields = append(fields, types.AuditField{Key: MetaRequestID, Value: meta.RequestID})
	}
	fields = append(fields,
		types.AuditField{Key: MetaContextID, Value: meta.ContextID},
		types.AuditField{Key: MetaDecisionID, Value: meta.DecisionID},
		types.AuditField{Key: MetaPolicyID, Value: p.PolicyID},
		types.AuditField{Key: MetaPolicyVersion, Value: p.PolicyVersion},
		types.AuditField{Key: MetaPolicyHash, Value: meta.PolicyHash},
		types.AuditField{Key: MetaEvaluatedAt, Value: meta.EvaluatedAt.UTC().Format(time.RFC3339Nano)},
	)
	return fields
}

func formatAmount(minor int64) string {
	return fmt.Sprintf("%d.%02d", minor/100, minor%100)
}
