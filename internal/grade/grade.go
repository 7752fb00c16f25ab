// Package grade scores how complete and self-consistent a stored audit
// record is once its signature has been checked.
package grade

import (
	"encoding/json"
	"sort"

	"github.com/davidahmann/spendgate/internal/ledger"
)

type Result struct {
	Grade   string   `json:"grade"`
	Reasons []string `json:"reasons"`
}

// Input is an audit record plus whatever linked records the ledger still
// holds. Nil pointers mean the record was not found.
type Input struct {
	Valid    bool
	Audit    ledger.AuditRecord
	Context  *ledger.ContextRecord
	Decision *ledger.DecisionRecord
	Policy   *ledger.PolicyVersionRecord
}

type auditBody struct {
	ContextID  string `json:"context_id"`
	DecisionID string `json:"decision_id"`
	Result     struct {
		Outcome string `json:"outcome"`
	} `json:"result"`
}

func Evaluate(in Input) Result {
	if !in.Valid {
		return Result{Grade: "F", Reasons: []string{"invalid_signature"}}
	}

	var body auditBody
	if err := json.Unmarshal(in.Audit.BodyJSON, &body); err != nil {
		return Result{Grade: "F", Reasons: []string{"unreadable_body"}}
	}

	flags := map[string]bool{}
	if in.Audit.PolicyHash == "" {
		flags["missing_policy_hash"] = true
	}
	if body.ContextID != in.Audit.ContextID || body.DecisionID != in.Audit.DecisionID || body.Result.Outcome != in.Audit.Outcome {
		flags["body_mismatch"] = true
	}

	if in.Decision == nil {
		flags["missing_decision"] = true
	} else {
		if in.Decision.PolicyHash != in.Audit.PolicyHash {
			flags["policy_mismatch"] = true
		}
		if in.Decision.Outcome != in.Audit.Outcome {
			flags["outcome_mismatch"] = true
		}
		if in.Decision.ContextID != in.Audit.ContextID {
			flags["context_mismatch"] = true
		}
	}
	if in.Context == nil {
		flags["missing_context"] = true
	}
	if in.Policy == nil {
		flags["missing_policy_version"] = true
	}

	grade := "A"
	switch {
	case flags["missing_policy_hash"] || flags["body_mismatch"] || flags["policy_mismatch"] ||
		flags["outcome_mismatch"] || flags["context_mismatch"]:
		grade = "F"
	case flags["missing_decision"] && flags["missing_context"]:
		grade = "D"
	case flags["missing_decision"] || flags["missing_context"]:
		grade = "C"
	case flags["missing_policy_version"]:
		grade = "B"
	}

	reasons := make([]string, 0, len(flags))
	for k := range flags {
		reasons = append(reasons, k)
	}
	sort.Strings(reasons)
	return Result{Grade: grade, Reasons: reasons}
}
