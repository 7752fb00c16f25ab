package grade

import (
	"reflect"
	"testing"

	"github.com/davidahmann/spendgate/internal/ledger"
)

func fixture() Input {
	return Input{
		Valid: true,
		Audit: ledger.AuditRecord{
			CorrelationID: "corr-1",
			ContextID:     "ctx",
			DecisionID:    "dec",
			PolicyHash:    "sha256:p",
			Outcome:       "Allowed",
			BodyJSON:      []byte(`{"context_id":"ctx","decision_id":"dec","result":{"outcome":"Allowed"}}`),
		},
		Context:  &ledger.ContextRecord{ContextID: "ctx"},
		Decision: &ledger.DecisionRecord{DecisionID: "dec", ContextID: "ctx", PolicyHash: "sha256:p", Outcome: "Allowed"},
		Policy:   &ledger.PolicyVersionRecord{PolicyHash: "sha256:p"},
	}
}

func TestEvaluateInvalidSignatureIsF(t *testing.T) {
	got := Evaluate(Input{Valid: false})
	if got.Grade != "F" || !reflect.DeepEqual(got.Reasons, []string{"invalid_signature"}) {
		t.Fatalf("unexpected result: %+v", got)
	}
}

func TestEvaluateGrades(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Input)
		grade   string
		reasons []string
	}{
		{name: "complete", mutate: func(*Input) {}, grade: "A", reasons: []string{}},
		{name: "policy pruned", mutate: func(in *Input) { in.Policy = nil }, grade: "B", reasons: []string{"missing_policy_version"}},
		{name: "context pruned", mutate: func(in *Input) { in.Context = nil }, grade: "C", reasons: []string{"missing_context"}},
		{name: "both pruned", mutate: func(in *Input) { in.Context, in.Decision = nil, nil }, grade: "D", reasons: []string{"missing_context", "missing_decision"}},
		{name: "outcome mismatch", mutate: func(in *Input) { in.Decision.Outcome = "Blocked" }, grade: "F", reasons: []string{"outcome_mismatch"}},
		{name: "policy mismatch", mutate: func(in *Input) { in.Decision.PolicyHash = "sha256:q" }, grade: "F", reasons: []string{"policy_mismatch"}},
		{name: "body mismatch", mutate: func(in *Input) { in.Audit.DecisionID = "other" }, grade: "F", reasons: []string{"body_mismatch"}},
		{name: "no policy hash", mutate: func(in *Input) {
			in.Audit.PolicyHash = ""
			in.Decision.PolicyHash = ""
		}, grade: "F", reasons: []string{"missing_policy_hash"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := fixture()
			dec := *in.Decision
			in.Decision = &dec
			tt.mutate(&in)
			got := Evaluate(in)
			if got.Grade != tt.grade || !reflect.DeepEqual(got.Reasons, tt.reasons) {
				t.Fatalf("expected %s %v, got %s %v", tt.grade, tt.reasons, got.Grade, got.Reasons)
			}
		})
	}
}

func TestEvaluateUnreadableBody(t *testing.T) {
	in := fixture()
	in.Audit.BodyJSON = []byte("{")
	if got := Evaluate(in); got.Grade != "F" {
		t.Fatalf("expected F, got %+v", got)
	}
}
