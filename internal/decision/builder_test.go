package decision

import (
	"testing"

	"github.com/davidahmann/spendgate/pkg/types"
)

func TestBuildDecisionDeterministicID(t *testing.T) {
	policy := types.DecisionPolicy{
		PolicyID:      "spendgate-default",
		PolicyVersion: "2026-10-01",
		PolicyHash:    "sha256:policy",
	}

	recA, err := BuildDecision("sha256:ctx", policy, types.OutcomeAllowed, types.AvailabilityAvailable, []string{types.CodeWithinPolicy}, "2026-10-14T09:30:00Z")
	if err != nil {
		t.Fatalf("build decision: %v", err)
	}

	recB, err := BuildDecision("sha256:ctx", policy, types.OutcomeAllowed, types.AvailabilityAvailable, []string{types.CodeWithinPolicy}, "2026-10-14T09:30:00Z")
	if err != nil {
		t.Fatalf("build decision: %v", err)
	}

	if recA.DecisionID == "" {
		t.Fatalf("decision id missing")
	}
	if recA.DecisionID != recB.DecisionID {
		t.Fatalf("decision id not deterministic")
	}

	recC, err := BuildDecision("sha256:ctx", policy, types.OutcomeAllowed, types.AvailabilityRequiresApproval, []string{types.CodeWithinPolicy}, "2026-10-14T09:30:00Z")
	if err != nil {
		t.Fatalf("build decision: %v", err)
	}
	if recA.DecisionID == recC.DecisionID {
		t.Fatalf("decision id should change when availability changes")
	}
}
