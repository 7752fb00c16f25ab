package decision

import "github.com/davidahmann/spendgate/pkg/types"

// Aggregate reduces reasons to an outcome. Any Critical blocks, any
// Warning requires approval, and Info never changes the result.
func Aggregate(reasons []types.Reason) types.Outcome {
	outcome := types.OutcomeAllowed
	for _, r := range reasons {
		switch r.Severity {
		case types.SeverityCritical:
			return types.OutcomeBlocked
		case types.SeverityWarning:
			outcome = types.OutcomeApprovalRequired
		}
	}
	return outcome
}

// ReasonCodes lists distinct codes in first-seen order.
func ReasonCodes(reasons []types.Reason) []string {
	seen := map[string]bool{}
	out := make([]string, 0, len(reasons))
	for _, r := range reasons {
		if seen[r.Code] {
			continue
		}
		seen[r.Code] = true
		out = append(out, r.Code)
	}
	return out
}
