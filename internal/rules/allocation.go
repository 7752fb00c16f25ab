package rules

import (
	"fmt"

	"github.com/davidahmann/spendgate/pkg/types"
)

type allocationField struct {
	name     string
	title    string
	required func(in Input) bool
	value    func(tx types.TransactionContext) string
}

var allocationFields = []allocationField{
	{
		name:     "cost_center",
		title:    "Cost center required",
		required: func(in Input) bool { return in.Module.Required.CostCenter },
		value:    func(tx types.TransactionContext) string { return tx.CostCenter },
	},
	{
		name:     "project_tag",
		title:    "Project tag required",
		required: func(in Input) bool { return in.Module.Required.ProjectTag },
		value:    func(tx types.TransactionContext) string { return tx.ProjectTag },
	},
	{
		name:     "purpose",
		title:    "Purpose required",
		required: func(in Input) bool { return in.Module.Required.Purpose },
		value:    func(tx types.TransactionContext) string { return tx.Purpose },
	},
}

func checkRequiredAllocation(in Input) []types.Reason {
	var out []types.Reason
	for _, f := range allocationFields {
		if !f.required(in) || !blank(f.value(in.Tx)) {
			continue
		}
		out = append(out, types.Reason{
			Code:     types.CodeAllocation,
			Title:    f.title,
			Detail:   fmt.Sprintf("The %s module requires a %s for corporate spend.", in.Tx.Module, humanize(f.name)),
			Severity: types.SeverityCritical,
			Subject:  types.SubjectField + f.name,
		})
	}
	return out
}

// splitActive is true when the policy allows split allocation and the
// caller enabled it for this transaction.
func splitActive(in Input) bool {
	return in.Module.SplitAllocation && in.Tx.SplitAllocation
}

func checkSplitAllocation(in Input) []types.Reason {
	missing := 0
	for _, item := range in.Tx.Items {
		if blank(item.Allocation) {
			missing++
		}
	}
	if missing == 0 {
		return nil
	}
	noun := "items are"
	if missing == 1 {
		noun = "item is"
	}
	return []types.Reason{{
		Code:     types.CodeAllocation,
		Title:    "Split allocation incomplete",
		Detail:   fmt.Sprintf("%d %s missing an allocation.", missing, noun),
		Severity: types.SeverityCritical,
		Subject:  types.SubjectField + "split",
	}}
}
