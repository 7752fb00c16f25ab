package rules

import (
	"fmt"

	"github.com/davidahmann/spendgate/pkg/types"
)

func checkUnapprovedVendors(in Input) []types.Reason {
	subtotals := unapprovedSubtotals(in)
	if len(subtotals) == 0 {
		return nil
	}
	t := in.Module.UnapprovedVendor
	if !t.Defined() {
		return []types.Reason{misconfiguration("unapproved_vendor",
			fmt.Sprintf("%s.unapproved_vendor: thresholds are required for spend with unapproved vendors", in.Tx.Module))}
	}

	var out []types.Reason
	for _, st := range subtotals {
		sev, over := t.Classify(st.amount)
		if !over {
			continue
		}
		limit, verb := *t.Approval, "needs approval"
		if sev == types.SeverityCritical {
			limit, verb = *t.Block, "is blocked"
		}
		out = append(out, types.Reason{
			Code:     types.CodeVendor,
			Title:    "Unapproved vendor: " + vendorName(in.Policy, st.vendorID),
			Detail:   fmt.Sprintf("Spend of %s with an unapproved vendor exceeds %s and %s.", formatAmount(st.amount), formatAmount(limit), verb),
			Severity: sev,
			Subject:  types.SubjectVendor + st.vendorID,
		})
	}
	return out
}

func checkBasket(in Input) []types.Reason {
	t := in.Module.Thresholds
	if !t.Defined() {
		// Reported by policy.configuration.
		return nil
	}
	total := in.Tx.Total()
	sev, over := t.Classify(total)
	if !over {
		return nil
	}
	title, limit := "Basket needs approval", *t.Approval
	if sev == types.SeverityCritical {
		title, limit = "Basket over limit", *t.Block
	}
	return []types.Reason{{
		Code:     types.CodeBasket,
		Title:    title,
		Detail:   fmt.Sprintf("Total %s exceeds the %s limit of %s.", formatAmount(total), in.Tx.Module, formatAmount(limit)),
		Severity: sev,
		Subject:  types.SubjectField + "total",
	}}
}

func channelConfigured(in Input) bool {
	if in.Tx.Channel == "" {
		return false
	}
	_, ok := in.Module.Channels[in.Tx.Channel]
	return ok
}

func checkChannel(in Input) []types.Reason {
	t := in.Module.Channels[in.Tx.Channel]
	if !t.Defined() {
		return nil
	}
	total := in.Tx.Total()
	sev, over := t.Classify(total)
	if !over {
		return nil
	}
	title, limit := "Channel needs approval: "+in.Tx.Channel, *t.Approval
	if sev == types.SeverityCritical {
		title, limit = "Channel over limit: "+in.Tx.Channel, *t.Block
	}
	return []types.Reason{{
		Code:     types.CodeChannel,
		Title:    title,
		Detail:   fmt.Sprintf("Total %s exceeds the %s channel limit of %s.", formatAmount(total), in.Tx.Channel, formatAmount(limit)),
		Severity: sev,
		Subject:  types.SubjectChannel + in.Tx.Channel,
	}}
}

// formatAmount renders minor units with two decimals.
func formatAmount(minor int64) string {
	sign := ""
	if minor < 0 {
		sign, minor = "-", -minor
	}
	return fmt.Sprintf("%s%d.%02d", sign, minor/100, minor%100)
}
