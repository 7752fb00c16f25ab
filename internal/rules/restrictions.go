package rules

import (
	"fmt"
	"sort"
	"strings"

	"github.com/davidahmann/spendgate/internal/policy"
	"github.com/davidahmann/spendgate/pkg/types"
)

func checkRestrictedCategories(in Input) []types.Reason {
	var out []types.Reason
	for _, item := range in.Tx.Items {
		if !in.Module.Restricted(item.Category) {
			continue
		}
		out = append(out, types.Reason{
			Code:     types.CodeCategory,
			Title:    "Restricted category: " + itemTitle(in.Tx.Items, item),
			Detail:   fmt.Sprintf("Category %q cannot be purchased with CorporatePay.", item.Category),
			Severity: types.SeverityCritical,
			Subject:  types.SubjectItem + item.ID,
		})
	}
	return out
}

func checkDenylistedVendors(in Input) []types.Reason {
	var out []types.Reason
	for _, item := range in.Tx.Items {
		if in.Policy.VendorStatus(item.VendorID) != policy.VendorDenylisted {
			continue
		}
		out = append(out, types.Reason{
			Code:     types.CodeVendor,
			Title:    "Denylisted vendor: " + itemTitle(in.Tx.Items, item),
			Detail:   fmt.Sprintf("Vendor %s is denylisted by your organization.", vendorName(in.Policy, item.VendorID)),
			Severity: types.SeverityCritical,
			Subject:  types.SubjectItem + item.ID,
		})
	}
	return out
}

// itemTitle labels an item for a per-item reason title. Reasons de-duplicate
// on title, so the item id is appended when another item shares the label.
func itemTitle(items []types.LineItem, item types.LineItem) string {
	label := item.Label()
	for _, other := range items {
		if other.ID != item.ID && other.Label() == label {
			return label + " (" + item.ID + ")"
		}
	}
	return label
}

func vendorName(p policy.Policy, id string) string {
	if v, ok := p.Vendor(id); ok {
		return v.DisplayName()
	}
	return id
}

// unapprovedSubtotals sums line amounts per unapproved vendor, in vendor id order.
func unapprovedSubtotals(in Input) []vendorSubtotal {
	sums := map[string]int64{}
	for _, item := range in.Tx.Items {
		if in.Policy.VendorStatus(item.VendorID) != policy.VendorUnapproved {
			continue
		}
		sums[item.VendorID] += item.Amount()
	}
	out := make([]vendorSubtotal, 0, len(sums))
	for id, amount := range sums {
		out = append(out, vendorSubtotal{vendorID: id, amount: amount})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].vendorID < out[j].vendorID })
	return out
}

type vendorSubtotal struct {
	vendorID string
	amount   int64
}

func blank(s string) bool {
	return strings.TrimSpace(s) == ""
}

func humanize(field string) string {
	return strings.ReplaceAll(field, "_", " ")
}
