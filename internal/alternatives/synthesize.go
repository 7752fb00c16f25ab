// Package alternatives proposes remediation patches for an evaluation.
package alternatives

import (
	"fmt"
	"strings"

	"github.com/davidahmann/spendgate/internal/policy"
	"github.com/davidahmann/spendgate/pkg/types"
)

// MaxAlternatives bounds the list returned by Synthesize.
const MaxAlternatives = 8

const payPersonallyID = "pay-personally"

// Synthesize derives alternatives from reasons, one family per reason code.
// Expected outcomes are optimistic per reason; Verify replaces them with
// re-evaluated ones. Pay personally is always last for CorporatePay contexts
// and is never truncated.
func Synthesize(tx types.TransactionContext, reasons []types.Reason, p policy.Policy) []types.Alternative {
	if !tx.PaymentMethod.Corporate() {
		return nil
	}
	module, _ := p.Module(tx.Module)

	list := newList(MaxAlternatives - 1)
	for _, r := range reasons {
		if r.Severity == types.SeverityInfo {
			continue
		}
		switch r.Code {
		case types.CodeProgram:
			// Grace-period warnings leave the program usable.
			if r.Severity == types.SeverityCritical {
				list.add(contactAdmin())
			}
		case types.CodeCategory:
			if id, ok := subjectID(r, types.SubjectItem); ok {
				list.add(removeItem(tx, id))
			}
		case types.CodeVendor:
			if id, ok := subjectID(r, types.SubjectItem); ok {
				list.add(removeItem(tx, id))
				continue
			}
			if id, ok := subjectID(r, types.SubjectVendor); ok {
				for _, alt := range switchVendor(tx, p, id) {
					list.add(alt)
				}
			}
		case types.CodeAllocation:
			if field, ok := subjectID(r, types.SubjectField); ok {
				if alt, ok := allocationDefault(tx, module, field); ok {
					list.add(alt)
				}
			}
		case types.CodeBasket, types.CodeChannel:
			list.add(reduceBasket())
		}
	}

	out := list.items
	return append(out, payPersonally())
}

type altList struct {
	limit int
	seen  map[string]bool
	items []types.Alternative
}

func newList(limit int) *altList {
	return &altList{limit: limit, seen: map[string]bool{}}
}

// add keeps the first alternative per (title, patch) and drops the rest
// once the list is full.
func (l *altList) add(alt types.Alternative) {
	if len(l.items) >= l.limit {
		return
	}
	key := dedupKey(alt)
	if l.seen[key] {
		return
	}
	l.seen[key] = true
	l.items = append(l.items, alt)
}

func dedupKey(alt types.Alternative) string {
	var patch types.Patch
	if alt.Patch != nil {
		patch = *alt.Patch
	}
	return fmt.Sprintf("%s|%+v", alt.Title, patch)
}

func subjectID(r types.Reason, prefix string) (string, bool) {
	id, ok := strings.CutPrefix(r.Subject, prefix)
	return id, ok && id != ""
}

func payPersonally() types.Alternative {
	return types.Alternative{
		ID:              payPersonallyID,
		Title:           "Pay personally",
		Description:     "Pay with a personal card and claim the expense afterwards.",
		ExpectedOutcome: types.OutcomeAllowed,
		Patch:           &types.Patch{PaymentMethod: types.PaymentPersonalCard},
	}
}

func contactAdmin() types.Alternative {
	return types.Alternative{
		ID:              "contact-admin",
		Title:           "Contact your organization admin",
		Description:     "Ask an administrator to restore the corporate program for your account.",
		ExpectedOutcome: types.OutcomeAllowed,
	}
}

func reduceBasket() types.Alternative {
	return types.Alternative{
		ID:              "reduce-basket",
		Title:           "Reduce basket size",
		Description:     "Remove items or lower quantities to fall under the spending limit.",
		ExpectedOutcome: types.OutcomeAllowed,
	}
}

func removeItem(tx types.TransactionContext, itemID string) types.Alternative {
	label := itemID
	for _, item := range tx.Items {
		if item.ID == itemID {
			label = item.Label()
			break
		}
	}
	return types.Alternative{
		ID:              "remove-" + itemID,
		Title:           "Remove " + label,
		Description:     fmt.Sprintf("Remove %s from the basket.", label),
		ExpectedOutcome: types.OutcomeApprovalRequired,
		Patch:           &types.Patch{RemoveItemID: itemID},
	}
}

func switchVendor(tx types.TransactionContext, p policy.Policy, vendorID string) []types.Alternative {
	var out []types.Alternative
	for _, item := range tx.Items {
		if item.VendorID != vendorID {
			continue
		}
		best, ok := p.BestVendor(item.Category)
		if !ok || best.ID == vendorID {
			continue
		}
		out = append(out, types.Alternative{
			ID:              "switch-" + item.ID + "-" + best.ID,
			Title:           fmt.Sprintf("Buy %s from %s", item.Label(), best.DisplayName()),
			Description:     fmt.Sprintf("%s is a %s vendor for %s.", best.DisplayName(), strings.ToLower(string(best.Status)), item.Category),
			ExpectedOutcome: types.OutcomeAllowed,
			Patch:           &types.Patch{ItemID: item.ID, VendorID: best.ID},
		})
	}
	return out
}

func allocationDefault(tx types.TransactionContext, m policy.ModulePolicy, field string) (types.Alternative, bool) {
	var patch types.Patch
	var value string
	switch field {
	case "cost_center":
		value = m.Defaults.CostCenter
		patch.CostCenter = value
	case "project_tag":
		value = m.Defaults.ProjectTag
		patch.ProjectTag = value
	case "purpose":
		value = m.Defaults.Purpose
		patch.Purpose = value
	case "split":
		value = tx.CostCenter
		if strings.TrimSpace(value) == "" {
			value = m.Defaults.CostCenter
		}
		if value == "" {
			return types.Alternative{}, false
		}
		return types.Alternative{
			ID:              "allocate-items",
			Title:           "Allocate all items to " + value,
			Description:     fmt.Sprintf("Assign unallocated items to %s.", value),
			ExpectedOutcome: types.OutcomeAllowed,
			Patch:           &types.Patch{ItemAllocation: value},
		}, true
	default:
		return types.Alternative{}, false
	}
	if value == "" {
		return types.Alternative{}, false
	}
	name := strings.ReplaceAll(field, "_", " ")
	return types.Alternative{
		ID:              "default-" + strings.ReplaceAll(field, "_", "-"),
		Title:           fmt.Sprintf("Use default %s %s", name, value),
		Description:     fmt.Sprintf("Set the %s to the organization default %q.", name, value),
		ExpectedOutcome: types.OutcomeAllowed,
		Patch:           &patch,
	}, true
}
