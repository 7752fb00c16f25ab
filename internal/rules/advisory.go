package rules

import (
	"fmt"

	"github.com/davidahmann/spendgate/pkg/types"
)

func attachmentsMissing(in Input) bool {
	limit := in.Module.Advisory.AttachmentsAbove
	return limit != nil && in.Tx.Total() > *limit && in.Tx.AttachmentsCount == 0
}

func attachmentReason(in Input) types.Reason {
	return types.Reason{
		Code:     types.CodeAttachment,
		Title:    "Receipt attachment recommended",
		Detail:   fmt.Sprintf("Attach an invoice or quote for spend above %s.", formatAmount(*in.Module.Advisory.AttachmentsAbove)),
		Severity: types.SeverityInfo,
		Subject:  types.SubjectField + "attachments_count",
	}
}

func notesMissing(in Input) bool {
	limit := in.Module.Advisory.NotesAbove
	return limit != nil && in.Tx.Total() > *limit && blank(in.Tx.Notes)
}

func notesReason(in Input) types.Reason {
	return types.Reason{
		Code:     types.CodeNotes,
		Title:    "Notes recommended",
		Detail:   fmt.Sprintf("Add a note for approvers on spend above %s.", formatAmount(*in.Module.Advisory.NotesAbove)),
		Severity: types.SeverityInfo,
		Subject:  types.SubjectField + "notes",
	}
}

// checkQuoteAssets flags high-value items in quote categories for the
// quote workflow.
func checkQuoteAssets(in Input) []types.Reason {
	adv := in.Module.Advisory
	if adv.QuoteAbove == nil || len(adv.QuoteCategories) == 0 {
		return nil
	}
	var out []types.Reason
	for _, item := range in.Tx.Items {
		if item.Amount() <= *adv.QuoteAbove || !inList(adv.QuoteCategories, item.Category) {
			continue
		}
		out = append(out, types.Reason{
			Code:     types.CodeAsset,
			Title:    "Quote required: " + itemTitle(in.Tx.Items, item),
			Detail:   fmt.Sprintf("%s at %s is a high-value asset and goes through the quote workflow.", item.Label(), formatAmount(item.Amount())),
			Severity: types.SeverityWarning,
			Subject:  types.SubjectItem + item.ID,
		})
	}
	return out
}

func inList(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
