package types

// Patch is a proposed, non-committing mutation of a TransactionContext.
type Patch struct {
	PaymentMethod  PaymentMethod `json:"payment_method,omitempty"`
	RemoveItemID   string        `json:"remove_item_id,omitempty"`
	ItemID         string        `json:"item_id,omitempty"`
	VendorID       string        `json:"vendor_id,omitempty"`
	CostCenter     string        `json:"cost_center,omitempty"`
	ProjectTag     string        `json:"project_tag,omitempty"`
	Purpose        string        `json:"purpose,omitempty"`
	ItemAllocation string        `json:"item_allocation,omitempty"`
}

func (p Patch) IsZero() bool {
	return p == Patch{}
}

type Alternative struct {
	ID              string  `json:"id"`
	Title           string  `json:"title"`
	Description     string  `json:"description"`
	ExpectedOutcome Outcome `json:"expected_outcome"`
	Patch           *Patch  `json:"patch,omitempty"`
	Verified        bool    `json:"verified,omitempty"`
}
