package types

import "time"

type PaymentMethod string

const (
	PaymentCorporatePay   PaymentMethod = "CorporatePay"
	PaymentPersonalCard   PaymentMethod = "PersonalCard"
	PaymentPersonalWallet PaymentMethod = "PersonalWallet"
	PaymentMobileMoney    PaymentMethod = "MobileMoney"
	PaymentCash           PaymentMethod = "Cash"
)

func (p PaymentMethod) Valid() bool {
	switch p {
	case PaymentCorporatePay, PaymentPersonalCard, PaymentPersonalWallet, PaymentMobileMoney, PaymentCash:
		return true
	}
	return false
}

// Corporate reports whether the method is organization-funded and therefore policy gated.
func (p PaymentMethod) Corporate() bool {
	return p == PaymentCorporatePay
}

type ProgramStatus string

const (
	ProgramEligible            ProgramStatus = "Eligible"
	ProgramNotLinked           ProgramStatus = "NotLinked"
	ProgramNotEligible         ProgramStatus = "NotEligible"
	ProgramDepositDepleted     ProgramStatus = "DepositDepleted"
	ProgramCreditLimitExceeded ProgramStatus = "CreditLimitExceeded"
	ProgramBillingDelinquency  ProgramStatus = "BillingDelinquency"
)

func (s ProgramStatus) Valid() bool {
	switch s {
	case ProgramEligible, ProgramNotLinked, ProgramNotEligible, ProgramDepositDepleted,
		ProgramCreditLimitExceeded, ProgramBillingDelinquency:
		return true
	}
	return false
}

// AccountBlocked reports statuses that stop corporate payment regardless of the transaction.
func (s ProgramStatus) AccountBlocked() bool {
	switch s {
	case ProgramNotLinked, ProgramNotEligible, ProgramDepositDepleted, ProgramCreditLimitExceeded:
		return true
	}
	return false
}

// TransactionContext is one attempted spend. It is built per evaluation and never mutated.
type TransactionContext struct {
	Module        string        `json:"module"`
	PaymentMethod PaymentMethod `json:"payment_method"`
	ProgramStatus ProgramStatus `json:"program_status,omitempty"`

	GraceEnabled      bool  `json:"grace_enabled,omitempty"`
	GraceEndAtMs      int64 `json:"grace_end_at_ms,omitempty"`
	DelinquentSinceMs int64 `json:"delinquent_since_ms,omitempty"`
	NowMs             int64 `json:"now_ms"`

	Items []LineItem `json:"items"`

	CostCenter      string `json:"cost_center,omitempty"`
	ProjectTag      string `json:"project_tag,omitempty"`
	Purpose         string `json:"purpose,omitempty"`
	SplitAllocation bool   `json:"split_allocation,omitempty"`

	AttachmentsCount int    `json:"attachments_count,omitempty"`
	Notes            string `json:"notes,omitempty"`

	Channel   string `json:"channel,omitempty"`
	Zone      string `json:"zone,omitempty"`
	SiteID    string `json:"site_id,omitempty"`
	Connector string `json:"connector,omitempty"`
}

type LineItem struct {
	ID         string `json:"id"`
	Name       string `json:"name,omitempty"`
	Category   string `json:"category"`
	VendorID   string `json:"vendor_id"`
	UnitAmount int64  `json:"unit_amount"`
	Qty        int64  `json:"qty"`
	Allocation string `json:"allocation,omitempty"`
}

// Amount is the line total in minor units.
func (i LineItem) Amount() int64 {
	return i.UnitAmount * i.Qty
}

// Label is the display name of the item, falling back to its id.
func (i LineItem) Label() string {
	if i.Name != "" {
		return i.Name
	}
	return i.ID
}

func (c TransactionContext) Total() int64 {
	var total int64
	for _, item := range c.Items {
		total += item.Amount()
	}
	return total
}

func (c TransactionContext) Now() time.Time {
	return time.UnixMilli(c.NowMs).UTC()
}

// Clone returns a deep copy so callers can derive patched contexts safely.
func (c TransactionContext) Clone() TransactionContext {
	out := c
	out.Items = append([]LineItem(nil), c.Items...)
	return out
}

type ContextRecord struct {
	Schema    string             `json:"schema"`
	ContextID string             `json:"context_id"`
	Context   TransactionContext `json:"context"`
}
