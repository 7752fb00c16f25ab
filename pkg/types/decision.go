package types

type Severity string

const (
	SeverityInfo     Severity = "Info"
	SeverityWarning  Severity = "Warning"
	SeverityCritical Severity = "Critical"
)

// Rank orders severities from least to most restrictive.
func (s Severity) Rank() int {
	switch s {
	case SeverityCritical:
		return 2
	case SeverityWarning:
		return 1
	default:
		return 0
	}
}

type Outcome string

const (
	OutcomeAllowed          Outcome = "Allowed"
	OutcomeApprovalRequired Outcome = "ApprovalRequired"
	OutcomeBlocked          Outcome = "Blocked"
)

// Rank orders outcomes from least to most restrictive.
func (o Outcome) Rank() int {
	switch o {
	case OutcomeBlocked:
		return 2
	case OutcomeApprovalRequired:
		return 1
	default:
		return 0
	}
}

type Availability string

const (
	AvailabilityAvailable        Availability = "Available"
	AvailabilityRequiresApproval Availability = "RequiresApproval"
	AvailabilityNotAvailable     Availability = "NotAvailable"
)

// Reason codes. Several reasons may share a code; identity is (code, title).
const (
	CodePayment         = "PAYMENT"
	CodePolicyConfig    = "POLICY_CONFIG"
	CodeProgram         = "PROGRAM"
	CodeAllocation      = "ALLOCATION"
	CodeCategory        = "CATEGORY"
	CodeVendor          = "VENDOR"
	CodeBasket          = "BASKET"
	CodeChannel         = "CHANNEL"
	CodeContext         = "CONTEXT"
	CodeAttachment      = "ATTACHMENT"
	CodeNotes           = "NOTES"
	CodeAsset           = "ASSET"
	CodeWithinPolicy    = "WITHIN_POLICY"
	CodeEvaluationError = "EVALUATION_ERROR"
)

type Reason struct {
	Code     string   `json:"code"`
	Title    string   `json:"title"`
	Detail   string   `json:"detail"`
	Severity Severity `json:"severity"`
	// Subject names what triggered the reason: "item:<id>", "vendor:<id>",
	// "field:<name>", "channel:<name>" or "rule:<id>".
	Subject string `json:"subject,omitempty"`
}

// Subject prefixes.
const (
	SubjectItem    = "item:"
	SubjectVendor  = "vendor:"
	SubjectField   = "field:"
	SubjectChannel = "channel:"
	SubjectRule    = "rule:"
)

// Key is the structural identity of a reason.
func (r Reason) Key() string {
	return r.Code + "|" + r.Title
}

type DecisionRecord struct {
	Schema       string         `json:"schema"`
	DecisionID   string         `json:"decision_id"`
	CreatedAt    string         `json:"created_at"`
	ContextID    string         `json:"context_id"`
	Policy       DecisionPolicy `json:"policy"`
	Outcome      Outcome        `json:"outcome"`
	Availability Availability   `json:"availability"`
	ReasonCodes  []string       `json:"reason_codes,omitempty"`
}

type DecisionPolicy struct {
	PolicyID      string `json:"policy_id"`
	PolicyVersion string `json:"policy_version"`
	PolicyHash    string `json:"policy_hash"`
}
