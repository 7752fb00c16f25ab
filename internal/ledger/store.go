package ledger

import (
	"errors"
	"time"
)

// ErrAuditExists is returned when an audit record is written twice.
var ErrAuditExists = errors.New("audit record already exists")

// TimeFormat is the fixed-width UTC layout for created_at columns, so that
// string comparison orders records in time.
const TimeFormat = "2006-01-02T15:04:05.000Z"

func FormatTime(t time.Time) string {
	return t.UTC().Format(TimeFormat)
}

type Store interface {
	WithTx(fn func(Tx) error) error

	PutKey(key KeyRecord) error
	GetKey(keyID string) (KeyRecord, bool)

	PutPolicyVersion(policy PolicyVersionRecord) error
	GetPolicyVersion(policyHash string) (PolicyVersionRecord, bool)

	PutContext(ctx ContextRecord) error
	GetContext(contextID string) (ContextRecord, bool)

	PutDecision(decision DecisionRecord) error
	GetDecision(decisionID string) (DecisionRecord, bool)

	PutAudit(rec AuditRecord) error
	GetAudit(correlationID string) (AuditRecord, bool)

	// PruneBefore deletes audit records created before cutoff together with
	// the contexts and decisions no remaining audit record references.
	PruneBefore(cutoff string) (int64, error)
}

// Tx writes are idempotent for content-addressed records; PutAudit is
// write-once and returns ErrAuditExists on a repeated correlation id.
type Tx interface {
	PutKey(key KeyRecord) error
	GetKey(keyID string) (KeyRecord, bool)

	PutPolicyVersion(policy PolicyVersionRecord) error
	GetPolicyVersion(policyHash string) (PolicyVersionRecord, bool)

	PutContext(ctx ContextRecord) error
	GetContext(contextID string) (ContextRecord, bool)

	PutDecision(decision DecisionRecord) error
	GetDecision(decisionID string) (DecisionRecord, bool)

	PutAudit(rec AuditRecord) error
	GetAudit(correlationID string) (AuditRecord, bool)
}

type PolicyVersionRecord struct {
	PolicyHash    string
	PolicyID      string
	PolicyVersion string
	PolicyYAML    string
	CreatedAt     string
}

type KeyRecord struct {
	KeyID     string
	PublicKey []byte
	CreatedAt string
	RotatedAt *string
}

type ContextRecord struct {
	ContextID string
	BodyJSON  []byte
	CreatedAt string
}

type DecisionRecord struct {
	DecisionID string
	ContextID  string
	PolicyHash string
	Outcome    string
	BodyJSON   []byte
	CreatedAt  string
}

type AuditRecord struct {
	CorrelationID string
	ContextID     string
	DecisionID    string
	PolicyHash    string
	Outcome       string
	BodyJSON      []byte
	BodyDigest    string
	KeyID         string
	Sig           []byte
	CreatedAt     string
}
