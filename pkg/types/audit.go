package types

type AuditField struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

type PathStep struct {
	Stage  string `json:"stage"`
	Detail string `json:"detail"`
}

// AuditTrail explains one evaluation. It is write-once.
type AuditTrail struct {
	Summary    string       `json:"summary"`
	Triggers   []AuditField `json:"triggers"`
	PolicyPath []PathStep   `json:"policy_path"`
	AuditMeta  []AuditField `json:"audit_meta"`
	Digest     string       `json:"digest,omitempty"`
}

// Meta returns the audit_meta value for key, or "".
func (t AuditTrail) Meta(key string) string {
	for _, f := range t.AuditMeta {
		if f.Key == key {
			return f.Value
		}
	}
	return ""
}

type EvaluationResult struct {
	Outcome       Outcome       `json:"outcome"`
	Availability  Availability  `json:"availability"`
	Reasons       []Reason      `json:"reasons"`
	Alternatives  []Alternative `json:"alternatives"`
	Audit         AuditTrail    `json:"audit"`
	ContextID     string        `json:"context_id"`
	DecisionID    string        `json:"decision_id"`
	CorrelationID string        `json:"correlation_id"`
}
