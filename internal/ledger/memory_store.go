package ledger

import "sync"

type InMemoryStore struct {
	mu sync.Mutex

	keys      map[string]KeyRecord
	policies  map[string]PolicyVersionRecord
	contexts  map[string]ContextRecord
	decisions map[string]DecisionRecord
	audits    map[string]AuditRecord
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		keys:      make(map[string]KeyRecord),
		policies:  make(map[string]PolicyVersionRecord),
		contexts:  make(map[string]ContextRecord),
		decisions: make(map[string]DecisionRecord),
		audits:    make(map[string]AuditRecord),
	}
}

func (s *InMemoryStore) WithTx(fn func(Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn((*memTx)(s))
}

func (s *InMemoryStore) PutKey(key KeyRecord) error {
	return s.WithTx(func(tx Tx) error { return tx.PutKey(key) })
}

func (s *InMemoryStore) GetKey(keyID string) (KeyRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return (*memTx)(s).GetKey(keyID)
}

func (s *InMemoryStore) PutPolicyVersion(policy PolicyVersionRecord) error {
	return s.WithTx(func(tx Tx) error { return tx.PutPolicyVersion(policy) })
}

func (s *InMemoryStore) GetPolicyVersion(policyHash string) (PolicyVersionRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return (*memTx)(s).GetPolicyVersion(policyHash)
}

func (s *InMemoryStore) PutContext(ctx ContextRecord) error {
	return s.WithTx(func(tx Tx) error { return tx.PutContext(ctx) })
}

func (s *InMemoryStore) GetContext(contextID string) (ContextRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return (*memTx)(s).GetContext(contextID)
}

func (s *InMemoryStore) PutDecision(decision DecisionRecord) error {
	return s.WithTx(func(tx Tx) error { return tx.PutDecision(decision) })
}

func (s *InMemoryStore) GetDecision(decisionID string) (DecisionRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return (*memTx)(s).GetDecision(decisionID)
}

func (s *InMemoryStore) PutAudit(rec AuditRecord) error {
	return s.WithTx(func(tx Tx) error { return tx.PutAudit(rec) })
}

func (s *InMemoryStore) GetAudit(correlationID string) (AuditRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return (*memTx)(s).GetAudit(correlationID)
}

func (s *InMemoryStore) PruneBefore(cutoff string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var removed int64
	for id, rec := range s.audits {
		if rec.CreatedAt < cutoff {
			delete(s.audits, id)
			removed++
		}
	}
	liveDecisions := map[string]bool{}
	liveContexts := map[string]bool{}
	for _, rec := range s.audits {
		liveDecisions[rec.DecisionID] = true
		liveContexts[rec.ContextID] = true
	}
	for id, rec := range s.decisions {
		if rec.CreatedAt < cutoff && !liveDecisions[id] {
			delete(s.decisions, id)
		}
	}
	for id, rec := range s.contexts {
		if rec.CreatedAt < cutoff && !liveContexts[id] {
			delete(s.contexts, id)
		}
	}
	return removed, nil
}

// memTx operates on the maps directly; callers hold the store lock.
type memTx InMemoryStore

func (t *memTx) PutKey(key KeyRecord) error {
	if _, ok := t.keys[key.KeyID]; !ok {
		t.keys[key.KeyID] = key
	}
	return nil
}

func (t *memTx) GetKey(keyID string) (KeyRecord, bool) {
	key, ok := t.keys[keyID]
	return key, ok
}

func (t *memTx) PutPolicyVersion(policy PolicyVersionRecord) error {
	if _, ok := t.policies[policy.PolicyHash]; !ok {
		t.policies[policy.PolicyHash] = policy
	}
	return nil
}

func (t *memTx) GetPolicyVersion(policyHash string) (PolicyVersionRecord, bool) {
	policy, ok := t.policies[policyHash]
	return policy, ok
}

func (t *memTx) PutContext(ctx ContextRecord) error {
	if _, ok := t.contexts[ctx.ContextID]; !ok {
		t.contexts[ctx.ContextID] = ctx
	}
	return nil
}

func (t *memTx) GetContext(contextID string) (ContextRecord, bool) {
	ctx, ok := t.contexts[contextID]
	return ctx, ok
}

func (t *memTx) PutDecision(decision DecisionRecord) error {
	if _, ok := t.decisions[decision.DecisionID]; !ok {
		t.decisions[decision.DecisionID] = decision
	}
	return nil
}

func (t *memTx) GetDecision(decisionID string) (DecisionRecord, bool) {
	decision, ok := t.decisions[decisionID]
	return decision, ok
}

func (t *memTx) PutAudit(rec AuditRecord) error {
	if _, ok := t.audits[rec.CorrelationID]; ok {
		return ErrAuditExists
	}
	t.audits[rec.CorrelationID] = rec
	return nil
}

func (t *memTx) GetAudit(correlationID string) (AuditRecord, bool) {
	rec, ok := t.audits[correlationID]
	return rec, ok
}
