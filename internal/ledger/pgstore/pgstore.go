package pgstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	_ "github.com/lib/pq"

	"github.com/davidahmann/spendgate/internal/ledger"
)

type Store struct {
	db *sql.DB
}

func OpenPostgres(dsn string) (*Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return New(db), nil
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) DB() *sql.DB { return s.db }

func (s *Store) WithTx(fn func(ledger.Tx) error) error {
	tx, err := s.db.BeginTx(context.Background(), &sql.TxOptions{})
	if err != nil {
		return err
	}
	if err := fn(&Tx{q: tx}); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

func (s *Store) PutKey(key ledger.KeyRecord) error {
	return s.WithTx(func(tx ledger.Tx) error { return tx.PutKey(key) })
}

func (s *Store) GetKey(keyID string) (ledger.KeyRecord, bool) {
	return (&Tx{q: s.db}).GetKey(keyID)
}

func (s *Store) PutPolicyVersion(policy ledger.PolicyVersionRecord) error {
	return s.WithTx(func(tx ledger.Tx) error { return tx.PutPolicyVersion(policy) })
}

func (s *Store) GetPolicyVersion(policyHash string) (ledger.PolicyVersionRecord, bool) {
	return (&Tx{q: s.db}).GetPolicyVersion(policyHash)
}

func (s *Store) PutContext(ctx ledger.ContextRecord) error {
	return s.WithTx(func(tx ledger.Tx) error { return tx.PutContext(ctx) })
}

func (s *Store) GetContext(contextID string) (ledger.ContextRecord, bool) {
	return (&Tx{q: s.db}).GetContext(contextID)
}

func (s *Store) PutDecision(decision ledger.DecisionRecord) error {
	return s.WithTx(func(tx ledger.Tx) error { return tx.PutDecision(decision) })
}

func (s *Store) GetDecision(decisionID string) (ledger.DecisionRecord, bool) {
	return (&Tx{q: s.db}).GetDecision(decisionID)
}

func (s *Store) PutAudit(rec ledger.AuditRecord) error {
	return s.WithTx(func(tx ledger.Tx) error { return tx.PutAudit(rec) })
}

func (s *Store) GetAudit(correlationID string) (ledger.AuditRecord, bool) {
	return (&Tx{q: s.db}).GetAudit(correlationID)
}

func (s *Store) PruneBefore(cutoff string) (int64, error) {
	var removed int64
	err := s.WithTx(func(ltx ledger.Tx) error {
		q := ltx.(*Tx).q
		res, err := q.Exec(`DELETE FROM spendgate_audit_records WHERE created_at < $1`, cutoff)
		if err != nil {
			return err
		}
		if removed, err = res.RowsAffected(); err != nil {
			return err
		}
		if _, err := q.Exec(`DELETE FROM spendgate_decisions d WHERE d.created_at < $1 AND NOT EXISTS (SELECT 1 FROM spendgate_audit_records a WHERE a.decision_id = d.decision_id)`, cutoff); err != nil {
			return err
		}
		_, err = q.Exec(`DELETE FROM spendgate_contexts c WHERE c.created_at < $1 AND NOT EXISTS (SELECT 1 FROM spendgate_audit_records a WHERE a.context_id = c.context_id)`, cutoff)
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("prune audit records: %w", err)
	}
	return removed, nil
}

type queryer interface {
	Exec(query string, args ...any) (sql.Result, error)
	QueryRow(query string, args ...any) *sql.Row
}

type Tx struct {
	q queryer
}

func (t *Tx) PutKey(key ledger.KeyRecord) error {
	_, err := t.q.Exec(`INSERT INTO spendgate_keys(key_id, public_key, created_at, rotated_at)
VALUES($1,$2,$3,$4)
ON CONFLICT(key_id) DO NOTHING`, key.KeyID, key.PublicKey, key.CreatedAt, key.RotatedAt)
	return err
}

func (t *Tx) GetKey(keyID string) (ledger.KeyRecord, bool) {
	var rec ledger.KeyRecord
	row := t.q.QueryRow(`SELECT key_id, public_key, created_at, rotated_at FROM spendgate_keys WHERE key_id = $1`, keyID)
	if err := row.Scan(&rec.KeyID, &rec.PublicKey, &rec.CreatedAt, &rec.RotatedAt); err != nil {
		return ledger.KeyRecord{}, false
	}
	return rec, true
}

func (t *Tx) PutPolicyVersion(policy ledger.PolicyVersionRecord) error {
	_, err := t.q.Exec(`INSERT INTO spendgate_policy_versions(policy_hash, policy_id, policy_version, policy_yaml, created_at)
VALUES($1,$2,$3,$4,$5)
ON CONFLICT(policy_hash) DO NOTHING`, policy.PolicyHash, policy.PolicyID, policy.PolicyVersion, policy.PolicyYAML, policy.CreatedAt)
	return err
}

func (t *Tx) GetPolicyVersion(policyHash string) (ledger.PolicyVersionRecord, bool) {
	var rec ledger.PolicyVersionRecord
	row := t.q.QueryRow(`SELECT policy_hash, policy_id, policy_version, policy_yaml, created_at FROM spendgate_policy_versions WHERE policy_hash = $1`, policyHash)
	if err := row.Scan(&rec.PolicyHash, &rec.PolicyID, &rec.PolicyVersion, &rec.PolicyYAML, &rec.CreatedAt); err != nil {
		return ledger.PolicyVersionRecord{}, false
	}
	return rec, true
}

func (t *Tx) PutContext(ctx ledger.ContextRecord) error {
	if !json.Valid(ctx.BodyJSON) {
		return errors.New("invalid body_json")
	}
	_, err := t.q.Exec(`INSERT INTO spendgate_contexts(context_id, created_at, body_json) VALUES($1,$2,$3::jsonb) ON CONFLICT(context_id) DO NOTHING`,
		ctx.ContextID, ctx.CreatedAt, string(ctx.BodyJSON))
	return err
}

func (t *Tx) GetContext(contextID string) (ledger.ContextRecord, bool) {
	var rec ledger.ContextRecord
	var body string
	row := t.q.QueryRow(`SELECT context_id, body_json::text, created_at FROM spendgate_contexts WHERE context_id = $1`, contextID)
	if err := row.Scan(&rec.ContextID, &body, &rec.CreatedAt); err != nil {
		return ledger.ContextRecord{}, false
	}
	rec.BodyJSON = []byte(body)
	return rec, true
}

func (t *Tx) PutDecision(decision ledger.DecisionRecord) error {
	if !json.Valid(decision.BodyJSON) {
		return errors.New("invalid body_json")
	}
	_, err := t.q.Exec(`INSERT INTO spendgate_decisions(decision_id, created_at, context_id, policy_hash, outcome, body_json)
VALUES($1,$2,$3,$4,$5,$6::jsonb) ON CONFLICT(decision_id) DO NOTHING`,
		decision.DecisionID, decision.CreatedAt, decision.ContextID, decision.PolicyHash, decision.Outcome, string(decision.BodyJSON))
	return err
}

func (t *Tx) GetDecision(decisionID string) (ledger.DecisionRecord, bool) {
	var rec ledger.DecisionRecord
	var body string
	row := t.q.QueryRow(`SELECT decision_id, created_at, context_id, policy_hash, outcome, body_json::text FROM spendgate_decisions WHERE decision_id = $1`, decisionID)
	if err := row.Scan(&rec.DecisionID, &rec.CreatedAt, &rec.ContextID, &rec.PolicyHash, &rec.Outcome, &body); err != nil {
		return ledger.DecisionRecord{}, false
	}
	rec.BodyJSON = []byte(body)
	return rec, true
}

// PutAudit stores the body as text; jsonb would reformat it and break the digest.
func (t *Tx) PutAudit(rec ledger.AuditRecord) error {
	if rec.CorrelationID == "" {
		return errors.New("missing correlation_id")
	}
	if !json.Valid(rec.BodyJSON) {
		return errors.New("invalid body_json")
	}
	res, err := t.q.Exec(`INSERT INTO spendgate_audit_records(correlation_id, context_id, decision_id, policy_hash, outcome, body_json, body_digest, key_id, sig, created_at)
VALUES($1,$2,$3,$4,$5,$6,$7,$8,$9,$10) ON CONFLICT(correlation_id) DO NOTHING`,
		rec.CorrelationID,
		rec.ContextID,
		rec.DecisionID,
		rec.PolicyHash,
		rec.Outcome,
		string(rec.BodyJSON),
		rec.BodyDigest,
		rec.KeyID,
		rec.Sig,
		rec.CreatedAt,
	)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ledger.ErrAuditExists
	}
	return nil
}

func (t *Tx) GetAudit(correlationID string) (ledger.AuditRecord, bool) {
	var rec ledger.AuditRecord
	var body string
	row := t.q.QueryRow(`SELECT correlation_id, context_id, decision_id, policy_hash, outcome, body_json, body_digest, key_id, sig, created_at
FROM spendgate_audit_records WHERE correlation_id = $1`, correlationID)
	if err := row.Scan(&rec.CorrelationID, &rec.ContextID, &rec.DecisionID, &rec.PolicyHash, &rec.Outcome, &body, &rec.BodyDigest, &rec.KeyID, &rec.Sig, &rec.CreatedAt); err != nil {
		return ledger.AuditRecord{}, false
	}
	rec.BodyJSON = []byte(body)
	return rec, true
}
