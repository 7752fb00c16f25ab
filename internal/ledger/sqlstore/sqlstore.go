package sqlstore

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/davidahmann/spendgate/internal/ledger"
)

type Store struct {
	db *sql.DB
}

func OpenSQLite(dsn string) (*Store, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}
	if _, err := db.Exec("PRAGMA busy_timeout = 5000;"); err != nil {
		_ = db.Close()
		return nil, err
	}
	return New(db), nil
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) DB() *sql.DB {
	return s.db
}

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
		res, err := q.Exec(`DELETE FROM audit_records WHERE created_at < ?`, cutoff)
		if err != nil {
			return err
		}
		if removed, err = res.RowsAffected(); err != nil {
			return err
		}
		if _, err := q.Exec(`DELETE FROM decisions WHERE created_at < ? AND decision_id NOT IN (SELECT decision_id FROM audit_records)`, cutoff); err != nil {
			return err
		}
		_, err = q.Exec(`DELETE FROM contexts WHERE created_at < ? AND context_id NOT IN (SELECT context_id FROM audit_records)`, cutoff)
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

// Tx runs statements against either a transaction or the pool.
type Tx struct {
	q queryer
}

func (t *Tx) PutKey(key ledger.KeyRecord) error {
	_, err := t.q.Exec(
		`INSERT INTO keys(key_id, public_key, created_at, rotated_at)
VALUES(?,?,?,?)
ON CONFLICT(key_id) DO NOTHING`,
		key.KeyID,
		key.PublicKey,
		key.CreatedAt,
		key.RotatedAt,
	)
	return err
}

func (t *Tx) GetKey(keyID string) (ledger.KeyRecord, bool) {
	var rec ledger.KeyRecord
	row := t.q.QueryRow(`SELECT key_id, public_key, created_at, rotated_at FROM keys WHERE key_id = ?`, keyID)
	if err := row.Scan(&rec.KeyID, &rec.PublicKey, &rec.CreatedAt, &rec.RotatedAt); err != nil {
		return ledger.KeyRecord{}, false
	}
	return rec, true
}

func (t *Tx) PutPolicyVersion(policy ledger.PolicyVersionRecord) error {
	_, err := t.q.Exec(
		`INSERT INTO policy_versions(policy_hash, policy_id, policy_version, policy_yaml, created_at)
VALUES(?,?,?,?,?)
ON CONFLICT(policy_hash) DO NOTHING`,
		policy.PolicyHash, policy.PolicyID, policy.PolicyVersion, policy.PolicyYAML, policy.CreatedAt,
	)
	return err
}

func (t *Tx) GetPolicyVersion(policyHash string) (ledger.PolicyVersionRecord, bool) {
	var rec ledger.PolicyVersionRecord
	row := t.q.QueryRow(`SELECT policy_hash, policy_id, policy_version, policy_yaml, created_at FROM policy_versions WHERE policy_hash = ?`, policyHash)
	if err := row.Scan(&rec.PolicyHash, &rec.PolicyID, &rec.PolicyVersion, &rec.PolicyYAML, &rec.CreatedAt); err != nil {
		return ledger.PolicyVersionRecord{}, false
	}
	return rec, true
}

func (t *Tx) PutContext(ctx ledger.ContextRecord) error {
	_, err := t.q.Exec(`INSERT INTO contexts(context_id, created_at, body_json) VALUES(?,?,?) ON CONFLICT(context_id) DO NOTHING`, ctx.ContextID, ctx.CreatedAt, string(ctx.BodyJSON))
	return err
}

func (t *Tx) GetContext(contextID string) (ledger.ContextRecord, bool) {
	var rec ledger.ContextRecord
	var body string
	row := t.q.QueryRow(`SELECT context_id, body_json, created_at FROM contexts WHERE context_id = ?`, contextID)
	if err := row.Scan(&rec.ContextID, &body, &rec.CreatedAt); err != nil {
		return ledger.ContextRecord{}, false
	}
	rec.BodyJSON = []byte(body)
	return rec, true
}

func (t *Tx) PutDecision(decision ledger.DecisionRecord) error {
	_, err := t.q.Exec(`INSERT INTO decisions(decision_id, created_at, context_id, policy_hash, outcome, body_json) VALUES(?,?,?,?,?,?) ON CONFLICT(decision_id) DO NOTHING`,
		decision.DecisionID, decision.CreatedAt, decision.ContextID, decision.PolicyHash, decision.Outcome, string(decision.BodyJSON),
	)
	return err
}

func (t *Tx) GetDecision(decisionID string) (ledger.DecisionRecord, bool) {
	var rec ledger.DecisionRecord
	var body string
	row := t.q.QueryRow(`SELECT decision_id, created_at, context_id, policy_hash, outcome, body_json FROM decisions WHERE decision_id = ?`, decisionID)
	if err := row.Scan(&rec.DecisionID, &rec.CreatedAt, &rec.ContextID, &rec.PolicyHash, &rec.Outcome, &body); err != nil {
		return ledger.DecisionRecord{}, false
	}
	rec.BodyJSON = []byte(body)
	return rec, true
}

func (t *Tx) PutAudit(rec ledger.AuditRecord) error {
	if rec.CorrelationID == "" {
		return fmt.Errorf("missing correlation_id")
	}
	res, err := t.q.Exec(`INSERT INTO audit_records(correlation_id, context_id, decision_id, policy_hash, outcome, body_json, body_digest, key_id, sig, created_at)
VALUES(?,?,?,?,?,?,?,?,?,?) ON CONFLICT(correlation_id) DO NOTHING`,
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
	row := t.q.QueryRow(`SELECT correlation_id, context_id, decision_id, policy_hash, outcome, body_json, body_digest, key_id, sig, created_at FROM audit_records WHERE correlation_id = ?`, correlationID)
	if err := row.Scan(&rec.CorrelationID, &rec.ContextID, &rec.DecisionID, &rec.PolicyHash, &rec.Outcome, &body, &rec.BodyDigest, &rec.KeyID, &rec.Sig, &rec.CreatedAt); err != nil {
		return ledger.AuditRecord{}, false
	}
	rec.BodyJSON = []byte(body)
	return rec, true
}
