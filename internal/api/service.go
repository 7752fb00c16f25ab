package api

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/davidahmann/spendgate/internal/crypto"
	"github.com/davidahmann/spendgate/internal/engine"
	"github.com/davidahmann/spendgate/internal/grade"
	"github.com/davidahmann/spendgate/internal/ledger"
	"github.com/davidahmann/spendgate/internal/logging"
	"github.com/davidahmann/spendgate/internal/metrics"
	"github.com/davidahmann/spendgate/internal/pack"
	"github.com/davidahmann/spendgate/internal/policy"
	"github.com/davidahmann/spendgate/pkg/types"
)

var (
	ErrNoPolicy       = errors.New("no active policy")
	ErrAuditNotFound  = errors.New("audit record not found")
	ErrLedgerDisabled = errors.New("audit ledger not configured")
)

// EvaluateService runs evaluations against the active policy and records
// every result in the audit ledger when one is configured.
type EvaluateService struct {
	Engine   *engine.Engine
	Policies *policy.Store
	Ledger   ledger.Store
	Signer   ledger.Signer
	Metrics  *metrics.Collector
	Now      func() time.Time
}

func (s *EvaluateService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// Evaluate resolves the policy for req, runs the engine and persists the
// records. Malformed input returns an error wrapping context.ErrInvalidRequest.
func (s *EvaluateService) Evaluate(ctx context.Context, req EvaluateRequest) (types.EvaluationResult, error) {
	var loaded policy.LoadedPolicy
	if req.Policy != nil {
		inline, err := inlinePolicy(*req.Policy)
		if err != nil {
			return types.EvaluationResult{}, err
		}
		loaded = inline
	} else {
		var snap *policy.LoadedPolicy
		if s.Policies != nil {
			snap = s.Policies.Snapshot()
		}
		if snap == nil {
			return types.EvaluationResult{}, ErrNoPolicy
		}
		loaded = *snap
	}

	now := s.now()
	tx := req.Context(now.UnixMilli())
	eval, err := s.Engine.Evaluate(tx, loaded, logging.RequestID(ctx))
	if err != nil {
		return types.EvaluationResult{}, err
	}

	ctx = logging.WithCorrelationID(ctx, eval.Result.CorrelationID)
	logger := logging.FromContext(ctx)
	for _, f := range eval.Failures {
		logger.Error("rule failed during evaluation", "rule", f.RuleID, "error", f.Err)
		s.Metrics.RecordRuleFailure(f.RuleID)
	}
	s.Metrics.RecordEvaluation(tx.Module, eval.Result.Outcome, eval.Result.Reasons, eval.Duration)

	if err := s.persist(eval, loaded, now); err != nil {
		return types.EvaluationResult{}, err
	}
	logger.Info("evaluation complete",
		"module", tx.Module,
		"outcome", eval.Result.Outcome,
		"availability", eval.Result.Availability,
		"reasons", len(eval.Result.Reasons),
		"duration_us", eval.Duration.Microseconds(),
	)
	return eval.Result, nil
}

func (s *EvaluateService) persist(eval engine.Evaluation, loaded policy.LoadedPolicy, now time.Time) error {
	if s.Ledger == nil {
		return nil
	}
	if s.Signer == nil {
		return fmt.Errorf("audit ledger requires a signer")
	}
	createdAt := ledger.FormatTime(now)

	ctxJSON, err := crypto.Canonicalize(eval.Context)
	if err != nil {
		return fmt.Errorf("canonicalize context: %w", err)
	}
	decJSON, err := crypto.Canonicalize(eval.Decision)
	if err != nil {
		return fmt.Errorf("canonicalize decision: %w", err)
	}
	auditRec, err := ledger.MakeAuditRecord(eval.Result, createdAt, s.Signer)
	if err != nil {
		return fmt.Errorf("make audit record: %w", err)
	}

	p := loaded.Policy
	return s.Ledger.WithTx(func(tx ledger.Tx) error {
		if err := tx.PutPolicyVersion(ledger.PolicyVersionRecord{
			PolicyHash:    loaded.Hash,
			PolicyID:      p.PolicyID,
			PolicyVersion: p.PolicyVersion,
			PolicyYAML:    string(loaded.Bytes),
			CreatedAt:     createdAt,
		}); err != nil {
			return err
		}
		if err := tx.PutContext(ledger.ContextRecord{
			ContextID: eval.Context.ContextID,
			BodyJSON:  ctxJSON,
			CreatedAt: createdAt,
		}); err != nil {
			return err
		}
		if err := tx.PutDecision(ledger.DecisionRecord{
			DecisionID: eval.Decision.DecisionID,
			ContextID:  eval.Context.ContextID,
			PolicyHash: loaded.Hash,
			Outcome:    string(eval.Result.Outcome),
			BodyJSON:   decJSON,
			CreatedAt:  createdAt,
		}); err != nil {
			return err
		}
		return tx.PutAudit(auditRec)
	})
}

// Audit returns the stored audit record for correlationID.
func (s *EvaluateService) Audit(correlationID string) (ledger.AuditRecord, error) {
	if s.Ledger == nil {
		return ledger.AuditRecord{}, ErrLedgerDisabled
	}
	rec, ok := s.Ledger.GetAudit(correlationID)
	if !ok {
		return ledger.AuditRecord{}, ErrAuditNotFound
	}
	return rec, nil
}

// VerifyAudit checks the stored record against the public key registered
// under its key id.
func (s *EvaluateService) VerifyAudit(correlationID string) (ledger.AuditRecord, error) {
	rec, err := s.Audit(correlationID)
	if err != nil {
		return ledger.AuditRecord{}, err
	}
	key, ok := s.Ledger.GetKey(rec.KeyID)
	if !ok {
		return rec, fmt.Errorf("signing key %q not registered", rec.KeyID)
	}
	return rec, ledger.VerifyAuditRecord(rec, key.PublicKey)
}

// Grade scores rec against the linked records the ledger still holds.
func (s *EvaluateService) Grade(rec ledger.AuditRecord, valid bool) grade.Result {
	return grade.Evaluate(s.linked(rec, valid))
}

// Pack verifies the audit record and bundles it with its linked records.
// baseURL, when set, is recorded in the manifest as the verify endpoint.
func (s *EvaluateService) Pack(correlationID, baseURL string) ([]byte, error) {
	rec, verifyErr := s.VerifyAudit(correlationID)
	if errors.Is(verifyErr, ErrAuditNotFound) || errors.Is(verifyErr, ErrLedgerDisabled) {
		return nil, verifyErr
	}
	in := s.linked(rec, verifyErr == nil)
	packIn := pack.Input{
		Audit:    rec,
		Context:  in.Context,
		Decision: in.Decision,
		Policy:   in.Policy,
		Grade:    grade.Evaluate(in),
	}
	if key, ok := s.Ledger.GetKey(rec.KeyID); ok {
		packIn.PublicKey = key.PublicKey
	}
	return pack.BuildZip(packIn, baseURL)
}

func (s *EvaluateService) linked(rec ledger.AuditRecord, valid bool) grade.Input {
	in := grade.Input{Valid: valid, Audit: rec}
	if s.Ledger == nil {
		return in
	}
	if c, ok := s.Ledger.GetContext(rec.ContextID); ok {
		in.Context = &c
	}
	if d, ok := s.Ledger.GetDecision(rec.DecisionID); ok {
		in.Decision = &d
	}
	if p, ok := s.Ledger.GetPolicyVersion(rec.PolicyHash); ok {
		in.Policy = &p
	}
	return in
}

// RegisterSigner records the signer's public key so audit records can be
// verified later.
func RegisterSigner(store ledger.Store, signer ledger.KeySigner, now time.Time) error {
	return store.PutKey(ledger.KeyRecord{
		KeyID:     signer.KeyID(),
		PublicKey: signer.PublicKey(),
		CreatedAt: ledger.FormatTime(now),
	})
}

// OnPolicyReload is suitable for policy.Watcher.OnReload.
func (s *EvaluateService) OnPolicyReload(changed bool, err error) {
	s.Metrics.RecordPolicyReload(changed, err)
}
