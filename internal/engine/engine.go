// Package engine wires the decision pipeline into a single call.
package engine

import (
	"fmt"
	"time"

	"github.com/davidahmann/spendgate/internal/alternatives"
	"github.com/davidahmann/spendgate/internal/audit"
	ctxbuilder "github.com/davidahmann/spendgate/internal/context"
	"github.com/davidahmann/spendgate/internal/decision"
	"github.com/davidahmann/spendgate/internal/policy"
	"github.com/davidahmann/spendgate/internal/rules"
	"github.com/davidahmann/spendgate/pkg/types"
)

type Options struct {
	// VerifyAlternatives re-evaluates each patched context so expected
	// outcomes are exact instead of optimistic.
	VerifyAlternatives bool
	// NewCorrelationID overrides the uuid generator.
	NewCorrelationID func() string
}

// Engine holds no state besides its options and is safe for concurrent use.
type Engine struct {
	opts Options
}

func New(opts Options) *Engine {
	if opts.NewCorrelationID == nil {
		opts.NewCorrelationID = audit.NewCorrelationID
	}
	return &Engine{opts: opts}
}

// Evaluation is everything one call produces.
type Evaluation struct {
	Result   types.EvaluationResult
	Context  types.ContextRecord
	Decision types.DecisionRecord
	Failures []rules.Failure
	Duration time.Duration
}

// Evaluate validates tx and runs it against the policy snapshot. Malformed
// input returns an error wrapping context.ErrInvalidRequest; policy problems
// surface as Blocked outcomes.
func (e *Engine) Evaluate(tx types.TransactionContext, loaded policy.LoadedPolicy, requestID string) (Evaluation, error) {
	start := time.Now()

	ctxRecord, err := ctxbuilder.BuildContext(tx)
	if err != nil {
		return Evaluation{}, err
	}

	p := loaded.Policy
	res := rules.Evaluate(tx, p)
	outcome := decision.Aggregate(res.Reasons)
	availability := rules.ResolveAvailability(tx.PaymentMethod, tx.ProgramStatus, res.GraceActive, outcome)

	alts := alternatives.Synthesize(tx, res.Reasons, p)
	if e.opts.VerifyAlternatives {
		alts = alternatives.Verify(tx, p, alts)
	}

	decisionPolicy := types.DecisionPolicy{
		PolicyID:      p.PolicyID,
		PolicyVersion: p.PolicyVersion,
		PolicyHash:    loaded.Hash,
	}
	evaluatedAt := tx.Now()
	dec, err := decision.BuildDecision(ctxRecord.ContextID, decisionPolicy, outcome, availability,
		decision.ReasonCodes(res.Reasons), evaluatedAt.Format(time.RFC3339Nano))
	if err != nil {
		return Evaluation{}, fmt.Errorf("build decision: %w", err)
	}

	correlationID := e.opts.NewCorrelationID()
	trail, err := audit.Build(tx, p, res.Reasons, outcome, audit.Meta{
		CorrelationID: correlationID,
		RequestID:     requestID,
		ContextID:     ctxRecord.ContextID,
		DecisionID:    dec.DecisionID,
		PolicyHash:    loaded.Hash,
		EvaluatedAt:   evaluatedAt,
	})
	if err != nil {
		return Evaluation{}, err
	}

	if alts == nil {
		alts = []types.Alternative{}
	}
	return Evaluation{
		Result: types.EvaluationResult{
			Outcome:       outcome,
			Availability:  availability,
			Reasons:       res.Reasons,
			Alternatives:  alts,
			Audit:         trail,
			ContextID:     ctxRecord.ContextID,
			DecisionID:    dec.DecisionID,
			CorrelationID: correlationID,
		},
		Context:  ctxRecord,
		Decision: dec,
		Failures: res.Failures,
		Duration: time.Since(start),
	}, nil
}
