package api

import (
	"context"
	"errors"
	"testing"

	"github.com/davidahmann/spendgate/internal/ledger"
	"github.com/davidahmann/spendgate/internal/ledger/sqlstore"
	"github.com/davidahmann/spendgate/pkg/types"
)

func approvedTx() EvaluateRequest {
	return EvaluateRequest{TransactionContext: types.TransactionContext{
		Module:           "ecommerce",
		PaymentMethod:    types.PaymentCorporatePay,
		ProgramStatus:    types.ProgramEligible,
		NowMs:            testNow.UnixMilli(),
		CostCenter:       "CC-100",
		Purpose:          "Team supplies",
		AttachmentsCount: 1,
		Items: []types.LineItem{
			{ID: "i1", Category: "office_supplies", VendorID: "officehub", UnitAmount: 50000, Qty: 1},
		},
	}}
}

func TestServicePersistsToSQLite(t *testing.T) {
	store, err := sqlstore.OpenSQLite("file:" + t.Name() + "?mode=memory&cache=shared")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	defer store.Close()
	if err := ledger.Migrate(store.DB(), ledger.DBSQLite); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	srv := newTestServer(t, nil)
	srv.service.Ledger = store
	if err := RegisterSigner(store, srv.signer, testNow); err != nil {
		t.Fatalf("register: %v", err)
	}

	result, err := srv.service.Evaluate(context.Background(), approvedTx())
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	rec, err := srv.service.VerifyAudit(result.CorrelationID)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if rec.CreatedAt != "2026-10-14T09:30:00.000Z" {
		t.Fatalf("created_at = %q", rec.CreatedAt)
	}
	pv, ok := store.GetPolicyVersion(rec.PolicyHash)
	if !ok || pv.PolicyID != "spendgate-default" {
		t.Fatalf("policy version not stored: %+v", pv)
	}
}

func TestServiceSameContextSharesRecords(t *testing.T) {
	srv := newTestServer(t, nil)
	first, err := srv.service.Evaluate(context.Background(), approvedTx())
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	second, err := srv.service.Evaluate(context.Background(), approvedTx())
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if first.ContextID != second.ContextID || first.DecisionID != second.DecisionID {
		t.Fatalf("content ids should match for identical input")
	}
	if first.CorrelationID == second.CorrelationID {
		t.Fatalf("each evaluation needs its own audit record")
	}
}

func TestServiceRequiresSignerWithLedger(t *testing.T) {
	srv := newTestServer(t, nil)
	srv.service.Signer = nil
	if _, err := srv.service.Evaluate(context.Background(), approvedTx()); err == nil {
		t.Fatalf("expected error without signer")
	}
}

func TestServiceVerifyUnknownKey(t *testing.T) {
	srv := newTestServer(t, nil)
	result, err := srv.service.Evaluate(context.Background(), approvedTx())
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if _, err := srv.service.VerifyAudit(result.CorrelationID); err == nil {
		t.Fatalf("expected unregistered key error")
	}
	if _, err := srv.service.Audit("nope"); !errors.Is(err, ErrAuditNotFound) {
		t.Fatalf("expected ErrAuditNotFound, got %v", err)
	}
}

func TestServiceReloadMetrics(t *testing.T) {
	srv := newTestServer(t, nil)
	srv.service.OnPolicyReload(true, nil)
	srv.service.OnPolicyReload(false, errors.New("bad"))
	families, err := srv.metrics.Registry().Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	for _, f := range families {
		if f.GetName() == "spendgate_policy_reloads_total" {
			if len(f.GetMetric()) != 2 {
				t.Fatalf("expected two reload series, got %d", len(f.GetMetric()))
			}
			return
		}
	}
	t.Fatalf("reload metric not registered")
}
