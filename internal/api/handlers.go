package api

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/davidahmann/spendgate/internal/auth"
	ctxbuilder "github.com/davidahmann/spendgate/internal/context"
	"github.com/davidahmann/spendgate/internal/ledger"
	"github.com/davidahmann/spendgate/internal/logging"
	"github.com/davidahmann/spendgate/internal/metrics"
	"github.com/davidahmann/spendgate/internal/policy"
)

const maxRequestBytes = 1 << 20

type Handler struct {
	Auth    auth.Authenticator
	Service *EvaluateService
	Metrics *metrics.Collector
}

func (h *Handler) Evaluate(w http.ResponseWriter, r *http.Request) {
	if !h.ensureAuth(w, r) {
		return
	}
	if h.Service == nil {
		writeJSON(w, http.StatusNotImplemented, map[string]string{"error": "evaluate service not configured"})
		return
	}

	var req EvaluateRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json: " + err.Error()})
		return
	}

	result, err := h.Service.Evaluate(r.Context(), req)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, result)
	case errors.Is(err, ctxbuilder.ErrInvalidRequest):
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"error": err.Error(), "kind": "invalid_request"})
	case errors.Is(err, ErrNoPolicy):
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": err.Error()})
	default:
		logging.FromContext(r.Context()).Error("evaluation failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "evaluation failed"})
	}
}

type auditResponse struct {
	CorrelationID string          `json:"correlation_id"`
	ContextID     string          `json:"context_id"`
	DecisionID    string          `json:"decision_id"`
	PolicyHash    string          `json:"policy_hash"`
	Outcome       string          `json:"outcome"`
	BodyDigest    string          `json:"body_digest"`
	KeyID         string          `json:"key_id"`
	Sig           string          `json:"sig"`
	CreatedAt     string          `json:"created_at"`
	Body          json.RawMessage `json:"body"`
}

func newAuditResponse(rec ledger.AuditRecord) auditResponse {
	return auditResponse{
		CorrelationID: rec.CorrelationID,
		ContextID:     rec.ContextID,
		DecisionID:    rec.DecisionID,
		PolicyHash:    rec.PolicyHash,
		Outcome:       rec.Outcome,
		BodyDigest:    rec.BodyDigest,
		KeyID:         rec.KeyID,
		Sig:           base64.StdEncoding.EncodeToString(rec.Sig),
		CreatedAt:     rec.CreatedAt,
		Body:          json.RawMessage(rec.BodyJSON),
	}
}

func (h *Handler) Audit(w http.ResponseWriter, r *http.Request) {
	if !h.ensureAuth(w, r) {
		return
	}
	if h.Service == nil {
		writeJSON(w, http.StatusNotImplemented, map[string]string{"error": "audit not configured"})
		return
	}

	rec, err := h.Service.Audit(r.PathValue("correlation_id"))
	if err != nil {
		writeAuditError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newAuditResponse(rec))
}

func (h *Handler) VerifyAudit(w http.ResponseWriter, r *http.Request) {
	if !h.ensureAuth(w, r) {
		return
	}
	if h.Service == nil {
		writeJSON(w, http.StatusNotImplemented, map[string]string{"error": "verify not configured"})
		return
	}

	correlationID := r.PathValue("correlation_id")
	rec, err := h.Service.VerifyAudit(correlationID)
	if errors.Is(err, ErrAuditNotFound) || errors.Is(err, ErrLedgerDisabled) {
		writeAuditError(w, err)
		return
	}
	valid := err == nil
	payload := map[string]any{
		"correlation_id": correlationID,
		"key_id":         rec.KeyID,
		"valid":          valid,
		"grade":          h.Service.Grade(rec, valid),
	}
	if err != nil {
		payload["error"] = err.Error()
	}
	writeJSON(w, http.StatusOK, payload)
}

// Pack returns the audit evidence zip for a correlation id.
func (h *Handler) Pack(w http.ResponseWriter, r *http.Request) {
	if !h.ensureAuth(w, r) {
		return
	}
	if h.Service == nil {
		writeJSON(w, http.StatusNotImplemented, map[string]string{"error": "pack not configured"})
		return
	}

	correlationID := r.PathValue("correlation_id")
	data, err := h.Service.Pack(correlationID, requestBaseURL(r))
	if err != nil {
		writeAuditError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", "spendgate-"+correlationID+".zip"))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func requestBaseURL(r *http.Request) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if forwarded := r.Header.Get("X-Forwarded-Proto"); forwarded != "" {
		scheme = forwarded
	}
	return scheme + "://" + r.Host
}

func writeAuditError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrAuditNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
	case errors.Is(err, ErrLedgerDisabled):
		writeJSON(w, http.StatusNotImplemented, map[string]string{"error": err.Error()})
	default:
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
}

func (h *Handler) Policy(w http.ResponseWriter, r *http.Request) {
	if !h.ensureAuth(w, r) {
		return
	}
	if h.Service == nil || h.Service.Policies == nil || h.Service.Policies.Snapshot() == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": ErrNoPolicy.Error()})
		return
	}
	snap := h.Service.Policies.Snapshot()

	problems := []string{}
	for _, p := range policy.Lint(snap.Policy) {
		problems = append(problems, p.String())
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"policy_id":      snap.Policy.PolicyID,
		"policy_version": snap.Policy.PolicyVersion,
		"policy_hash":    snap.Hash,
		"problems":       problems,
	})
}

func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) ensureAuth(w http.ResponseWriter, r *http.Request) bool {
	if h.Auth == nil {
		return true
	}
	if _, err := h.Auth.Authenticate(r); err != nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": err.Error()})
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(payload)
}
