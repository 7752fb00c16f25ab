package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/davidahmann/spendgate/internal/auth"
	"github.com/davidahmann/spendgate/internal/crypto"
	"github.com/davidahmann/spendgate/internal/engine"
	"github.com/davidahmann/spendgate/internal/ledger"
	"github.com/davidahmann/spendgate/internal/logging"
	"github.com/davidahmann/spendgate/internal/metrics"
	"github.com/davidahmann/spendgate/internal/policy"
)

var testNow = time.Date(2026, 10, 14, 9, 30, 0, 0, time.UTC)

type testServer struct {
	router  http.Handler
	service *EvaluateService
	store   *ledger.InMemoryStore
	signer  ledger.KeySigner
	metrics *metrics.Collector
}

func testSigner(t *testing.T, keyID string, fill byte) ledger.KeySigner {
	t.Helper()
	priv, _, err := crypto.KeyPairFromSeed(bytes.Repeat([]byte{fill}, 32))
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	return ledger.KeySigner{ID: keyID, Priv: priv}
}

func newTestServer(t *testing.T, authn auth.Authenticator) *testServer {
	t.Helper()
	loaded, err := policy.LoadPolicy("../../policies/spendgate.yaml")
	if err != nil {
		t.Fatalf("load policy: %v", err)
	}
	store := ledger.NewInMemoryStore()
	signer := testSigner(t, "test-key", 7)
	collector := metrics.NewCollector("", nil)

	service := &EvaluateService{
		Engine:   engine.New(engine.Options{VerifyAlternatives: true}),
		Policies: policy.NewStaticStore(loaded),
		Ledger:   store,
		Signer:   signer,
		Metrics:  collector,
		Now:      func() time.Time { return testNow },
	}
	h := &Handler{Auth: authn, Service: service, Metrics: collector}
	return &testServer{
		router:  NewRouter(h, logging.Discard()),
		service: service,
		store:   store,
		signer:  signer,
		metrics: collector,
	}
}

func (s *testServer) registerKey(t *testing.T) {
	t.Helper()
	if err := RegisterSigner(s.store, s.signer, testNow); err != nil {
		t.Fatalf("register signer: %v", err)
	}
}

func (s *testServer) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		raw, err := json.Marshal(b)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	res := httptest.NewRecorder()
	s.router.ServeHTTP(res, req)
	return res
}

func decode(t *testing.T, res *httptest.ResponseRecorder, out any) {
	t.Helper()
	if err := json.Unmarshal(res.Body.Bytes(), out); err != nil {
		t.Fatalf("decode %q: %v", res.Body.String(), err)
	}
}

// approvedRequest is a 50,000 ecommerce basket from a preferred vendor.
func approvedRequest() map[string]any {
	return map[string]any{
		"module":            "ecommerce",
		"payment_method":    "CorporatePay",
		"program_status":    "Eligible",
		"now_ms":            testNow.UnixMilli(),
		"cost_center":       "CC-100",
		"purpose":           "Team supplies",
		"attachments_count": 1,
		"items": []map[string]any{
			{"id": "i1", "category": "office_supplies", "vendor_id": "officehub", "unit_amount": 50000, "qty": 1},
		},
	}
}
