package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/davidahmann/spendgate/pkg/types"
)

const policyPath = "../../policies/spendgate.yaml"

func runCmd(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func writeFile(t *testing.T, name, data string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

const basketRequest = `{
  "module": "ecommerce",
  "payment_method": "CorporatePay",
  "program_status": "Eligible",
  "now_ms": 1791970200000,
  "cost_center": "CC-100",
  "purpose": "Team supplies",
  "attachments_count": 1,
  "items": [{"id": "i1", "category": "office_supplies", "vendor_id": "officehub", "unit_amount": 250000, "qty": 1}]
}`

func TestEvaluateJSON(t *testing.T) {
	req := writeFile(t, "req.json", basketRequest)
	out, err := runCmd(t, "", "evaluate", "--policy", policyPath, "--request", req)
	if err != nil {
		t.Fatalf("evaluate: %v\n%s", err, out)
	}
	var res types.EvaluationResult
	if err := json.Unmarshal([]byte(out), &res); err != nil {
		t.Fatalf("decode output: %v\n%s", err, out)
	}
	if res.Outcome != types.OutcomeApprovalRequired {
		t.Fatalf("expected ApprovalRequired, got %s", res.Outcome)
	}
}

func TestEvaluateStdinText(t *testing.T) {
	out, err := runCmd(t, basketRequest, "evaluate", "--policy", policyPath, "--request", "-", "--format", "text")
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if !strings.Contains(out, "outcome=ApprovalRequired availability=RequiresApproval") {
		t.Fatalf("unexpected output:\n%s", out)
	}
	if !strings.Contains(out, "BASKET") {
		t.Fatalf("expected BASKET reason:\n%s", out)
	}
}

func TestEvaluateFailOn(t *testing.T) {
	req := writeFile(t, "req.json", basketRequest)
	if _, err := runCmd(t, "", "evaluate", "--policy", policyPath, "--request", req, "--fail-on", "ApprovalRequired"); err == nil {
		t.Fatalf("expected failure at ApprovalRequired")
	}
	if _, err := runCmd(t, "", "evaluate", "--policy", policyPath, "--request", req, "--fail-on", "Blocked"); err != nil {
		t.Fatalf("ApprovalRequired should pass --fail-on Blocked: %v", err)
	}
	if _, err := runCmd(t, "", "evaluate", "--policy", policyPath, "--request", req, "--fail-on", "Allowed"); err == nil {
		t.Fatalf("expected invalid --fail-on error")
	}
}

func TestEvaluateErrors(t *testing.T) {
	bad := writeFile(t, "bad.json", `{"module":`)
	negative := writeFile(t, "neg.json", strings.Replace(basketRequest, "250000", "-1", 1))
	good := writeFile(t, "good.json", basketRequest)
	tests := []struct {
		name string
		args []string
	}{
		{name: "missing request flag", args: []string{"evaluate"}},
		{name: "missing file", args: []string{"evaluate", "--request", "nope.json"}},
		{name: "bad json", args: []string{"evaluate", "--policy", policyPath, "--request", bad}},
		{name: "invalid context", args: []string{"evaluate", "--policy", policyPath, "--request", negative}},
		{name: "bad format", args: []string{"evaluate", "--policy", policyPath, "--request", good, "--format", "xml"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := runCmd(t, "", tt.args...); err == nil {
				t.Fatalf("expected error")
			}
		})
	}
}

func TestLint(t *testing.T) {
	out, err := runCmd(t, "", "lint", "--file", policyPath)
	if err != nil {
		t.Fatalf("lint: %v", err)
	}
	if !strings.HasPrefix(out, "ok policy_id=spendgate-default") {
		t.Fatalf("unexpected output: %s", out)
	}

	broken := writeFile(t, "broken.yaml", `policy_id: broken
modules:
  ecommerce:
    thresholds:
      approval: 500
      block: 100
`)
	out, err = runCmd(t, "", "lint", "--file", broken, "--format", "json")
	if err == nil {
		t.Fatalf("expected lint failure")
	}
	var report struct {
		Valid    bool     `json:"valid"`
		Problems []string `json:"problems"`
	}
	if err := json.Unmarshal([]byte(out), &report); err != nil {
		t.Fatalf("decode report: %v\n%s", err, out)
	}
	if report.Valid || len(report.Problems) == 0 {
		t.Fatalf("expected problems, got %+v", report)
	}
}

func TestVerify(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer tok" {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"error":"missing bearer token"}`))
			return
		}
		switch r.URL.Path {
		case "/v1/audit/good/verify":
			_, _ = w.Write([]byte(`{"correlation_id":"good","key_id":"k1","valid":true,"grade":{"grade":"B","reasons":["missing_policy_version"]}}`))
		case "/v1/audit/bad/verify":
			_, _ = w.Write([]byte(`{"correlation_id":"bad","key_id":"k1","valid":false,"error":"audit signature invalid"}`))
		default:
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"error":"audit record not found"}`))
		}
	}))
	defer srv.Close()

	out, err := runCmd(t, "", "verify", "good", "--addr", srv.URL, "--token", "tok")
	if err != nil || !strings.Contains(out, "valid=true correlation_id=good key_id=k1 grade=B") || !strings.Contains(out, "grade_reasons=missing_policy_version") {
		t.Fatalf("unexpected: %v %s", err, out)
	}

	out, err = runCmd(t, "", "verify", "bad", "--addr", srv.URL, "--token", "tok")
	if err == nil || !strings.Contains(out, "valid=false") {
		t.Fatalf("expected verification failure: %v %s", err, out)
	}

	if _, err := runCmd(t, "", "verify", "missing", "--addr", srv.URL, "--token", "tok"); err == nil {
		t.Fatalf("expected 404 error")
	}
	if _, err := runCmd(t, "", "verify", "good", "--addr", srv.URL); err == nil {
		t.Fatalf("expected 401 error")
	}

	out, err = runCmd(t, "", "verify", "good", "--addr", srv.URL, "--token", "tok", "--json")
	if err != nil || !strings.Contains(out, `"valid":true`) {
		t.Fatalf("expected raw json: %v %s", err, out)
	}
}

func TestPack(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/audit/good/pack" {
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"error":"audit record not found"}`))
			return
		}
		w.Header().Set("Content-Type", "application/zip")
		_, _ = w.Write([]byte("PK-zip-bytes"))
	}))
	defer srv.Close()

	outPath := filepath.Join(t.TempDir(), "evidence.zip")
	out, err := runCmd(t, "", "pack", "good", "--addr", srv.URL, "--out", outPath)
	if err != nil || !strings.Contains(out, "wrote "+outPath) {
		t.Fatalf("unexpected: %v %s", err, out)
	}
	data, err := os.ReadFile(outPath)
	if err != nil || string(data) != "PK-zip-bytes" {
		t.Fatalf("unexpected file: %v %q", err, data)
	}

	if _, err := runCmd(t, "", "pack", "missing", "--addr", srv.URL, "--out", outPath); err == nil {
		t.Fatalf("expected 404 error")
	}
}

func TestVerifyRequiresArg(t *testing.T) {
	if _, err := runCmd(t, "", "verify"); err == nil {
		t.Fatalf("expected error")
	}
}

func TestVersion(t *testing.T) {
	out, err := runCmd(t, "", "version")
	if err != nil {
		t.Fatalf("version: %v", err)
	}
	if !strings.HasPrefix(out, "spendgate "+Version) {
		t.Fatalf("unexpected output: %s", out)
	}
}

func TestExecuteExitCodes(t *testing.T) {
	if code := execute([]string{"version"}); code != 0 {
		t.Fatalf("expected 0, got %d", code)
	}
	if code := execute([]string{"no-such-command"}); code != 1 {
		t.Fatalf("expected 1, got %d", code)
	}
}

func TestMainExit(t *testing.T) {
	old := exitFn
	defer func() { exitFn = old }()

	got := -1
	exitFn = func(code int) { got = code }
	oldArgs := os.Args
	defer func() { os.Args = oldArgs }()
	os.Args = []string{"spendgate", "version"}

	main()
	if got != 0 {
		t.Fatalf("expected exit 0, got %d", got)
	}
}
