package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/davidahmann/spendgate/internal/api"
	"github.com/davidahmann/spendgate/internal/engine"
	"github.com/davidahmann/spendgate/internal/policy"
	"github.com/davidahmann/spendgate/pkg/types"
)

type evaluateFlags struct {
	policyPath string
	request    string
	format     string
	noVerify   bool
	failOn     string
}

func newEvaluateCmd() *cobra.Command {
	var flags evaluateFlags
	cmd := &cobra.Command{
		Use:   "evaluate",
		Short: "Evaluate a spend request offline",
		Long: `Evaluate a spend request JSON file against a policy file without a server.

The request uses the same shape as POST /v1/policy/evaluate. An inline
"policy" object in the request takes precedence over --policy.

Examples:
  spendgate evaluate --policy policies/spendgate.yaml --request basket.json
  cat basket.json | spendgate evaluate --policy policies/spendgate.yaml --request -
  spendgate evaluate --request basket.json --format text --fail-on ApprovalRequired`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEvaluate(cmd, flags)
		},
	}
	cmd.Flags().StringVarP(&flags.policyPath, "policy", "p", "policies/spendgate.yaml", "policy file")
	cmd.Flags().StringVarP(&flags.request, "request", "r", "", "request JSON file, or - for stdin")
	cmd.Flags().StringVar(&flags.format, "format", "json", "output format: json, text")
	cmd.Flags().BoolVar(&flags.noVerify, "no-verify", false, "skip re-evaluating alternatives")
	cmd.Flags().StringVar(&flags.failOn, "fail-on", "", "exit non-zero at or above this outcome: ApprovalRequired, Blocked")
	_ = cmd.MarkFlagRequired("request")
	return cmd
}

func runEvaluate(cmd *cobra.Command, flags evaluateFlags) error {
	raw, err := readInput(cmd.InOrStdin(), flags.request)
	if err != nil {
		return err
	}

	var req api.EvaluateRequest
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		return fmt.Errorf("decode request: %w", err)
	}

	var loaded policy.LoadedPolicy
	if req.Policy != nil {
		loaded, err = policy.FromPolicy(*req.Policy)
	} else {
		loaded, err = policy.LoadPolicy(flags.policyPath)
	}
	if err != nil {
		return fmt.Errorf("load policy: %w", err)
	}

	eng := engine.New(engine.Options{VerifyAlternatives: !flags.noVerify})
	eval, err := eng.Evaluate(req.Context(time.Now().UnixMilli()), loaded, "")
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	switch flags.format {
	case "json":
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		enc.SetEscapeHTML(false)
		if err := enc.Encode(eval.Result); err != nil {
			return err
		}
	case "text":
		printResult(out, eval.Result)
	default:
		return fmt.Errorf("unknown format %q", flags.format)
	}

	if flags.failOn != "" {
		threshold := types.Outcome(flags.failOn)
		if threshold.Rank() == 0 {
			return fmt.Errorf("--fail-on must be ApprovalRequired or Blocked")
		}
		if eval.Result.Outcome.Rank() >= threshold.Rank() {
			return fmt.Errorf("outcome %s", eval.Result.Outcome)
		}
	}
	return nil
}

func printResult(w io.Writer, res types.EvaluationResult) {
	fmt.Fprintf(w, "outcome=%s availability=%s\n", res.Outcome, res.Availability)
	for _, r := range res.Reasons {
		fmt.Fprintf(w, "  [%s] %s: %s\n", r.Severity, r.Code, r.Title)
	}
	for _, a := range res.Alternatives {
		fmt.Fprintf(w, "  -> %s (%s)\n", a.Title, a.ExpectedOutcome)
	}
	fmt.Fprintf(w, "%s\n", res.Audit.Summary)
}

func readInput(stdin io.Reader, path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(stdin)
	}
	// #nosec G304 -- path is operator-provided.
	return os.ReadFile(path)
}
