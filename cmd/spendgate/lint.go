package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/davidahmann/spendgate/internal/policy"
)

func newLintCmd() *cobra.Command {
	var file, format string
	cmd := &cobra.Command{
		Use:   "lint",
		Short: "Validate a policy file",
		Long: `Validate a spend policy file.

Lint decodes the YAML strictly and reports every configuration problem:
missing or inverted thresholds, unknown vendor statuses, malformed time
windows. A module with a problem blocks all spend at evaluation time.

Examples:
  spendgate lint --file policies/spendgate.yaml
  spendgate lint --file policies/spendgate.yaml --format json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			loaded, err := policy.LoadPolicy(file)
			if err != nil {
				return err
			}
			problems := policy.Lint(loaded.Policy)

			out := cmd.OutOrStdout()
			switch format {
			case "json":
				lines := make([]string, 0, len(problems))
				for _, p := range problems {
					lines = append(lines, p.String())
				}
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				if err := enc.Encode(map[string]any{
					"policy_id":   loaded.Policy.PolicyID,
					"policy_hash": loaded.Hash,
					"valid":       len(problems) == 0,
					"problems":    lines,
				}); err != nil {
					return err
				}
			case "text":
				for _, p := range problems {
					fmt.Fprintln(out, p.String())
				}
				if len(problems) == 0 {
					fmt.Fprintf(out, "ok policy_id=%s policy_hash=%s\n", loaded.Policy.PolicyID, loaded.Hash)
				}
			default:
				return fmt.Errorf("unknown format %q", format)
			}

			if len(problems) > 0 {
				return fmt.Errorf("policy %s has %d problem(s)", loaded.Policy.PolicyID, len(problems))
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "policies/spendgate.yaml", "policy file to validate")
	cmd.Flags().StringVar(&format, "format", "text", "output format: text, json")
	return cmd
}
