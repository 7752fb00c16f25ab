package main

import (
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

func newPackCmd() *cobra.Command {
	var addr, token, outPath string
	cmd := &cobra.Command{
		Use:   "pack <correlation_id>",
		Short: "Download the audit evidence zip for a correlation id",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			correlationID := args[0]
			endpoint := strings.TrimRight(addr, "/") + "/v1/audit/" + url.PathEscape(correlationID) + "/pack"
			body, status, err := httpGet(http.DefaultClient, endpoint, token)
			if err != nil {
				return err
			}
			if status != http.StatusOK {
				return fmt.Errorf("pack failed: %s", strings.TrimSpace(string(body)))
			}

			if outPath == "" {
				outPath = "spendgate-" + correlationID + ".zip"
			}
			if err := os.WriteFile(outPath, body, 0o600); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s (%d bytes)\n", outPath, len(body))
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", envOrDefault("SPENDGATE_ADDR", defaultAddr), "gateway address")
	cmd.Flags().StringVar(&token, "token", os.Getenv("SPENDGATE_API_TOKEN"), "bearer token")
	cmd.Flags().StringVarP(&outPath, "out", "o", "", "output path (default spendgate-<correlation_id>.zip)")
	return cmd
}
