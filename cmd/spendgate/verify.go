package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

const defaultAddr = "http://localhost:8080"

func newVerifyCmd() *cobra.Command {
	var addr, token string
	var jsonOut bool
	cmd := &cobra.Command{
		Use:   "verify <correlation_id>",
		Short: "Verify a signed audit record held by a gateway",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			correlationID := args[0]
			endpoint := strings.TrimRight(addr, "/") + "/v1/audit/" + url.PathEscape(correlationID) + "/verify"
			body, status, err := httpGet(http.DefaultClient, endpoint, token)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if status != http.StatusOK {
				return fmt.Errorf("verify failed: %s", strings.TrimSpace(string(body)))
			}
			if jsonOut {
				_, _ = out.Write(body)
				return nil
			}

			var payload struct {
				CorrelationID string `json:"correlation_id"`
				KeyID         string `json:"key_id"`
				Valid         bool   `json:"valid"`
				Error         string `json:"error,omitempty"`
				Grade         struct {
					Grade   string   `json:"grade"`
					Reasons []string `json:"reasons"`
				} `json:"grade"`
			}
			if err := json.Unmarshal(body, &payload); err != nil {
				return fmt.Errorf("invalid response: %w", err)
			}
			if payload.Valid {
				fmt.Fprintf(out, "valid=true correlation_id=%s key_id=%s grade=%s\n", payload.CorrelationID, payload.KeyID, payload.Grade.Grade)
				if len(payload.Grade.Reasons) > 0 {
					fmt.Fprintf(out, "grade_reasons=%s\n", strings.Join(payload.Grade.Reasons, ","))
				}
				return nil
			}
			fmt.Fprintf(out, "valid=false correlation_id=%s error=%s\n", payload.CorrelationID, payload.Error)
			return fmt.Errorf("audit record %s failed verification", payload.CorrelationID)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", envOrDefault("SPENDGATE_ADDR", defaultAddr), "gateway address")
	cmd.Flags().StringVar(&token, "token", os.Getenv("SPENDGATE_API_TOKEN"), "bearer token")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "print raw JSON response")
	return cmd
}

func httpGet(client *http.Client, url string, token string) ([]byte, int, error) {
	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		return nil, 0, err
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, err
	}
	return body, resp.StatusCode, nil
}

func envOrDefault(key string, fallback string) string {
	value := os.Getenv(key)
	if value != "" {
		return value
	}
	return fallback
}
