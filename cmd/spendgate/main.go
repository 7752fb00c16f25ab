// Spendgate evaluates corporate spend against an organization policy.
//
// Usage:
//
//	# Evaluate a request offline against a policy file
//	spendgate evaluate --policy policies/spendgate.yaml --request request.json
//
//	# Validate a policy file
//	spendgate lint --file policies/spendgate.yaml
//
//	# Verify a signed audit record held by a running gateway
//	spendgate verify <correlation_id> --addr http://localhost:8080
//
//	# Download the audit evidence zip
//	spendgate pack <correlation_id> --out evidence.zip
//
//	# Show version information
//	spendgate version
package main

import (
	"fmt"
	"os"
)

func main() {
	exitFn(execute(os.Args[1:]))
}

var exitFn = os.Exit

func execute(args []string) int {
	cmd := newRootCmd()
	cmd.SetArgs(args)
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(cmd.ErrOrStderr(), err)
		return 1
	}
	return 0
}
