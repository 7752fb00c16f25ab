package main

import (
	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "spendgate",
		Short: "Spendgate - corporate spend policy decisions",
		Long: `Spendgate decides whether a corporate purchase is Allowed, needs approval,
or is Blocked under an organization's spend policy, explains why, and
suggests changes that would make it pass.`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(
		newEvaluateCmd(),
		newLintCmd(),
		newPackCmd(),
		newVerifyCmd(),
		newVersionCmd(),
	)
	return root
}
