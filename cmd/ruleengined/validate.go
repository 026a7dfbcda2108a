package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/r3e-labs/ruleengine/internal/rule"
	"github.com/r3e-labs/ruleengine/internal/sandbox"
)

var validateRuleCmd = &cobra.Command{
	Use:   "validate-rule <file>",
	Short: "Parse a rule document and compile its expression without installing it",
	Args:  cobra.ExactArgs(1),
	RunE:  runValidateRule,
}

func runValidateRule(cmd *cobra.Command, args []string) error {
	path := args[0]
	data, err := os.ReadFile(path)
	if err != nil {
		os.Exit(1)
		return err
	}

	factory := rule.NewFactory()
	r, err := factory.Parse(data)
	if err != nil {
		fmt.Fprintf(cmd.OutOrStdout(), "invalid: %v\n", err)
		os.Exit(1)
		return nil
	}

	if r.Evaluates() {
		prog, err := sandbox.Compile(r.Expression, r.Variables, 0)
		if err != nil {
			fmt.Fprintf(cmd.OutOrStdout(), "invalid: expression rejected: %v\n", err)
			os.Exit(1)
			return nil
		}
		prog.Close()
	}

	fmt.Fprintf(cmd.OutOrStdout(), "ok: %s (%s)\n", r.Name, r.Kind)
	return nil
}
