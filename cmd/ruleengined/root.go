// Command ruleengined runs the rule engine service: the Trigger-Stream,
// Trigger-Mailbox and Configurator actors (§5), its HTTP façade, and a
// validate-rule subcommand for offline rule-document checking.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/r3e-labs/ruleengine/pkg/version"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "ruleengined",
	Short: "Rule engine: evaluates telemetry against operator-authored rules and emits alerts",
	Long: `ruleengined evaluates user-authored conditional rules against a continuous
stream of telemetry, applies the alert lifecycle state machine, and emits
alert transitions on an output stream. Operators manage the rule
collection through a request/reply mailbox and an HTTP façade over the
same commands.`,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "path to a YAML configuration file (defaults to $CONFIG_FILE or configs/config.yaml)")
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(validateRuleCmd)
	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Println(version.FullVersion())
		return nil
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
