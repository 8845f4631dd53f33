package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dcg-tools/dcg/internal/config"
)

var allowOnceCmd = &cobra.Command{
	Use:   "allow-once <code>",
	Short: "Prime a one-shot exception issued on a prior deny",
	Long: `Primes the allow-once code issued on a deny verdict. Priming does not
allow the command by itself: the next evaluation of the same command
in the same scope consumes it atomically and is allowed exactly once.`,
	Args: cobra.ExactArgs(1),
	RunE: allowOnceCommand,
}

func init() {
	rootCmd.AddCommand(allowOnceCmd)
}

func allowOnceCommand(cmd *cobra.Command, args []string) error {
	env, err := loadEnvironment(config.CLIOverrides{})
	if err != nil {
		return err
	}

	if err := env.Ledger.Prime(args[0], env.Scope); err != nil {
		return err
	}
	fmt.Printf("Primed %s — the next matching command in this scope will be allowed once.\n", args[0])
	return nil
}
