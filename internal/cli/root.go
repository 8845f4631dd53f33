package cli

import (
	"github.com/spf13/cobra"
)

var (
	enabledPacksFlag  []string
	disabledPacksFlag []string
	robotFlag         bool
)

var rootCmd = &cobra.Command{
	Use:   "dcg",
	Short: "dcg - destructive command guard",
	Long: `dcg is a pre-execution interceptor that classifies a shell command
as allow or deny before an AI coding assistant or a pre-commit hook lets
it run, catching commands likely to destroy uncommitted work, remote
history, persistent data, or production state.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringSliceVar(&enabledPacksFlag, "enable", nil, "Enable an additional pack or namespace")
	rootCmd.PersistentFlags().StringSliceVar(&disabledPacksFlag, "disable", nil, "Disable a pack or namespace")
	rootCmd.PersistentFlags().BoolVar(&robotFlag, "robot", false, "Force machine-readable output and silent stderr")
}

func Execute() error {
	return rootCmd.Execute()
}
