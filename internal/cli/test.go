package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dcg-tools/dcg/internal/approval"
	"github.com/dcg-tools/dcg/internal/evaluator"
)

var testCmd = &cobra.Command{
	Use:   "test <command>",
	Short: "Evaluate one command and print the verdict",
	Long: `Evaluate a single command against the active packs, allowlist, and
allow-once ledger, and print the resulting verdict. On an interactive
terminal, a deny offers to redeem its freshly issued allow-once code.`,
	Args: cobra.MinimumNArgs(1),
	RunE: testCommand,
}

func init() {
	rootCmd.AddCommand(testCmd)
}

func testCommand(cmd *cobra.Command, args []string) error {
	command := strings.Join(args, " ")

	env, err := loadEnvironment(cliOverrides(""))
	if err != nil {
		return err
	}

	v := evaluator.Evaluate(env.input(command, false))
	logEvent(env, command, v, "test")
	printVerdict(env, command, v)

	if v.Decision == evaluator.Deny && approval.IsInteractive() {
		result := approval.Ask(approval.Prompt{
			Command:    command,
			RuleID:     v.RuleID,
			Severity:   string(v.Severity),
			Reason:     v.Reason,
			Suggestion: v.Suggestion,
		})
		if result.Approved && v.AllowOnceCode != "" {
			if err := env.Ledger.Prime(v.AllowOnceCode, env.Scope); err != nil {
				return fmt.Errorf("prime allow-once code: %w", err)
			}
			fmt.Println("Primed — the next matching command in this scope will be allowed once.")
		}
	}

	return nil
}

func printVerdict(env *environment, command string, v evaluator.Verdict) {
	colored := colorEnabled(env.Cfg.Color, env.Cfg.Robot)

	if env.Cfg.Robot {
		fmt.Println(command, "->", v.Decision)
		if v.Decision == evaluator.Deny {
			fmt.Println("rule:", v.RuleID, "severity:", v.Severity, "reason:", v.Reason)
		}
		return
	}

	allow := v.Decision == evaluator.Allow
	fmt.Printf("%s  %s\n", renderDecision(allow, colored), command)
	if allow {
		return
	}
	fmt.Printf("  rule:       %s\n", v.RuleID)
	fmt.Printf("  severity:   %s\n", renderSeverity(v.Severity, colored))
	fmt.Printf("  reason:     %s\n", v.Reason)
	if v.Suggestion != "" {
		fmt.Printf("  suggestion: %s\n", v.Suggestion)
	}
	if v.AllowOnceCode != "" {
		fmt.Printf("  allow-once: dcg allow-once %s\n", v.AllowOnceCode)
	}
}
