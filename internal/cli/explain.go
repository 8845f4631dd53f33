package cli

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dcg-tools/dcg/internal/evaluator"
	"github.com/dcg-tools/dcg/internal/pack"
	"github.com/dcg-tools/dcg/internal/taxonomy"
)

var explainFormat string

var explainCmd = &cobra.Command{
	Use:   "explain <command>",
	Short: "Evaluate a command with the full pipeline trace",
	Args:  cobra.MinimumNArgs(1),
	RunE:  explainCommand,
}

func init() {
	explainCmd.Flags().StringVar(&explainFormat, "format", "pretty", "Output format: pretty|json|compact")
	rootCmd.AddCommand(explainCmd)
}

type explainOutput struct {
	Command    string                `json:"command"`
	Decision   evaluator.Decision    `json:"decision"`
	RuleID     string                `json:"rule_id,omitempty"`
	PackID     string                `json:"pack_id,omitempty"`
	Severity   string                `json:"severity,omitempty"`
	Confidence float64               `json:"confidence"`
	Reason     string                `json:"reason,omitempty"`
	Suggestion string                `json:"suggestion,omitempty"`
	Source     string                `json:"source"`
	Trace      []evaluator.TraceStep `json:"trace"`
	Compliance []string              `json:"compliance,omitempty"`
}

func explainCommand(cmd *cobra.Command, args []string) error {
	command := strings.Join(args, " ")

	env, err := loadEnvironment(cliOverrides(""))
	if err != nil {
		return err
	}

	v := evaluator.Evaluate(env.input(command, true))

	out := explainOutput{
		Command:    command,
		Decision:   v.Decision,
		RuleID:     v.RuleID,
		PackID:     v.PackID,
		Severity:   string(v.Severity),
		Confidence: v.Confidence,
		Reason:     v.Reason,
		Suggestion: v.Suggestion,
		Source:     v.Source,
		Trace:      v.Trace,
	}
	out.Compliance = complianceRefs(v.RuleID)

	switch explainFormat {
	case "json":
		data, err := json.MarshalIndent(out, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(data))
	case "compact":
		printCompactExplain(out)
	default:
		printPrettyExplain(env, out)
	}

	return nil
}

func printCompactExplain(out explainOutput) {
	fmt.Printf("%s\t%s\t%s\t%s\n", out.Decision, out.RuleID, out.Severity, out.Reason)
}

func printPrettyExplain(env *environment, out explainOutput) {
	colored := colorEnabled(env.Cfg.Color, env.Cfg.Robot)

	fmt.Printf("%s  %s\n\n", renderDecision(out.Decision == evaluator.Allow, colored), out.Command)
	fmt.Println(styleHeading.Render("Trace"))
	for _, step := range out.Trace {
		fmt.Printf("  %-12s %s\n", step.Stage, step.Note)
	}
	fmt.Println()

	if out.Decision == evaluator.Allow {
		return
	}

	fmt.Println(styleHeading.Render("Verdict"))
	fmt.Printf("  rule:       %s\n", out.RuleID)
	fmt.Printf("  pack:       %s\n", out.PackID)
	fmt.Printf("  severity:   %s\n", renderSeverity(pack.Severity(out.Severity), colored))
	fmt.Printf("  confidence: %.2f\n", out.Confidence)
	fmt.Printf("  source:     %s\n", out.Source)
	fmt.Printf("  reason:     %s\n", out.Reason)
	if out.Suggestion != "" {
		fmt.Printf("  suggestion: %s\n", out.Suggestion)
	}
	if len(out.Compliance) > 0 {
		fmt.Println()
		fmt.Println(styleHeading.Render("Compliance"))
		for _, ref := range out.Compliance {
			fmt.Printf("  %s\n", ref)
		}
	}
}

// complianceRefs resolves a rule_id's matching taxonomy entry (if any)
// into human-readable compliance references. Documentation enrichment
// only, per SPEC_FULL.md §3.1 — it never influences the decision.
func complianceRefs(ruleID string) []string {
	if ruleID == "" {
		return nil
	}
	cat, err := taxonomy.Default()
	if err != nil {
		return nil
	}
	var refs []string
	for _, entry := range cat.Entries {
		if !containsRule(entry.RelatedRules, ruleID) {
			continue
		}
		for std, items := range entry.Compliance {
			for _, item := range items {
				refs = append(refs, fmt.Sprintf("%s: %s (%s)", std, item, entry.Name))
			}
		}
	}
	return refs
}

func containsRule(rules []string, ruleID string) bool {
	for _, r := range rules {
		if r == ruleID {
			return true
		}
	}
	return false
}
