package cli

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/dcg-tools/dcg/internal/dcgerr"
	"github.com/dcg-tools/dcg/internal/evaluator"
	"github.com/dcg-tools/dcg/internal/logger"
)

// hookInput is the JSON payload an AI coding assistant's PreToolUse
// hook sends on stdin, per spec §6. Only tool_name "Bash" is
// evaluated; anything else is a silent allow.
type hookInput struct {
	ToolName  string `json:"tool_name"`
	ToolInput struct {
		Command string `json:"command"`
	} `json:"tool_input"`
}

type hookOutput struct {
	HookSpecificOutput hookSpecificOutput `json:"hookSpecificOutput"`
}

type hookSpecificOutput struct {
	HookEventName            string      `json:"hookEventName"`
	PermissionDecision       string      `json:"permissionDecision"`
	PermissionDecisionReason string      `json:"permissionDecisionReason"`
	RuleID                   string      `json:"ruleId,omitempty"`
	PackID                   string      `json:"packId,omitempty"`
	Severity                 string      `json:"severity,omitempty"`
	Confidence               float64     `json:"confidence"`
	AllowOnceCode            string      `json:"allowOnceCode,omitempty"`
	AllowOnceFullHash        string      `json:"allowOnceFullHash,omitempty"`
	Remediation              remediation `json:"remediation"`
}

type remediation struct {
	SafeAlternative  string `json:"safeAlternative,omitempty"`
	Explanation      string `json:"explanation,omitempty"`
	AllowOnceCommand string `json:"allowOnceCommand,omitempty"`
}

var hookCmd = &cobra.Command{
	Use:   "hook",
	Short: "Evaluate a tool-call payload from stdin (PreToolUse hook mode)",
	Long: `Reads a single JSON object from stdin, shaped like an AI coding
assistant's PreToolUse hook call:

  {"tool_name": "Bash", "tool_input": {"command": "rm -rf /"}}

Any tool_name other than "Bash" is a silent allow. On allow, nothing is
written to stdout. On deny, a hookSpecificOutput JSON object is written
to stdout; exit status stays 0, since the verdict was written
successfully — that is normal completion, not failure.`,
	RunE: hookCommand,
}

func init() {
	rootCmd.AddCommand(hookCmd)
}

func hookCommand(cmd *cobra.Command, args []string) error {
	env, err := loadEnvironment(cliOverrides(""))
	if err != nil {
		return err
	}
	if env.Cfg.Bypass {
		return nil
	}

	data, err := io.ReadAll(os.Stdin)
	if err != nil {
		return dcgerr.MalformedStdin(err)
	}

	var in hookInput
	if len(data) > 0 {
		if err := json.Unmarshal(data, &in); err != nil {
			return dcgerr.MalformedStdin(err)
		}
	}

	if in.ToolName != "Bash" || in.ToolInput.Command == "" {
		return nil
	}

	v := evaluator.Evaluate(env.input(in.ToolInput.Command, false))
	logEvent(env, in.ToolInput.Command, v, "hook")

	if !env.Cfg.Robot {
		printVerdict(env, in.ToolInput.Command, v)
	}
	if v.Decision == evaluator.Allow {
		return nil
	}

	out := hookOutput{HookSpecificOutput: hookSpecificOutput{
		HookEventName:            "PreToolUse",
		PermissionDecision:       "deny",
		PermissionDecisionReason: v.Reason,
		RuleID:                   v.RuleID,
		PackID:                   v.PackID,
		Severity:                 string(v.Severity),
		Confidence:               v.Confidence,
		AllowOnceCode:            v.AllowOnceCode,
		Remediation: remediation{
			SafeAlternative: v.Suggestion,
			Explanation:     v.Reason,
		},
	}}
	if v.AllowOnceCode != "" {
		sum := sha256.Sum256([]byte(in.ToolInput.Command))
		out.HookSpecificOutput.AllowOnceFullHash = "sha256:" + hex.EncodeToString(sum[:])
		out.HookSpecificOutput.Remediation.AllowOnceCommand = fmt.Sprintf("dcg allow-once %s", v.AllowOnceCode)
	}

	encoded, err := json.Marshal(out)
	if err != nil {
		return err
	}
	fmt.Println(string(encoded))
	return nil
}

// logEvent writes one audit line for an evaluated command. A failure
// to log is warned to stderr and never fails the hook, per spec §7's
// "never fatal in the hot path" policy.
func logEvent(env *environment, command string, v evaluator.Verdict, mode string) {
	path, err := logger.DefaultPath()
	if err != nil {
		return
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		warn(env.Cfg, fmt.Sprintf("audit log directory unavailable: %v", err))
		return
	}
	lg, err := logger.New(path)
	if err != nil {
		warn(env.Cfg, fmt.Sprintf("audit log unavailable: %v", err))
		return
	}
	defer lg.Close()

	event := logger.AuditEvent{
		Timestamp:     time.Now().UTC().Format(time.RFC3339),
		Command:       command,
		Cwd:           env.Cwd,
		ScopePath:     env.Scope,
		Decision:      string(v.Decision),
		RuleID:        v.RuleID,
		PackID:        v.PackID,
		Severity:      string(v.Severity),
		Source:        v.Source,
		AllowOnceCode: v.AllowOnceCode,
		Mode:          mode,
	}
	if err := lg.Log(event); err != nil {
		warn(env.Cfg, fmt.Sprintf("failed to write audit log: %v", err))
	}
}
