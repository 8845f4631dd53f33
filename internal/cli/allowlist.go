package cli

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/spf13/cobra"

	"github.com/dcg-tools/dcg/internal/allowlist"
	"github.com/dcg-tools/dcg/internal/config"
)

var (
	allowlistLayerFlag  string
	allowlistRuleFlag   string
	allowlistExactFlag  string
	allowlistPrefixFlag string
	allowlistContextFlag string
	allowlistPatternFlag string
	allowlistRiskAckFlag bool
	allowlistReasonFlag string
)

var allowlistCmd = &cobra.Command{
	Use:   "allowlist",
	Short: "Manage layered allowlist exceptions",
}

var allowlistAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Add a rule-id bypass entry",
	RunE:  allowlistAdd,
}

var allowlistAddCommandCmd = &cobra.Command{
	Use:   "add-command",
	Short: "Add an exact-command or command-prefix bypass entry",
	RunE:  allowlistAddCommand,
}

var allowlistListCmd = &cobra.Command{
	Use:   "list",
	Short: "List allowlist entries across all layers",
	RunE:  allowlistList,
}

var allowlistRemoveCmd = &cobra.Command{
	Use:   "remove <index>",
	Short: "Remove an entry by its position in a layer's file",
	Args:  cobra.ExactArgs(1),
	RunE:  allowlistRemove,
}

var allowlistValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate allowlist files across all layers",
	RunE:  allowlistValidate,
}

func init() {
	for _, c := range []*cobra.Command{allowlistAddCmd, allowlistAddCommandCmd, allowlistListCmd, allowlistRemoveCmd} {
		c.Flags().StringVar(&allowlistLayerFlag, "layer", "project", "Target layer: project|user|system")
	}
	allowlistAddCmd.Flags().StringVar(&allowlistRuleFlag, "rule", "", "rule_id to bypass (pack.id:pattern_name)")
	allowlistAddCmd.Flags().StringVar(&allowlistPatternFlag, "pattern", "", "Regex pattern to bypass (requires --risk-acknowledged)")
	allowlistAddCmd.Flags().BoolVar(&allowlistRiskAckFlag, "risk-acknowledged", false, "Acknowledge the risk of a pattern-based bypass")
	allowlistAddCmd.Flags().StringVar(&allowlistReasonFlag, "reason", "", "Reason recorded with the entry")

	allowlistAddCommandCmd.Flags().StringVar(&allowlistExactFlag, "exact-command", "", "Exact normalized command to bypass")
	allowlistAddCommandCmd.Flags().StringVar(&allowlistPrefixFlag, "command-prefix", "", "Command prefix to bypass")
	allowlistAddCommandCmd.Flags().StringVar(&allowlistContextFlag, "context", "", "Directory context required alongside --command-prefix")
	allowlistAddCommandCmd.Flags().StringVar(&allowlistReasonFlag, "reason", "", "Reason recorded with the entry")

	allowlistCmd.AddCommand(allowlistAddCmd, allowlistAddCommandCmd, allowlistListCmd, allowlistRemoveCmd, allowlistValidateCmd)
	rootCmd.AddCommand(allowlistCmd)
}

func allowlistPaths(scope string) map[allowlist.Layer]string {
	return map[allowlist.Layer]string{
		allowlist.LayerProject: filepath.Join(scope, "allowlist.toml"),
		allowlist.LayerUser:    userAllowlistPath(),
		allowlist.LayerSystem:  "/etc/dcg/allowlist.toml",
	}
}

func allowlistAdd(cmd *cobra.Command, args []string) error {
	if allowlistRuleFlag == "" && allowlistPatternFlag == "" {
		return fmt.Errorf("one of --rule or --pattern is required")
	}
	e := allowlist.Entry{
		Rule:             allowlistRuleFlag,
		Pattern:          allowlistPatternFlag,
		RiskAcknowledged: allowlistRiskAckFlag,
		Reason:           allowlistReasonFlag,
		AddedAt:          time.Now(),
	}
	return appendAllowlistEntry(e)
}

func allowlistAddCommand(cmd *cobra.Command, args []string) error {
	if allowlistExactFlag == "" && allowlistPrefixFlag == "" {
		return fmt.Errorf("one of --exact-command or --command-prefix is required")
	}
	e := allowlist.Entry{
		ExactCommand:  allowlistExactFlag,
		CommandPrefix: allowlistPrefixFlag,
		Context:       allowlistContextFlag,
		Reason:        allowlistReasonFlag,
		AddedAt:       time.Now(),
	}
	return appendAllowlistEntry(e)
}

func appendAllowlistEntry(e allowlist.Entry) error {
	env, err := loadEnvironment(config.CLIOverrides{})
	if err != nil {
		return err
	}
	layer := allowlist.Layer(allowlistLayerFlag)
	path, ok := allowlistPaths(env.Scope)[layer]
	if !ok || path == "" {
		return fmt.Errorf("unknown or unresolvable layer %q", allowlistLayerFlag)
	}

	var shape struct {
		Entries []allowlist.Entry `toml:"entries"`
	}
	if _, err := os.Stat(path); err == nil {
		if _, err := toml.DecodeFile(path, &shape); err != nil {
			return fmt.Errorf("parse existing allowlist %s: %w", path, err)
		}
	}
	shape.Entries = append(shape.Entries, e)

	if err := config.EnsureDir(path); err != nil {
		return err
	}
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(shape); err != nil {
		return fmt.Errorf("encode allowlist: %w", err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0600); err != nil {
		return fmt.Errorf("write allowlist %s: %w", path, err)
	}
	fmt.Printf("Added entry to %s\n", path)
	return nil
}

func allowlistList(cmd *cobra.Command, args []string) error {
	env, err := loadEnvironment(config.CLIOverrides{})
	if err != nil {
		return err
	}
	paths := allowlistPaths(env.Scope)
	list, warnings := allowlist.Load(paths[allowlist.LayerProject], paths[allowlist.LayerUser], paths[allowlist.LayerSystem])
	warn(env.Cfg, warnings...)

	if len(list.Entries) == 0 {
		fmt.Println("No allowlist entries.")
		return nil
	}
	for i, e := range list.Entries {
		fmt.Printf("[%d] layer=%s", i, e.Layer)
		switch {
		case e.Rule != "":
			fmt.Printf(" rule=%s", e.Rule)
		case e.ExactCommand != "":
			fmt.Printf(" exact_command=%q", e.ExactCommand)
		case e.CommandPrefix != "":
			fmt.Printf(" command_prefix=%q context=%s", e.CommandPrefix, e.Context)
		case e.Pattern != "":
			fmt.Printf(" pattern=%q", e.Pattern)
		}
		if e.Reason != "" {
			fmt.Printf(" reason=%q", e.Reason)
		}
		fmt.Println()
	}
	return nil
}

func allowlistRemove(cmd *cobra.Command, args []string) error {
	env, err := loadEnvironment(config.CLIOverrides{})
	if err != nil {
		return err
	}
	layer := allowlist.Layer(allowlistLayerFlag)
	path, ok := allowlistPaths(env.Scope)[layer]
	if !ok || path == "" {
		return fmt.Errorf("unknown or unresolvable layer %q", allowlistLayerFlag)
	}

	var idx int
	if _, err := fmt.Sscanf(args[0], "%d", &idx); err != nil {
		return fmt.Errorf("index must be an integer: %w", err)
	}

	var shape struct {
		Entries []allowlist.Entry `toml:"entries"`
	}
	if _, err := toml.DecodeFile(path, &shape); err != nil {
		return fmt.Errorf("parse allowlist %s: %w", path, err)
	}
	if idx < 0 || idx >= len(shape.Entries) {
		return fmt.Errorf("index %d out of range (0..%d)", idx, len(shape.Entries)-1)
	}
	shape.Entries = append(shape.Entries[:idx], shape.Entries[idx+1:]...)

	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(shape); err != nil {
		return fmt.Errorf("encode allowlist: %w", err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0600); err != nil {
		return fmt.Errorf("write allowlist %s: %w", path, err)
	}
	fmt.Printf("Removed entry %d from %s\n", idx, path)
	return nil
}

func allowlistValidate(cmd *cobra.Command, args []string) error {
	env, err := loadEnvironment(config.CLIOverrides{})
	if err != nil {
		return err
	}
	paths := allowlistPaths(env.Scope)
	_, warnings := allowlist.Load(paths[allowlist.LayerProject], paths[allowlist.LayerUser], paths[allowlist.LayerSystem])
	if len(warnings) == 0 {
		fmt.Println("All allowlist entries are well-formed.")
		return nil
	}
	for _, w := range warnings {
		fmt.Println(w)
	}
	return fmt.Errorf("%d allowlist issue(s) found", len(warnings))
}
