package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/spf13/cobra"

	"github.com/dcg-tools/dcg/internal/config"
	"github.com/dcg-tools/dcg/internal/evaluator"
	"github.com/dcg-tools/dcg/internal/pack"
	"github.com/dcg-tools/dcg/internal/redact"
	"github.com/dcg-tools/dcg/internal/scan"
)

var (
	scanStaged  bool
	scanGitDiff string
	scanPaths   []string
	scanFormat  string
	scanFailOn  string
	scanRedact  string
	scanTrunc   int
)

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Scan committed files for destructive commands",
	Long: `Extract shell commands embedded in shell scripts, Dockerfiles,
Makefiles, and GitHub Actions workflows, evaluate each one, and report
every deny as a finding with file/line attribution.`,
	RunE: scanCommand,
}

var scanInstallHookCmd = &cobra.Command{
	Use:   "install-pre-commit",
	Short: "Install a git pre-commit hook that runs dcg scan --staged",
	RunE:  scanInstallHook,
}

var scanUninstallHookCmd = &cobra.Command{
	Use:   "uninstall-pre-commit",
	Short: "Remove the dcg pre-commit hook",
	RunE:  scanUninstallHook,
}

func init() {
	scanCmd.Flags().BoolVar(&scanStaged, "staged", false, "Scan files staged in the git index")
	scanCmd.Flags().StringVar(&scanGitDiff, "git-diff", "", "Scan files changed in a git range, e.g. main...HEAD")
	scanCmd.Flags().StringSliceVar(&scanPaths, "paths", nil, "Scan explicit file or directory paths")
	scanCmd.Flags().StringVar(&scanFormat, "format", "", "Output format: pretty|json|markdown|sarif")
	scanCmd.Flags().StringVar(&scanFailOn, "fail-on", "", "Exit non-zero threshold: error|warning|none")
	scanCmd.Flags().StringVar(&scanRedact, "redact", "", "Redaction level: none|quoted|aggressive")
	scanCmd.Flags().IntVar(&scanTrunc, "truncate", 0, "Truncate each command to N characters in output (0 = no limit)")

	scanCmd.AddCommand(scanInstallHookCmd, scanUninstallHookCmd)
	rootCmd.AddCommand(scanCmd)
}

func scanCommand(cmd *cobra.Command, args []string) error {
	env, err := loadEnvironment(cliOverrides(scanFailOn))
	if err != nil {
		return err
	}

	format := firstNonEmpty(scanFormat, env.Cfg.Scan.Format)
	failOn := firstNonEmpty(scanFailOn, env.Cfg.Scan.FailOn)
	redactLevel := firstNonEmpty(scanRedact, env.Cfg.Scan.Redact)
	truncate := scanTrunc
	if truncate == 0 {
		truncate = env.Cfg.Scan.Truncate
	}

	files, err := scanTargets(env.Cwd)
	if err != nil {
		return err
	}

	templateInput := env.input("", false)
	var findings []scan.Finding
	for _, f := range files {
		fs, err := scan.File(f, env.Enabled, templateInput, evaluator.Evaluate)
		if err != nil {
			warn(env.Cfg, fmt.Sprintf("scan %s: %v", f, err))
			continue
		}
		findings = append(findings, fs...)
	}
	scan.Sort(findings)

	renderFindings(findings, format, redactLevel, truncate)

	if exceedsThreshold(findings, failOn) {
		return fmt.Errorf("%d finding(s) at or above fail-on=%s", len(findings), failOn)
	}
	return nil
}

// scanTargets resolves the scan's file list from --staged, --git-diff,
// or --paths, in that precedence order; --paths with no other flag
// walks each path recursively.
func scanTargets(cwd string) ([]string, error) {
	switch {
	case scanStaged:
		return gitFiles(cwd, "diff", "--cached", "--name-only", "--diff-filter=ACM")
	case scanGitDiff != "":
		return gitFiles(cwd, "diff", "--name-only", "--diff-filter=ACM", scanGitDiff)
	case len(scanPaths) > 0:
		return walkPaths(scanPaths)
	default:
		return nil, fmt.Errorf("one of --staged, --git-diff, or --paths is required")
	}
}

func gitFiles(cwd string, args ...string) ([]string, error) {
	out, err := exec.Command("git", args...).Output()
	if err != nil {
		return nil, fmt.Errorf("git %s: %w", strings.Join(args, " "), err)
	}
	var files []string
	for _, line := range strings.Split(string(out), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		files = append(files, filepath.Join(cwd, line))
	}
	return files, nil
}

func walkPaths(paths []string) ([]string, error) {
	var files []string
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			files = append(files, p)
			continue
		}
		err = filepath.Walk(p, func(path string, fi os.FileInfo, err error) error {
			if err != nil {
				return err
			}
			if fi.IsDir() {
				if fi.Name() == ".git" {
					return filepath.SkipDir
				}
				return nil
			}
			files = append(files, path)
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	return files, nil
}

func renderFindings(findings []scan.Finding, format, redactLevel string, truncate int) {
	switch format {
	case "json":
		fmt.Println(string(mustJSON(findingRows(findings, redactLevel, truncate))))
	case "markdown":
		renderMarkdown(findings, redactLevel, truncate)
	case "sarif":
		fmt.Println(string(mustJSON(sarifReport(findings, redactLevel, truncate))))
	default:
		renderPretty(findings, redactLevel, truncate)
	}
}

type findingRow struct {
	File       string  `json:"file"`
	Line       int     `json:"line"`
	Column     int     `json:"column"`
	Extractor  string  `json:"extractor_id"`
	Command    string  `json:"command"`
	RuleID     string  `json:"rule_id"`
	PackID     string  `json:"pack_id"`
	Severity   string  `json:"severity"`
	Confidence float64 `json:"confidence"`
	Reason     string  `json:"reason"`
}

func findingRows(findings []scan.Finding, redactLevel string, truncate int) []findingRow {
	rows := make([]findingRow, 0, len(findings))
	for _, f := range findings {
		rows = append(rows, findingRow{
			File: f.File, Line: f.Line, Column: f.Column,
			Extractor: f.ExtractorID, Command: redactCommand(f.ExtractedCommand, redactLevel, truncate),
			RuleID: f.Verdict.RuleID, PackID: f.Verdict.PackID,
			Severity: string(f.Verdict.Severity), Confidence: f.Verdict.Confidence,
			Reason: f.Verdict.Reason,
		})
	}
	return rows
}

func renderPretty(findings []scan.Finding, redactLevel string, truncate int) {
	if len(findings) == 0 {
		fmt.Println("No findings.")
		return
	}
	for _, f := range findings {
		fmt.Printf("%s:%d:%d  %s  %s\n", f.File, f.Line, f.Column,
			renderSeverity(f.Verdict.Severity, true), redactCommand(f.ExtractedCommand, redactLevel, truncate))
		fmt.Printf("    rule: %s   reason: %s\n", f.Verdict.RuleID, f.Verdict.Reason)
	}
	fmt.Printf("\n%d finding(s).\n", len(findings))
}

func renderMarkdown(findings []scan.Finding, redactLevel string, truncate int) {
	fmt.Println("| file | line | severity | rule | command |")
	fmt.Println("|---|---|---|---|---|")
	for _, f := range findings {
		fmt.Printf("| %s | %d | %s | %s | `%s` |\n",
			f.File, f.Line, f.Verdict.Severity, f.Verdict.RuleID, redactCommand(f.ExtractedCommand, redactLevel, truncate))
	}
}

// sarifLog is a minimal SARIF 2.1.0 document, just enough to carry one
// result per finding into tools that consume the format (GitHub code
// scanning, etc).
type sarifLog struct {
	Schema  string      `json:"$schema"`
	Version string      `json:"version"`
	Runs    []sarifRun  `json:"runs"`
}

type sarifRun struct {
	Tool    sarifTool     `json:"tool"`
	Results []sarifResult `json:"results"`
}

type sarifTool struct {
	Driver sarifDriver `json:"driver"`
}

type sarifDriver struct {
	Name string `json:"name"`
}

type sarifResult struct {
	RuleID  string          `json:"ruleId"`
	Level   string          `json:"level"`
	Message sarifMessage    `json:"message"`
	Locations []sarifLocation `json:"locations"`
}

type sarifMessage struct {
	Text string `json:"text"`
}

type sarifLocation struct {
	PhysicalLocation sarifPhysicalLocation `json:"physicalLocation"`
}

type sarifPhysicalLocation struct {
	ArtifactLocation sarifArtifactLocation `json:"artifactLocation"`
	Region           sarifRegion           `json:"region"`
}

type sarifArtifactLocation struct {
	URI string `json:"uri"`
}

type sarifRegion struct {
	StartLine   int `json:"startLine"`
	StartColumn int `json:"startColumn"`
}

func sarifReport(findings []scan.Finding, redactLevel string, truncate int) sarifLog {
	results := make([]sarifResult, 0, len(findings))
	for _, f := range findings {
		results = append(results, sarifResult{
			RuleID: f.Verdict.RuleID,
			Level:  sarifLevel(f.Verdict.Severity),
			Message: sarifMessage{Text: fmt.Sprintf("%s — %s",
				f.Verdict.Reason, redactCommand(f.ExtractedCommand, redactLevel, truncate))},
			Locations: []sarifLocation{{PhysicalLocation: sarifPhysicalLocation{
				ArtifactLocation: sarifArtifactLocation{URI: f.File},
				Region:           sarifRegion{StartLine: f.Line, StartColumn: f.Column},
			}}},
		})
	}
	return sarifLog{
		Schema:  "https://raw.githubusercontent.com/oasis-tcs/sarif-spec/master/Schemata/sarif-schema-2.1.0.json",
		Version: "2.1.0",
		Runs:    []sarifRun{{Tool: sarifTool{Driver: sarifDriver{Name: "dcg"}}, Results: results}},
	}
}

func sarifLevel(s pack.Severity) string {
	switch s {
	case pack.SeverityCritical, pack.SeverityHigh:
		return "error"
	case pack.SeverityMedium:
		return "warning"
	default:
		return "note"
	}
}

// exceedsThreshold applies spec §4.7's fail_on threshold: "error" fails
// only on critical/high findings, "warning" fails on any finding,
// "none" never fails.
func exceedsThreshold(findings []scan.Finding, failOn string) bool {
	if failOn == "none" || len(findings) == 0 {
		return false
	}
	if failOn == "warning" {
		return true
	}
	for _, f := range findings {
		if f.Verdict.Severity == pack.SeverityCritical || f.Verdict.Severity == pack.SeverityHigh {
			return true
		}
	}
	return false
}

// redactCommand applies the requested redaction level to an extracted
// command before it is printed. "none" leaves it untouched; "quoted"
// uses the shared secret redactor; "aggressive" also collapses the
// command to its leading word, in case the redactor misses a
// domain-specific secret shape.
func redactCommand(command, level string, truncate int) string {
	out := command
	switch level {
	case "none":
		// leave as-is
	case "aggressive":
		out = redact.Redact(out)
		if fields := strings.Fields(out); len(fields) > 1 {
			out = fields[0] + " [redacted]"
		}
	default: // "quoted"
		out = redact.Redact(out)
	}
	if truncate > 0 && len(out) > truncate {
		out = out[:truncate] + "..."
	}
	return out
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func mustJSON(v interface{}) []byte {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return []byte("null")
	}
	return data
}

const preCommitHookScript = `#!/bin/sh
# Installed by dcg scan install-pre-commit.
exec dcg scan --staged --fail-on error
`

// hooksConfig is the on-disk record at .dcg/hooks.toml noting that
// scan mode owns the repository's pre-commit hook, per spec §6's
// on-disk layout table.
type hooksConfig struct {
	PreCommit bool   `toml:"pre_commit"`
	FailOn    string `toml:"fail_on"`
}

func hooksConfigPath(scope string) string {
	return filepath.Join(scope, ".dcg", "hooks.toml")
}

func scanInstallHook(cmd *cobra.Command, args []string) error {
	hookPath, err := gitHookPath()
	if err != nil {
		return err
	}
	if err := os.WriteFile(hookPath, []byte(preCommitHookScript), 0755); err != nil {
		return fmt.Errorf("write pre-commit hook: %w", err)
	}

	cwd, err := os.Getwd()
	if err != nil {
		return err
	}
	cfgPath := hooksConfigPath(cwd)
	if err := config.EnsureDir(cfgPath); err != nil {
		return err
	}
	f, err := os.Create(cfgPath)
	if err != nil {
		return fmt.Errorf("write %s: %w", cfgPath, err)
	}
	defer f.Close()
	if err := toml.NewEncoder(f).Encode(hooksConfig{PreCommit: true, FailOn: "error"}); err != nil {
		return fmt.Errorf("encode %s: %w", cfgPath, err)
	}

	fmt.Printf("Installed pre-commit hook at %s\n", hookPath)
	return nil
}

func scanUninstallHook(cmd *cobra.Command, args []string) error {
	hookPath, err := gitHookPath()
	if err != nil {
		return err
	}
	data, err := os.ReadFile(hookPath)
	if err != nil {
		if os.IsNotExist(err) {
			fmt.Println("No pre-commit hook installed.")
			return nil
		}
		return err
	}
	if !strings.Contains(string(data), "dcg scan") {
		return fmt.Errorf("%s was not installed by dcg; leaving it in place", hookPath)
	}
	if err := os.Remove(hookPath); err != nil {
		return fmt.Errorf("remove pre-commit hook: %w", err)
	}

	cwd, err := os.Getwd()
	if err == nil {
		_ = os.Remove(hooksConfigPath(cwd))
	}

	fmt.Printf("Removed pre-commit hook at %s\n", hookPath)
	return nil
}

func gitHookPath() (string, error) {
	out, err := exec.Command("git", "rev-parse", "--git-path", "hooks").Output()
	if err != nil {
		return "", fmt.Errorf("not a git repository: %w", err)
	}
	dir := strings.TrimSpace(string(out))
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", err
	}
	return filepath.Join(dir, "pre-commit"), nil
}
