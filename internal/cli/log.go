package cli

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/dcg-tools/dcg/internal/logger"
)

var (
	logFilterDecision string
	logLast           int
	logSummary        bool
)

var logCmd = &cobra.Command{
	Use:   "log",
	Short: "View and filter the audit log",
	Long: `View the dcg audit log with filtering and summary options.

Examples:
  dcg log                     # Show all entries
  dcg log --last 20           # Show last 20 entries
  dcg log --decision deny     # Show only denied commands
  dcg log --summary           # Show session summary stats`,
	RunE: logCommand,
}

func init() {
	logCmd.Flags().StringVar(&logFilterDecision, "decision", "", "Filter by decision (allow, deny)")
	logCmd.Flags().IntVar(&logLast, "last", 0, "Show last N entries")
	logCmd.Flags().BoolVar(&logSummary, "summary", false, "Show summary statistics")
	rootCmd.AddCommand(logCmd)
}

func logCommand(cmd *cobra.Command, args []string) error {
	path, err := logger.DefaultPath()
	if err != nil {
		return err
	}

	events, err := readAuditLog(path)
	if err != nil {
		return fmt.Errorf("failed to read audit log: %w", err)
	}

	if len(events) == 0 {
		fmt.Println("No audit log entries found.")
		return nil
	}

	filtered := filterEvents(events)
	if logLast > 0 && logLast < len(filtered) {
		filtered = filtered[len(filtered)-logLast:]
	}

	if logSummary {
		printSummary(events)
		return nil
	}
	printEvents(filtered)
	return nil
}

func readAuditLog(path string) ([]logger.AuditEvent, error) {
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	defer file.Close()

	var events []logger.AuditEvent
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}
		var event logger.AuditEvent
		if err := json.Unmarshal([]byte(line), &event); err != nil {
			continue // skip malformed lines, per spec's local-recovery policy
		}
		events = append(events, event)
	}
	return events, scanner.Err()
}

func filterEvents(events []logger.AuditEvent) []logger.AuditEvent {
	if logFilterDecision == "" {
		return events
	}
	var filtered []logger.AuditEvent
	for _, e := range events {
		if strings.EqualFold(e.Decision, logFilterDecision) {
			filtered = append(filtered, e)
		}
	}
	return filtered
}

func printEvents(events []logger.AuditEvent) {
	for _, e := range events {
		ts := formatTimestamp(e.Timestamp)
		fmt.Printf("%s %-5s %s\n", ts, e.Decision, e.Command)
		if e.Decision == "deny" {
			fmt.Printf("     rule: %s  pack: %s  severity: %s\n", e.RuleID, e.PackID, e.Severity)
		}
		if e.Error != "" {
			fmt.Printf("     error: %s\n", e.Error)
		}
		fmt.Printf("     cwd: %s\n", e.Cwd)
		fmt.Println()
	}
}

func printSummary(all []logger.AuditEvent) {
	counts := map[string]int{}
	errorCount := 0
	for _, e := range all {
		counts[e.Decision]++
		if e.Error != "" {
			errorCount++
		}
	}

	fmt.Println("dcg audit summary")
	fmt.Printf("  total events: %d\n", len(all))
	fmt.Printf("  allow:        %d\n", counts["allow"])
	fmt.Printf("  deny:         %d\n", counts["deny"])
	fmt.Printf("  errors:       %d\n", errorCount)

	if len(all) > 0 {
		fmt.Printf("  first event:  %s\n", formatTimestamp(all[0].Timestamp))
		fmt.Printf("  last event:   %s\n", formatTimestamp(all[len(all)-1].Timestamp))
	}

	var denied []logger.AuditEvent
	for _, e := range all {
		if e.Decision == "deny" {
			denied = append(denied, e)
		}
	}
	if len(denied) == 0 {
		return
	}
	fmt.Println()
	fmt.Println("  recent denies:")
	limit := len(denied)
	if limit > 10 {
		limit = 10
	}
	for _, e := range denied[len(denied)-limit:] {
		fmt.Printf("    %s %s\n", formatTimestamp(e.Timestamp), e.Command)
	}
}

func formatTimestamp(ts string) string {
	t, err := time.Parse(time.RFC3339, ts)
	if err != nil {
		return ts
	}
	return t.Local().Format("2006-01-02 15:04:05")
}
