package cli

import (
	"testing"

	"github.com/dcg-tools/dcg/internal/evaluator"
	"github.com/dcg-tools/dcg/internal/pack"
	"github.com/dcg-tools/dcg/internal/scan"
)

func TestExceedsThreshold_None(t *testing.T) {
	findings := []scan.Finding{{Verdict: evaluator.Verdict{Severity: pack.SeverityCritical}}}
	if exceedsThreshold(findings, "none") {
		t.Fatalf("expected fail-on=none never to fail")
	}
}

func TestExceedsThreshold_WarningFailsOnAnySeverity(t *testing.T) {
	findings := []scan.Finding{{Verdict: evaluator.Verdict{Severity: pack.SeverityLow}}}
	if !exceedsThreshold(findings, "warning") {
		t.Fatalf("expected fail-on=warning to fail on any finding")
	}
}

func TestExceedsThreshold_ErrorOnlyFailsOnHighOrCritical(t *testing.T) {
	low := []scan.Finding{{Verdict: evaluator.Verdict{Severity: pack.SeverityLow}}}
	if exceedsThreshold(low, "error") {
		t.Fatalf("expected fail-on=error not to fail on a low-severity finding")
	}

	critical := []scan.Finding{{Verdict: evaluator.Verdict{Severity: pack.SeverityCritical}}}
	if !exceedsThreshold(critical, "error") {
		t.Fatalf("expected fail-on=error to fail on a critical finding")
	}
}

func TestExceedsThreshold_NoFindingsNeverFails(t *testing.T) {
	if exceedsThreshold(nil, "warning") {
		t.Fatalf("expected no findings never to exceed any threshold")
	}
}

func TestRedactCommand_NoneLeavesUntouched(t *testing.T) {
	cmd := "curl -H 'Authorization: Bearer abc123' https://example.com"
	if got := redactCommand(cmd, "none", 0); got != cmd {
		t.Fatalf("expected redact level none to leave the command untouched, got %q", got)
	}
}

func TestRedactCommand_AggressiveCollapsesToLeadWord(t *testing.T) {
	cmd := "curl -H 'Authorization: Bearer abc123' https://example.com"
	got := redactCommand(cmd, "aggressive", 0)
	if got != "curl [redacted]" {
		t.Fatalf("expected aggressive redaction to collapse to the lead word, got %q", got)
	}
}

func TestRedactCommand_Truncates(t *testing.T) {
	cmd := "echo 1234567890"
	got := redactCommand(cmd, "none", 5)
	if got != "echo ..." {
		t.Fatalf("expected truncation at 5 chars with ellipsis, got %q", got)
	}
}

func TestFirstNonEmpty(t *testing.T) {
	if got := firstNonEmpty("", "", "x", "y"); got != "x" {
		t.Fatalf("expected first non-empty value, got %q", got)
	}
	if got := firstNonEmpty("", ""); got != "" {
		t.Fatalf("expected empty string when all values are empty, got %q", got)
	}
}

func TestSarifLevel(t *testing.T) {
	cases := map[pack.Severity]string{
		pack.SeverityCritical: "error",
		pack.SeverityHigh:     "error",
		pack.SeverityMedium:   "warning",
		pack.SeverityLow:      "note",
	}
	for sev, want := range cases {
		if got := sarifLevel(sev); got != want {
			t.Errorf("sarifLevel(%s) = %q, want %q", sev, got, want)
		}
	}
}
