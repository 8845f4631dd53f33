package cli

import (
	"testing"

	"github.com/dcg-tools/dcg/internal/logger"
)

func TestFilterEvents_ByDecision(t *testing.T) {
	prevFilter := logFilterDecision
	defer func() { logFilterDecision = prevFilter }()

	events := []logger.AuditEvent{
		{Decision: "allow", Command: "ls"},
		{Decision: "deny", Command: "rm -rf /"},
		{Decision: "DENY", Command: "rm -rf /etc"},
	}

	logFilterDecision = "deny"
	got := filterEvents(events)
	if len(got) != 2 {
		t.Fatalf("expected 2 deny events (case-insensitive), got %d: %+v", len(got), got)
	}
}

func TestFilterEvents_EmptyFilterReturnsAll(t *testing.T) {
	prevFilter := logFilterDecision
	defer func() { logFilterDecision = prevFilter }()
	logFilterDecision = ""

	events := []logger.AuditEvent{
		{Decision: "allow"},
		{Decision: "deny"},
	}
	got := filterEvents(events)
	if len(got) != 2 {
		t.Fatalf("expected all events returned when no filter is set, got %d", len(got))
	}
}

func TestFormatTimestamp_InvalidPassesThrough(t *testing.T) {
	if got := formatTimestamp("not-a-timestamp"); got != "not-a-timestamp" {
		t.Fatalf("expected an unparseable timestamp to pass through unchanged, got %q", got)
	}
}

func TestFormatTimestamp_ValidRFC3339(t *testing.T) {
	got := formatTimestamp("2026-02-02T12:00:00Z")
	if got == "2026-02-02T12:00:00Z" || got == "" {
		t.Fatalf("expected the timestamp to be reformatted, got %q", got)
	}
}
