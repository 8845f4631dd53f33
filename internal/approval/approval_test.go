package approval

import "testing"

func TestAsk_NonInteractiveFailsClosed(t *testing.T) {
	// Under `go test`, stdin is not a terminal, so Ask must take the
	// non-interactive fail-closed path regardless of the prompt content.
	if IsInteractive() {
		t.Skip("test stdin unexpectedly reports as a terminal")
	}

	result := Ask(Prompt{
		Command:  "rm -rf /",
		RuleID:   "core.filesystem:rm-recursive-root",
		Severity: "critical",
		Reason:   "recursively force-deletes the filesystem root",
	})

	if result.Approved {
		t.Fatalf("expected a non-interactive prompt to never approve")
	}
	if result.UserAction != "auto_deny_non_interactive" {
		t.Fatalf("expected auto_deny_non_interactive, got %q", result.UserAction)
	}
}
