package ledger

import (
	"path/filepath"
	"testing"
)

func newTestLedger(t *testing.T) *Ledger {
	t.Helper()
	dir := t.TempDir()
	return Open(filepath.Join(dir, "allow_once.jsonl"))
}

func TestIssueAndPrimeAndConsume(t *testing.T) {
	l := newTestLedger(t)

	code, err := l.Issue("rm -rf /tmp/x", "/repo")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if len(code) != codeLength {
		t.Fatalf("expected code of length %d, got %q", codeLength, code)
	}

	// Consuming before priming must fail to consume.
	consumed, err := l.TryConsume("rm -rf /tmp/x", "/repo")
	if err != nil {
		t.Fatalf("TryConsume: %v", err)
	}
	if consumed {
		t.Fatalf("expected an unprimed entry not to be consumable")
	}

	if err := l.Prime(code, "/repo"); err != nil {
		t.Fatalf("Prime: %v", err)
	}

	consumed, err = l.TryConsume("rm -rf /tmp/x", "/repo")
	if err != nil {
		t.Fatalf("TryConsume: %v", err)
	}
	if !consumed {
		t.Fatalf("expected the primed entry to be consumed")
	}

	// A second consume attempt must fail: the code is single-use.
	consumed, err = l.TryConsume("rm -rf /tmp/x", "/repo")
	if err != nil {
		t.Fatalf("TryConsume: %v", err)
	}
	if consumed {
		t.Fatalf("expected a second consume attempt to fail")
	}
}

func TestPrime_UnknownCode(t *testing.T) {
	l := newTestLedger(t)
	if err := l.Prime("zzzzzz", "/repo"); err == nil {
		t.Fatalf("expected an error priming an unknown code")
	}
}

func TestPrime_OutOfScope(t *testing.T) {
	l := newTestLedger(t)
	code, err := l.Issue("rm -rf /tmp/x", "/repo/sub")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if err := l.Prime(code, "/other"); err == nil {
		t.Fatalf("expected priming to fail outside the issuing scope")
	}
	if err := l.Prime(code, "/repo"); err == nil {
		t.Fatalf("expected priming to fail from a parent of the issuing scope")
	}
	if err := l.Prime(code, "/repo/sub"); err != nil {
		t.Fatalf("expected priming to succeed within the issuing scope: %v", err)
	}
}

func TestTryConsume_WrongCommandDoesNotMatch(t *testing.T) {
	l := newTestLedger(t)
	code, err := l.Issue("rm -rf /tmp/x", "/repo")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if err := l.Prime(code, "/repo"); err != nil {
		t.Fatalf("Prime: %v", err)
	}
	consumed, err := l.TryConsume("rm -rf /tmp/y", "/repo")
	if err != nil {
		t.Fatalf("TryConsume: %v", err)
	}
	if consumed {
		t.Fatalf("expected a different command hash not to consume the entry")
	}
}

func TestCompact_DropsConsumedAndExpiredAboveThreshold(t *testing.T) {
	var entries []Entry
	for i := 0; i < 10; i++ {
		entries = append(entries, Entry{Code: string(rune('a' + i)), Consumed: i < 5})
	}
	kept := compactEntries(entries)
	if len(kept) != 5 {
		t.Fatalf("expected compaction to drop consumed entries once above threshold, got %d kept", len(kept))
	}
}

func TestCompact_BelowThresholdIsNoop(t *testing.T) {
	var entries []Entry
	for i := 0; i < 10; i++ {
		entries = append(entries, Entry{Code: string(rune('a' + i)), Consumed: i == 0})
	}
	kept := compactEntries(entries)
	if len(kept) != len(entries) {
		t.Fatalf("expected no compaction below the stale-ratio threshold, got %d of %d kept", len(kept), len(entries))
	}
}

func TestCompact_StableOnSecondCall(t *testing.T) {
	l := newTestLedger(t)
	for i := 0; i < 10; i++ {
		code, err := l.Issue("cmd", "/repo")
		if err != nil {
			t.Fatalf("Issue: %v", err)
		}
		if i < 8 {
			_ = l.Prime(code, "/repo")
			_, _ = l.TryConsume("cmd", "/repo")
		}
	}
	if err := l.Compact(); err != nil {
		t.Fatalf("first Compact: %v", err)
	}
	if err := l.Compact(); err != nil {
		t.Fatalf("second Compact: %v", err)
	}
}

func TestWithinScope(t *testing.T) {
	cases := []struct {
		issued, current string
		want            bool
	}{
		{"/repo", "/repo", true},
		{"/repo", "/repo/sub", true},
		{"/repo/sub", "/repo", false},
		{"/repo", "/other", false},
	}
	for _, c := range cases {
		if got := withinScope(c.issued, c.current); got != c.want {
			t.Errorf("withinScope(%q, %q) = %v, want %v", c.issued, c.current, got, c.want)
		}
	}
}
