package evaluator

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/dcg-tools/dcg/internal/allowlist"
	"github.com/dcg-tools/dcg/internal/ledger"
	"github.com/dcg-tools/dcg/internal/pack"
)

func coreRegistry(t *testing.T) *Registry {
	t.Helper()
	r, errs := pack.NewRegistry(nil)
	if len(errs) != 0 {
		t.Fatalf("building registry: %v", errs)
	}
	return &Registry{Enabled: r.Enabled([]string{"core"}, nil)}
}

func TestEvaluate_AllowsBenignCommand(t *testing.T) {
	v := Evaluate(Input{
		Command:  "ls -la",
		Cwd:      "/repo",
		Registry: coreRegistry(t),
	})
	if v.Decision != Allow {
		t.Fatalf("expected allow, got %+v", v)
	}
}

func TestEvaluate_DeniesDestructivePattern(t *testing.T) {
	v := Evaluate(Input{
		Command:  "rm -rf /",
		Cwd:      "/repo",
		Registry: coreRegistry(t),
	})
	if v.Decision != Deny {
		t.Fatalf("expected deny, got %+v", v)
	}
	if v.PackID != "core.filesystem" {
		t.Fatalf("expected core.filesystem pack, got %s", v.PackID)
	}
	if v.Severity != pack.SeverityCritical {
		t.Fatalf("expected critical severity, got %s", v.Severity)
	}
}

func TestEvaluate_SafePatternAllows(t *testing.T) {
	v := Evaluate(Input{
		Command:  "rm file.txt",
		Cwd:      "/repo",
		Registry: coreRegistry(t),
	})
	if v.Decision != Allow || v.Source != "safe_pattern" {
		t.Fatalf("expected safe_pattern allow, got %+v", v)
	}
}

func TestEvaluate_QuoteStringArgumentIsMasked(t *testing.T) {
	v := Evaluate(Input{
		Command:  `git commit -m "rm -rf /"`,
		Cwd:      "/repo",
		Registry: coreRegistry(t),
	})
	if v.Decision != Allow {
		t.Fatalf("expected the quoted commit message not to trigger a destructive match, got %+v", v)
	}
}

func TestEvaluate_AllowlistBypass(t *testing.T) {
	list := &allowlist.List{Entries: []allowlist.Entry{{
		Rule:  "core.filesystem:rm-recursive-root",
		Layer: allowlist.LayerProject,
	}}}
	v := Evaluate(Input{
		Command:   "rm -rf /",
		Cwd:       "/repo",
		Registry:  coreRegistry(t),
		Allowlist: list,
	})
	if v.Decision != Allow || v.Source != "allowlist" {
		t.Fatalf("expected allowlist bypass to allow, got %+v", v)
	}
}

func TestEvaluate_DenyIncludesAllowOnceCode(t *testing.T) {
	dir := t.TempDir()
	lg := ledger.Open(filepath.Join(dir, "allow_once.jsonl"))
	v := Evaluate(Input{
		Command:   "rm -rf /",
		Cwd:       "/repo",
		ScopePath: "/repo",
		Registry:  coreRegistry(t),
		Ledger:    lg,
	})
	if v.Decision != Deny {
		t.Fatalf("expected deny, got %+v", v)
	}
	if v.AllowOnceCode == "" {
		t.Fatalf("expected an allow-once code to be issued on deny")
	}
}

func TestEvaluate_TraceOnlyWhenRequested(t *testing.T) {
	v := Evaluate(Input{
		Command:  "ls -la",
		Cwd:      "/repo",
		Registry: coreRegistry(t),
	})
	if len(v.Trace) != 0 {
		t.Fatalf("expected no trace when WantTrace is false, got %+v", v.Trace)
	}

	v = Evaluate(Input{
		Command:   "ls -la",
		Cwd:       "/repo",
		Registry:  coreRegistry(t),
		WantTrace: true,
	})
	if len(v.Trace) == 0 {
		t.Fatalf("expected a non-empty trace when WantTrace is true")
	}
}

func TestEvaluate_NoKeywordMatchQuickRejects(t *testing.T) {
	v := Evaluate(Input{
		Command:  "echo hello world",
		Cwd:      "/repo",
		Registry: coreRegistry(t),
	})
	if v.Decision != Allow || v.Source != "default" {
		t.Fatalf("expected a quick-reject allow, got %+v", v)
	}
}

func TestEvaluate_UnicodeZeroWidthBypassesQuickReject(t *testing.T) {
	// A zero-width space splits "rm" into a token no keyword gate
	// recognizes, so this would quick-reject to allow if the unicode
	// scan didn't run ahead of the keyword gate.
	v := Evaluate(Input{
		Command:  "r​m -rf /tmp/x",
		Cwd:      "/repo",
		Registry: coreRegistry(t),
	})
	if v.Decision != Deny {
		t.Fatalf("expected a zero-width smuggled command to deny, got %+v", v)
	}
	if v.Source != "unicode_threat" {
		t.Fatalf("expected source unicode_threat, got %s", v.Source)
	}
	if v.Severity != pack.SeverityCritical {
		t.Fatalf("expected critical severity for a unicode smuggling threat, got %s", v.Severity)
	}
}

func TestEvaluate_UnicodeThreatStillRespectsAllowlist(t *testing.T) {
	list := &allowlist.List{Entries: []allowlist.Entry{{
		Rule:  "unicode:zero-width",
		Layer: allowlist.LayerProject,
	}}}
	v := Evaluate(Input{
		Command:   "r​m -rf /tmp/x",
		Cwd:       "/repo",
		Registry:  coreRegistry(t),
		Allowlist: list,
	})
	if v.Decision != Allow || v.Source != "allowlist" {
		t.Fatalf("expected allowlisted unicode rule to allow, got %+v", v)
	}
}

func TestEvaluate_HeredocDenyFallsThroughAllowlist(t *testing.T) {
	cmd := "git --no-pager log <<'EOF'\nimport shutil\nshutil.rmtree('/')\nEOF\n"
	list := &allowlist.List{Entries: []allowlist.Entry{{
		Rule:  "heredoc.python:shutil_rmtree",
		Layer: allowlist.LayerProject,
	}}}
	v := Evaluate(Input{
		Command:   cmd,
		Cwd:       "/repo",
		ScopePath: "/repo",
		Registry:  coreRegistry(t),
		Allowlist: list,
	})
	if v.Decision != Allow || v.Source != "allowlist" {
		t.Fatalf("expected an allowlisted heredoc finding to allow, got %+v", v)
	}
}

func TestEvaluate_HeredocAllowOnceRoundTrip(t *testing.T) {
	// This command's normalized form drops its trailing newline
	// (normalize.Normalize trims trailing whitespace), so issuing the
	// allow-once code against the raw command instead of the normalized
	// one would make it permanently unredeemable.
	cmd := "git --no-pager log <<'EOF'\nimport shutil\nshutil.rmtree('/')\nEOF\n"
	dir := t.TempDir()
	lg := ledger.Open(filepath.Join(dir, "allow_once.jsonl"))

	deny := Evaluate(Input{
		Command:   cmd,
		Cwd:       "/repo",
		ScopePath: "/repo",
		Registry:  coreRegistry(t),
		Ledger:    lg,
	})
	if deny.Decision != Deny || deny.Source != "heredoc" {
		t.Fatalf("expected a heredoc deny, got %+v", deny)
	}
	if deny.AllowOnceCode == "" {
		t.Fatalf("expected an allow-once code on the heredoc deny")
	}
	if deny.PackID != "heredoc.python" || deny.RuleID != "heredoc.python:shutil_rmtree" {
		t.Fatalf("unexpected rule/pack ID on heredoc deny: %+v", deny)
	}

	if err := lg.Prime(deny.AllowOnceCode, "/repo"); err != nil {
		t.Fatalf("priming allow-once code: %v", err)
	}

	redeemed := Evaluate(Input{
		Command:   cmd,
		Cwd:       "/repo",
		ScopePath: "/repo",
		Registry:  coreRegistry(t),
		Ledger:    lg,
	})
	if redeemed.Decision != Allow || redeemed.Source != "allow_once" {
		t.Fatalf("expected the primed code to redeem the identical heredoc command, got %+v", redeemed)
	}
}

func TestScopePath_FindsGitRoot(t *testing.T) {
	dir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(dir, ".git"), 0755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	sub := filepath.Join(dir, "pkg", "sub")
	if err := os.MkdirAll(sub, 0755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if got := ScopePath(sub); got != dir {
		t.Fatalf("expected scope path %s, got %s", dir, got)
	}
}

func TestScopePath_FallsBackToCwd(t *testing.T) {
	dir := t.TempDir()
	if got := ScopePath(dir); got != dir {
		t.Fatalf("expected fallback to cwd %s, got %s", dir, got)
	}
}
