package heredoc

import (
	"testing"

	"github.com/dcg-tools/dcg/internal/pack"
	"github.com/dcg-tools/dcg/internal/span"
)

func enabledCore(t *testing.T) []*pack.Pack {
	t.Helper()
	r, errs := pack.NewRegistry(nil)
	if len(errs) != 0 {
		t.Fatalf("building registry: %v", errs)
	}
	return r.Enabled([]string{"core"}, nil)
}

func TestScan_BashHeredocRoutesThroughPackMatching(t *testing.T) {
	cmd := "bash <<EOF\nrm -rf /\nEOF\n"
	result := span.Classify(cmd)

	f, ok := Scan(cmd, result, enabledCore(t))
	if !ok {
		t.Fatalf("expected a destructive finding in the bash heredoc body")
	}
	if f.Language != "bash" {
		t.Fatalf("expected bash language, got %s", f.Language)
	}
}

func TestScan_PythonInlineCode(t *testing.T) {
	cmd := `python3 -c "shutil.rmtree('/tmp/x')"`
	result := span.Classify(cmd)

	f, ok := Scan(cmd, result, enabledCore(t))
	if !ok {
		t.Fatalf("expected a destructive finding in the python inline body")
	}
	if f.Language != "python" {
		t.Fatalf("expected python language, got %s", f.Language)
	}
}

func TestScan_NoFindingForBenignBody(t *testing.T) {
	cmd := "bash <<EOF\necho hello\nEOF\n"
	result := span.Classify(cmd)

	if _, ok := Scan(cmd, result, enabledCore(t)); ok {
		t.Fatalf("expected no finding for a benign heredoc body")
	}
}

func TestInferLanguage_Shebang(t *testing.T) {
	b := body{text: "#!/usr/bin/env python3\nimport os\n"}
	if got := inferLanguage(b); got != "python" {
		t.Fatalf("expected python from shebang, got %s", got)
	}
}

func TestInferLanguage_InterpreterHeadWins(t *testing.T) {
	b := body{text: "echo hi", interpreter: "node"}
	if got := inferLanguage(b); got != "node" {
		t.Fatalf("expected interpreter head to win, got %s", got)
	}
}

func TestStripLeadingTabs(t *testing.T) {
	in := "\t\tfoo\n\tbar\n"
	want := "foo\nbar\n"
	if got := stripLeadingTabs(in); got != want {
		t.Fatalf("stripLeadingTabs(%q) = %q, want %q", in, got, want)
	}
}

func TestStripCommonIndent(t *testing.T) {
	in := "  foo\n    bar\n"
	want := "foo\n  bar\n"
	if got := stripCommonIndent(in); got != want {
		t.Fatalf("stripCommonIndent(%q) = %q, want %q", in, got, want)
	}
}

func TestMatchNode_FsRmSyncRecursive(t *testing.T) {
	text := `fs.rmSync('/tmp/x', { recursive: true })`
	f, ok := matchNode(text)
	if !ok || f.Language != "node" {
		t.Fatalf("expected a node finding, got %+v, %v", f, ok)
	}
}

func TestMatchRuby_FileUtilsRmRf(t *testing.T) {
	text := `FileUtils.rm_rf('/tmp/x')`
	f, ok := matchRuby(text)
	if !ok || f.Language != "ruby" {
		t.Fatalf("expected a ruby finding, got %+v, %v", f, ok)
	}
}
