package span

import "testing"

func findKind(spans []Span, command string, text string) (Span, bool) {
	for _, s := range spans {
		if s.Text(command) == text {
			return s, true
		}
	}
	return Span{}, false
}

func TestClassify_SimpleCommand(t *testing.T) {
	cmd := "rm -rf /tmp/x"
	res := Classify(cmd)

	s, ok := findKind(res.Spans, cmd, "rm")
	if !ok || s.Kind != Executed {
		t.Fatalf("expected %q to be classified Executed, got %+v (ok=%v)", "rm", s, ok)
	}
}

func TestClassify_SingleQuotedIsData(t *testing.T) {
	cmd := `echo 'drop table users'`
	res := Classify(cmd)

	s, ok := findKind(res.Spans, cmd, "'drop table users'")
	if !ok || s.Kind != Data {
		t.Fatalf("expected single-quoted argument to be Data, got %+v (ok=%v)", s, ok)
	}
}

func TestClassify_SafeStringArgRegistry(t *testing.T) {
	cmd := `git commit -m "rm -rf /"`
	res := Classify(cmd)

	s, ok := findKind(res.Spans, cmd, `"rm -rf /"`)
	if !ok {
		t.Fatalf("expected commit message span to be found")
	}
	if s.Kind != Argument || s.Context != "data" {
		t.Fatalf("expected commit message to be Argument/data, got %+v", s)
	}
}

func TestClassify_SudoTransparency(t *testing.T) {
	cmd := "sudo rm -rf /"
	res := Classify(cmd)

	sudo, ok := findKind(res.Spans, cmd, "sudo")
	if !ok || sudo.Kind != Executed {
		t.Fatalf("expected sudo itself to be Executed, got %+v", sudo)
	}
	rm, ok := findKind(res.Spans, cmd, "rm")
	if !ok || rm.Kind != Executed {
		t.Fatalf("expected effective head after sudo to be Executed, got %+v", rm)
	}
}

func TestClassify_InlineCodeFlag(t *testing.T) {
	cmd := `python3 -c "import os; os.system('rm -rf /')"`
	res := Classify(cmd)

	var found bool
	for _, s := range res.Spans {
		if s.Kind == InlineCode && s.Language == "python" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected an InlineCode span with language python, got %+v", res.Spans)
	}
}

func TestClassify_Heredoc(t *testing.T) {
	cmd := "cat <<EOF\nrm -rf /\nEOF\n"
	res := Classify(cmd)

	if len(res.Heredocs) != 1 {
		t.Fatalf("expected exactly one heredoc introducer, got %d", len(res.Heredocs))
	}
	if res.Heredocs[0].Delimiter != "EOF" {
		t.Fatalf("expected delimiter EOF, got %q", res.Heredocs[0].Delimiter)
	}

	var hasBody bool
	for _, s := range res.Spans {
		if s.Kind == HeredocBody {
			hasBody = true
		}
	}
	if !hasBody {
		t.Fatalf("expected a HeredocBody span, got %+v", res.Spans)
	}
}

func TestClassify_Comment(t *testing.T) {
	cmd := "ls # a comment"
	res := Classify(cmd)

	var found bool
	for _, s := range res.Spans {
		if s.Kind == Comment {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected a Comment span, got %+v", res.Spans)
	}
}

func TestClassify_EmptyCommand(t *testing.T) {
	res := Classify("")
	if len(res.Spans) != 0 {
		t.Fatalf("expected no spans for empty command, got %+v", res.Spans)
	}
}

func TestClassify_UnparseableFallsBack(t *testing.T) {
	cmd := `echo "unterminated`
	res := Classify(cmd)

	if len(res.Spans) == 0 {
		t.Fatalf("expected fallback classification to still produce spans")
	}
	if res.Spans[0].Kind != Executed {
		t.Fatalf("expected fallback head span to be Executed, got %+v", res.Spans[0])
	}
}

func TestClassify_FillsGaps(t *testing.T) {
	cmd := "rm -rf /"
	res := Classify(cmd)

	covered := make([]bool, len(cmd))
	for _, s := range res.Spans {
		for i := s.Start; i < s.End && i < len(covered); i++ {
			covered[i] = true
		}
	}
	for i, c := range covered {
		if !c {
			t.Fatalf("byte offset %d not covered by any span", i)
		}
	}
}

func TestSpan_TextOutOfRange(t *testing.T) {
	s := Span{Start: 5, End: 2}
	if got := s.Text("hello world"); got != "" {
		t.Fatalf("expected empty text for invalid range, got %q", got)
	}
}
