// Package span tiles a normalized command string into classified byte
// ranges. It is the structural basis every downstream pass (keyword
// gating, pattern matching, the safe string-argument registry) reads
// from instead of re-scanning raw text.
//
// Classification leans on mvdan.cc/sh/v3/syntax for segment and word
// boundaries, the same library the teacher's structural analyzer uses
// to walk a command's AST, and falls back to a hand-written lexical
// scan when the parser rejects the input outright.
package span

import (
	"strings"

	"mvdan.cc/sh/v3/syntax"
)

// Kind classifies one byte range of a command.
type Kind string

const (
	Executed    Kind = "Executed"
	InlineCode  Kind = "InlineCode"
	Argument    Kind = "Argument"
	Data        Kind = "Data"
	HeredocBody Kind = "HeredocBody"
	Comment     Kind = "Comment"
	Unknown     Kind = "Unknown"
)

// Span is a half-open byte range [Start, End) over the command with a
// classification and, for InlineCode spans, an inferred language.
type Span struct {
	Start    int
	End      int
	Kind     Kind
	Language string // set only for InlineCode / HeredocBody
	Context  string // "data" for safe string-argument registry hits
}

func (s Span) Text(command string) string {
	if s.Start < 0 || s.End > len(command) || s.Start > s.End {
		return ""
	}
	return command[s.Start:s.End]
}

// Result is the output of Classify: the full tiling plus the heredoc
// introducers discovered along the way (consumed by the heredoc tier).
type Result struct {
	Spans    []Span
	Heredocs []HeredocIntro
	Notes    []string
}

// HeredocIntro records a heredoc/here-string introducer site so the
// tiered scanner (internal/heredoc) can re-derive the body without a
// second full parse.
type HeredocIntro struct {
	Op         string // "<<", "<<-", "<<~", "<<<"
	Delimiter  string
	QuotedStop bool // delimiter was quoted: no expansion in body
	BodyStart  int
	BodyEnd    int
}

// interpreters is the set of command heads treated as inline-code
// hosts when followed by -c/-e/-p/--command.
var interpreters = map[string]bool{
	"bash": true, "sh": true, "zsh": true, "dash": true, "ksh": true,
	"python": true, "python3": true, "python2": true,
	"node": true, "nodejs": true,
	"perl": true, "ruby": true,
}

// inlineFlags maps an interpreter's inline-code flag to the language it
// introduces. "-c"/"--command" carry shell semantics for shell hosts and
// the host's own language for scripting hosts; callers disambiguate by
// the head.
var inlineFlagNames = map[string]bool{
	"-c": true, "-e": true, "-p": true, "--command": true,
}

// safeStringArgRegistry is the minimal viable (command, flag) -> data
// table from spec §4.2/§9: message-style flags whose value is inert
// text, never executed.
var safeStringArgRegistry = map[string]map[string]bool{
	"git":    {"-m": true, "--message": true},
	"bd":     {"--description": true},
	"rg":     {"-e": true},
	"grep":   {"-e": true, "-E": true},
	"echo":   {},
	"printf": {},
}

const maxSubstitutionDepth = 8

// Classify tiles normalized into Span values per spec §4.2. It never
// fails outright: unparseable regions degrade to Unknown, which the
// evaluator treats as Executed.
func Classify(normalized string) Result {
	var res Result
	if normalized == "" {
		return res
	}

	parser := syntax.NewParser(syntax.KeepComments(true), syntax.Variant(syntax.LangBash))
	file, err := parser.Parse(strings.NewReader(normalized), "")
	if err != nil {
		res.Notes = append(res.Notes, "span: parse failed, falling back to lexical scan")
		return fallbackClassify(normalized)
	}

	c := &classifier{src: normalized}
	for _, stmt := range file.Stmts {
		c.walkStmt(stmt, 0)
	}
	c.collectComments(file)
	c.fillGaps()
	return Result{Spans: c.spans, Heredocs: c.heredocs, Notes: res.Notes}
}

type classifier struct {
	src      string
	spans    []Span
	heredocs []HeredocIntro
}

func (c *classifier) add(s Span) {
	if s.Start >= s.End {
		return
	}
	c.spans = append(c.spans, s)
}

func (c *classifier) collectComments(file *syntax.File) {
	syntax.Walk(file, func(node syntax.Node) bool {
		if cmt, ok := node.(*syntax.Comment); ok {
			start := int(cmt.Hash.Offset())
			end := start + 1 + len(cmt.Text)
			if end > len(c.src) {
				end = len(c.src)
			}
			c.add(Span{Start: start, End: end, Kind: Comment})
		}
		return true
	})
}

func (c *classifier) walkStmt(stmt *syntax.Stmt, depth int) {
	if stmt == nil || stmt.Cmd == nil || depth > maxSubstitutionDepth {
		return
	}

	switch cmd := stmt.Cmd.(type) {
	case *syntax.CallExpr:
		c.walkCall(cmd, depth)
	case *syntax.BinaryCmd:
		c.walkStmt(cmd.X, depth)
		c.walkStmt(cmd.Y, depth)
	case *syntax.Subshell:
		for _, s := range cmd.Stmts {
			c.walkStmt(s, depth)
		}
	case *syntax.Block:
		for _, s := range cmd.Stmts {
			c.walkStmt(s, depth)
		}
	default:
		// Unrecognized node shapes (functions, if/for, etc.) still get
		// their word list, if any, classified via the generic word walk.
	}

	for _, r := range stmt.Redirs {
		c.walkRedirect(r, depth)
	}
}

func (c *classifier) walkRedirect(r *syntax.Redirect, depth int) {
	switch r.Op {
	case syntax.Hdoc, syntax.DashHdoc:
		op := "<<"
		if r.Op == syntax.DashHdoc {
			op = "<<-"
		}
		c.emitHeredoc(r, op, depth)
	case syntax.WordHdoc:
		c.emitHeredoc(r, "<<~", depth)
	case syntax.RdrAll, syntax.AppAll, syntax.RdrIn, syntax.RdrOut:
		// plain redirection targets are Argument/Data, not executable
		if r.Word != nil {
			start, end := wordRange(r.Word)
			c.add(Span{Start: start, End: end, Kind: Argument, Context: "data"})
		}
	}
}

func (c *classifier) emitHeredoc(r *syntax.Redirect, op string, depth int) {
	if r.Hdoc == nil {
		return
	}
	start, end := wordRange(r.Hdoc)
	delim := ""
	quoted := false
	if r.Word != nil {
		delim = wordLiteral(r.Word)
		quoted = wordIsQuoted(r.Word)
	}
	c.add(Span{Start: start, End: end, Kind: HeredocBody})
	c.heredocs = append(c.heredocs, HeredocIntro{
		Op: op, Delimiter: delim, QuotedStop: quoted, BodyStart: start, BodyEnd: end,
	})
}

func (c *classifier) walkCall(call *syntax.CallExpr, depth int) {
	words := call.Args
	if len(words) == 0 {
		return
	}

	headStart, headEnd := wordRange(words[0])
	head := wordLiteral(words[0])
	c.add(Span{Start: headStart, End: headEnd, Kind: Executed})

	// sudo transparency: the next non-flag word becomes the effective head
	// for inline-flag and safe-string-arg purposes, but sudo's own word is
	// still Executed above.
	effectiveHead := strings.TrimPrefix(head, "\\")
	idx := 1
	if effectiveHead == "sudo" {
		for idx < len(words) {
			w := wordLiteral(words[idx])
			if !strings.HasPrefix(w, "-") {
				break
			}
			idx++
		}
		if idx < len(words) {
			s, e := wordRange(words[idx])
			c.add(Span{Start: s, End: e, Kind: Executed})
			effectiveHead = wordLiteral(words[idx])
			idx++
		}
	}

	argRegistry := safeStringArgRegistry[effectiveHead]

	for i := idx; i < len(words); i++ {
		w := words[i]
		lit := wordLiteral(w)
		start, end := wordRange(w)

		if interpreters[effectiveHead] && inlineFlagNames[lit] && i+1 < len(words) {
			bodyStart, bodyEnd := wordRange(words[i+1])
			lang := inlineLanguage(effectiveHead)
			c.add(Span{Start: start, End: end, Kind: Argument})
			c.add(Span{Start: bodyStart, End: bodyEnd, Kind: InlineCode, Language: lang})

			if sub := c.tryParseInline(wordLiteral(words[i+1])); sub != nil {
				for _, s := range sub.Stmts {
					c.walkStmt(s, depth+1)
				}
			}
			i++
			continue
		}

		if argRegistry != nil && argRegistry[lit] && i+1 < len(words) {
			nextStart, nextEnd := wordRange(words[i+1])
			c.add(Span{Start: start, End: end, Kind: Argument})
			c.add(Span{Start: nextStart, End: nextEnd, Kind: Argument, Context: "data"})
			i++
			continue
		}

		if wordHasDollarParen(w) {
			c.walkSubstitutions(w, depth)
		}

		if wordIsSingleQuoted(w) {
			c.add(Span{Start: start, End: end, Kind: Data})
		} else {
			c.add(Span{Start: start, End: end, Kind: Argument})
		}
	}
}

func (c *classifier) tryParseInline(body string) *syntax.File {
	if strings.TrimSpace(body) == "" {
		return nil
	}
	parser := syntax.NewParser(syntax.Variant(syntax.LangBash))
	f, err := parser.Parse(strings.NewReader(body), "")
	if err != nil {
		return nil
	}
	return f
}

func (c *classifier) walkSubstitutions(w *syntax.Word, depth int) {
	if depth >= maxSubstitutionDepth {
		return
	}
	for _, part := range w.Parts {
		cs, ok := part.(*syntax.CmdSubst)
		if !ok {
			continue
		}
		for _, s := range cs.Stmts {
			c.walkStmt(s, depth+1)
		}
	}
}

// fillGaps covers any byte range not already classified with Unknown,
// satisfying the tiling invariant (spans partition the command exactly).
func (c *classifier) fillGaps() {
	if len(c.src) == 0 {
		return
	}
	type iv struct{ start, end int }
	sorted := make([]iv, len(c.spans))
	for i, s := range c.spans {
		sorted[i] = iv{s.Start, s.End}
	}
	// simple insertion sort; span counts per command are small
	for i := 1; i < len(sorted); i++ {
		j := i
		for j > 0 && sorted[j-1].start > sorted[j].start {
			sorted[j-1], sorted[j] = sorted[j], sorted[j-1]
			j--
		}
	}

	pos := 0
	var filled []Span
	for _, iv := range sorted {
		if iv.start > pos {
			filled = append(filled, Span{Start: pos, End: iv.start, Kind: Unknown})
		}
		if iv.end > pos {
			pos = iv.end
		}
	}
	if pos < len(c.src) {
		filled = append(filled, Span{Start: pos, End: len(c.src), Kind: Unknown})
	}
	c.spans = append(c.spans, filled...)
}

func inlineLanguage(head string) string {
	switch head {
	case "bash", "sh", "zsh", "dash", "ksh":
		return "bash"
	case "python", "python3", "python2":
		return "python"
	case "node", "nodejs":
		return "node"
	case "perl":
		return "perl"
	case "ruby":
		return "ruby"
	}
	return ""
}

func wordRange(w *syntax.Word) (int, int) {
	if w == nil || len(w.Parts) == 0 {
		return 0, 0
	}
	start := int(w.Parts[0].Pos().Offset())
	end := int(w.End().Offset())
	return start, end
}

func wordLiteral(w *syntax.Word) string {
	if w == nil {
		return ""
	}
	var sb strings.Builder
	if err := syntax.NewPrinter().Print(&sb, w); err != nil {
		return ""
	}
	return sb.String()
}

// wordIsSingleQuoted reports whether a word is entirely one single-quoted
// part (no concatenation with unquoted text).
func wordIsSingleQuoted(w *syntax.Word) bool {
	if w == nil || len(w.Parts) != 1 {
		return false
	}
	_, ok := w.Parts[0].(*syntax.SglQuoted)
	return ok
}

func wordIsQuoted(w *syntax.Word) bool {
	if w == nil {
		return false
	}
	for _, p := range w.Parts {
		switch p.(type) {
		case *syntax.SglQuoted, *syntax.DblQuoted:
			return true
		}
	}
	return false
}

func wordHasDollarParen(w *syntax.Word) bool {
	if w == nil {
		return false
	}
	for _, p := range w.Parts {
		if _, ok := p.(*syntax.CmdSubst); ok {
			return true
		}
	}
	return false
}

// fallbackClassify runs when the shell parser rejects the input outright
// (unbalanced quotes, exotic syntax). It degrades conservatively: the
// first whitespace-delimited token is Executed, everything else is
// Unknown, which the evaluator treats as Executed — fail closed for the
// span, never fail open.
func fallbackClassify(normalized string) Result {
	var spans []Span
	end := strings.IndexAny(normalized, " \t")
	if end < 0 {
		spans = append(spans, Span{Start: 0, End: len(normalized), Kind: Executed})
		return Result{Spans: spans, Notes: []string{"span: fallback lexical scan"}}
	}
	spans = append(spans, Span{Start: 0, End: end, Kind: Executed})
	spans = append(spans, Span{Start: end, End: len(normalized), Kind: Unknown})
	return Result{Spans: spans, Notes: []string{"span: fallback lexical scan"}}
}
