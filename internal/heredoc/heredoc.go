// Package heredoc implements the tiered trigger -> extract -> AST-match
// scanner from spec §4.6: it inspects heredoc bodies and inline
// interpreter invocations the top-level evaluator's single-segment
// matching can't see into.
//
// Bash bodies are routed back through the same pack-matching logic the
// evaluator uses at the top level (spec §4.6: "Bash extracts are
// routed back through the evaluator proper"); this package takes the
// enabled pack list as a parameter rather than importing
// internal/evaluator, to avoid a import cycle (evaluator already
// imports heredoc to perform the escalation in spec §4.4 step 6).
// Python/Node/Ruby bodies use small heuristic matchers in place of a
// real tree-sitter grammar, since no example repo in the pack carries
// a tree-sitter binding — see DESIGN.md.
package heredoc

import (
	"regexp"
	"strings"

	"github.com/dcg-tools/dcg/internal/pack"
	"github.com/dcg-tools/dcg/internal/span"
)

const (
	maxHeredocsPerCommand = 10
	maxBodyBytes          = 1 << 20
	maxBodyLines          = 10000
)

// Finding is a destructive candidate surfaced by the tiered scanner.
type Finding struct {
	RuleID   string
	Language string
	Severity pack.Severity
	Reason   string
}

// Scan runs tiers 1-3 over a normalized command's classified spans.
// enabled is the registry's currently-enabled pack list, used only for
// the bash-body re-match; python/node/ruby matching uses a fixed,
// built-in construct list per spec §4.6.
func Scan(normalized string, spanResult span.Result, enabled []*pack.Pack) (Finding, bool) {
	bodies := extract(normalized, spanResult)
	if len(bodies) > maxHeredocsPerCommand {
		bodies = bodies[:maxHeredocsPerCommand] // cap exceeded: abandon fail-open for the remainder
	}

	for _, b := range bodies {
		if len(b.text) > maxBodyBytes {
			continue // cap exceeded: fail open for this body
		}
		if strings.Count(b.text, "\n") > maxBodyLines {
			continue
		}

		lang := inferLanguage(b)
		switch lang {
		case "bash":
			if f, ok := matchBash(b.text, enabled); ok {
				return f, true
			}
		case "python":
			if f, ok := matchPython(b.text); ok {
				return f, true
			}
		case "node":
			if f, ok := matchNode(b.text); ok {
				return f, true
			}
		case "ruby":
			if f, ok := matchRuby(b.text); ok {
				return f, true
			}
		}
	}
	return Finding{}, false
}

type body struct {
	text          string
	interpreter   string // command head that introduced this body, "" for heredocs
	shebangLang   string
}

// extract implements tier 2: derive the body text for every heredoc
// and inline-code span the classifier recorded.
func extract(command string, r span.Result) []body {
	var out []body

	for _, intro := range r.Heredocs {
		text := command[intro.BodyStart:intro.BodyEnd]
		switch intro.Op {
		case "<<-":
			text = stripLeadingTabs(text)
		case "<<~":
			text = stripCommonIndent(text)
		}
		out = append(out, body{text: text})
	}

	for _, s := range r.Spans {
		if s.Kind == span.InlineCode {
			out = append(out, body{text: s.Text(command), interpreter: s.Language})
		}
	}

	return out
}

func stripLeadingTabs(text string) string {
	lines := strings.Split(text, "\n")
	for i, l := range lines {
		lines[i] = strings.TrimPrefix(l, "\t")
		for strings.HasPrefix(lines[i], "\t") {
			lines[i] = strings.TrimPrefix(lines[i], "\t")
		}
	}
	return strings.Join(lines, "\n")
}

func stripCommonIndent(text string) string {
	lines := strings.Split(text, "\n")
	minIndent := -1
	for _, l := range lines {
		if strings.TrimSpace(l) == "" {
			continue
		}
		indent := len(l) - len(strings.TrimLeft(l, " \t"))
		if minIndent == -1 || indent < minIndent {
			minIndent = indent
		}
	}
	if minIndent <= 0 {
		return text
	}
	for i, l := range lines {
		if len(l) >= minIndent {
			lines[i] = l[minIndent:]
		}
	}
	return strings.Join(lines, "\n")
}

// inferLanguage applies spec §4.6's priority: interpreter head, then
// shebang, then content heuristics.
func inferLanguage(b body) string {
	if b.interpreter != "" {
		return b.interpreter
	}

	firstLine := b.text
	if idx := strings.IndexByte(b.text, '\n'); idx >= 0 {
		firstLine = b.text[:idx]
	}
	firstLine = strings.TrimSpace(firstLine)
	if strings.HasPrefix(firstLine, "#!") {
		switch {
		case strings.Contains(firstLine, "python"):
			return "python"
		case strings.Contains(firstLine, "node"):
			return "node"
		case strings.Contains(firstLine, "ruby"):
			return "ruby"
		case strings.Contains(firstLine, "bash") || strings.Contains(firstLine, "sh"):
			return "bash"
		}
	}

	switch {
	case strings.Contains(b.text, "import ") || strings.Contains(b.text, "from ") && strings.Contains(b.text, "shutil"):
		return "python"
	case strings.Contains(b.text, "require("):
		return "node"
	case strings.Contains(b.text, "use strict;") || strings.Contains(b.text, "FileUtils"):
		return "ruby"
	}
	return "bash"
}

var pythonDestructive = []struct {
	name    string
	pattern *regexp.Regexp
	sev     pack.Severity
	reason  string
}{
	{"shutil_rmtree", regexp.MustCompile(`shutil\.rmtree\(`), pack.SeverityHigh, "shutil.rmtree recursively deletes a directory tree with no trash."},
	{"subprocess_rm_rf", regexp.MustCompile(`subprocess\.(run|call|Popen)\(\s*\[?['"]?rm['"]?.*-rf`), pack.SeverityHigh, "subprocess invocation of rm -rf."},
	{"os_remove_root", regexp.MustCompile(`os\.(remove|unlink)\(['"]\/['"]`), pack.SeverityCritical, "removes a root-level path."},
}

func matchPython(text string) (Finding, bool) {
	for _, c := range pythonDestructive {
		if c.pattern.MatchString(text) {
			return Finding{RuleID: "heredoc.python." + c.name, Language: "python", Severity: c.sev, Reason: c.reason}, true
		}
	}
	return Finding{}, false
}

var nodeDestructive = []struct {
	name    string
	pattern *regexp.Regexp
	sev     pack.Severity
	reason  string
}{
	{"fs_rmsync_recursive", regexp.MustCompile(`fs\.rmSync\([^)]*recursive\s*:\s*true`), pack.SeverityHigh, "fs.rmSync with recursive:true deletes a directory tree."},
	{"fs_rm_recursive", regexp.MustCompile(`fs\.rm\([^)]*recursive\s*:\s*true`), pack.SeverityHigh, "fs.rm with recursive:true deletes a directory tree."},
}

func matchNode(text string) (Finding, bool) {
	for _, c := range nodeDestructive {
		if c.pattern.MatchString(text) {
			return Finding{RuleID: "heredoc.node." + c.name, Language: "node", Severity: c.sev, Reason: c.reason}, true
		}
	}
	return Finding{}, false
}

var rubyDestructive = []struct {
	name    string
	pattern *regexp.Regexp
	sev     pack.Severity
	reason  string
}{
	{"fileutils_rm_rf", regexp.MustCompile(`FileUtils\.rm_rf\(`), pack.SeverityHigh, "FileUtils.rm_rf recursively removes a path with no trash."},
	{"fileutils_remove_entry_secure", regexp.MustCompile(`FileUtils\.remove_entry_secure\(`), pack.SeverityMedium, "FileUtils.remove_entry_secure recursively removes a path."},
}

func matchRuby(text string) (Finding, bool) {
	for _, c := range rubyDestructive {
		if c.pattern.MatchString(text) {
			return Finding{RuleID: "heredoc.ruby." + c.name, Language: "ruby", Severity: c.sev, Reason: c.reason}, true
		}
	}
	return Finding{}, false
}

// matchBash re-tiles a bash body and runs it through the same
// candidate-pack / destructive-pattern matching the top-level evaluator
// uses, per spec §4.6's instruction that bash extracts route back
// through the evaluator proper rather than a bespoke AST matcher.
func matchBash(text string, enabled []*pack.Pack) (Finding, bool) {
	bodySpans := span.Classify(text)
	tokens := make(map[string]bool)
	for _, s := range bodySpans.Spans {
		if s.Kind != span.Executed && s.Kind != span.InlineCode {
			continue
		}
		for _, tok := range strings.Fields(s.Text(text)) {
			tokens[strings.Trim(tok, "'\"")] = true
		}
	}

	candidates := pack.CandidatePacks(enabled, tokens)
	for _, p := range candidates {
		for _, pat := range p.DestructivePatterns {
			re, err := pat.Compiled()
			if err != nil || re == nil {
				continue
			}
			if re.MatchString(text) {
				return Finding{
					RuleID:   "heredoc.bash." + pat.Name,
					Language: "bash",
					Severity: pat.Severity,
					Reason:   pat.Reason,
				}, true
			}
		}
	}
	return Finding{}, false
}
