// Package evaluator implements the two-pass decision engine of spec
// §4.4: normalize -> classify -> quick reject -> safe pass ->
// destructive pass -> allowlist bypass -> allow-once consumption ->
// heredoc escalation -> verdict.
package evaluator

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/dcg-tools/dcg/internal/allowlist"
	"github.com/dcg-tools/dcg/internal/heredoc"
	"github.com/dcg-tools/dcg/internal/heuristic"
	"github.com/dcg-tools/dcg/internal/ledger"
	"github.com/dcg-tools/dcg/internal/normalize"
	"github.com/dcg-tools/dcg/internal/pack"
	"github.com/dcg-tools/dcg/internal/span"
	"github.com/dcg-tools/dcg/internal/unicode"
)

// Decision is the binary verdict spec §3 mandates: nuance lives in
// Severity, not in a third decision value.
type Decision string

const (
	Allow Decision = "allow"
	Deny  Decision = "deny"
)

// TraceStep is one recorded operation, present only when Verdict.Trace
// is requested (explain mode).
type TraceStep struct {
	Stage string
	Note  string
}

// Verdict is the evaluator's output, matching spec §3 exactly.
type Verdict struct {
	Decision      Decision
	RuleID        string
	PackID        string
	Severity      pack.Severity
	Confidence    float64
	Reason        string
	Suggestion    string
	AllowOnceCode string
	Source        string // "safe_pattern", "allowlist", "allow_once", "default", "heredoc", "unicode_threat"
	Trace         []TraceStep
}

// Input bundles everything the evaluator needs for one command.
type Input struct {
	Command     string
	Cwd         string
	ScopePath   string // repository root, or Cwd if none found
	Registry    *Registry
	Allowlist   *allowlist.List
	Ledger      *ledger.Ledger
	WantTrace   bool
}

// Registry is the subset of pack.Registry state the evaluator consumes:
// an already-resolved, enabled pack list.
type Registry struct {
	Enabled []*pack.Pack
}

// candidate is an in-flight destructive match before allowlist/allow-once
// resolution.
type candidate struct {
	pack    *pack.Pack
	pattern *pack.Pattern
}

// Evaluate runs the full pipeline for a single command.
func Evaluate(in Input) Verdict {
	var trace []TraceStep
	note := func(stage, text string) {
		if in.WantTrace {
			trace = append(trace, TraceStep{Stage: stage, Note: text})
		}
	}

	normResult := normalize.Normalize(in.Command)
	note("normalize", normResult.Normalized)

	// Unicode smuggling (zero-width joiners, bidi overrides, tag
	// characters) can split a destructive keyword so the quick-reject
	// keyword gate below never sees it; a block-severity threat must
	// therefore be checked before that gate, not after it.
	uniResult := unicode.Scan(normResult.Normalized)
	var uniBlock *unicode.Threat
	for i, threat := range uniResult.Threats {
		note("unicode", threat.Category+" "+threat.Codepoint)
		if threat.Severity == "block" && uniBlock == nil {
			uniBlock = &uniResult.Threats[i]
		}
	}

	spanResult := span.Classify(normResult.Normalized)
	note("classify", "spans="+strconv.Itoa(len(spanResult.Spans)))

	tokens := executedTokens(normResult.Normalized, spanResult.Spans)
	matchView := matchableView(normResult.Normalized, spanResult.Spans)

	candidates := pack.CandidatePacks(in.Registry.Enabled, tokens)
	if len(candidates) == 0 && uniBlock == nil {
		note("quick_reject", "no keyword matched, allow")
		return Verdict{Decision: Allow, Source: "default", Confidence: 1.0, Trace: trace}
	}

	// Safe pass.
	for _, p := range candidates {
		for _, pat := range p.SafePatterns {
			re, err := pat.Compiled()
			if err != nil || re == nil {
				continue
			}
			if re.MatchString(matchView) {
				note("safe_pass", p.ID+":"+pat.Name)
				return Verdict{Decision: Allow, Source: "safe_pattern", Confidence: 1.0, Trace: trace}
			}
		}
	}

	// Destructive pass.
	var hit *candidate
	var hitPack *pack.Pack
	var hitPattern *pack.Pattern
outer:
	for _, p := range candidates {
		for _, pat := range p.DestructivePatterns {
			re, err := pat.Compiled()
			if err != nil || re == nil {
				continue
			}
			if re.MatchString(matchView) {
				hitPack, hitPattern = p, pat
				hit = &candidate{pack: p, pattern: pat}
				note("destructive_pass", p.ID+":"+pat.Name)
				break outer
			}
		}
	}

	// ruleID/packID/severity/reason/suggestion/confidence/source describe
	// whichever stage below first produces a deny candidate: a destructive
	// pattern, the heuristic pass, or heredoc escalation. Allowlist and
	// allow-once resolution apply uniformly regardless of which stage hit.
	var ruleID, packID, reason, suggestion, source string
	var severity pack.Severity
	var confidence float64

	switch {
	case hit != nil:
		ruleID, packID, severity, reason, suggestion, source, confidence =
			hitPack.ID+":"+hitPattern.Name, hitPack.ID, hitPattern.Severity, hitPattern.Reason, hitPattern.Suggestion, "destructive_pattern", 0.9

	case uniBlock != nil:
		note("unicode_block", uniBlock.Category)
		ruleID, packID, severity, reason, source, confidence =
			uniBlock.RuleID(), "unicode", pack.SeverityCritical, uniBlock.Description, "unicode_threat", 0.95

	default:
		// Heuristic pass: escalation-only, runs after the destructive pass
		// so it only ever adds a deny, never removes one, per SPEC_FULL.md
		// §3.1. It inspects the unmasked normalized command, since the
		// obfuscation/injection signals it looks for often live inside the
		// string arguments matchableView intentionally excludes.
		if best, ok := heuristic.Best(heuristic.Analyze(normResult.Normalized)); ok {
			note("heuristic", best.ID)
			ruleID, packID, severity, reason, source, confidence =
				"heuristic:"+best.ID, "heuristic", best.Severity, best.Description, "heuristic", best.Confidence
		} else if hasHeredocOrInline(spanResult.Spans) {
			if finding, ok := heredoc.Scan(normResult.Normalized, spanResult, in.Registry.Enabled); ok {
				note("heredoc", finding.RuleID)
				packID = "heredoc." + finding.Language
				ruleID = packID + ":" + strings.TrimPrefix(finding.RuleID, packID+".")
				severity, reason, source, confidence = finding.Severity, finding.Reason, "heredoc", 0.85
			}
		}
	}

	if ruleID == "" {
		note("final", "no destructive match, allow")
		return Verdict{Decision: Allow, Source: "default", Confidence: 1.0, Trace: trace}
	}

	paths := normalize.ExtractContext(strings.Fields(normResult.Normalized), in.Cwd).Paths
	if m, ok := allowlist.Bypass(in.Allowlist, packID, strings.TrimPrefix(ruleID, packID+":"), normResult.Normalized, paths); ok {
		note("allowlist", string(m.Layer)+":"+m.Entry.Reason)
		return Verdict{Decision: Allow, Source: "allowlist", Confidence: 1.0, Trace: trace}
	}

	if in.Ledger != nil {
		if consumed, _ := in.Ledger.TryConsume(normResult.Normalized, in.ScopePath); consumed {
			note("allow_once", "primed code consumed")
			return Verdict{Decision: Allow, Source: "allow_once", Confidence: 1.0, Trace: trace}
		}
	}

	v := Verdict{
		Decision:   Deny,
		RuleID:     ruleID,
		PackID:     packID,
		Severity:   severity,
		Confidence: confidence,
		Reason:     reason,
		Suggestion: suggestion,
		Source:     source,
		Trace:      trace,
	}
	if in.Ledger != nil {
		if code, err := in.Ledger.Issue(normResult.Normalized, in.ScopePath); err == nil {
			v.AllowOnceCode = code
		}
	}
	return v
}

func hasHeredocOrInline(spans []span.Span) bool {
	for _, s := range spans {
		if s.Kind == span.HeredocBody || s.Kind == span.InlineCode {
			return true
		}
	}
	return false
}

// matchableView reconstructs the portion of the command that will
// actually execute: Executed, InlineCode, and ordinary Argument spans
// verbatim, with Data, Comment, HeredocBody spans and safe-string-
// registry "data" Arguments masked to spaces of equal length so byte
// offsets (and thus multi-word patterns like "git reset --hard") still
// line up, while inert literals never contribute to a match. This is
// the evaluator's resolution of spec §4.2/§4.4's pattern-matching
// target: the Kind enum tags the command head Executed and everything
// else in the segment Argument, so destructive/safe patterns must run
// against the reconstructed segment, not a single isolated span.
func matchableView(command string, spans []span.Span) string {
	buf := []byte(command)
	for _, s := range spans {
		mask := s.Kind == span.Data || s.Kind == span.Comment || s.Kind == span.HeredocBody ||
			(s.Kind == span.Argument && s.Context == "data")
		if !mask {
			continue
		}
		for i := s.Start; i < s.End && i < len(buf); i++ {
			if buf[i] != '\n' {
				buf[i] = ' '
			}
		}
	}
	return string(buf)
}

// executedTokens returns the set of whole tokens appearing inside
// Executed/InlineCode spans, for keyword gating per spec §4.3.
func executedTokens(command string, spans []span.Span) map[string]bool {
	tokens := make(map[string]bool)
	for _, s := range spans {
		if s.Kind != span.Executed && s.Kind != span.InlineCode {
			continue
		}
		for _, tok := range strings.Fields(s.Text(command)) {
			tokens[strings.Trim(tok, "'\"")] = true
		}
	}
	return tokens
}

// ScopePath walks upward from cwd looking for .git, falling back to
// cwd itself, per spec §4.5's scope rule.
func ScopePath(cwd string) string {
	dir := cwd
	for {
		if _, err := os.Stat(filepath.Join(dir, ".git")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return cwd
		}
		dir = parent
	}
}
