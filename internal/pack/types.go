// Package pack holds detection-rule metadata in enable/disable units
// ("packs") and compiles their regex patterns lazily on first use,
// following spec §4.3. Pack data itself — which verbs are destructive
// for a given tool family — is out of scope for this package; it only
// supplies the contracts pack data must satisfy and a modest built-in
// set grounded on the teacher's own policy packs.
package pack

import (
	"regexp"
	"sync"

	"github.com/dlclark/regexp2"
)

// Severity classifies a destructive pattern's blast radius.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityMedium   Severity = "medium"
	SeverityLow      Severity = "low"
)

// Pattern is either a safe (whitelist) or destructive (blacklist) rule
// within a pack. Exactly one of the two pattern slices in Pack holds it;
// Severity/Suggestion only apply to destructive patterns.
type Pattern struct {
	Name        string
	Source      string // regex source, compiled lazily
	Severity    Severity
	Reason      string
	Explanation string
	Suggestion  string
	Taxonomy    string // optional reference into internal/taxonomy

	once     sync.Once
	compiled *CompiledRegex
	compErr  error
}

// Compiled lazily compiles Source on first call and caches the result
// for the process lifetime, per spec §4.3's get_or_init contract. A
// compile failure marks the pattern unusable (never matches) rather
// than killing the process; the error is returned once so the caller
// can log it and then ignore it.
func (p *Pattern) Compiled() (*CompiledRegex, error) {
	p.once.Do(func() {
		p.compiled, p.compErr = compile(p.Source)
	})
	return p.compiled, p.compErr
}

// Pack is the enable/disable unit. ID must match
// ^[a-z][a-z0-9_]*\.[a-z][a-z0-9_]*$.
type Pack struct {
	ID                   string
	Name                 string
	Version              string
	Description          string
	Keywords             []string
	SafePatterns         []*Pattern
	DestructivePatterns  []*Pattern
	External             bool // loaded from user configuration, not built in
}

// CompiledRegex is the two-variant compiled form spec §3/§9 requires:
// Linear (stdlib regexp, RE2, no lookaround) is preferred; Backtracking
// (dlclark/regexp2) is used only when the source needs lookahead or
// lookbehind that Linear cannot express.
type CompiledRegex struct {
	linear      *regexp.Regexp
	backtrack   *regexp2.Regexp
	backtracked bool
}

// MatchString reports whether the compiled pattern matches anywhere in s.
func (c *CompiledRegex) MatchString(s string) bool {
	if c == nil {
		return false
	}
	if !c.backtracked {
		return c.linear.MatchString(s)
	}
	ok, err := c.backtrack.MatchString(s)
	return err == nil && ok
}

// IsBacktracking reports whether this pattern required the fallback
// engine, for diagnostics and the boundary test in spec §8.
func (c *CompiledRegex) IsBacktracking() bool { return c != nil && c.backtracked }
