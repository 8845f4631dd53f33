package pack

import (
	"regexp"
	"strings"

	"github.com/dlclark/regexp2"
)

// needsBacktracking reports whether a regex source uses a construct
// Go's stdlib RE2 engine cannot express: lookahead (?=...)/(?!...),
// lookbehind (?<=...)/(?<!...), or backreferences (\1, \k<name>).
// This is a syntactic check, not a full parse — it only has to be
// conservative enough to route the ~15% of patterns spec §9 flags as
// needing lookaround to the Backtracking engine.
func needsBacktracking(source string) bool {
	if strings.Contains(source, "(?=") || strings.Contains(source, "(?!") ||
		strings.Contains(source, "(?<=") || strings.Contains(source, "(?<!") {
		return true
	}
	for i := 0; i < len(source)-1; i++ {
		if source[i] == '\\' && source[i+1] >= '1' && source[i+1] <= '9' {
			return true
		}
	}
	return strings.Contains(source, `\k<`)
}

// compile implements CompiledRegex::new from spec §4.3: try Linear
// first (unless the source clearly needs lookaround), fall back to
// Backtracking. Returns an error only when neither engine can compile
// the source at all.
func compile(source string) (*CompiledRegex, error) {
	if !needsBacktracking(source) {
		if re, err := regexp.Compile(source); err == nil {
			return &CompiledRegex{linear: re}, nil
		}
	}

	re2, err := regexp2.Compile(source, regexp2.None)
	if err != nil {
		return nil, err
	}
	return &CompiledRegex{backtrack: re2, backtracked: true}, nil
}
