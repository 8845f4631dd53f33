// Package heuristic provides the escalation-only obfuscation and
// prompt-injection signal pass described in SPEC_FULL.md §3.1: fixed
// destructive/safe patterns can't see instruction-override phrasing,
// base64/hex-encoded payloads, or bulk-exfiltration shapes, so this
// pass inspects the whole normalized command for those signals and
// hands any hit to the evaluator as an additional deny candidate. It
// never turns a deny back into an allow.
package heuristic

import "github.com/dcg-tools/dcg/internal/pack"

// Signal is one heuristic detection.
type Signal struct {
	// ID is a short, unique identifier (e.g., "instruction_override").
	ID string

	// Category groups related signals (e.g., "prompt-injection", "obfuscation").
	Category string

	// Severity mirrors the pack severity scale so heuristic hits sort
	// alongside pattern-pack hits.
	Severity pack.Severity

	// Confidence is 0.0-1.0, how certain the rule is.
	Confidence float64

	// Description explains why this signal fired.
	Description string
}
