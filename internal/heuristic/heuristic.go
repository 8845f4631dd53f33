package heuristic

import (
	"regexp"
	"strings"

	"github.com/dcg-tools/dcg/internal/pack"
)

type rule struct {
	signal Signal
	match  func(command string) bool
}

var rules = buildRules()

// Analyze runs every heuristic rule against the normalized command and
// returns every signal that fired, in rule-declaration order.
func Analyze(command string) []Signal {
	var signals []Signal
	for _, r := range rules {
		if r.match(command) {
			signals = append(signals, r.signal)
		}
	}
	return signals
}

var severityRank = map[pack.Severity]int{
	pack.SeverityCritical: 3,
	pack.SeverityHigh:     2,
	pack.SeverityMedium:   1,
	pack.SeverityLow:      0,
}

// Best returns the highest-severity signal (ties broken by confidence),
// the one the evaluator escalates on.
func Best(signals []Signal) (Signal, bool) {
	if len(signals) == 0 {
		return Signal{}, false
	}
	best := signals[0]
	for _, s := range signals[1:] {
		if severityRank[s.Severity] > severityRank[best.Severity] {
			best = s
			continue
		}
		if severityRank[s.Severity] == severityRank[best.Severity] && s.Confidence > best.Confidence {
			best = s
		}
	}
	return best, true
}

func buildRules() []rule {
	return []rule{
		{
			signal: Signal{
				ID: "instruction_override", Category: "prompt-injection",
				Severity: pack.SeverityHigh, Confidence: 0.85,
				Description: "command contains instruction-override language (e.g. 'ignore previous instructions')",
			},
			match: func(cmd string) bool { return matchesAny(cmd, instructionOverridePatterns) },
		},
		{
			signal: Signal{
				ID: "prompt_exfiltration", Category: "prompt-injection",
				Severity: pack.SeverityMedium, Confidence: 0.75,
				Description: "command attempts to reveal a system prompt or instructions",
			},
			match: func(cmd string) bool { return matchesAny(cmd, promptExfilPatterns) },
		},
		{
			signal: Signal{
				ID: "disable_security", Category: "security-bypass",
				Severity: pack.SeverityCritical, Confidence: 0.90,
				Description: "command attempts to disable or bypass security controls",
			},
			match: func(cmd string) bool { return matchesAny(cmd, disableSecurityPatterns) },
		},
		{
			signal: Signal{
				ID: "obfuscated_base64", Category: "obfuscation",
				Severity: pack.SeverityHigh, Confidence: 0.80,
				Description: "command contains a long base64-encoded payload that may hide malicious intent",
			},
			match: func(cmd string) bool { return base64PayloadPattern.MatchString(cmd) },
		},
		{
			signal: Signal{
				ID: "obfuscated_hex", Category: "obfuscation",
				Severity: pack.SeverityMedium, Confidence: 0.70,
				Description: "command contains hex escape sequences that may hide malicious intent",
			},
			match: func(cmd string) bool { return hexEscapePattern.MatchString(cmd) },
		},
		{
			signal: Signal{
				ID: "eval_risk", Category: "code-execution",
				Severity: pack.SeverityHigh, Confidence: 0.80,
				Description: "command uses eval/exec for dynamic code execution",
			},
			match: func(cmd string) bool { return evalRiskPattern.MatchString(cmd) },
		},
		{
			signal: Signal{
				ID: "bulk_exfiltration", Category: "data-exfiltration",
				Severity: pack.SeverityHigh, Confidence: 0.85,
				Description: "command archives and/or uploads a large directory, a potential bulk data exfiltration",
			},
			match: matchesBulkExfil,
		},
		{
			signal: Signal{
				ID: "secrets_in_command", Category: "credential-exposure",
				Severity: pack.SeverityHigh, Confidence: 0.75,
				Description: "command contains what appears to be an inline API key or secret token",
			},
			match: func(cmd string) bool { return secretsInCommandPattern.MatchString(cmd) },
		},
		{
			signal: Signal{
				ID: "indirect_injection", Category: "prompt-injection",
				Severity: pack.SeverityCritical, Confidence: 0.80,
				Description: "command contains embedded instructions targeting an AI agent (indirect injection)",
			},
			match: func(cmd string) bool { return matchesAny(cmd, indirectInjectionPatterns) },
		},
	}
}

var instructionOverridePatterns = compilePatterns([]string{
	`(?i)ignore\s+(all\s+)?(previous|prior|above)\s+(instructions?|rules?)`,
	`(?i)disregard\s+(all\s+)?(previous|prior|your)\s+(previous\s+)?(instructions?|rules?|guidelines?)`,
	`(?i)disregard\s+(all\s+)?your\s+(previous\s+)?(instructions?|rules?|guidelines?)`,
	`(?i)forget\s+(all\s+)?(your|previous)\s+(instructions?|rules?)`,
	`(?i)override\s+(all\s+)?(safety|security)\s+(rules?|protocols?|guidelines?)`,
	`(?i)you\s+are\s+now\s+(free|unrestricted|unfiltered)`,
	`(?i)new\s+instructions?:\s+`,
	`(?i)system\s*:\s*(you\s+are|ignore|forget)`,
})

var promptExfilPatterns = compilePatterns([]string{
	`(?i)(show|reveal|display|print|output)\s+(me\s+)?(your|the)\s+(system\s+)?prompt`,
	`(?i)(what\s+are|tell\s+me)\s+(your|the)\s+(instructions?|rules?|guidelines?)`,
	`(?i)repeat\s+(your\s+)?(system\s+)?(prompt|instructions?)`,
})

var disableSecurityPatterns = compilePatterns([]string{
	`(?i)(disable|turn\s+off|bypass|skip|ignore)\s+(dcg|security|guard|policy|policies)`,
	`(?i)(remove|delete|uninstall)\s+(dcg|security\s+guard)`,
	`(?i)--no-?(verify|check|security|guard|policy)`,
	`(?i)DCG_BYPASS`,
})

var indirectInjectionPatterns = compilePatterns([]string{
	`(?i)SYSTEM:\s*(ignore|forget|override|you\s+are)`,
	`(?i)\[INST\]`,
	`(?i)<\|im_start\|>system`,
	`(?i)BEGIN\s+HIDDEN\s+INSTRUCTIONS?`,
	`(?i)IMPORTANT:\s*(ignore|disregard|override)`,
})

// base64PayloadPattern matches base64 strings >= 40 chars, likely
// encoded payloads rather than short values.
var base64PayloadPattern = regexp.MustCompile(`[A-Za-z0-9+/]{40,}={0,2}`)

// hexEscapePattern matches sequences of 4+ hex escapes like \x41\x42\x43\x44.
var hexEscapePattern = regexp.MustCompile(`(\\\\?x[0-9a-fA-F]{2}){4,}`)

var evalRiskPattern = regexp.MustCompile(`(?i)\b(eval|exec)\s*\(`)

// secretsInCommandPattern matches inline API keys/tokens in commands:
// API_KEY=..., Bearer ..., ghp_..., sk-...
var secretsInCommandPattern = regexp.MustCompile(
	`(?i)(` +
		`(api[_-]?key|api[_-]?secret|auth[_-]?token|access[_-]?token)\s*[=:]\s*\S{8,}` +
		`|Bearer\s+[A-Za-z0-9._\-]{20,}` +
		`|ghp_[A-Za-z0-9]{36,}` +
		`|\bsk-[A-Za-z0-9]{20,}` +
		`|AKIA[A-Z0-9]{16}` +
		`)`,
)

func compilePatterns(patterns []string) []*regexp.Regexp {
	compiled := make([]*regexp.Regexp, len(patterns))
	for i, p := range patterns {
		compiled[i] = regexp.MustCompile(p)
	}
	return compiled
}

func matchesAny(s string, patterns []*regexp.Regexp) bool {
	for _, p := range patterns {
		if p.MatchString(s) {
			return true
		}
	}
	return false
}

// matchesBulkExfil detects archiving a broad directory and uploading it.
func matchesBulkExfil(cmd string) bool {
	lower := strings.ToLower(cmd)

	hasArchive := (strings.Contains(lower, "tar ") || strings.Contains(lower, "zip ")) &&
		(strings.Contains(lower, "~/") ||
			strings.Contains(lower, "$home") ||
			strings.Contains(lower, "/home/") ||
			strings.Contains(lower, ".git") ||
			strings.Contains(lower, "/repo"))

	hasUpload := strings.Contains(lower, "curl") ||
		strings.Contains(lower, "wget") ||
		strings.Contains(lower, "scp ") ||
		strings.Contains(lower, "rsync") ||
		strings.Contains(lower, "transfer.sh") ||
		strings.Contains(lower, "file.io") ||
		strings.Contains(lower, "0x0.st")

	if hasArchive && hasUpload {
		return true
	}

	if (strings.Contains(lower, "tar ") || strings.Contains(lower, "zip ")) &&
		strings.Contains(lower, "|") &&
		(strings.Contains(lower, "curl") || strings.Contains(lower, "nc ")) {
		return true
	}

	return false
}
