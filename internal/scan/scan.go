// Package scan implements spec §4.7's batch file-scanning mode: file
// extractors that pull embedded shell commands out of scripts,
// Dockerfiles, Makefiles, and GitHub Actions workflows, tag them with
// their source location, and feed them through the same evaluator used
// for live commands.
package scan

import (
	"bufio"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/dcg-tools/dcg/internal/evaluator"
	"github.com/dcg-tools/dcg/internal/pack"
)

// Finding is a verdict plus source location, per spec §3's ScanFinding.
type Finding struct {
	File            string
	Line            int
	Column          int
	ExtractorID     string
	ExtractedCommand string
	Verdict         evaluator.Verdict
}

// ExtractedCommand is what an extractor yields before evaluation.
type ExtractedCommand struct {
	Command string
	Line    int
	Column  int
}

// Extractor pulls commands out of one file's content.
type Extractor interface {
	ID() string
	Triggers(path string, firstLine string) bool
	Extract(content string) []ExtractedCommand
}

var extractors = []Extractor{
	shellScriptExtractor{},
	dockerfileRunExtractor{},
	dockerfileRunExecExtractor{},
	makefileRecipeExtractor{},
	githubActionsRunExtractor{},
}

// File runs every extractor whose trigger matches path against the
// file's content, keyword-gates the results against the enabled pack
// set, and evaluates survivors through evaluate (normally
// evaluator.Evaluate). templateInput supplies the shared Registry,
// Allowlist, Ledger, and Cwd; its Command field is overwritten per
// extracted command. Findings for one file are returned unsorted;
// callers merge across files and call Sort once over the full set.
func File(path string, enabled []*pack.Pack, templateInput evaluator.Input, evaluate func(evaluator.Input) evaluator.Verdict) ([]Finding, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	content := string(data)
	firstLine := content
	if idx := strings.IndexByte(content, '\n'); idx >= 0 {
		firstLine = content[:idx]
	}

	keywordSet := keywordIndex(enabled)

	var findings []Finding
	for _, ex := range extractors {
		if !ex.Triggers(path, firstLine) {
			continue
		}
		cmds := ex.Extract(content)
		if !anyKeyword(cmds, keywordSet) {
			continue
		}
		for _, c := range cmds {
			if !hasKeyword(c.Command, keywordSet) {
				continue
			}
			in := templateInput
			in.Command = c.Command
			v := evaluate(in)
			if v.Decision != evaluator.Deny {
				continue
			}
			findings = append(findings, Finding{
				File: path, Line: c.Line, Column: c.Column,
				ExtractorID: ex.ID(), ExtractedCommand: c.Command, Verdict: v,
			})
		}
	}
	return findings, nil
}

// Sort orders findings per spec §4.7: file ascending, then line, then
// column, then rule_id.
func Sort(findings []Finding) {
	sort.Slice(findings, func(i, j int) bool {
		a, b := findings[i], findings[j]
		if a.File != b.File {
			return a.File < b.File
		}
		if a.Line != b.Line {
			return a.Line < b.Line
		}
		if a.Column != b.Column {
			return a.Column < b.Column
		}
		return a.Verdict.RuleID < b.Verdict.RuleID
	})
}

func keywordIndex(enabled []*pack.Pack) map[string]bool {
	idx := make(map[string]bool)
	for _, p := range enabled {
		for _, kw := range p.Keywords {
			idx[kw] = true
		}
	}
	return idx
}

func anyKeyword(cmds []ExtractedCommand, keywords map[string]bool) bool {
	for _, c := range cmds {
		if hasKeyword(c.Command, keywords) {
			return true
		}
	}
	return false
}

func hasKeyword(command string, keywords map[string]bool) bool {
	if len(keywords) == 0 {
		return true
	}
	for _, tok := range strings.Fields(command) {
		if keywords[strings.Trim(tok, "'\"")] {
			return true
		}
	}
	return false
}

// --- shell.script ---

type shellScriptExtractor struct{}

func (shellScriptExtractor) ID() string { return "shell.script" }

var shebangShRe = regexp.MustCompile(`^#!.*sh\b`)

func (shellScriptExtractor) Triggers(path, firstLine string) bool {
	return strings.HasSuffix(path, ".sh") || shebangShRe.MatchString(firstLine)
}

func (shellScriptExtractor) Extract(content string) []ExtractedCommand {
	return extractContinuationLines(content, func(line string) bool {
		trimmed := strings.TrimSpace(line)
		return trimmed != "" && !strings.HasPrefix(trimmed, "#")
	})
}

// --- dockerfile.run ---

type dockerfileRunExtractor struct{}

func (dockerfileRunExtractor) ID() string { return "dockerfile.run" }

func (dockerfileRunExtractor) Triggers(path, firstLine string) bool {
	base := filepath.Base(path)
	return base == "Dockerfile" || strings.HasSuffix(path, ".dockerfile") || strings.HasPrefix(base, "Dockerfile.")
}

var dockerRunRe = regexp.MustCompile(`(?i)^\s*RUN\s+(.*)$`)

func (dockerfileRunExtractor) Extract(content string) []ExtractedCommand {
	var out []ExtractedCommand
	lines := strings.Split(content, "\n")
	for i := 0; i < len(lines); i++ {
		m := dockerRunRe.FindStringSubmatch(lines[i])
		if m == nil {
			continue
		}
		body := m[1]
		if strings.TrimSpace(body) == "" || strings.HasPrefix(strings.TrimSpace(body), "[") {
			continue // JSON array form handled by dockerfile.run.exec
		}
		startLine := i + 1
		for strings.HasSuffix(strings.TrimRight(body, " \t"), "\\") && i+1 < len(lines) {
			body = strings.TrimSuffix(strings.TrimRight(body, " \t"), "\\") + " " + lines[i+1]
			i++
		}
		out = append(out, ExtractedCommand{Command: strings.TrimSpace(body), Line: startLine, Column: 1})
	}
	return out
}

// --- dockerfile.run.exec ---

type dockerfileRunExecExtractor struct{}

func (dockerfileRunExecExtractor) ID() string { return "dockerfile.run.exec" }

func (dockerfileRunExecExtractor) Triggers(path, firstLine string) bool {
	base := filepath.Base(path)
	return base == "Dockerfile" || strings.HasSuffix(path, ".dockerfile") || strings.HasPrefix(base, "Dockerfile.")
}

var dockerRunExecRe = regexp.MustCompile(`(?i)^\s*RUN\s+(\[.*\])\s*$`)
var jsonArgRe = regexp.MustCompile(`"([^"]*)"`)

func (dockerfileRunExecExtractor) Extract(content string) []ExtractedCommand {
	var out []ExtractedCommand
	lines := strings.Split(content, "\n")
	for i, line := range lines {
		m := dockerRunExecRe.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		args := jsonArgRe.FindAllStringSubmatch(m[1], -1)
		if len(args) == 0 {
			continue
		}
		parts := make([]string, 0, len(args))
		for _, a := range args {
			parts = append(parts, a[1])
		}
		out = append(out, ExtractedCommand{Command: strings.Join(parts, " "), Line: i + 1, Column: 1})
	}
	return out
}

// --- makefile.recipe ---

type makefileRecipeExtractor struct{}

func (makefileRecipeExtractor) ID() string { return "makefile.recipe" }

func (makefileRecipeExtractor) Triggers(path, firstLine string) bool {
	base := filepath.Base(path)
	return base == "Makefile" || base == "makefile" || base == "MAKEFILE"
}

func (makefileRecipeExtractor) Extract(content string) []ExtractedCommand {
	var out []ExtractedCommand
	lines := strings.Split(content, "\n")
	for i := 0; i < len(lines); i++ {
		if !strings.HasPrefix(lines[i], "\t") {
			continue
		}
		startLine := i + 1
		body := strings.TrimPrefix(lines[i], "\t")
		for strings.HasSuffix(strings.TrimRight(body, " \t"), "\\") && i+1 < len(lines) {
			body = strings.TrimSuffix(strings.TrimRight(body, " \t"), "\\") + " " + strings.TrimPrefix(lines[i+1], "\t")
			i++
		}
		body = strings.TrimLeft(body, "@-+")
		body = strings.TrimSpace(body)
		if body == "" {
			continue
		}
		out = append(out, ExtractedCommand{Command: body, Line: startLine, Column: 2})
	}
	return out
}

// --- github_actions.steps.run ---

type githubActionsRunExtractor struct{}

func (githubActionsRunExtractor) ID() string { return "github_actions.steps.run" }

func (githubActionsRunExtractor) Triggers(path, firstLine string) bool {
	dir := filepath.ToSlash(filepath.Dir(path))
	return strings.Contains(dir, ".github/workflows") &&
		(strings.HasSuffix(path, ".yml") || strings.HasSuffix(path, ".yaml"))
}

var runKeyRe = regexp.MustCompile(`^(\s*)run:\s*(\||>)?\s*(.*)$`)

func (githubActionsRunExtractor) Extract(content string) []ExtractedCommand {
	var out []ExtractedCommand
	lines := strings.Split(content, "\n")
	for i := 0; i < len(lines); i++ {
		m := runKeyRe.FindStringSubmatch(lines[i])
		if m == nil {
			continue
		}
		indent := len(m[1])
		block := m[2]
		startLine := i + 1

		if block == "" {
			// scalar form on the same line
			out = append(out, ExtractedCommand{Command: strings.TrimSpace(m[3]), Line: startLine, Column: indent + 1})
			continue
		}

		// block scalar (| or >): subsequent more-indented lines belong to it
		var bodyLines []string
		j := i + 1
		for j < len(lines) {
			l := lines[j]
			if strings.TrimSpace(l) == "" {
				bodyLines = append(bodyLines, "")
				j++
				continue
			}
			lineIndent := len(l) - len(strings.TrimLeft(l, " "))
			if lineIndent <= indent {
				break
			}
			bodyLines = append(bodyLines, l)
			j++
		}
		i = j - 1

		for _, l := range bodyLines {
			trimmed := strings.TrimSpace(l)
			if trimmed == "" {
				continue
			}
			out = append(out, ExtractedCommand{Command: trimmed, Line: startLine, Column: indent + 1})
			break // report only the first command line of the run: block, attributed to its start line
		}
	}
	return out
}

// extractContinuationLines is shared by extractors that join
// backslash-continued lines and skip comments/blank lines.
func extractContinuationLines(content string, keep func(string) bool) []ExtractedCommand {
	var out []ExtractedCommand
	scanner := bufio.NewScanner(strings.NewReader(content))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	lineNo := 0
	var pending string
	pendingStart := 0

	flush := func() {
		if pending != "" {
			out = append(out, ExtractedCommand{Command: strings.TrimSpace(pending), Line: pendingStart, Column: 1})
		}
		pending = ""
	}

	for scanner.Scan() {
		lineNo++
		line := scanner.Text()
		if !keep(line) {
			flush()
			continue
		}
		if pending == "" {
			pendingStart = lineNo
		}
		trimmed := strings.TrimRight(line, " \t")
		if strings.HasSuffix(trimmed, "\\") {
			pending += strings.TrimSuffix(trimmed, "\\") + " "
			continue
		}
		pending += line
		flush()
	}
	flush()
	return out
}
