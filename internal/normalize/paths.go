package normalize

import (
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// ExtractedContext holds filesystem paths and network domains mentioned in
// a command's arguments, used by protected-path checks and the allowlist's
// command_prefix context matching. Adapted from the teacher's normalizer,
// which folded this into the same pass as wrapper-stripping; spec §4.1
// keeps those concerns separate, so this lives alongside, not inside, the
// canonicalization pipeline.
type ExtractedContext struct {
	Paths   []string
	Domains []string
}

var domainRegex = regexp.MustCompile(`https?://([^/\s'"]+)`)

// ExtractContext scans a command's whitespace-delimited arguments for
// filesystem paths and network domains. cwd is used to resolve relative
// paths to absolute ones for protected-path comparison.
func ExtractContext(args []string, cwd string) ExtractedContext {
	ctx := ExtractedContext{Paths: []string{}, Domains: []string{}}
	if len(args) == 0 {
		return ctx
	}

	homeDir, _ := os.UserHomeDir()

	for _, arg := range args[1:] {
		if looksLikePath(arg) {
			ctx.Paths = append(ctx.Paths, expandPath(arg, cwd, homeDir))
		}
		if domains := extractDomains(arg); len(domains) > 0 {
			ctx.Domains = append(ctx.Domains, domains...)
		}
	}

	if filepath.Base(args[0]) == "git" && len(args) > 2 && args[1] == "clone" {
		if strings.HasPrefix(args[2], "git@") {
			if domain := extractGitDomain(args[2]); domain != "" {
				ctx.Domains = append(ctx.Domains, domain)
			}
		}
	}

	ctx.Domains = uniqueStrings(ctx.Domains)
	return ctx
}

func looksLikePath(arg string) bool {
	if strings.HasPrefix(arg, "-") {
		return false
	}
	if strings.HasPrefix(arg, "http://") || strings.HasPrefix(arg, "https://") {
		return false
	}
	return strings.HasPrefix(arg, "/") ||
		strings.HasPrefix(arg, "./") ||
		strings.HasPrefix(arg, "../") ||
		strings.HasPrefix(arg, "~/") ||
		strings.Contains(arg, "/")
}

func expandPath(path, cwd, homeDir string) string {
	if strings.HasPrefix(path, "~/") && homeDir != "" {
		path = filepath.Join(homeDir, path[2:])
	}
	if !filepath.IsAbs(path) {
		path = filepath.Join(cwd, path)
	}
	return filepath.Clean(path)
}

func extractDomains(s string) []string {
	matches := domainRegex.FindAllStringSubmatch(s, -1)
	domains := make([]string, 0, len(matches))
	for _, match := range matches {
		if len(match) > 1 {
			domains = append(domains, match[1])
		}
	}
	return domains
}

func extractGitDomain(repoURL string) string {
	if strings.HasPrefix(repoURL, "git@") {
		parts := strings.SplitN(repoURL, ":", 2)
		if len(parts) > 0 {
			return strings.TrimPrefix(parts[0], "git@")
		}
	}
	if strings.HasPrefix(repoURL, "http://") || strings.HasPrefix(repoURL, "https://") {
		if u, err := url.Parse(repoURL); err == nil {
			return u.Host
		}
	}
	return ""
}

func uniqueStrings(input []string) []string {
	seen := make(map[string]bool)
	result := make([]string, 0, len(input))
	for _, s := range input {
		if !seen[s] {
			seen[s] = true
			result = append(result, s)
		}
	}
	return result
}
