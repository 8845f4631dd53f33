// Package config implements spec §4.8's layered configuration loader:
// system -> user -> project -> environment -> CLI precedence, merged
// into one effective policy. Loading follows the teacher's config.go
// idiom (resolve well-known paths, ensure the directory exists,
// tolerate a missing file) generalized across five layers instead of
// one.
package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/dcg-tools/dcg/internal/dcgerr"
)

const (
	DefaultConfigDir = ".config/dcg"
	DefaultFileName  = "config.toml"
)

// HeredocConfig mirrors the heredoc.* schema keys from spec §4.8.
type HeredocConfig struct {
	Enabled              bool     `toml:"enabled"`
	TimeoutMs            int      `toml:"timeout_ms"`
	MaxBodyBytes         int      `toml:"max_body_bytes"`
	MaxBodyLines         int      `toml:"max_body_lines"`
	MaxHeredocs          int      `toml:"max_heredocs"`
	Languages            []string `toml:"languages"`
	FallbackOnParseError bool     `toml:"fallback_on_parse_error"`
	FallbackOnTimeout    bool     `toml:"fallback_on_timeout"`
}

// ScanConfig mirrors the scan.* schema keys from spec §4.8.
type ScanConfig struct {
	FailOn       string   `toml:"fail_on"`
	Format       string   `toml:"format"`
	Redact       string   `toml:"redact"`
	Truncate     int      `toml:"truncate"`
	MaxFileSize  int      `toml:"max_file_size"`
	MaxFindings  int      `toml:"max_findings"`
	PathsInclude []string `toml:"paths_include"`
	PathsExclude []string `toml:"paths_exclude"`
}

// PacksConfig mirrors the packs.* schema keys from spec §4.8.
type PacksConfig struct {
	Enabled     []string `toml:"enabled"`
	Disabled    []string `toml:"disabled"`
	CustomPaths []string `toml:"custom_paths"`
}

// Config is the merged effective policy.
type Config struct {
	Packs   PacksConfig   `toml:"packs"`
	Heredoc HeredocConfig `toml:"heredoc"`
	Scan    ScanConfig    `toml:"scan"`

	// Set only from CLI/env, never from a file.
	Bypass  bool
	Verbose bool
	Color   string
	Robot   bool
}

func Default() Config {
	return Config{
		Heredoc: HeredocConfig{
			Enabled: true, TimeoutMs: 50, MaxBodyBytes: 1 << 20, MaxBodyLines: 10000,
			MaxHeredocs: 10, FallbackOnParseError: true, FallbackOnTimeout: true,
		},
		Scan:  ScanConfig{FailOn: "error", Format: "pretty", Redact: "quoted", Truncate: 0, MaxFileSize: 5 << 20},
		Color: "auto",
	}
}

// Paths resolves the well-known config.toml locations per spec §6.
type Paths struct {
	System  string
	User    string
	Project string
}

func DefaultPaths(projectRoot string) (Paths, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return Paths{}, err
	}
	p := Paths{
		System: filepath.Join("/etc/dcg", DefaultFileName),
		User:   filepath.Join(home, DefaultConfigDir, DefaultFileName),
	}
	if projectRoot != "" {
		p.Project = filepath.Join(projectRoot, ".dcg.toml")
	}
	return p, nil
}

// CLIOverrides carries flag-derived overrides, the highest-precedence
// layer.
type CLIOverrides struct {
	EnabledPacks  []string
	DisabledPacks []string
	FailOn        string
}

// Load merges the five layers of spec §4.8, lowest to highest: system
// file, user file, project file, environment variables, CLI flags.
// Unknown keys within a known schema are accepted with a warning
// (BurntSushi/toml's DecodeFile metadata reports them via Undecoded).
// A missing layer file is skipped; a parse error on a layer degrades
// to a warning rather than aborting the whole load, matching spec
// §7's "local recovery" policy for configuration problems.
func Load(paths Paths, env map[string]string, cli CLIOverrides) (Config, []string, error) {
	cfg := Default()
	var warnings []string

	for _, path := range []string{paths.System, paths.User, paths.Project} {
		if path == "" {
			continue
		}
		if _, err := os.Stat(path); os.IsNotExist(err) {
			continue
		}
		meta, err := toml.DecodeFile(path, &cfg)
		if err != nil {
			warnings = append(warnings, "config "+path+": "+dcgerr.ParseError(path, err).Error()+", skipping this layer")
			continue
		}
		for _, key := range meta.Undecoded() {
			warnings = append(warnings, "config "+path+": unknown key "+key.String()+", ignored")
		}
	}

	applyEnv(&cfg, env)
	applyCLI(&cfg, cli)

	return cfg, warnings, nil
}

func applyEnv(cfg *Config, env map[string]string) {
	if v, ok := env["DCG_PACKS"]; ok && v != "" {
		cfg.Packs.Enabled = append(cfg.Packs.Enabled, splitComma(v)...)
	}
	if v, ok := env["DCG_DISABLE"]; ok && v != "" {
		cfg.Packs.Disabled = append(cfg.Packs.Disabled, splitComma(v)...)
	}
	if v, ok := env["DCG_BYPASS"]; ok {
		cfg.Bypass = truthyEnv(v)
	}
	if v, ok := env["DCG_COLOR"]; ok && v != "" {
		cfg.Color = v
	}
	if v, ok := env["DCG_VERBOSE"]; ok {
		cfg.Verbose = truthyEnv(v)
	}
	if v, ok := env["DCG_ROBOT"]; ok {
		cfg.Robot = truthyEnv(v)
	}
}

func applyCLI(cfg *Config, cli CLIOverrides) {
	cfg.Packs.Enabled = append(cfg.Packs.Enabled, cli.EnabledPacks...)
	cfg.Packs.Disabled = append(cfg.Packs.Disabled, cli.DisabledPacks...)
	if cli.FailOn != "" {
		cfg.Scan.FailOn = cli.FailOn
	}
}

func splitComma(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

func truthyEnv(v string) bool {
	b, err := strconv.ParseBool(v)
	return err == nil && b
}

// EnsureDir creates the parent directory of path if it doesn't exist,
// matching the teacher's 0700 convention for dcg's config/data dirs.
func EnsureDir(path string) error {
	dir := filepath.Dir(path)
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return os.MkdirAll(dir, 0700)
	}
	return nil
}
