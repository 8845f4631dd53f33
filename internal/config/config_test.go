package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefault_HasSaneDefaults(t *testing.T) {
	cfg := Default()
	if !cfg.Heredoc.Enabled {
		t.Fatalf("expected heredoc scanning enabled by default")
	}
	if cfg.Scan.FailOn != "error" {
		t.Fatalf("expected default fail_on to be 'error', got %q", cfg.Scan.FailOn)
	}
	if cfg.Color != "auto" {
		t.Fatalf("expected default color to be 'auto', got %q", cfg.Color)
	}
}

func TestLoad_MissingFilesUsesDefaults(t *testing.T) {
	dir := t.TempDir()
	paths := Paths{
		System:  filepath.Join(dir, "system.toml"),
		User:    filepath.Join(dir, "user.toml"),
		Project: filepath.Join(dir, "project.toml"),
	}
	cfg, warnings, err := Load(paths, nil, CLIOverrides{})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(warnings) != 0 {
		t.Fatalf("expected no warnings for all-missing layers, got %v", warnings)
	}
	if cfg.Scan.FailOn != "error" {
		t.Fatalf("expected defaults to apply, got %+v", cfg)
	}
}

func TestLoad_ProjectOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	project := filepath.Join(dir, "project.toml")
	if err := os.WriteFile(project, []byte(`
[scan]
fail_on = "warning"

[packs]
enabled = ["database"]
`), 0600); err != nil {
		t.Fatalf("write project config: %v", err)
	}

	cfg, _, err := Load(Paths{Project: project}, nil, CLIOverrides{})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Scan.FailOn != "warning" {
		t.Fatalf("expected project config to override fail_on, got %q", cfg.Scan.FailOn)
	}
	if len(cfg.Packs.Enabled) != 1 || cfg.Packs.Enabled[0] != "database" {
		t.Fatalf("expected project config to set enabled packs, got %+v", cfg.Packs.Enabled)
	}
}

func TestLoad_ParseErrorDegradesToWarning(t *testing.T) {
	dir := t.TempDir()
	project := filepath.Join(dir, "project.toml")
	if err := os.WriteFile(project, []byte("not valid toml [[["), 0600); err != nil {
		t.Fatalf("write project config: %v", err)
	}

	cfg, warnings, err := Load(Paths{Project: project}, nil, CLIOverrides{})
	if err != nil {
		t.Fatalf("expected Load to tolerate a parse error, got err: %v", err)
	}
	if len(warnings) == 0 {
		t.Fatalf("expected a warning for the unparseable layer")
	}
	if cfg.Scan.FailOn != "error" {
		t.Fatalf("expected defaults to survive a skipped layer, got %q", cfg.Scan.FailOn)
	}
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	env := map[string]string{
		"DCG_PACKS":   "database,cloud",
		"DCG_DISABLE": "secrets",
		"DCG_BYPASS":  "true",
		"DCG_ROBOT":   "1",
	}
	cfg, _, err := Load(Paths{}, env, CLIOverrides{})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(cfg.Packs.Enabled) != 2 || cfg.Packs.Enabled[0] != "database" || cfg.Packs.Enabled[1] != "cloud" {
		t.Fatalf("expected env-derived enabled packs, got %+v", cfg.Packs.Enabled)
	}
	if len(cfg.Packs.Disabled) != 1 || cfg.Packs.Disabled[0] != "secrets" {
		t.Fatalf("expected env-derived disabled packs, got %+v", cfg.Packs.Disabled)
	}
	if !cfg.Bypass {
		t.Fatalf("expected DCG_BYPASS=true to set Bypass")
	}
	if !cfg.Robot {
		t.Fatalf("expected DCG_ROBOT=1 to set Robot")
	}
}

func TestLoad_CLIOverridesTakePrecedence(t *testing.T) {
	cli := CLIOverrides{
		EnabledPacks:  []string{"cicd"},
		DisabledPacks: []string{"storage"},
		FailOn:        "none",
	}
	cfg, _, err := Load(Paths{}, nil, cli)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Scan.FailOn != "none" {
		t.Fatalf("expected CLI fail_on override, got %q", cfg.Scan.FailOn)
	}
	if len(cfg.Packs.Enabled) != 1 || cfg.Packs.Enabled[0] != "cicd" {
		t.Fatalf("expected CLI enabled packs, got %+v", cfg.Packs.Enabled)
	}
}

func TestEnsureDir_CreatesParent(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "a", "b", "c.toml")
	if err := EnsureDir(target); err != nil {
		t.Fatalf("EnsureDir: %v", err)
	}
	if _, err := os.Stat(filepath.Dir(target)); err != nil {
		t.Fatalf("expected parent directory to exist: %v", err)
	}
}

func TestDefaultPaths_ResolvesWellKnownLocations(t *testing.T) {
	paths, err := DefaultPaths("/repo")
	if err != nil {
		t.Fatalf("DefaultPaths: %v", err)
	}
	if paths.Project != filepath.Join("/repo", ".dcg.toml") {
		t.Fatalf("unexpected project path: %s", paths.Project)
	}
	if paths.System != filepath.Join("/etc/dcg", DefaultFileName) {
		t.Fatalf("unexpected system path: %s", paths.System)
	}
}
