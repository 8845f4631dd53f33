package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/dcg-tools/dcg/internal/allowlist"
	"github.com/dcg-tools/dcg/internal/config"
	"github.com/dcg-tools/dcg/internal/evaluator"
	"github.com/dcg-tools/dcg/internal/ledger"
	"github.com/dcg-tools/dcg/internal/pack"
)

// environment bundles everything a command needs to evaluate or
// introspect commands: the merged configuration, the resolved pack
// registry, the layered allowlist, and the allow-once ledger.
type environment struct {
	Cfg      config.Config
	Registry *pack.Registry
	Enabled  []*pack.Pack
	Allow    *allowlist.List
	Ledger   *ledger.Ledger
	Cwd      string
	Scope    string
}

// loadEnvironment resolves configuration, packs, and the allowlist the
// same way for every subcommand, printing any non-fatal warnings to
// stderr unless robot mode is active.
func loadEnvironment(cliOverrides config.CLIOverrides) (*environment, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("resolve working directory: %w", err)
	}
	scope := evaluator.ScopePath(cwd)

	paths, err := config.DefaultPaths(scope)
	if err != nil {
		return nil, fmt.Errorf("resolve config paths: %w", err)
	}
	if v := os.Getenv("DCG_CONFIG"); v != "" {
		paths.Project = v
	}

	cfg, warnings, err := config.Load(paths, envMap(), cliOverrides)
	if err != nil {
		return nil, err
	}
	if robotFlag {
		cfg.Robot = true
	}
	warn(cfg, warnings...)

	var external []*pack.Pack
	for _, dir := range packDirs(scope) {
		external = append(external, loadPacksFromDir(cfg, dir)...)
	}

	registry, regErrs := pack.NewRegistry(external)
	for _, e := range regErrs {
		warn(cfg, e.Error())
	}

	allow, allowWarnings := allowlist.Load(
		filepath.Join(scope, "allowlist.toml"),
		userAllowlistPath(),
		"/etc/dcg/allowlist.toml",
	)
	warn(cfg, allowWarnings...)

	ledgerPath, err := ledger.DefaultPath()
	if err != nil {
		return nil, fmt.Errorf("resolve allow-once ledger path: %w", err)
	}

	enabled := registry.Enabled(cfg.Packs.Enabled, cfg.Packs.Disabled)

	return &environment{
		Cfg:      cfg,
		Registry: registry,
		Enabled:  enabled,
		Allow:    allow,
		Ledger:   ledger.Open(ledgerPath),
		Cwd:      cwd,
		Scope:    scope,
	}, nil
}

// cliOverrides builds config.CLIOverrides from the root command's
// persistent --enable/--disable flags.
func cliOverrides(failOn string) config.CLIOverrides {
	return config.CLIOverrides{
		EnabledPacks:  enabledPacksFlag,
		DisabledPacks: disabledPacksFlag,
		FailOn:        failOn,
	}
}

func (e *environment) input(command string, wantTrace bool) evaluator.Input {
	return evaluator.Input{
		Command:   command,
		Cwd:       e.Cwd,
		ScopePath: e.Scope,
		Registry:  &evaluator.Registry{Enabled: e.Enabled},
		Allowlist: e.Allow,
		Ledger:    e.Ledger,
		WantTrace: wantTrace,
	}
}

func envMap() map[string]string {
	out := make(map[string]string)
	for _, kv := range os.Environ() {
		if i := strings.IndexByte(kv, '='); i >= 0 {
			out[kv[:i]] = kv[i+1:]
		}
	}
	return out
}

// packDirs returns the well-known external-pack directories from spec
// §6's on-disk layout, system first so project-local packs load last
// and therefore take precedence on id collision detection order.
func packDirs(scope string) []string {
	var dirs []string
	dirs = append(dirs, "/etc/dcg/packs")
	if home, err := os.UserHomeDir(); err == nil {
		dirs = append(dirs, filepath.Join(home, ".config", "dcg", "packs"))
	}
	dirs = append(dirs, filepath.Join(scope, ".dcg", "packs"))
	return dirs
}

func loadPacksFromDir(cfg config.Config, dir string) []*pack.Pack {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}
	var out []*pack.Pack
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".yaml") {
			continue
		}
		p, err := pack.LoadExternalPack(filepath.Join(dir, entry.Name()))
		if err != nil {
			warn(cfg, fmt.Sprintf("pack %s: %v, skipped", entry.Name(), err))
			continue
		}
		out = append(out, p)
	}
	return out
}

func userAllowlistPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "dcg", "allowlist.toml")
}

// warn prints non-fatal diagnostics to stderr, matching spec §7's
// "local recovery: warn + continue" policy. Robot mode silences them
// since machine consumers only want the structured result on stdout.
func warn(cfg config.Config, messages ...string) {
	if cfg.Robot {
		return
	}
	for _, m := range messages {
		if m == "" {
			continue
		}
		fmt.Fprintf(os.Stderr, "dcg: warning: %s\n", m)
	}
}
