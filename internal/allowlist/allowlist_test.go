package allowlist

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	return path
}

func TestLoad_PrecedenceOrder(t *testing.T) {
	dir := t.TempDir()
	project := writeFile(t, dir, "project.toml", `
[[entries]]
rule = "core.filesystem:rm-rf-root"
reason = "project exception"
`)
	user := writeFile(t, dir, "user.toml", `
[[entries]]
exact_command = "rm -rf /tmp/build"
reason = "user exception"
`)
	system := writeFile(t, dir, "system.toml", `
[[entries]]
exact_command = "rm -rf /tmp/cache"
reason = "system exception"
`)

	list, warnings := Load(project, user, system)
	if len(warnings) != 0 {
		t.Fatalf("unexpected warnings: %v", warnings)
	}
	if len(list.Entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(list.Entries))
	}
	if list.Entries[0].Layer != LayerProject || list.Entries[1].Layer != LayerUser || list.Entries[2].Layer != LayerSystem {
		t.Fatalf("expected project, user, system order, got %+v", list.Entries)
	}
}

func TestLoad_MissingFileIsNotAnError(t *testing.T) {
	dir := t.TempDir()
	list, warnings := Load(filepath.Join(dir, "nope.toml"), "", "")
	if len(warnings) != 0 {
		t.Fatalf("expected no warnings for a missing file, got %v", warnings)
	}
	if len(list.Entries) != 0 {
		t.Fatalf("expected no entries, got %+v", list.Entries)
	}
}

func TestLoad_DropsInvalidEntryButKeepsOthers(t *testing.T) {
	dir := t.TempDir()
	project := writeFile(t, dir, "project.toml", `
[[entries]]
rule = "core.filesystem:rm-rf-root"
exact_command = "also set"

[[entries]]
exact_command = "rm -rf /tmp/build"
`)
	list, warnings := Load(project, "", "")
	if len(warnings) != 1 {
		t.Fatalf("expected exactly one warning, got %v", warnings)
	}
	if len(list.Entries) != 1 {
		t.Fatalf("expected the well-shaped entry to survive, got %+v", list.Entries)
	}
}

func TestLoad_DropsExpiredEntry(t *testing.T) {
	dir := t.TempDir()
	past := time.Now().Add(-time.Hour).UTC().Format(time.RFC3339)
	project := writeFile(t, dir, "project.toml", `
[[entries]]
exact_command = "rm -rf /tmp/build"
expires_at = "`+past+`"
`)
	list, warnings := Load(project, "", "")
	if len(warnings) != 1 {
		t.Fatalf("expected one warning for the expired entry, got %v", warnings)
	}
	if len(list.Entries) != 0 {
		t.Fatalf("expected the expired entry to be dropped, got %+v", list.Entries)
	}
}

func TestLoad_RequiresContextForCommandPrefix(t *testing.T) {
	dir := t.TempDir()
	project := writeFile(t, dir, "project.toml", `
[[entries]]
command_prefix = "rm -rf build/"
`)
	_, warnings := Load(project, "", "")
	if len(warnings) != 1 {
		t.Fatalf("expected a warning for a command_prefix entry missing context, got %v", warnings)
	}
}

func TestLoad_RequiresRiskAcknowledgedForPattern(t *testing.T) {
	dir := t.TempDir()
	project := writeFile(t, dir, "project.toml", `
[[entries]]
pattern = "^rm -rf build/.*"
`)
	_, warnings := Load(project, "", "")
	if len(warnings) != 1 {
		t.Fatalf("expected a warning for a pattern entry missing risk_acknowledged, got %v", warnings)
	}
}

func TestBypass_ByRule(t *testing.T) {
	list := &List{Entries: []Entry{{Rule: "core.filesystem:rm-rf-root", Layer: LayerProject}}}
	m, ok := Bypass(list, "core.filesystem", "rm-rf-root", "rm -rf /", nil)
	if !ok || m.Layer != LayerProject {
		t.Fatalf("expected a bypass match by rule, got %+v, %v", m, ok)
	}
}

func TestBypass_ByExactCommand(t *testing.T) {
	list := &List{Entries: []Entry{{ExactCommand: "rm -rf /tmp/build", Layer: LayerUser}}}
	if _, ok := Bypass(list, "core.filesystem", "rm-rf-root", "rm -rf /tmp/build", nil); !ok {
		t.Fatalf("expected a bypass match by exact command")
	}
	if _, ok := Bypass(list, "core.filesystem", "rm-rf-root", "rm -rf /tmp/other", nil); ok {
		t.Fatalf("expected no match for a different command")
	}
}

func TestBypass_ByCommandPrefixRequiresContext(t *testing.T) {
	list := &List{Entries: []Entry{{
		CommandPrefix: "rm -rf build/",
		Context:       "/repo",
		Layer:         LayerProject,
	}}}
	if _, ok := Bypass(list, "p", "n", "rm -rf build/output", []string{"/repo"}); !ok {
		t.Fatalf("expected a bypass match with matching context")
	}
	if _, ok := Bypass(list, "p", "n", "rm -rf build/output", []string{"/elsewhere"}); ok {
		t.Fatalf("expected no bypass without a matching context path")
	}
}

func TestBypass_ByPattern(t *testing.T) {
	list := &List{Entries: []Entry{{
		Pattern:          `^rm -rf build/.*`,
		RiskAcknowledged: true,
		Layer:            LayerProject,
	}}}
	if _, ok := Bypass(list, "p", "n", "rm -rf build/output", nil); !ok {
		t.Fatalf("expected a bypass match by pattern")
	}
	if _, ok := Bypass(list, "p", "n", "rm -rf /etc", nil); ok {
		t.Fatalf("expected no match for a command outside the pattern")
	}
}

func TestBypass_NilListNeverMatches(t *testing.T) {
	if _, ok := Bypass(nil, "p", "n", "rm -rf /", nil); ok {
		t.Fatalf("expected a nil list never to match")
	}
}
