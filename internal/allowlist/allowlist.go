// Package allowlist implements the layered exception list from spec
// §3/§4.5: project, user, and system TOML files whose entries bypass a
// single matched rule, never an entire pack. Loading follows the
// teacher corpus's config-loading idiom (BurntSushi/toml, warn-and-drop
// on invalid entries, never fail the whole load for one bad entry).
package allowlist

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"github.com/BurntSushi/toml"
)

// Layer identifies which file an entry or match came from.
type Layer string

const (
	LayerProject Layer = "project"
	LayerUser    Layer = "user"
	LayerSystem  Layer = "system"
)

// Entry is one allowlist rule. Exactly one of Rule/ExactCommand/
// CommandPrefix/Pattern must be set; Context is required alongside
// CommandPrefix, RiskAcknowledged is required alongside Pattern.
type Entry struct {
	Rule             string     `toml:"rule"`
	ExactCommand     string     `toml:"exact_command"`
	CommandPrefix    string     `toml:"command_prefix"`
	Context          string     `toml:"context"`
	Pattern          string     `toml:"pattern"`
	RiskAcknowledged bool       `toml:"risk_acknowledged"`
	Reason           string     `toml:"reason"`
	AddedBy          string     `toml:"added_by"`
	AddedAt          time.Time  `toml:"added_at"`
	ExpiresAt        *time.Time `toml:"expires_at"`

	Layer Layer `toml:"-"`
}

func (e Entry) expired(now time.Time) bool {
	return e.ExpiresAt != nil && now.After(*e.ExpiresAt)
}

// wellShaped reports whether exactly one discriminant field is set and
// its required companion fields are present, per spec §4.5's
// validation contract.
func (e Entry) wellShaped() (bool, string) {
	count := 0
	if e.Rule != "" {
		count++
	}
	if e.ExactCommand != "" {
		count++
	}
	if e.CommandPrefix != "" {
		count++
	}
	if e.Pattern != "" {
		count++
	}
	if count != 1 {
		return false, "exactly one of rule, exact_command, command_prefix, pattern is required"
	}
	if e.CommandPrefix != "" && e.Context == "" {
		return false, "command_prefix entries require context"
	}
	if e.Pattern != "" && !e.RiskAcknowledged {
		return false, "pattern entries require risk_acknowledged = true"
	}
	return true, ""
}

type fileShape struct {
	Entries []Entry `toml:"entries"`
}

// List is the merged, precedence-ordered allowlist: project entries
// first, then user, then system, per spec §4.5 ("project -> user ->
// system").
type List struct {
	Entries []Entry
}

// Load reads the project/user/system allowlist files that exist,
// validates each entry, drops invalid or expired ones with a warning,
// and returns them in precedence order. A missing file is not an
// error; it contributes no entries.
func Load(projectPath, userPath, systemPath string) (*List, []string) {
	var warnings []string
	l := &List{}

	for layer, path := range map[Layer]string{
		LayerProject: projectPath,
		LayerUser:    userPath,
		LayerSystem:  systemPath,
	} {
		if path == "" {
			continue
		}
		entries, warns := loadFile(path, layer)
		warnings = append(warnings, warns...)
		l.Entries = append(l.Entries, entries...)
	}

	// Re-order deterministically: project, user, system, preserving
	// within-layer file order.
	ordered := &List{}
	for _, layer := range []Layer{LayerProject, LayerUser, LayerSystem} {
		for _, e := range l.Entries {
			if e.Layer == layer {
				ordered.Entries = append(ordered.Entries, e)
			}
		}
	}
	return ordered, warnings
}

func loadFile(path string, layer Layer) ([]Entry, []string) {
	var warnings []string

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, nil
	}

	var shape fileShape
	if _, err := toml.DecodeFile(path, &shape); err != nil {
		return nil, []string{fmt.Sprintf("allowlist %s: failed to parse, skipping entirely: %v", path, err)}
	}

	now := time.Now()
	var valid []Entry
	for i, e := range shape.Entries {
		if ok, reason := e.wellShaped(); !ok {
			warnings = append(warnings, fmt.Sprintf("allowlist %s entry %d: %s, dropped", path, i, reason))
			continue
		}
		if e.expired(now) {
			warnings = append(warnings, fmt.Sprintf("allowlist %s entry %d: expired, dropped", path, i))
			continue
		}
		e.Layer = layer
		valid = append(valid, e)
	}
	return valid, warnings
}

// Match is the outcome of checking a candidate verdict against the
// allowlist: which entry matched and at which layer.
type Match struct {
	Entry Entry
	Layer Layer
}

// Bypass consults the list for an entry that bypasses the given
// candidate deny, per spec §4.4 step 4. cwd is used for command_prefix
// context matching.
func Bypass(list *List, packID, patternName, normalizedCommand string, paths []string) (*Match, bool) {
	if list == nil {
		return nil, false
	}
	ruleID := packID + ":" + patternName
	for _, e := range list.Entries {
		switch {
		case e.Rule != "" && e.Rule == ruleID:
			return &Match{Entry: e, Layer: e.Layer}, true
		case e.ExactCommand != "" && e.ExactCommand == normalizedCommand:
			return &Match{Entry: e, Layer: e.Layer}, true
		case e.CommandPrefix != "" && matchesPrefix(e, normalizedCommand, paths):
			return &Match{Entry: e, Layer: e.Layer}, true
		case e.Pattern != "" && matchesPattern(e.Pattern, normalizedCommand):
			return &Match{Entry: e, Layer: e.Layer}, true
		}
	}
	return nil, false
}

func matchesPrefix(e Entry, normalizedCommand string, paths []string) bool {
	if len(normalizedCommand) < len(e.CommandPrefix) || normalizedCommand[:len(e.CommandPrefix)] != e.CommandPrefix {
		return false
	}
	if e.Context == "" {
		return true
	}
	for _, p := range paths {
		if filepath.Clean(p) == filepath.Clean(e.Context) {
			return true
		}
	}
	return false
}

// matchesPattern compiles the allowlist entry's regex with the stdlib
// engine. risk_acknowledged pattern entries are trusted, user-authored
// bypass rules, not the large detection-pack corpus pack.CompiledRegex
// serves (no lookaround requirement documented for this use), so the
// extra Linear/Backtracking indirection would add nothing here.
func matchesPattern(pattern, command string) bool {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return false
	}
	return re.MatchString(command)
}
