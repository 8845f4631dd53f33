package pack

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// SchemaVersion is the only external pack schema version this release
// understands. Unknown versions are rejected per spec §6.
const SchemaVersion = 1

type packFile struct {
	SchemaVersion       int              `yaml:"schema_version"`
	ID                  string           `yaml:"id"`
	Name                string           `yaml:"name"`
	Version             string           `yaml:"version"`
	Description         string           `yaml:"description"`
	Keywords            []string         `yaml:"keywords"`
	DestructivePatterns []patternFile    `yaml:"destructive_patterns"`
	SafePatterns        []patternFile    `yaml:"safe_patterns"`
}

type patternFile struct {
	Name        string `yaml:"name"`
	Pattern     string `yaml:"pattern"`
	Severity    string `yaml:"severity"`
	Description string `yaml:"description"`
	Explanation string `yaml:"explanation"`
	Suggestion  string `yaml:"suggestion"`
	Taxonomy    string `yaml:"taxonomy"`
}

// LoadExternalPack reads and validates a YAML schema-v1 pack file from
// disk, per spec §6's external pack file contract.
func LoadExternalPack(path string) (*Pack, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read pack file %s: %w", path, err)
	}
	return parsePackFile(data, path)
}

func parsePackFile(data []byte, context string) (*Pack, error) {
	var pf packFile
	if err := yaml.Unmarshal(data, &pf); err != nil {
		return nil, fmt.Errorf("parse pack file %s: %w", context, err)
	}

	if pf.SchemaVersion != SchemaVersion {
		return nil, fmt.Errorf("pack file %s: unknown schema_version %d", context, pf.SchemaVersion)
	}
	if pf.ID == "" || pf.Name == "" || pf.Version == "" {
		return nil, fmt.Errorf("pack file %s: missing required field (id/name/version)", context)
	}

	p := &Pack{
		ID:          pf.ID,
		Name:        pf.Name,
		Version:     pf.Version,
		Description: pf.Description,
		Keywords:    pf.Keywords,
	}
	for _, dp := range pf.DestructivePatterns {
		p.DestructivePatterns = append(p.DestructivePatterns, &Pattern{
			Name:        dp.Name,
			Source:      dp.Pattern,
			Severity:    Severity(dp.Severity),
			Reason:      dp.Description,
			Explanation: dp.Explanation,
			Suggestion:  dp.Suggestion,
			Taxonomy:    dp.Taxonomy,
		})
	}
	for _, sp := range pf.SafePatterns {
		p.SafePatterns = append(p.SafePatterns, &Pattern{
			Name:        sp.Name,
			Source:      sp.Pattern,
			Reason:      sp.Description,
			Explanation: sp.Explanation,
		})
	}
	return p, nil
}
