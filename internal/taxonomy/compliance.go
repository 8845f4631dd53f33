package taxonomy

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// ComplianceStandard defines an industry standard a rule pack can be
// mapped against, such as OWASP's LLM Top 10. dcg ships with this one
// standard under compliance/standards/, but the loader places no limit
// on how many an operator drops in alongside it.
type ComplianceStandard struct {
	ID      string         `yaml:"id"`
	Name    string         `yaml:"name"`
	Version string         `yaml:"version"`
	URL     string         `yaml:"url"`
	Items   []StandardItem `yaml:"items"`
}

// StandardItem is a single item within a compliance standard.
type StandardItem struct {
	ID   string `yaml:"id"`
	Name string `yaml:"name"`
	URL  string `yaml:"url"`
}

// ComplianceIndex is the reverse index from a standard's items to the
// taxonomy entry IDs that map to them, built for rendering the
// compliance/indexes/ markdown pages.
type ComplianceIndex struct {
	StandardID string
	Standard   ComplianceStandard
	Mappings   map[string][]string // item ID -> []taxonomy entry ID
}

// LoadStandards loads all compliance standard definitions from a directory.
// Files prefixed with underscore are treated as drafts and skipped.
func LoadStandards(dir string) (map[string]ComplianceStandard, error) {
	standards := make(map[string]ComplianceStandard)

	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return standards, nil
		}
		return nil, fmt.Errorf("reading standards directory: %w", err)
	}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if !strings.HasSuffix(name, ".yaml") && !strings.HasSuffix(name, ".yml") {
			continue
		}
		// Underscore prefix = draft/disabled
		baseName := strings.TrimSuffix(name, filepath.Ext(name))
		if strings.HasPrefix(baseName, "_") {
			continue
		}

		path := filepath.Join(dir, name)
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading standard %s: %w", name, err)
		}

		var std ComplianceStandard
		if err := yaml.Unmarshal(data, &std); err != nil {
			return nil, fmt.Errorf("parsing standard %s: %w", name, err)
		}
		standards[std.ID] = std
	}

	return standards, nil
}

// ValidItemIDs returns a set of valid item IDs for a standard.
func ValidItemIDs(std ComplianceStandard) map[string]bool {
	ids := make(map[string]bool, len(std.Items))
	for _, item := range std.Items {
		ids[item.ID] = true
	}
	return ids
}

// BuildComplianceIndex scans every taxonomy entry for a mapping against
// std.ID and builds the item -> entry-ID reverse index.
func BuildComplianceIndex(std ComplianceStandard, entries []TaxonomyEntry) ComplianceIndex {
	idx := ComplianceIndex{
		StandardID: std.ID,
		Standard:   std,
		Mappings:   make(map[string][]string),
	}

	for _, entry := range entries {
		items, ok := entry.Compliance[std.ID]
		if !ok {
			continue
		}
		for _, itemID := range items {
			idx.Mappings[itemID] = append(idx.Mappings[itemID], entry.ID)
		}
	}

	return idx
}

// GenerateIndexMarkdown renders a compliance index as the markdown pages
// published under compliance/indexes/, one per standard.
func GenerateIndexMarkdown(idx ComplianceIndex, entries map[string]TaxonomyEntry) string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("# %s\n\n", idx.Standard.Name))
	sb.WriteString("> Generated from the taxonomy's compliance mappings by generate_index.go. Do not edit manually.\n")
	sb.WriteString(fmt.Sprintf("> Source: [%s](%s)\n\n", idx.Standard.Name, idx.Standard.URL))

	// Sort items by ID for stable output
	sortedItems := make([]StandardItem, len(idx.Standard.Items))
	copy(sortedItems, idx.Standard.Items)
	sort.Slice(sortedItems, func(i, j int) bool {
		return sortedItems[i].ID < sortedItems[j].ID
	})

	for _, item := range sortedItems {
		sb.WriteString(fmt.Sprintf("## %s: %s\n\n", item.ID, item.Name))
		if item.URL != "" {
			sb.WriteString(fmt.Sprintf("[View standard entry](%s)\n\n", item.URL))
		}

		ruleIDs, ok := idx.Mappings[item.ID]
		if !ok || len(ruleIDs) == 0 {
			sb.WriteString("_No rules mapped yet._\n\n")
			continue
		}

		sort.Strings(ruleIDs)
		for _, wID := range ruleIDs {
			entry, found := entries[wID]
			if found {
				sb.WriteString(fmt.Sprintf("- **%s** — %s (Risk: %s)\n",
					entry.Name, strings.TrimSpace(entry.Abstract), entry.RiskLevel))
			} else {
				sb.WriteString(fmt.Sprintf("- `%s` _(entry not found)_\n", wID))
			}
		}
		sb.WriteString("\n")
	}

	return sb.String()
}
