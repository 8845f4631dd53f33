package taxonomy

import (
	"embed"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed data
var embeddedData embed.FS

// Catalog holds all loaded taxonomy data: kingdoms, categories, and entries.
type Catalog struct {
	Kingdoms   []KingdomDef
	Categories []CategoryDef
	Entries    []TaxonomyEntry
	ByID       map[string]TaxonomyEntry   // weakness ID → entry
	ByKingdom  map[int][]TaxonomyEntry    // kingdom ID → entries
	ByCategory map[string][]TaxonomyEntry // category ID → entries
}

// Default loads the catalog built into the binary via go:embed: the
// small set of entries in data/ that back dcg's built-in pack taxonomy
// references.
func Default() (*Catalog, error) {
	sub, err := fs.Sub(embeddedData, "data")
	if err != nil {
		return nil, err
	}
	return loadCatalogFS(sub)
}

// LoadCatalog loads the full taxonomy from a root directory on disk,
// for operators who maintain their own taxonomy data instead of the
// embedded default. Expected structure:
//
//	<dir>/
//	  kingdoms.yaml
//	  <kingdom-dir>/
//	    _kingdom.yaml
//	    <category-dir>/
//	      _category.yaml
//	      <weakness>.yaml
func LoadCatalog(taxonomyDir string) (*Catalog, error) {
	return loadCatalogFS(os.DirFS(taxonomyDir))
}

func loadCatalogFS(fsys fs.FS) (*Catalog, error) {
	cat := &Catalog{
		ByID:       make(map[string]TaxonomyEntry),
		ByKingdom:  make(map[int][]TaxonomyEntry),
		ByCategory: make(map[string][]TaxonomyEntry),
	}

	if err := cat.loadKingdoms(fsys, "kingdoms.yaml"); err != nil {
		return nil, fmt.Errorf("loading kingdoms: %w", err)
	}

	topEntries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return nil, fmt.Errorf("reading taxonomy dir: %w", err)
	}

	for _, topEntry := range topEntries {
		if !topEntry.IsDir() {
			continue
		}
		kingdomDir := topEntry.Name()

		catEntries, err := fs.ReadDir(fsys, kingdomDir)
		if err != nil {
			continue
		}

		for _, catEntry := range catEntries {
			if !catEntry.IsDir() {
				continue
			}
			categoryDir := filepath.Join(kingdomDir, catEntry.Name())

			catMeta := filepath.Join(categoryDir, "_category.yaml")
			if data, err := fs.ReadFile(fsys, catMeta); err == nil {
				var cdef CategoryDef
				if err := yaml.Unmarshal(data, &cdef); err == nil {
					cat.Categories = append(cat.Categories, cdef)
				}
			}

			weaknessFiles, err := fs.ReadDir(fsys, categoryDir)
			if err != nil {
				continue
			}

			for _, wf := range weaknessFiles {
				if wf.IsDir() {
					continue
				}
				name := wf.Name()
				if strings.HasPrefix(name, "_") {
					continue
				}
				if !strings.HasSuffix(name, ".yaml") && !strings.HasSuffix(name, ".yml") {
					continue
				}

				path := filepath.Join(categoryDir, name)
				entry, err := loadEntry(fsys, path)
				if err != nil {
					return nil, fmt.Errorf("loading entry %s: %w", path, err)
				}

				cat.Entries = append(cat.Entries, entry)
				cat.ByID[entry.ID] = entry
				cat.ByKingdom[entry.KingdomID] = append(cat.ByKingdom[entry.KingdomID], entry)
				cat.ByCategory[entry.CategoryID] = append(cat.ByCategory[entry.CategoryID], entry)
			}
		}
	}

	return cat, nil
}

func (c *Catalog) loadKingdoms(fsys fs.FS, path string) error {
	data, err := fs.ReadFile(fsys, path)
	if err != nil {
		return err
	}
	var k Kingdoms
	if err := yaml.Unmarshal(data, &k); err != nil {
		return err
	}
	c.Kingdoms = k.Kingdoms
	return nil
}

func loadEntry(fsys fs.FS, path string) (TaxonomyEntry, error) {
	var entry TaxonomyEntry
	data, err := fs.ReadFile(fsys, path)
	if err != nil {
		return entry, err
	}
	if err := yaml.Unmarshal(data, &entry); err != nil {
		return entry, err
	}
	return entry, nil
}
