package pack

import (
	"embed"
	"fmt"
	"sort"
)

//go:embed builtin/*.yaml
var builtinFS embed.FS

// builtinPacks parses every embedded built-in pack file once per
// process. Pattern sources are data, not registry-construction work:
// parsing the YAML is metadata only, compilation of the regexes inside
// stays lazy per spec §4.3. A malformed built-in pack file is a build
// defect, not a runtime condition to recover from, so this panics —
// the same way the teacher's policy loader treats its own embedded
// default policy as trusted input.
func builtinPacks() []*Pack {
	entries, err := builtinFS.ReadDir("builtin")
	if err != nil {
		panic(fmt.Sprintf("pack: read embedded builtin dir: %v", err))
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	sort.Strings(names)

	packs := make([]*Pack, 0, len(names))
	for _, name := range names {
		data, err := builtinFS.ReadFile("builtin/" + name)
		if err != nil {
			panic(fmt.Sprintf("pack: read embedded builtin file %s: %v", name, err))
		}
		p, err := parsePackFile(data, name)
		if err != nil {
			panic(fmt.Sprintf("pack: parse embedded builtin file %s: %v", name, err))
		}
		packs = append(packs, p)
	}
	return packs
}
