package pack

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// Reserved namespaces per spec §3: external packs cannot collide with
// these, or with any concrete built-in id.
var reservedNamespaces = []string{
	"core", "database", "containers", "kubernetes", "cloud", "storage",
	"secrets", "messaging", "search", "backup", "platform", "cicd",
	"monitoring", "infrastructure", "cdn", "apigateway", "system",
	"heredoc", "package_managers", "strict_git",
}

var idPattern = regexp.MustCompile(`^[a-z][a-z0-9_]*\.[a-z][a-z0-9_]*$`)

// Registry holds every known pack's metadata. It is immutable after
// construction; rebuilding on configuration change copies into a new
// Registry rather than mutating this one, per spec §3's lifecycle note.
type Registry struct {
	byID     map[string]*Pack
	order    []string // built-ins, in construction order
	external []string // external pack ids, in load order
	keywords map[string][]string
}

// NewRegistry constructs a registry from the built-in packs plus any
// external packs supplied by configuration. External packs whose id
// collides with a built-in id (exact or by reserved namespace prefix)
// are rejected without compiling any of their patterns.
func NewRegistry(externalPacks []*Pack) (*Registry, []error) {
	r := &Registry{
		byID:     make(map[string]*Pack),
		keywords: make(map[string][]string),
	}

	for _, p := range builtinPacks() {
		r.byID[p.ID] = p
		r.order = append(r.order, p.ID)
		r.indexKeywords(p)
	}

	var errs []error
	for _, p := range externalPacks {
		if !idPattern.MatchString(p.ID) {
			errs = append(errs, fmt.Errorf("pack %q: invalid id format", p.ID))
			continue
		}
		if _, collide := r.byID[p.ID]; collide {
			errs = append(errs, fmt.Errorf("pack %q: collides with built-in pack id", p.ID))
			continue
		}
		if reservedCollision(p.ID) {
			errs = append(errs, fmt.Errorf("pack %q: collides with a reserved built-in namespace", p.ID))
			continue
		}
		p.External = true
		r.byID[p.ID] = p
		r.external = append(r.external, p.ID)
		r.indexKeywords(p)
	}

	return r, errs
}

func reservedCollision(id string) bool {
	ns := strings.SplitN(id, ".", 2)[0]
	for _, reserved := range reservedNamespaces {
		if ns == reserved {
			return true
		}
	}
	return false
}

func (r *Registry) indexKeywords(p *Pack) {
	for _, kw := range p.Keywords {
		r.keywords[kw] = append(r.keywords[kw], p.ID)
	}
}

// Get returns a pack by id.
func (r *Registry) Get(id string) (*Pack, bool) {
	p, ok := r.byID[id]
	return p, ok
}

// All returns every registered pack, built-ins first in construction
// order, then external packs in load order, regardless of whether
// either is currently enabled. Used by registry introspection (the
// `packs` command without --enabled).
func (r *Registry) All() []*Pack {
	out := make([]*Pack, 0, len(r.order)+len(r.external))
	for _, id := range r.order {
		out = append(out, r.byID[id])
	}
	for _, id := range r.external {
		out = append(out, r.byID[id])
	}
	return out
}

// Enabled resolves an enabled/disabled configuration into an ordered
// pack list per spec §4.3: core always enabled, tier order
// core -> strict_git -> remaining categories lexicographically,
// lexicographic within a tier, external packs after built-ins in the
// same tier.
//
// enabled/disabled items are either a full pack id or a bare namespace
// prefix (expanded to every registered id under that namespace).
func (r *Registry) Enabled(enabled, disabled []string) []*Pack {
	want := r.expand(enabled)
	skip := r.expand(disabled)

	// core.* is always enabled regardless of configuration.
	for id := range r.byID {
		if strings.HasPrefix(id, "core.") {
			want[id] = true
		}
	}
	for id := range skip {
		if strings.HasPrefix(id, "core.") {
			delete(skip, id)
		}
	}

	var builtinIDs, externalIDs []string
	for _, id := range r.order {
		if want[id] && !skip[id] {
			builtinIDs = append(builtinIDs, id)
		}
	}
	for _, id := range r.external {
		if want[id] && !skip[id] {
			externalIDs = append(externalIDs, id)
		}
	}

	sortByTier(builtinIDs)
	sortByTier(externalIDs)

	result := make([]*Pack, 0, len(builtinIDs)+len(externalIDs))
	for _, id := range builtinIDs {
		result = append(result, r.byID[id])
	}
	for _, id := range externalIDs {
		result = append(result, r.byID[id])
	}
	return result
}

func (r *Registry) expand(items []string) map[string]bool {
	out := make(map[string]bool)
	for _, item := range items {
		if _, ok := r.byID[item]; ok {
			out[item] = true
			continue
		}
		prefix := item + "."
		for id := range r.byID {
			if strings.HasPrefix(id, prefix) {
				out[id] = true
			}
		}
	}
	return out
}

func tierOf(id string) int {
	ns := strings.SplitN(id, ".", 2)[0]
	switch ns {
	case "core":
		return 0
	case "strict_git":
		return 1
	}
	return 2
}

func sortByTier(ids []string) {
	sort.Slice(ids, func(i, j int) bool {
		ti, tj := tierOf(ids[i]), tierOf(ids[j])
		if ti != tj {
			return ti < tj
		}
		return ids[i] < ids[j]
	})
}

// CandidatePacks returns, from an already-enabled pack list, those
// whose keywords appear as whole tokens in tokens (the set of words
// found inside Executed/InlineCode spans). Conservative: the returned
// set may be a superset of what regex evaluation would actually match,
// never a subset, per spec §4.3.
func CandidatePacks(enabled []*Pack, tokens map[string]bool) []*Pack {
	var out []*Pack
	for _, p := range enabled {
		if len(p.Keywords) == 0 {
			out = append(out, p) // keyword gating disabled for this pack
			continue
		}
		for _, kw := range p.Keywords {
			if tokens[kw] {
				out = append(out, p)
				break
			}
		}
	}
	return out
}
