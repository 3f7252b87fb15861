package chat

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"meshchat/internal/domain"
)

// Directory is the externally-mutated node directory the resolver reads.
// *domain.NodeStore implements it.
type Directory interface {
	Get(id domain.NodeID) (domain.Node, bool)
	GetByHex(raw string) (domain.Node, bool)
	SnapshotSorted() []domain.Node
}

// Resolver maps node ids to display names through a cache. Entries are only
// removed by Invalidate, driven by node-update events, never by lookup
// misses or staleness.
type Resolver struct {
	dir Directory

	mu    sync.Mutex
	cache map[domain.NodeID]string
}

func NewResolver(dir Directory) *Resolver {
	return &Resolver{
		dir:   dir,
		cache: make(map[domain.NodeID]string),
	}
}

// Resolve returns the node's short name (or hex fallback) and the display
// label "NAME (@!xxxxxxxx)". Every path populates the cache, so repeated
// lookups skip the directory.
func (r *Resolver) Resolve(id domain.NodeID) (string, string) {
	if id == 0 {
		return "unknown", "@unknown"
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	name, ok := r.cache[id]
	if !ok {
		name = r.lookup(id)
		r.cache[id] = name
	}

	return name, fmt.Sprintf("%s (@%s)", name, id)
}

// Invalidate drops the cached name so the next Resolve consults the
// directory again. Invoked on node-update notifications.
func (r *Resolver) Invalidate(id domain.NodeID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.cache, id)
}

// ResolveToken maps operator input to a node id: a "!xxxxxxxx" literal parses
// directly; anything else is matched against short names in a directory
// snapshot. Returns false when nothing matches.
func (r *Resolver) ResolveToken(token string) (domain.NodeID, bool) {
	token = strings.TrimSpace(token)
	if token == "" {
		return 0, false
	}
	if strings.HasPrefix(token, "!") {
		return domain.ParseNodeID(token)
	}

	for _, node := range r.dir.SnapshotSorted() {
		if node.ShortName == token {
			return node.Num, true
		}
	}

	return 0, false
}

// KnownNames lists short names from the directory plus cached resolutions,
// sorted and deduplicated, for input completion.
func (r *Resolver) KnownNames() []string {
	seen := make(map[string]struct{})
	for _, node := range r.dir.SnapshotSorted() {
		if node.ShortName != "" {
			seen[node.ShortName] = struct{}{}
		}
	}

	r.mu.Lock()
	for _, name := range r.cache {
		if name != "" && !strings.HasPrefix(name, "!") {
			seen[name] = struct{}{}
		}
	}
	r.mu.Unlock()

	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)

	return names
}

func (r *Resolver) lookup(id domain.NodeID) string {
	if node, ok := r.dir.Get(id); ok {
		if short := strings.TrimSpace(node.ShortName); short != "" {
			return short
		}
	}
	// Directories populated from another identifier form may miss the
	// integer key; retry with the hex form before falling back to it.
	if node, ok := r.dir.GetByHex(id.String()); ok {
		if short := strings.TrimSpace(node.ShortName); short != "" {
			return short
		}
	}

	return id.String()
}
