package tree

import (
	"time"

	"github.com/mastertenor/korgan/internal/model"
)

// FlatNode is one row of the flattened forest, ready for list rendering.
type FlatNode struct {
	// ID is the node id.
	ID string

	// Slug is the node's URL-safe identifier.
	Slug string

	// Title is the display title.
	Title string

	// Scope is the node's visibility scope.
	Scope model.TreeScope

	// Depth is the nesting level, zero for roots.
	Depth int

	// HasChildren reports whether the node has any children, expanded
	// or not.
	HasChildren bool
}

// Forest returns a deep value copy of the resident forest in stored
// order.
func (s *Store) Forest() []model.TreeNode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.forestLocked()
}

func (s *Store) forestLocked() []model.TreeNode {
	out := make([]model.TreeNode, 0, len(s.roots))
	for _, id := range s.roots {
		if v, ok := s.materializeLocked(id); ok {
			out = append(out, v)
		}
	}
	return out
}

// FindByID returns a value copy of the node with the given id.
func (s *Store) FindByID(id string) (model.TreeNode, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.materializeLocked(id)
}

// FindBySlug returns a value copy of the first node with the given slug,
// searching the forest top-down.
func (s *Store) FindBySlug(slug string) (model.TreeNode, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.findBySlugLocked(slug)
	if !ok {
		return model.TreeNode{}, false
	}
	return s.materializeLocked(n.id)
}

// Flatten returns every node in pre-order with its depth. The caller
// applies expansion state to decide what to show.
func (s *Store) Flatten() []FlatNode {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []FlatNode
	var walk func(ids []string, depth int)
	walk = func(ids []string, depth int) {
		for _, id := range ids {
			n, ok := s.nodes[id]
			if !ok {
				continue
			}
			out = append(out, FlatNode{
				ID:          n.id,
				Slug:        n.slug,
				Title:       n.title,
				Scope:       n.scope,
				Depth:       depth,
				HasChildren: len(n.childIDs) > 0,
			})
			walk(n.childIDs, depth+1)
		}
	}
	walk(s.roots, 0)
	return out
}

// Count returns the number of resident nodes.
func (s *Store) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.nodes)
}

// Expansion returns the initial expanded set: node id to expanded, true
// for every node shallower than the configured expand depth.
func (s *Store) Expansion() map[string]bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[string]bool, len(s.nodes))
	var walk func(ids []string, depth int)
	walk = func(ids []string, depth int) {
		for _, id := range ids {
			n, ok := s.nodes[id]
			if !ok {
				continue
			}
			out[id] = ExpandedAtDepth(depth, s.expandDepth)
			walk(n.childIDs, depth+1)
		}
	}
	walk(s.roots, 0)
	return out
}

// LastLoaded returns when the forest was last installed, zero if never.
func (s *Store) LastLoaded() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastLoaded
}

// IsStale reports whether the forest is due for a refetch.
func (s *Store) IsStale() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastLoaded.IsZero() || s.clock().Sub(s.lastLoaded) > s.staleAfter
}

// materializeLocked builds a value subtree from the arena. Callers hold
// s.mu.
func (s *Store) materializeLocked(id string) (model.TreeNode, bool) {
	n, ok := s.nodes[id]
	if !ok {
		return model.TreeNode{}, false
	}
	v := model.TreeNode{
		ID:         n.id,
		Slug:       n.slug,
		Title:      n.title,
		Scope:      n.scope,
		OrderIndex: n.orderIndex,
	}
	for _, childID := range n.childIDs {
		if child, ok := s.materializeLocked(childID); ok {
			v.Children = append(v.Children, child)
		}
	}
	return v, true
}
