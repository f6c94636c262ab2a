package tree

// DefaultExpandDepth is how many levels from a root are expanded by
// default when a tree loads.
const DefaultExpandDepth = 2

// ExpandedAtDepth reports whether a node at the given depth (roots are
// depth 0) starts expanded. It is a pure function of depth: expansion is
// recomputed on every load and never persisted or diffed against a
// previous state.
func ExpandedAtDepth(depth, autoExpandDepth int) bool {
	return depth < autoExpandDepth
}
