package model

// TreeScope classifies the visibility/ownership of a folder tree node.
type TreeScope string

const (
	TreeScopeSystem   TreeScope = "system"
	TreeScopePersonal TreeScope = "personal"
	TreeScopeShared   TreeScope = "shared"
)

// TreeNode is one entry in the hierarchical folder organization structure.
// Children are owned by the parent: the tree is a strict rooted forest with
// no shared ownership and no stored parent references. Values handed out by
// the tree store are deep copies; mutating one never affects the store.
type TreeNode struct {
	// ID is the node identifier assigned by the tree service.
	ID string `json:"id"`

	// Slug is the URL-safe key derived from the title, unique among siblings.
	Slug string `json:"slug"`

	// Title is the display name of the node.
	Title string `json:"title"`

	// Scope classifies the node's visibility/ownership.
	Scope TreeScope `json:"scope"`

	// OrderIndex is the node's position among its siblings.
	OrderIndex int `json:"order_index"`

	// Children are the node's ordered descendants.
	Children []TreeNode `json:"children,omitempty"`
}

// Clone returns a deep copy of the node and its subtree.
func (n TreeNode) Clone() TreeNode {
	out := n
	if n.Children != nil {
		out.Children = make([]TreeNode, len(n.Children))
		for i, c := range n.Children {
			out.Children[i] = c.Clone()
		}
	}
	return out
}
