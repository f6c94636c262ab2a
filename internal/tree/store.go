// Package tree owns the in-memory folder tree: a strict rooted forest
// loaded from the remote tree service. Internally the forest is a flat
// arena (node id to record, with parent/child edges as id lists) so tree
// edits cost O(subtree) instead of rebuilding whole forests; externally
// every lookup materializes value copies, so no caller ever holds a
// mutable reference to a stored node.
package tree

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/mastertenor/korgan/internal/model"
	"github.com/mastertenor/korgan/internal/source"
)

// Clock returns the current time; injected so tests control staleness.
type Clock func() time.Time

// DefaultStaleAfter is the age after which a loaded tree is refetched.
const DefaultStaleAfter = 5 * time.Minute

// Config carries the identity and tuning for a tree Store.
type Config struct {
	// OrgID and ContextID scope every tree service request.
	OrgID     string
	ContextID string

	// RootSlug optionally restricts full loads to one subtree.
	RootSlug string

	// ExpandDepth is how many levels start expanded on load; defaults
	// to DefaultExpandDepth.
	ExpandDepth int

	// StaleAfter defaults to DefaultStaleAfter.
	StaleAfter time.Duration

	// Logger defaults to a stderr text handler.
	Logger *slog.Logger

	// Clock defaults to time.Now.
	Clock Clock
}

// node is the arena record for one tree entry. Parent/child edges are id
// lists; the only place they are turned back into nested values is
// materialize.
type node struct {
	id         string
	slug       string
	title      string
	scope      model.TreeScope
	orderIndex int
	parentID   string
	childIDs   []string
}

// Store is the single owner of the folder forest.
type Store struct {
	src         source.TreeSource
	logger      *slog.Logger
	clock       Clock
	orgID       string
	contextID   string
	rootSlug    string
	expandDepth int
	staleAfter  time.Duration

	// opMu serializes tree operations end to end, remote call included:
	// one CRUD call completes (and its follow-up refresh lands) before
	// the next is issued. mu guards the arena itself so readers never
	// wait on the network.
	opMu sync.Mutex
	mu   sync.Mutex

	nodes      map[string]*node
	roots      []string
	lastLoaded time.Time
}

// New builds a Store over the given tree source.
func New(src source.TreeSource, cfg Config) *Store {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(os.Stderr, nil))
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	expandDepth := cfg.ExpandDepth
	if expandDepth <= 0 {
		expandDepth = DefaultExpandDepth
	}
	staleAfter := cfg.StaleAfter
	if staleAfter <= 0 {
		staleAfter = DefaultStaleAfter
	}
	return &Store{
		src:         src,
		logger:      logger,
		clock:       clock,
		orgID:       cfg.OrgID,
		contextID:   cfg.ContextID,
		rootSlug:    cfg.RootSlug,
		expandDepth: expandDepth,
		staleAfter:  staleAfter,
		nodes:       make(map[string]*node),
	}
}

// Load fetches the forest when it has never loaded or has gone stale; a
// fresh resident forest is returned without a network call.
func (s *Store) Load(ctx context.Context) ([]model.TreeNode, error) {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	s.mu.Lock()
	fresh := !s.lastLoaded.IsZero() && s.clock().Sub(s.lastLoaded) <= s.staleAfter
	s.mu.Unlock()
	if fresh {
		return s.Forest(), nil
	}
	if err := s.refetch(ctx); err != nil {
		return nil, err
	}
	return s.Forest(), nil
}

// Refresh refetches the forest unconditionally.
func (s *Store) Refresh(ctx context.Context) ([]model.TreeNode, error) {
	s.opMu.Lock()
	defer s.opMu.Unlock()
	if err := s.refetch(ctx); err != nil {
		return nil, err
	}
	return s.Forest(), nil
}

// LoadSubtree refetches one subtree by slug and splices it into the
// resident forest in place. An unknown slug loads as the whole forest.
func (s *Store) LoadSubtree(ctx context.Context, rootSlug string) ([]model.TreeNode, error) {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	fetched, err := s.src.FetchTree(ctx, s.orgID, s.contextID, rootSlug)
	if err != nil {
		return nil, fmt.Errorf("loading subtree %s: %w", rootSlug, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	target, ok := s.findBySlugLocked(rootSlug)
	if !ok || len(fetched) == 0 {
		s.installLocked(fetched)
		return s.forestLocked(), nil
	}

	// Replace the resident subtree with the fetched one, keeping the
	// node's position under its parent.
	parentID := target.parentID
	replacement := fetched[0]
	s.detachLocked(target.id)
	s.addSubtreeLocked(replacement, parentID)
	if parentID == "" {
		s.roots = insertID(s.roots, replacement.ID, replacement.OrderIndex)
	} else if parent, ok := s.nodes[parentID]; ok {
		parent.childIDs = insertID(parent.childIDs, replacement.ID, replacement.OrderIndex)
	}
	s.lastLoaded = s.clock()
	return s.forestLocked(), nil
}

// CreateNode derives a slug unique among the target siblings, creates the
// node remotely, then refreshes the whole tree: server-side ordering and
// slug collision resolution can differ from the client guess, so a full
// refetch is the only way to stay consistent.
func (s *Store) CreateNode(ctx context.Context, title, parentSlug string, scope model.TreeScope) (model.TreeNode, error) {
	if strings.TrimSpace(title) == "" {
		return model.TreeNode{}, &source.ValidationError{Message: "node title is empty"}
	}

	s.opMu.Lock()
	defer s.opMu.Unlock()

	s.mu.Lock()
	slug := uniqueSlug(title, s.siblingSlugsLocked(parentSlug))
	s.mu.Unlock()

	created, err := s.src.CreateNode(ctx, s.orgID, s.contextID, source.CreateNodeRequest{
		Title:      title,
		Slug:       slug,
		ParentSlug: parentSlug,
		Scope:      scope,
	})
	if err != nil {
		return model.TreeNode{}, fmt.Errorf("creating node %q: %w", title, err)
	}

	if err := s.refetch(ctx); err != nil {
		// The node exists remotely; the resident forest is just behind
		// until the next successful load.
		s.logger.Warn("tree refresh after create failed", "slug", slug, "error", err)
		return model.TreeNode{}, err
	}
	return created.Clone(), nil
}

// UpdateNode renames a node remotely, then patches the resident node in
// place rather than refetching: the common rename case only changes the
// node itself.
func (s *Store) UpdateNode(ctx context.Context, nodeID, title string) (model.TreeNode, error) {
	if strings.TrimSpace(nodeID) == "" {
		return model.TreeNode{}, &source.ValidationError{Message: "node id is empty"}
	}
	if strings.TrimSpace(title) == "" {
		return model.TreeNode{}, &source.ValidationError{Message: "node title is empty"}
	}

	s.opMu.Lock()
	defer s.opMu.Unlock()

	updated, err := s.src.UpdateNode(ctx, nodeID, source.UpdateNodeRequest{Title: &title})
	if err != nil {
		return model.TreeNode{}, fmt.Errorf("updating node %s: %w", nodeID, err)
	}

	s.mu.Lock()
	if n, ok := s.nodes[nodeID]; ok {
		n.title = updated.Title
		if updated.Slug != "" {
			n.slug = updated.Slug
		}
	}
	s.mu.Unlock()
	return updated.Clone(), nil
}

// DeleteNode removes the node and its subtree from the resident forest
// immediately, then deletes remotely. On failure the optimistic removal
// is rolled back by refetching the whole tree: the server stays
// authoritative on what survives, nothing is re-inserted from cache.
func (s *Store) DeleteNode(ctx context.Context, nodeID string) error {
	if strings.TrimSpace(nodeID) == "" {
		return &source.ValidationError{Message: "node id is empty"}
	}

	s.opMu.Lock()
	defer s.opMu.Unlock()

	s.mu.Lock()
	_, resident := s.nodes[nodeID]
	if resident {
		s.detachLocked(nodeID)
	}
	s.mu.Unlock()

	if err := s.src.DeleteNode(ctx, nodeID); err != nil {
		if resident {
			s.logger.Warn("node delete failed, rolling back", "node", nodeID, "error", err)
			if refErr := s.refetch(ctx); refErr != nil {
				s.logger.Warn("rollback refresh failed", "node", nodeID, "error", refErr)
			}
		}
		return fmt.Errorf("deleting node %s: %w", nodeID, err)
	}
	return nil
}

// MoveNode reparents/reorders a node remotely, then refreshes the whole
// tree: ordering and slug effects of a move are not safely computable
// client-side.
func (s *Store) MoveNode(ctx context.Context, nodeID string, newParentID *string, newOrderIndex *int) error {
	if strings.TrimSpace(nodeID) == "" {
		return &source.ValidationError{Message: "node id is empty"}
	}

	s.opMu.Lock()
	defer s.opMu.Unlock()

	err := s.src.MoveNode(ctx, nodeID, source.MoveNodeRequest{
		NewParentID:   newParentID,
		NewOrderIndex: newOrderIndex,
	})
	if err != nil {
		return fmt.Errorf("moving node %s: %w", nodeID, err)
	}
	return s.refetch(ctx)
}

// refetch loads the configured forest and installs it wholesale. Callers
// hold opMu.
func (s *Store) refetch(ctx context.Context) error {
	fetched, err := s.src.FetchTree(ctx, s.orgID, s.contextID, s.rootSlug)
	if err != nil {
		return fmt.Errorf("loading folder tree: %w", err)
	}
	s.mu.Lock()
	s.installLocked(fetched)
	count := len(s.nodes)
	s.mu.Unlock()
	s.logger.Debug("folder tree loaded", "nodes", count)
	return nil
}

// installLocked replaces the arena with a fetched forest. Callers hold
// s.mu.
func (s *Store) installLocked(forest []model.TreeNode) {
	s.nodes = make(map[string]*node)
	s.roots = s.roots[:0]
	for _, root := range forest {
		s.addSubtreeLocked(root, "")
		s.roots = append(s.roots, root.ID)
	}
	s.lastLoaded = s.clock()
}

// addSubtreeLocked adds a value subtree to the arena under a parent id
// without linking it into the parent's child list. Callers hold s.mu.
func (s *Store) addSubtreeLocked(v model.TreeNode, parentID string) {
	n := &node{
		id:         v.ID,
		slug:       v.Slug,
		title:      v.Title,
		scope:      v.Scope,
		orderIndex: v.OrderIndex,
		parentID:   parentID,
	}
	s.nodes[v.ID] = n
	for _, child := range v.Children {
		n.childIDs = append(n.childIDs, child.ID)
		s.addSubtreeLocked(child, v.ID)
	}
}

// detachLocked removes a node and its descendants from the arena and
// unlinks it from its parent (or the root list). Callers hold s.mu.
func (s *Store) detachLocked(id string) {
	n, ok := s.nodes[id]
	if !ok {
		return
	}
	if n.parentID == "" {
		s.roots = removeID(s.roots, id)
	} else if parent, ok := s.nodes[n.parentID]; ok {
		parent.childIDs = removeID(parent.childIDs, id)
	}
	s.dropSubtreeLocked(id)
}

// dropSubtreeLocked deletes a node and its descendants from the arena.
func (s *Store) dropSubtreeLocked(id string) {
	n, ok := s.nodes[id]
	if !ok {
		return
	}
	for _, child := range n.childIDs {
		s.dropSubtreeLocked(child)
	}
	delete(s.nodes, id)
}

// siblingSlugsLocked collects the slugs already taken under a parent
// slug (empty means the root level). Callers hold s.mu.
func (s *Store) siblingSlugsLocked(parentSlug string) map[string]bool {
	taken := make(map[string]bool)
	ids := s.roots
	if parentSlug != "" {
		parent, ok := s.findBySlugLocked(parentSlug)
		if !ok {
			return taken
		}
		ids = parent.childIDs
	}
	for _, id := range ids {
		if n, ok := s.nodes[id]; ok {
			taken[n.slug] = true
		}
	}
	return taken
}

// findBySlugLocked searches the forest top-down for a slug. Callers hold
// s.mu.
func (s *Store) findBySlugLocked(slug string) (*node, bool) {
	var walk func(ids []string) (*node, bool)
	walk = func(ids []string) (*node, bool) {
		for _, id := range ids {
			n, ok := s.nodes[id]
			if !ok {
				continue
			}
			if n.slug == slug {
				return n, true
			}
			if found, ok := walk(n.childIDs); ok {
				return found, true
			}
		}
		return nil, false
	}
	return walk(s.roots)
}

// removeID drops one id from a list, preserving order.
func removeID(ids []string, id string) []string {
	for i, v := range ids {
		if v == id {
			return append(ids[:i], ids[i+1:]...)
		}
	}
	return ids
}

// insertID places an id at the given index, clamped to the list bounds.
func insertID(ids []string, id string, index int) []string {
	if index < 0 || index > len(ids) {
		index = len(ids)
	}
	ids = append(ids, "")
	copy(ids[index+1:], ids[index:])
	ids[index] = id
	return ids
}
