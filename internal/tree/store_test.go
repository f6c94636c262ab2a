package tree

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/mastertenor/korgan/internal/model"
	"github.com/mastertenor/korgan/internal/source"
)

func slogDiscard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type moveCall struct {
	nodeID string
	req    source.MoveNodeRequest
}

// fakeTreeSource serves a scripted forest and records every call.
type fakeTreeSource struct {
	mu       sync.Mutex
	forest   []model.TreeNode
	subtrees map[string][]model.TreeNode

	fetchErr  error
	createErr error
	updateErr error
	deleteErr error
	moveErr   error

	created *model.TreeNode
	updated *model.TreeNode

	fetches int
	creates []source.CreateNodeRequest
	updates []string
	deletes []string
	moves   []moveCall
}

func (f *fakeTreeSource) FetchTree(ctx context.Context, orgID, contextID, rootSlug string) ([]model.TreeNode, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetches++
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	if rootSlug != "" {
		if sub, ok := f.subtrees[rootSlug]; ok {
			return cloneForest(sub), nil
		}
	}
	return cloneForest(f.forest), nil
}

func (f *fakeTreeSource) CreateNode(ctx context.Context, orgID, contextID string, req source.CreateNodeRequest) (*model.TreeNode, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.creates = append(f.creates, req)
	if f.createErr != nil {
		return nil, f.createErr
	}
	if f.created != nil {
		n := f.created.Clone()
		return &n, nil
	}
	n := model.TreeNode{ID: "created-1", Slug: req.Slug, Title: req.Title, Scope: req.Scope}
	return &n, nil
}

func (f *fakeTreeSource) UpdateNode(ctx context.Context, nodeID string, req source.UpdateNodeRequest) (*model.TreeNode, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updates = append(f.updates, nodeID)
	if f.updateErr != nil {
		return nil, f.updateErr
	}
	if f.updated != nil {
		n := f.updated.Clone()
		return &n, nil
	}
	title := ""
	if req.Title != nil {
		title = *req.Title
	}
	n := model.TreeNode{ID: nodeID, Slug: Slugify(title), Title: title}
	return &n, nil
}

func (f *fakeTreeSource) DeleteNode(ctx context.Context, nodeID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deletes = append(f.deletes, nodeID)
	return f.deleteErr
}

func (f *fakeTreeSource) MoveNode(ctx context.Context, nodeID string, req source.MoveNodeRequest) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.moves = append(f.moves, moveCall{nodeID: nodeID, req: req})
	return f.moveErr
}

func (f *fakeTreeSource) fetchCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.fetches
}

func (f *fakeTreeSource) setForest(forest []model.TreeNode) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.forest = cloneForest(forest)
}

func cloneForest(forest []model.TreeNode) []model.TreeNode {
	out := make([]model.TreeNode, len(forest))
	for i, n := range forest {
		out[i] = n.Clone()
	}
	return out
}

// testForest builds the fixture used across tests:
//
//	work
//	├── invoices
//	│   └── archive-2024
//	└── receipts
//	personal
func testForest() []model.TreeNode {
	return []model.TreeNode{
		{
			ID: "w1", Slug: "work", Title: "Work", Scope: model.TreeScopeShared, OrderIndex: 0,
			Children: []model.TreeNode{
				{
					ID: "w2", Slug: "invoices", Title: "Invoices", Scope: model.TreeScopeShared, OrderIndex: 0,
					Children: []model.TreeNode{
						{ID: "w4", Slug: "archive-2024", Title: "Archive 2024", Scope: model.TreeScopeShared, OrderIndex: 0},
					},
				},
				{ID: "w3", Slug: "receipts", Title: "Receipts", Scope: model.TreeScopeShared, OrderIndex: 1},
			},
		},
		{ID: "p1", Slug: "personal", Title: "Personal", Scope: model.TreeScopePersonal, OrderIndex: 1},
	}
}

func newTestStore(t *testing.T) (*Store, *fakeTreeSource, *fakeClock) {
	t.Helper()
	src := &fakeTreeSource{forest: testForest()}
	clock := newFakeClock()
	st := New(src, Config{
		OrgID:     "org-1",
		ContextID: "ctx-1",
		Logger:    slogDiscard(),
		Clock:     clock.Now,
	})
	return st, src, clock
}

func loadTree(t *testing.T, st *Store) {
	t.Helper()
	if _, err := st.Load(context.Background()); err != nil {
		t.Fatalf("Load: %v", err)
	}
}

func rootSlugs(forest []model.TreeNode) []string {
	out := make([]string, len(forest))
	for i, n := range forest {
		out[i] = n.Slug
	}
	return out
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestLoadInstallsForest(t *testing.T) {
	st, src, _ := newTestStore(t)

	forest, err := st.Load(context.Background())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got := rootSlugs(forest); !equalStrings(got, []string{"work", "personal"}) {
		t.Errorf("root slugs = %v, want [work personal]", got)
	}
	if st.Count() != 5 {
		t.Errorf("Count = %d, want 5", st.Count())
	}
	if src.fetchCount() != 1 {
		t.Errorf("fetches = %d, want 1", src.fetchCount())
	}
}

func TestLoadSkipsFetchWhenFresh(t *testing.T) {
	st, src, clock := newTestStore(t)
	loadTree(t, st)

	clock.Advance(time.Minute)
	loadTree(t, st)
	if src.fetchCount() != 1 {
		t.Errorf("fetches after fresh reload = %d, want 1", src.fetchCount())
	}

	clock.Advance(10 * time.Minute)
	loadTree(t, st)
	if src.fetchCount() != 2 {
		t.Errorf("fetches after stale reload = %d, want 2", src.fetchCount())
	}
}

func TestStalenessAccessors(t *testing.T) {
	st, _, clock := newTestStore(t)

	if !st.IsStale() {
		t.Error("IsStale before first load = false, want true")
	}
	if !st.LastLoaded().IsZero() {
		t.Errorf("LastLoaded before first load = %v, want zero", st.LastLoaded())
	}

	loadTree(t, st)
	loaded := st.LastLoaded()
	if loaded.IsZero() {
		t.Fatal("LastLoaded after load is zero")
	}

	clock.Advance(time.Minute)
	if st.IsStale() {
		t.Error("IsStale one minute after load = true, want false")
	}

	clock.Advance(10 * time.Minute)
	if !st.IsStale() {
		t.Error("IsStale eleven minutes after load = false, want true")
	}
	if got := st.LastLoaded(); !got.Equal(loaded) {
		t.Errorf("LastLoaded moved without a load: %v, want %v", got, loaded)
	}
}

func TestRefreshAlwaysFetches(t *testing.T) {
	st, src, _ := newTestStore(t)
	loadTree(t, st)

	if _, err := st.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if src.fetchCount() != 2 {
		t.Errorf("fetches = %d, want 2", src.fetchCount())
	}
}

func TestCreateNodeRefreshesTree(t *testing.T) {
	st, src, _ := newTestStore(t)
	loadTree(t, st)

	// The server-side forest gains the node; the post-create refresh
	// must pick it up.
	grown := testForest()
	grown[0].Children[0].Children = append(grown[0].Children[0].Children,
		model.TreeNode{ID: "w5", Slug: "drafts", Title: "Drafts", Scope: model.TreeScopeShared, OrderIndex: 1})
	src.setForest(grown)

	created, err := st.CreateNode(context.Background(), "Drafts", "invoices", model.TreeScopeShared)
	if err != nil {
		t.Fatalf("CreateNode: %v", err)
	}
	if created.Slug != "drafts" {
		t.Errorf("created slug = %q, want %q", created.Slug, "drafts")
	}
	if src.fetchCount() != 2 {
		t.Errorf("fetches = %d, want 2 (load + post-create refresh)", src.fetchCount())
	}
	if _, ok := st.FindByID("w5"); !ok {
		t.Error("created node missing from resident forest after refresh")
	}
}

func TestCreateNodeSlugAvoidsSiblingCollision(t *testing.T) {
	st, src, _ := newTestStore(t)
	loadTree(t, st)

	if _, err := st.CreateNode(context.Background(), "Invoices", "work", model.TreeScopeShared); err != nil {
		t.Fatalf("CreateNode: %v", err)
	}
	if len(src.creates) != 1 {
		t.Fatalf("creates = %d, want 1", len(src.creates))
	}
	if got := src.creates[0].Slug; got != "invoices-2" {
		t.Errorf("proposed slug = %q, want %q", got, "invoices-2")
	}
}

func TestCreateNodeValidatesTitle(t *testing.T) {
	st, src, _ := newTestStore(t)
	loadTree(t, st)

	_, err := st.CreateNode(context.Background(), "   ", "work", model.TreeScopeShared)
	if !source.IsValidationError(err) {
		t.Fatalf("err = %v, want validation error", err)
	}
	if len(src.creates) != 0 {
		t.Errorf("remote create called %d times for invalid title, want 0", len(src.creates))
	}
}

func TestUpdateNodePatchesInPlace(t *testing.T) {
	st, src, _ := newTestStore(t)
	loadTree(t, st)

	updated, err := st.UpdateNode(context.Background(), "w3", "Expense Receipts")
	if err != nil {
		t.Fatalf("UpdateNode: %v", err)
	}
	if updated.Title != "Expense Receipts" {
		t.Errorf("returned title = %q, want %q", updated.Title, "Expense Receipts")
	}
	if src.fetchCount() != 1 {
		t.Errorf("fetches = %d, want 1 (update must not refetch)", src.fetchCount())
	}

	got, ok := st.FindByID("w3")
	if !ok {
		t.Fatal("node w3 missing after update")
	}
	if got.Title != "Expense Receipts" || got.Slug != "expense-receipts" {
		t.Errorf("resident node = %q/%q, want Expense Receipts/expense-receipts", got.Title, got.Slug)
	}
}

func TestDeleteNodeRemovesSubtree(t *testing.T) {
	st, src, _ := newTestStore(t)
	loadTree(t, st)

	if err := st.DeleteNode(context.Background(), "w2"); err != nil {
		t.Fatalf("DeleteNode: %v", err)
	}
	if _, ok := st.FindByID("w2"); ok {
		t.Error("deleted node still resident")
	}
	if _, ok := st.FindByID("w4"); ok {
		t.Error("descendant of deleted node still resident")
	}
	if st.Count() != 3 {
		t.Errorf("Count = %d, want 3", st.Count())
	}
	if src.fetchCount() != 1 {
		t.Errorf("fetches = %d, want 1 (successful delete must not refetch)", src.fetchCount())
	}
}

func TestDeleteNodeRollsBackOnFailure(t *testing.T) {
	st, src, _ := newTestStore(t)
	loadTree(t, st)
	src.deleteErr = &source.ServerError{StatusCode: 503, Message: "unavailable"}

	err := st.DeleteNode(context.Background(), "w2")
	if err == nil {
		t.Fatal("DeleteNode succeeded, want error")
	}
	var srvErr *source.ServerError
	if !errors.As(err, &srvErr) {
		t.Errorf("err = %v, want ServerError", err)
	}

	// The rollback refetch restores the node in its original position
	// among its siblings.
	work, ok := st.FindBySlug("work")
	if !ok {
		t.Fatal("work root missing after rollback")
	}
	if len(work.Children) != 2 {
		t.Fatalf("work children = %d, want 2", len(work.Children))
	}
	if work.Children[0].ID != "w2" || work.Children[1].ID != "w3" {
		t.Errorf("children order = [%s %s], want [w2 w3]", work.Children[0].ID, work.Children[1].ID)
	}
	if src.fetchCount() != 2 {
		t.Errorf("fetches = %d, want 2 (load + rollback refresh)", src.fetchCount())
	}
}

func TestMoveNodeRefetches(t *testing.T) {
	st, src, _ := newTestStore(t)
	loadTree(t, st)

	parent := "p1"
	idx := 0
	if err := st.MoveNode(context.Background(), "w3", &parent, &idx); err != nil {
		t.Fatalf("MoveNode: %v", err)
	}
	if len(src.moves) != 1 {
		t.Fatalf("moves = %d, want 1", len(src.moves))
	}
	m := src.moves[0]
	if m.nodeID != "w3" || m.req.NewParentID == nil || *m.req.NewParentID != "p1" {
		t.Errorf("move call = %+v, want w3 to p1", m)
	}
	if src.fetchCount() != 2 {
		t.Errorf("fetches = %d, want 2 (load + post-move refresh)", src.fetchCount())
	}
}

func TestLoadSubtreeSplicesInPlace(t *testing.T) {
	st, src, _ := newTestStore(t)
	loadTree(t, st)

	src.mu.Lock()
	src.subtrees = map[string][]model.TreeNode{
		"invoices": {
			{
				ID: "w2", Slug: "invoices", Title: "Invoices", Scope: model.TreeScopeShared, OrderIndex: 0,
				Children: []model.TreeNode{
					{ID: "w4", Slug: "archive-2024", Title: "Archive 2024", Scope: model.TreeScopeShared, OrderIndex: 0},
					{ID: "w6", Slug: "archive-2025", Title: "Archive 2025", Scope: model.TreeScopeShared, OrderIndex: 1},
				},
			},
		},
	}
	src.mu.Unlock()

	if _, err := st.LoadSubtree(context.Background(), "invoices"); err != nil {
		t.Fatalf("LoadSubtree: %v", err)
	}

	inv, ok := st.FindBySlug("invoices")
	if !ok {
		t.Fatal("invoices missing after subtree load")
	}
	if len(inv.Children) != 2 {
		t.Fatalf("invoices children = %d, want 2", len(inv.Children))
	}
	if inv.Children[1].ID != "w6" {
		t.Errorf("new child = %s, want w6", inv.Children[1].ID)
	}

	// Siblings outside the subtree are untouched and the node kept its
	// position under its parent.
	work, _ := st.FindBySlug("work")
	if len(work.Children) != 2 || work.Children[0].ID != "w2" || work.Children[1].ID != "w3" {
		t.Errorf("work children after splice = %+v, want [w2 w3]", rootSlugs(work.Children))
	}
}

func TestFlattenPreOrder(t *testing.T) {
	st, _, _ := newTestStore(t)
	loadTree(t, st)

	flat := st.Flatten()
	wantIDs := []string{"w1", "w2", "w4", "w3", "p1"}
	gotIDs := make([]string, len(flat))
	for i, f := range flat {
		gotIDs[i] = f.ID
	}
	if !equalStrings(gotIDs, wantIDs) {
		t.Fatalf("flatten order = %v, want %v", gotIDs, wantIDs)
	}

	wantDepth := map[string]int{"w1": 0, "w2": 1, "w4": 2, "w3": 1, "p1": 0}
	for _, f := range flat {
		if f.Depth != wantDepth[f.ID] {
			t.Errorf("depth of %s = %d, want %d", f.ID, f.Depth, wantDepth[f.ID])
		}
	}
	for _, f := range flat {
		wantChildren := f.ID == "w1" || f.ID == "w2"
		if f.HasChildren != wantChildren {
			t.Errorf("HasChildren of %s = %v, want %v", f.ID, f.HasChildren, wantChildren)
		}
	}
}

func TestExpansionFollowsDepth(t *testing.T) {
	st, _, _ := newTestStore(t)
	loadTree(t, st)

	exp := st.Expansion()
	want := map[string]bool{"w1": true, "w2": true, "w4": false, "w3": true, "p1": true}
	for id, w := range want {
		if exp[id] != w {
			t.Errorf("expansion[%s] = %v, want %v", id, exp[id], w)
		}
	}
}

func TestFindReturnsCopies(t *testing.T) {
	st, _, _ := newTestStore(t)
	loadTree(t, st)

	got, ok := st.FindByID("w1")
	if !ok {
		t.Fatal("w1 missing")
	}
	got.Title = "Clobbered"
	got.Children[0].Title = "Clobbered Child"

	again, _ := st.FindByID("w1")
	if again.Title != "Work" {
		t.Errorf("store title mutated through returned copy: %q", again.Title)
	}
	if again.Children[0].Title != "Invoices" {
		t.Errorf("store child mutated through returned copy: %q", again.Children[0].Title)
	}
}

func TestLoadErrorKeepsResidentForest(t *testing.T) {
	st, src, clock := newTestStore(t)
	loadTree(t, st)

	src.mu.Lock()
	src.fetchErr = &source.NetworkError{Op: "fetch tree", Err: errors.New("unreachable")}
	src.mu.Unlock()
	clock.Advance(10 * time.Minute)

	if _, err := st.Refresh(context.Background()); err == nil {
		t.Fatal("Refresh succeeded, want error")
	}
	if st.Count() != 5 {
		t.Errorf("Count after failed refresh = %d, want 5 (forest kept)", st.Count())
	}
}
