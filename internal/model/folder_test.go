package model

import "testing"

func TestFilterFor(t *testing.T) {
	tests := []struct {
		name       string
		folder     Folder
		wantLabels []string
		wantQuery  string
	}{
		{name: "inbox", folder: FolderInbox, wantLabels: []string{"INBOX"}},
		{name: "starred", folder: FolderStarred, wantLabels: []string{"STARRED"}},
		{name: "trash", folder: FolderTrash, wantLabels: []string{"TRASH"}},
		{name: "user label", folder: LabelFolder("Label_42"), wantLabels: []string{"Label_42"}},
		{name: "search", folder: SearchFolder("from:alice has:attachment"), wantQuery: "from:alice has:attachment"},
	}

	for _, tt := range tests {
		tc := tt
		t.Run(tc.name, func(t *testing.T) {
			got := FilterFor(tc.folder)
			if got.Query != tc.wantQuery {
				t.Errorf("FilterFor(%q).Query = %q, want %q", tc.folder, got.Query, tc.wantQuery)
			}
			if len(got.Labels) != len(tc.wantLabels) {
				t.Fatalf("FilterFor(%q).Labels = %v, want %v", tc.folder, got.Labels, tc.wantLabels)
			}
			for i := range got.Labels {
				if got.Labels[i] != tc.wantLabels[i] {
					t.Errorf("FilterFor(%q).Labels[%d] = %q, want %q", tc.folder, i, got.Labels[i], tc.wantLabels[i])
				}
			}
		})
	}
}

func TestFilterEqualQueryPrecedence(t *testing.T) {
	// A query overrides labels, so two filters with the same query are
	// equal no matter what labels they carry.
	a := Filter{Labels: []string{"INBOX"}, Query: "is:unread"}
	b := Filter{Labels: []string{"SENT"}, Query: "is:unread"}
	if !a.Equal(b) {
		t.Errorf("filters with identical queries should be equal regardless of labels")
	}

	c := Filter{Labels: []string{"INBOX"}}
	if a.Equal(c) {
		t.Errorf("query filter should not equal a label-only filter")
	}
	if !c.Equal(Filter{Labels: []string{"INBOX"}}) {
		t.Errorf("identical label filters should be equal")
	}
	if c.Equal(Filter{Labels: []string{"INBOX", "UNREAD"}}) {
		t.Errorf("filters with different label sets should not be equal")
	}
}

func TestFolderDisplayName(t *testing.T) {
	tests := []struct {
		folder Folder
		want   string
	}{
		{FolderInbox, "Inbox"},
		{FolderTrash, "Trash"},
		{LabelFolder("Work"), "Work"},
		{SearchFolder("is:unread"), "Search: is:unread"},
	}

	for _, tt := range tests {
		tc := tt
		if got := tc.folder.DisplayName(); got != tc.want {
			t.Errorf("DisplayName(%q) = %q, want %q", tc.folder, got, tc.want)
		}
	}
}

func TestMailFlagCopies(t *testing.T) {
	orig := Mail{ID: "m1", Labels: []string{"INBOX"}}

	read := orig.WithRead(true)
	if !read.IsRead || orig.IsRead {
		t.Errorf("WithRead should set the copy's flag only")
	}
	read.Labels[0] = "CHANGED"
	if orig.Labels[0] != "INBOX" {
		t.Errorf("WithRead should not share the labels slice with the original")
	}

	starred := orig.WithStarred(true)
	if !starred.IsStarred || orig.IsStarred {
		t.Errorf("WithStarred should set the copy's flag only")
	}
}

func TestTreeNodeClone(t *testing.T) {
	root := TreeNode{
		ID:    "n1",
		Slug:  "projects",
		Title: "Projects",
		Children: []TreeNode{
			{ID: "n2", Slug: "invoices", Title: "Invoices"},
		},
	}

	clone := root.Clone()
	clone.Children[0].Title = "Renamed"
	if root.Children[0].Title != "Invoices" {
		t.Errorf("Clone should deep-copy children; original was mutated")
	}
}
