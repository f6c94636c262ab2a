package prefs_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/mastertenor/korgan/internal/prefs"
	"github.com/mastertenor/korgan/internal/source"
	"github.com/mastertenor/korgan/tests/testutil"
)

func TestGetMissingKeyReturnsEmpty(t *testing.T) {
	s := testutil.NewTestPrefs(t)

	got, err := s.Get(context.Background(), prefs.KeyLastContext)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got != "" {
		t.Errorf("Get on missing key = %q, want empty", got)
	}
}

func TestSetGetRoundTrip(t *testing.T) {
	s := testutil.NewTestPrefs(t)
	ctx := context.Background()

	if err := s.Set(ctx, prefs.KeyLastFolder, "inbox"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	got, err := s.Get(ctx, prefs.KeyLastFolder)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got != "inbox" {
		t.Errorf("Get = %q, want %q", got, "inbox")
	}
}

func TestClosedStoreFailsAsCacheError(t *testing.T) {
	s := testutil.NewTestPrefs(t)
	ctx := context.Background()

	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	if _, err := s.Get(ctx, prefs.KeyLastFolder); !source.IsCacheError(err) {
		t.Errorf("Get after close = %v, want a cache error", err)
	}
	if err := s.Set(ctx, prefs.KeyLastFolder, "inbox"); !source.IsCacheError(err) {
		t.Errorf("Set after close = %v, want a cache error", err)
	}
}

func TestSetOverwrites(t *testing.T) {
	s := testutil.NewTestPrefs(t)
	ctx := context.Background()

	if err := s.Set(ctx, prefs.KeyLastFolder, "inbox"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := s.Set(ctx, prefs.KeyLastFolder, "starred"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	got, err := s.Get(ctx, prefs.KeyLastFolder)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got != "starred" {
		t.Errorf("Get after overwrite = %q, want %q", got, "starred")
	}
}

func TestDeleteRemovesKey(t *testing.T) {
	s := testutil.NewTestPrefs(t)
	ctx := context.Background()

	if err := s.Set(ctx, prefs.KeyLastOrg, "org-1"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := s.Delete(ctx, prefs.KeyLastOrg); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	got, err := s.Get(ctx, prefs.KeyLastOrg)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got != "" {
		t.Errorf("Get after delete = %q, want empty", got)
	}

	// Deleting again is not an error.
	if err := s.Delete(ctx, prefs.KeyLastOrg); err != nil {
		t.Errorf("Delete on missing key: %v", err)
	}
}

func TestRecentSearchesOrder(t *testing.T) {
	s := testutil.NewTestPrefs(t)
	ctx := context.Background()

	for _, q := range []string{"from:alice", "invoice", "has:attachment"} {
		if err := s.RecordSearch(ctx, q); err != nil {
			t.Fatalf("RecordSearch(%q): %v", q, err)
		}
	}

	got, err := s.RecentSearches(ctx, 10)
	if err != nil {
		t.Fatalf("RecentSearches: %v", err)
	}
	want := []string{"has:attachment", "invoice", "from:alice"}
	if len(got) != len(want) {
		t.Fatalf("RecentSearches = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("RecentSearches = %v, want %v", got, want)
		}
	}
}

func TestRecordSearchMovesRepeatToFront(t *testing.T) {
	s := testutil.NewTestPrefs(t)
	ctx := context.Background()

	for _, q := range []string{"invoice", "receipt", "invoice"} {
		if err := s.RecordSearch(ctx, q); err != nil {
			t.Fatalf("RecordSearch(%q): %v", q, err)
		}
	}

	got, err := s.RecentSearches(ctx, 10)
	if err != nil {
		t.Fatalf("RecentSearches: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("RecentSearches = %v, want 2 entries", got)
	}
	if got[0] != "invoice" || got[1] != "receipt" {
		t.Errorf("RecentSearches = %v, want [invoice receipt]", got)
	}
}

func TestRecordSearchIgnoresBlank(t *testing.T) {
	s := testutil.NewTestPrefs(t)
	ctx := context.Background()

	if err := s.RecordSearch(ctx, "   "); err != nil {
		t.Fatalf("RecordSearch: %v", err)
	}
	got, err := s.RecentSearches(ctx, 10)
	if err != nil {
		t.Fatalf("RecentSearches: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("RecentSearches after blank record = %v, want empty", got)
	}
}

func TestSearchHistoryPruned(t *testing.T) {
	s := testutil.NewTestPrefs(t)
	ctx := context.Background()

	for i := 0; i < 60; i++ {
		if err := s.RecordSearch(ctx, fmt.Sprintf("query-%02d", i)); err != nil {
			t.Fatalf("RecordSearch: %v", err)
		}
	}

	got, err := s.RecentSearches(ctx, 100)
	if err != nil {
		t.Fatalf("RecentSearches: %v", err)
	}
	if len(got) != 50 {
		t.Fatalf("history length = %d, want 50", len(got))
	}
	if got[0] != "query-59" {
		t.Errorf("most recent = %q, want query-59", got[0])
	}
	for _, q := range got {
		if q == "query-00" {
			t.Error("oldest query survived pruning")
		}
	}
}

func TestDeleteAndClearSearches(t *testing.T) {
	s := testutil.NewTestPrefs(t)
	ctx := context.Background()

	for _, q := range []string{"one", "two", "three"} {
		if err := s.RecordSearch(ctx, q); err != nil {
			t.Fatalf("RecordSearch(%q): %v", q, err)
		}
	}

	if err := s.DeleteSearch(ctx, "two"); err != nil {
		t.Fatalf("DeleteSearch: %v", err)
	}
	got, err := s.RecentSearches(ctx, 10)
	if err != nil {
		t.Fatalf("RecentSearches: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("RecentSearches after delete = %v, want 2 entries", got)
	}

	if err := s.ClearSearches(ctx); err != nil {
		t.Fatalf("ClearSearches: %v", err)
	}
	got, err = s.RecentSearches(ctx, 10)
	if err != nil {
		t.Fatalf("RecentSearches: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("RecentSearches after clear = %v, want empty", got)
	}
}
