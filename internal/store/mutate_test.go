package store

import (
	"context"
	"testing"

	"github.com/mastertenor/korgan/internal/model"
	"github.com/mastertenor/korgan/internal/source"
)

func TestMarkReadFailureLeavesListUnchanged(t *testing.T) {
	// Scenario: marking a message read hits a 503. The list must be
	// unchanged afterwards and the returned failure must classify as
	// retryable.
	src := newFakeSource()
	s := newTestStore(t, src, newFakeClock())
	seedInbox(t, s, src)

	src.mutateErrs["m1"] = &source.ServerError{StatusCode: 503, Message: "unavailable"}
	snap, err := s.MarkRead(context.Background(), model.FolderInbox, "m1")
	if err == nil {
		t.Fatalf("markRead should surface the failure")
	}
	if !source.IsRetryable(err) {
		t.Errorf("ServerError(503) should classify as retryable")
	}
	idx := indexOf(snap.Messages, "m1")
	if idx < 0 {
		t.Fatalf("m1 missing from the list")
	}
	if snap.Messages[idx].IsRead {
		t.Errorf("failed markRead left the optimistic flag applied")
	}
	if snap.LastError == "" {
		t.Errorf("mutation failure should be surfaced on the context")
	}
}

func TestMutationValidatesIDBeforeNetwork(t *testing.T) {
	src := newFakeSource()
	s := newTestStore(t, src, newFakeClock())
	seedInbox(t, s, src)

	for name, op := range map[string]func() (MailContext, error){
		"markRead": func() (MailContext, error) { return s.MarkRead(context.Background(), model.FolderInbox, "") },
		"star":     func() (MailContext, error) { return s.Star(context.Background(), model.FolderInbox, "  ") },
		"trash":    func() (MailContext, error) { return s.Trash(context.Background(), model.FolderInbox, "") },
		"delete":   func() (MailContext, error) { return s.Delete(context.Background(), model.FolderTrash, "") },
	} {
		before := src.mutateCount()
		_, err := op()
		if !source.IsValidationError(err) {
			t.Errorf("%s with empty id: err = %v, want ValidationError", name, err)
		}
		if src.mutateCount() != before {
			t.Errorf("%s with empty id must not reach the network", name)
		}
	}
}

func TestStarAppliesOptimisticallyAndConfirms(t *testing.T) {
	src := newFakeSource()
	s := newTestStore(t, src, newFakeClock())
	seedInbox(t, s, src)

	src.mutateStarted = make(chan struct{})
	src.mutateGate = make(chan struct{})
	done := make(chan error, 1)
	go func() {
		_, err := s.Star(context.Background(), model.FolderInbox, "m2")
		done <- err
	}()
	<-src.mutateStarted

	// The flag is visible while the remote call is still unresolved.
	mid := s.Context(model.FolderInbox)
	if idx := indexOf(mid.Messages, "m2"); idx < 0 || !mid.Messages[idx].IsStarred {
		t.Errorf("optimistic star not visible during the remote call")
	}

	close(src.mutateGate)
	if err := <-done; err != nil {
		t.Fatalf("star: %v", err)
	}
	after := s.Context(model.FolderInbox)
	if idx := indexOf(after.Messages, "m2"); idx < 0 || !after.Messages[idx].IsStarred {
		t.Errorf("confirmed star lost after the remote call resolved")
	}
}

func TestStarRevertsOnFailure(t *testing.T) {
	src := newFakeSource()
	s := newTestStore(t, src, newFakeClock())
	seedInbox(t, s, src)

	src.mutateErrs["m2"] = &source.ServerError{StatusCode: 500, Message: "boom"}
	snap, err := s.Star(context.Background(), model.FolderInbox, "m2")
	if err == nil {
		t.Fatalf("star should surface the failure")
	}
	if idx := indexOf(snap.Messages, "m2"); idx < 0 || snap.Messages[idx].IsStarred {
		t.Errorf("failed star should revert the optimistic flag")
	}
}

func TestPendingIntentSurvivesConcurrentRefresh(t *testing.T) {
	// A refresh landing while an optimistic star is unresolved must not
	// silently revert it: the pending intent is reapplied onto the
	// incoming page.
	src := newFakeSource()
	s := newTestStore(t, src, newFakeClock())
	seedInbox(t, s, src)

	src.mutateStarted = make(chan struct{})
	src.mutateGate = make(chan struct{})
	done := make(chan error, 1)
	go func() {
		_, err := s.Star(context.Background(), model.FolderInbox, "m1")
		done <- err
	}()
	<-src.mutateStarted

	// The server page still reports m1 unstarred; the refresh result
	// must carry the pending intent anyway.
	snap, err := s.Refresh(context.Background(), model.FolderInbox)
	if err != nil {
		t.Fatalf("refresh during pending star: %v", err)
	}
	if idx := indexOf(snap.Messages, "m1"); idx < 0 || !snap.Messages[idx].IsStarred {
		t.Errorf("refresh reverted a pending optimistic star")
	}

	close(src.mutateGate)
	if err := <-done; err != nil {
		t.Fatalf("star: %v", err)
	}

	// Once settled, the intent is gone and later refreshes take the
	// server value as-is.
	snap, err = s.Refresh(context.Background(), model.FolderInbox)
	if err != nil {
		t.Fatalf("refresh after settle: %v", err)
	}
	if idx := indexOf(snap.Messages, "m1"); idx < 0 || snap.Messages[idx].IsStarred {
		t.Errorf("settled intent still overlaying server data")
	}
}

func TestArchiveRemovesFromFolderOnSuccess(t *testing.T) {
	src := newFakeSource()
	s := newTestStore(t, src, newFakeClock())
	seedInbox(t, s, src)

	snap, err := s.Archive(context.Background(), model.FolderInbox, "m2")
	if err != nil {
		t.Fatalf("archive: %v", err)
	}
	if indexOf(snap.Messages, "m2") >= 0 {
		t.Errorf("archived message still in the folder list")
	}
	if len(snap.Messages) != 2 {
		t.Errorf("messages = %d, want 2 after archive", len(snap.Messages))
	}
	if snap.TotalEstimate != 5 {
		t.Errorf("totalEstimate = %d, want 5 after archive", snap.TotalEstimate)
	}
}

func TestTrashIsRequestThenReflect(t *testing.T) {
	src := newFakeSource()
	s := newTestStore(t, src, newFakeClock())
	seedInbox(t, s, src)

	src.mutateErrs["m3"] = &source.NetworkError{Op: "mutating", Err: context.DeadlineExceeded}
	snap, err := s.Trash(context.Background(), model.FolderInbox, "m3")
	if err == nil {
		t.Fatalf("trash should surface the failure")
	}
	// Never optimistic: the message must still be present after a failed
	// destructive call.
	if indexOf(snap.Messages, "m3") < 0 {
		t.Errorf("failed trash removed the message locally")
	}

	delete(src.mutateErrs, "m3")
	snap, err = s.Trash(context.Background(), model.FolderInbox, "m3")
	if err != nil {
		t.Fatalf("trash: %v", err)
	}
	if indexOf(snap.Messages, "m3") >= 0 {
		t.Errorf("confirmed trash should remove the message from the folder")
	}
}

func TestMutationInvalidatesOtherContexts(t *testing.T) {
	src := newFakeSource()
	s := newTestStore(t, src, newFakeClock())
	seedInbox(t, s, src)
	if _, err := s.Refresh(context.Background(), model.FolderStarred); err != nil {
		t.Fatalf("seed starred: %v", err)
	}

	if _, err := s.Star(context.Background(), model.FolderInbox, "m1"); err != nil {
		t.Fatalf("star: %v", err)
	}
	if !s.IsStale(model.FolderStarred) {
		t.Errorf("a mutation should mark the other resident contexts stale")
	}
	if s.IsStale(model.FolderInbox) {
		t.Errorf("the acting context should stay fresh")
	}
}

func TestEmptyTrashResetsContext(t *testing.T) {
	src := newFakeSource()
	s := newTestStore(t, src, newFakeClock())
	src.setPage("", source.Page{Messages: mails("t1", "t2"), TotalEstimate: 2, HasMore: false})
	if _, err := s.Refresh(context.Background(), model.FolderTrash); err != nil {
		t.Fatalf("seed trash: %v", err)
	}

	snap, err := s.EmptyTrash(context.Background())
	if err != nil {
		t.Fatalf("emptyTrash: %v", err)
	}
	if len(snap.Messages) != 0 || snap.TotalEstimate != 0 || snap.UnreadCount != 0 {
		t.Errorf("emptied trash should read as empty, got %+v", snap)
	}
	if snap.LastUpdated.IsZero() {
		t.Errorf("emptied trash should count as freshly loaded")
	}
	assertInvariant(t, snap)
}

func TestRestoreRemovesFromTrash(t *testing.T) {
	src := newFakeSource()
	s := newTestStore(t, src, newFakeClock())
	src.setPage("", source.Page{Messages: mails("t1", "t2"), TotalEstimate: 2, HasMore: false})
	if _, err := s.Refresh(context.Background(), model.FolderTrash); err != nil {
		t.Fatalf("seed trash: %v", err)
	}

	snap, err := s.Restore(context.Background(), model.FolderTrash, "t1")
	if err != nil {
		t.Fatalf("restore: %v", err)
	}
	if indexOf(snap.Messages, "t1") >= 0 {
		t.Errorf("restored message still listed in trash")
	}
	if indexOf(snap.Messages, "t2") < 0 {
		t.Errorf("restore removed the wrong message")
	}
}
