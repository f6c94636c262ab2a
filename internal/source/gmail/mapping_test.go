package gmail

import (
	"errors"
	"testing"
	"time"

	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/googleapi"

	"github.com/mastertenor/korgan/internal/model"
	"github.com/mastertenor/korgan/internal/source"
)

func TestMailFromMessage(t *testing.T) {
	msg := &gmail.Message{
		Id:           "m1",
		ThreadId:     "t1",
		Snippet:      "Please find attached",
		InternalDate: 1748772000000, // 2025-06-01T10:00:00Z
		LabelIds:     []string{"INBOX", "UNREAD", "STARRED"},
		Payload: &gmail.MessagePart{
			MimeType: "multipart/mixed",
			Headers: []*gmail.MessagePartHeader{
				{Name: "From", Value: "alice@example.com"},
				{Name: "Subject", Value: "Quarterly invoice"},
			},
		},
	}

	got := mailFromMessage(msg)
	if got.ID != "m1" || got.ThreadID != "t1" {
		t.Errorf("ids = %s/%s, want m1/t1", got.ID, got.ThreadID)
	}
	if got.From != "alice@example.com" || got.Subject != "Quarterly invoice" {
		t.Errorf("headers = %q/%q, want alice/invoice", got.From, got.Subject)
	}
	if got.IsRead {
		t.Error("message with UNREAD label mapped as read")
	}
	if !got.IsStarred {
		t.Error("message with STARRED label mapped as unstarred")
	}
	if !got.HasAttachment {
		t.Error("multipart/mixed message mapped without attachment")
	}
	want := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	if !got.Date.Equal(want) {
		t.Errorf("date = %v, want %v", got.Date, want)
	}
}

func TestMailFromMessageDefaults(t *testing.T) {
	got := mailFromMessage(&gmail.Message{
		Id:       "m2",
		LabelIds: []string{"INBOX"},
		Payload: &gmail.MessagePart{
			MimeType: "text/plain",
			Headers: []*gmail.MessagePartHeader{
				{Name: "from", Value: "bob@example.com"},
			},
		},
	})
	if !got.IsRead {
		t.Error("message without UNREAD label mapped as unread")
	}
	if got.IsStarred || got.HasAttachment {
		t.Errorf("defaults = starred %v attachment %v, want false/false", got.IsStarred, got.HasAttachment)
	}
	if got.From != "bob@example.com" {
		t.Errorf("case-insensitive header lookup failed: %q", got.From)
	}
	if !got.Date.IsZero() {
		t.Errorf("date without InternalDate = %v, want zero", got.Date)
	}
}

func TestLabelOps(t *testing.T) {
	tests := []struct {
		name       string
		action     source.MutateAction
		wantAdd    []string
		wantRemove []string
	}{
		{name: "mark read", action: source.ActionMarkRead, wantRemove: []string{"UNREAD"}},
		{name: "mark unread", action: source.ActionMarkUnread, wantAdd: []string{"UNREAD"}},
		{name: "star", action: source.ActionStar, wantAdd: []string{"STARRED"}},
		{name: "unstar", action: source.ActionUnstar, wantRemove: []string{"STARRED"}},
		{name: "archive", action: source.ActionArchive, wantRemove: []string{"INBOX"}},
		{name: "trash has no label op", action: source.ActionTrash},
		{name: "delete has no label op", action: source.ActionDelete},
	}
	for _, tt := range tests {
		tc := tt
		t.Run(tc.name, func(t *testing.T) {
			add, remove := labelOps(tc.action)
			if !sameStrings(add, tc.wantAdd) || !sameStrings(remove, tc.wantRemove) {
				t.Errorf("labelOps(%s) = %v/%v, want %v/%v",
					tc.action, add, remove, tc.wantAdd, tc.wantRemove)
			}
		})
	}
}

func TestStatsLabelID(t *testing.T) {
	tests := []struct {
		name   string
		folder model.Folder
		want   string
	}{
		{name: "inbox", folder: model.FolderInbox, want: "INBOX"},
		{name: "starred", folder: model.FolderStarred, want: "STARRED"},
		{name: "trash", folder: model.FolderTrash, want: "TRASH"},
		{name: "user label", folder: model.LabelFolder("Label_7"), want: "Label_7"},
		{name: "search has none", folder: model.SearchFolder("is:unread"), want: ""},
	}
	for _, tt := range tests {
		tc := tt
		t.Run(tc.name, func(t *testing.T) {
			if got := statsLabelID(tc.folder); got != tc.want {
				t.Errorf("statsLabelID(%s) = %q, want %q", tc.folder, got, tc.want)
			}
		})
	}
}

func TestClassifyGoogleAPIErrors(t *testing.T) {
	authErr := classify("listing messages", &googleapi.Error{Code: 401, Message: "invalid credentials"})
	if !source.IsAuthError(authErr) {
		t.Errorf("401 classified as %v, want auth error", authErr)
	}

	rateErr := classify("listing messages", &googleapi.Error{Code: 429, Message: "rate limit"})
	if !source.IsRetryable(rateErr) {
		t.Errorf("429 classified as %v, want retryable", rateErr)
	}
	var srvErr *source.ServerError
	if !errors.As(rateErr, &srvErr) || srvErr.StatusCode != 429 {
		t.Errorf("429 classified as %v, want ServerError 429", rateErr)
	}

	notFound := classify("fetching message", &googleapi.Error{Code: 404})
	if errors.As(notFound, &srvErr) && srvErr.Retryable() {
		t.Errorf("404 should not be retryable: %v", notFound)
	}

	if classify("op", nil) != nil {
		t.Error("classify(nil) should be nil")
	}
}

func sameStrings(a, b []string) bool {
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
