package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/mastertenor/korgan/internal/model"
	"github.com/mastertenor/korgan/internal/source"
)

func TestFetchPageParsesResponse(t *testing.T) {
	var gotQuery map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/mail/messages" {
			t.Errorf("path = %s, want /api/v1/mail/messages", r.URL.Path)
		}
		gotQuery = map[string]string{
			"labels":    r.URL.Query().Get("labels"),
			"q":         r.URL.Query().Get("q"),
			"pageToken": r.URL.Query().Get("pageToken"),
			"pageSize":  r.URL.Query().Get("pageSize"),
		}
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{
			"messages": [
				{
					"id": "m1",
					"threadId": "t1",
					"from": "alice@example.com",
					"subject": "Quarterly invoice",
					"snippet": "Please find attached",
					"date": "2025-06-01T10:00:00Z",
					"isRead": false,
					"isStarred": true,
					"labels": ["INBOX", "IMPORTANT"],
					"hasAttachment": true
				}
			],
			"nextPageToken": "tok-2",
			"totalEstimate": 42,
			"hasMore": true
		}`)
	}))
	defer srv.Close()

	a := NewAdapter(srv.URL, "token")
	page, err := a.FetchPage(context.Background(), model.FilterFor(model.FolderInbox), "tok-1", 50)
	if err != nil {
		t.Fatalf("FetchPage: %v", err)
	}

	if gotQuery["labels"] != "INBOX" {
		t.Errorf("labels param = %q, want INBOX", gotQuery["labels"])
	}
	if gotQuery["q"] != "" {
		t.Errorf("q param = %q, want empty for a label filter", gotQuery["q"])
	}
	if gotQuery["pageToken"] != "tok-1" || gotQuery["pageSize"] != "50" {
		t.Errorf("paging params = %q/%q, want tok-1/50", gotQuery["pageToken"], gotQuery["pageSize"])
	}

	if len(page.Messages) != 1 {
		t.Fatalf("messages = %d, want 1", len(page.Messages))
	}
	m := page.Messages[0]
	if m.ID != "m1" || m.From != "alice@example.com" || !m.IsStarred || m.IsRead {
		t.Errorf("message mapped wrong: %+v", m)
	}
	wantDate := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	if !m.Date.Equal(wantDate) {
		t.Errorf("date = %v, want %v", m.Date, wantDate)
	}
	if page.NextPageToken != "tok-2" || page.TotalEstimate != 42 || !page.HasMore {
		t.Errorf("page meta = %+v, want tok-2/42/true", page)
	}
}

func TestFetchPageSearchUsesQueryParam(t *testing.T) {
	var gotQ, gotLabels string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQ = r.URL.Query().Get("q")
		gotLabels = r.URL.Query().Get("labels")
		io.WriteString(w, `{"messages": [], "hasMore": false}`)
	}))
	defer srv.Close()

	a := NewAdapter(srv.URL, "token")
	filter := model.FilterFor(model.SearchFolder("from:bob invoice"))
	if _, err := a.FetchPage(context.Background(), filter, "", 25); err != nil {
		t.Fatalf("FetchPage: %v", err)
	}
	if gotQ != "from:bob invoice" {
		t.Errorf("q param = %q, want the search query", gotQ)
	}
	if gotLabels != "" {
		t.Errorf("labels param = %q, want empty for a search", gotLabels)
	}
}

func TestUnauthorizedClassifiedAsAuthError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		io.WriteString(w, `{"error": {"code": "unauthorized", "message": "token expired"}}`)
	}))
	defer srv.Close()

	a := NewAdapter(srv.URL, "expired")
	_, err := a.FetchPage(context.Background(), model.FilterFor(model.FolderInbox), "", 50)
	if !source.IsAuthError(err) {
		t.Fatalf("err = %v, want auth error", err)
	}
}

func TestServerErrorCarriesEnvelopeMessage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		io.WriteString(w, `{"error": {"code": "unavailable", "message": "backend down"}}`)
	}))
	defer srv.Close()

	a := NewAdapter(srv.URL, "token")
	err := a.Mutate(context.Background(), source.ActionArchive, "m1", model.FolderInbox)
	if err == nil {
		t.Fatal("Mutate succeeded, want error")
	}

	var srvErr *source.ServerError
	if !errors.As(err, &srvErr) {
		t.Fatalf("err = %v, want ServerError", err)
	}
	if srvErr.StatusCode != 503 || srvErr.Message != "backend down" {
		t.Errorf("ServerError = %+v, want 503/backend down", srvErr)
	}
	if !source.IsRetryable(err) {
		t.Error("503 should be retryable")
	}
}

func TestRetryOn429ThenSuccess(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.Header().Set("Retry-After", "0")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		io.WriteString(w, `{"unread": 3, "total": 10}`)
	}))
	defer srv.Close()

	a := NewAdapter(srv.URL, "token")
	stats, err := a.FolderStats(context.Background(), model.FolderInbox)
	if err != nil {
		t.Fatalf("FolderStats after retry: %v", err)
	}
	if stats.Unread != 3 || stats.Total != 10 {
		t.Errorf("stats = %+v, want 3/10", stats)
	}
	if got := atomic.LoadInt32(&calls); got != 2 {
		t.Errorf("request count = %d, want 2", got)
	}
}

func TestNetworkFailureClassified(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	a := NewAdapter(srv.URL, "token")
	_, err := a.FetchPage(context.Background(), model.FilterFor(model.FolderInbox), "", 50)
	if err == nil {
		t.Fatal("FetchPage against closed server succeeded")
	}
	var netErr *source.NetworkError
	if !errors.As(err, &netErr) {
		t.Fatalf("err = %v, want NetworkError", err)
	}
	if !source.IsRetryable(err) {
		t.Error("network failure should be retryable")
	}
}

func TestMutatePostsAction(t *testing.T) {
	var gotPath string
	var gotBody actionRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("decoding action body: %v", err)
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	a := NewAdapter(srv.URL, "token")
	if err := a.Mutate(context.Background(), source.ActionTrash, "m42", model.FolderInbox); err != nil {
		t.Fatalf("Mutate: %v", err)
	}
	if gotPath != "/api/v1/mail/messages/m42/actions" {
		t.Errorf("path = %s, want /api/v1/mail/messages/m42/actions", gotPath)
	}
	if gotBody.Action != "trash" || gotBody.Folder != "inbox" {
		t.Errorf("body = %+v, want trash/inbox", gotBody)
	}
}

func TestEmptyTrashUsesFolderEndpoint(t *testing.T) {
	var gotPath, gotMethod string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotMethod = r.Method
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	a := NewAdapter(srv.URL, "token")
	if err := a.Mutate(context.Background(), source.ActionEmptyTrash, "", model.FolderTrash); err != nil {
		t.Fatalf("Mutate: %v", err)
	}
	if gotMethod != http.MethodPost || gotPath != "/api/v1/mail/folders/trash/empty" {
		t.Errorf("call = %s %s, want POST /api/v1/mail/folders/trash/empty", gotMethod, gotPath)
	}
}

func TestFetchTreeMapsForest(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/tree/org-1/ctx-1" {
			t.Errorf("path = %s, want /api/v1/tree/org-1/ctx-1", r.URL.Path)
		}
		io.WriteString(w, `[
			{
				"id": "n1", "slug": "work", "title": "Work", "scope": "shared", "orderIndex": 0,
				"children": [
					{"id": "n2", "slug": "invoices", "title": "Invoices", "scope": "shared", "orderIndex": 0}
				]
			}
		]`)
	}))
	defer srv.Close()

	a := NewAdapter(srv.URL, "token")
	forest, err := a.FetchTree(context.Background(), "org-1", "ctx-1", "")
	if err != nil {
		t.Fatalf("FetchTree: %v", err)
	}
	if len(forest) != 1 || forest[0].ID != "n1" || forest[0].Scope != model.TreeScopeShared {
		t.Fatalf("forest = %+v, want one shared root n1", forest)
	}
	if len(forest[0].Children) != 1 || forest[0].Children[0].Slug != "invoices" {
		t.Errorf("children = %+v, want [invoices]", forest[0].Children)
	}
}

func TestCreateNodeSendsProposedSlug(t *testing.T) {
	var gotBody createNodeRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("decoding create body: %v", err)
		}
		io.WriteString(w, `{"id": "n9", "slug": "invoices-2025", "title": "Invoices 2025", "scope": "personal", "orderIndex": 1}`)
	}))
	defer srv.Close()

	a := NewAdapter(srv.URL, "token")
	created, err := a.CreateNode(context.Background(), "org-1", "ctx-1", source.CreateNodeRequest{
		Title:      "Invoices 2025",
		Slug:       "invoices-2025",
		ParentSlug: "work",
		Scope:      model.TreeScopePersonal,
	})
	if err != nil {
		t.Fatalf("CreateNode: %v", err)
	}
	if gotBody.Slug != "invoices-2025" || gotBody.ParentSlug != "work" || gotBody.Scope != "personal" {
		t.Errorf("request body = %+v, want invoices-2025/work/personal", gotBody)
	}
	if created.ID != "n9" || created.Slug != "invoices-2025" {
		t.Errorf("created = %+v, want server node n9", created)
	}
}

func TestDeleteNodeAcceptsNoContent(t *testing.T) {
	var gotMethod string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	a := NewAdapter(srv.URL, "token")
	if err := a.DeleteNode(context.Background(), "n2"); err != nil {
		t.Fatalf("DeleteNode: %v", err)
	}
	if gotMethod != http.MethodDelete {
		t.Errorf("method = %s, want DELETE", gotMethod)
	}
}

func TestRequestCarriesAuthAndRequestID(t *testing.T) {
	var gotAuth, gotReqID string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotReqID = r.Header.Get("X-Request-Id")
		io.WriteString(w, `{"unread": 0, "total": 0}`)
	}))
	defer srv.Close()

	a := NewAdapter(srv.URL, "secret-token")
	if _, err := a.FolderStats(context.Background(), model.FolderInbox); err != nil {
		t.Fatalf("FolderStats: %v", err)
	}
	if gotAuth != "Bearer secret-token" {
		t.Errorf("Authorization = %q, want Bearer secret-token", gotAuth)
	}
	if gotReqID == "" {
		t.Error("X-Request-Id header missing")
	}
}
