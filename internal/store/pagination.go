package store

import (
	"context"
	"time"

	"github.com/mastertenor/korgan/internal/model"
	"github.com/mastertenor/korgan/internal/source"
)

// The pagination controller: per-context state machine Idle -> Fetching ->
// Idle. Only one fetch may be in flight per context; attempts to start a
// second are no-ops returning the current snapshot. A fetch captures the
// request parameters and a generation under the lock, performs the remote
// call unlocked, then re-acquires the lock and applies the result only if
// its generation is still current (last-request-wins). Failures set
// LastError and clear the loading state but never touch Messages,
// PageTokenStack or CurrentPage.

// fetchRequest is the parameter set captured when a fetch is admitted.
type fetchRequest struct {
	folder    model.Folder
	filter    model.Filter
	pageToken string
	gen       uint64
	state     fetchState

	// popped carries the already-popped token stack for a previous-page
	// fetch, so the commit can install it atomically with the result.
	popped []string
}

// Open selects a folder, makes it current, and refreshes it when it has
// never loaded or has gone stale. A fresh resident context is returned
// as-is without a network call.
func (s *Store) Open(ctx context.Context, folder model.Folder) (MailContext, error) {
	s.mu.Lock()
	s.current = folder
	e := s.ensureLocked(folder)
	stale := e.ctx.StaleAt(s.clock(), s.staleAfter)
	s.mu.Unlock()

	if !stale {
		return s.Context(folder), nil
	}
	return s.Refresh(ctx, folder)
}

// OpenSearch opens the saved-search context for a query, creating it on
// first use. The search context is keyed by the query itself.
func (s *Store) OpenSearch(ctx context.Context, query string) (MailContext, error) {
	return s.Open(ctx, model.SearchFolder(query))
}

// Refresh refetches the first page for a folder: the token stack clears,
// CurrentPage returns to 1 and Messages is replaced wholesale. On failure
// the prior messages and pagination survive untouched; only LastError is
// set.
func (s *Store) Refresh(ctx context.Context, folder model.Folder) (MailContext, error) {
	s.mu.Lock()
	e := s.ensureLocked(folder)
	if e.state != stateIdle {
		snap := e.snapshot()
		s.mu.Unlock()
		return snap, nil
	}
	req := s.admitLocked(folder, e, stateFetchingFresh, "")
	s.mu.Unlock()

	return s.fetch(ctx, req)
}

// LoadMore fetches the next page and appends it to Messages, pushing the
// consumed token onto the stack and advancing CurrentPage. It is a no-op
// when HasMore is false, when the server issued no token, when the
// context is not resident, or when a fetch is already in flight.
func (s *Store) LoadMore(ctx context.Context, folder model.Folder) (MailContext, error) {
	s.mu.Lock()
	e, ok := s.entries[folder]
	if !ok {
		s.mu.Unlock()
		return emptyContext(folder), nil
	}
	if e.state != stateIdle || !e.ctx.HasMore || e.ctx.NextPageToken == "" {
		snap := e.snapshot()
		s.mu.Unlock()
		return snap, nil
	}
	req := s.admitLocked(folder, e, stateFetchingMore, e.ctx.NextPageToken)
	s.mu.Unlock()

	return s.fetch(ctx, req)
}

// NextPage fetches the next page for a windowed pager: like LoadMore it
// consumes the continuation token and advances the stack and page number,
// but it replaces Messages with just the new page instead of appending.
func (s *Store) NextPage(ctx context.Context, folder model.Folder) (MailContext, error) {
	s.mu.Lock()
	e, ok := s.entries[folder]
	if !ok {
		s.mu.Unlock()
		return emptyContext(folder), nil
	}
	if e.state != stateIdle || !e.ctx.HasMore || e.ctx.NextPageToken == "" {
		snap := e.snapshot()
		s.mu.Unlock()
		return snap, nil
	}
	req := s.admitLocked(folder, e, stateFetchingNext, e.ctx.NextPageToken)
	s.mu.Unlock()

	return s.fetch(ctx, req)
}

// PrevPage pops the token stack and refetches the page underneath: with
// the new top-of-stack token, or the first page when the stack empties.
// Messages is replaced. A no-op on page 1 or while a fetch is in flight.
func (s *Store) PrevPage(ctx context.Context, folder model.Folder) (MailContext, error) {
	s.mu.Lock()
	e, ok := s.entries[folder]
	if !ok {
		s.mu.Unlock()
		return emptyContext(folder), nil
	}
	if e.state != stateIdle || len(e.ctx.PageTokenStack) == 0 {
		snap := e.snapshot()
		s.mu.Unlock()
		return snap, nil
	}
	popped := append([]string(nil), e.ctx.PageTokenStack[:len(e.ctx.PageTokenStack)-1]...)
	token := ""
	if len(popped) > 0 {
		token = popped[len(popped)-1]
	}
	req := s.admitLocked(folder, e, stateFetchingPrev, token)
	req.popped = popped
	s.mu.Unlock()

	return s.fetch(ctx, req)
}

// admitLocked transitions an idle entry into a fetch state and captures
// the request parameters under the lock. Callers hold s.mu.
func (s *Store) admitLocked(folder model.Folder, e *entry, st fetchState, token string) fetchRequest {
	e.state = st
	s.genSeq++
	e.gen = s.genSeq
	return fetchRequest{
		folder:    folder,
		filter:    e.ctx.Filter,
		pageToken: token,
		gen:       e.gen,
		state:     st,
	}
}

// fetch performs the remote call for an admitted request and commits or
// discards the result.
func (s *Store) fetch(ctx context.Context, req fetchRequest) (MailContext, error) {
	page, err := s.src.FetchPage(ctx, req.filter, req.pageToken, s.pageSize)

	var stats *source.FolderStats
	if err == nil && req.state == stateFetchingFresh && !req.folder.IsSearch() {
		if st, statsErr := s.src.FolderStats(ctx, req.folder); statsErr == nil {
			stats = &st
		} else {
			s.logger.Debug("folder stats unavailable", "folder", req.folder, "error", statsErr)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[req.folder]
	if !ok || e.gen != req.gen {
		// A newer request, a reset or an eviction superseded this
		// fetch; its result is discarded, not applied late.
		s.logger.Debug("discarding superseded fetch", "folder", req.folder)
		if !ok {
			return emptyContext(req.folder), nil
		}
		return e.snapshot(), nil
	}

	e.state = stateIdle
	if err != nil {
		next := e.ctx
		next.LastError = err.Error()
		e.ctx = next
		s.logger.Warn("mail fetch failed", "folder", req.folder, "error", err)
		return e.snapshot(), err
	}

	e.ctx = s.commitPageLocked(e.ctx, req, page, stats)
	return e.snapshot(), nil
}

// commitPageLocked builds the successor context for a successful fetch.
// Each fetch kind installs its own messages/stack/page shape; everything
// else (tokens, aggregates, error, timestamp) is common. Callers hold
// s.mu.
func (s *Store) commitPageLocked(prev MailContext, req fetchRequest, page *source.Page, stats *source.FolderStats) MailContext {
	next := prev
	incoming := s.applyIntentsLocked(copyMails(page.Messages))

	switch req.state {
	case stateFetchingFresh:
		next.Messages = incoming
		next.PageTokenStack = nil
		next.CurrentPage = 1
	case stateFetchingMore:
		merged := copyMails(prev.Messages)
		next.Messages = append(merged, incoming...)
		next.PageTokenStack = append(append([]string(nil), prev.PageTokenStack...), req.pageToken)
		next.CurrentPage = prev.CurrentPage + 1
	case stateFetchingNext:
		next.Messages = incoming
		next.PageTokenStack = append(append([]string(nil), prev.PageTokenStack...), req.pageToken)
		next.CurrentPage = prev.CurrentPage + 1
	case stateFetchingPrev:
		next.Messages = incoming
		next.PageTokenStack = req.popped
		next.CurrentPage = len(req.popped) + 1
	}

	next.NextPageToken = page.NextPageToken
	next.HasMore = page.HasMore
	next.TotalEstimate = page.TotalEstimate
	if stats != nil {
		next.UnreadCount = stats.Unread
	}
	next.LastError = ""
	next.LastUpdated = s.clock()
	return next
}

// SetLabels replaces a folder's label filter, resetting and refetching
// the context when the filter actually changed.
func (s *Store) SetLabels(ctx context.Context, folder model.Folder, labels []string) (MailContext, error) {
	return s.SetFilter(ctx, folder, model.Filter{Labels: labels})
}

// SetQuery replaces a folder's search query, resetting and refetching
// the context when the filter actually changed.
func (s *Store) SetQuery(ctx context.Context, folder model.Folder, query string) (MailContext, error) {
	return s.SetFilter(ctx, folder, model.Filter{Query: query})
}

// SetFilter installs a new filter on a folder's context. An equal filter
// is a no-op returning the current snapshot. A changed filter resets the
// context wholesale: messages, token stack and page number drop, any
// fetch still in flight is disowned, and the first page is refetched.
func (s *Store) SetFilter(ctx context.Context, folder model.Folder, filter model.Filter) (MailContext, error) {
	s.mu.Lock()
	e := s.ensureLocked(folder)
	if e.ctx.Filter.Equal(filter) {
		snap := e.snapshot()
		s.mu.Unlock()
		return snap, nil
	}

	s.genSeq++
	e.gen = s.genSeq
	e.state = stateIdle
	next := emptyContext(folder)
	next.Filter = model.Filter{
		Labels: append([]string(nil), filter.Labels...),
		Query:  filter.Query,
	}
	e.ctx = next
	s.mu.Unlock()

	return s.Refresh(ctx, folder)
}

// MarkStale forces a folder's context to be considered stale without
// dropping its messages, so the next Open refetches it.
func (s *Store) MarkStale(folder model.Folder) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[folder]
	if !ok {
		return
	}
	next := e.ctx
	next.LastUpdated = time.Time{}
	e.ctx = next
}
