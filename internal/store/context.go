package store

import (
	"time"

	"github.com/mastertenor/korgan/internal/model"
)

// MailContext is the published snapshot of one folder's paginated state.
// Snapshots are deep copies: mutating one never affects the store. The
// invariant CurrentPage == len(PageTokenStack)+1 holds for every snapshot
// the store hands out.
type MailContext struct {
	// Folder is the context key.
	Folder model.Folder

	// Filter is what this context's fetches select.
	Filter model.Filter

	// Messages is the resident page content in server order.
	Messages []model.Mail

	// IsLoading reports a replacing fetch in flight (refresh or windowed
	// page move).
	IsLoading bool

	// IsLoadingMore reports an additive fetch in flight.
	IsLoadingMore bool

	// LastError is the most recent failure surfaced for this context,
	// cleared by the next successful operation.
	LastError string

	// NextPageToken is the opaque continuation token for forward paging,
	// empty when the server issued none.
	NextPageToken string

	// HasMore reports whether a further page exists. It is authoritative
	// over NextPageToken: when false, no further page is requested even
	// if a token is present.
	HasMore bool

	// PageTokenStack holds the tokens consumed to reach the current
	// page, oldest first. The top entry produced the current page.
	PageTokenStack []string

	// CurrentPage is the 1-based page number.
	CurrentPage int

	// UnreadCount is the server-reported unread aggregate for the
	// folder, independent of len(Messages).
	UnreadCount int

	// TotalEstimate is the server-reported estimate of messages
	// matching the filter.
	TotalEstimate int

	// LastUpdated is when the context last committed a successful fetch.
	// The zero value means the context has never been loaded.
	LastUpdated time.Time
}

// StaleAt reports whether the context should be refetched before being
// trusted at the given instant: it has never loaded, or its age exceeds
// the threshold.
func (c MailContext) StaleAt(now time.Time, threshold time.Duration) bool {
	if c.LastUpdated.IsZero() {
		return true
	}
	return now.Sub(c.LastUpdated) > threshold
}

// fetchState is the per-context pagination state machine. Only one fetch
// may be in flight per context; a second attempt is a no-op.
type fetchState int

const (
	stateIdle fetchState = iota
	stateFetchingFresh
	stateFetchingMore
	stateFetchingNext
	stateFetchingPrev
)

// replacing reports whether the in-flight fetch will replace Messages
// wholesale rather than append.
func (s fetchState) replacing() bool {
	return s == stateFetchingFresh || s == stateFetchingNext || s == stateFetchingPrev
}

// entry is the store-internal mutable record for one context. The ctx
// field is only ever swapped wholesale (never field-patched in place), so
// the page/stack invariant holds at every commit point.
type entry struct {
	ctx   MailContext
	state fetchState

	// gen is bumped whenever the context's identity changes out from
	// under an in-flight fetch (a new fetch starts, the filter resets,
	// the entry is evicted and recreated). A fetch result is applied
	// only if its captured gen is still current; otherwise it is
	// discarded, giving last-request-wins semantics.
	gen uint64

	// seq is the recency stamp for LRU eviction.
	seq uint64
}

// emptyContext returns the default context for a folder: no messages, one
// empty page, the folder's default filter.
func emptyContext(folder model.Folder) MailContext {
	return MailContext{
		Folder:      folder,
		Filter:      model.FilterFor(folder),
		CurrentPage: 1,
	}
}

// copyMails deep-copies a message slice, including per-message label
// slices, so snapshots and store internals never alias.
func copyMails(in []model.Mail) []model.Mail {
	if in == nil {
		return nil
	}
	out := make([]model.Mail, len(in))
	for i, m := range in {
		m.Labels = append([]string(nil), m.Labels...)
		out[i] = m
	}
	return out
}

// snapshot returns a deep copy of the entry's context with the loading
// flags derived from the live fetch state.
func (e *entry) snapshot() MailContext {
	snap := e.ctx
	snap.Messages = copyMails(e.ctx.Messages)
	snap.PageTokenStack = append([]string(nil), e.ctx.PageTokenStack...)
	snap.Filter = model.Filter{
		Labels: append([]string(nil), e.ctx.Filter.Labels...),
		Query:  e.ctx.Filter.Query,
	}
	snap.IsLoading = e.state.replacing()
	snap.IsLoadingMore = e.state == stateFetchingMore
	return snap
}
