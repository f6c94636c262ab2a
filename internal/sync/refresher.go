// Package sync keeps mail contexts fresh in the background. A single
// loop re-checks the active folder on a ticker and honors explicit
// refresh triggers, delivering results to the UI as Bubble Tea messages.
package sync

import (
	"context"
	"errors"
	"fmt"
	gosync "sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/mastertenor/korgan/internal/model"
	"github.com/mastertenor/korgan/internal/source"
	"github.com/mastertenor/korgan/internal/store"
)

// RefreshState represents the current state of the background refresher.
type RefreshState int

const (
	RefreshIdle RefreshState = iota
	RefreshRunning
	RefreshError
)

// Status holds the refresher state for the status bar.
type Status struct {
	Folder      model.Folder
	State       RefreshState
	LastRefresh time.Time
	Error       error
}

// RefreshedMsg is a tea.Msg sent when a background refresh completes.
type RefreshedMsg struct {
	Folder  model.Folder
	Context store.MailContext
	Error   error
	Auth    *AuthExpiredMsg
}

// AuthExpiredMsg is a tea.Msg sent when the backend reports expired
// credentials during a background refresh.
type AuthExpiredMsg struct {
	Backend source.Backend
	Message string
}

// refreshTimeout is the maximum time allowed for a single refresh.
const refreshTimeout = 30 * time.Second

// DefaultInterval is how often the active folder is checked for staleness.
const DefaultInterval = 120 * time.Second

// Refresher keeps the active folder's context fresh. A ticker refetches
// it once it goes stale; RefreshNow forces an immediate refetch. Stale
// checks and fetch admission stay inside the store, so a refresh racing
// a user-initiated fetch is a no-op rather than a duplicate request.
type Refresher struct {
	store    *store.Store
	interval time.Duration

	resultCh  chan RefreshedMsg
	triggerCh chan model.Folder
	stopCh    chan struct{}

	mu      gosync.Mutex
	running bool
	status  Status
}

// New creates a Refresher over the store. A non-positive interval falls
// back to DefaultInterval.
func New(s *store.Store, interval time.Duration) *Refresher {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Refresher{
		store:     s,
		interval:  interval,
		resultCh:  make(chan RefreshedMsg, 16),
		triggerCh: make(chan model.Folder, 16),
		stopCh:    make(chan struct{}),
	}
}

// Start launches the refresh loop and returns a subscription command
// that delivers RefreshedMsg messages to the Bubble Tea runtime.
func (r *Refresher) Start() tea.Cmd {
	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		return nil
	}
	r.running = true
	r.mu.Unlock()

	go r.loop()

	return r.waitForResult()
}

// Stop halts the refresh loop.
func (r *Refresher) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.running {
		return
	}

	close(r.stopCh)
	r.running = false
}

// RefreshNow triggers an immediate refresh of the given folder. An empty
// folder refreshes whichever folder is current.
func (r *Refresher) RefreshNow(folder model.Folder) tea.Cmd {
	select {
	case r.triggerCh <- folder:
	default:
		// Channel full; a refresh is already queued.
	}
	return nil
}

// Status returns the refresher's current status.
func (r *Refresher) Status() Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.status
}

// loop runs until Stop. Ticks refresh the active folder only when its
// context has gone stale; triggers refresh unconditionally.
func (r *Refresher) loop() {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-r.stopCh:
			return
		case <-ticker.C:
			folder := r.store.CurrentFolder()
			if folder == "" || !r.store.IsStale(folder) {
				continue
			}
			r.refresh(folder)
		case folder := <-r.triggerCh:
			if folder == "" {
				folder = r.store.CurrentFolder()
			}
			if folder == "" {
				continue
			}
			r.refresh(folder)
		}
	}
}

// refresh performs a single refresh and sends the outcome on the result
// channel.
func (r *Refresher) refresh(folder model.Folder) {
	r.setStatus(folder, RefreshRunning, nil)

	ctx, cancel := context.WithTimeout(context.Background(), refreshTimeout)
	defer cancel()

	mc, err := r.store.Refresh(ctx, folder)
	if err != nil {
		r.setStatus(folder, RefreshError, err)

		msg := RefreshedMsg{Folder: folder, Context: mc, Error: err}
		var authErr *source.AuthError
		if errors.As(err, &authErr) {
			msg.Auth = &AuthExpiredMsg{
				Backend: authErr.Backend,
				Message: fmt.Sprintf(
					"%s: authentication expired, reconnect the account",
					authErr.Backend,
				),
			}
		}
		r.sendResult(msg)
		return
	}

	r.setStatus(folder, RefreshIdle, nil)
	r.sendResult(RefreshedMsg{Folder: folder, Context: mc})
}

// setStatus updates the refresher status.
func (r *Refresher) setStatus(folder model.Folder, state RefreshState, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.status.Folder = folder
	r.status.State = state
	r.status.Error = err
	if state == RefreshIdle && err == nil {
		r.status.LastRefresh = time.Now()
	}
}

// sendResult sends a RefreshedMsg on the result channel without blocking.
func (r *Refresher) sendResult(msg RefreshedMsg) {
	select {
	case r.resultCh <- msg:
	default:
		// Drop if the channel is full to avoid blocking the loop.
	}
}

// waitForResult returns a tea.Cmd that waits for the next result from
// the result channel.
func (r *Refresher) waitForResult() tea.Cmd {
	return func() tea.Msg {
		result, ok := <-r.resultCh
		if !ok {
			return nil
		}
		return result
	}
}

// WaitForNextResult returns a tea.Cmd that waits for the next refresh
// result. Call it after processing a RefreshedMsg to keep listening.
func (r *Refresher) WaitForNextResult() tea.Cmd {
	return r.waitForResult()
}
