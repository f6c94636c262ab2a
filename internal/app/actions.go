package app

import (
	"context"
	"errors"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/mastertenor/korgan/internal/model"
	"github.com/mastertenor/korgan/internal/prefs"
	"github.com/mastertenor/korgan/internal/source"
	"github.com/mastertenor/korgan/internal/store"
	"github.com/mastertenor/korgan/internal/ui/maillist"
)

// contextMsg carries the folder snapshot produced by one store operation.
type contextMsg struct {
	ctx store.MailContext
	err error
}

// sourceAuthBackend reports which backend raised an auth failure, if any.
func sourceAuthBackend(err error) (source.Backend, bool) {
	var authErr *source.AuthError
	if errors.As(err, &authErr) {
		return authErr.Backend, true
	}
	return "", false
}

// openFolderCmd opens a folder: a fresh resident context returns as-is,
// a stale or unloaded one is refetched.
func (m Model) openFolderCmd(folder model.Folder) tea.Cmd {
	s := m.store
	return func() tea.Msg {
		ctx, err := s.Open(context.Background(), folder)
		return contextMsg{ctx: ctx, err: err}
	}
}

// refreshCmd refetches the first page for a folder.
func (m Model) refreshCmd(folder model.Folder) tea.Cmd {
	s := m.store
	return func() tea.Msg {
		ctx, err := s.Refresh(context.Background(), folder)
		return contextMsg{ctx: ctx, err: err}
	}
}

// nextPageCmd advances the windowed pager.
func (m Model) nextPageCmd(folder model.Folder) tea.Cmd {
	s := m.store
	return func() tea.Msg {
		ctx, err := s.NextPage(context.Background(), folder)
		return contextMsg{ctx: ctx, err: err}
	}
}

// prevPageCmd steps the windowed pager back.
func (m Model) prevPageCmd(folder model.Folder) tea.Cmd {
	s := m.store
	return func() tea.Msg {
		ctx, err := s.PrevPage(context.Background(), folder)
		return contextMsg{ctx: ctx, err: err}
	}
}

// loadMoreCmd extends the resident window with the next page.
func (m Model) loadMoreCmd(folder model.Folder) tea.Cmd {
	s := m.store
	return func() tea.Msg {
		ctx, err := s.LoadMore(context.Background(), folder)
		return contextMsg{ctx: ctx, err: err}
	}
}

// markReadCmd sets or clears the read flag on one message.
func (m Model) markReadCmd(folder model.Folder, messageID string, read bool) tea.Cmd {
	s := m.store
	return func() tea.Msg {
		var (
			ctx store.MailContext
			err error
		)
		if read {
			ctx, err = s.MarkRead(context.Background(), folder, messageID)
		} else {
			ctx, err = s.MarkUnread(context.Background(), folder, messageID)
		}
		return contextMsg{ctx: ctx, err: err}
	}
}

// starCmd sets or clears the star flag on one message.
func (m Model) starCmd(folder model.Folder, messageID string, starred bool) tea.Cmd {
	s := m.store
	return func() tea.Msg {
		var (
			ctx store.MailContext
			err error
		)
		if starred {
			ctx, err = s.Star(context.Background(), folder, messageID)
		} else {
			ctx, err = s.Unstar(context.Background(), folder, messageID)
		}
		return contextMsg{ctx: ctx, err: err}
	}
}

// archiveCmd removes a message from its folder without deleting it.
func (m Model) archiveCmd(folder model.Folder, messageID string) tea.Cmd {
	s := m.store
	return func() tea.Msg {
		ctx, err := s.Archive(context.Background(), folder, messageID)
		return contextMsg{ctx: ctx, err: err}
	}
}

// trashCmd moves a message to the trash folder.
func (m Model) trashCmd(folder model.Folder, messageID string) tea.Cmd {
	s := m.store
	return func() tea.Msg {
		ctx, err := s.Trash(context.Background(), folder, messageID)
		return contextMsg{ctx: ctx, err: err}
	}
}

// restoreCmd moves a message out of the trash back to the inbox.
func (m Model) restoreCmd(folder model.Folder, messageID string) tea.Cmd {
	s := m.store
	return func() tea.Msg {
		ctx, err := s.Restore(context.Background(), folder, messageID)
		return contextMsg{ctx: ctx, err: err}
	}
}

// deleteCmd permanently deletes a message.
func (m Model) deleteCmd(folder model.Folder, messageID string) tea.Cmd {
	s := m.store
	return func() tea.Msg {
		ctx, err := s.Delete(context.Background(), folder, messageID)
		return contextMsg{ctx: ctx, err: err}
	}
}

// emptyTrashCmd permanently deletes everything in the trash folder.
func (m Model) emptyTrashCmd() tea.Cmd {
	s := m.store
	return func() tea.Msg {
		ctx, err := s.EmptyTrash(context.Background())
		return contextMsg{ctx: ctx, err: err}
	}
}

// persistFolderCmd remembers the folder to reopen on next start. A write
// failure only costs the remembered position, so it is dropped silently.
func (m Model) persistFolderCmd(folder model.Folder) tea.Cmd {
	p := m.prefs
	return func() tea.Msg {
		if p == nil {
			return nil
		}
		_ = p.Set(context.Background(), prefs.KeyLastFolder, string(folder))
		return nil
	}
}

// recordSearchCmd appends a submitted query to the search history.
func (m Model) recordSearchCmd(query string) tea.Cmd {
	p := m.prefs
	return func() tea.Msg {
		if p == nil {
			return nil
		}
		_ = p.RecordSearch(context.Background(), query)
		return nil
	}
}

// recentSearchesCmd loads the stored queries shown under an empty search
// prompt.
func (m Model) recentSearchesCmd() tea.Cmd {
	p := m.prefs
	return func() tea.Msg {
		if p == nil {
			return nil
		}
		queries, err := p.RecentSearches(context.Background(), 5)
		if err != nil || len(queries) == 0 {
			return nil
		}
		return maillist.RecentSearchesMsg{Queries: queries}
	}
}
