package app

import (
	"fmt"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/mastertenor/korgan/internal/keys"
	"github.com/mastertenor/korgan/internal/model"
	"github.com/mastertenor/korgan/internal/prefs"
	"github.com/mastertenor/korgan/internal/store"
	appsync "github.com/mastertenor/korgan/internal/sync"
	"github.com/mastertenor/korgan/internal/tree"
	"github.com/mastertenor/korgan/internal/ui"
	"github.com/mastertenor/korgan/internal/ui/foldertree"
	helpview "github.com/mastertenor/korgan/internal/ui/help"
	"github.com/mastertenor/korgan/internal/ui/maildetail"
	"github.com/mastertenor/korgan/internal/ui/maillist"
)

// ViewState represents the current active view in the application.
type ViewState int

const (
	ViewMail ViewState = iota
	ViewDetail
	ViewHelp
)

// pane identifies which side of the mail view owns the cursor.
type pane int

const (
	paneSidebar pane = iota
	paneList
)

// Model is the root Bubble Tea model that manages view routing, pane
// focus, and dispatch of every user action to the state engine. Each
// request message from a child view maps to exactly one store call; the
// resulting snapshot flows back to the message list as a contextMsg.
type Model struct {
	currentView  ViewState
	previousView ViewState
	layout       ui.Layout
	store        *store.Store
	tree         *tree.Store
	prefs        *prefs.Store
	keys         *keys.KeyMap
	folderTree   foldertree.Model
	mailList     maillist.Model
	detailView   maildetail.Model
	helpView     helpview.Model
	refresher    *appsync.Refresher

	focus        pane
	folder       model.Folder
	returnFolder model.Folder
	pending      int
	spin         spinner.Model
	ready        bool
	authMessage  string
}

// New creates the root application model. The initial folder is whatever
// the caller restored from preferences, defaulting to the inbox.
func New(s *store.Store, t *tree.Store, p *prefs.Store, r *appsync.Refresher, initial model.Folder) Model {
	k := keys.DefaultKeyMap()
	if initial == "" {
		initial = model.FolderInbox
	}

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	ft := foldertree.New(t, k, 28, 24)
	ft.SetActive(initial)
	ft.SetFocused(false)

	return Model{
		currentView:  ViewMail,
		store:        s,
		tree:         t,
		prefs:        p,
		keys:         k,
		folderTree:   ft,
		mailList:     maillist.New(k, 52, 24),
		detailView:   maildetail.New(k, string(s.Backend()), 80, 24),
		helpView:     helpview.New(k, 80, 24),
		refresher:    r,
		focus:        paneList,
		folder:       initial,
		returnFolder: model.FolderInbox,
		spin:         sp,
	}
}

// Init loads the folder tree, starts the background refresher, and opens
// the initial folder through the regular selection path.
func (m Model) Init() tea.Cmd {
	folder := m.folder
	return tea.Batch(
		m.folderTree.Init(),
		m.refresher.Start(),
		func() tea.Msg { return foldertree.FolderSelectedMsg{Folder: folder} },
	)
}

// Update handles messages and dispatches to the active view.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.layout = ui.NewLayout(msg.Width, msg.Height)
		m.ready = true
		m.folderTree.SetSize(m.layout.SidebarWidth(), m.layout.ContentHeight())
		m.mailList.SetSize(m.layout.ListWidth(), m.layout.ContentHeight())
		m.detailView.SetSize(m.layout.ContentWidth(), m.layout.ContentHeight())
		m.helpView.SetSize(m.layout.ContentWidth(), m.layout.ContentHeight())
		return m, nil

	case contextMsg:
		return m.applyContext(msg)

	case appsync.RefreshedMsg:
		if msg.Auth != nil {
			m.authMessage = msg.Auth.Message
		} else if msg.Error == nil {
			m.authMessage = ""
		}
		waitCmd := m.refresher.WaitForNextResult()
		if msg.Folder != m.folder {
			return m, waitCmd
		}
		var cmd tea.Cmd
		m.mailList, cmd = m.mailList.Update(maillist.ContextMsg{Ctx: msg.Context})
		return m, tea.Batch(cmd, waitCmd)

	case foldertree.FolderSelectedMsg:
		return m.switchFolder(msg.Folder)

	case foldertree.TreeChangedMsg:
		// The open folder may have been renamed or deleted; fall back to
		// the inbox when its label is gone.
		if m.folder.IsLabel() {
			if _, ok := m.tree.FindBySlug(m.folder.LabelID()); !ok {
				return m.switchFolder(model.FolderInbox)
			}
		}
		return m, nil

	case maillist.SelectedMsg:
		return m.openMessage(msg.MessageID)

	case maildetail.BackMsg:
		m.currentView = ViewMail
		return m, nil

	case maillist.SearchStartedMsg:
		return m, m.recentSearchesCmd()

	case maillist.RecentSearchesMsg:
		var cmd tea.Cmd
		m.mailList, cmd = m.mailList.Update(msg)
		return m, cmd

	case maillist.RefreshRequestMsg:
		return m.dispatch(m.refreshCmd(m.folder))

	case maillist.NextPageRequestMsg:
		return m.dispatch(m.nextPageCmd(m.folder))

	case maillist.PrevPageRequestMsg:
		return m.dispatch(m.prevPageCmd(m.folder))

	case maillist.LoadMoreRequestMsg:
		return m.dispatch(m.loadMoreCmd(m.folder))

	case maillist.SearchRequestMsg:
		next, cmd := m.switchFolder(model.SearchFolder(msg.Query))
		return next, tea.Batch(cmd, m.recordSearchCmd(msg.Query))

	case maillist.MarkReadRequestMsg:
		return m.dispatch(m.markReadCmd(m.folder, msg.MessageID, msg.Read))

	case maillist.StarRequestMsg:
		return m.dispatch(m.starCmd(m.folder, msg.MessageID, msg.Starred))

	case maillist.ArchiveRequestMsg:
		return m.dispatch(m.archiveCmd(m.folder, msg.MessageID))

	case maillist.TrashRequestMsg:
		return m.dispatch(m.trashCmd(m.folder, msg.MessageID))

	case maillist.RestoreRequestMsg:
		if m.folder != model.FolderTrash {
			return m, nil
		}
		return m.dispatch(m.restoreCmd(m.folder, msg.MessageID))

	case maillist.DeleteRequestMsg:
		if m.folder != model.FolderTrash && m.folder != model.FolderSpam {
			return m, nil
		}
		return m.dispatch(m.deleteCmd(m.folder, msg.MessageID))

	case maillist.EmptyTrashRequestMsg:
		if m.folder != model.FolderTrash {
			return m, nil
		}
		return m.dispatch(m.emptyTrashCmd())

	case spinner.TickMsg:
		if m.pending > 0 {
			var cmd tea.Cmd
			m.spin, cmd = m.spin.Update(msg)
			return m, cmd
		}
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	return m.updateActivePane(msg)
}

// handleKey routes key presses: global chrome keys first, then the
// focused pane. While a text input or form owns the keyboard, only
// ctrl+c is intercepted.
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.String() == "ctrl+c" {
		m.refresher.Stop()
		return m, tea.Quit
	}

	if m.typing() {
		return m.updateActivePane(msg)
	}

	switch {
	case key.Matches(msg, m.keys.Quit):
		if m.currentView == ViewDetail {
			m.currentView = ViewMail
			return m, nil
		}
		if m.currentView == ViewMail {
			m.refresher.Stop()
			return m, tea.Quit
		}

	case key.Matches(msg, m.keys.Help):
		if m.currentView == ViewHelp {
			m.currentView = m.previousView
			return m, nil
		}
		m.previousView = m.currentView
		m.currentView = ViewHelp
		return m, nil

	case key.Matches(msg, m.keys.FocusPane):
		if m.currentView != ViewMail {
			break
		}
		if m.focus == paneSidebar {
			m.focus = paneList
		} else {
			m.focus = paneSidebar
		}
		m.folderTree.SetFocused(m.focus == paneSidebar)
		return m, nil

	case key.Matches(msg, m.keys.Back):
		if m.currentView == ViewHelp {
			m.currentView = m.previousView
			return m, nil
		}
		if m.currentView == ViewMail && m.focus == paneList && m.folder.IsSearch() {
			return m.switchFolder(m.returnFolder)
		}
	}

	return m.updateActivePane(msg)
}

// typing reports whether a child input currently owns the keyboard.
func (m Model) typing() bool {
	if m.currentView != ViewMail {
		return false
	}
	return m.mailList.Searching() || m.folderTree.Editing()
}

// updateActivePane dispatches the message to the focused pane or view.
func (m Model) updateActivePane(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch m.currentView {
	case ViewMail:
		if m.focus == paneSidebar {
			m.folderTree, cmd = m.folderTree.Update(msg)
		} else {
			m.mailList, cmd = m.mailList.Update(msg)
		}
	case ViewDetail:
		m.detailView, cmd = m.detailView.Update(msg)
	case ViewHelp:
		m.helpView, cmd = m.helpView.Update(msg)
	}

	return m, cmd
}

// openMessage shows a message in the detail view. Opening an unread
// message marks it read.
func (m Model) openMessage(messageID string) (tea.Model, tea.Cmd) {
	for _, mail := range m.mailList.Context().Messages {
		if mail.ID != messageID {
			continue
		}
		m.detailView.SetMail(mail)
		m.currentView = ViewDetail
		if mail.IsRead {
			return m, nil
		}
		return m.dispatch(m.markReadCmd(m.folder, mail.ID, true))
	}
	return m, nil
}

// switchFolder makes a folder current: the sidebar marks it active, the
// resident snapshot renders immediately, and a fetch runs when the
// context is stale. Non-search folders are remembered as the place to
// return to when a search closes, and persisted as the last folder.
func (m Model) switchFolder(folder model.Folder) (tea.Model, tea.Cmd) {
	if folder.IsSearch() && !m.folder.IsSearch() {
		m.returnFolder = m.folder
	}
	m.folder = folder
	m.folderTree.SetActive(folder)
	m.currentView = ViewMail
	m.focus = paneList
	m.folderTree.SetFocused(false)

	var listCmd tea.Cmd
	m.mailList, listCmd = m.mailList.Update(maillist.ContextMsg{Ctx: m.store.Context(folder)})

	m.pending++
	cmds := []tea.Cmd{listCmd, m.openFolderCmd(folder), m.spin.Tick}
	if !folder.IsSearch() {
		cmds = append(cmds, m.persistFolderCmd(folder))
	}
	return m, tea.Batch(cmds...)
}

// dispatch runs one store-backed command and tracks it for the loading
// indicator.
func (m Model) dispatch(cmd tea.Cmd) (tea.Model, tea.Cmd) {
	m.pending++
	return m, tea.Batch(cmd, m.spin.Tick)
}

// applyContext folds a completed store operation back into the UI.
func (m Model) applyContext(msg contextMsg) (tea.Model, tea.Cmd) {
	if m.pending > 0 {
		m.pending--
	}

	if msg.err != nil {
		if authMsg := authMessage(msg.err); authMsg != "" {
			m.authMessage = authMsg
		}
	} else {
		m.authMessage = ""
	}

	// A result for a folder the user already left still counted against
	// pending, but its snapshot is not shown.
	if msg.ctx.Folder != m.folder {
		return m, nil
	}

	// Keep the open message in step with its context, e.g. after the
	// mark-read that opening it triggered.
	if m.currentView == ViewDetail {
		for _, mail := range msg.ctx.Messages {
			if mail.ID == m.detailView.MailID() {
				m.detailView.SetMail(mail)
				break
			}
		}
	}

	var cmd tea.Cmd
	m.mailList, cmd = m.mailList.Update(maillist.ContextMsg{Ctx: msg.ctx})
	return m, cmd
}

// View renders the full terminal UI using the layout manager.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}

	header := m.layout.RenderHeader(m.headerTitle(), m.refreshStatus())
	content := m.renderContent()
	statusBar := m.layout.RenderStatusBar(m.keyHints())

	return m.layout.RenderWithFrame(header, content, statusBar)
}

// renderContent returns the rendered string for the current active view.
func (m Model) renderContent() string {
	switch m.currentView {
	case ViewDetail:
		return m.detailView.View()
	case ViewHelp:
		return m.helpView.View()
	default:
		return m.layout.RenderSplit(m.folderTree.View(), m.mailList.View())
	}
}

// headerTitle returns the header text with the unread badge.
func (m Model) headerTitle() string {
	title := "Korgan Mail"
	ctx := m.mailList.Context()
	if ctx.UnreadCount > 0 {
		title = fmt.Sprintf("Korgan Mail [%d unread]", ctx.UnreadCount)
	}
	return title
}

// refreshStatus returns a short string describing fetch activity.
func (m Model) refreshStatus() string {
	if m.pending > 0 {
		return m.spin.View() + " loading"
	}
	st := m.refresher.Status()
	switch st.State {
	case appsync.RefreshRunning:
		return "refreshing"
	case appsync.RefreshError:
		return "⚠ refresh failed"
	}
	return "idle"
}

// keyHints returns keyboard shortcut hints for the status bar.
func (m Model) keyHints() string {
	// Show auth errors prominently when present.
	if m.authMessage != "" && m.currentView == ViewMail {
		return m.authMessage
	}

	switch {
	case m.currentView == ViewHelp:
		return "? close help | esc back"
	case m.currentView == ViewDetail:
		return "esc back | j/k scroll | ? help"
	case m.focus == paneSidebar:
		return "enter open | h/l fold | n new | e rename | d delete | tab messages"
	default:
		ctx := m.mailList.Context()
		if ctx.LastError != "" {
			return "⚠ " + ctx.LastError + " | r retry"
		}
		summary := fmt.Sprintf("page %d", ctx.CurrentPage)
		if ctx.TotalEstimate > 0 {
			summary += fmt.Sprintf(" | %d of %d", len(ctx.Messages), ctx.TotalEstimate)
		}
		if ctx.HasMore {
			summary += " | l next"
		}
		return summary + " | / search | ? help | q quit"
	}
}

// authMessage extracts a reconnect prompt from classified auth failures.
func authMessage(err error) string {
	if backend, ok := sourceAuthBackend(err); ok {
		return fmt.Sprintf("%s: authentication expired, reconnect the account", backend)
	}
	return ""
}
