package maillist

import (
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/mastertenor/korgan/internal/keys"
	"github.com/mastertenor/korgan/internal/model"
	"github.com/mastertenor/korgan/internal/store"
	"github.com/mastertenor/korgan/internal/theme"
)

// ContextMsg delivers a fresh folder snapshot to the list.
type ContextMsg struct {
	Ctx store.MailContext
}

// SelectedMsg is sent when the user opens a message.
type SelectedMsg struct {
	MessageID string
}

// RefreshRequestMsg is sent when the user asks for a manual refresh.
type RefreshRequestMsg struct{}

// NextPageRequestMsg is sent when the user pages forward.
type NextPageRequestMsg struct{}

// PrevPageRequestMsg is sent when the user pages back.
type PrevPageRequestMsg struct{}

// LoadMoreRequestMsg is sent when the user extends the current window.
type LoadMoreRequestMsg struct{}

// SearchRequestMsg is sent when the user submits a search query.
type SearchRequestMsg struct {
	Query string
}

// SearchStartedMsg is sent when the user enters search mode; the app
// answers with the stored recent queries.
type SearchStartedMsg struct{}

// RecentSearchesMsg delivers stored recent queries for the search hint.
type RecentSearchesMsg struct {
	Queries []string
}

// MarkReadRequestMsg is sent when the user toggles the read flag.
type MarkReadRequestMsg struct {
	MessageID string
	Read      bool
}

// StarRequestMsg is sent when the user toggles the star flag.
type StarRequestMsg struct {
	MessageID string
	Starred   bool
}

// ArchiveRequestMsg is sent when the user archives a message.
type ArchiveRequestMsg struct {
	MessageID string
}

// TrashRequestMsg is sent when the user moves a message to trash.
type TrashRequestMsg struct {
	MessageID string
}

// RestoreRequestMsg is sent when the user restores a message from trash.
type RestoreRequestMsg struct {
	MessageID string
}

// DeleteRequestMsg is sent when the user permanently deletes a message.
type DeleteRequestMsg struct {
	MessageID string
}

// EmptyTrashRequestMsg is sent when the user empties the trash folder.
type EmptyTrashRequestMsg struct{}

// Model is the message list view component. It renders the context
// snapshots the app feeds it and turns key presses into typed request
// messages; it never calls the store itself.
type Model struct {
	list        list.Model
	keys        *keys.KeyMap
	ctx         store.MailContext
	searchMode  bool
	searchInput textinput.Model
	recent      []string
	width       int
	height      int
}

// New creates a new message list model.
func New(k *keys.KeyMap, width, height int) Model {
	delegate := ItemDelegate{}
	l := list.New([]list.Item{}, delegate, width, height-2)
	l.Title = "Inbox"
	l.SetShowStatusBar(true)
	l.SetShowHelp(false)
	l.SetFilteringEnabled(false)
	l.Styles.Title = theme.HeaderStyle

	si := textinput.New()
	si.Placeholder = "search mail..."
	si.Prompt = "/ "
	si.Width = width - 4

	return Model{
		list:        l,
		keys:        k,
		searchInput: si,
		width:       width,
		height:      height,
	}
}

// Context returns the snapshot the list is currently rendering.
func (m Model) Context() store.MailContext {
	return m.ctx
}

// Searching reports whether the search input owns the keyboard.
func (m Model) Searching() bool {
	return m.searchMode
}

// Update handles messages for the message list view.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case ContextMsg:
		m.ctx = msg.Ctx
		items := make([]list.Item, len(msg.Ctx.Messages))
		for i, mail := range msg.Ctx.Messages {
			items[i] = MailItem{Mail: mail}
		}
		m.list.Title = msg.Ctx.Folder.DisplayName()
		cmd := m.list.SetItems(items)
		return m, cmd

	case RecentSearchesMsg:
		m.recent = msg.Queries
		return m, nil

	case tea.KeyMsg:
		if m.searchMode {
			return m.handleSearchKeys(msg)
		}
		return m.handleNormalKeys(msg)
	}

	// Delegate to list model for other messages
	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

// handleSearchKeys processes key input while in search mode.
func (m Model) handleSearchKeys(msg tea.KeyMsg) (Model, tea.Cmd) {
	switch msg.String() {
	case "enter":
		m.searchMode = false
		query := m.searchInput.Value()
		if query == "" {
			return m, nil
		}
		return m, func() tea.Msg {
			return SearchRequestMsg{Query: query}
		}

	case "esc":
		m.searchMode = false
		m.searchInput.Reset()
		return m, nil
	}

	var cmd tea.Cmd
	m.searchInput, cmd = m.searchInput.Update(msg)
	return m, cmd
}

// handleNormalKeys processes key input in normal (non-search) mode.
func (m Model) handleNormalKeys(msg tea.KeyMsg) (Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Select):
		mail, ok := m.selectedMail()
		if !ok {
			return m, nil
		}
		return m, func() tea.Msg {
			return SelectedMsg{MessageID: mail.ID}
		}

	case key.Matches(msg, m.keys.Search):
		m.searchMode = true
		m.searchInput.Reset()
		return m, tea.Batch(
			m.searchInput.Focus(),
			func() tea.Msg { return SearchStartedMsg{} },
		)

	case key.Matches(msg, m.keys.Refresh):
		return m, func() tea.Msg { return RefreshRequestMsg{} }

	case key.Matches(msg, m.keys.NextPage):
		return m, func() tea.Msg { return NextPageRequestMsg{} }

	case key.Matches(msg, m.keys.PrevPage):
		return m, func() tea.Msg { return PrevPageRequestMsg{} }

	case key.Matches(msg, m.keys.LoadMore):
		return m, func() tea.Msg { return LoadMoreRequestMsg{} }

	case key.Matches(msg, m.keys.ToggleRead):
		mail, ok := m.selectedMail()
		if !ok {
			return m, nil
		}
		return m, func() tea.Msg {
			return MarkReadRequestMsg{MessageID: mail.ID, Read: !mail.IsRead}
		}

	case key.Matches(msg, m.keys.Star):
		mail, ok := m.selectedMail()
		if !ok {
			return m, nil
		}
		return m, func() tea.Msg {
			return StarRequestMsg{MessageID: mail.ID, Starred: !mail.IsStarred}
		}

	case key.Matches(msg, m.keys.Archive):
		mail, ok := m.selectedMail()
		if !ok {
			return m, nil
		}
		return m, func() tea.Msg {
			return ArchiveRequestMsg{MessageID: mail.ID}
		}

	case key.Matches(msg, m.keys.Trash):
		mail, ok := m.selectedMail()
		if !ok {
			return m, nil
		}
		return m, func() tea.Msg {
			return TrashRequestMsg{MessageID: mail.ID}
		}

	case key.Matches(msg, m.keys.Restore):
		mail, ok := m.selectedMail()
		if !ok {
			return m, nil
		}
		return m, func() tea.Msg {
			return RestoreRequestMsg{MessageID: mail.ID}
		}

	case key.Matches(msg, m.keys.Delete):
		mail, ok := m.selectedMail()
		if !ok {
			return m, nil
		}
		return m, func() tea.Msg {
			return DeleteRequestMsg{MessageID: mail.ID}
		}

	case key.Matches(msg, m.keys.EmptyTrash):
		return m, func() tea.Msg { return EmptyTrashRequestMsg{} }
	}

	// Delegate to the list for navigation keys (up/down/pgup/pgdn)
	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

// selectedMail returns the message under the cursor.
func (m Model) selectedMail() (model.Mail, bool) {
	item, ok := m.list.SelectedItem().(MailItem)
	if !ok {
		return model.Mail{}, false
	}
	return item.Mail, true
}

// View renders the message list view.
func (m Model) View() string {
	if m.searchMode {
		searchBar := lipgloss.NewStyle().
			Foreground(theme.ColorWhite).
			Padding(0, 1).
			Render(m.searchInput.View())
		parts := []string{searchBar}
		if m.searchInput.Value() == "" && len(m.recent) > 0 {
			parts = append(parts, theme.HelpStyle.Render(
				"recent: "+strings.Join(m.recent, " · "),
			))
		}
		parts = append(parts, m.list.View())
		return lipgloss.JoinVertical(lipgloss.Left, parts...)
	}

	if len(m.list.Items()) == 0 {
		return m.renderEmptyState()
	}

	return m.list.View()
}

// renderEmptyState shows guidance text when no messages are resident.
func (m Model) renderEmptyState() string {
	style := lipgloss.NewStyle().
		Width(m.width).
		Height(m.height).
		Align(lipgloss.Center, lipgloss.Center).
		Foreground(theme.ColorGray)

	switch {
	case m.ctx.LastError != "":
		headline := theme.ErrorStyle.Render("Couldn't load messages.")
		return style.Render(headline + "\n\nPress r to retry.")
	case m.ctx.Filter.Query != "":
		return style.Render("No messages match this search.")
	default:
		return style.Render("No messages here.")
	}
}

// SetSize updates the list dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.list.SetSize(width, height-2)
	m.searchInput.Width = width - 4
}
