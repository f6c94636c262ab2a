package maildetail

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/mastertenor/korgan/internal/keys"
	"github.com/mastertenor/korgan/internal/model"
	"github.com/mastertenor/korgan/internal/theme"
)

// BackMsg signals the parent to navigate back to the message list.
type BackMsg struct{}

// Model is the opened-message view. It renders the summary fields the
// engine already holds; no body fetch happens here.
type Model struct {
	mail     model.Mail
	hasMail  bool
	viewport viewport.Model
	keys     *keys.KeyMap
	backend  string
	width    int
	height   int
}

// New creates a new message detail model. The backend name is shown as a
// badge on every opened message.
func New(k *keys.KeyMap, backend string, width, height int) Model {
	vp := viewport.New(width, height-2)
	vp.Style = lipgloss.NewStyle()

	return Model{
		viewport: vp,
		keys:     k,
		backend:  backend,
		width:    width,
		height:   height,
	}
}

// Init returns the initial command for the detail view.
func (m Model) Init() tea.Cmd {
	return nil
}

// MailID returns the id of the message on display, or "" when none is.
func (m Model) MailID() string {
	if !m.hasMail {
		return ""
	}
	return m.mail.ID
}

// Update handles messages for the detail view.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok {
		switch {
		case key.Matches(msg, m.keys.Back), key.Matches(msg, m.keys.Select):
			return m, func() tea.Msg {
				return BackMsg{}
			}
		}
	}

	// Delegate to viewport for scrolling (j/k, up/down, pgup/pgdn)
	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

// View renders the detail view.
func (m Model) View() string {
	if !m.hasMail {
		emptyStyle := lipgloss.NewStyle().
			Width(m.width).
			Height(m.height).
			Align(lipgloss.Center, lipgloss.Center).
			Foreground(theme.ColorGray)
		return emptyStyle.Render("No message selected")
	}

	return m.viewport.View()
}

// renderContent builds the full detail content string for the viewport.
func (m Model) renderContent() string {
	if !m.hasMail {
		return ""
	}

	mail := m.mail
	var sections []string

	subject := mail.Subject
	if subject == "" {
		subject = "(no subject)"
	}
	titleStyle := lipgloss.NewStyle().Bold(true).Foreground(theme.ColorWhite)
	sections = append(sections, titleStyle.Render(subject))

	// Badges line: backend + read state + star + attachment
	var badges []string
	if m.backend != "" {
		badges = append(badges, theme.BackendLabelStyle(m.backend).Render(
			strings.ToUpper(m.backend),
		))
	}
	if mail.IsRead {
		badges = append(badges, theme.ReadStyle.Render("read"))
	} else {
		badges = append(badges, theme.UnreadStyle.Render("unread"))
	}
	if mail.IsStarred {
		badges = append(badges, theme.StarStyle.Render("★ starred"))
	}
	if mail.HasAttachment {
		badges = append(badges, theme.AttachmentStyle.Render("📎 attachment"))
	}
	sections = append(sections, strings.Join(badges, "  "))
	sections = append(sections, "")

	// Metadata table
	metaStyle := lipgloss.NewStyle().Foreground(theme.ColorGray)
	valStyle := lipgloss.NewStyle().Foreground(theme.ColorWhite)

	if mail.From != "" {
		sections = append(sections, fmt.Sprintf(
			"%s    %s",
			metaStyle.Render("From:"),
			valStyle.Render(mail.From),
		))
	}
	if !mail.Date.IsZero() {
		sections = append(sections, fmt.Sprintf(
			"%s    %s",
			metaStyle.Render("Date:"),
			valStyle.Render(mail.Date.Format("2006-01-02 15:04")),
		))
	}
	if len(mail.Labels) > 0 {
		sections = append(sections, fmt.Sprintf(
			"%s  %s",
			metaStyle.Render("Labels:"),
			valStyle.Render(strings.Join(mail.Labels, ", ")),
		))
	}
	if mail.ThreadID != "" && mail.ThreadID != mail.ID {
		sections = append(sections, fmt.Sprintf(
			"%s  %s",
			metaStyle.Render("Thread:"),
			valStyle.Render(mail.ThreadID),
		))
	}

	// Separator
	sepStyle := lipgloss.NewStyle().Foreground(theme.ColorSubtle)
	separator := sepStyle.Render(strings.Repeat("─", min(m.width-4, 80)))
	sections = append(sections, "")
	sections = append(sections, separator)
	sections = append(sections, "")

	preview := mail.Snippet
	if preview == "" {
		preview = lipgloss.NewStyle().
			Foreground(theme.ColorGray).
			Italic(true).
			Render("No preview available")
	}
	sections = append(sections, preview)

	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

// SetMail updates the message being displayed and re-renders the content.
func (m *Model) SetMail(mail model.Mail) {
	scrollToTop := mail.ID != m.mail.ID || !m.hasMail
	m.mail = mail
	m.hasMail = true
	m.viewport.SetContent(m.renderContent())
	if scrollToTop {
		m.viewport.GotoTop()
	}
}

// SetSize updates the detail view dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.viewport.Width = width
	m.viewport.Height = height - 2
	if m.hasMail {
		m.viewport.SetContent(m.renderContent())
	}
}
