package maillist

import (
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/mastertenor/korgan/internal/model"
	"github.com/mastertenor/korgan/internal/theme"
)

// Column widths for the single-line message row.
const (
	fromWidth    = 22
	snippetWidth = 60
)

// MailItem wraps a model.Mail so it can be used in a bubbles/list.
type MailItem struct {
	Mail model.Mail
}

// FilterValue returns the string used for fuzzy filtering.
func (i MailItem) FilterValue() string {
	return i.Mail.From + " " + i.Mail.Subject
}

// ItemDelegate implements list.ItemDelegate for rendering message rows.
type ItemDelegate struct{}

// Height returns the number of lines each item takes.
func (d ItemDelegate) Height() int { return 1 }

// Spacing returns the number of blank lines between items.
func (d ItemDelegate) Spacing() int { return 0 }

// Update handles per-item messages (unused for now).
func (d ItemDelegate) Update(_ tea.Msg, _ *list.Model) tea.Cmd {
	return nil
}

// Render draws a single message line.
func (d ItemDelegate) Render(w io.Writer, m list.Model, index int, item list.Item) {
	mi, ok := item.(MailItem)
	if !ok {
		return
	}

	msg := mi.Mail
	isSelected := index == m.Index()

	// Unread marker
	marker := " "
	if !msg.IsRead {
		marker = "●"
	}

	// Star marker
	star := " "
	if msg.IsStarred {
		star = theme.StarStyle.Render("★")
	}

	rowStyle := theme.ReadStyle
	if !msg.IsRead {
		rowStyle = theme.UnreadStyle
	}

	from := rowStyle.Render(fmt.Sprintf("%-*s", fromWidth, truncate(msg.From, fromWidth)))

	subject := msg.Subject
	if subject == "" {
		subject = "(no subject)"
	}
	subjectPart := rowStyle.Render(subject)

	// Importance and attachment markers
	imp := ""
	if msg.HasLabel("IMPORTANT") {
		imp = theme.ImportantStyle.Render(" !")
	}
	attach := ""
	if msg.HasAttachment {
		attach = theme.AttachmentStyle.Render(" 📎")
	}

	snippet := ""
	if msg.Snippet != "" {
		snippet = theme.SnippetStyle.Render("  " + truncate(msg.Snippet, snippetWidth))
	}

	timeStr := theme.SnippetStyle.Render("  " + relativeTime(msg.Date))

	line := fmt.Sprintf(
		"%s%s %s %s%s%s%s%s",
		marker, star, from, subjectPart, imp, attach, snippet, timeStr,
	)

	if isSelected {
		line = theme.SelectedItemStyle.Render(line)
	} else {
		line = theme.ListItemStyle.Render(line)
	}

	fmt.Fprint(w, line)
}

// truncate shortens a string to max runes, marking the cut with an ellipsis.
func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	if max <= 1 {
		return string(r[:max])
	}
	return string(r[:max-1]) + "…"
}

// relativeTime returns a human-friendly relative time string.
func relativeTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}

	d := time.Since(t)
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		mins := int(d.Minutes())
		if mins == 1 {
			return "1m ago"
		}
		return fmt.Sprintf("%dm ago", mins)
	case d < 24*time.Hour:
		hrs := int(d.Hours())
		if hrs == 1 {
			return "1h ago"
		}
		return fmt.Sprintf("%dh ago", hrs)
	case d < 7*24*time.Hour:
		days := int(d.Hours() / 24)
		if days == 1 {
			return "1d ago"
		}
		return fmt.Sprintf("%dd ago", days)
	default:
		weeks := int(d.Hours() / 24 / 7)
		if weeks == 1 {
			return "1w ago"
		}
		return fmt.Sprintf("%dw ago", weeks)
	}
}
