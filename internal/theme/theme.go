package theme

import "github.com/charmbracelet/lipgloss"

// Adaptive color pairs (dark terminal value, light terminal value).
var (
	ColorBlue    = lipgloss.AdaptiveColor{Dark: "#5B9BD5", Light: "#2B6CB0"}
	ColorGreen   = lipgloss.AdaptiveColor{Dark: "#6BCB77", Light: "#2F855A"}
	ColorYellow  = lipgloss.AdaptiveColor{Dark: "#FFD93D", Light: "#B7791F"}
	ColorRed     = lipgloss.AdaptiveColor{Dark: "#FF6B6B", Light: "#C53030"}
	ColorOrange  = lipgloss.AdaptiveColor{Dark: "#FFA94D", Light: "#C05621"}
	ColorMagenta = lipgloss.AdaptiveColor{Dark: "#CC5DE8", Light: "#805AD5"}
	ColorGray    = lipgloss.AdaptiveColor{Dark: "#868E96", Light: "#718096"}
	ColorWhite   = lipgloss.AdaptiveColor{Dark: "#F8F9FA", Light: "#1A202C"}
	ColorSubtle  = lipgloss.AdaptiveColor{Dark: "#495057", Light: "#CBD5E0"}
	ColorBorder  = lipgloss.AdaptiveColor{Dark: "#495057", Light: "#E2E8F0"}
)

// HeaderStyle is used for top-level section headers and the application title.
var HeaderStyle = lipgloss.NewStyle().
	Bold(true).
	Foreground(ColorWhite).
	Background(ColorBlue).
	Padding(0, 1)

// StatusBarStyle is used for the bottom status bar.
var StatusBarStyle = lipgloss.NewStyle().
	Foreground(ColorWhite).
	Background(ColorSubtle).
	Padding(0, 1)

// SidebarStyle wraps the folder tree pane.
var SidebarStyle = lipgloss.NewStyle().
	Padding(0, 1).
	Border(lipgloss.RoundedBorder()).
	BorderForeground(ColorBorder)

// SidebarFocusedStyle marks the folder tree pane as focused.
var SidebarFocusedStyle = SidebarStyle.
	BorderForeground(ColorBlue)

// ListItemStyle is the base style for items in a list.
var ListItemStyle = lipgloss.NewStyle().
	PaddingLeft(2)

// SelectedItemStyle highlights the currently focused list item.
var SelectedItemStyle = lipgloss.NewStyle().
	PaddingLeft(1).
	Bold(true).
	Foreground(ColorBlue).
	Border(lipgloss.NormalBorder(), false, false, false, true).
	BorderForeground(ColorBlue)

// HelpStyle is used for keyboard shortcut hints and help text.
var HelpStyle = lipgloss.NewStyle().
	Foreground(ColorGray).
	Italic(true)

// BorderStyle provides a standard rounded border for panels.
var BorderStyle = lipgloss.NewStyle().
	Border(lipgloss.RoundedBorder()).
	BorderForeground(ColorBorder)

// DetailPanelStyle wraps full-screen panel content such as the help view.
var DetailPanelStyle = lipgloss.NewStyle().
	Padding(1, 2).
	Border(lipgloss.RoundedBorder()).
	BorderForeground(ColorBorder)

// UnreadStyle renders sender and subject for messages not yet read.
var UnreadStyle = lipgloss.NewStyle().
	Bold(true).
	Foreground(ColorWhite)

// ReadStyle renders sender and subject for messages already read.
var ReadStyle = lipgloss.NewStyle().
	Foreground(ColorGray)

// SnippetStyle renders the one-line body preview.
var SnippetStyle = lipgloss.NewStyle().
	Foreground(ColorSubtle)

// StarStyle renders the starred marker.
var StarStyle = lipgloss.NewStyle().
	Foreground(ColorYellow)

// AttachmentStyle renders the attachment marker.
var AttachmentStyle = lipgloss.NewStyle().
	Foreground(ColorGray)

// ImportantStyle renders the important-message marker.
var ImportantStyle = lipgloss.NewStyle().
	Foreground(ColorOrange)

// ErrorStyle renders inline error banners.
var ErrorStyle = lipgloss.NewStyle().
	Bold(true).
	Foreground(ColorRed)

// FolderStyle returns a color-coded style for the given folder key.
func FolderStyle(folder string) lipgloss.Style {
	base := lipgloss.NewStyle()

	switch folder {
	case "inbox":
		return base.Foreground(ColorBlue)
	case "starred":
		return base.Foreground(ColorYellow)
	case "important":
		return base.Foreground(ColorOrange)
	case "trash", "spam":
		return base.Foreground(ColorRed)
	default:
		return base.Foreground(ColorWhite)
	}
}

// BackendLabelStyle returns a color-coded style for the given backend label.
func BackendLabelStyle(backend string) lipgloss.Style {
	base := lipgloss.NewStyle().Bold(true).Padding(0, 1)

	switch backend {
	case "api":
		return base.Foreground(ColorBlue)
	case "gmail":
		return base.Foreground(ColorRed)
	case "imap":
		return base.Foreground(ColorGreen)
	default:
		return base.Foreground(ColorGray)
	}
}
