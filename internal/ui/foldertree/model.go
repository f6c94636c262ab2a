package foldertree

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/mastertenor/korgan/internal/keys"
	"github.com/mastertenor/korgan/internal/model"
	"github.com/mastertenor/korgan/internal/theme"
	"github.com/mastertenor/korgan/internal/tree"
)

// FolderSelectedMsg is sent when the user opens a folder from the sidebar.
type FolderSelectedMsg struct {
	Folder model.Folder
}

// TreeChangedMsg signals that folders were created, renamed or deleted.
type TreeChangedMsg struct{}

type treeMode int

const (
	modeList treeMode = iota
	modeForm
	modeConfirmDelete
)

type formBindings struct {
	title   string
	confirm bool
}

type treeLoadedMsg struct{ err error }
type nodeSavedMsg struct{ err error }
type nodeDeletedMsg struct{ err error }

type rowKind int

const (
	rowSystem rowKind = iota
	rowLabel
)

// row is one visible line of the sidebar: a system folder or a label node.
type row struct {
	kind        rowKind
	folder      model.Folder
	nodeID      string
	slug        string
	title       string
	depth       int
	hasChildren bool
}

// Model is the folder sidebar: system folders on top, the user's label
// tree below, with create/rename/delete flows handled inline.
type Model struct {
	mode        treeMode
	tree        *tree.Store
	keys        *keys.KeyMap
	rows        []row
	expanded    map[string]bool
	selectedIdx int
	active      model.Folder
	focused     bool
	editingID   string
	parentSlug  string
	isNew       bool
	form        *huh.Form
	confirmForm *huh.Form
	fb          *formBindings
	statusMsg   string
	width       int
	height      int
}

// New creates a new folder sidebar model.
func New(t *tree.Store, k *keys.KeyMap, width, height int) Model {
	m := Model{
		mode:     modeList,
		tree:     t,
		keys:     k,
		fb:       &formBindings{},
		expanded: make(map[string]bool),
		active:   model.FolderInbox,
		width:    width, height: height,
	}
	m.rebuildRows()
	return m
}

// Init loads the folder tree.
func (m Model) Init() tea.Cmd {
	return m.loadTree(false)
}

// SetActive marks the folder currently open in the message list.
func (m *Model) SetActive(folder model.Folder) {
	m.active = folder
}

// SetFocused toggles whether the sidebar owns the cursor.
func (m *Model) SetFocused(focused bool) {
	m.focused = focused
}

// Editing reports whether a form or confirm flow is active.
func (m Model) Editing() bool {
	return m.mode != modeList
}

// Update handles messages.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case treeLoadedMsg:
		if msg.err != nil {
			m.statusMsg = fmt.Sprintf("Error: %v", msg.err)
			return m, nil
		}
		m.statusMsg = ""
		// Newly fetched nodes default to the depth rule; manual
		// expand/collapse choices survive the reload.
		for id, exp := range m.tree.Expansion() {
			if _, seen := m.expanded[id]; !seen {
				m.expanded[id] = exp
			}
		}
		m.rebuildRows()
		return m, nil

	case nodeSavedMsg:
		if msg.err != nil {
			m.statusMsg = fmt.Sprintf("Error: %v", msg.err)
		} else {
			m.statusMsg = "Folder saved"
		}
		m.mode = modeList
		return m, tea.Batch(m.loadTree(true), func() tea.Msg { return TreeChangedMsg{} })

	case nodeDeletedMsg:
		if msg.err != nil {
			m.statusMsg = fmt.Sprintf("Error: %v", msg.err)
		} else {
			m.statusMsg = "Folder deleted"
		}
		m.mode = modeList
		return m, tea.Batch(m.loadTree(true), func() tea.Msg { return TreeChangedMsg{} })

	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	return m.updateActiveForm(msg)
}

func (m Model) handleKey(msg tea.KeyMsg) (Model, tea.Cmd) {
	switch m.mode {
	case modeList:
		return m.handleListKey(msg)
	case modeForm:
		return m.updateForm(msg)
	case modeConfirmDelete:
		return m.updateConfirm(msg)
	}
	return m, nil
}

func (m Model) handleListKey(msg tea.KeyMsg) (Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Down):
		if len(m.rows) > 0 {
			m.selectedIdx = (m.selectedIdx + 1) % len(m.rows)
		}
		return m, nil

	case key.Matches(msg, m.keys.Up):
		if len(m.rows) > 0 {
			m.selectedIdx--
			if m.selectedIdx < 0 {
				m.selectedIdx = len(m.rows) - 1
			}
		}
		return m, nil

	case key.Matches(msg, m.keys.Select):
		r, ok := m.selectedRow()
		if !ok {
			return m, nil
		}
		folder := r.folder
		return m, func() tea.Msg {
			return FolderSelectedMsg{Folder: folder}
		}

	case key.Matches(msg, m.keys.NextPage):
		// In the sidebar l/→ expands the selected node.
		if r, ok := m.selectedRow(); ok && r.kind == rowLabel && r.hasChildren {
			m.expanded[r.nodeID] = true
			m.rebuildRows()
		}
		return m, nil

	case key.Matches(msg, m.keys.PrevPage):
		// And h/← collapses it.
		if r, ok := m.selectedRow(); ok && r.kind == rowLabel && r.hasChildren {
			m.expanded[r.nodeID] = false
			m.rebuildRows()
		}
		return m, nil

	case key.Matches(msg, m.keys.Refresh):
		return m, m.loadTree(true)

	case msg.String() == "n":
		m.isNew = true
		m.editingID = ""
		m.parentSlug = ""
		if r, ok := m.selectedRow(); ok && r.kind == rowLabel {
			m.parentSlug = r.slug
		}
		m.fb.title = ""
		m.form = m.buildForm()
		m.mode = modeForm
		return m, m.form.Init()

	case msg.String() == "e":
		r, ok := m.selectedRow()
		if !ok || r.kind != rowLabel {
			return m, nil
		}
		m.isNew = false
		m.editingID = r.nodeID
		m.fb.title = r.title
		m.form = m.buildForm()
		m.mode = modeForm
		return m, m.form.Init()

	case msg.String() == "d":
		r, ok := m.selectedRow()
		if !ok || r.kind != rowLabel {
			return m, nil
		}
		m.fb.confirm = false
		m.confirmForm = m.buildConfirmForm()
		m.mode = modeConfirmDelete
		return m, m.confirmForm.Init()
	}
	return m, nil
}

func (m Model) buildForm() *huh.Form {
	title := "New folder"
	if !m.isNew {
		title = "Rename folder"
	}
	return huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title(title).
				Placeholder("Folder name").
				Value(&m.fb.title).
				Validate(func(s string) error {
					if strings.TrimSpace(s) == "" {
						return fmt.Errorf("name is required")
					}
					return nil
				}),
		),
	).WithWidth(m.formWidth()).WithHeight(m.formHeight())
}

func (m Model) buildConfirmForm() *huh.Form {
	name := ""
	if r, ok := m.selectedRow(); ok {
		name = r.title
	}
	return huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title(fmt.Sprintf("Delete folder %q?", name)).
				Description("Subfolders are deleted with it.").
				Affirmative("Yes, delete").
				Negative("Cancel").
				Value(&m.fb.confirm),
		),
	).WithWidth(m.formWidth()).WithHeight(m.formHeight())
}

func (m Model) updateForm(msg tea.Msg) (Model, tea.Cmd) {
	if m.form == nil {
		return m, nil
	}
	mdl, cmd := m.form.Update(msg)
	if f, ok := mdl.(*huh.Form); ok {
		m.form = f
	}
	if m.form.State == huh.StateCompleted {
		return m, m.saveNode()
	}
	if m.form.State == huh.StateAborted {
		m.mode = modeList
		return m, nil
	}
	return m, cmd
}

func (m Model) updateConfirm(msg tea.Msg) (Model, tea.Cmd) {
	if m.confirmForm == nil {
		return m, nil
	}
	mdl, cmd := m.confirmForm.Update(msg)
	if f, ok := mdl.(*huh.Form); ok {
		m.confirmForm = f
	}
	if m.confirmForm.State == huh.StateCompleted {
		if m.fb.confirm {
			if r, ok := m.selectedRow(); ok && r.kind == rowLabel {
				return m, m.deleteNode(r.nodeID)
			}
		}
		m.mode = modeList
		return m, nil
	}
	if m.confirmForm.State == huh.StateAborted {
		m.mode = modeList
		return m, nil
	}
	return m, cmd
}

func (m Model) updateActiveForm(msg tea.Msg) (Model, tea.Cmd) {
	switch m.mode {
	case modeForm:
		return m.updateForm(msg)
	case modeConfirmDelete:
		return m.updateConfirm(msg)
	}
	return m, nil
}

// selectedRow returns the row under the cursor.
func (m Model) selectedRow() (row, bool) {
	if m.selectedIdx < 0 || m.selectedIdx >= len(m.rows) {
		return row{}, false
	}
	return m.rows[m.selectedIdx], true
}

// rebuildRows recomputes the visible sidebar lines from the system folders
// and the resident tree, honoring collapsed subtrees.
func (m *Model) rebuildRows() {
	rows := make([]row, 0, 8)
	for _, f := range model.SystemFolders() {
		rows = append(rows, row{
			kind:   rowSystem,
			folder: f,
			title:  f.DisplayName(),
		})
	}

	hiddenBelow := -1
	for _, fn := range m.tree.Flatten() {
		if hiddenBelow >= 0 && fn.Depth > hiddenBelow {
			continue
		}
		hiddenBelow = -1
		if fn.HasChildren && !m.expanded[fn.ID] {
			hiddenBelow = fn.Depth
		}
		rows = append(rows, row{
			kind:        rowLabel,
			folder:      model.LabelFolder(fn.Slug),
			nodeID:      fn.ID,
			slug:        fn.Slug,
			title:       fn.Title,
			depth:       fn.Depth,
			hasChildren: fn.HasChildren,
		})
	}

	m.rows = rows
	if m.selectedIdx >= len(m.rows) && m.selectedIdx > 0 {
		m.selectedIdx = len(m.rows) - 1
	}
}

// View renders the sidebar.
func (m Model) View() string {
	switch m.mode {
	case modeForm:
		return m.viewForm(m.form)
	case modeConfirmDelete:
		return m.viewForm(m.confirmForm)
	default:
		return m.viewList()
	}
}

func (m Model) viewList() string {
	var b strings.Builder

	titleStyle := lipgloss.NewStyle().Bold(true).Foreground(theme.ColorWhite).MarginBottom(1)
	b.WriteString(titleStyle.Render("Folders"))
	b.WriteString("\n\n")

	for i, r := range m.rows {
		label := m.rowLabel(r)
		switch {
		case i == m.selectedIdx && m.focused:
			label = theme.SelectedItemStyle.Render(label)
		case r.folder == m.active:
			label = theme.ListItemStyle.Bold(true).Render(label)
		default:
			label = theme.ListItemStyle.Render(label)
		}
		b.WriteString(label)
		b.WriteString("\n")
	}

	if m.statusMsg != "" {
		b.WriteString("\n")
		b.WriteString(lipgloss.NewStyle().Foreground(theme.ColorYellow).Italic(true).Render(m.statusMsg))
	}

	b.WriteString("\n")
	b.WriteString(lipgloss.NewStyle().Foreground(theme.ColorGray).Render(
		"n new | e rename | d delete",
	))

	style := theme.SidebarStyle
	if m.focused {
		style = theme.SidebarFocusedStyle
	}
	return style.Width(m.width - 2).Height(m.height - 2).Render(b.String())
}

// rowLabel formats one sidebar line with indentation and fold markers.
func (m Model) rowLabel(r row) string {
	if r.kind == rowSystem {
		return theme.FolderStyle(string(r.folder)).Render(r.title)
	}

	indent := strings.Repeat("  ", r.depth)
	marker := "•"
	if r.hasChildren {
		if m.expanded[r.nodeID] {
			marker = "▾"
		} else {
			marker = "▸"
		}
	}
	return fmt.Sprintf("%s%s %s", indent, marker, r.title)
}

func (m Model) viewForm(f *huh.Form) string {
	if f == nil {
		return ""
	}
	style := theme.SidebarFocusedStyle
	return style.Width(m.width - 2).Height(m.height - 2).Render(f.View())
}

// SetSize updates dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
}

func (m Model) formWidth() int {
	w := m.width - 6
	if w < 20 {
		w = 20
	}
	return w
}

func (m Model) formHeight() int {
	h := m.height - 6
	if h < 6 {
		h = 6
	}
	return h
}

// loadTree returns a command that loads the folder tree, bypassing the
// staleness check when force is set.
func (m Model) loadTree(force bool) tea.Cmd {
	t := m.tree
	return func() tea.Msg {
		var err error
		if force {
			_, err = t.Refresh(context.Background())
		} else {
			_, err = t.Load(context.Background())
		}
		return treeLoadedMsg{err: err}
	}
}

func (m Model) saveNode() tea.Cmd {
	t := m.tree
	fb := m.fb
	editID := m.editingID
	parentSlug := m.parentSlug
	isNew := m.isNew
	return func() tea.Msg {
		var err error
		if isNew {
			_, err = t.CreateNode(context.Background(), fb.title, parentSlug, model.TreeScopePersonal)
		} else {
			_, err = t.UpdateNode(context.Background(), editID, fb.title)
		}
		return nodeSavedMsg{err: err}
	}
}

func (m Model) deleteNode(id string) tea.Cmd {
	t := m.tree
	return func() tea.Msg {
		err := t.DeleteNode(context.Background(), id)
		return nodeDeletedMsg{err: err}
	}
}
