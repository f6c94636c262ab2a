package model

import "strings"

// Folder identifies one independently paginated mail context: a system
// folder, a user label, or a saved search.
type Folder string

// System folders present for every account.
const (
	FolderInbox     Folder = "inbox"
	FolderStarred   Folder = "starred"
	FolderImportant Folder = "important"
	FolderSent      Folder = "sent"
	FolderDrafts    Folder = "drafts"
	FolderSpam      Folder = "spam"
	FolderTrash     Folder = "trash"
)

const (
	labelFolderPrefix  = "label:"
	searchFolderPrefix = "search:"
)

// LabelFolder returns the folder key for a user label (a folder tree leaf).
func LabelFolder(labelID string) Folder {
	return Folder(labelFolderPrefix + labelID)
}

// SearchFolder returns the folder key for a saved-search context.
func SearchFolder(query string) Folder {
	return Folder(searchFolderPrefix + query)
}

// IsSearch reports whether the folder is a saved-search context.
func (f Folder) IsSearch() bool {
	return strings.HasPrefix(string(f), searchFolderPrefix)
}

// IsLabel reports whether the folder is a user label context.
func (f Folder) IsLabel() bool {
	return strings.HasPrefix(string(f), labelFolderPrefix)
}

// LabelID returns the label identifier for a label folder, empty otherwise.
func (f Folder) LabelID() string {
	if !f.IsLabel() {
		return ""
	}
	return strings.TrimPrefix(string(f), labelFolderPrefix)
}

// DisplayName returns the folder title shown in the UI.
func (f Folder) DisplayName() string {
	switch {
	case f.IsSearch():
		return "Search: " + strings.TrimPrefix(string(f), searchFolderPrefix)
	case f.IsLabel():
		return f.LabelID()
	}
	if f == "" {
		return ""
	}
	s := string(f)
	return strings.ToUpper(s[:1]) + s[1:]
}

// Filter describes what a mail page request selects: either a set of label
// identifiers or an opaque search query. When both are set the query takes
// precedence and the labels are ignored.
type Filter struct {
	// Labels selects messages carrying all of the given label identifiers.
	Labels []string `json:"labels,omitempty"`

	// Query is an opaque server-side search expression.
	Query string `json:"query,omitempty"`
}

// Equal reports whether two filters select the same messages.
func (f Filter) Equal(other Filter) bool {
	if f.Query != "" || other.Query != "" {
		return f.Query == other.Query
	}
	if len(f.Labels) != len(other.Labels) {
		return false
	}
	for i := range f.Labels {
		if f.Labels[i] != other.Labels[i] {
			return false
		}
	}
	return true
}

// IsZero reports whether the filter selects nothing in particular.
func (f Filter) IsZero() bool {
	return f.Query == "" && len(f.Labels) == 0
}

// systemFilters maps each system folder to the label set its context fetches.
var systemFilters = map[Folder]Filter{
	FolderInbox:     {Labels: []string{"INBOX"}},
	FolderStarred:   {Labels: []string{"STARRED"}},
	FolderImportant: {Labels: []string{"IMPORTANT"}},
	FolderSent:      {Labels: []string{"SENT"}},
	FolderDrafts:    {Labels: []string{"DRAFT"}},
	FolderSpam:      {Labels: []string{"SPAM"}},
	FolderTrash:     {Labels: []string{"TRASH"}},
}

// FilterFor returns the default filter for a folder key: the label set for
// system folders, the label itself for label folders, and the query for
// saved searches.
func FilterFor(f Folder) Filter {
	if flt, ok := systemFilters[f]; ok {
		return Filter{Labels: append([]string(nil), flt.Labels...)}
	}
	s := string(f)
	switch {
	case strings.HasPrefix(s, searchFolderPrefix):
		return Filter{Query: strings.TrimPrefix(s, searchFolderPrefix)}
	case strings.HasPrefix(s, labelFolderPrefix):
		return Filter{Labels: []string{strings.TrimPrefix(s, labelFolderPrefix)}}
	}
	return Filter{Labels: []string{s}}
}

// SystemFolders returns the system folders in sidebar display order.
func SystemFolders() []Folder {
	return []Folder{
		FolderInbox,
		FolderStarred,
		FolderImportant,
		FolderSent,
		FolderDrafts,
		FolderSpam,
		FolderTrash,
	}
}
