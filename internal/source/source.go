package source

import (
	"context"

	"github.com/mastertenor/korgan/internal/model"
)

// Backend identifies the kind of remote mail backend.
type Backend string

const (
	BackendAPI   Backend = "api"
	BackendGmail Backend = "gmail"
	BackendIMAP  Backend = "imap"
)

// MutateAction enumerates the per-message operations a mail source accepts.
// The set is closed: callers dispatch over it exhaustively.
type MutateAction string

const (
	ActionMarkRead   MutateAction = "mark_read"
	ActionMarkUnread MutateAction = "mark_unread"
	ActionStar       MutateAction = "star"
	ActionUnstar     MutateAction = "unstar"
	ActionArchive    MutateAction = "archive"
	ActionTrash      MutateAction = "trash"
	ActionRestore    MutateAction = "restore"
	ActionDelete     MutateAction = "delete"
	ActionEmptyTrash MutateAction = "empty_trash"
)

// Destructive reports whether the action cannot be undone. Destructive
// actions are never applied optimistically and the UI confirms them first.
func (a MutateAction) Destructive() bool {
	return a == ActionDelete || a == ActionEmptyTrash
}

// Reversible reports whether the action may be applied optimistically
// before the remote call resolves, reverted on failure.
func (a MutateAction) Reversible() bool {
	switch a {
	case ActionMarkRead, ActionMarkUnread, ActionStar, ActionUnstar:
		return true
	}
	return false
}

// Page holds one page of messages returned by a mail source.
type Page struct {
	// Messages is the page content in server order.
	Messages []model.Mail

	// NextPageToken is the opaque continuation token for the next page,
	// or empty when the server issued none.
	NextPageToken string

	// TotalEstimate is the server's estimate of messages matching the
	// filter, independent of page size.
	TotalEstimate int

	// HasMore reports whether another page exists. It is authoritative:
	// when false, a non-empty NextPageToken must not be followed.
	HasMore bool
}

// FolderStats holds the server-reported aggregates for one folder.
type FolderStats struct {
	Unread int
	Total  int
}

// MailSource is the remote mail backend contract. Implementations classify
// every failure before returning it (see failure.go); a raw transport error
// never crosses this interface.
type MailSource interface {
	// Backend returns the backend kind identifier.
	Backend() Backend

	// ValidateConnection verifies credentials and connectivity, returning
	// the account identity on success.
	ValidateConnection(ctx context.Context) (string, error)

	// FetchPage retrieves one page of message summaries matching the
	// filter. An empty pageToken requests the first page. pageSize is a
	// hint; servers may return fewer messages.
	FetchPage(ctx context.Context, filter model.Filter, pageToken string, pageSize int) (*Page, error)

	// Mutate applies a single action to one message. The folder is the
	// context the action was issued from, which some backends need to
	// resolve the operation (e.g. restoring from trash).
	Mutate(ctx context.Context, action MutateAction, messageID string, folder model.Folder) error

	// FolderStats returns the unread/total aggregates for a folder.
	FolderStats(ctx context.Context, folder model.Folder) (FolderStats, error)
}

// CreateNodeRequest describes a new folder tree node.
type CreateNodeRequest struct {
	// Title is the display name; the slug is derived from it client-side.
	Title string

	// Slug is the URL-safe key proposed for the node.
	Slug string

	// ParentSlug locates the parent; empty means a root node.
	ParentSlug string

	// Scope classifies the node's visibility/ownership.
	Scope model.TreeScope

	// Payload holds backend-specific extra fields passed through opaquely.
	Payload map[string]string
}

// UpdateNodeRequest describes a partial node update. Nil fields are left
// unchanged by the server.
type UpdateNodeRequest struct {
	Title   *string
	Payload map[string]string
}

// MoveNodeRequest describes a node move. A nil NewParentID keeps the current
// parent; a pointer to the empty string moves the node to the root level.
type MoveNodeRequest struct {
	NewParentID   *string
	NewOrderIndex *int
}

// TreeSource is the remote folder tree service contract.
type TreeSource interface {
	// FetchTree retrieves the folder forest for an organization context.
	// A non-empty rootSlug restricts the result to that subtree.
	FetchTree(ctx context.Context, orgID, contextID, rootSlug string) ([]model.TreeNode, error)

	// CreateNode creates a node and returns it as stored by the server.
	CreateNode(ctx context.Context, orgID, contextID string, req CreateNodeRequest) (*model.TreeNode, error)

	// UpdateNode applies a partial update and returns the updated node.
	UpdateNode(ctx context.Context, nodeID string, req UpdateNodeRequest) (*model.TreeNode, error)

	// DeleteNode removes a node; deletion cascades to descendants on the
	// server side.
	DeleteNode(ctx context.Context, nodeID string) error

	// MoveNode reparents and/or reorders a node.
	MoveNode(ctx context.Context, nodeID string, req MoveNodeRequest) error
}
