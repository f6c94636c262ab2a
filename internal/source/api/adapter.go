// Package api implements the mail and folder tree sources over the
// korgan REST API.
package api

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/mastertenor/korgan/internal/model"
	"github.com/mastertenor/korgan/internal/source"
)

// Adapter implements source.MailSource and source.TreeSource over the
// korgan REST API.
type Adapter struct {
	client *Client
}

// NewAdapter creates a new REST API adapter.
func NewAdapter(baseURL, token string) *Adapter {
	return &Adapter{
		client: NewClient(baseURL, token),
	}
}

// Backend returns the backend kind identifier.
func (a *Adapter) Backend() source.Backend {
	return source.BackendAPI
}

// ValidateConnection verifies credentials by calling the identity
// endpoint. It returns the account's display name, falling back to the
// email address.
func (a *Adapter) ValidateConnection(ctx context.Context) (string, error) {
	var who whoAmI
	if err := a.client.Get(ctx, "/api/v1/me", &who); err != nil {
		return "", fmt.Errorf("validating API connection: %w", err)
	}
	if who.Email == "" {
		return "", fmt.Errorf("identity endpoint returned no account; token may be invalid")
	}
	if who.DisplayName != "" {
		return who.DisplayName, nil
	}
	return who.Email, nil
}

// FetchPage retrieves one page of message summaries matching the filter.
func (a *Adapter) FetchPage(
	ctx context.Context,
	filter model.Filter,
	pageToken string,
	pageSize int,
) (*source.Page, error) {
	params := url.Values{}
	if filter.Query != "" {
		params.Set("q", filter.Query)
	} else if len(filter.Labels) > 0 {
		params.Set("labels", strings.Join(filter.Labels, ","))
	}
	if pageToken != "" {
		params.Set("pageToken", pageToken)
	}
	if pageSize > 0 {
		params.Set("pageSize", strconv.Itoa(pageSize))
	}

	path := "/api/v1/mail/messages"
	if encoded := params.Encode(); encoded != "" {
		path += "?" + encoded
	}

	var page mailPage
	if err := a.client.Get(ctx, path, &page); err != nil {
		return nil, fmt.Errorf("fetching message page: %w", err)
	}

	messages := make([]model.Mail, 0, len(page.Messages))
	for _, m := range page.Messages {
		messages = append(messages, toMail(m))
	}

	return &source.Page{
		Messages:      messages,
		NextPageToken: page.NextPageToken,
		TotalEstimate: page.TotalEstimate,
		HasMore:       page.HasMore,
	}, nil
}

// Mutate applies a single action to one message. Emptying the trash is a
// folder-level call; everything else posts to the message's action
// endpoint.
func (a *Adapter) Mutate(
	ctx context.Context,
	action source.MutateAction,
	messageID string,
	folder model.Folder,
) error {
	if action == source.ActionEmptyTrash {
		if err := a.client.Post(ctx, "/api/v1/mail/folders/trash/empty", nil, nil); err != nil {
			return fmt.Errorf("emptying trash: %w", err)
		}
		return nil
	}

	path := fmt.Sprintf("/api/v1/mail/messages/%s/actions", url.PathEscape(messageID))
	body := actionRequest{
		Action: string(action),
		Folder: string(folder),
	}
	if err := a.client.Post(ctx, path, body, nil); err != nil {
		return fmt.Errorf("applying %s to message %s: %w", action, messageID, err)
	}
	return nil
}

// FolderStats returns the unread/total aggregates for a folder.
func (a *Adapter) FolderStats(
	ctx context.Context,
	folder model.Folder,
) (source.FolderStats, error) {
	path := fmt.Sprintf("/api/v1/mail/folders/%s/stats", url.PathEscape(string(folder)))

	var stats folderStats
	if err := a.client.Get(ctx, path, &stats); err != nil {
		return source.FolderStats{}, fmt.Errorf("fetching stats for %s: %w", folder, err)
	}
	return source.FolderStats{
		Unread: stats.Unread,
		Total:  stats.Total,
	}, nil
}

// FetchTree retrieves the folder forest for an organization context.
func (a *Adapter) FetchTree(
	ctx context.Context,
	orgID, contextID, rootSlug string,
) ([]model.TreeNode, error) {
	path := fmt.Sprintf(
		"/api/v1/tree/%s/%s", url.PathEscape(orgID), url.PathEscape(contextID),
	)
	if rootSlug != "" {
		path += "?rootSlug=" + url.QueryEscape(rootSlug)
	}

	var forest []treeNode
	if err := a.client.Get(ctx, path, &forest); err != nil {
		return nil, fmt.Errorf("fetching folder tree: %w", err)
	}

	out := make([]model.TreeNode, 0, len(forest))
	for _, n := range forest {
		out = append(out, toTreeNode(n))
	}
	return out, nil
}

// CreateNode creates a node and returns it as stored by the server.
func (a *Adapter) CreateNode(
	ctx context.Context,
	orgID, contextID string,
	req source.CreateNodeRequest,
) (*model.TreeNode, error) {
	path := fmt.Sprintf(
		"/api/v1/tree/%s/%s/nodes", url.PathEscape(orgID), url.PathEscape(contextID),
	)
	body := createNodeRequest{
		Title:      req.Title,
		Slug:       req.Slug,
		ParentSlug: req.ParentSlug,
		Scope:      string(req.Scope),
		Payload:    req.Payload,
	}

	var created treeNode
	if err := a.client.Post(ctx, path, body, &created); err != nil {
		return nil, fmt.Errorf("creating node %q: %w", req.Title, err)
	}
	node := toTreeNode(created)
	return &node, nil
}

// UpdateNode applies a partial update and returns the updated node.
func (a *Adapter) UpdateNode(
	ctx context.Context,
	nodeID string,
	req source.UpdateNodeRequest,
) (*model.TreeNode, error) {
	path := "/api/v1/tree/nodes/" + url.PathEscape(nodeID)
	body := updateNodeRequest{
		Title:   req.Title,
		Payload: req.Payload,
	}

	var updated treeNode
	if err := a.client.Patch(ctx, path, body, &updated); err != nil {
		return nil, fmt.Errorf("updating node %s: %w", nodeID, err)
	}
	node := toTreeNode(updated)
	return &node, nil
}

// DeleteNode removes a node; deletion cascades to descendants server-side.
func (a *Adapter) DeleteNode(ctx context.Context, nodeID string) error {
	path := "/api/v1/tree/nodes/" + url.PathEscape(nodeID)
	if err := a.client.Delete(ctx, path, nil); err != nil {
		return fmt.Errorf("deleting node %s: %w", nodeID, err)
	}
	return nil
}

// MoveNode reparents and/or reorders a node.
func (a *Adapter) MoveNode(
	ctx context.Context,
	nodeID string,
	req source.MoveNodeRequest,
) error {
	path := fmt.Sprintf("/api/v1/tree/nodes/%s/move", url.PathEscape(nodeID))
	body := moveNodeRequest{
		NewParentID:   req.NewParentID,
		NewOrderIndex: req.NewOrderIndex,
	}
	if err := a.client.Post(ctx, path, body, nil); err != nil {
		return fmt.Errorf("moving node %s: %w", nodeID, err)
	}
	return nil
}

// toMail converts a wire message to the model type. An unparseable date
// is left as the zero time rather than failing the whole page.
func toMail(m mailMessage) model.Mail {
	date, err := time.Parse(time.RFC3339, m.Date)
	if err != nil {
		date = time.Time{}
	}
	return model.Mail{
		ID:            m.ID,
		ThreadID:      m.ThreadID,
		From:          m.From,
		Subject:       m.Subject,
		Snippet:       m.Snippet,
		Date:          date,
		IsRead:        m.IsRead,
		IsStarred:     m.IsStarred,
		Labels:        m.Labels,
		HasAttachment: m.HasAttachment,
	}
}

// toTreeNode converts a wire tree node and its subtree to the model type.
func toTreeNode(n treeNode) model.TreeNode {
	node := model.TreeNode{
		ID:         n.ID,
		Slug:       n.Slug,
		Title:      n.Title,
		Scope:      model.TreeScope(n.Scope),
		OrderIndex: n.OrderIndex,
	}
	for _, child := range n.Children {
		node.Children = append(node.Children, toTreeNode(child))
	}
	return node
}
