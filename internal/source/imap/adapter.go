// Package imap provides the mail source backed by a generic IMAP server.
// Pagination runs over UID windows: each page fetches the highest UIDs
// below the previous page's oldest one, carried in opaque page tokens.
package imap

import (
	"context"
	"fmt"

	"github.com/mastertenor/korgan/internal/model"
	"github.com/mastertenor/korgan/internal/source"
)

// Adapter implements source.MailSource and translates mail operations
// into IMAP commands.
type Adapter struct {
	client *Client
}

// NewAdapter creates an IMAP mail source for the given server and account.
func NewAdapter(host, port, username, password string, tls bool) *Adapter {
	return &Adapter{
		client: NewClient(host, port, username, password, tls),
	}
}

// Backend returns the backend kind identifier.
func (a *Adapter) Backend() source.Backend {
	return source.BackendIMAP
}

// ValidateConnection verifies IMAP credentials by connecting,
// authenticating, and selecting INBOX. Returns the username on success.
func (a *Adapter) ValidateConnection(ctx context.Context) (string, error) {
	client, err := a.client.Connect(ctx)
	if err != nil {
		return "", source.Classify("validating connection", err)
	}
	defer func() { _ = client.Logout().Wait() }()

	if _, err := client.Select("INBOX", nil).Wait(); err != nil {
		return "", source.Classify("validating connection", err)
	}

	return a.client.username, nil
}

// FetchPage retrieves one page of message summaries matching the filter.
func (a *Adapter) FetchPage(
	ctx context.Context,
	filter model.Filter,
	pageToken string,
	pageSize int,
) (*source.Page, error) {
	beforeUID, err := decodePageToken(pageToken)
	if err != nil {
		return nil, err
	}

	mailbox, criteria := routeFilter(filter)

	summaries, total, hasMore, err := a.client.FetchWindow(
		ctx, mailbox, criteria, beforeUID, pageSize,
	)
	if err != nil {
		return nil, source.Classify("fetching page", err)
	}

	page := &source.Page{
		TotalEstimate: total,
		HasMore:       hasMore,
	}
	for _, s := range summaries {
		page.Messages = append(page.Messages, mailFromSummary(s))
	}

	if hasMore && len(summaries) > 0 {
		oldest := summaries[len(summaries)-1].Envelope.UID
		page.NextPageToken = encodePageToken(oldest)
	}

	return page, nil
}

// Mutate applies a single action to one message. The folder identifies
// the mailbox the message currently lives in.
func (a *Adapter) Mutate(
	ctx context.Context,
	action source.MutateAction,
	messageID string,
	folder model.Folder,
) error {
	if action == source.ActionEmptyTrash {
		mailbox := mailboxForFolder(model.FolderTrash)
		if err := a.client.EmptyMailbox(ctx, mailbox); err != nil {
			return source.Classify("emptying trash", err)
		}
		return nil
	}

	uid, err := parseUID(messageID)
	if err != nil {
		return err
	}

	mailbox := mailboxForFolder(folder)

	switch action {
	case source.ActionTrash:
		err = a.client.Move(
			ctx, mailbox, uid, mailboxForFolder(model.FolderTrash),
		)
	case source.ActionRestore:
		err = a.client.Move(
			ctx, mailbox, uid, mailboxForFolder(model.FolderInbox),
		)
	case source.ActionArchive:
		err = a.client.MoveToArchive(ctx, mailbox, uid)
	case source.ActionDelete:
		err = a.client.Delete(ctx, mailbox, uid)
	default:
		flags, add, ok := flagOps(action)
		if !ok {
			return &source.ValidationError{
				Message: fmt.Sprintf(
					"action %s is not supported by the imap backend", action,
				),
			}
		}
		err = a.client.SetFlags(ctx, mailbox, uid, flags, add)
	}
	if err != nil {
		return source.Classify(fmt.Sprintf("%s on UID %d", action, uid), err)
	}

	return nil
}

// FolderStats returns the unread/total aggregates for a folder.
func (a *Adapter) FolderStats(
	ctx context.Context, folder model.Folder,
) (source.FolderStats, error) {
	if folder.IsSearch() {
		return source.FolderStats{}, &source.ValidationError{
			Message: "folder stats are not available for searches",
		}
	}

	mailbox, criteria := routeFilter(model.FilterFor(folder))

	unread, total, err := a.client.Stats(ctx, mailbox, criteria)
	if err != nil {
		return source.FolderStats{}, source.Classify("folder stats", err)
	}

	return source.FolderStats{Unread: unread, Total: total}, nil
}
