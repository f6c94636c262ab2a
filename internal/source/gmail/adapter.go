// Package gmail implements the mail source over the Gmail REST API.
package gmail

import (
	"context"
	"fmt"

	"google.golang.org/api/gmail/v1"

	"github.com/mastertenor/korgan/internal/model"
	"github.com/mastertenor/korgan/internal/source"
)

// Adapter implements source.MailSource over a Gmail service.
type Adapter struct {
	svc *gmail.Service
}

// NewAdapter creates a Gmail adapter over an authenticated service.
func NewAdapter(svc *gmail.Service) *Adapter {
	return &Adapter{svc: svc}
}

// Backend returns the backend kind identifier.
func (a *Adapter) Backend() source.Backend {
	return source.BackendGmail
}

// ValidateConnection verifies the cached token by fetching the account
// profile. Returns the account email address on success.
func (a *Adapter) ValidateConnection(ctx context.Context) (string, error) {
	profile, err := a.svc.Users.GetProfile(gmailUser).Context(ctx).Do()
	if err != nil {
		return "", classify("validating connection", err)
	}
	return profile.EmailAddress, nil
}

// FetchPage retrieves one page of message summaries. Gmail's list call
// returns bare ids, so each message needs a metadata get to fill in the
// sender, subject, and labels.
func (a *Adapter) FetchPage(
	ctx context.Context,
	filter model.Filter,
	pageToken string,
	pageSize int,
) (*source.Page, error) {
	call := a.svc.Users.Messages.List(gmailUser).MaxResults(int64(pageSize))
	if filter.Query != "" {
		call = call.Q(filter.Query)
	} else if len(filter.Labels) > 0 {
		call = call.LabelIds(filter.Labels...)
	}
	if pageToken != "" {
		call = call.PageToken(pageToken)
	}

	res, err := call.Context(ctx).Do()
	if err != nil {
		return nil, classify("listing messages", err)
	}

	messages := make([]model.Mail, 0, len(res.Messages))
	for _, stub := range res.Messages {
		msg, err := a.svc.Users.Messages.Get(gmailUser, stub.Id).
			Format("metadata").
			MetadataHeaders("From", "Subject").
			Context(ctx).Do()
		if err != nil {
			return nil, classify(fmt.Sprintf("fetching message %s", stub.Id), err)
		}
		messages = append(messages, mailFromMessage(msg))
	}

	return &source.Page{
		Messages:      messages,
		NextPageToken: res.NextPageToken,
		TotalEstimate: int(res.ResultSizeEstimate),
		HasMore:       res.NextPageToken != "",
	}, nil
}

// Mutate applies a single action to one message. Flag and archive actions
// go through label modification; trash, restore, and delete use their
// dedicated endpoints.
func (a *Adapter) Mutate(
	ctx context.Context,
	action source.MutateAction,
	messageID string,
	folder model.Folder,
) error {
	switch action {
	case source.ActionEmptyTrash:
		return a.emptyTrash(ctx)

	case source.ActionTrash:
		_, err := a.svc.Users.Messages.Trash(gmailUser, messageID).Context(ctx).Do()
		return classify(fmt.Sprintf("trashing message %s", messageID), err)

	case source.ActionRestore:
		_, err := a.svc.Users.Messages.Untrash(gmailUser, messageID).Context(ctx).Do()
		return classify(fmt.Sprintf("restoring message %s", messageID), err)

	case source.ActionDelete:
		err := a.svc.Users.Messages.Delete(gmailUser, messageID).Context(ctx).Do()
		return classify(fmt.Sprintf("deleting message %s", messageID), err)
	}

	add, remove := labelOps(action)
	if len(add) == 0 && len(remove) == 0 {
		return &source.ValidationError{
			Message: fmt.Sprintf("action %s is not supported by the gmail backend", action),
		}
	}
	req := &gmail.ModifyMessageRequest{
		AddLabelIds:    add,
		RemoveLabelIds: remove,
	}
	_, err := a.svc.Users.Messages.Modify(gmailUser, messageID, req).Context(ctx).Do()
	return classify(fmt.Sprintf("applying %s to message %s", action, messageID), err)
}

// FolderStats reads the unread/total counters from the folder's backing
// label.
func (a *Adapter) FolderStats(
	ctx context.Context,
	folder model.Folder,
) (source.FolderStats, error) {
	labelID := statsLabelID(folder)
	if labelID == "" {
		return source.FolderStats{}, &source.ValidationError{
			Message: fmt.Sprintf("folder %s has no backing label for stats", folder),
		}
	}

	label, err := a.svc.Users.Labels.Get(gmailUser, labelID).Context(ctx).Do()
	if err != nil {
		return source.FolderStats{}, classify(fmt.Sprintf("fetching label %s", labelID), err)
	}
	return source.FolderStats{
		Unread: int(label.MessagesUnread),
		Total:  int(label.MessagesTotal),
	}, nil
}

// emptyTrash batch-deletes everything in the trash, page by page, until
// the trash lists empty.
func (a *Adapter) emptyTrash(ctx context.Context) error {
	for {
		res, err := a.svc.Users.Messages.List(gmailUser).
			LabelIds(labelTrash).
			MaxResults(500).
			Context(ctx).Do()
		if err != nil {
			return classify("listing trash", err)
		}
		if len(res.Messages) == 0 {
			return nil
		}

		ids := make([]string, 0, len(res.Messages))
		for _, m := range res.Messages {
			ids = append(ids, m.Id)
		}
		req := &gmail.BatchDeleteMessagesRequest{Ids: ids}
		if err := a.svc.Users.Messages.BatchDelete(gmailUser, req).Context(ctx).Do(); err != nil {
			return classify("deleting trashed messages", err)
		}
	}
}
