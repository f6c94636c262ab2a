package gmail

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/googleapi"

	"github.com/mastertenor/korgan/internal/model"
	"github.com/mastertenor/korgan/internal/source"
)

const gmailUser = "me"

// Gmail system label identifiers.
const (
	labelUnread  = "UNREAD"
	labelStarred = "STARRED"
	labelInbox   = "INBOX"
	labelTrash   = "TRASH"
)

// mailFromMessage converts a Gmail metadata-format message to the model
// type. Read and starred state derive from the UNREAD/STARRED labels; the
// date comes from InternalDate, which is reliable where the Date header
// is not.
func mailFromMessage(m *gmail.Message) model.Mail {
	mail := model.Mail{
		ID:       m.Id,
		ThreadID: m.ThreadId,
		Snippet:  m.Snippet,
		Labels:   m.LabelIds,
		IsRead:   true,
	}
	if m.InternalDate > 0 {
		mail.Date = time.UnixMilli(m.InternalDate)
	}
	for _, l := range m.LabelIds {
		switch l {
		case labelUnread:
			mail.IsRead = false
		case labelStarred:
			mail.IsStarred = true
		}
	}
	if m.Payload != nil {
		mail.From = headerValue(m.Payload, "From")
		mail.Subject = headerValue(m.Payload, "Subject")
		mail.HasAttachment = strings.EqualFold(m.Payload.MimeType, "multipart/mixed")
	}
	return mail
}

// headerValue returns the first header with the given name, ignoring case.
func headerValue(p *gmail.MessagePart, name string) string {
	for _, h := range p.Headers {
		if strings.EqualFold(h.Name, name) {
			return h.Value
		}
	}
	return ""
}

// labelOps returns the label additions and removals that implement a flag
// or folder action. Actions that do not map to a label modify (trash,
// restore, delete, empty trash) return two empty sets.
func labelOps(action source.MutateAction) (add, remove []string) {
	switch action {
	case source.ActionMarkRead:
		return nil, []string{labelUnread}
	case source.ActionMarkUnread:
		return []string{labelUnread}, nil
	case source.ActionStar:
		return []string{labelStarred}, nil
	case source.ActionUnstar:
		return nil, []string{labelStarred}
	case source.ActionArchive:
		return nil, []string{labelInbox}
	}
	return nil, nil
}

// statsLabelID returns the Gmail label whose counters back a folder's
// stats, or empty for folders without one (saved searches).
func statsLabelID(folder model.Folder) string {
	if folder.IsSearch() {
		return ""
	}
	filter := model.FilterFor(folder)
	if len(filter.Labels) == 0 {
		return ""
	}
	return filter.Labels[0]
}

// classify maps a Gmail SDK error onto the failure taxonomy.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		return source.StatusError(source.BackendGmail, apiErr.Code, gmailErrorMessage(apiErr, op))
	}
	return source.Classify(op, err)
}

func gmailErrorMessage(apiErr *googleapi.Error, op string) string {
	if apiErr.Message != "" {
		return fmt.Sprintf("%s: %s", op, apiErr.Message)
	}
	return op
}
