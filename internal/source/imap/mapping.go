package imap

import (
	"bytes"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"

	"github.com/emersion/go-imap/v2"
	"github.com/emersion/go-message/mail"

	"github.com/mastertenor/korgan/internal/model"
	"github.com/mastertenor/korgan/internal/source"
)

// snippetMaxLen caps the plain-text preview extracted from a message body.
const snippetMaxLen = 120

// routeFilter maps a mail filter onto an IMAP mailbox and search criteria.
// System labels become the conventional mailbox names; flag-based labels
// and search queries run against INBOX, since IMAP search is per-mailbox.
func routeFilter(filter model.Filter) (string, *imap.SearchCriteria) {
	if filter.Query != "" {
		return "INBOX", &imap.SearchCriteria{
			Text: []string{filter.Query},
		}
	}

	if len(filter.Labels) == 0 {
		return "INBOX", &imap.SearchCriteria{}
	}

	switch filter.Labels[0] {
	case "INBOX":
		return "INBOX", &imap.SearchCriteria{}
	case "STARRED":
		return "INBOX", &imap.SearchCriteria{
			Flag: []imap.Flag{imap.FlagFlagged},
		}
	case "IMPORTANT":
		return "INBOX", &imap.SearchCriteria{
			Flag: []imap.Flag{imap.Flag("$Important")},
		}
	case "SENT":
		return "Sent", &imap.SearchCriteria{}
	case "DRAFT":
		return "Drafts", &imap.SearchCriteria{}
	case "SPAM":
		return "Junk", &imap.SearchCriteria{}
	case "TRASH":
		return "Trash", &imap.SearchCriteria{}
	}

	// User labels map to mailboxes of the same name.
	return filter.Labels[0], &imap.SearchCriteria{}
}

// mailboxForFolder returns the mailbox a folder's messages live in.
func mailboxForFolder(folder model.Folder) string {
	mailbox, _ := routeFilter(model.FilterFor(folder))
	return mailbox
}

// windowUIDs cuts one page out of an ascending UID list: the highest UIDs
// strictly below beforeUID (all of them when beforeUID is zero), at most
// limit entries. The second result reports whether older UIDs remain
// below the window.
func windowUIDs(
	uids []imap.UID, beforeUID uint32, limit int,
) ([]imap.UID, bool) {
	if beforeUID > 0 {
		cut := len(uids)
		for i, uid := range uids {
			if uint32(uid) >= beforeUID {
				cut = i
				break
			}
		}
		uids = uids[:cut]
	}

	if limit <= 0 || len(uids) <= limit {
		return uids, false
	}
	return uids[len(uids)-limit:], true
}

// flagOps maps a mutate action onto the IMAP flag change it performs.
// The third result reports whether the action is a flag operation at all.
func flagOps(action source.MutateAction) ([]imap.Flag, bool, bool) {
	switch action {
	case source.ActionMarkRead:
		return []imap.Flag{imap.FlagSeen}, true, true
	case source.ActionMarkUnread:
		return []imap.Flag{imap.FlagSeen}, false, true
	case source.ActionStar:
		return []imap.Flag{imap.FlagFlagged}, true, true
	case source.ActionUnstar:
		return []imap.Flag{imap.FlagFlagged}, false, true
	}
	return nil, false, false
}

// mailFromSummary converts a fetched IMAP summary into the shared mail
// model. The UID doubles as the message ID; the Message-ID header is the
// nearest stable thread anchor IMAP offers.
func mailFromSummary(s Summary) model.Mail {
	m := model.Mail{
		ID:            strconv.FormatUint(uint64(s.Envelope.UID), 10),
		ThreadID:      s.Envelope.MessageID,
		From:          s.Envelope.From,
		Subject:       s.Envelope.Subject,
		Snippet:       s.Snippet,
		Date:          s.Envelope.Date,
		Labels:        append([]string(nil), s.Envelope.Flags...),
		HasAttachment: s.HasAttachment,
	}

	for _, flag := range s.Envelope.Flags {
		switch flag {
		case string(imap.FlagSeen):
			m.IsRead = true
		case string(imap.FlagFlagged):
			m.IsStarred = true
		}
	}

	return m
}

// parseUID converts a message ID back into the IMAP UID it encodes.
func parseUID(messageID string) (uint32, error) {
	uid, err := strconv.ParseUint(messageID, 10, 32)
	if err != nil {
		return 0, &source.ValidationError{
			Message: fmt.Sprintf("invalid IMAP UID %q", messageID),
		}
	}
	return uint32(uid), nil
}

// summarizeBody parses a raw RFC 2822 message with go-message and reduces
// it to what the list view shows: a short plain-text snippet and whether
// the message carries attachments.
func summarizeBody(raw []byte) (snippet string, hasAttachment bool) {
	reader := bytes.NewReader(raw)

	mr, err := mail.CreateReader(reader)
	if err != nil {
		// If parsing fails, treat the whole thing as plain text.
		return collapseSnippet(string(raw)), false
	}
	defer mr.Close()

	var textBody, htmlBody string
	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			break
		}

		switch h := part.Header.(type) {
		case *mail.InlineHeader:
			contentType, _, _ := h.ContentType()
			body, readErr := io.ReadAll(part.Body)
			if readErr != nil {
				continue
			}

			switch {
			case strings.HasPrefix(contentType, "text/plain"):
				if textBody == "" {
					textBody = string(body)
				}
			case strings.HasPrefix(contentType, "text/html"):
				if htmlBody == "" {
					htmlBody = string(body)
				}
			}

		case *mail.AttachmentHeader:
			hasAttachment = true
		}
	}

	if textBody != "" {
		return collapseSnippet(textBody), hasAttachment
	}
	return collapseSnippet(stripHTML(htmlBody)), hasAttachment
}

// collapseSnippet squeezes whitespace runs into single spaces and caps
// the result at snippetMaxLen runes.
func collapseSnippet(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	runes := []rune(s)
	if len(runes) > snippetMaxLen {
		return string(runes[:snippetMaxLen])
	}
	return s
}

// htmlTagPattern matches HTML tags for stripping.
var htmlTagPattern = regexp.MustCompile(`<[^>]*>`)

// stripHTML removes HTML tags from a string and decodes common
// entities, providing a basic plain-text rendering.
func stripHTML(html string) string {
	if html == "" {
		return ""
	}

	result := html
	for _, tag := range []string{
		"<br>", "<br/>", "<br />", "</p>", "</div>", "</li>",
	} {
		result = strings.ReplaceAll(result, tag, "\n")
	}

	result = htmlTagPattern.ReplaceAllString(result, "")

	replacer := strings.NewReplacer(
		"&amp;", "&",
		"&lt;", "<",
		"&gt;", ">",
		"&quot;", `"`,
		"&#39;", "'",
		"&nbsp;", " ",
	)
	result = replacer.Replace(result)

	for strings.Contains(result, "\n\n\n") {
		result = strings.ReplaceAll(result, "\n\n\n", "\n\n")
	}

	return strings.TrimSpace(result)
}
