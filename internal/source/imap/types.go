package imap

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"time"

	"github.com/mastertenor/korgan/internal/source"
)

// Envelope holds the parsed envelope data from an IMAP message.
type Envelope struct {
	MessageID string
	Subject   string
	From      string
	Date      time.Time
	Flags     []string // \Seen, \Flagged, \Answered, \Deleted
	UID       uint32
}

// Summary is one message of a fetched window: envelope plus what the list
// view needs from the body.
type Summary struct {
	Envelope      Envelope
	Snippet       string
	HasAttachment bool
}

// tokenPayload is the decoded form of an opaque page token. IMAP has no
// native continuation tokens, so the token carries the UID boundary: the
// next page fetches messages with UIDs strictly below it.
type tokenPayload struct {
	BeforeUID uint32 `json:"beforeUid"`
}

// encodePageToken packs a UID boundary into an opaque page token.
func encodePageToken(beforeUID uint32) string {
	data, _ := json.Marshal(tokenPayload{BeforeUID: beforeUID})
	return base64.RawURLEncoding.EncodeToString(data)
}

// decodePageToken unpacks an opaque page token. An empty token means the
// first page.
func decodePageToken(token string) (uint32, error) {
	if token == "" {
		return 0, nil
	}
	data, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return 0, &source.ValidationError{
			Message: fmt.Sprintf("malformed page token %q", token),
		}
	}
	var payload tokenPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return 0, &source.ValidationError{
			Message: fmt.Sprintf("malformed page token %q", token),
		}
	}
	return payload.BeforeUID, nil
}
