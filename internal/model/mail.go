package model

import "time"

// Mail is a single message summary as returned by a mail source page.
// Values are immutable once stored: flag changes replace the whole value
// rather than mutating a field in place.
type Mail struct {
	// ID is the message identifier within the mail backend.
	ID string `json:"id"`

	// ThreadID groups messages belonging to the same conversation.
	ThreadID string `json:"thread_id"`

	// From is the sender display string ("Name <addr>" or bare address).
	From string `json:"from"`

	// Subject is the message subject line.
	Subject string `json:"subject"`

	// Snippet is a short plain-text preview of the body.
	Snippet string `json:"snippet"`

	// Date is the message timestamp as reported by the server.
	Date time.Time `json:"date"`

	// IsRead reports whether the message has been opened.
	IsRead bool `json:"is_read"`

	// IsStarred reports whether the message is flagged/starred.
	IsStarred bool `json:"is_starred"`

	// Labels holds the label identifiers attached to the message.
	Labels []string `json:"labels,omitempty"`

	// HasAttachment reports whether the message carries attachments.
	HasAttachment bool `json:"has_attachment"`
}

// HasLabel reports whether the message carries the given label identifier.
func (m Mail) HasLabel(label string) bool {
	for _, l := range m.Labels {
		if l == label {
			return true
		}
	}
	return false
}

// WithRead returns a copy of the message with the read flag set.
func (m Mail) WithRead(read bool) Mail {
	m.Labels = append([]string(nil), m.Labels...)
	m.IsRead = read
	return m
}

// WithStarred returns a copy of the message with the starred flag set.
func (m Mail) WithStarred(starred bool) Mail {
	m.Labels = append([]string(nil), m.Labels...)
	m.IsStarred = starred
	return m
}
