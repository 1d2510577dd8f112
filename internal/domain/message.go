package domain

import "time"

// Origin carries the platform metadata used to decide whether a message is a
// donation notification at all. The extractor never looks at it.
type Origin struct {
	ChannelID string
	GuildID   string
	WebhookID string // non-empty when posted by a webhook integration
	AuthorID  string
	AuthorBot bool
}

// Field is a free-form name/value pair of a structured attachment.
type Field struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Attachment is a structured attachment (a Discord embed).
type Attachment struct {
	Title  *string `json:"title,omitempty"` // nil when the attachment has no title
	Fields []Field `json:"fields,omitempty"`
}

// HasTitle reports whether the attachment carries a non-empty title.
func (a Attachment) HasTitle() bool {
	return a.Title != nil && *a.Title != ""
}

// InboundMessage is a chat message handed to the donation pipeline.
type InboundMessage struct {
	Channel     string       `json:"channel,omitempty"` // source channel adapter name
	ID          string       `json:"id"`
	Content     string       `json:"content"`
	Attachments []Attachment `json:"attachments,omitempty"`
	CreatedAt   time.Time    `json:"created_at"`
	Origin      Origin       `json:"-"`
}

// FirstAttachment returns the first structured attachment, if any.
func (m InboundMessage) FirstAttachment() (Attachment, bool) {
	if len(m.Attachments) == 0 {
		return Attachment{}, false
	}
	return m.Attachments[0], true
}

// OutboundMessage is an acknowledgment sent back to the source channel.
type OutboundMessage struct {
	Channel   string
	ChatID    string
	MessageID string
	Reaction  string // emoji added to MessageID
}

// StringPtr returns a pointer to s. Handy for optional attachment titles.
func StringPtr(s string) *string { return &s }
