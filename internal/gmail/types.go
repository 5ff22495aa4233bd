// internal/gmail/types.go
package gmail

import (
	"strings"
	"time"

	"github.com/joshsymonds/unclutter/internal/mime"
)

type MessageID string
type LabelID string

// System label ids that carry message flags.
const (
	LabelInbox   LabelID = "INBOX"
	LabelUnread  LabelID = "UNREAD"
	LabelStarred LabelID = "STARRED"
	LabelTrash   LabelID = "TRASH"
)

// Headers holds top-level message headers. Lookups ignore case.
type Headers map[string]string

// Get returns the value of the named header, or "".
func (h Headers) Get(name string) string {
	if v, ok := h[name]; ok {
		return v
	}
	for k, v := range h {
		if strings.EqualFold(k, name) {
			return v
		}
	}
	return ""
}

// Message is a fully fetched message: flat headers plus the content tree.
type Message struct {
	ID           MessageID
	ThreadID     string
	Snippet      string
	LabelIDs     []LabelID
	InternalDate time.Time // provider receive time; zero when unknown
	Headers      Headers   // Subject, From, To, Cc, Date, ...
	Payload      mime.Part
}

// HasLabel reports whether id is attached to the message.
func (m Message) HasLabel(id LabelID) bool {
	for _, l := range m.LabelIDs {
		if l == id {
			return true
		}
	}
	return false
}

type ListPage struct {
	IDs           []MessageID
	NextPageToken string
}

type ModifyOps struct {
	AddLabels    []LabelID
	RemoveLabels []LabelID
	MarkRead     bool // implies removing UNREAD
	Archive      bool // implies removing INBOX
}

// Removals returns RemoveLabels plus the labels implied by the flags.
func (o ModifyOps) Removals() []LabelID {
	out := append([]LabelID(nil), o.RemoveLabels...)
	if o.MarkRead && !containsLabel(out, LabelUnread) {
		out = append(out, LabelUnread)
	}
	if o.Archive && !containsLabel(out, LabelInbox) {
		out = append(out, LabelInbox)
	}
	return out
}

func containsLabel(ids []LabelID, id LabelID) bool {
	for _, l := range ids {
		if l == id {
			return true
		}
	}
	return false
}

type Query struct {
	Raw string // Gmail query string, already formed (e.g., `in:inbox -in:draft`)
}
