// Package email defines the normalized message shape shared by the
// pipeline, the store and the classifiers.
package email

import (
	"strings"
	"time"
)

// BodySource records where BodyPlain came from.
type BodySource string

const (
	SourcePlain   BodySource = "plain"
	SourceHTML    BodySource = "html"
	SourceSnippet BodySource = "snippet"
	SourceEmpty   BodySource = "empty"
)

// Degraded reports whether the body is not text extracted from the message.
func (s BodySource) Degraded() bool {
	return s == SourceSnippet || s == SourceEmpty
}

// Email is one normalized message. BodyPlain never carries markup; BodyHTML
// keeps the original HTML source when the message had one.
type Email struct {
	ID         string     `json:"id"`
	ThreadID   string     `json:"thread_id"`
	Subject    string     `json:"subject"`
	From       string     `json:"from"`
	To         []string   `json:"to,omitempty"`
	Cc         []string   `json:"cc,omitempty"`
	ReceivedAt time.Time  `json:"received_at"`
	Snippet    string     `json:"snippet"`
	BodyPlain  string     `json:"body_plain"`
	BodyHTML   string     `json:"body_html,omitempty"`
	BodySource BodySource `json:"body_source"`
	IsRead     bool       `json:"is_read"`
	IsStarred  bool       `json:"is_starred"`
	LabelIDs   []string   `json:"label_ids,omitempty"`
	Category   Category   `json:"category,omitempty"`
	Summary    string     `json:"summary,omitempty"`
}

// Body returns the best text available: the plain body, else the snippet.
func (e Email) Body() string {
	if strings.TrimSpace(e.BodyPlain) != "" {
		return e.BodyPlain
	}
	return e.Snippet
}

// HasHTML reports whether the original message carried an HTML part.
func (e Email) HasHTML() bool { return e.BodyHTML != "" }

// HasLabel reports whether the provider label id is attached.
func (e Email) HasLabel(id string) bool {
	for _, l := range e.LabelIDs {
		if l == id {
			return true
		}
	}
	return false
}
