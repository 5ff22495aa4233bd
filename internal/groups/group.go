// Package groups matches normalized emails against user-defined rule groups.
package groups

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrInvalidGroup reports a group that cannot be saved.
var ErrInvalidGroup = errors.New("invalid group")

// Group is a user rule set. An email belongs to the group when any keyword,
// domain or sender rule matches. Membership is never stored.
type Group struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Color       string    `json:"color,omitempty"`
	Keywords    []string  `json:"keywords,omitempty"`
	Domains     []string  `json:"domains,omitempty"`
	Senders     []string  `json:"senders,omitempty"`
	SortOrder   int       `json:"sort_order"`
	CreatedAt   time.Time `json:"created_at,omitempty"`
	UpdatedAt   time.Time `json:"updated_at,omitempty"`
}

// HasRules reports whether the group can ever match anything.
func (g Group) HasRules() bool {
	return len(g.Keywords)+len(g.Domains)+len(g.Senders) > 0
}

// Normalized trims the name and returns rule lists trimmed, lowercased and
// de-duplicated in first-seen order. Domains also lose a leading "@" or "*@".
func (g Group) Normalized() Group {
	out := g
	out.Name = strings.TrimSpace(g.Name)
	out.Description = strings.TrimSpace(g.Description)
	out.Keywords = normalizeList(g.Keywords, nil)
	out.Domains = normalizeList(g.Domains, func(s string) string {
		s = strings.TrimPrefix(s, "*")
		return strings.Trim(strings.TrimPrefix(s, "@"), ". ")
	})
	out.Senders = normalizeList(g.Senders, nil)
	return out
}

// Validate checks the fields a stored group must have.
func (g Group) Validate() error {
	if strings.TrimSpace(g.Name) == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidGroup)
	}
	if g.SortOrder < 0 {
		return fmt.Errorf("%w: sort order %d is negative", ErrInvalidGroup, g.SortOrder)
	}
	return nil
}

func normalizeList(values []string, clean func(string) string) []string {
	if len(values) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.ToLower(strings.TrimSpace(v))
		if clean != nil {
			v = clean(v)
		}
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
