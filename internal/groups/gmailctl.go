package groups

import (
	"strings"

	"github.com/joshsymonds/unclutter/internal/gmailctl"
)

const importedDescription = "Imported from gmailctl filters"

var systemLabels = map[string]bool{
	"INBOX": true, "UNREAD": true, "STARRED": true, "IMPORTANT": true,
	"TRASH": true, "SPAM": true, "SENT": true, "DRAFT": true,
}

// FromGmailctl turns labelling filters into groups, one per user label.
// From terms become senders, or domains when written as "*@domain"; subject
// terms become keywords. Negated query tokens are ignored. Groups are
// ordered by the first filter that names their label.
func FromGmailctl(export gmailctl.Export) []Group {
	var order []string
	byName := map[string]*Group{}

	for _, filt := range export.Filters {
		rules := rulesFromCriteria(filt.Criteria)
		if !rules.HasRules() {
			continue
		}
		for _, id := range filt.Action.AddLabelIDs {
			if isSystemLabel(id) {
				continue
			}
			name := strings.TrimSpace(export.LabelName(id))
			if name == "" {
				continue
			}
			g, ok := byName[name]
			if !ok {
				order = append(order, name)
				g = &Group{Name: name, Description: importedDescription}
				byName[name] = g
			}
			g.Keywords = append(g.Keywords, rules.Keywords...)
			g.Domains = append(g.Domains, rules.Domains...)
			g.Senders = append(g.Senders, rules.Senders...)
		}
	}

	out := make([]Group, 0, len(order))
	for i, name := range order {
		g := byName[name].Normalized()
		g.SortOrder = i + 1
		out = append(out, g)
	}
	return out
}

func isSystemLabel(id string) bool {
	return systemLabels[id] || strings.HasPrefix(id, "CATEGORY_")
}

func rulesFromCriteria(c gmailctl.FilterCriteria) Group {
	var g Group
	addFrom(&g, splitCandidates(c.From))
	g.Keywords = append(g.Keywords, splitCandidates(c.Subject)...)
	for _, raw := range strings.Fields(c.Query) {
		tok := strings.Trim(raw, "()\"'")
		if tok == "" || strings.EqualFold(tok, "OR") || strings.HasPrefix(tok, "-") {
			continue
		}
		lower := strings.ToLower(tok)
		switch {
		case strings.HasPrefix(lower, "from:"):
			addFrom(&g, splitCandidates(tok[len("from:"):]))
		case strings.HasPrefix(lower, "subject:"):
			g.Keywords = append(g.Keywords, splitCandidates(tok[len("subject:"):])...)
		}
	}
	return g
}

func addFrom(g *Group, values []string) {
	for _, v := range values {
		switch {
		case strings.HasPrefix(v, "*@"):
			g.Domains = append(g.Domains, v[2:])
		case strings.HasPrefix(v, "@"):
			g.Domains = append(g.Domains, v[1:])
		default:
			g.Senders = append(g.Senders, v)
		}
	}
}

func splitCandidates(raw string) []string {
	replacer := strings.NewReplacer(",", " ", ";", " ", "|", " ", "{", " ", "}", " ")
	parts := strings.Fields(replacer.Replace(raw))
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.ToLower(strings.Trim(part, "\"'()"))
		if part == "" || part == "or" {
			continue
		}
		out = append(out, part)
	}
	return out
}
