package report

import (
	"fmt"
	"sort"
	"strings"

	"github.com/joshsymonds/unclutter/internal/email"
	"github.com/joshsymonds/unclutter/internal/groups"
)

// Findings lists groups that never show anything in the grouped inbox.
type Findings struct {
	Total int `json:"total"`
	// Empty groups have no keyword, domain or sender rule.
	Empty []GroupFinding `json:"empty"`
	// Dead groups have rules but no stored email matches them.
	Dead []GroupFinding `json:"dead"`
	// Shadowed groups match emails that all belong to earlier groups.
	Shadowed []GroupFinding `json:"shadowed"`
}

// GroupFinding identifies a problematic group.
type GroupFinding struct {
	Name   string `json:"name"`
	Reason string `json:"reason"`
}

// Lint checks every group against the stored emails.
func Lint(emails []email.Email, gs []groups.Group) Findings {
	f := Findings{Total: len(emails)}
	shown := map[string]int{}
	for _, b := range groups.Assign(emails, gs) {
		shown[b.Group.ID] = len(b.Emails)
	}
	for _, g := range groups.Ordered(gs) {
		if !g.HasRules() {
			f.Empty = append(f.Empty, GroupFinding{Name: g.Name, Reason: "no rules"})
			continue
		}
		m := groups.Compile(g)
		matched := 0
		for _, e := range emails {
			if m.Match(e) {
				matched++
			}
		}
		switch {
		case matched == 0:
			f.Dead = append(f.Dead, GroupFinding{Name: g.Name, Reason: "no stored email matched"})
		case shown[g.ID] == 0:
			f.Shadowed = append(f.Shadowed, GroupFinding{
				Name:   g.Name,
				Reason: fmt.Sprintf("all %d matches claimed by earlier groups", matched),
			})
		}
	}
	return f
}

// ShouldFail reports whether any of the requested conditions are present.
func (f Findings) ShouldFail(failOn []string) bool {
	flags := map[string]bool{
		"empty":    len(f.Empty) > 0,
		"dead":     len(f.Dead) > 0,
		"shadowed": len(f.Shadowed) > 0,
	}
	for _, cond := range failOn {
		if flags[strings.TrimSpace(strings.ToLower(cond))] {
			return true
		}
	}
	return false
}

// HumanSummary renders a concise CLI summary.
func (f Findings) HumanSummary() string {
	builder := &strings.Builder{}
	fmt.Fprintf(builder, "unclutter group lint: %d messages checked\n", f.Total)
	if len(f.Empty)+len(f.Dead)+len(f.Shadowed) == 0 {
		builder.WriteString("no findings\n")
		return builder.String()
	}
	sections := []struct {
		title string
		items []GroupFinding
	}{
		{"empty groups", f.Empty},
		{"dead groups", f.Dead},
		{"shadowed groups", f.Shadowed},
	}
	for _, sec := range sections {
		if len(sec.items) == 0 {
			continue
		}
		builder.WriteString(sec.title + ":\n")
		sorted := append([]GroupFinding(nil), sec.items...)
		sort.Slice(sorted, func(i, j int) bool { return sorted[i].Name < sorted[j].Name })
		for _, fr := range sorted {
			fmt.Fprintf(builder, "  %s: %s\n", fr.Name, fr.Reason)
		}
	}
	return builder.String()
}

// ParseFailOn splits a comma separated list into canonical tokens.
func ParseFailOn(input string) []string {
	if strings.TrimSpace(input) == "" {
		return nil
	}
	parts := strings.Split(input, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(strings.ToLower(part))
		if part == "" {
			continue
		}
		out = append(out, part)
	}
	return out
}
