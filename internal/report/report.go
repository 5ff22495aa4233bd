// Package report summarises sorted emails for the terminal or as JSON.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/joshsymonds/unclutter/internal/email"
	"github.com/joshsymonds/unclutter/internal/groups"
	"github.com/joshsymonds/unclutter/internal/sweep"
)

const (
	previewSubjectDisplayLimit = 60
	defaultTopN                = 10
	maxSuggestedFilters        = 10
	promotionsSection          = "Promotions"
)

// Options controls what Build includes.
type Options struct {
	Title string
	Query string
	TopN  int
	Now   time.Time
	// ItemsPerSection caps the listed emails of each section; 0 keeps all.
	ItemsPerSection int
}

// Report summarizes a set of sorted emails.
type Report struct {
	Title            string         `json:"title"`
	GeneratedAt      time.Time      `json:"generated_at"`
	Query            string         `json:"query,omitempty"`
	Total            int            `json:"total"`
	Unread           int            `json:"unread"`
	Sections         []Section      `json:"sections"`
	TopSenders       []SenderStat   `json:"top_senders"`
	Categories       map[string]int `json:"categories,omitempty"`
	SuggestedFilters []string       `json:"suggested_filters,omitempty"`
}

// Section is one bucket or group view.
type Section struct {
	Name   string `json:"name"`
	Color  string `json:"color,omitempty"`
	Count  int    `json:"count"`
	Unread int    `json:"unread"`
	Items  []Item `json:"items"`
}

// Item is an email line inside a section.
type Item struct {
	ID         string    `json:"id"`
	From       string    `json:"from"`
	Subject    string    `json:"subject"`
	ReceivedAt time.Time `json:"received_at"`
	Unread     bool      `json:"unread"`
	Reason     string    `json:"reason,omitempty"`
	Labels     []string  `json:"labels,omitempty"`
}

// SenderStat ranks noisy sender domains.
type SenderStat struct {
	Domain         string `json:"domain"`
	Count          int    `json:"count"`
	PreviewSubject string `json:"preview_subject"`
}

// Build assembles a report over emails and the already computed sections.
func Build(opts Options, emails []email.Email, sections []Section) Report {
	topN := opts.TopN
	if topN <= 0 {
		topN = defaultTopN
	}
	now := opts.Now
	if now.IsZero() {
		now = time.Now()
	}
	rep := Report{
		Title:       opts.Title,
		GeneratedAt: now.UTC(),
		Query:       opts.Query,
		Total:       len(emails),
		Categories:  map[string]int{},
	}
	for _, e := range emails {
		if !e.IsRead {
			rep.Unread++
		}
		if e.Category != "" {
			rep.Categories[string(e.Category)]++
		}
	}
	if len(rep.Categories) == 0 {
		rep.Categories = nil
	}
	rep.TopSenders = rankSenders(emails, topN)

	rep.Sections = make([]Section, 0, len(sections))
	for _, s := range sections {
		if opts.ItemsPerSection > 0 && len(s.Items) > opts.ItemsPerSection {
			s.Items = s.Items[:opts.ItemsPerSection]
		}
		rep.Sections = append(rep.Sections, s)
	}
	rep.SuggestedFilters = buildPromotionFilters(sections, topN)
	return rep
}

// SweepSections renders the four sweep buckets in display order.
func SweepSections(b sweep.Buckets) []Section {
	labels := []sweep.Label{sweep.LabelActionItems, sweep.LabelUniversity, sweep.LabelPromotions, sweep.LabelUnsorted}
	out := make([]Section, 0, len(labels))
	for _, label := range labels {
		s := Section{Name: string(label)}
		for _, l := range b.Get(label) {
			it := itemOf(l.Email)
			for _, x := range l.Labels {
				it.Labels = append(it.Labels, string(x))
			}
			s.add(it)
		}
		out = append(out, s)
	}
	return out
}

// GroupSections renders first-match group buckets, recording for each email
// the rule that placed it.
func GroupSections(buckets []groups.Bucket) []Section {
	out := make([]Section, 0, len(buckets))
	for _, b := range buckets {
		s := Section{Name: b.Group.Name, Color: b.Group.Color}
		m := groups.Compile(b.Group)
		for _, e := range b.Emails {
			it := itemOf(e)
			if r, ok := m.Explain(e); ok {
				it.Reason = r.String()
			}
			s.add(it)
		}
		out = append(out, s)
	}
	return out
}

func (s *Section) add(it Item) {
	s.Count++
	if it.Unread {
		s.Unread++
	}
	s.Items = append(s.Items, it)
}

func itemOf(e email.Email) Item {
	return Item{ID: e.ID, From: e.From, Subject: e.Subject, ReceivedAt: e.ReceivedAt, Unread: !e.IsRead}
}

// PrintHuman writes a readable report to the provided writer.
func PrintHuman(rep Report, w io.Writer) error {
	if w == nil {
		w = os.Stdout
	}
	var builder strings.Builder
	title := rep.Title
	if title == "" {
		title = "unclutter"
	}
	fmt.Fprintf(&builder, "%s: %d messages, %d unread\n", title, rep.Total, rep.Unread)
	if rep.Query != "" {
		fmt.Fprintf(&builder, "filter: %q\n", rep.Query)
	}
	for _, s := range rep.Sections {
		fmt.Fprintf(&builder, "\n%s (%d, %d unread)\n", s.Name, s.Count, s.Unread)
		for _, it := range s.Items {
			marker := " "
			if it.Unread {
				marker = "*"
			}
			fmt.Fprintf(&builder, "  %s %-30s %s", marker, truncate(it.From, 30), truncate(it.Subject, previewSubjectDisplayLimit))
			if it.Reason != "" {
				fmt.Fprintf(&builder, "  [%s]", it.Reason)
			}
			builder.WriteString("\n")
		}
	}
	if len(rep.TopSenders) > 0 {
		builder.WriteString("\nTop senders:\n")
		for _, s := range rep.TopSenders {
			fmt.Fprintf(&builder, "  %-30s %4d %s\n", s.Domain, s.Count, truncate(s.PreviewSubject, previewSubjectDisplayLimit))
		}
	}
	if len(rep.Categories) > 0 {
		builder.WriteString("\nCategories:\n")
		names := make([]string, 0, len(rep.Categories))
		for name := range rep.Categories {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			fmt.Fprintf(&builder, "  %-10s %4d\n", name, rep.Categories[name])
		}
	}
	if len(rep.SuggestedFilters) > 0 {
		builder.WriteString("\nSuggested gmailctl snippets:\n")
		for _, snip := range rep.SuggestedFilters {
			fmt.Fprintf(&builder, "%s\n\n", snip)
		}
	}
	if _, err := io.WriteString(w, builder.String()); err != nil {
		return fmt.Errorf("write human report: %w", err)
	}
	return nil
}

// WriteJSON serializes the report to a path relative to the working directory.
func WriteJSON(rep Report, path string) error {
	clean := strings.TrimSpace(path)
	if clean == "" {
		return fmt.Errorf("path must not be empty")
	}
	clean = filepath.Clean(clean)
	if filepath.IsAbs(clean) {
		return fmt.Errorf("output path must be relative, got %s", clean)
	}
	if strings.HasPrefix(clean, "..") {
		return fmt.Errorf("output path %s escapes working directory", clean)
	}
	wd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("determine working directory: %w", err)
	}
	abs := filepath.Join(wd, clean)
	f, err := os.OpenFile(abs, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600) // #nosec G304
	if err != nil {
		return fmt.Errorf("create %s: %w", abs, err)
	}
	defer func() { _ = f.Close() }()
	return Encode(rep, f)
}

// Encode writes the report as indented JSON.
func Encode(rep Report, w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(rep); err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	return nil
}

func rankSenders(emails []email.Email, topN int) []SenderStat {
	counts := map[string]*SenderStat{}
	for _, e := range emails {
		domain := domainOf(e.From)
		if domain == "" {
			continue
		}
		st := counts[domain]
		if st == nil {
			st = &SenderStat{Domain: domain}
			counts[domain] = st
		}
		st.Count++
		if st.PreviewSubject == "" {
			st.PreviewSubject = e.Subject
		}
	}
	slice := make([]SenderStat, 0, len(counts))
	for _, st := range counts {
		slice = append(slice, *st)
	}
	sort.Slice(slice, func(i, j int) bool {
		if slice[i].Count == slice[j].Count {
			return slice[i].Domain < slice[j].Domain
		}
		return slice[i].Count > slice[j].Count
	})
	if topN < len(slice) {
		slice = slice[:topN]
	}
	return slice
}

// buildPromotionFilters proposes gmailctl rules that label and archive the
// busiest sender domains of the Promotions section.
func buildPromotionFilters(sections []Section, topN int) []string {
	var promos []email.Email
	for _, s := range sections {
		if s.Name != promotionsSection {
			continue
		}
		for _, it := range s.Items {
			promos = append(promos, email.Email{From: it.From, Subject: it.Subject})
		}
	}
	senders := rankSenders(promos, min(topN, maxSuggestedFilters))
	snippets := make([]string, 0, len(senders))
	for _, sd := range senders {
		snippets = append(snippets, fmt.Sprintf(`{
  filter: { from: "*@%s" },
  actions: { labels: ["%s"], archive: true },
}`, sd.Domain, promotionsSection))
	}
	return snippets
}
