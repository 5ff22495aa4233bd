package report

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/joshsymonds/unclutter/internal/email"
	"github.com/joshsymonds/unclutter/internal/groups"
	"github.com/joshsymonds/unclutter/internal/sweep"
)

var reportNow = time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

func fixture() []email.Email {
	return []email.Email{
		{ID: "e1", From: "Registrar <noreply@mcmaster.ca>", Subject: "Midterm due 15/03", BodyPlain: "See mosaic", Category: email.CategorySchool},
		{ID: "e2", From: "Shop <deals@shop.example.com>", Subject: "Big SALE today", BodyPlain: "20% off", IsRead: true},
		{ID: "e3", From: "deals@shop.example.com", Subject: "Another sale", BodyPlain: "clearance"},
		{ID: "e4", From: "friend@mail.com", Subject: "Lunch?", BodyPlain: "Pizza", Category: email.CategoryPersonal},
	}
}

func TestBuildSweepReport(t *testing.T) {
	emails := fixture()
	rep := Build(Options{Title: "sweep", Now: reportNow}, emails, SweepSections(sweep.DefaultRuleset().Sort(emails, "")))

	if rep.Total != 4 || rep.Unread != 3 {
		t.Fatalf("Total/Unread = %d/%d", rep.Total, rep.Unread)
	}
	var names []string
	for _, s := range rep.Sections {
		names = append(names, s.Name)
	}
	if got := strings.Join(names, ","); got != "Action Items,University,Promotions,Unsorted" {
		t.Fatalf("sections = %s", got)
	}
	promos := rep.Sections[2]
	if promos.Count != 2 || promos.Unread != 1 {
		t.Fatalf("promotions = %+v", promos)
	}
	if rep.Sections[0].Items[0].Labels[0] != "University" {
		t.Fatalf("labels not carried: %+v", rep.Sections[0].Items[0])
	}
	if len(rep.TopSenders) == 0 || rep.TopSenders[0].Domain != "shop.example.com" || rep.TopSenders[0].Count != 2 {
		t.Fatalf("top senders = %+v", rep.TopSenders)
	}
	if rep.TopSenders[0].PreviewSubject != "Big SALE today" {
		t.Fatalf("preview = %q", rep.TopSenders[0].PreviewSubject)
	}
	if rep.Categories["School"] != 1 || rep.Categories["Personal"] != 1 {
		t.Fatalf("categories = %v", rep.Categories)
	}
	if len(rep.SuggestedFilters) != 1 || !strings.Contains(rep.SuggestedFilters[0], `from: "*@shop.example.com"`) {
		t.Fatalf("suggested filters = %v", rep.SuggestedFilters)
	}
	if !rep.GeneratedAt.Equal(reportNow) {
		t.Fatalf("GeneratedAt = %v", rep.GeneratedAt)
	}
}

func TestBuildCapsItems(t *testing.T) {
	emails := fixture()
	rep := Build(Options{ItemsPerSection: 1, TopN: 1}, emails, SweepSections(sweep.DefaultRuleset().Sort(emails, "")))
	for _, s := range rep.Sections {
		if len(s.Items) > 1 {
			t.Fatalf("section %s has %d items", s.Name, len(s.Items))
		}
	}
	if rep.Sections[2].Count != 2 {
		t.Fatalf("counts must not be capped, got %d", rep.Sections[2].Count)
	}
	if len(rep.TopSenders) != 1 {
		t.Fatalf("TopN ignored: %v", rep.TopSenders)
	}
}

func TestGroupSectionsRecordReasons(t *testing.T) {
	gs := []groups.Group{
		{ID: "g1", Name: "Shopping", Color: "#f00", Domains: []string{"shop.example.com"}, SortOrder: 1},
		{ID: "g2", Name: "School", Keywords: []string{"midterm"}, SortOrder: 2},
	}
	sections := GroupSections(groups.Assign(fixture(), gs))
	if len(sections) != 3 {
		t.Fatalf("sections = %+v", sections)
	}
	if sections[0].Name != "Shopping" || sections[0].Color != "#f00" || sections[0].Count != 2 {
		t.Fatalf("first section = %+v", sections[0])
	}
	if got := sections[0].Items[0].Reason; got != "domain:shop.example.com" {
		t.Fatalf("reason = %q", got)
	}
	if got := sections[1].Items[0].Reason; got != "keyword:midterm" {
		t.Fatalf("reason = %q", got)
	}
	if sections[2].Name != groups.Unsorted.Name || sections[2].Items[0].Reason != "" {
		t.Fatalf("unsorted section = %+v", sections[2])
	}
}

func TestPrintHuman(t *testing.T) {
	emails := fixture()
	rep := Build(Options{Title: "unclutter sweep", Query: "sale", Now: reportNow}, emails,
		SweepSections(sweep.DefaultRuleset().Sort(emails, "")))
	var buf bytes.Buffer
	if err := PrintHuman(rep, &buf); err != nil {
		t.Fatalf("PrintHuman: %v", err)
	}
	out := buf.String()
	for _, want := range []string{
		"unclutter sweep: 4 messages, 3 unread",
		`filter: "sale"`,
		"Promotions (2, 1 unread)",
		"Top senders:",
		"Suggested gmailctl snippets:",
		"Categories:",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("output missing %q:\n%s", want, out)
		}
	}
}

func TestWriteJSONRelative(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	rep := Build(Options{Now: reportNow}, fixture(), nil)

	if err := WriteJSON(rep, "out/../report.json"); err != nil {
		t.Fatalf("WriteJSON: %v", err)
	}
	raw, err := os.ReadFile(filepath.Join(dir, "report.json"))
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var decoded Report
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded.Total != 4 {
		t.Fatalf("decoded total = %d", decoded.Total)
	}

	for _, bad := range []string{"", "  ", "/tmp/x.json", "../x.json"} {
		if err := WriteJSON(rep, bad); err == nil {
			t.Fatalf("WriteJSON(%q) succeeded", bad)
		}
	}
}

func TestDomainOf(t *testing.T) {
	tests := map[string]string{
		"Alice <Alice@Example.COM>":        "example.com",
		"bob@test.org":                     "test.org",
		"broken <carol@x.io":               "x.io",
		"no address here":                  "",
		"":                                 "",
		"a@one.com, Second <b@two.com>":    "one.com",
	}
	for in, want := range tests {
		if got := domainOf(in); got != want {
			t.Fatalf("domainOf(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("héllo world", 5); got != "héll…" {
		t.Fatalf("truncate() = %q", got)
	}
	if got := truncate("short", 10); got != "short" {
		t.Fatalf("truncate() = %q", got)
	}
}
