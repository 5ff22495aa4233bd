package email

import "testing"

func TestParseCategory(t *testing.T) {
	tests := []struct {
		reply string
		want  Category
	}{
		{"School", CategorySchool},
		{"  finance\n", CategoryFinance},
		{"Category: Work.", CategoryWork},
		{"I think this is Personal", CategoryPersonal},
		{"school or work", CategorySchool},
		{"no idea", CategoryOther},
		{"", CategoryOther},
	}
	for _, tt := range tests {
		if got := ParseCategory(tt.reply); got != tt.want {
			t.Fatalf("ParseCategory(%q) = %q, want %q", tt.reply, got, tt.want)
		}
	}
}

func TestCategoryValid(t *testing.T) {
	if !CategoryFinance.Valid() {
		t.Fatalf("expected Finance to be valid")
	}
	if Category("Spam").Valid() || Category("").Valid() {
		t.Fatalf("unexpected valid category")
	}
}

func TestBodyFallsBackToSnippet(t *testing.T) {
	e := Email{Snippet: "snip"}
	if e.Body() != "snip" {
		t.Fatalf("Body() = %q", e.Body())
	}
	e.BodyPlain = "full text"
	if e.Body() != "full text" {
		t.Fatalf("Body() = %q", e.Body())
	}
}

func TestBodySourceDegraded(t *testing.T) {
	for src, want := range map[BodySource]bool{
		SourcePlain:   false,
		SourceHTML:    false,
		SourceSnippet: true,
		SourceEmpty:   true,
	} {
		if got := src.Degraded(); got != want {
			t.Fatalf("%s.Degraded() = %v", src, got)
		}
	}
}

func TestHasLabel(t *testing.T) {
	e := Email{LabelIDs: []string{"INBOX", "UNREAD"}}
	if !e.HasLabel("UNREAD") || e.HasLabel("STARRED") {
		t.Fatalf("HasLabel mismatch for %v", e.LabelIDs)
	}
}
