package sweep

import (
	"strings"

	"github.com/joshsymonds/unclutter/internal/email"
)

// Labeled is an email together with its computed sweep labels.
type Labeled struct {
	email.Email
	Labels []Label `json:"labels"`
}

// Has reports whether l carries label.
func (l Labeled) Has(label Label) bool {
	for _, x := range l.Labels {
		if x == label {
			return true
		}
	}
	return false
}

// Buckets are the four sweep views. An email with an action item appears
// under ActionItems and never also under University.
type Buckets struct {
	ActionItems []Labeled `json:"action_items"`
	University  []Labeled `json:"university"`
	Promotions  []Labeled `json:"promotions"`
	Unsorted    []Labeled `json:"unsorted"`
}

// Get returns the bucket for a label.
func (b Buckets) Get(label Label) []Labeled {
	switch label {
	case LabelActionItems:
		return b.ActionItems
	case LabelUniversity:
		return b.University
	case LabelPromotions:
		return b.Promotions
	case LabelUnsorted:
		return b.Unsorted
	default:
		return nil
	}
}

// Len counts bucket entries; an email in two buckets counts twice.
func (b Buckets) Len() int {
	return len(b.ActionItems) + len(b.University) + len(b.Promotions) + len(b.Unsorted)
}

// Sort drops emails whose subject, sender and body do not contain query
// (ignoring case), labels the rest and distributes them into buckets.
func (r Ruleset) Sort(emails []email.Email, query string) Buckets {
	query = strings.ToLower(strings.TrimSpace(query))
	var out Buckets
	for _, e := range emails {
		if query != "" && !strings.Contains(strings.ToLower(searchText(e)), query) {
			continue
		}
		l := Labeled{Email: e, Labels: r.Classify(e)}
		if l.Has(LabelActionItems) {
			out.ActionItems = append(out.ActionItems, l)
		}
		if l.Has(LabelUniversity) && !l.Has(LabelActionItems) {
			out.University = append(out.University, l)
		}
		if l.Has(LabelPromotions) {
			out.Promotions = append(out.Promotions, l)
		}
		if l.Has(LabelUnsorted) && len(l.Labels) == 1 {
			out.Unsorted = append(out.Unsorted, l)
		}
	}
	return out
}
