// Package sweep sorts emails into the fixed University, Action Items,
// Promotions and Unsorted views and can mirror them onto Gmail labels.
package sweep

import (
	"regexp"
	"strings"

	"github.com/joshsymonds/unclutter/internal/email"
)

// Label is one of the fixed sweep labels.
type Label string

const (
	LabelUniversity  Label = "University"
	LabelActionItems Label = "Action Items"
	LabelPromotions  Label = "Promotions"
	LabelUnsorted    Label = "Unsorted"
)

// Ruleset is the keyword and date-pattern configuration of the classifier.
// Keyword lists match as case-insensitive substrings.
type Ruleset struct {
	Academic     []string
	Action       []string
	DatePatterns []*regexp.Regexp
	Promotion    []string
}

var defaultDatePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\b\d{1,2}/\d{1,2}(/\d{2,4})?\b`),
	regexp.MustCompile(`(?i)\b\d{1,2}-\d{1,2}(-\d{2,4})?\b`),
	regexp.MustCompile(`(?i)\b\d{1,2}\.\d{1,2}(\.\d{2,4})?\b`),
	regexp.MustCompile(`(?i)\b(by|due|before)\s+[\w\s,.-]+\b`),
	regexp.MustCompile(`(?i)\b(january|february|march|april|may|june|july|august|september|october|november|december)\s+\d{1,2}(st|nd|rd|th)?(\s*,?\s*\d{4})?`),
	regexp.MustCompile(`(?i)\b\d{1,2}(st|nd|rd|th)\s+(of\s+)?(january|february|march|april|may|june|july|august|september|october|november|december)`),
	regexp.MustCompile(`(?i)\b(mon|tue|wed|thu|fri|sat|sun)(day)?\s*[,.]?\s*\d{1,2}`),
}

// DefaultRuleset returns the stock McMaster-focused rules as fresh slices.
func DefaultRuleset() Ruleset {
	return Ruleset{
		Academic: []string{
			"avenue to learn", "mosaic", "macid", "mcmaster", "msu",
			"registrar", "syllabus", "midterm", "exam",
		},
		Action:       []string{"due", "deadline", "submission", "submit by"},
		DatePatterns: append([]*regexp.Regexp(nil), defaultDatePatterns...),
		Promotion: []string{
			"sale", "discount", "offer", "limited time", "promo",
			"clearance", "deal", "save", "% off", "off %",
		},
	}
}

// Classify labels one email. Action Items is only considered once University
// matched; Unsorted is returned alone when nothing else applies.
func (r Ruleset) Classify(e email.Email) []Label {
	text := strings.ToLower(searchText(e))
	var labels []Label
	if containsAny(text, r.Academic) {
		labels = append(labels, LabelUniversity)
		if containsAny(text, r.Action) || r.hasDate(text) {
			labels = append(labels, LabelActionItems)
		}
	}
	if containsAny(text, r.Promotion) {
		labels = append(labels, LabelPromotions)
	}
	if len(labels) == 0 {
		labels = append(labels, LabelUnsorted)
	}
	return labels
}

func (r Ruleset) hasDate(text string) bool {
	for _, re := range r.DatePatterns {
		if re.MatchString(text) {
			return true
		}
	}
	return false
}

func searchText(e email.Email) string {
	return strings.Join([]string{e.Subject, e.From, e.Body()}, " ")
}

func containsAny(lower string, keywords []string) bool {
	for _, kw := range keywords {
		kw = strings.ToLower(kw)
		if kw != "" && strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}
