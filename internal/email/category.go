package email

import "strings"

// Category is the single LLM-assigned triage label persisted with an email.
type Category string

const (
	CategorySchool   Category = "School"
	CategoryFinance  Category = "Finance"
	CategoryWork     Category = "Work"
	CategoryPersonal Category = "Personal"
	CategoryOther    Category = "Other"
)

// Categories lists every category in match priority order.
var Categories = []Category{CategorySchool, CategoryFinance, CategoryWork, CategoryPersonal, CategoryOther}

// ParseCategory picks the first category named anywhere in a free-form
// reply, case-insensitively. Unrecognized replies yield CategoryOther.
func ParseCategory(reply string) Category {
	lower := strings.ToLower(reply)
	for _, c := range Categories {
		if strings.Contains(lower, strings.ToLower(string(c))) {
			return c
		}
	}
	return CategoryOther
}

// Valid reports whether c is one of the known categories.
func (c Category) Valid() bool {
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}
