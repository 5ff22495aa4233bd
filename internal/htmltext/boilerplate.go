package htmltext

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// DefaultMinBoilerplateLength is the shortest trimmed line the filter will judge.
const DefaultMinBoilerplateLength = 3

// BoilerplateRules decides which lines of a newsletter are footer cruft.
type BoilerplateRules struct {
	Patterns  []*regexp.Regexp
	MinLength int
}

var defaultBoilerplateSources = []string{
	`(?i)view\s+(this\s+)?(email\s+)?in\s+(your\s+)?browser`,
	`(?i)unsubscribe`,
	`(?i)update\s+preferences`,
	`(?i)forward\s+to\s+a?\s*friend`,
	`(?i)you\s+are\s+receiving\s+this`,
	`(?i)you're\s+receiving\s+this`,
	`(?i)this\s+email\s+was\s+sent\s+to`,
	`(?i)click\s+here\s+to\s+unsubscribe`,
	`(?i)manage\s+(your\s+)?subscription`,
	`(?i)email\s+preferences`,
	`(?i)all\s+rights\s+reserved`,
	`^\s*https?://\S+\s*$`,
	`(?i)^(facebook|twitter|instagram|linkedin|youtube|tiktok)\s*$`,
	`(?i)terms\s+(of\s+)?(service|use)`,
	`(?i)privacy\s+policy`,
	`(?i)opt[\s-]?out`,
	`(?i)powered\s+by\s+`,
	`(?i)sent\s+with\s+`,
	`(?i)^\s*share\s*$`,
	`(?i)add\s+us\s+to\s+your\s+address\s+book`,
	`(?i)trouble\s+viewing`,
	`(?i)web\s+version`,
	`(?i)view\s+(in|as)\s+(a\s+)?web`,
	`(?i)read\s+more\s*$`,
	`(?i)^\s*learn\s+more\s*$`,
	`(?i)^\s*click\s+here\s*$`,
}

var defaultBoilerplatePatterns = compileAll(defaultBoilerplateSources)

func compileAll(sources []string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, 0, len(sources))
	for _, src := range sources {
		out = append(out, regexp.MustCompile(src))
	}
	return out
}

// DefaultBoilerplateRules returns the stock rule set. The slice is a fresh
// copy, so callers may append to it.
func DefaultBoilerplateRules() BoilerplateRules {
	return BoilerplateRules{
		Patterns:  append([]*regexp.Regexp(nil), defaultBoilerplatePatterns...),
		MinLength: DefaultMinBoilerplateLength,
	}
}

// IsBoilerplate reports whether line, once trimmed, matches any pattern.
// Empty lines and lines shorter than MinLength never count.
func (r BoilerplateRules) IsBoilerplate(line string) bool {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" || utf8.RuneCountInString(trimmed) < r.MinLength {
		return false
	}
	for _, p := range r.Patterns {
		if p.MatchString(trimmed) {
			return true
		}
	}
	return false
}

// Filter drops every boilerplate line from text.
func (r BoilerplateRules) Filter(text string) string {
	lines := strings.Split(text, "\n")
	kept := lines[:0]
	for _, line := range lines {
		if !r.IsBoilerplate(line) {
			kept = append(kept, line)
		}
	}
	return strings.Join(kept, "\n")
}

// IsBoilerplateLine applies the default rules.
func IsBoilerplateLine(line string) bool {
	return defaultRules.IsBoilerplate(line)
}

var defaultRules = DefaultBoilerplateRules()
