package groups

import (
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/joshsymonds/unclutter/internal/email"
)

// UnsortedID identifies the implicit bucket for emails matching no group.
const UnsortedID = "__unsorted__"

// Unsorted is the implicit last bucket of Assign.
var Unsorted = Group{
	ID:          UnsortedID,
	Name:        "Unsorted",
	Description: "Emails not matching any group",
	Color:       "#9aa0a6",
}

// RuleKind names the rule category that matched.
type RuleKind string

const (
	RuleKeyword RuleKind = "keyword"
	RuleDomain  RuleKind = "domain"
	RuleSender  RuleKind = "sender"
)

// Reason describes the first rule that matched an email.
type Reason struct {
	Kind  RuleKind `json:"kind"`
	Value string   `json:"value"`
}

func (r Reason) String() string { return string(r.Kind) + ":" + r.Value }

// compileKeyword is swapped in tests to exercise the substring fallback.
// A word boundary is required only on an edge that is a word character, so
// keywords such as "c++" or "% off" still match.
var compileKeyword = func(kw string) (*regexp.Regexp, error) {
	pattern := regexp.QuoteMeta(kw)
	if first, _ := utf8.DecodeRuneInString(kw); isWordByte(first) {
		pattern = `\b` + pattern
	}
	if last, _ := utf8.DecodeLastRuneInString(kw); isWordByte(last) {
		pattern += `\b`
	}
	return regexp.Compile(`(?i)` + pattern)
}

// isWordByte mirrors the ASCII word class used by \b.
func isWordByte(r rune) bool {
	return r == '_' || ('0' <= r && r <= '9') || ('a' <= r && r <= 'z') || ('A' <= r && r <= 'Z')
}

type keywordRule struct {
	value string
	re    *regexp.Regexp // nil when the pattern could not be built
}

// Matcher is a group with its keyword patterns compiled once.
type Matcher struct {
	Group    Group
	keywords []keywordRule
	domains  []string
	senders  []string
}

// Compile prepares g for repeated matching.
func Compile(g Group) *Matcher {
	m := &Matcher{Group: g}
	for _, kw := range g.Keywords {
		kw = strings.ToLower(strings.TrimSpace(kw))
		if kw == "" {
			continue
		}
		rule := keywordRule{value: kw}
		if re, err := compileKeyword(kw); err == nil {
			rule.re = re
		}
		m.keywords = append(m.keywords, rule)
	}
	for _, d := range g.Domains {
		if d = strings.ToLower(strings.TrimSpace(d)); d != "" {
			m.domains = append(m.domains, d)
		}
	}
	for _, s := range g.Senders {
		if s = strings.ToLower(strings.TrimSpace(s)); s != "" {
			m.senders = append(m.senders, s)
		}
	}
	return m
}

// Match reports whether any rule of the group matches e.
func (m *Matcher) Match(e email.Email) bool {
	_, ok := m.Explain(e)
	return ok
}

// Explain returns the first matching rule, checking keywords, then domains,
// then senders.
func (m *Matcher) Explain(e email.Email) (Reason, bool) {
	corpus := searchCorpus(e)
	from := strings.ToLower(e.From)

	for _, kw := range m.keywords {
		if kw.re != nil {
			if kw.re.MatchString(corpus) || kw.re.MatchString(from) {
				return Reason{Kind: RuleKeyword, Value: kw.value}, true
			}
			continue
		}
		if strings.Contains(corpus, kw.value) {
			return Reason{Kind: RuleKeyword, Value: kw.value}, true
		}
	}

	domain := SenderDomain(e.From)
	if domain != "" {
		for _, d := range m.domains {
			if domain == d || strings.HasSuffix(domain, "."+d) {
				return Reason{Kind: RuleDomain, Value: d}, true
			}
		}
	}

	for _, s := range m.senders {
		if strings.Contains(from, s) {
			return Reason{Kind: RuleSender, Value: s}, true
		}
	}
	return Reason{}, false
}

// Matches reports whether e belongs to g.
func Matches(e email.Email, g Group) bool {
	return Compile(g).Match(e)
}

// SenderDomain returns the lowercased text after the last "@" of from, with
// a trailing ">" removed. It is "" when from has no "@".
func SenderDomain(from string) string {
	from = strings.ToLower(strings.TrimSpace(from))
	at := strings.LastIndex(from, "@")
	if at < 0 {
		return ""
	}
	return strings.TrimSuffix(from[at+1:], ">")
}

func searchCorpus(e email.Email) string {
	fields := make([]string, 0, 3)
	for _, f := range []string{e.Subject, e.Snippet, e.BodyPlain} {
		if f != "" {
			fields = append(fields, f)
		}
	}
	return strings.ToLower(strings.Join(fields, " "))
}

// Bucket is one group and the emails assigned to it.
type Bucket struct {
	Group  Group         `json:"group"`
	Emails []email.Email `json:"emails"`
}

// Ordered returns the groups sorted by SortOrder, keeping input order for ties.
func Ordered(groups []Group) []Group {
	ordered := append([]Group(nil), groups...)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].SortOrder < ordered[j].SortOrder
	})
	return ordered
}

// Assign places every email in the first group it matches, in sort order,
// or in the Unsorted bucket. Buckets without emails are omitted; Unsorted
// comes last.
func Assign(emails []email.Email, groups []Group) []Bucket {
	ordered := Ordered(groups)
	matchers := make([]*Matcher, len(ordered))
	for i, g := range ordered {
		matchers[i] = Compile(g)
	}

	members := make([][]email.Email, len(ordered))
	var unsorted []email.Email
	for _, e := range emails {
		matched := false
		for i, m := range matchers {
			if m.Match(e) {
				members[i] = append(members[i], e)
				matched = true
				break
			}
		}
		if !matched {
			unsorted = append(unsorted, e)
		}
	}

	out := make([]Bucket, 0, len(ordered)+1)
	for i, g := range ordered {
		if len(members[i]) > 0 {
			out = append(out, Bucket{Group: g, Emails: members[i]})
		}
	}
	if len(unsorted) > 0 {
		out = append(out, Bucket{Group: Unsorted, Emails: unsorted})
	}
	return out
}

// Membership is one group an email matches and why.
type Membership struct {
	Group  Group  `json:"group"`
	Reason Reason `json:"reason"`
}

// MatchAll returns every group e matches, in sort order.
func MatchAll(e email.Email, groups []Group) []Membership {
	var out []Membership
	for _, g := range Ordered(groups) {
		if reason, ok := Compile(g).Explain(e); ok {
			out = append(out, Membership{Group: g, Reason: reason})
		}
	}
	return out
}
