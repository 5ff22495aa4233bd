// Package normalize turns a fetched provider message into an email.Email:
// it selects and cleans the body, falls back to the snippet when extraction
// yields too little, and maps headers and flags.
package normalize

import (
	"net/mail"
	"regexp"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/joshsymonds/unclutter/internal/email"
	"github.com/joshsymonds/unclutter/internal/gmail"
	"github.com/joshsymonds/unclutter/internal/htmltext"
	"github.com/joshsymonds/unclutter/internal/mime"
)

const (
	// DefaultMinBodyLength is the shortest cleaned body kept over the snippet.
	DefaultMinBodyLength = 20

	headlineRatio  = 1.3
	headlinePrefix = 30
)

var boldRe = regexp.MustCompile(`\*([^*\n]+)\*`)

// Pipeline holds the rule sets used for normalization. Use New for defaults.
type Pipeline struct {
	Converter     *htmltext.Converter
	Boilerplate   htmltext.BoilerplateRules
	MinBodyLength int
}

// New returns a pipeline with the stock converter and boilerplate rules.
func New() *Pipeline {
	return &Pipeline{
		Converter:     htmltext.NewConverter(),
		Boilerplate:   htmltext.DefaultBoilerplateRules(),
		MinBodyLength: DefaultMinBodyLength,
	}
}

var defaultPipeline = New()

// CleanBody applies the default pipeline's post-pass.
func CleanBody(text, subject string) string {
	return defaultPipeline.CleanBody(text, subject)
}

// Normalize maps m to an email. It never fails: missing parts produce an
// empty body and the record still carries subject and sender.
func (p *Pipeline) Normalize(m gmail.Message) email.Email {
	subject := m.Headers.Get("Subject")
	snippet := htmltext.DecodeEntities(m.Snippet)
	plain, html, src := p.Body(m.Payload, subject, snippet)

	threadID := m.ThreadID
	if threadID == "" {
		threadID = string(m.ID)
	}
	labels := make([]string, 0, len(m.LabelIDs))
	for _, l := range m.LabelIDs {
		labels = append(labels, string(l))
	}

	return email.Email{
		ID:         string(m.ID),
		ThreadID:   threadID,
		Subject:    subject,
		From:       m.Headers.Get("From"),
		To:         SplitAddresses(m.Headers.Get("To")),
		Cc:         SplitAddresses(m.Headers.Get("Cc")),
		ReceivedAt: ReceivedAt(m),
		Snippet:    snippet,
		BodyPlain:  plain,
		BodyHTML:   html,
		BodySource: src,
		IsRead:     !m.HasLabel(gmail.LabelUnread),
		IsStarred:  m.HasLabel(gmail.LabelStarred),
		LabelIDs:   labels,
	}
}

// Body selects, converts and cleans the body of a part tree, then applies
// the snippet fallback.
func (p *Pipeline) Body(root mime.Part, subject, snippet string) (plain, html string, src email.BodySource) {
	body := mime.SelectBody(root, p.converter().Convert)
	plain = p.CleanBody(body.Plain, subject)

	src = email.SourcePlain
	if body.FromHTML {
		src = email.SourceHTML
	}
	if utf8.RuneCountInString(plain) < p.minBodyLength() && snippet != "" {
		plain, src = snippet, email.SourceSnippet
	}
	if plain == "" {
		src = email.SourceEmpty
	}
	return plain, body.HTML, src
}

// CleanBody strips a headline that repeats the subject, un-bolds *emphasis*,
// drops boilerplate lines and collapses blank runs.
func (p *Pipeline) CleanBody(text, subject string) string {
	if text == "" {
		return ""
	}
	cleaned := strings.TrimLeftFunc(strings.ReplaceAll(text, "\r\n", "\n"), unicode.IsSpace)

	if s := strings.TrimSpace(subject); s != "" {
		if strings.HasPrefix(cleaned, s) {
			cleaned = strings.TrimLeftFunc(cleaned[len(s):], unicode.IsSpace)
		} else if rest, ok := afterHeadline(cleaned, s); ok {
			cleaned = strings.TrimLeftFunc(rest, unicode.IsSpace)
		}
	}

	cleaned = boldRe.ReplaceAllString(cleaned, "$1")
	cleaned = p.Boilerplate.Filter(cleaned)
	cleaned = htmltext.CollapseBlankLines(cleaned)
	return strings.TrimSpace(cleaned)
}

// afterHeadline returns the text after its first line when that line is a
// shortened copy of subject.
func afterHeadline(text, subject string) (string, bool) {
	first, rest, _ := strings.Cut(text, "\n")
	line := strings.TrimSpace(first)
	if line == "" {
		return "", false
	}
	if float64(utf8.RuneCountInString(line)) >= headlineRatio*float64(utf8.RuneCountInString(subject)) {
		return "", false
	}
	prefix := []rune(strings.ToLower(line))
	if len(prefix) > headlinePrefix {
		prefix = prefix[:headlinePrefix]
	}
	if !strings.Contains(strings.ToLower(subject), string(prefix)) {
		return "", false
	}
	return rest, true
}

// ReceivedAt parses the Date header, falling back to the provider's
// internal date. The result is in UTC; zero when neither is usable.
func ReceivedAt(m gmail.Message) time.Time {
	if raw := strings.TrimSpace(m.Headers.Get("Date")); raw != "" {
		if t, err := mail.ParseDate(raw); err == nil {
			return t.UTC()
		}
	}
	if m.InternalDate.IsZero() {
		return time.Time{}
	}
	return m.InternalDate.UTC()
}

// SplitAddresses splits an address header on commas outside quotes and
// angle brackets, keeping each entry's raw "Name <addr>" form.
func SplitAddresses(header string) []string {
	var (
		out     []string
		b       strings.Builder
		quoted  bool
		bracket bool
	)
	flush := func() {
		if s := strings.TrimSpace(b.String()); s != "" {
			out = append(out, s)
		}
		b.Reset()
	}
	for _, r := range header {
		switch {
		case r == '"':
			quoted = !quoted
		case r == '<' && !quoted:
			bracket = true
		case r == '>' && !quoted:
			bracket = false
		case r == ',' && !quoted && !bracket:
			flush()
			continue
		}
		b.WriteRune(r)
	}
	flush()
	return out
}

func (p *Pipeline) converter() *htmltext.Converter {
	if p.Converter == nil {
		return defaultPipeline.Converter
	}
	return p.Converter
}

func (p *Pipeline) minBodyLength() int {
	if p.MinBodyLength <= 0 {
		return DefaultMinBodyLength
	}
	return p.MinBodyLength
}
