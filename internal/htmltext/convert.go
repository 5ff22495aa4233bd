// Package htmltext renders email HTML as readable plain text and strips
// newsletter boilerplate from the result.
package htmltext

import (
	"html"
	"regexp"
	"strconv"
	"strings"
)

var (
	commentRe = regexp.MustCompile(`(?s)<!--.*?-->`)
	blockRes  = []*regexp.Regexp{
		regexp.MustCompile(`(?is)<head\b[^>]*>.*?</head\s*>`),
		regexp.MustCompile(`(?is)<style\b[^>]*>.*?</style\s*>`),
		regexp.MustCompile(`(?is)<script\b[^>]*>.*?</script\s*>`),
		regexp.MustCompile(`(?is)<noscript\b[^>]*>.*?</noscript\s*>`),
		regexp.MustCompile(`(?is)<nav\b[^>]*>.*?</nav\s*>`),
		regexp.MustCompile(`(?is)<footer\b[^>]*>.*?</footer\s*>`),
	}

	styledTagRe   = regexp.MustCompile(`(?i)<([a-z][a-z0-9]*)\b[^>]*?\bstyle\s*=\s*(?:"([^"]*)"|'([^']*)')[^>]*>`)
	hiddenStyleRe = regexp.MustCompile(`(?i)display\s*:\s*none|visibility\s*:\s*hidden|font-size\s*:\s*0(?:\.0+)?(?:px|pt|em|rem|%)?\s*(?:;|!|$)`)
	closingTagRe  = regexp.MustCompile(`</[a-zA-Z][^>]*>`)

	imgTagRe    = regexp.MustCompile(`(?i)<img\b[^>]*>`)
	sizeAttrRe  = regexp.MustCompile(`(?i)\s(?:width|height)\s*=\s*["']?\s*([0-9.]+)`)
	styleAttrRe = regexp.MustCompile(`(?i)\sstyle\s*=\s*(?:"([^"]*)"|'([^']*)')`)
	sizeStyleRe = regexp.MustCompile(`(?i)(?:^|[;\s])(?:width|height)\s*:\s*([0-9.]+)(?:px)?`)

	anyTagRe      = regexp.MustCompile(`<[a-zA-Z/!?][^>]*>`)
	spaceEntityRe = regexp.MustCompile(`(?i)&(?:nbsp|ensp|emsp|thinsp);`)
	joinEntityRe  = regexp.MustCompile(`(?i)&(?:zwnj|zwj);`)
	hspaceRe      = regexp.MustCompile(`[ \t]+`)
	blankRunRe    = regexp.MustCompile(`\n{3,}`)
	bareURLRe     = regexp.MustCompile(`^https?://\S+$`)
)

type rewrite struct {
	re   *regexp.Regexp
	with string
}

// order matters: headings before paragraphs, <p> before any remaining tag.
var structural = []rewrite{
	{regexp.MustCompile(`(?i)<h[1-6]\b[^>]*>`), "\n\n"},
	{regexp.MustCompile(`(?i)</h[1-6]\s*>`), "\n\n"},
	{regexp.MustCompile(`(?i)</p\s*>`), "\n\n"},
	{regexp.MustCompile(`(?i)<p\b[^>]*>`), ""},
	{regexp.MustCompile(`(?i)</div\s*>`), "\n"},
	{regexp.MustCompile(`(?i)<div\b[^>]*>`), ""},
	{regexp.MustCompile(`(?i)</tr\s*>`), "\n"},
	{regexp.MustCompile(`(?i)</t[dh]\s*>`), "  "},
	{regexp.MustCompile(`(?i)<br\b[^>]*>`), "\n"},
	{regexp.MustCompile(`(?i)<li\b[^>]*>`), "• "},
	{regexp.MustCompile(`(?i)</li\s*>`), "\n"},
	{regexp.MustCompile(`(?i)</[ou]l\s*>`), "\n"},
	{regexp.MustCompile(`(?i)<blockquote\b[^>]*>`), "\n> "},
	{regexp.MustCompile(`(?i)</blockquote\s*>`), "\n"},
	{regexp.MustCompile(`(?i)<hr\b[^>]*>`), "\n---\n"},
}

var voidElements = map[string]bool{
	"area": true, "base": true, "br": true, "col": true, "embed": true, "hr": true,
	"img": true, "input": true, "link": true, "meta": true, "source": true, "wbr": true,
}

var spaceNormalizer = strings.NewReplacer(
	"\u00a0", " ",
	"\u2002", " ",
	"\u2003", " ",
	"\u2009", " ",
	"\u200b", "",
	"\u200c", "",
	"\u200d", "",
	"\ufeff", "",
)

// Converter turns HTML into plain text. The zero value filters nothing;
// use NewConverter for the stock boilerplate rules.
type Converter struct {
	Boilerplate BoilerplateRules
}

// NewConverter returns a converter using DefaultBoilerplateRules.
func NewConverter() *Converter {
	return &Converter{Boilerplate: DefaultBoilerplateRules()}
}

var defaultConverter = NewConverter()

// Convert renders markup with the default converter.
func Convert(markup string) string {
	return defaultConverter.Convert(markup)
}

// Convert renders markup as structured plain text. It never fails; broken
// markup degrades to best-effort text.
func (c *Converter) Convert(markup string) string {
	if markup == "" {
		return ""
	}
	text := strings.ReplaceAll(markup, "\r\n", "\n")

	text = commentRe.ReplaceAllString(text, "")
	for _, re := range blockRes {
		text = re.ReplaceAllString(text, "")
	}

	text = stripHidden(text)
	text = imgTagRe.ReplaceAllStringFunc(text, func(tag string) string {
		if isTrackingPixel(tag) {
			return ""
		}
		return tag
	})

	for _, rw := range structural {
		text = rw.re.ReplaceAllString(text, rw.with)
	}
	text = anyTagRe.ReplaceAllString(text, " ")

	text = DecodeEntities(text)

	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(hspaceRe.ReplaceAllString(line, " "))
	}
	text = CollapseBlankLines(strings.Join(lines, "\n"))

	text = c.Boilerplate.Filter(text)
	text = CollapseBlankLines(text)

	text = dropTrailingURLs(text)
	return strings.TrimSpace(CollapseBlankLines(text))
}

// DecodeEntities resolves named and numeric character references. Typographic
// spaces become a plain space and zero-width characters disappear.
func DecodeEntities(s string) string {
	if strings.IndexByte(s, '&') >= 0 {
		s = spaceEntityRe.ReplaceAllString(s, " ")
		s = joinEntityRe.ReplaceAllString(s, "")
		s = html.UnescapeString(s)
	}
	return spaceNormalizer.Replace(s)
}

// CollapseBlankLines caps runs of newlines at two.
func CollapseBlankLines(s string) string {
	return blankRunRe.ReplaceAllString(s, "\n\n")
}

// stripHidden drops elements whose inline style hides them. It scans the
// document once, resuming after each tag or removed element.
func stripHidden(s string) string {
	var b strings.Builder
	pos := 0
	noClosing := false // once no closing tag follows pos, none follows any later pos
	for pos < len(s) {
		m := styledTagRe.FindStringSubmatchIndex(s[pos:])
		if m == nil {
			break
		}
		start, end := pos+m[0], pos+m[1]
		if !isHidden(s[pos:], m) {
			b.WriteString(s[pos:end])
			pos = end
			continue
		}
		b.WriteString(s[pos:start])
		name := s[pos+m[2] : pos+m[3]]
		if voidElements[strings.ToLower(name)] || strings.HasSuffix(s[start:end], "/>") {
			pos = end
			continue
		}
		var closing []int
		if !noClosing {
			closing = closingTagRe.FindStringIndex(s[end:])
		}
		if closing == nil {
			noClosing = true
			b.WriteString(s[start:end])
			pos = end
			continue
		}
		pos = end + closing[1]
	}
	b.WriteString(s[pos:])
	return b.String()
}

func isHidden(s string, m []int) bool {
	style := submatch(s, m, 2)
	if style == "" {
		style = submatch(s, m, 3)
	}
	return hiddenStyleRe.MatchString(style)
}

func submatch(s string, m []int, group int) string {
	if m[2*group] < 0 {
		return ""
	}
	return s[m[2*group]:m[2*group+1]]
}

func isTrackingPixel(tag string) bool {
	for _, m := range sizeAttrRe.FindAllStringSubmatch(tag, -1) {
		if tinyDimension(m[1]) {
			return true
		}
	}
	for _, m := range styleAttrRe.FindAllStringSubmatch(tag, -1) {
		style := m[1] + m[2]
		for _, d := range sizeStyleRe.FindAllStringSubmatch(style, -1) {
			if tinyDimension(d[1]) {
				return true
			}
		}
	}
	return false
}

func tinyDimension(v string) bool {
	f, err := strconv.ParseFloat(v, 64)
	return err == nil && (f == 0 || f == 1)
}

// dropTrailingURLs removes a closing run of three or more bare URL lines.
func dropTrailingURLs(s string) string {
	lines := strings.Split(strings.TrimRight(s, "\n"), "\n")
	end := len(lines)
	start := end
	for start > 0 && bareURLRe.MatchString(lines[start-1]) {
		start--
	}
	if end-start < 3 {
		return s
	}
	return strings.Join(lines[:start], "\n")
}
