package mime

import "strings"

// MaxDepth bounds how far SelectBody descends into nested multiparts.
const MaxDepth = 32

const (
	typeTextPlain = "text/plain"
	typeTextHTML  = "text/html"
	prefixText    = "text/"
	prefixMulti   = "multipart/"
)

// Part is one node of a message's content tree as the provider reports it.
// Leaves carry Payload; multiparts carry Parts.
type Part struct {
	MimeType string `json:"mime_type"`
	Encoding string `json:"encoding,omitempty"`
	Payload  string `json:"payload,omitempty"`
	Parts    []Part `json:"parts,omitempty"`
}

// MediaType returns the lowercased type without parameters.
func (p Part) MediaType() string {
	mt := p.MimeType
	if i := strings.IndexByte(mt, ';'); i >= 0 {
		mt = mt[:i]
	}
	return strings.ToLower(strings.TrimSpace(mt))
}

// TextConverter renders HTML as plain text.
type TextConverter func(html string) string

// Body is the outcome of walking a part tree.
type Body struct {
	// Plain is the chosen plain text: a genuine text/plain part when one
	// exists, otherwise text derived from the HTML part.
	Plain string
	// HTML is the raw source of the last text/html part, or "" when absent.
	HTML string
	// FromHTML reports whether Plain was derived from HTML.
	FromHTML bool
}

// Candidates holds the intermediate picks of a walk.
type Candidates struct {
	Plain         string
	HTML          string
	PlainFromHTML string
}

// Merge folds the candidates of a later sibling into c. The longest plain
// text wins (ties keep the earlier one), the later HTML wins, and
// HTML-derived text is only taken while no plain text has been seen.
func (c Candidates) Merge(next Candidates) Candidates {
	out := c
	if len(next.Plain) > len(out.Plain) {
		out.Plain = next.Plain
	}
	if next.HTML != "" {
		out.HTML = next.HTML
	}
	if c.Plain == "" && next.PlainFromHTML != "" {
		out.PlainFromHTML = next.PlainFromHTML
	}
	return out
}

// Collect walks the tree rooted at root and returns its candidates.
func Collect(root Part, toText TextConverter) Candidates {
	if toText == nil {
		toText = func(string) string { return "" }
	}
	acc := Candidates{}
	if root.Payload != "" {
		mt := root.MediaType()
		switch {
		case mt == typeTextHTML:
			acc = leaf(root, toText)
		case mt == "" || strings.HasPrefix(mt, prefixText):
			acc.Plain = Decode(root.Payload, root.Encoding)
		}
	}
	return acc.Merge(collectParts(root.Parts, toText, 1))
}

func collectParts(parts []Part, toText TextConverter, depth int) Candidates {
	acc := Candidates{}
	if depth > MaxDepth {
		return acc
	}
	for _, part := range parts {
		mt := part.MediaType()
		switch {
		case mt == typeTextPlain, mt == typeTextHTML:
			acc = acc.Merge(leaf(part, toText))
		case strings.HasPrefix(mt, prefixMulti) && len(part.Parts) > 0:
			acc = acc.Merge(collectParts(part.Parts, toText, depth+1))
		}
	}
	return acc
}

func leaf(part Part, toText TextConverter) Candidates {
	raw := Decode(part.Payload, part.Encoding)
	if raw == "" {
		return Candidates{}
	}
	if part.MediaType() == typeTextHTML {
		return Candidates{HTML: raw, PlainFromHTML: toText(raw)}
	}
	return Candidates{Plain: raw}
}

// SelectBody picks the best plain text in the tree, falling back to text
// derived from HTML, and keeps the HTML source when there was one.
func SelectBody(root Part, toText TextConverter) Body {
	c := Collect(root, toText)
	switch {
	case c.Plain != "":
		return Body{Plain: c.Plain, HTML: c.HTML}
	case c.PlainFromHTML != "":
		return Body{Plain: c.PlainFromHTML, HTML: c.HTML, FromHTML: true}
	case c.HTML != "" && toText != nil:
		return Body{Plain: toText(c.HTML), HTML: c.HTML, FromHTML: true}
	default:
		return Body{HTML: c.HTML}
	}
}
