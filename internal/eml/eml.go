// Package eml reads raw RFC 822 messages into the provider message model so
// saved .eml files can run through the same normalization as fetched mail.
package eml

import (
	"encoding/base64"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/jhillyerd/enmime"

	"github.com/joshsymonds/unclutter/internal/gmail"
	"github.com/joshsymonds/unclutter/internal/mime"
)

// SnippetLength matches the length of provider snippets.
const SnippetLength = 200

var copiedHeaders = []string{"Subject", "From", "To", "Cc", "Date", "Message-Id"}

// Read parses r and mirrors its part tree. Leaf payloads are re-encoded as
// url-safe base64 because enmime has already removed the transfer encoding.
// Attachments are skipped.
func Read(r io.Reader) (gmail.Message, error) {
	env, err := enmime.ReadEnvelope(r)
	if err != nil {
		return gmail.Message{}, fmt.Errorf("read envelope: %w", err)
	}

	headers := gmail.Headers{}
	for _, name := range copiedHeaders {
		if v := env.GetHeader(name); v != "" {
			headers[name] = v
		}
	}

	msg := gmail.Message{
		ID:      gmail.MessageID(strings.Trim(strings.TrimSpace(headers.Get("Message-Id")), "<>")),
		Snippet: snippetOf(env.Text),
		Headers: headers,
	}
	if env.Root != nil {
		msg.Payload = toPart(env.Root, 0)
	}
	return msg, nil
}

func toPart(p *enmime.Part, depth int) mime.Part {
	out := mime.Part{MimeType: p.ContentType}
	if p.FirstChild == nil {
		if len(p.Content) > 0 {
			out.Payload = base64.URLEncoding.EncodeToString(p.Content)
		}
		return out
	}
	if depth >= mime.MaxDepth {
		return out
	}
	for c := p.FirstChild; c != nil; c = c.NextSibling {
		if isAttachment(c) {
			continue
		}
		out.Parts = append(out.Parts, toPart(c, depth+1))
	}
	return out
}

func isAttachment(p *enmime.Part) bool {
	return strings.EqualFold(p.Disposition, "attachment") || p.FileName != ""
}

func snippetOf(text string) string {
	s := strings.Join(strings.Fields(text), " ")
	if utf8.RuneCountInString(s) <= SnippetLength {
		return s
	}
	return string([]rune(s)[:SnippetLength])
}
