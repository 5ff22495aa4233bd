// Package mime turns the provider's MIME part tree into body text.
package mime

import (
	"encoding/base64"
	"regexp"
	"strconv"
	"strings"
)

// EncodingQuotedPrintable is the only transfer encoding decoded after base64.
const EncodingQuotedPrintable = "quoted-printable"

var (
	softBreakRe = regexp.MustCompile(`=\r?\n`)
	qpEscapeRe  = regexp.MustCompile(`=([0-9A-Fa-f]{2})`)
	spaceRe     = regexp.MustCompile(`\s+`)
)

var base64Alphabets = []*base64.Encoding{
	base64.URLEncoding,
	base64.RawURLEncoding,
	base64.StdEncoding,
	base64.RawStdEncoding,
}

// Decode unwraps a provider payload: base64 (url-safe first, then standard)
// and, when encoding names it, quoted-printable. Undecodable input yields "".
func Decode(payload, encoding string) string {
	if payload == "" {
		return ""
	}
	raw, ok := decodeBase64(payload)
	if !ok {
		return ""
	}
	if strings.EqualFold(strings.TrimSpace(encoding), EncodingQuotedPrintable) {
		return DecodeQuotedPrintable(raw)
	}
	return raw
}

func decodeBase64(payload string) (string, bool) {
	compact := spaceRe.ReplaceAllString(payload, "")
	for _, enc := range base64Alphabets {
		if data, err := enc.DecodeString(compact); err == nil {
			return string(data), true
		}
	}
	return "", false
}

// DecodeQuotedPrintable drops soft line breaks and replaces =XX escapes with
// the byte they name. Malformed escapes are left as-is.
func DecodeQuotedPrintable(s string) string {
	if s == "" {
		return ""
	}
	s = softBreakRe.ReplaceAllString(s, "")
	return qpEscapeRe.ReplaceAllStringFunc(s, func(m string) string {
		b, err := strconv.ParseUint(m[1:], 16, 8)
		if err != nil {
			return m
		}
		return string([]byte{byte(b)})
	})
}
