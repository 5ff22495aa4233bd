package mime

import (
	"encoding/base64"
	"testing"
)

func TestDecode(t *testing.T) {
	tests := []struct {
		name     string
		payload  string
		encoding string
		want     string
	}{
		{
			name:    "url-safe",
			payload: base64.URLEncoding.EncodeToString([]byte("subjects?>>")),
			want:    "subjects?>>",
		},
		{
			name:    "url-safe unpadded",
			payload: base64.RawURLEncoding.EncodeToString([]byte("hi there")),
			want:    "hi there",
		},
		{
			name:    "standard alphabet fallback",
			payload: base64.StdEncoding.EncodeToString([]byte("subjects?>>")),
			want:    "subjects?>>",
		},
		{
			name:    "wrapped lines",
			payload: "aGVsbG8g\r\nd29ybGQ=",
			want:    "hello world",
		},
		{
			name:     "quoted-printable after base64",
			payload:  base64.URLEncoding.EncodeToString([]byte("Hello=20World=0A")),
			encoding: "Quoted-Printable",
			want:     "Hello World\n",
		},
		{
			name:     "other encodings pass through",
			payload:  base64.URLEncoding.EncodeToString([]byte("a=20b")),
			encoding: "7bit",
			want:     "a=20b",
		},
		{
			name:    "garbage degrades to empty",
			payload: "!!!not base64!!!",
			want:    "",
		},
		{
			name: "empty",
			want: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Decode(tt.payload, tt.encoding); got != tt.want {
				t.Fatalf("Decode() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestDecodeQuotedPrintable(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{name: "escapes", input: "Hello=20World=0A", want: "Hello World\n"},
		{name: "soft break lf", input: "long=\nline", want: "longline"},
		{name: "soft break crlf", input: "long=\r\nline", want: "longline"},
		{name: "utf-8 bytes", input: "caf=C3=A9", want: "café"},
		{name: "lowercase hex", input: "a=3db", want: "a=b"},
		{name: "malformed escape kept", input: "100=ZZ", want: "100=ZZ"},
		{name: "empty", input: "", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DecodeQuotedPrintable(tt.input); got != tt.want {
				t.Fatalf("DecodeQuotedPrintable(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}
