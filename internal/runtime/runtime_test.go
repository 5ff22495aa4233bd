package runtime

import (
	"context"
	"encoding/base64"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"golang.org/x/oauth2"
	"google.golang.org/api/gmail/v1"

	gc "github.com/joshsymonds/unclutter/internal/gmail"
	"github.com/joshsymonds/unclutter/internal/mime"
)

func TestToMessage(t *testing.T) {
	html := base64.URLEncoding.EncodeToString([]byte("<p>Caf=C3=A9</p>"))
	plain := base64.RawURLEncoding.EncodeToString([]byte("plain body"))
	msg := &gmail.Message{
		Id:           "m1",
		ThreadId:     "t1",
		Snippet:      "snip",
		LabelIds:     []string{"INBOX", "UNREAD"},
		InternalDate: 1700000000123,
		Payload: &gmail.MessagePart{
			MimeType: "multipart/alternative",
			Headers: []*gmail.MessagePartHeader{
				{Name: "Subject", Value: "Hello"},
				{Name: "From", Value: "a@b.c"},
			},
			Parts: []*gmail.MessagePart{
				{MimeType: "text/plain", Body: &gmail.MessagePartBody{Data: plain}},
				{
					MimeType: "text/html",
					Headers:  []*gmail.MessagePartHeader{{Name: "content-transfer-encoding", Value: " Quoted-Printable "}},
					Body:     &gmail.MessagePartBody{Data: html},
				},
				nil,
			},
		},
	}

	got := toMessage(msg)
	if got.ID != "m1" || got.ThreadID != "t1" || got.Snippet != "snip" {
		t.Fatalf("unexpected ids: %+v", got)
	}
	if !got.HasLabel(gc.LabelUnread) {
		t.Fatalf("labels not copied: %v", got.LabelIDs)
	}
	if want := time.UnixMilli(1700000000123).UTC(); !got.InternalDate.Equal(want) {
		t.Fatalf("InternalDate = %v, want %v", got.InternalDate, want)
	}
	if got.Headers.Get("subject") != "Hello" {
		t.Fatalf("headers = %v", got.Headers)
	}
	if len(got.Payload.Parts) != 2 {
		t.Fatalf("expected nil parts dropped, got %d", len(got.Payload.Parts))
	}
	if enc := got.Payload.Parts[1].Encoding; enc != "quoted-printable" {
		t.Fatalf("Encoding = %q", enc)
	}

	body := mime.SelectBody(got.Payload, func(s string) string { return s })
	if body.Plain != "plain body" || body.HTML != "<p>Café</p>" {
		t.Fatalf("SelectBody() = %+v", body)
	}
}

func TestToMessageWithoutPayload(t *testing.T) {
	got := toMessage(&gmail.Message{Id: "x"})
	if !got.InternalDate.IsZero() || got.Payload.MimeType != "" {
		t.Fatalf("unexpected message: %+v", got)
	}
}

func TestToPartDepthCap(t *testing.T) {
	root := &gmail.MessagePart{MimeType: "multipart/mixed"}
	cur := root
	for i := 0; i < mime.MaxDepth+3; i++ {
		next := &gmail.MessagePart{MimeType: "multipart/mixed"}
		cur.Parts = []*gmail.MessagePart{next}
		cur = next
	}
	depth := 0
	for p := toPart(root, 0); len(p.Parts) > 0; p = p.Parts[0] {
		depth++
	}
	if depth != mime.MaxDepth {
		t.Fatalf("depth = %d, want %d", depth, mime.MaxDepth)
	}
}

func TestTokenFileRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "token.json")
	want := &oauth2.Token{AccessToken: "access", RefreshToken: "refresh", TokenType: "Bearer"}
	if err := saveToken(path, want); err != nil {
		t.Fatalf("saveToken: %v", err)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if info.Mode().Perm() != 0o600 {
		t.Fatalf("token mode = %v", info.Mode().Perm())
	}
	got, err := tokenFromFile(path)
	if err != nil {
		t.Fatalf("tokenFromFile: %v", err)
	}
	if got.AccessToken != want.AccessToken || got.RefreshToken != want.RefreshToken {
		t.Fatalf("token = %+v", got)
	}
}

func TestNewGmailClientMissingToken(t *testing.T) {
	dir := t.TempDir()
	creds := filepath.Join(dir, "credentials.json")
	secret := `{"installed":{"client_id":"id","client_secret":"secret","auth_uri":"https://accounts.google.com/o/oauth2/auth","token_uri":"https://oauth2.googleapis.com/token","redirect_uris":["urn:ietf:wg:oauth:2.0:oob"]}}`
	if err := os.WriteFile(creds, []byte(secret), 0o600); err != nil {
		t.Fatalf("write credentials: %v", err)
	}
	_, err := NewGmailClient(context.Background(), Auth{
		CredentialsFile: creds,
		TokenFile:       filepath.Join(dir, "token.json"),
		Scope:           ScopeModify,
	})
	if !errors.Is(err, ErrNoToken) {
		t.Fatalf("expected ErrNoToken, got %v", err)
	}
}

func TestAuthorizeRejectsBadCredentials(t *testing.T) {
	dir := t.TempDir()
	creds := filepath.Join(dir, "credentials.json")
	if err := os.WriteFile(creds, []byte("not json"), 0o600); err != nil {
		t.Fatalf("write credentials: %v", err)
	}
	var out strings.Builder
	err := Authorize(context.Background(), Auth{CredentialsFile: creds}, strings.NewReader("code"), &out)
	if err == nil || !strings.Contains(err.Error(), "parse client secret file") {
		t.Fatalf("expected parse error, got %v", err)
	}
	if out.Len() != 0 {
		t.Fatalf("nothing should be printed before the config loads")
	}
}

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug": slog.LevelDebug,
		"INFO":  slog.LevelInfo,
		"warn":  slog.LevelWarn,
		"error": slog.LevelError,
		"":      slog.LevelInfo,
		"loud":  slog.LevelInfo,
	}
	for in, want := range tests {
		if got := ParseLevel(in); got != want {
			t.Fatalf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}
