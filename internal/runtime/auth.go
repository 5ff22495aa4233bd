// internal/runtime/auth.go
package runtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/mbrt/gmailctl/cmd/gmailctl/localcred"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"

	gc "github.com/joshsymonds/unclutter/internal/gmail"
)

type Scope int

const (
	ScopeReadonly Scope = iota
	ScopeModify
)

// ErrNoToken is returned when a credentials file is configured but no token
// has been saved yet.
var ErrNoToken = errors.New("no oauth token saved")

func (s Scope) oauthScope() string {
	switch s {
	case ScopeReadonly:
		return gmail.GmailReadonlyScope
	case ScopeModify:
		return gmail.GmailModifyScope
	default:
		panic("unknown scope")
	}
}

// Auth selects how the Gmail client authenticates. With CredentialsFile set
// an OAuth client secret and a saved token are used; otherwise the gmailctl
// configuration in ConfigDir is.
type Auth struct {
	ConfigDir       string
	CredentialsFile string
	TokenFile       string
	Scope           Scope
}

func NewGmailClient(ctx context.Context, a Auth) (gc.Client, error) {
	if a.CredentialsFile == "" {
		svc, err := (localcred.Provider{}).Service(ctx, a.ConfigDir)
		if err != nil {
			return nil, fmt.Errorf("gmailctl credentials in %s: %w", a.ConfigDir, err)
		}
		return NewGoogleAPIClient(svc), nil
	}

	cfg, err := oauthConfig(a)
	if err != nil {
		return nil, err
	}
	tok, err := tokenFromFile(a.TokenFile)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNoToken, a.TokenFile)
	}
	if err != nil {
		return nil, err
	}
	svc, err := gmail.NewService(ctx, option.WithHTTPClient(cfg.Client(ctx, tok)))
	if err != nil {
		return nil, fmt.Errorf("create gmail service: %w", err)
	}
	return NewGoogleAPIClient(svc), nil
}

// Authorize runs the out-of-band consent flow: it prints the consent URL to
// out, reads the code from in and saves the token to a.TokenFile.
func Authorize(ctx context.Context, a Auth, in io.Reader, out io.Writer) error {
	cfg, err := oauthConfig(a)
	if err != nil {
		return err
	}
	url := cfg.AuthCodeURL("state-token", oauth2.AccessTypeOffline)
	fmt.Fprintf(out, "Open this link in your browser, then paste the authorization code:\n%s\n", url)

	var code string
	if _, err := fmt.Fscan(in, &code); err != nil {
		return fmt.Errorf("read authorization code: %w", err)
	}
	tok, err := cfg.Exchange(ctx, strings.TrimSpace(code))
	if err != nil {
		return fmt.Errorf("exchange authorization code: %w", err)
	}
	return saveToken(a.TokenFile, tok)
}

func oauthConfig(a Auth) (*oauth2.Config, error) {
	b, err := os.ReadFile(a.CredentialsFile)
	if err != nil {
		return nil, fmt.Errorf("read client secret file: %w", err)
	}
	cfg, err := google.ConfigFromJSON(b, a.Scope.oauthScope())
	if err != nil {
		return nil, fmt.Errorf("parse client secret file: %w", err)
	}
	return cfg, nil
}

func tokenFromFile(path string) (*oauth2.Token, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	tok := &oauth2.Token{}
	if err := json.NewDecoder(f).Decode(tok); err != nil {
		return nil, fmt.Errorf("decode token file %s: %w", path, err)
	}
	return tok, nil
}

func saveToken(path string, tok *oauth2.Token) error {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("save oauth token: %w", err)
	}
	defer f.Close()
	if err := json.NewEncoder(f).Encode(tok); err != nil {
		return fmt.Errorf("encode oauth token: %w", err)
	}
	return nil
}

func DefaultLogger() *slog.Logger {
	return NewLogger(slog.LevelInfo)
}

// NewLogger returns a text logger on stderr at the given level.
func NewLogger(level slog.Level) *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// ParseLevel maps debug, info, warn and error to a slog level; anything else
// is info.
func ParseLevel(s string) slog.Level {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return slog.LevelInfo
	}
	return lvl
}
