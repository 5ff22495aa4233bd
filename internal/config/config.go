// Package config loads unclutter settings from the environment, optionally
// seeded from a .env file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"github.com/joshsymonds/unclutter/internal/llm"
	"github.com/joshsymonds/unclutter/internal/runtime"
)

// DefaultDotenv is the file Load reads when it exists.
const DefaultDotenv = ".env"

// Config holds every setting shared by the binaries. Flags override it.
type Config struct {
	DBPath string `env:"UNCLUTTER_DB" envDefault:"unclutter.db"`

	// GmailConfigDir is the gmailctl directory; empty means $HOME/.gmailctl.
	GmailConfigDir   string `env:"UNCLUTTER_GMAIL_CONFIG"`
	GmailCredentials string `env:"UNCLUTTER_GMAIL_CREDENTIALS"`
	GmailToken       string `env:"UNCLUTTER_GMAIL_TOKEN"`

	LLMAPIKey  string `env:"GROQ_API_KEY"`
	LLMBaseURL string `env:"UNCLUTTER_LLM_BASE_URL"`
	LLMModel   string `env:"UNCLUTTER_LLM_MODEL"`

	RPS         int    `env:"UNCLUTTER_RPS" envDefault:"4"`
	SyncMax     int    `env:"UNCLUTTER_SYNC_MAX" envDefault:"50"`
	SyncQuery   string `env:"UNCLUTTER_SYNC_QUERY" envDefault:"in:inbox -in:draft"`
	Workers     int    `env:"UNCLUTTER_WORKERS" envDefault:"4"`
	LabelPrefix string `env:"UNCLUTTER_LABEL_PREFIX"`
	LogLevel    string `env:"UNCLUTTER_LOG_LEVEL" envDefault:"info"`
}

// Load reads dotenv (DefaultDotenv when empty; a missing file is fine) and
// then the process environment, which wins over the file.
func Load(dotenv string) (Config, error) {
	if dotenv == "" {
		dotenv = DefaultDotenv
	}
	vars, err := godotenv.Read(dotenv)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("read %s: %w", dotenv, err)
		}
		vars = map[string]string{}
	}
	for _, kv := range os.Environ() {
		if k, v, ok := strings.Cut(kv, "="); ok {
			vars[k] = v
		}
	}
	return FromMap(vars)
}

// FromMap parses settings from vars alone.
func FromMap(vars map[string]string) (Config, error) {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, env.Options{Environment: vars}); err != nil {
		return Config{}, fmt.Errorf("parse environment: %w", err)
	}
	if cfg.GmailConfigDir == "" {
		cfg.GmailConfigDir = defaultGmailConfigDir(vars)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func defaultGmailConfigDir(vars map[string]string) string {
	home := vars["HOME"]
	if home == "" {
		home, _ = os.UserHomeDir()
	}
	return strings.TrimRight(home, "/") + "/.gmailctl"
}

// Validate rejects settings no binary can run with.
func (c Config) Validate() error {
	if strings.TrimSpace(c.DBPath) == "" {
		return errors.New("UNCLUTTER_DB must not be empty")
	}
	if c.RPS < 0 {
		return fmt.Errorf("UNCLUTTER_RPS must be >= 0, got %d", c.RPS)
	}
	if c.SyncMax <= 0 {
		return fmt.Errorf("UNCLUTTER_SYNC_MAX must be > 0, got %d", c.SyncMax)
	}
	if c.Workers <= 0 {
		return fmt.Errorf("UNCLUTTER_WORKERS must be > 0, got %d", c.Workers)
	}
	if c.GmailCredentials != "" && c.GmailToken == "" {
		return errors.New("UNCLUTTER_GMAIL_TOKEN is required with UNCLUTTER_GMAIL_CREDENTIALS")
	}
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return fmt.Errorf("UNCLUTTER_LOG_LEVEL: %w", err)
	}
	return nil
}

// Logger builds the stderr logger at the configured level.
func (c Config) Logger() *slog.Logger {
	return runtime.NewLogger(runtime.ParseLevel(c.LogLevel))
}

// LLM returns the completion client settings.
func (c Config) LLM() llm.Config {
	return llm.Config{APIKey: c.LLMAPIKey, BaseURL: c.LLMBaseURL, Model: c.LLMModel}
}

// Auth returns the Gmail credentials for the requested scope.
func (c Config) Auth(scope runtime.Scope) runtime.Auth {
	return runtime.Auth{
		ConfigDir:       c.GmailConfigDir,
		CredentialsFile: c.GmailCredentials,
		TokenFile:       c.GmailToken,
		Scope:           scope,
	}
}
