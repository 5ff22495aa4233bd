// Package llm talks to an OpenAI-compatible chat endpoint (Groq by default)
// to categorise, summarise and draft replies for emails.
package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"github.com/joshsymonds/unclutter/internal/email"
	"github.com/joshsymonds/unclutter/internal/groups"
)

const (
	DefaultBaseURL = "https://api.groq.com/openai/v1"
	DefaultModel   = "llama-3.1-8b-instant"

	temperature       = 0.2
	defaultMaxRetries = 3
)

var (
	// ErrNotConfigured is returned by New when no API key is set.
	ErrNotConfigured = errors.New("llm api key not configured")
	// ErrEmptyReply is returned when the endpoint answers without content.
	ErrEmptyReply = errors.New("llm returned no content")
)

type Config struct {
	APIKey  string
	BaseURL string
	Model   string
}

// Role of a chat turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is one earlier message of a Chat conversation.
type Turn struct {
	Role Role
	Text string
}

type Client struct {
	client openai.Client
	model  string
	log    *slog.Logger
}

// New builds a client. Extra request options are applied after the defaults,
// so callers can override retries or the HTTP client.
func New(cfg Config, logger *slog.Logger, opts ...option.RequestOption) (*Client, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, ErrNotConfigured
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(os.Stderr, nil))
	}
	base := strings.TrimRight(cfg.BaseURL, "/")
	if base == "" {
		base = DefaultBaseURL
	}
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = DefaultModel
	}
	reqOpts := append([]option.RequestOption{
		option.WithBaseURL(base),
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(defaultMaxRetries),
	}, opts...)
	return &Client{client: openai.NewClient(reqOpts...), model: model, log: logger}, nil
}

// Categorize assigns one triage category to an email.
func (c *Client) Categorize(ctx context.Context, e email.Email) (email.Category, error) {
	reply, err := c.complete(ctx, openai.UserMessage(categorizeInput(e)))
	if err != nil {
		return "", fmt.Errorf("categorize %s: %w", e.ID, err)
	}
	cat := email.ParseCategory(reply)
	c.log.Debug("categorized", "id", e.ID, "category", cat, "reply", reply)
	return cat, nil
}

// SummarizeEmail returns three to five bullet points for one message.
func (c *Client) SummarizeEmail(ctx context.Context, subject, body string) (string, error) {
	reply, err := c.complete(ctx, openai.UserMessage(emailSummaryInput(subject, body)))
	if err != nil {
		return "", fmt.Errorf("summarize email: %w", err)
	}
	return reply, nil
}

// SummarizeThread returns three bullet points for a thread, oldest first.
func (c *Client) SummarizeThread(ctx context.Context, thread []email.Email) (string, error) {
	if len(thread) == 0 {
		return "", errors.New("summarize thread: no messages")
	}
	reply, err := c.complete(ctx, openai.UserMessage(threadSummaryInput(thread)))
	if err != nil {
		return "", fmt.Errorf("summarize thread: %w", err)
	}
	return reply, nil
}

// SuggestReply drafts a reply body continuing the thread.
func (c *Client) SuggestReply(ctx context.Context, thread []email.Email) (string, error) {
	if len(thread) == 0 {
		return "", errors.New("suggest reply: no messages")
	}
	reply, err := c.complete(ctx, openai.UserMessage(replyInput(thread)))
	if err != nil {
		return "", fmt.Errorf("suggest reply: %w", err)
	}
	return reply, nil
}

type groupSuggestion struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Keywords    []string `json:"keywords"`
	Domains     []string `json:"domains"`
}

// SuggestGroup asks for a group definition matching intent, using up to 15
// sample emails as hints. A reply that is not a JSON object yields a group
// named after the intent with no rules.
func (c *Client) SuggestGroup(ctx context.Context, intent string, samples []email.Email) (groups.Group, error) {
	intent = strings.TrimSpace(intent)
	if intent == "" {
		return groups.Group{}, fmt.Errorf("%w: intent is required", groups.ErrInvalidGroup)
	}
	reply, err := c.complete(ctx, openai.UserMessage(groupInput(intent, samples)))
	if err != nil {
		return groups.Group{}, fmt.Errorf("suggest group: %w", err)
	}
	return parseGroupSuggestion(reply, intent, c.log), nil
}

func parseGroupSuggestion(reply, intent string, log *slog.Logger) groups.Group {
	var s groupSuggestion
	if err := json.Unmarshal([]byte(stripCodeFences(reply)), &s); err != nil {
		log.Warn("unparsable group suggestion", "error", err)
		return groups.Group{Name: truncate(intent, fallbackNameLimit)}
	}
	if strings.TrimSpace(s.Name) == "" {
		s.Name = truncate(intent, fallbackNameLimit)
	}
	return groups.Group{
		Name:        s.Name,
		Description: s.Description,
		Keywords:    s.Keywords,
		Domains:     s.Domains,
	}.Normalized()
}

// Chat answers a question about the inbox. A leading assistant turn (the UI
// greeting) is dropped from the history.
func (c *Client) Chat(ctx context.Context, history []Turn, message string, inbox InboxContext) (string, error) {
	msgs := []openai.ChatCompletionMessageParamUnion{openai.SystemMessage(inbox.systemPrompt())}
	for i, t := range history {
		switch {
		case t.Role == RoleAssistant && i == 0:
			continue
		case t.Role == RoleAssistant:
			msgs = append(msgs, openai.AssistantMessage(t.Text))
		default:
			msgs = append(msgs, openai.UserMessage(t.Text))
		}
	}
	msgs = append(msgs, openai.UserMessage(message))
	reply, err := c.complete(ctx, msgs...)
	if err != nil {
		return "", fmt.Errorf("chat: %w", err)
	}
	return reply, nil
}

func (c *Client) complete(ctx context.Context, msgs ...openai.ChatCompletionMessageParamUnion) (string, error) {
	resp, err := c.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:       c.model,
		Messages:    msgs,
		Temperature: openai.Opt(temperature),
	})
	if err != nil {
		var apiErr *openai.Error
		if errors.As(err, &apiErr) {
			return "", fmt.Errorf("chat completion (status=%d): %w", apiErr.StatusCode, err)
		}
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if resp == nil || len(resp.Choices) == 0 {
		return "", ErrEmptyReply
	}
	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	if content == "" {
		return "", ErrEmptyReply
	}
	return content, nil
}
