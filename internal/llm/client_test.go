package llm

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/openai/openai-go/v3/option"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joshsymonds/unclutter/internal/email"
	"github.com/joshsymonds/unclutter/internal/groups"
)

type chatRequest struct {
	Model       string  `json:"model"`
	Temperature float64 `json:"temperature"`
	Messages    []struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"messages"`
}

// newTestClient serves reply for every completion and records requests.
func newTestClient(t *testing.T, status int, reply string) (*Client, *[]chatRequest) {
	t.Helper()
	var seen []chatRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("path = %q, want /chat/completions", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("Authorization = %q", got)
		}
		var req chatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request body: %v", err)
		}
		seen = append(seen, req)

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		if status != http.StatusOK {
			_, _ = w.Write([]byte(`{"error":{"message":"boom","type":"server_error"}}`))
			return
		}
		content, _ := json.Marshal(reply)
		_, _ = w.Write([]byte(`{
			"id":"chatcmpl-1",
			"object":"chat.completion",
			"created":1,
			"model":"llama-3.1-8b-instant",
			"choices":[{"index":0,"finish_reason":"stop","message":{"role":"assistant","content":` + string(content) + `}}]
		}`))
	}))
	t.Cleanup(server.Close)

	c, err := New(Config{APIKey: "test-key", BaseURL: server.URL + "/"}, slogDiscard(), option.WithMaxRetries(0))
	require.NoError(t, err)
	return c, &seen
}

func TestNewRequiresAPIKey(t *testing.T) {
	_, err := New(Config{APIKey: "  "}, nil)
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestCategorize(t *testing.T) {
	tests := []struct {
		reply string
		want  email.Category
	}{
		{"Finance", email.CategoryFinance},
		{"  school.", email.CategorySchool},
		{"The category is Work", email.CategoryWork},
		{"no idea", email.CategoryOther},
	}
	for _, tt := range tests {
		t.Run(tt.reply, func(t *testing.T) {
			c, seen := newTestClient(t, http.StatusOK, tt.reply)
			got, err := c.Categorize(t.Context(), email.Email{
				ID:        "m1",
				Subject:   "Your order shipped",
				Snippet:   "Track it",
				BodyPlain: strings.Repeat("x", categoryBodyLimit+50),
			})
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)

			require.Len(t, *seen, 1)
			req := (*seen)[0]
			assert.Equal(t, DefaultModel, req.Model)
			assert.InDelta(t, 0.2, req.Temperature, 1e-9)
			require.Len(t, req.Messages, 1)
			assert.Equal(t, "user", req.Messages[0].Role)
			content := req.Messages[0].Content
			assert.True(t, strings.HasPrefix(content, categoryPrompt))
			assert.Contains(t, content, "Subject: Your order shipped\nSnippet: Track it\nBody (excerpt): ")
			assert.NotContains(t, content, strings.Repeat("x", categoryBodyLimit+1))
		})
	}
}

func TestSummarizeThread(t *testing.T) {
	c, seen := newTestClient(t, http.StatusOK, "• a\n• b\n• c")
	thread := []email.Email{
		{From: "a@x.com", Subject: "Plan", ReceivedAt: time.Date(2025, 1, 2, 3, 4, 0, 0, time.UTC), BodyPlain: "first"},
		{From: "b@x.com", Subject: "Re: Plan", Snippet: "only snippet"},
	}
	got, err := c.SummarizeThread(t.Context(), thread)
	require.NoError(t, err)
	assert.Equal(t, "• a\n• b\n• c", got)

	content := (*seen)[0].Messages[0].Content
	assert.Contains(t, content, "[1] From: a@x.com | 2025-01-02 03:04\nSubject: Plan\nfirst")
	assert.Contains(t, content, "[2] From: b@x.com | \nSubject: Re: Plan\nonly snippet")

	_, err = c.SummarizeThread(t.Context(), nil)
	assert.Error(t, err)
}

func TestSummarizeEmailEmptyBody(t *testing.T) {
	c, seen := newTestClient(t, http.StatusOK, "• done")
	_, err := c.SummarizeEmail(t.Context(), "Hi", "  ")
	require.NoError(t, err)
	assert.Contains(t, (*seen)[0].Messages[0].Content, "Subject: Hi\n\nBody:\n(No body)")
}

func TestSuggestReplyJoinsMessages(t *testing.T) {
	c, seen := newTestClient(t, http.StatusOK, "Sounds good.")
	got, err := c.SuggestReply(t.Context(), []email.Email{
		{From: "a@x.com", Subject: "Lunch", BodyPlain: "Noon?"},
		{From: "me@x.com", Subject: "Re: Lunch", BodyPlain: "Maybe"},
	})
	require.NoError(t, err)
	assert.Equal(t, "Sounds good.", got)
	assert.Contains(t, (*seen)[0].Messages[0].Content, "Noon?\n\n---\n\nFrom: me@x.com")
}

func TestSuggestGroup(t *testing.T) {
	reply := "```json\n" + `{"name":"University","description":"Academic mail","keywords":["Course","course","exam"],"domains":["@McMaster.ca"]}` + "\n```"
	c, seen := newTestClient(t, http.StatusOK, reply)

	samples := make([]email.Email, 20)
	for i := range samples {
		samples[i] = email.Email{From: "prof@mcmaster.ca", Subject: "Lecture", Snippet: strings.Repeat("s", 150)}
	}
	got, err := c.SuggestGroup(t.Context(), "school stuff", samples)
	require.NoError(t, err)
	assert.Equal(t, groups.Group{
		Name:        "University",
		Description: "Academic mail",
		Keywords:    []string{"course", "exam"},
		Domains:     []string{"mcmaster.ca"},
	}, got)

	content := (*seen)[0].Messages[0].Content
	assert.Contains(t, content, `User intent: "school stuff"`)
	assert.Equal(t, maxGroupSamples, strings.Count(content, "From: prof@mcmaster.ca"))
	assert.NotContains(t, content, strings.Repeat("s", sampleSnippetLimit+1))
}

func TestSuggestGroupFallback(t *testing.T) {
	c, _ := newTestClient(t, http.StatusOK, "Sure! Here is a group for you.")
	intent := "everything from my landlord about the apartment"
	got, err := c.SuggestGroup(t.Context(), intent, nil)
	require.NoError(t, err)
	assert.Equal(t, intent[:fallbackNameLimit], got.Name)
	assert.False(t, got.HasRules())

	_, err = c.SuggestGroup(t.Context(), " ", nil)
	assert.ErrorIs(t, err, groups.ErrInvalidGroup)
}

func TestChatBuildsConversation(t *testing.T) {
	c, seen := newTestClient(t, http.StatusOK, "Your exam is Friday.")
	selected := email.Email{From: "prof@x.edu", Subject: "Exam", BodyPlain: "Friday at 9"}
	got, err := c.Chat(t.Context(),
		[]Turn{
			{Role: RoleAssistant, Text: "Hi! How can I help?"},
			{Role: RoleUser, Text: "anything due?"},
			{Role: RoleAssistant, Text: "Let me check."},
		},
		"when is my exam?",
		InboxContext{Preview: []email.Email{{From: "a@x.com", Snippet: "hello"}}, Selected: &selected},
	)
	require.NoError(t, err)
	assert.Equal(t, "Your exam is Friday.", got)

	msgs := (*seen)[0].Messages
	require.Len(t, msgs, 4)
	assert.Equal(t, "system", msgs[0].Role)
	assert.True(t, strings.HasPrefix(msgs[0].Content, inboxSystemPrompt))
	assert.Contains(t, msgs[0].Content, "[Email 1] From: a@x.com\nSubject: (No Subject)\nDate: \nContent: hello")
	assert.Contains(t, msgs[0].Content, "--- CURRENTLY SELECTED EMAIL (focus on this) ---\nFrom: prof@x.edu\nSubject: Exam")
	assert.Equal(t, []string{"user", "assistant", "user"}, []string{msgs[1].Role, msgs[2].Role, msgs[3].Role})
	assert.Equal(t, "when is my exam?", msgs[3].Content)
}

func TestChatWithoutContextUsesBarePrompt(t *testing.T) {
	assert.Equal(t, inboxSystemPrompt, InboxContext{}.systemPrompt())
}

func TestCompleteErrors(t *testing.T) {
	c, _ := newTestClient(t, http.StatusInternalServerError, "")
	_, err := c.Categorize(t.Context(), email.Email{ID: "m1"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status=500")

	c, _ = newTestClient(t, http.StatusOK, "   ")
	_, err = c.SummarizeEmail(t.Context(), "s", "b")
	assert.ErrorIs(t, err, ErrEmptyReply)
}

func TestStripCodeFences(t *testing.T) {
	tests := map[string]string{
		"```json\n{\"a\":1}\n```": `{"a":1}`,
		"```{\"a\":1}```":         `{"a":1}`,
		` {"a":1} `:               `{"a":1}`,
	}
	for in, want := range tests {
		if got := stripCodeFences(in); got != want {
			t.Fatalf("stripCodeFences(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestTruncateCountsRunes(t *testing.T) {
	if got := truncate("héllo", 2); got != "hé" {
		t.Fatalf("truncate() = %q", got)
	}
	if got := truncate("hi", 5); got != "hi" {
		t.Fatalf("truncate() = %q", got)
	}
}

func slogDiscard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
