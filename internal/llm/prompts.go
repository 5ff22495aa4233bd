package llm

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/joshsymonds/unclutter/internal/email"
)

const (
	categoryPrompt = `You are a triage assistant. Given an email, assign exactly one category: "School", "Finance", "Work", "Personal", or "Other".
Rules: If the email mentions "macID" assign "School". If it mentions "order" or "coupons" or payment/billing assign "Finance". Otherwise choose the best fit.
Reply with only the single category word, nothing else.`

	threadSummaryPrompt = `Summarize this email thread in exactly 3 bullet points. Be concise. Output only the 3 bullets, one per line.`

	emailSummaryPrompt = `Summarize this email in 3-5 short bullet points. Be concise. Output only the bullets, one per line.`

	replyPrompt = `You are helping the user reply to an email thread. Given the last few messages in the thread, write a short, professional reply that continues the conversation. Output only the reply body, no subject or metadata.`

	groupPrompt = `You help users create email groups. Given a user's intent and sample emails, output a JSON object with these fields:
- name: short group name (1-3 words)
- description: one sentence describing the group
- keywords: array of SPECIFIC strings to match in email subject/body. Be precise - use words that will ONLY appear in relevant emails. Lowercase, no duplicates. Do NOT use generic words like "the", "a", "email", "message".
- domains: array of email domain strings (like "mcmaster.ca") to match sender addresses

IMPORTANT: Keywords must be highly specific to the group intent. For a "University" group, use academic terms like "course", "assignment", "professor", "lecture", "exam", "grade", "syllabus", "campus". Do NOT include generic words that would match unrelated emails.

Output ONLY valid JSON, no markdown, no code blocks. Start with { and end with }.
Example: {"name":"University","description":"Academic and university emails","keywords":["university","course","assignment","professor","lecture","exam","grade","syllabus","campus","semester"],"domains":["mcmaster.ca","edu"]}`

	inboxSystemPrompt = `You are the UnClutter assistant. You have FULL ACCESS to the user's email inbox. Use the email data provided to answer questions. Extract deadlines, action items, and commitments from the emails. Give specific answers based on the content. Never say you don't have access to their emails.`
)

// Excerpt bounds, in runes.
const (
	categoryBodyLimit    = 4000
	threadBodyLimit      = 1500
	replyBodyLimit       = 2000
	sampleSnippetLimit   = 100
	maxGroupSamples      = 15
	fallbackNameLimit    = 30
	maxContextEmails     = 20
	contextPreviewLimit  = 300
	contextSelectedLimit = 2000
)

const dateLayout = "2006-01-02 15:04"

var codeFenceRe = regexp.MustCompile("```(?:json)?\\s*")

func categorizeInput(e email.Email) string {
	return fmt.Sprintf("%s\n\nSubject: %s\nSnippet: %s\nBody (excerpt): %s",
		categoryPrompt, e.Subject, e.Snippet, truncate(e.BodyPlain, categoryBodyLimit))
}

func emailSummaryInput(subject, body string) string {
	if strings.TrimSpace(body) == "" {
		body = "(No body)"
	}
	return fmt.Sprintf("%s\n\nSubject: %s\n\nBody:\n%s", emailSummaryPrompt, subject, body)
}

func threadSummaryInput(thread []email.Email) string {
	blocks := make([]string, 0, len(thread))
	for i, e := range thread {
		blocks = append(blocks, fmt.Sprintf("[%d] From: %s | %s\nSubject: %s\n%s",
			i+1, e.From, formatDate(e.ReceivedAt), e.Subject, truncate(e.Body(), threadBodyLimit)))
	}
	return threadSummaryPrompt + "\n\n" + strings.Join(blocks, "\n\n")
}

func replyInput(thread []email.Email) string {
	blocks := make([]string, 0, len(thread))
	for _, e := range thread {
		blocks = append(blocks, fmt.Sprintf("From: %s\nSubject: %s\n\n%s",
			e.From, e.Subject, truncate(e.BodyPlain, replyBodyLimit)))
	}
	return replyPrompt + "\n\n" + strings.Join(blocks, "\n\n---\n\n")
}

func groupInput(intent string, samples []email.Email) string {
	if len(samples) > maxGroupSamples {
		samples = samples[:maxGroupSamples]
	}
	lines := make([]string, 0, len(samples))
	for _, e := range samples {
		lines = append(lines, fmt.Sprintf("From: %s | Subject: %s | Snippet: %s",
			e.From, e.Subject, truncate(e.Snippet, sampleSnippetLimit)))
	}
	sampleText := strings.Join(lines, "\n")
	if sampleText == "" {
		sampleText = "(none)"
	}
	return fmt.Sprintf("%s\n\nUser intent: %q\n\nSample emails:\n%s\n\nOutput JSON:", groupPrompt, intent, sampleText)
}

// InboxContext is the mailbox state shared with the assistant in Chat.
type InboxContext struct {
	Preview  []email.Email
	Selected *email.Email
}

func (ic InboxContext) block() string {
	var parts []string
	if len(ic.Preview) > 0 {
		preview := ic.Preview
		if len(preview) > maxContextEmails {
			preview = preview[:maxContextEmails]
		}
		blocks := make([]string, 0, len(preview))
		for i, e := range preview {
			blocks = append(blocks, fmt.Sprintf("[Email %d] From: %s\nSubject: %s\nDate: %s\nContent: %s",
				i+1, e.From, subjectOrDefault(e.Subject), formatDate(e.ReceivedAt), truncate(e.Body(), contextPreviewLimit)))
		}
		parts = append(parts, "--- USER'S EMAILS ---\n"+strings.Join(blocks, "\n\n")+"\n--- END EMAILS ---")
	}
	if sel := ic.Selected; sel != nil {
		parts = append(parts, fmt.Sprintf("--- CURRENTLY SELECTED EMAIL (focus on this) ---\nFrom: %s\nSubject: %s\nDate: %s\nBody: %s\n--- END ---",
			sel.From, sel.Subject, formatDate(sel.ReceivedAt), truncate(sel.Body(), contextSelectedLimit)))
	}
	return strings.Join(parts, "\n\n")
}

func (ic InboxContext) systemPrompt() string {
	if b := ic.block(); b != "" {
		return inboxSystemPrompt + "\n\n" + b
	}
	return inboxSystemPrompt
}

// stripCodeFences removes markdown fences some models wrap JSON in.
func stripCodeFences(s string) string {
	return strings.TrimSpace(codeFenceRe.ReplaceAllString(s, ""))
}

func subjectOrDefault(s string) string {
	if s == "" {
		return "(No Subject)"
	}
	return s
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(dateLayout)
}

func truncate(s string, limit int) string {
	r := []rune(s)
	if len(r) <= limit {
		return s
	}
	return string(r[:limit])
}
