package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joshsymonds/unclutter/internal/config"
	"github.com/joshsymonds/unclutter/internal/email"
	"github.com/joshsymonds/unclutter/internal/llm"
	"github.com/joshsymonds/unclutter/internal/runtime"
	"github.com/joshsymonds/unclutter/internal/store"
)

const usage = `usage: unclutter-assist [-db path] <command> [args]

commands:
  summarize <email-id>   summarize one email and store the summary
  thread <email-id>      summarize the thread the email belongs to
  reply <email-id>       draft a reply to the thread
  chat [-select id]      ask questions about the inbox, one line per turn
`

var errUsage = errors.New("invalid usage")

type assistant struct {
	store  *store.Store
	llm    *llm.Client
	stdin  io.Reader
	stdout io.Writer
}

func main() {
	if err := run(os.Args[1:]); err != nil {
		if errors.Is(err, errUsage) {
			fmt.Fprint(os.Stderr, usage)
		}
		runtime.DefaultLogger().Error("unclutter-assist failed", "error", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	base, err := config.Load("")
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	fs := flag.NewFlagSet("unclutter-assist", flag.ContinueOnError)
	db := fs.String("db", base.DBPath, "SQLite database path")
	if err := fs.Parse(args); err != nil || fs.NArg() == 0 {
		return errUsage
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	logger := base.Logger()
	client, err := llm.New(base.LLM(), logger)
	if err != nil {
		return fmt.Errorf("create llm client: %w", err)
	}
	st, err := store.Open(ctx, *db)
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	a := &assistant{store: st, llm: client, stdin: os.Stdin, stdout: os.Stdout}
	cmd, rest := fs.Arg(0), fs.Args()[1:]
	if cmd == "chat" {
		return a.chat(ctx, rest)
	}
	if len(rest) != 1 {
		return fmt.Errorf("%w: %s takes one email id", errUsage, cmd)
	}
	switch cmd {
	case "summarize":
		return a.summarize(ctx, rest[0])
	case "thread":
		return a.thread(ctx, rest[0])
	case "reply":
		return a.reply(ctx, rest[0])
	default:
		return fmt.Errorf("%w: unknown command %q", errUsage, cmd)
	}
}

func (a *assistant) summarize(ctx context.Context, id string) error {
	e, err := a.store.GetEmail(ctx, id)
	if err != nil {
		return err
	}
	summary, err := a.llm.SummarizeEmail(ctx, e.Subject, e.Body())
	if err != nil {
		return err
	}
	if err := a.store.UpdateSummary(ctx, id, summary); err != nil {
		return err
	}
	fmt.Fprintln(a.stdout, summary)
	return nil
}

func (a *assistant) thread(ctx context.Context, id string) error {
	msgs, err := a.threadOf(ctx, id)
	if err != nil {
		return err
	}
	summary, err := a.llm.SummarizeThread(ctx, msgs)
	if err != nil {
		return err
	}
	fmt.Fprintln(a.stdout, summary)
	return nil
}

func (a *assistant) reply(ctx context.Context, id string) error {
	msgs, err := a.threadOf(ctx, id)
	if err != nil {
		return err
	}
	draft, err := a.llm.SuggestReply(ctx, msgs)
	if err != nil {
		return err
	}
	fmt.Fprintln(a.stdout, draft)
	return nil
}

func (a *assistant) threadOf(ctx context.Context, id string) ([]email.Email, error) {
	e, err := a.store.GetEmail(ctx, id)
	if err != nil {
		return nil, err
	}
	msgs, err := a.store.ListThread(ctx, e.ThreadID)
	if err != nil {
		return nil, err
	}
	if len(msgs) == 0 {
		msgs = []email.Email{e}
	}
	return msgs, nil
}

func (a *assistant) chat(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("chat", flag.ContinueOnError)
	selected := fs.String("select", "", "email id the conversation is about")
	preview := fs.Int("preview", 20, "recent emails shared with the assistant")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}

	var inbox llm.InboxContext
	recent, err := a.store.ListEmails(ctx, store.ListOptions{Limit: *preview})
	if err != nil {
		return fmt.Errorf("load inbox: %w", err)
	}
	inbox.Preview = recent
	if *selected != "" {
		e, err := a.store.GetEmail(ctx, *selected)
		if err != nil {
			return err
		}
		inbox.Selected = &e
	}

	var history []llm.Turn
	scanner := bufio.NewScanner(a.stdin)
	fmt.Fprint(a.stdout, "> ")
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			fmt.Fprint(a.stdout, "> ")
			continue
		}
		answer, err := a.llm.Chat(ctx, history, line, inbox)
		if err != nil {
			return err
		}
		fmt.Fprintf(a.stdout, "%s\n> ", answer)
		history = append(history,
			llm.Turn{Role: llm.RoleUser, Text: line},
			llm.Turn{Role: llm.RoleAssistant, Text: answer})
	}
	fmt.Fprintln(a.stdout)
	return scanner.Err()
}
