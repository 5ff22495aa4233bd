package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joshsymonds/unclutter/internal/config"
	"github.com/joshsymonds/unclutter/internal/email"
	"github.com/joshsymonds/unclutter/internal/gmailctl"
	"github.com/joshsymonds/unclutter/internal/groups"
	"github.com/joshsymonds/unclutter/internal/llm"
	"github.com/joshsymonds/unclutter/internal/report"
	"github.com/joshsymonds/unclutter/internal/runtime"
	"github.com/joshsymonds/unclutter/internal/store"
)

const usage = `usage: unclutter-groups [-db path] <command> [flags]

commands:
  list                      list groups in sort order
  add -name N [rules]       create a group
  delete <id>               delete a group
  suggest -intent TEXT      ask the LLM for a group definition
  import-gmailctl           create groups from gmailctl filters
  show                      print stored emails grouped first-match
  explain <email-id>        list every group an email matches
  lint                      report empty, dead and shadowed groups
`

var errUsage = errors.New("invalid usage")

type app struct {
	base   config.Config
	store  *store.Store
	log    *slog.Logger
	stdout io.Writer
}

func main() {
	if err := run(os.Args[1:]); err != nil {
		if errors.Is(err, errUsage) {
			fmt.Fprint(os.Stderr, usage)
		}
		runtime.DefaultLogger().Error("unclutter-groups failed", "error", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	base, err := config.Load("")
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	fs := flag.NewFlagSet("unclutter-groups", flag.ContinueOnError)
	db := fs.String("db", base.DBPath, "SQLite database path")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}
	if fs.NArg() == 0 {
		return errUsage
	}
	base.DBPath = *db

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	st, err := store.Open(ctx, base.DBPath)
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	a := &app{base: base, store: st, log: base.Logger(), stdout: os.Stdout}
	cmd, rest := fs.Arg(0), fs.Args()[1:]
	switch cmd {
	case "list":
		return a.list(ctx)
	case "add":
		return a.add(ctx, rest)
	case "delete":
		return a.delete(ctx, rest)
	case "suggest":
		return a.suggest(ctx, rest)
	case "import-gmailctl":
		return a.importGmailctl(ctx, rest)
	case "show":
		return a.show(ctx, rest)
	case "explain":
		return a.explain(ctx, rest)
	case "lint":
		return a.lint(ctx, rest)
	default:
		return fmt.Errorf("%w: unknown command %q", errUsage, cmd)
	}
}

func (a *app) list(ctx context.Context) error {
	gs, err := a.store.ListGroups(ctx)
	if err != nil {
		return err
	}
	if len(gs) == 0 {
		fmt.Fprintln(a.stdout, "no groups")
		return nil
	}
	for _, g := range gs {
		fmt.Fprintf(a.stdout, "%3d  %-20s %s  keywords=%d domains=%d senders=%d\n",
			g.SortOrder, g.Name, g.ID, len(g.Keywords), len(g.Domains), len(g.Senders))
	}
	return nil
}

func (a *app) add(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("add", flag.ContinueOnError)
	name := fs.String("name", "", "group name")
	description := fs.String("description", "", "group description")
	color := fs.String("color", "", "display color, e.g. #3b82f6")
	keywords := fs.String("keywords", "", "comma separated keywords")
	domains := fs.String("domains", "", "comma separated sender domains")
	senders := fs.String("senders", "", "comma separated sender substrings")
	order := fs.Int("order", 0, "sort order (0 appends)")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}
	g, err := a.store.CreateGroup(ctx, groups.Group{
		Name:        *name,
		Description: *description,
		Color:       *color,
		Keywords:    splitList(*keywords),
		Domains:     splitList(*domains),
		Senders:     splitList(*senders),
		SortOrder:   *order,
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(a.stdout, "created %s (%s)\n", g.Name, g.ID)
	return nil
}

func (a *app) delete(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("%w: delete takes one group id", errUsage)
	}
	if err := a.store.DeleteGroup(ctx, args[0]); err != nil {
		return err
	}
	fmt.Fprintf(a.stdout, "deleted %s\n", args[0])
	return nil
}

func (a *app) suggest(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("suggest", flag.ContinueOnError)
	intent := fs.String("intent", "", "what the group should collect")
	samples := fs.Int("samples", 15, "recent emails shown to the model")
	save := fs.Bool("save", false, "create the suggested group")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}
	if strings.TrimSpace(*intent) == "" {
		return fmt.Errorf("%w: suggest requires -intent", errUsage)
	}
	client, err := llm.New(a.base.LLM(), a.log)
	if err != nil {
		return fmt.Errorf("create llm client: %w", err)
	}
	recent, err := a.store.ListEmails(ctx, store.ListOptions{Limit: *samples})
	if err != nil {
		return fmt.Errorf("load samples: %w", err)
	}
	g, err := client.SuggestGroup(ctx, *intent, recent)
	if err != nil {
		return err
	}
	if *save {
		if g, err = a.store.CreateGroup(ctx, g); err != nil {
			return err
		}
	}
	enc := json.NewEncoder(a.stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(g)
}

func (a *app) importGmailctl(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("import-gmailctl", flag.ContinueOnError)
	file := fs.String("file", "", "saved output of gmailctl compile --format=json")
	binary := fs.String("binary", "gmailctl", "gmailctl binary to invoke")
	cfgDir := fs.String("gmailctl-config", a.base.GmailConfigDir, "gmailctl config directory")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}
	var exporter gmailctl.Exporter = gmailctl.Runner{Binary: *binary, ConfigDir: *cfgDir}
	if *file != "" {
		path := *file
		exporter = gmailctl.FileExporter{Open: func() (io.ReadCloser, error) { return os.Open(path) }}
	}
	export, err := exporter.ExportFilters(ctx)
	if err != nil {
		return err
	}

	existing, err := a.store.ListGroups(ctx)
	if err != nil {
		return err
	}
	seen := map[string]bool{}
	for _, g := range existing {
		seen[strings.ToLower(g.Name)] = true
	}
	created := 0
	for _, g := range groups.FromGmailctl(export) {
		if seen[strings.ToLower(g.Name)] {
			a.log.Info("skip existing group", "name", g.Name)
			continue
		}
		if _, err := a.store.CreateGroup(ctx, g); err != nil {
			return fmt.Errorf("import %s: %w", g.Name, err)
		}
		seen[strings.ToLower(g.Name)] = true
		created++
	}
	fmt.Fprintf(a.stdout, "imported %d groups\n", created)
	return nil
}

func (a *app) show(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("show", flag.ContinueOnError)
	jsonOut := fs.String("json", "", "write JSON report to path")
	items := fs.Int("items", 20, "emails listed per group (0 lists all)")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}
	emails, gs, err := a.load(ctx)
	if err != nil {
		return err
	}
	rep := report.Build(report.Options{Title: "unclutter groups", ItemsPerSection: *items},
		emails, report.GroupSections(groups.Assign(emails, gs)))
	if err := report.PrintHuman(rep, a.stdout); err != nil {
		return err
	}
	if *jsonOut != "" {
		return report.WriteJSON(rep, *jsonOut)
	}
	return nil
}

func (a *app) explain(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("%w: explain takes one email id", errUsage)
	}
	e, err := a.store.GetEmail(ctx, args[0])
	if err != nil {
		return err
	}
	gs, err := a.store.ListGroups(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.stdout, "%s\n  from: %s\n", e.Subject, e.From)
	members := groups.MatchAll(e, gs)
	if len(members) == 0 {
		fmt.Fprintln(a.stdout, "  no group matches; shown under Unsorted")
		return nil
	}
	for i, m := range members {
		marker := " "
		if i == 0 {
			marker = "*"
		}
		fmt.Fprintf(a.stdout, "  %s %-20s %s\n", marker, m.Group.Name, m.Reason)
	}
	return nil
}

func (a *app) lint(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("lint", flag.ContinueOnError)
	failOn := fs.String("fail-on", "", "comma separated findings that fail the run (empty,dead,shadowed)")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}
	emails, gs, err := a.load(ctx)
	if err != nil {
		return err
	}
	findings := report.Lint(emails, gs)
	if _, err := io.WriteString(a.stdout, findings.HumanSummary()); err != nil {
		return fmt.Errorf("write summary: %w", err)
	}
	if findings.ShouldFail(report.ParseFailOn(*failOn)) {
		return fmt.Errorf("lint failures matched: %s", *failOn)
	}
	return nil
}

func (a *app) load(ctx context.Context) ([]email.Email, []groups.Group, error) {
	emails, err := a.store.ListEmails(ctx, store.ListOptions{})
	if err != nil {
		return nil, nil, fmt.Errorf("load emails: %w", err)
	}
	gs, err := a.store.ListGroups(ctx)
	if err != nil {
		return nil, nil, err
	}
	return emails, gs, nil
}

func splitList(input string) []string {
	if strings.TrimSpace(input) == "" {
		return nil
	}
	parts := strings.Split(input, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		out = append(out, part)
	}
	return out
}
