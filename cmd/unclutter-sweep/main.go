package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joshsymonds/unclutter/internal/config"
	"github.com/joshsymonds/unclutter/internal/rate"
	"github.com/joshsymonds/unclutter/internal/report"
	"github.com/joshsymonds/unclutter/internal/runtime"
	"github.com/joshsymonds/unclutter/internal/store"
	"github.com/joshsymonds/unclutter/internal/sweep"
)

type sweepConfig struct {
	base        config.Config
	query       string
	jsonOut     string
	topN        int
	items       int
	limit       int
	apply       bool
	dryRun      bool
	labelPrefix string
	rps         int
}

func main() {
	cfg, err := parseSweepFlags()
	if err == nil {
		err = run(cfg)
	}
	if err != nil {
		runtime.DefaultLogger().Error("unclutter-sweep failed", "error", err)
		os.Exit(1)
	}
}

func parseSweepFlags() (sweepConfig, error) {
	base, err := config.Load("")
	if err != nil {
		return sweepConfig{}, fmt.Errorf("load config: %w", err)
	}
	db := flag.String("db", base.DBPath, "SQLite database path")
	cfgDir := flag.String("config", base.GmailConfigDir, "gmailctl auth directory")
	query := flag.String("q", "", "only sort emails containing this text")
	jsonOut := flag.String("json", "", "write JSON report to path")
	topN := flag.Int("top", 10, "number of top sender domains to display")
	items := flag.Int("items", 20, "emails listed per bucket (0 lists all)")
	limit := flag.Int("limit", 0, "newest stored emails to sort (0 sorts all)")
	apply := flag.Bool("apply", false, "mirror the buckets onto Gmail labels")
	dryRun := flag.Bool("dry-run", false, "with -apply, log only; skip modifications")
	labelPrefix := flag.String("label-prefix", base.LabelPrefix, "prefix for the Gmail label names")
	rps := flag.Int("rps", base.RPS, "max requests per second (0 disables)")
	flag.Parse()

	base.DBPath = *db
	base.GmailConfigDir = *cfgDir
	return sweepConfig{
		base:        base,
		query:       *query,
		jsonOut:     *jsonOut,
		topN:        *topN,
		items:       *items,
		limit:       *limit,
		apply:       *apply,
		dryRun:      *dryRun,
		labelPrefix: *labelPrefix,
		rps:         *rps,
	}, nil
}

func run(cfg sweepConfig) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	logger := cfg.base.Logger()
	st, err := store.Open(ctx, cfg.base.DBPath)
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	emails, err := st.ListEmails(ctx, store.ListOptions{Limit: cfg.limit})
	if err != nil {
		return fmt.Errorf("load emails: %w", err)
	}
	buckets := sweep.DefaultRuleset().Sort(emails, cfg.query)

	rep := report.Build(report.Options{
		Title:           "unclutter sweep",
		Query:           cfg.query,
		TopN:            cfg.topN,
		ItemsPerSection: cfg.items,
	}, emails, report.SweepSections(buckets))
	if printErr := report.PrintHuman(rep, os.Stdout); printErr != nil {
		return fmt.Errorf("print report: %w", printErr)
	}
	if cfg.jsonOut != "" {
		if writeErr := report.WriteJSON(rep, cfg.jsonOut); writeErr != nil {
			return fmt.Errorf("write json: %w", writeErr)
		}
	}
	if !cfg.apply {
		return nil
	}

	client, err := runtime.NewGmailClient(ctx, cfg.base.Auth(runtime.ScopeModify))
	if err != nil {
		return fmt.Errorf("create gmail client: %w", err)
	}
	var limiter rate.Limiter
	if cfg.rps > 0 {
		limiter = rate.NewTokenBucket(cfg.rps)
	}
	svc := sweep.NewService(client, limiter, logger)
	res, err := svc.Apply(ctx, buckets, sweep.ApplySpec{LabelPrefix: cfg.labelPrefix, DryRun: cfg.dryRun})
	if err != nil {
		return fmt.Errorf("apply labels: %w", err)
	}
	verb := "labelled"
	if res.DryRun {
		verb = "would label"
	}
	for _, label := range []sweep.Label{sweep.LabelUniversity, sweep.LabelActionItems, sweep.LabelPromotions} {
		fmt.Fprintf(os.Stdout, "%s %d as %s%s\n", verb, res.Counts[label], cfg.labelPrefix, label)
	}
	return nil
}
