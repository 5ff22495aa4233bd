package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joshsymonds/unclutter/internal/config"
	"github.com/joshsymonds/unclutter/internal/llm"
	"github.com/joshsymonds/unclutter/internal/rate"
	"github.com/joshsymonds/unclutter/internal/runtime"
	"github.com/joshsymonds/unclutter/internal/store"
	"github.com/joshsymonds/unclutter/internal/syncer"
)

type syncConfig struct {
	base       config.Config
	query      string
	max        int
	workers    int
	rps        int
	categorize bool
	authorize  bool
}

func main() {
	cfg, err := parseFlags()
	if err == nil {
		err = run(cfg)
	}
	if err != nil {
		runtime.DefaultLogger().Error("unclutter-sync failed", "error", err)
		os.Exit(1)
	}
}

func parseFlags() (syncConfig, error) {
	base, err := config.Load("")
	if err != nil {
		return syncConfig{}, fmt.Errorf("load config: %w", err)
	}
	db := flag.String("db", base.DBPath, "SQLite database path")
	cfgDir := flag.String("config", base.GmailConfigDir, "gmailctl auth directory")
	query := flag.String("query", base.SyncQuery, "Gmail search query")
	maxMessages := flag.Int("max", base.SyncMax, "maximum messages to fetch")
	workers := flag.Int("workers", base.Workers, "concurrent message fetches")
	rps := flag.Int("rps", base.RPS, "max requests per second (0 disables)")
	categorize := flag.Bool("categorize", false, "categorize uncategorized emails with the LLM")
	authorize := flag.Bool("authorize", false, "run the OAuth consent flow and save the token")
	flag.Parse()

	base.DBPath = *db
	base.GmailConfigDir = *cfgDir
	return syncConfig{
		base:       base,
		query:      *query,
		max:        *maxMessages,
		workers:    *workers,
		rps:        *rps,
		categorize: *categorize,
		authorize:  *authorize,
	}, nil
}

func run(cfg syncConfig) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	logger := cfg.base.Logger()
	auth := cfg.base.Auth(runtime.ScopeReadonly)
	if cfg.authorize {
		if err := runtime.Authorize(ctx, auth, os.Stdin, os.Stdout); err != nil {
			return fmt.Errorf("authorize: %w", err)
		}
		logger.Info("token saved", "path", auth.TokenFile)
		return nil
	}

	client, err := runtime.NewGmailClient(ctx, auth)
	if err != nil {
		return fmt.Errorf("create gmail client: %w", err)
	}

	st, err := store.Open(ctx, cfg.base.DBPath)
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	var limiter rate.Limiter
	if cfg.rps > 0 {
		limiter = rate.NewTokenBucket(cfg.rps)
	}

	svc := syncer.NewService(client, st, limiter, logger)
	if cfg.categorize {
		llmClient, llmErr := llm.New(cfg.base.LLM(), logger)
		if llmErr != nil {
			return fmt.Errorf("create llm client: %w", llmErr)
		}
		svc.LLM = llmClient
	}

	res, err := svc.Run(ctx, syncer.Options{
		Query:      cfg.query,
		Max:        cfg.max,
		Workers:    cfg.workers,
		Categorize: cfg.categorize,
	})
	if err != nil {
		return fmt.Errorf("run sync: %w", err)
	}
	fmt.Fprintf(os.Stdout, "listed %d, stored %d, failed %d, categorized %d\n",
		res.Listed, res.Stored, res.Failed, res.Categorized)
	if res.DefaultGroups > 0 {
		fmt.Fprintf(os.Stdout, "created %d default groups\n", res.DefaultGroups)
	}
	return nil
}
