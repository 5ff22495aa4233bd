// Package syncer pulls recent Gmail messages, normalizes them and stores them.
package syncer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/joshsymonds/unclutter/internal/email"
	gc "github.com/joshsymonds/unclutter/internal/gmail"
	"github.com/joshsymonds/unclutter/internal/normalize"
	"github.com/joshsymonds/unclutter/internal/rate"
	"github.com/joshsymonds/unclutter/internal/store"
)

const (
	DefaultQuery   = "in:inbox -in:draft"
	DefaultMax     = 50
	DefaultWorkers = 4

	// maxPageSize is the Gmail messages.list ceiling.
	maxPageSize = 500
)

// ErrNoCategorizer is returned when categorisation is requested without an
// LLM client.
var ErrNoCategorizer = errors.New("categorize requested but no llm client configured")

// Store is the persistence the sync pass needs.
type Store interface {
	SaveEmail(ctx context.Context, e email.Email) error
	EnsureDefaultGroups(ctx context.Context) (int, error)
	ListEmails(ctx context.Context, opts store.ListOptions) ([]email.Email, error)
	UpdateCategory(ctx context.Context, id string, c email.Category) error
}

// Categorizer assigns a triage category to an email.
type Categorizer interface {
	Categorize(ctx context.Context, e email.Email) (email.Category, error)
}

type Options struct {
	Query      string
	Max        int
	Workers    int
	Categorize bool
}

type Result struct {
	Listed        int
	Stored        int
	Failed        int
	Categorized   int
	DefaultGroups int
}

type Service struct {
	Client   gc.Client
	Store    Store
	LLM      Categorizer
	Pipeline *normalize.Pipeline
	Log      *slog.Logger
	Rate     rate.Limiter
}

func NewService(client gc.Client, st Store, limiter rate.Limiter, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(os.Stderr, nil))
	}
	if limiter == nil {
		limiter = rate.Unlimited{}
	}
	return &Service{Client: client, Store: st, Pipeline: normalize.New(), Log: logger, Rate: limiter}
}

// Run performs one sync pass. Messages that fail to fetch are counted and
// skipped; storage failures abort the pass.
func (s *Service) Run(ctx context.Context, opts Options) (Result, error) {
	opts = withDefaults(opts)
	var res Result
	if opts.Categorize && s.LLM == nil {
		return res, ErrNoCategorizer
	}

	created, err := s.Store.EnsureDefaultGroups(ctx)
	if err != nil {
		return res, fmt.Errorf("ensure default groups: %w", err)
	}
	res.DefaultGroups = created
	if created > 0 {
		s.Log.Info("created default groups", "count", created)
	}

	ids, err := s.listIDs(ctx, opts)
	if err != nil {
		return res, err
	}
	res.Listed = len(ids)

	var stored, failed atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.Workers)
	for _, id := range ids {
		g.Go(func() error {
			if err := s.Rate.Wait(gctx); err != nil {
				return err
			}
			msg, err := s.Client.GetMessage(gctx, id)
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				failed.Add(1)
				s.Log.Warn("fetch failed", "id", id, "error", err)
				return nil
			}
			e := s.Pipeline.Normalize(msg)
			if err := s.Store.SaveEmail(gctx, e); err != nil {
				return fmt.Errorf("store %s: %w", id, err)
			}
			stored.Add(1)
			if e.BodySource.Degraded() {
				s.Log.Debug("degraded body", "id", id, "source", e.BodySource)
			}
			return nil
		})
	}
	err = g.Wait()
	res.Stored = int(stored.Load())
	res.Failed = int(failed.Load())
	if err != nil {
		return res, err
	}
	s.Log.Info("synced", "listed", res.Listed, "stored", res.Stored, "failed", res.Failed)

	if opts.Categorize {
		n, err := s.categorize(ctx, opts.Max)
		res.Categorized = n
		if err != nil {
			return res, err
		}
	}
	return res, nil
}

func (s *Service) listIDs(ctx context.Context, opts Options) ([]gc.MessageID, error) {
	var ids []gc.MessageID
	token := ""
	for len(ids) < opts.Max {
		if err := s.Rate.Wait(ctx); err != nil {
			return nil, err
		}
		page, err := s.Client.List(ctx, gc.Query{Raw: opts.Query}, token, min(opts.Max-len(ids), maxPageSize))
		if err != nil {
			return nil, fmt.Errorf("list %q: %w", opts.Query, err)
		}
		ids = append(ids, page.IDs...)
		if page.NextPageToken == "" || len(page.IDs) == 0 {
			break
		}
		token = page.NextPageToken
	}
	if len(ids) > opts.Max {
		ids = ids[:opts.Max]
	}
	return ids, nil
}

// categorize labels up to limit stored emails that have no category yet.
// Individual LLM failures are logged and skipped.
func (s *Service) categorize(ctx context.Context, limit int) (int, error) {
	pending, err := s.Store.ListEmails(ctx, store.ListOptions{Uncategorized: true, Limit: limit})
	if err != nil {
		return 0, fmt.Errorf("list uncategorized: %w", err)
	}
	done := 0
	for _, e := range pending {
		if err := ctx.Err(); err != nil {
			return done, err
		}
		cat, err := s.LLM.Categorize(ctx, e)
		if err != nil {
			s.Log.Warn("categorize failed", "id", e.ID, "error", err)
			continue
		}
		if err := s.Store.UpdateCategory(ctx, e.ID, cat); err != nil {
			return done, fmt.Errorf("store category of %s: %w", e.ID, err)
		}
		done++
	}
	s.Log.Info("categorized", "count", done, "pending", len(pending))
	return done, nil
}

func withDefaults(o Options) Options {
	if o.Query == "" {
		o.Query = DefaultQuery
	}
	if o.Max <= 0 {
		o.Max = DefaultMax
	}
	if o.Workers <= 0 {
		o.Workers = DefaultWorkers
	}
	return o
}
