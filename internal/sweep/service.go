// internal/sweep/service.go
package sweep

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	gc "github.com/joshsymonds/unclutter/internal/gmail"
	"github.com/joshsymonds/unclutter/internal/rate"
)

// batchLimit is the Gmail batchModify ceiling.
const batchLimit = 1000

// appliedLabels are mirrored to Gmail; Unsorted never is.
var appliedLabels = []Label{LabelUniversity, LabelActionItems, LabelPromotions}

type ApplySpec struct {
	LabelPrefix string // prepended to each Gmail label name, e.g. "unclutter/"
	DryRun      bool
}

// ApplyResult counts messages per label that were (or would be) labelled.
type ApplyResult struct {
	Counts map[Label]int
	DryRun bool
}

type Service struct {
	Client gc.Client
	Log    *slog.Logger
	Rate   rate.Limiter
}

func NewService(client gc.Client, limiter rate.Limiter, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(os.Stderr, nil))
	}
	if limiter == nil {
		limiter = rate.Unlimited{}
	}
	return &Service{Client: client, Log: logger, Rate: limiter}
}

// Apply adds the Gmail label of every sweep label an email carries. Emails
// that already have the label are skipped.
func (s *Service) Apply(ctx context.Context, b Buckets, spec ApplySpec) (ApplyResult, error) {
	byLabel := collect(b)
	res := ApplyResult{Counts: map[Label]int{}, DryRun: spec.DryRun}

	for _, label := range appliedLabels {
		items := byLabel[label]
		if len(items) == 0 {
			continue
		}
		name := spec.LabelPrefix + string(label)
		if spec.DryRun {
			res.Counts[label] = len(items)
			s.Log.Info("dry-run", "label", name, "count", len(items))
			continue
		}

		if err := s.Rate.Wait(ctx); err != nil {
			return res, err
		}
		lid, err := s.Client.EnsureLabel(ctx, name)
		if err != nil {
			return res, fmt.Errorf("ensure label %q: %w", name, err)
		}

		ids := make([]gc.MessageID, 0, len(items))
		for _, it := range items {
			if it.ID == "" {
				s.Log.Warn("skip message without id", "label", name, "subject", it.Subject)
				continue
			}
			if !it.HasLabel(string(lid)) {
				ids = append(ids, gc.MessageID(it.ID))
			}
		}
		if err := s.modify(ctx, ids, gc.ModifyOps{AddLabels: []gc.LabelID{lid}}); err != nil {
			return res, fmt.Errorf("label %q: %w", name, err)
		}
		res.Counts[label] = len(ids)
		s.Log.Info("labelled", "label", name, "count", len(ids), "already", len(items)-len(ids))
	}
	return res, nil
}

func (s *Service) modify(ctx context.Context, ids []gc.MessageID, ops gc.ModifyOps) error {
	for i := 0; i < len(ids); i += batchLimit {
		j := min(i+batchLimit, len(ids))
		if err := s.Rate.Wait(ctx); err != nil {
			return err
		}
		if err := s.Client.BatchModify(ctx, ids[i:j], ops); err != nil {
			return err
		}
	}
	return nil
}

// collect gathers emails per label across buckets, once per email. Each
// email is taken from the first bucket it belongs to, in ActionItems,
// University, Promotions order, so the walk does not depend on IDs.
func collect(b Buckets) map[Label][]Labeled {
	out := map[Label][]Labeled{}
	add := func(l Labeled) {
		for _, label := range l.Labels {
			out[label] = append(out[label], l)
		}
	}
	for _, l := range b.ActionItems {
		add(l)
	}
	for _, l := range b.University {
		if !l.Has(LabelActionItems) {
			add(l)
		}
	}
	for _, l := range b.Promotions {
		if !l.Has(LabelActionItems) && !l.Has(LabelUniversity) {
			add(l)
		}
	}
	return out
}
