package bench

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/Adithya-Monish-Kumar-K/Event-Matching-Platform/internal/matching"
	"github.com/Adithya-Monish-Kumar-K/Event-Matching-Platform/internal/workload"
)

// Mismatch describes one event on which a matcher disagreed with the
// linear oracle.
type Mismatch struct {
	Event   int   `json:"event"`
	Missing []int `json:"missing"`
	Extra   []int `json:"extra"`
}

// VerifyResult summarizes one algorithm's agreement with the oracle.
type VerifyResult struct {
	Algorithm     matching.Algorithm `json:"algorithm"`
	Events        int                `json:"events"`
	Mismatches    int                `json:"mismatches"`
	TotalMatched  int                `json:"total_matched"`
	FirstMismatch *Mismatch          `json:"first_mismatch,omitempty"`
}

func (r VerifyResult) OK() bool { return r.Mismatches == 0 }

// Verify builds every algorithm on the same workload and compares each
// event's match set with the linear scan. Algorithms run concurrently; the
// shared workload is only read.
func Verify(ctx context.Context, cfg Config, algos []matching.Algorithm) ([]VerifyResult, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	log := slog.Default().With("component", "bench-verify")

	gen := workload.New(cfg.Seed)
	events, err := gen.Events(cfg.NbrEvents, cfg.TotalAttributes, cfg.EventAttributes, cfg.ValueDomain)
	if err != nil {
		return nil, err
	}
	subs, err := gen.Subscriptions(cfg.NbrSubs, cfg.TotalAttributes, cfg.SubPredicates, cfg.ValueDomain, cfg.Width)
	if err != nil {
		return nil, err
	}

	oracle, err := matchAll(ctx, cfg.Params(matching.AlgorithmLinear), subs, events)
	if err != nil {
		return nil, fmt.Errorf("oracle: %w", err)
	}

	results := make([]VerifyResult, len(algos))
	g, gctx := errgroup.WithContext(ctx)
	for i, algo := range algos {
		g.Go(func() error {
			got, err := matchAll(gctx, cfg.Params(algo), subs, events)
			if err != nil {
				return fmt.Errorf("%s: %w", algo, err)
			}
			res := VerifyResult{Algorithm: algo, Events: len(events)}
			for j := range events {
				res.TotalMatched += got[j].Len()
				if got[j].Equal(oracle[j]) {
					continue
				}
				res.Mismatches++
				if res.FirstMismatch == nil {
					res.FirstMismatch = &Mismatch{
						Event:   j,
						Missing: oracle[j].Difference(got[j]),
						Extra:   got[j].Difference(oracle[j]),
					}
				}
			}
			results[i] = res
			log.Info("algorithm verified",
				"algorithm", algo,
				"events", res.Events,
				"mismatches", res.Mismatches,
			)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func matchAll(ctx context.Context, p matching.Params, subs []*matching.Subscription, events []matching.Event) ([]matching.IDSet, error) {
	m, err := matching.New(p)
	if err != nil {
		return nil, err
	}
	for _, sub := range subs {
		if err := m.Insert(sub); err != nil {
			return nil, err
		}
	}
	sets := make([]matching.IDSet, len(events))
	for i, ev := range events {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		matched, err := m.Match(ev)
		if err != nil {
			return nil, fmt.Errorf("event %d: %w", i, err)
		}
		sets[i] = matching.NewIDSet(matched)
	}
	return sets, nil
}
