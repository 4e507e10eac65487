package bench

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Event-Matching-Platform/internal/matching"
	"github.com/Adithya-Monish-Kumar-K/Event-Matching-Platform/internal/workload"
	apperrors "github.com/Adithya-Monish-Kumar-K/Event-Matching-Platform/pkg/errors"
)

// ErrUnsupported marks a measuring point whose parameters the algorithm
// rejects at construction, such as MAEMA with one predicate per
// subscription. It also matches apperrors.ErrInvalidConfig.
var ErrUnsupported = errors.New("algorithm does not support configuration")

// InsertionResult holds one entry per run: the time to insert all but the
// last subscription, the heap growth over the run in bytes, and the time
// of the last insert. Times are in nanoseconds.
type InsertionResult struct {
	Precomputation []int64
	Memory         []int64
	Insertion      []int64
}

// MatchingResult holds one entry per event.
type MatchingResult struct {
	Times        []int64
	Matched      [][]int
	Matchability []float64
}

type Harness struct {
	logger *slog.Logger
}

func NewHarness() *Harness {
	return &Harness{logger: slog.Default().With("component", "bench-harness")}
}

// EvaluateInsertion builds a fresh matcher NbrEvents times. Each run draws
// new subscriptions from seed Seed+run+1.
func (h *Harness) EvaluateInsertion(ctx context.Context, cfg Config, algo matching.Algorithm) (*InsertionResult, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	runs := cfg.NbrEvents
	res := &InsertionResult{
		Precomputation: make([]int64, runs),
		Memory:         make([]int64, runs),
		Insertion:      make([]int64, runs),
	}
	var mem runtime.MemStats
	for run := 0; run < runs; run++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		runtime.GC()
		runtime.ReadMemStats(&mem)
		before := int64(mem.HeapAlloc)

		subs, err := workload.New(cfg.Seed+int64(run)+1).Subscriptions(
			cfg.NbrSubs, cfg.TotalAttributes, cfg.SubPredicates, cfg.ValueDomain, cfg.Width)
		if err != nil {
			return nil, err
		}
		m, err := newMatcher(cfg, algo)
		if err != nil {
			return nil, err
		}

		start := time.Now()
		for _, sub := range subs[:len(subs)-1] {
			if err := m.Insert(sub); err != nil {
				return nil, fmt.Errorf("run %d: %w", run, err)
			}
		}
		beforeLast := time.Now()
		if err := m.Insert(subs[len(subs)-1]); err != nil {
			return nil, fmt.Errorf("run %d: %w", run, err)
		}
		afterLast := time.Now()

		runtime.ReadMemStats(&mem)
		res.Memory[run] = int64(mem.HeapAlloc) - before
		res.Precomputation[run] = beforeLast.Sub(start).Nanoseconds()
		res.Insertion[run] = afterLast.Sub(beforeLast).Nanoseconds()
		runtime.KeepAlive(m)
	}
	h.logger.Debug("insertion evaluated", "algorithm", algo, "runs", runs, "subs", cfg.NbrSubs)
	return res, nil
}

// EvaluateMatching generates events and then subscriptions from seed Seed,
// so the events stay fixed while the subscription shape varies across
// measuring points. Every event is timed individually.
func (h *Harness) EvaluateMatching(ctx context.Context, cfg Config, algo matching.Algorithm) (*MatchingResult, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	gen := workload.New(cfg.Seed)
	events, err := gen.Events(cfg.NbrEvents, cfg.TotalAttributes, cfg.EventAttributes, cfg.ValueDomain)
	if err != nil {
		return nil, err
	}
	subs, err := gen.Subscriptions(cfg.NbrSubs, cfg.TotalAttributes, cfg.SubPredicates, cfg.ValueDomain, cfg.Width)
	if err != nil {
		return nil, err
	}
	m, err := newMatcher(cfg, algo)
	if err != nil {
		return nil, err
	}
	for _, sub := range subs {
		if err := m.Insert(sub); err != nil {
			return nil, err
		}
	}

	res := &MatchingResult{
		Times:        make([]int64, len(events)),
		Matched:      make([][]int, len(events)),
		Matchability: make([]float64, len(events)),
	}
	for i, ev := range events {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		start := time.Now()
		matched, err := m.Match(ev)
		elapsed := time.Since(start)
		if err != nil {
			return nil, fmt.Errorf("event %d: %w", i, err)
		}
		res.Times[i] = elapsed.Nanoseconds()
		res.Matched[i] = matching.IDs(matched)
		res.Matchability[i] = float64(len(matched)) / float64(len(subs))
	}
	h.logger.Debug("matching evaluated", "algorithm", algo, "events", len(events), "subs", len(subs))
	return res, nil
}

func newMatcher(cfg Config, algo matching.Algorithm) (matching.Matcher, error) {
	m, err := matching.New(cfg.Params(algo))
	if errors.Is(err, apperrors.ErrInvalidConfig) {
		return nil, fmt.Errorf("%w: %w", ErrUnsupported, err)
	}
	return m, err
}
