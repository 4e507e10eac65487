package bench

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Event-Matching-Platform/internal/matching"
	"github.com/Adithya-Monish-Kumar-K/Event-Matching-Platform/internal/report"
	apperrors "github.com/Adithya-Monish-Kumar-K/Event-Matching-Platform/pkg/errors"
)

// Experiment varies one parameter of a base config from Start to End
// inclusive. Apply sets the parameter for a measuring point.
type Experiment struct {
	Name  string
	Start int
	End   int
	Step  int
	Apply func(cfg *Config, v int)
}

func VarySubscriptions(start, end, step int) Experiment {
	return Experiment{Name: "time_subs", Start: start, End: end, Step: step,
		Apply: func(cfg *Config, v int) { cfg.NbrSubs = v }}
}

// VaryWidth sets the width to v tenths.
func VaryWidth(start, end, step int) Experiment {
	return Experiment{Name: "time_width", Start: start, End: end, Step: step,
		Apply: func(cfg *Config, v int) { cfg.Width = float64(v) / 10 }}
}

func VaryEventAttributes(start, end, step int) Experiment {
	return Experiment{Name: "time_event_attribute", Start: start, End: end, Step: step,
		Apply: func(cfg *Config, v int) { cfg.EventAttributes = v }}
}

func VarySubPredicates(start, end, step int) Experiment {
	return Experiment{Name: "time_sub_predicate", Start: start, End: end, Step: step,
		Apply: func(cfg *Config, v int) { cfg.SubPredicates = v }}
}

// DefaultExperiments is the quick sweep run when no experiment is named.
func DefaultExperiments() []Experiment {
	return []Experiment{VarySubscriptions(200, 400, 200)}
}

// FullExperiments covers every parameter over the ranges used for the
// published comparisons. It takes hours on the default preset.
func FullExperiments() []Experiment {
	return []Experiment{
		VarySubscriptions(5000, 250000, 15000),
		VarySubscriptions(250000, 2500000, 250000),
		VaryEventAttributes(1, 101, 10),
		VaryWidth(1, 9, 1),
		VarySubPredicates(1, 51, 5),
	}
}

// ExperimentByName returns the experiment with name over [start,end].
func ExperimentByName(name string, start, end, step int) (Experiment, error) {
	switch name {
	case "time_subs":
		return VarySubscriptions(start, end, step), nil
	case "time_width":
		return VaryWidth(start, end, step), nil
	case "time_event_attribute":
		return VaryEventAttributes(start, end, step), nil
	case "time_sub_predicate":
		return VarySubPredicates(start, end, step), nil
	default:
		return Experiment{}, apperrors.Configf("unknown experiment %q", name)
	}
}

// Points lists the parameter values the experiment visits.
func (e Experiment) Points() []int {
	if e.Step <= 0 {
		return nil
	}
	var pts []int
	for v := e.Start; v <= e.End; v += e.Step {
		pts = append(pts, v)
	}
	return pts
}

// Suite runs experiments for a list of algorithms and writes every
// measurement to a report sink.
type Suite struct {
	harness *Harness
	sink    report.Sink
	logger  *slog.Logger
}

func NewSuite(harness *Harness, sink report.Sink) *Suite {
	return &Suite{
		harness: harness,
		sink:    sink,
		logger:  slog.Default().With("component", "bench-suite"),
	}
}

// Run executes each experiment for each algorithm, starting every
// experiment from base. A point the algorithm cannot be built for is
// logged and skipped; nothing is written for it.
func (s *Suite) Run(ctx context.Context, base Config, algos []matching.Algorithm, experiments []Experiment) error {
	for _, algo := range algos {
		s.logger.Info("running algorithm", "algorithm", algo)
		for _, exp := range experiments {
			if exp.Step <= 0 {
				return apperrors.Configf("experiment %s: step must be positive, got %d", exp.Name, exp.Step)
			}
			for _, v := range exp.Points() {
				if err := ctx.Err(); err != nil {
					return err
				}
				cfg := base
				exp.Apply(&cfg, v)
				start := time.Now()
				err := s.Evaluate(ctx, exp.Name, cfg, algo)
				if errors.Is(err, ErrUnsupported) {
					s.logger.Warn("skipping measuring point",
						"algorithm", algo,
						"experiment", exp.Name,
						"value", v,
						"error", err,
					)
					continue
				}
				if err != nil {
					return fmt.Errorf("%s %s at %d: %w", algo, exp.Name, v, err)
				}
				s.logger.Info("measuring point done",
					"algorithm", algo,
					"experiment", exp.Name,
					"value", v,
					"duration_ms", time.Since(start).Milliseconds(),
				)
			}
		}
	}
	return nil
}

// Evaluate runs both evaluations for one measuring point and writes the
// four report files. Only matching_times.csv carries the MATCHABILITY
// column: matchability is a property of the match run, and the
// precomputation, memory and insertion files are produced from fresh
// subscription sets that no event was matched against.
func (s *Suite) Evaluate(ctx context.Context, experiment string, cfg Config, algo matching.Algorithm) error {
	matched, err := s.harness.EvaluateMatching(ctx, cfg, algo)
	if err != nil {
		return fmt.Errorf("evaluating matching: %w", err)
	}
	inserted, err := s.harness.EvaluateInsertion(ctx, cfg, algo)
	if err != nil {
		return fmt.Errorf("evaluating insertion: %w", err)
	}

	values := cfg.Values()
	plain := report.Header(ConfigColumns(), false)
	writes := []struct {
		file   string
		header []string
		rows   []report.Row
	}{
		{report.FilePrecomputation, plain, rows(experiment, algo, inserted.Precomputation, values, nil)},
		{report.FileMemory, plain, rows(experiment, algo, inserted.Memory, values, nil)},
		{report.FileInsertion, plain, rows(experiment, algo, inserted.Insertion, values, nil)},
		{report.FileMatching, report.Header(ConfigColumns(), true), rows(experiment, algo, matched.Times, values, matched.Matchability)},
	}
	for _, w := range writes {
		if err := s.sink.Write(ctx, w.file, w.header, w.rows); err != nil {
			return fmt.Errorf("writing %s: %w", w.file, err)
		}
	}
	return nil
}

func rows(experiment string, algo matching.Algorithm, values []int64, config []string, matchability []float64) []report.Row {
	out := make([]report.Row, len(values))
	for i, v := range values {
		out[i] = report.Row{
			Experiment: experiment,
			Algorithm:  string(algo),
			Value:      v,
			Config:     config,
		}
		if matchability != nil {
			out[i].Matchability = &matchability[i]
		}
	}
	return out
}
