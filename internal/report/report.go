// Package report writes benchmark measurements as semicolon-separated rows,
// one file per measured quantity, to a directory and optionally to
// PostgreSQL.
package report

import (
	"context"
	"errors"
	"strconv"
)

// Report files produced by the benchmark harness.
const (
	FilePrecomputation = "precomputation_times.csv"
	FileMemory         = "memory_consumption.csv"
	FileInsertion      = "insertion_times.csv"
	FileMatching       = "matching_times.csv"
)

// Row is one measurement. Config holds the benchmark parameters in the order
// of the header's config columns. Matchability is set on matching rows only.
type Row struct {
	Experiment   string
	Algorithm    string
	Value        int64
	Config       []string
	Matchability *float64
}

// Record renders the row as CSV fields.
func (r Row) Record() []string {
	rec := make([]string, 0, len(r.Config)+4)
	rec = append(rec, r.Experiment, r.Algorithm, strconv.FormatInt(r.Value, 10))
	rec = append(rec, r.Config...)
	if r.Matchability != nil {
		rec = append(rec, strconv.FormatFloat(*r.Matchability, 'f', -1, 64))
	}
	return rec
}

// Header builds the column names for a report file.
func Header(configColumns []string, withMatchability bool) []string {
	h := make([]string, 0, len(configColumns)+4)
	h = append(h, "EXPERIMENT", "ALGO", "TIME")
	h = append(h, configColumns...)
	if withMatchability {
		h = append(h, "MATCHABILITY")
	}
	return h
}

// Sink persists report rows.
type Sink interface {
	Write(ctx context.Context, file string, header []string, rows []Row) error
}

// Multi writes to every sink and joins their errors.
type Multi []Sink

func (m Multi) Write(ctx context.Context, file string, header []string, rows []Row) error {
	var errs []error
	for _, s := range m {
		if err := s.Write(ctx, file, header, rows); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
