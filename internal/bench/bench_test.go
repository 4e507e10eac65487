package bench

import (
	"context"
	"encoding/csv"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/Event-Matching-Platform/internal/matching"
	"github.com/Adithya-Monish-Kumar-K/Event-Matching-Platform/internal/report"
	apperrors "github.com/Adithya-Monish-Kumar-K/Event-Matching-Platform/pkg/errors"
)

func smallConfig() Config {
	return Config{
		NbrSubs:         80,
		NbrEvents:       4,
		TotalAttributes: 6,
		SubPredicates:   2,
		EventAttributes: 5,
		ValueDomain:     50,
		MaxBuckets:      5,
		Alpha:           0.5,
		Width:           0.5,
		Seed:            7,
		Cells:           3,
		SplitThreshold:  2,
		GrowthFactor:    1.1,
	}
}

type write struct {
	file   string
	header []string
	rows   []report.Row
}

type recordingSink struct {
	mu     sync.Mutex
	writes []write
}

func (s *recordingSink) Write(_ context.Context, file string, header []string, rows []report.Row) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.writes = append(s.writes, write{file: file, header: header, rows: rows})
	return nil
}

func TestPresets(t *testing.T) {
	assert.Equal(t, []string{"avddm", "debug", "default", "maema", "test"}, PresetNames())

	def, err := Preset("default")
	require.NoError(t, err)
	assert.Equal(t, 200, def.NbrSubs)
	assert.Equal(t, 101, def.TotalAttributes)
	assert.Equal(t, 0.2, def.Width)

	debug, err := Preset("debug")
	require.NoError(t, err)
	assert.Equal(t, defaultSplitThreshold, debug.SplitThreshold)
	assert.Equal(t, defaultGrowthFactor, debug.GrowthFactor)
	require.NoError(t, debug.Validate())

	_, err = Preset("huge")
	assert.ErrorIs(t, err, apperrors.ErrInvalidConfig)
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"no subs", func(c *Config) { c.NbrSubs = 0 }},
		{"no events", func(c *Config) { c.NbrEvents = 0 }},
		{"too many predicates", func(c *Config) { c.SubPredicates = 7 }},
		{"too many event attributes", func(c *Config) { c.EventAttributes = 7 }},
		{"empty domain", func(c *Config) { c.ValueDomain = 0 }},
		{"full width", func(c *Config) { c.Width = 1 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := smallConfig()
			tt.mutate(&cfg)
			assert.ErrorIs(t, cfg.Validate(), apperrors.ErrInvalidConfig)
		})
	}
	assert.NoError(t, smallConfig().Validate())
}

func TestConfigValuesFollowColumns(t *testing.T) {
	cfg := smallConfig()
	values := cfg.Values()
	require.Len(t, values, len(ConfigColumns()))
	assert.Equal(t, "80", values[0])
	assert.Equal(t, "0.5", values[8])
	assert.Equal(t, "1.1", values[12])
}

func TestExperimentPoints(t *testing.T) {
	assert.Equal(t, []int{200, 400}, VarySubscriptions(200, 400, 200).Points())
	assert.Equal(t, []int{1, 11, 21}, VaryEventAttributes(1, 25, 10).Points())
	assert.Nil(t, VaryWidth(1, 9, 0).Points())

	exp, err := ExperimentByName("time_width", 1, 9, 1)
	require.NoError(t, err)
	cfg := smallConfig()
	exp.Apply(&cfg, 3)
	assert.Equal(t, 0.3, cfg.Width)

	_, err = ExperimentByName("time_memory", 1, 2, 1)
	assert.ErrorIs(t, err, apperrors.ErrInvalidConfig)
}

func TestEvaluateInsertion(t *testing.T) {
	cfg := smallConfig()
	res, err := NewHarness().EvaluateInsertion(context.Background(), cfg, matching.AlgorithmGemTree)
	require.NoError(t, err)
	require.Len(t, res.Precomputation, cfg.NbrEvents)
	require.Len(t, res.Memory, cfg.NbrEvents)
	require.Len(t, res.Insertion, cfg.NbrEvents)
	for i := range res.Precomputation {
		assert.Positive(t, res.Precomputation[i])
		assert.GreaterOrEqual(t, res.Insertion[i], int64(0))
	}
}

func TestEvaluateMatchingAgreesAcrossAlgorithms(t *testing.T) {
	cfg := smallConfig()
	h := NewHarness()
	oracle, err := h.EvaluateMatching(context.Background(), cfg, matching.AlgorithmLinear)
	require.NoError(t, err)

	for _, algo := range matching.Algorithms()[1:] {
		t.Run(string(algo), func(t *testing.T) {
			res, err := h.EvaluateMatching(context.Background(), cfg, algo)
			require.NoError(t, err)
			assert.Equal(t, oracle.Matched, res.Matched)
			assert.Equal(t, oracle.Matchability, res.Matchability)
		})
	}
	for i, ids := range oracle.Matched {
		assert.InDelta(t, float64(len(ids))/float64(cfg.NbrSubs), oracle.Matchability[i], 1e-12)
	}
}

func TestEvaluateCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	h := NewHarness()
	_, err := h.EvaluateInsertion(ctx, smallConfig(), matching.AlgorithmLinear)
	assert.ErrorIs(t, err, context.Canceled)
	_, err = h.EvaluateMatching(ctx, smallConfig(), matching.AlgorithmLinear)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSuiteWritesEveryReport(t *testing.T) {
	sink := &recordingSink{}
	suite := NewSuite(NewHarness(), sink)
	algos := []matching.Algorithm{matching.AlgorithmLinear, matching.AlgorithmMAEMA}

	err := suite.Run(context.Background(), smallConfig(), algos, []Experiment{VarySubscriptions(40, 80, 40)})
	require.NoError(t, err)
	require.Len(t, sink.writes, len(algos)*2*4)

	files := map[string]int{}
	for _, w := range sink.writes {
		files[w.file]++
		require.Len(t, w.rows, smallConfig().NbrEvents)
		for _, row := range w.rows {
			assert.Equal(t, "time_subs", row.Experiment)
			if w.file == report.FileMatching {
				assert.NotNil(t, row.Matchability)
			} else {
				assert.Nil(t, row.Matchability)
			}
		}
	}
	assert.Equal(t, map[string]int{
		report.FilePrecomputation: 4,
		report.FileMemory:         4,
		report.FileInsertion:      4,
		report.FileMatching:       4,
	}, files)

	first := sink.writes[0]
	assert.Equal(t, "40", first.rows[0].Config[0])
	assert.Equal(t, "linear", first.rows[0].Algorithm)
	assert.Equal(t, "80", sink.writes[len(sink.writes)-1].rows[0].Config[0])
}

func TestSuiteRejectsZeroStep(t *testing.T) {
	suite := NewSuite(NewHarness(), &recordingSink{})
	err := suite.Run(context.Background(), smallConfig(), []matching.Algorithm{matching.AlgorithmLinear},
		[]Experiment{VaryWidth(1, 9, 0)})
	assert.ErrorIs(t, err, apperrors.ErrInvalidConfig)
}

func TestSuiteSkipsPointsAnAlgorithmRejects(t *testing.T) {
	sink := &recordingSink{}
	suite := NewSuite(NewHarness(), sink)
	algos := []matching.Algorithm{matching.AlgorithmMAEMA, matching.AlgorithmLinear}

	// MAEMA needs at least two predicates per subscription
	err := suite.Run(context.Background(), smallConfig(), algos, []Experiment{VarySubPredicates(1, 2, 1)})
	require.NoError(t, err)
	require.Len(t, sink.writes, 3*4)

	written := map[string][]string{}
	for _, w := range sink.writes {
		if w.file != report.FileMatching {
			continue
		}
		row := w.rows[0]
		written[row.Algorithm] = append(written[row.Algorithm], row.Config[3])
	}
	assert.Equal(t, map[string][]string{
		"maema":  {"2"},
		"linear": {"1", "2"},
	}, written)
}

func TestSuiteStopsOnInvalidPoint(t *testing.T) {
	suite := NewSuite(NewHarness(), &recordingSink{})
	// more predicates than attributes is a broken sweep, not an unsupported point
	err := suite.Run(context.Background(), smallConfig(), []matching.Algorithm{matching.AlgorithmLinear},
		[]Experiment{VarySubPredicates(6, 7, 1)})
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrInvalidConfig)
	assert.NotErrorIs(t, err, ErrUnsupported)
}

func TestEvaluateMarksUnsupportedConfig(t *testing.T) {
	cfg := smallConfig()
	cfg.SubPredicates = 1
	_, err := NewHarness().EvaluateMatching(context.Background(), cfg, matching.AlgorithmMAEMA)
	assert.ErrorIs(t, err, ErrUnsupported)
	assert.ErrorIs(t, err, apperrors.ErrInvalidConfig)

	_, err = NewHarness().EvaluateInsertion(context.Background(), cfg, matching.AlgorithmMAEMA)
	assert.ErrorIs(t, err, ErrUnsupported)
}

type failingSink struct{}

func (failingSink) Write(context.Context, string, []string, []report.Row) error {
	return errors.New("disk full")
}

func TestSuiteSurfacesSinkErrors(t *testing.T) {
	suite := NewSuite(NewHarness(), failingSink{})
	err := suite.Evaluate(context.Background(), "time_subs", smallConfig(), matching.AlgorithmLinear)
	require.Error(t, err)
	assert.Contains(t, err.Error(), report.FilePrecomputation)
}

func TestSuiteWithFileSink(t *testing.T) {
	dir := t.TempDir()
	sink, err := report.NewFileSink(dir)
	require.NoError(t, err)
	suite := NewSuite(NewHarness(), sink)

	cfg := smallConfig()
	require.NoError(t, suite.Evaluate(context.Background(), "time_width", cfg, matching.AlgorithmAVDDM))
	require.NoError(t, suite.Evaluate(context.Background(), "time_width", cfg, matching.AlgorithmAVDDM))

	f, err := os.Open(filepath.Join(dir, report.FileMatching))
	require.NoError(t, err)
	defer f.Close()
	r := csv.NewReader(f)
	r.Comma = ';'
	records, err := r.ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 1+2*cfg.NbrEvents)
	assert.Equal(t, "MATCHABILITY", records[0][len(records[0])-1])
	assert.Equal(t, "avddm", records[1][1])
}

func TestVerifyAllAlgorithms(t *testing.T) {
	results, err := Verify(context.Background(), smallConfig(), matching.Algorithms())
	require.NoError(t, err)
	require.Len(t, results, len(matching.Algorithms()))
	for _, res := range results {
		assert.True(t, res.OK(), "%s: first mismatch %+v", res.Algorithm, res.FirstMismatch)
		assert.Equal(t, smallConfig().NbrEvents, res.Events)
	}
	assert.Equal(t, results[0].TotalMatched, results[len(results)-1].TotalMatched)
}

func TestVerifyRejectsBadConfig(t *testing.T) {
	cfg := smallConfig()
	cfg.SubPredicates = 1
	_, err := Verify(context.Background(), cfg, []matching.Algorithm{matching.AlgorithmMAEMA})
	assert.ErrorIs(t, err, apperrors.ErrInvalidConfig)
}
