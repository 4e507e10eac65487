// Package bench measures the matcher variants on generated workloads: build
// cost, memory growth, single-insert latency and per-event match latency. It
// also cross-checks every variant against the linear oracle.
package bench

import (
	"sort"
	"strconv"

	"github.com/Adithya-Monish-Kumar-K/Event-Matching-Platform/internal/matching"
	apperrors "github.com/Adithya-Monish-Kumar-K/Event-Matching-Platform/pkg/errors"
)

// Config fixes the workload shape and the matcher parameters of one
// measuring point.
type Config struct {
	NbrSubs         int     `yaml:"nbrSubs" json:"nbr_subs"`
	NbrEvents       int     `yaml:"nbrEvents" json:"nbr_events"`
	TotalAttributes int     `yaml:"totalAttributes" json:"total_attributes"`
	SubPredicates   int     `yaml:"subPredicates" json:"sub_predicates"`
	EventAttributes int     `yaml:"eventAttributes" json:"event_attributes"`
	ValueDomain     int     `yaml:"valueDomain" json:"value_domain"`
	MaxBuckets      int     `yaml:"maxBuckets" json:"max_buckets"`
	Alpha           float64 `yaml:"alpha" json:"alpha"`
	Width           float64 `yaml:"width" json:"width"`
	Seed            int64   `yaml:"seed" json:"seed"`
	Cells           int     `yaml:"cells" json:"cells"`
	SplitThreshold  int     `yaml:"splitThreshold" json:"split_threshold"`
	GrowthFactor    float64 `yaml:"growthFactor" json:"growth_factor"`
}

const (
	defaultSplitThreshold = 2
	defaultGrowthFactor   = 1.1
)

var presets = map[string]Config{
	"default": {
		NbrSubs: 200, NbrEvents: 100, TotalAttributes: 101, EventAttributes: 51,
		SubPredicates: 4, ValueDomain: 10000, Alpha: 0.5, Width: 0.2,
		MaxBuckets: 500, Seed: 0, Cells: 8, SplitThreshold: 2, GrowthFactor: 1.1,
	},
	"debug": {
		NbrSubs: 150, NbrEvents: 100, TotalAttributes: 10, MaxBuckets: 5,
		EventAttributes: 3, SubPredicates: 2, ValueDomain: 10, Width: 0.5, Cells: 3,
	},
	"test": {
		NbrSubs: 20000, NbrEvents: 100, TotalAttributes: 20, EventAttributes: 10,
		SubPredicates: 5, ValueDomain: 20, Alpha: 0.1, Width: 0.5, MaxBuckets: 500, Cells: 8,
	},
	"maema": {
		NbrSubs: 1000000, NbrEvents: 100, TotalAttributes: 40, EventAttributes: 40,
		SubPredicates: 10, ValueDomain: 1000, Alpha: 0.1, Width: 0.5, MaxBuckets: 500, Cells: 8,
	},
	"avddm": {
		NbrSubs: 50000, NbrEvents: 100, TotalAttributes: 5, EventAttributes: 4,
		SubPredicates: 3, ValueDomain: 1000, Alpha: 0.1, Width: 0.1, MaxBuckets: 500, Cells: 8,
	},
}

// Preset returns a named configuration. GEM-Tree parameters a preset leaves
// unset fall back to a split threshold of 2 and a growth factor of 1.1.
func Preset(name string) (Config, error) {
	cfg, ok := presets[name]
	if !ok {
		return Config{}, apperrors.Configf("unknown bench preset %q (known: %v)", name, PresetNames())
	}
	if cfg.SplitThreshold == 0 {
		cfg.SplitThreshold = defaultSplitThreshold
	}
	if cfg.GrowthFactor == 0 {
		cfg.GrowthFactor = defaultGrowthFactor
	}
	return cfg, nil
}

func PresetNames() []string {
	names := make([]string, 0, len(presets))
	for name := range presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Validate checks the workload shape. Matcher-specific parameters are
// checked when the matcher is built.
func (c Config) Validate() error {
	switch {
	case c.NbrSubs <= 0:
		return apperrors.Configf("bench: nbr subs must be positive, got %d", c.NbrSubs)
	case c.NbrEvents <= 0:
		return apperrors.Configf("bench: nbr events must be positive, got %d", c.NbrEvents)
	case c.TotalAttributes <= 0:
		return apperrors.Configf("bench: total attributes must be positive, got %d", c.TotalAttributes)
	case c.SubPredicates < 0 || c.SubPredicates > c.TotalAttributes:
		return apperrors.Configf("bench: %d sub predicates out of %d attributes", c.SubPredicates, c.TotalAttributes)
	case c.EventAttributes < 0 || c.EventAttributes > c.TotalAttributes:
		return apperrors.Configf("bench: %d event attributes out of %d attributes", c.EventAttributes, c.TotalAttributes)
	case c.ValueDomain <= 0:
		return apperrors.Configf("bench: value domain must be positive, got %d", c.ValueDomain)
	case c.Width < 0 || c.Width >= 1:
		return apperrors.Configf("bench: width must lie in [0,1), got %g", c.Width)
	}
	return nil
}

// Params builds the matcher parameters for algo.
func (c Config) Params(algo matching.Algorithm) matching.Params {
	return matching.Params{
		Algorithm:       algo,
		Subscribers:     c.NbrSubs,
		TotalAttributes: c.TotalAttributes,
		SubPredicates:   c.SubPredicates,
		ValueDomain:     c.ValueDomain,
		Width:           c.Width,
		MaxBuckets:      c.MaxBuckets,
		Cells:           c.Cells,
		SplitThreshold:  c.SplitThreshold,
		GrowthFactor:    c.GrowthFactor,
		Alpha:           c.Alpha,
	}
}

// ConfigColumns names the report columns produced by Values, in order.
func ConfigColumns() []string {
	return []string{
		"NBR_SUBS", "NBR_EVENTS", "NBR_TOTAL_ATTRIBUTES", "NBR_SUB_PREDICATES",
		"NBR_EVENT_ATTRIBUTES", "VAL_DOM", "MAX_NUMBER_BUCKETS", "ALPHA", "WIDTH",
		"RANDOM_SEED", "NBR_CELLS", "SPLIT_THRESHOLD", "INCREASE_BUCKET_SIZE_FACTOR",
	}
}

func (c Config) Values() []string {
	return []string{
		strconv.Itoa(c.NbrSubs),
		strconv.Itoa(c.NbrEvents),
		strconv.Itoa(c.TotalAttributes),
		strconv.Itoa(c.SubPredicates),
		strconv.Itoa(c.EventAttributes),
		strconv.Itoa(c.ValueDomain),
		strconv.Itoa(c.MaxBuckets),
		formatFloat(c.Alpha),
		formatFloat(c.Width),
		strconv.FormatInt(c.Seed, 10),
		strconv.Itoa(c.Cells),
		strconv.Itoa(c.SplitThreshold),
		formatFloat(c.GrowthFactor),
	}
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
