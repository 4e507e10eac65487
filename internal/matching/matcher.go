package matching

import (
	"fmt"
	"strings"

	apperrors "github.com/Adithya-Monish-Kumar-K/Event-Matching-Platform/pkg/errors"
)

// Algorithm names one of the matcher variants.
type Algorithm string

const (
	AlgorithmLinear        Algorithm = "linear"
	AlgorithmAVDDM         Algorithm = "avddm"
	AlgorithmMAEMA         Algorithm = "maema"
	AlgorithmGemTree       Algorithm = "gem"
	AlgorithmGemTreeUnrank Algorithm = "gem-unranked"
)

// Algorithms lists every supported variant, oracle first.
func Algorithms() []Algorithm {
	return []Algorithm{
		AlgorithmLinear,
		AlgorithmAVDDM,
		AlgorithmMAEMA,
		AlgorithmGemTree,
		AlgorithmGemTreeUnrank,
	}
}

// ParseAlgorithm resolves a case-insensitive algorithm name.
func ParseAlgorithm(name string) (Algorithm, error) {
	a := Algorithm(strings.ToLower(strings.TrimSpace(name)))
	for _, known := range Algorithms() {
		if a == known {
			return a, nil
		}
	}
	return "", fmt.Errorf("%w: %q", apperrors.ErrUnknownAlgorithm, name)
}

// Matcher is the capability shared by all variants. Insert grows the index;
// Match returns every inserted subscription satisfied by the event, without
// duplicates and in no particular order. Match does not modify the index.
//
// A Matcher is not safe for concurrent Insert, or for Insert concurrent with
// Match. Callers serialize writes (see broker.Engine).
type Matcher interface {
	Algorithm() Algorithm
	Insert(sub *Subscription) error
	Match(ev Event) ([]*Subscription, error)
	Len() int

	sealed()
}

// Params holds the construction parameters of every variant. Each variant
// reads the fields it needs.
type Params struct {
	Algorithm       Algorithm `yaml:"algorithm" json:"algorithm"`
	Subscribers     int       `yaml:"subscribers" json:"subscribers"`
	TotalAttributes int       `yaml:"totalAttributes" json:"total_attributes"`
	SubPredicates   int       `yaml:"subPredicates" json:"sub_predicates"`
	ValueDomain     int       `yaml:"valueDomain" json:"value_domain"`
	Width           float64   `yaml:"width" json:"width"`
	MaxBuckets      int       `yaml:"maxBuckets" json:"max_buckets"`
	Cells           int       `yaml:"cells" json:"cells"`
	SplitThreshold  int       `yaml:"splitThreshold" json:"split_threshold"`
	GrowthFactor    float64   `yaml:"growthFactor" json:"growth_factor"`
	Alpha           float64   `yaml:"alpha" json:"alpha"`
}

// New constructs the matcher selected by p.Algorithm.
func New(p Params) (Matcher, error) {
	switch p.Algorithm {
	case AlgorithmLinear:
		return NewLinear(p.TotalAttributes, p.ValueDomain), nil
	case AlgorithmAVDDM:
		return NewAVDDM(p.Subscribers, p.TotalAttributes, p.ValueDomain)
	case AlgorithmMAEMA:
		return NewMAEMA(MAEMAConfig{
			TotalAttributes: p.TotalAttributes,
			MaxBuckets:      p.MaxBuckets,
			Capacity:        p.Subscribers,
			ValueDomain:     p.ValueDomain,
			Width:           p.Width,
			Predicates:      p.SubPredicates,
		})
	case AlgorithmGemTree, AlgorithmGemTreeUnrank:
		return NewGemTree(GemTreeConfig{
			Subscribers:     p.Subscribers,
			TotalAttributes: p.TotalAttributes,
			Predicates:      p.SubPredicates,
			ValueDomain:     p.ValueDomain,
			Cells:           p.Cells,
			SplitThreshold:  p.SplitThreshold,
			GrowthFactor:    p.GrowthFactor,
			Alpha:           p.Alpha,
			Ranked:          p.Algorithm == AlgorithmGemTree,
		})
	default:
		return nil, fmt.Errorf("%w: %q", apperrors.ErrUnknownAlgorithm, p.Algorithm)
	}
}

// bounds validates caller input against the attribute count and value
// domain a matcher was configured with. A zero limit disables that check.
type bounds struct {
	attributes int
	domain     int
}

func (b bounds) checkAttribute(attr int) error {
	if attr < 0 || (b.attributes > 0 && attr >= b.attributes) {
		return apperrors.Invalidf("attribute %d outside [0,%d)", attr, b.attributes)
	}
	return nil
}

func (b bounds) checkValue(attr, v int) error {
	if b.domain > 0 && (v < 0 || v >= b.domain) {
		return apperrors.Invalidf("value %d of attribute %d outside [0,%d)", v, attr, b.domain)
	}
	return nil
}

func (b bounds) validateSubscription(sub *Subscription) error {
	if sub == nil {
		return apperrors.Invalidf("nil subscription")
	}
	if sub.ID < 0 {
		return apperrors.Invalidf("subscription id %d is negative", sub.ID)
	}
	for attr, p := range sub.Predicates {
		if p.Attribute != attr {
			return apperrors.Invalidf("subscription %d: predicate keyed %d constrains attribute %d", sub.ID, attr, p.Attribute)
		}
		if err := b.checkAttribute(attr); err != nil {
			return fmt.Errorf("subscription %d: %w", sub.ID, err)
		}
		if p.Low > p.High {
			return apperrors.Invalidf("subscription %d: attribute %d has low %d > high %d", sub.ID, attr, p.Low, p.High)
		}
		if err := b.checkValue(attr, p.Low); err != nil {
			return fmt.Errorf("subscription %d: %w", sub.ID, err)
		}
		if err := b.checkValue(attr, p.High); err != nil {
			return fmt.Errorf("subscription %d: %w", sub.ID, err)
		}
	}
	return nil
}

func (b bounds) validateEvent(ev Event) error {
	for attr, v := range ev.Values {
		if err := b.checkAttribute(attr); err != nil {
			return fmt.Errorf("event: %w", err)
		}
		if err := b.checkValue(attr, v); err != nil {
			return fmt.Errorf("event: %w", err)
		}
	}
	return nil
}
