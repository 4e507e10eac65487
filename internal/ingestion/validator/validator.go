// Package validator checks subscriptions and events against the attribute
// count and value domain the broker is configured with, returning per-field
// error details.
package validator

import (
	"fmt"
	"sort"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/Event-Matching-Platform/internal/ingestion"
	apperrors "github.com/Adithya-Monish-Kumar-K/Event-Matching-Platform/pkg/errors"
)

const maxEventIDLength = 255

// Limits bounds attribute ids to [0, TotalAttributes) and values to
// [0, ValueDomain). A zero limit disables that check.
type Limits struct {
	TotalAttributes int
	ValueDomain     int
}

// ValidationError holds per-field validation failure messages.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for field := range e.Fields {
		keys = append(keys, field)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, field := range keys {
		parts = append(parts, fmt.Sprintf("%s:%s", field, e.Fields[field]))
	}
	return strings.Join(parts, "; ")
}

func (e *ValidationError) Unwrap() error {
	return apperrors.ErrInvalidInput
}

func (l Limits) attribute(errs map[string]string, field string, attr int) {
	if attr < 0 || (l.TotalAttributes > 0 && attr >= l.TotalAttributes) {
		errs[field] = fmt.Sprintf("attribute %d outside [0,%d)", attr, l.TotalAttributes)
	}
}

func (l Limits) value(errs map[string]string, field string, v int) {
	if v < 0 || (l.ValueDomain > 0 && v >= l.ValueDomain) {
		errs[field] = fmt.Sprintf("value %d outside [0,%d)", v, l.ValueDomain)
	}
}

// ValidateSubscription checks the id, every predicate's attribute and
// bounds, and that no attribute is constrained twice.
func ValidateSubscription(msg *ingestion.SubscriptionMessage, limits Limits) error {
	errs := make(map[string]string)
	if msg.ID < 0 {
		errs["id"] = "id must not be negative"
	}
	seen := make(map[int]int, len(msg.Predicates))
	for i, p := range msg.Predicates {
		prefix := fmt.Sprintf("predicates[%d]", i)
		limits.attribute(errs, prefix+".attribute", p.Attribute)
		if first, dup := seen[p.Attribute]; dup {
			errs[prefix+".attribute"] = fmt.Sprintf("attribute %d already constrained by predicates[%d]", p.Attribute, first)
		} else {
			seen[p.Attribute] = i
		}
		limits.value(errs, prefix+".low", p.Low)
		limits.value(errs, prefix+".high", p.High)
		if p.Low > p.High {
			errs[prefix] = fmt.Sprintf("low %d exceeds high %d", p.Low, p.High)
		}
	}
	if len(errs) > 0 {
		return &ValidationError{Fields: errs}
	}
	return nil
}

// ValidateEvent checks the event id length and every attribute/value pair.
func ValidateEvent(msg *ingestion.EventMessage, limits Limits) error {
	errs := make(map[string]string)
	if len(msg.EventID) > maxEventIDLength {
		errs["event_id"] = fmt.Sprintf("event id must be at most %d characters", maxEventIDLength)
	}
	for attr, v := range msg.Values {
		field := fmt.Sprintf("values[%d]", attr)
		limits.attribute(errs, field, attr)
		if _, bad := errs[field]; !bad {
			limits.value(errs, field, v)
		}
	}
	if len(errs) > 0 {
		return &ValidationError{Fields: errs}
	}
	return nil
}
