package matching

// Linear scans every subscription on each match. It is the ground truth the
// indexed variants are verified against.
type Linear struct {
	subs   []*Subscription
	bounds bounds
}

// NewLinear creates an empty Linear matcher. Zero limits disable the
// corresponding input check.
func NewLinear(totalAttributes, valueDomain int) *Linear {
	return &Linear{
		bounds: bounds{attributes: totalAttributes, domain: valueDomain},
	}
}

func (l *Linear) Algorithm() Algorithm { return AlgorithmLinear }

func (l *Linear) Len() int { return len(l.subs) }

func (l *Linear) Insert(sub *Subscription) error {
	if err := l.bounds.validateSubscription(sub); err != nil {
		return err
	}
	l.subs = append(l.subs, sub)
	return nil
}

func (l *Linear) Match(ev Event) ([]*Subscription, error) {
	if err := l.bounds.validateEvent(ev); err != nil {
		return nil, err
	}
	matched := make([]*Subscription, 0)
	for _, sub := range l.subs {
		if sub.Matches(ev) {
			matched = append(matched, sub)
		}
	}
	return matched, nil
}

func (l *Linear) sealed() {}
