package grading

import (
	"encoding/json"
	"errors"
	"fmt"
)

var ErrUnknownItemType = errors.New("unknown item type")

// Outcome is a comparator's verdict on one response.
type Outcome struct {
	Correct  bool    // every element of the item is right
	Fraction float64 // share of elements answered correctly, 0..1
	Pending  bool    // needs a human grader, excluded from scoring
	Detail   string
}

// Checker grades responses against one decoded correct-answer spec.
type Checker interface {
	// Decode checks the shape of a raw response and returns the decoded value.
	Decode(raw json.RawMessage) (any, error)
	// Compare grades a value returned by Decode. nil means unanswered.
	Compare(resp any) Outcome
	// Answer is the correct answer shown when a content reveals answers.
	Answer() any
}

// Comparator decodes a correct-answer spec and a submitted value and compares them.
type Comparator func(spec, submitted json.RawMessage) (Outcome, error)

type parseFunc func(raw json.RawMessage, cfg *config) (Checker, error)

type kind struct {
	family Family
	parse  parseFunc
}

type config struct {
	ApproximateYears int
}

type Option func(*config)

// WithApproximateYears sets the year tolerance for TIMELINE items that allow approximate placement.
func WithApproximateYears(n int) Option { return func(c *config) { c.ApproximateYears = n } }

// Registry maps every item type tag to its spec parser and comparator.
type Registry struct {
	kinds map[ItemType]kind
	cfg   config
}

func NewRegistry(opts ...Option) *Registry {
	cfg := config{ApproximateYears: 1}
	for _, o := range opts {
		o(&cfg)
	}
	return &Registry{
		cfg: cfg,
		kinds: map[ItemType]kind{
			MultipleChoice: {FamilyQuiz, parseMultipleChoice},
			TrueFalse:      {FamilyQuiz, parseTrueFalse},
			MultipleSelect: {FamilyQuiz, parseMultipleSelect},
			FillBlank:      {FamilyQuiz, parseFillBlank},
			ShortAnswer:    {FamilyQuiz, parseShortAnswer},

			DragDrop:   {FamilyInteractive, parseDragDrop},
			Hotspot:    {FamilyInteractive, parseHotspot},
			Sequence:   {FamilyInteractive, parseSequence},
			Matching:   {FamilyInteractive, parseMatching},
			Timeline:   {FamilyInteractive, parseTimeline},
			Simulation: {FamilyInteractive, parseSimulation},
		},
	}
}

func (r *Registry) Family(t ItemType) (Family, bool) {
	k, ok := r.kinds[t]
	return k.family, ok
}

// Checker parses the item's correct-answer spec.
func (r *Registry) Checker(it Item) (Checker, error) {
	k, ok := r.kinds[it.Type]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownItemType, it.Type)
	}
	if len(it.Spec) == 0 {
		return nil, fmt.Errorf("item %s: missing spec", it.ID)
	}
	c, err := k.parse(it.Spec, &r.cfg)
	if err != nil {
		return nil, fmt.Errorf("item %s: invalid %s spec: %w", it.ID, it.Type, err)
	}
	return c, nil
}

// Comparator returns the comparison function for one type tag.
func (r *Registry) Comparator(t ItemType) (Comparator, error) {
	if _, ok := r.kinds[t]; !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownItemType, t)
	}
	return func(spec, submitted json.RawMessage) (Outcome, error) {
		c, err := r.Checker(Item{ID: "-", Type: t, Spec: spec})
		if err != nil {
			return Outcome{}, err
		}
		v, err := c.Decode(submitted)
		if err != nil {
			return Outcome{}, &ValidationError{Reason: err.Error()}
		}
		return c.Compare(v), nil
	}, nil
}

// ValidateItems checks that a content of the given kind may hold items and
// that every item spec parses.
func (r *Registry) ValidateItems(kind ContentKind, items []Item) error {
	fam, ok := kind.Family()
	if !ok {
		if len(items) > 0 {
			return fmt.Errorf("%s content cannot have items", kind)
		}
		return nil
	}
	seen := make(map[string]bool, len(items))
	for _, it := range items {
		if it.ID == "" {
			return errors.New("item id is required")
		}
		if seen[it.ID] {
			return fmt.Errorf("duplicate item id %q", it.ID)
		}
		seen[it.ID] = true
		f, ok := r.Family(it.Type)
		if !ok {
			return fmt.Errorf("%w: %q", ErrUnknownItemType, it.Type)
		}
		if f != fam {
			return fmt.Errorf("item %s: type %s not allowed in %s content", it.ID, it.Type, kind)
		}
		if it.Points < 0 {
			return fmt.Errorf("item %s: points must not be negative", it.ID)
		}
		if _, err := r.Checker(it); err != nil {
			return err
		}
	}
	return nil
}

func (r *Registry) checkers(items []Item) ([]Checker, error) {
	out := make([]Checker, len(items))
	for i, it := range items {
		c, err := r.Checker(it)
		if err != nil {
			return nil, err
		}
		out[i] = c
	}
	return out, nil
}
