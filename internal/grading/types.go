package grading

import (
	"encoding/json"
	"math"
)

// ItemType tags one variant of the item union.
type ItemType string

const (
	MultipleChoice ItemType = "MULTIPLE_CHOICE"
	MultipleSelect ItemType = "MULTIPLE_SELECT"
	TrueFalse      ItemType = "TRUE_FALSE"
	FillBlank      ItemType = "FILL_BLANK"
	ShortAnswer    ItemType = "SHORT_ANSWER"

	DragDrop   ItemType = "DRAG_DROP"
	Hotspot    ItemType = "HOTSPOT"
	Sequence   ItemType = "SEQUENCE"
	Matching   ItemType = "MATCHING"
	Timeline   ItemType = "TIMELINE"
	Simulation ItemType = "SIMULATION"
)

// Family groups item types by how their outcomes are aggregated.
type Family int

const (
	FamilyQuiz Family = iota + 1
	FamilyInteractive
)

// ContentKind is the kind of an assessable content.
type ContentKind string

const (
	KindQuiz        ContentKind = "QUIZ"
	KindAssignment  ContentKind = "ASSIGNMENT"
	KindInteractive ContentKind = "INTERACTIVE"
)

func (k ContentKind) Valid() bool {
	switch k {
	case KindQuiz, KindAssignment, KindInteractive:
		return true
	}
	return false
}

// Family returns the item family the content kind accepts. Assignments accept none.
func (k ContentKind) Family() (Family, bool) {
	switch k {
	case KindQuiz:
		return FamilyQuiz, true
	case KindInteractive:
		return FamilyInteractive, true
	}
	return 0, false
}

// Status is the lifecycle state of an attempt.
type Status string

const (
	StatusInProgress Status = "IN_PROGRESS"
	StatusSubmitted  Status = "SUBMITTED"
	StatusExpired    Status = "EXPIRED"
	StatusGraded     Status = "GRADED"
)

// Item is one gradable unit of a quiz or interactive activity.
// Spec holds the type-specific correct-answer specification.
type Item struct {
	ID     string          `json:"id"`
	Type   ItemType        `json:"type"`
	Points float64         `json:"points"`
	Prompt string          `json:"prompt,omitempty"`
	Spec   json.RawMessage `json:"spec"`
}

// Weight is the item's points, defaulting to 1. Authoring rejects an explicit zero.
func (it Item) Weight() float64 {
	if it.Points <= 0 {
		return 1
	}
	return it.Points
}

// ContentConfig is the scoring and attempt policy of a content.
type ContentConfig struct {
	MaxAttempts        int      `json:"maxAttempts"`
	TimeLimitSeconds   *int     `json:"timeLimitSeconds,omitempty"`
	PassingScore       *float64 `json:"passingScore,omitempty"`
	AllowReplay        bool     `json:"allowReplay"`
	ShowCorrectAnswers bool     `json:"showCorrectAnswers"`
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func ratio(n, d int) float64 {
	if d == 0 {
		return 0
	}
	return float64(n) / float64(d)
}
