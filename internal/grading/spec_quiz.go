package grading

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// --- MULTIPLE_CHOICE ---

type choiceSpec struct {
	Options      []string `json:"options"`
	CorrectIndex *int     `json:"correctIndex"`
}

type choiceChecker struct {
	options int
	correct int
}

func parseMultipleChoice(raw json.RawMessage, _ *config) (Checker, error) {
	var s choiceSpec
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, err
	}
	if len(s.Options) < 2 {
		return nil, errors.New("at least two options are required")
	}
	if s.CorrectIndex == nil || *s.CorrectIndex < 0 || *s.CorrectIndex >= len(s.Options) {
		return nil, errors.New("correctIndex out of range")
	}
	return choiceChecker{options: len(s.Options), correct: *s.CorrectIndex}, nil
}

func (c choiceChecker) Decode(raw json.RawMessage) (any, error) {
	return decodeIndex(raw, c.options)
}

func (c choiceChecker) Compare(resp any) Outcome {
	idx, ok := resp.(int)
	if !ok {
		return Outcome{Detail: "unanswered"}
	}
	return binary(idx == c.correct)
}

func (c choiceChecker) Answer() any { return c.correct }

// --- TRUE_FALSE ---
// Options are fixed: index 0 is false, index 1 is true.

type trueFalseSpec struct {
	Correct *bool `json:"correct"`
}

type trueFalseChecker struct {
	correct int
}

func parseTrueFalse(raw json.RawMessage, _ *config) (Checker, error) {
	var s trueFalseSpec
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, err
	}
	if s.Correct == nil {
		return nil, errors.New("correct is required")
	}
	c := trueFalseChecker{}
	if *s.Correct {
		c.correct = 1
	}
	return c, nil
}

func (c trueFalseChecker) Decode(raw json.RawMessage) (any, error) {
	var b bool
	if err := json.Unmarshal(raw, &b); err == nil {
		if b {
			return 1, nil
		}
		return 0, nil
	}
	return decodeIndex(raw, 2)
}

func (c trueFalseChecker) Compare(resp any) Outcome {
	idx, ok := resp.(int)
	if !ok {
		return Outcome{Detail: "unanswered"}
	}
	return binary(idx == c.correct)
}

func (c trueFalseChecker) Answer() any { return c.correct == 1 }

// --- MULTIPLE_SELECT ---

type multiSelectSpec struct {
	Options        []string `json:"options"`
	CorrectIndices []int    `json:"correctIndices"`
}

type multiSelectChecker struct {
	options int
	correct map[int]bool
	answer  []int
}

func parseMultipleSelect(raw json.RawMessage, _ *config) (Checker, error) {
	var s multiSelectSpec
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, err
	}
	if len(s.Options) < 2 {
		return nil, errors.New("at least two options are required")
	}
	set, err := indexSet(s.CorrectIndices, len(s.Options))
	if err != nil {
		return nil, fmt.Errorf("correctIndices: %w", err)
	}
	return multiSelectChecker{options: len(s.Options), correct: set, answer: s.CorrectIndices}, nil
}

func (c multiSelectChecker) Decode(raw json.RawMessage) (any, error) {
	var idx []int
	if err := json.Unmarshal(raw, &idx); err != nil {
		return nil, errors.New("expected an array of option indices")
	}
	return indexSet(idx, c.options)
}

// Compare requires exact set equality. Subsets and supersets earn nothing.
func (c multiSelectChecker) Compare(resp any) Outcome {
	got, ok := resp.(map[int]bool)
	if !ok {
		return Outcome{Detail: "unanswered"}
	}
	if len(got) != len(c.correct) {
		return Outcome{Detail: fmt.Sprintf("selected %d of %d expected", len(got), len(c.correct))}
	}
	for i := range got {
		if !c.correct[i] {
			return Outcome{Detail: "selection differs"}
		}
	}
	return binary(true)
}

func (c multiSelectChecker) Answer() any { return c.answer }

// --- FILL_BLANK ---

// accepted is a list of accepted strings for one blank. It decodes from a
// single string or an array of strings.
type accepted []string

func (a *accepted) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*a = accepted{s}
		return nil
	}
	var list []string
	if err := json.Unmarshal(b, &list); err != nil {
		return errors.New("blank must be a string or an array of strings")
	}
	if len(list) == 0 {
		return errors.New("blank has no accepted answers")
	}
	*a = list
	return nil
}

type fillBlankSpec struct {
	Blanks        []accepted `json:"blanks"`
	CaseSensitive bool       `json:"caseSensitive"`
}

type fillBlankChecker struct {
	blanks        []accepted
	caseSensitive bool
}

func parseFillBlank(raw json.RawMessage, _ *config) (Checker, error) {
	var s fillBlankSpec
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, err
	}
	if len(s.Blanks) == 0 {
		return nil, errors.New("at least one blank is required")
	}
	return fillBlankChecker{blanks: s.Blanks, caseSensitive: s.CaseSensitive}, nil
}

func (c fillBlankChecker) Decode(raw json.RawMessage) (any, error) {
	var vals []string
	if err := json.Unmarshal(raw, &vals); err != nil {
		return nil, errors.New("expected an array of strings")
	}
	if len(vals) > len(c.blanks) {
		return nil, fmt.Errorf("got %d values for %d blanks", len(vals), len(c.blanks))
	}
	return vals, nil
}

// Compare marks the item correct only when every blank matches.
func (c fillBlankChecker) Compare(resp any) Outcome {
	vals, ok := resp.([]string)
	if !ok {
		return Outcome{Detail: "unanswered"}
	}
	hits := 0
	for i, want := range c.blanks {
		if i < len(vals) && matchText(vals[i], want, c.caseSensitive) {
			hits++
		}
	}
	o := binary(hits == len(c.blanks))
	o.Detail = fmt.Sprintf("%d/%d blanks correct", hits, len(c.blanks))
	return o
}

func (c fillBlankChecker) Answer() any {
	out := make([]string, len(c.blanks))
	for i, b := range c.blanks {
		out[i] = b[0]
	}
	return out
}

// --- SHORT_ANSWER ---

type shortAnswerSpec struct {
	ExactMatch      bool     `json:"exactMatch"`
	AcceptedAnswers accepted `json:"acceptedAnswers"`
	CaseSensitive   bool     `json:"caseSensitive"`
}

type shortAnswerChecker struct {
	spec shortAnswerSpec
}

func parseShortAnswer(raw json.RawMessage, _ *config) (Checker, error) {
	var s shortAnswerSpec
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, err
	}
	if s.ExactMatch && len(s.AcceptedAnswers) == 0 {
		return nil, errors.New("exactMatch requires acceptedAnswers")
	}
	return shortAnswerChecker{spec: s}, nil
}

func (c shortAnswerChecker) Decode(raw json.RawMessage) (any, error) {
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, errors.New("expected a string")
	}
	return s, nil
}

// Compare leaves free-form answers pending. They are never counted as correct.
func (c shortAnswerChecker) Compare(resp any) Outcome {
	if !c.spec.ExactMatch {
		return Outcome{Pending: true, Detail: "awaiting manual review"}
	}
	s, ok := resp.(string)
	if !ok {
		return Outcome{Detail: "unanswered"}
	}
	return binary(matchText(s, c.spec.AcceptedAnswers, c.spec.CaseSensitive))
}

func (c shortAnswerChecker) Answer() any {
	if !c.spec.ExactMatch {
		return nil
	}
	return []string(c.spec.AcceptedAnswers)
}

// helpers

func binary(ok bool) Outcome {
	if ok {
		return Outcome{Correct: true, Fraction: 1}
	}
	return Outcome{}
}

func decodeIndex(raw json.RawMessage, n int) (int, error) {
	var idx int
	if err := json.Unmarshal(raw, &idx); err != nil {
		return 0, errors.New("expected an option index")
	}
	if idx < 0 || idx >= n {
		return 0, fmt.Errorf("option index %d out of range [0,%d)", idx, n)
	}
	return idx, nil
}

func indexSet(idx []int, n int) (map[int]bool, error) {
	set := make(map[int]bool, len(idx))
	for _, i := range idx {
		if i < 0 || i >= n {
			return nil, fmt.Errorf("option index %d out of range [0,%d)", i, n)
		}
		if set[i] {
			return nil, fmt.Errorf("duplicate option index %d", i)
		}
		set[i] = true
	}
	return set, nil
}

func normalizeText(s string, caseSensitive bool) string {
	s = strings.Join(strings.Fields(s), " ")
	if !caseSensitive {
		s = strings.ToLower(s)
	}
	return s
}

func matchText(got string, want []string, caseSensitive bool) bool {
	g := normalizeText(got, caseSensitive)
	if g == "" {
		return false
	}
	for _, w := range want {
		if g == normalizeText(w, caseSensitive) {
			return true
		}
	}
	return false
}
