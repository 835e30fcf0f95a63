package grading

import "fmt"

// ItemResult is the graded view of one item or interactive element.
type ItemResult struct {
	ItemID         string   `json:"itemId"`
	Type           ItemType `json:"type"`
	Answered       bool     `json:"answered"`
	Correct        bool     `json:"correct"`
	Fraction       float64  `json:"fraction"`
	PointsEarned   float64  `json:"pointsEarned"`
	PointsPossible float64  `json:"pointsPossible"`
	PendingReview  bool     `json:"pendingReview,omitempty"`
	Detail         string   `json:"detail,omitempty"`
	CorrectAnswer  any      `json:"correctAnswer,omitempty"`
}

type QuizScore struct {
	PointsEarned float64
	TotalPoints  float64
	PerItem      []ItemResult
	Pending      int
}

// Percentage is PointsEarned/TotalPoints on a 0-100 scale, rounded to two
// decimals. A quiz with nothing auto-gradable scores 0.
func (q QuizScore) Percentage() float64 {
	if q.TotalPoints <= 0 {
		return 0
	}
	return round2(clamp01(q.PointsEarned/q.TotalPoints) * 100)
}

type InteractiveScore struct {
	Score        float64
	PointsEarned float64
	TotalPoints  float64
	PerElement   []ItemResult
	Pending      int
}

// ScoreQuiz awards each item its full weight when the comparator reports it
// fully correct and zero otherwise. Pending items count toward neither total.
func (r *Registry) ScoreQuiz(items []Item, answers Answers) (QuizScore, error) {
	results, err := r.grade(items, answers)
	if err != nil {
		return QuizScore{}, err
	}
	var qs QuizScore
	for i := range results {
		res := &results[i]
		if res.PendingReview {
			qs.Pending++
			continue
		}
		qs.TotalPoints += res.PointsPossible
		if res.Correct {
			res.PointsEarned = res.PointsPossible
			qs.PointsEarned += res.PointsPossible
		}
	}
	qs.PerItem = results
	return qs, nil
}

// ScoreInteractive collapses element fractions into one percentage weighted by
// element points. Element points are only awarded for fully correct elements.
func (r *Registry) ScoreInteractive(items []Item, answers Answers) (InteractiveScore, error) {
	results, err := r.grade(items, answers)
	if err != nil {
		return InteractiveScore{}, err
	}
	var is InteractiveScore
	weighted := 0.0
	for i := range results {
		res := &results[i]
		if res.PendingReview {
			is.Pending++
			continue
		}
		is.TotalPoints += res.PointsPossible
		weighted += res.PointsPossible * res.Fraction
		if res.Correct {
			res.PointsEarned = res.PointsPossible
			is.PointsEarned += res.PointsPossible
		}
	}
	if is.TotalPoints > 0 {
		is.Score = round2(clamp01(weighted/is.TotalPoints) * 100)
	}
	is.PerElement = results
	return is, nil
}

func (r *Registry) grade(items []Item, answers Answers) ([]ItemResult, error) {
	checkers, err := r.checkers(items)
	if err != nil {
		return nil, err
	}
	out := make([]ItemResult, len(items))
	for i, it := range items {
		resp, answered := answers[it.ID]
		o := checkers[i].Compare(resp)
		out[i] = ItemResult{
			ItemID:         it.ID,
			Type:           it.Type,
			Answered:       answered,
			Correct:        o.Correct && !o.Pending,
			Fraction:       clamp01(o.Fraction),
			PointsPossible: it.Weight(),
			PendingReview:  o.Pending,
			Detail:         o.Detail,
			CorrectAnswer:  checkers[i].Answer(),
		}
	}
	return out, nil
}

// Scored is the outcome of grading one attempt against its pinned signature.
type Scored struct {
	Score         float64
	PointsEarned  float64
	TotalPoints   float64
	Passed        bool
	Breakdown     []ItemResult
	PendingReview int
}

// Evaluate scores answers with the rules of the signature's content kind.
// Assignments carry no items and cannot be evaluated.
func (r *Registry) Evaluate(sig Signature, answers Answers) (Scored, error) {
	var s Scored
	switch sig.Kind {
	case KindQuiz:
		qs, err := r.ScoreQuiz(sig.Items, answers)
		if err != nil {
			return s, err
		}
		s = Scored{
			Score:         qs.Percentage(),
			PointsEarned:  qs.PointsEarned,
			TotalPoints:   qs.TotalPoints,
			Breakdown:     qs.PerItem,
			PendingReview: qs.Pending,
		}
	case KindInteractive:
		is, err := r.ScoreInteractive(sig.Items, answers)
		if err != nil {
			return s, err
		}
		s = Scored{
			Score:         is.Score,
			PointsEarned:  is.PointsEarned,
			TotalPoints:   is.TotalPoints,
			Breakdown:     is.PerElement,
			PendingReview: is.Pending,
		}
	default:
		return s, fmt.Errorf("%s content is not auto-scored", sig.Kind)
	}
	s.Passed = Passed(s.Score, sig.Config.PassingScore)
	return s, nil
}
