package grading

import "time"

// Result is the learner-facing outcome of an attempt.
type Result struct {
	AttemptID         string       `json:"attemptId"`
	AttemptNumber     int          `json:"attemptNumber"`
	Kind              ContentKind  `json:"kind"`
	Status            Status       `json:"status"`
	Score             *float64     `json:"score,omitempty"`
	Passed            *bool        `json:"passed,omitempty"`
	PointsEarned      *float64     `json:"pointsEarned,omitempty"`
	TotalPoints       *float64     `json:"totalPoints,omitempty"`
	PerItemBreakdown  []ItemResult `json:"perItemBreakdown,omitempty"`
	PendingReview     int          `json:"pendingReview"`
	AttemptsRemaining int          `json:"attemptsRemaining"`
	TimeSpentSeconds  *int         `json:"timeSpentSeconds,omitempty"`
	TimeLimitExceeded bool         `json:"timeLimitExceeded"`
	EndReason         string       `json:"endReason,omitempty"`
	SubmittedAt       *time.Time   `json:"submittedAt,omitempty"`
	Grade             *float64     `json:"grade,omitempty"`
	Feedback          string       `json:"feedback,omitempty"`
}

// Passed applies an inclusive passing threshold. No threshold means every score passes.
func Passed(score float64, passingScore *float64) bool {
	return passingScore == nil || score >= *passingScore
}

func AttemptsRemaining(cfg ContentConfig, used int) int {
	if n := cfg.MaxAttempts - used; n > 0 {
		return n
	}
	return 0
}

// CanRetry reports whether another attempt may start. A learner who already
// passed may only retry when the content allows replay.
func CanRetry(cfg ContentConfig, used int, passed bool) bool {
	return used < cfg.MaxAttempts && (cfg.AllowReplay || !passed)
}

// ForLearner fills the remaining attempt count and hides correct answers
// unless the content reveals them.
func (r Result) ForLearner(cfg ContentConfig, used int) Result {
	r.AttemptsRemaining = AttemptsRemaining(cfg, used)
	if !cfg.ShowCorrectAnswers && len(r.PerItemBreakdown) > 0 {
		stripped := make([]ItemResult, len(r.PerItemBreakdown))
		for i, it := range r.PerItemBreakdown {
			it.CorrectAnswer = nil
			stripped[i] = it
		}
		r.PerItemBreakdown = stripped
	}
	return r
}

// IsComplete is the completion signal handed to course progress tracking.
func IsComplete(kind ContentKind, r Result, cfg ContentConfig) bool {
	switch kind {
	case KindQuiz:
		return r.Passed != nil && *r.Passed
	case KindAssignment:
		return r.Status == StatusSubmitted || r.Status == StatusGraded
	case KindInteractive:
		if cfg.PassingScore == nil {
			return r.Status == StatusGraded
		}
		return r.Passed != nil && *r.Passed
	}
	return false
}
