package model

import (
	"encoding/json"
	"fmt"
	"time"

	"assessment_backend/internal/grading"

	"gorm.io/datatypes"
)

const (
	EndReasonSubmitted = "submitted"
	EndReasonTimeOut   = "time_out"
)

// Attempt is one learner's pass through a content. The unique slot index on
// (content_id, user_id, attempt_number) backs the attempt limit.
type Attempt struct {
	UUIDBase
	ContentID     string              `gorm:"size:36;not null;uniqueIndex:idx_attempt_slot,priority:1" json:"contentId"`
	UserID        string              `gorm:"size:64;not null;uniqueIndex:idx_attempt_slot,priority:2;index" json:"userId"`
	AttemptNumber int                 `gorm:"not null;uniqueIndex:idx_attempt_slot,priority:3" json:"attemptNumber"`
	Kind          grading.ContentKind `gorm:"size:20;not null" json:"kind"`
	Status        grading.Status      `gorm:"size:20;not null;index" json:"status"`

	StartedAt   time.Time  `gorm:"not null" json:"startedAt"`
	DeadlineAt  *time.Time `gorm:"index" json:"deadlineAt,omitempty"`
	SubmittedAt *time.Time `json:"submittedAt,omitempty"`
	GradedAt    *time.Time `json:"gradedAt,omitempty"`
	EndReason   string     `gorm:"size:20" json:"endReason,omitempty"`

	Responses        datatypes.JSON `json:"responses,omitempty"`
	ContentSignature string         `gorm:"not null" json:"-"`
	SignatureDigest  string         `gorm:"size:64;not null" json:"signatureDigest"`

	Score             *float64       `json:"score,omitempty"`
	PointsEarned      *float64       `json:"pointsEarned,omitempty"`
	TotalPoints       *float64       `json:"totalPoints,omitempty"`
	Passed            *bool          `json:"passed,omitempty"`
	TimeSpentSeconds  *int           `json:"timeSpentSeconds,omitempty"`
	TimeLimitExceeded bool           `gorm:"default:false" json:"timeLimitExceeded"`
	PendingReview     int            `gorm:"default:0" json:"pendingReview"`
	Breakdown         datatypes.JSON `json:"breakdown,omitempty"`

	Submission *Submission `gorm:"foreignKey:AttemptID" json:"submission,omitempty"`
}

func (Attempt) TableName() string {
	return "attempts"
}

func (a *Attempt) Signature() (grading.Signature, error) {
	return grading.DecodeSignature([]byte(a.ContentSignature))
}

// BufferedResponses returns the raw responses saved or submitted so far.
func (a *Attempt) BufferedResponses() (map[string]json.RawMessage, error) {
	out := map[string]json.RawMessage{}
	if len(a.Responses) == 0 {
		return out, nil
	}
	err := json.Unmarshal(a.Responses, &out)
	return out, err
}

// Result builds the stored result. Remaining attempts and answer visibility
// are applied by grading.Result.ForLearner. A breakdown that no longer decodes
// is an error, not an empty breakdown.
func (a *Attempt) Result() (grading.Result, error) {
	r := grading.Result{
		AttemptID:         a.ID,
		AttemptNumber:     a.AttemptNumber,
		Kind:              a.Kind,
		Status:            a.Status,
		Score:             a.Score,
		Passed:            a.Passed,
		PointsEarned:      a.PointsEarned,
		TotalPoints:       a.TotalPoints,
		PendingReview:     a.PendingReview,
		TimeSpentSeconds:  a.TimeSpentSeconds,
		TimeLimitExceeded: a.TimeLimitExceeded,
		EndReason:         a.EndReason,
		SubmittedAt:       a.SubmittedAt,
	}
	if len(a.Breakdown) > 0 {
		if err := json.Unmarshal(a.Breakdown, &r.PerItemBreakdown); err != nil {
			return r, fmt.Errorf("attempt %s: breakdown: %w", a.ID, err)
		}
	}
	if a.Submission != nil {
		r.Grade = a.Submission.Grade
		r.Feedback = a.Submission.Feedback
	}
	return r, nil
}
