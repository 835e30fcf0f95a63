package model

import "time"

// Submission is the payload of an assignment attempt. Grade and Feedback are
// only set by manual grading.
type Submission struct {
	BaseModel
	AttemptID string     `gorm:"size:36;not null;uniqueIndex" json:"attemptId"`
	Text      string     `gorm:"type:text" json:"text,omitempty"`
	FileRef   string     `gorm:"size:500" json:"fileRef,omitempty"`
	FileName  string     `gorm:"size:255" json:"fileName,omitempty"`
	Grade     *float64   `json:"grade,omitempty"`
	Feedback  string     `gorm:"type:text" json:"feedback,omitempty"`
	GradedBy  string     `gorm:"size:64" json:"gradedBy,omitempty"`
	GradedAt  *time.Time `json:"gradedAt,omitempty"`
}

func (Submission) TableName() string {
	return "submissions"
}
