package repository

import (
	"assessment_backend/internal/model"
	"errors"
	"time"

	"gorm.io/gorm"
)

type SubmissionRepository struct {
	DB *gorm.DB
}

func NewSubmissionRepository(db *gorm.DB) *SubmissionRepository {
	return &SubmissionRepository{DB: db}
}

func (r *SubmissionRepository) With(db *gorm.DB) *SubmissionRepository {
	return &SubmissionRepository{DB: db}
}

func (r *SubmissionRepository) FindByAttempt(attemptID string) (*model.Submission, error) {
	var s model.Submission
	if err := r.DB.Where("attempt_id = ?", attemptID).First(&s).Error; err != nil {
		return nil, err
	}
	return &s, nil
}

// Upsert stores the text and file reference of an attempt. Empty values keep
// what was stored before.
func (r *SubmissionRepository) Upsert(attemptID, text, fileRef, fileName string) (*model.Submission, error) {
	existing, err := r.FindByAttempt(attemptID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		s := &model.Submission{AttemptID: attemptID, Text: text, FileRef: fileRef, FileName: fileName}
		return s, r.DB.Create(s).Error
	}
	if err != nil {
		return nil, err
	}
	if text != "" {
		existing.Text = text
	}
	if fileRef != "" {
		existing.FileRef = fileRef
		existing.FileName = fileName
	}
	return existing, r.DB.Model(existing).Select("Text", "FileRef", "FileName").Updates(existing).Error
}

func (r *SubmissionRepository) Grade(attemptID string, grade float64, feedback, graderID string, at time.Time) error {
	return r.DB.Model(&model.Submission{}).
		Where("attempt_id = ?", attemptID).
		Updates(map[string]interface{}{
			"grade":     grade,
			"feedback":  feedback,
			"graded_by": graderID,
			"graded_at": at,
		}).Error
}
