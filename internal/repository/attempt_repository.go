package repository

import (
	"assessment_backend/internal/grading"
	"assessment_backend/internal/model"
	"time"

	"gorm.io/gorm"
)

type AttemptRepository struct {
	DB *gorm.DB
}

func NewAttemptRepository(db *gorm.DB) *AttemptRepository {
	return &AttemptRepository{DB: db}
}

func (r *AttemptRepository) With(db *gorm.DB) *AttemptRepository {
	return &AttemptRepository{DB: db}
}

func (r *AttemptRepository) Create(attempt *model.Attempt) error {
	return r.DB.Create(attempt).Error
}

func (r *AttemptRepository) FindByID(id string) (*model.Attempt, error) {
	var a model.Attempt
	if err := r.DB.Preload("Submission").First(&a, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *AttemptRepository) CountByUserAndContent(userID, contentID string) (int64, error) {
	var count int64
	err := r.DB.Model(&model.Attempt{}).
		Where("user_id = ? AND content_id = ?", userID, contentID).
		Count(&count).Error
	return count, err
}

// HasPassed reports whether any attempt of the user on the content passed.
func (r *AttemptRepository) HasPassed(userID, contentID string) (bool, error) {
	var count int64
	err := r.DB.Model(&model.Attempt{}).
		Where("user_id = ? AND content_id = ? AND passed = ?", userID, contentID, true).
		Count(&count).Error
	return count > 0, err
}

// ListByUserAndContent returns attempts newest first.
func (r *AttemptRepository) ListByUserAndContent(userID, contentID string) ([]model.Attempt, error) {
	var attempts []model.Attempt
	err := r.DB.Preload("Submission").
		Where("user_id = ? AND content_id = ?", userID, contentID).
		Order("attempt_number DESC").
		Find(&attempts).Error
	return attempts, err
}

// Transition applies fields only while the attempt is in one of the from
// states. It reports whether the row was updated.
func (r *AttemptRepository) Transition(id string, from []grading.Status, fields map[string]interface{}) (bool, error) {
	res := r.DB.Model(&model.Attempt{}).
		Where("id = ? AND status IN ?", id, from).
		Updates(fields)
	return res.RowsAffected == 1, res.Error
}

// ListOverdue returns in-progress attempts whose deadline has passed.
func (r *AttemptRepository) ListOverdue(now time.Time, limit int) ([]string, error) {
	var ids []string
	err := r.DB.Model(&model.Attempt{}).
		Where("status = ? AND deadline_at IS NOT NULL AND deadline_at <= ?", grading.StatusInProgress, now).
		Order("deadline_at ASC").
		Limit(limit).
		Pluck("id", &ids).Error
	return ids, err
}

// ListPendingGrading returns assignment attempts awaiting a grade, oldest first.
func (r *AttemptRepository) ListPendingGrading(contentID string) ([]model.Attempt, error) {
	var attempts []model.Attempt
	err := r.DB.Preload("Submission").
		Where("content_id = ? AND kind = ? AND status IN ?", contentID, grading.KindAssignment,
			[]grading.Status{grading.StatusSubmitted, grading.StatusExpired}).
		Order("submitted_at ASC").
		Find(&attempts).Error
	return attempts, err
}

type AttemptStats struct {
	Attempts     int64    `json:"attempts"`
	Learners     int64    `json:"learners"`
	Scored       int64    `json:"scored"`
	AverageScore *float64 `json:"averageScore"`
	PassCount    int64    `json:"passCount"`
}

func (r *AttemptRepository) Stats(contentID string) (*AttemptStats, error) {
	var s AttemptStats
	base := func() *gorm.DB {
		return r.DB.Model(&model.Attempt{}).Where("content_id = ?", contentID)
	}
	if err := base().Count(&s.Attempts).Error; err != nil {
		return nil, err
	}
	if err := base().Distinct("user_id").Count(&s.Learners).Error; err != nil {
		return nil, err
	}
	if err := base().Where("score IS NOT NULL").Count(&s.Scored).Error; err != nil {
		return nil, err
	}
	if err := base().Where("passed = ?", true).Count(&s.PassCount).Error; err != nil {
		return nil, err
	}
	if s.Scored > 0 {
		var avg float64
		if err := base().Where("score IS NOT NULL").Select("AVG(score)").Scan(&avg).Error; err != nil {
			return nil, err
		}
		s.AverageScore = &avg
	}
	return &s, nil
}
