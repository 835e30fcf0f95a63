package repository

import (
	"assessment_backend/internal/grading"
	"assessment_backend/internal/model"

	"gorm.io/gorm"
)

type ContentRepository struct {
	DB *gorm.DB
}

func NewContentRepository(db *gorm.DB) *ContentRepository {
	return &ContentRepository{DB: db}
}

// With returns a repository bound to db, usually a transaction.
func (r *ContentRepository) With(db *gorm.DB) *ContentRepository {
	return &ContentRepository{DB: db}
}

func (r *ContentRepository) Create(content *model.AssessableContent) error {
	return r.DB.Create(content).Error
}

func (r *ContentRepository) FindByID(id string) (*model.AssessableContent, error) {
	var c model.AssessableContent
	err := r.DB.Preload("Items", func(db *gorm.DB) *gorm.DB {
		return db.Order("position ASC, id ASC")
	}).First(&c, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// ReplaceItems swaps the content's items for items.
func (r *ContentRepository) ReplaceItems(contentID string, items []model.ContentItem) error {
	if err := r.DB.Where("content_id = ?", contentID).Delete(&model.ContentItem{}).Error; err != nil {
		return err
	}
	if len(items) == 0 {
		return nil
	}
	for i := range items {
		items[i].ID = 0
		items[i].ContentID = contentID
	}
	return r.DB.Create(&items).Error
}

func (r *ContentRepository) UpdateFields(content *model.AssessableContent) error {
	return r.DB.Model(content).Select(
		"Title", "MaxAttempts", "TimeLimitSeconds", "PassingScore", "AllowReplay",
		"ShowCorrectAnswers", "Instructions", "AllowedFileTypes", "MaxFileSizeMB",
	).Updates(content).Error
}

func (r *ContentRepository) List(kind grading.ContentKind, page, limit int) ([]model.AssessableContent, int64, error) {
	var (
		contents []model.AssessableContent
		total    int64
	)
	q := r.DB.Model(&model.AssessableContent{})
	if kind != "" {
		q = q.Where("kind = ?", kind)
	}
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	err := q.Order("created_at DESC").Offset((page - 1) * limit).Limit(limit).Find(&contents).Error
	return contents, total, err
}
