package service

import (
	"assessment_backend/internal/grading"
	"assessment_backend/internal/model"
	"assessment_backend/internal/repository"
	"assessment_backend/internal/util"
	"assessment_backend/pkg/logger"
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type ContentService struct {
	ContentRepo *repository.ContentRepository
	Registry    *grading.Registry
	DB          *gorm.DB
}

func NewContentService(db *gorm.DB, contentRepo *repository.ContentRepository, registry *grading.Registry) *ContentService {
	return &ContentService{ContentRepo: contentRepo, Registry: registry, DB: db}
}

type ItemInput struct {
	ID     string           `json:"id" binding:"required"`
	Type   grading.ItemType `json:"type" binding:"required,itemtype"`
	Points *float64         `json:"points"`
	Prompt string           `json:"prompt"`
	Spec   json.RawMessage  `json:"spec"`
}

type ContentInput struct {
	Title              string              `json:"title" binding:"required,max=200"`
	Kind               grading.ContentKind `json:"kind" binding:"required,contentkind"`
	MaxAttempts        int                 `json:"maxAttempts" binding:"omitempty,min=1"`
	TimeLimitSeconds   *int                `json:"timeLimitSeconds" binding:"omitempty,min=1"`
	PassingScore       *float64            `json:"passingScore" binding:"omitempty,min=0,max=100"`
	AllowReplay        bool                `json:"allowReplay"`
	ShowCorrectAnswers bool                `json:"showCorrectAnswers"`
	Instructions       string              `json:"instructions"`
	AllowedFileTypes   []string            `json:"allowedFileTypes"`
	MaxFileSizeMB      int                 `json:"maxFileSizeMB" binding:"omitempty,min=1"`
	Items              []ItemInput         `json:"items" binding:"dive"`
}

func (in *ContentInput) items() []model.ContentItem {
	out := make([]model.ContentItem, len(in.Items))
	for i, it := range in.Items {
		points := 1.0
		if it.Points != nil {
			points = *it.Points
		}
		out[i] = model.ContentItem{
			ItemID:   it.ID,
			Position: i,
			Type:     it.Type,
			Points:   points,
			Prompt:   it.Prompt,
			Spec:     datatypes.JSON(it.Spec),
		}
	}
	return out
}

func (s *ContentService) validate(in *ContentInput, items []model.ContentItem) error {
	if !in.Kind.Valid() {
		return fmt.Errorf("%w: unknown kind %q", util.ErrInvalidContent, in.Kind)
	}
	if in.MaxAttempts < 0 {
		return fmt.Errorf("%w: maxAttempts must be at least 1", util.ErrInvalidContent)
	}
	if in.PassingScore != nil && (*in.PassingScore < 0 || *in.PassingScore > 100) {
		return fmt.Errorf("%w: passingScore must be within 0..100", util.ErrInvalidContent)
	}
	if in.TimeLimitSeconds != nil && *in.TimeLimitSeconds <= 0 {
		return fmt.Errorf("%w: timeLimitSeconds must be positive", util.ErrInvalidContent)
	}
	// 0 分题目会被当作默认 1 分，作者必须给正数或省略
	for _, it := range in.Items {
		if it.Points != nil && *it.Points <= 0 {
			return fmt.Errorf("%w: item %s: points must be positive", util.ErrInvalidContent, it.ID)
		}
	}
	gi := make([]grading.Item, len(items))
	for i, it := range items {
		gi[i] = it.GradingItem()
	}
	if err := s.Registry.ValidateItems(in.Kind, gi); err != nil {
		return fmt.Errorf("%w: %v", util.ErrInvalidContent, err)
	}
	return nil
}

func (s *ContentService) CreateContent(ctx context.Context, in *ContentInput, createdBy string) (*model.AssessableContent, error) {
	items := in.items()
	if err := s.validate(in, items); err != nil {
		return nil, err
	}
	maxAttempts := in.MaxAttempts
	if maxAttempts == 0 {
		maxAttempts = 1
	}
	content := &model.AssessableContent{
		Title:              in.Title,
		Kind:               in.Kind,
		MaxAttempts:        maxAttempts,
		TimeLimitSeconds:   in.TimeLimitSeconds,
		PassingScore:       in.PassingScore,
		AllowReplay:        in.AllowReplay,
		ShowCorrectAnswers: in.ShowCorrectAnswers,
		CreatedBy:          createdBy,
		Instructions:       in.Instructions,
		AllowedFileTypes:   datatypes.JSONSlice[string](in.AllowedFileTypes),
		MaxFileSizeMB:      in.MaxFileSizeMB,
		Items:              items,
	}
	if err := s.ContentRepo.With(s.DB.WithContext(ctx)).Create(content); err != nil {
		return nil, util.Persist("create content", err)
	}
	logger.Log.Info("content created",
		zap.String("content_id", content.ID),
		zap.String("kind", string(content.Kind)),
		zap.Int("items", len(items)),
	)
	return content, nil
}

// UpdateContent replaces the content's settings and items. Attempts already
// started keep grading against the signature captured at start.
func (s *ContentService) UpdateContent(ctx context.Context, id string, in *ContentInput) (*model.AssessableContent, error) {
	db := s.DB.WithContext(ctx)
	content, err := s.ContentRepo.With(db).FindByID(id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, util.ErrContentNotFound
		}
		return nil, util.Persist("load content", err)
	}
	if in.Kind != content.Kind {
		return nil, fmt.Errorf("%w: kind cannot change", util.ErrInvalidContent)
	}
	items := in.items()
	if err := s.validate(in, items); err != nil {
		return nil, err
	}

	content.Title = in.Title
	if in.MaxAttempts > 0 {
		content.MaxAttempts = in.MaxAttempts
	}
	content.TimeLimitSeconds = in.TimeLimitSeconds
	content.PassingScore = in.PassingScore
	content.AllowReplay = in.AllowReplay
	content.ShowCorrectAnswers = in.ShowCorrectAnswers
	content.Instructions = in.Instructions
	content.AllowedFileTypes = datatypes.JSONSlice[string](in.AllowedFileTypes)
	content.MaxFileSizeMB = in.MaxFileSizeMB

	err = db.Transaction(func(tx *gorm.DB) error {
		repo := s.ContentRepo.With(tx)
		if err := repo.UpdateFields(content); err != nil {
			return err
		}
		return repo.ReplaceItems(content.ID, items)
	})
	if err != nil {
		return nil, util.Persist("update content", err)
	}
	logger.Log.Info("content updated", zap.String("content_id", id))
	return s.GetContent(ctx, id)
}

func (s *ContentService) GetContent(ctx context.Context, id string) (*model.AssessableContent, error) {
	content, err := s.ContentRepo.With(s.DB.WithContext(ctx)).FindByID(id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, util.ErrContentNotFound
		}
		return nil, util.Persist("load content", err)
	}
	return content, nil
}

// LearnerView returns the content with answer keys stripped from every item.
func (s *ContentService) LearnerView(ctx context.Context, id string) (*model.AssessableContent, error) {
	content, err := s.GetContent(ctx, id)
	if err != nil {
		return nil, err
	}
	for i, it := range content.Items {
		red, err := grading.Redact(it.GradingItem())
		if err != nil {
			logger.Log.Warn("failed to redact item", zap.String("content_id", id), zap.String("item_id", it.ItemID), zap.Error(err))
			red.Spec = nil
		}
		content.Items[i].Spec = datatypes.JSON(red.Spec)
	}
	return content, nil
}

func (s *ContentService) ListContents(ctx context.Context, kind grading.ContentKind, page, limit int) ([]model.AssessableContent, int64, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}
	contents, total, err := s.ContentRepo.With(s.DB.WithContext(ctx)).List(kind, page, limit)
	if err != nil {
		return nil, 0, util.Persist("list contents", err)
	}
	return contents, total, nil
}
