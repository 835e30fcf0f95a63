package model

import (
	"encoding/json"

	"assessment_backend/internal/grading"

	"gorm.io/datatypes"
)

// AssessableContent is a quiz, an assignment or an interactive activity.
type AssessableContent struct {
	UUIDBase
	Title              string              `gorm:"size:200;not null" json:"title"`
	Kind               grading.ContentKind `gorm:"size:20;not null;index" json:"kind"`
	MaxAttempts        int                 `gorm:"not null;default:1" json:"maxAttempts"`
	TimeLimitSeconds   *int                `json:"timeLimitSeconds,omitempty"`
	PassingScore       *float64            `json:"passingScore,omitempty"`
	AllowReplay        bool                `gorm:"default:false" json:"allowReplay"`
	ShowCorrectAnswers bool                `gorm:"default:false" json:"showCorrectAnswers"`
	CreatedBy          string              `gorm:"size:64" json:"createdBy,omitempty"`

	// 作业专用
	Instructions     string                      `gorm:"type:text" json:"instructions,omitempty"`
	AllowedFileTypes datatypes.JSONSlice[string] `json:"allowedFileTypes,omitempty"`
	MaxFileSizeMB    int                         `gorm:"default:0" json:"maxFileSizeMB,omitempty"`

	Items []ContentItem `gorm:"foreignKey:ContentID;constraint:OnDelete:CASCADE" json:"items,omitempty"`
}

func (AssessableContent) TableName() string {
	return "assessable_contents"
}

func (c *AssessableContent) Config() grading.ContentConfig {
	return grading.ContentConfig{
		MaxAttempts:        c.MaxAttempts,
		TimeLimitSeconds:   c.TimeLimitSeconds,
		PassingScore:       c.PassingScore,
		AllowReplay:        c.AllowReplay,
		ShowCorrectAnswers: c.ShowCorrectAnswers,
	}
}

// GradingItems returns the items in position order. Items must be loaded sorted.
func (c *AssessableContent) GradingItems() []grading.Item {
	out := make([]grading.Item, len(c.Items))
	for i, it := range c.Items {
		out[i] = it.GradingItem()
	}
	return out
}

func (c *AssessableContent) Signature() grading.Signature {
	return grading.Signature{
		Kind:   c.Kind,
		Config: c.Config(),
		Items:  c.GradingItems(),
	}
}

// ContentItem stores one item; Spec holds its correct-answer specification.
type ContentItem struct {
	ID        uint             `gorm:"primaryKey;autoIncrement" json:"-"`
	ContentID string           `gorm:"size:36;not null;uniqueIndex:idx_content_item,priority:1" json:"-"`
	ItemID    string           `gorm:"size:64;not null;uniqueIndex:idx_content_item,priority:2" json:"id"`
	Position  int              `gorm:"not null;default:0" json:"position"`
	Type      grading.ItemType `gorm:"size:32;not null" json:"type"`
	Points    float64          `gorm:"not null;default:1" json:"points"`
	Prompt    string           `gorm:"type:text" json:"prompt,omitempty"`
	Spec      datatypes.JSON   `json:"spec,omitempty"`
}

func (ContentItem) TableName() string {
	return "content_items"
}

func (it ContentItem) GradingItem() grading.Item {
	return grading.Item{
		ID:     it.ItemID,
		Type:   it.Type,
		Points: it.Points,
		Prompt: it.Prompt,
		Spec:   json.RawMessage(it.Spec),
	}
}
