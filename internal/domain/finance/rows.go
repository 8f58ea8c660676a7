package finance

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// RawProfileRow stores one upstream document per user.
type RawProfileRow struct {
	ID        uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	UserID    string         `gorm:"column:user_id;not null;uniqueIndex" json:"user_id"`
	Doc       datatypes.JSON `gorm:"column:doc;type:jsonb;not null" json:"doc"`
	CreatedAt time.Time      `gorm:"not null;index" json:"created_at"`
}

func (RawProfileRow) TableName() string { return "raw_profiles" }

// FinanceProfileRow keeps the validated profile document with the pattern
// summary in its own column so analysis never rewrites the document.
type FinanceProfileRow struct {
	ID             uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	UserID         string         `gorm:"column:user_id;not null;uniqueIndex" json:"user_id"`
	ProfileDoc     datatypes.JSON `gorm:"column:profile_doc;type:jsonb;not null" json:"profile_doc"`
	FoundedPattern string         `gorm:"column:founded_pattern;type:text;not null;default:''" json:"founded_pattern"`
	CreatedAt      time.Time      `gorm:"not null" json:"created_at"`
	UpdatedAt      time.Time      `gorm:"not null;index" json:"updated_at"`
}

func (FinanceProfileRow) TableName() string { return "finance_profiles" }

// SuggestionEntryRow is one element of a user's suggestion history.
type SuggestionEntryRow struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	UserID    string    `gorm:"column:user_id;not null;index:idx_suggestion_user_created,priority:1" json:"user_id"`
	Text      string    `gorm:"column:text;type:text;not null" json:"text"`
	CreatedAt time.Time `gorm:"not null;index:idx_suggestion_user_created,priority:2" json:"created_at"`
}

func (SuggestionEntryRow) TableName() string { return "suggestion_history" }

func (r *RawProfileRow) BeforeCreate(tx *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}

func (r *FinanceProfileRow) BeforeCreate(tx *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}

func (r *SuggestionEntryRow) BeforeCreate(tx *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}
