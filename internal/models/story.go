package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Story is a short-lived media post, hidden once ExpiresAt has passed.
type Story struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	UserID    uuid.UUID `gorm:"type:uuid;not null;index" json:"user_id"`
	Author    Profile   `gorm:"foreignKey:UserID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"author"`
	MediaURL  string    `gorm:"not null" json:"media_url"`
	Caption   *string   `gorm:"size:500" json:"caption"`
	ExpiresAt time.Time `gorm:"index;not null" json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
}

func (s *Story) BeforeCreate(tx *gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}

// StoryView 记录谁看过哪条 story, 每人每条一次
type StoryView struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	StoryID   uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_story_viewer" json:"story_id"`
	ViewerID  uuid.UUID `gorm:"type:uuid;not null;index;uniqueIndex:idx_story_viewer" json:"viewer_id"`
	CreatedAt time.Time `json:"created_at"`
}

func (v *StoryView) BeforeCreate(tx *gorm.DB) error {
	if v.ID == uuid.Nil {
		v.ID = uuid.New()
	}
	return nil
}
