package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Placeholders written over the content of a soft-deleted comment.
const (
	DeletedPlaceholder = "[deleted]"
	RemovedPlaceholder = "[removed by moderator]"
)

type Comment struct {
	ID         uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	PostID     uuid.UUID  `gorm:"type:uuid;not null;index" json:"post_id"`
	ParentID   *uuid.UUID `gorm:"type:uuid;index" json:"parent_id"` // Nullable for top-level comments
	UserID     uuid.UUID  `gorm:"type:uuid;not null;index" json:"user_id"`
	Author     Profile    `gorm:"foreignKey:UserID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"author"`
	Content    string     `gorm:"type:text;not null" json:"content"`
	VotesCount int        `gorm:"not null;default:0" json:"votes_count"`
	IsEdited   bool       `gorm:"not null;default:false" json:"is_edited"`
	EditCount  int        `gorm:"not null;default:0" json:"edit_count"`
	IsDeleted  bool       `gorm:"not null;default:false;index" json:"is_deleted"`
	CreatedAt  time.Time  `gorm:"index" json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

func (c *Comment) BeforeCreate(tx *gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}
