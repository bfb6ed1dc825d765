package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type NotificationType string

const (
	NotificationTypeReplyComment NotificationType = "comment_reply"
	NotificationTypeMention      NotificationType = "comment_mention"
	NotificationTypeCommentPost  NotificationType = "post_comment"
	NotificationTypeReport       NotificationType = "comment_report" // 举报通知
	NotificationTypeSystem       NotificationType = "system"
)

type Notification struct {
	ID        uuid.UUID        `gorm:"type:uuid;primaryKey" json:"id"`
	UserID    uuid.UUID        `gorm:"type:uuid;not null;index" json:"user_id"` // Receiver
	ActorID   *uuid.UUID       `gorm:"type:uuid;index" json:"actor_id"`         // Sender
	Actor     *Profile         `gorm:"foreignKey:ActorID" json:"actor,omitempty"`
	Type      NotificationType `gorm:"size:20;not null" json:"type"`
	Title     string           `gorm:"size:200;not null" json:"title"`
	Message   string           `gorm:"type:text" json:"message"`
	Data      map[string]any   `gorm:"type:text;serializer:json" json:"data"`
	IsRead    bool             `gorm:"not null;default:false;index" json:"read"`
	CreatedAt time.Time        `gorm:"index" json:"created_at"`
}

func (n *Notification) BeforeCreate(tx *gorm.DB) error {
	if n.ID == uuid.Nil {
		n.ID = uuid.New()
	}
	return nil
}
