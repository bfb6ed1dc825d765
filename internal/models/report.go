package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type ReportReason string

const (
	ReasonSpam           ReportReason = "spam"
	ReasonHarassment     ReportReason = "harassment"
	ReasonInappropriate  ReportReason = "inappropriate"
	ReasonMisinformation ReportReason = "misinformation"
	ReasonOther          ReportReason = "other"
)

func (r ReportReason) Valid() bool {
	switch r {
	case ReasonSpam, ReasonHarassment, ReasonInappropriate, ReasonMisinformation, ReasonOther:
		return true
	}
	return false
}

type ReportStatus string

const (
	ReportPending   ReportStatus = "pending"
	ReportReviewed  ReportStatus = "reviewed"
	ReportResolved  ReportStatus = "resolved"
	ReportDismissed ReportStatus = "dismissed"
)

func (s ReportStatus) Valid() bool {
	switch s {
	case ReportPending, ReportReviewed, ReportResolved, ReportDismissed:
		return true
	}
	return false
}

func (s ReportStatus) Terminal() bool {
	return s == ReportResolved || s == ReportDismissed
}

// CanTransitionTo reports whether a report in status s may move to next.
// Statuses only move forward: pending -> reviewed -> resolved|dismissed,
// and pending may skip straight to a terminal state.
func (s ReportStatus) CanTransitionTo(next ReportStatus) bool {
	switch s {
	case ReportPending:
		return next == ReportReviewed || next == ReportResolved || next == ReportDismissed
	case ReportReviewed:
		return next == ReportResolved || next == ReportDismissed
	}
	return false
}

type Report struct {
	ID          uuid.UUID    `gorm:"type:uuid;primaryKey" json:"id"`
	ReporterID  uuid.UUID    `gorm:"type:uuid;not null;index" json:"reporter_id"`
	Reporter    Profile      `gorm:"foreignKey:ReporterID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"reporter"`
	CommentID   uuid.UUID    `gorm:"type:uuid;not null;index" json:"comment_id"`
	Comment     Comment      `gorm:"foreignKey:CommentID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"comment"`
	Reason      ReportReason `gorm:"size:20;not null" json:"reason"`
	Description *string      `gorm:"type:text" json:"description"`
	Status      ReportStatus `gorm:"size:20;not null;default:'pending';index" json:"status"`
	ReviewedBy  *uuid.UUID   `gorm:"type:uuid" json:"reviewed_by"`
	Reviewer    *Profile     `gorm:"foreignKey:ReviewedBy" json:"reviewer,omitempty"`
	ReviewedAt  *time.Time   `json:"reviewed_at"`
	CreatedAt   time.Time    `gorm:"index" json:"created_at"`
}

func (r *Report) BeforeCreate(tx *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}
