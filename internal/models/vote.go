package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type VoteType string

const (
	VoteUp   VoteType = "upvote"
	VoteDown VoteType = "downvote"
)

// ParseVoteType accepts both the short ("up") and stored ("upvote") spellings.
func ParseVoteType(s string) (VoteType, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "up", "upvote":
		return VoteUp, true
	case "down", "downvote":
		return VoteDown, true
	}
	return "", false
}

// Weight is the contribution of a single vote to the net count.
func (v VoteType) Weight() int {
	switch v {
	case VoteUp:
		return 1
	case VoteDown:
		return -1
	}
	return 0
}

// Vote is unique per (user, comment); the composite index enforces it.
type Vote struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	UserID    uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_vote_user_comment" json:"user_id"`
	CommentID uuid.UUID `gorm:"type:uuid;not null;index;uniqueIndex:idx_vote_user_comment" json:"comment_id"`
	VoteType  VoteType  `gorm:"size:10;not null" json:"vote_type"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (v *Vote) BeforeCreate(tx *gorm.DB) error {
	if v.ID == uuid.Nil {
		v.ID = uuid.New()
	}
	return nil
}
