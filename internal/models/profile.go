package models

import (
	"time"

	"github.com/google/uuid"
)

type Role string

const (
	RoleUser      Role = "user"
	RoleModerator Role = "moderator"
	RoleAdmin     Role = "admin"
)

func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleModerator, RoleAdmin:
		return true
	}
	return false
}

// IsModerator reports whether the role may moderate other users' content.
func (r Role) IsModerator() bool {
	return r == RoleModerator || r == RoleAdmin
}

type ProfileStatus string

const (
	StatusActive    ProfileStatus = "active"
	StatusSuspended ProfileStatus = "suspended"
	StatusBanned    ProfileStatus = "banned"
)

func (s ProfileStatus) Valid() bool {
	switch s {
	case StatusActive, StatusSuspended, StatusBanned:
		return true
	}
	return false
}

// CanWrite 禁言/封禁用户只读
func (s ProfileStatus) CanWrite() bool {
	return s == "" || s == StatusActive
}

// Profile is the public summary of an account. The ID is the subject issued
// by the external auth provider.
type Profile struct {
	ID          uuid.UUID     `gorm:"type:uuid;primaryKey" json:"id"`
	Username    string        `gorm:"size:50;uniqueIndex;not null" json:"username"`
	DisplayName string        `gorm:"size:100" json:"display_name"`
	AvatarURL   string        `json:"avatar_url"`
	Role        Role          `gorm:"size:20;default:'user';not null" json:"role"`
	Status      ProfileStatus `gorm:"size:20;default:'active';not null" json:"status"`
	CreatedAt   time.Time     `json:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at"`
}

// Caller is the verified identity attached to a request.
type Caller struct {
	ID   uuid.UUID
	Role Role
}

func (c Caller) IsModerator() bool {
	return c.Role.IsModerator()
}
