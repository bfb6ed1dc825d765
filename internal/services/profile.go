package services

import (
	"context"
	"errors"
	"fmt"

	"zynexhub/internal/db"
	"zynexhub/internal/logging"
	"zynexhub/internal/models"
	"zynexhub/internal/utils"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

type ProfileService struct {
	db *gorm.DB
}

// Claims is the identity the auth middleware extracted from a verified token.
type Claims struct {
	Subject     uuid.UUID
	Username    string
	DisplayName string
	Role        models.Role
}

// EnsureProfile returns the caller's profile, creating it on first sight.
// The role always follows the token, which is the source of truth for it.
func (s *ProfileService) EnsureProfile(ctx context.Context, c Claims) (*models.Profile, error) {
	const op = "services.ProfileService.EnsureProfile"

	if c.Subject == uuid.Nil {
		return nil, invalid(op, "empty subject")
	}
	if !c.Role.Valid() {
		c.Role = models.RoleUser
	}

	var p models.Profile
	err := s.db.WithContext(ctx).First(&p, "id = ?", c.Subject).Error
	if err == nil {
		if p.Role != c.Role {
			if err := s.db.WithContext(ctx).Model(&p).Update("role", c.Role).Error; err != nil {
				return nil, wrapDB(op, err)
			}
		}
		return &p, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, wrapDB(op, err)
	}

	username := utils.NormalizeUsername(c.Username)
	if username == "" {
		username = utils.FallbackUsername(c.Subject)
	}
	displayName := c.DisplayName
	if displayName == "" {
		displayName = username
	}
	p = models.Profile{
		ID:          c.Subject,
		Username:    username,
		DisplayName: displayName,
		Role:        c.Role,
		Status:      models.StatusActive,
	}

	err = s.db.WithContext(ctx).Create(&p).Error
	if db.IsDuplicate(err) {
		// either the username is taken or a concurrent request created the row
		var existing models.Profile
		if s.db.WithContext(ctx).First(&existing, "id = ?", c.Subject).Error == nil {
			return &existing, nil
		}
		p.Username = utils.FallbackUsername(c.Subject)
		err = s.db.WithContext(ctx).Create(&p).Error
	}
	if err != nil {
		return nil, wrapDB(op, err)
	}

	logging.From(ctx).WithFields(logrus.Fields{
		"op":       op,
		"user_id":  p.ID,
		"username": p.Username,
	}).Info("profile provisioned")
	return &p, nil
}

func (s *ProfileService) Get(ctx context.Context, id uuid.UUID) (*models.Profile, error) {
	const op = "services.ProfileService.Get"

	var p models.Profile
	if err := s.db.WithContext(ctx).First(&p, "id = ?", id).Error; err != nil {
		return nil, wrapDB(op, err)
	}
	return &p, nil
}

// requireWriter loads the acting profile and checks it may create content.
func requireWriter(tx *gorm.DB, op string, id uuid.UUID) (*models.Profile, error) {
	var p models.Profile
	if err := tx.First(&p, "id = ?", id).Error; err != nil {
		return nil, wrapDB(op, err)
	}
	if !p.Status.CanWrite() {
		return nil, fmt.Errorf("%s: %w: account is %s", op, ErrForbidden, p.Status)
	}
	return &p, nil
}
