package services

import (
	"context"
	"fmt"

	"zynexhub/internal/config"
	"zynexhub/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type NotificationService struct {
	db     *gorm.DB
	limits config.LimitsConfig
}

// List returns the caller's notifications, newest first.
func (s *NotificationService) List(ctx context.Context, caller models.Caller, unreadOnly bool, limit int) ([]models.Notification, error) {
	const op = "services.NotificationService.List"

	if limit <= 0 || limit > s.limits.NotificationsMax {
		limit = s.limits.NotificationsMax
	}

	query := s.db.WithContext(ctx).Preload("Actor").
		Where("user_id = ?", caller.ID).
		Order("created_at DESC").
		Limit(limit)
	if unreadOnly {
		query = query.Where("is_read = ?", false)
	}

	var out []models.Notification
	if err := query.Find(&out).Error; err != nil {
		return nil, wrapDB(op, err)
	}
	return out, nil
}

func (s *NotificationService) UnreadCount(ctx context.Context, caller models.Caller) (int64, error) {
	const op = "services.NotificationService.UnreadCount"

	var count int64
	err := s.db.WithContext(ctx).Model(&models.Notification{}).
		Where("user_id = ? AND is_read = ?", caller.ID, false).
		Count(&count).Error
	if err != nil {
		return 0, wrapDB(op, err)
	}
	return count, nil
}

// MarkRead marks one of the caller's notifications read. Notifications of
// other users are reported as not found.
func (s *NotificationService) MarkRead(ctx context.Context, caller models.Caller, id uuid.UUID) error {
	const op = "services.NotificationService.MarkRead"

	res := s.db.WithContext(ctx).Model(&models.Notification{}).
		Where("id = ? AND user_id = ?", id, caller.ID).
		Update("is_read", true)
	if res.Error != nil {
		return wrapDB(op, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%s: %w", op, ErrNotFound)
	}
	return nil
}

// MarkAllRead returns how many notifications changed.
func (s *NotificationService) MarkAllRead(ctx context.Context, caller models.Caller) (int64, error) {
	const op = "services.NotificationService.MarkAllRead"

	res := s.db.WithContext(ctx).Model(&models.Notification{}).
		Where("user_id = ? AND is_read = ?", caller.ID, false).
		Update("is_read", true)
	if res.Error != nil {
		return 0, wrapDB(op, res.Error)
	}
	return res.RowsAffected, nil
}

func (s *NotificationService) Delete(ctx context.Context, caller models.Caller, id uuid.UUID) error {
	const op = "services.NotificationService.Delete"

	res := s.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", id, caller.ID).
		Delete(&models.Notification{})
	if res.Error != nil {
		return wrapDB(op, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%s: %w", op, ErrNotFound)
	}
	return nil
}
