package services

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"zynexhub/internal/logging"
	"zynexhub/internal/metrics"
	"zynexhub/internal/models"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

const (
	reportDescriptionMax = 1000
	reportsPageDefault   = 50
	reportsPageMax       = 200
	bulkRemoveMax        = 100
)

type ModerationService struct {
	db       *gorm.DB
	comments *CommentService
	notifier *Notifier
	metrics  *metrics.Metrics
}

type UserStats struct {
	UserID          uuid.UUID            `json:"user_id"`
	Status          models.ProfileStatus `json:"status"`
	CommentCount    int64                `json:"comment_count"`
	DeletedComments int64                `json:"deleted_comment_count"`
	ReportCount     int64                `json:"report_count"`
	ReportsAgainst  int64                `json:"reports_against_count"`
}

func requireModerator(op string, caller models.Caller) error {
	if !caller.IsModerator() {
		return fmt.Errorf("%s: %w: moderator role required", op, ErrForbidden)
	}
	return nil
}

// Submit files a report against a comment. A reporter may hold only one
// open (pending or reviewed) report per comment.
func (s *ModerationService) Submit(ctx context.Context, caller models.Caller, commentID uuid.UUID, reason models.ReportReason, description string) (*models.Report, error) {
	const op = "services.ModerationService.Submit"

	if !reason.Valid() {
		return nil, invalid(op, "unknown report reason")
	}
	description = strings.TrimSpace(description)
	if utf8.RuneCountInString(description) > reportDescriptionMax {
		return nil, invalid(op, fmt.Sprintf("description exceeds %d characters", reportDescriptionMax))
	}

	report := models.Report{
		ReporterID: caller.ID,
		CommentID:  commentID,
		Reason:     reason,
		Status:     models.ReportPending,
	}
	if description != "" {
		report.Description = &description
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := requireWriter(tx, op, caller.ID); err != nil {
			return err
		}
		var comment models.Comment
		if err := tx.Select("id").First(&comment, "id = ?", commentID).Error; err != nil {
			return wrapDB(op, err)
		}
		var open int64
		err := tx.Model(&models.Report{}).
			Where("reporter_id = ? AND comment_id = ? AND status IN ?", caller.ID, commentID,
				[]models.ReportStatus{models.ReportPending, models.ReportReviewed}).
			Count(&open).Error
		if err != nil {
			return err
		}
		if open > 0 {
			return fmt.Errorf("%s: %w: comment already reported", op, ErrConflict)
		}
		return tx.Create(&report).Error
	})
	if err != nil {
		return nil, wrapDB(op, err)
	}

	s.metrics.ReportFiled(string(reason))
	s.notifyModerators(ctx, caller, &report)
	return &report, nil
}

// 向所有管理员和版主发送举报通知
func (s *ModerationService) notifyModerators(ctx context.Context, caller models.Caller, r *models.Report) {
	var mods []models.Profile
	err := s.db.WithContext(ctx).Select("id").
		Where("role IN ? AND id <> ?", []models.Role{models.RoleModerator, models.RoleAdmin}, caller.ID).
		Find(&mods).Error
	if err != nil {
		logging.From(ctx).WithError(err).Warn("failed to load moderators for report notification")
		return
	}

	out := make([]models.Notification, 0, len(mods))
	for _, m := range mods {
		out = append(out, models.Notification{
			UserID:  m.ID,
			ActorID: &r.ReporterID,
			Type:    models.NotificationTypeReport,
			Title:   "New comment report",
			Message: fmt.Sprintf("A comment was reported for %s", r.Reason),
			Data: map[string]any{
				"report_id":  r.ID.String(),
				"comment_id": r.CommentID.String(),
				"reason":     string(r.Reason),
			},
		})
	}
	s.notifier.Enqueue(out...)
}

// ListReports returns reports newest first, optionally filtered by status.
func (s *ModerationService) ListReports(ctx context.Context, caller models.Caller, status models.ReportStatus, limit int) ([]models.Report, error) {
	const op = "services.ModerationService.ListReports"

	if err := requireModerator(op, caller); err != nil {
		return nil, err
	}
	if status != "" && !status.Valid() {
		return nil, invalid(op, "unknown report status")
	}
	if limit <= 0 {
		limit = reportsPageDefault
	}
	if limit > reportsPageMax {
		limit = reportsPageMax
	}

	query := s.db.WithContext(ctx).
		Preload("Reporter").
		Preload("Reviewer").
		Preload("Comment").
		Preload("Comment.Author").
		Order("created_at DESC").
		Limit(limit)
	if status != "" {
		query = query.Where("status = ?", status)
	}

	var reports []models.Report
	if err := query.Find(&reports).Error; err != nil {
		return nil, wrapDB(op, err)
	}
	return reports, nil
}

// UpdateReportStatus moves a report forward through its review states.
func (s *ModerationService) UpdateReportStatus(ctx context.Context, caller models.Caller, id uuid.UUID, next models.ReportStatus) (*models.Report, error) {
	const op = "services.ModerationService.UpdateReportStatus"

	if err := requireModerator(op, caller); err != nil {
		return nil, err
	}
	if !next.Valid() {
		return nil, invalid(op, "unknown report status")
	}

	var report models.Report
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(lockForUpdate).First(&report, "id = ?", id).Error; err != nil {
			return err
		}
		if !report.Status.CanTransitionTo(next) {
			return fmt.Errorf("%s: %w: %s -> %s", op, ErrInvalidTransition, report.Status, next)
		}
		now := time.Now()
		err := tx.Model(&report).Updates(map[string]any{
			"status":      next,
			"reviewed_by": caller.ID,
			"reviewed_at": now,
		}).Error
		if err != nil {
			return err
		}
		return tx.Preload("Reporter").Preload("Reviewer").First(&report, "id = ?", id).Error
	})
	if err != nil {
		return nil, wrapDB(op, err)
	}

	logging.From(ctx).WithFields(logrus.Fields{
		"op":        op,
		"report_id": id,
		"status":    next,
	}).Info("report status changed")
	return &report, nil
}

// RemoveComments soft-deletes every listed comment as a moderator removal and
// returns how many were actually changed. Already deleted or unknown ids are
// skipped.
func (s *ModerationService) RemoveComments(ctx context.Context, caller models.Caller, ids []uuid.UUID) (int, error) {
	const op = "services.ModerationService.RemoveComments"

	if err := requireModerator(op, caller); err != nil {
		return 0, err
	}
	if len(ids) == 0 {
		return 0, invalid(op, "no comment ids")
	}
	if len(ids) > bulkRemoveMax {
		return 0, invalid(op, fmt.Sprintf("at most %d comments per request", bulkRemoveMax))
	}

	var targets []models.Comment
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Clauses(lockForUpdate).Select("id", "post_id").
			Where("id IN ? AND is_deleted = ?", ids, false).
			Find(&targets).Error
		if err != nil || len(targets) == 0 {
			return err
		}
		live := make([]uuid.UUID, len(targets))
		for i, c := range targets {
			live[i] = c.ID
		}
		return tx.Model(&models.Comment{}).Where("id IN ?", live).Updates(map[string]any{
			"content":    models.RemovedPlaceholder,
			"is_deleted": true,
		}).Error
	})
	if err != nil {
		return 0, wrapDB(op, err)
	}

	posts := make(map[uuid.UUID]bool)
	for _, c := range targets {
		posts[c.PostID] = true
		s.comments.hub.Publish(c.PostID, CommentEvent{Type: EventCommentDeleted, PostID: c.PostID, CommentID: c.ID})
	}
	for postID := range posts {
		s.comments.invalidate(postID)
	}

	logging.From(ctx).WithFields(logrus.Fields{
		"op":      op,
		"removed": len(targets),
		"by":      caller.ID,
	}).Info("comments removed")
	return len(targets), nil
}

// SetUserStatus activates, suspends or bans a user. Only admins may act on
// admins, and nobody may change their own status.
func (s *ModerationService) SetUserStatus(ctx context.Context, caller models.Caller, userID uuid.UUID, status models.ProfileStatus) (*models.Profile, error) {
	const op = "services.ModerationService.SetUserStatus"

	if err := requireModerator(op, caller); err != nil {
		return nil, err
	}
	if !status.Valid() {
		return nil, invalid(op, "unknown status")
	}
	if userID == caller.ID {
		return nil, invalid(op, "cannot change own status")
	}

	var target models.Profile
	changed := false
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(lockForUpdate).First(&target, "id = ?", userID).Error; err != nil {
			return err
		}
		if target.Role == models.RoleAdmin && caller.Role != models.RoleAdmin {
			return fmt.Errorf("%s: %w: cannot moderate an admin", op, ErrForbidden)
		}
		if target.Status == status {
			return nil
		}
		if err := tx.Model(&target).Update("status", status).Error; err != nil {
			return err
		}
		target.Status = status
		changed = true
		return nil
	})
	if err != nil {
		return nil, wrapDB(op, err)
	}

	if changed {
		s.notifier.Enqueue(models.Notification{
			UserID:  target.ID,
			ActorID: &caller.ID,
			Type:    models.NotificationTypeSystem,
			Title:   "Account status changed",
			Message: fmt.Sprintf("Your account is now %s", status),
			Data:    map[string]any{"status": string(status)},
		})
		logging.From(ctx).WithFields(logrus.Fields{
			"op":      op,
			"user_id": userID,
			"status":  status,
			"by":      caller.ID,
		}).Info("user status changed")
	}
	return &target, nil
}

func (s *ModerationService) UserStats(ctx context.Context, caller models.Caller, userID uuid.UUID) (*UserStats, error) {
	const op = "services.ModerationService.UserStats"

	if err := requireModerator(op, caller); err != nil {
		return nil, err
	}

	var p models.Profile
	if err := s.db.WithContext(ctx).First(&p, "id = ?", userID).Error; err != nil {
		return nil, wrapDB(op, err)
	}

	stats := UserStats{UserID: p.ID, Status: p.Status}
	conn := s.db.WithContext(ctx)
	counts := []struct {
		dst   *int64
		query *gorm.DB
	}{
		{&stats.CommentCount, conn.Model(&models.Comment{}).Where("user_id = ?", userID)},
		{&stats.DeletedComments, conn.Model(&models.Comment{}).Where("user_id = ? AND is_deleted = ?", userID, true)},
		{&stats.ReportCount, conn.Model(&models.Report{}).Where("reporter_id = ?", userID)},
		{&stats.ReportsAgainst, conn.Model(&models.Report{}).
			Joins("JOIN comments ON comments.id = reports.comment_id").
			Where("comments.user_id = ?", userID)},
	}
	for _, c := range counts {
		if err := c.query.Count(c.dst).Error; err != nil {
			return nil, wrapDB(op, err)
		}
	}
	return &stats, nil
}
