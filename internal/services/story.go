package services

import (
	"context"
	"fmt"
	"net/url"
	"slices"
	"strings"
	"time"
	"unicode/utf8"

	"zynexhub/internal/config"
	"zynexhub/internal/logging"
	"zynexhub/internal/metrics"
	"zynexhub/internal/models"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const storyCaptionMax = 500

type StoryService struct {
	db      *gorm.DB
	metrics *metrics.Metrics
	limits  config.LimitsConfig
	now     func() time.Time
}

// StoryItem is a story with whether the caller has seen it.
type StoryItem struct {
	models.Story
	Viewed bool `json:"viewed"`
}

// StoryGroup holds one author's active stories, oldest first. Viewed is set
// once the caller has seen all of them.
type StoryGroup struct {
	Author  models.Profile `json:"author"`
	Stories []StoryItem    `json:"stories"`
	Viewed  bool           `json:"viewed"`
}

func (s *StoryService) Create(ctx context.Context, caller models.Caller, mediaURL string, caption *string) (*models.Story, error) {
	const op = "services.StoryService.Create"

	mediaURL = strings.TrimSpace(mediaURL)
	if u, err := url.Parse(mediaURL); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, invalid(op, "media_url must be an http(s) URL")
	}
	if caption != nil {
		trimmed := strings.TrimSpace(*caption)
		switch {
		case trimmed == "":
			caption = nil
		case utf8.RuneCountInString(trimmed) > storyCaptionMax:
			return nil, invalid(op, fmt.Sprintf("caption exceeds %d characters", storyCaptionMax))
		default:
			caption = &trimmed
		}
	}

	story := models.Story{
		UserID:    caller.ID,
		MediaURL:  mediaURL,
		Caption:   caption,
		ExpiresAt: s.now().Add(s.limits.StoryTTL),
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := requireWriter(tx, op, caller.ID); err != nil {
			return err
		}
		if err := tx.Create(&story).Error; err != nil {
			return err
		}
		return tx.Preload("Author").First(&story, "id = ?", story.ID).Error
	})
	if err != nil {
		return nil, wrapDB(op, err)
	}
	return &story, nil
}

// Active groups the unexpired stories by author. The author who posted most
// recently comes first.
func (s *StoryService) Active(ctx context.Context, caller models.Caller) ([]StoryGroup, error) {
	const op = "services.StoryService.Active"

	var stories []models.Story
	err := s.db.WithContext(ctx).Preload("Author").
		Where("expires_at > ?", s.now()).
		Order("created_at ASC, id ASC").
		Find(&stories).Error
	if err != nil {
		return nil, wrapDB(op, err)
	}

	viewed := make(map[uuid.UUID]bool)
	if caller.ID != uuid.Nil && len(stories) > 0 {
		ids := make([]uuid.UUID, len(stories))
		for i, st := range stories {
			ids[i] = st.ID
		}
		var views []models.StoryView
		err := s.db.WithContext(ctx).Select("story_id").
			Where("viewer_id = ? AND story_id IN ?", caller.ID, ids).
			Find(&views).Error
		if err != nil {
			return nil, wrapDB(op, err)
		}
		for _, v := range views {
			viewed[v.StoryID] = true
		}
	}

	groups := make([]StoryGroup, 0)
	index := make(map[uuid.UUID]int)
	for _, st := range stories {
		i, ok := index[st.UserID]
		if !ok {
			i = len(groups)
			index[st.UserID] = i
			groups = append(groups, StoryGroup{Author: st.Author, Viewed: true})
		}
		g := &groups[i]
		g.Stories = append(g.Stories, StoryItem{Story: st, Viewed: viewed[st.ID]})
		g.Viewed = g.Viewed && viewed[st.ID]
	}

	// newest last story first
	slices.SortStableFunc(groups, func(a, b StoryGroup) int {
		return b.Stories[len(b.Stories)-1].CreatedAt.Compare(a.Stories[len(a.Stories)-1].CreatedAt)
	})
	return groups, nil
}

// View records that the caller saw a story. Repeated views are no-ops.
func (s *StoryService) View(ctx context.Context, caller models.Caller, id uuid.UUID) error {
	const op = "services.StoryService.View"

	var story models.Story
	err := s.db.WithContext(ctx).Select("id").
		Where("expires_at > ?", s.now()).
		First(&story, "id = ?", id).Error
	if err != nil {
		return wrapDB(op, err)
	}
	err = s.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&models.StoryView{StoryID: id, ViewerID: caller.ID}).Error
	return wrapDB(op, err)
}

// Delete removes a story and its views. Only the author or a moderator may
// delete it.
func (s *StoryService) Delete(ctx context.Context, caller models.Caller, id uuid.UUID) error {
	const op = "services.StoryService.Delete"

	return wrapDB(op, s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var story models.Story
		if err := tx.Clauses(lockForUpdate).First(&story, "id = ?", id).Error; err != nil {
			return err
		}
		if story.UserID != caller.ID && !caller.IsModerator() {
			return fmt.Errorf("%s: %w", op, ErrForbidden)
		}
		if err := tx.Where("story_id = ?", id).Delete(&models.StoryView{}).Error; err != nil {
			return err
		}
		return tx.Delete(&story).Error
	}))
}

// PurgeExpired deletes expired stories and their views, returning how many
// stories went.
func (s *StoryService) PurgeExpired(ctx context.Context) (int64, error) {
	const op = "services.StoryService.PurgeExpired"

	now := s.now()
	var purged int64
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		expired := tx.Model(&models.Story{}).Select("id").Where("expires_at <= ?", now)
		if err := tx.Where("story_id IN (?)", expired).Delete(&models.StoryView{}).Error; err != nil {
			return err
		}
		res := tx.Where("expires_at <= ?", now).Delete(&models.Story{})
		purged = res.RowsAffected
		return res.Error
	})
	if err != nil {
		return 0, wrapDB(op, err)
	}
	s.metrics.StoriesPurged(purged)
	return purged, nil
}

// RunCleanup 定时清除过期 story, 直到 ctx 结束
func (s *StoryService) RunCleanup(ctx context.Context, every time.Duration, log *logrus.Entry) {
	log = log.WithField("component", "story-cleanup")
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := s.PurgeExpired(logging.Into(ctx, log))
			if err != nil {
				log.WithError(err).Error("failed to purge expired stories")
				continue
			}
			if n > 0 {
				log.WithField("purged", n).Info("expired stories purged")
			}
		}
	}
}
