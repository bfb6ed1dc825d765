package services

import (
	"context"
	"errors"
	"fmt"
	"html/template"
	"net/url"
	"slices"
	"strings"
	"time"
	"unicode/utf8"

	"zynexhub/internal/config"
	"zynexhub/internal/db"
	"zynexhub/internal/logging"
	"zynexhub/internal/models"
	"zynexhub/internal/utils"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

const (
	SortNew = "new"
	SortHot = "hot"

	// hotCandidates bounds how many recent posts the hot feed scores.
	hotCandidates = 500
)

type PostService struct {
	db     *gorm.DB
	cache  *utils.Cache[CommentPage]
	limits config.LimitsConfig
}

// PostView is a post decorated for the caller.
type PostView struct {
	models.Post
	ContentHTML template.HTML `json:"content_html"`
	UserLiked   bool          `json:"user_liked"`
	CanDelete   bool          `json:"can_delete"`
}

// FeedQuery selects a feed page. For SortNew, Before and BeforeID form a
// keyset cursor: the page starts after the post (Before, BeforeID) in
// created_at DESC, id DESC order. Before alone skips everything created at or
// after it.
type FeedQuery struct {
	Sort     string
	Before   *time.Time
	BeforeID *uuid.UUID
	Limit    int
}

type LikeResult struct {
	PostID     uuid.UUID `json:"post_id"`
	Liked      bool      `json:"liked"`
	LikesCount int       `json:"likes_count"`
}

func (s *PostService) Create(ctx context.Context, caller models.Caller, content string, imageURL *string) (*models.Post, error) {
	const op = "services.PostService.Create"

	content = strings.TrimSpace(content)
	if content == "" {
		return nil, invalid(op, "content is required")
	}
	if utf8.RuneCountInString(content) > s.limits.PostMaxLength {
		return nil, invalid(op, fmt.Sprintf("content exceeds %d characters", s.limits.PostMaxLength))
	}
	if imageURL != nil {
		trimmed := strings.TrimSpace(*imageURL)
		if trimmed == "" {
			imageURL = nil
		} else if u, err := url.Parse(trimmed); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return nil, invalid(op, "image_url must be an http(s) URL")
		} else {
			imageURL = &trimmed
		}
	}

	post := models.Post{UserID: caller.ID, Content: content, ImageURL: imageURL}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := requireWriter(tx, op, caller.ID); err != nil {
			return err
		}
		if err := tx.Create(&post).Error; err != nil {
			return err
		}
		return tx.Preload("Author").First(&post, "id = ?", post.ID).Error
	})
	if err != nil {
		return nil, wrapDB(op, err)
	}
	return &post, nil
}

func (s *PostService) Get(ctx context.Context, caller models.Caller, id uuid.UUID) (*PostView, error) {
	const op = "services.PostService.Get"

	var post models.Post
	if err := s.db.WithContext(ctx).Preload("Author").First(&post, "id = ?", id).Error; err != nil {
		return nil, wrapDB(op, err)
	}
	views, err := s.decorate(ctx, caller, []models.Post{post})
	if err != nil {
		return nil, wrapDB(op, err)
	}
	return &views[0], nil
}

// Feed lists posts newest first (keyset paginated by created_at, id) or, for
// SortHot, ranks the posts of the hot window by utils.CalculateScore.
func (s *PostService) Feed(ctx context.Context, caller models.Caller, q FeedQuery) ([]PostView, error) {
	const op = "services.PostService.Feed"

	if q.Limit <= 0 {
		q.Limit = s.limits.FeedDefault
	}
	if q.Limit > s.limits.FeedMax {
		q.Limit = s.limits.FeedMax
	}

	var posts []models.Post
	switch q.Sort {
	case "", SortNew:
		query := s.db.WithContext(ctx).Preload("Author").Order("created_at DESC, id DESC").Limit(q.Limit)
		switch {
		case q.Before != nil && q.BeforeID != nil:
			query = query.Where("created_at < ? OR (created_at = ? AND id < ?)", *q.Before, *q.Before, *q.BeforeID)
		case q.Before != nil:
			query = query.Where("created_at < ?", *q.Before)
		}
		if err := query.Find(&posts).Error; err != nil {
			return nil, wrapDB(op, err)
		}
	case SortHot:
		now := time.Now()
		err := s.db.WithContext(ctx).Preload("Author").
			Where("created_at >= ?", now.Add(-s.limits.HotWindow)).
			Order("created_at DESC").
			Limit(hotCandidates).
			Find(&posts).Error
		if err != nil {
			return nil, wrapDB(op, err)
		}
		scores := make(map[uuid.UUID]float64, len(posts))
		for _, p := range posts {
			scores[p.ID] = utils.CalculateScore(p.CreatedAt, now, p.LikesCount, p.CommentsCount)
		}
		slices.SortStableFunc(posts, func(a, b models.Post) int {
			switch sa, sb := scores[a.ID], scores[b.ID]; {
			case sa > sb:
				return -1
			case sa < sb:
				return 1
			}
			return 0
		})
		if len(posts) > q.Limit {
			posts = posts[:q.Limit]
		}
	default:
		return nil, invalid(op, "sort must be new or hot")
	}

	views, err := s.decorate(ctx, caller, posts)
	if err != nil {
		return nil, wrapDB(op, err)
	}
	return views, nil
}

// decorate 计算当前用户相关的状态 (是否点赞, 能否删除), 以及渲染内容
func (s *PostService) decorate(ctx context.Context, caller models.Caller, posts []models.Post) ([]PostView, error) {
	liked := make(map[uuid.UUID]bool)
	if caller.ID != uuid.Nil && len(posts) > 0 {
		ids := make([]uuid.UUID, len(posts))
		for i, p := range posts {
			ids[i] = p.ID
		}
		var likes []models.PostLike
		err := s.db.WithContext(ctx).Select("post_id").
			Where("user_id = ? AND post_id IN ?", caller.ID, ids).
			Find(&likes).Error
		if err != nil {
			return nil, err
		}
		for _, l := range likes {
			liked[l.PostID] = true
		}
	}

	views := make([]PostView, len(posts))
	for i, p := range posts {
		views[i] = PostView{
			Post:        p,
			ContentHTML: utils.RenderMarkdown(p.Content),
			UserLiked:   liked[p.ID],
			CanDelete:   caller.ID != uuid.Nil && (p.UserID == caller.ID || caller.IsModerator()),
		}
	}
	return views, nil
}

// ToggleLike likes the post, or removes the like if the caller already
// liked it. likes_count moves in the same transaction as the like row.
func (s *PostService) ToggleLike(ctx context.Context, caller models.Caller, postID uuid.UUID) (*LikeResult, error) {
	const op = "services.PostService.ToggleLike"

	result := LikeResult{PostID: postID}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := requireWriter(tx, op, caller.ID); err != nil {
			return err
		}
		var post models.Post
		if err := tx.Clauses(lockForUpdate).First(&post, "id = ?", postID).Error; err != nil {
			return err
		}

		var like models.PostLike
		err := tx.Where("user_id = ? AND post_id = ?", caller.ID, postID).Take(&like).Error
		delta := 1
		switch {
		case err == nil:
			if err := tx.Delete(&like).Error; err != nil {
				return err
			}
			delta = -1
		case errors.Is(err, gorm.ErrRecordNotFound):
			if err := tx.Create(&models.PostLike{UserID: caller.ID, PostID: postID}).Error; err != nil {
				return err
			}
			result.Liked = true
		default:
			return err
		}

		if err := tx.Model(&models.Post{}).Where("id = ?", postID).
			UpdateColumn("likes_count", gorm.Expr("likes_count + ?", delta)).Error; err != nil {
			return err
		}
		result.LikesCount = post.LikesCount + delta
		return nil
	})
	if err != nil {
		if db.IsDuplicate(err) {
			return nil, fmt.Errorf("%s: %w: concurrent like", op, ErrConflict)
		}
		return nil, wrapDB(op, err)
	}
	return &result, nil
}

// Delete soft-deletes a post. Its comments, likes and reports stay in place
// but the post and its thread are no longer reachable. Only the author or a
// moderator may delete it.
func (s *PostService) Delete(ctx context.Context, caller models.Caller, id uuid.UUID) error {
	const op = "services.PostService.Delete"

	var post models.Post
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(lockForUpdate).First(&post, "id = ?", id).Error; err != nil {
			return err
		}
		if post.UserID != caller.ID && !caller.IsModerator() {
			return fmt.Errorf("%s: %w", op, ErrForbidden)
		}
		return tx.Delete(&post).Error
	})
	if err != nil {
		return wrapDB(op, err)
	}

	if s.cache != nil {
		s.cache.Delete(pageKey(id))
	}
	logging.From(ctx).WithFields(logrus.Fields{
		"op":         op,
		"post_id":    id,
		"by":         caller.ID,
		"moderation": post.UserID != caller.ID,
	}).Info("post deleted")
	return nil
}
