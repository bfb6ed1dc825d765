package services

import (
	"context"
	"errors"
	"fmt"
	"html/template"
	"strings"
	"unicode/utf8"

	"zynexhub/internal/config"
	"zynexhub/internal/db"
	"zynexhub/internal/logging"
	"zynexhub/internal/metrics"
	"zynexhub/internal/models"
	"zynexhub/internal/thread"
	"zynexhub/internal/utils"
	"zynexhub/internal/votes"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type CommentService struct {
	db       *gorm.DB
	cache    *utils.Cache[CommentPage]
	hub      *Hub
	notifier *Notifier
	metrics  *metrics.Metrics
	limits   config.LimitsConfig
}

// VoteResult is the state of a comment's votes after a vote was applied.
type VoteResult struct {
	CommentID  uuid.UUID        `json:"comment_id"`
	Action     string           `json:"action"`
	VotesCount int              `json:"votes_count"`
	UserVote   *models.VoteType `json:"user_vote"`
}

// lockForUpdate is SELECT ... FOR UPDATE on Postgres; SQLite ignores it.
var lockForUpdate = clause.Locking{Strength: "UPDATE"}

func pageKey(postID uuid.UUID) string {
	return "comments:post:" + postID.String()
}

// Thread returns the comment forest of a post as seen by caller. Soft-deleted
// comments are included so replies keep their place under them.
func (s *CommentService) Thread(ctx context.Context, caller models.Caller, postID uuid.UUID) ([]*thread.Node, error) {
	const op = "services.CommentService.Thread"

	if err := s.db.WithContext(ctx).Select("id").First(&models.Post{}, "id = ?", postID).Error; err != nil {
		return nil, wrapDB(op, err)
	}

	page, err := s.page(ctx, postID)
	if err != nil {
		return nil, wrapDB(op, err)
	}

	var callerVotes []models.Vote
	if caller.ID != uuid.Nil && len(page.Comments) > 0 {
		ids := make([]uuid.UUID, len(page.Comments))
		for i, c := range page.Comments {
			ids[i] = c.ID
		}
		err := s.db.WithContext(ctx).
			Where("user_id = ? AND comment_id IN ?", caller.ID, ids).
			Find(&callerVotes).Error
		if err != nil {
			return nil, wrapDB(op, err)
		}
	}

	authors, err := s.authors(ctx, page.Comments)
	if err != nil {
		return nil, wrapDB(op, err)
	}

	roots := thread.Build(page.Comments, caller, callerVotes)
	thread.Walk(roots, func(n *thread.Node) {
		n.ContentHTML = page.HTML[n.ID]
		n.Author = authors[n.UserID]
	})
	return roots, nil
}

// page loads the caller-independent comment list of a post, from cache when
// possible. Authors are not part of it: profile status and role change
// without touching the post. 主动失效见 invalidate.
func (s *CommentService) page(ctx context.Context, postID uuid.UUID) (CommentPage, error) {
	key := pageKey(postID)
	var gen uint64
	if s.cache != nil {
		if p, ok := s.cache.Get(key); ok {
			return p, nil
		}
		gen = s.cache.Generation(key)
	}

	var comments []models.Comment
	err := s.db.WithContext(ctx).
		Where("post_id = ?", postID).
		Order("created_at ASC, id ASC").
		Find(&comments).Error
	if err != nil {
		return CommentPage{}, err
	}

	p := CommentPage{
		Comments: comments,
		HTML:     make(map[uuid.UUID]template.HTML, len(comments)),
	}
	for _, c := range comments {
		p.HTML[c.ID] = utils.RenderMarkdown(c.Content)
	}
	if s.cache != nil {
		// a write that landed while we were reading already invalidated gen
		s.cache.SetIfGeneration(key, p, gen)
	}
	return p, nil
}

// authors loads the current profiles of the comment authors.
func (s *CommentService) authors(ctx context.Context, comments []models.Comment) (map[uuid.UUID]models.Profile, error) {
	out := make(map[uuid.UUID]models.Profile)
	if len(comments) == 0 {
		return out, nil
	}
	seen := make(map[uuid.UUID]bool, len(comments))
	ids := make([]uuid.UUID, 0, len(comments))
	for _, c := range comments {
		if !seen[c.UserID] {
			seen[c.UserID] = true
			ids = append(ids, c.UserID)
		}
	}
	var profiles []models.Profile
	if err := s.db.WithContext(ctx).Find(&profiles, "id IN ?", ids).Error; err != nil {
		return nil, err
	}
	for _, p := range profiles {
		out[p.ID] = p
	}
	return out, nil
}

func (s *CommentService) invalidate(postID uuid.UUID) {
	if s.cache != nil {
		s.cache.Delete(pageKey(postID))
	}
}

func (s *CommentService) checkContent(op, content string) (string, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return "", invalid(op, "content is required")
	}
	if utf8.RuneCountInString(content) > s.limits.CommentMaxLength {
		return "", invalid(op, fmt.Sprintf("content exceeds %d characters", s.limits.CommentMaxLength))
	}
	return content, nil
}

// Create adds a root comment, or a reply when parentID is set. The parent
// must already exist in the same post, so inserts can never form a cycle.
func (s *CommentService) Create(ctx context.Context, caller models.Caller, postID uuid.UUID, parentID *uuid.UUID, content string) (*models.Comment, error) {
	const op = "services.CommentService.Create"

	content, err := s.checkContent(op, content)
	if err != nil {
		return nil, err
	}

	var (
		post    models.Post
		parent  models.Comment
		comment models.Comment
	)
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := requireWriter(tx, op, caller.ID); err != nil {
			return err
		}
		if err := tx.First(&post, "id = ?", postID).Error; err != nil {
			return wrapDB(op, err)
		}
		if parentID != nil {
			if err := tx.First(&parent, "id = ?", *parentID).Error; err != nil {
				return wrapDB(op, err)
			}
			if parent.PostID != post.ID {
				return invalid(op, "parent comment belongs to another post")
			}
			if parent.IsDeleted {
				return invalid(op, "cannot reply to a deleted comment")
			}
		}

		comment = models.Comment{
			PostID:   post.ID,
			ParentID: parentID,
			UserID:   caller.ID,
			Content:  content,
		}
		if err := tx.Create(&comment).Error; err != nil {
			return wrapDB(op, err)
		}
		if err := tx.Model(&models.Post{}).Where("id = ?", post.ID).
			UpdateColumn("comments_count", gorm.Expr("comments_count + ?", 1)).Error; err != nil {
			return wrapDB(op, err)
		}
		return tx.Preload("Author").First(&comment, "id = ?", comment.ID).Error
	})
	if err != nil {
		return nil, wrapDB(op, err)
	}

	s.invalidate(post.ID)
	s.metrics.CommentCreated()
	s.hub.Publish(post.ID, CommentEvent{Type: EventCommentCreated, PostID: post.ID, CommentID: comment.ID, Comment: &comment})

	var parentPtr *models.Comment
	if parentID != nil {
		parentPtr = &parent
	}
	s.notifyNewComment(ctx, &comment, &post, parentPtr)

	logging.From(ctx).WithFields(logrus.Fields{
		"op":         op,
		"post_id":    post.ID,
		"comment_id": comment.ID,
	}).Debug("comment created")
	return &comment, nil
}

// notifyNewComment tells the replied-to author (or the post author for a
// root comment) and everyone mentioned. Nobody is notified twice and the
// commenter is never notified about their own comment.
func (s *CommentService) notifyNewComment(ctx context.Context, c *models.Comment, post *models.Post, parent *models.Comment) {
	actor := c.Author.Username
	data := map[string]any{
		"post_id":    c.PostID.String(),
		"comment_id": c.ID.String(),
	}
	notified := map[uuid.UUID]bool{c.UserID: true}
	var out []models.Notification

	if parent != nil {
		if !notified[parent.UserID] {
			notified[parent.UserID] = true
			out = append(out, models.Notification{
				UserID:  parent.UserID,
				ActorID: &c.UserID,
				Type:    models.NotificationTypeReplyComment,
				Title:   "New reply",
				Message: fmt.Sprintf("@%s replied to your comment", actor),
				Data:    data,
			})
		}
	} else if !notified[post.UserID] {
		notified[post.UserID] = true
		out = append(out, models.Notification{
			UserID:  post.UserID,
			ActorID: &c.UserID,
			Type:    models.NotificationTypeCommentPost,
			Title:   "New comment on your post",
			Message: fmt.Sprintf("@%s commented on your post", actor),
			Data:    data,
		})
	}

	if names := utils.ExtractMentions(c.Content); len(names) > 0 {
		var mentioned []models.Profile
		err := s.db.WithContext(ctx).Select("id", "username").
			Where("LOWER(username) IN ?", names).Find(&mentioned).Error
		if err != nil {
			logging.From(ctx).WithError(err).Warn("failed to resolve mentions")
		}
		for _, p := range mentioned {
			if notified[p.ID] {
				continue
			}
			notified[p.ID] = true
			out = append(out, models.Notification{
				UserID:  p.ID,
				ActorID: &c.UserID,
				Type:    models.NotificationTypeMention,
				Title:   "You were mentioned",
				Message: fmt.Sprintf("@%s mentioned you in a comment", actor),
				Data:    data,
			})
		}
	}

	s.notifier.Enqueue(out...)
}

// Edit replaces the content of the caller's own comment.
func (s *CommentService) Edit(ctx context.Context, caller models.Caller, id uuid.UUID, content string) (*models.Comment, error) {
	const op = "services.CommentService.Edit"

	content, err := s.checkContent(op, content)
	if err != nil {
		return nil, err
	}

	var comment models.Comment
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := requireWriter(tx, op, caller.ID); err != nil {
			return err
		}
		if err := tx.Clauses(lockForUpdate).First(&comment, "id = ?", id).Error; err != nil {
			return wrapDB(op, err)
		}
		if comment.UserID != caller.ID || comment.IsDeleted {
			return fmt.Errorf("%s: %w", op, ErrForbidden)
		}
		err := tx.Model(&comment).Updates(map[string]any{
			"content":    content,
			"is_edited":  true,
			"edit_count": gorm.Expr("edit_count + ?", 1),
		}).Error
		if err != nil {
			return wrapDB(op, err)
		}
		return tx.Preload("Author").First(&comment, "id = ?", id).Error
	})
	if err != nil {
		return nil, wrapDB(op, err)
	}

	s.invalidate(comment.PostID)
	s.hub.Publish(comment.PostID, CommentEvent{Type: EventCommentUpdated, PostID: comment.PostID, CommentID: comment.ID, Comment: &comment})
	return &comment, nil
}

// Delete soft-deletes a comment. Authors get the "[deleted]" placeholder,
// moderators removing someone else's comment get "[removed by moderator]".
// Deleting an already deleted comment is a no-op.
func (s *CommentService) Delete(ctx context.Context, caller models.Caller, id uuid.UUID) (*models.Comment, error) {
	const op = "services.CommentService.Delete"

	var (
		comment models.Comment
		changed bool
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(lockForUpdate).First(&comment, "id = ?", id).Error; err != nil {
			return wrapDB(op, err)
		}
		isAuthor := comment.UserID == caller.ID
		if !isAuthor && !caller.IsModerator() {
			return fmt.Errorf("%s: %w", op, ErrForbidden)
		}
		if comment.IsDeleted {
			return tx.Preload("Author").First(&comment, "id = ?", id).Error
		}

		placeholder := models.DeletedPlaceholder
		if !isAuthor {
			placeholder = models.RemovedPlaceholder
		}
		err := tx.Model(&comment).Updates(map[string]any{
			"content":    placeholder,
			"is_deleted": true,
		}).Error
		if err != nil {
			return wrapDB(op, err)
		}
		changed = true
		return tx.Preload("Author").First(&comment, "id = ?", id).Error
	})
	if err != nil {
		return nil, wrapDB(op, err)
	}

	if changed {
		s.invalidate(comment.PostID)
		s.hub.Publish(comment.PostID, CommentEvent{Type: EventCommentDeleted, PostID: comment.PostID, CommentID: comment.ID, Comment: &comment})
		logging.From(ctx).WithFields(logrus.Fields{
			"op":         op,
			"comment_id": comment.ID,
			"by":         caller.ID,
			"moderation": comment.UserID != caller.ID,
		}).Info("comment deleted")
	}
	return &comment, nil
}

// Vote applies an up or down vote following the toggle rules in votes.Resolve.
// The comment row is locked for the duration so concurrent votes on it
// serialize; the unique (user, comment) index catches a racing first insert.
func (s *CommentService) Vote(ctx context.Context, caller models.Caller, commentID uuid.UUID, direction models.VoteType) (*VoteResult, error) {
	const op = "services.CommentService.Vote"

	if direction != models.VoteUp && direction != models.VoteDown {
		return nil, invalid(op, "direction must be up or down")
	}

	var (
		comment models.Comment
		result  VoteResult
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(lockForUpdate).First(&comment, "id = ?", commentID).Error; err != nil {
			return wrapDB(op, err)
		}
		if comment.IsDeleted {
			return invalid(op, "cannot vote on a deleted comment")
		}
		if _, err := requireWriter(tx, op, caller.ID); err != nil {
			return err
		}

		var (
			existing models.Vote
			current  *models.VoteType
		)
		err := tx.Where("user_id = ? AND comment_id = ?", caller.ID, commentID).Take(&existing).Error
		switch {
		case err == nil:
			current = &existing.VoteType
		case !errors.Is(err, gorm.ErrRecordNotFound):
			return wrapDB(op, err)
		}

		outcome := votes.Resolve(current, direction)
		switch outcome.Action {
		case votes.Create:
			err = tx.Create(&models.Vote{UserID: caller.ID, CommentID: commentID, VoteType: *outcome.Result}).Error
		case votes.Update:
			err = tx.Model(&existing).Update("vote_type", *outcome.Result).Error
		case votes.Delete:
			err = tx.Delete(&existing).Error
		}
		if err != nil {
			return err
		}

		err = tx.Model(&models.Comment{}).Where("id = ?", commentID).
			UpdateColumn("votes_count", gorm.Expr("votes_count + ?", outcome.Delta)).Error
		if err != nil {
			return err
		}

		result = VoteResult{
			CommentID:  commentID,
			Action:     outcome.Action.String(),
			VotesCount: comment.VotesCount + outcome.Delta,
			UserVote:   outcome.Result,
		}
		return nil
	})
	if err != nil {
		if db.IsDuplicate(err) {
			return nil, fmt.Errorf("%s: %w: concurrent vote", op, ErrConflict)
		}
		return nil, wrapDB(op, err)
	}

	s.metrics.VoteApplied(result.Action)
	s.invalidate(comment.PostID)
	count := result.VotesCount
	s.hub.Publish(comment.PostID, CommentEvent{Type: EventCommentVoted, PostID: comment.PostID, CommentID: commentID, VotesCount: &count})
	return &result, nil
}
