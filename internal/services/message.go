package services

import (
	"context"
	"fmt"
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
)

type MessageService struct {
	db      *gorm.DB
	inbox   *Inbox
	metrics *metrics.Metrics
	limits  config.LimitsConfig
}

// Conversation summarizes the exchange between the caller and one peer.
type Conversation struct {
	Peer        models.Profile `json:"peer"`
	LastMessage models.Message `json:"last_message"`
	UnreadCount int64          `json:"unread_count"`
}

type peerRow struct {
	PeerID uuid.UUID
}

type unreadRow struct {
	SenderID uuid.UUID
	Unread   int64
}

func (s *MessageService) pageLimit(limit int) int {
	if limit <= 0 || limit > s.limits.MessagesPageMax {
		return s.limits.MessagesPageMax
	}
	return limit
}

// Send delivers a direct message from caller to peerID and pushes it to both
// participants' inbox streams.
func (s *MessageService) Send(ctx context.Context, caller models.Caller, peerID uuid.UUID, content string) (*models.Message, error) {
	const op = "services.MessageService.Send"

	content = strings.TrimSpace(content)
	if content == "" {
		return nil, invalid(op, "content is required")
	}
	if utf8.RuneCountInString(content) > s.limits.MessageMaxLength {
		return nil, invalid(op, fmt.Sprintf("content exceeds %d characters", s.limits.MessageMaxLength))
	}
	if peerID == caller.ID {
		return nil, invalid(op, "cannot message yourself")
	}

	msg := models.Message{SenderID: caller.ID, ReceiverID: peerID, Content: content}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := requireWriter(tx, op, caller.ID); err != nil {
			return err
		}
		if err := tx.Select("id").First(&models.Profile{}, "id = ?", peerID).Error; err != nil {
			return err
		}
		if err := tx.Create(&msg).Error; err != nil {
			return err
		}
		return tx.Preload("Sender").Preload("Receiver").First(&msg, "id = ?", msg.ID).Error
	})
	if err != nil {
		return nil, wrapDB(op, err)
	}

	s.metrics.MessageSent()
	ev := MessageEvent{Type: EventMessageCreated, Message: &msg}
	s.inbox.Publish(peerID, ev)
	s.inbox.Publish(caller.ID, ev)

	logging.From(ctx).WithFields(logrus.Fields{
		"op":         op,
		"message_id": msg.ID,
		"to":         peerID,
	}).Debug("message sent")
	return &msg, nil
}

// Conversations lists the caller's peers, most recent exchange first.
func (s *MessageService) Conversations(ctx context.Context, caller models.Caller, limit int) ([]Conversation, error) {
	const op = "services.MessageService.Conversations"

	var peers []peerRow
	err := s.db.WithContext(ctx).Model(&models.Message{}).
		Select("CASE WHEN sender_id = ? THEN receiver_id ELSE sender_id END AS peer_id", caller.ID).
		Where("sender_id = ? OR receiver_id = ?", caller.ID, caller.ID).
		Group("peer_id").
		Order("MAX(created_at) DESC").
		Limit(s.pageLimit(limit)).
		Scan(&peers).Error
	if err != nil {
		return nil, wrapDB(op, err)
	}
	if len(peers) == 0 {
		return []Conversation{}, nil
	}

	ids := make([]uuid.UUID, len(peers))
	for i, p := range peers {
		ids[i] = p.PeerID
	}

	var profiles []models.Profile
	if err := s.db.WithContext(ctx).Find(&profiles, "id IN ?", ids).Error; err != nil {
		return nil, wrapDB(op, err)
	}
	byID := make(map[uuid.UUID]models.Profile, len(profiles))
	for _, p := range profiles {
		byID[p.ID] = p
	}

	var unread []unreadRow
	err = s.db.WithContext(ctx).Model(&models.Message{}).
		Select("sender_id, COUNT(*) AS unread").
		Where("receiver_id = ? AND is_read = ? AND sender_id IN ?", caller.ID, false, ids).
		Group("sender_id").
		Scan(&unread).Error
	if err != nil {
		return nil, wrapDB(op, err)
	}
	unreadOf := make(map[uuid.UUID]int64, len(unread))
	for _, u := range unread {
		unreadOf[u.SenderID] = u.Unread
	}

	out := make([]Conversation, 0, len(ids))
	for _, peerID := range ids {
		var last models.Message
		err := s.db.WithContext(ctx).
			Where("(sender_id = ? AND receiver_id = ?) OR (sender_id = ? AND receiver_id = ?)", caller.ID, peerID, peerID, caller.ID).
			Order("created_at DESC, id DESC").
			Take(&last).Error
		if err != nil {
			return nil, wrapDB(op, err)
		}
		out = append(out, Conversation{
			Peer:        byID[peerID],
			LastMessage: last,
			UnreadCount: unreadOf[peerID],
		})
	}
	return out, nil
}

// Messages returns the exchange with peerID in chronological order. With
// before set, only messages older than it are returned, so clients page
// backwards from the newest message.
func (s *MessageService) Messages(ctx context.Context, caller models.Caller, peerID uuid.UUID, before *time.Time, limit int) ([]models.Message, error) {
	const op = "services.MessageService.Messages"

	if err := s.db.WithContext(ctx).Select("id").First(&models.Profile{}, "id = ?", peerID).Error; err != nil {
		return nil, wrapDB(op, err)
	}

	query := s.db.WithContext(ctx).Preload("Sender").Preload("Receiver").
		Where("(sender_id = ? AND receiver_id = ?) OR (sender_id = ? AND receiver_id = ?)", caller.ID, peerID, peerID, caller.ID).
		Order("created_at DESC, id DESC").
		Limit(s.pageLimit(limit))
	if before != nil {
		query = query.Where("created_at < ?", *before)
	}

	var out []models.Message
	if err := query.Find(&out).Error; err != nil {
		return nil, wrapDB(op, err)
	}
	slices.Reverse(out)
	return out, nil
}

// MarkRead marks every message peerID sent to the caller as read and tells
// the peer. It returns how many messages changed.
func (s *MessageService) MarkRead(ctx context.Context, caller models.Caller, peerID uuid.UUID) (int64, error) {
	const op = "services.MessageService.MarkRead"

	res := s.db.WithContext(ctx).Model(&models.Message{}).
		Where("sender_id = ? AND receiver_id = ? AND is_read = ?", peerID, caller.ID, false).
		Update("is_read", true)
	if res.Error != nil {
		return 0, wrapDB(op, res.Error)
	}
	if res.RowsAffected > 0 {
		reader := caller.ID
		s.inbox.Publish(peerID, MessageEvent{Type: EventMessageRead, ReaderID: &reader, Count: res.RowsAffected})
	}
	return res.RowsAffected, nil
}

// UnreadCount is the number of unread messages addressed to the caller.
func (s *MessageService) UnreadCount(ctx context.Context, caller models.Caller) (int64, error) {
	const op = "services.MessageService.UnreadCount"

	var count int64
	err := s.db.WithContext(ctx).Model(&models.Message{}).
		Where("receiver_id = ? AND is_read = ?", caller.ID, false).
		Count(&count).Error
	if err != nil {
		return 0, wrapDB(op, err)
	}
	return count, nil
}
