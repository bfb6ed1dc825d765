package services

import (
	"context"
	"io"
	"testing"
	"time"

	"zynexhub/internal/config"
	"zynexhub/internal/db/dbtest"
	"zynexhub/internal/metrics"
	"zynexhub/internal/models"
	"zynexhub/internal/utils"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

var testLimits = config.LimitsConfig{
	CommentMaxLength: 200,
	PostMaxLength:    500,
	FeedDefault:      10,
	FeedMax:          20,
	HotWindow:        7 * 24 * time.Hour,
	NotificationsMax: 50,
	MessageMaxLength: 100,
	MessagesPageMax:  20,
	StoryTTL:         24 * time.Hour,
	StoryCleanup:     time.Hour,
}

type env struct {
	db    *gorm.DB
	svc   *Services
	hub   *Hub
	inbox *Inbox
	m     *metrics.Metrics
}

func newEnv(t *testing.T) *env {
	t.Helper()

	conn := dbtest.New(t)
	log := logrus.New()
	log.SetOutput(io.Discard)

	m := metrics.New(prometheus.NewRegistry())
	cache, err := utils.NewCache[CommentPage](16, time.Minute)
	require.NoError(t, err)
	hub := NewHub(8)
	inbox := NewInbox(8)
	notifier := NewNotifier(conn, 100, logrus.NewEntry(log), m)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		notifier.Run(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	return &env{
		db: conn,
		svc: New(Deps{
			DB:       conn,
			Cache:    cache,
			Hub:      hub,
			Inbox:    inbox,
			Notifier: notifier,
			Metrics:  m,
			Limits:   testLimits,
			Log:      log,
		}),
		hub:   hub,
		inbox: inbox,
		m:     m,
	}
}

func (e *env) profile(t *testing.T, username string, role models.Role) models.Caller {
	t.Helper()
	p := models.Profile{
		ID:          uuid.New(),
		Username:    username,
		DisplayName: username,
		Role:        role,
		Status:      models.StatusActive,
	}
	require.NoError(t, e.db.Create(&p).Error)
	return models.Caller{ID: p.ID, Role: role}
}

func (e *env) post(t *testing.T, author models.Caller) models.Post {
	t.Helper()
	p, err := e.svc.Posts.Create(context.Background(), author, "hello world", nil)
	require.NoError(t, err)
	return *p
}

func (e *env) comment(t *testing.T, author models.Caller, postID uuid.UUID, parent *uuid.UUID, content string) models.Comment {
	t.Helper()
	c, err := e.svc.Comments.Create(context.Background(), author, postID, parent, content)
	require.NoError(t, err)
	return *c
}

func (e *env) notifications(userID uuid.UUID) []models.Notification {
	var out []models.Notification
	e.db.Where("user_id = ?", userID).Order("created_at ASC").Find(&out)
	return out
}

func ptr[T any](v T) *T { return &v }
