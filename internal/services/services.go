// Package services holds the business operations behind the HTTP handlers.
// Every method takes the verified caller explicitly and returns errors that
// wrap one of the sentinel errors in errors.go.
package services

import (
	"html/template"
	"time"

	"zynexhub/internal/config"
	"zynexhub/internal/metrics"
	"zynexhub/internal/models"
	"zynexhub/internal/utils"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// CommentPage is the cached, caller-independent part of a post's thread.
type CommentPage struct {
	Comments []models.Comment
	HTML     map[uuid.UUID]template.HTML
}

type Deps struct {
	DB       *gorm.DB
	Cache    *utils.Cache[CommentPage]
	Hub      *Hub
	Inbox    *Inbox
	Notifier *Notifier
	Metrics  *metrics.Metrics
	Limits   config.LimitsConfig
	Log      *logrus.Logger
}

type Services struct {
	Profiles      *ProfileService
	Posts         *PostService
	Comments      *CommentService
	Moderation    *ModerationService
	Notifications *NotificationService
	Messages      *MessageService
	Stories       *StoryService
}

func New(d Deps) *Services {
	comments := &CommentService{
		db:       d.DB,
		cache:    d.Cache,
		hub:      d.Hub,
		notifier: d.Notifier,
		metrics:  d.Metrics,
		limits:   d.Limits,
	}
	return &Services{
		Profiles: &ProfileService{db: d.DB},
		Posts:    &PostService{db: d.DB, cache: d.Cache, limits: d.Limits},
		Comments: comments,
		Moderation: &ModerationService{
			db:       d.DB,
			comments: comments,
			notifier: d.Notifier,
			metrics:  d.Metrics,
		},
		Notifications: &NotificationService{db: d.DB, limits: d.Limits},
		Messages:      &MessageService{db: d.DB, inbox: d.Inbox, metrics: d.Metrics, limits: d.Limits},
		Stories:       &StoryService{db: d.DB, metrics: d.Metrics, limits: d.Limits, now: time.Now},
	}
}
