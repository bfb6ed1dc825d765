package handlers

import (
	"io"
	"time"

	"zynexhub/internal/apierr"
	"zynexhub/internal/logging"
	"zynexhub/internal/middleware"
	"zynexhub/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// StreamHandler pushes comment and message events as Server-Sent Events.
type StreamHandler struct {
	posts     *services.PostService
	hub       *services.Hub
	inbox     *services.Inbox
	heartbeat time.Duration
}

func NewStreamHandler(posts *services.PostService, hub *services.Hub, inbox *services.Inbox, heartbeat time.Duration) *StreamHandler {
	if heartbeat <= 0 {
		heartbeat = 25 * time.Second
	}
	return &StreamHandler{posts: posts, hub: hub, inbox: inbox, heartbeat: heartbeat}
}

// Comments streams the comment events of one post.
func (h *StreamHandler) Comments(c *gin.Context) {
	postID, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	if _, err := h.posts.Get(c.Request.Context(), middleware.CurrentCaller(c), postID); err != nil {
		apierr.Write(c, err)
		return
	}

	events, cancel := h.hub.Subscribe(postID)
	defer cancel()

	log := logging.From(c.Request.Context()).WithField("post_id", postID)
	serveEvents(c, log, events, h.heartbeat, gin.H{"post_id": postID},
		func(ev services.CommentEvent) string { return ev.Type })
}

// Messages streams the caller's inbox: new messages in either direction and
// read receipts from peers.
func (h *StreamHandler) Messages(c *gin.Context) {
	caller := middleware.CurrentCaller(c)

	events, cancel := h.inbox.Subscribe(caller.ID)
	defer cancel()

	log := logging.From(c.Request.Context()).WithField("inbox", caller.ID)
	serveEvents(c, log, events, h.heartbeat, gin.H{"user_id": caller.ID},
		func(ev services.MessageEvent) string { return ev.Type })
}

func serveEvents[E any](c *gin.Context, log *logrus.Entry, events <-chan E, heartbeat time.Duration, hello gin.H, name func(E) string) {
	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	ticker := time.NewTicker(heartbeat)
	defer ticker.Stop()

	log.Debug("stream opened")
	defer log.Debug("stream closed")

	// first frame so clients know the subscription is live
	c.SSEvent("ready", hello)
	c.Writer.Flush()

	c.Stream(func(w io.Writer) bool {
		select {
		case <-c.Request.Context().Done():
			return false
		case ev, open := <-events:
			if !open {
				return false
			}
			c.SSEvent(name(ev), ev)
			return true
		case <-ticker.C:
			c.SSEvent("ping", gin.H{"ts": time.Now().Unix()})
			return true
		}
	})
}
