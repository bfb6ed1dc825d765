package services

import (
	"sync"

	"zynexhub/internal/models"

	"github.com/google/uuid"
)

const (
	EventCommentCreated = "comment.created"
	EventCommentUpdated = "comment.updated"
	EventCommentDeleted = "comment.deleted"
	EventCommentVoted   = "comment.voted"

	EventMessageCreated = "message.created"
	EventMessageRead    = "message.read"
)

// CommentEvent is what stream subscribers of a post receive.
type CommentEvent struct {
	Type       string          `json:"type"`
	PostID     uuid.UUID       `json:"post_id"`
	CommentID  uuid.UUID       `json:"comment_id"`
	Comment    *models.Comment `json:"comment,omitempty"`
	VotesCount *int            `json:"votes_count,omitempty"`
}

// MessageEvent is pushed to a user's inbox stream.
type MessageEvent struct {
	Type     string          `json:"type"`
	Message  *models.Message `json:"message,omitempty"`
	ReaderID *uuid.UUID      `json:"reader_id,omitempty"`
	Count    int64           `json:"count,omitempty"`
}

// Broker fans events out to subscribers keyed by id. Delivery is best
// effort: a subscriber whose buffer is full misses the event.
type Broker[E any] struct {
	mu     sync.RWMutex
	subs   map[uuid.UUID]map[chan E]struct{}
	buffer int
	closed bool
}

// Hub delivers comment events per post.
type Hub = Broker[CommentEvent]

// Inbox delivers message events per recipient.
type Inbox = Broker[MessageEvent]

func NewBroker[E any](buffer int) *Broker[E] {
	if buffer <= 0 {
		buffer = 16
	}
	return &Broker[E]{
		subs:   make(map[uuid.UUID]map[chan E]struct{}),
		buffer: buffer,
	}
}

func NewHub(buffer int) *Hub { return NewBroker[CommentEvent](buffer) }

func NewInbox(buffer int) *Inbox { return NewBroker[MessageEvent](buffer) }

// Subscribe registers for events on key. The returned cancel func must be
// called once; it closes the channel.
func (h *Broker[E]) Subscribe(key uuid.UUID) (<-chan E, func()) {
	ch := make(chan E, h.buffer)

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		close(ch)
		return ch, func() {}
	}
	if h.subs[key] == nil {
		h.subs[key] = make(map[chan E]struct{})
	}
	h.subs[key][ch] = struct{}{}
	h.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			if _, ok := h.subs[key][ch]; !ok {
				return // already closed by Close
			}
			delete(h.subs[key], ch)
			if len(h.subs[key]) == 0 {
				delete(h.subs, key)
			}
			close(ch)
		})
	}
}

func (h *Broker[E]) Publish(key uuid.UUID, ev E) {
	if h == nil {
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for ch := range h.subs[key] {
		select {
		case ch <- ev:
		default:
		}
	}
}

// Subscribers returns the number of live subscriptions for key.
func (h *Broker[E]) Subscribers(key uuid.UUID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[key])
}

// Close ends every subscription so open streams return. Later subscriptions
// get an already closed channel.
func (h *Broker[E]) Close() {
	if h == nil {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for key, chans := range h.subs {
		for ch := range chans {
			close(ch)
		}
		delete(h.subs, key)
	}
}
