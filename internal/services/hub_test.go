package services

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestHub_PublishToPostSubscribersOnly(t *testing.T) {
	h := NewHub(4)
	postA, postB := uuid.New(), uuid.New()

	a, cancelA := h.Subscribe(postA)
	defer cancelA()
	b, cancelB := h.Subscribe(postB)
	defer cancelB()

	h.Publish(postA, CommentEvent{Type: EventCommentCreated, PostID: postA})

	assert.Len(t, a, 1)
	assert.Len(t, b, 0)
}

func TestHub_SlowSubscriberDoesNotBlock(t *testing.T) {
	h := NewHub(1)
	post := uuid.New()
	ch, cancel := h.Subscribe(post)
	defer cancel()

	for range 10 {
		h.Publish(post, CommentEvent{Type: EventCommentVoted, PostID: post})
	}
	assert.Len(t, ch, 1)
}

func TestHub_Cancel(t *testing.T) {
	h := NewHub(1)
	post := uuid.New()
	ch, cancel := h.Subscribe(post)
	assert.Equal(t, 1, h.Subscribers(post))

	cancel()
	cancel()
	assert.Equal(t, 0, h.Subscribers(post))
	_, open := <-ch
	assert.False(t, open)

	assert.NotPanics(t, func() { h.Publish(post, CommentEvent{PostID: post}) })
}

func TestHub_Nil(t *testing.T) {
	var h *Hub
	assert.NotPanics(t, func() { h.Publish(uuid.New(), CommentEvent{}) })
}

func TestHub_Close(t *testing.T) {
	h := NewHub(1)
	post := uuid.New()
	ch, cancel := h.Subscribe(post)

	h.Close()
	_, open := <-ch
	assert.False(t, open)
	assert.Equal(t, 0, h.Subscribers(post))
	assert.NotPanics(t, cancel)

	late, lateCancel := h.Subscribe(post)
	_, open = <-late
	assert.False(t, open)
	assert.NotPanics(t, lateCancel)
}

func TestInbox_PerRecipient(t *testing.T) {
	in := NewInbox(2)
	alice, bob := uuid.New(), uuid.New()
	a, cancel := in.Subscribe(alice)
	defer cancel()

	in.Publish(alice, MessageEvent{Type: EventMessageCreated})
	in.Publish(bob, MessageEvent{Type: EventMessageCreated})

	assert.Len(t, a, 1)
	assert.Equal(t, EventMessageCreated, (<-a).Type)
}
