package services

import (
	"context"
	"testing"

	"zynexhub/internal/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedNotifications(t *testing.T, e *env, to, from models.Caller, n int) []models.Notification {
	t.Helper()
	out := make([]models.Notification, n)
	for i := range out {
		out[i] = models.Notification{
			UserID:  to.ID,
			ActorID: &from.ID,
			Type:    models.NotificationTypeSystem,
			Title:   "hi",
		}
		require.NoError(t, e.db.Create(&out[i]).Error)
	}
	return out
}

func TestNotificationService(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	alice := e.profile(t, "alice", models.RoleUser)
	bob := e.profile(t, "bob", models.RoleUser)
	ns := seedNotifications(t, e, alice, bob, 3)
	seedNotifications(t, e, bob, alice, 1)

	list, err := e.svc.Notifications.List(ctx, alice, false, 0)
	require.NoError(t, err)
	require.Len(t, list, 3)
	require.NotNil(t, list[0].Actor)
	assert.Equal(t, "bob", list[0].Actor.Username)

	count, err := e.svc.Notifications.UnreadCount(ctx, alice)
	require.NoError(t, err)
	assert.Equal(t, int64(3), count)

	require.NoError(t, e.svc.Notifications.MarkRead(ctx, alice, ns[0].ID))
	count, err = e.svc.Notifications.UnreadCount(ctx, alice)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)

	unread, err := e.svc.Notifications.List(ctx, alice, true, 0)
	require.NoError(t, err)
	assert.Len(t, unread, 2)

	// bob cannot touch alice's notifications
	assert.ErrorIs(t, e.svc.Notifications.MarkRead(ctx, bob, ns[1].ID), ErrNotFound)
	assert.ErrorIs(t, e.svc.Notifications.Delete(ctx, bob, ns[1].ID), ErrNotFound)

	changed, err := e.svc.Notifications.MarkAllRead(ctx, alice)
	require.NoError(t, err)
	assert.Equal(t, int64(2), changed)
	count, err = e.svc.Notifications.UnreadCount(ctx, alice)
	require.NoError(t, err)
	assert.Zero(t, count)

	// bob's own stays unread
	count, err = e.svc.Notifications.UnreadCount(ctx, bob)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	require.NoError(t, e.svc.Notifications.Delete(ctx, alice, ns[2].ID))
	list, err = e.svc.Notifications.List(ctx, alice, false, 0)
	require.NoError(t, err)
	assert.Len(t, list, 2)

	assert.ErrorIs(t, e.svc.Notifications.Delete(ctx, alice, uuid.New()), ErrNotFound)
}

func TestNotificationService_ListLimit(t *testing.T) {
	e := newEnv(t)
	alice := e.profile(t, "alice", models.RoleUser)
	bob := e.profile(t, "bob", models.RoleUser)
	seedNotifications(t, e, alice, bob, 5)

	list, err := e.svc.Notifications.List(context.Background(), alice, false, 2)
	require.NoError(t, err)
	assert.Len(t, list, 2)
}
