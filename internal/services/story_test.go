package services

import (
	"context"
	"strings"
	"testing"
	"time"

	"zynexhub/internal/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStoryService_Create(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	alice := e.profile(t, "alice", models.RoleUser)

	now := time.Now()
	e.svc.Stories.now = func() time.Time { return now }

	st, err := e.svc.Stories.Create(ctx, alice, "https://cdn.example.com/s.jpg", ptr("  sunset  "))
	require.NoError(t, err)
	assert.Equal(t, "alice", st.Author.Username)
	require.NotNil(t, st.Caption)
	assert.Equal(t, "sunset", *st.Caption)
	assert.WithinDuration(t, now.Add(testLimits.StoryTTL), st.ExpiresAt, time.Second)

	st, err = e.svc.Stories.Create(ctx, alice, "https://cdn.example.com/t.jpg", ptr(" "))
	require.NoError(t, err)
	assert.Nil(t, st.Caption)

	_, err = e.svc.Stories.Create(ctx, alice, "ftp://cdn.example.com/s.jpg", nil)
	assert.ErrorIs(t, err, ErrInvalidArgument)
	_, err = e.svc.Stories.Create(ctx, alice, "https://cdn.example.com/s.jpg", ptr(strings.Repeat("c", storyCaptionMax+1)))
	assert.ErrorIs(t, err, ErrInvalidArgument)
	_, err = e.svc.Stories.Create(ctx, models.Caller{ID: uuid.New()}, "https://cdn.example.com/s.jpg", nil)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStoryService_ActiveAndView(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	alice := e.profile(t, "alice", models.RoleUser)
	bob := e.profile(t, "bob", models.RoleUser)
	carol := e.profile(t, "carol", models.RoleUser)

	now := time.Now()
	e.svc.Stories.now = func() time.Time { return now }
	mk := func(author models.Caller, age time.Duration) models.Story {
		st := models.Story{UserID: author.ID, MediaURL: "https://cdn.example.com/x.jpg", CreatedAt: now.Add(-age), ExpiresAt: now.Add(-age).Add(testLimits.StoryTTL)}
		require.NoError(t, e.db.Create(&st).Error)
		return st
	}
	a1 := mk(alice, 3*time.Hour)
	b1 := mk(bob, 2*time.Hour)
	a2 := mk(alice, time.Hour)
	mk(carol, 30*time.Hour) // expired

	require.NoError(t, e.svc.Stories.View(ctx, bob, a1.ID))
	require.NoError(t, e.svc.Stories.View(ctx, bob, a1.ID))

	groups, err := e.svc.Stories.Active(ctx, bob)
	require.NoError(t, err)
	require.Len(t, groups, 2)
	assert.Equal(t, alice.ID, groups[0].Author.ID)
	require.Len(t, groups[0].Stories, 2)
	assert.Equal(t, a1.ID, groups[0].Stories[0].ID)
	assert.True(t, groups[0].Stories[0].Viewed)
	assert.Equal(t, a2.ID, groups[0].Stories[1].ID)
	assert.False(t, groups[0].Stories[1].Viewed)
	assert.False(t, groups[0].Viewed)
	assert.Equal(t, b1.ID, groups[1].Stories[0].ID)

	require.NoError(t, e.svc.Stories.View(ctx, bob, a2.ID))
	groups, err = e.svc.Stories.Active(ctx, bob)
	require.NoError(t, err)
	assert.True(t, groups[0].Viewed)

	anon, err := e.svc.Stories.Active(ctx, models.Caller{})
	require.NoError(t, err)
	require.Len(t, anon, 2)
	assert.False(t, anon[0].Viewed)

	var expired models.Story
	require.NoError(t, e.db.First(&expired, "user_id = ?", carol.ID).Error)
	assert.ErrorIs(t, e.svc.Stories.View(ctx, bob, expired.ID), ErrNotFound)
	assert.ErrorIs(t, e.svc.Stories.View(ctx, bob, uuid.New()), ErrNotFound)
}

func TestStoryService_Delete(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	alice := e.profile(t, "alice", models.RoleUser)
	bob := e.profile(t, "bob", models.RoleUser)
	mod := e.profile(t, "mod", models.RoleModerator)

	st, err := e.svc.Stories.Create(ctx, alice, "https://cdn.example.com/s.jpg", nil)
	require.NoError(t, err)
	require.NoError(t, e.svc.Stories.View(ctx, bob, st.ID))

	assert.ErrorIs(t, e.svc.Stories.Delete(ctx, bob, st.ID), ErrForbidden)
	require.NoError(t, e.svc.Stories.Delete(ctx, alice, st.ID))
	assert.ErrorIs(t, e.svc.Stories.Delete(ctx, alice, st.ID), ErrNotFound)

	var views int64
	require.NoError(t, e.db.Model(&models.StoryView{}).Where("story_id = ?", st.ID).Count(&views).Error)
	assert.Zero(t, views)

	st, err = e.svc.Stories.Create(ctx, alice, "https://cdn.example.com/s2.jpg", nil)
	require.NoError(t, err)
	assert.NoError(t, e.svc.Stories.Delete(ctx, mod, st.ID))
}

func TestStoryService_PurgeExpired(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	alice := e.profile(t, "alice", models.RoleUser)
	bob := e.profile(t, "bob", models.RoleUser)

	now := time.Now()
	e.svc.Stories.now = func() time.Time { return now }
	old, err := e.svc.Stories.Create(ctx, alice, "https://cdn.example.com/old.jpg", nil)
	require.NoError(t, err)
	require.NoError(t, e.svc.Stories.View(ctx, bob, old.ID))

	now = now.Add(testLimits.StoryTTL / 2)
	fresh, err := e.svc.Stories.Create(ctx, alice, "https://cdn.example.com/new.jpg", nil)
	require.NoError(t, err)

	now = now.Add(testLimits.StoryTTL/2 + time.Minute)
	n, err := e.svc.Stories.PurgeExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	var left []models.Story
	require.NoError(t, e.db.Find(&left).Error)
	require.Len(t, left, 1)
	assert.Equal(t, fresh.ID, left[0].ID)

	var views int64
	require.NoError(t, e.db.Model(&models.StoryView{}).Count(&views).Error)
	assert.Zero(t, views)
}
