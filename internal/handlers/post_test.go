package handlers_test

import (
	"net/http"
	"net/url"
	"testing"
	"time"

	"zynexhub/internal/models"
	"zynexhub/internal/services"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type likeResponse struct {
	Liked      bool `json:"liked"`
	LikesCount int  `json:"likes_count"`
}

type feedResponse struct {
	Posts      []services.PostView `json:"posts"`
	NextBefore string              `json:"next_before"`
	NextID     string              `json:"next_id"`
}

func TestPosts_CreateAndGet(t *testing.T) {
	s := newTestServer(t)
	alice := s.user(t, "alice", models.RoleUser)

	w := s.do(t, http.MethodPost, "/api/v1/posts", &alice, map[string]any{"content": "  hello **world**  "})
	requireStatus(t, http.StatusCreated, w)
	post := decode[models.Post](t, w)
	assert.Equal(t, "hello **world**", post.Content)
	assert.Equal(t, alice.ID, post.UserID)
	assert.Equal(t, "alice", post.Author.Username)

	w = s.do(t, http.MethodGet, "/api/v1/posts/"+post.ID.String(), nil, nil)
	requireStatus(t, http.StatusOK, w)
	view := decode[services.PostView](t, w)
	assert.Contains(t, string(view.ContentHTML), "<strong>world</strong>")
	assert.False(t, view.CanDelete)

	w = s.do(t, http.MethodGet, "/api/v1/posts/"+post.ID.String(), &alice, nil)
	requireStatus(t, http.StatusOK, w)
	assert.True(t, decode[services.PostView](t, w).CanDelete)
}

func TestPosts_CreateErrors(t *testing.T) {
	s := newTestServer(t)
	alice := s.user(t, "alice", models.RoleUser)

	tests := []struct {
		name   string
		user   *user
		body   any
		status int
		code   string
	}{
		{"anonymous", nil, map[string]any{"content": "x"}, http.StatusUnauthorized, "unauthenticated"},
		{"empty content", &alice, map[string]any{"content": "   "}, http.StatusBadRequest, "invalid_argument"},
		{"bad image url", &alice, map[string]any{"content": "x", "image_url": "ftp://host/a.png"}, http.StatusBadRequest, "invalid_argument"},
		{"malformed body", &alice, "not an object", http.StatusBadRequest, "invalid_argument"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := s.do(t, http.MethodPost, "/api/v1/posts", tt.user, tt.body)
			requireStatus(t, tt.status, w)
			assert.Equal(t, tt.code, errorCode(t, w))
		})
	}
}

func TestPosts_GetErrors(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, http.MethodGet, "/api/v1/posts/not-a-uuid", nil, nil)
	requireStatus(t, http.StatusBadRequest, w)

	w = s.do(t, http.MethodGet, "/api/v1/posts/"+uuid.NewString(), nil, nil)
	requireStatus(t, http.StatusNotFound, w)
	assert.Equal(t, "not_found", errorCode(t, w))
}

func TestPosts_ToggleLike(t *testing.T) {
	s := newTestServer(t)
	alice := s.user(t, "alice", models.RoleUser)
	bob := s.user(t, "bob", models.RoleUser)
	postID := s.createPost(t, &alice)
	path := "/api/v1/posts/" + postID.String() + "/like"

	w := s.do(t, http.MethodPost, path, &bob, nil)
	requireStatus(t, http.StatusOK, w)
	assert.Equal(t, likeResponse{Liked: true, LikesCount: 1}, decode[likeResponse](t, w))

	w = s.do(t, http.MethodGet, "/api/v1/posts/"+postID.String(), &bob, nil)
	requireStatus(t, http.StatusOK, w)
	assert.True(t, decode[services.PostView](t, w).UserLiked)

	w = s.do(t, http.MethodPost, path, &bob, nil)
	requireStatus(t, http.StatusOK, w)
	assert.Equal(t, likeResponse{Liked: false, LikesCount: 0}, decode[likeResponse](t, w))

	w = s.do(t, http.MethodPost, "/api/v1/posts/"+uuid.NewString()+"/like", &bob, nil)
	requireStatus(t, http.StatusNotFound, w)
}

func TestPosts_Feed(t *testing.T) {
	s := newTestServer(t)
	alice := s.user(t, "alice", models.RoleUser)
	for range 3 {
		s.createPost(t, &alice)
	}

	w := s.do(t, http.MethodGet, "/api/v1/posts?limit=2", nil, nil)
	requireStatus(t, http.StatusOK, w)
	page := decode[feedResponse](t, w)
	require.Len(t, page.Posts, 2)
	require.NotEmpty(t, page.NextBefore)
	assert.False(t, page.Posts[0].CreatedAt.Before(page.Posts[1].CreatedAt))

	w = s.do(t, http.MethodGet, "/api/v1/posts?sort=hot", nil, nil)
	requireStatus(t, http.StatusOK, w)
	assert.Len(t, decode[feedResponse](t, w).Posts, 3)

	w = s.do(t, http.MethodGet, "/api/v1/posts?sort=top", nil, nil)
	requireStatus(t, http.StatusBadRequest, w)

	w = s.do(t, http.MethodGet, "/api/v1/posts?before=yesterday", nil, nil)
	requireStatus(t, http.StatusBadRequest, w)
}

func TestPosts_FeedCursorSameTimestamp(t *testing.T) {
	s := newTestServer(t)
	alice := s.user(t, "alice", models.RoleUser)
	for range 4 {
		s.createPost(t, &alice)
	}
	at := time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)
	require.NoError(t, s.db.Model(&models.Post{}).Where("user_id = ?", alice.ID).Update("created_at", at).Error)

	seen := map[uuid.UUID]bool{}
	path := "/api/v1/posts?limit=2"
	for range 2 {
		w := s.do(t, http.MethodGet, path, nil, nil)
		requireStatus(t, http.StatusOK, w)
		page := decode[feedResponse](t, w)
		require.Len(t, page.Posts, 2)
		for _, p := range page.Posts {
			seen[p.ID] = true
		}
		require.NotEmpty(t, page.NextID)
		q := url.Values{"limit": {"2"}, "before": {page.NextBefore}, "before_id": {page.NextID}}
		path = "/api/v1/posts?" + q.Encode()
	}
	assert.Len(t, seen, 4)

	w := s.do(t, http.MethodGet, path, nil, nil)
	requireStatus(t, http.StatusOK, w)
	assert.Empty(t, decode[feedResponse](t, w).Posts)

	w = s.do(t, http.MethodGet, "/api/v1/posts?before_id="+uuid.NewString(), nil, nil)
	requireStatus(t, http.StatusBadRequest, w)
}

func TestPosts_Delete(t *testing.T) {
	s := newTestServer(t)
	alice := s.user(t, "alice", models.RoleUser)
	bob := s.user(t, "bob", models.RoleUser)
	mod := s.user(t, "mod", models.RoleModerator)
	postID := s.createPost(t, &alice)
	path := "/api/v1/posts/" + postID.String()

	w := s.do(t, http.MethodDelete, path, nil, nil)
	requireStatus(t, http.StatusUnauthorized, w)

	w = s.do(t, http.MethodDelete, path, &bob, nil)
	requireStatus(t, http.StatusForbidden, w)
	assert.Equal(t, "permission_denied", errorCode(t, w))

	w = s.do(t, http.MethodDelete, path, &alice, nil)
	requireStatus(t, http.StatusNoContent, w)

	w = s.do(t, http.MethodGet, path, &alice, nil)
	requireStatus(t, http.StatusNotFound, w)
	w = s.do(t, http.MethodGet, path+"/comments", nil, nil)
	requireStatus(t, http.StatusNotFound, w)
	w = s.do(t, http.MethodPost, path+"/comments", &bob, map[string]any{"content": "late"})
	requireStatus(t, http.StatusNotFound, w)

	w = s.do(t, http.MethodGet, "/api/v1/posts", nil, nil)
	requireStatus(t, http.StatusOK, w)
	assert.Empty(t, decode[feedResponse](t, w).Posts)

	other := s.createPost(t, &bob)
	w = s.do(t, http.MethodDelete, "/api/v1/posts/"+other.String(), &mod, nil)
	requireStatus(t, http.StatusNoContent, w)
}
