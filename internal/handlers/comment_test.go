package handlers_test

import (
	"net/http"
	"testing"

	"zynexhub/internal/models"
	"zynexhub/internal/thread"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type threadResponse struct {
	Comments []*thread.Node `json:"comments"`
}

type voteResponse struct {
	CommentID  uuid.UUID        `json:"comment_id"`
	Action     string           `json:"action"`
	VotesCount int              `json:"votes_count"`
	UserVote   *models.VoteType `json:"user_vote"`
}

func TestComments_ThreadShape(t *testing.T) {
	s := newTestServer(t)
	alice := s.user(t, "alice", models.RoleUser)
	bob := s.user(t, "bob", models.RoleUser)
	postID := s.createPost(t, &alice)

	root := s.createComment(t, &alice, postID, nil, "root")
	reply := s.createComment(t, &bob, postID, &root.ID, "reply to @alice")
	s.createComment(t, &alice, postID, &reply.ID, "nested")

	w := s.do(t, http.MethodGet, "/api/v1/posts/"+postID.String()+"/comments", &bob, nil)
	requireStatus(t, http.StatusOK, w)
	forest := decode[threadResponse](t, w).Comments

	require.Len(t, forest, 1)
	assert.Equal(t, root.ID, forest[0].ID)
	assert.False(t, forest[0].CanEdit)
	assert.False(t, forest[0].CanDelete)
	require.Len(t, forest[0].Replies, 1)
	assert.Equal(t, reply.ID, forest[0].Replies[0].ID)
	assert.True(t, forest[0].Replies[0].CanEdit)
	assert.Contains(t, string(forest[0].Replies[0].ContentHTML), `href="/u/alice"`)
	require.Len(t, forest[0].Replies[0].Replies, 1)

	w = s.do(t, http.MethodGet, "/api/v1/posts/"+postID.String(), nil, nil)
	requireStatus(t, http.StatusOK, w)
	assert.Equal(t, 3, decode[models.Post](t, w).CommentsCount)
}

func TestComments_CreateErrors(t *testing.T) {
	s := newTestServer(t)
	alice := s.user(t, "alice", models.RoleUser)
	postID := s.createPost(t, &alice)
	otherPost := s.createPost(t, &alice)
	foreign := s.createComment(t, &alice, otherPost, nil, "elsewhere")

	tests := []struct {
		name   string
		postID string
		body   map[string]any
		status int
	}{
		{"unknown post", uuid.NewString(), map[string]any{"content": "x"}, http.StatusNotFound},
		{"bad post id", "nope", map[string]any{"content": "x"}, http.StatusBadRequest},
		{"empty", postID.String(), map[string]any{"content": ""}, http.StatusBadRequest},
		{"parent in other post", postID.String(), map[string]any{"content": "x", "parent_id": foreign.ID}, http.StatusBadRequest},
		{"unknown parent", postID.String(), map[string]any{"content": "x", "parent_id": uuid.New()}, http.StatusNotFound},
		{"malformed parent", postID.String(), map[string]any{"content": "x", "parent_id": "abc"}, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := s.do(t, http.MethodPost, "/api/v1/posts/"+tt.postID+"/comments", &alice, tt.body)
			requireStatus(t, tt.status, w)
		})
	}
}

func TestComments_EditAndDelete(t *testing.T) {
	s := newTestServer(t)
	alice := s.user(t, "alice", models.RoleUser)
	bob := s.user(t, "bob", models.RoleUser)
	mod := s.user(t, "mod", models.RoleModerator)
	postID := s.createPost(t, &alice)
	c := s.createComment(t, &alice, postID, nil, "original")
	path := "/api/v1/comments/" + c.ID.String()

	w := s.do(t, http.MethodPatch, path, &bob, map[string]any{"content": "hijack"})
	requireStatus(t, http.StatusForbidden, w)
	assert.Equal(t, "permission_denied", errorCode(t, w))

	w = s.do(t, http.MethodPatch, path, &alice, map[string]any{"content": "edited"})
	requireStatus(t, http.StatusOK, w)
	edited := decode[models.Comment](t, w)
	assert.Equal(t, "edited", edited.Content)
	assert.True(t, edited.IsEdited)
	assert.Equal(t, 1, edited.EditCount)

	w = s.do(t, http.MethodDelete, path, &bob, nil)
	requireStatus(t, http.StatusForbidden, w)

	w = s.do(t, http.MethodDelete, path, &mod, nil)
	requireStatus(t, http.StatusOK, w)
	removed := decode[models.Comment](t, w)
	assert.True(t, removed.IsDeleted)
	assert.Equal(t, models.RemovedPlaceholder, removed.Content)

	w = s.do(t, http.MethodDelete, path, &alice, nil)
	requireStatus(t, http.StatusOK, w)

	w = s.do(t, http.MethodPatch, path, &alice, map[string]any{"content": "too late"})
	requireStatus(t, http.StatusForbidden, w)

	w = s.do(t, http.MethodGet, "/api/v1/posts/"+postID.String()+"/comments", nil, nil)
	requireStatus(t, http.StatusOK, w)
	forest := decode[threadResponse](t, w).Comments
	require.Len(t, forest, 1)
	assert.True(t, forest[0].IsDeleted)
}

func TestComments_Vote(t *testing.T) {
	s := newTestServer(t)
	alice := s.user(t, "alice", models.RoleUser)
	bob := s.user(t, "bob", models.RoleUser)
	carol := s.user(t, "carol", models.RoleUser)
	postID := s.createPost(t, &alice)
	c := s.createComment(t, &alice, postID, nil, "vote on me")
	path := "/api/v1/comments/" + c.ID.String() + "/vote"

	steps := []struct {
		voter     *user
		direction string
		action    string
		count     int
		userVote  *models.VoteType
	}{
		{&bob, "up", "create", 1, ptr(models.VoteUp)},
		{&carol, "down", "create", 0, ptr(models.VoteDown)},
		{&bob, "down", "update", -2, ptr(models.VoteDown)},
		{&bob, "down", "delete", -1, nil},
		{&carol, "upvote", "update", 1, ptr(models.VoteUp)},
	}
	for i, st := range steps {
		w := s.do(t, http.MethodPost, path, st.voter, map[string]any{"direction": st.direction})
		requireStatus(t, http.StatusOK, w)
		got := decode[voteResponse](t, w)
		assert.Equal(t, st.action, got.Action, "step %d", i)
		assert.Equal(t, st.count, got.VotesCount, "step %d", i)
		assert.Equal(t, st.userVote, got.UserVote, "step %d", i)
	}

	w := s.do(t, http.MethodGet, "/api/v1/posts/"+postID.String()+"/comments", &carol, nil)
	requireStatus(t, http.StatusOK, w)
	forest := decode[threadResponse](t, w).Comments
	require.Len(t, forest, 1)
	assert.Equal(t, 1, forest[0].VotesCount)
	require.NotNil(t, forest[0].UserVote)
	assert.Equal(t, models.VoteUp, *forest[0].UserVote)

	w = s.do(t, http.MethodPost, path, &bob, map[string]any{"direction": "sideways"})
	requireStatus(t, http.StatusBadRequest, w)

	w = s.do(t, http.MethodPost, path, nil, map[string]any{"direction": "up"})
	requireStatus(t, http.StatusUnauthorized, w)

	w = s.do(t, http.MethodPost, "/api/v1/comments/"+uuid.NewString()+"/vote", &bob, map[string]any{"direction": "up"})
	requireStatus(t, http.StatusNotFound, w)
}

func ptr[T any](v T) *T { return &v }
