package handlers_test

import (
	"net/http"
	"testing"

	"zynexhub/internal/models"

	"github.com/stretchr/testify/assert"
)

func TestProbes(t *testing.T) {
	s := newTestServer(t)

	requireStatus(t, http.StatusOK, s.do(t, http.MethodGet, "/livez", nil, nil))
	requireStatus(t, http.StatusOK, s.do(t, http.MethodGet, "/healthz", nil, nil))

	s.ready.Store(false)
	requireStatus(t, http.StatusServiceUnavailable, s.do(t, http.MethodGet, "/healthz", nil, nil))
	requireStatus(t, http.StatusOK, s.do(t, http.MethodGet, "/livez", nil, nil))
}

func TestMetricsEndpoint(t *testing.T) {
	s := newTestServer(t)
	alice := s.user(t, "alice", models.RoleUser)
	s.createPost(t, &alice)

	w := s.do(t, http.MethodGet, "/metrics", nil, nil)
	requireStatus(t, http.StatusOK, w)
	assert.Contains(t, w.Body.String(), "zynexhub_http_request_duration_seconds")
}

func TestRequestIDInErrorEnvelope(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, http.MethodGet, "/api/v1/posts/not-a-uuid", nil, nil)
	requireStatus(t, http.StatusBadRequest, w)
	assert.Equal(t, w.Header().Get("X-Request-Id"), decode[struct {
		Error struct {
			RequestID string `json:"request_id"`
		} `json:"error"`
	}](t, w).Error.RequestID)
}
