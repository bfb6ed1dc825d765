package handlers_test

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"zynexhub/internal/apierr"
	"zynexhub/internal/config"
	"zynexhub/internal/db/dbtest"
	"zynexhub/internal/metrics"
	"zynexhub/internal/middleware"
	"zynexhub/internal/models"
	"zynexhub/internal/router"
	"zynexhub/internal/services"
	"zynexhub/internal/utils"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

const testSecret = "handlers-test-secret"

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

type testServer struct {
	engine *gin.Engine
	db     *gorm.DB
	svc    *services.Services
	hub    *services.Hub
	inbox  *services.Inbox
	ready  *atomic.Bool
}

type user struct {
	ID    uuid.UUID
	Token string
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	conn := dbtest.New(t)
	log := logrus.New()
	log.SetOutput(io.Discard)

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	cache, err := utils.NewCache[services.CommentPage](16, time.Minute)
	require.NoError(t, err)
	hub := services.NewHub(8)
	inbox := services.NewInbox(8)

	svc := services.New(services.Deps{
		DB:      conn,
		Cache:   cache,
		Hub:     hub,
		Inbox:   inbox,
		Metrics: m,
		Limits:  testLimits,
		Log:     log,
	})

	r := gin.New()
	r.Use(middleware.RequestLogger(log), m.Middleware())

	ready := &atomic.Bool{}
	ready.Store(true)
	router.RegisterRoutes(r, router.Deps{
		DB:        conn,
		Services:  svc,
		Hub:       hub,
		Inbox:     inbox,
		Auth:      middleware.NewAuth(testSecret, svc.Profiles),
		Limiter:   middleware.NewRateLimiter(1000, 1000),
		Limits:    testLimits,
		Ready:     ready,
		Metrics:   promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
		Heartbeat: time.Hour,
	})

	return &testServer{engine: r, db: conn, svc: svc, hub: hub, inbox: inbox, ready: ready}
}

// user mints a token for a fresh subject; the profile is provisioned by the
// auth middleware on the first request.
func (s *testServer) user(t *testing.T, username string, role models.Role) user {
	t.Helper()
	id := uuid.New()
	claims := middleware.TokenClaims{
		Role:     string(role),
		Username: username,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   id.String(),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)
	return user{ID: id, Token: token}
}

func (s *testServer) do(t *testing.T, method, path string, u *user, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if u != nil {
		req.Header.Set("Authorization", "Bearer "+u.Token)
	}
	w := httptest.NewRecorder()
	s.engine.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func errorCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	return decode[apierr.ErrorResponse](t, w).Error.Code
}

func requireStatus(t *testing.T, want int, w *httptest.ResponseRecorder) {
	t.Helper()
	require.Equal(t, want, w.Code, w.Body.String())
}

// createPost goes through the API so the author's profile exists.
func (s *testServer) createPost(t *testing.T, author *user) uuid.UUID {
	t.Helper()
	w := s.do(t, http.MethodPost, "/api/v1/posts", author, map[string]any{"content": "first post"})
	requireStatus(t, http.StatusCreated, w)
	return decode[models.Post](t, w).ID
}

func (s *testServer) createComment(t *testing.T, author *user, postID uuid.UUID, parentID *uuid.UUID, content string) models.Comment {
	t.Helper()
	w := s.do(t, http.MethodPost, "/api/v1/posts/"+postID.String()+"/comments", author,
		map[string]any{"content": content, "parent_id": parentID})
	requireStatus(t, http.StatusCreated, w)
	return decode[models.Comment](t, w)
}
