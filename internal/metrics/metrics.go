// Package metrics holds the service's prometheus collectors.
package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics is safe to use through a nil pointer; every method is then a no-op.
type Metrics struct {
	votes         *prometheus.CounterVec
	comments      prometheus.Counter
	reports       *prometheus.CounterVec
	notifications *prometheus.CounterVec
	messages      prometheus.Counter
	storiesPurged prometheus.Counter
	httpDuration  *prometheus.HistogramVec
}

func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		votes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "zynexhub",
			Name:      "comment_votes_total",
			Help:      "Comment votes applied, by resulting action.",
		}, []string{"action"}),
		comments: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "zynexhub",
			Name:      "comments_created_total",
			Help:      "Comments created.",
		}),
		reports: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "zynexhub",
			Name:      "comment_reports_total",
			Help:      "Comment reports filed, by reason.",
		}, []string{"reason"}),
		notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "zynexhub",
			Name:      "notifications_total",
			Help:      "Notifications handled by the background notifier, by result.",
		}, []string{"result"}),
		messages: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "zynexhub",
			Name:      "messages_sent_total",
			Help:      "Direct messages sent.",
		}),
		storiesPurged: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "zynexhub",
			Name:      "stories_purged_total",
			Help:      "Expired stories removed by the cleanup loop.",
		}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "zynexhub",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
	}
	reg.MustRegister(m.votes, m.comments, m.reports, m.notifications, m.messages, m.storiesPurged, m.httpDuration)
	return m
}

func (m *Metrics) VoteApplied(action string) {
	if m == nil {
		return
	}
	m.votes.WithLabelValues(action).Inc()
}

func (m *Metrics) CommentCreated() {
	if m == nil {
		return
	}
	m.comments.Inc()
}

func (m *Metrics) ReportFiled(reason string) {
	if m == nil {
		return
	}
	m.reports.WithLabelValues(reason).Inc()
}

// Notification counts a notifier outcome: "stored", "failed" or "dropped".
func (m *Metrics) Notification(result string) {
	if m == nil {
		return
	}
	m.notifications.WithLabelValues(result).Inc()
}

func (m *Metrics) MessageSent() {
	if m == nil {
		return
	}
	m.messages.Inc()
}

func (m *Metrics) StoriesPurged(n int64) {
	if m == nil {
		return
	}
	m.storiesPurged.Add(float64(n))
}

// Middleware observes request latency labelled by the matched route pattern.
func (m *Metrics) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if m == nil {
			c.Next()
			return
		}
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.httpDuration.
			WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).
			Observe(time.Since(start).Seconds())
	}
}
