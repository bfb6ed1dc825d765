package services

import (
	"context"
	"time"

	"zynexhub/internal/metrics"
	"zynexhub/internal/models"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

const (
	notifyBatchSize     = 50
	notifyFlushInterval = 500 * time.Millisecond
)

// Notifier 异步写入通知, 不阻塞触发它的请求
type Notifier struct {
	db      *gorm.DB
	queue   chan models.Notification
	log     *logrus.Entry
	metrics *metrics.Metrics
}

func NewNotifier(db *gorm.DB, queueSize int, log *logrus.Entry, m *metrics.Metrics) *Notifier {
	return &Notifier{
		db:      db,
		queue:   make(chan models.Notification, queueSize), // 缓冲队列，防止阻塞
		log:     log.WithField("component", "notifier"),
		metrics: m,
	}
}

// Enqueue hands notifications to the worker. It never blocks: when the
// queue is full the notification is dropped and counted.
func (n *Notifier) Enqueue(notifications ...models.Notification) {
	if n == nil {
		return
	}
	for _, item := range notifications {
		select {
		case n.queue <- item:
		default:
			n.metrics.Notification("dropped")
			n.log.WithFields(logrus.Fields{
				"user_id": item.UserID,
				"type":    item.Type,
			}).Warn("notification queue full, dropping")
		}
	}
}

// Run 后台批量写入, 直到 ctx 结束; 退出前会把队列里剩余的通知写完
func (n *Notifier) Run(ctx context.Context) {
	batch := make([]models.Notification, 0, notifyBatchSize)
	ticker := time.NewTicker(notifyFlushInterval)
	defer ticker.Stop()

	flush := func() {
		if len(batch) == 0 {
			return
		}
		n.store(ctx, batch)
		batch = batch[:0]
	}

	for {
		select {
		case item := <-n.queue:
			batch = append(batch, item)
			if len(batch) >= notifyBatchSize {
				flush()
			}
		case <-ticker.C:
			flush()
		case <-ctx.Done():
			n.drain(batch)
			return
		}
	}
}

// drain stores what is still queued, with a fresh context since ctx is done.
func (n *Notifier) drain(batch []models.Notification) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	for {
		select {
		case item := <-n.queue:
			batch = append(batch, item)
		default:
			if len(batch) > 0 {
				n.store(ctx, batch)
			}
			return
		}
	}
}

func (n *Notifier) store(ctx context.Context, batch []models.Notification) {
	if err := n.db.WithContext(ctx).CreateInBatches(&batch, notifyBatchSize).Error; err != nil {
		for range batch {
			n.metrics.Notification("failed")
		}
		n.log.WithError(err).WithField("count", len(batch)).Error("failed to store notifications")
		return
	}
	for range batch {
		n.metrics.Notification("stored")
	}
}
