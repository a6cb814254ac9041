// Package notification delivers board failure notices to subscribed browsers
// over Web Push.
package notification

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"

	"github.com/SherClockHolmes/webpush-go"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"fieldboard/internal/board"
	"fieldboard/internal/model"
)

// NotificationSender defines the interface for sending a web push notification.
type NotificationSender interface {
	Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error)
}

// WebPushSender is a real implementation of NotificationSender using the webpush library.
type WebPushSender struct{}

// Send sends a notification using the webpush library.
func (s *WebPushSender) Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error) {
	return webpush.SendNotification(payload, sub, options)
}

// Payload is the JSON body pushed to browsers.
type Payload struct {
	Title string        `json:"title"`
	Body  string        `json:"body"`
	Data  board.Failure `json:"data"`
}

// WorkerPool manages a pool of workers for sending notifications.
type WorkerPool struct {
	size    int
	jobs    chan board.Failure
	db      *gorm.DB
	webpush *webpush.Options
	sender  NotificationSender
	logger  *zap.SugaredLogger
	wg      sync.WaitGroup
}

// NewWorkerPool creates a new worker pool. queue is the number of notices
// that may wait for a worker; it is at least size.
func NewWorkerPool(size, queue int, db *gorm.DB, webpushOptions *webpush.Options, logger *zap.SugaredLogger) *WorkerPool {
	if size <= 0 {
		size = 1
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &WorkerPool{
		size:    size,
		jobs:    make(chan board.Failure, max(size, queue)),
		db:      db,
		webpush: webpushOptions,
		sender:  &WebPushSender{}, // Use the real sender by default
		logger:  logger,
	}
}

// Start launches the worker goroutines.
func (wp *WorkerPool) Start(ctx context.Context) {
	for i := 0; i < wp.size; i++ {
		wp.wg.Add(1)
		go wp.worker(ctx, i)
	}
}

// Wait blocks until every worker has returned after ctx is done.
func (wp *WorkerPool) Wait() {
	wp.wg.Wait()
}

func (wp *WorkerPool) worker(ctx context.Context, id int) {
	defer wp.wg.Done()
	wp.logger.Debugw("worker started", "worker", id)
	for {
		select {
		case f := <-wp.jobs:
			wp.sendFailure(ctx, f)
		case <-ctx.Done():
			wp.logger.Debugw("worker shutting down", "worker", id)
			return
		}
	}
}

// Dispatch queues f without blocking. It reports false when the queue is full
// and the notice was dropped.
func (wp *WorkerPool) Dispatch(f board.Failure) bool {
	select {
	case wp.jobs <- f:
		return true
	default:
		wp.logger.Warnw("notification queue full, dropping failure notice", "item", f.ItemID, "operation", f.Operation)
		return false
	}
}

// NotifyFailure implements board.Notifier.
func (wp *WorkerPool) NotifyFailure(f board.Failure) {
	wp.Dispatch(f)
}

// Jobs returns the jobs channel for testing.
func (wp *WorkerPool) Jobs() chan board.Failure {
	return wp.jobs
}

func (wp *WorkerPool) sendFailure(ctx context.Context, f board.Failure) {
	var subscriptions []model.PushSubscription
	if err := wp.db.WithContext(ctx).Find(&subscriptions).Error; err != nil {
		wp.logger.Errorw("failed to load push subscriptions", "error", err)
		return
	}
	if len(subscriptions) == 0 {
		return
	}

	payload, err := json.Marshal(Payload{
		Title: titleFor(f.Operation),
		Body:  f.Message,
		Data:  f,
	})
	if err != nil {
		wp.logger.Errorw("failed to encode push payload", "error", err)
		return
	}

	wp.logger.Infow("sending failure notice", "item", f.ItemID, "operation", f.Operation, "subscribers", len(subscriptions))
	for _, sub := range subscriptions {
		wp.sendNotification(ctx, sub, payload)
	}
}

func titleFor(op string) string {
	switch op {
	case board.OpStatus:
		return "Status change not saved"
	case board.OpPlacement:
		return "Schedule change not saved"
	default:
		return "Change not saved"
	}
}

// sendNotification sends a single web push notification.
func (wp *WorkerPool) sendNotification(ctx context.Context, sub model.PushSubscription, payload []byte) {
	wpSub := &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys: webpush.Keys{
			P256dh: sub.P256DH,
			Auth:   sub.Auth,
		},
	}

	resp, err := wp.sender.Send(payload, wpSub, wp.webpush)
	if err != nil {
		wp.logger.Warnw("failed to send notification", "endpoint", sub.Endpoint, "error", err)
		return
	}
	defer resp.Body.Close()

	// Handle expired subscriptions
	if resp.StatusCode == http.StatusGone {
		wp.logger.Infow("subscription expired, deleting", "endpoint", sub.Endpoint)
		if err := wp.db.WithContext(ctx).Delete(&sub).Error; err != nil {
			wp.logger.Errorw("failed to delete expired subscription", "endpoint", sub.Endpoint, "error", err)
		}
	}
}
