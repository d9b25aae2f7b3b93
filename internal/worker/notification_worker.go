package worker

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/install-tickets/internal/notify"
)

// Delivery outcomes reported to the ResultObserver.
const (
	ResultSent    = "sent"
	ResultFailed  = "failed"
	ResultNoToken = "no_token"
	ResultDropped = "dropped"
)

const defaultSendTimeout = 10 * time.Second

// Job is a single notification to deliver.
type Job struct {
	Event       string
	TicketID    int64
	RecipientID int64
	Message     notify.Message
}

// ResultObserver receives one outcome per job.
type ResultObserver interface {
	ObserveNotification(result string)
}

// NotificationWorker delivers jobs on a fixed set of goroutines fed by a
// bounded queue. Enqueue never blocks; a full queue drops the job.
type NotificationWorker struct {
	notifier    notify.Notifier
	logger      *zap.Logger
	observer    ResultObserver
	concurrency int
	sendTimeout time.Duration

	mu      sync.RWMutex
	jobs    chan Job
	stopped bool
	started bool
	wg      sync.WaitGroup
}

// NewNotificationWorker builds a worker; call Start before enqueuing.
func NewNotificationWorker(notifier notify.Notifier, logger *zap.Logger, observer ResultObserver, concurrency, queueSize int) *NotificationWorker {
	if logger == nil {
		logger = zap.NewNop()
	}
	if concurrency < 1 {
		concurrency = 1
	}
	if queueSize < 1 {
		queueSize = 1
	}
	return &NotificationWorker{
		notifier:    notifier,
		logger:      logger,
		observer:    observer,
		concurrency: concurrency,
		sendTimeout: defaultSendTimeout,
		jobs:        make(chan Job, queueSize),
	}
}

// Start launches the delivery goroutines.
func (w *NotificationWorker) Start() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.started || w.stopped {
		return
	}
	w.started = true
	for i := 0; i < w.concurrency; i++ {
		w.wg.Add(1)
		go w.loop()
	}
}

// Enqueue schedules a job. It reports false when the job was dropped.
func (w *NotificationWorker) Enqueue(job Job) bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.stopped {
		w.drop(job, "worker stopped")
		return false
	}
	select {
	case w.jobs <- job:
		return true
	default:
		w.drop(job, "queue full")
		return false
	}
}

// Stop stops accepting jobs and waits for queued ones to drain or ctx to end.
func (w *NotificationWorker) Stop(ctx context.Context) error {
	w.mu.Lock()
	if w.stopped {
		w.mu.Unlock()
		return nil
	}
	w.stopped = true
	close(w.jobs)
	w.mu.Unlock()

	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (w *NotificationWorker) loop() {
	defer w.wg.Done()
	for job := range w.jobs {
		w.deliver(job)
	}
}

func (w *NotificationWorker) deliver(job Job) {
	ctx, cancel := context.WithTimeout(context.Background(), w.sendTimeout)
	defer cancel()

	fields := []zap.Field{
		zap.String("event", job.Event),
		zap.Int64("ticket_id", job.TicketID),
		zap.Int64("recipient_id", job.RecipientID),
	}

	err := w.notifier.Send(ctx, job.Message)
	switch {
	case err == nil:
		w.observe(ResultSent)
		w.logger.Info("notification sent", fields...)
	case errors.Is(err, notify.ErrNoToken):
		w.observe(ResultNoToken)
		w.logger.Info("notification skipped, recipient has no push token", fields...)
	default:
		w.observe(ResultFailed)
		w.logger.Warn("notification failed", append(fields, zap.Error(err))...)
	}
}

func (w *NotificationWorker) drop(job Job, reason string) {
	w.observe(ResultDropped)
	w.logger.Warn("notification dropped",
		zap.String("reason", reason),
		zap.String("event", job.Event),
		zap.Int64("ticket_id", job.TicketID),
		zap.Int64("recipient_id", job.RecipientID),
	)
}

func (w *NotificationWorker) observe(result string) {
	if w.observer != nil {
		w.observer.ObserveNotification(result)
	}
}
