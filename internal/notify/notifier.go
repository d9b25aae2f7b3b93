// Package notify delivers push notifications to operators' devices.
package notify

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/spec-kit/install-tickets/internal/config"
)

// ErrNoToken is returned when the recipient has no registered device.
var ErrNoToken = errors.New("notify: recipient has no push token")

// Message is a single push notification.
type Message struct {
	Token string            `json:"token"`
	Title string            `json:"title"`
	Body  string            `json:"body"`
	Data  map[string]string `json:"data,omitempty"`
}

// Notifier sends a message to one device.
type Notifier interface {
	Send(ctx context.Context, msg Message) error
	Close() error
}

// NoopNotifier logs messages and drops them.
type NoopNotifier struct {
	logger *zap.Logger
}

// NewNoopNotifier builds a notifier that never leaves the process.
func NewNoopNotifier(logger *zap.Logger) *NoopNotifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NoopNotifier{logger: logger}
}

func (n *NoopNotifier) Send(_ context.Context, msg Message) error {
	if msg.Token == "" {
		return ErrNoToken
	}
	n.logger.Info("push notification skipped (noop mode)",
		zap.String("title", msg.Title),
		zap.Any("data", msg.Data),
	)
	return nil
}

func (n *NoopNotifier) Close() error { return nil }

// New selects the notifier for the configured mode.
func New(cfg config.NotificationConfig, logger *zap.Logger) (Notifier, error) {
	switch cfg.Mode {
	case config.NotifyModePush:
		return NewPushNotifier(cfg.AMQPURL, cfg.PushQueue, logger)
	case config.NotifyModeNoop, "":
		return NewNoopNotifier(logger), nil
	default:
		return nil, errors.New("notify: unknown mode " + cfg.Mode)
	}
}
