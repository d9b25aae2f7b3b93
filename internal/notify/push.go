package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// publisher is the subset of *amqp.Channel used for delivery.
type publisher interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// PushNotifier hands messages to a push gateway through a durable RabbitMQ queue.
type PushNotifier struct {
	url    string
	queue  string
	logger *zap.Logger

	mu   sync.Mutex
	conn *amqp.Connection
	ch   publisher
	dial func() (publisher, error)
}

// NewPushNotifier connects to the broker and declares the queue.
func NewPushNotifier(url, queue string, logger *zap.Logger) (*PushNotifier, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	n := &PushNotifier{url: url, queue: queue, logger: logger}
	n.dial = n.connect
	n.mu.Lock()
	defer n.mu.Unlock()
	ch, err := n.dial()
	if err != nil {
		return nil, err
	}
	n.ch = ch
	return n, nil
}

func (n *PushNotifier) connect() (publisher, error) {
	conn, err := amqp.Dial(n.url)
	if err != nil {
		return nil, fmt.Errorf("rabbitmq dial: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("rabbitmq channel: %w", err)
	}
	if _, err := ch.QueueDeclare(n.queue, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("rabbitmq queue declare: %w", err)
	}
	n.conn = conn
	return ch, nil
}

// Send publishes msg as a persistent JSON message. A failed publish drops the
// channel so the next call reconnects.
func (n *PushNotifier) Send(ctx context.Context, msg Message) error {
	if msg.Token == "" {
		return ErrNoToken
	}
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal push message: %w", err)
	}

	n.mu.Lock()
	defer n.mu.Unlock()

	if n.ch == nil {
		ch, err := n.dial()
		if err != nil {
			return err
		}
		n.ch = ch
	}

	err = n.ch.PublishWithContext(ctx, "", n.queue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		Body:         body,
	})
	if err != nil {
		n.logger.Warn("push publish failed", zap.String("queue", n.queue), zap.Error(err))
		n.resetLocked()
		return fmt.Errorf("rabbitmq publish: %w", err)
	}
	return nil
}

// Close releases the channel and connection.
func (n *PushNotifier) Close() error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.resetLocked()
	return nil
}

func (n *PushNotifier) resetLocked() {
	if n.ch != nil {
		_ = n.ch.Close()
		n.ch = nil
	}
	if n.conn != nil {
		_ = n.conn.Close()
		n.conn = nil
	}
}
