package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"go.uber.org/zap"

	"github.com/spec-kit/install-tickets/internal/events"
	"github.com/spec-kit/install-tickets/internal/notify"
	"github.com/spec-kit/install-tickets/internal/repository"
	"github.com/spec-kit/install-tickets/internal/worker"
)

// NotificationQueue accepts deliveries without blocking.
type NotificationQueue interface {
	Enqueue(job worker.Job) bool
}

// NotificationService turns lifecycle events into push notifications.
type NotificationService struct {
	dispatcher events.Dispatcher
	users      repository.UserRepository
	queue      NotificationQueue
	logger     *zap.Logger
}

// NewNotificationService creates the service.
func NewNotificationService(dispatcher events.Dispatcher, users repository.UserRepository, queue NotificationQueue, logger *zap.Logger) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationService{
		dispatcher: dispatcher,
		users:      users,
		queue:      queue,
		logger:     logger,
	}
}

// RegisterHandlers subscribes to events.
func (n *NotificationService) RegisterHandlers() {
	if n.dispatcher == nil {
		return
	}
	n.dispatcher.Subscribe(events.EventTicketCreated, n.logEvent)
	n.dispatcher.Subscribe(events.EventTicketRejected, n.logEvent)
	n.dispatcher.Subscribe(events.EventTicketApproved, n.handleTicketApproved)
	n.dispatcher.Subscribe(events.EventTicketTechStatusChanged, n.handleTechStatusChanged)
}

func (n *NotificationService) logEvent(_ context.Context, event events.Event) error {
	n.logger.Info(string(event.Type), zap.Int64("ticket_id", event.TicketID), zap.Any("payload", event.Payload))
	return nil
}

func (n *NotificationService) handleTicketApproved(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.TicketApprovedPayload)
	if !ok {
		return fmt.Errorf("unexpected payload %T for %s", event.Payload, event.Type)
	}
	return n.notify(ctx, event, payload.AssignedTo, notify.Message{
		Title: "New installation ticket approved",
		Body:  fmt.Sprintf("Customer: %s, Address: %s", payload.CustomerName, payload.CustomerAddress),
		Data: map[string]string{
			"ticket_id": strconv.FormatInt(event.TicketID, 10),
			"action":    "new_ticket",
		},
	})
}

func (n *NotificationService) handleTechStatusChanged(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.TicketTechStatusChangedPayload)
	if !ok {
		return fmt.Errorf("unexpected payload %T for %s", event.Payload, event.Type)
	}

	recipients := []int64{payload.RequestedBy}
	if payload.ApprovedBy != nil && *payload.ApprovedBy != payload.RequestedBy {
		recipients = append(recipients, *payload.ApprovedBy)
	}

	msg := notify.Message{
		Title: "Ticket status updated",
		Body:  fmt.Sprintf("%s set \"%s\" to %s", payload.TechName, payload.Title, payload.NewStatus),
		Data: map[string]string{
			"ticket_id":   strconv.FormatInt(event.TicketID, 10),
			"action":      "tech_status",
			"tech_status": string(payload.NewStatus),
		},
	}

	var errs []error
	for _, recipient := range recipients {
		if err := n.notify(ctx, event, recipient, msg); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// notify resolves the recipient's device token and queues the message.
func (n *NotificationService) notify(ctx context.Context, event events.Event, recipientID int64, msg notify.Message) error {
	user, err := n.users.GetByID(ctx, recipientID)
	if err != nil {
		return fmt.Errorf("load recipient %d: %w", recipientID, err)
	}
	if user.PushToken != nil {
		msg.Token = *user.PushToken
	}
	if n.queue == nil {
		return nil
	}
	n.queue.Enqueue(worker.Job{
		Event:       string(event.Type),
		TicketID:    event.TicketID,
		RecipientID: recipientID,
		Message:     msg,
	})
	return nil
}
