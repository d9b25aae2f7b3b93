package service

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/spec-kit/install-tickets/internal/auth"
	"github.com/spec-kit/install-tickets/internal/domain"
	"github.com/spec-kit/install-tickets/internal/events"
	"github.com/spec-kit/install-tickets/internal/repository"
	apperrors "github.com/spec-kit/install-tickets/pkg/util"
)

// Transition labels reported to the TransitionObserver.
const (
	TransitionCreate     = "create"
	TransitionApprove    = "approve"
	TransitionReject     = "reject"
	TransitionTechStatus = "tech_status"
)

// TransitionObserver is told about every committed lifecycle transition.
type TransitionObserver interface {
	ObserveTransition(transition string)
}

// TicketService coordinates ticket workflows.
type TicketService struct {
	store      repository.Store
	dispatcher events.Dispatcher
	logger     *zap.Logger
	observer   TransitionObserver
}

// TicketDependencies bundles collaborators for the ticket service.
type TicketDependencies struct {
	Store      repository.Store
	Dispatcher events.Dispatcher
	Logger     *zap.Logger
	Observer   TransitionObserver
}

// TicketCreateInput describes ticket creation payload. CustomerID selects an
// existing customer; otherwise Identifier registers a new one.
type TicketCreateInput struct {
	Title        string
	Description  string
	Priority     string
	RequestedBy  *int64
	CustomerID   *int64
	CustomerName string
	Address      string
	Identifier   string
	PhoneNumber  string
}

// NewTicketService constructs the service.
func NewTicketService(deps TicketDependencies) *TicketService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TicketService{
		store:      deps.Store,
		dispatcher: deps.Dispatcher,
		logger:     logger,
		observer:   deps.Observer,
	}
}

// Create registers a PENDING ticket on behalf of the calling seller, resolving
// its customer in the same transaction.
func (s *TicketService) Create(ctx context.Context, principal domain.Principal, input TicketCreateInput) (*domain.Ticket, error) {
	if err := auth.RequireRole(principal, domain.RoleSeller); err != nil {
		return nil, apperrors.NewForbidden("only sellers can create tickets")
	}
	if err := validateCreate(input); err != nil {
		return nil, err
	}
	if *input.RequestedBy != principal.UserID {
		return nil, apperrors.NewForbidden("sellers can only create tickets for themselves")
	}

	ticket := &domain.Ticket{
		Title:       strings.TrimSpace(input.Title),
		Description: strings.TrimSpace(input.Description),
		Priority:    strings.TrimSpace(input.Priority),
		RequestedBy: principal.UserID,
	}

	err := s.store.InTx(ctx, func(tx repository.Store) error {
		customer, err := ResolveCustomer(ctx, tx.Customers(), CustomerInput{
			CustomerID:  input.CustomerID,
			Identifier:  input.Identifier,
			Name:        input.CustomerName,
			Address:     input.Address,
			PhoneNumber: input.PhoneNumber,
		})
		if err != nil {
			return err
		}

		ticket.CustomerID = customer.ID
		ticket.CustomerName = customer.Name
		ticket.CustomerAddress = customer.Address
		if err := tx.Tickets().Create(ctx, ticket); err != nil {
			return err
		}

		return tx.History().Create(ctx, &domain.TicketHistory{
			TicketID:   ticket.ID,
			ChangedBy:  principal.UserID,
			ChangeType: domain.ChangeTypeCreated,
			NewValue: map[string]any{
				"status":      ticket.Status,
				"customer_id": ticket.CustomerID,
			},
		})
	})
	if err != nil {
		return nil, err
	}

	s.committed(ctx, TransitionCreate, events.New(events.EventTicketCreated, ticket.ID, principal,
		events.TicketCreatedPayload{
			Title:       ticket.Title,
			Priority:    ticket.Priority,
			CustomerID:  ticket.CustomerID,
			RequestedBy: ticket.RequestedBy,
		}))
	return ticket, nil
}

func validateCreate(input TicketCreateInput) error {
	fields := []struct{ name, value string }{
		{"title", input.Title},
		{"description", input.Description},
		{"priority", input.Priority},
		{"customerName", input.CustomerName},
		{"address", input.Address},
		{"phoneNumber", input.PhoneNumber},
	}
	if input.CustomerID == nil {
		fields = append(fields, struct{ name, value string }{"identifier", input.Identifier})
	}

	var missing []string
	if input.RequestedBy == nil {
		missing = append(missing, "requestedBy")
	}
	for _, f := range fields {
		if strings.TrimSpace(f.value) == "" {
			missing = append(missing, f.name)
		}
	}
	if len(missing) > 0 {
		return apperrors.NewValidationError("missing required fields", map[string]any{"fields": missing})
	}
	return nil
}

// Approve assigns the ticket to a technician. Prior status is not checked, so
// re-approval reassigns and resets technician progress.
func (s *TicketService) Approve(ctx context.Context, principal domain.Principal, ticketID int64, assigneeID *int64) (*domain.Ticket, error) {
	if err := auth.RequireRole(principal, domain.RoleAdmin); err != nil {
		return nil, apperrors.NewForbidden("only admins can approve tickets")
	}
	if assigneeID == nil {
		return nil, apperrors.NewValidationError("assigned_to is required", map[string]any{"fields": []string{"assigned_to"}})
	}

	var ticket *domain.Ticket
	err := s.store.InTx(ctx, func(tx repository.Store) error {
		tech, err := tx.Users().GetByID(ctx, *assigneeID)
		if err != nil && !errors.Is(err, repository.ErrNotFound) {
			return err
		}
		if tech == nil || tech.Role != domain.RoleTech {
			return apperrors.NewNotFound("technician", map[string]any{"assigned_to": *assigneeID})
		}

		ticket, err = tx.Tickets().Approve(ctx, ticketID, principal.UserID, tech.ID)
		if err != nil {
			return mapStoreError(err, "ticket", map[string]any{"ticket_id": ticketID})
		}

		return tx.History().Create(ctx, &domain.TicketHistory{
			TicketID:   ticket.ID,
			ChangedBy:  principal.UserID,
			ChangeType: domain.ChangeTypeApproved,
			NewValue: map[string]any{
				"status":      ticket.Status,
				"assigned_to": tech.ID,
			},
		})
	})
	if err != nil {
		return nil, err
	}

	s.committed(ctx, TransitionApprove, events.New(events.EventTicketApproved, ticket.ID, principal,
		events.TicketApprovedPayload{
			AssignedTo:      *assigneeID,
			CustomerName:    ticket.CustomerName,
			CustomerAddress: ticket.CustomerAddress,
		}))
	return ticket, nil
}

// Reject closes the ticket and clears any assignment, whatever its status.
func (s *TicketService) Reject(ctx context.Context, principal domain.Principal, ticketID int64) (*domain.Ticket, error) {
	if err := auth.RequireRole(principal, domain.RoleAdmin); err != nil {
		return nil, apperrors.NewForbidden("only admins can reject tickets")
	}

	var ticket *domain.Ticket
	err := s.store.InTx(ctx, func(tx repository.Store) error {
		var err error
		ticket, err = tx.Tickets().Reject(ctx, ticketID, principal.UserID)
		if err != nil {
			return mapStoreError(err, "ticket", map[string]any{"ticket_id": ticketID})
		}
		return tx.History().Create(ctx, &domain.TicketHistory{
			TicketID:   ticket.ID,
			ChangedBy:  principal.UserID,
			ChangeType: domain.ChangeTypeRejected,
			NewValue:   map[string]any{"status": ticket.Status},
		})
	})
	if err != nil {
		return nil, err
	}

	s.committed(ctx, TransitionReject, events.New(events.EventTicketRejected, ticket.ID, principal,
		events.TicketRejectedPayload{RequestedBy: ticket.RequestedBy}))
	return ticket, nil
}

// SetTechStatus records the assigned technician's progress. COMPLETED is final.
func (s *TicketService) SetTechStatus(ctx context.Context, principal domain.Principal, ticketID int64, rawStatus string) (*domain.Ticket, error) {
	if err := auth.RequireRole(principal, domain.RoleTech); err != nil {
		return nil, apperrors.NewForbidden("only technicians can update work status")
	}
	status, ok := domain.ParseTechStatus(rawStatus)
	if !ok {
		return nil, apperrors.NewValidationError("new_status must be IN_PROGRESS or COMPLETED",
			map[string]any{"new_status": rawStatus})
	}

	notAssigned := apperrors.NewForbidden("ticket not found, not assigned to you, or not approved")

	var (
		ticket *domain.Ticket
		work   *domain.TechWorkContext
	)
	err := s.store.InTx(ctx, func(tx repository.Store) error {
		var err error
		work, err = tx.Tickets().GetWorkContext(ctx, ticketID, principal.UserID)
		if errors.Is(err, repository.ErrNotFound) {
			return notAssigned
		}
		if err != nil {
			return err
		}
		if work.TechStatus != nil && *work.TechStatus == domain.TechStatusCompleted {
			return apperrors.NewConflict("ticket is already completed", map[string]any{"ticket_id": ticketID})
		}

		ticket, err = tx.Tickets().UpdateTechStatus(ctx, ticketID, principal.UserID, status)
		if errors.Is(err, repository.ErrNotFound) {
			return notAssigned
		}
		if err != nil {
			return err
		}

		return tx.History().Create(ctx, &domain.TicketHistory{
			TicketID:   ticket.ID,
			ChangedBy:  principal.UserID,
			ChangeType: domain.ChangeTypeTechStatus,
			OldValue:   map[string]any{"tech_status": work.TechStatus},
			NewValue:   map[string]any{"tech_status": status},
		})
	})
	if err != nil {
		return nil, err
	}

	s.committed(ctx, TransitionTechStatus, events.New(events.EventTicketTechStatusChanged, ticket.ID, principal,
		events.TicketTechStatusChangedPayload{
			Title:       work.Title,
			OldStatus:   work.TechStatus,
			NewStatus:   status,
			TechName:    work.TechName,
			RequestedBy: work.RequestedBy,
			ApprovedBy:  work.ApprovedBy,
		}))
	return ticket, nil
}

// ListAll returns every ticket for admins.
func (s *TicketService) ListAll(ctx context.Context, principal domain.Principal) ([]domain.TicketView, error) {
	if err := auth.RequireRole(principal, domain.RoleAdmin); err != nil {
		return nil, err
	}
	return s.store.Tickets().ListAll(ctx)
}

// ListRequested returns tickets a seller requested.
func (s *TicketService) ListRequested(ctx context.Context, principal domain.Principal, requesterID int64) ([]domain.TicketView, error) {
	if err := auth.RequireSelfOrAdmin(principal, requesterID); err != nil {
		return nil, err
	}
	if err := auth.RequireRole(principal, domain.RoleAdmin, domain.RoleSeller); err != nil {
		return nil, err
	}
	return s.store.Tickets().ListByRequester(ctx, requesterID)
}

// ListAssigned returns approved tickets assigned to a technician.
func (s *TicketService) ListAssigned(ctx context.Context, principal domain.Principal, techID int64) ([]domain.TicketView, error) {
	if err := auth.RequireSelfOrAdmin(principal, techID); err != nil {
		return nil, err
	}
	if err := auth.RequireRole(principal, domain.RoleAdmin, domain.RoleTech); err != nil {
		return nil, err
	}
	return s.store.Tickets().ListAssigned(ctx, techID)
}

// Get returns one ticket to an admin, its requester or its assignee. Only
// admins can tell a missing id from a foreign one.
func (s *TicketService) Get(ctx context.Context, principal domain.Principal, ticketID int64) (*domain.Ticket, error) {
	ticket, err := s.store.Tickets().GetByID(ctx, ticketID)
	if errors.Is(err, repository.ErrNotFound) && !principal.Is(domain.RoleAdmin) {
		return nil, auth.NoTicketAccess()
	}
	if err != nil {
		return nil, mapStoreError(err, "ticket", map[string]any{"ticket_id": ticketID})
	}
	if err := auth.RequireTicketAccess(principal, ticket); err != nil {
		return nil, err
	}
	return ticket, nil
}

// History returns the audit trail of a ticket, oldest first.
func (s *TicketService) History(ctx context.Context, principal domain.Principal, ticketID int64) ([]domain.TicketHistory, error) {
	if _, err := s.Get(ctx, principal, ticketID); err != nil {
		return nil, err
	}
	return s.store.History().ListByTicket(ctx, ticketID)
}

// committed runs the post-commit side effects. Nothing here can fail the request.
func (s *TicketService) committed(ctx context.Context, transition string, event events.Event) {
	if s.observer != nil {
		s.observer.ObserveTransition(transition)
	}
	s.logger.Info("ticket transition",
		zap.String("transition", transition),
		zap.Int64("ticket_id", event.TicketID),
		zap.Int64("actor_id", event.Actor.UserID))

	if s.dispatcher == nil {
		return
	}
	if err := s.dispatcher.Publish(ctx, event); err != nil {
		s.logger.Warn("event handlers failed",
			zap.String("event", string(event.Type)),
			zap.Int64("ticket_id", event.TicketID),
			zap.Error(err))
	}
}
