package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/install-tickets/internal/domain"
)

// TicketRepository encapsulates ticket persistence. Lifecycle transitions are
// single guarded UPDATE ... RETURNING statements; a guard that matches no row
// surfaces as ErrNotFound.
type TicketRepository interface {
	Create(ctx context.Context, ticket *domain.Ticket) error
	GetByID(ctx context.Context, id int64) (*domain.Ticket, error)
	Approve(ctx context.Context, id, approverID, assigneeID int64) (*domain.Ticket, error)
	Reject(ctx context.Context, id, approverID int64) (*domain.Ticket, error)
	GetWorkContext(ctx context.Context, id, techID int64) (*domain.TechWorkContext, error)
	UpdateTechStatus(ctx context.Context, id, techID int64, status domain.TechStatus) (*domain.Ticket, error)
	ListAll(ctx context.Context) ([]domain.TicketView, error)
	ListByRequester(ctx context.Context, requesterID int64) ([]domain.TicketView, error)
	ListAssigned(ctx context.Context, techID int64) ([]domain.TicketView, error)
}

type ticketRepository struct {
	db DBTX
}

// NewTicketRepository instantiates repository.
func NewTicketRepository(db DBTX) TicketRepository {
	return &ticketRepository{db: db}
}

const ticketColumns = `t.id, t.title, t.description, t.priority, t.customer_id, t.customer_name,
        t.customer_address, t.requested_by, t.assigned_to, t.status, t.tech_status, t.approved_by,
        t.approved_at, t.started_at, t.completed_at, t.last_updated_by, t.created_at, t.updated_at`

func (r *ticketRepository) Create(ctx context.Context, ticket *domain.Ticket) error {
	const query = `
        INSERT INTO tickets AS t (title, description, priority, customer_id, customer_name, customer_address,
            requested_by, assigned_to, status, tech_status)
        VALUES ($1,$2,$3,$4,$5,$6,$7,NULL,'PENDING',NULL)
        RETURNING ` + ticketColumns
	created, err := scanTicket(r.db.QueryRow(ctx, query,
		ticket.Title,
		ticket.Description,
		ticket.Priority,
		ticket.CustomerID,
		ticket.CustomerName,
		ticket.CustomerAddress,
		ticket.RequestedBy,
	))
	if err != nil {
		return err
	}
	*ticket = *created
	return nil
}

func (r *ticketRepository) GetByID(ctx context.Context, id int64) (*domain.Ticket, error) {
	const query = `SELECT ` + ticketColumns + ` FROM tickets t WHERE t.id=$1`
	return scanTicket(r.db.QueryRow(ctx, query, id))
}

func (r *ticketRepository) Approve(ctx context.Context, id, approverID, assigneeID int64) (*domain.Ticket, error) {
	const query = `
        UPDATE tickets t
        SET status='APPROVED', approved_by=$1, approved_at=NOW(), assigned_to=$2, tech_status=NULL,
            started_at=NULL, completed_at=NULL, updated_at=NOW()
        WHERE t.id=$3
        RETURNING ` + ticketColumns
	return scanTicket(r.db.QueryRow(ctx, query, approverID, assigneeID, id))
}

func (r *ticketRepository) Reject(ctx context.Context, id, approverID int64) (*domain.Ticket, error) {
	const query = `
        UPDATE tickets t
        SET status='REJECTED', approved_by=$1, approved_at=NOW(), assigned_to=NULL, tech_status=NULL, updated_at=NOW()
        WHERE t.id=$2
        RETURNING ` + ticketColumns
	return scanTicket(r.db.QueryRow(ctx, query, approverID, id))
}

func (r *ticketRepository) GetWorkContext(ctx context.Context, id, techID int64) (*domain.TechWorkContext, error) {
	const query = `
        SELECT t.id, t.title, t.requested_by, t.approved_by, t.status, t.tech_status, tech.name
        FROM tickets t
        JOIN users tech ON tech.id = t.assigned_to
        WHERE t.id=$1 AND t.assigned_to=$2 AND tech.role='tech' AND t.status='APPROVED'
        FOR UPDATE OF t`
	var wc domain.TechWorkContext
	if err := r.db.QueryRow(ctx, query, id, techID).Scan(
		&wc.TicketID,
		&wc.Title,
		&wc.RequestedBy,
		&wc.ApprovedBy,
		&wc.Status,
		&wc.TechStatus,
		&wc.TechName,
	); err != nil {
		return nil, translate(err)
	}
	return &wc, nil
}

func (r *ticketRepository) UpdateTechStatus(ctx context.Context, id, techID int64, status domain.TechStatus) (*domain.Ticket, error) {
	const query = `
        UPDATE tickets t
        SET tech_status=$1::text,
            last_updated_by=$3,
            updated_at=NOW(),
            started_at=CASE WHEN $1::text = 'IN_PROGRESS' THEN COALESCE(t.started_at, NOW()) ELSE t.started_at END,
            completed_at=CASE WHEN $1::text = 'COMPLETED' THEN NOW() ELSE t.completed_at END
        WHERE t.id=$2 AND t.assigned_to=$3 AND t.status='APPROVED'
          AND t.tech_status IS DISTINCT FROM 'COMPLETED'
        RETURNING ` + ticketColumns
	return scanTicket(r.db.QueryRow(ctx, query, string(status), id, techID))
}

func (r *ticketRepository) ListAll(ctx context.Context) ([]domain.TicketView, error) {
	return r.listViews(ctx, "", nil)
}

func (r *ticketRepository) ListByRequester(ctx context.Context, requesterID int64) ([]domain.TicketView, error) {
	return r.listViews(ctx, "t.requested_by=$1", []any{requesterID})
}

func (r *ticketRepository) ListAssigned(ctx context.Context, techID int64) ([]domain.TicketView, error) {
	return r.listViews(ctx,
		"t.assigned_to=$1 AND (t.status='APPROVED' OR t.tech_status IN ('IN_PROGRESS','COMPLETED'))",
		[]any{techID})
}

func (r *ticketRepository) listViews(ctx context.Context, where string, args []any) ([]domain.TicketView, error) {
	query := `SELECT ` + ticketColumns + `, assignee.name, approver.name
        FROM tickets t
        LEFT JOIN users assignee ON assignee.id = t.assigned_to
        LEFT JOIN users approver ON approver.id = t.approved_by`
	if where != "" {
		query = fmt.Sprintf("%s WHERE %s", query, where)
	}
	query += " ORDER BY t.created_at DESC, t.id DESC"

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.TicketView
	for rows.Next() {
		var view domain.TicketView
		dest := append(ticketDest(&view.Ticket), &view.AssignedToName, &view.ApprovedByName)
		if err := rows.Scan(dest...); err != nil {
			return nil, err
		}
		result = append(result, view)
	}
	return result, rows.Err()
}

func ticketDest(t *domain.Ticket) []any {
	return []any{
		&t.ID,
		&t.Title,
		&t.Description,
		&t.Priority,
		&t.CustomerID,
		&t.CustomerName,
		&t.CustomerAddress,
		&t.RequestedBy,
		&t.AssignedTo,
		&t.Status,
		&t.TechStatus,
		&t.ApprovedBy,
		&t.ApprovedAt,
		&t.StartedAt,
		&t.CompletedAt,
		&t.LastUpdatedBy,
		&t.CreatedAt,
		&t.UpdatedAt,
	}
}

func scanTicket(row pgx.Row) (*domain.Ticket, error) {
	var ticket domain.Ticket
	if err := row.Scan(ticketDest(&ticket)...); err != nil {
		return nil, translate(err)
	}
	return &ticket, nil
}
