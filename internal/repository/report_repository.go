package repository

import (
	"context"
	"time"

	"github.com/spec-kit/install-tickets/internal/domain"
)

// ReportRepository runs read-only aggregate queries.
type ReportRepository interface {
	TechSummary(ctx context.Context, from, to time.Time) ([]domain.TechSummaryRow, error)
}

type reportRepository struct {
	db DBTX
}

// NewReportRepository builds repository.
func NewReportRepository(db DBTX) ReportRepository {
	return &reportRepository{db: db}
}

// TechSummary counts tickets completed in [from, to+1day) per technician.
// Bounds are passed as instants so the session TimeZone does not shift them.
// Durations only count tickets that have both started_at and completed_at.
func (r *reportRepository) TechSummary(ctx context.Context, from, to time.Time) ([]domain.TechSummaryRow, error) {
	const query = `
        WITH completed AS (
            SELECT t.id, t.assigned_to AS tech_id,
                CASE WHEN t.started_at IS NOT NULL AND t.completed_at IS NOT NULL
                     THEN EXTRACT(EPOCH FROM (t.completed_at - t.started_at)) / 60.0
                END AS duration_min
            FROM tickets t
            WHERE t.tech_status = 'COMPLETED'
              AND t.completed_at IS NOT NULL
              AND t.completed_at >= $1
              AND t.completed_at < $2
        )
        SELECT u.id, u.name, COUNT(c.id),
            ROUND(COALESCE(SUM(c.duration_min), 0)::numeric, 2)::float8,
            ROUND(COALESCE(AVG(c.duration_min), 0)::numeric, 2)::float8,
            ROUND(COALESCE(MIN(c.duration_min), 0)::numeric, 2)::float8,
            ROUND(COALESCE(MAX(c.duration_min), 0)::numeric, 2)::float8
        FROM users u
        LEFT JOIN completed c ON c.tech_id = u.id
        WHERE u.role = 'tech'
        GROUP BY u.id, u.name
        ORDER BY COUNT(c.id) DESC, u.name ASC`

	rows, err := r.db.Query(ctx, query, from.UTC(), to.UTC().AddDate(0, 0, 1))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.TechSummaryRow
	for rows.Next() {
		var row domain.TechSummaryRow
		if err := rows.Scan(
			&row.TechID,
			&row.TechName,
			&row.ServicesCompleted,
			&row.TotalMinutes,
			&row.AvgMinutes,
			&row.MinMinutes,
			&row.MaxMinutes,
		); err != nil {
			return nil, err
		}
		result = append(result, row)
	}
	return result, rows.Err()
}
