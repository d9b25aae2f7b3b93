package dto

import "github.com/spec-kit/install-tickets/internal/domain"

// TechSummaryResponse wraps the technician report with its period.
type TechSummaryResponse struct {
	From string           `json:"from"`
	To   string           `json:"to"`
	Rows []TechSummaryRow `json:"rows"`
}

// TechSummaryRow is one technician's aggregate.
type TechSummaryRow struct {
	TechID            int64   `json:"tech_id"`
	TechName          string  `json:"tech_name"`
	ServicesCompleted int64   `json:"services_completed"`
	TotalMinutes      float64 `json:"total_minutes"`
	AvgMinutes        float64 `json:"avg_minutes"`
	MinMinutes        float64 `json:"min_minutes"`
	MaxMinutes        float64 `json:"max_minutes"`
}

// NewTechSummaryRows maps report rows, never returning nil.
func NewTechSummaryRows(rows []domain.TechSummaryRow) []TechSummaryRow {
	out := make([]TechSummaryRow, 0, len(rows))
	for _, r := range rows {
		out = append(out, TechSummaryRow{
			TechID:            r.TechID,
			TechName:          r.TechName,
			ServicesCompleted: r.ServicesCompleted,
			TotalMinutes:      r.TotalMinutes,
			AvgMinutes:        r.AvgMinutes,
			MinMinutes:        r.MinMinutes,
			MaxMinutes:        r.MaxMinutes,
		})
	}
	return out
}
