package domain

// TechSummaryRow aggregates completed work for one technician.
type TechSummaryRow struct {
	TechID            int64
	TechName          string
	ServicesCompleted int64
	TotalMinutes      float64
	AvgMinutes        float64
	MinMinutes        float64
	MaxMinutes        float64
}
