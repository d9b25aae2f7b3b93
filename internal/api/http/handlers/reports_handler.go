package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/install-tickets/internal/api/dto"
	"github.com/spec-kit/install-tickets/internal/auth"
	"github.com/spec-kit/install-tickets/internal/service"
)

// ReportsHandler serves admin reports.
type ReportsHandler struct {
	reports *service.ReportService
}

// NewReportsHandler constructs handler.
func NewReportsHandler(reports *service.ReportService) *ReportsHandler {
	return &ReportsHandler{reports: reports}
}

// TechSummary handles GET /reports/tech-summary?from=&to=.
func (h *ReportsHandler) TechSummary(c *fiber.Ctx) error {
	principal, err := auth.MustPrincipal(c)
	if err != nil {
		return err
	}
	rows, period, err := h.reports.TechSummary(c.UserContext(), principal, c.Query("from"), c.Query("to"))
	if err != nil {
		return err
	}
	return ok(c, dto.TechSummaryResponse{
		From: period.From.Format("2006-01-02"),
		To:   period.To.Format("2006-01-02"),
		Rows: dto.NewTechSummaryRows(rows),
	})
}
