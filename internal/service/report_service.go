package service

import (
	"context"
	"strings"
	"time"

	"github.com/spec-kit/install-tickets/internal/auth"
	"github.com/spec-kit/install-tickets/internal/domain"
	"github.com/spec-kit/install-tickets/internal/repository"
	apperrors "github.com/spec-kit/install-tickets/pkg/util"
)

const (
	reportDateLayout    = "2006-01-02"
	defaultReportWindow = 30
)

// ReportPeriod is an inclusive range of calendar days.
type ReportPeriod struct {
	From time.Time
	To   time.Time
}

// ReportService builds operational reports.
type ReportService struct {
	store repository.Store
	now   func() time.Time
}

// NewReportService constructs the service.
func NewReportService(store repository.Store) *ReportService {
	return &ReportService{store: store, now: time.Now}
}

// TechSummary aggregates completed work per technician. Empty bounds default
// to the last 30 days ending today.
func (s *ReportService) TechSummary(ctx context.Context, principal domain.Principal, rawFrom, rawTo string) ([]domain.TechSummaryRow, ReportPeriod, error) {
	if err := auth.RequireRole(principal, domain.RoleAdmin); err != nil {
		return nil, ReportPeriod{}, err
	}
	period, err := s.parsePeriod(rawFrom, rawTo)
	if err != nil {
		return nil, ReportPeriod{}, err
	}
	rows, err := s.store.Reports().TechSummary(ctx, period.From, period.To)
	if err != nil {
		return nil, ReportPeriod{}, err
	}
	return rows, period, nil
}

func (s *ReportService) parsePeriod(rawFrom, rawTo string) (ReportPeriod, error) {
	now := s.now().UTC()
	to := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	if v := strings.TrimSpace(rawTo); v != "" {
		parsed, err := time.Parse(reportDateLayout, v)
		if err != nil {
			return ReportPeriod{}, apperrors.NewValidationError("to must be YYYY-MM-DD", map[string]any{"to": v})
		}
		to = parsed
	}

	from := to.AddDate(0, 0, -defaultReportWindow)
	if v := strings.TrimSpace(rawFrom); v != "" {
		parsed, err := time.Parse(reportDateLayout, v)
		if err != nil {
			return ReportPeriod{}, apperrors.NewValidationError("from must be YYYY-MM-DD", map[string]any{"from": v})
		}
		from = parsed
	}

	if from.After(to) {
		return ReportPeriod{}, apperrors.NewValidationError("from must not be after to",
			map[string]any{"from": from.Format(reportDateLayout), "to": to.Format(reportDateLayout)})
	}
	return ReportPeriod{From: from, To: to}, nil
}
