package app

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"timereport/api/internal/config"
	"timereport/api/internal/logging"
	"timereport/api/internal/redmine"
	"timereport/api/internal/report"
)

// ReportRequest is the inbound body of POST /api/reports.
type ReportRequest struct {
	UserIDs []uint64 `json:"userIds"`
	From    string   `json:"from"`
	To      string   `json:"to"`
}

type reportGenerator interface {
	AggregateReport(context.Context, []uint64, time.Time, time.Time) ([]report.UserReport, error)
}

type backendPinger interface {
	Ping(context.Context) error
}

type Service struct {
	cfg     config.Config
	reports reportGenerator
	backend backendPinger
	logger  *slog.Logger
}

func New(cfg config.Config, reports reportGenerator, backend backendPinger, logger *slog.Logger) *Service {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Service{
		cfg:     cfg,
		reports: reports,
		backend: backend,
		logger:  logger,
	}
}

// GenerateReports validates the date range and builds a report per user.
// Malformed dates fail before any backend call.
func (s *Service) GenerateReports(ctx context.Context, input ReportRequest) ([]report.UserReport, error) {
	from, err := parseDateField("from", input.From)
	if err != nil {
		return nil, err
	}
	to, err := parseDateField("to", input.To)
	if err != nil {
		return nil, err
	}

	reports, err := s.reports.AggregateReport(ctx, input.UserIDs, from, to)
	if err != nil {
		s.logger.ErrorContext(ctx, "generate reports",
			"request_id", RequestID(ctx),
			"users", len(input.UserIDs),
			"error", err,
		)
		return nil, upstreamError(err)
	}
	return reports, nil
}

// Ping checks the Redmine backend.
func (s *Service) Ping(ctx context.Context) error {
	if s.backend == nil {
		return nil
	}
	return s.backend.Ping(ctx)
}

func parseDateField(field, value string) (time.Time, error) {
	parsed, err := redmine.ParseDate(strings.TrimSpace(value))
	if err != nil {
		return time.Time{}, domainError(
			http.StatusBadRequest,
			"INVALID_ARGUMENT",
			field+" must be a YYYY-MM-DD date",
			map[string]any{"field": field, "value": value},
		)
	}
	return parsed, nil
}
