package report

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"golang.org/x/sync/errgroup"

	"timereport/api/internal/logging"
	"timereport/api/internal/redmine"
)

// ErrFetch wraps every backend failure seen while building reports.
var ErrFetch = errors.New("fetch failed")

// UserReport is the rendered report for one user.
type UserReport struct {
	UserID uint64
	Report string
}

// Backend is the subset of the Redmine client the reports depend on.
type Backend interface {
	FetchEntries(ctx context.Context, userID uint64, from, to time.Time) ([]redmine.TimeEntry, error)
	FetchIssues(ctx context.Context, ids []uint64) (map[uint64]redmine.Issue, error)
}

type Service struct {
	backend Backend
	logger  *slog.Logger
}

func NewService(backend Backend, logger *slog.Logger) *Service {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Service{backend: backend, logger: logger}
}

type userIssues struct {
	userID uint64
	issues []AggregatedIssue
}

// AggregateReport builds one report per distinct user id, in input order.
// Time entries are fetched concurrently per user; issue titles are then
// looked up once for the union of referenced issues. Any fetch failure
// aborts the whole call.
func (s *Service) AggregateReport(ctx context.Context, userIDs []uint64, from, to time.Time) ([]UserReport, error) {
	started := time.Now()
	users := dedupe(userIDs)

	perUser := make([]userIssues, len(users))
	g, gctx := errgroup.WithContext(ctx)
	for i, userID := range users {
		g.Go(func() error {
			entries, err := s.backend.FetchEntries(gctx, userID, from, to)
			if err != nil {
				return fmt.Errorf("%w: time entries for user %d: %w", ErrFetch, userID, err)
			}
			perUser[i] = userIssues{userID: userID, issues: Rank(Aggregate(entries))}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		s.logger.ErrorContext(ctx, "aggregate report", "users", len(users), "error", err)
		return nil, err
	}

	issueIDs := referencedIssues(perUser)
	titles, err := s.backend.FetchIssues(ctx, issueIDs)
	if err != nil {
		s.logger.ErrorContext(ctx, "aggregate report", "users", len(users), "issues", len(issueIDs), "error", err)
		return nil, fmt.Errorf("%w: issues: %w", ErrFetch, err)
	}
	if missing := missingTitles(issueIDs, titles); len(missing) > 0 {
		s.logger.ErrorContext(ctx, "aggregate report", "users", len(users), "missing_issues", missing)
		return nil, fmt.Errorf("%w: issues: %w: missing %v", ErrFetch, redmine.ErrDecode, missing)
	}

	reports := make([]UserReport, 0, len(perUser))
	for _, u := range perUser {
		reports = append(reports, UserReport{UserID: u.userID, Report: Render(u.issues, titles)})
	}

	s.logger.InfoContext(ctx, "aggregate report",
		"users", len(users),
		"issues", len(issueIDs),
		"from", redmine.FormatDate(from),
		"to", redmine.FormatDate(to),
		"duration_ms", time.Since(started).Milliseconds(),
	)
	return reports, nil
}

func dedupe(ids []uint64) []uint64 {
	seen := make(map[uint64]struct{}, len(ids))
	out := make([]uint64, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// missingTitles lists the ids the backend did not return, in id order.
func missingTitles(ids []uint64, titles map[uint64]redmine.Issue) []uint64 {
	var missing []uint64
	for _, id := range ids {
		if _, ok := titles[id]; !ok {
			missing = append(missing, id)
		}
	}
	return missing
}

// referencedIssues returns the sorted, de-duplicated issue ids across users.
func referencedIssues(perUser []userIssues) []uint64 {
	var ids []uint64
	for _, u := range perUser {
		for _, issue := range u.issues {
			ids = append(ids, issue.ID)
		}
	}
	slices.Sort(ids)
	return slices.Compact(ids)
}
