// Package redmine reads time entries and issues from a Redmine-compatible API.
package redmine

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"slices"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"timereport/api/internal/logging"
)

const (
	// PageSize is the limit sent with every list request and the maximum
	// number of ids per issue lookup.
	PageSize = 100

	// AuthHeader carries the API key on every request.
	AuthHeader = "X-Redmine-API-Key"
)

// Config holds what the client needs to reach the backend.
type Config struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
	// HTTPClient overrides the default client when set.
	HTTPClient *http.Client
}

// Client talks to the Redmine REST API. It keeps no state between calls.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
	logger  *slog.Logger
}

// New creates a Client. A nil logger discards log output.
func New(cfg Config, logger *slog.Logger) *Client {
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	if logger == nil {
		logger = logging.Discard()
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		http:    httpClient,
		logger:  logger,
	}
}

// LogValue keeps the API key out of logs.
func (c *Client) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("site", c.baseURL),
		slog.String("api_key", "PRIVATE"),
	)
}

// FetchEntries returns every time entry logged by userID between from and to
// (inclusive). Pages are requested until total_count entries are collected.
func (c *Client) FetchEntries(ctx context.Context, userID uint64, from, to time.Time) ([]TimeEntry, error) {
	params := url.Values{}
	params.Set("user_id", strconv.FormatUint(userID, 10))
	params.Set("from", FormatDate(from))
	params.Set("to", FormatDate(to))

	entries := make([]TimeEntry, 0)
	total := -1
	for offset := 0; total < 0 || len(entries) < total; offset += PageSize {
		var page timeEntriesPage
		if err := c.getJSON(ctx, "time_entries", params, offset, &page); err != nil {
			return nil, fmt.Errorf("get time_entries for user %d: %w", userID, err)
		}
		if page.TotalCount == nil || page.TimeEntries == nil {
			return nil, fmt.Errorf("get time_entries for user %d: %w: missing total_count or time_entries", userID, ErrDecode)
		}
		total = *page.TotalCount

		c.logger.InfoContext(ctx, "fetch time entries",
			"user_id", userID,
			"fetched", len(entries),
			"total", total,
		)

		if len(*page.TimeEntries) == 0 && len(entries) < total {
			return nil, fmt.Errorf("get time_entries for user %d at offset %d: %w", userID, offset, ErrShortPage)
		}
		for _, raw := range *page.TimeEntries {
			entry, err := raw.toTimeEntry()
			if err != nil {
				return nil, fmt.Errorf("get time_entries for user %d: %w: %v", userID, ErrDecode, err)
			}
			entries = append(entries, entry)
		}
	}
	return entries, nil
}

// FetchIssues resolves ids to issues of any status. Ids are looked up in
// concurrent chunks of PageSize; any failing chunk fails the whole call.
func (c *Client) FetchIssues(ctx context.Context, ids []uint64) (map[uint64]Issue, error) {
	issues := make(map[uint64]Issue, len(ids))
	if len(ids) == 0 {
		return issues, nil
	}

	batches := chunk(ids, PageSize)
	results := make([][]Issue, len(batches))

	g, gctx := errgroup.WithContext(ctx)
	for i, batch := range batches {
		g.Go(func() error {
			found, err := c.fetchIssueBatch(gctx, batch)
			if err != nil {
				return err
			}
			results[i] = found
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	for _, batch := range results {
		for _, issue := range batch {
			issues[issue.ID] = issue
		}
	}
	return issues, nil
}

func (c *Client) fetchIssueBatch(ctx context.Context, ids []uint64) ([]Issue, error) {
	joined := joinIDs(ids)
	params := url.Values{}
	params.Set("issue_id", joined)
	params.Set("status_id", "*")

	var page issuesPage
	if err := c.getJSON(ctx, "issues", params, 0, &page); err != nil {
		return nil, fmt.Errorf("get issues %s: %w", joined, err)
	}
	if page.Issues == nil {
		return nil, fmt.Errorf("get issues %s: %w: missing issues", joined, ErrDecode)
	}
	found := make([]Issue, 0, len(*page.Issues))
	for _, raw := range *page.Issues {
		issue, err := raw.toIssue()
		if err != nil {
			return nil, fmt.Errorf("get issues %s: %w: %v", joined, ErrDecode, err)
		}
		found = append(found, issue)
	}
	return found, nil
}

// Ping checks that the backend is reachable and accepts the API key.
func (c *Client) Ping(ctx context.Context) error {
	var page issuesPage
	params := url.Values{}
	params.Set("status_id", "*")
	if err := c.getJSON(ctx, "issues", params, 0, &page); err != nil {
		return fmt.Errorf("ping: %w", err)
	}
	return nil
}

func (c *Client) getJSON(ctx context.Context, endpoint string, params url.Values, offset int, target any) error {
	query := url.Values{}
	for key, values := range params {
		query[key] = slices.Clone(values)
	}
	query.Set("offset", strconv.Itoa(offset))
	query.Set("limit", strconv.Itoa(PageSize))

	endpointURL := fmt.Sprintf("%s/%s.json?%s", c.baseURL, endpoint, query.Encode())
	c.logger.DebugContext(ctx, "redmine request", "url", endpointURL)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpointURL, nil)
	if err != nil {
		return fmt.Errorf("%w: creating request: %v", ErrUpstream, err)
	}
	req.Header.Set(AuthHeader, c.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		c.logger.WarnContext(ctx, "redmine error response",
			"endpoint", endpoint,
			"status", resp.StatusCode,
			"body", strings.TrimSpace(string(body)),
		)
		return fmt.Errorf("%w: %s.json returned status %d", ErrUpstream, endpoint, resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(target); err != nil {
		return fmt.Errorf("%w: %v", ErrDecode, err)
	}
	return nil
}

func chunk(ids []uint64, size int) [][]uint64 {
	batches := make([][]uint64, 0, (len(ids)+size-1)/size)
	for start := 0; start < len(ids); start += size {
		end := min(start+size, len(ids))
		batches = append(batches, ids[start:end])
	}
	return batches
}

func joinIDs(ids []uint64) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.FormatUint(id, 10)
	}
	return strings.Join(parts, ",")
}
