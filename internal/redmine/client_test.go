package redmine

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"timereport/api/internal/logging"
)

func testClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return New(Config{BaseURL: srv.URL + "/", APIKey: "secret", Timeout: 5 * time.Second}, nil)
}

func date(t *testing.T, value string) time.Time {
	t.Helper()
	d, err := ParseDate(value)
	require.NoError(t, err)
	return d
}

func entryJSON(id, issue uint64) map[string]any {
	return map[string]any{
		"id":       id,
		"hours":    1.5,
		"comments": fmt.Sprintf("Note %d", id),
		"user":     map[string]any{"id": 1, "name": "User 1"},
		"issue":    map[string]any{"id": issue},
		"spent_on": "2021-01-02",
	}
}

// entriesHandler serves total entries in pages, counting requests.
func entriesHandler(t *testing.T, total int, calls *atomic.Int32) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		assert.Equal(t, "/time_entries.json", r.URL.Path)
		assert.Equal(t, "secret", r.Header.Get(AuthHeader))

		q := r.URL.Query()
		assert.Equal(t, "42", q.Get("user_id"))
		assert.Equal(t, "2021-01-01", q.Get("from"))
		assert.Equal(t, "2021-01-31", q.Get("to"))
		assert.Equal(t, "100", q.Get("limit"))

		offset, err := strconv.Atoi(q.Get("offset"))
		assert.NoError(t, err)
		page := []map[string]any{}
		for i := offset; i < total && i < offset+PageSize; i++ {
			page = append(page, entryJSON(uint64(i+1), uint64(i%7+1)))
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"total_count":  total,
			"time_entries": page,
			"offset":       offset,
			"limit":        PageSize,
		})
	}
}

func TestFetchEntries_Pagination(t *testing.T) {
	tests := []struct {
		total     int
		wantCalls int32
	}{
		{total: 0, wantCalls: 1},
		{total: 1, wantCalls: 1},
		{total: 100, wantCalls: 1},
		{total: 101, wantCalls: 2},
		{total: 250, wantCalls: 3},
	}

	for _, tt := range tests {
		t.Run(strconv.Itoa(tt.total), func(t *testing.T) {
			var calls atomic.Int32
			client := testClient(t, entriesHandler(t, tt.total, &calls))

			entries, err := client.FetchEntries(context.Background(), 42, date(t, "2021-01-01"), date(t, "2021-01-31"))
			require.NoError(t, err)
			assert.Len(t, entries, tt.total)
			assert.NotNil(t, entries)
			assert.Equal(t, tt.wantCalls, calls.Load())

			seen := make(map[uint64]bool, len(entries))
			for _, e := range entries {
				assert.False(t, seen[e.ID], "duplicate entry %d", e.ID)
				seen[e.ID] = true
			}
		})
	}
}

func TestFetchEntries_DecodesFields(t *testing.T) {
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"total_count":1,"time_entries":[{"id":9,"hours":2.25,"comments":"Did it",
			"user":{"id":3,"name":"Ann"},"issue":{"id":17},"spent_on":"2021-03-04","project":{"id":1}}]}`)
	})

	entries, err := client.FetchEntries(context.Background(), 3, date(t, "2021-03-01"), date(t, "2021-03-31"))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, TimeEntry{
		ID:       9,
		Hours:    2.25,
		Comments: "Did it",
		User:     User{ID: 3, Name: "Ann"},
		IssueID:  17,
		SpentOn:  date(t, "2021-03-04"),
	}, entries[0])
}

func TestFetchEntries_Failures(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
		wantErr error
	}{
		{
			name: "server error",
			handler: func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "boom", http.StatusInternalServerError)
			},
			wantErr: ErrUpstream,
		},
		{
			name: "unauthorized",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusUnauthorized)
			},
			wantErr: ErrUpstream,
		},
		{
			name: "invalid json",
			handler: func(w http.ResponseWriter, r *http.Request) {
				fmt.Fprint(w, `{"total_count":`)
			},
			wantErr: ErrDecode,
		},
		{
			name: "missing total_count",
			handler: func(w http.ResponseWriter, r *http.Request) {
				fmt.Fprint(w, `{"time_entries":[]}`)
			},
			wantErr: ErrDecode,
		},
		{
			name: "entry without issue",
			handler: func(w http.ResponseWriter, r *http.Request) {
				fmt.Fprint(w, `{"total_count":1,"time_entries":[{"id":1,"hours":1,"comments":"",
					"user":{"id":1,"name":"U"},"spent_on":"2021-01-01"}]}`)
			},
			wantErr: ErrDecode,
		},
		{
			name: "bad spent_on",
			handler: func(w http.ResponseWriter, r *http.Request) {
				fmt.Fprint(w, `{"total_count":1,"time_entries":[{"id":1,"hours":1,"comments":"",
					"user":{"id":1,"name":"U"},"issue":{"id":2},"spent_on":"01/02/2021"}]}`)
			},
			wantErr: ErrDecode,
		},
		{
			name: "negative hours",
			handler: func(w http.ResponseWriter, r *http.Request) {
				fmt.Fprint(w, `{"total_count":1,"time_entries":[{"id":1,"hours":-1,"comments":"",
					"user":{"id":1,"name":"U"},"issue":{"id":2},"spent_on":"2021-01-01"}]}`)
			},
			wantErr: ErrDecode,
		},
		{
			name: "short page",
			handler: func(w http.ResponseWriter, r *http.Request) {
				fmt.Fprint(w, `{"total_count":5,"time_entries":[]}`)
			},
			wantErr: ErrShortPage,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := testClient(t, tt.handler)
			entries, err := client.FetchEntries(context.Background(), 1, date(t, "2021-01-01"), date(t, "2021-01-02"))
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Nil(t, entries)
		})
	}
}

func TestFetchEntries_ErrorBodyLoggedNotReturned(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "internal-stack-detail", http.StatusInternalServerError)
	}))
	t.Cleanup(srv.Close)

	var logs bytes.Buffer
	client := New(Config{BaseURL: srv.URL, APIKey: "secret", Timeout: 5 * time.Second}, logging.New(&logs, "debug", "text"))

	_, err := client.FetchEntries(context.Background(), 1, date(t, "2021-01-01"), date(t, "2021-01-02"))
	require.ErrorIs(t, err, ErrUpstream)
	assert.NotContains(t, err.Error(), "internal-stack-detail")
	assert.Contains(t, err.Error(), "time_entries.json returned status 500")
	assert.Contains(t, logs.String(), "internal-stack-detail")
	assert.NotContains(t, logs.String(), "secret")
}

func TestFetchEntries_SecondPageFailureDropsResults(t *testing.T) {
	var calls atomic.Int32
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) > 1 {
			http.Error(w, "gone", http.StatusBadGateway)
			return
		}
		entriesHandler(t, 150, &atomic.Int32{})(w, r)
	})

	entries, err := client.FetchEntries(context.Background(), 42, date(t, "2021-01-01"), date(t, "2021-01-31"))
	assert.ErrorIs(t, err, ErrUpstream)
	assert.Nil(t, entries)
	assert.Equal(t, int32(2), calls.Load())
}

func TestFetchEntries_Unreachable(t *testing.T) {
	client := New(Config{BaseURL: "http://127.0.0.1:1", APIKey: "k", Timeout: time.Second}, nil)
	_, err := client.FetchEntries(context.Background(), 1, date(t, "2021-01-01"), date(t, "2021-01-02"))
	assert.ErrorIs(t, err, ErrUpstream)
}

func TestFetchIssues_Chunking(t *testing.T) {
	var (
		mu     sync.Mutex
		chunks []int
	)
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/issues.json", r.URL.Path)
		assert.Equal(t, "secret", r.Header.Get(AuthHeader))
		q := r.URL.Query()
		assert.Equal(t, "*", q.Get("status_id"))

		ids := strings.Split(q.Get("issue_id"), ",")
		mu.Lock()
		chunks = append(chunks, len(ids))
		mu.Unlock()

		issues := make([]map[string]any, 0, len(ids))
		for _, id := range ids {
			issues = append(issues, map[string]any{"id": json.Number(id), "subject": "Issue " + id})
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"issues": issues, "total_count": len(issues)})
	})

	ids := make([]uint64, 250)
	for i := range ids {
		ids[i] = uint64(i + 1)
	}

	issues, err := client.FetchIssues(context.Background(), ids)
	require.NoError(t, err)
	assert.Len(t, issues, 250)
	assert.ElementsMatch(t, []int{100, 100, 50}, chunks)
	for _, id := range ids {
		issue, ok := issues[id]
		require.True(t, ok, "missing issue %d", id)
		assert.Equal(t, fmt.Sprintf("Issue %d", id), issue.Subject)
	}
}

func TestFetchIssues_Empty(t *testing.T) {
	var calls atomic.Int32
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	})

	issues, err := client.FetchIssues(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, issues)
	assert.NotNil(t, issues)
	assert.Zero(t, calls.Load())
}

func TestFetchIssues_ChunkFailureFailsAll(t *testing.T) {
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Query().Get("issue_id"), "101,") {
			http.Error(w, "nope", http.StatusInternalServerError)
			return
		}
		fmt.Fprint(w, `{"issues":[]}`)
	})

	ids := make([]uint64, 150)
	for i := range ids {
		ids[i] = uint64(i + 1)
	}
	issues, err := client.FetchIssues(context.Background(), ids)
	assert.ErrorIs(t, err, ErrUpstream)
	assert.Nil(t, issues)
}

func TestFetchIssues_MissingSubject(t *testing.T) {
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"issues":[{"id":1}]}`)
	})

	_, err := client.FetchIssues(context.Background(), []uint64{1})
	assert.ErrorIs(t, err, ErrDecode)
}

func TestPing(t *testing.T) {
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get(AuthHeader) != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		fmt.Fprint(w, `{"issues":[],"total_count":0}`)
	})
	assert.NoError(t, client.Ping(context.Background()))

	bad := New(Config{BaseURL: "http://127.0.0.1:1", APIKey: "k", Timeout: time.Second}, nil)
	assert.ErrorIs(t, bad.Ping(context.Background()), ErrUpstream)
}

func TestLogValueHidesKey(t *testing.T) {
	client := New(Config{BaseURL: "http://redmine.local", APIKey: "super-secret"}, nil)
	assert.NotContains(t, client.LogValue().String(), "super-secret")
	assert.Contains(t, client.LogValue().String(), "PRIVATE")
}

func TestChunk(t *testing.T) {
	assert.Empty(t, chunk(nil, PageSize))
	assert.Equal(t, [][]uint64{{1, 2}, {3}}, chunk([]uint64{1, 2, 3}, 2))
	assert.Equal(t, "1,2,3", joinIDs([]uint64{1, 2, 3}))
}
