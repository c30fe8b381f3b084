// Bookfinder - Reading-Pattern Book Recommendations
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/bookfinder

package supabase

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sort"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/bookfinder/internal/config"
	"github.com/tomtom215/bookfinder/internal/recommend"
)

const testKey = "service-role-key"

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	c, err := New(&config.SupabaseConfig{
		URL:            server.URL + "/",
		ServiceRoleKey: testKey,
		Timeout:        5 * time.Second,
		MaxRetries:     2,
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	c.retryDelay = time.Millisecond
	return c
}

func writeJSON(t *testing.T, w http.ResponseWriter, status int, v any) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		t.Errorf("encode response: %v", err)
	}
}

func checkAuth(t *testing.T, r *http.Request) {
	t.Helper()
	if got := r.Header.Get("apikey"); got != testKey {
		t.Errorf("apikey = %q, want %q", got, testKey)
	}
	if got := r.Header.Get("Authorization"); got != "Bearer "+testKey {
		t.Errorf("Authorization = %q", got)
	}
}

// ============================================================================
// Constructor Tests
// ============================================================================

func TestNew_MissingCredentials(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		cfg  config.SupabaseConfig
		want []string
	}{
		{name: "both", cfg: config.SupabaseConfig{}, want: []string{"SUPABASE_URL", "SUPABASE_SERVICE_ROLE_KEY"}},
		{name: "url", cfg: config.SupabaseConfig{ServiceRoleKey: "k"}, want: []string{"SUPABASE_URL"}},
		{name: "key", cfg: config.SupabaseConfig{URL: "https://x.supabase.co"}, want: []string{"SUPABASE_SERVICE_ROLE_KEY"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := tt.cfg
			_, err := New(&cfg)

			var cfgErr *config.ConfigurationError
			if !errors.As(err, &cfgErr) {
				t.Fatalf("New() error = %v, want ConfigurationError", err)
			}
			if len(cfgErr.Missing) != len(tt.want) {
				t.Fatalf("Missing = %v, want %v", cfgErr.Missing, tt.want)
			}
			for i := range tt.want {
				if cfgErr.Missing[i] != tt.want[i] {
					t.Errorf("Missing[%d] = %q, want %q", i, cfgErr.Missing[i], tt.want[i])
				}
			}
		})
	}
}

func TestNew_TrimsTrailingSlash(t *testing.T) {
	t.Parallel()

	c, err := New(&config.SupabaseConfig{URL: "https://x.supabase.co/", ServiceRoleKey: "k"})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if c.restURL != "https://x.supabase.co/rest/v1" {
		t.Errorf("restURL = %q", c.restURL)
	}
}

// ============================================================================
// History Tests
// ============================================================================

func TestListUserIDs_Pages(t *testing.T) {
	t.Parallel()

	pages := map[string][]profileRow{
		"0": {{ID: "a"}, {ID: "b"}},
		"2": {{ID: "c"}},
	}
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		checkAuth(t, r)
		if r.URL.Path != "/rest/v1/profiles" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if got := r.URL.Query().Get("limit"); got != "2" {
			t.Errorf("limit = %q, want 2", got)
		}
		writeJSON(t, w, http.StatusOK, pages[r.URL.Query().Get("offset")])
	})
	c.pageSize = 2

	ids, err := c.ListUserIDs(context.Background())
	if err != nil {
		t.Fatalf("ListUserIDs() error = %v", err)
	}
	if len(ids) != 3 || ids[0] != "a" || ids[2] != "c" {
		t.Errorf("ids = %v, want [a b c]", ids)
	}
	if calls.Load() != 2 {
		t.Errorf("calls = %d, want 2", calls.Load())
	}
}

func TestViewHistory_Filters(t *testing.T) {
	t.Parallel()

	created := time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		checks := map[string]string{
			"user_id":     "eq.u1",
			"action_type": "eq.viewed",
			"order":       "created_at.asc,book_id.asc",
		}
		for k, want := range checks {
			if got := q.Get(k); got != want {
				t.Errorf("%s = %q, want %q", k, got, want)
			}
		}
		writeJSON(t, w, http.StatusOK, []map[string]any{
			{"user_id": "u1", "book_id": "/works/OL1W", "book_title": "Dune", "book_author": nil, "created_at": created.Format(time.RFC3339)},
		})
	})

	events, err := c.ViewHistory(context.Background(), "u1")
	if err != nil {
		t.Fatalf("ViewHistory() error = %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("len(events) = %d, want 1", len(events))
	}
	e := events[0]
	if e.BookID != "/works/OL1W" || e.BookTitle != "Dune" || e.BookAuthor != "" || !e.CreatedAt.Equal(created) {
		t.Errorf("event = %+v", e)
	}
}

func TestViewHistory_PagesStableOnTiedTimestamps(t *testing.T) {
	t.Parallel()

	tied := time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)
	rows := []recommend.ViewEvent{
		{UserID: "u1", BookID: "D", CreatedAt: tied},
		{UserID: "u1", BookID: "B", CreatedAt: tied},
		{UserID: "u1", BookID: "C", CreatedAt: tied},
		{UserID: "u1", BookID: "A", CreatedAt: tied},
	}

	// Without a unique tie-break the server returns tied rows in a
	// different order on every request, as Postgres is free to.
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		n := calls.Add(1)
		q := r.URL.Query()
		sorted := append([]recommend.ViewEvent(nil), rows...)
		if strings.Contains(q.Get("order"), "book_id.asc") {
			sort.Slice(sorted, func(i, j int) bool { return sorted[i].BookID < sorted[j].BookID })
		} else if n%2 == 0 {
			for i, j := 0, len(sorted)-1; i < j; i, j = i+1, j-1 {
				sorted[i], sorted[j] = sorted[j], sorted[i]
			}
		}
		offset, _ := strconv.Atoi(q.Get("offset"))
		limit, _ := strconv.Atoi(q.Get("limit"))
		end := min(offset+limit, len(sorted))
		if offset > end {
			offset = end
		}
		writeJSON(t, w, http.StatusOK, sorted[offset:end])
	})
	c.pageSize = 2

	events, err := c.ViewHistory(context.Background(), "u1")
	if err != nil {
		t.Fatalf("ViewHistory() error = %v", err)
	}
	var got []string
	for _, e := range events {
		got = append(got, e.BookID)
	}
	if strings.Join(got, ",") != "A,B,C,D" {
		t.Errorf("books = %v, want [A B C D] with no repeats", got)
	}
}

func TestViewHistoryForBooks_ResolvesNeighborsThenStreams(t *testing.T) {
	t.Parallel()

	var streamCalls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("select") == "user_id" {
			if got := q.Get("book_id"); got != "in.(A,B)" {
				t.Errorf("book_id = %q, want in.(A,B)", got)
			}
			if got := q.Get("user_id"); got != "neq.t" {
				t.Errorf("user_id = %q, want neq.t", got)
			}
			if got := q.Get("order"); got != "user_id.asc,book_id.asc" {
				t.Errorf("neighbor order = %q, want user_id.asc,book_id.asc", got)
			}
			writeJSON(t, w, http.StatusOK, []userRow{{"x"}, {"y"}, {"x"}})
			return
		}

		streamCalls.Add(1)
		if got := q.Get("user_id"); got != "in.(x,y)" {
			t.Errorf("user_id = %q, want in.(x,y)", got)
		}
		if got := q.Get("order"); got != "created_at.asc,user_id.asc,book_id.asc" {
			t.Errorf("stream order = %q, want created_at.asc,user_id.asc,book_id.asc", got)
		}
		writeJSON(t, w, http.StatusOK, []recommend.ViewEvent{
			{UserID: "x", BookID: "A"},
			{UserID: "y", BookID: "B"},
			{UserID: "x", BookID: "C"},
			{UserID: "y", BookID: "C"},
		})
	})

	events, err := c.ViewHistoryForBooks(context.Background(), []string{"A", "B"}, "t")
	if err != nil {
		t.Fatalf("ViewHistoryForBooks() error = %v", err)
	}
	if len(events) != 4 {
		t.Errorf("len(events) = %d, want 4", len(events))
	}
	if streamCalls.Load() != 1 {
		t.Errorf("stream calls = %d, want 1", streamCalls.Load())
	}
}

func TestViewHistoryForBooks_NoNeighbors(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		writeJSON(t, w, http.StatusOK, []userRow{})
	})

	events, err := c.ViewHistoryForBooks(context.Background(), []string{"A"}, "t")
	if err != nil {
		t.Fatalf("ViewHistoryForBooks() error = %v", err)
	}
	if len(events) != 0 || calls.Load() != 1 {
		t.Errorf("events = %v calls = %d, want none after one lookup", events, calls.Load())
	}
}

func TestRecordInteraction_Upserts(t *testing.T) {
	t.Parallel()

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}
		if got := r.URL.Query().Get("on_conflict"); got != "user_id,book_id,action_type" {
			t.Errorf("on_conflict = %q", got)
		}
		if got := r.Header.Get("Prefer"); got != "resolution=merge-duplicates,return=minimal" {
			t.Errorf("Prefer = %q", got)
		}

		var rows []recommend.Interaction
		if err := json.NewDecoder(r.Body).Decode(&rows); err != nil {
			t.Errorf("decode body: %v", err)
			return
		}
		if len(rows) != 1 || rows[0].UserID != "u1" || rows[0].ActionType != recommend.ActionSaved {
			t.Errorf("body = %+v", rows)
			return
		}
		if rows[0].CreatedAt.IsZero() {
			t.Error("created_at should be refreshed")
		}
		w.WriteHeader(http.StatusCreated)
	})

	err := c.RecordInteraction(context.Background(), recommend.Interaction{
		UserID: "u1", BookID: "b1", BookTitle: "T", ActionType: recommend.ActionSaved,
	})
	if err != nil {
		t.Fatalf("RecordInteraction() error = %v", err)
	}
}

func TestReadingHistory_Query(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		action     recommend.ActionType
		limit      int
		wantAction string
		wantLimit  string
	}{
		{name: "all actions default limit", wantLimit: "50"},
		{name: "saved only", action: recommend.ActionSaved, limit: 5, wantAction: "eq.saved", wantLimit: "5"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				q := r.URL.Query()
				if got := q.Get("action_type"); got != tt.wantAction {
					t.Errorf("action_type = %q, want %q", got, tt.wantAction)
				}
				if got := q.Get("limit"); got != tt.wantLimit {
					t.Errorf("limit = %q, want %q", got, tt.wantLimit)
				}
				if got := q.Get("order"); got != "created_at.desc,book_id.asc,action_type.asc" {
					t.Errorf("order = %q", got)
				}
				writeJSON(t, w, http.StatusOK, []recommend.Interaction{{BookID: "b"}})
			})

			rows, err := c.ReadingHistory(context.Background(), "u1", tt.action, tt.limit)
			if err != nil || len(rows) != 1 {
				t.Errorf("ReadingHistory() = %v, %v", rows, err)
			}
		})
	}
}

func TestRemoveInteraction(t *testing.T) {
	t.Parallel()

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if r.Method != http.MethodDelete || q.Get("book_id") != "eq.b1" || q.Get("action_type") != "eq.read" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.RawQuery)
		}
		w.WriteHeader(http.StatusNoContent)
	})

	if err := c.RemoveInteraction(context.Background(), "u1", "b1", recommend.ActionRead); err != nil {
		t.Fatalf("RemoveInteraction() error = %v", err)
	}
}

// ============================================================================
// Recommendation Tests
// ============================================================================

func TestReplaceRecommendations_CallsRPC(t *testing.T) {
	t.Parallel()

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/rest/v1/rpc/replace_recommendations" {
			t.Errorf("path = %q", r.URL.Path)
		}
		var body replaceParams
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode body: %v", err)
			return
		}
		if body.UserID != "u1" || len(body.Recommendations) != 2 {
			t.Errorf("body = %+v", body)
			return
		}
		if body.Recommendations[0].Reason == "" {
			t.Error("reason missing from payload")
		}
		w.WriteHeader(http.StatusNoContent)
	})

	recs := []recommend.Recommendation{
		{UserID: "u1", RecommendedBookID: "C", Score: 2, Reason: recommend.Reason(2)},
		{UserID: "u1", RecommendedBookID: "D", Score: 1, Reason: recommend.Reason(1)},
	}
	if err := c.ReplaceRecommendations(context.Background(), "u1", recs); err != nil {
		t.Fatalf("ReplaceRecommendations() error = %v", err)
	}
}

func TestRecommendations_Order(t *testing.T) {
	t.Parallel()

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if got := q.Get("order"); got != "score.desc,recommended_book_id.asc" {
			t.Errorf("order = %q", got)
		}
		if got := q.Get("limit"); got != "10" {
			t.Errorf("limit = %q, want 10", got)
		}
		writeJSON(t, w, http.StatusOK, []recommend.Recommendation{{RecommendedBookID: "C", Score: 2}})
	})

	recs, err := c.Recommendations(context.Background(), "u1", 0)
	if err != nil || len(recs) != 1 || recs[0].Score != 2 {
		t.Errorf("Recommendations() = %+v, %v", recs, err)
	}
}

func TestClearRecommendations(t *testing.T) {
	t.Parallel()

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodDelete || r.URL.Query().Get("user_id") != "eq.u1" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.RawQuery)
		}
		w.WriteHeader(http.StatusNoContent)
	})

	if err := c.ClearRecommendations(context.Background(), "u1"); err != nil {
		t.Fatalf("ClearRecommendations() error = %v", err)
	}
}

// ============================================================================
// Error Handling Tests
// ============================================================================

func TestRetryOnServerError(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		n := calls.Add(1)
		if n == 1 {
			w.Header().Set("Retry-After", "0")
			writeJSON(t, w, http.StatusServiceUnavailable, map[string]string{"message": "busy"})
			return
		}
		writeJSON(t, w, http.StatusOK, []profileRow{{ID: "a"}})
	})

	ids, err := c.ListUserIDs(context.Background())
	if err != nil {
		t.Fatalf("ListUserIDs() error = %v", err)
	}
	if len(ids) != 1 || calls.Load() != 2 {
		t.Errorf("ids = %v calls = %d, want one id after 2 calls", ids, calls.Load())
	}
}

func TestRetryBudgetExhausted(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
	})

	_, err := c.ListUserIDs(context.Background())

	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusTooManyRequests {
		t.Fatalf("error = %v, want 429 APIError", err)
	}
	if calls.Load() != 3 {
		t.Errorf("calls = %d, want 3 (1 + 2 retries)", calls.Load())
	}
}

func TestClientErrorNotRetried(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		writeJSON(t, w, http.StatusBadRequest, map[string]string{
			"code":    "PGRST100",
			"message": "failed to parse filter",
		})
	})

	_, err := c.ViewHistory(context.Background(), "u1")

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("error = %v, want APIError", err)
	}
	if apiErr.Code != "PGRST100" || apiErr.Message != "failed to parse filter" {
		t.Errorf("apiErr = %+v", apiErr)
	}
	if calls.Load() != 1 {
		t.Errorf("calls = %d, want 1", calls.Load())
	}
	if !isBreakerSuccess(err) {
		t.Error("client errors must not count against the breaker")
	}
}

func TestFilterHelpers(t *testing.T) {
	t.Parallel()

	if got := inList([]string{"/works/OL1W", "a,b", `q"t`}); got != `in.(/works/OL1W,"a,b","q\"t")` {
		t.Errorf("inList() = %s", got)
	}
	if got := parseRetryAfter("3"); got != 3*time.Second {
		t.Errorf("parseRetryAfter(3) = %v", got)
	}
	if got := parseRetryAfter("Wed, 21 Oct 2015 07:28:00 GMT"); got != -1 {
		t.Errorf("parseRetryAfter(date) = %v, want -1", got)
	}

	var ids []string
	for i := 0; i < 205; i++ {
		ids = append(ids, strconv.Itoa(i))
	}
	parts := chunks(ids, maxFilterValues)
	if len(parts) != 3 || len(parts[2]) != 5 {
		t.Errorf("chunks() sizes = %d parts, last %d", len(parts), len(parts[len(parts)-1]))
	}
}
