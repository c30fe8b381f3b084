// Bookfinder - Reading-Pattern Book Recommendations
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/bookfinder

package api

import (
	"compress/gzip"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/goccy/go-json"

	_ "github.com/tomtom215/bookfinder/docs"
	"github.com/tomtom215/bookfinder/internal/auth"
	"github.com/tomtom215/bookfinder/internal/catalog"
	"github.com/tomtom215/bookfinder/internal/recommend"
)

const testSecret = "api-test-secret-0123456789abcdef"

// ========================================
// Fakes
// ========================================

type fakeStore struct {
	mu       sync.Mutex
	recs     map[string][]recommend.Recommendation
	history  []recommend.Interaction
	removed  []string
	lastCall string
	limit    int
	err      error
}

func newFakeStore() *fakeStore {
	return &fakeStore{recs: map[string][]recommend.Recommendation{}}
}

func (f *fakeStore) Recommendations(_ context.Context, userID string, limit int) ([]recommend.Recommendation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastCall, f.limit = "recommendations", limit
	if f.err != nil {
		return nil, f.err
	}
	return f.recs[userID], nil
}

func (f *fakeStore) RecordInteraction(_ context.Context, in recommend.Interaction) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.history = append(f.history, in)
	return nil
}

func (f *fakeStore) RemoveInteraction(_ context.Context, userID, bookID string, action recommend.ActionType) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.removed = append(f.removed, userID+"|"+bookID+"|"+string(action))
	return nil
}

func (f *fakeStore) ReadingHistory(_ context.Context, userID string, action recommend.ActionType, limit int) ([]recommend.Interaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastCall, f.limit = "history:"+string(action), limit
	if f.err != nil {
		return nil, f.err
	}
	var out []recommend.Interaction
	for _, in := range f.history {
		if in.UserID == userID && (action == "" || in.ActionType == action) {
			out = append(out, in)
		}
	}
	return out, nil
}

type fakeSearcher struct {
	result   catalog.Result
	mode     catalog.Mode
	query    string
	limit    int
	searched bool
}

func (f *fakeSearcher) Search(_ context.Context, mode catalog.Mode, query string, limit int) catalog.Result {
	f.mode, f.query, f.limit, f.searched = mode, query, limit, true
	return f.result
}

type fakeRefresher struct {
	outcome recommend.UserOutcome
	userID  string
}

func (f *fakeRefresher) RunUser(_ context.Context, userID string) recommend.UserOutcome {
	f.userID = userID
	o := f.outcome
	o.UserID = userID
	return o
}

type testEnv struct {
	handler   http.Handler
	store     *fakeStore
	searcher  *fakeSearcher
	refresher *fakeRefresher
	token     string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	jwt, err := auth.NewJWTManager(testSecret)
	if err != nil {
		t.Fatalf("NewJWTManager() error = %v", err)
	}
	token, err := jwt.GenerateToken("user-1", time.Hour)
	if err != nil {
		t.Fatalf("GenerateToken() error = %v", err)
	}

	env := &testEnv{
		store:     newFakeStore(),
		searcher:  &fakeSearcher{result: &catalog.Success{Docs: []catalog.Book{}}},
		refresher: &fakeRefresher{outcome: recommend.UserOutcome{Kind: recommend.OutcomeGenerated, Count: 3}},
		token:     token,
	}
	env.handler = NewRouter(NewHandler(env.store, env.searcher, env.refresher), jwt, &MiddlewareConfig{})
	return env
}

func (e *testEnv) do(t *testing.T, method, target, body string, authed bool) (*httptest.ResponseRecorder, APIResponse) {
	t.Helper()

	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, http.NoBody)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	if authed {
		req.Header.Set("Authorization", "Bearer "+e.token)
	}

	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)

	var resp APIResponse
	if rec.Code != http.StatusNoContent && strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatalf("decode response %q: %v", rec.Body.String(), err)
		}
	}
	return rec, resp
}

// ========================================
// Operational endpoints
// ========================================

func TestHealthz(t *testing.T) {
	env := newTestEnv(t)

	rec, resp := env.do(t, http.MethodGet, "/healthz", "", false)
	if rec.Code != http.StatusOK || !resp.Success {
		t.Fatalf("status = %d, success = %v", rec.Code, resp.Success)
	}
	data, _ := resp.Data.(map[string]any)
	if data["status"] != "ok" {
		t.Errorf("data = %v", resp.Data)
	}
	if rec.Header().Get("X-Request-Id") == "" {
		t.Error("missing X-Request-Id header")
	}
}

func TestMetricsEndpoint(t *testing.T) {
	env := newTestEnv(t)

	rec, _ := env.do(t, http.MethodGet, "/metrics", "", false)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "go_goroutines") {
		t.Error("metrics output missing go_goroutines")
	}
}

func TestNotFound(t *testing.T) {
	env := newTestEnv(t)

	rec, resp := env.do(t, http.MethodGet, "/nope", "", false)
	if rec.Code != http.StatusNotFound || resp.Error == nil || resp.Error.Code != ErrCodeNotFound {
		t.Errorf("status = %d, error = %+v", rec.Code, resp.Error)
	}
}

// ========================================
// Search
// ========================================

func TestSearch(t *testing.T) {
	tests := []struct {
		name       string
		target     string
		result     catalog.Result
		wantStatus int
		wantCode   string
		wantMode   catalog.Mode
		wantCalled bool
	}{
		{
			name:       "success",
			target:     "/api/v1/search?type=author&q=tolkien&limit=5",
			result:     &catalog.Success{Docs: []catalog.Book{{Key: "k"}}, NumFound: 1},
			wantStatus: http.StatusOK,
			wantMode:   catalog.ModeAuthor,
			wantCalled: true,
		},
		{
			name:       "default mode is title",
			target:     "/api/v1/search?q=dune",
			result:     &catalog.Success{Docs: []catalog.Book{}},
			wantStatus: http.StatusOK,
			wantMode:   catalog.ModeTitle,
			wantCalled: true,
		},
		{
			name:       "invalid query",
			target:     "/api/v1/search?q=",
			result:     &catalog.Failure{Kind: catalog.KindInvalidQuery, Message: "Search query cannot be empty"},
			wantStatus: http.StatusBadRequest,
			wantCode:   ErrCodeBadRequest,
			wantMode:   catalog.ModeTitle,
			wantCalled: true,
		},
		{
			name:       "provider failure",
			target:     "/api/v1/search?q=dune",
			result:     &catalog.Failure{Kind: catalog.KindProvider, Message: "Failed to search by title: boom"},
			wantStatus: http.StatusBadGateway,
			wantCode:   ErrCodeExternalServiceFail,
			wantMode:   catalog.ModeTitle,
			wantCalled: true,
		},
		{
			name:       "non numeric limit",
			target:     "/api/v1/search?q=dune&limit=ten",
			wantStatus: http.StatusBadRequest,
			wantCode:   ErrCodeValidationFailed,
		},
		{
			name:       "limit too large",
			target:     "/api/v1/search?q=dune&limit=1000",
			wantStatus: http.StatusBadRequest,
			wantCode:   ErrCodeValidationFailed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			env.searcher.result = tt.result

			rec, resp := env.do(t, http.MethodGet, tt.target, "", false)
			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d: %s", rec.Code, tt.wantStatus, rec.Body.String())
			}
			if env.searcher.searched != tt.wantCalled {
				t.Errorf("searched = %v, want %v", env.searcher.searched, tt.wantCalled)
			}
			if tt.wantCalled && env.searcher.mode != tt.wantMode {
				t.Errorf("mode = %q, want %q", env.searcher.mode, tt.wantMode)
			}
			if tt.wantCode != "" {
				if resp.Error == nil || resp.Error.Code != tt.wantCode {
					t.Errorf("error = %+v, want code %s", resp.Error, tt.wantCode)
				}
			}
			if f, ok := tt.result.(*catalog.Failure); ok && resp.Error != nil && resp.Error.Message != f.Message {
				t.Errorf("message = %q, want %q", resp.Error.Message, f.Message)
			}
		})
	}
}

// ========================================
// Authentication
// ========================================

func TestMeRoutes_RequireAuth(t *testing.T) {
	env := newTestEnv(t)

	routes := []struct {
		method string
		target string
	}{
		{http.MethodGet, "/api/v1/me/recommendations"},
		{http.MethodPost, "/api/v1/me/recommendations/refresh"},
		{http.MethodGet, "/api/v1/me/history"},
		{http.MethodPost, "/api/v1/me/history"},
		{http.MethodDelete, "/api/v1/me/history?book_id=b"},
	}

	for _, rt := range routes {
		rec, resp := env.do(t, rt.method, rt.target, "", false)
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("%s %s status = %d, want 401", rt.method, rt.target, rec.Code)
			continue
		}
		if resp.Error == nil || resp.Error.Code != ErrCodeUnauthorized {
			t.Errorf("%s %s error = %+v", rt.method, rt.target, resp.Error)
		}
	}
}

// ========================================
// Recommendations
// ========================================

func TestRecommendations(t *testing.T) {
	env := newTestEnv(t)
	env.store.recs["user-1"] = []recommend.Recommendation{
		{UserID: "user-1", RecommendedBookID: "C", RecommendedBookTitle: "Title C", Score: 2, Reason: "2 users with similar reading patterns viewed this book"},
	}

	rec, resp := env.do(t, http.MethodGet, "/api/v1/me/recommendations", "", true)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	if env.store.limit != recommend.DefaultLimit {
		t.Errorf("limit = %d, want %d", env.store.limit, recommend.DefaultLimit)
	}
	if resp.Meta == nil || resp.Meta.Count == nil || *resp.Meta.Count != 1 {
		t.Errorf("meta = %+v", resp.Meta)
	}
	items, _ := resp.Data.([]any)
	if len(items) != 1 {
		t.Fatalf("data = %v", resp.Data)
	}
	first, _ := items[0].(map[string]any)
	if first["recommended_book_id"] != "C" {
		t.Errorf("first = %v", first)
	}
}

func TestRecommendations_EmptyIsArray(t *testing.T) {
	env := newTestEnv(t)

	rec, _ := env.do(t, http.MethodGet, "/api/v1/me/recommendations?limit=5", "", true)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"data":[]`) {
		t.Errorf("body = %s, want empty data array", rec.Body.String())
	}
}

func TestRecommendations_StoreError(t *testing.T) {
	env := newTestEnv(t)
	env.store.err = errors.New("connection refused")

	rec, resp := env.do(t, http.MethodGet, "/api/v1/me/recommendations", "", true)
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d", rec.Code)
	}
	if resp.Error == nil || resp.Error.Code != ErrCodeDatabaseError {
		t.Errorf("error = %+v", resp.Error)
	}
	if strings.Contains(rec.Body.String(), "connection refused") {
		t.Error("response leaks store error")
	}
}

func TestRefresh(t *testing.T) {
	tests := []struct {
		name       string
		outcome    recommend.UserOutcome
		wantStatus int
		wantCode   string
	}{
		{"generated", recommend.UserOutcome{Kind: recommend.OutcomeGenerated, Count: 3}, http.StatusOK, ""},
		{"empty", recommend.UserOutcome{Kind: recommend.OutcomeEmpty}, http.StatusOK, ""},
		{
			"store failure",
			recommend.UserOutcome{Kind: recommend.OutcomeFailed, Err: &recommend.UserProcessingError{
				UserID: "user-1", Err: &recommend.DataAccessError{Op: "view_history", Err: errors.New("down")},
			}},
			http.StatusInternalServerError, ErrCodeDatabaseError,
		},
		{
			"other failure",
			recommend.UserOutcome{Kind: recommend.OutcomeFailed, Err: &recommend.UserProcessingError{
				UserID: "user-1", Err: errors.New("panic: boom"),
			}},
			http.StatusInternalServerError, ErrCodeInternalError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			env.refresher.outcome = tt.outcome

			rec, resp := env.do(t, http.MethodPost, "/api/v1/me/recommendations/refresh", "", true)
			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if env.refresher.userID != "user-1" {
				t.Errorf("refreshed user = %q", env.refresher.userID)
			}
			if tt.wantCode != "" {
				if resp.Error == nil || resp.Error.Code != tt.wantCode {
					t.Errorf("error = %+v, want %s", resp.Error, tt.wantCode)
				}
				return
			}
			data, _ := resp.Data.(map[string]any)
			if data["status"] != tt.outcome.Kind.String() {
				t.Errorf("data = %v", data)
			}
		})
	}
}

func TestRefresh_NotRoutedWithoutRefresher(t *testing.T) {
	jwt, err := auth.NewJWTManager(testSecret)
	if err != nil {
		t.Fatalf("NewJWTManager() error = %v", err)
	}
	token, _ := jwt.GenerateToken("user-1", time.Hour)
	handler := NewRouter(NewHandler(newFakeStore(), &fakeSearcher{}, nil), jwt, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/me/recommendations/refresh", http.NoBody)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound && rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want 404 or 405", rec.Code)
	}
}

// ========================================
// History
// ========================================

func TestRecordHistory(t *testing.T) {
	env := newTestEnv(t)

	body := `{"book_id":"/works/OL1W","book_title":"Dune","book_author":"Frank Herbert","action_type":"viewed","user_id":"someone-else"}`
	rec, resp := env.do(t, http.MethodPost, "/api/v1/me/history", body, true)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	if !resp.Success {
		t.Error("success = false")
	}
	if len(env.store.history) != 1 {
		t.Fatalf("recorded %d entries", len(env.store.history))
	}
	got := env.store.history[0]
	if got.UserID != "user-1" {
		t.Errorf("UserID = %q, want caller's id", got.UserID)
	}
	if got.CreatedAt.IsZero() {
		t.Error("CreatedAt not defaulted")
	}
}

func TestRecordHistory_Invalid(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		wantCode string
	}{
		{"not json", `{`, ErrCodeBadRequest},
		{"missing title", `{"book_id":"b","action_type":"viewed"}`, ErrCodeValidationFailed},
		{"bad action", `{"book_id":"b","book_title":"t","action_type":"liked"}`, ErrCodeValidationFailed},
		{"blank book id", `{"book_id":"   ","book_title":"t","action_type":"viewed"}`, ErrCodeValidationFailed},
		{"blank title", `{"book_id":"b","book_title":" \t ","action_type":"viewed"}`, ErrCodeValidationFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)

			rec, resp := env.do(t, http.MethodPost, "/api/v1/me/history", tt.body, true)
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("status = %d", rec.Code)
			}
			if resp.Error == nil || resp.Error.Code != tt.wantCode {
				t.Errorf("error = %+v, want %s", resp.Error, tt.wantCode)
			}
			if len(env.store.history) != 0 {
				t.Error("invalid entry was recorded")
			}
		})
	}
}

func TestHistory(t *testing.T) {
	env := newTestEnv(t)
	env.store.history = []recommend.Interaction{
		{UserID: "user-1", BookID: "a", ActionType: recommend.ActionViewed},
		{UserID: "user-1", BookID: "b", ActionType: recommend.ActionSaved},
		{UserID: "user-2", BookID: "c", ActionType: recommend.ActionSaved},
	}

	rec, resp := env.do(t, http.MethodGet, "/api/v1/me/history?action=saved&limit=10", "", true)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if env.store.lastCall != "history:saved" || env.store.limit != 10 {
		t.Errorf("store call = %s limit %d", env.store.lastCall, env.store.limit)
	}
	if resp.Meta == nil || resp.Meta.Count == nil || *resp.Meta.Count != 1 {
		t.Errorf("meta = %+v", resp.Meta)
	}

	rec, _ = env.do(t, http.MethodGet, "/api/v1/me/history?action=liked", "", true)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("invalid action status = %d, want 400", rec.Code)
	}
}

func TestRemoveHistory(t *testing.T) {
	env := newTestEnv(t)

	rec, _ := env.do(t, http.MethodDelete, "/api/v1/me/history?book_id=%2Fworks%2FOL1W", "", true)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	rec, _ = env.do(t, http.MethodDelete, "/api/v1/me/history?book_id=x&action=read", "", true)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d", rec.Code)
	}

	want := []string{"user-1|/works/OL1W|saved", "user-1|x|read"}
	if len(env.store.removed) != len(want) {
		t.Fatalf("removed = %v", env.store.removed)
	}
	for i := range want {
		if env.store.removed[i] != want[i] {
			t.Errorf("removed[%d] = %q, want %q", i, env.store.removed[i], want[i])
		}
	}

	rec, _ = env.do(t, http.MethodDelete, "/api/v1/me/history", "", true)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("missing book_id status = %d, want 400", rec.Code)
	}
}

// ========================================
// Middleware
// ========================================

func TestRateLimit(t *testing.T) {
	jwt, err := auth.NewJWTManager(testSecret)
	if err != nil {
		t.Fatalf("NewJWTManager() error = %v", err)
	}
	searcher := &fakeSearcher{result: &catalog.Success{Docs: []catalog.Book{}}}
	handler := NewRouter(NewHandler(newFakeStore(), searcher, nil), jwt, &MiddlewareConfig{
		RateLimitRequests: 2,
		RateLimitWindow:   time.Minute,
	})

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/search?q=dune", http.NoBody)
		req.RemoteAddr = "192.0.2.10:1234"
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		codes = append(codes, rec.Code)
	}

	if codes[0] != http.StatusOK || codes[1] != http.StatusOK || codes[2] != http.StatusTooManyRequests {
		t.Errorf("codes = %v, want [200 200 429]", codes)
	}
}

func TestCORS(t *testing.T) {
	jwt, err := auth.NewJWTManager(testSecret)
	if err != nil {
		t.Fatalf("NewJWTManager() error = %v", err)
	}
	handler := NewRouter(NewHandler(newFakeStore(), &fakeSearcher{}, nil), jwt, &MiddlewareConfig{
		CORSAllowedOrigins: []string{"https://books.example.com"},
	})

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/me/history", http.NoBody)
	req.Header.Set("Origin", "https://books.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "https://books.example.com" {
		t.Errorf("Access-Control-Allow-Origin = %q", got)
	}
}

func TestCompression(t *testing.T) {
	env := newTestEnv(t)
	env.searcher.result = &catalog.Success{Docs: []catalog.Book{{Key: "/works/OL1W", Title: "Dune"}}, NumFound: 1}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/search?q=dune", http.NoBody)
	req.Header.Set("Accept-Encoding", "gzip")
	rec := httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if got := rec.Header().Get("Content-Encoding"); got != "gzip" {
		t.Fatalf("Content-Encoding = %q, want gzip", got)
	}

	zr, err := gzip.NewReader(rec.Body)
	if err != nil {
		t.Fatalf("gzip.NewReader() error = %v", err)
	}
	defer zr.Close()

	var resp APIResponse
	if err := json.NewDecoder(zr).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !resp.Success {
		t.Errorf("Success = false, error = %+v", resp.Error)
	}
}

func TestSwaggerDoc(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest(http.MethodGet, "/swagger/doc.json", http.NoBody)
	rec := httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var doc struct {
		Swagger  string                    `json:"swagger"`
		BasePath string                    `json:"basePath"`
		Paths    map[string]map[string]any `json:"paths"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &doc); err != nil {
		t.Fatalf("decode doc.json: %v", err)
	}
	if doc.Swagger != "2.0" || doc.BasePath != "/api/v1" {
		t.Errorf("swagger = %q basePath = %q", doc.Swagger, doc.BasePath)
	}
	for _, route := range []struct{ path, method string }{
		{"/search", "get"},
		{"/me/recommendations", "get"},
		{"/me/recommendations/refresh", "post"},
		{"/me/history", "get"},
		{"/me/history", "post"},
		{"/me/history", "delete"},
	} {
		if _, ok := doc.Paths[route.path][route.method]; !ok {
			t.Errorf("doc.json missing %s %s", route.method, route.path)
		}
	}
}
