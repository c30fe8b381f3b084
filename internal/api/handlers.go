// Bookfinder - Reading-Pattern Book Recommendations
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/bookfinder

package api

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/bookfinder/internal/auth"
	"github.com/tomtom215/bookfinder/internal/catalog"
	"github.com/tomtom215/bookfinder/internal/logging"
	"github.com/tomtom215/bookfinder/internal/recommend"
	"github.com/tomtom215/bookfinder/internal/validation"
)

const maxBodyBytes = 64 << 10

// Searcher runs catalog searches.
type Searcher interface {
	Search(ctx context.Context, mode catalog.Mode, query string, limit int) catalog.Result
}

// Refresher regenerates one user's recommendations.
type Refresher interface {
	RunUser(ctx context.Context, userID string) recommend.UserOutcome
}

// Store is the part of the data store the API serves from.
type Store interface {
	recommend.RecommendationReader
	recommend.HistoryRecorder
}

// Handler holds the endpoint dependencies.
type Handler struct {
	store     Store
	searcher  Searcher
	refresher Refresher
}

// NewHandler creates a Handler. refresher may be nil, in which case the
// refresh endpoint is not routed.
func NewHandler(store Store, searcher Searcher, refresher Refresher) *Handler {
	return &Handler{
		store:     store,
		searcher:  searcher,
		refresher: refresher,
	}
}

// searchRequest is the query string of GET /api/v1/search.
type searchRequest struct {
	Mode  string `json:"type"`
	Query string `json:"q"`
	Limit int    `json:"limit" validate:"min=0,max=100"`
}

type recommendationsRequest struct {
	Limit int `json:"limit" validate:"min=1,max=50"`
}

type historyRequest struct {
	Action string `json:"action" validate:"omitempty,oneof=viewed saved read"`
	Limit  int    `json:"limit" validate:"min=1,max=200"`
}

type removeHistoryRequest struct {
	BookID string `json:"book_id" validate:"notblank,max=256"`
	Action string `json:"action" validate:"oneof=viewed saved read"`
}

// RefreshResult is the response body of the refresh endpoint.
type RefreshResult struct {
	UserID string `json:"user_id"`
	Status string `json:"status"`
	Count  int    `json:"count"`
}

// Healthz reports liveness. It lives outside /api/v1 and is not part of
// the OpenAPI document.
func (h *Handler) Healthz(w http.ResponseWriter, r *http.Request) {
	NewResponseWriter(w, r).Success(map[string]string{"status": "ok"})
}

// Search proxies a catalog search.
//
// @Summary Search the book catalog
// @Description Searches Open Library by title, author or ISBN and returns normalized books
// @Tags Catalog
// @Produce json
// @Param q query string true "Search query"
// @Param type query string false "Search field" Enums(title, author, isbn) default(title)
// @Param limit query int false "Maximum results (0 = catalog default, isbn always 5)" minimum(0) maximum(100)
// @Success 200 {object} APIResponse{data=catalog.Success}
// @Failure 400 {object} APIResponse "Invalid query, search type or limit"
// @Failure 429 {object} APIResponse "Rate limit exceeded"
// @Failure 502 {object} APIResponse "Catalog provider failure"
// @Router /search [get]
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	q := r.URL.Query()

	limit, ok := intParam(rw, q.Get("limit"), "limit", 0)
	if !ok {
		return
	}
	req := searchRequest{
		Mode:  q.Get("type"),
		Query: q.Get("q"),
		Limit: limit,
	}
	if req.Mode == "" {
		req.Mode = string(catalog.ModeTitle)
	}
	if !validate(rw, &req) {
		return
	}

	switch res := h.searcher.Search(r.Context(), catalog.Mode(req.Mode), req.Query, req.Limit).(type) {
	case *catalog.Success:
		rw.Success(res)
	case *catalog.Failure:
		if res.Kind == catalog.KindProvider {
			rw.ExternalServiceError(res.Message)
			return
		}
		rw.BadRequest(res.Message)
	default:
		rw.Error(http.StatusInternalServerError, ErrCodeInternalError, "Unexpected search result")
	}
}

// Recommendations returns the caller's stored recommendations.
//
// @Summary List my recommendations
// @Description Returns the stored recommendations of the authenticated user, best first
// @Tags Recommendations
// @Produce json
// @Security BearerAuth
// @Param limit query int false "Maximum results" minimum(1) maximum(50) default(10)
// @Success 200 {object} APIResponse{data=[]recommend.Recommendation}
// @Failure 400 {object} APIResponse "Invalid limit"
// @Failure 401 {object} APIResponse "Missing or invalid access token"
// @Failure 500 {object} APIResponse "Database error"
// @Router /me/recommendations [get]
func (h *Handler) Recommendations(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	subject := mustSubject(r)

	limit, ok := intParam(rw, r.URL.Query().Get("limit"), "limit", recommend.DefaultLimit)
	if !ok {
		return
	}
	req := recommendationsRequest{Limit: limit}
	if !validate(rw, &req) {
		return
	}

	recs, err := h.store.Recommendations(r.Context(), subject.UserID, req.Limit)
	if err != nil {
		rw.DatabaseError(err)
		return
	}
	if recs == nil {
		recs = []recommend.Recommendation{}
	}
	rw.List(recs, len(recs))
}

// History returns the caller's reading history, newest first.
//
// @Summary List my reading history
// @Tags History
// @Produce json
// @Security BearerAuth
// @Param action query string false "Filter by action" Enums(viewed, saved, read)
// @Param limit query int false "Maximum results" minimum(1) maximum(200) default(50)
// @Success 200 {object} APIResponse{data=[]recommend.Interaction}
// @Failure 400 {object} APIResponse "Invalid filter"
// @Failure 401 {object} APIResponse "Missing or invalid access token"
// @Failure 500 {object} APIResponse "Database error"
// @Router /me/history [get]
func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	subject := mustSubject(r)
	q := r.URL.Query()

	limit, ok := intParam(rw, q.Get("limit"), "limit", 50)
	if !ok {
		return
	}
	req := historyRequest{Action: q.Get("action"), Limit: limit}
	if !validate(rw, &req) {
		return
	}

	entries, err := h.store.ReadingHistory(r.Context(), subject.UserID, recommend.ActionType(req.Action), req.Limit)
	if err != nil {
		rw.DatabaseError(err)
		return
	}
	if entries == nil {
		entries = []recommend.Interaction{}
	}
	rw.List(entries, len(entries))
}

// RecordHistory upserts one reading history entry for the caller.
//
// @Summary Record a reading history entry
// @Description Upserts a viewed, saved or read entry for the authenticated user. user_id is taken from the token.
// @Tags History
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param entry body recommend.Interaction true "History entry"
// @Success 201 {object} APIResponse{data=recommend.Interaction}
// @Failure 400 {object} APIResponse "Malformed or invalid entry"
// @Failure 401 {object} APIResponse "Missing or invalid access token"
// @Failure 500 {object} APIResponse "Database error"
// @Router /me/history [post]
func (h *Handler) RecordHistory(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	subject := mustSubject(r)

	var in recommend.Interaction
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(&in); err != nil {
		rw.BadRequest("Invalid JSON body")
		return
	}
	in.UserID = subject.UserID
	if in.CreatedAt.IsZero() {
		in.CreatedAt = time.Now()
	}
	in.CreatedAt = in.CreatedAt.UTC()
	if !validate(rw, &in) {
		return
	}

	if err := h.store.RecordInteraction(r.Context(), in); err != nil {
		rw.DatabaseError(err)
		return
	}

	logging.Ctx(r.Context()).Debug().
		Str("user_id", in.UserID).
		Str("book_id", in.BookID).
		Str("action", string(in.ActionType)).
		Msg("Recorded reading history")
	rw.Created(in)
}

// RemoveHistory deletes one reading history entry of the caller.
//
// @Summary Remove a reading history entry
// @Tags History
// @Security BearerAuth
// @Param book_id query string true "Book id, e.g. /works/OL45804W"
// @Param action query string false "Action to remove" Enums(viewed, saved, read) default(saved)
// @Success 204
// @Failure 400 {object} APIResponse "Invalid book id or action"
// @Failure 401 {object} APIResponse "Missing or invalid access token"
// @Failure 500 {object} APIResponse "Database error"
// @Router /me/history [delete]
func (h *Handler) RemoveHistory(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	subject := mustSubject(r)
	q := r.URL.Query()

	req := removeHistoryRequest{BookID: q.Get("book_id"), Action: q.Get("action")}
	if req.Action == "" {
		req.Action = string(recommend.ActionSaved)
	}
	if !validate(rw, &req) {
		return
	}

	if err := h.store.RemoveInteraction(r.Context(), subject.UserID, req.BookID, recommend.ActionType(req.Action)); err != nil {
		rw.DatabaseError(err)
		return
	}
	rw.NoContent()
}

// Refresh regenerates the caller's recommendations immediately.
//
// @Summary Regenerate my recommendations
// @Description Recomputes and stores the authenticated user's recommendations now
// @Tags Recommendations
// @Produce json
// @Security BearerAuth
// @Success 200 {object} APIResponse{data=RefreshResult}
// @Failure 401 {object} APIResponse "Missing or invalid access token"
// @Failure 500 {object} APIResponse "Generation or database error"
// @Router /me/recommendations/refresh [post]
func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	subject := mustSubject(r)

	outcome := h.refresher.RunUser(r.Context(), subject.UserID)
	if outcome.Kind == recommend.OutcomeFailed {
		if outcome.Err != nil && recommend.IsDataAccess(outcome.Err) {
			rw.DatabaseError(outcome.Err)
			return
		}
		rw.Error(http.StatusInternalServerError, ErrCodeInternalError, "Failed to refresh recommendations")
		return
	}

	rw.Success(RefreshResult{
		UserID: subject.UserID,
		Status: outcome.Kind.String(),
		Count:  outcome.Count,
	})
}

// unauthorized is the auth middleware failure handler.
func unauthorized(w http.ResponseWriter, r *http.Request, err error) {
	message := "Authentication required"
	switch {
	case errors.Is(err, auth.ErrExpiredCredentials):
		message = "Token expired"
	case errors.Is(err, auth.ErrInvalidCredentials):
		message = "Invalid token"
	}
	NewResponseWriter(w, r).Unauthorized(message)
}

// mustSubject returns the authenticated caller. Routes using it are always
// behind the auth middleware.
func mustSubject(r *http.Request) *auth.Subject {
	s, ok := auth.SubjectFromContext(r.Context())
	if !ok {
		panic("api: handler reached without authenticated subject")
	}
	return s
}

// intParam parses an optional integer query parameter.
func intParam(rw *ResponseWriter, raw, name string, def int) (int, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return def, true
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		rw.ValidationError(name+" must be an integer", map[string]any{"field": name})
		return 0, false
	}
	return v, true
}

func validate(rw *ResponseWriter, s any) bool {
	if verr := validation.ValidateStruct(s); verr != nil {
		apiErr := verr.ToAPIError()
		rw.ValidationError(apiErr.Message, apiErr.Details)
		return false
	}
	return true
}
