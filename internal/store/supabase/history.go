// Bookfinder - Reading-Pattern Book Recommendations
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/bookfinder

package supabase

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/tomtom215/bookfinder/internal/recommend"
)

const (
	tableProfiles = "/profiles"
	tableHistory  = "/reading_history"

	historyColumns = "user_id,book_id,book_title,book_author,book_cover_url,created_at"
	defaultHistory = 50
)

var _ recommend.Store = (*Client)(nil)

type profileRow struct {
	ID string `json:"id"`
}

// ListUserIDs returns every profile id.
func (c *Client) ListUserIDs(ctx context.Context) ([]string, error) {
	rows, err := getAll[profileRow](ctx, c, requestConfig{
		op:    "list_users",
		path:  tableProfiles,
		query: url.Values{"select": {"id"}, "order": {"id.asc"}},
	})
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(rows))
	for _, r := range rows {
		ids = append(ids, r.ID)
	}
	return ids, nil
}

// Every paged read sorts on a unique key. created_at alone ties, and offset
// paging over a tied sort can repeat or drop rows between pages.
const (
	orderViewHistory     = "created_at.asc,book_id.asc"
	orderNeighborStreams = "created_at.asc,user_id.asc,book_id.asc"
	orderNeighborIDs     = "user_id.asc,book_id.asc"
	orderReadingHistory  = "created_at.desc,book_id.asc,action_type.asc"
)

// ViewHistory returns userID's viewed events, oldest first.
func (c *Client) ViewHistory(ctx context.Context, userID string) ([]recommend.ViewEvent, error) {
	return getAll[recommend.ViewEvent](ctx, c, requestConfig{
		op:   "view_history",
		path: tableHistory,
		query: url.Values{
			"select":      {historyColumns},
			"user_id":     {eq(userID)},
			"action_type": {eq(string(recommend.ActionViewed))},
			"order":       {orderViewHistory},
		},
	})
}

// ViewHistoryForBooks returns the full viewed streams of every other user
// who viewed one of bookIDs.
//
// PostgREST cannot express the neighbor subquery in one request, so the
// neighbors are resolved first and their streams fetched in chunks. Each
// neighbor lands in exactly one chunk, so every stream arrives complete and
// in created_at order.
func (c *Client) ViewHistoryForBooks(ctx context.Context, bookIDs []string, excludeUserID string) ([]recommend.ViewEvent, error) {
	neighbors, err := c.neighborIDs(ctx, bookIDs, excludeUserID)
	if err != nil {
		return nil, err
	}

	var events []recommend.ViewEvent
	for _, chunk := range chunks(neighbors, maxFilterValues) {
		rows, err := getAll[recommend.ViewEvent](ctx, c, requestConfig{
			op:   "view_history_for_books",
			path: tableHistory,
			query: url.Values{
				"select":      {historyColumns},
				"user_id":     {inList(chunk)},
				"action_type": {eq(string(recommend.ActionViewed))},
				"order":       {orderNeighborStreams},
			},
		})
		if err != nil {
			return nil, err
		}
		events = append(events, rows...)
	}
	return events, nil
}

type userRow struct {
	UserID string `json:"user_id"`
}

func (c *Client) neighborIDs(ctx context.Context, bookIDs []string, excludeUserID string) ([]string, error) {
	seen := make(map[string]struct{})
	var ids []string

	for _, chunk := range chunks(bookIDs, maxFilterValues) {
		rows, err := getAll[userRow](ctx, c, requestConfig{
			op:   "view_history_for_books",
			path: tableHistory,
			query: url.Values{
				"select":      {"user_id"},
				"book_id":     {inList(chunk)},
				"user_id":     {"neq." + excludeUserID},
				"action_type": {eq(string(recommend.ActionViewed))},
				"order":       {orderNeighborIDs},
			},
		})
		if err != nil {
			return nil, err
		}
		for _, r := range rows {
			if _, ok := seen[r.UserID]; ok {
				continue
			}
			seen[r.UserID] = struct{}{}
			ids = append(ids, r.UserID)
		}
	}
	return ids, nil
}

// RecordInteraction upserts one reading history entry and refreshes its
// timestamp.
func (c *Client) RecordInteraction(ctx context.Context, in recommend.Interaction) error {
	if in.CreatedAt.IsZero() {
		in.CreatedAt = time.Now().UTC()
	}
	return c.do(ctx, requestConfig{
		op:     "record_interaction",
		method: http.MethodPost,
		path:   tableHistory,
		query:  url.Values{"on_conflict": {"user_id,book_id,action_type"}},
		body:   []recommend.Interaction{in},
		prefer: "resolution=merge-duplicates,return=minimal",
	}, nil)
}

// RemoveInteraction deletes one reading history entry.
func (c *Client) RemoveInteraction(ctx context.Context, userID, bookID string, action recommend.ActionType) error {
	return c.do(ctx, requestConfig{
		op:     "remove_interaction",
		method: http.MethodDelete,
		path:   tableHistory,
		query: url.Values{
			"user_id":     {eq(userID)},
			"book_id":     {eq(bookID)},
			"action_type": {eq(string(action))},
		},
		prefer: "return=minimal",
	}, nil)
}

// ReadingHistory returns userID's entries newest first.
func (c *Client) ReadingHistory(ctx context.Context, userID string, action recommend.ActionType, limit int) ([]recommend.Interaction, error) {
	if limit <= 0 {
		limit = defaultHistory
	}
	q := url.Values{
		"select":  {"user_id,book_id,book_title,book_author,book_cover_url,action_type,created_at"},
		"user_id": {eq(userID)},
		"order":   {orderReadingHistory},
		"limit":   {strconv.Itoa(limit)},
	}
	if action != "" {
		q.Set("action_type", eq(string(action)))
	}

	var rows []recommend.Interaction
	err := c.do(ctx, requestConfig{
		op:     "reading_history",
		method: http.MethodGet,
		path:   tableHistory,
		query:  q,
	}, &rows)
	if err != nil {
		return nil, err
	}
	return rows, nil
}
