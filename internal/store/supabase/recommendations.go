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

	"github.com/tomtom215/bookfinder/internal/recommend"
)

const (
	tableRecommendations = "/recommendations"

	// rpcReplace deletes and inserts a user's recommendations in one
	// transaction. See supabase/migrations in the repository root.
	rpcReplace = "/rpc/replace_recommendations"

	defaultRecommendations = 10
)

type replaceParams struct {
	UserID          string                     `json:"p_user_id"`
	Recommendations []recommend.Recommendation `json:"p_recommendations"`
}

// ReplaceRecommendations atomically swaps userID's stored set for recs.
func (c *Client) ReplaceRecommendations(ctx context.Context, userID string, recs []recommend.Recommendation) error {
	return c.do(ctx, requestConfig{
		op:     "replace_recommendations",
		method: http.MethodPost,
		path:   rpcReplace,
		body:   replaceParams{UserID: userID, Recommendations: recs},
	}, nil)
}

// ClearRecommendations deletes userID's stored set.
func (c *Client) ClearRecommendations(ctx context.Context, userID string) error {
	return c.do(ctx, requestConfig{
		op:     "clear_recommendations",
		method: http.MethodDelete,
		path:   tableRecommendations,
		query:  url.Values{"user_id": {eq(userID)}},
		prefer: "return=minimal",
	}, nil)
}

// Recommendations returns userID's stored set, highest score first.
func (c *Client) Recommendations(ctx context.Context, userID string, limit int) ([]recommend.Recommendation, error) {
	if limit <= 0 {
		limit = defaultRecommendations
	}

	var recs []recommend.Recommendation
	err := c.do(ctx, requestConfig{
		op:     "recommendations",
		method: http.MethodGet,
		path:   tableRecommendations,
		query: url.Values{
			"select":  {"user_id,recommended_book_id,recommended_book_title,recommended_book_author,recommended_book_cover_url,score,reason"},
			"user_id": {eq(userID)},
			"order":   {"score.desc,recommended_book_id.asc"},
			"limit":   {strconv.Itoa(limit)},
		},
	}, &recs)
	if err != nil {
		return nil, err
	}
	return recs, nil
}
