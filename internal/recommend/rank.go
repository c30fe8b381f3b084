// Bookfinder - Reading-Pattern Book Recommendations
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/bookfinder

package recommend

import (
	"fmt"
	"sort"
)

// DefaultLimit is the number of recommendations kept per user.
const DefaultLimit = 10

// Reason renders the human-readable explanation stored with a recommendation.
func Reason(score int) string {
	return fmt.Sprintf("%d users with similar reading patterns viewed this book", score)
}

// Rank orders candidates by score descending, breaking ties by book id
// ascending, and renders the first limit of them as recommendations for
// userID. Candidates without details are skipped. limit <= 0 uses
// DefaultLimit.
func Rank(userID string, candidates []*Candidate, limit int) []Recommendation {
	if limit <= 0 {
		limit = DefaultLimit
	}

	ranked := make([]*Candidate, 0, len(candidates))
	for _, c := range candidates {
		if c.Details != nil {
			ranked = append(ranked, c)
		}
	}

	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Score != ranked[j].Score {
			return ranked[i].Score > ranked[j].Score
		}
		return ranked[i].BookID < ranked[j].BookID
	})

	if len(ranked) > limit {
		ranked = ranked[:limit]
	}

	recs := make([]Recommendation, 0, len(ranked))
	for _, c := range ranked {
		recs = append(recs, Recommendation{
			UserID:                  userID,
			RecommendedBookID:       c.BookID,
			RecommendedBookTitle:    c.Details.Title,
			RecommendedBookAuthor:   c.Details.Author,
			RecommendedBookCoverURL: c.Details.CoverURL,
			Score:                   float64(c.Score),
			Reason:                  Reason(c.Score),
		})
	}
	return recs
}
