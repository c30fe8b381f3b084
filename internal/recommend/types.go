// Bookfinder - Reading-Pattern Book Recommendations
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/bookfinder

package recommend

import (
	"context"
	"time"
)

// ActionType classifies a reading history entry.
type ActionType string

const (
	// ActionViewed is recorded when a user opens a book's details.
	// Only viewed events feed the recommendation algorithm.
	ActionViewed ActionType = "viewed"
	// ActionSaved is recorded when a user saves a book to their list.
	ActionSaved ActionType = "saved"
	// ActionRead is recorded when a user marks a book as read.
	ActionRead ActionType = "read"
)

// Valid reports whether t is one of the known action types.
func (t ActionType) Valid() bool {
	switch t {
	case ActionViewed, ActionSaved, ActionRead:
		return true
	default:
		return false
	}
}

// ViewEvent is one "viewed" row of the shared reading history.
type ViewEvent struct {
	// UserID is the viewer.
	UserID string `json:"user_id"`

	// BookID is the catalog key of the viewed book.
	BookID string `json:"book_id"`

	// BookTitle is the title snapshot taken when the event was recorded.
	BookTitle string `json:"book_title"`

	// BookAuthor is optional.
	BookAuthor string `json:"book_author,omitempty"`

	// BookCoverURL is optional.
	BookCoverURL string `json:"book_cover_url,omitempty"`

	// CreatedAt orders a user's events.
	CreatedAt time.Time `json:"created_at"`
}

// Sequence is a pair of books viewed consecutively by the same user.
type Sequence struct {
	Current string
	Next    string
}

// BookDetails is the metadata snapshot attached to a candidate.
type BookDetails struct {
	BookID   string
	Title    string
	Author   string
	CoverURL string
}

// Candidate is a book that neighbors moved to from a book the target viewed.
// Candidates live only for the duration of one user's generation.
type Candidate struct {
	// BookID is never in the target user's viewed set.
	BookID string

	// Score counts qualifying sequences across all neighbors,
	// not distinct neighbors.
	Score int

	// Details is captured from the first neighbor stream that produced
	// the candidate. Nil until captured.
	Details *BookDetails
}

// Recommendation is a persisted recommendation row.
type Recommendation struct {
	UserID                  string  `json:"user_id"`
	RecommendedBookID       string  `json:"recommended_book_id"`
	RecommendedBookTitle    string  `json:"recommended_book_title"`
	RecommendedBookAuthor   string  `json:"recommended_book_author,omitempty"`
	RecommendedBookCoverURL string  `json:"recommended_book_cover_url,omitempty"`
	Score                   float64 `json:"score"`
	Reason                  string  `json:"reason"`
}

// Interaction is a reading history entry recorded by the application.
type Interaction struct {
	UserID       string     `json:"user_id"`
	BookID       string     `json:"book_id" validate:"notblank,max=256"`
	BookTitle    string     `json:"book_title" validate:"notblank,max=1024"`
	BookAuthor   string     `json:"book_author,omitempty" validate:"max=1024"`
	BookCoverURL string     `json:"book_cover_url,omitempty" validate:"omitempty,url"`
	ActionType   ActionType `json:"action_type" validate:"required,oneof=viewed saved read"`
	CreatedAt    time.Time  `json:"created_at,omitempty"`
}

// HistoryStore reads the shared reading history.
type HistoryStore interface {
	// ListUserIDs returns every known user id.
	ListUserIDs(ctx context.Context) ([]string, error)

	// ViewHistory returns userID's viewed events, oldest first.
	ViewHistory(ctx context.Context, userID string) ([]ViewEvent, error)

	// ViewHistoryForBooks returns the viewed streams of every neighbor of
	// excludeUserID, oldest first. A neighbor is any other user who viewed
	// at least one of bookIDs; their whole viewed stream is returned so
	// that transitions out of bookIDs are visible.
	ViewHistoryForBooks(ctx context.Context, bookIDs []string, excludeUserID string) ([]ViewEvent, error)
}

// RecommendationWriter persists recommendation sets.
type RecommendationWriter interface {
	// ReplaceRecommendations atomically swaps userID's stored set for recs.
	// Callers never pass an empty slice.
	ReplaceRecommendations(ctx context.Context, userID string, recs []Recommendation) error

	// ClearRecommendations deletes userID's stored set.
	ClearRecommendations(ctx context.Context, userID string) error
}

// RecommendationReader serves stored recommendations to the API.
type RecommendationReader interface {
	// Recommendations returns userID's stored set, highest score first.
	Recommendations(ctx context.Context, userID string, limit int) ([]Recommendation, error)
}

// HistoryRecorder maintains reading history entries for the API.
type HistoryRecorder interface {
	// RecordInteraction upserts on (user_id, book_id, action_type).
	RecordInteraction(ctx context.Context, in Interaction) error

	// RemoveInteraction deletes one entry. Removing a missing entry is not an error.
	RemoveInteraction(ctx context.Context, userID, bookID string, action ActionType) error

	// ReadingHistory returns userID's entries newest first. An empty action
	// returns all action types.
	ReadingHistory(ctx context.Context, userID string, action ActionType, limit int) ([]Interaction, error)
}

// Store is the full data store contract implemented by every driver.
type Store interface {
	HistoryStore
	RecommendationWriter
	RecommendationReader
	HistoryRecorder
	Close() error
}

// Notifier is told about every stored recommendation change.
type Notifier interface {
	RecommendationsUpdated(ctx context.Context, userID string, count int, runID string) error
}
