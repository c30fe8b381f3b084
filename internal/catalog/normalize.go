// Bookfinder - Reading-Pattern Book Recommendations
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/bookfinder

package catalog

import (
	"github.com/goccy/go-json"
)

const (
	notAvailable    = "N/A"
	unknownTitle    = "Unknown Title"
	unknownAuthor   = "Unknown Author"
	noDescription   = "No description available"
	defaultLanguage = "en"
)

// searchResponse is the subset of /search.json the client reads.
type searchResponse struct {
	Docs     []rawDoc `json:"docs"`
	NumFound *int     `json:"numFound"`
}

type rawDoc struct {
	Key                 string          `json:"key"`
	Title               *string         `json:"title"`
	AuthorName          []string        `json:"author_name"`
	FirstPublishYear    *int            `json:"first_publish_year"`
	ISBN                []string        `json:"isbn"`
	CoverI              *int            `json:"cover_i"`
	Description         json.RawMessage `json:"description"`
	NumberOfPagesMedian *int            `json:"number_of_pages_median"`
	Language            []string        `json:"language"`
}

// normalize converts a provider response into a Success.
func normalize(resp *searchResponse) *Success {
	if len(resp.Docs) == 0 {
		return &Success{Docs: []Book{}, NumFound: 0}
	}

	docs := make([]Book, 0, len(resp.Docs))
	for i := range resp.Docs {
		docs = append(docs, normalizeDoc(&resp.Docs[i]))
	}

	numFound := len(docs)
	if resp.NumFound != nil {
		numFound = *resp.NumFound
	}
	return &Success{Docs: docs, NumFound: numFound}
}

func normalizeDoc(d *rawDoc) Book {
	b := Book{
		Key:         d.Key,
		Title:       unknownTitle,
		Author:      unknownAuthor,
		Authors:     []string{},
		ISBN:        notAvailable,
		CoverID:     d.CoverI,
		Description: noDescription,
		Language:    defaultLanguage,
	}

	if d.Title != nil {
		b.Title = *d.Title
	}
	if len(d.AuthorName) > 0 {
		b.Author = d.AuthorName[0]
		b.Authors = d.AuthorName
	}
	if d.FirstPublishYear != nil {
		b.Year = Number(*d.FirstPublishYear)
	}
	if len(d.ISBN) > 0 {
		b.ISBN = d.ISBN[0]
	}
	if desc, ok := description(d.Description); ok {
		b.Description = desc
	}
	if d.NumberOfPagesMedian != nil {
		b.Pages = Number(*d.NumberOfPagesMedian)
	}
	if len(d.Language) > 0 {
		b.Language = d.Language[0]
	}
	return b
}

// description accepts both the plain string form and the
// {"type": "/type/text", "value": "..."} form Open Library uses for text.
func description(raw json.RawMessage) (string, bool) {
	if len(raw) == 0 || string(raw) == "null" {
		return "", false
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s, true
	}

	var text struct {
		Value string `json:"value"`
	}
	if err := json.Unmarshal(raw, &text); err == nil && text.Value != "" {
		return text.Value, true
	}
	return "", false
}
