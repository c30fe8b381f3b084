// Bookfinder - Reading-Pattern Book Recommendations
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/bookfinder

// Package catalog searches the Open Library catalog and normalizes its
// documents into Book records.
//
// Search never returns a Go error. Every outcome, including provider
// failures, is a Result: either a Success or a Failure.
package catalog

import (
	"strconv"
)

// Mode selects the catalog field a search matches.
type Mode string

const (
	ModeTitle  Mode = "title"
	ModeAuthor Mode = "author"
	ModeISBN   Mode = "isbn"
)

// label is the mode as it appears in provider error messages.
func (m Mode) label() string {
	if m == ModeISBN {
		return "ISBN"
	}
	return string(m)
}

// Valid reports whether m is a known mode.
func (m Mode) Valid() bool {
	switch m {
	case ModeTitle, ModeAuthor, ModeISBN:
		return true
	default:
		return false
	}
}

// Book is a normalized catalog document.
type Book struct {
	Key         string     `json:"key"`
	Title       string     `json:"title"`
	Author      string     `json:"author"`
	Authors     []string   `json:"authors"`
	Year        NumberOrNA `json:"year" swaggertype:"string" example:"1965"`
	ISBN        string     `json:"isbn"`
	CoverID     *int       `json:"coverId"`
	Description string     `json:"description"`
	Pages       NumberOrNA `json:"pages" swaggertype:"string" example:"N/A"`
	Language    string     `json:"language"`
}

// NumberOrNA is an integer that renders as "N/A" when unknown.
type NumberOrNA struct {
	Value int
	Valid bool
}

// Number returns a known value.
func Number(v int) NumberOrNA {
	return NumberOrNA{Value: v, Valid: true}
}

// String returns the decimal value or "N/A".
func (n NumberOrNA) String() string {
	if !n.Valid {
		return notAvailable
	}
	return strconv.Itoa(n.Value)
}

// MarshalJSON renders a JSON number or the string "N/A".
func (n NumberOrNA) MarshalJSON() ([]byte, error) {
	if !n.Valid {
		return []byte(`"` + notAvailable + `"`), nil
	}
	return []byte(strconv.Itoa(n.Value)), nil
}

// Result is the outcome of a search: *Success or *Failure.
type Result interface {
	isResult()
}

// Success carries the matched documents.
type Success struct {
	Docs     []Book `json:"docs"`
	NumFound int    `json:"numFound"`
}

func (*Success) isResult() {}

// FailureKind classifies a Failure.
type FailureKind string

const (
	// KindInvalidQuery is an empty or whitespace-only query.
	KindInvalidQuery FailureKind = "invalid_query"
	// KindInvalidMode is an unknown search mode.
	KindInvalidMode FailureKind = "invalid_mode"
	// KindProvider is any error talking to the catalog provider.
	KindProvider FailureKind = "provider"
)

// Failure is a search that could not be answered.
type Failure struct {
	Kind    FailureKind `json:"-"`
	Message string      `json:"error"`
}

func (*Failure) isResult() {}

func (f *Failure) Error() string {
	return f.Message
}
