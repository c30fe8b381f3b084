// Bookfinder - Reading-Pattern Book Recommendations
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/bookfinder

package recommend

// bookSet is a set of book ids.
type bookSet map[string]struct{}

func newBookSet(events []ViewEvent) bookSet {
	set := make(bookSet, len(events))
	for _, e := range events {
		set[e.BookID] = struct{}{}
	}
	return set
}

func (s bookSet) contains(bookID string) bool {
	_, ok := s[bookID]
	return ok
}

// distinctBookIDs returns the book ids of events without duplicates,
// in first-seen order.
func distinctBookIDs(events []ViewEvent) []string {
	seen := make(bookSet, len(events))
	ids := make([]string, 0, len(events))
	for _, e := range events {
		if seen.contains(e.BookID) {
			continue
		}
		seen[e.BookID] = struct{}{}
		ids = append(ids, e.BookID)
	}
	return ids
}

// candidateSet accumulates candidates keyed by book id.
type candidateSet struct {
	byID map[string]*Candidate
}

func newCandidateSet() *candidateSet {
	return &candidateSet{byID: make(map[string]*Candidate)}
}

// upsert returns the candidate for bookID, inserting an empty one if absent.
func (s *candidateSet) upsert(bookID string) *Candidate {
	if c, ok := s.byID[bookID]; ok {
		return c
	}
	c := &Candidate{BookID: bookID}
	s.byID[bookID] = c
	return c
}

// Len returns the number of candidates.
func (s *candidateSet) Len() int {
	return len(s.byID)
}

// list returns the candidates in unspecified order.
func (s *candidateSet) list() []*Candidate {
	out := make([]*Candidate, 0, len(s.byID))
	for _, c := range s.byID {
		out = append(out, c)
	}
	return out
}

// Aggregate tallies neighbor transitions out of the target's viewed set.
//
// neighborEvents holds other users' viewed events in chronological order.
// For every neighbor sequence (cur, next) with cur in targetBooks and next
// not in targetBooks, the candidate for next gains one point. A book's
// details come from the first event in the neighbor's stream with that
// book id, taken the first time the candidate gains a point.
func Aggregate(targetBooks []string, neighborEvents []ViewEvent) []*Candidate {
	target := make(bookSet, len(targetBooks))
	for _, id := range targetBooks {
		target[id] = struct{}{}
	}
	return aggregate(target, neighborEvents).list()
}

func aggregate(target bookSet, neighborEvents []ViewEvent) *candidateSet {
	candidates := newCandidateSet()
	order, streams := groupByUser(neighborEvents)

	for _, neighborID := range order {
		stream := streams[neighborID]
		for _, seq := range ExtractSequences(stream) {
			if !target.contains(seq.Current) || target.contains(seq.Next) {
				continue
			}

			c := candidates.upsert(seq.Next)
			c.Score++
			if c.Details == nil {
				c.Details = firstDetails(stream, seq.Next)
			}
		}
	}

	return candidates
}

// firstDetails returns the metadata of the first event for bookID in stream.
func firstDetails(stream []ViewEvent, bookID string) *BookDetails {
	for _, e := range stream {
		if e.BookID == bookID {
			return &BookDetails{
				BookID:   e.BookID,
				Title:    e.BookTitle,
				Author:   e.BookAuthor,
				CoverURL: e.BookCoverURL,
			}
		}
	}
	return nil
}
