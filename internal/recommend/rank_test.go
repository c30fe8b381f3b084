// Bookfinder - Reading-Pattern Book Recommendations
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/bookfinder

package recommend

import (
	"fmt"
	"testing"
)

func candidate(id string, score int) *Candidate {
	return &Candidate{
		BookID:  id,
		Score:   score,
		Details: &BookDetails{BookID: id, Title: "Title " + id, Author: "Author " + id},
	}
}

func TestRank_OrderAndTieBreak(t *testing.T) {
	t.Parallel()

	cands := []*Candidate{
		candidate("d", 1),
		candidate("b", 3),
		candidate("c", 3),
		candidate("a", 1),
		candidate("e", 5),
	}

	recs := Rank("u1", cands, 0)

	want := []string{"e", "b", "c", "a", "d"}
	if len(recs) != len(want) {
		t.Fatalf("len(Rank()) = %d, want %d", len(recs), len(want))
	}
	for i, id := range want {
		if recs[i].RecommendedBookID != id {
			t.Errorf("recs[%d] = %s, want %s", i, recs[i].RecommendedBookID, id)
		}
	}
}

func TestRank_TruncatesToLimit(t *testing.T) {
	t.Parallel()

	var cands []*Candidate
	for i := 0; i < 15; i++ {
		cands = append(cands, candidate(fmt.Sprintf("book-%02d", i), i%4+1))
	}

	recs := Rank("u1", cands, 0)
	if len(recs) != DefaultLimit {
		t.Fatalf("len(Rank()) = %d, want %d", len(recs), DefaultLimit)
	}
	for i := 1; i < len(recs); i++ {
		if recs[i].Score > recs[i-1].Score {
			t.Errorf("scores not non-increasing at %d: %v > %v", i, recs[i].Score, recs[i-1].Score)
		}
	}

	if got := Rank("u1", cands, 3); len(got) != 3 {
		t.Errorf("len(Rank(limit=3)) = %d, want 3", len(got))
	}
}

func TestRank_RendersRecommendation(t *testing.T) {
	t.Parallel()

	c := candidate("C", 2)
	c.Details.CoverURL = "https://covers.example/c.jpg"

	recs := Rank("target", []*Candidate{c}, 10)
	if len(recs) != 1 {
		t.Fatalf("expected 1 recommendation, got %d", len(recs))
	}

	r := recs[0]
	if r.UserID != "target" || r.RecommendedBookID != "C" {
		t.Errorf("ids = (%s,%s), want (target,C)", r.UserID, r.RecommendedBookID)
	}
	if r.Score != 2.0 {
		t.Errorf("Score = %v, want 2.0", r.Score)
	}
	if r.Reason != "2 users with similar reading patterns viewed this book" {
		t.Errorf("Reason = %q", r.Reason)
	}
	if r.RecommendedBookTitle != "Title C" || r.RecommendedBookAuthor != "Author C" {
		t.Errorf("details = %q/%q", r.RecommendedBookTitle, r.RecommendedBookAuthor)
	}
	if r.RecommendedBookCoverURL != "https://covers.example/c.jpg" {
		t.Errorf("cover = %q", r.RecommendedBookCoverURL)
	}
}

func TestRank_SkipsCandidatesWithoutDetails(t *testing.T) {
	t.Parallel()

	recs := Rank("u", []*Candidate{{BookID: "x", Score: 9}, candidate("y", 1)}, 10)
	if len(recs) != 1 || recs[0].RecommendedBookID != "y" {
		t.Errorf("Rank() = %+v, want only y", recs)
	}
}

func TestRank_Deterministic(t *testing.T) {
	t.Parallel()

	build := func(order []string) []*Candidate {
		var out []*Candidate
		for _, id := range order {
			out = append(out, candidate(id, 1))
		}
		return out
	}

	a := Rank("u", build([]string{"q", "m", "z", "a"}), 10)
	b := Rank("u", build([]string{"z", "a", "q", "m"}), 10)
	for i := range a {
		if a[i] != b[i] {
			t.Errorf("position %d differs: %+v vs %+v", i, a[i], b[i])
		}
	}
}
