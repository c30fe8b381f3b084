// Bookfinder - Reading-Pattern Book Recommendations
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/bookfinder

package recommend

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"
)

var errStoreDown = errors.New("store unavailable")

// fakeStore is an in-memory HistoryStore and RecommendationWriter.
type fakeStore struct {
	mu sync.Mutex

	users  []string
	events []ViewEvent

	listErr     error
	historyErrs map[string]error
	replaceErrs map[string]error

	stored        map[string][]Recommendation
	replaceCalls  map[string]int
	clearCalls    map[string]int
	neighborCalls map[string]int
}

func newFakeStore(users ...string) *fakeStore {
	return &fakeStore{
		users:         users,
		historyErrs:   map[string]error{},
		replaceErrs:   map[string]error{},
		stored:        map[string][]Recommendation{},
		replaceCalls:  map[string]int{},
		clearCalls:    map[string]int{},
		neighborCalls: map[string]int{},
	}
}

var baseTime = time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

// view appends viewed events for userID at increasing timestamps.
func (s *fakeStore) view(userID string, books ...string) *fakeStore {
	for _, b := range books {
		s.events = append(s.events, ViewEvent{
			UserID:     userID,
			BookID:     b,
			BookTitle:  "Title " + b,
			BookAuthor: "Author " + b,
			CreatedAt:  baseTime.Add(time.Duration(len(s.events)) * time.Minute),
		})
	}
	return s
}

func (s *fakeStore) sorted() []ViewEvent {
	out := append([]ViewEvent(nil), s.events...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

func (s *fakeStore) ListUserIDs(_ context.Context) ([]string, error) {
	if s.listErr != nil {
		return nil, s.listErr
	}
	return append([]string(nil), s.users...), nil
}

func (s *fakeStore) ViewHistory(_ context.Context, userID string) ([]ViewEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.historyErrs[userID]; err != nil {
		return nil, err
	}
	var out []ViewEvent
	for _, e := range s.sorted() {
		if e.UserID == userID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (s *fakeStore) ViewHistoryForBooks(_ context.Context, bookIDs []string, excludeUserID string) ([]ViewEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.neighborCalls[excludeUserID]++
	want := map[string]bool{}
	for _, id := range bookIDs {
		want[id] = true
	}
	neighbors := map[string]bool{}
	for _, e := range s.events {
		if e.UserID != excludeUserID && want[e.BookID] {
			neighbors[e.UserID] = true
		}
	}
	var out []ViewEvent
	for _, e := range s.sorted() {
		if neighbors[e.UserID] {
			out = append(out, e)
		}
	}
	return out, nil
}

func (s *fakeStore) ReplaceRecommendations(_ context.Context, userID string, recs []Recommendation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.replaceCalls[userID]++
	if err := s.replaceErrs[userID]; err != nil {
		return err
	}
	s.stored[userID] = append([]Recommendation(nil), recs...)
	return nil
}

func (s *fakeStore) ClearRecommendations(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clearCalls[userID]++
	delete(s.stored, userID)
	return nil
}

// recordingNotifier captures notifications.
type recordingNotifier struct {
	mu     sync.Mutex
	counts map[string]int
	err    error
}

func (n *recordingNotifier) RecommendationsUpdated(_ context.Context, userID string, count int, _ string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.counts == nil {
		n.counts = map[string]int{}
	}
	n.counts[userID] = count
	return n.err
}
