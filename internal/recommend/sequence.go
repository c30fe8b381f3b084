// Bookfinder - Reading-Pattern Book Recommendations
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/bookfinder

package recommend

// ExtractSequences pairs each event with its immediate successor.
// events must belong to one user and be in chronological order.
// Returns exactly max(len(events)-1, 0) sequences in input order.
func ExtractSequences(events []ViewEvent) []Sequence {
	if len(events) < 2 {
		return nil
	}

	sequences := make([]Sequence, 0, len(events)-1)
	for i := 0; i < len(events)-1; i++ {
		sequences = append(sequences, Sequence{
			Current: events[i].BookID,
			Next:    events[i+1].BookID,
		})
	}
	return sequences
}

// groupByUser splits a chronologically ordered event list into per-user
// streams. Streams keep their chronological order; users are returned in
// order of first appearance.
func groupByUser(events []ViewEvent) (order []string, streams map[string][]ViewEvent) {
	streams = make(map[string][]ViewEvent)
	for _, e := range events {
		if _, seen := streams[e.UserID]; !seen {
			order = append(order, e.UserID)
		}
		streams[e.UserID] = append(streams[e.UserID], e)
	}
	return order, streams
}
