// Bookfinder - Reading-Pattern Book Recommendations
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/bookfinder

package recommend

import (
	"fmt"
	"io"
	"sync"
)

// Reporter writes operator-facing batch progress lines.
// It is safe for concurrent use; each line is written atomically.
type Reporter struct {
	mu sync.Mutex
	w  io.Writer
}

// NewReporter creates a reporter writing to w. A nil w discards output.
func NewReporter(w io.Writer) *Reporter {
	if w == nil {
		w = io.Discard
	}
	return &Reporter{w: w}
}

func (r *Reporter) printf(format string, args ...any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, _ = fmt.Fprintf(r.w, format, args...)
}

// Start announces a run over n users.
func (r *Reporter) Start(n int) {
	r.printf("Generating recommendations for %d users...\n", n)
}

// Outcome reports one user's result.
func (r *Reporter) Outcome(o UserOutcome) {
	switch o.Kind {
	case OutcomeGenerated:
		r.printf("✓ Generated %d recommendations for user %s\n", o.Count, o.UserID)
	case OutcomeEmpty:
		r.printf("○ No recommendations for user %s\n", o.UserID)
	case OutcomeFailed:
		var cause error
		if o.Err != nil {
			cause = o.Err.Err
		}
		r.printf("✗ Error generating recommendations for user %s: %v\n", o.UserID, cause)
	}
}

// Finish prints the final total.
func (r *Reporter) Finish(s *Summary) {
	if s.Interrupted {
		r.printf("\nInterrupted! Generated %d total recommendations (%d users not processed)\n", s.Total, s.Skipped)
		return
	}
	r.printf("\nCompleted! Generated %d total recommendations\n", s.Total)
}
