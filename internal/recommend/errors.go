// Bookfinder - Reading-Pattern Book Recommendations
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/bookfinder

package recommend

import (
	"errors"
	"fmt"
)

// ErrNilStore is returned when a batch or generator is built without a store.
var ErrNilStore = errors.New("recommend: store cannot be nil")

// DataAccessError reports a failed read or write against the data store.
// Outside the per-user loop it is fatal to the run; inside it is wrapped
// in a UserProcessingError.
type DataAccessError struct {
	// Op names the store operation, e.g. "view_history".
	Op  string
	Err error
}

func (e *DataAccessError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *DataAccessError) Unwrap() error {
	return e.Err
}

// UserProcessingError reports that one user's recommendations could not be
// generated or written. The batch records it and moves on.
type UserProcessingError struct {
	UserID string
	Err    error
}

func (e *UserProcessingError) Error() string {
	return fmt.Sprintf("user %s: %v", e.UserID, e.Err)
}

func (e *UserProcessingError) Unwrap() error {
	return e.Err
}

// IsDataAccess reports whether err is or wraps a DataAccessError.
func IsDataAccess(err error) bool {
	var dae *DataAccessError
	return errors.As(err, &dae)
}
