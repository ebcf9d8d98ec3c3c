// Package booking orchestrates the reservation lifecycle on top of the
// seat map and the ledger.  Error values here complete the taxonomy
// started in package seatmap: conflicts, expiry and unknown tokens come
// from the seat map, persistence failures and illegal transitions from
// the coordinator.
package booking

import (
	"errors"
	"fmt"
)

// ErrAlreadyFinal is returned when an operation targets a reservation
// that has reached a terminal state which the operation cannot apply to,
// such as cancelling a confirmed reservation.
var ErrAlreadyFinal = errors.New("reservation already finalized")

// ErrShowtimeClosed is returned when a hold is requested on a showtime
// that is not open for booking.
var ErrShowtimeClosed = errors.New("showtime not open for booking")

// StoreError wraps a persistence failure.  The operation that produced
// it left no partial state behind: the in-memory seat transition was
// rolled back before the error was returned.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("ledger %s failed: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }
