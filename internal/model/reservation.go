package model

import "time"

// Reservation statuses.  PENDING covers the window between a successful
// hold and its confirmation.  CONFIRMED, EXPIRED, CANCELLED and REJECTED
// are terminal; a record never changes status again once it reaches one
// of them.
const (
	ReservationPending   = "PENDING"
	ReservationConfirmed = "CONFIRMED"
	ReservationExpired   = "EXPIRED"
	ReservationCancelled = "CANCELLED"
	ReservationRejected  = "REJECTED"
)

// ReservationRecord captures a customer's claim over a set of seats for
// one showtime.  The ID doubles as the hold token handed to the client:
// confirm and cancel requests reference it.  Records are append-mostly;
// corrections produce a new ledger entry rather than mutating history.
//
// Fields:
//  ID         - reservation identifier (UUID), also the hold token.
//  ShowtimeID - showtime being reserved.
//  CustomerID - customer who made the reservation.
//  SeatIDs    - seats covered by this reservation.
//  Status     - current state (see constants above).
//  TotalCents - total price in cents across all seats.
//  ExpiresAt  - when a pending hold lapses; zero once terminal.
//  CreatedAt  - when the hold was first requested.
//  UpdatedAt  - when the latest state change happened.
type ReservationRecord struct {
	ID         string    `json:"id"`
	ShowtimeID uint64    `json:"showtime_id"`
	CustomerID uint64    `json:"customer_id"`
	SeatIDs    []uint64  `json:"seat_ids"`
	Status     string    `json:"status"`
	TotalCents uint32    `json:"total_cents"`
	ExpiresAt  time.Time `json:"expires_at,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}
