package model

import "time"

// Seat availability states.  The live state of a seat for a showtime is
// owned by the in-memory seat map; these constants are also used when
// deriving state from the reservation ledger after a restart.
const (
	SeatFree = "FREE"
	SeatHeld = "HELD"
	SeatSold = "SOLD"
)

// Seat describes one seat in the inventory of a showtime.  Rows are
// labelled alphabetically and seats are numbered within the row.  The
// price may differ per seat; it defaults to the showtime base price.
//
// Fields:
//  ID         - seat identifier, unique within the showtime.
//  ShowtimeID - showtime this inventory row belongs to.
//  RowLabel   - letter or string designating the row.
//  SeatNumber - number of the seat within the row.
//  PriceCents - price in cents for this seat.
//  CreatedAt  - creation timestamp.
type Seat struct {
	ID         uint64    // showtime_seats.seat_id
	ShowtimeID uint64    // showtime_seats.showtime_id
	RowLabel   string    // showtime_seats.row_label
	SeatNumber uint32    // showtime_seats.seat_number
	PriceCents uint32    // showtime_seats.price_cents
	CreatedAt  time.Time // showtime_seats.created_at
}

// SeatStatus pairs a seat with its current availability as reported by
// the seat map.  Returned by the public availability endpoint.
type SeatStatus struct {
	SeatID     uint64 `json:"seat_id"`
	RowLabel   string `json:"row_label"`
	SeatNumber uint32 `json:"seat_number"`
	PriceCents uint32 `json:"price_cents"`
	State      string `json:"state"` // FREE, HELD or SOLD
}
