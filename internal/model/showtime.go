package model

import "time"

// Showtime lifecycle statuses.  A showtime starts out SCHEDULED, is opened
// for booking as ACTIVE, and ends up CLOSED or CANCELLED.  Once a showtime
// leaves the ACTIVE state no new holds are accepted on it.
const (
	ShowtimeScheduled = "SCHEDULED"
	ShowtimeActive    = "ACTIVE"
	ShowtimeClosed    = "CLOSED"
	ShowtimeCancelled = "CANCELLED"
)

// Showtime represents a scheduled screening of a movie in a particular
// room.  Everything except the status is immutable once the showtime has
// been opened for booking.
//
// Fields:
//  ID             - primary key identifier.
//  MovieID        - movie being screened.
//  MovieTitle     - denormalized movie title for display.
//  RoomID         - room where the screening takes place.
//  StartsAt       - when the screening begins.
//  BasePriceCents - default price in cents for seats without an override.
//  Status         - lifecycle state (SCHEDULED, ACTIVE, CLOSED, CANCELLED).
//  CreatedAt      - creation timestamp.
//  UpdatedAt      - last update timestamp.
type Showtime struct {
	ID             uint64    // showtimes.id
	MovieID        uint64    // showtimes.movie_id
	MovieTitle     string    // showtimes.movie_title
	RoomID         uint64    // showtimes.room_id
	StartsAt       time.Time // showtimes.starts_at
	BasePriceCents uint32    // showtimes.base_price_cents
	Status         string    // showtimes.status
	CreatedAt      time.Time // showtimes.created_at
	UpdatedAt      time.Time // showtimes.updated_at
}

// Room describes a screening room and its seating grid.  The grid is the
// source from which per-showtime seat inventory is generated: SeatRows x
// SeatCols seats, rows labelled A, B, C and so on.
//
// Fields:
//  ID        - primary key identifier.
//  Name      - unique room name.
//  SeatRows  - number of seating rows.
//  SeatCols  - number of seats per row.
//  IsActive  - whether the room can host new showtimes.
//  CreatedAt - creation timestamp.
//  UpdatedAt - last update timestamp.
type Room struct {
	ID        uint64    // rooms.id
	Name      string    // rooms.name
	SeatRows  uint32    // rooms.seat_rows
	SeatCols  uint32    // rooms.seat_cols
	IsActive  bool      // rooms.is_active
	CreatedAt time.Time // rooms.created_at
	UpdatedAt time.Time // rooms.updated_at
}
