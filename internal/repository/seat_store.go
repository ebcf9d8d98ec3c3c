package repository

import (
	"context"
	"database/sql"

	"github.com/cinebook/seat-reservation/internal/model"
)

// SeatStore persists the static seat inventory of each showtime: which
// seats exist and what they cost.  Live availability is owned by the
// seat map; the UNIQUE(showtime_id, seat_id) key on the table backstops
// the one-row-per-seat invariant at the storage level.
type SeatStore struct {
	db *sql.DB
}

// NewSeatStore returns a store bound to the given database.
func NewSeatStore(db *sql.DB) *SeatStore { return &SeatStore{db: db} }

// CreateBulkTx inserts the full seat inventory of a showtime in one
// statement inside the caller's transaction.  Passing an empty slice is
// a no-op.
func (s *SeatStore) CreateBulkTx(ctx context.Context, tx *sql.Tx, seats []model.Seat) error {
	if len(seats) == 0 {
		return nil
	}
	query := `INSERT INTO showtime_seats (showtime_id, seat_id, row_label, seat_number, price_cents) VALUES `
	args := make([]interface{}, 0, len(seats)*5)
	for i, seat := range seats {
		if i > 0 {
			query += ","
		}
		query += "(?, ?, ?, ?, ?)"
		args = append(args, seat.ShowtimeID, seat.ID, seat.RowLabel, seat.SeatNumber, seat.PriceCents)
	}
	_, err := tx.ExecContext(ctx, query, args...)
	return err
}

// ByShowtime returns the seat inventory of a showtime ordered by row and
// number.
func (s *SeatStore) ByShowtime(ctx context.Context, showtimeID uint64) ([]model.Seat, error) {
	const q = `SELECT seat_id, showtime_id, row_label, seat_number, price_cents, created_at
               FROM showtime_seats WHERE showtime_id = ? ORDER BY row_label, seat_number`
	rows, err := s.db.QueryContext(ctx, q, showtimeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Seat
	for rows.Next() {
		var seat model.Seat
		if err := rows.Scan(&seat.ID, &seat.ShowtimeID, &seat.RowLabel, &seat.SeatNumber,
			&seat.PriceCents, &seat.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, seat)
	}
	return out, rows.Err()
}

// Prices returns the price of each requested seat.  Seats missing from
// the result simply do not exist for this showtime.
func (s *SeatStore) Prices(ctx context.Context, showtimeID uint64, seatIDs []uint64) (map[uint64]uint32, error) {
	prices := make(map[uint64]uint32, len(seatIDs))
	if len(seatIDs) == 0 {
		return prices, nil
	}
	query := `SELECT seat_id, price_cents FROM showtime_seats WHERE showtime_id = ? AND seat_id IN (`
	args := make([]interface{}, 0, len(seatIDs)+1)
	args = append(args, showtimeID)
	for i, sid := range seatIDs {
		if i > 0 {
			query += ","
		}
		query += "?"
		args = append(args, sid)
	}
	query += ")"
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var sid uint64
		var cents uint32
		if err := rows.Scan(&sid, &cents); err != nil {
			return nil, err
		}
		prices[sid] = cents
	}
	return prices, rows.Err()
}
