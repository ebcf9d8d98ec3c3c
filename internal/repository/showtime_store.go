package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/cinebook/seat-reservation/internal/model"
)

// ShowtimeStore persists showtimes and rooms.  Timestamps are stored in
// UTC; the driver is configured with loc=UTC so DATETIME columns scan
// straight into time.Time.
type ShowtimeStore struct {
	db *sql.DB
}

// NewShowtimeStore returns a store bound to the given database.
func NewShowtimeStore(db *sql.DB) *ShowtimeStore { return &ShowtimeStore{db: db} }

// DB exposes the underlying handle so callers can open transactions
// spanning this store and the seat inventory.
func (s *ShowtimeStore) DB() *sql.DB { return s.db }

// CreateRoom inserts a room and populates its generated fields.
func (s *ShowtimeStore) CreateRoom(ctx context.Context, r *model.Room) error {
	const q = `INSERT INTO rooms (name, seat_rows, seat_cols, is_active) VALUES (?, ?, ?, ?)`
	res, err := s.db.ExecContext(ctx, q, r.Name, r.SeatRows, r.SeatCols, r.IsActive)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	r.ID = uint64(id)
	return nil
}

// GetRoom fetches a room by id.
func (s *ShowtimeStore) GetRoom(ctx context.Context, id uint64) (*model.Room, error) {
	const q = `SELECT id, name, seat_rows, seat_cols, is_active, created_at, updated_at FROM rooms WHERE id = ?`
	var r model.Room
	err := s.db.QueryRowContext(ctx, q, id).Scan(
		&r.ID, &r.Name, &r.SeatRows, &r.SeatCols, &r.IsActive, &r.CreatedAt, &r.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrRoomNotFound
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// CreateShowtimeTx inserts a showtime within an existing transaction and
// populates its ID and timestamps.  Callers pair this with the seat
// inventory bulk insert so a showtime never exists without its seats.
func (s *ShowtimeStore) CreateShowtimeTx(ctx context.Context, tx *sql.Tx, st *model.Showtime) error {
	const q = `INSERT INTO showtimes (movie_id, movie_title, room_id, starts_at, base_price_cents, status)
               VALUES (?, ?, ?, ?, ?, ?)`
	res, err := tx.ExecContext(ctx, q,
		st.MovieID, st.MovieTitle, st.RoomID,
		st.StartsAt.UTC().Format("2006-01-02 15:04:05"),
		st.BasePriceCents, st.Status)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	st.ID = uint64(id)
	const sel = `SELECT created_at, updated_at FROM showtimes WHERE id = ?`
	return tx.QueryRowContext(ctx, sel, st.ID).Scan(&st.CreatedAt, &st.UpdatedAt)
}

// GetShowtime fetches a showtime by id.
func (s *ShowtimeStore) GetShowtime(ctx context.Context, id uint64) (*model.Showtime, error) {
	const q = `SELECT id, movie_id, movie_title, room_id, starts_at, base_price_cents, status, created_at, updated_at
               FROM showtimes WHERE id = ?`
	var st model.Showtime
	err := s.db.QueryRowContext(ctx, q, id).Scan(
		&st.ID, &st.MovieID, &st.MovieTitle, &st.RoomID, &st.StartsAt,
		&st.BasePriceCents, &st.Status, &st.CreatedAt, &st.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrShowtimeNotFound
	}
	if err != nil {
		return nil, err
	}
	return &st, nil
}

// ListByMovie returns showtimes for a movie ordered by start time.
func (s *ShowtimeStore) ListByMovie(ctx context.Context, movieID uint64) ([]model.Showtime, error) {
	const q = `SELECT id, movie_id, movie_title, room_id, starts_at, base_price_cents, status, created_at, updated_at
               FROM showtimes WHERE movie_id = ? ORDER BY starts_at`
	return s.list(ctx, q, movieID)
}

// ListByRoom returns showtimes hosted in a room ordered by start time.
func (s *ShowtimeStore) ListByRoom(ctx context.Context, roomID uint64) ([]model.Showtime, error) {
	const q = `SELECT id, movie_id, movie_title, room_id, starts_at, base_price_cents, status, created_at, updated_at
               FROM showtimes WHERE room_id = ? ORDER BY starts_at`
	return s.list(ctx, q, roomID)
}

// ListByStatus returns showtimes in the given lifecycle state.  Used at
// startup to decide which showtimes need their seat state restored.
func (s *ShowtimeStore) ListByStatus(ctx context.Context, status string) ([]model.Showtime, error) {
	const q = `SELECT id, movie_id, movie_title, room_id, starts_at, base_price_cents, status, created_at, updated_at
               FROM showtimes WHERE status = ? ORDER BY starts_at`
	return s.list(ctx, q, status)
}

func (s *ShowtimeStore) list(ctx context.Context, q string, arg interface{}) ([]model.Showtime, error) {
	rows, err := s.db.QueryContext(ctx, q, arg)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Showtime
	for rows.Next() {
		var st model.Showtime
		if err := rows.Scan(&st.ID, &st.MovieID, &st.MovieTitle, &st.RoomID, &st.StartsAt,
			&st.BasePriceCents, &st.Status, &st.CreatedAt, &st.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, st)
	}
	return out, rows.Err()
}

// UpdateStatus transitions a showtime from one status to another.  The
// WHERE clause enforces the expected current status so a concurrent
// transition loses cleanly with ErrConflict instead of clobbering.
func (s *ShowtimeStore) UpdateStatus(ctx context.Context, id uint64, from, to string) error {
	const q = `UPDATE showtimes SET status = ?, updated_at = ? WHERE id = ? AND status = ?`
	res, err := s.db.ExecContext(ctx, q, to, time.Now().UTC().Format("2006-01-02 15:04:05"), id, from)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		// Either the showtime does not exist or its status moved on.
		if _, err := s.GetShowtime(ctx, id); err != nil {
			return err
		}
		return ErrConflict
	}
	return nil
}
