package ledger

import (
	"context"
	"database/sql"
	"time"
)

// MySQLStore persists ledger entries in two tables: ledger_entries holds
// one row per state change and ledger_entry_seats the seat set of each
// entry.  The AUTO_INCREMENT primary key of ledger_entries provides the
// sequence numbers.  Rows are only ever inserted.
type MySQLStore struct {
	db *sql.DB
}

// NewMySQLStore returns a store bound to the given database.
func NewMySQLStore(db *sql.DB) *MySQLStore { return &MySQLStore{db: db} }

// Append inserts the entry and its seat rows in one transaction so a
// partially written entry can never be observed.
func (s *MySQLStore) Append(ctx context.Context, e *Entry) error {
	if e.RecordedAt.IsZero() {
		e.RecordedAt = time.Now().UTC()
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	var expires interface{}
	if !e.ExpiresAt.IsZero() {
		expires = e.ExpiresAt.UTC().Format("2006-01-02 15:04:05")
	}
	const ins = `INSERT INTO ledger_entries
        (reservation_id, showtime_id, customer_id, status, total_cents, expires_at, recorded_at)
        VALUES (?, ?, ?, ?, ?, ?, ?)`
	res, err := tx.ExecContext(ctx, ins,
		e.ReservationID, e.ShowtimeID, e.CustomerID, e.Status, e.TotalCents,
		expires, e.RecordedAt.UTC().Format("2006-01-02 15:04:05"),
	)
	if err != nil {
		return err
	}
	seq, err := res.LastInsertId()
	if err != nil {
		return err
	}
	e.Seq = uint64(seq)

	if len(e.SeatIDs) > 0 {
		query := `INSERT INTO ledger_entry_seats (entry_seq, seat_id) VALUES `
		args := make([]interface{}, 0, len(e.SeatIDs)*2)
		for i, sid := range e.SeatIDs {
			if i > 0 {
				query += ","
			}
			query += "(?, ?)"
			args = append(args, e.Seq, sid)
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}

// ByCustomer loads all entries for a customer in sequence order.
func (s *MySQLStore) ByCustomer(ctx context.Context, customerID uint64) ([]Entry, error) {
	const q = `SELECT seq, reservation_id, showtime_id, customer_id, status, total_cents, expires_at, recorded_at
               FROM ledger_entries WHERE customer_id = ? ORDER BY seq`
	return s.query(ctx, q, customerID)
}

// ByShowtime loads all entries for a showtime in sequence order.
func (s *MySQLStore) ByShowtime(ctx context.Context, showtimeID uint64) ([]Entry, error) {
	const q = `SELECT seq, reservation_id, showtime_id, customer_id, status, total_cents, expires_at, recorded_at
               FROM ledger_entries WHERE showtime_id = ? ORDER BY seq`
	return s.query(ctx, q, showtimeID)
}

func (s *MySQLStore) query(ctx context.Context, q string, arg interface{}) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx, q, arg)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []Entry
	seqIndex := make(map[uint64]int)
	for rows.Next() {
		var e Entry
		var expires sql.NullTime
		if err := rows.Scan(&e.Seq, &e.ReservationID, &e.ShowtimeID, &e.CustomerID,
			&e.Status, &e.TotalCents, &expires, &e.RecordedAt); err != nil {
			return nil, err
		}
		if expires.Valid {
			e.ExpiresAt = expires.Time
		}
		seqIndex[e.Seq] = len(entries)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return entries, nil
	}

	// Attach the seat sets in one query rather than one per entry.
	query := `SELECT entry_seq, seat_id FROM ledger_entry_seats WHERE entry_seq IN (`
	args := make([]interface{}, 0, len(entries))
	for i, e := range entries {
		if i > 0 {
			query += ","
		}
		query += "?"
		args = append(args, e.Seq)
	}
	query += ") ORDER BY entry_seq, seat_id"
	seatRows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer seatRows.Close()
	for seatRows.Next() {
		var seq, seatID uint64
		if err := seatRows.Scan(&seq, &seatID); err != nil {
			return nil, err
		}
		if i, ok := seqIndex[seq]; ok {
			entries[i].SeatIDs = append(entries[i].SeatIDs, seatID)
		}
	}
	if err := seatRows.Err(); err != nil {
		return nil, err
	}
	return entries, nil
}
