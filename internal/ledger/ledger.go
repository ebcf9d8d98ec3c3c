// Package ledger records every booking attempt and outcome as an
// append-only log.  The log is the durable source of truth: live seat
// state can always be rebuilt from it after a restart, and it backs the
// customer-facing booking history with its four sort orders.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/cinebook/seat-reservation/internal/model"
)

// Entry is one appended ledger record.  A reservation produces one entry
// per state change; entries are never mutated or deleted.
//
// Fields:
//  Seq           - store-assigned, strictly increasing sequence number.
//  ReservationID - reservation (and hold token) this entry belongs to.
//  ShowtimeID    - showtime being booked.
//  CustomerID    - customer making the booking.
//  SeatIDs       - seats covered by the reservation.
//  Status        - reservation status recorded by this entry.
//  TotalCents    - total price in cents.
//  ExpiresAt     - hold expiry; only meaningful for PENDING entries.
//  RecordedAt    - when the entry was appended.
type Entry struct {
	Seq           uint64
	ReservationID string
	ShowtimeID    uint64
	CustomerID    uint64
	SeatIDs       []uint64
	Status        string
	TotalCents    uint32
	ExpiresAt     time.Time
	RecordedAt    time.Time
}

// Store persists ledger entries.  Append assigns Seq and RecordedAt when
// they are zero.  Query results come back in ascending Seq order.
type Store interface {
	Append(ctx context.Context, e *Entry) error
	ByCustomer(ctx context.Context, customerID uint64) ([]Entry, error)
	ByShowtime(ctx context.Context, showtimeID uint64) ([]Entry, error)
}

// SortKey selects the ordering of a booking history query.
type SortKey string

const (
	SortNewest    SortKey = "newest"     // booking date, most recent first
	SortOldest    SortKey = "oldest"     // booking date, oldest first
	SortPriceDesc SortKey = "price_desc" // total price, highest first
	SortPriceAsc  SortKey = "price_asc"  // total price, lowest first
)

// ParseSortKey validates a client-supplied sort parameter.  An empty
// string defaults to newest-first.
func ParseSortKey(s string) (SortKey, error) {
	switch SortKey(s) {
	case "":
		return SortNewest, nil
	case SortNewest, SortOldest, SortPriceDesc, SortPriceAsc:
		return SortKey(s), nil
	}
	return "", fmt.Errorf("unknown sort key %q", s)
}

// Ledger wraps a Store with reduction, sorting and replay logic.
type Ledger struct {
	store Store
}

// New returns a Ledger over the given store.
func New(store Store) *Ledger {
	if store == nil {
		panic("nil store passed to ledger.New")
	}
	return &Ledger{store: store}
}

// Append records one state change.
func (l *Ledger) Append(ctx context.Context, e *Entry) error {
	if e.ReservationID == "" {
		return errors.New("entry missing reservation id")
	}
	return l.store.Append(ctx, e)
}

// reduce folds raw entries into one ReservationRecord per reservation.
// The entry with the highest Seq wins the status; the first entry fixes
// the booking date.  Terminal statuses never regress: a stray late entry
// for an already terminal reservation is ignored.
func reduce(entries []Entry) []model.ReservationRecord {
	byID := make(map[string]*model.ReservationRecord)
	order := make([]string, 0)
	for _, e := range entries {
		rec, ok := byID[e.ReservationID]
		if !ok {
			rec = &model.ReservationRecord{
				ID:         e.ReservationID,
				ShowtimeID: e.ShowtimeID,
				CustomerID: e.CustomerID,
				SeatIDs:    append([]uint64(nil), e.SeatIDs...),
				CreatedAt:  e.RecordedAt,
			}
			byID[e.ReservationID] = rec
			order = append(order, e.ReservationID)
		}
		if terminal(rec.Status) {
			continue
		}
		rec.Status = e.Status
		rec.TotalCents = e.TotalCents
		rec.UpdatedAt = e.RecordedAt
		if e.Status == model.ReservationPending {
			rec.ExpiresAt = e.ExpiresAt
		} else {
			rec.ExpiresAt = time.Time{}
		}
	}
	out := make([]model.ReservationRecord, 0, len(order))
	for _, id := range order {
		out = append(out, *byID[id])
	}
	return out
}

func terminal(status string) bool {
	switch status {
	case model.ReservationConfirmed, model.ReservationExpired,
		model.ReservationCancelled, model.ReservationRejected:
		return true
	}
	return false
}

// History returns one record per reservation made by the customer, sorted
// by the requested key.  The sort is stable and ties are broken by
// reservation ID, so a fixed data set always comes back in the same
// order and newest/oldest are exact reverses of each other.
func (l *Ledger) History(ctx context.Context, customerID uint64, key SortKey) ([]model.ReservationRecord, error) {
	entries, err := l.store.ByCustomer(ctx, customerID)
	if err != nil {
		return nil, err
	}
	records := reduce(entries)
	sortRecords(records, key)
	return records, nil
}

// ByShowtime returns one record per reservation made for a showtime, in
// booking order.  Used by the admin surface and by Replay.
func (l *Ledger) ByShowtime(ctx context.Context, showtimeID uint64) ([]model.ReservationRecord, error) {
	entries, err := l.store.ByShowtime(ctx, showtimeID)
	if err != nil {
		return nil, err
	}
	return reduce(entries), nil
}

func sortRecords(records []model.ReservationRecord, key SortKey) {
	less := func(a, b *model.ReservationRecord) bool {
		switch key {
		case SortOldest:
			if !a.CreatedAt.Equal(b.CreatedAt) {
				return a.CreatedAt.Before(b.CreatedAt)
			}
		case SortPriceDesc:
			if a.TotalCents != b.TotalCents {
				return a.TotalCents > b.TotalCents
			}
		case SortPriceAsc:
			if a.TotalCents != b.TotalCents {
				return a.TotalCents < b.TotalCents
			}
		default: // SortNewest
			if !a.CreatedAt.Equal(b.CreatedAt) {
				return a.CreatedAt.After(b.CreatedAt)
			}
			// Descending ID on ties keeps newest the exact reverse of
			// oldest.
			return a.ID > b.ID
		}
		return a.ID < b.ID
	}
	sort.SliceStable(records, func(i, j int) bool {
		return less(&records[i], &records[j])
	})
}

// ReplayState is the live seat state derived from the ledger for one
// showtime: unexpired pending holds and confirmed (sold) reservations.
type ReplayState struct {
	Holds []model.ReservationRecord
	Sold  []model.ReservationRecord
}

// Replay folds the showtime's log into its live state as of now.  Pending
// records whose expiry has passed count as free even if no EXPIRED entry
// was ever written (the process may have died before the timer fired);
// the uniqueness invariant therefore holds across restarts.
func (l *Ledger) Replay(ctx context.Context, showtimeID uint64, now time.Time) (*ReplayState, error) {
	records, err := l.ByShowtime(ctx, showtimeID)
	if err != nil {
		return nil, err
	}
	state := &ReplayState{}
	for _, rec := range records {
		switch rec.Status {
		case model.ReservationConfirmed:
			state.Sold = append(state.Sold, rec)
		case model.ReservationPending:
			if rec.ExpiresAt.After(now) {
				state.Holds = append(state.Holds, rec)
			}
		}
	}
	return state, nil
}
