// Package catalog owns showtime and room records and the showtime
// lifecycle.  Opening a showtime for booking registers its seat
// inventory with the seat map; closing or cancelling it drops the seat
// state so no further holds are possible.
package catalog

import (
	"context"
	"errors"
	"time"

	"github.com/cinebook/seat-reservation/internal/model"
	"github.com/cinebook/seat-reservation/internal/repository"
	"github.com/cinebook/seat-reservation/internal/seatmap"
)

// ErrBadTransition is returned when a requested status change is not in
// the lifecycle table.
var ErrBadTransition = errors.New("illegal showtime status transition")

// legal enumerates the allowed lifecycle moves.  Everything else is
// rejected before touching the store.
var legal = map[string][]string{
	model.ShowtimeScheduled: {model.ShowtimeActive, model.ShowtimeCancelled},
	model.ShowtimeActive:    {model.ShowtimeClosed, model.ShowtimeCancelled},
}

// Catalog provides reads over showtimes and rooms plus the status
// transitions of the showtime lifecycle.
type Catalog struct {
	showtimes *repository.ShowtimeStore
	inventory *repository.SeatStore
	seats     *seatmap.SeatMap
}

// New returns a Catalog.  All dependencies must be non-nil.
func New(showtimes *repository.ShowtimeStore, inventory *repository.SeatStore, seats *seatmap.SeatMap) *Catalog {
	if showtimes == nil || inventory == nil || seats == nil {
		panic("nil dependency passed to catalog.New")
	}
	return &Catalog{showtimes: showtimes, inventory: inventory, seats: seats}
}

// CreateShowtime inserts a SCHEDULED showtime together with its full
// seat inventory derived from the room's grid, in one transaction.  Seat
// IDs are sequential within the showtime; rows are labelled A, B, C and
// so on.
func (c *Catalog) CreateShowtime(ctx context.Context, movieID uint64, movieTitle string, roomID uint64, startsAt time.Time, basePriceCents uint32) (*model.Showtime, error) {
	room, err := c.showtimes.GetRoom(ctx, roomID)
	if err != nil {
		return nil, err
	}
	if !room.IsActive {
		return nil, repository.ErrConflict
	}

	st := &model.Showtime{
		MovieID:        movieID,
		MovieTitle:     movieTitle,
		RoomID:         roomID,
		StartsAt:       startsAt.UTC(),
		BasePriceCents: basePriceCents,
		Status:         model.ShowtimeScheduled,
	}
	tx, err := c.showtimes.DB().BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	if err := c.showtimes.CreateShowtimeTx(ctx, tx, st); err != nil {
		return nil, err
	}
	if err := c.inventory.CreateBulkTx(ctx, tx, buildSeats(st.ID, room, basePriceCents)); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	committed = true
	return st, nil
}

// buildSeats expands a room grid into per-showtime seat inventory rows.
func buildSeats(showtimeID uint64, room *model.Room, priceCents uint32) []model.Seat {
	seats := make([]model.Seat, 0, room.SeatRows*room.SeatCols)
	id := uint64(0)
	for row := uint32(0); row < room.SeatRows; row++ {
		for num := uint32(1); num <= room.SeatCols; num++ {
			id++
			seats = append(seats, model.Seat{
				ID:         id,
				ShowtimeID: showtimeID,
				RowLabel:   rowLabel(int(row)),
				SeatNumber: num,
				PriceCents: priceCents,
			})
		}
	}
	return seats
}

// rowLabel converts a zero-based row index to A, B, ... Z, AA, AB, ...
func rowLabel(i int) string {
	if i < 0 {
		return ""
	}
	var runes []rune
	for {
		runes = append(runes, rune('A'+i%26))
		i = i/26 - 1
		if i < 0 {
			break
		}
	}
	for j, k := 0, len(runes)-1; j < k; j, k = j+1, k-1 {
		runes[j], runes[k] = runes[k], runes[j]
	}
	return string(runes)
}

// Transition moves a showtime to a new lifecycle state.  Activating
// registers the seat inventory with the seat map; closing or cancelling
// drops it, which forbids any further holds on the showtime.
func (c *Catalog) Transition(ctx context.Context, id uint64, to string) (*model.Showtime, error) {
	st, err := c.showtimes.GetShowtime(ctx, id)
	if err != nil {
		return nil, err
	}
	allowed := false
	for _, next := range legal[st.Status] {
		if next == to {
			allowed = true
			break
		}
	}
	if !allowed {
		return nil, ErrBadTransition
	}
	if err := c.showtimes.UpdateStatus(ctx, id, st.Status, to); err != nil {
		return nil, err
	}
	st.Status = to

	switch to {
	case model.ShowtimeActive:
		if err := c.registerSeats(ctx, st.ID); err != nil {
			return nil, err
		}
	case model.ShowtimeClosed, model.ShowtimeCancelled:
		c.seats.Drop(st.ID)
	}
	return st, nil
}

func (c *Catalog) registerSeats(ctx context.Context, showtimeID uint64) error {
	seats, err := c.inventory.ByShowtime(ctx, showtimeID)
	if err != nil {
		return err
	}
	ids := make([]uint64, 0, len(seats))
	for _, seat := range seats {
		ids = append(ids, seat.ID)
	}
	c.seats.Register(showtimeID, ids)
	return nil
}

// RegisterActive registers the seat inventory of every ACTIVE showtime
// with the seat map and returns their IDs.  Called once at startup,
// before the ledger replay re-applies live holds and sales.
func (c *Catalog) RegisterActive(ctx context.Context) ([]uint64, error) {
	active, err := c.showtimes.ListByStatus(ctx, model.ShowtimeActive)
	if err != nil {
		return nil, err
	}
	ids := make([]uint64, 0, len(active))
	for _, st := range active {
		if err := c.registerSeats(ctx, st.ID); err != nil {
			return nil, err
		}
		ids = append(ids, st.ID)
	}
	return ids, nil
}

// Showtime fetches one showtime.
func (c *Catalog) Showtime(ctx context.Context, id uint64) (*model.Showtime, error) {
	return c.showtimes.GetShowtime(ctx, id)
}

// ByMovie lists showtimes for a movie.
func (c *Catalog) ByMovie(ctx context.Context, movieID uint64) ([]model.Showtime, error) {
	return c.showtimes.ListByMovie(ctx, movieID)
}

// ByRoom lists showtimes hosted in a room.
func (c *Catalog) ByRoom(ctx context.Context, roomID uint64) ([]model.Showtime, error) {
	return c.showtimes.ListByRoom(ctx, roomID)
}

// CreateRoom inserts a room.
func (c *Catalog) CreateRoom(ctx context.Context, room *model.Room) error {
	return c.showtimes.CreateRoom(ctx, room)
}

// Room fetches one room.
func (c *Catalog) Room(ctx context.Context, id uint64) (*model.Room, error) {
	return c.showtimes.GetRoom(ctx, id)
}

// SeatPrices returns the price of each requested seat of a showtime.
func (c *Catalog) SeatPrices(ctx context.Context, showtimeID uint64, seatIDs []uint64) (map[uint64]uint32, error) {
	return c.inventory.Prices(ctx, showtimeID, seatIDs)
}

// Availability composes the static inventory with the live seat map
// state.  Seats of showtimes that are not open for booking report as an
// error, matching the hold path.
func (c *Catalog) Availability(ctx context.Context, showtimeID uint64) ([]model.SeatStatus, error) {
	seats, err := c.inventory.ByShowtime(ctx, showtimeID)
	if err != nil {
		return nil, err
	}
	snapshot, err := c.seats.Snapshot(showtimeID)
	if err != nil {
		return nil, err
	}
	out := make([]model.SeatStatus, 0, len(seats))
	for _, seat := range seats {
		state, ok := snapshot[seat.ID]
		if !ok {
			state = model.SeatFree
		}
		out = append(out, model.SeatStatus{
			SeatID:     seat.ID,
			RowLabel:   seat.RowLabel,
			SeatNumber: seat.SeatNumber,
			PriceCents: seat.PriceCents,
			State:      state,
		})
	}
	return out, nil
}
