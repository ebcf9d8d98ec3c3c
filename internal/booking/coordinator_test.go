package booking

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cinebook/seat-reservation/internal/ledger"
	"github.com/cinebook/seat-reservation/internal/model"
	"github.com/cinebook/seat-reservation/internal/notify"
	"github.com/cinebook/seat-reservation/internal/seatmap"
)

// flakyStore fails a configurable number of upcoming appends.
type flakyStore struct {
	*ledger.MemoryStore
	mu       sync.Mutex
	failNext int
}

func (s *flakyStore) Append(ctx context.Context, e *ledger.Entry) error {
	s.mu.Lock()
	fail := s.failNext > 0
	if fail {
		s.failNext--
	}
	s.mu.Unlock()
	if fail {
		return errors.New("store down")
	}
	return s.MemoryStore.Append(ctx, e)
}

// recordingSink collects published events and can simulate failures.
type recordingSink struct {
	mu     sync.Mutex
	events []notify.BookingEvent
	err    error
}

func (s *recordingSink) Publish(_ context.Context, ev notify.BookingEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.events = append(s.events, ev)
	return nil
}

func (s *recordingSink) statuses() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.events))
	for _, ev := range s.events {
		out = append(out, ev.Status)
	}
	return out
}

var prices = map[uint64]uint32{1: 1000, 2: 1500, 3: 2000}

func newTestCoordinator(t *testing.T, ttl time.Duration) (*Coordinator, *seatmap.SeatMap, *flakyStore, *recordingSink) {
	t.Helper()
	seats := seatmap.New()
	seats.Register(1, []uint64{1, 2, 3})
	store := &flakyStore{MemoryStore: ledger.NewMemoryStore()}
	sink := &recordingSink{}
	c := New(seats, ledger.New(store), sink, ttl)
	t.Cleanup(c.Close)
	return c, seats, store, sink
}

func TestHoldThenConfirm(t *testing.T) {
	c, _, _, _ := newTestCoordinator(t, time.Minute)
	ctx := context.Background()

	rec, err := c.HoldSeats(ctx, 1, 7, []uint64{1, 2}, prices)
	require.NoError(t, err)
	assert.Equal(t, model.ReservationPending, rec.Status)
	assert.Equal(t, uint32(2500), rec.TotalCents)
	assert.False(t, rec.ExpiresAt.IsZero())

	confirmed, err := c.Confirm(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ReservationConfirmed, confirmed.Status)
	assert.True(t, confirmed.ExpiresAt.IsZero())

	// Confirming again returns the same record, not an error.
	again, err := c.Confirm(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, confirmed, again)
}

func TestHoldDeduplicatesSeats(t *testing.T) {
	c, _, _, _ := newTestCoordinator(t, time.Minute)

	rec, err := c.HoldSeats(context.Background(), 1, 7, []uint64{1, 1, 2}, prices)
	require.NoError(t, err)
	assert.Equal(t, []uint64{1, 2}, rec.SeatIDs)
	assert.Equal(t, uint32(2500), rec.TotalCents)
}

func TestConflictRecordsRejectedAttempt(t *testing.T) {
	c, _, _, sink := newTestCoordinator(t, time.Minute)
	ctx := context.Background()

	_, err := c.HoldSeats(ctx, 1, 7, []uint64{1, 2}, prices)
	require.NoError(t, err)

	_, err = c.HoldSeats(ctx, 1, 8, []uint64{2, 3}, prices)
	var conflict *seatmap.ConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, uint64(2), conflict.SeatID)

	// The losing customer sees a REJECTED record in their history and
	// seat 3 stayed free for everyone else.
	recs, err := c.log.History(ctx, 8, ledger.SortNewest)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, model.ReservationRejected, recs[0].Status)

	_, err = c.HoldSeats(ctx, 1, 9, []uint64{3}, prices)
	assert.NoError(t, err)

	assert.Eventually(t, func() bool {
		for _, s := range sink.statuses() {
			if s == model.ReservationRejected {
				return true
			}
		}
		return false
	}, time.Second, 10*time.Millisecond)
}

func TestHoldExpires(t *testing.T) {
	c, _, _, _ := newTestCoordinator(t, 30*time.Millisecond)
	ctx := context.Background()

	rec, err := c.HoldSeats(ctx, 1, 7, []uint64{1}, prices)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		got, err := c.Get(rec.ID)
		return err == nil && got.Status == model.ReservationExpired
	}, time.Second, 10*time.Millisecond)

	_, err = c.Confirm(ctx, rec.ID)
	assert.ErrorIs(t, err, seatmap.ErrExpired)

	// The seat is bookable again.
	_, err = c.HoldSeats(ctx, 1, 8, []uint64{1}, prices)
	assert.NoError(t, err)
}

func TestConfirmAfterTTLWithoutTimer(t *testing.T) {
	// Zero grace: the coordinator must refuse a confirm whose hold has
	// lapsed even if the expiry timer has not fired yet.
	c, _, _, _ := newTestCoordinator(t, time.Minute)
	ctx := context.Background()

	rec, err := c.HoldSeats(ctx, 1, 7, []uint64{1}, prices)
	require.NoError(t, err)

	c.now = func() time.Time { return rec.ExpiresAt.Add(time.Second) }
	_, err = c.Confirm(ctx, rec.ID)
	assert.ErrorIs(t, err, seatmap.ErrExpired)

	got, err := c.Get(rec.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ReservationExpired, got.Status)
}

func TestCancel(t *testing.T) {
	c, _, _, _ := newTestCoordinator(t, time.Minute)
	ctx := context.Background()

	rec, err := c.HoldSeats(ctx, 1, 7, []uint64{1, 2}, prices)
	require.NoError(t, err)

	cancelled, err := c.Cancel(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ReservationCancelled, cancelled.Status)

	// Idempotent.
	again, err := c.Cancel(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, cancelled, again)

	// A cancelled reservation cannot be confirmed.
	_, err = c.Confirm(ctx, rec.ID)
	assert.ErrorIs(t, err, ErrAlreadyFinal)

	// Seats are free again.
	_, err = c.HoldSeats(ctx, 1, 8, []uint64{1, 2}, prices)
	assert.NoError(t, err)
}

func TestCancelAfterConfirmRefused(t *testing.T) {
	c, _, _, _ := newTestCoordinator(t, time.Minute)
	ctx := context.Background()

	rec, err := c.HoldSeats(ctx, 1, 7, []uint64{1}, prices)
	require.NoError(t, err)
	_, err = c.Confirm(ctx, rec.ID)
	require.NoError(t, err)

	_, err = c.Cancel(ctx, rec.ID)
	assert.ErrorIs(t, err, ErrAlreadyFinal)

	got, err := c.Get(rec.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ReservationConfirmed, got.Status)
}

func TestUnknownToken(t *testing.T) {
	c, _, _, _ := newTestCoordinator(t, time.Minute)
	ctx := context.Background()

	_, err := c.Confirm(ctx, "no-such-token")
	assert.ErrorIs(t, err, seatmap.ErrNotFound)
	_, err = c.Cancel(ctx, "no-such-token")
	assert.ErrorIs(t, err, seatmap.ErrNotFound)
	_, err = c.Get("no-such-token")
	assert.ErrorIs(t, err, seatmap.ErrNotFound)
}

func TestHoldAppendFailureRollsBack(t *testing.T) {
	c, _, store, _ := newTestCoordinator(t, time.Minute)
	ctx := context.Background()

	store.failNext = 1
	_, err := c.HoldSeats(ctx, 1, 7, []uint64{1}, prices)
	var storeErr *StoreError
	require.ErrorAs(t, err, &storeErr)

	// The failed hold left no trace: the seat is still free.
	_, err = c.HoldSeats(ctx, 1, 8, []uint64{1}, prices)
	assert.NoError(t, err)
}

func TestConfirmAppendFailureKeepsHold(t *testing.T) {
	c, _, store, _ := newTestCoordinator(t, time.Minute)
	ctx := context.Background()

	rec, err := c.HoldSeats(ctx, 1, 7, []uint64{1}, prices)
	require.NoError(t, err)

	store.failNext = 1
	_, err = c.Confirm(ctx, rec.ID)
	var storeErr *StoreError
	require.ErrorAs(t, err, &storeErr)

	// The reservation is still a live hold and confirms cleanly once the
	// store recovers.
	got, err := c.Get(rec.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ReservationPending, got.Status)

	confirmed, err := c.Confirm(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ReservationConfirmed, confirmed.Status)
}

func TestCancelAppendFailureKeepsHold(t *testing.T) {
	c, _, store, _ := newTestCoordinator(t, time.Minute)
	ctx := context.Background()

	rec, err := c.HoldSeats(ctx, 1, 7, []uint64{1}, prices)
	require.NoError(t, err)

	store.failNext = 1
	_, err = c.Cancel(ctx, rec.ID)
	var storeErr *StoreError
	require.ErrorAs(t, err, &storeErr)

	got, err := c.Get(rec.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ReservationPending, got.Status)
}

func TestNotificationFailureDoesNotAffectBooking(t *testing.T) {
	c, _, _, sink := newTestCoordinator(t, time.Minute)
	sink.err = errors.New("broker down")
	ctx := context.Background()

	rec, err := c.HoldSeats(ctx, 1, 7, []uint64{1}, prices)
	require.NoError(t, err)
	confirmed, err := c.Confirm(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ReservationConfirmed, confirmed.Status)
}

func TestRestoreRebuildsLiveState(t *testing.T) {
	seats := seatmap.New()
	seats.Register(1, []uint64{1, 2, 3})
	store := ledger.NewMemoryStore()
	lg := ledger.New(store)
	ctx := context.Background()
	now := time.Now().UTC()

	// Simulate the log of a previous process: one sale, one live hold,
	// one hold that lapsed while the process was down.
	appendAll(t, lg, []ledger.Entry{
		{ReservationID: "sold", ShowtimeID: 1, CustomerID: 7, SeatIDs: []uint64{1}, Status: model.ReservationPending, TotalCents: 1000, ExpiresAt: now.Add(-time.Hour), RecordedAt: now.Add(-2 * time.Hour)},
		{ReservationID: "sold", ShowtimeID: 1, CustomerID: 7, SeatIDs: []uint64{1}, Status: model.ReservationConfirmed, TotalCents: 1000, RecordedAt: now.Add(-90 * time.Minute)},
		{ReservationID: "held", ShowtimeID: 1, CustomerID: 8, SeatIDs: []uint64{2}, Status: model.ReservationPending, TotalCents: 1500, ExpiresAt: now.Add(time.Hour), RecordedAt: now.Add(-time.Minute)},
		{ReservationID: "lapsed", ShowtimeID: 1, CustomerID: 9, SeatIDs: []uint64{3}, Status: model.ReservationPending, TotalCents: 2000, ExpiresAt: now.Add(-time.Minute), RecordedAt: now.Add(-10 * time.Minute)},
	})

	c := New(seats, lg, notify.NopSink{}, time.Minute)
	t.Cleanup(c.Close)
	require.NoError(t, c.Restore(ctx, 1))

	// Seat 1 is sold, seat 2 held, seat 3 free again.
	_, err := c.HoldSeats(ctx, 1, 10, []uint64{1}, prices)
	var conflict *seatmap.ConflictError
	assert.ErrorAs(t, err, &conflict)
	_, err = c.HoldSeats(ctx, 1, 10, []uint64{2}, prices)
	assert.ErrorAs(t, err, &conflict)
	_, err = c.HoldSeats(ctx, 1, 10, []uint64{3}, prices)
	assert.NoError(t, err)

	// The restored sale answers idempotent confirms.
	confirmed, err := c.Confirm(ctx, "sold")
	require.NoError(t, err)
	assert.Equal(t, model.ReservationConfirmed, confirmed.Status)
}

func appendAll(t *testing.T, lg *ledger.Ledger, entries []ledger.Entry) {
	t.Helper()
	for i := range entries {
		require.NoError(t, lg.Append(context.Background(), &entries[i]))
	}
}
