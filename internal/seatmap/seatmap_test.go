package seatmap

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cinebook/seat-reservation/internal/model"
)

func newTestMap(t *testing.T, showtimeID uint64, seats ...uint64) (*SeatMap, *time.Time) {
	t.Helper()
	base := time.Date(2026, 3, 1, 18, 0, 0, 0, time.UTC)
	clock := base
	m := New()
	m.now = func() time.Time { return clock }
	m.Register(showtimeID, seats)
	return m, &clock
}

func TestTryHoldAllOrNothing(t *testing.T) {
	m, _ := newTestMap(t, 1, 1, 2, 3, 4)

	_, err := m.TryHold(1, []uint64{1, 2}, 10, "tok-a", time.Minute)
	require.NoError(t, err)

	// Overlaps on seat 2: the whole request must fail and seat 3 must
	// stay free.
	_, err = m.TryHold(1, []uint64{3, 2}, 11, "tok-b", time.Minute)
	var conflict *ConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, uint64(2), conflict.SeatID)

	snap, err := m.Snapshot(1)
	require.NoError(t, err)
	assert.Equal(t, model.SeatFree, snap[3])
	assert.Equal(t, model.SeatHeld, snap[1])
	assert.Equal(t, model.SeatHeld, snap[2])
}

func TestTryHoldUnknownSeatAndShowtime(t *testing.T) {
	m, _ := newTestMap(t, 1, 1, 2)

	_, err := m.TryHold(1, []uint64{99}, 10, "tok", time.Minute)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = m.TryHold(42, []uint64{1}, 10, "tok", time.Minute)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestConcurrentOverlappingHolds(t *testing.T) {
	m, _ := newTestMap(t, 1, 1, 2, 3)

	const attempts = 32
	var wg sync.WaitGroup
	errs := make([]error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			token := fmt.Sprintf("tok-%d", i)
			_, errs[i] = m.TryHold(1, []uint64{1, 2, 3}, uint64(i), token, time.Minute)
		}(i)
	}
	wg.Wait()

	won := 0
	for _, err := range errs {
		if err == nil {
			won++
		} else {
			var conflict *ConflictError
			assert.ErrorAs(t, err, &conflict)
		}
	}
	assert.Equal(t, 1, won, "exactly one overlapping hold may succeed")
}

func TestLazyExpiryReclaim(t *testing.T) {
	m, clock := newTestMap(t, 1, 1, 2)

	_, err := m.TryHold(1, []uint64{1, 2}, 10, "tok-a", time.Minute)
	require.NoError(t, err)

	*clock = clock.Add(61 * time.Second)

	// The lapsed hold is reclaimed on access, so another customer can
	// take the seats.
	_, err = m.TryHold(1, []uint64{1, 2}, 11, "tok-b", time.Minute)
	require.NoError(t, err)

	// The original token is gone, not merely expired.
	_, err = m.Confirm(1, "tok-a")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestConfirmIdempotentAndExpiry(t *testing.T) {
	m, clock := newTestMap(t, 1, 1, 2)

	_, err := m.TryHold(1, []uint64{1}, 10, "tok", time.Minute)
	require.NoError(t, err)

	seats, err := m.Confirm(1, "tok")
	require.NoError(t, err)
	assert.Equal(t, []uint64{1}, seats)

	again, err := m.Confirm(1, "tok")
	require.NoError(t, err)
	assert.Equal(t, seats, again)

	// Confirmed holds are immune to expiry.
	*clock = clock.Add(time.Hour)
	snap, err := m.Snapshot(1)
	require.NoError(t, err)
	assert.Equal(t, model.SeatSold, snap[1])

	// A lapsed, unconfirmed hold reports ErrExpired when the reclaim has
	// not yet run for it.
	_, err = m.TryHold(1, []uint64{2}, 11, "tok2", time.Minute)
	require.NoError(t, err)
	*clock = clock.Add(2 * time.Minute)
	_, err = m.Confirm(1, "tok2")
	assert.ErrorIs(t, err, ErrExpired)
}

func TestUnconfirmRestoresHold(t *testing.T) {
	m, _ := newTestMap(t, 1, 1)

	_, err := m.TryHold(1, []uint64{1}, 10, "tok", time.Minute)
	require.NoError(t, err)
	_, err = m.Confirm(1, "tok")
	require.NoError(t, err)

	m.Unconfirm(1, "tok")

	snap, err := m.Snapshot(1)
	require.NoError(t, err)
	assert.Equal(t, model.SeatHeld, snap[1])

	// The rolled back hold can be confirmed again.
	_, err = m.Confirm(1, "tok")
	assert.NoError(t, err)
}

func TestReleaseRefusesConfirmed(t *testing.T) {
	m, _ := newTestMap(t, 1, 1)

	_, err := m.TryHold(1, []uint64{1}, 10, "tok", time.Minute)
	require.NoError(t, err)
	_, err = m.Confirm(1, "tok")
	require.NoError(t, err)

	_, err = m.Release(1, "tok")
	assert.Error(t, err)

	snap, err := m.Snapshot(1)
	require.NoError(t, err)
	assert.Equal(t, model.SeatSold, snap[1])
}

func TestReleaseFreesSeats(t *testing.T) {
	m, _ := newTestMap(t, 1, 1, 2)

	_, err := m.TryHold(1, []uint64{1, 2}, 10, "tok", time.Minute)
	require.NoError(t, err)

	seats, err := m.Release(1, "tok")
	require.NoError(t, err)
	assert.ElementsMatch(t, []uint64{1, 2}, seats)

	_, err = m.Release(1, "tok")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = m.TryHold(1, []uint64{1, 2}, 11, "tok2", time.Minute)
	assert.NoError(t, err)
}

func TestSweepReclaimsAcrossShowtimes(t *testing.T) {
	base := time.Date(2026, 3, 1, 18, 0, 0, 0, time.UTC)
	clock := base
	m := New()
	m.now = func() time.Time { return clock }
	m.Register(1, []uint64{1})
	m.Register(2, []uint64{1})

	_, err := m.TryHold(1, []uint64{1}, 10, "tok-a", time.Minute)
	require.NoError(t, err)
	_, err = m.TryHold(2, []uint64{1}, 11, "tok-b", time.Minute)
	require.NoError(t, err)
	_, err = m.Confirm(2, "tok-b")
	require.NoError(t, err)

	clock = clock.Add(2 * time.Minute)

	// Only the unconfirmed hold is reclaimed.
	assert.Equal(t, 1, m.Sweep())
	assert.Equal(t, 0, m.Sweep())
}

func TestRestoreRoundTrip(t *testing.T) {
	m, clock := newTestMap(t, 1, 1, 2, 3)

	require.NoError(t, m.RestoreSold(1, "sold", 10, []uint64{1}))
	require.NoError(t, m.RestoreHold(1, "held", 11, []uint64{2}, clock.Add(time.Minute)))

	snap, err := m.Snapshot(1)
	require.NoError(t, err)
	assert.Equal(t, model.SeatSold, snap[1])
	assert.Equal(t, model.SeatHeld, snap[2])
	assert.Equal(t, model.SeatFree, snap[3])

	// Restoring onto an occupied seat means the input is inconsistent.
	err = m.RestoreHold(1, "dup", 12, []uint64{2}, clock.Add(time.Minute))
	var conflict *ConflictError
	assert.ErrorAs(t, err, &conflict)
}
