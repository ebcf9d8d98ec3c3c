package ledger

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cinebook/seat-reservation/internal/model"
)

var base = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func appendEntry(t *testing.T, l *Ledger, id string, customer uint64, status string, total uint32, at time.Time, expires time.Time) {
	t.Helper()
	require.NoError(t, l.Append(context.Background(), &Entry{
		ReservationID: id,
		ShowtimeID:    1,
		CustomerID:    customer,
		SeatIDs:       []uint64{1},
		Status:        status,
		TotalCents:    total,
		ExpiresAt:     expires,
		RecordedAt:    at,
	}))
}

func TestParseSortKey(t *testing.T) {
	key, err := ParseSortKey("")
	require.NoError(t, err)
	assert.Equal(t, SortNewest, key)

	for _, s := range []string{"newest", "oldest", "price_desc", "price_asc"} {
		key, err := ParseSortKey(s)
		require.NoError(t, err)
		assert.Equal(t, SortKey(s), key)
	}

	_, err = ParseSortKey("cheapest")
	assert.Error(t, err)
}

func TestAppendRequiresReservationID(t *testing.T) {
	l := New(NewMemoryStore())
	err := l.Append(context.Background(), &Entry{ShowtimeID: 1})
	assert.Error(t, err)
}

func TestHistorySortOrders(t *testing.T) {
	l := New(NewMemoryStore())

	// Three bookings at distinct times and prices, plus one that ties on
	// both keys with "a" to exercise the ID tiebreak.
	appendEntry(t, l, "b", 7, model.ReservationConfirmed, 3000, base.Add(2*time.Hour), time.Time{})
	appendEntry(t, l, "a", 7, model.ReservationConfirmed, 1000, base, time.Time{})
	appendEntry(t, l, "c", 7, model.ReservationConfirmed, 2000, base.Add(time.Hour), time.Time{})
	appendEntry(t, l, "d", 7, model.ReservationConfirmed, 1000, base, time.Time{})

	ids := func(recs []model.ReservationRecord) []string {
		out := make([]string, 0, len(recs))
		for _, r := range recs {
			out = append(out, r.ID)
		}
		return out
	}

	newest, err := l.History(context.Background(), 7, SortNewest)
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "c", "d", "a"}, ids(newest))

	oldest, err := l.History(context.Background(), 7, SortOldest)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "d", "c", "b"}, ids(oldest))

	// Oldest is the exact reverse of newest.
	for i := range newest {
		assert.Equal(t, newest[i].ID, oldest[len(oldest)-1-i].ID)
	}

	desc, err := l.History(context.Background(), 7, SortPriceDesc)
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "c", "a", "d"}, ids(desc))

	asc, err := l.History(context.Background(), 7, SortPriceAsc)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "d", "c", "b"}, ids(asc))
}

func TestHistoryFiltersByCustomer(t *testing.T) {
	l := New(NewMemoryStore())
	appendEntry(t, l, "mine", 7, model.ReservationConfirmed, 1000, base, time.Time{})
	appendEntry(t, l, "theirs", 8, model.ReservationConfirmed, 1000, base, time.Time{})

	recs, err := l.History(context.Background(), 7, SortNewest)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "mine", recs[0].ID)
}

func TestReduceLatestStatusWinsAndTerminalSticks(t *testing.T) {
	l := New(NewMemoryStore())

	appendEntry(t, l, "r1", 7, model.ReservationPending, 1500, base, base.Add(5*time.Minute))
	appendEntry(t, l, "r1", 7, model.ReservationConfirmed, 1500, base.Add(time.Minute), time.Time{})
	// A stray late entry must not regress the terminal status.
	appendEntry(t, l, "r1", 7, model.ReservationExpired, 1500, base.Add(2*time.Minute), time.Time{})

	recs, err := l.History(context.Background(), 7, SortNewest)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	rec := recs[0]
	assert.Equal(t, model.ReservationConfirmed, rec.Status)
	assert.True(t, rec.ExpiresAt.IsZero())
	// The first entry fixes the booking date; the winning entry fixes
	// the update time.
	assert.True(t, rec.CreatedAt.Equal(base))
	assert.True(t, rec.UpdatedAt.Equal(base.Add(time.Minute)))
}

func TestReplay(t *testing.T) {
	l := New(NewMemoryStore())
	now := base.Add(time.Hour)

	// Confirmed: comes back as sold.
	appendEntry(t, l, "sold", 7, model.ReservationPending, 1000, base, base.Add(5*time.Minute))
	appendEntry(t, l, "sold", 7, model.ReservationConfirmed, 1000, base.Add(time.Minute), time.Time{})
	// Pending with a live expiry: comes back as a hold.
	appendEntry(t, l, "held", 8, model.ReservationPending, 1000, base, now.Add(5*time.Minute))
	// Pending whose expiry lapsed without an EXPIRED entry: free.
	appendEntry(t, l, "lapsed", 9, model.ReservationPending, 1000, base, base.Add(5*time.Minute))
	// Cancelled and rejected: free.
	appendEntry(t, l, "gone", 10, model.ReservationPending, 1000, base, now.Add(5*time.Minute))
	appendEntry(t, l, "gone", 10, model.ReservationCancelled, 1000, base.Add(time.Minute), time.Time{})
	appendEntry(t, l, "no", 11, model.ReservationRejected, 1000, base, time.Time{})

	state, err := l.Replay(context.Background(), 1, now)
	require.NoError(t, err)
	require.Len(t, state.Sold, 1)
	assert.Equal(t, "sold", state.Sold[0].ID)
	require.Len(t, state.Holds, 1)
	assert.Equal(t, "held", state.Holds[0].ID)
}
