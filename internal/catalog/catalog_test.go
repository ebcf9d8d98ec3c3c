package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/cinebook/seat-reservation/internal/model"
)

func TestRowLabel(t *testing.T) {
	cases := map[int]string{
		0:  "A",
		1:  "B",
		25: "Z",
		26: "AA",
		27: "AB",
		51: "AZ",
		52: "BA",
	}
	for in, want := range cases {
		assert.Equal(t, want, rowLabel(in), "rowLabel(%d)", in)
	}
	assert.Equal(t, "", rowLabel(-1))
}

func TestBuildSeats(t *testing.T) {
	room := &model.Room{ID: 5, SeatRows: 2, SeatCols: 3}
	seats := buildSeats(9, room, 1200)

	assert.Len(t, seats, 6)
	assert.Equal(t, "A", seats[0].RowLabel)
	assert.Equal(t, uint32(1), seats[0].SeatNumber)
	assert.Equal(t, "B", seats[5].RowLabel)
	assert.Equal(t, uint32(3), seats[5].SeatNumber)
	for i, seat := range seats {
		assert.Equal(t, uint64(i+1), seat.ID)
		assert.Equal(t, uint64(9), seat.ShowtimeID)
		assert.Equal(t, uint32(1200), seat.PriceCents)
	}
}

func TestLifecycleTable(t *testing.T) {
	allowed := func(from, to string) bool {
		for _, next := range legal[from] {
			if next == to {
				return true
			}
		}
		return false
	}

	assert.True(t, allowed(model.ShowtimeScheduled, model.ShowtimeActive))
	assert.True(t, allowed(model.ShowtimeScheduled, model.ShowtimeCancelled))
	assert.True(t, allowed(model.ShowtimeActive, model.ShowtimeClosed))
	assert.True(t, allowed(model.ShowtimeActive, model.ShowtimeCancelled))

	// Terminal states have no exits, and nothing skips straight from
	// SCHEDULED to CLOSED.
	assert.False(t, allowed(model.ShowtimeScheduled, model.ShowtimeClosed))
	assert.False(t, allowed(model.ShowtimeClosed, model.ShowtimeActive))
	assert.False(t, allowed(model.ShowtimeCancelled, model.ShowtimeActive))
	assert.False(t, allowed(model.ShowtimeActive, model.ShowtimeScheduled))
}
