// Package seatmap holds the in-memory seat state for every bookable
// showtime.  It is the single authority on whether a seat is FREE, HELD
// or SOLD, and it is the only place where seat transitions happen.  All
// transitions for a given showtime are serialized behind that showtime's
// mutex, so two overlapping hold requests can never both succeed.  The
// package performs no I/O while a lock is held.
package seatmap

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cinebook/seat-reservation/internal/model"
)

// ErrExpired is returned when an operation references a hold whose TTL
// has lapsed.  The seats of an expired hold are reclaimed lazily on the
// next access to the showtime or by the background sweeper.
var ErrExpired = errors.New("hold expired")

// ErrNotFound is returned when a showtime, seat or hold token is not
// known to the map.
var ErrNotFound = errors.New("not found")

// ConflictError reports the first seat of a hold request that was not
// available.  The request is rejected as a whole; none of the requested
// seats change state.
type ConflictError struct {
	SeatID uint64
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("seat %d is not available", e.SeatID)
}

// seat states used internally; exported snapshots use the model constants.
const (
	stateFree uint8 = iota
	stateHeld
	stateSold
)

// hold tracks one all-or-nothing claim over a set of seats.  Confirmed
// holds are never reclaimed by expiry.
type hold struct {
	token     string
	holder    uint64
	seatIDs   []uint64
	expiresAt time.Time
	confirmed bool
}

// showtime is the per-showtime shard.  Its mutex guards both maps; it is
// never held across a call that might block on I/O.
type showtime struct {
	mu    sync.Mutex
	seats map[uint64]uint8   // seat ID -> state
	holds map[string]*hold   // hold token -> hold
	owner map[uint64]*hold   // seat ID -> owning hold for HELD/SOLD seats
}

// SeatMap maps showtime IDs to their seat state shards.
type SeatMap struct {
	mu        sync.RWMutex
	showtimes map[uint64]*showtime
	now       func() time.Time // overridable in tests
}

// New returns an empty SeatMap using the wall clock.
func New() *SeatMap {
	return &SeatMap{
		showtimes: make(map[uint64]*showtime),
		now:       time.Now,
	}
}

// Register makes a showtime bookable with the given seat inventory.  All
// seats start FREE.  Registering an already known showtime is a no-op so
// that startup restore can be followed by a regular registration pass.
func (m *SeatMap) Register(showtimeID uint64, seatIDs []uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.showtimes[showtimeID]; ok {
		return
	}
	st := &showtime{
		seats: make(map[uint64]uint8, len(seatIDs)),
		holds: make(map[string]*hold),
		owner: make(map[uint64]*hold),
	}
	for _, id := range seatIDs {
		st.seats[id] = stateFree
	}
	m.showtimes[showtimeID] = st
}

// Drop removes a showtime and all of its seat state.  Used when a
// showtime is closed or cancelled and can no longer take bookings.
func (m *SeatMap) Drop(showtimeID uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.showtimes, showtimeID)
}

func (m *SeatMap) get(showtimeID uint64) (*showtime, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	st, ok := m.showtimes[showtimeID]
	return st, ok
}

// reclaimLocked frees the seats of every lapsed, unconfirmed hold.  The
// caller must hold st.mu.  Returns the tokens that were reclaimed.
func (st *showtime) reclaimLocked(now time.Time) []string {
	var reclaimed []string
	for token, h := range st.holds {
		if h.confirmed || h.expiresAt.After(now) {
			continue
		}
		for _, id := range h.seatIDs {
			st.seats[id] = stateFree
			delete(st.owner, id)
		}
		delete(st.holds, token)
		reclaimed = append(reclaimed, token)
	}
	return reclaimed
}

// TryHold atomically claims the given seat set for holderID under the
// supplied token.  Either every requested seat transitions FREE -> HELD
// or none do; on failure a *ConflictError names the first unavailable
// seat.  Returns the hold expiry on success.
func (m *SeatMap) TryHold(showtimeID uint64, seatIDs []uint64, holderID uint64, token string, ttl time.Duration) (time.Time, error) {
	if len(seatIDs) == 0 {
		return time.Time{}, errors.New("empty seat set")
	}
	st, ok := m.get(showtimeID)
	if !ok {
		return time.Time{}, ErrNotFound
	}
	now := m.now()
	st.mu.Lock()
	defer st.mu.Unlock()
	st.reclaimLocked(now)
	for _, id := range seatIDs {
		state, known := st.seats[id]
		if !known {
			return time.Time{}, ErrNotFound
		}
		if state != stateFree {
			return time.Time{}, &ConflictError{SeatID: id}
		}
	}
	h := &hold{
		token:     token,
		holder:    holderID,
		seatIDs:   append([]uint64(nil), seatIDs...),
		expiresAt: now.Add(ttl),
	}
	for _, id := range seatIDs {
		st.seats[id] = stateHeld
		st.owner[id] = h
	}
	st.holds[token] = h
	return h.expiresAt, nil
}

// Confirm transitions every seat of the hold HELD -> SOLD.  Confirming a
// hold that is already confirmed returns its seats again without error.
// A lapsed hold yields ErrExpired; an unknown token yields ErrNotFound.
func (m *SeatMap) Confirm(showtimeID uint64, token string) ([]uint64, error) {
	st, ok := m.get(showtimeID)
	if !ok {
		return nil, ErrNotFound
	}
	now := m.now()
	st.mu.Lock()
	defer st.mu.Unlock()
	h, ok := st.holds[token]
	if !ok {
		return nil, ErrNotFound
	}
	if h.confirmed {
		return append([]uint64(nil), h.seatIDs...), nil
	}
	if !h.expiresAt.After(now) {
		return nil, ErrExpired
	}
	for _, id := range h.seatIDs {
		st.seats[id] = stateSold
	}
	h.confirmed = true
	return append([]uint64(nil), h.seatIDs...), nil
}

// Unconfirm rolls a freshly confirmed hold back to HELD with its original
// expiry.  Called when persisting the confirmation failed and the
// in-memory transition must not survive (no partial state).
func (m *SeatMap) Unconfirm(showtimeID uint64, token string) {
	st, ok := m.get(showtimeID)
	if !ok {
		return
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	h, ok := st.holds[token]
	if !ok || !h.confirmed {
		return
	}
	h.confirmed = false
	for _, id := range h.seatIDs {
		st.seats[id] = stateHeld
	}
}

// Release frees the seats of an unconfirmed hold and forgets the token.
// Releasing a confirmed hold is refused; releasing an unknown token
// returns ErrNotFound (the hold may already have been reclaimed).
func (m *SeatMap) Release(showtimeID uint64, token string) ([]uint64, error) {
	st, ok := m.get(showtimeID)
	if !ok {
		return nil, ErrNotFound
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	h, ok := st.holds[token]
	if !ok {
		return nil, ErrNotFound
	}
	if h.confirmed {
		return nil, errors.New("hold already confirmed")
	}
	for _, id := range h.seatIDs {
		st.seats[id] = stateFree
		delete(st.owner, id)
	}
	delete(st.holds, token)
	return append([]uint64(nil), h.seatIDs...), nil
}

// Snapshot reports the current state of every seat of a showtime.  Lapsed
// holds are reclaimed first so the snapshot never shows a stale HELD.
func (m *SeatMap) Snapshot(showtimeID uint64) (map[uint64]string, error) {
	st, ok := m.get(showtimeID)
	if !ok {
		return nil, ErrNotFound
	}
	now := m.now()
	st.mu.Lock()
	defer st.mu.Unlock()
	st.reclaimLocked(now)
	out := make(map[uint64]string, len(st.seats))
	for id, state := range st.seats {
		switch state {
		case stateHeld:
			out[id] = model.SeatHeld
		case stateSold:
			out[id] = model.SeatSold
		default:
			out[id] = model.SeatFree
		}
	}
	return out, nil
}

// RestoreHold re-applies a pending hold recovered from the ledger after a
// restart.  Seats must currently be FREE; conflicting restore input means
// the ledger itself is inconsistent and is reported as an error.
func (m *SeatMap) RestoreHold(showtimeID uint64, token string, holderID uint64, seatIDs []uint64, expiresAt time.Time) error {
	st, ok := m.get(showtimeID)
	if !ok {
		return ErrNotFound
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	for _, id := range seatIDs {
		if st.seats[id] != stateFree {
			return &ConflictError{SeatID: id}
		}
	}
	h := &hold{
		token:     token,
		holder:    holderID,
		seatIDs:   append([]uint64(nil), seatIDs...),
		expiresAt: expiresAt,
	}
	for _, id := range seatIDs {
		st.seats[id] = stateHeld
		st.owner[id] = h
	}
	st.holds[token] = h
	return nil
}

// RestoreSold re-applies a confirmed reservation recovered from the
// ledger after a restart.
func (m *SeatMap) RestoreSold(showtimeID uint64, token string, holderID uint64, seatIDs []uint64) error {
	if err := m.RestoreHold(showtimeID, token, holderID, seatIDs, m.now().Add(time.Minute)); err != nil {
		return err
	}
	_, err := m.Confirm(showtimeID, token)
	return err
}

// Sweep reclaims lapsed holds across all showtimes and returns how many
// holds were removed.  Called periodically by the Sweeper.
func (m *SeatMap) Sweep() int {
	m.mu.RLock()
	shards := make([]*showtime, 0, len(m.showtimes))
	for _, st := range m.showtimes {
		shards = append(shards, st)
	}
	m.mu.RUnlock()

	now := m.now()
	total := 0
	for _, st := range shards {
		st.mu.Lock()
		total += len(st.reclaimLocked(now))
		st.mu.Unlock()
	}
	return total
}
