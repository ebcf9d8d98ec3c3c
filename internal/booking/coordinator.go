package booking

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/cinebook/seat-reservation/internal/ledger"
	"github.com/cinebook/seat-reservation/internal/model"
	"github.com/cinebook/seat-reservation/internal/notify"
	"github.com/cinebook/seat-reservation/internal/seatmap"
)

// reservation is the coordinator's live view of one booking.  Its mutex
// serializes state transitions for this reservation only, so a slow
// ledger append for one booking never blocks another.
type reservation struct {
	mu    sync.Mutex
	rec   model.ReservationRecord
	timer *time.Timer
}

// Coordinator drives the reservation state machine:
//
//	Requested -> Held -> Confirmed            (terminal)
//	             Held -> Expired | Cancelled  (terminal)
//	Requested -> Rejected                     (terminal)
//
// Transitions happen only through HoldSeats, Confirm, Cancel or the
// per-hold expiry timer.  Every successful transition is appended to the
// ledger before it is committed in memory; a failed append rolls the
// in-memory seat state back and surfaces a *StoreError.  Terminal
// transitions emit a best-effort notification that never fails the
// operation itself.
type Coordinator struct {
	seats *seatmap.SeatMap
	log   *ledger.Ledger
	sink  notify.Sink
	ttl   time.Duration
	now   func() time.Time

	mu           sync.Mutex
	reservations map[string]*reservation
}

// New returns a Coordinator.  ttl is the hold time-to-live applied to
// every new hold.
func New(seats *seatmap.SeatMap, lg *ledger.Ledger, sink notify.Sink, ttl time.Duration) *Coordinator {
	if seats == nil || lg == nil {
		panic("nil dependency passed to booking.New")
	}
	if sink == nil {
		sink = notify.NopSink{}
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &Coordinator{
		seats:        seats,
		log:          lg,
		sink:         sink,
		ttl:          ttl,
		now:          time.Now,
		reservations: make(map[string]*reservation),
	}
}

// HoldSeats attempts an all-or-nothing hold on the given seats.  prices
// maps each seat to its price in cents and must cover every requested
// seat.  On conflict the attempt is recorded as REJECTED and the
// *seatmap.ConflictError names the first unavailable seat.
func (c *Coordinator) HoldSeats(ctx context.Context, showtimeID, customerID uint64, seatIDs []uint64, prices map[uint64]uint32) (*model.ReservationRecord, error) {
	unique := dedupe(seatIDs)
	if len(unique) == 0 {
		return nil, errors.New("no seats requested")
	}
	var total uint32
	for _, sid := range unique {
		p, ok := prices[sid]
		if !ok {
			return nil, errors.New("missing price for requested seat")
		}
		total += p
	}

	token := uuid.NewString()
	now := c.now().UTC()
	expiresAt, err := c.seats.TryHold(showtimeID, unique, customerID, token, c.ttl)
	if err != nil {
		var conflict *seatmap.ConflictError
		if errors.As(err, &conflict) {
			// Record the rejected attempt for audit; nothing in memory
			// changed, so an append failure here is only logged.
			rejected := model.ReservationRecord{
				ID: token, ShowtimeID: showtimeID, CustomerID: customerID,
				SeatIDs: unique, Status: model.ReservationRejected,
				TotalCents: total, CreatedAt: now, UpdatedAt: now,
			}
			if appendErr := c.append(ctx, &rejected); appendErr != nil {
				log.Printf("booking: recording rejected attempt failed: %v", appendErr)
			}
			c.emit(rejected)
		}
		return nil, err
	}

	rec := model.ReservationRecord{
		ID:         token,
		ShowtimeID: showtimeID,
		CustomerID: customerID,
		SeatIDs:    unique,
		Status:     model.ReservationPending,
		TotalCents: total,
		ExpiresAt:  expiresAt,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := c.append(ctx, &rec); err != nil {
		if _, relErr := c.seats.Release(showtimeID, token); relErr != nil {
			log.Printf("booking: rollback of hold %s failed: %v", token, relErr)
		}
		return nil, &StoreError{Op: "append hold", Err: err}
	}

	r := &reservation{rec: rec}
	r.timer = time.AfterFunc(expiresAt.Sub(now), func() { c.expire(token) })
	c.mu.Lock()
	c.reservations[token] = r
	c.mu.Unlock()

	out := rec
	return &out, nil
}

// Confirm finalizes a hold.  It is idempotent: confirming a reservation
// that is already CONFIRMED returns the original record again.  A lapsed
// hold yields seatmap.ErrExpired, an unknown token seatmap.ErrNotFound,
// and a cancelled reservation ErrAlreadyFinal.
func (c *Coordinator) Confirm(ctx context.Context, token string) (*model.ReservationRecord, error) {
	r := c.lookup(token)
	if r == nil {
		return nil, seatmap.ErrNotFound
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	switch r.rec.Status {
	case model.ReservationConfirmed:
		out := r.rec
		return &out, nil
	case model.ReservationExpired:
		return nil, seatmap.ErrExpired
	case model.ReservationCancelled, model.ReservationRejected:
		return nil, ErrAlreadyFinal
	}

	now := c.now().UTC()
	if !r.rec.ExpiresAt.After(now) {
		c.expireLocked(r)
		return nil, seatmap.ErrExpired
	}
	if _, err := c.seats.Confirm(r.rec.ShowtimeID, token); err != nil {
		// The lazy reclaim may have beaten the timer to a lapsed hold.
		if errors.Is(err, seatmap.ErrExpired) || errors.Is(err, seatmap.ErrNotFound) {
			c.expireLocked(r)
			return nil, seatmap.ErrExpired
		}
		return nil, err
	}

	confirmed := r.rec
	confirmed.Status = model.ReservationConfirmed
	confirmed.ExpiresAt = time.Time{}
	confirmed.UpdatedAt = now
	if err := c.append(ctx, &confirmed); err != nil {
		c.seats.Unconfirm(r.rec.ShowtimeID, token)
		return nil, &StoreError{Op: "append confirm", Err: err}
	}

	r.stopTimerLocked()
	r.rec = confirmed
	c.emit(confirmed)
	out := confirmed
	return &out, nil
}

// Cancel releases a pending hold at the customer's request.  Cancelling
// an already cancelled reservation returns the record again; cancelling
// a confirmed one fails with ErrAlreadyFinal and an expired one with
// seatmap.ErrExpired.
func (c *Coordinator) Cancel(ctx context.Context, token string) (*model.ReservationRecord, error) {
	r := c.lookup(token)
	if r == nil {
		return nil, seatmap.ErrNotFound
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	switch r.rec.Status {
	case model.ReservationCancelled:
		out := r.rec
		return &out, nil
	case model.ReservationConfirmed, model.ReservationRejected:
		return nil, ErrAlreadyFinal
	case model.ReservationExpired:
		return nil, seatmap.ErrExpired
	}

	// Persist first: if the append fails nothing has changed and the
	// hold simply stays in place.
	cancelled := r.rec
	cancelled.Status = model.ReservationCancelled
	cancelled.ExpiresAt = time.Time{}
	cancelled.UpdatedAt = c.now().UTC()
	if err := c.append(ctx, &cancelled); err != nil {
		return nil, &StoreError{Op: "append cancel", Err: err}
	}

	if _, err := c.seats.Release(r.rec.ShowtimeID, token); err != nil && !errors.Is(err, seatmap.ErrNotFound) {
		log.Printf("booking: releasing seats for cancel %s failed: %v", token, err)
	}
	r.stopTimerLocked()
	r.rec = cancelled
	c.emit(cancelled)
	out := cancelled
	return &out, nil
}

// Get returns the coordinator's current view of a reservation.
func (c *Coordinator) Get(token string) (*model.ReservationRecord, error) {
	r := c.lookup(token)
	if r == nil {
		return nil, seatmap.ErrNotFound
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	out := r.rec
	return &out, nil
}

// expire is the timer callback for a hold that was neither confirmed nor
// cancelled within its TTL.
func (c *Coordinator) expire(token string) {
	r := c.lookup(token)
	if r == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.rec.Status != model.ReservationPending {
		return
	}
	c.expireLocked(r)
}

// expireLocked transitions a pending reservation to EXPIRED.  The seats
// are freed regardless of whether the ledger append succeeds: a pending
// entry with a lapsed expiry already counts as free on replay, so the
// uniqueness invariant is safe either way.
func (c *Coordinator) expireLocked(r *reservation) {
	token := r.rec.ID
	if _, err := c.seats.Release(r.rec.ShowtimeID, token); err != nil && !errors.Is(err, seatmap.ErrNotFound) {
		log.Printf("booking: releasing seats for expired hold %s failed: %v", token, err)
	}
	expired := r.rec
	expired.Status = model.ReservationExpired
	expired.ExpiresAt = time.Time{}
	expired.UpdatedAt = c.now().UTC()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := c.append(ctx, &expired); err != nil {
		log.Printf("booking: recording expiry of %s failed: %v", token, err)
	}
	r.stopTimerLocked()
	r.rec = expired
	c.emit(expired)
}

// Restore rebuilds the coordinator's and the seat map's live state for a
// showtime from the ledger.  Confirmed reservations become SOLD seats;
// unexpired pending holds are re-held and get a fresh expiry timer.
func (c *Coordinator) Restore(ctx context.Context, showtimeID uint64) error {
	state, err := c.log.Replay(ctx, showtimeID, c.now().UTC())
	if err != nil {
		return err
	}
	for _, rec := range state.Sold {
		if err := c.seats.RestoreSold(showtimeID, rec.ID, rec.CustomerID, rec.SeatIDs); err != nil {
			return err
		}
		c.track(rec, nil)
	}
	for _, rec := range state.Holds {
		if err := c.seats.RestoreHold(showtimeID, rec.ID, rec.CustomerID, rec.SeatIDs, rec.ExpiresAt); err != nil {
			return err
		}
		token := rec.ID
		timer := time.AfterFunc(rec.ExpiresAt.Sub(c.now()), func() { c.expire(token) })
		c.track(rec, timer)
	}
	return nil
}

// Close stops every outstanding expiry timer.  Call before tearing down
// the ledger store so no timer fires into a closed database.
func (c *Coordinator) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, r := range c.reservations {
		r.mu.Lock()
		r.stopTimerLocked()
		r.mu.Unlock()
	}
}

func (c *Coordinator) lookup(token string) *reservation {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.reservations[token]
}

func (c *Coordinator) track(rec model.ReservationRecord, timer *time.Timer) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.reservations[rec.ID] = &reservation{rec: rec, timer: timer}
}

func (c *Coordinator) append(ctx context.Context, rec *model.ReservationRecord) error {
	return c.log.Append(ctx, &ledger.Entry{
		ReservationID: rec.ID,
		ShowtimeID:    rec.ShowtimeID,
		CustomerID:    rec.CustomerID,
		SeatIDs:       rec.SeatIDs,
		Status:        rec.Status,
		TotalCents:    rec.TotalCents,
		ExpiresAt:     rec.ExpiresAt,
		RecordedAt:    rec.UpdatedAt,
	})
}

// emit publishes a terminal-transition event without blocking the caller.
// Delivery failures are logged and never affect the reservation.
func (c *Coordinator) emit(rec model.ReservationRecord) {
	ev := notify.BookingEvent{
		ReservationID: rec.ID,
		ShowtimeID:    rec.ShowtimeID,
		CustomerID:    rec.CustomerID,
		SeatIDs:       rec.SeatIDs,
		Status:        rec.Status,
		TotalCents:    rec.TotalCents,
		OccurredAt:    rec.UpdatedAt.Format(time.RFC3339),
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := c.sink.Publish(ctx, ev); err != nil {
			log.Printf("booking: notification for %s failed: %v", ev.ReservationID, err)
		}
	}()
}

func (r *reservation) stopTimerLocked() {
	if r.timer != nil {
		r.timer.Stop()
		r.timer = nil
	}
}

func dedupe(ids []uint64) []uint64 {
	seen := make(map[uint64]struct{}, len(ids))
	out := make([]uint64, 0, len(ids))
	for _, id := range ids {
		if id == 0 {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
