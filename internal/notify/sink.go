// Package notify delivers booking outcome events to external consumers.
// Delivery is fire-and-forget: the reservation state never depends on
// whether an event arrived.
package notify

import (
	"context"
	"log"
)

// BookingEvent describes one terminal reservation transition.  It carries
// enough information for downstream consumers to log, email or feed
// analytics without querying the primary store.
type BookingEvent struct {
	ReservationID string   `json:"reservation_id"`
	ShowtimeID    uint64   `json:"showtime_id"`
	CustomerID    uint64   `json:"customer_id"`
	SeatIDs       []uint64 `json:"seat_ids"`
	Status        string   `json:"status"`
	TotalCents    uint32   `json:"total_cents"`
	OccurredAt    string   `json:"occurred_at"`
}

// Sink receives booking events.  Implementations must be safe for
// concurrent use.
type Sink interface {
	Publish(ctx context.Context, ev BookingEvent) error
}

// NopSink discards every event.  Used in tests and as the default when
// no sink is configured.
type NopSink struct{}

func (NopSink) Publish(context.Context, BookingEvent) error { return nil }

// LogSink writes events to the process log.  It is the fallback when the
// message broker is unconfigured or unreachable at startup, so bookings
// keep working with degraded delivery.
type LogSink struct{}

func (LogSink) Publish(_ context.Context, ev BookingEvent) error {
	log.Printf("notify: reservation=%s status=%s customer=%d showtime=%d seats=%v total=%d",
		ev.ReservationID, ev.Status, ev.CustomerID, ev.ShowtimeID, ev.SeatIDs, ev.TotalCents)
	return nil
}
