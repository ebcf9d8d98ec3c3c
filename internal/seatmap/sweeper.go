package seatmap

import (
	"context"
	"log"
	"time"
)

// Sweeper periodically reclaims lapsed holds as a safety net behind the
// lazy reclamation done on access.  It is cancellable through the context
// passed to Start and joinable through Stop, so it can be shut down
// before the seat map's dependents are torn down.
type Sweeper struct {
	seats    *SeatMap
	interval time.Duration
	cancel   context.CancelFunc
	done     chan struct{}
}

// NewSweeper returns a sweeper for the given map.  A non-positive
// interval falls back to one second.
func NewSweeper(seats *SeatMap, interval time.Duration) *Sweeper {
	if interval <= 0 {
		interval = time.Second
	}
	return &Sweeper{seats: seats, interval: interval}
}

// Start launches the sweep loop.  Calling Start twice is a programming
// error and panics.
func (s *Sweeper) Start(ctx context.Context) {
	if s.done != nil {
		panic("sweeper already started")
	}
	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})
	go func() {
		defer close(s.done)
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if n := s.seats.Sweep(); n > 0 {
					log.Printf("seatmap: sweep reclaimed %d lapsed holds", n)
				}
			}
		}
	}()
}

// Stop cancels the sweep loop and waits for it to exit.  Safe to call
// multiple times and before Start.
func (s *Sweeper) Stop() {
	if s.done == nil {
		return
	}
	s.cancel()
	<-s.done
	s.done = nil
}
