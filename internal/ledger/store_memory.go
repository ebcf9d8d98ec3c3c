package ledger

import (
	"context"
	"sync"
	"time"
)

// MemoryStore keeps ledger entries in process memory.  It backs tests
// and single-node deployments that accept losing the audit trail on
// restart; production uses the MySQL store.
type MemoryStore struct {
	mu      sync.Mutex
	entries []Entry
	seq     uint64
	now     func() time.Time
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{now: time.Now}
}

// Append assigns the next sequence number and records the entry.
func (s *MemoryStore) Append(_ context.Context, e *Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	e.Seq = s.seq
	if e.RecordedAt.IsZero() {
		e.RecordedAt = s.now().UTC()
	}
	cp := *e
	cp.SeatIDs = append([]uint64(nil), e.SeatIDs...)
	s.entries = append(s.entries, cp)
	return nil
}

// ByCustomer returns the customer's entries in append order.
func (s *MemoryStore) ByCustomer(_ context.Context, customerID uint64) ([]Entry, error) {
	return s.filter(func(e *Entry) bool { return e.CustomerID == customerID }), nil
}

// ByShowtime returns the showtime's entries in append order.
func (s *MemoryStore) ByShowtime(_ context.Context, showtimeID uint64) ([]Entry, error) {
	return s.filter(func(e *Entry) bool { return e.ShowtimeID == showtimeID }), nil
}

func (s *MemoryStore) filter(keep func(*Entry) bool) []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Entry
	for i := range s.entries {
		if keep(&s.entries[i]) {
			cp := s.entries[i]
			cp.SeatIDs = append([]uint64(nil), s.entries[i].SeatIDs...)
			out = append(out, cp)
		}
	}
	return out
}
