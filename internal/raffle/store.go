package raffle

import (
	"errors"
	"sync"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var ErrNotFound = errors.New("raffle not found")

// Store is the arena of raffles. Ids are sequential from 1 and never reused.
// Each raffle carries its own mutex so operations on different raffles
// proceed fully concurrently while writers to one raffle are serialized.
type Store struct {
	mu      sync.RWMutex
	raffles map[uint64]*lockedRaffle
	lastID  uint64
}

type lockedRaffle struct {
	mu sync.Mutex
	r  *Raffle
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		raffles: make(map[uint64]*lockedRaffle),
	}
}

// Allocate issues the next id and stores a fresh open raffle.
func (s *Store) Allocate(beneficiary uuid.UUID, entryFee decimal.Decimal, now int64) *Raffle {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.lastID++
	r := &Raffle{
		ID:          s.lastID,
		Beneficiary: beneficiary,
		EntryFee:    entryFee,
		StartTime:   now,
		IsOpen:      true,
		PrizePool:   decimal.Zero,
		entries:     make(map[int64]uuid.UUID),
	}
	s.raffles[r.ID] = &lockedRaffle{r: r}
	return r
}

// Count returns the highest id issued.
func (s *Store) Count() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastID
}

// With runs fn with the raffle's lock held. fn sees a consistent raffle and
// may mutate it; its error is returned unchanged. Unknown ids fail
// ErrNotFound.
func (s *Store) With(id uint64, fn func(*Raffle) error) error {
	s.mu.RLock()
	lr, ok := s.raffles[id]
	s.mu.RUnlock()
	if !ok {
		return ErrNotFound
	}

	lr.mu.Lock()
	defer lr.mu.Unlock()
	return fn(lr.r)
}

// View runs fn with the raffle's lock held for reading stored fields.
func (s *Store) View(id uint64, fn func(*Raffle)) error {
	return s.With(id, func(r *Raffle) error {
		fn(r)
		return nil
	})
}

// Snapshot returns the read model of a raffle.
func (s *Store) Snapshot(id uint64) (Snapshot, error) {
	var snap Snapshot
	err := s.View(id, func(r *Raffle) {
		snap = r.Snapshot()
	})
	return snap, err
}
