package resolver

import (
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/chronolot/chronolot/internal/raffle"
)

var (
	ErrNoWinner   = errors.New("no winner found")
	ErrScanBudget = errors.New("winning time too distant for automatic search")
)

// DefaultMaxScanSteps bounds the backward walk at one year of minutes.
const DefaultMaxScanSteps = 366 * 24 * 60

// Resolver runs the deterministic nearest-match search: the entrant whose
// slot is closest to, but not after, the winning time wins.
type Resolver struct {
	maxSteps int64
}

// New creates a resolver with the given step budget; non-positive values use
// the default.
func New(maxSteps int64) *Resolver {
	if maxSteps <= 0 {
		maxSteps = DefaultMaxScanSteps
	}
	return &Resolver{maxSteps: maxSteps}
}

// Resolve returns the winning entrant for a raffle whose winning time is
// fixed. It checks the exact slot first, then walks backward in 60-second
// steps down to and including the start slot. The walk is a bounded linear
// scan: a winning time farther from the start than the step budget fails
// ErrScanBudget and must go through the manual settlement path instead.
//
// Callers must invoke it while holding the raffle's lock (inside Store.With);
// the raffle is closed at that point so the entry table is stable.
func (res *Resolver) Resolve(r *raffle.Raffle, winningTime int64) (uuid.UUID, error) {
	slot := raffle.RoundDown(winningTime)
	floor := raffle.RoundDown(r.StartTime)

	steps := (slot - floor) / raffle.SlotSeconds
	if steps > res.maxSteps {
		return uuid.Nil, fmt.Errorf("%w: %d slots from start, budget %d", ErrScanBudget, steps, res.maxSteps)
	}

	for ; slot >= floor; slot -= raffle.SlotSeconds {
		if entrant, ok := r.EntrantAt(slot); ok {
			return entrant, nil
		}
	}

	return uuid.Nil, ErrNoWinner
}
