package entries

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/chronolot/chronolot/internal/custody"
	"github.com/chronolot/chronolot/internal/raffle"
	"github.com/chronolot/chronolot/pkg/messaging"
)

var (
	ErrRaffleClosed  = errors.New("raffle is closed")
	ErrGuessTooEarly = errors.New("guess is before raffle start")
	ErrGuessTaken    = errors.New("guess slot already taken")
)

// Ledger records guesses and grows prize pools. One entrant per guess slot
// per raffle; the first writer wins the slot.
type Ledger struct {
	store  *raffle.Store
	bank   custody.ValueTransfer
	events *messaging.Client
	log    *zap.Logger
}

// New creates an entry ledger over the shared raffle store.
func New(store *raffle.Store, bank custody.ValueTransfer, events *messaging.Client, log *zap.Logger) *Ledger {
	return &Ledger{
		store:  store,
		bank:   bank,
		events: events,
		log:    log,
	}
}

// Enter registers a guess for an open raffle and debits the entry fee from
// the entrant. The slot is registered and the pool grown before the debit is
// requested; a failed debit rolls the registration back, leaving no trace of
// the attempt. Returns the rounded guess slot actually registered.
func (l *Ledger) Enter(ctx context.Context, raffleID uint64, rawGuess int64, entrant uuid.UUID) (int64, error) {
	var rounded int64

	err := l.store.With(raffleID, func(r *raffle.Raffle) error {
		if !r.IsOpen {
			return ErrRaffleClosed
		}

		rounded = raffle.RoundDown(rawGuess)
		if rounded < r.StartTime {
			return fmt.Errorf("%w: slot %d, start %d", ErrGuessTooEarly, rounded, r.StartTime)
		}

		if !r.SetEntrant(rounded, entrant) {
			return fmt.Errorf("%w: raffle %d slot %d", ErrGuessTaken, raffleID, rounded)
		}
		r.PrizePool = r.PrizePool.Add(r.EntryFee)

		// State first, money second: a failed debit must unwind the
		// registration so pool and entries stay consistent.
		if err := l.bank.Debit(ctx, entrant, r.EntryFee); err != nil {
			r.RemoveEntrant(rounded)
			r.PrizePool = r.PrizePool.Sub(r.EntryFee)
			return fmt.Errorf("entry fee debit failed: %w", err)
		}

		l.events.Publish(ctx, messaging.EventTypeRaffleEntered, messaging.RaffleEnteredEvent{
			RaffleID:     raffleID,
			Entrant:      entrant,
			RoundedGuess: rounded,
			PrizePool:    r.PrizePool.String(),
		})

		return nil
	})
	if err != nil {
		return 0, err
	}

	l.log.Info("entry accepted",
		zap.Uint64("raffle_id", raffleID),
		zap.String("entrant", entrant.String()),
		zap.Int64("slot", rounded))

	return rounded, nil
}
