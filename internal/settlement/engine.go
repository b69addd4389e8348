package settlement

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/chronolot/chronolot/internal/auth"
	"github.com/chronolot/chronolot/internal/custody"
	"github.com/chronolot/chronolot/internal/raffle"
	"github.com/chronolot/chronolot/internal/resolver"
	"github.com/chronolot/chronolot/internal/treasury"
	"github.com/chronolot/chronolot/pkg/clock"
	"github.com/chronolot/chronolot/pkg/messaging"
	"github.com/chronolot/chronolot/pkg/money"
)

const (
	roleWinner      = "winner"
	roleBeneficiary = "beneficiary"
)

var (
	ErrAlreadyClosed         = errors.New("raffle already closed")
	ErrWinningTimeTooHigh    = errors.New("winning time must be in the past")
	ErrWinningTimeTooLow     = errors.New("winning time before raffle start")
	ErrWinningTimeAlreadySet = errors.New("winning time already set")
	ErrNotReady              = errors.New("raffle not ready for settlement")
	ErrPoolEmpty             = errors.New("prize pool is empty")
	ErrTransferFailed        = errors.New("payout transfer failed")
)

// Engine drives each raffle through Open -> Closed -> WinningTimeSet ->
// Settled, computes the fee/payout split and executes payouts. Settlement is
// terminal: the pool is zeroed before any transfer leaves the engine, so a
// raffle can never pay out twice. Failed transfer legs stay recorded on the
// raffle and are re-issued through RetryPayouts.
type Engine struct {
	store    *raffle.Store
	guard    *auth.Guard
	treasury *treasury.Treasury
	bank     custody.ValueTransfer
	resolver *resolver.Resolver
	clock    clock.Clock
	events   *messaging.Client
	log      *zap.Logger
}

// New wires a settlement engine.
func New(store *raffle.Store, guard *auth.Guard, trs *treasury.Treasury, bank custody.ValueTransfer, res *resolver.Resolver, clk clock.Clock, events *messaging.Client, log *zap.Logger) *Engine {
	return &Engine{
		store:    store,
		guard:    guard,
		treasury: trs,
		bank:     bank,
		resolver: res,
		clock:    clk,
		events:   events,
		log:      log,
	}
}

// Close stops a raffle from accepting entries. Beneficiary or operator only.
func (e *Engine) Close(ctx context.Context, raffleID uint64, caller uuid.UUID) error {
	return e.store.With(raffleID, func(r *raffle.Raffle) error {
		if err := e.guard.RequireBeneficiaryOrOperator(r.Beneficiary, caller); err != nil {
			return err
		}
		if !r.IsOpen {
			return ErrAlreadyClosed
		}

		r.IsOpen = false

		e.log.Info("raffle closed", zap.Uint64("raffle_id", raffleID))
		e.events.Publish(ctx, messaging.EventTypeRaffleClosed, messaging.RaffleClosedEvent{
			RaffleID: raffleID,
			Caller:   caller,
		})
		return nil
	})
}

// SetWinningTime fixes the real event time for a raffle. The candidate must
// already have happened (strictly before now) and fall within the raffle's
// lifetime; it is rounded down to its minute and closing is implied.
func (e *Engine) SetWinningTime(ctx context.Context, raffleID uint64, caller uuid.UUID, candidate int64) error {
	return e.store.With(raffleID, func(r *raffle.Raffle) error {
		if err := e.guard.RequireBeneficiaryOrOperator(r.Beneficiary, caller); err != nil {
			return err
		}
		if candidate >= e.clock.Now() {
			return fmt.Errorf("%w: %d", ErrWinningTimeTooHigh, candidate)
		}
		if r.WinningTime != 0 {
			return ErrWinningTimeAlreadySet
		}
		if candidate < r.StartTime {
			return fmt.Errorf("%w: %d, start %d", ErrWinningTimeTooLow, candidate, r.StartTime)
		}

		r.WinningTime = raffle.RoundDown(candidate)
		r.IsOpen = false

		e.log.Info("winning time set",
			zap.Uint64("raffle_id", raffleID),
			zap.Int64("winning_time", r.WinningTime))
		e.events.Publish(ctx, messaging.EventTypeWinningTimeSet, messaging.WinningTimeSetEvent{
			RaffleID:    raffleID,
			Caller:      caller,
			WinningTime: r.WinningTime,
		})
		return nil
	})
}

// Settle resolves the winner by the automatic backward search and pays out.
// Requires a closed raffle with a fixed winning time and a non-empty pool.
// A second call on a settled raffle fails ErrPoolEmpty.
func (e *Engine) Settle(ctx context.Context, raffleID uint64) error {
	return e.store.With(raffleID, func(r *raffle.Raffle) error {
		if r.IsOpen || r.WinningTime == 0 {
			return ErrNotReady
		}
		if r.PrizePool.IsZero() {
			return ErrPoolEmpty
		}

		winner, err := e.resolver.Resolve(r, r.WinningTime)
		if err != nil {
			return err
		}

		return e.payout(ctx, r, winner, r.WinningTime, false)
	})
}

// ManualSettle is the operator-only escape hatch for raffles whose winning
// time makes the automatic search impractical. It looks up the entry table
// exactly at the given slot, with no backward walk, and settles on it,
// forcing the raffle closed and overwriting the stored winning time with the
// slot actually paid.
func (e *Engine) ManualSettle(ctx context.Context, raffleID uint64, caller uuid.UUID, exactGuessTime int64) error {
	if err := e.guard.RequireOperator(caller); err != nil {
		return err
	}

	return e.store.With(raffleID, func(r *raffle.Raffle) error {
		if r.PrizePool.IsZero() {
			return ErrPoolEmpty
		}

		slot := raffle.RoundDown(exactGuessTime)
		winner, ok := r.EntrantAt(slot)
		if !ok {
			return fmt.Errorf("%w: no entry at slot %d", resolver.ErrNoWinner, slot)
		}

		r.IsOpen = false
		r.WinningTime = slot

		return e.payout(ctx, r, winner, slot, true)
	})
}

// RetryPayouts re-issues the unpaid transfer legs of a settled raffle.
// Operator only; succeeds as a no-op when nothing is pending.
func (e *Engine) RetryPayouts(ctx context.Context, raffleID uint64, caller uuid.UUID) error {
	if err := e.guard.RequireOperator(caller); err != nil {
		return err
	}

	return e.store.With(raffleID, func(r *raffle.Raffle) error {
		if !r.Settled {
			return ErrNotReady
		}

		for i := range r.Pending {
			leg := &r.Pending[i]
			if leg.Paid {
				continue
			}
			if err := e.bank.Credit(ctx, leg.Recipient, leg.Amount); err != nil {
				return fmt.Errorf("%w: %s leg: %v", ErrTransferFailed, leg.Role, err)
			}
			leg.Paid = true

			e.log.Info("payout retried",
				zap.Uint64("raffle_id", raffleID),
				zap.String("role", leg.Role),
				zap.String("amount", leg.Amount.String()))
			e.events.Publish(ctx, messaging.EventTypePayoutRetried, messaging.BeneficiaryPaidEvent{
				RaffleID:    raffleID,
				Beneficiary: leg.Recipient,
				Payout:      leg.Amount.String(),
			})
		}
		return nil
	})
}

// payout runs the terminal settlement sequence under the raffle's lock:
// split the pool, accrue the fee, zero the pool, record the payout legs,
// then execute the transfers. The pool is zeroed before any credit is
// requested so a re-entrant or repeated settle finds an empty pool.
func (e *Engine) payout(ctx context.Context, r *raffle.Raffle, winner uuid.UUID, slot int64, manual bool) error {
	pool := r.PrizePool
	fee, payoutAmt, err := money.Split(pool, e.treasury.FeeBps())
	if err != nil {
		return err
	}

	e.treasury.Accrue(fee)
	r.PrizePool = decimal.Zero
	r.Settled = true
	r.Pending = []raffle.PayoutLeg{
		{Role: roleWinner, Recipient: winner, Amount: payoutAmt},
		{Role: roleBeneficiary, Recipient: r.Beneficiary, Amount: payoutAmt},
	}

	e.log.Info("raffle settled",
		zap.Uint64("raffle_id", r.ID),
		zap.String("winner", winner.String()),
		zap.Int64("winning_slot", slot),
		zap.String("pool", pool.String()),
		zap.String("fee", fee.String()),
		zap.String("payout", payoutAmt.String()),
		zap.Bool("manual", manual))

	for i := range r.Pending {
		leg := &r.Pending[i]
		if err := e.bank.Credit(ctx, leg.Recipient, leg.Amount); err != nil {
			return fmt.Errorf("%w: %s leg: %v", ErrTransferFailed, leg.Role, err)
		}
		leg.Paid = true

		switch leg.Role {
		case roleWinner:
			e.events.Publish(ctx, messaging.EventTypeRaffleWon, messaging.RaffleWonEvent{
				RaffleID:     r.ID,
				Winner:       winner,
				WinningSlot:  slot,
				Payout:       payoutAmt.String(),
				ProtocolFee:  fee.String(),
				ManualSettle: manual,
			})
		case roleBeneficiary:
			e.events.Publish(ctx, messaging.EventTypeBeneficiaryPaid, messaging.BeneficiaryPaidEvent{
				RaffleID:    r.ID,
				Beneficiary: leg.Recipient,
				Payout:      payoutAmt.String(),
			})
		}
	}

	return nil
}
