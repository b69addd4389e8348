package registry

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/chronolot/chronolot/internal/raffle"
	"github.com/chronolot/chronolot/pkg/clock"
	"github.com/chronolot/chronolot/pkg/messaging"
	"github.com/chronolot/chronolot/pkg/money"
)

var (
	ErrInvalidBeneficiary = errors.New("invalid beneficiary")
	ErrEntryFeeTooLow     = errors.New("entry fee too low")
)

// Registry creates and indexes raffles.
type Registry struct {
	store  *raffle.Store
	clock  clock.Clock
	events *messaging.Client
	log    *zap.Logger
}

// New creates a registry over the shared raffle store.
func New(store *raffle.Store, clk clock.Clock, events *messaging.Client, log *zap.Logger) *Registry {
	return &Registry{
		store:  store,
		clock:  clk,
		events: events,
		log:    log,
	}
}

// Create opens a new raffle and returns its id. The beneficiary must be a
// real identity and the entry fee must exceed one whole unit of the
// reference currency.
func (g *Registry) Create(ctx context.Context, beneficiary uuid.UUID, entryFee decimal.Decimal) (uint64, error) {
	if beneficiary == uuid.Nil {
		return 0, ErrInvalidBeneficiary
	}
	if err := money.Validate(entryFee); err != nil {
		return 0, fmt.Errorf("%w: %s", ErrEntryFeeTooLow, entryFee)
	}
	if entryFee.LessThanOrEqual(money.MinEntryFee) {
		return 0, fmt.Errorf("%w: %s (minimum is %s, exclusive)", ErrEntryFeeTooLow, entryFee, money.MinEntryFee)
	}

	now := g.clock.Now()
	r := g.store.Allocate(beneficiary, entryFee, now)

	g.log.Info("raffle created",
		zap.Uint64("raffle_id", r.ID),
		zap.String("beneficiary", beneficiary.String()),
		zap.String("entry_fee", entryFee.String()))

	g.events.Publish(ctx, messaging.EventTypeRaffleCreated, messaging.RaffleCreatedEvent{
		RaffleID:    r.ID,
		Beneficiary: beneficiary,
		EntryFee:    entryFee.String(),
		StartTime:   now,
	})

	return r.ID, nil
}

// Count returns the number of raffles ever created (the highest id issued).
func (g *Registry) Count() uint64 {
	return g.store.Count()
}

// Snapshot returns a raffle's read model.
func (g *Registry) Snapshot(id uint64) (raffle.Snapshot, error) {
	return g.store.Snapshot(id)
}

// EntrantAt returns the entrant holding a guess slot of a raffle.
func (g *Registry) EntrantAt(id uint64, slot int64) (uuid.UUID, bool, error) {
	var (
		entrant uuid.UUID
		ok      bool
	)
	err := g.store.View(id, func(r *raffle.Raffle) {
		entrant, ok = r.EntrantAt(raffle.RoundDown(slot))
	})
	return entrant, ok, err
}
