package raffle

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// SlotSeconds is the width of a guess slot. Guesses and winning times are
// truncated down to the start of their minute.
const SlotSeconds = 60

// RoundDown truncates a Unix timestamp to the start of its minute.
func RoundDown(t int64) int64 {
	return t - t%SlotSeconds
}

// PayoutLeg is one credit owed by a settled raffle. Legs are recorded before
// any transfer is issued so a failed transfer can be retried without
// reopening the settlement.
type PayoutLeg struct {
	Role      string // "winner" or "beneficiary"
	Recipient uuid.UUID
	Amount    decimal.Decimal
	Paid      bool
}

// Raffle is one closest-timestamp contest. All mutation happens through
// Store.With, which serializes writers per raffle.
type Raffle struct {
	ID          uint64
	Beneficiary uuid.UUID
	EntryFee    decimal.Decimal
	StartTime   int64
	IsOpen      bool
	WinningTime int64 // 0 until fixed
	PrizePool   decimal.Decimal
	Settled     bool
	Pending     []PayoutLeg

	entries map[int64]uuid.UUID // rounded guess -> entrant, first writer wins
}

// EntrantAt returns the entrant holding a guess slot, if any.
func (r *Raffle) EntrantAt(slot int64) (uuid.UUID, bool) {
	entrant, ok := r.entries[slot]
	return entrant, ok
}

// SetEntrant records an entrant at a guess slot. It reports false if the
// slot is already taken.
func (r *Raffle) SetEntrant(slot int64, entrant uuid.UUID) bool {
	if _, taken := r.entries[slot]; taken {
		return false
	}
	r.entries[slot] = entrant
	return true
}

// RemoveEntrant clears a guess slot. Used only to roll back a registration
// whose entry-fee debit failed.
func (r *Raffle) RemoveEntrant(slot int64) {
	delete(r.entries, slot)
}

// EntryCount returns the number of accepted entries.
func (r *Raffle) EntryCount() int {
	return len(r.entries)
}

// UnpaidLegs returns the pending payout legs not yet transferred.
func (r *Raffle) UnpaidLegs() []PayoutLeg {
	var legs []PayoutLeg
	for _, leg := range r.Pending {
		if !leg.Paid {
			legs = append(legs, leg)
		}
	}
	return legs
}

// Snapshot is the read model of a raffle served by the gateway.
type Snapshot struct {
	ID          uint64    `json:"id"`
	Beneficiary uuid.UUID `json:"beneficiary"`
	EntryFee    string    `json:"entry_fee"`
	StartTime   int64     `json:"start_time"`
	IsOpen      bool      `json:"is_open"`
	WinningTime int64     `json:"winning_time"`
	PrizePool   string    `json:"prize_pool"`
	Settled     bool      `json:"settled"`
	EntryCount  int       `json:"entry_count"`
}

// Snapshot copies the raffle's stored fields. Callers must hold the raffle
// lock (i.e. call it inside Store.With or Store.View).
func (r *Raffle) Snapshot() Snapshot {
	return Snapshot{
		ID:          r.ID,
		Beneficiary: r.Beneficiary,
		EntryFee:    r.EntryFee.String(),
		StartTime:   r.StartTime,
		IsOpen:      r.IsOpen,
		WinningTime: r.WinningTime,
		PrizePool:   r.PrizePool.String(),
		Settled:     r.Settled,
		EntryCount:  len(r.entries),
	}
}
