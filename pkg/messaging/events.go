package messaging

import (
	"github.com/google/uuid"
)

// Event subjects
const (
	EventTypeRaffleCreated   = "raffle.created"
	EventTypeRaffleEntered   = "raffle.entered"
	EventTypeRaffleClosed    = "raffle.closed"
	EventTypeWinningTimeSet  = "raffle.winning_time_set"
	EventTypeRaffleWon       = "raffle.won"
	EventTypeBeneficiaryPaid = "raffle.beneficiary_paid"
	EventTypePayoutRetried   = "raffle.payout_retried"

	EventTypeFeeBpsChanged = "treasury.fee_bps_changed"
	EventTypeFeeWithdrawn  = "treasury.fee_withdrawn"
)

// RaffleCreatedEvent announces a new raffle.
type RaffleCreatedEvent struct {
	RaffleID    uint64    `json:"raffle_id"`
	Beneficiary uuid.UUID `json:"beneficiary"`
	EntryFee    string    `json:"entry_fee"`
	StartTime   int64     `json:"start_time"`
}

// RaffleEnteredEvent announces an accepted guess.
type RaffleEnteredEvent struct {
	RaffleID     uint64    `json:"raffle_id"`
	Entrant      uuid.UUID `json:"entrant"`
	RoundedGuess int64     `json:"rounded_guess"`
	PrizePool    string    `json:"prize_pool"`
}

// RaffleClosedEvent announces that a raffle stopped accepting entries.
type RaffleClosedEvent struct {
	RaffleID uint64    `json:"raffle_id"`
	Caller   uuid.UUID `json:"caller"`
}

// WinningTimeSetEvent announces the fixed real event time.
type WinningTimeSetEvent struct {
	RaffleID    uint64    `json:"raffle_id"`
	Caller      uuid.UUID `json:"caller"`
	WinningTime int64     `json:"winning_time"`
}

// RaffleWonEvent announces the winner leg of a settlement.
type RaffleWonEvent struct {
	RaffleID     uint64    `json:"raffle_id"`
	Winner       uuid.UUID `json:"winner"`
	WinningSlot  int64     `json:"winning_slot"`
	Payout       string    `json:"payout"`
	ProtocolFee  string    `json:"protocol_fee"`
	ManualSettle bool      `json:"manual_settle,omitempty"`
}

// BeneficiaryPaidEvent announces the beneficiary leg of a settlement.
type BeneficiaryPaidEvent struct {
	RaffleID    uint64    `json:"raffle_id"`
	Beneficiary uuid.UUID `json:"beneficiary"`
	Payout      string    `json:"payout"`
}

// FeeBpsChangedEvent announces a protocol fee change.
type FeeBpsChangedEvent struct {
	Caller uuid.UUID `json:"caller"`
	OldBps int64     `json:"old_bps"`
	NewBps int64     `json:"new_bps"`
}

// FeeWithdrawnEvent announces a treasury withdrawal.
type FeeWithdrawnEvent struct {
	Operator uuid.UUID `json:"operator"`
	Amount   string    `json:"amount"`
}
