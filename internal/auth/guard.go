package auth

import (
	"errors"

	"github.com/google/uuid"
)

var ErrNotAuthorized = errors.New("not authorized")

// Guard performs the role checks shared by the registry, settlement engine
// and treasury. There is exactly one protocol operator; beneficiaries are
// per raffle. Caller identity is assumed already authenticated by the
// hosting environment (the gateway's token layer).
type Guard struct {
	operator uuid.UUID
}

// NewGuard creates a guard for the given protocol operator.
func NewGuard(operator uuid.UUID) *Guard {
	return &Guard{operator: operator}
}

// Operator returns the protocol operator identity.
func (g *Guard) Operator() uuid.UUID {
	return g.operator
}

// RequireOperator fails unless caller is the protocol operator.
func (g *Guard) RequireOperator(caller uuid.UUID) error {
	if caller != g.operator {
		return ErrNotAuthorized
	}
	return nil
}

// RequireBeneficiaryOrOperator fails unless caller is the raffle's
// beneficiary or the protocol operator.
func (g *Guard) RequireBeneficiaryOrOperator(beneficiary, caller uuid.UUID) error {
	if caller != beneficiary && caller != g.operator {
		return ErrNotAuthorized
	}
	return nil
}
