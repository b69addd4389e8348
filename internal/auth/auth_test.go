package auth

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGuard(t *testing.T) {
	operator := uuid.New()
	beneficiary := uuid.New()
	stranger := uuid.New()
	guard := NewGuard(operator)

	t.Run("operator check", func(t *testing.T) {
		assert.NoError(t, guard.RequireOperator(operator))
		assert.ErrorIs(t, guard.RequireOperator(beneficiary), ErrNotAuthorized)
		assert.ErrorIs(t, guard.RequireOperator(uuid.Nil), ErrNotAuthorized)
	})

	t.Run("beneficiary or operator check", func(t *testing.T) {
		assert.NoError(t, guard.RequireBeneficiaryOrOperator(beneficiary, beneficiary))
		assert.NoError(t, guard.RequireBeneficiaryOrOperator(beneficiary, operator))
		assert.ErrorIs(t, guard.RequireBeneficiaryOrOperator(beneficiary, stranger), ErrNotAuthorized)
	})

	t.Run("exposes the operator identity", func(t *testing.T) {
		assert.Equal(t, operator, guard.Operator())
	})
}

func TestTokenService(t *testing.T) {
	svc := NewTokenService("test-secret", time.Hour)

	t.Run("should round-trip the caller identity", func(t *testing.T) {
		caller := uuid.New()
		token, err := svc.Issue(caller)
		require.NoError(t, err)

		got, err := svc.Verify(token)
		require.NoError(t, err)
		assert.Equal(t, caller, got)
	})

	t.Run("should accept a Bearer prefix", func(t *testing.T) {
		caller := uuid.New()
		token, err := svc.Issue(caller)
		require.NoError(t, err)

		got, err := svc.Verify("Bearer " + token)
		require.NoError(t, err)
		assert.Equal(t, caller, got)
	})

	t.Run("should reject tokens signed with another secret", func(t *testing.T) {
		other := NewTokenService("other-secret", time.Hour)
		token, err := other.Issue(uuid.New())
		require.NoError(t, err)

		_, err = svc.Verify(token)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("should reject expired tokens", func(t *testing.T) {
		expired := NewTokenService("test-secret", -time.Minute)
		token, err := expired.Issue(uuid.New())
		require.NoError(t, err)

		_, err = svc.Verify(token)
		assert.ErrorIs(t, err, ErrTokenExpired)
	})

	t.Run("should reject garbage", func(t *testing.T) {
		_, err := svc.Verify("not-a-token")
		assert.ErrorIs(t, err, ErrInvalidToken)
	})
}
