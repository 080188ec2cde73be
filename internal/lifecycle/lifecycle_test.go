package lifecycle

import (
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clearmint/captable/internal/domain"
)

func TestConfirm(t *testing.T) {
	tests := []struct {
		name             string
		state            domain.SubscriptionState
		wantState        domain.SubscriptionState
		alreadyConfirmed bool
	}{
		{name: "pending confirms", state: domain.StatePending, wantState: domain.StateConfirmed},
		{name: "confirmed is no-op", state: domain.StateConfirmed, wantState: domain.StateConfirmed, alreadyConfirmed: true},
		{name: "allocated is no-op", state: domain.StateAllocated, wantState: domain.StateAllocated, alreadyConfirmed: true},
		{name: "distributed is no-op", state: domain.StateDistributed, wantState: domain.StateDistributed, alreadyConfirmed: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := Confirm(tt.state)
			require.NoError(t, err)
			assert.Equal(t, tt.wantState, result.State)
			assert.Equal(t, tt.alreadyConfirmed, result.AlreadyConfirmed)
		})
	}
}

func TestAllocate(t *testing.T) {
	amount := decimal.NewFromInt(1000)

	t.Run("confirmed allocates", func(t *testing.T) {
		result, err := Allocate(domain.StateConfirmed, domain.TokenTypeERC20, amount)
		require.NoError(t, err)
		assert.Equal(t, domain.StateAllocated, result.State)
		assert.Equal(t, domain.TokenTypeERC20, result.TokenType)
		assert.True(t, amount.Equal(result.TokenAmount))
	})

	t.Run("pending is rejected", func(t *testing.T) {
		_, err := Allocate(domain.StatePending, domain.TokenTypeERC20, amount)
		assert.ErrorIs(t, err, domain.ErrConflict)
	})

	t.Run("already allocated is rejected", func(t *testing.T) {
		_, err := Allocate(domain.StateAllocated, domain.TokenTypeERC20, amount)
		assert.ErrorIs(t, err, domain.ErrConflict)
	})

	t.Run("distributed is rejected", func(t *testing.T) {
		_, err := Allocate(domain.StateDistributed, domain.TokenTypeERC20, amount)
		assert.ErrorIs(t, err, domain.ErrConflict)
	})

	t.Run("zero amount names the field", func(t *testing.T) {
		_, err := Allocate(domain.StateConfirmed, domain.TokenTypeERC20, decimal.Zero)
		var ve *domain.ValidationError
		require.True(t, errors.As(err, &ve))
		assert.Equal(t, "token_amount", ve.Field)
	})

	t.Run("negative amount names the field", func(t *testing.T) {
		_, err := Allocate(domain.StateConfirmed, domain.TokenTypeERC20, decimal.NewFromInt(-5))
		var ve *domain.ValidationError
		require.True(t, errors.As(err, &ve))
		assert.Equal(t, "token_amount", ve.Field)
	})

	t.Run("unknown token type names the field", func(t *testing.T) {
		_, err := Allocate(domain.StateConfirmed, domain.TokenType("ERC-777"), amount)
		var ve *domain.ValidationError
		require.True(t, errors.As(err, &ve))
		assert.Equal(t, "token_type", ve.Field)
	})
}

func TestRemoveAllocation(t *testing.T) {
	t.Run("allocated returns to confirmed", func(t *testing.T) {
		state, err := RemoveAllocation(domain.StateAllocated)
		require.NoError(t, err)
		assert.Equal(t, domain.StateConfirmed, state)
	})

	t.Run("distributed is immutable", func(t *testing.T) {
		_, err := RemoveAllocation(domain.StateDistributed)
		assert.ErrorIs(t, err, domain.ErrConflict)
	})

	t.Run("confirmed has nothing to remove", func(t *testing.T) {
		_, err := RemoveAllocation(domain.StateConfirmed)
		assert.ErrorIs(t, err, domain.ErrConflict)
	})
}

func TestDistribute(t *testing.T) {
	now := time.Now()

	t.Run("allocated distributes with tx hash", func(t *testing.T) {
		result, err := Distribute(domain.StateAllocated, 42, now)
		require.NoError(t, err)
		assert.Equal(t, domain.StateDistributed, result.State)
		assert.Equal(t, now, result.DistributionDate)
		assert.Regexp(t, regexp.MustCompile(`^0x[0-9a-f]+$`), result.TxHash)
	})

	t.Run("double distribution is rejected", func(t *testing.T) {
		_, err := Distribute(domain.StateDistributed, 42, now)
		assert.ErrorIs(t, err, domain.ErrConflict)
	})

	t.Run("unallocated is rejected", func(t *testing.T) {
		for _, s := range []domain.SubscriptionState{domain.StatePending, domain.StateConfirmed} {
			_, err := Distribute(s, 42, now)
			assert.ErrorIs(t, err, domain.ErrConflict)
		}
	})
}

func TestCanDelete(t *testing.T) {
	assert.NoError(t, CanDelete(domain.StatePending))
	assert.NoError(t, CanDelete(domain.StateConfirmed))
	assert.NoError(t, CanDelete(domain.StateAllocated))
	assert.ErrorIs(t, CanDelete(domain.StateDistributed), domain.ErrConflict)
}

func TestAllocateThenRemoveRestoresConfirmed(t *testing.T) {
	// allocate followed by removeAllocation returns to the pre-allocation
	// state; confirmation survives the round trip
	allocation, err := Allocate(domain.StateConfirmed, domain.TokenTypeERC1400, decimal.NewFromInt(250))
	require.NoError(t, err)

	state, err := RemoveAllocation(allocation.State)
	require.NoError(t, err)
	assert.Equal(t, domain.StateConfirmed, state)
	assert.True(t, state.Confirmed())
	assert.False(t, state.Allocated())
}
