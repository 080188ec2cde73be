// Package lifecycle implements the subscription state machine:
// pending → confirmed → allocated → distributed, forward-only except for the
// single backward edge allocated → confirmed via RemoveAllocation. Transition
// functions are pure; the store applies the resulting field changes.
package lifecycle

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/clearmint/captable/internal/domain"
)

// ConfirmResult describes the outcome of a confirmation request
type ConfirmResult struct {
	State domain.SubscriptionState
	// AlreadyConfirmed is set when the subscription had already passed
	// confirmation; re-confirming is a reported no-op, not an error
	AlreadyConfirmed bool
}

// Confirm validates the pending → confirmed transition
func Confirm(state domain.SubscriptionState) (ConfirmResult, error) {
	switch state {
	case domain.StatePending:
		return ConfirmResult{State: domain.StateConfirmed}, nil
	case domain.StateConfirmed, domain.StateAllocated, domain.StateDistributed:
		return ConfirmResult{State: state, AlreadyConfirmed: true}, nil
	default:
		return ConfirmResult{}, domain.ConflictError("cannot confirm subscription in state %q", state)
	}
}

// Allocation describes the field changes produced by a successful allocation
type Allocation struct {
	State       domain.SubscriptionState
	TokenType   domain.TokenType
	TokenAmount decimal.Decimal
}

// Allocate validates the confirmed → allocated transition. Confirmation is
// required before allocation; the amount must be a positive quantity and the
// token type a known standard.
func Allocate(state domain.SubscriptionState, tokenType domain.TokenType, amount decimal.Decimal) (Allocation, error) {
	if !domain.IsValidTokenType(tokenType) {
		return Allocation{}, domain.NewValidationError("token_type", "unknown token standard")
	}
	if !amount.IsPositive() {
		return Allocation{}, domain.NewValidationError("token_amount", "must be a positive number")
	}

	switch state {
	case domain.StateConfirmed:
		return Allocation{
			State:       domain.StateAllocated,
			TokenType:   tokenType,
			TokenAmount: amount,
		}, nil
	case domain.StatePending:
		return Allocation{}, domain.ConflictError("subscription must be confirmed before allocation")
	case domain.StateAllocated, domain.StateDistributed:
		return Allocation{}, domain.ConflictError("subscription already allocated")
	default:
		return Allocation{}, domain.ConflictError("cannot allocate subscription in state %q", state)
	}
}

// RemoveAllocation validates the allocated → confirmed backward edge.
// Distributed subscriptions are immutable.
func RemoveAllocation(state domain.SubscriptionState) (domain.SubscriptionState, error) {
	switch state {
	case domain.StateAllocated:
		return domain.StateConfirmed, nil
	case domain.StateDistributed:
		return "", domain.ConflictError("cannot remove allocation after distribution")
	default:
		return "", domain.ConflictError("subscription has no allocation to remove")
	}
}

// Distribution describes the field changes produced by a successful distribution
type Distribution struct {
	State            domain.SubscriptionState
	DistributionDate time.Time
	TxHash           string
}

// Distribute validates the allocated → distributed transition for a single
// allocation and stamps the distribution date and mock transaction hash.
func Distribute(state domain.SubscriptionState, allocationID uint64, at time.Time) (Distribution, error) {
	switch state {
	case domain.StateAllocated:
		return Distribution{
			State:            domain.StateDistributed,
			DistributionDate: at,
			TxHash:           domain.NewDistributionTxHash(allocationID, at),
		}, nil
	case domain.StateDistributed:
		return Distribution{}, domain.ConflictError("allocation already distributed")
	default:
		return Distribution{}, domain.ConflictError("cannot distribute unallocated subscription")
	}
}

// CanDelete reports whether a subscription may be permanently removed.
// Deletion is permitted only before distribution.
func CanDelete(state domain.SubscriptionState) error {
	if state == domain.StateDistributed {
		return domain.ConflictError("cannot delete a distributed subscription")
	}
	return nil
}
