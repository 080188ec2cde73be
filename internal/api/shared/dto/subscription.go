package dto

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/clearmint/captable/internal/domain"
	"github.com/clearmint/captable/internal/store/schema"
)

// SubscriptionResponse represents a fiat subscription and its lifecycle state
type SubscriptionResponse struct {
	SubscriptionID   string                   `json:"subscription_id"`
	FiatAmount       decimal.Decimal          `json:"fiat_amount"`
	Currency         domain.Currency          `json:"currency"`
	State            domain.SubscriptionState `json:"state"`
	TokenType        *domain.TokenType        `json:"token_type,omitempty"`
	TokenAmount      *decimal.Decimal         `json:"token_amount,omitempty"`
	Notes            string                   `json:"notes,omitempty"`
	SubscriptionDate time.Time                `json:"subscription_date"`
	CreatedAt        time.Time                `json:"created_at"`
	UpdatedAt        time.Time                `json:"updated_at"`
	Allocation       *AllocationResponse      `json:"allocation,omitempty"`
}

// AllocationResponse represents a token allocation attached to a subscription
type AllocationResponse struct {
	AllocationID       uint64           `json:"allocation_id"`
	TokenType          domain.TokenType `json:"token_type"`
	TokenAmount        decimal.Decimal  `json:"token_amount"`
	Distributed        bool             `json:"distributed"`
	DistributionDate   *time.Time       `json:"distribution_date,omitempty"`
	DistributionTxHash *string          `json:"distribution_tx_hash,omitempty"`
	CreatedAt          time.Time        `json:"created_at"`
}

// MapSubscriptionToDTO maps a schema.TokenSubscription to SubscriptionResponse
func MapSubscriptionToDTO(subscription *schema.TokenSubscription) *SubscriptionResponse {
	dto := &SubscriptionResponse{
		SubscriptionID:   subscription.SubscriptionID,
		FiatAmount:       subscription.FiatAmount,
		Currency:         subscription.Currency,
		State:            subscription.State,
		TokenType:        subscription.TokenType,
		TokenAmount:      subscription.TokenAmount,
		Notes:            subscription.Notes,
		SubscriptionDate: subscription.SubscriptionDate,
		CreatedAt:        subscription.CreatedAt,
		UpdatedAt:        subscription.UpdatedAt,
	}

	if subscription.Allocation != nil {
		dto.Allocation = MapAllocationToDTO(subscription.Allocation)
	}

	return dto
}

// MapAllocationToDTO maps a schema.TokenAllocation to AllocationResponse
func MapAllocationToDTO(allocation *schema.TokenAllocation) *AllocationResponse {
	return &AllocationResponse{
		AllocationID:       allocation.ID,
		TokenType:          allocation.TokenType,
		TokenAmount:        allocation.TokenAmount,
		Distributed:        allocation.Distributed,
		DistributionDate:   allocation.DistributionDate,
		DistributionTxHash: allocation.DistributionTxHash,
		CreatedAt:          allocation.CreatedAt,
	}
}
