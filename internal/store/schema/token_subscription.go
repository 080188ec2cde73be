package schema

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/clearmint/captable/internal/domain"
)

// TokenSubscription represents the token_subscriptions table.
// Lifecycle progress is a single state column rather than independent
// confirmed/allocated/distributed flags, so illegal combinations cannot be
// persisted.
type TokenSubscription struct {
	// ID is the internal database primary key
	ID uint64 `gorm:"column:id;primaryKey;autoIncrement"`
	// SubscriptionID is the human-readable external code (SUB-<timestamp> when generated)
	SubscriptionID string `gorm:"column:subscription_id;not null;type:text;uniqueIndex"`
	// InvestorRowID references the owning investor
	InvestorRowID uint64 `gorm:"column:investor_row_id;not null;index"`
	// FiatAmount is the committed fiat amount, always positive
	FiatAmount decimal.Decimal `gorm:"column:fiat_amount;not null;type:numeric(20,2)"`
	// Currency is the fiat currency (USD, EUR, GBP)
	Currency domain.Currency `gorm:"column:currency;not null;type:text"`
	// State is the lifecycle state (pending, confirmed, allocated, distributed)
	State domain.SubscriptionState `gorm:"column:state;not null;type:text;default:'pending';index"`
	// TokenType is the standard the allocation is denominated in, set on allocation
	TokenType *domain.TokenType `gorm:"column:token_type;type:text"`
	// TokenAmount is the allocated token quantity, set on allocation
	TokenAmount *decimal.Decimal `gorm:"column:token_amount;type:numeric(30,8)"`
	// AllocationID references the companion token_allocations row once one exists
	AllocationID *uint64 `gorm:"column:allocation_id;index"`
	// Notes is free-form operator commentary
	Notes string `gorm:"column:notes;type:text"`
	// SubscriptionDate is when the commitment was made
	SubscriptionDate time.Time `gorm:"column:subscription_date;not null;default:now();type:timestamptz"`
	// CreatedAt is the timestamp when this subscription was created
	CreatedAt time.Time `gorm:"column:created_at;not null;default:now();type:timestamptz"`
	// UpdatedAt is the timestamp when this subscription was last updated
	UpdatedAt time.Time `gorm:"column:updated_at;not null;default:now();type:timestamptz"`

	// Associations
	Allocation *TokenAllocation `gorm:"foreignKey:AllocationID"`
}

// TableName specifies the table name for the TokenSubscription model
func (TokenSubscription) TableName() string {
	return "token_subscriptions"
}
