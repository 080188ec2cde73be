package schema

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/clearmint/captable/internal/domain"
)

// TokenAllocation represents the token_allocations table. At most one
// allocation exists per subscription.
type TokenAllocation struct {
	// ID is the internal database primary key
	ID uint64 `gorm:"column:id;primaryKey;autoIncrement"`
	// SubscriptionRowID references the owning subscription
	SubscriptionRowID uint64 `gorm:"column:subscription_row_id;not null;uniqueIndex"`
	// TokenType is the standard the allocation is denominated in
	TokenType domain.TokenType `gorm:"column:token_type;not null;type:text"`
	// TokenAmount is the allocated token quantity
	TokenAmount decimal.Decimal `gorm:"column:token_amount;not null;type:numeric(30,8)"`
	// Distributed marks whether the tokens have been (mock) transferred
	Distributed bool `gorm:"column:distributed;not null;default:false;index"`
	// DistributionDate is when the distribution was recorded
	DistributionDate *time.Time `gorm:"column:distribution_date;type:timestamptz"`
	// DistributionTxHash is the mock transaction hash stamped on distribution
	DistributionTxHash *string `gorm:"column:distribution_tx_hash;type:text"`
	// CreatedAt is the timestamp when this allocation was created
	CreatedAt time.Time `gorm:"column:created_at;not null;default:now();type:timestamptz"`
	// UpdatedAt is the timestamp when this allocation was last updated
	UpdatedAt time.Time `gorm:"column:updated_at;not null;default:now();type:timestamptz"`
}

// TableName specifies the table name for the TokenAllocation model
func (TokenAllocation) TableName() string {
	return "token_allocations"
}
