package schema

import (
	"time"

	"github.com/clearmint/captable/internal/domain"
)

// Investor represents the investors table
type Investor struct {
	// ID is the internal database primary key
	ID uint64 `gorm:"column:id;primaryKey;autoIncrement"`
	// InvestorID is the stable, externally visible identifier (INV-<uuid>)
	InvestorID string `gorm:"column:investor_id;not null;type:text;uniqueIndex"`
	// Name is the investor's display name
	Name string `gorm:"column:name;not null;type:text"`
	// Email is the investor's contact address
	Email string `gorm:"column:email;not null;type:text"`
	// Type is the enumerated investor classification
	Type domain.InvestorType `gorm:"column:type;not null;type:text"`
	// KYCStatus is the current verification state
	KYCStatus domain.KYCStatus `gorm:"column:kyc_status;not null;type:text;default:'not_started';index"`
	// Wallet is the 0x-prefixed 40-hex-character address tokens are distributed to
	Wallet string `gorm:"column:wallet;not null;type:text"`
	// KYCExpiryDate is when the current verification lapses, if verified
	KYCExpiryDate *time.Time `gorm:"column:kyc_expiry_date;type:timestamptz"`
	// Country is the investor's country of residence/incorporation
	Country *string `gorm:"column:country;type:text"`
	// AccreditationStatus is the optional accreditation descriptor
	AccreditationStatus *string `gorm:"column:accreditation_status;type:text"`
	// CreatedAt is the timestamp when this investor was created
	CreatedAt time.Time `gorm:"column:created_at;not null;default:now();type:timestamptz"`
	// UpdatedAt is the timestamp when this investor was last updated
	UpdatedAt time.Time `gorm:"column:updated_at;not null;default:now();type:timestamptz"`

	// Associations
	Subscriptions []TokenSubscription `gorm:"foreignKey:InvestorRowID;constraint:OnDelete:CASCADE"`
}

// TableName specifies the table name for the Investor model
func (Investor) TableName() string {
	return "investors"
}
