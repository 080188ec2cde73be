package dto

import (
	"time"

	"github.com/clearmint/captable/internal/domain"
	"github.com/clearmint/captable/internal/store/schema"
)

// InvestorResponse represents an investor with its subscriptions
type InvestorResponse struct {
	InvestorID          string                 `json:"investor_id"`
	Name                string                 `json:"name"`
	Email               string                 `json:"email"`
	Type                domain.InvestorType    `json:"type"`
	Category            domain.TypeCategory    `json:"category"`
	KYCStatus           domain.KYCStatus       `json:"kyc_status"`
	Wallet              string                 `json:"wallet"`
	KYCExpiryDate       *time.Time             `json:"kyc_expiry_date,omitempty"`
	Country             *string                `json:"country,omitempty"`
	AccreditationStatus *string                `json:"accreditation_status,omitempty"`
	CreatedAt           time.Time              `json:"created_at"`
	UpdatedAt           time.Time              `json:"updated_at"`
	Subscriptions       []SubscriptionResponse `json:"subscriptions,omitempty"`
}

// InvestorListResponse represents a paginated list of investors
type InvestorListResponse struct {
	Investors []InvestorResponse `json:"items"`
	Offset    *int               `json:"offset,omitempty"` // Offset for the next page
	Total     int64              `json:"total"`
}

// MapInvestorToDTO maps a schema.Investor to InvestorResponse
func MapInvestorToDTO(investor *schema.Investor) *InvestorResponse {
	dto := &InvestorResponse{
		InvestorID:          investor.InvestorID,
		Name:                investor.Name,
		Email:               investor.Email,
		Type:                investor.Type,
		Category:            domain.CategoryOf(investor.Type),
		KYCStatus:           investor.KYCStatus,
		Wallet:              investor.Wallet,
		KYCExpiryDate:       investor.KYCExpiryDate,
		Country:             investor.Country,
		AccreditationStatus: investor.AccreditationStatus,
		CreatedAt:           investor.CreatedAt,
		UpdatedAt:           investor.UpdatedAt,
	}

	for i := range investor.Subscriptions {
		dto.Subscriptions = append(dto.Subscriptions, *MapSubscriptionToDTO(&investor.Subscriptions[i]))
	}

	return dto
}
