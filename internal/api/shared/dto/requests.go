package dto

import (
	"time"

	"github.com/shopspring/decimal"

	apierrors "github.com/clearmint/captable/internal/api/shared/errors"
	"github.com/clearmint/captable/internal/domain"
)

// CreateInvestorRequest is the payload for registering a new investor
type CreateInvestorRequest struct {
	Name                string     `json:"name"`
	Email               string     `json:"email"`
	Type                string     `json:"type"`
	KYCStatus           string     `json:"kyc_status"`
	Wallet              string     `json:"wallet"`
	KYCExpiryDate       *time.Time `json:"kyc_expiry_date"`
	Country             *string    `json:"country"`
	AccreditationStatus *string    `json:"accreditation_status"`
	InvestorID          string     `json:"investor_id"`
	CapTableID          *uint64    `json:"cap_table_id"`
}

// Validate checks the request for structural problems before it reaches the store
func (r *CreateInvestorRequest) Validate() *apierrors.APIError {
	if r.Name == "" {
		return apierrors.NewValidationError("name is required")
	}
	if !domain.IsValidEmail(r.Email) {
		return apierrors.NewValidationError("email is not a valid address")
	}
	if !domain.IsValidWalletAddress(r.Wallet) {
		return apierrors.NewValidationError("wallet is not a valid 0x-prefixed address")
	}
	if !domain.IsValidInvestorType(domain.InvestorType(r.Type)) {
		return apierrors.NewValidationError("type is not a recognized investor type")
	}
	if r.KYCStatus != "" && !domain.IsValidKYCStatus(domain.KYCStatus(r.KYCStatus)) {
		return apierrors.NewValidationError("kyc_status is not a recognized status")
	}
	return nil
}

// UpdateInvestorRequest is the payload for partially updating an investor.
// Absent fields are left untouched.
type UpdateInvestorRequest struct {
	Name                *string    `json:"name"`
	Email               *string    `json:"email"`
	Type                *string    `json:"type"`
	KYCStatus           *string    `json:"kyc_status"`
	Wallet              *string    `json:"wallet"`
	KYCExpiryDate       *time.Time `json:"kyc_expiry_date"`
	Country             *string    `json:"country"`
	AccreditationStatus *string    `json:"accreditation_status"`
}

func (r *UpdateInvestorRequest) Validate() *apierrors.APIError {
	if r.Name == nil && r.Email == nil && r.Type == nil && r.KYCStatus == nil &&
		r.Wallet == nil && r.KYCExpiryDate == nil && r.Country == nil && r.AccreditationStatus == nil {
		return apierrors.NewBadRequestError("no fields to update")
	}
	return nil
}

// CreateSubscriptionRequest is the payload for recording a fiat subscription
type CreateSubscriptionRequest struct {
	InvestorID       string          `json:"investor_id"`
	FiatAmount       decimal.Decimal `json:"fiat_amount"`
	Currency         string          `json:"currency"`
	SubscriptionID   string          `json:"subscription_id"`
	Notes            string          `json:"notes"`
	SubscriptionDate *time.Time      `json:"subscription_date"`
	Confirmed        bool            `json:"confirmed"`
}

func (r *CreateSubscriptionRequest) Validate() *apierrors.APIError {
	if r.InvestorID == "" {
		return apierrors.NewValidationError("investor_id is required")
	}
	if !r.FiatAmount.IsPositive() {
		return apierrors.NewValidationError("fiat_amount must be positive")
	}
	if !domain.IsValidCurrency(domain.Currency(r.Currency)) {
		return apierrors.NewValidationError("currency must be one of USD, EUR, GBP")
	}
	return nil
}

// UpdateSubscriptionRequest is the payload for partially updating a
// subscription's commercial fields. Lifecycle state cannot be changed here.
type UpdateSubscriptionRequest struct {
	FiatAmount       *decimal.Decimal `json:"fiat_amount"`
	Currency         *string          `json:"currency"`
	Notes            *string          `json:"notes"`
	SubscriptionDate *time.Time       `json:"subscription_date"`
}

func (r *UpdateSubscriptionRequest) Validate() *apierrors.APIError {
	if r.FiatAmount == nil && r.Currency == nil && r.Notes == nil && r.SubscriptionDate == nil {
		return apierrors.NewBadRequestError("no fields to update")
	}
	if r.FiatAmount != nil && !r.FiatAmount.IsPositive() {
		return apierrors.NewValidationError("fiat_amount must be positive")
	}
	if r.Currency != nil && !domain.IsValidCurrency(domain.Currency(*r.Currency)) {
		return apierrors.NewValidationError("currency must be one of USD, EUR, GBP")
	}
	return nil
}

// AllocateRequest is the payload for allocating tokens to a confirmed subscription
type AllocateRequest struct {
	TokenType   string          `json:"token_type"`
	TokenAmount decimal.Decimal `json:"token_amount"`
}

func (r *AllocateRequest) Validate() *apierrors.APIError {
	if !domain.IsValidTokenType(domain.TokenType(r.TokenType)) {
		return apierrors.NewValidationError("token_type is not a supported standard")
	}
	if !r.TokenAmount.IsPositive() {
		return apierrors.NewValidationError("token_amount must be positive")
	}
	return nil
}

// DistributeRequest is the payload for a batch token distribution
type DistributeRequest struct {
	AllocationIDs []uint64 `json:"allocation_ids"`
}

func (r *DistributeRequest) Validate() *apierrors.APIError {
	if len(r.AllocationIDs) == 0 {
		return apierrors.NewValidationError("allocation_ids must not be empty")
	}
	return nil
}

// CreateProjectRequest is the payload for creating a project
type CreateProjectRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

func (r *CreateProjectRequest) Validate() *apierrors.APIError {
	if r.Name == "" {
		return apierrors.NewValidationError("name is required")
	}
	return nil
}

// CreateCapTableRequest is the payload for creating a cap table under a project
type CreateCapTableRequest struct {
	ProjectID   uint64 `json:"project_id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

func (r *CreateCapTableRequest) Validate() *apierrors.APIError {
	if r.ProjectID == 0 {
		return apierrors.NewValidationError("project_id is required")
	}
	if r.Name == "" {
		return apierrors.NewValidationError("name is required")
	}
	return nil
}

// AddCapTableInvestorRequest is the payload for associating an investor with a cap table
type AddCapTableInvestorRequest struct {
	InvestorID string `json:"investor_id"`
}

func (r *AddCapTableInvestorRequest) Validate() *apierrors.APIError {
	if r.InvestorID == "" {
		return apierrors.NewValidationError("investor_id is required")
	}
	return nil
}
