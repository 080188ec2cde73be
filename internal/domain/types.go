package domain

import (
	"net/mail"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// KYCStatus represents an investor's know-your-customer verification state
type KYCStatus string

const (
	KYCStatusVerified   KYCStatus = "verified"
	KYCStatusExpired    KYCStatus = "expired"
	KYCStatusPending    KYCStatus = "pending"
	KYCStatusNotStarted KYCStatus = "not_started"
	KYCStatusApproved   KYCStatus = "approved"
	KYCStatusFailed     KYCStatus = "failed"
)

// IsValidKYCStatus checks if a KYC status is one of the known states
func IsValidKYCStatus(s KYCStatus) bool {
	switch s {
	case KYCStatusVerified, KYCStatusExpired, KYCStatusPending,
		KYCStatusNotStarted, KYCStatusApproved, KYCStatusFailed:
		return true
	}
	return false
}

// Currency represents a fiat subscription currency
type Currency string

const (
	CurrencyUSD Currency = "USD"
	CurrencyEUR Currency = "EUR"
	CurrencyGBP Currency = "GBP"
)

// IsValidCurrency checks if a currency is supported
func IsValidCurrency(c Currency) bool {
	return c == CurrencyUSD || c == CurrencyEUR || c == CurrencyGBP
}

// TokenType represents the token contract standard an allocation is denominated in
type TokenType string

const (
	TokenTypeERC20   TokenType = "ERC-20"
	TokenTypeERC721  TokenType = "ERC-721"
	TokenTypeERC1155 TokenType = "ERC-1155"
	TokenTypeERC1400 TokenType = "ERC-1400"
	TokenTypeERC3525 TokenType = "ERC-3525"
)

// IsValidTokenType checks if a token type is a known standard
func IsValidTokenType(t TokenType) bool {
	switch t {
	case TokenTypeERC20, TokenTypeERC721, TokenTypeERC1155,
		TokenTypeERC1400, TokenTypeERC3525:
		return true
	}
	return false
}

// SubscriptionState represents a subscription's position in its lifecycle.
// The lifecycle is linear: pending → confirmed → allocated → distributed,
// with a single backward edge allocated → confirmed when an allocation is
// removed. Modeling state as one enum makes illegal combinations
// (e.g. distributed without allocated) unrepresentable.
type SubscriptionState string

const (
	StatePending     SubscriptionState = "pending"
	StateConfirmed   SubscriptionState = "confirmed"
	StateAllocated   SubscriptionState = "allocated"
	StateDistributed SubscriptionState = "distributed"
)

// IsValidSubscriptionState checks if a state is one of the lifecycle states
func IsValidSubscriptionState(s SubscriptionState) bool {
	switch s {
	case StatePending, StateConfirmed, StateAllocated, StateDistributed:
		return true
	}
	return false
}

// Confirmed reports whether the subscription has passed confirmation
func (s SubscriptionState) Confirmed() bool {
	return s == StateConfirmed || s == StateAllocated || s == StateDistributed
}

// Allocated reports whether tokens have been allocated to the subscription
func (s SubscriptionState) Allocated() bool {
	return s == StateAllocated || s == StateDistributed
}

// Distributed reports whether allocated tokens have been distributed
func (s SubscriptionState) Distributed() bool {
	return s == StateDistributed
}

// InvestorType represents the enumerated investor classification
type InvestorType string

const (
	// Institutional
	InvestorTypePensionFund         InvestorType = "pension_fund"
	InvestorTypeInsuranceCompany    InvestorType = "insurance_company"
	InvestorTypeSovereignWealthFund InvestorType = "sovereign_wealth_fund"
	InvestorTypeEndowment           InvestorType = "endowment"
	InvestorTypeAssetManager        InvestorType = "asset_manager"
	InvestorTypeBank                InvestorType = "bank"

	// Retail
	InvestorTypeIndividual             InvestorType = "individual"
	InvestorTypeHighNetWorthIndividual InvestorType = "high_net_worth_individual"
	InvestorTypeFamilyOffice           InvestorType = "family_office"
	InvestorTypeAccreditedInvestor     InvestorType = "accredited_investor"

	// Corporate
	InvestorTypeCorporation    InvestorType = "corporation"
	InvestorTypePrivateCompany InvestorType = "private_company"
	InvestorTypeHoldingCompany InvestorType = "holding_company"
	InvestorTypePartnership    InvestorType = "partnership"

	// Government
	InvestorTypeGovernmentAgency InvestorType = "government_agency"
	InvestorTypeCentralBank      InvestorType = "central_bank"
	InvestorTypeDevelopmentBank  InvestorType = "development_bank"
	InvestorTypeMunicipality     InvestorType = "municipality"

	// Alternative
	InvestorTypeHedgeFund         InvestorType = "hedge_fund"
	InvestorTypePrivateEquityFirm InvestorType = "private_equity_firm"
	InvestorTypeVentureCapital    InvestorType = "venture_capital_firm"
	InvestorTypeRealEstateFund    InvestorType = "real_estate_fund"

	// Digital
	InvestorTypeCryptoFund           InvestorType = "crypto_fund"
	InvestorTypeDAO                  InvestorType = "dao"
	InvestorTypeDigitalAssetExchange InvestorType = "digital_asset_exchange"
)

// TypeCategory is the higher-level grouping of investor types
type TypeCategory string

const (
	CategoryInstitutional TypeCategory = "Institutional"
	CategoryRetail        TypeCategory = "Retail"
	CategoryCorporate     TypeCategory = "Corporate"
	CategoryGovernment    TypeCategory = "Government"
	CategoryAlternative   TypeCategory = "Alternative"
	CategoryDigital       TypeCategory = "Digital"
)

// typeCategories is the fixed investor type → category table
var typeCategories = map[InvestorType]TypeCategory{
	InvestorTypePensionFund:         CategoryInstitutional,
	InvestorTypeInsuranceCompany:    CategoryInstitutional,
	InvestorTypeSovereignWealthFund: CategoryInstitutional,
	InvestorTypeEndowment:           CategoryInstitutional,
	InvestorTypeAssetManager:        CategoryInstitutional,
	InvestorTypeBank:                CategoryInstitutional,

	InvestorTypeIndividual:             CategoryRetail,
	InvestorTypeHighNetWorthIndividual: CategoryRetail,
	InvestorTypeFamilyOffice:           CategoryRetail,
	InvestorTypeAccreditedInvestor:     CategoryRetail,

	InvestorTypeCorporation:    CategoryCorporate,
	InvestorTypePrivateCompany: CategoryCorporate,
	InvestorTypeHoldingCompany: CategoryCorporate,
	InvestorTypePartnership:    CategoryCorporate,

	InvestorTypeGovernmentAgency: CategoryGovernment,
	InvestorTypeCentralBank:      CategoryGovernment,
	InvestorTypeDevelopmentBank:  CategoryGovernment,
	InvestorTypeMunicipality:     CategoryGovernment,

	InvestorTypeHedgeFund:         CategoryAlternative,
	InvestorTypePrivateEquityFirm: CategoryAlternative,
	InvestorTypeVentureCapital:    CategoryAlternative,
	InvestorTypeRealEstateFund:    CategoryAlternative,

	InvestorTypeCryptoFund:           CategoryDigital,
	InvestorTypeDAO:                  CategoryDigital,
	InvestorTypeDigitalAssetExchange: CategoryDigital,
}

// IsValidInvestorType checks if an investor type is enumerated
func IsValidInvestorType(t InvestorType) bool {
	_, ok := typeCategories[t]
	return ok
}

// CategoryOf returns the higher-level category for an investor type.
// Unknown types return an empty category.
func CategoryOf(t InvestorType) TypeCategory {
	return typeCategories[t]
}

// Categories returns the fixed set of type categories in display order
func Categories() []TypeCategory {
	return []TypeCategory{
		CategoryInstitutional,
		CategoryRetail,
		CategoryCorporate,
		CategoryGovernment,
		CategoryAlternative,
		CategoryDigital,
	}
}

// IsValidEmail checks an address parses as a bare RFC 5322 address with a
// dotted domain. Display-name forms and bare hostnames are rejected.
func IsValidEmail(email string) bool {
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return false
	}
	domain := email[strings.LastIndex(email, "@")+1:]
	return strings.Contains(domain, ".")
}

// IsValidWalletAddress checks a wallet address is a 0x-prefixed
// 40-hex-character Ethereum address
func IsValidWalletAddress(addr string) bool {
	if len(addr) != 42 || addr[:2] != "0x" {
		return false
	}
	return common.IsHexAddress(addr)
}
