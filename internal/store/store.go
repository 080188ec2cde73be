package store

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/clearmint/captable/internal/domain"
	"github.com/clearmint/captable/internal/store/schema"
)

// CreateInvestorInput holds the fields for creating a new investor.
// Validation of email, wallet and type happens inside the store so that every
// entry path (forms, CSV import) goes through the same rules.
type CreateInvestorInput struct {
	Name                string
	Email               string
	Type                domain.InvestorType
	KYCStatus           domain.KYCStatus
	Wallet              string
	KYCExpiryDate       *time.Time
	Country             *string
	AccreditationStatus *string
	// InvestorID overrides the generated external id (CSV import may carry one)
	InvestorID string
	// CapTableID optionally associates the new investor with a cap table
	CapTableID *uint64
}

// UpdateInvestorInput holds a partial investor update. Nil fields are left
// untouched.
type UpdateInvestorInput struct {
	Name                *string
	Email               *string
	Type                *domain.InvestorType
	KYCStatus           *domain.KYCStatus
	Wallet              *string
	KYCExpiryDate       *time.Time
	Country             *string
	AccreditationStatus *string
}

// CreateSubscriptionInput holds the fields for creating a new subscription
type CreateSubscriptionInput struct {
	InvestorID string
	FiatAmount decimal.Decimal
	Currency   domain.Currency
	// SubscriptionID overrides the generated SUB-<timestamp> code
	SubscriptionID   string
	Notes            string
	SubscriptionDate time.Time
	// Confirmed creates the subscription in the confirmed state (CSV import
	// rows carrying a Confirmed status)
	Confirmed bool
}

// UpdateSubscriptionInput holds a partial subscription update. Lifecycle
// fields are excluded; state changes go through the transition operations.
type UpdateSubscriptionInput struct {
	FiatAmount       *decimal.Decimal
	Currency         *domain.Currency
	Notes            *string
	SubscriptionDate *time.Time
}

// DistributionItemResult reports the outcome for a single allocation in a batch
type DistributionItemResult struct {
	AllocationID uint64 `json:"allocation_id"`
	TxHash       string `json:"tx_hash,omitempty"`
	Success      bool   `json:"success"`
	Error        string `json:"error,omitempty"`
}

// BatchDistributionResult aggregates a batch distribution. The batch is not
// atomic: items already distributed when a later item fails stay distributed.
type BatchDistributionResult struct {
	Distributed int                      `json:"distributed"`
	Results     []DistributionItemResult `json:"results"`
}

// CapTableQueryFilter narrows investor listing within a cap table
type CapTableQueryFilter struct {
	KYCStatus *domain.KYCStatus
	Type      *domain.InvestorType
	Limit     int
	Offset    int
}

// Store is the persistence gateway over investors, subscriptions, allocations,
// cap tables and projects
type Store interface {
	// Bootstrap ensures the system never presents a zero-project state by
	// creating a default project and cap table when none exist
	Bootstrap(ctx context.Context) error

	// CreateInvestor validates and persists a new investor, returning the row
	CreateInvestor(ctx context.Context, input CreateInvestorInput) (*schema.Investor, error)
	// UpdateInvestor merges a partial update into an existing investor
	UpdateInvestor(ctx context.Context, investorID string, input UpdateInvestorInput) (*schema.Investor, error)
	// GetInvestor retrieves an investor with subscriptions by external id
	GetInvestor(ctx context.Context, investorID string) (*schema.Investor, error)
	// GetInvestorByName retrieves an investor by display name (used when
	// matching imported subscription rows to investors)
	GetInvestorByName(ctx context.Context, name string) (*schema.Investor, error)
	// ListInvestorsByCapTable retrieves a cap table's investors with their
	// subscriptions and allocations preloaded
	ListInvestorsByCapTable(ctx context.Context, capTableID uint64, filter CapTableQueryFilter) ([]schema.Investor, int64, error)
	// AddInvestorToCapTable creates the join association (idempotent)
	AddInvestorToCapTable(ctx context.Context, investorID string, capTableID uint64) error
	// RemoveInvestorFromCapTable removes the join association only; the
	// investor and its subscriptions survive
	RemoveInvestorFromCapTable(ctx context.Context, investorID string, capTableID uint64) error

	// CreateSubscription persists a new subscription for an investor
	CreateSubscription(ctx context.Context, input CreateSubscriptionInput) (*schema.TokenSubscription, error)
	// UpdateSubscription merges a partial update into an existing subscription
	UpdateSubscription(ctx context.Context, subscriptionID string, input UpdateSubscriptionInput) (*schema.TokenSubscription, error)
	// GetSubscription retrieves a subscription by external code
	GetSubscription(ctx context.Context, subscriptionID string) (*schema.TokenSubscription, error)
	// DeleteSubscription permanently removes a subscription and any attached
	// allocation; refused once distributed
	DeleteSubscription(ctx context.Context, subscriptionID string) error

	// ConfirmSubscription applies the pending → confirmed transition
	ConfirmSubscription(ctx context.Context, subscriptionID string) (*schema.TokenSubscription, error)
	// AllocateSubscription creates the companion allocation row and applies
	// the confirmed → allocated transition in one transaction
	AllocateSubscription(ctx context.Context, subscriptionID string, tokenType domain.TokenType, amount decimal.Decimal) (*schema.TokenSubscription, error)
	// RemoveAllocation journals and deletes the allocation, returning the
	// subscription to the confirmed state
	RemoveAllocation(ctx context.Context, subscriptionID string) (*schema.TokenSubscription, error)

	// DistributeTokens marks the given allocations distributed, one item at a
	// time: idempotent per item, continue-on-error, aggregate count reported
	DistributeTokens(ctx context.Context, allocationIDs []uint64) (*BatchDistributionResult, error)

	// CheckKYCExpirations flips verified investors whose expiry has passed to
	// expired and returns how many changed. Safe to call repeatedly.
	CheckKYCExpirations(ctx context.Context, now time.Time) (int, error)

	// CreateProject persists a new project with one initial cap table
	CreateProject(ctx context.Context, name, description string) (*schema.Project, error)
	// ListProjects retrieves all projects with their cap tables
	ListProjects(ctx context.Context) ([]schema.Project, error)
	// DeleteProject removes a project and cascades to its cap tables; refused
	// for the last remaining project
	DeleteProject(ctx context.Context, projectID uint64) error
	// CreateCapTable persists a new cap table under a project
	CreateCapTable(ctx context.Context, projectID uint64, name, description string) (*schema.CapTable, error)
	// GetCapTable retrieves a cap table by id
	GetCapTable(ctx context.Context, capTableID uint64) (*schema.CapTable, error)
	// DeleteCapTable removes a cap table and cascades to its investor
	// associations (not the investors); refused for a project's last cap table
	DeleteCapTable(ctx context.Context, capTableID uint64) error

	// GetChanges retrieves journal entries after the given cursor
	GetChanges(ctx context.Context, afterCursor int64, limit int) ([]schema.ChangesJournal, error)
}
