package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/clearmint/captable/internal/domain"
	"github.com/clearmint/captable/internal/lifecycle"
	"github.com/clearmint/captable/internal/store/schema"
)

const (
	DefaultProjectName  = "Default Project"
	DefaultCapTableName = "Default Cap Table"

	defaultListLimit = 100
)

type pgStore struct {
	db *gorm.DB
}

// NewPGStore creates a new PostgreSQL store instance
func NewPGStore(db *gorm.DB) Store {
	return &pgStore{db: db}
}

// ConfigureConnectionPool configures the connection pool settings for a GORM
// database connection. Zero values fall back to reasonable defaults.
func ConfigureConnectionPool(db *gorm.DB, maxOpenConns, maxIdleConns int, connMaxLifetime, connMaxIdleTime time.Duration) error {
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	if maxOpenConns == 0 {
		maxOpenConns = 20
	}
	if maxIdleConns == 0 {
		maxIdleConns = 5
	}
	if connMaxLifetime == 0 {
		connMaxLifetime = 5 * time.Minute
	}
	if connMaxIdleTime == 0 {
		connMaxIdleTime = 10 * time.Minute
	}
	if maxIdleConns > maxOpenConns {
		maxIdleConns = maxOpenConns
	}

	sqlDB.SetMaxOpenConns(maxOpenConns)
	sqlDB.SetMaxIdleConns(maxIdleConns)
	sqlDB.SetConnMaxLifetime(connMaxLifetime)
	sqlDB.SetConnMaxIdleTime(connMaxIdleTime)

	return nil
}

// dbError wraps an unexpected database failure so callers can classify it as
// transient via errors.Is(err, domain.ErrTransient) while keeping the cause.
func dbError(op string, err error) error {
	return fmt.Errorf("%s: %w", op, errors.Join(domain.ErrTransient, err))
}

// journal appends a changes_journal row inside the given transaction
func journalChange(tx *gorm.DB, entity domain.ChangeEntity, entityID string, action domain.ChangeAction, meta any) error {
	entry := schema.ChangesJournal{
		EventID:   ulid.MustNewDefault(time.Now()).String(),
		Entity:    entity,
		EntityID:  entityID,
		Action:    action,
		ChangedAt: time.Now(),
	}
	if meta != nil {
		metaJSON, err := json.Marshal(meta)
		if err != nil {
			return fmt.Errorf("failed to marshal journal meta: %w", err)
		}
		entry.Meta = metaJSON
	}

	if err := tx.Create(&entry).Error; err != nil {
		return fmt.Errorf("failed to append changes journal: %w", err)
	}
	return nil
}

// Bootstrap ensures at least one project exists and that every project has at
// least one cap table. This is the explicit initialization step; read paths
// never create entities as a side effect.
func (s *pgStore) Bootstrap(ctx context.Context) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var projectCount int64
		if err := tx.Model(&schema.Project{}).Count(&projectCount).Error; err != nil {
			return dbError("failed to count projects", err)
		}

		if projectCount == 0 {
			project := schema.Project{Name: DefaultProjectName}
			if err := tx.Create(&project).Error; err != nil {
				return dbError("failed to create default project", err)
			}
			capTable := schema.CapTable{ProjectID: project.ID, Name: DefaultCapTableName}
			if err := tx.Create(&capTable).Error; err != nil {
				return dbError("failed to create default cap table", err)
			}
			return nil
		}

		// Backfill a default cap table for any project that lost all of its
		// cap tables outside the guarded deletion path
		var orphaned []schema.Project
		err := tx.
			Where("NOT EXISTS (SELECT 1 FROM cap_tables WHERE cap_tables.project_id = projects.id)").
			Find(&orphaned).Error
		if err != nil {
			return dbError("failed to find projects without cap tables", err)
		}
		for _, project := range orphaned {
			capTable := schema.CapTable{ProjectID: project.ID, Name: DefaultCapTableName}
			if err := tx.Create(&capTable).Error; err != nil {
				return dbError("failed to create default cap table", err)
			}
		}
		return nil
	})
}

func validateInvestorFields(email, wallet string, investorType domain.InvestorType) error {
	if !domain.IsValidEmail(email) {
		return domain.NewValidationError("email", "not a valid email address")
	}
	if !domain.IsValidWalletAddress(wallet) {
		return domain.NewValidationError("wallet", "must be a 0x-prefixed 40-hex-character address")
	}
	if !domain.IsValidInvestorType(investorType) {
		return domain.NewValidationError("type", fmt.Sprintf("unknown investor type %q", investorType))
	}
	return nil
}

// CreateInvestor validates and persists a new investor. Validation lives here
// so every entry path (forms, CSV import) shares the same rules.
func (s *pgStore) CreateInvestor(ctx context.Context, input CreateInvestorInput) (*schema.Investor, error) {
	if input.Name == "" {
		return nil, domain.NewValidationError("name", "must not be empty")
	}
	if err := validateInvestorFields(input.Email, input.Wallet, input.Type); err != nil {
		return nil, err
	}

	kycStatus := input.KYCStatus
	if kycStatus == "" {
		kycStatus = domain.KYCStatusNotStarted
	}
	if !domain.IsValidKYCStatus(kycStatus) {
		return nil, domain.NewValidationError("kyc_status", fmt.Sprintf("unknown status %q", kycStatus))
	}

	investorID := input.InvestorID
	if investorID == "" {
		investorID = domain.NewInvestorID()
	}

	investor := schema.Investor{
		InvestorID:          investorID,
		Name:                input.Name,
		Email:               input.Email,
		Type:                input.Type,
		KYCStatus:           kycStatus,
		Wallet:              input.Wallet,
		KYCExpiryDate:       input.KYCExpiryDate,
		Country:             input.Country,
		AccreditationStatus: input.AccreditationStatus,
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing int64
		if err := tx.Model(&schema.Investor{}).Where("investor_id = ?", investorID).Count(&existing).Error; err != nil {
			return dbError("failed to check for existing investor", err)
		}
		if existing > 0 {
			return domain.ConflictError("investor %s already exists", investorID)
		}

		if err := tx.Create(&investor).Error; err != nil {
			return dbError("failed to create investor", err)
		}

		if input.CapTableID != nil {
			var capTable schema.CapTable
			if err := tx.Where("id = ?", *input.CapTableID).First(&capTable).Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return domain.NotFoundError("cap table", fmt.Sprintf("%d", *input.CapTableID))
				}
				return dbError("failed to get cap table", err)
			}
			join := schema.CapTableInvestor{CapTableID: capTable.ID, InvestorRowID: investor.ID}
			if err := tx.Create(&join).Error; err != nil {
				return dbError("failed to associate investor with cap table", err)
			}
		}

		return journalChange(tx, domain.EntityInvestor, investor.InvestorID, domain.ActionCreated, nil)
	})
	if err != nil {
		return nil, err
	}

	return &investor, nil
}

// UpdateInvestor merges a partial update into an existing investor
func (s *pgStore) UpdateInvestor(ctx context.Context, investorID string, input UpdateInvestorInput) (*schema.Investor, error) {
	var investor schema.Investor

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("investor_id = ?", investorID).First(&investor).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return domain.NotFoundError("investor", investorID)
			}
			return dbError("failed to get investor", err)
		}

		updates := map[string]any{}
		if input.Name != nil {
			if *input.Name == "" {
				return domain.NewValidationError("name", "must not be empty")
			}
			updates["name"] = *input.Name
		}
		if input.Email != nil {
			if !domain.IsValidEmail(*input.Email) {
				return domain.NewValidationError("email", "not a valid email address")
			}
			updates["email"] = *input.Email
		}
		if input.Wallet != nil {
			if !domain.IsValidWalletAddress(*input.Wallet) {
				return domain.NewValidationError("wallet", "must be a 0x-prefixed 40-hex-character address")
			}
			updates["wallet"] = *input.Wallet
		}
		if input.Type != nil {
			if !domain.IsValidInvestorType(*input.Type) {
				return domain.NewValidationError("type", fmt.Sprintf("unknown investor type %q", *input.Type))
			}
			updates["type"] = *input.Type
		}
		if input.KYCStatus != nil {
			if !domain.IsValidKYCStatus(*input.KYCStatus) {
				return domain.NewValidationError("kyc_status", fmt.Sprintf("unknown status %q", *input.KYCStatus))
			}
			updates["kyc_status"] = *input.KYCStatus
		}
		if input.KYCExpiryDate != nil {
			updates["kyc_expiry_date"] = *input.KYCExpiryDate
		}
		if input.Country != nil {
			updates["country"] = *input.Country
		}
		if input.AccreditationStatus != nil {
			updates["accreditation_status"] = *input.AccreditationStatus
		}

		if len(updates) == 0 {
			return nil
		}

		if err := tx.Model(&investor).Updates(updates).Error; err != nil {
			return dbError("failed to update investor", err)
		}

		fields := make([]string, 0, len(updates))
		for field := range updates {
			fields = append(fields, field)
		}
		return journalChange(tx, domain.EntityInvestor, investor.InvestorID, domain.ActionUpdated, map[string]any{"fields": fields})
	})
	if err != nil {
		return nil, err
	}

	return &investor, nil
}

// GetInvestor retrieves an investor with subscriptions by external id
func (s *pgStore) GetInvestor(ctx context.Context, investorID string) (*schema.Investor, error) {
	var investor schema.Investor
	err := s.db.WithContext(ctx).
		Preload("Subscriptions").
		Preload("Subscriptions.Allocation").
		Where("investor_id = ?", investorID).
		First(&investor).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.NotFoundError("investor", investorID)
		}
		return nil, dbError("failed to get investor", err)
	}
	return &investor, nil
}

func (s *pgStore) GetInvestorByName(ctx context.Context, name string) (*schema.Investor, error) {
	var investor schema.Investor
	err := s.db.WithContext(ctx).
		Where("name = ?", name).
		Order("id ASC").
		First(&investor).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.NotFoundError("investor", name)
		}
		return nil, dbError("failed to get investor by name", err)
	}
	return &investor, nil
}

// ListInvestorsByCapTable retrieves a cap table's investors with their
// subscriptions and allocations preloaded
func (s *pgStore) ListInvestorsByCapTable(ctx context.Context, capTableID uint64, filter CapTableQueryFilter) ([]schema.Investor, int64, error) {
	query := s.db.WithContext(ctx).Model(&schema.Investor{}).
		Joins("JOIN cap_table_investors ON cap_table_investors.investor_row_id = investors.id").
		Where("cap_table_investors.cap_table_id = ?", capTableID)

	if filter.KYCStatus != nil {
		query = query.Where("investors.kyc_status = ?", *filter.KYCStatus)
	}
	if filter.Type != nil {
		query = query.Where("investors.type = ?", *filter.Type)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, dbError("failed to count investors", err)
	}

	limit := filter.Limit
	if limit == 0 {
		limit = defaultListLimit
	}

	var investors []schema.Investor
	err := query.
		Preload("Subscriptions").
		Preload("Subscriptions.Allocation").
		Order("investors.id ASC").
		Limit(limit).Offset(filter.Offset).
		Find(&investors).Error
	if err != nil {
		return nil, 0, dbError("failed to list investors", err)
	}

	return investors, total, nil
}

// AddInvestorToCapTable creates the join association. Adding an investor that
// is already a member is a no-op.
func (s *pgStore) AddInvestorToCapTable(ctx context.Context, investorID string, capTableID uint64) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var investor schema.Investor
		if err := tx.Where("investor_id = ?", investorID).First(&investor).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return domain.NotFoundError("investor", investorID)
			}
			return dbError("failed to get investor", err)
		}

		var capTable schema.CapTable
		if err := tx.Where("id = ?", capTableID).First(&capTable).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return domain.NotFoundError("cap table", fmt.Sprintf("%d", capTableID))
			}
			return dbError("failed to get cap table", err)
		}

		join := schema.CapTableInvestor{CapTableID: capTableID, InvestorRowID: investor.ID}
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "cap_table_id"}, {Name: "investor_row_id"}},
			DoNothing: true,
		}).Create(&join).Error; err != nil {
			return dbError("failed to add investor to cap table", err)
		}

		return journalChange(tx, domain.EntityCapTable, fmt.Sprintf("%d", capTableID), domain.ActionUpdated,
			map[string]any{"added_investor": investorID})
	})
}

// RemoveInvestorFromCapTable removes the join association only; the investor
// and its subscriptions survive
func (s *pgStore) RemoveInvestorFromCapTable(ctx context.Context, investorID string, capTableID uint64) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var investor schema.Investor
		if err := tx.Where("investor_id = ?", investorID).First(&investor).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return domain.NotFoundError("investor", investorID)
			}
			return dbError("failed to get investor", err)
		}

		result := tx.Where("cap_table_id = ? AND investor_row_id = ?", capTableID, investor.ID).
			Delete(&schema.CapTableInvestor{})
		if result.Error != nil {
			return dbError("failed to remove investor from cap table", result.Error)
		}
		if result.RowsAffected == 0 {
			return domain.NotFoundError("cap table membership", investorID)
		}

		return journalChange(tx, domain.EntityCapTable, fmt.Sprintf("%d", capTableID), domain.ActionUpdated,
			map[string]any{"removed_investor": investorID})
	})
}

// CreateSubscription persists a new subscription for an investor
func (s *pgStore) CreateSubscription(ctx context.Context, input CreateSubscriptionInput) (*schema.TokenSubscription, error) {
	if !input.FiatAmount.IsPositive() {
		return nil, domain.NewValidationError("fiat_amount", "must be a positive number")
	}
	if !domain.IsValidCurrency(input.Currency) {
		return nil, domain.NewValidationError("currency", fmt.Sprintf("unsupported currency %q", input.Currency))
	}

	subscriptionDate := input.SubscriptionDate
	if subscriptionDate.IsZero() {
		subscriptionDate = time.Now()
	}

	code := input.SubscriptionID
	if code == "" {
		code = domain.NewSubscriptionCode(time.Now())
	}

	state := domain.StatePending
	if input.Confirmed {
		state = domain.StateConfirmed
	}

	var subscription schema.TokenSubscription
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var investor schema.Investor
		if err := tx.Where("investor_id = ?", input.InvestorID).First(&investor).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return domain.NotFoundError("investor", input.InvestorID)
			}
			return dbError("failed to get investor", err)
		}

		subscription = schema.TokenSubscription{
			SubscriptionID:   code,
			InvestorRowID:    investor.ID,
			FiatAmount:       input.FiatAmount,
			Currency:         input.Currency,
			State:            state,
			Notes:            input.Notes,
			SubscriptionDate: subscriptionDate,
		}
		var existing int64
		if err := tx.Model(&schema.TokenSubscription{}).Where("subscription_id = ?", code).Count(&existing).Error; err != nil {
			return dbError("failed to check for existing subscription", err)
		}
		if existing > 0 {
			return domain.ConflictError("subscription %s already exists", code)
		}

		if err := tx.Create(&subscription).Error; err != nil {
			return dbError("failed to create subscription", err)
		}

		return journalChange(tx, domain.EntitySubscription, subscription.SubscriptionID, domain.ActionCreated, nil)
	})
	if err != nil {
		return nil, err
	}

	return &subscription, nil
}

// UpdateSubscription merges a partial update into an existing subscription.
// Lifecycle state is untouchable here; transitions have their own operations.
func (s *pgStore) UpdateSubscription(ctx context.Context, subscriptionID string, input UpdateSubscriptionInput) (*schema.TokenSubscription, error) {
	var subscription schema.TokenSubscription

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("subscription_id = ?", subscriptionID).First(&subscription).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return domain.NotFoundError("subscription", subscriptionID)
			}
			return dbError("failed to get subscription", err)
		}

		updates := map[string]any{}
		if input.FiatAmount != nil {
			if !input.FiatAmount.IsPositive() {
				return domain.NewValidationError("fiat_amount", "must be a positive number")
			}
			updates["fiat_amount"] = *input.FiatAmount
		}
		if input.Currency != nil {
			if !domain.IsValidCurrency(*input.Currency) {
				return domain.NewValidationError("currency", fmt.Sprintf("unsupported currency %q", *input.Currency))
			}
			updates["currency"] = *input.Currency
		}
		if input.Notes != nil {
			updates["notes"] = *input.Notes
		}
		if input.SubscriptionDate != nil {
			updates["subscription_date"] = *input.SubscriptionDate
		}

		if len(updates) == 0 {
			return nil
		}

		if err := tx.Model(&subscription).Updates(updates).Error; err != nil {
			return dbError("failed to update subscription", err)
		}

		return journalChange(tx, domain.EntitySubscription, subscription.SubscriptionID, domain.ActionUpdated, nil)
	})
	if err != nil {
		return nil, err
	}

	return &subscription, nil
}

// GetSubscription retrieves a subscription by external code
func (s *pgStore) GetSubscription(ctx context.Context, subscriptionID string) (*schema.TokenSubscription, error) {
	var subscription schema.TokenSubscription
	err := s.db.WithContext(ctx).
		Preload("Allocation").
		Where("subscription_id = ?", subscriptionID).
		First(&subscription).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.NotFoundError("subscription", subscriptionID)
		}
		return nil, dbError("failed to get subscription", err)
	}
	return &subscription, nil
}

// DeleteSubscription permanently removes a subscription and any attached
// allocation. Refused once distributed.
func (s *pgStore) DeleteSubscription(ctx context.Context, subscriptionID string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var subscription schema.TokenSubscription
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Preload("Allocation").
			Where("subscription_id = ?", subscriptionID).
			First(&subscription).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return domain.NotFoundError("subscription", subscriptionID)
			}
			return dbError("failed to get subscription", err)
		}

		if err := lifecycle.CanDelete(subscription.State); err != nil {
			return err
		}

		// Journal before the hard delete so history survives
		meta := map[string]any{
			"fiat_amount": subscription.FiatAmount,
			"currency":    subscription.Currency,
			"state":       subscription.State,
		}
		if subscription.Allocation != nil {
			meta["allocation"] = subscription.Allocation
		}
		if err := journalChange(tx, domain.EntitySubscription, subscription.SubscriptionID, domain.ActionDeleted, meta); err != nil {
			return err
		}

		if subscription.AllocationID != nil {
			if err := tx.Where("id = ?", *subscription.AllocationID).Delete(&schema.TokenAllocation{}).Error; err != nil {
				return dbError("failed to delete allocation", err)
			}
		}
		if err := tx.Delete(&subscription).Error; err != nil {
			return dbError("failed to delete subscription", err)
		}
		return nil
	})
}

// ConfirmSubscription applies the pending → confirmed transition.
// Re-confirming is a no-op, mirroring how confirmation screens filter rather
// than reject already-confirmed rows.
func (s *pgStore) ConfirmSubscription(ctx context.Context, subscriptionID string) (*schema.TokenSubscription, error) {
	var subscription schema.TokenSubscription

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("subscription_id = ?", subscriptionID).
			First(&subscription).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return domain.NotFoundError("subscription", subscriptionID)
			}
			return dbError("failed to get subscription", err)
		}

		result, err := lifecycle.Confirm(subscription.State)
		if err != nil {
			return err
		}
		if result.AlreadyConfirmed {
			return nil
		}

		subscription.State = result.State
		if err := tx.Model(&subscription).Update("state", result.State).Error; err != nil {
			return dbError("failed to confirm subscription", err)
		}

		return journalChange(tx, domain.EntitySubscription, subscription.SubscriptionID, domain.ActionConfirmed, nil)
	})
	if err != nil {
		return nil, err
	}

	return &subscription, nil
}

// AllocateSubscription creates the companion allocation row and applies the
// confirmed → allocated transition in one transaction
func (s *pgStore) AllocateSubscription(ctx context.Context, subscriptionID string, tokenType domain.TokenType, amount decimal.Decimal) (*schema.TokenSubscription, error) {
	var subscription schema.TokenSubscription

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("subscription_id = ?", subscriptionID).
			First(&subscription).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return domain.NotFoundError("subscription", subscriptionID)
			}
			return dbError("failed to get subscription", err)
		}

		allocation, err := lifecycle.Allocate(subscription.State, tokenType, amount)
		if err != nil {
			return err
		}

		row := schema.TokenAllocation{
			SubscriptionRowID: subscription.ID,
			TokenType:         allocation.TokenType,
			TokenAmount:       allocation.TokenAmount,
		}
		if err := tx.Create(&row).Error; err != nil {
			return dbError("failed to create allocation", err)
		}

		updates := map[string]any{
			"state":         allocation.State,
			"token_type":    allocation.TokenType,
			"token_amount":  allocation.TokenAmount,
			"allocation_id": row.ID,
		}
		if err := tx.Model(&subscription).Updates(updates).Error; err != nil {
			return dbError("failed to update subscription", err)
		}

		subscription.State = allocation.State
		subscription.TokenType = &row.TokenType
		subscription.TokenAmount = &row.TokenAmount
		subscription.AllocationID = &row.ID
		subscription.Allocation = &row

		return journalChange(tx, domain.EntitySubscription, subscription.SubscriptionID, domain.ActionAllocated,
			map[string]any{"token_type": tokenType, "token_amount": amount})
	})
	if err != nil {
		return nil, err
	}

	return &subscription, nil
}

// RemoveAllocation journals and deletes the allocation, returning the
// subscription to the confirmed state. The journal entry preserves the prior
// allocation for audit even though the row itself is gone.
func (s *pgStore) RemoveAllocation(ctx context.Context, subscriptionID string) (*schema.TokenSubscription, error) {
	var subscription schema.TokenSubscription

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Preload("Allocation").
			Where("subscription_id = ?", subscriptionID).
			First(&subscription).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return domain.NotFoundError("subscription", subscriptionID)
			}
			return dbError("failed to get subscription", err)
		}

		nextState, err := lifecycle.RemoveAllocation(subscription.State)
		if err != nil {
			return err
		}

		if subscription.Allocation != nil {
			if err := journalChange(tx, domain.EntityAllocation, fmt.Sprintf("%d", subscription.Allocation.ID),
				domain.ActionDeallocated, subscription.Allocation); err != nil {
				return err
			}
			if err := tx.Delete(subscription.Allocation).Error; err != nil {
				return dbError("failed to delete allocation", err)
			}
		}

		updates := map[string]any{
			"state":         nextState,
			"token_type":    nil,
			"token_amount":  nil,
			"allocation_id": nil,
		}
		if err := tx.Model(&subscription).Updates(updates).Error; err != nil {
			return dbError("failed to update subscription", err)
		}

		subscription.State = nextState
		subscription.TokenType = nil
		subscription.TokenAmount = nil
		subscription.AllocationID = nil
		subscription.Allocation = nil

		return nil
	})
	if err != nil {
		return nil, err
	}

	return &subscription, nil
}

// DistributeTokens marks the given allocations distributed. Items are
// processed sequentially, each in its own transaction: already-distributed and
// missing allocations are reported per item without failing the batch, and a
// canceled context stops processing between items.
func (s *pgStore) DistributeTokens(ctx context.Context, allocationIDs []uint64) (*BatchDistributionResult, error) {
	result := &BatchDistributionResult{Results: make([]DistributionItemResult, 0, len(allocationIDs))}

	for _, allocationID := range allocationIDs {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		item := s.distributeOne(ctx, allocationID)
		if item.Success {
			result.Distributed++
		}
		result.Results = append(result.Results, item)
	}

	return result, nil
}

func (s *pgStore) distributeOne(ctx context.Context, allocationID uint64) DistributionItemResult {
	item := DistributionItemResult{AllocationID: allocationID}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var allocation schema.TokenAllocation
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ?", allocationID).
			First(&allocation).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return domain.NotFoundError("allocation", fmt.Sprintf("%d", allocationID))
			}
			return dbError("failed to get allocation", err)
		}

		var subscription schema.TokenSubscription
		if err := tx.Where("id = ?", allocation.SubscriptionRowID).First(&subscription).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return domain.NotFoundError("subscription", fmt.Sprintf("%d", allocation.SubscriptionRowID))
			}
			return dbError("failed to get subscription", err)
		}

		distribution, err := lifecycle.Distribute(subscription.State, allocation.ID, time.Now())
		if err != nil {
			return err
		}

		allocationUpdates := map[string]any{
			"distributed":          true,
			"distribution_date":    distribution.DistributionDate,
			"distribution_tx_hash": distribution.TxHash,
		}
		if err := tx.Model(&allocation).Updates(allocationUpdates).Error; err != nil {
			return dbError("failed to update allocation", err)
		}

		if err := tx.Model(&subscription).Update("state", distribution.State).Error; err != nil {
			return dbError("failed to update subscription", err)
		}

		item.TxHash = distribution.TxHash
		return journalChange(tx, domain.EntityAllocation, fmt.Sprintf("%d", allocation.ID), domain.ActionDistributed,
			map[string]any{"tx_hash": distribution.TxHash, "subscription_id": subscription.SubscriptionID})
	})
	if err != nil {
		item.Success = false
		item.Error = err.Error()
		item.TxHash = ""
		return item
	}

	item.Success = true
	return item
}

// CheckKYCExpirations flips verified investors whose expiry has passed to
// expired. Already-expired investors are excluded from the scan, so repeated
// calls are idempotent.
func (s *pgStore) CheckKYCExpirations(ctx context.Context, now time.Time) (int, error) {
	var count int

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var lapsed []schema.Investor
		err := tx.
			Where("kyc_status = ? AND kyc_expiry_date IS NOT NULL AND kyc_expiry_date < ?", domain.KYCStatusVerified, now).
			Find(&lapsed).Error
		if err != nil {
			return dbError("failed to scan for lapsed KYC", err)
		}
		if len(lapsed) == 0 {
			return nil
		}

		ids := make([]uint64, len(lapsed))
		for i, investor := range lapsed {
			ids[i] = investor.ID
		}

		result := tx.Model(&schema.Investor{}).
			Where("id IN ? AND kyc_status = ?", ids, domain.KYCStatusVerified).
			Update("kyc_status", domain.KYCStatusExpired)
		if result.Error != nil {
			return dbError("failed to expire KYC", result.Error)
		}
		count = int(result.RowsAffected)

		for _, investor := range lapsed {
			if err := journalChange(tx, domain.EntityInvestor, investor.InvestorID, domain.ActionKYCExpired, nil); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	return count, nil
}

// CreateProject persists a new project with one initial cap table, keeping
// the one-cap-table-per-project floor without a separate call
func (s *pgStore) CreateProject(ctx context.Context, name, description string) (*schema.Project, error) {
	if name == "" {
		return nil, domain.NewValidationError("name", "must not be empty")
	}

	project := schema.Project{Name: name, Description: description}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&project).Error; err != nil {
			return dbError("failed to create project", err)
		}
		capTable := schema.CapTable{ProjectID: project.ID, Name: DefaultCapTableName}
		if err := tx.Create(&capTable).Error; err != nil {
			return dbError("failed to create initial cap table", err)
		}
		project.CapTables = []schema.CapTable{capTable}

		return journalChange(tx, domain.EntityProject, fmt.Sprintf("%d", project.ID), domain.ActionCreated, nil)
	})
	if err != nil {
		return nil, err
	}

	return &project, nil
}

// ListProjects retrieves all projects with their cap tables
func (s *pgStore) ListProjects(ctx context.Context) ([]schema.Project, error) {
	var projects []schema.Project
	err := s.db.WithContext(ctx).
		Preload("CapTables").
		Order("id ASC").
		Find(&projects).Error
	if err != nil {
		return nil, dbError("failed to list projects", err)
	}
	return projects, nil
}

// DeleteProject removes a project and cascades to its cap tables and their
// investor associations. Deleting the last remaining project is refused.
func (s *pgStore) DeleteProject(ctx context.Context, projectID uint64) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var project schema.Project
		if err := tx.Where("id = ?", projectID).First(&project).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return domain.NotFoundError("project", fmt.Sprintf("%d", projectID))
			}
			return dbError("failed to get project", err)
		}

		var projectCount int64
		if err := tx.Model(&schema.Project{}).Count(&projectCount).Error; err != nil {
			return dbError("failed to count projects", err)
		}
		if projectCount <= 1 {
			return domain.ConflictError("cannot delete the last remaining project")
		}

		var capTableIDs []uint64
		if err := tx.Model(&schema.CapTable{}).Where("project_id = ?", projectID).Pluck("id", &capTableIDs).Error; err != nil {
			return dbError("failed to list cap tables", err)
		}
		if len(capTableIDs) > 0 {
			if err := tx.Where("cap_table_id IN ?", capTableIDs).Delete(&schema.CapTableInvestor{}).Error; err != nil {
				return dbError("failed to delete cap table memberships", err)
			}
			if err := tx.Where("id IN ?", capTableIDs).Delete(&schema.CapTable{}).Error; err != nil {
				return dbError("failed to delete cap tables", err)
			}
		}
		if err := tx.Delete(&project).Error; err != nil {
			return dbError("failed to delete project", err)
		}

		return journalChange(tx, domain.EntityProject, fmt.Sprintf("%d", projectID), domain.ActionDeleted, nil)
	})
}

// CreateCapTable persists a new cap table under a project
func (s *pgStore) CreateCapTable(ctx context.Context, projectID uint64, name, description string) (*schema.CapTable, error) {
	if name == "" {
		return nil, domain.NewValidationError("name", "must not be empty")
	}

	var capTable schema.CapTable
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var project schema.Project
		if err := tx.Where("id = ?", projectID).First(&project).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return domain.NotFoundError("project", fmt.Sprintf("%d", projectID))
			}
			return dbError("failed to get project", err)
		}

		capTable = schema.CapTable{ProjectID: projectID, Name: name, Description: description}
		if err := tx.Create(&capTable).Error; err != nil {
			return dbError("failed to create cap table", err)
		}

		return journalChange(tx, domain.EntityCapTable, fmt.Sprintf("%d", capTable.ID), domain.ActionCreated, nil)
	})
	if err != nil {
		return nil, err
	}

	return &capTable, nil
}

// GetCapTable retrieves a cap table by id
func (s *pgStore) GetCapTable(ctx context.Context, capTableID uint64) (*schema.CapTable, error) {
	var capTable schema.CapTable
	err := s.db.WithContext(ctx).Where("id = ?", capTableID).First(&capTable).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.NotFoundError("cap table", fmt.Sprintf("%d", capTableID))
		}
		return nil, dbError("failed to get cap table", err)
	}
	return &capTable, nil
}

// DeleteCapTable removes a cap table and its investor associations. Deleting
// a project's last cap table is refused.
func (s *pgStore) DeleteCapTable(ctx context.Context, capTableID uint64) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var capTable schema.CapTable
		if err := tx.Where("id = ?", capTableID).First(&capTable).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return domain.NotFoundError("cap table", fmt.Sprintf("%d", capTableID))
			}
			return dbError("failed to get cap table", err)
		}

		var siblingCount int64
		if err := tx.Model(&schema.CapTable{}).Where("project_id = ?", capTable.ProjectID).Count(&siblingCount).Error; err != nil {
			return dbError("failed to count cap tables", err)
		}
		if siblingCount <= 1 {
			return domain.ConflictError("cannot delete a project's last cap table")
		}

		if err := tx.Where("cap_table_id = ?", capTableID).Delete(&schema.CapTableInvestor{}).Error; err != nil {
			return dbError("failed to delete cap table memberships", err)
		}
		if err := tx.Delete(&capTable).Error; err != nil {
			return dbError("failed to delete cap table", err)
		}

		return journalChange(tx, domain.EntityCapTable, fmt.Sprintf("%d", capTableID), domain.ActionDeleted, nil)
	})
}

// GetChanges retrieves journal entries after the given cursor in sequence order
func (s *pgStore) GetChanges(ctx context.Context, afterCursor int64, limit int) ([]schema.ChangesJournal, error) {
	if limit == 0 {
		limit = defaultListLimit
	}

	var changes []schema.ChangesJournal
	err := s.db.WithContext(ctx).
		Where(`"cursor" > ?`, afterCursor).
		Order(`"cursor" ASC`).
		Limit(limit).
		Find(&changes).Error
	if err != nil {
		return nil, dbError("failed to get changes", err)
	}
	return changes, nil
}
