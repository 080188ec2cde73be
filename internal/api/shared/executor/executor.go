package executor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"

	"github.com/clearmint/captable/internal/api/shared/constants"
	"github.com/clearmint/captable/internal/api/shared/dto"
	apierrors "github.com/clearmint/captable/internal/api/shared/errors"
	"github.com/clearmint/captable/internal/csvio"
	"github.com/clearmint/captable/internal/domain"
	"github.com/clearmint/captable/internal/logger"
	"github.com/clearmint/captable/internal/messaging"
	"github.com/clearmint/captable/internal/reporting"
	"github.com/clearmint/captable/internal/store"
)

// Executor is the interface for the API executor
type Executor interface {
	// CreateInvestor registers a new investor
	CreateInvestor(ctx context.Context, req *dto.CreateInvestorRequest) (*dto.InvestorResponse, error)

	// UpdateInvestor partially updates an investor
	UpdateInvestor(ctx context.Context, investorID string, req *dto.UpdateInvestorRequest) (*dto.InvestorResponse, error)

	// GetInvestor retrieves an investor with its subscriptions
	GetInvestor(ctx context.Context, investorID string) (*dto.InvestorResponse, error)

	// CreateSubscription records a fiat subscription for an investor
	CreateSubscription(ctx context.Context, req *dto.CreateSubscriptionRequest) (*dto.SubscriptionResponse, error)

	// UpdateSubscription partially updates a subscription's commercial fields
	UpdateSubscription(ctx context.Context, subscriptionID string, req *dto.UpdateSubscriptionRequest) (*dto.SubscriptionResponse, error)

	// GetSubscription retrieves a subscription by its external code
	GetSubscription(ctx context.Context, subscriptionID string) (*dto.SubscriptionResponse, error)

	// DeleteSubscription permanently removes a subscription; refused once distributed
	DeleteSubscription(ctx context.Context, subscriptionID string) error

	// ConfirmSubscription applies the pending to confirmed transition (idempotent)
	ConfirmSubscription(ctx context.Context, subscriptionID string) (*dto.SubscriptionResponse, error)

	// AllocateSubscription allocates tokens against a confirmed subscription
	AllocateSubscription(ctx context.Context, subscriptionID string, req *dto.AllocateRequest) (*dto.SubscriptionResponse, error)

	// RemoveAllocation deletes a subscription's allocation, returning it to confirmed
	RemoveAllocation(ctx context.Context, subscriptionID string) (*dto.SubscriptionResponse, error)

	// DistributeTokens distributes a batch of allocations, continuing past failed items
	DistributeTokens(ctx context.Context, req *dto.DistributeRequest) (*dto.DistributionResponse, error)

	// SweepKYC expires lapsed KYC verifications on demand
	SweepKYC(ctx context.Context) (*dto.KYCSweepResponse, error)

	// CreateProject creates a project with an initial cap table
	CreateProject(ctx context.Context, req *dto.CreateProjectRequest) (*dto.ProjectResponse, error)

	// ListProjects retrieves all projects with their cap tables
	ListProjects(ctx context.Context) ([]dto.ProjectResponse, error)

	// DeleteProject removes a project; refused for the last remaining one
	DeleteProject(ctx context.Context, projectID uint64) error

	// CreateCapTable creates a cap table under a project
	CreateCapTable(ctx context.Context, req *dto.CreateCapTableRequest) (*dto.CapTableResponse, error)

	// GetCapTable retrieves a cap table by id
	GetCapTable(ctx context.Context, capTableID uint64) (*dto.CapTableResponse, error)

	// DeleteCapTable removes a cap table; refused for a project's last one
	DeleteCapTable(ctx context.Context, capTableID uint64) error

	// ListCapTableInvestors retrieves a cap table's investors with optional filters
	ListCapTableInvestors(ctx context.Context, capTableID uint64, filter store.CapTableQueryFilter) (*dto.InvestorListResponse, error)

	// AddCapTableInvestor associates an investor with a cap table (idempotent)
	AddCapTableInvestor(ctx context.Context, capTableID uint64, req *dto.AddCapTableInvestorRequest) error

	// RemoveCapTableInvestor removes the association; the investor survives
	RemoveCapTableInvestor(ctx context.Context, capTableID uint64, investorID string) error

	// GetCapTableSummary aggregates a cap table's holdings and compliance posture
	GetCapTableSummary(ctx context.Context, capTableID uint64) (*dto.SummaryResponse, error)

	// ExportCapTable writes the cap table as CSV
	ExportCapTable(ctx context.Context, capTableID uint64, opts csvio.ExportOptions, w io.Writer) error

	// ImportInvestors bulk-creates investors from CSV, reporting rejected rows
	ImportInvestors(ctx context.Context, capTableID *uint64, r io.Reader) (*dto.ImportResponse, error)

	// ImportSubscriptions bulk-creates subscriptions from CSV, matching investors by name
	ImportSubscriptions(ctx context.Context, r io.Reader) (*dto.ImportResponse, error)

	// GetChanges retrieves journal entries after the given cursor
	GetChanges(ctx context.Context, anchor int64, limit *int) (*dto.ChangeListResponse, error)
}

type executor struct {
	store     store.Store
	publisher messaging.Publisher
}

func NewExecutor(store store.Store, publisher messaging.Publisher) Executor {
	return &executor{store: store, publisher: publisher}
}

// mapError translates store and domain errors into API errors
func mapError(err error) *apierrors.APIError {
	var apiErr *apierrors.APIError
	if errors.As(err, &apiErr) {
		return apiErr
	}
	var validationErr *domain.ValidationError
	if errors.As(err, &validationErr) {
		return apierrors.NewValidationError(validationErr.Error())
	}
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return apierrors.NewNotFoundError(err.Error())
	case errors.Is(err, domain.ErrConflict):
		return apierrors.NewConflictError(err.Error())
	default:
		return apierrors.NewDatabaseError(fmt.Sprintf("Operation failed: %v", err))
	}
}

// publish emits a change event after a committed mutation. Publish failures
// are logged and swallowed: the journal row already exists and consumers can
// catch up through the changes feed.
func (e *executor) publish(ctx context.Context, entity domain.ChangeEntity, entityID string, action domain.ChangeAction) {
	event := &domain.ChangeEvent{
		EventID:   ulid.MustNewDefault(time.Now()).String(),
		Entity:    entity,
		EntityID:  entityID,
		Action:    action,
		Timestamp: time.Now().UTC(),
	}
	if err := e.publisher.PublishChange(ctx, event); err != nil {
		logger.ErrorCtx(ctx, fmt.Errorf("failed to publish change event: %w", err),
			zap.String("entity", string(entity)),
			zap.String("entity_id", entityID),
			zap.String("action", string(action)))
	}
}

func (e *executor) CreateInvestor(ctx context.Context, req *dto.CreateInvestorRequest) (*dto.InvestorResponse, error) {
	investor, err := e.store.CreateInvestor(ctx, store.CreateInvestorInput{
		Name:                req.Name,
		Email:               req.Email,
		Type:                domain.InvestorType(req.Type),
		KYCStatus:           domain.KYCStatus(req.KYCStatus),
		Wallet:              req.Wallet,
		KYCExpiryDate:       req.KYCExpiryDate,
		Country:             req.Country,
		AccreditationStatus: req.AccreditationStatus,
		InvestorID:          req.InvestorID,
		CapTableID:          req.CapTableID,
	})
	if err != nil {
		return nil, mapError(err)
	}

	e.publish(ctx, domain.EntityInvestor, investor.InvestorID, domain.ActionCreated)
	return dto.MapInvestorToDTO(investor), nil
}

func (e *executor) UpdateInvestor(ctx context.Context, investorID string, req *dto.UpdateInvestorRequest) (*dto.InvestorResponse, error) {
	var kycStatus *domain.KYCStatus
	if req.KYCStatus != nil {
		s := domain.KYCStatus(*req.KYCStatus)
		kycStatus = &s
	}
	var investorType *domain.InvestorType
	if req.Type != nil {
		t := domain.InvestorType(*req.Type)
		investorType = &t
	}

	investor, err := e.store.UpdateInvestor(ctx, investorID, store.UpdateInvestorInput{
		Name:                req.Name,
		Email:               req.Email,
		Type:                investorType,
		KYCStatus:           kycStatus,
		Wallet:              req.Wallet,
		KYCExpiryDate:       req.KYCExpiryDate,
		Country:             req.Country,
		AccreditationStatus: req.AccreditationStatus,
	})
	if err != nil {
		return nil, mapError(err)
	}

	e.publish(ctx, domain.EntityInvestor, investor.InvestorID, domain.ActionUpdated)
	return dto.MapInvestorToDTO(investor), nil
}

func (e *executor) GetInvestor(ctx context.Context, investorID string) (*dto.InvestorResponse, error) {
	investor, err := e.store.GetInvestor(ctx, investorID)
	if err != nil {
		return nil, mapError(err)
	}
	return dto.MapInvestorToDTO(investor), nil
}

func (e *executor) CreateSubscription(ctx context.Context, req *dto.CreateSubscriptionRequest) (*dto.SubscriptionResponse, error) {
	input := store.CreateSubscriptionInput{
		InvestorID:     req.InvestorID,
		FiatAmount:     req.FiatAmount,
		Currency:       domain.Currency(req.Currency),
		SubscriptionID: req.SubscriptionID,
		Notes:          req.Notes,
		Confirmed:      req.Confirmed,
	}
	if req.SubscriptionDate != nil {
		input.SubscriptionDate = *req.SubscriptionDate
	}

	subscription, err := e.store.CreateSubscription(ctx, input)
	if err != nil {
		return nil, mapError(err)
	}

	e.publish(ctx, domain.EntitySubscription, subscription.SubscriptionID, domain.ActionCreated)
	return dto.MapSubscriptionToDTO(subscription), nil
}

func (e *executor) UpdateSubscription(ctx context.Context, subscriptionID string, req *dto.UpdateSubscriptionRequest) (*dto.SubscriptionResponse, error) {
	var currency *domain.Currency
	if req.Currency != nil {
		c := domain.Currency(*req.Currency)
		currency = &c
	}

	subscription, err := e.store.UpdateSubscription(ctx, subscriptionID, store.UpdateSubscriptionInput{
		FiatAmount:       req.FiatAmount,
		Currency:         currency,
		Notes:            req.Notes,
		SubscriptionDate: req.SubscriptionDate,
	})
	if err != nil {
		return nil, mapError(err)
	}

	e.publish(ctx, domain.EntitySubscription, subscription.SubscriptionID, domain.ActionUpdated)
	return dto.MapSubscriptionToDTO(subscription), nil
}

func (e *executor) GetSubscription(ctx context.Context, subscriptionID string) (*dto.SubscriptionResponse, error) {
	subscription, err := e.store.GetSubscription(ctx, subscriptionID)
	if err != nil {
		return nil, mapError(err)
	}
	return dto.MapSubscriptionToDTO(subscription), nil
}

func (e *executor) DeleteSubscription(ctx context.Context, subscriptionID string) error {
	if err := e.store.DeleteSubscription(ctx, subscriptionID); err != nil {
		return mapError(err)
	}

	e.publish(ctx, domain.EntitySubscription, subscriptionID, domain.ActionDeleted)
	return nil
}

func (e *executor) ConfirmSubscription(ctx context.Context, subscriptionID string) (*dto.SubscriptionResponse, error) {
	subscription, err := e.store.ConfirmSubscription(ctx, subscriptionID)
	if err != nil {
		return nil, mapError(err)
	}

	e.publish(ctx, domain.EntitySubscription, subscription.SubscriptionID, domain.ActionConfirmed)
	return dto.MapSubscriptionToDTO(subscription), nil
}

func (e *executor) AllocateSubscription(ctx context.Context, subscriptionID string, req *dto.AllocateRequest) (*dto.SubscriptionResponse, error) {
	subscription, err := e.store.AllocateSubscription(ctx, subscriptionID, domain.TokenType(req.TokenType), req.TokenAmount)
	if err != nil {
		return nil, mapError(err)
	}

	e.publish(ctx, domain.EntitySubscription, subscription.SubscriptionID, domain.ActionAllocated)
	return dto.MapSubscriptionToDTO(subscription), nil
}

func (e *executor) RemoveAllocation(ctx context.Context, subscriptionID string) (*dto.SubscriptionResponse, error) {
	subscription, err := e.store.RemoveAllocation(ctx, subscriptionID)
	if err != nil {
		return nil, mapError(err)
	}

	e.publish(ctx, domain.EntitySubscription, subscription.SubscriptionID, domain.ActionDeallocated)
	return dto.MapSubscriptionToDTO(subscription), nil
}

func (e *executor) DistributeTokens(ctx context.Context, req *dto.DistributeRequest) (*dto.DistributionResponse, error) {
	if len(req.AllocationIDs) > constants.MAX_ALLOCATIONS_PER_REQUEST {
		return nil, apierrors.NewBadRequestError(
			fmt.Sprintf("Cannot distribute more than %d allocations per request", constants.MAX_ALLOCATIONS_PER_REQUEST))
	}

	result, err := e.store.DistributeTokens(ctx, req.AllocationIDs)
	if err != nil && result == nil {
		return nil, mapError(err)
	}

	for _, item := range result.Results {
		if item.Success {
			e.publish(ctx, domain.EntityAllocation, fmt.Sprintf("%d", item.AllocationID), domain.ActionDistributed)
		}
	}

	response := &dto.DistributionResponse{
		Distributed: result.Distributed,
		Results:     result.Results,
	}
	if err != nil {
		// Context was canceled partway; report what completed.
		logger.WarnCtx(ctx, "batch distribution interrupted", zap.Error(err))
	}
	return response, nil
}

func (e *executor) SweepKYC(ctx context.Context) (*dto.KYCSweepResponse, error) {
	expired, err := e.store.CheckKYCExpirations(ctx, time.Now())
	if err != nil {
		return nil, mapError(err)
	}
	return &dto.KYCSweepResponse{Expired: expired}, nil
}

func (e *executor) CreateProject(ctx context.Context, req *dto.CreateProjectRequest) (*dto.ProjectResponse, error) {
	project, err := e.store.CreateProject(ctx, req.Name, req.Description)
	if err != nil {
		return nil, mapError(err)
	}

	e.publish(ctx, domain.EntityProject, fmt.Sprintf("%d", project.ID), domain.ActionCreated)
	return dto.MapProjectToDTO(project), nil
}

func (e *executor) ListProjects(ctx context.Context) ([]dto.ProjectResponse, error) {
	projects, err := e.store.ListProjects(ctx)
	if err != nil {
		return nil, mapError(err)
	}

	responses := make([]dto.ProjectResponse, 0, len(projects))
	for i := range projects {
		responses = append(responses, *dto.MapProjectToDTO(&projects[i]))
	}
	return responses, nil
}

func (e *executor) DeleteProject(ctx context.Context, projectID uint64) error {
	if err := e.store.DeleteProject(ctx, projectID); err != nil {
		return mapError(err)
	}

	e.publish(ctx, domain.EntityProject, fmt.Sprintf("%d", projectID), domain.ActionDeleted)
	return nil
}

func (e *executor) CreateCapTable(ctx context.Context, req *dto.CreateCapTableRequest) (*dto.CapTableResponse, error) {
	capTable, err := e.store.CreateCapTable(ctx, req.ProjectID, req.Name, req.Description)
	if err != nil {
		return nil, mapError(err)
	}

	e.publish(ctx, domain.EntityCapTable, fmt.Sprintf("%d", capTable.ID), domain.ActionCreated)
	return dto.MapCapTableToDTO(capTable), nil
}

func (e *executor) GetCapTable(ctx context.Context, capTableID uint64) (*dto.CapTableResponse, error) {
	capTable, err := e.store.GetCapTable(ctx, capTableID)
	if err != nil {
		return nil, mapError(err)
	}
	return dto.MapCapTableToDTO(capTable), nil
}

func (e *executor) DeleteCapTable(ctx context.Context, capTableID uint64) error {
	if err := e.store.DeleteCapTable(ctx, capTableID); err != nil {
		return mapError(err)
	}

	e.publish(ctx, domain.EntityCapTable, fmt.Sprintf("%d", capTableID), domain.ActionDeleted)
	return nil
}

func (e *executor) ListCapTableInvestors(ctx context.Context, capTableID uint64, filter store.CapTableQueryFilter) (*dto.InvestorListResponse, error) {
	if filter.Limit <= 0 {
		filter.Limit = constants.DEFAULT_INVESTORS_LIMIT
	}
	if filter.Limit > constants.MAX_PAGE_SIZE {
		filter.Limit = constants.MAX_PAGE_SIZE
	}

	investors, total, err := e.store.ListInvestorsByCapTable(ctx, capTableID, filter)
	if err != nil {
		return nil, mapError(err)
	}

	response := &dto.InvestorListResponse{
		Investors: make([]dto.InvestorResponse, 0, len(investors)),
		Total:     total,
	}
	for i := range investors {
		response.Investors = append(response.Investors, *dto.MapInvestorToDTO(&investors[i]))
	}
	if next := filter.Offset + len(investors); int64(next) < total {
		response.Offset = &next
	}
	return response, nil
}

func (e *executor) AddCapTableInvestor(ctx context.Context, capTableID uint64, req *dto.AddCapTableInvestorRequest) error {
	if err := e.store.AddInvestorToCapTable(ctx, req.InvestorID, capTableID); err != nil {
		return mapError(err)
	}

	e.publish(ctx, domain.EntityCapTable, fmt.Sprintf("%d", capTableID), domain.ActionUpdated)
	return nil
}

func (e *executor) RemoveCapTableInvestor(ctx context.Context, capTableID uint64, investorID string) error {
	if err := e.store.RemoveInvestorFromCapTable(ctx, investorID, capTableID); err != nil {
		return mapError(err)
	}

	e.publish(ctx, domain.EntityCapTable, fmt.Sprintf("%d", capTableID), domain.ActionUpdated)
	return nil
}

func (e *executor) GetCapTableSummary(ctx context.Context, capTableID uint64) (*dto.SummaryResponse, error) {
	if _, err := e.store.GetCapTable(ctx, capTableID); err != nil {
		return nil, mapError(err)
	}

	// Aggregation walks every member, so page through without a cap.
	investors, total, err := e.store.ListInvestorsByCapTable(ctx, capTableID, store.CapTableQueryFilter{Limit: -1})
	if err != nil {
		return nil, mapError(err)
	}

	return &dto.SummaryResponse{
		CapTableID:           capTableID,
		InvestorCount:        total,
		TotalAllocated:       reporting.TotalAllocated(investors),
		TotalDistributed:     reporting.TotalDistributed(investors),
		DistributionProgress: reporting.DistributionProgress(investors),
		KYC:                  reporting.KYCCounts(investors),
		Categories:           reporting.TypeCategoryCounts(investors),
		TokenTypes:           reporting.TokenTypeSummary(investors),
	}, nil
}

func (e *executor) ExportCapTable(ctx context.Context, capTableID uint64, opts csvio.ExportOptions, w io.Writer) error {
	if _, err := e.store.GetCapTable(ctx, capTableID); err != nil {
		return mapError(err)
	}

	investors, _, err := e.store.ListInvestorsByCapTable(ctx, capTableID, store.CapTableQueryFilter{Limit: -1})
	if err != nil {
		return mapError(err)
	}

	if err := csvio.ExportCapTable(w, investors, opts); err != nil {
		return apierrors.NewInternalError(fmt.Sprintf("Failed to write export: %v", err))
	}
	return nil
}

func (e *executor) ImportInvestors(ctx context.Context, capTableID *uint64, r io.Reader) (*dto.ImportResponse, error) {
	parsed, err := csvio.ImportInvestors(r)
	if err != nil {
		return nil, apierrors.NewBadRequestError(fmt.Sprintf("Failed to parse CSV: %v", err))
	}

	response := &dto.ImportResponse{Rejected: parsed.Rejected}
	for _, row := range parsed.Rows {
		investor, err := e.store.CreateInvestor(ctx, store.CreateInvestorInput{
			Name:       row.Name,
			Email:      row.Email,
			Type:       row.Type,
			Wallet:     row.Wallet,
			Country:    optionalString(row.Country),
			InvestorID: row.InvestorID,
			CapTableID: capTableID,
		})
		if err != nil {
			response.Rejected = append(response.Rejected, csvio.RowError{Row: row.SourceRow, Reason: err.Error()})
			continue
		}
		e.publish(ctx, domain.EntityInvestor, investor.InvestorID, domain.ActionCreated)
		response.Imported++
	}
	return response, nil
}

func (e *executor) ImportSubscriptions(ctx context.Context, r io.Reader) (*dto.ImportResponse, error) {
	parsed, err := csvio.ImportSubscriptions(r)
	if err != nil {
		return nil, apierrors.NewBadRequestError(fmt.Sprintf("Failed to parse CSV: %v", err))
	}

	response := &dto.ImportResponse{Rejected: parsed.Rejected}
	for _, row := range parsed.Rows {
		investor, err := e.store.GetInvestorByName(ctx, row.InvestorName)
		if err != nil {
			response.Rejected = append(response.Rejected, csvio.RowError{Row: row.SourceRow, Reason: fmt.Sprintf("investor %q not found", row.InvestorName)})
			continue
		}

		input := store.CreateSubscriptionInput{
			InvestorID:       investor.InvestorID,
			FiatAmount:       row.FiatAmount,
			Currency:         row.Currency,
			SubscriptionID:   row.SubscriptionID,
			SubscriptionDate: row.SubscriptionDate,
			Confirmed:        row.Confirmed,
		}
		subscription, err := e.store.CreateSubscription(ctx, input)
		if err != nil {
			response.Rejected = append(response.Rejected, csvio.RowError{Row: row.SourceRow, Reason: err.Error()})
			continue
		}
		e.publish(ctx, domain.EntitySubscription, subscription.SubscriptionID, domain.ActionCreated)
		response.Imported++
	}
	return response, nil
}

func (e *executor) GetChanges(ctx context.Context, anchor int64, limit *int) (*dto.ChangeListResponse, error) {
	pageSize := constants.DEFAULT_CHANGES_LIMIT
	if limit != nil {
		pageSize = *limit
	}
	if pageSize > constants.MAX_PAGE_SIZE {
		pageSize = constants.MAX_PAGE_SIZE
	}

	entries, err := e.store.GetChanges(ctx, anchor, pageSize)
	if err != nil {
		return nil, mapError(err)
	}

	response := &dto.ChangeListResponse{
		Changes:    make([]dto.ChangeResponse, 0, len(entries)),
		NextCursor: anchor,
	}
	for i := range entries {
		response.Changes = append(response.Changes, *dto.MapChangeToDTO(&entries[i]))
		response.NextCursor = entries[i].Cursor
	}
	return response, nil
}

func optionalString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
