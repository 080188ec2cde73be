package rest

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/clearmint/captable/internal/api/shared/constants"
	"github.com/clearmint/captable/internal/api/shared/dto"
	"github.com/clearmint/captable/internal/api/shared/executor"
	"github.com/clearmint/captable/internal/csvio"
	"github.com/clearmint/captable/internal/domain"
	"github.com/clearmint/captable/internal/store"
)

// Handler defines the interface for REST API handlers
// This interface allows for easy mocking and testing
type Handler interface {
	// CreateInvestor registers an investor
	// POST /api/v1/investors
	CreateInvestor(c *gin.Context)

	// GetInvestor retrieves an investor with its subscriptions
	// GET /api/v1/investors/:investor_id
	GetInvestor(c *gin.Context)

	// UpdateInvestor partially updates an investor
	// PATCH /api/v1/investors/:investor_id
	UpdateInvestor(c *gin.Context)

	// CreateSubscription records a fiat subscription
	// POST /api/v1/subscriptions
	CreateSubscription(c *gin.Context)

	// GetSubscription retrieves a subscription by code
	// GET /api/v1/subscriptions/:subscription_id
	GetSubscription(c *gin.Context)

	// UpdateSubscription partially updates a subscription
	// PATCH /api/v1/subscriptions/:subscription_id
	UpdateSubscription(c *gin.Context)

	// DeleteSubscription removes a subscription; refused once distributed
	// DELETE /api/v1/subscriptions/:subscription_id
	DeleteSubscription(c *gin.Context)

	// ConfirmSubscription confirms a pending subscription (idempotent)
	// POST /api/v1/subscriptions/:subscription_id/confirm
	ConfirmSubscription(c *gin.Context)

	// AllocateSubscription allocates tokens to a confirmed subscription
	// POST /api/v1/subscriptions/:subscription_id/allocation
	AllocateSubscription(c *gin.Context)

	// RemoveAllocation removes a subscription's allocation
	// DELETE /api/v1/subscriptions/:subscription_id/allocation
	RemoveAllocation(c *gin.Context)

	// DistributeTokens distributes a batch of allocations
	// POST /api/v1/distributions
	DistributeTokens(c *gin.Context)

	// SweepKYC runs a manual KYC expiration sweep
	// POST /api/v1/kyc/sweep
	SweepKYC(c *gin.Context)

	// CreateProject creates a project with an initial cap table
	// POST /api/v1/projects
	CreateProject(c *gin.Context)

	// ListProjects retrieves all projects with their cap tables
	// GET /api/v1/projects
	ListProjects(c *gin.Context)

	// DeleteProject removes a project; refused for the last one
	// DELETE /api/v1/projects/:project_id
	DeleteProject(c *gin.Context)

	// CreateCapTable creates a cap table under a project
	// POST /api/v1/cap-tables
	CreateCapTable(c *gin.Context)

	// GetCapTable retrieves a cap table
	// GET /api/v1/cap-tables/:cap_table_id
	GetCapTable(c *gin.Context)

	// DeleteCapTable removes a cap table; refused for a project's last one
	// DELETE /api/v1/cap-tables/:cap_table_id
	DeleteCapTable(c *gin.Context)

	// ListCapTableInvestors lists a cap table's investors
	// GET /api/v1/cap-tables/:cap_table_id/investors?kyc_status=<status>&type=<type>&limit=<limit>&offset=<offset>
	ListCapTableInvestors(c *gin.Context)

	// AddCapTableInvestor associates an investor with a cap table
	// POST /api/v1/cap-tables/:cap_table_id/investors
	AddCapTableInvestor(c *gin.Context)

	// RemoveCapTableInvestor removes the association only
	// DELETE /api/v1/cap-tables/:cap_table_id/investors/:investor_id
	RemoveCapTableInvestor(c *gin.Context)

	// GetCapTableSummary aggregates a cap table's holdings
	// GET /api/v1/cap-tables/:cap_table_id/summary
	GetCapTableSummary(c *gin.Context)

	// ExportCapTable streams the cap table as CSV
	// GET /api/v1/cap-tables/:cap_table_id/export?include_kyc=<bool>&include_wallet=<bool>&include_distribution=<bool>
	ExportCapTable(c *gin.Context)

	// ImportInvestors bulk-creates investors from a CSV request body
	// POST /api/v1/cap-tables/:cap_table_id/investors/import
	ImportInvestors(c *gin.Context)

	// ImportSubscriptions bulk-creates subscriptions from a CSV request body
	// POST /api/v1/subscriptions/import
	ImportSubscriptions(c *gin.Context)

	// GetChanges retrieves journal entries after a cursor
	// GET /api/v1/changes?anchor=<cursor>&limit=<limit>
	GetChanges(c *gin.Context)

	// HealthCheck returns the health status of the API
	// GET /health
	HealthCheck(c *gin.Context)
}

// handler implements the Handler interface
type handler struct {
	executor executor.Executor
}

// NewHandler creates a new REST API handler using the shared executor
func NewHandler(exec executor.Executor) Handler {
	return &handler{executor: exec}
}

func parseID(c *gin.Context, param string) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param(param), 10, 64)
	if err != nil || id == 0 {
		respondBadRequest(c, fmt.Sprintf("Invalid %s", param))
		return 0, false
	}
	return id, true
}

func (h *handler) CreateInvestor(c *gin.Context) {
	var req dto.CreateInvestorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "Invalid request body", err.Error())
		return
	}
	if apiErr := req.Validate(); apiErr != nil {
		respondError(c, apiErr)
		return
	}

	investor, err := h.executor.CreateInvestor(c.Request.Context(), &req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, investor)
}

func (h *handler) GetInvestor(c *gin.Context) {
	investorID := c.Param("investor_id")
	if investorID == "" {
		respondBadRequest(c, "Investor ID is required")
		return
	}

	investor, err := h.executor.GetInvestor(c.Request.Context(), investorID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, investor)
}

func (h *handler) UpdateInvestor(c *gin.Context) {
	investorID := c.Param("investor_id")

	var req dto.UpdateInvestorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "Invalid request body", err.Error())
		return
	}
	if apiErr := req.Validate(); apiErr != nil {
		respondError(c, apiErr)
		return
	}

	investor, err := h.executor.UpdateInvestor(c.Request.Context(), investorID, &req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, investor)
}

func (h *handler) CreateSubscription(c *gin.Context) {
	var req dto.CreateSubscriptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "Invalid request body", err.Error())
		return
	}
	if apiErr := req.Validate(); apiErr != nil {
		respondError(c, apiErr)
		return
	}

	subscription, err := h.executor.CreateSubscription(c.Request.Context(), &req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, subscription)
}

func (h *handler) GetSubscription(c *gin.Context) {
	subscription, err := h.executor.GetSubscription(c.Request.Context(), c.Param("subscription_id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, subscription)
}

func (h *handler) UpdateSubscription(c *gin.Context) {
	var req dto.UpdateSubscriptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "Invalid request body", err.Error())
		return
	}
	if apiErr := req.Validate(); apiErr != nil {
		respondError(c, apiErr)
		return
	}

	subscription, err := h.executor.UpdateSubscription(c.Request.Context(), c.Param("subscription_id"), &req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, subscription)
}

func (h *handler) DeleteSubscription(c *gin.Context) {
	if err := h.executor.DeleteSubscription(c.Request.Context(), c.Param("subscription_id")); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *handler) ConfirmSubscription(c *gin.Context) {
	subscription, err := h.executor.ConfirmSubscription(c.Request.Context(), c.Param("subscription_id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, subscription)
}

func (h *handler) AllocateSubscription(c *gin.Context) {
	var req dto.AllocateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "Invalid request body", err.Error())
		return
	}
	if apiErr := req.Validate(); apiErr != nil {
		respondError(c, apiErr)
		return
	}

	subscription, err := h.executor.AllocateSubscription(c.Request.Context(), c.Param("subscription_id"), &req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, subscription)
}

func (h *handler) RemoveAllocation(c *gin.Context) {
	subscription, err := h.executor.RemoveAllocation(c.Request.Context(), c.Param("subscription_id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, subscription)
}

func (h *handler) DistributeTokens(c *gin.Context) {
	var req dto.DistributeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "Invalid request body", err.Error())
		return
	}
	if apiErr := req.Validate(); apiErr != nil {
		respondError(c, apiErr)
		return
	}

	result, err := h.executor.DistributeTokens(c.Request.Context(), &req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *handler) SweepKYC(c *gin.Context) {
	result, err := h.executor.SweepKYC(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *handler) CreateProject(c *gin.Context) {
	var req dto.CreateProjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "Invalid request body", err.Error())
		return
	}
	if apiErr := req.Validate(); apiErr != nil {
		respondError(c, apiErr)
		return
	}

	project, err := h.executor.CreateProject(c.Request.Context(), &req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, project)
}

func (h *handler) ListProjects(c *gin.Context) {
	projects, err := h.executor.ListProjects(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": projects})
}

func (h *handler) DeleteProject(c *gin.Context) {
	projectID, ok := parseID(c, "project_id")
	if !ok {
		return
	}
	if err := h.executor.DeleteProject(c.Request.Context(), projectID); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *handler) CreateCapTable(c *gin.Context) {
	var req dto.CreateCapTableRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "Invalid request body", err.Error())
		return
	}
	if apiErr := req.Validate(); apiErr != nil {
		respondError(c, apiErr)
		return
	}

	capTable, err := h.executor.CreateCapTable(c.Request.Context(), &req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, capTable)
}

func (h *handler) GetCapTable(c *gin.Context) {
	capTableID, ok := parseID(c, "cap_table_id")
	if !ok {
		return
	}

	capTable, err := h.executor.GetCapTable(c.Request.Context(), capTableID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, capTable)
}

func (h *handler) DeleteCapTable(c *gin.Context) {
	capTableID, ok := parseID(c, "cap_table_id")
	if !ok {
		return
	}
	if err := h.executor.DeleteCapTable(c.Request.Context(), capTableID); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *handler) ListCapTableInvestors(c *gin.Context) {
	capTableID, ok := parseID(c, "cap_table_id")
	if !ok {
		return
	}

	filter := store.CapTableQueryFilter{
		Limit:  constants.DEFAULT_INVESTORS_LIMIT,
		Offset: constants.DEFAULT_OFFSET,
	}
	if raw := c.Query("kyc_status"); raw != "" {
		status := domain.KYCStatus(raw)
		if !domain.IsValidKYCStatus(status) {
			respondValidationError(c, fmt.Sprintf("unknown kyc_status %q", raw))
			return
		}
		filter.KYCStatus = &status
	}
	if raw := c.Query("type"); raw != "" {
		investorType := domain.InvestorType(raw)
		if !domain.IsValidInvestorType(investorType) {
			respondValidationError(c, fmt.Sprintf("unknown investor type %q", raw))
			return
		}
		filter.Type = &investorType
	}
	if raw := c.Query("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit <= 0 {
			respondValidationError(c, "limit must be a positive integer")
			return
		}
		filter.Limit = limit
	}
	if raw := c.Query("offset"); raw != "" {
		offset, err := strconv.Atoi(raw)
		if err != nil || offset < 0 {
			respondValidationError(c, "offset must be a non-negative integer")
			return
		}
		filter.Offset = offset
	}

	response, err := h.executor.ListCapTableInvestors(c.Request.Context(), capTableID, filter)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response)
}

func (h *handler) AddCapTableInvestor(c *gin.Context) {
	capTableID, ok := parseID(c, "cap_table_id")
	if !ok {
		return
	}

	var req dto.AddCapTableInvestorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "Invalid request body", err.Error())
		return
	}
	if apiErr := req.Validate(); apiErr != nil {
		respondError(c, apiErr)
		return
	}

	if err := h.executor.AddCapTableInvestor(c.Request.Context(), capTableID, &req); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *handler) RemoveCapTableInvestor(c *gin.Context) {
	capTableID, ok := parseID(c, "cap_table_id")
	if !ok {
		return
	}

	if err := h.executor.RemoveCapTableInvestor(c.Request.Context(), capTableID, c.Param("investor_id")); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *handler) GetCapTableSummary(c *gin.Context) {
	capTableID, ok := parseID(c, "cap_table_id")
	if !ok {
		return
	}

	summary, err := h.executor.GetCapTableSummary(c.Request.Context(), capTableID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

func (h *handler) ExportCapTable(c *gin.Context) {
	capTableID, ok := parseID(c, "cap_table_id")
	if !ok {
		return
	}

	opts := csvio.ExportOptions{
		IncludeKYC:          c.DefaultQuery("include_kyc", "true") == "true",
		IncludeWallet:       c.DefaultQuery("include_wallet", "true") == "true",
		IncludeDistribution: c.DefaultQuery("include_distribution", "true") == "true",
	}

	c.Header("Content-Type", "text/csv")
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=cap-table-%d.csv", capTableID))
	if err := h.executor.ExportCapTable(c.Request.Context(), capTableID, opts, c.Writer); err != nil {
		respondError(c, err)
		return
	}
}

func (h *handler) ImportInvestors(c *gin.Context) {
	capTableID, ok := parseID(c, "cap_table_id")
	if !ok {
		return
	}

	result, err := h.executor.ImportInvestors(c.Request.Context(), &capTableID, c.Request.Body)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *handler) ImportSubscriptions(c *gin.Context) {
	result, err := h.executor.ImportSubscriptions(c.Request.Context(), c.Request.Body)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *handler) GetChanges(c *gin.Context) {
	var anchor int64
	if raw := c.Query("anchor"); raw != "" {
		parsed, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || parsed < 0 {
			respondValidationError(c, "anchor must be a non-negative integer")
			return
		}
		anchor = parsed
	}

	var limit *int
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			respondValidationError(c, "limit must be a positive integer")
			return
		}
		limit = &parsed
	}

	response, err := h.executor.GetChanges(c.Request.Context(), anchor, limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response)
}

func (h *handler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
