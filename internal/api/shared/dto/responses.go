package dto

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"

	"github.com/clearmint/captable/internal/csvio"
	"github.com/clearmint/captable/internal/domain"
	"github.com/clearmint/captable/internal/reporting"
	"github.com/clearmint/captable/internal/store"
	"github.com/clearmint/captable/internal/store/schema"
)

// ProjectResponse represents a project with its cap tables
type ProjectResponse struct {
	ID          uint64             `json:"id"`
	Name        string             `json:"name"`
	Description string             `json:"description,omitempty"`
	CreatedAt   time.Time          `json:"created_at"`
	CapTables   []CapTableResponse `json:"cap_tables,omitempty"`
}

// CapTableResponse represents a cap table
type CapTableResponse struct {
	ID          uint64    `json:"id"`
	ProjectID   uint64    `json:"project_id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// MapProjectToDTO maps a schema.Project to ProjectResponse
func MapProjectToDTO(project *schema.Project) *ProjectResponse {
	dto := &ProjectResponse{
		ID:          project.ID,
		Name:        project.Name,
		Description: project.Description,
		CreatedAt:   project.CreatedAt,
	}
	for i := range project.CapTables {
		dto.CapTables = append(dto.CapTables, *MapCapTableToDTO(&project.CapTables[i]))
	}
	return dto
}

// MapCapTableToDTO maps a schema.CapTable to CapTableResponse
func MapCapTableToDTO(capTable *schema.CapTable) *CapTableResponse {
	return &CapTableResponse{
		ID:          capTable.ID,
		ProjectID:   capTable.ProjectID,
		Name:        capTable.Name,
		Description: capTable.Description,
		CreatedAt:   capTable.CreatedAt,
	}
}

// SummaryResponse aggregates a cap table's holdings and compliance posture
type SummaryResponse struct {
	CapTableID           uint64                                        `json:"cap_table_id"`
	InvestorCount        int64                                         `json:"investor_count"`
	TotalAllocated       decimal.Decimal                               `json:"total_allocated"`
	TotalDistributed     decimal.Decimal                               `json:"total_distributed"`
	DistributionProgress int                                           `json:"distribution_progress"`
	KYC                  reporting.KYCCountSummary                     `json:"kyc"`
	Categories           map[domain.TypeCategory]int                   `json:"categories"`
	TokenTypes           map[domain.TokenType]reporting.TokenTypeStats `json:"token_types"`
}

// DistributionResponse reports the per-item outcome of a batch distribution
type DistributionResponse struct {
	Distributed int                            `json:"distributed"`
	Results     []store.DistributionItemResult `json:"results"`
}

// KYCSweepResponse reports how many investors a manual sweep expired
type KYCSweepResponse struct {
	Expired int `json:"expired"`
}

// ImportResponse reports the outcome of a CSV import
type ImportResponse struct {
	Imported int              `json:"imported"`
	Rejected []csvio.RowError `json:"rejected,omitempty"`
}

// ChangeResponse represents one changes journal entry
type ChangeResponse struct {
	Cursor    int64               `json:"cursor"`
	EventID   string              `json:"event_id"`
	Entity    domain.ChangeEntity `json:"entity"`
	EntityID  string              `json:"entity_id"`
	Action    domain.ChangeAction `json:"action"`
	ChangedAt time.Time           `json:"changed_at"`
	Meta      json.RawMessage     `json:"meta,omitempty"`
}

// ChangeListResponse represents a page of journal entries. NextCursor feeds
// the anchor parameter of the next request.
type ChangeListResponse struct {
	Changes    []ChangeResponse `json:"items"`
	NextCursor int64            `json:"next_cursor"`
}

// MapChangeToDTO maps a schema.ChangesJournal to ChangeResponse
func MapChangeToDTO(entry *schema.ChangesJournal) *ChangeResponse {
	return &ChangeResponse{
		Cursor:    entry.Cursor,
		EventID:   entry.EventID,
		Entity:    entry.Entity,
		EntityID:  entry.EntityID,
		Action:    entry.Action,
		ChangedAt: entry.ChangedAt,
		Meta:      json.RawMessage(entry.Meta),
	}
}
