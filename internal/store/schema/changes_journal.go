package schema

import (
	"time"

	"gorm.io/datatypes"

	"github.com/clearmint/captable/internal/domain"
)

// ChangesJournal represents the changes_journal table - the audit log of every
// mutation the gateway performs. Removed allocations are journaled here before
// their row is deleted, so history survives the hard delete.
type ChangesJournal struct {
	// Cursor is an auto-incrementing sequence number for ordering and pagination
	Cursor int64 `gorm:"column:\"cursor\";primaryKey;autoIncrement"`
	// EventID is a ULID assigned at write time
	EventID string `gorm:"column:event_id;not null;type:text;uniqueIndex"`
	// Entity identifies the kind of entity that changed
	Entity domain.ChangeEntity `gorm:"column:entity;not null;type:text;index"`
	// EntityID is the external identifier of the changed entity
	EntityID string `gorm:"column:entity_id;not null;type:text;index"`
	// Action identifies what happened
	Action domain.ChangeAction `gorm:"column:action;not null;type:text"`
	// ChangedAt is when the change occurred
	ChangedAt time.Time `gorm:"column:changed_at;not null;default:now();type:timestamptz"`
	// Meta carries change context as JSON (prior allocation fields, changed columns, ...)
	Meta datatypes.JSON `gorm:"column:meta;type:jsonb"`
}

// TableName specifies the table name for the ChangesJournal model
func (ChangesJournal) TableName() string {
	return "changes_journal"
}
