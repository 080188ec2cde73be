package schema

import "time"

// Project represents the projects table. A project owns zero or more cap
// tables; the system never presents a zero-project state (see store.Bootstrap).
type Project struct {
	// ID is the internal database primary key
	ID uint64 `gorm:"column:id;primaryKey;autoIncrement"`
	// Name is the project's display name
	Name string `gorm:"column:name;not null;type:text"`
	// Description is optional free text
	Description string `gorm:"column:description;type:text"`
	// CreatedAt is the timestamp when this project was created
	CreatedAt time.Time `gorm:"column:created_at;not null;default:now();type:timestamptz"`
	// UpdatedAt is the timestamp when this project was last updated
	UpdatedAt time.Time `gorm:"column:updated_at;not null;default:now();type:timestamptz"`

	// Associations
	CapTables []CapTable `gorm:"foreignKey:ProjectID;constraint:OnDelete:CASCADE"`
}

// TableName specifies the table name for the Project model
func (Project) TableName() string {
	return "projects"
}
