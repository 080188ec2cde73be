package schema

import "time"

// CapTable represents the cap_tables table
type CapTable struct {
	// ID is the internal database primary key
	ID uint64 `gorm:"column:id;primaryKey;autoIncrement"`
	// ProjectID references the owning project
	ProjectID uint64 `gorm:"column:project_id;not null;index"`
	// Name is the cap table's display name
	Name string `gorm:"column:name;not null;type:text"`
	// Description is optional free text
	Description string `gorm:"column:description;type:text"`
	// CreatedAt is the timestamp when this cap table was created
	CreatedAt time.Time `gorm:"column:created_at;not null;default:now();type:timestamptz"`
	// UpdatedAt is the timestamp when this cap table was last updated
	UpdatedAt time.Time `gorm:"column:updated_at;not null;default:now();type:timestamptz"`
}

// TableName specifies the table name for the CapTable model
func (CapTable) TableName() string {
	return "cap_tables"
}

// CapTableInvestor represents the cap_table_investors join table. An investor
// may belong to multiple cap tables; removing the association does not delete
// the investor or its subscriptions.
type CapTableInvestor struct {
	// ID is the internal database primary key
	ID uint64 `gorm:"column:id;primaryKey;autoIncrement"`
	// CapTableID references the cap table
	CapTableID uint64 `gorm:"column:cap_table_id;not null;uniqueIndex:idx_cap_table_investor,priority:1"`
	// InvestorRowID references the investor
	InvestorRowID uint64 `gorm:"column:investor_row_id;not null;uniqueIndex:idx_cap_table_investor,priority:2"`
	// CreatedAt is the timestamp when the association was made
	CreatedAt time.Time `gorm:"column:created_at;not null;default:now();type:timestamptz"`

	// Associations
	CapTable CapTable `gorm:"foreignKey:CapTableID;constraint:OnDelete:CASCADE"`
	Investor Investor `gorm:"foreignKey:InvestorRowID;constraint:OnDelete:CASCADE"`
}

// TableName specifies the table name for the CapTableInvestor model
func (CapTableInvestor) TableName() string {
	return "cap_table_investors"
}
