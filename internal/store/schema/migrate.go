package schema

import "gorm.io/gorm"

// Migrate creates or updates all cap table tables
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&Project{},
		&CapTable{},
		&Investor{},
		&CapTableInvestor{},
		&TokenSubscription{},
		&TokenAllocation{},
		&ChangesJournal{},
	)
}
