package repository

import "database/sql"

// Repositories holds all repository instances.
type Repositories struct {
	Billing BillingRepository
	Insight InsightRepository
}

// NewRepositories creates all repository instances.
func NewRepositories(db *sql.DB) *Repositories {
	return &Repositories{
		Billing: NewSQLiteBillingRepository(db),
		Insight: NewSQLiteInsightRepository(db),
	}
}
