// Package repository is the persistence layer for the settlement pipeline.
// GORM carries most access; the snapshot time-series insert keeps a raw SQL
// path on the shared pool. Methods are split by domain:
//   - snapshots.go: metrics time-series and view records
//   - assessments.go: fraud audit trail and applied actions
//   - payouts.go: batches, payouts, promotions, revenue, notifications
//   - deadletter.go: terminal ingest failures
//   - tracked.go: content items under collection
package repository

import (
	"context"
	"database/sql"
	"fmt"

	"gorm.io/gorm"
)

// Repository: GORM-backed persistence with a raw pool for hot inserts.
type Repository struct {
	db  *gorm.DB
	sql *sql.DB
}

// New creates a Repository. sqlDB may be nil in tests; the raw insert path
// then falls back to the ORM.
func New(db *gorm.DB, sqlDB *sql.DB) *Repository {
	return &Repository{db: db, sql: sqlDB}
}

// AutoMigrate creates or updates every table the pipeline owns.
func (r *Repository) AutoMigrate(ctx context.Context) error {
	if r == nil || r.db == nil {
		return fmt.Errorf("db is nil")
	}
	if err := r.db.WithContext(ctx).AutoMigrate(
		&SnapshotRow{},
		&AssessmentRow{},
		&AppliedActionRow{},
		&ViewRecordRow{},
		&PayoutRow{},
		&BatchRow{},
		&PromotionRow{},
		&TrackedContentRow{},
		&DeadLetterRow{},
		&RevenueRow{},
		&NotificationRow{},
	); err != nil {
		return fmt.Errorf("auto migrate failed: %w", err)
	}
	return nil
}
