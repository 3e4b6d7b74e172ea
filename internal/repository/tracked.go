package repository

import (
	"context"
	"time"

	"gorm.io/gorm/clause"

	apperrors "github.com/rendoarsandi/content-boost-sub002/pkg/errors"
)

// UpsertTrackedContent registers or updates a content item under collection.
func (r *Repository) UpsertTrackedContent(ctx context.Context, row TrackedContentRow) error {
	now := time.Now()
	row.UpdatedAt = now
	if row.CreatedAt.IsZero() {
		row.CreatedAt = now
	}
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "platform"}, {Name: "content_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"verified", "verify_reason", "tracking_active", "updated_at"}),
	}).Create(&row).Error
	if err != nil {
		return &apperrors.DatabaseError{Operation: "upsert_tracked_content", Err: err}
	}
	return nil
}

// TrackedContents lists content items with active collection.
func (r *Repository) TrackedContents(ctx context.Context) ([]TrackedContentRow, error) {
	var rows []TrackedContentRow
	err := r.db.WithContext(ctx).
		Where("tracking_active = ? AND verified = ?", true, true).
		Find(&rows).Error
	if err != nil {
		return nil, &apperrors.DatabaseError{Operation: "tracked_contents", Err: err}
	}
	return rows, nil
}
