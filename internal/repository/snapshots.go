package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/rendoarsandi/content-boost-sub002/internal/domain"
	apperrors "github.com/rendoarsandi/content-boost-sub002/pkg/errors"
)

const insertSnapshotSQL = `INSERT INTO view_metrics_snapshots
(platform, content_id, promoter_id, campaign_id, view_count, like_count, comment_count, share_count, engagement, observed_at, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

// InsertSnapshot appends one observation to the time-series. The hot path
// uses a prepared raw statement on the shared pool; without one (tests on
// sqlite) it goes through the ORM.
func (r *Repository) InsertSnapshot(ctx context.Context, s domain.ViewMetricsSnapshot) error {
	now := time.Now()
	if r.sql != nil {
		_, err := r.sql.ExecContext(ctx, insertSnapshotSQL,
			string(s.Platform), s.ContentID, s.PromoterID, s.CampaignID,
			s.ViewCount, s.LikeCount, s.CommentCount, s.ShareCount,
			s.EngagementRate, s.Timestamp, now,
		)
		if err != nil {
			return &apperrors.DatabaseError{Operation: "insert_snapshot", Err: err}
		}
		return nil
	}

	row := SnapshotRow{
		Platform:     string(s.Platform),
		ContentID:    s.ContentID,
		PromoterID:   s.PromoterID,
		CampaignID:   s.CampaignID,
		ViewCount:    s.ViewCount,
		LikeCount:    s.LikeCount,
		CommentCount: s.CommentCount,
		ShareCount:   s.ShareCount,
		Engagement:   s.EngagementRate,
		ObservedAt:   s.Timestamp,
		CreatedAt:    now,
	}
	if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
		return &apperrors.DatabaseError{Operation: "insert_snapshot", Err: err}
	}
	return nil
}

// LatestSnapshot returns the most recent stored observation for a content
// item, or nil when none exists yet.
func (r *Repository) LatestSnapshot(ctx context.Context, platform domain.Platform, contentID string) (*domain.ViewMetricsSnapshot, error) {
	var row SnapshotRow
	err := r.db.WithContext(ctx).
		Where("platform = ? AND content_id = ?", string(platform), contentID).
		Order("observed_at DESC").
		First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, &apperrors.DatabaseError{Operation: "latest_snapshot", Err: err}
	}
	s := rowToSnapshot(row)
	return &s, nil
}

// SnapshotsInWindow returns a pair's snapshots observed at or after since, in
// arrival order. This is the fraud engine's trailing window.
func (r *Repository) SnapshotsInWindow(ctx context.Context, promoterID, campaignID string, since time.Time) ([]domain.ViewMetricsSnapshot, error) {
	var rows []SnapshotRow
	err := r.db.WithContext(ctx).
		Where("promoter_id = ? AND campaign_id = ? AND observed_at >= ?", promoterID, campaignID, since).
		Order("observed_at ASC").
		Find(&rows).Error
	if err != nil {
		return nil, &apperrors.DatabaseError{Operation: "snapshots_in_window", Err: err}
	}
	snapshots := make([]domain.ViewMetricsSnapshot, 0, len(rows))
	for _, row := range rows {
		snapshots = append(snapshots, rowToSnapshot(row))
	}
	return snapshots, nil
}

// InsertViewRecord records one attributed view delta for settlement.
func (r *Repository) InsertViewRecord(ctx context.Context, rec domain.ViewRecord) error {
	row := ViewRecordRow{
		PromoterID:   rec.PromoterID,
		CampaignID:   rec.CampaignID,
		ViewCount:    rec.ViewCount,
		IsLegitimate: rec.IsLegitimate,
		RecordedAt:   rec.Timestamp,
		CreatedAt:    time.Now(),
	}
	if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
		return &apperrors.DatabaseError{Operation: "insert_view_record", Err: err}
	}
	return nil
}

// ViewRecords returns a pair's view records within the settlement period.
func (r *Repository) ViewRecords(ctx context.Context, promoterID, campaignID string, period domain.Period) ([]domain.ViewRecord, error) {
	var rows []ViewRecordRow
	err := r.db.WithContext(ctx).
		Where("promoter_id = ? AND campaign_id = ? AND recorded_at >= ? AND recorded_at < ?",
			promoterID, campaignID, period.Start, period.End).
		Order("recorded_at ASC").
		Find(&rows).Error
	if err != nil {
		return nil, &apperrors.DatabaseError{Operation: "view_records", Err: err}
	}
	records := make([]domain.ViewRecord, 0, len(rows))
	for _, row := range rows {
		records = append(records, domain.ViewRecord{
			PromoterID:   row.PromoterID,
			CampaignID:   row.CampaignID,
			ViewCount:    row.ViewCount,
			IsLegitimate: row.IsLegitimate,
			Timestamp:    row.RecordedAt,
		})
	}
	return records, nil
}

func rowToSnapshot(row SnapshotRow) domain.ViewMetricsSnapshot {
	return domain.ViewMetricsSnapshot{
		Platform:       domain.Platform(row.Platform),
		ContentID:      row.ContentID,
		PromoterID:     row.PromoterID,
		CampaignID:     row.CampaignID,
		ViewCount:      row.ViewCount,
		LikeCount:      row.LikeCount,
		CommentCount:   row.CommentCount,
		ShareCount:     row.ShareCount,
		EngagementRate: row.Engagement,
		Timestamp:      row.ObservedAt,
	}
}
