package repository

import (
	"context"
	"time"

	"github.com/rendoarsandi/content-boost-sub002/internal/domain"
	apperrors "github.com/rendoarsandi/content-boost-sub002/pkg/errors"
)

// SaveDeadLetter records a collection job that exhausted its retries.
func (r *Repository) SaveDeadLetter(ctx context.Context, job domain.CollectionJob, lastErr error) error {
	errText := ""
	if lastErr != nil {
		errText = lastErr.Error()
	}
	row := DeadLetterRow{
		JobID:      job.JobID,
		Platform:   job.Platform,
		ContentID:  job.ContentID,
		PromoterID: job.PromoterID,
		CampaignID: job.CampaignID,
		Attempts:   job.Attempt + 1,
		LastError:  errText,
		FailedAt:   time.Now(),
		CreatedAt:  time.Now(),
	}
	if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
		return &apperrors.DatabaseError{Operation: "save_dead_letter", Err: err}
	}
	return nil
}

// DeadLetters lists terminal ingest failures, newest first.
func (r *Repository) DeadLetters(ctx context.Context, limit int) ([]DeadLetterRow, error) {
	if limit <= 0 {
		limit = 50
	}
	var rows []DeadLetterRow
	err := r.db.WithContext(ctx).Order("failed_at DESC").Limit(limit).Find(&rows).Error
	if err != nil {
		return nil, &apperrors.DatabaseError{Operation: "dead_letters", Err: err}
	}
	return rows, nil
}
