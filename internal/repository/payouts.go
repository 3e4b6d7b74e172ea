package repository

import (
	"context"
	"errors"
	"time"

	"github.com/goccy/go-json"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/rendoarsandi/content-boost-sub002/internal/domain"
	apperrors "github.com/rendoarsandi/content-boost-sub002/pkg/errors"
)

// ActivePromotions lists every non-suspended active promoter/campaign pair.
func (r *Repository) ActivePromotions(ctx context.Context) ([]domain.ActivePromotion, error) {
	var rows []PromotionRow
	err := r.db.WithContext(ctx).
		Where("active = ? AND suspended = ?", true, false).
		Order("promoter_id ASC, campaign_id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, &apperrors.DatabaseError{Operation: "active_promotions", Err: err}
	}
	promotions := make([]domain.ActivePromotion, 0, len(rows))
	for _, row := range rows {
		promotions = append(promotions, domain.ActivePromotion{
			PromoterID:  row.PromoterID,
			CampaignID:  row.CampaignID,
			RatePerView: row.RatePerView,
		})
	}
	return promotions, nil
}

// SavePayoutBatch persists a batch, results serialized as JSON.
func (r *Repository) SavePayoutBatch(ctx context.Context, batch domain.PayoutBatch) error {
	results, err := json.Marshal(batch.Results)
	if err != nil {
		return &apperrors.DatabaseError{Operation: "marshal_batch_results", Err: err}
	}
	row := BatchRow{
		ID:            batch.ID,
		Date:          batch.Date,
		TotalJobs:     batch.TotalJobs,
		CompletedJobs: batch.CompletedJobs,
		FailedJobs:    batch.FailedJobs,
		TotalAmount:   batch.TotalAmount,
		Status:        string(batch.Status),
		StartedAt:     batch.StartedAt,
		CompletedAt:   batch.CompletedAt,
		Results:       string(results),
		CreatedAt:     time.Now(),
	}
	err = r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		UpdateAll: true,
	}).Create(&row).Error
	if err != nil {
		return &apperrors.DatabaseError{Operation: "save_payout_batch", Err: err}
	}
	return nil
}

// BatchByDate loads the batch for a settlement date, or nil.
func (r *Repository) BatchByDate(ctx context.Context, date time.Time) (*domain.PayoutBatch, error) {
	var row BatchRow
	err := r.db.WithContext(ctx).Where("date = ?", date).Order("started_at DESC").First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, &apperrors.DatabaseError{Operation: "batch_by_date", Err: err}
	}

	var results []domain.PayoutJobResult
	if row.Results != "" {
		if err := json.Unmarshal([]byte(row.Results), &results); err != nil {
			return nil, &apperrors.DatabaseError{Operation: "unmarshal_batch_results", Err: err}
		}
	}
	return &domain.PayoutBatch{
		ID:            row.ID,
		Date:          row.Date,
		TotalJobs:     row.TotalJobs,
		CompletedJobs: row.CompletedJobs,
		FailedJobs:    row.FailedJobs,
		TotalAmount:   row.TotalAmount,
		Status:        domain.BatchStatus(row.Status),
		StartedAt:     row.StartedAt,
		CompletedAt:   row.CompletedAt,
		Results:       results,
	}, nil
}

// SavePayouts persists every payout of a batch.
func (r *Repository) SavePayouts(ctx context.Context, batchID string, payouts []domain.PayoutCalculation) error {
	if len(payouts) == 0 {
		return nil
	}
	now := time.Now()
	rows := make([]PayoutRow, 0, len(payouts))
	for _, p := range payouts {
		warnings, err := json.Marshal(p.Warnings)
		if err != nil {
			return &apperrors.DatabaseError{Operation: "marshal_payout_warnings", Err: err}
		}
		rows = append(rows, PayoutRow{
			ID:              p.ID,
			BatchID:         batchID,
			PromoterID:      p.PromoterID,
			CampaignID:      p.CampaignID,
			PeriodStart:     p.PeriodStart,
			PeriodEnd:       p.PeriodEnd,
			TotalViews:      p.TotalViews,
			LegitimateViews: p.LegitimateViews,
			BotViews:        p.BotViews,
			RatePerView:     p.RatePerView,
			GrossAmount:     p.GrossAmount,
			PlatformFee:     p.PlatformFee,
			NetAmount:       p.NetAmount,
			Status:          string(p.Status),
			FailureReason:   p.FailureReason,
			Warnings:        string(warnings),
			CreatedAt:       now,
			UpdatedAt:       now,
		})
	}
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		UpdateAll: true,
	}).Create(&rows).Error
	if err != nil {
		return &apperrors.DatabaseError{Operation: "save_payouts", Err: err}
	}
	return nil
}

// UpdatePayoutStatus advances one payout's status after payment execution.
func (r *Repository) UpdatePayoutStatus(ctx context.Context, payoutID string, status domain.PayoutStatus, failureReason string) error {
	updates := map[string]any{"status": string(status), "updated_at": time.Now()}
	if failureReason != "" {
		updates["failure_reason"] = failureReason
	}
	err := r.db.WithContext(ctx).Model(&PayoutRow{}).Where("id = ?", payoutID).Updates(updates).Error
	if err != nil {
		return &apperrors.DatabaseError{Operation: "update_payout_status", Err: err}
	}
	return nil
}

// UpdatePlatformRevenue accumulates the period's platform fees.
func (r *Repository) UpdatePlatformRevenue(ctx context.Context, period domain.Period, totalFees int64) error {
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "period_start"}},
		DoUpdates: clause.Assignments(map[string]any{"total_fees": gorm.Expr("total_fees + ?", totalFees), "updated_at": time.Now()}),
	}).Create(&RevenueRow{
		PeriodStart: period.Start,
		TotalFees:   totalFees,
		UpdatedAt:   time.Now(),
	}).Error
	if err != nil {
		return &apperrors.DatabaseError{Operation: "update_platform_revenue", Err: err}
	}
	return nil
}

// SaveNotifications persists rendered notification records.
func (r *Repository) SaveNotifications(ctx context.Context, records []domain.NotificationRecord) error {
	if len(records) == 0 {
		return nil
	}
	rows := make([]NotificationRow, 0, len(records))
	for _, rec := range records {
		rows = append(rows, NotificationRow{
			ID:           rec.ID,
			RecipientID:  rec.RecipientID,
			TemplateType: string(rec.TemplateType),
			Title:        rec.Title,
			Body:         rec.Body,
			CreatedAt:    rec.CreatedAt,
		})
	}
	if err := r.db.WithContext(ctx).Create(&rows).Error; err != nil {
		return &apperrors.DatabaseError{Operation: "save_notifications", Err: err}
	}
	return nil
}
