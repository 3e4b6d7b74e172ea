package repository

import (
	"context"
	"time"

	"github.com/rendoarsandi/content-boost-sub002/internal/domain"
	apperrors "github.com/rendoarsandi/content-boost-sub002/pkg/errors"
)

// SaveAssessment appends one fraud assessment to the audit trail.
func (r *Repository) SaveAssessment(ctx context.Context, a domain.FraudAssessment) error {
	row := AssessmentRow{
		PromoterID:       a.PromoterID,
		CampaignID:       a.CampaignID,
		BotScore:         a.BotScore,
		Confidence:       string(a.Confidence),
		Action:           string(a.Action),
		ViewLikeRatio:    a.Metrics.ViewLikeRatio,
		ViewCommentRatio: a.Metrics.ViewCommentRatio,
		SpikeDetected:    a.Metrics.SpikeDetected,
		SpikePercentage:  a.Metrics.SpikePercentage,
		Reason:           a.Reason,
		AssessedAt:       a.AssessedAt,
		CreatedAt:        time.Now(),
	}
	if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
		return &apperrors.DatabaseError{Operation: "save_assessment", Err: err}
	}
	return nil
}

// RecentAssessments lists a promoter's latest assessments, newest first.
func (r *Repository) RecentAssessments(ctx context.Context, promoterID string, limit int) ([]domain.FraudAssessment, error) {
	if limit <= 0 {
		limit = 20
	}
	var rows []AssessmentRow
	query := r.db.WithContext(ctx).Order("assessed_at DESC").Limit(limit)
	if promoterID != "" {
		query = query.Where("promoter_id = ?", promoterID)
	}
	if err := query.Find(&rows).Error; err != nil {
		return nil, &apperrors.DatabaseError{Operation: "recent_assessments", Err: err}
	}

	assessments := make([]domain.FraudAssessment, 0, len(rows))
	for _, row := range rows {
		assessments = append(assessments, domain.FraudAssessment{
			PromoterID: row.PromoterID,
			CampaignID: row.CampaignID,
			BotScore:   row.BotScore,
			Confidence: domain.Confidence(row.Confidence),
			Action:     domain.Action(row.Action),
			Metrics: domain.FraudMetrics{
				ViewLikeRatio:    row.ViewLikeRatio,
				ViewCommentRatio: row.ViewCommentRatio,
				SpikeDetected:    row.SpikeDetected,
				SpikePercentage:  row.SpikePercentage,
			},
			Reason:     row.Reason,
			AssessedAt: row.AssessedAt,
		})
	}
	return assessments, nil
}

// LatestAssessment returns the newest assessment for a pair, or nil.
func (r *Repository) LatestAssessment(ctx context.Context, promoterID, campaignID string) (*domain.FraudAssessment, error) {
	assessments, err := r.recentPairAssessments(ctx, promoterID, campaignID, 1)
	if err != nil {
		return nil, err
	}
	if len(assessments) == 0 {
		return nil, nil
	}
	return &assessments[0], nil
}

func (r *Repository) recentPairAssessments(ctx context.Context, promoterID, campaignID string, limit int) ([]domain.FraudAssessment, error) {
	var rows []AssessmentRow
	err := r.db.WithContext(ctx).
		Where("promoter_id = ? AND campaign_id = ?", promoterID, campaignID).
		Order("assessed_at DESC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, &apperrors.DatabaseError{Operation: "pair_assessments", Err: err}
	}
	out := make([]domain.FraudAssessment, 0, len(rows))
	for _, row := range rows {
		out = append(out, domain.FraudAssessment{
			PromoterID: row.PromoterID,
			CampaignID: row.CampaignID,
			BotScore:   row.BotScore,
			Confidence: domain.Confidence(row.Confidence),
			Action:     domain.Action(row.Action),
			Metrics: domain.FraudMetrics{
				ViewLikeRatio:    row.ViewLikeRatio,
				ViewCommentRatio: row.ViewCommentRatio,
				SpikeDetected:    row.SpikeDetected,
				SpikePercentage:  row.SpikePercentage,
			},
			Reason:     row.Reason,
			AssessedAt: row.AssessedAt,
		})
	}
	return out, nil
}

// SaveAppliedAction records an automatically applied fraud action.
func (r *Repository) SaveAppliedAction(ctx context.Context, a domain.FraudAssessment, appliedAt time.Time) error {
	row := AppliedActionRow{
		PromoterID: a.PromoterID,
		CampaignID: a.CampaignID,
		Action:     string(a.Action),
		BotScore:   a.BotScore,
		Reason:     a.Reason,
		AppliedAt:  appliedAt,
		CreatedAt:  time.Now(),
	}
	if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
		return &apperrors.DatabaseError{Operation: "save_applied_action", Err: err}
	}
	return nil
}

// SuspendPromotion flags a pair suspended, the persistence side of a ban.
func (r *Repository) SuspendPromotion(ctx context.Context, promoterID, campaignID string) error {
	err := r.db.WithContext(ctx).Model(&PromotionRow{}).
		Where("promoter_id = ? AND campaign_id = ?", promoterID, campaignID).
		Updates(map[string]any{"suspended": true, "updated_at": time.Now()}).Error
	if err != nil {
		return &apperrors.DatabaseError{Operation: "suspend_promotion", Err: err}
	}
	return nil
}
