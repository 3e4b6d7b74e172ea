// Package payout computes settlement amounts and coordinates the daily
// batch. All money is integer rupiah; the only float in the derivation is
// the per-view rate, rounded half-up exactly once at the gross amount.
package payout

import (
	"fmt"
	"math"

	"github.com/google/uuid"

	"github.com/rendoarsandi/content-boost-sub002/internal/config"
	"github.com/rendoarsandi/content-boost-sub002/internal/constants"
	"github.com/rendoarsandi/content-boost-sub002/internal/domain"
	apperrors "github.com/rendoarsandi/content-boost-sub002/pkg/errors"
)

// Engine: the pure payout calculator.
type Engine struct {
	feePercent    float64
	minAmount     int64
	botRatioAlert float64
}

// NewEngine creates an Engine from configuration, falling back to defaults
// for unset values.
func NewEngine(cfg config.PayoutConfig) *Engine {
	e := &Engine{
		feePercent:    cfg.PlatformFeePercent,
		minAmount:     cfg.MinPayoutAmount,
		botRatioAlert: cfg.BotRatioAlert,
	}
	if e.feePercent < 0 {
		e.feePercent = constants.PayoutConfig.PlatformFeePercent
	}
	if e.minAmount <= 0 {
		e.minAmount = constants.PayoutConfig.MinAmount
	}
	if e.botRatioAlert <= 0 {
		e.botRatioAlert = constants.PayoutConfig.BotRatioAlert
	}
	return e
}

// Compute settles one promoter/campaign pair over a period. Only legitimate
// views earn; bot views are counted for the audit trail but never paid.
// Business-rule violations (below-minimum net, suspicious bot ratio) are
// warnings on the result, not errors; a non-positive rate is the one hard
// failure.
func (e *Engine) Compute(promotion domain.ActivePromotion, period domain.Period, records []domain.ViewRecord) (domain.PayoutCalculation, error) {
	calc := domain.PayoutCalculation{
		ID:          uuid.NewString(),
		PromoterID:  promotion.PromoterID,
		CampaignID:  promotion.CampaignID,
		PeriodStart: period.Start,
		PeriodEnd:   period.End,
		RatePerView: promotion.RatePerView,
		Status:      domain.PayoutPending,
	}

	if promotion.RatePerView <= 0 {
		return calc, apperrors.NewBusinessRuleError("rate_per_view",
			fmt.Sprintf("non-positive rate %v for campaign %s", promotion.RatePerView, promotion.CampaignID))
	}

	for _, rec := range records {
		calc.TotalViews += rec.ViewCount
		if rec.IsLegitimate {
			calc.LegitimateViews += rec.ViewCount
		} else {
			calc.BotViews += rec.ViewCount
		}
	}

	calc.GrossAmount = roundHalfUp(float64(calc.LegitimateViews) * promotion.RatePerView)
	calc.PlatformFee = roundHalfUp(float64(calc.GrossAmount) * e.feePercent / 100)
	calc.NetAmount = calc.GrossAmount - calc.PlatformFee

	if calc.BelowMinimum(e.minAmount) {
		calc.Warnings = append(calc.Warnings,
			fmt.Sprintf("net amount %d below minimum payout %d", calc.NetAmount, e.minAmount))
	}
	if ratio := calc.BotRatio(); ratio > e.botRatioAlert {
		calc.Warnings = append(calc.Warnings,
			fmt.Sprintf("bot view ratio %.2f exceeds alert threshold %.2f", ratio, e.botRatioAlert))
	}
	return calc, nil
}

// roundHalfUp rounds to the nearest integer rupiah, halves away from zero.
func roundHalfUp(v float64) int64 {
	return int64(math.Floor(v + 0.5))
}
