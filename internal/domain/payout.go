package domain

import "time"

// PayoutStatus is the lifecycle state of one payout calculation. Transitions
// are monotonic: pending -> processing -> completed|failed, never reverted.
type PayoutStatus string

const (
	PayoutPending    PayoutStatus = "pending"
	PayoutProcessing PayoutStatus = "processing"
	PayoutCompleted  PayoutStatus = "completed"
	PayoutFailed     PayoutStatus = "failed"
)

// PayoutCalculation: the financial derivation for one promoter/campaign/period.
// Amounts are integer rupiah. Invariants, enforced by the settlement engine:
// GrossAmount = LegitimateViews x RatePerView (rounded half-up once),
// NetAmount = GrossAmount - PlatformFee,
// LegitimateViews + BotViews = TotalViews.
type PayoutCalculation struct {
	ID              string       `json:"id"`
	PromoterID      string       `json:"promoterId"`
	CampaignID      string       `json:"campaignId"`
	PeriodStart     time.Time    `json:"periodStart"`
	PeriodEnd       time.Time    `json:"periodEnd"`
	TotalViews      int64        `json:"totalViews"`
	LegitimateViews int64        `json:"legitimateViews"`
	BotViews        int64        `json:"botViews"`
	RatePerView     float64      `json:"ratePerView"`
	GrossAmount     int64        `json:"grossAmount"`
	PlatformFee     int64        `json:"platformFee"`
	NetAmount       int64        `json:"netAmount"`
	Status          PayoutStatus `json:"status"`
	FailureReason   string       `json:"failureReason,omitempty"`
	// Warnings carries non-fatal business-rule flags (below-minimum amount,
	// suspicious bot ratio). They never block the calculation.
	Warnings []string `json:"warnings,omitempty"`
}

// BelowMinimum reports whether the net amount falls under the given payout
// floor.
func (p PayoutCalculation) BelowMinimum(minAmount int64) bool {
	return p.NetAmount < minAmount
}

// BotRatio returns the fraction of total views attributed to bots, 0 when
// there are no views.
func (p PayoutCalculation) BotRatio() float64 {
	if p.TotalViews == 0 {
		return 0
	}
	return float64(p.BotViews) / float64(p.TotalViews)
}
