package payout

import (
	"strings"
	"testing"
	"time"

	"github.com/rendoarsandi/content-boost-sub002/internal/config"
	"github.com/rendoarsandi/content-boost-sub002/internal/domain"
)

func testPayoutConfig() config.PayoutConfig {
	return config.PayoutConfig{
		PlatformFeePercent: 5,
		MinPayoutAmount:    1000,
		Timezone:           "Asia/Jakarta",
		BotRatioAlert:      0.9,
		Concurrency:        3,
	}
}

func testPeriod(t *testing.T) domain.Period {
	t.Helper()
	loc, err := time.LoadLocation("Asia/Jakarta")
	if err != nil {
		t.Fatalf("load location: %v", err)
	}
	return domain.DayPeriod(time.Date(2025, 6, 1, 12, 0, 0, 0, loc), loc)
}

func records(legit, bot int64, at time.Time) []domain.ViewRecord {
	var out []domain.ViewRecord
	if legit > 0 {
		out = append(out, domain.ViewRecord{
			PromoterID: "promoter-1", CampaignID: "campaign-1",
			ViewCount: legit, IsLegitimate: true, Timestamp: at,
		})
	}
	if bot > 0 {
		out = append(out, domain.ViewRecord{
			PromoterID: "promoter-1", CampaignID: "campaign-1",
			ViewCount: bot, IsLegitimate: false, Timestamp: at,
		})
	}
	return out
}

func TestComputeAmounts(t *testing.T) {
	engine := NewEngine(testPayoutConfig())
	period := testPeriod(t)
	promotion := domain.ActivePromotion{PromoterID: "promoter-1", CampaignID: "campaign-1", RatePerView: 100}

	calc, err := engine.Compute(promotion, period, records(1000, 200, period.Start))
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}

	if calc.GrossAmount != 100000 {
		t.Errorf("GrossAmount = %d, want 100000", calc.GrossAmount)
	}
	if calc.PlatformFee != 5000 {
		t.Errorf("PlatformFee = %d, want 5000", calc.PlatformFee)
	}
	if calc.NetAmount != 95000 {
		t.Errorf("NetAmount = %d, want 95000", calc.NetAmount)
	}
	if calc.Status != domain.PayoutPending {
		t.Errorf("Status = %s, want pending", calc.Status)
	}
	if len(calc.Warnings) != 0 {
		t.Errorf("Warnings = %v, want none", calc.Warnings)
	}
}

func TestComputeViewPartitionReconciles(t *testing.T) {
	engine := NewEngine(testPayoutConfig())
	period := testPeriod(t)
	promotion := domain.ActivePromotion{PromoterID: "promoter-1", CampaignID: "campaign-1", RatePerView: 50}

	calc, err := engine.Compute(promotion, period, records(730, 270, period.Start))
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}
	if calc.LegitimateViews+calc.BotViews != calc.TotalViews {
		t.Errorf("legitimate(%d) + bot(%d) != total(%d)",
			calc.LegitimateViews, calc.BotViews, calc.TotalViews)
	}
	if calc.LegitimateViews != 730 || calc.BotViews != 270 {
		t.Errorf("partition = %d/%d, want 730/270", calc.LegitimateViews, calc.BotViews)
	}
}

func TestComputeIsDeterministic(t *testing.T) {
	engine := NewEngine(testPayoutConfig())
	period := testPeriod(t)
	promotion := domain.ActivePromotion{PromoterID: "promoter-1", CampaignID: "campaign-1", RatePerView: 33.5}
	recs := records(997, 13, period.Start)

	first, err := engine.Compute(promotion, period, recs)
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}
	second, err := engine.Compute(promotion, period, recs)
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}

	if first.GrossAmount != second.GrossAmount ||
		first.PlatformFee != second.PlatformFee ||
		first.NetAmount != second.NetAmount {
		t.Errorf("repeated computation diverged: %+v vs %+v", first, second)
	}
}

func TestComputeRoundsGrossHalfUpOnce(t *testing.T) {
	engine := NewEngine(testPayoutConfig())
	period := testPeriod(t)

	// 3 views at 0.5/view = 1.5, rounds half-up to 2.
	promotion := domain.ActivePromotion{PromoterID: "promoter-1", CampaignID: "campaign-1", RatePerView: 0.5}
	calc, err := engine.Compute(promotion, period, records(3, 0, period.Start))
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}
	if calc.GrossAmount != 2 {
		t.Errorf("GrossAmount = %d, want 2 (1.5 rounded half-up)", calc.GrossAmount)
	}
	if calc.NetAmount != calc.GrossAmount-calc.PlatformFee {
		t.Errorf("NetAmount = %d, want gross - fee", calc.NetAmount)
	}
}

func TestComputeBelowMinimumWarns(t *testing.T) {
	engine := NewEngine(testPayoutConfig())
	period := testPeriod(t)
	promotion := domain.ActivePromotion{PromoterID: "promoter-1", CampaignID: "campaign-1", RatePerView: 1}

	calc, err := engine.Compute(promotion, period, records(500, 0, period.Start))
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}
	if !calc.BelowMinimum(1000) {
		t.Fatalf("NetAmount = %d, expected below minimum", calc.NetAmount)
	}
	if !hasWarning(calc.Warnings, "below minimum") {
		t.Errorf("Warnings = %v, want below-minimum warning", calc.Warnings)
	}
}

func TestComputeHighBotRatioWarns(t *testing.T) {
	engine := NewEngine(testPayoutConfig())
	period := testPeriod(t)
	promotion := domain.ActivePromotion{PromoterID: "promoter-1", CampaignID: "campaign-1", RatePerView: 100}

	calc, err := engine.Compute(promotion, period, records(50, 950, period.Start))
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}
	if !hasWarning(calc.Warnings, "bot view ratio") {
		t.Errorf("Warnings = %v, want bot-ratio warning", calc.Warnings)
	}
}

func TestComputeNonPositiveRateFails(t *testing.T) {
	engine := NewEngine(testPayoutConfig())
	period := testPeriod(t)
	promotion := domain.ActivePromotion{PromoterID: "promoter-1", CampaignID: "campaign-1", RatePerView: 0}

	if _, err := engine.Compute(promotion, period, records(100, 0, period.Start)); err == nil {
		t.Fatal("expected error for non-positive rate")
	}
}

func TestComputeNoRecords(t *testing.T) {
	engine := NewEngine(testPayoutConfig())
	period := testPeriod(t)
	promotion := domain.ActivePromotion{PromoterID: "promoter-1", CampaignID: "campaign-1", RatePerView: 100}

	calc, err := engine.Compute(promotion, period, nil)
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}
	if calc.TotalViews != 0 || calc.GrossAmount != 0 || calc.NetAmount != 0 {
		t.Errorf("empty period produced money: %+v", calc)
	}
}

func hasWarning(warnings []string, fragment string) bool {
	for _, w := range warnings {
		if strings.Contains(w, fragment) {
			return true
		}
	}
	return false
}
