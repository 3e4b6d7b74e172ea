package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/rendoarsandi/content-boost-sub002/internal/domain"
)

func testRepo(t *testing.T) *Repository {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("raw db: %v", err)
	}
	// One connection keeps every query on the same in-memory database.
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	repo := New(db, nil)
	if err := repo.AutoMigrate(context.Background()); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return repo
}

func TestSnapshotRoundtrip(t *testing.T) {
	repo := testRepo(t)
	ctx := context.Background()
	base := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)

	first := domain.ViewMetricsSnapshot{
		Platform: domain.PlatformTikTok, ContentID: "content-1",
		PromoterID: "promoter-1", CampaignID: "campaign-1",
		ViewCount: 100, LikeCount: 20, CommentCount: 5, ShareCount: 2,
		EngagementRate: 0.27, Timestamp: base,
	}
	second := first
	second.ViewCount = 150
	second.Timestamp = base.Add(time.Minute)

	for _, s := range []domain.ViewMetricsSnapshot{first, second} {
		if err := repo.InsertSnapshot(ctx, s); err != nil {
			t.Fatalf("InsertSnapshot: %v", err)
		}
	}

	latest, err := repo.LatestSnapshot(ctx, domain.PlatformTikTok, "content-1")
	if err != nil {
		t.Fatalf("LatestSnapshot: %v", err)
	}
	if latest == nil || latest.ViewCount != 150 {
		t.Fatalf("latest = %+v, want the newer snapshot", latest)
	}

	window, err := repo.SnapshotsInWindow(ctx, "promoter-1", "campaign-1", base)
	if err != nil {
		t.Fatalf("SnapshotsInWindow: %v", err)
	}
	if len(window) != 2 {
		t.Fatalf("window = %d snapshots, want 2", len(window))
	}
	if window[0].ViewCount != 100 || window[1].ViewCount != 150 {
		t.Errorf("window not in arrival order: %d, %d", window[0].ViewCount, window[1].ViewCount)
	}

	missing, err := repo.LatestSnapshot(ctx, domain.PlatformTikTok, "nope")
	if err != nil {
		t.Fatalf("LatestSnapshot missing: %v", err)
	}
	if missing != nil {
		t.Errorf("missing content returned %+v, want nil", missing)
	}
}

func TestViewRecordsPeriodFilter(t *testing.T) {
	repo := testRepo(t)
	ctx := context.Background()
	loc := time.UTC
	period := domain.DayPeriod(time.Date(2025, 6, 1, 12, 0, 0, 0, loc), loc)

	inside := domain.ViewRecord{
		PromoterID: "promoter-1", CampaignID: "campaign-1",
		ViewCount: 50, IsLegitimate: true, Timestamp: period.Start.Add(time.Hour),
	}
	dayBefore := inside
	dayBefore.Timestamp = period.Start.Add(-time.Hour)
	nextDay := inside
	nextDay.Timestamp = period.End

	for _, rec := range []domain.ViewRecord{inside, dayBefore, nextDay} {
		if err := repo.InsertViewRecord(ctx, rec); err != nil {
			t.Fatalf("InsertViewRecord: %v", err)
		}
	}

	records, err := repo.ViewRecords(ctx, "promoter-1", "campaign-1", period)
	if err != nil {
		t.Fatalf("ViewRecords: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("records = %d, want only the in-period record", len(records))
	}
	if !records[0].Timestamp.Equal(inside.Timestamp) {
		t.Errorf("Timestamp = %v, want %v", records[0].Timestamp, inside.Timestamp)
	}
}

func TestPayoutBatchRoundtrip(t *testing.T) {
	repo := testRepo(t)
	ctx := context.Background()
	date := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	batch := domain.PayoutBatch{
		ID: "batch-1", Date: date,
		TotalJobs: 2, CompletedJobs: 1, FailedJobs: 1, TotalAmount: 95000,
		Status: domain.BatchCompleted, StartedAt: date.Add(time.Hour), CompletedAt: date.Add(2 * time.Hour),
		Results: []domain.PayoutJobResult{
			{PromoterID: "promoter-1", CampaignID: "campaign-1",
				Payout: &domain.PayoutCalculation{ID: "payout-1", NetAmount: 95000}},
			{PromoterID: "promoter-2", CampaignID: "campaign-1", Error: "view query timeout"},
		},
	}
	if err := repo.SavePayoutBatch(ctx, batch); err != nil {
		t.Fatalf("SavePayoutBatch: %v", err)
	}

	loaded, err := repo.BatchByDate(ctx, date)
	if err != nil {
		t.Fatalf("BatchByDate: %v", err)
	}
	if loaded == nil {
		t.Fatal("batch not found")
	}
	if loaded.TotalAmount != 95000 || loaded.Status != domain.BatchCompleted {
		t.Errorf("loaded = amount %d status %s", loaded.TotalAmount, loaded.Status)
	}
	if len(loaded.Results) != 2 || loaded.Results[1].Error == "" {
		t.Errorf("results = %+v, want 2 with the failure preserved", loaded.Results)
	}

	// Saving the same ID again updates in place.
	batch.TotalAmount = 100000
	if err := repo.SavePayoutBatch(ctx, batch); err != nil {
		t.Fatalf("SavePayoutBatch upsert: %v", err)
	}
	reloaded, err := repo.BatchByDate(ctx, date)
	if err != nil {
		t.Fatalf("BatchByDate: %v", err)
	}
	if reloaded.TotalAmount != 100000 {
		t.Errorf("TotalAmount = %d after upsert, want 100000", reloaded.TotalAmount)
	}

	none, err := repo.BatchByDate(ctx, date.AddDate(0, 0, 1))
	if err != nil {
		t.Fatalf("BatchByDate missing: %v", err)
	}
	if none != nil {
		t.Errorf("missing date returned %+v, want nil", none)
	}
}

func TestSavePayoutsAndUpdateStatus(t *testing.T) {
	repo := testRepo(t)
	ctx := context.Background()

	payouts := []domain.PayoutCalculation{{
		ID: "payout-1", PromoterID: "promoter-1", CampaignID: "campaign-1",
		TotalViews: 1200, LegitimateViews: 1000, BotViews: 200,
		RatePerView: 100, GrossAmount: 100000, PlatformFee: 5000, NetAmount: 95000,
		Status: domain.PayoutPending, Warnings: []string{"bot view ratio 0.17"},
	}}
	if err := repo.SavePayouts(ctx, "batch-1", payouts); err != nil {
		t.Fatalf("SavePayouts: %v", err)
	}

	if err := repo.UpdatePayoutStatus(ctx, "payout-1", domain.PayoutFailed, "gateway rejected"); err != nil {
		t.Fatalf("UpdatePayoutStatus: %v", err)
	}

	var row PayoutRow
	if err := repo.db.WithContext(ctx).First(&row, "id = ?", "payout-1").Error; err != nil {
		t.Fatalf("read payout row: %v", err)
	}
	if row.Status != string(domain.PayoutFailed) || row.FailureReason != "gateway rejected" {
		t.Errorf("row = %s/%q, want failed with reason", row.Status, row.FailureReason)
	}
	if row.BatchID != "batch-1" || row.LegitimateViews != 1000 {
		t.Errorf("row = batch %s legit %d", row.BatchID, row.LegitimateViews)
	}
}

func TestActivePromotionsAndSuspend(t *testing.T) {
	repo := testRepo(t)
	ctx := context.Background()

	seed := []PromotionRow{
		{PromoterID: "promoter-1", CampaignID: "campaign-1", RatePerView: 100, Active: true},
		{PromoterID: "promoter-2", CampaignID: "campaign-1", RatePerView: 50, Active: true},
		{PromoterID: "promoter-3", CampaignID: "campaign-2", RatePerView: 25, Active: false},
	}
	if err := repo.db.WithContext(ctx).Create(&seed).Error; err != nil {
		t.Fatalf("seed promotions: %v", err)
	}

	active, err := repo.ActivePromotions(ctx)
	if err != nil {
		t.Fatalf("ActivePromotions: %v", err)
	}
	if len(active) != 2 {
		t.Fatalf("active = %d, want 2 (inactive excluded)", len(active))
	}

	if err := repo.SuspendPromotion(ctx, "promoter-1", "campaign-1"); err != nil {
		t.Fatalf("SuspendPromotion: %v", err)
	}
	active, err = repo.ActivePromotions(ctx)
	if err != nil {
		t.Fatalf("ActivePromotions: %v", err)
	}
	if len(active) != 1 || active[0].PromoterID != "promoter-2" {
		t.Errorf("active after suspend = %+v, want only promoter-2", active)
	}
}

func TestDeadLetterRoundtrip(t *testing.T) {
	repo := testRepo(t)
	ctx := context.Background()

	job := domain.CollectionJob{
		JobID: "job-1", Platform: "tiktok", ContentID: "content-1",
		PromoterID: "promoter-1", CampaignID: "campaign-1", UserID: "user-1",
		Attempt: 2,
	}
	if err := repo.SaveDeadLetter(ctx, job, errors.New("token revoked")); err != nil {
		t.Fatalf("SaveDeadLetter: %v", err)
	}

	letters, err := repo.DeadLetters(ctx, 10)
	if err != nil {
		t.Fatalf("DeadLetters: %v", err)
	}
	if len(letters) != 1 {
		t.Fatalf("letters = %d, want 1", len(letters))
	}
	if letters[0].JobID != "job-1" || letters[0].Attempts != 3 || letters[0].LastError != "token revoked" {
		t.Errorf("letter = %+v", letters[0])
	}
}

func TestTrackedContentUpsert(t *testing.T) {
	repo := testRepo(t)
	ctx := context.Background()

	row := TrackedContentRow{
		Platform: "tiktok", ContentID: "content-1", ContentURL: "https://www.tiktok.com/@u/video/1",
		PromoterID: "promoter-1", CampaignID: "campaign-1", UserID: "user-1",
		Verified: true, TrackingActive: true,
	}
	if err := repo.UpsertTrackedContent(ctx, row); err != nil {
		t.Fatalf("UpsertTrackedContent: %v", err)
	}

	contents, err := repo.TrackedContents(ctx)
	if err != nil {
		t.Fatalf("TrackedContents: %v", err)
	}
	if len(contents) != 1 {
		t.Fatalf("contents = %d, want 1", len(contents))
	}

	// Deactivating via upsert removes it from the collection set.
	row.TrackingActive = false
	if err := repo.UpsertTrackedContent(ctx, row); err != nil {
		t.Fatalf("UpsertTrackedContent update: %v", err)
	}
	contents, err = repo.TrackedContents(ctx)
	if err != nil {
		t.Fatalf("TrackedContents: %v", err)
	}
	if len(contents) != 0 {
		t.Errorf("contents = %d after deactivation, want 0", len(contents))
	}
}

func TestAssessmentQueries(t *testing.T) {
	repo := testRepo(t)
	ctx := context.Background()
	base := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)

	older := domain.FraudAssessment{
		PromoterID: "promoter-1", CampaignID: "campaign-1",
		BotScore: 70, Confidence: domain.ConfidenceMedium, Action: domain.ActionWarning,
		Reason: "view/like ratio 11.0 exceeds 10.0", AssessedAt: base,
	}
	newer := older
	newer.BotScore = 100
	newer.Action = domain.ActionBan
	newer.Confidence = domain.ConfidenceHigh
	newer.AssessedAt = base.Add(time.Minute)
	other := older
	other.PromoterID = "promoter-2"

	for _, a := range []domain.FraudAssessment{older, newer, other} {
		if err := repo.SaveAssessment(ctx, a); err != nil {
			t.Fatalf("SaveAssessment: %v", err)
		}
	}

	latest, err := repo.LatestAssessment(ctx, "promoter-1", "campaign-1")
	if err != nil {
		t.Fatalf("LatestAssessment: %v", err)
	}
	if latest == nil || latest.BotScore != 100 || latest.Action != domain.ActionBan {
		t.Fatalf("latest = %+v, want the newer ban", latest)
	}
	if latest.Legitimate() {
		t.Error("banned assessment reported legitimate")
	}

	filtered, err := repo.RecentAssessments(ctx, "promoter-1", 10)
	if err != nil {
		t.Fatalf("RecentAssessments: %v", err)
	}
	if len(filtered) != 2 {
		t.Errorf("filtered = %d, want 2", len(filtered))
	}
	all, err := repo.RecentAssessments(ctx, "", 10)
	if err != nil {
		t.Fatalf("RecentAssessments all: %v", err)
	}
	if len(all) != 3 {
		t.Errorf("all = %d, want 3", len(all))
	}
}

func TestUpdatePlatformRevenueAccumulates(t *testing.T) {
	repo := testRepo(t)
	ctx := context.Background()
	period := domain.DayPeriod(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC), time.UTC)

	if err := repo.UpdatePlatformRevenue(ctx, period, 5000); err != nil {
		t.Fatalf("UpdatePlatformRevenue: %v", err)
	}
	if err := repo.UpdatePlatformRevenue(ctx, period, 2500); err != nil {
		t.Fatalf("UpdatePlatformRevenue: %v", err)
	}

	var row RevenueRow
	if err := repo.db.WithContext(ctx).First(&row).Error; err != nil {
		t.Fatalf("read revenue row: %v", err)
	}
	if row.TotalFees != 7500 {
		t.Errorf("TotalFees = %d, want 7500 accumulated", row.TotalFees)
	}
}
