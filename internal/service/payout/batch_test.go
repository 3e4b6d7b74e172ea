package payout

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/valkey-io/valkey-go"

	"github.com/rendoarsandi/content-boost-sub002/internal/constants"
	"github.com/rendoarsandi/content-boost-sub002/internal/domain"
	"github.com/rendoarsandi/content-boost-sub002/internal/lock"
	"github.com/rendoarsandi/content-boost-sub002/internal/valkeyx"
)

type fakeStore struct {
	mu         sync.Mutex
	promotions []domain.ActivePromotion
	views      map[string][]domain.ViewRecord // promoterID/campaignID
	viewErr    map[string]error

	savedBatch   *domain.PayoutBatch
	savedPayouts []domain.PayoutCalculation
	revenueFees  int64
}

func (f *fakeStore) ActivePromotions(ctx context.Context) ([]domain.ActivePromotion, error) {
	return f.promotions, nil
}

func (f *fakeStore) ViewRecords(ctx context.Context, promoterID, campaignID string, period domain.Period) ([]domain.ViewRecord, error) {
	key := promoterID + "/" + campaignID
	if err := f.viewErr[key]; err != nil {
		return nil, err
	}
	return f.views[key], nil
}

func (f *fakeStore) SavePayoutBatch(ctx context.Context, batch domain.PayoutBatch) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.savedBatch = &batch
	return nil
}

func (f *fakeStore) SavePayouts(ctx context.Context, batchID string, payouts []domain.PayoutCalculation) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.savedPayouts = payouts
	return nil
}

func (f *fakeStore) UpdatePlatformRevenue(ctx context.Context, period domain.Period, totalFees int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.revenueFees = totalFees
	return nil
}

type fakeNotifier struct {
	mu    sync.Mutex
	sends []domain.TemplateType
}

func (f *fakeNotifier) Send(ctx context.Context, recipientID string, templateType domain.TemplateType, variables map[string]string) (*domain.NotificationRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sends = append(f.sends, templateType)
	return &domain.NotificationRecord{RecipientID: recipientID, TemplateType: templateType}, nil
}

func testLocker(t *testing.T) (*lock.Lock, valkey.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client, err := valkey.NewClient(valkey.ClientOption{
		InitAddress:       []string{mr.Addr()},
		DisableCache:      true,
		ForceSingleClient: true,
	})
	if err != nil {
		t.Fatalf("valkey client: %v", err)
	}
	t.Cleanup(client.Close)
	return lock.New(client), client
}

func testCoordinator(t *testing.T, store *fakeStore, notifier Notifier) *Coordinator {
	t.Helper()
	locker, _ := testLocker(t)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	coordinator, err := NewCoordinator(NewEngine(testPayoutConfig()), store, locker, notifier, testPayoutConfig(), nil, logger)
	if err != nil {
		t.Fatalf("NewCoordinator: %v", err)
	}
	return coordinator
}

func promotion(promoter, campaign string, rate float64) domain.ActivePromotion {
	return domain.ActivePromotion{PromoterID: promoter, CampaignID: campaign, RatePerView: rate}
}

func viewsFor(store *fakeStore, promoter, campaign string, legit, bot int64, at time.Time) {
	if store.views == nil {
		store.views = make(map[string][]domain.ViewRecord)
	}
	key := promoter + "/" + campaign
	if legit > 0 {
		store.views[key] = append(store.views[key], domain.ViewRecord{
			PromoterID: promoter, CampaignID: campaign,
			ViewCount: legit, IsLegitimate: true, Timestamp: at,
		})
	}
	if bot > 0 {
		store.views[key] = append(store.views[key], domain.ViewRecord{
			PromoterID: promoter, CampaignID: campaign,
			ViewCount: bot, IsLegitimate: false, Timestamp: at,
		})
	}
}

func TestRunDailyBatchSettlesAllPairs(t *testing.T) {
	period := testPeriod(t)
	store := &fakeStore{
		promotions: []domain.ActivePromotion{
			promotion("promoter-1", "campaign-1", 100),
			promotion("promoter-2", "campaign-1", 100),
			promotion("promoter-3", "campaign-2", 1), // nets below minimum
		},
	}
	viewsFor(store, "promoter-1", "campaign-1", 1000, 100, period.Start)
	viewsFor(store, "promoter-2", "campaign-1", 2000, 0, period.Start)
	viewsFor(store, "promoter-3", "campaign-2", 500, 0, period.Start)

	notifier := &fakeNotifier{}
	coordinator := testCoordinator(t, store, notifier)

	batch, err := coordinator.RunDailyBatch(context.Background(), period.Start)
	if err != nil {
		t.Fatalf("RunDailyBatch: %v", err)
	}

	if batch.TotalJobs != 3 {
		t.Errorf("TotalJobs = %d, want 3", batch.TotalJobs)
	}
	if batch.CompletedJobs != 3 || batch.FailedJobs != 0 {
		t.Errorf("completed/failed = %d/%d, want 3/0", batch.CompletedJobs, batch.FailedJobs)
	}
	if batch.Status != domain.BatchCompleted {
		t.Errorf("Status = %s, want completed", batch.Status)
	}
	if batch.CompletedJobs+batch.FailedJobs != batch.TotalJobs {
		t.Errorf("job counters do not reconcile: %d + %d != %d",
			batch.CompletedJobs, batch.FailedJobs, batch.TotalJobs)
	}

	// The under-minimum payout is still computed and recorded, only flagged.
	var belowMin *domain.PayoutCalculation
	for i := range batch.Results {
		p := batch.Results[i].Payout
		if p != nil && p.PromoterID == "promoter-3" {
			belowMin = p
		}
	}
	if belowMin == nil {
		t.Fatal("below-minimum payout missing from batch results")
	}
	if !belowMin.BelowMinimum(1000) {
		t.Errorf("NetAmount = %d, expected below minimum", belowMin.NetAmount)
	}
	if len(belowMin.Warnings) == 0 {
		t.Error("below-minimum payout carries no warning")
	}

	var wantTotal int64
	for _, result := range batch.Results {
		if result.Payout != nil {
			wantTotal += result.Payout.NetAmount
		}
	}
	if batch.TotalAmount != wantTotal {
		t.Errorf("TotalAmount = %d, want sum of nets %d", batch.TotalAmount, wantTotal)
	}

	if store.savedBatch == nil {
		t.Fatal("batch was not persisted")
	}
	if len(store.savedPayouts) != 3 {
		t.Errorf("persisted payouts = %d, want 3", len(store.savedPayouts))
	}
	if store.revenueFees == 0 {
		t.Error("platform revenue was not recorded")
	}

	// Only the two above-minimum payouts get a processing notification.
	if len(notifier.sends) != 2 {
		t.Errorf("notifications = %d, want 2", len(notifier.sends))
	}
	for _, tt := range notifier.sends {
		if tt != domain.TemplatePayoutProcessing {
			t.Errorf("notification type = %s, want payout_processing", tt)
		}
	}
}

func TestRunDailyBatchPartialFailure(t *testing.T) {
	period := testPeriod(t)
	store := &fakeStore{
		promotions: []domain.ActivePromotion{
			promotion("promoter-1", "campaign-1", 100),
			promotion("promoter-2", "campaign-1", 100),
		},
		viewErr: map[string]error{
			"promoter-2/campaign-1": errors.New("view query timeout"),
		},
	}
	viewsFor(store, "promoter-1", "campaign-1", 1000, 0, period.Start)

	coordinator := testCoordinator(t, store, nil)
	batch, err := coordinator.RunDailyBatch(context.Background(), period.Start)
	if err != nil {
		t.Fatalf("RunDailyBatch: %v", err)
	}

	if batch.Status != domain.BatchCompleted {
		t.Errorf("Status = %s, partial failure must not fail the batch", batch.Status)
	}
	if batch.CompletedJobs != 1 || batch.FailedJobs != 1 {
		t.Errorf("completed/failed = %d/%d, want 1/1", batch.CompletedJobs, batch.FailedJobs)
	}
	var failed *domain.PayoutJobResult
	for i := range batch.Results {
		if batch.Results[i].Error != "" {
			failed = &batch.Results[i]
		}
	}
	if failed == nil || failed.PromoterID != "promoter-2" {
		t.Fatalf("failed job = %+v, want promoter-2", failed)
	}
}

func TestRunDailyBatchAllJobsFailed(t *testing.T) {
	period := testPeriod(t)
	store := &fakeStore{
		promotions: []domain.ActivePromotion{promotion("promoter-1", "campaign-1", 100)},
		viewErr: map[string]error{
			"promoter-1/campaign-1": errors.New("view query timeout"),
		},
	}

	coordinator := testCoordinator(t, store, nil)
	batch, err := coordinator.RunDailyBatch(context.Background(), period.Start)
	if err != nil {
		t.Fatalf("RunDailyBatch: %v", err)
	}
	if batch.Status != domain.BatchFailed {
		t.Errorf("Status = %s, want failed when every job failed", batch.Status)
	}
}

func TestRunDailyBatchHeldLockRejectsRun(t *testing.T) {
	period := testPeriod(t)
	store := &fakeStore{
		promotions: []domain.ActivePromotion{promotion("promoter-1", "campaign-1", 100)},
	}
	viewsFor(store, "promoter-1", "campaign-1", 1000, 0, period.Start)

	locker, _ := testLocker(t)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	coordinator, err := NewCoordinator(NewEngine(testPayoutConfig()), store, locker, nil, testPayoutConfig(), nil, logger)
	if err != nil {
		t.Fatalf("NewCoordinator: %v", err)
	}

	dateKey := domain.DayPeriod(period.Start, period.Start.Location()).Start.Format("2006-01-02")
	key := valkeyx.BuildKey(constants.KeyPrefix.BatchLock, dateKey)
	handle, acquired, err := locker.Acquire(context.Background(), key, time.Minute)
	if err != nil || !acquired {
		t.Fatalf("pre-acquire lock: acquired=%v err=%v", acquired, err)
	}

	if _, err := coordinator.RunDailyBatch(context.Background(), period.Start); !errors.Is(err, ErrBatchInProgress) {
		t.Fatalf("err = %v, want ErrBatchInProgress while lock held", err)
	}

	if err := locker.Release(context.Background(), handle); err != nil {
		t.Fatalf("release: %v", err)
	}
	if _, err := coordinator.RunDailyBatch(context.Background(), period.Start); err != nil {
		t.Fatalf("RunDailyBatch after release: %v", err)
	}
}

func TestExecuteManualPayoutMatchesScheduledRun(t *testing.T) {
	period := testPeriod(t)
	store := &fakeStore{
		promotions: []domain.ActivePromotion{promotion("promoter-1", "campaign-1", 100)},
	}
	viewsFor(store, "promoter-1", "campaign-1", 1000, 0, period.Start)

	coordinator := testCoordinator(t, store, nil)
	batch, err := coordinator.ExecuteManualPayout(context.Background(), period.Start)
	if err != nil {
		t.Fatalf("ExecuteManualPayout: %v", err)
	}
	if batch.TotalJobs != 1 || batch.Status != domain.BatchCompleted {
		t.Errorf("batch = jobs %d status %s, want 1 completed", batch.TotalJobs, batch.Status)
	}
	if batch.TotalAmount != 95000 {
		t.Errorf("TotalAmount = %d, want 95000", batch.TotalAmount)
	}
}
