package payout

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sourcegraph/conc/pool"

	"github.com/rendoarsandi/content-boost-sub002/internal/config"
	"github.com/rendoarsandi/content-boost-sub002/internal/constants"
	"github.com/rendoarsandi/content-boost-sub002/internal/domain"
	"github.com/rendoarsandi/content-boost-sub002/internal/lock"
	"github.com/rendoarsandi/content-boost-sub002/internal/metrics"
	"github.com/rendoarsandi/content-boost-sub002/internal/valkeyx"
)

// ErrBatchInProgress is returned when a settlement run for the same date is
// already held by this or another process.
var ErrBatchInProgress = errors.New("settlement batch already in progress")

// batchLockTTL caps how long a crashed coordinator can block the date's run.
const batchLockTTL = 30 * time.Minute

// PromotionSource yields the pairs eligible for settlement.
type PromotionSource interface {
	ActivePromotions(ctx context.Context) ([]domain.ActivePromotion, error)
}

// ViewSource yields the attributed view records for a pair and period.
type ViewSource interface {
	ViewRecords(ctx context.Context, promoterID, campaignID string, period domain.Period) ([]domain.ViewRecord, error)
}

// Store is the persistence surface the coordinator needs.
// *repository.Repository satisfies all of it.
type Store interface {
	PromotionSource
	ViewSource
	SavePayoutBatch(ctx context.Context, batch domain.PayoutBatch) error
	SavePayouts(ctx context.Context, batchID string, payouts []domain.PayoutCalculation) error
	UpdatePlatformRevenue(ctx context.Context, period domain.Period, totalFees int64) error
}

// Notifier hands payout notifications to the dispatcher.
type Notifier interface {
	Send(ctx context.Context, recipientID string, templateType domain.TemplateType, variables map[string]string) (*domain.NotificationRecord, error)
}

// Coordinator fans the daily settlement out over all active promotions. One
// run per settlement date: a Valkey lock excludes other processes and an
// in-process flag excludes concurrent local triggers.
type Coordinator struct {
	engine      *Engine
	store       Store
	locker      *lock.Lock
	notifier    Notifier
	metrics     *metrics.Metrics
	logger      *slog.Logger
	location    *time.Location
	concurrency int
	now         func() time.Time

	mu      sync.Mutex
	running bool
}

// NewCoordinator wires the batch coordinator. notifier may be nil.
func NewCoordinator(engine *Engine, store Store, locker *lock.Lock, notifier Notifier, cfg config.PayoutConfig, m *metrics.Metrics, logger *slog.Logger) (*Coordinator, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	concurrency := cfg.Concurrency
	if concurrency < constants.PaymentConfig.MinConcurrency {
		concurrency = constants.PaymentConfig.DefaultConcurrency
	}
	if concurrency > constants.PaymentConfig.MaxConcurrency {
		concurrency = constants.PaymentConfig.MaxConcurrency
	}
	return &Coordinator{
		engine:      engine,
		store:       store,
		locker:      locker,
		notifier:    notifier,
		metrics:     m,
		logger:      logger,
		location:    loc,
		concurrency: concurrency,
		now:         time.Now,
	}, nil
}

// RunDailyBatch settles every active promotion for the calendar day
// containing date. Per-pair failures are recorded on the batch and do not
// stop the run; the batch itself fails only when every job failed.
func (c *Coordinator) RunDailyBatch(ctx context.Context, date time.Time) (*domain.PayoutBatch, error) {
	if !c.tryBegin() {
		return nil, ErrBatchInProgress
	}
	defer c.end()

	period := domain.DayPeriod(date, c.location)
	dateKey := period.Start.Format("2006-01-02")

	handle, acquired, err := c.locker.Acquire(ctx, valkeyx.BuildKey(constants.KeyPrefix.BatchLock, dateKey), batchLockTTL)
	if err != nil {
		return nil, err
	}
	if !acquired {
		return nil, ErrBatchInProgress
	}
	defer func() {
		if relErr := c.locker.Release(context.WithoutCancel(ctx), handle); relErr != nil {
			c.logger.Warn("batch_lock_release_failed", "date", dateKey, "err", relErr)
		}
	}()

	return c.run(ctx, period, dateKey)
}

// ExecuteManualPayout runs the same settlement as the scheduled batch for an
// arbitrary date, on operator demand. Same locking, same batch shape.
func (c *Coordinator) ExecuteManualPayout(ctx context.Context, date time.Time) (*domain.PayoutBatch, error) {
	c.logger.Info("manual_settlement_requested", "date", date.In(c.location).Format("2006-01-02"))
	return c.RunDailyBatch(ctx, date)
}

func (c *Coordinator) run(ctx context.Context, period domain.Period, dateKey string) (*domain.PayoutBatch, error) {
	promotions, err := c.store.ActivePromotions(ctx)
	if err != nil {
		return nil, err
	}

	batch := &domain.PayoutBatch{
		ID:        uuid.NewString(),
		Date:      period.Start,
		TotalJobs: len(promotions),
		Status:    domain.BatchRunning,
		StartedAt: c.now(),
	}
	c.logger.Info("settlement_batch_started", "date", dateKey, "batch_id", batch.ID, "jobs", batch.TotalJobs)
	if c.metrics != nil {
		c.metrics.BatchRunning.Set(1)
		defer c.metrics.BatchRunning.Set(0)
	}

	results := make([]domain.PayoutJobResult, len(promotions))
	p := pool.New().WithMaxGoroutines(c.concurrency)
	for i, promotion := range promotions {
		p.Go(func() {
			results[i] = c.settleJob(ctx, promotion, period)
		})
	}
	p.Wait()

	var payouts []domain.PayoutCalculation
	var totalFees int64
	for _, result := range results {
		batch.Append(result)
		if result.Payout != nil {
			payouts = append(payouts, *result.Payout)
			totalFees += result.Payout.PlatformFee
			c.observePayout(*result.Payout)
		}
	}
	batch.Close(c.now())

	if err := c.store.SavePayouts(ctx, batch.ID, payouts); err != nil {
		return nil, err
	}
	if totalFees > 0 {
		if err := c.store.UpdatePlatformRevenue(ctx, period, totalFees); err != nil {
			return nil, err
		}
	}
	if err := c.store.SavePayoutBatch(ctx, *batch); err != nil {
		return nil, err
	}

	if c.metrics != nil {
		c.metrics.BatchTotalAmount.Set(float64(batch.TotalAmount))
	}
	c.notifyPayouts(ctx, payouts)
	c.logger.Info("settlement_batch_finished",
		"date", dateKey,
		"batch_id", batch.ID,
		"status", batch.Status,
		"completed", batch.CompletedJobs,
		"failed", batch.FailedJobs,
		"total_amount", batch.TotalAmount,
	)
	return batch, nil
}

func (c *Coordinator) settleJob(ctx context.Context, promotion domain.ActivePromotion, period domain.Period) domain.PayoutJobResult {
	result := domain.PayoutJobResult{
		PromoterID: promotion.PromoterID,
		CampaignID: promotion.CampaignID,
	}
	calc, err := c.settlePair(ctx, promotion, period)
	if err != nil {
		result.Error = err.Error()
		c.logger.Warn("settlement_job_failed",
			"promoter_id", promotion.PromoterID, "campaign_id", promotion.CampaignID, "err", err)
		return result
	}
	result.Payout = &calc
	return result
}

func (c *Coordinator) settlePair(ctx context.Context, promotion domain.ActivePromotion, period domain.Period) (domain.PayoutCalculation, error) {
	records, err := c.store.ViewRecords(ctx, promotion.PromoterID, promotion.CampaignID, period)
	if err != nil {
		return domain.PayoutCalculation{}, err
	}
	calc, err := c.engine.Compute(promotion, period, records)
	if err != nil {
		return domain.PayoutCalculation{}, err
	}
	for _, warning := range calc.Warnings {
		c.logger.Warn("payout_warning",
			"promoter_id", calc.PromoterID, "campaign_id", calc.CampaignID, "warning", warning)
	}
	return calc, nil
}

// notifyPayouts tells each promoter their settlement is moving to payment.
// Below-minimum payouts are skipped; they carry forward unpaid.
func (c *Coordinator) notifyPayouts(ctx context.Context, payouts []domain.PayoutCalculation) {
	if c.notifier == nil {
		return
	}
	for _, calc := range payouts {
		if calc.BelowMinimum(c.engine.minAmount) {
			continue
		}
		_, err := c.notifier.Send(ctx, calc.PromoterID, domain.TemplatePayoutProcessing, map[string]string{
			"amount":     strconv.FormatInt(calc.NetAmount, 10),
			"campaignId": calc.CampaignID,
		})
		if err != nil {
			c.logger.Warn("payout_notification_failed",
				"promoter_id", calc.PromoterID, "campaign_id", calc.CampaignID, "err", err)
		}
	}
}

func (c *Coordinator) observePayout(calc domain.PayoutCalculation) {
	if c.metrics == nil {
		return
	}
	c.metrics.PayoutsComputed.WithLabelValues(string(calc.Status)).Inc()
}

func (c *Coordinator) tryBegin() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.running {
		return false
	}
	c.running = true
	return true
}

func (c *Coordinator) end() {
	c.mu.Lock()
	c.running = false
	c.mu.Unlock()
}
