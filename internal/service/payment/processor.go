package payment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sourcegraph/conc/pool"

	"github.com/rendoarsandi/content-boost-sub002/internal/config"
	"github.com/rendoarsandi/content-boost-sub002/internal/constants"
	"github.com/rendoarsandi/content-boost-sub002/internal/domain"
	"github.com/rendoarsandi/content-boost-sub002/internal/metrics"
	apperrors "github.com/rendoarsandi/content-boost-sub002/pkg/errors"
)

// StatusUpdater advances payout rows as payments execute.
// *repository.Repository satisfies it.
type StatusUpdater interface {
	UpdatePayoutStatus(ctx context.Context, payoutID string, status domain.PayoutStatus, failureReason string) error
}

// Notifier sends user-facing payment notifications.
// *notification.Dispatcher satisfies it.
type Notifier interface {
	Send(ctx context.Context, recipientID string, templateType domain.TemplateType, variables map[string]string) (*domain.NotificationRecord, error)
}

// Processor executes payments with retries and status polling. Each payout is
// single-flighted: a payout already being processed by this instance is
// skipped, not submitted twice.
type Processor struct {
	gateway    GatewayProvider
	updater    StatusUpdater
	notifier   Notifier
	metrics    *metrics.Metrics
	logger     *slog.Logger
	maxRetries int
	baseDelay  time.Duration
	maxDelay   time.Duration
	maxPolls   int
	pollEvery  time.Duration
	conc       int

	batchBusy atomic.Bool
	mu        sync.Mutex
	inFlight  map[string]struct{}
}

// ErrPaymentBatchInProgress is returned when a batch run overlaps another.
var ErrPaymentBatchInProgress = errors.New("payment batch already in progress")

// NewProcessor wires the payment processor.
func NewProcessor(gateway GatewayProvider, updater StatusUpdater, notifier Notifier, cfg config.PaymentConfig, m *metrics.Metrics, logger *slog.Logger) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	p := &Processor{
		gateway:    gateway,
		updater:    updater,
		notifier:   notifier,
		metrics:    m,
		logger:     logger,
		maxRetries: cfg.MaxRetries,
		baseDelay:  cfg.BaseDelay,
		maxDelay:   cfg.MaxDelay,
		maxPolls:   cfg.MaxStatusPolls,
		pollEvery:  cfg.PollInterval,
		conc:       cfg.Concurrency,
		inFlight:   make(map[string]struct{}),
	}
	if p.maxRetries <= 0 {
		p.maxRetries = constants.RetryConfig.MaxAttempts
	}
	if p.baseDelay <= 0 {
		p.baseDelay = constants.RetryConfig.BaseDelay
	}
	if p.maxDelay <= 0 {
		p.maxDelay = constants.RetryConfig.MaxDelay
	}
	if p.maxPolls <= 0 {
		p.maxPolls = constants.PaymentConfig.MaxStatusPolls
	}
	if p.pollEvery <= 0 {
		p.pollEvery = constants.PaymentConfig.PollInterval
	}
	if p.conc < constants.PaymentConfig.MinConcurrency {
		p.conc = constants.PaymentConfig.DefaultConcurrency
	}
	if p.conc > constants.PaymentConfig.MaxConcurrency {
		p.conc = constants.PaymentConfig.MaxConcurrency
	}
	return p
}

// ProcessPayment runs one payment to a terminal state: submit with
// exponential-backoff retries on transient gateway failures, then poll until
// completed, failed, or the poll budget runs out. The returned result is
// always terminal; an error is returned only alongside a failed result.
func (p *Processor) ProcessPayment(ctx context.Context, req domain.PaymentRequest) (*domain.PaymentResult, error) {
	if !p.tryClaim(req.PayoutID) {
		return nil, fmt.Errorf("payout %s already being processed", req.PayoutID)
	}
	defer p.release(req.PayoutID)

	p.updateStatus(ctx, req.PayoutID, domain.PayoutProcessing, "")

	attempts := 0
	submit := func() (*domain.PaymentResult, error) {
		attempts++
		result, err := p.gateway.ProcessPayment(ctx, req)
		if err != nil {
			if apperrors.IsRetryable(err) {
				if p.metrics != nil {
					p.metrics.PaymentRetries.Inc()
				}
				return nil, err
			}
			return nil, backoff.Permanent(err)
		}
		return result, nil
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(p.newBackOff(), uint64(p.maxRetries)), ctx)
	result, err := backoff.RetryNotifyWithData(submit, policy, func(err error, next time.Duration) {
		p.logger.Warn("payment_submit_retry",
			"payout_id", req.PayoutID, "attempt", attempts, "next_in", next, "err", err)
	})
	if err != nil {
		return p.fail(ctx, req, attempts, err), err
	}

	result.PayoutID = req.PayoutID
	result.Attempts = attempts
	if result.Status == domain.PaymentProcessing {
		result, err = p.awaitCompletion(ctx, req, result)
		if err != nil {
			return p.fail(ctx, req, attempts, err), err
		}
	}
	return p.finish(ctx, req, result), nil
}

// ProcessBatch executes many payments concurrently, bounded by the configured
// worker count. Individual failures do not abort the batch; overlapping batch
// runs are rejected outright.
func (p *Processor) ProcessBatch(ctx context.Context, requests []domain.PaymentRequest) ([]domain.PaymentResult, error) {
	if !p.batchBusy.CompareAndSwap(false, true) {
		return nil, ErrPaymentBatchInProgress
	}
	defer p.batchBusy.Store(false)

	results := make([]domain.PaymentResult, len(requests))
	workers := pool.New().WithMaxGoroutines(p.conc)
	for i, req := range requests {
		workers.Go(func() {
			result, err := p.ProcessPayment(ctx, req)
			if result != nil {
				results[i] = *result
				return
			}
			results[i] = domain.PaymentResult{
				PayoutID:      req.PayoutID,
				Status:        domain.PaymentFailed,
				FailureReason: err.Error(),
			}
		})
	}
	workers.Wait()
	return results, nil
}

// awaitCompletion polls the gateway until the transfer is terminal or the
// poll budget is exhausted. An exhausted budget is a failure: the money state
// is unknown and needs operator reconciliation, so we refuse to report
// success.
func (p *Processor) awaitCompletion(ctx context.Context, req domain.PaymentRequest, submitted *domain.PaymentResult) (*domain.PaymentResult, error) {
	ticker := time.NewTicker(p.pollEvery)
	defer ticker.Stop()

	for poll := 0; poll < p.maxPolls; poll++ {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
		status, err := p.gateway.CheckStatus(ctx, submitted.TransactionID)
		if err != nil {
			if apperrors.IsRetryable(err) {
				p.logger.Warn("payment_status_poll_failed",
					"payout_id", req.PayoutID, "transaction_id", submitted.TransactionID, "err", err)
				continue
			}
			return nil, err
		}
		if status.Status != domain.PaymentProcessing {
			status.PayoutID = req.PayoutID
			status.Attempts = submitted.Attempts
			return status, nil
		}
	}
	return nil, apperrors.NewGatewayError("processor", "await_completion", false,
		fmt.Errorf("transfer %s still processing after %d polls", submitted.TransactionID, p.maxPolls))
}

func (p *Processor) finish(ctx context.Context, req domain.PaymentRequest, result *domain.PaymentResult) *domain.PaymentResult {
	if result.CompletedAt.IsZero() {
		result.CompletedAt = time.Now()
	}
	if p.metrics != nil {
		p.metrics.PaymentsProcessed.WithLabelValues(string(result.Status)).Inc()
	}

	switch result.Status {
	case domain.PaymentCompleted:
		p.updateStatus(ctx, req.PayoutID, domain.PayoutCompleted, "")
		p.notify(ctx, req, domain.TemplatePayoutCompleted, map[string]string{
			"amount":     strconv.FormatInt(req.Amount, 10),
			"campaignId": req.Reference,
			"reference":  result.TransactionID,
		})
		p.logger.Info("payment_completed",
			"payout_id", req.PayoutID, "transaction_id", result.TransactionID, "attempts", result.Attempts)
	case domain.PaymentFailed:
		p.updateStatus(ctx, req.PayoutID, domain.PayoutFailed, result.FailureReason)
		p.notify(ctx, req, domain.TemplatePayoutFailed, map[string]string{
			"amount":     strconv.FormatInt(req.Amount, 10),
			"campaignId": req.Reference,
			"reason":     result.FailureReason,
		})
		p.logger.Error("payment_failed",
			"payout_id", req.PayoutID, "reason", result.FailureReason, "attempts", result.Attempts)
	}
	return result
}

func (p *Processor) fail(ctx context.Context, req domain.PaymentRequest, attempts int, cause error) *domain.PaymentResult {
	result := &domain.PaymentResult{
		PayoutID:      req.PayoutID,
		Status:        domain.PaymentFailed,
		Attempts:      attempts,
		FailureReason: cause.Error(),
		CompletedAt:   time.Now(),
	}
	return p.finish(ctx, req, result)
}

func (p *Processor) updateStatus(ctx context.Context, payoutID string, status domain.PayoutStatus, reason string) {
	if p.updater == nil {
		return
	}
	if err := p.updater.UpdatePayoutStatus(ctx, payoutID, status, reason); err != nil {
		p.logger.Error("payout_status_update_failed", "payout_id", payoutID, "status", status, "err", err)
	}
}

func (p *Processor) notify(ctx context.Context, req domain.PaymentRequest, templateType domain.TemplateType, variables map[string]string) {
	if p.notifier == nil {
		return
	}
	if _, err := p.notifier.Send(ctx, req.RecipientID, templateType, variables); err != nil {
		var valErr *apperrors.ValidationError
		if errors.As(err, &valErr) {
			p.logger.Error("payment_notification_invalid", "payout_id", req.PayoutID, "err", err)
			return
		}
		p.logger.Warn("payment_notification_failed", "payout_id", req.PayoutID, "err", err)
	}
}

func (p *Processor) newBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.baseDelay
	b.Multiplier = constants.RetryConfig.Multiplier
	b.MaxInterval = p.maxDelay
	b.MaxElapsedTime = 0
	return b
}

func (p *Processor) tryClaim(payoutID string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, busy := p.inFlight[payoutID]; busy {
		return false
	}
	p.inFlight[payoutID] = struct{}{}
	return true
}

func (p *Processor) release(payoutID string) {
	p.mu.Lock()
	delete(p.inFlight, payoutID)
	p.mu.Unlock()
}
