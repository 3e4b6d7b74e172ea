// Package ingest turns queued collection jobs into stored metric snapshots:
// fetch, validate, deduplicate, normalize, persist, then hand the pair's
// window to the fraud engine and record the attributed view delta.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/rendoarsandi/content-boost-sub002/internal/config"
	"github.com/rendoarsandi/content-boost-sub002/internal/domain"
	"github.com/rendoarsandi/content-boost-sub002/internal/metrics"
	"github.com/rendoarsandi/content-boost-sub002/internal/queue"
	"github.com/rendoarsandi/content-boost-sub002/internal/repository"
	"github.com/rendoarsandi/content-boost-sub002/internal/service/credentials"
	"github.com/rendoarsandi/content-boost-sub002/internal/service/fraud"
	"github.com/rendoarsandi/content-boost-sub002/internal/service/notification"
	"github.com/rendoarsandi/content-boost-sub002/internal/service/socialclient"
	apperrors "github.com/rendoarsandi/content-boost-sub002/pkg/errors"
)

// Worker: the metrics ingestion job handler.
type Worker struct {
	repo        *repository.Repository
	creds       *credentials.Manager
	client      *socialclient.Client
	engine      *fraud.Engine
	dispatcher  *notification.Dispatcher
	jobs        queue.JobQueue
	pipeline    Pipeline
	validate    *validator.Validate
	metrics     *metrics.Metrics
	logger      *slog.Logger
	now         func() time.Time
	maxRetries  int
	retryDelay  time.Duration
	dupWindow   time.Duration
	spikeWindow time.Duration
	autoActions bool
}

// NewWorker wires the worker from its collaborators.
func NewWorker(
	repo *repository.Repository,
	creds *credentials.Manager,
	client *socialclient.Client,
	engine *fraud.Engine,
	dispatcher *notification.Dispatcher,
	jobs queue.JobQueue,
	ingestCfg config.IngestConfig,
	fraudCfg config.FraudConfig,
	m *metrics.Metrics,
	logger *slog.Logger,
) *Worker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Worker{
		repo:        repo,
		creds:       creds,
		client:      client,
		engine:      engine,
		dispatcher:  dispatcher,
		jobs:        jobs,
		pipeline:    DefaultPipeline(),
		validate:    validator.New(),
		metrics:     m,
		logger:      logger,
		now:         time.Now,
		maxRetries:  ingestCfg.MaxRetries,
		retryDelay:  ingestCfg.RetryDelay,
		dupWindow:   ingestCfg.DuplicateWindow,
		spikeWindow: fraudCfg.SpikeWindow,
		autoActions: fraudCfg.EnableAutoActions,
	}
}

// Run consumes the job queue until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	return w.jobs.Consume(ctx, w.HandleJob)
}

// HandleJob processes one collection job through its state machine:
// validate, fetch, deduplicate, normalize, persist, assess. Returning nil
// means the job reached a terminal state (including recorded failures);
// retryable failures park in the deferred set until their retry-at passes.
func (w *Worker) HandleJob(ctx context.Context, job domain.CollectionJob) error {
	if err := validateJob(w.validate, job); err != nil {
		// Malformed jobs are final: record and move on, never retry.
		w.observeJob("invalid")
		w.logger.Warn("job_validation_failed", "job_id", job.JobID, "err", err)
		if dlErr := w.repo.SaveDeadLetter(ctx, job, err); dlErr != nil {
			w.logger.Error("dead_letter_save_failed", "job_id", job.JobID, "err", dlErr)
		}
		return nil
	}

	now := w.now()
	if !job.Ready(now) {
		// Not yet due for retry; park it until its retry-at passes. Parking
		// keeps the job off the stream entirely, so an hour-long rate-limit
		// window costs one ZADD, not an hour of redelivery churn.
		if err := w.jobs.Defer(ctx, job, time.Unix(job.NotBefore, 0)); err != nil {
			return fmt.Errorf("park deferred job failed: %w", err)
		}
		return nil
	}

	platform, _ := domain.ParsePlatform(job.Platform)
	snapshot, err := w.collect(ctx, job, platform)
	if err != nil {
		return w.handleFailure(ctx, job, err)
	}
	if snapshot == nil {
		return nil // duplicate, dropped
	}

	if err := w.assess(ctx, *snapshot); err != nil {
		w.logger.Error("fraud_assessment_failed", "job_id", job.JobID, "err", err)
	}

	w.observeJob("completed")
	return nil
}

// collect fetches, deduplicates, normalizes, and persists one snapshot plus
// its view-delta record. A nil snapshot with nil error means duplicate drop.
func (w *Worker) collect(ctx context.Context, job domain.CollectionJob, platform domain.Platform) (*domain.ViewMetricsSnapshot, error) {
	token, err := w.creds.GetValidToken(ctx, job.UserID, platform)
	if err != nil {
		return nil, err
	}

	raw, err := w.client.FetchMetrics(ctx, platform, token.AccessToken, job.ContentID, job.UserID)
	if err != nil {
		return nil, err
	}
	raw.PromoterID = job.PromoterID
	raw.CampaignID = job.CampaignID

	previous, err := w.repo.LatestSnapshot(ctx, platform, job.ContentID)
	if err != nil {
		return nil, err
	}
	if previous != nil && raw.Timestamp.Sub(previous.Timestamp) < w.dupWindow {
		w.observeJob("duplicate")
		w.logger.Debug("duplicate_snapshot_dropped",
			"content_id", job.ContentID, "age", raw.Timestamp.Sub(previous.Timestamp))
		return nil, nil
	}

	normalized := w.pipeline.Run(*raw)
	if err := w.repo.InsertSnapshot(ctx, normalized); err != nil {
		return nil, err
	}
	if w.metrics != nil {
		w.metrics.SnapshotsStored.Inc()
	}

	delta := normalized.DeltaFrom(previous)
	if delta.ViewDelta > 0 {
		legitimate := true
		if latest, aErr := w.repo.LatestAssessment(ctx, job.PromoterID, job.CampaignID); aErr == nil && latest != nil {
			legitimate = latest.Legitimate()
		}
		record := domain.ViewRecord{
			PromoterID:   job.PromoterID,
			CampaignID:   job.CampaignID,
			ViewCount:    delta.ViewDelta,
			IsLegitimate: legitimate,
			Timestamp:    normalized.Timestamp,
		}
		if err := w.repo.InsertViewRecord(ctx, record); err != nil {
			return nil, err
		}
	}
	return &normalized, nil
}

// assess runs the fraud engine over the pair's trailing window and applies
// the recommended action when auto-actions are enabled.
func (w *Worker) assess(ctx context.Context, snapshot domain.ViewMetricsSnapshot) error {
	since := snapshot.Timestamp.Add(-w.spikeWindow)
	window, err := w.repo.SnapshotsInWindow(ctx, snapshot.PromoterID, snapshot.CampaignID, since)
	if err != nil {
		return err
	}
	if len(window) == 0 {
		window = []domain.ViewMetricsSnapshot{snapshot}
	}

	assessment := w.engine.Detect(snapshot.PromoterID, snapshot.CampaignID, window)
	if err := w.repo.SaveAssessment(ctx, assessment); err != nil {
		return err
	}
	if w.metrics != nil {
		w.metrics.FraudAssessments.WithLabelValues(string(assessment.Action)).Inc()
	}

	if !w.autoActions || assessment.Action == domain.ActionNone {
		return nil
	}
	return w.applyAction(ctx, assessment)
}

func (w *Worker) applyAction(ctx context.Context, assessment domain.FraudAssessment) error {
	switch assessment.Action {
	case domain.ActionBan:
		if err := w.repo.SuspendPromotion(ctx, assessment.PromoterID, assessment.CampaignID); err != nil {
			return err
		}
	case domain.ActionWarning, domain.ActionMonitor:
		// Recorded below; no account-level change.
	default:
		return nil
	}

	if err := w.repo.SaveAppliedAction(ctx, assessment, w.now()); err != nil {
		return err
	}
	w.logger.Info("fraud_action_applied",
		"promoter_id", assessment.PromoterID,
		"campaign_id", assessment.CampaignID,
		"action", assessment.Action,
		"bot_score", assessment.BotScore,
	)

	if w.dispatcher != nil && assessment.Action != domain.ActionMonitor {
		_, err := w.dispatcher.Send(ctx, assessment.PromoterID, domain.TemplateFraudAlert, map[string]string{
			"campaignId": assessment.CampaignID,
			"action":     string(assessment.Action),
			"reason":     assessment.Reason,
		})
		if err != nil {
			w.logger.Warn("fraud_alert_send_failed", "promoter_id", assessment.PromoterID, "err", err)
		}
	}
	return nil
}

// handleFailure routes a job failure: auth failures notify and terminate,
// retryable failures park with a durable retry-at, and exhausted or
// permanent failures land in the dead-letter table.
func (w *Worker) handleFailure(ctx context.Context, job domain.CollectionJob, cause error) error {
	if apperrors.NeedsReauth(cause) {
		w.observeJob("failed")
		w.logger.Warn("job_needs_reauth", "job_id", job.JobID, "user_id", job.UserID, "err", cause)
		if w.dispatcher != nil {
			_, sendErr := w.dispatcher.Send(ctx, job.UserID, domain.TemplateReauthRequired, map[string]string{
				"platform": job.Platform,
			})
			if sendErr != nil {
				w.logger.Warn("reauth_notify_failed", "user_id", job.UserID, "err", sendErr)
			}
		}
		if dlErr := w.repo.SaveDeadLetter(ctx, job, cause); dlErr != nil {
			w.logger.Error("dead_letter_save_failed", "job_id", job.JobID, "err", dlErr)
		}
		return nil
	}

	if !apperrors.IsRetryable(cause) {
		w.observeJob("failed")
		if dlErr := w.repo.SaveDeadLetter(ctx, job, cause); dlErr != nil {
			w.logger.Error("dead_letter_save_failed", "job_id", job.JobID, "err", dlErr)
		}
		return nil
	}

	if job.Attempt+1 >= w.maxRetries {
		w.observeJob("failed")
		w.logger.Error("job_retries_exhausted", "job_id", job.JobID, "attempts", job.Attempt+1, "err", cause)
		if dlErr := w.repo.SaveDeadLetter(ctx, job, cause); dlErr != nil {
			w.logger.Error("dead_letter_save_failed", "job_id", job.JobID, "err", dlErr)
		}
		return nil
	}

	retryAt := w.retryAt(cause)
	retry := job
	retry.Attempt++
	retry.NotBefore = retryAt.Unix()
	if err := w.jobs.Defer(ctx, retry, retryAt); err != nil {
		return fmt.Errorf("park retry failed: %w", err)
	}
	w.observeJob("retried")
	w.logger.Warn("job_retry_scheduled", "job_id", job.JobID, "attempt", retry.Attempt, "not_before", retry.NotBefore, "err", cause)
	return nil
}

// retryAt honors a rate-limit window reset when that is what failed;
// everything else waits the fixed retry delay.
func (w *Worker) retryAt(cause error) time.Time {
	var rlErr *apperrors.RateLimitError
	if errors.As(cause, &rlErr) && rlErr.ResetAt.After(w.now()) {
		return rlErr.ResetAt
	}
	return w.now().Add(w.retryDelay)
}

func (w *Worker) observeJob(outcome string) {
	if w.metrics != nil {
		w.metrics.IngestJobs.WithLabelValues(outcome).Inc()
	}
}
