package ingest

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/rendoarsandi/content-boost-sub002/internal/domain"
	"github.com/rendoarsandi/content-boost-sub002/internal/queue"
	"github.com/rendoarsandi/content-boost-sub002/internal/repository"
)

// Tracker enqueues one collection job per tracked content item. The
// scheduler calls EnqueueDue on every ingest tick.
type Tracker struct {
	repo   *repository.Repository
	jobs   queue.JobQueue
	logger *slog.Logger
	now    func() time.Time
}

// NewTracker creates a Tracker.
func NewTracker(repo *repository.Repository, jobs queue.JobQueue, logger *slog.Logger) *Tracker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Tracker{repo: repo, jobs: jobs, logger: logger, now: time.Now}
}

// EnqueueDue first promotes any parked retries whose retry-at has passed,
// then publishes a collection job for every verified, actively tracked
// content item. Per-item enqueue failures are logged and skipped; one bad
// item never stalls the cycle.
func (t *Tracker) EnqueueDue(ctx context.Context) error {
	if promoted, err := t.jobs.PromoteDue(ctx, t.now()); err != nil {
		t.logger.Warn("deferred_promote_failed", "err", err)
	} else if promoted > 0 {
		t.logger.Debug("deferred_jobs_promoted", "count", promoted)
	}

	contents, err := t.repo.TrackedContents(ctx)
	if err != nil {
		return err
	}

	enqueued := 0
	for _, content := range contents {
		job := domain.CollectionJob{
			JobID:      uuid.NewString(),
			Platform:   content.Platform,
			ContentID:  content.ContentID,
			PromoterID: content.PromoterID,
			CampaignID: content.CampaignID,
			UserID:     content.UserID,
			EnqueuedAt: t.now().Unix(),
		}
		if _, err := t.jobs.Enqueue(ctx, job); err != nil {
			t.logger.Warn("collection_job_enqueue_failed", "content_id", content.ContentID, "err", err)
			continue
		}
		enqueued++
	}

	t.logger.Debug("collection_cycle_enqueued", "tracked", len(contents), "enqueued", enqueued)
	return nil
}
