// Package queue carries collection jobs between the scheduler and the
// ingestion worker. The JobQueue interface hides the backing store; the
// shipped implementation rides a Valkey stream with a consumer group plus a
// sorted-set holding area for jobs that are not due yet.
package queue

import (
	"context"
	"time"

	"github.com/rendoarsandi/content-boost-sub002/internal/domain"
)

// JobQueue: the contract between job producers and the ingestion worker.
type JobQueue interface {
	// Enqueue publishes a job for immediate delivery. The returned id is
	// store-specific.
	Enqueue(ctx context.Context, job domain.CollectionJob) (string, error)
	// Defer parks a job until its due time. Parked jobs never reach a
	// consumer; PromoteDue moves them onto the live queue once due.
	Defer(ctx context.Context, job domain.CollectionJob, until time.Time) error
	// PromoteDue moves jobs whose due time has passed back onto the live
	// queue and reports how many it moved. The scheduler calls this on every
	// ingest tick.
	PromoteDue(ctx context.Context, now time.Time) (int, error)
	// Consume blocks, delivering jobs to handler with bounded concurrency,
	// until ctx is cancelled.
	Consume(ctx context.Context, handler func(ctx context.Context, job domain.CollectionJob) error) error
}
