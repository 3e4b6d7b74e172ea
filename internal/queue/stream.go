package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/mitchellh/mapstructure"
	"github.com/valkey-io/valkey-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/rendoarsandi/content-boost-sub002/internal/domain"
	"github.com/rendoarsandi/content-boost-sub002/internal/telemetry"
	"github.com/rendoarsandi/content-boost-sub002/internal/valkeyx"
)

// StreamConfig: the Valkey-stream queue setup.
type StreamConfig struct {
	Stream string
	Group  string
	Name   string // consumer name, unique per process

	ReadCount   int64
	Block       time.Duration
	Concurrency int
	MaxLen      int64

	AckMaxRetries int
	AckRetryDelay time.Duration

	// Backoff between failed XREADGROUP attempts.
	BackoffInitial time.Duration
	BackoffMax     time.Duration
	BackoffFactor  float64
}

// StreamQueue: a JobQueue over a Valkey stream consumer group. Jobs are
// delivered to the handler under a semaphore; each delivery runs in its own
// consumer span with trace context restored from the message fields.
type StreamQueue struct {
	client valkey.Client
	logger *slog.Logger
	cfg    StreamConfig
}

// NewStreamQueue creates a StreamQueue.
func NewStreamQueue(client valkey.Client, logger *slog.Logger, cfg StreamConfig) *StreamQueue {
	if logger == nil {
		logger = slog.Default()
	}
	return &StreamQueue{client: client, logger: logger, cfg: cfg}
}

// Enqueue publishes the job onto the stream (XADD with approximate MAXLEN),
// injecting the caller's trace context into the field map.
func (q *StreamQueue) Enqueue(ctx context.Context, job domain.CollectionJob) (string, error) {
	fields := job.Fields()
	telemetry.InjectContext(ctx, telemetry.MapCarrier(fields))

	args := make([]string, 0, len(fields)*2+4)
	if q.cfg.MaxLen > 0 {
		args = append(args, "MAXLEN", "~", fmt.Sprintf("%d", q.cfg.MaxLen))
	}
	args = append(args, "*")
	for k, v := range fields {
		args = append(args, k, v)
	}

	cmd := q.client.B().Arbitrary("XADD").Keys(q.cfg.Stream).Args(args...).Build()
	id, err := q.client.Do(ctx, cmd).ToString()
	if err != nil {
		return "", fmt.Errorf("xadd failed stream=%s: %w", q.cfg.Stream, err)
	}
	return id, nil
}

// promoteBatch bounds how many parked jobs one PromoteDue call moves.
const promoteBatch = 100

// deferredKey is the sorted set holding parked jobs, scored by due time.
func (q *StreamQueue) deferredKey() string {
	return q.cfg.Stream + ":deferred"
}

// Defer parks the job in the deferred set (ZADD, score = due unix time)
// instead of the live stream, so a not-yet-due retry costs nothing until the
// scheduler promotes it.
func (q *StreamQueue) Defer(ctx context.Context, job domain.CollectionJob, until time.Time) error {
	member, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("encode deferred job failed: %w", err)
	}
	cmd := q.client.B().Zadd().Key(q.deferredKey()).
		ScoreMember().ScoreMember(float64(until.Unix()), string(member)).
		Build()
	if err := q.client.Do(ctx, cmd).Error(); err != nil {
		return fmt.Errorf("zadd deferred failed stream=%s: %w", q.cfg.Stream, err)
	}
	return nil
}

// PromoteDue moves due parked jobs onto the stream. Each member is claimed
// with ZREM before publishing so two promoters never double-deliver; a job
// whose publish fails is re-parked as immediately due.
func (q *StreamQueue) PromoteDue(ctx context.Context, now time.Time) (int, error) {
	cmd := q.client.B().Zrangebyscore().Key(q.deferredKey()).
		Min("-inf").Max(strconv.FormatInt(now.Unix(), 10)).
		Limit(0, promoteBatch).
		Build()
	members, err := q.client.Do(ctx, cmd).AsStrSlice()
	if err != nil {
		if valkeyx.IsNil(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("zrangebyscore deferred failed: %w", err)
	}

	promoted := 0
	for _, member := range members {
		removed, err := q.client.Do(ctx, q.client.B().Zrem().Key(q.deferredKey()).Member(member).Build()).AsInt64()
		if err != nil {
			return promoted, fmt.Errorf("zrem deferred failed: %w", err)
		}
		if removed == 0 {
			continue // claimed by another promoter
		}

		var job domain.CollectionJob
		if err := json.Unmarshal([]byte(member), &job); err != nil {
			q.logger.Error("deferred_job_decode_failed", "err", err, "stream", q.cfg.Stream)
			continue
		}
		if _, err := q.Enqueue(ctx, job); err != nil {
			requeue := q.client.B().Zadd().Key(q.deferredKey()).
				ScoreMember().ScoreMember(float64(now.Unix()), member).
				Build()
			if reErr := q.client.Do(ctx, requeue).Error(); reErr != nil {
				q.logger.Error("deferred_job_repark_failed", "job_id", job.JobID, "err", reErr)
			}
			return promoted, fmt.Errorf("promote deferred job %s failed: %w", job.JobID, err)
		}
		promoted++
	}
	return promoted, nil
}

// Consume runs the read loop until ctx is cancelled. Handler errors are
// logged and the message is still acked: retry policy is the worker's job
// (it re-enqueues with an attempt counter), not the queue's.
func (q *StreamQueue) Consume(ctx context.Context, handler func(ctx context.Context, job domain.CollectionJob) error) error {
	cfg, err := q.normalizedConfig()
	if err != nil {
		return err
	}
	if err := q.ensureGroup(ctx, cfg); err != nil {
		return err
	}

	sem := make(chan struct{}, cfg.Concurrency)
	var wg sync.WaitGroup
	defer wg.Wait()

	backoff := cfg.BackoffInitial
	for {
		if ctx.Err() != nil {
			return nil
		}

		messages, err := q.readBatch(ctx, cfg)
		if err != nil {
			if valkeyx.IsNil(err) || (errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil) {
				backoff = cfg.BackoffInitial // block timeout, normal
				continue
			}
			if errors.Is(err, context.Canceled) && ctx.Err() != nil {
				return nil
			}
			if isNoGroupErr(err) {
				if recreateErr := q.ensureGroup(ctx, cfg); recreateErr == nil {
					q.logger.Info("consumer_group_recreated", "stream", cfg.Stream, "group", cfg.Group)
					backoff = cfg.BackoffInitial
					continue
				}
			}

			q.logger.Warn("xreadgroup_failed", "err", err, "stream", cfg.Stream, "backoff", backoff)
			if !sleepWithContext(ctx, backoff) {
				return nil
			}
			backoff = time.Duration(float64(backoff) * cfg.BackoffFactor)
			if backoff > cfg.BackoffMax {
				backoff = cfg.BackoffMax
			}
			continue
		}
		backoff = cfg.BackoffInitial

		for _, msg := range messages {
			if ctx.Err() != nil {
				return nil
			}
			select {
			case sem <- struct{}{}:
			case <-ctx.Done():
				return nil
			}
			wg.Add(1)
			go func(m message) {
				defer wg.Done()
				defer func() { <-sem }()
				q.handleMessage(ctx, cfg, m, handler)
			}(msg)
		}
	}
}

type message struct {
	id     string
	fields map[string]string
}

func (q *StreamQueue) readBatch(ctx context.Context, cfg StreamConfig) ([]message, error) {
	cmd := q.client.B().Xreadgroup().
		Group(cfg.Group, cfg.Name).
		Count(cfg.ReadCount).
		Block(cfg.Block.Milliseconds()).
		Streams().Key(cfg.Stream).Id(">").
		Build()

	result, err := q.client.Do(ctx, cmd).AsXRead()
	if err != nil {
		return nil, fmt.Errorf("xreadgroup failed: %w", err)
	}

	var messages []message
	for stream, entries := range result {
		if stream != cfg.Stream {
			continue
		}
		for _, entry := range entries {
			messages = append(messages, message{id: entry.ID, fields: entry.FieldValues})
		}
	}
	return messages, nil
}

func (q *StreamQueue) handleMessage(
	ctx context.Context,
	cfg StreamConfig,
	msg message,
	handler func(ctx context.Context, job domain.CollectionJob) error,
) {
	tracer := otel.Tracer("content-boost/queue-consumer")

	carrier := telemetry.MapCarrier(msg.fields)
	parentCtx := telemetry.ExtractContext(ctx, carrier)

	spanCtx, span := tracer.Start(parentCtx, "Queue.ProcessJob",
		trace.WithSpanKind(trace.SpanKindConsumer),
		trace.WithAttributes(
			attribute.String("messaging.system", "valkey"),
			attribute.String("messaging.destination", cfg.Stream),
			attribute.String("messaging.message_id", msg.id),
			attribute.String("messaging.consumer_group", cfg.Group),
		),
	)
	defer span.End()

	job, decodeErr := DecodeJob(msg.fields)
	if decodeErr != nil {
		span.RecordError(decodeErr)
		span.SetStatus(codes.Error, decodeErr.Error())
		q.logger.ErrorContext(spanCtx, "job_decode_failed", "err", decodeErr, "id", msg.id)
	} else if handleErr := handler(spanCtx, job); handleErr != nil {
		span.RecordError(handleErr)
		span.SetStatus(codes.Error, handleErr.Error())
		q.logger.ErrorContext(spanCtx, "job_handler_failed", "err", handleErr, "job_id", job.JobID, "id", msg.id)
	} else {
		span.SetStatus(codes.Ok, "")
	}

	if ackErr := q.ackWithRetry(spanCtx, cfg, msg.id); ackErr != nil {
		q.logger.WarnContext(spanCtx, "xack_failed", "err", ackErr, "stream", cfg.Stream, "id", msg.id)
	}
}

// DecodeJob binds a stream field map into a CollectionJob.
func DecodeJob(fields map[string]string) (domain.CollectionJob, error) {
	var job domain.CollectionJob
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &job,
		WeaklyTypedInput: true, // stream fields are all strings
	})
	if err != nil {
		return domain.CollectionJob{}, fmt.Errorf("create job decoder failed: %w", err)
	}
	if err := decoder.Decode(fields); err != nil {
		return domain.CollectionJob{}, fmt.Errorf("decode job fields failed: %w", err)
	}
	return job, nil
}

func (q *StreamQueue) ensureGroup(ctx context.Context, cfg StreamConfig) error {
	cmd := q.client.B().XgroupCreate().Key(cfg.Stream).Group(cfg.Group).Id("$").Mkstream().Build()
	err := q.client.Do(ctx, cmd).Error()
	if err != nil && !isBusyGroupErr(err) {
		return fmt.Errorf("xgroup create failed stream=%s group=%s: %w", cfg.Stream, cfg.Group, err)
	}
	consumerCmd := q.client.B().XgroupCreateconsumer().Key(cfg.Stream).Group(cfg.Group).Consumer(cfg.Name).Build()
	_ = q.client.Do(ctx, consumerCmd).Error()
	return nil
}

func (q *StreamQueue) ackWithRetry(ctx context.Context, cfg StreamConfig, id string) error {
	var lastErr error
	for attempt := 0; attempt < cfg.AckMaxRetries; attempt++ {
		if ctx.Err() != nil {
			return nil
		}
		cmd := q.client.B().Xack().Key(cfg.Stream).Group(cfg.Group).Id(id).Build()
		if err := q.client.Do(ctx, cmd).Error(); err == nil {
			return nil
		} else {
			lastErr = err
		}
		if attempt < cfg.AckMaxRetries-1 && !sleepWithContext(ctx, cfg.AckRetryDelay) {
			return nil
		}
	}
	return lastErr
}

func (q *StreamQueue) normalizedConfig() (StreamConfig, error) {
	cfg := q.cfg
	cfg.Stream = strings.TrimSpace(cfg.Stream)
	cfg.Group = strings.TrimSpace(cfg.Group)
	cfg.Name = strings.TrimSpace(cfg.Name)
	if cfg.Stream == "" || cfg.Group == "" || cfg.Name == "" {
		return StreamConfig{}, errors.New("stream/group/name must be set")
	}
	if cfg.ReadCount <= 0 {
		cfg.ReadCount = 10
	}
	if cfg.Block <= 0 {
		cfg.Block = 5 * time.Second
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 8
	}
	if cfg.AckMaxRetries <= 0 {
		cfg.AckMaxRetries = 1
	}
	if cfg.AckRetryDelay <= 0 {
		cfg.AckRetryDelay = 100 * time.Millisecond
	}
	if cfg.BackoffInitial <= 0 {
		cfg.BackoffInitial = 1 * time.Second
	}
	if cfg.BackoffMax <= 0 {
		cfg.BackoffMax = 30 * time.Second
	}
	if cfg.BackoffFactor <= 0 {
		cfg.BackoffFactor = 2.0
	}
	return cfg, nil
}

func isBusyGroupErr(err error) bool {
	return err != nil && strings.Contains(err.Error(), "BUSYGROUP")
}

func isNoGroupErr(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "NOGROUP") || strings.Contains(strings.ToLower(msg), "no such key")
}

func sleepWithContext(ctx context.Context, delay time.Duration) bool {
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}
