// Package socialclient wraps the social platforms' read APIs behind a shared
// fixed-window quota, a local burst smoother, and bounded exponential-backoff
// retries with typed error classification.
package socialclient

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/time/rate"

	"github.com/rendoarsandi/content-boost-sub002/internal/config"
	"github.com/rendoarsandi/content-boost-sub002/internal/constants"
	"github.com/rendoarsandi/content-boost-sub002/internal/domain"
	"github.com/rendoarsandi/content-boost-sub002/internal/metrics"
	"github.com/rendoarsandi/content-boost-sub002/internal/ratelimit"
	apperrors "github.com/rendoarsandi/content-boost-sub002/pkg/errors"
)

// fetcher retrieves raw engagement counts for one platform.
type fetcher interface {
	fetch(ctx context.Context, accessToken, contentID string) (rawMetrics, error)
}

// rawMetrics: provider counts before normalization. Values may be negative
// or otherwise dirty; the ingestion pipeline cleans them.
type rawMetrics struct {
	ViewCount    int64
	LikeCount    int64
	CommentCount int64
	ShareCount   int64
}

// Client: the rate-limited platform client.
type Client struct {
	window     *ratelimit.Window
	limiter    *rate.Limiter
	fetchers   map[domain.Platform]fetcher
	metrics    *metrics.Metrics
	logger     *slog.Logger
	maxRetries int
	baseDelay  time.Duration
	maxDelay   time.Duration
	multiplier float64
	now        func() time.Time
}

// New creates a Client. The local limiter smooths dispatch bursts under the
// hourly window; the window itself is the authoritative cross-process quota.
func New(cfg config.SocialAPIConfig, window *ratelimit.Window, m *metrics.Metrics, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	httpClient := &http.Client{Timeout: cfg.RequestTimeout}
	return &Client{
		window:  window,
		limiter: rate.NewLimiter(rate.Every(time.Second), 5),
		fetchers: map[domain.Platform]fetcher{
			domain.PlatformTikTok:    &tiktokFetcher{baseURL: cfg.TikTokBaseURL, http: httpClient},
			domain.PlatformInstagram: &instagramFetcher{baseURL: cfg.InstagramBaseURL, http: httpClient},
		},
		metrics:    m,
		logger:     logger,
		maxRetries: cfg.MaxRetries,
		baseDelay:  constants.RetryConfig.BaseDelay,
		maxDelay:   constants.RetryConfig.MaxDelay,
		multiplier: constants.RetryConfig.Multiplier,
		now:        time.Now,
	}
}

// FetchMetrics fetches one content item's engagement counts as an
// un-normalized snapshot. The quota counter increments only for dispatched
// requests; a rate-limited call returns RateLimitError without burning
// budget. Retryable failures (network, 5xx) retry up to the configured
// maximum with exponential backoff; other 4xx propagate immediately.
func (c *Client) FetchMetrics(ctx context.Context, platform domain.Platform, accessToken, contentID, userID string) (*domain.ViewMetricsSnapshot, error) {
	f, ok := c.fetchers[platform]
	if !ok {
		return nil, apperrors.NewValidationError("platform", "unsupported platform: "+string(platform))
	}

	if err := c.window.Allow(ctx, platform); err != nil {
		var rlErr *apperrors.RateLimitError
		if errors.As(err, &rlErr) && c.metrics != nil {
			c.metrics.RateLimitRejected.WithLabelValues(string(platform)).Inc()
		}
		return nil, err
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, apperrors.NewAPIError("limiter_wait", 0, err)
	}

	var raw rawMetrics
	operation := func() error {
		m, err := f.fetch(ctx, accessToken, contentID)
		if err != nil {
			if !apperrors.IsRetryable(err) {
				return backoff.Permanent(err)
			}
			return err
		}
		raw = m
		return nil
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = c.baseDelay
	policy.Multiplier = c.multiplier
	policy.MaxInterval = c.maxDelay
	policy.MaxElapsedTime = 0 // bounded by retry count, not wall clock
	policy.RandomizationFactor = 0

	bounded := backoff.WithContext(backoff.WithMaxRetries(policy, uint64(c.maxRetries)), ctx)
	notify := func(err error, next time.Duration) {
		c.logger.Warn("fetch_metrics_retry",
			"platform", platform, "content_id", contentID, "next_delay", next, "err", err)
	}
	if err := backoff.RetryNotify(operation, bounded, notify); err != nil {
		var permanent *backoff.PermanentError
		if errors.As(err, &permanent) {
			return nil, permanent.Err
		}
		return nil, err
	}

	return &domain.ViewMetricsSnapshot{
		Platform:     platform,
		ContentID:    contentID,
		PromoterID:   "", // attributed by the caller from the collection job
		CampaignID:   "",
		ViewCount:    raw.ViewCount,
		LikeCount:    raw.LikeCount,
		CommentCount: raw.CommentCount,
		ShareCount:   raw.ShareCount,
		Timestamp:    c.now(),
	}, nil
}
