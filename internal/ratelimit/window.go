// Package ratelimit implements the per-platform fixed-window request quota
// shared across processes. The counter lives in Valkey and only dispatched
// requests increment it: a rate-limited caller does not burn budget.
package ratelimit

import (
	"context"
	"time"

	"github.com/valkey-io/valkey-go"

	"github.com/rendoarsandi/content-boost-sub002/internal/constants"
	"github.com/rendoarsandi/content-boost-sub002/internal/domain"
	"github.com/rendoarsandi/content-boost-sub002/internal/valkeyx"
	apperrors "github.com/rendoarsandi/content-boost-sub002/pkg/errors"
)

// Window: a fixed-window counter keyed per platform and window start.
type Window struct {
	client valkey.Client
	limits map[domain.Platform]int
	window time.Duration
	now    func() time.Time
}

// New creates a Window with the default per-platform quotas.
func New(client valkey.Client) *Window {
	return &Window{
		client: client,
		limits: map[domain.Platform]int{
			domain.PlatformTikTok:    constants.RateLimits.TikTokPerHour,
			domain.PlatformInstagram: constants.RateLimits.InstagramPerHour,
		},
		window: constants.RateLimits.Window,
		now:    time.Now,
	}
}

// Allow consumes one request slot for the platform. When the window is
// exhausted it returns a RateLimitError carrying the window reset time and
// leaves the counter untouched beyond the limit probe.
func (w *Window) Allow(ctx context.Context, platform domain.Platform) error {
	limit, ok := w.limits[platform]
	if !ok {
		return apperrors.NewValidationError("platform", "unsupported platform: "+string(platform))
	}

	now := w.now()
	windowStart := now.Truncate(w.window)
	resetAt := windowStart.Add(w.window)
	key := valkeyx.BuildKey2(constants.KeyPrefix.RateLimit, string(platform), windowStart.Format("2006010215"))

	count, err := w.client.Do(ctx, w.client.B().Incr().Key(key).Build()).AsInt64()
	if err != nil {
		return apperrors.NewCacheError("ratelimit_incr", key, err)
	}
	if count == 1 {
		// First hit in the window owns setting the expiry.
		expireCmd := w.client.B().Expire().Key(key).Seconds(int64(w.window.Seconds()) + 60).Build()
		if err := w.client.Do(ctx, expireCmd).Error(); err != nil {
			return apperrors.NewCacheError("ratelimit_expire", key, err)
		}
	}
	if count > int64(limit) {
		// Undo the probe so a blocked caller does not consume budget.
		_ = w.client.Do(ctx, w.client.B().Decr().Key(key).Build()).Error()
		return &apperrors.RateLimitError{Platform: string(platform), ResetAt: resetAt}
	}
	return nil
}
