// Package credentials owns the OAuth token lifecycle per user/platform pair:
// expiry checks, eager refresh, and the distributed lock that keeps two
// processes from racing the upstream provider. Concurrent refreshes against
// the same provider can invalidate each other's tokens, so exactly one caller
// refreshes and everyone else re-reads.
package credentials

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"golang.org/x/oauth2"

	"github.com/rendoarsandi/content-boost-sub002/internal/config"
	"github.com/rendoarsandi/content-boost-sub002/internal/constants"
	"github.com/rendoarsandi/content-boost-sub002/internal/domain"
	"github.com/rendoarsandi/content-boost-sub002/internal/lock"
	"github.com/rendoarsandi/content-boost-sub002/internal/metrics"
	"github.com/rendoarsandi/content-boost-sub002/internal/valkeyx"
	apperrors "github.com/rendoarsandi/content-boost-sub002/pkg/errors"
)

// Refresher exchanges a refresh token for a fresh access token upstream.
type Refresher interface {
	Refresh(ctx context.Context, token domain.SocialToken) (*domain.SocialToken, error)
}

// Manager: validates, refreshes, and invalidates stored social tokens.
type Manager struct {
	store     *Store
	locker    *lock.Lock
	refresher Refresher
	metrics   *metrics.Metrics
	logger    *slog.Logger
	now       func() time.Time

	refreshWindow  time.Duration
	lockTTL        time.Duration
	lockRetryDelay time.Duration
	lockMaxWait    time.Duration
}

// NewManager creates a Manager with the default refresh timings.
func NewManager(store *Store, locker *lock.Lock, refresher Refresher, m *metrics.Metrics, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		store:          store,
		locker:         locker,
		refresher:      refresher,
		metrics:        m,
		logger:         logger,
		now:            time.Now,
		refreshWindow:  constants.TokenConfig.RefreshWindow,
		lockTTL:        constants.TokenConfig.LockTTL,
		lockRetryDelay: constants.TokenConfig.LockRetryDelay,
		lockMaxWait:    constants.TokenConfig.LockMaxWait,
	}
}

// GetValidToken returns a usable access token for the user/platform pair.
// A token expiring within the refresh window is refreshed eagerly; an
// already-expired token must be refreshed before use. A missing token or an
// irrecoverable refresh failure returns an AuthError with NeedsReauth set.
func (m *Manager) GetValidToken(ctx context.Context, userID string, platform domain.Platform) (*domain.SocialToken, error) {
	token, err := m.store.Get(ctx, userID, platform)
	if err != nil {
		return nil, err
	}
	if token == nil {
		return nil, apperrors.NewAuthError(string(platform), userID, true, nil)
	}

	now := m.now()
	if !token.ExpiresWithin(now, m.refreshWindow) {
		return token, nil
	}

	refreshed, err := m.refreshWithLock(ctx, *token)
	if err != nil {
		// An expired token is unusable; surface the refresh failure. A token
		// that is merely expiring soon still works, so transient refresh
		// trouble degrades to returning the stale token.
		if token.Expired(now) || apperrors.NeedsReauth(err) {
			return nil, err
		}
		m.logger.Warn("token_refresh_deferred", "platform", platform, "user_id", userID, "err", err)
		return token, nil
	}
	return refreshed, nil
}

// refreshWithLock performs a single-flight refresh. The loser of the lock
// race backs off and re-reads the stored token instead of calling upstream.
func (m *Manager) refreshWithLock(ctx context.Context, stale domain.SocialToken) (*domain.SocialToken, error) {
	lockKey := valkeyx.BuildKey2(constants.KeyPrefix.TokenLock, string(stale.Platform), stale.UserID)

	handle, acquired, err := m.locker.Acquire(ctx, lockKey, m.lockTTL)
	if err != nil {
		return nil, err
	}
	if !acquired {
		return m.awaitOtherRefresh(ctx, stale)
	}
	defer func() {
		if releaseErr := m.locker.Release(ctx, handle); releaseErr != nil {
			m.logger.Warn("token_lock_release_failed", "key", lockKey, "err", releaseErr)
		}
	}()

	// Double-check after winning the lock: another holder may have finished
	// between our read and our acquire.
	current, err := m.store.Get(ctx, stale.UserID, stale.Platform)
	if err != nil {
		return nil, err
	}
	if current != nil && !current.ExpiresWithin(m.now(), m.refreshWindow) {
		return current, nil
	}
	if current != nil {
		stale = *current
	}

	refreshed, err := m.refresher.Refresh(ctx, stale)
	if err != nil {
		if apperrors.NeedsReauth(err) {
			// Revoked refresh token: the stored credential is dead weight.
			if delErr := m.store.Delete(ctx, stale.UserID, stale.Platform); delErr != nil {
				m.logger.Error("token_delete_failed", "platform", stale.Platform, "user_id", stale.UserID, "err", delErr)
			}
			m.observeRefresh("reauth")
			return nil, err
		}
		m.observeRefresh("transient")
		return nil, err
	}

	if err := m.store.Set(ctx, *refreshed); err != nil {
		return nil, err
	}
	m.observeRefresh("ok")
	m.logger.Info("token_refreshed", "platform", stale.Platform, "user_id", stale.UserID, "expires_at", refreshed.ExpiresAt)
	return refreshed, nil
}

// awaitOtherRefresh polls the store while another caller holds the refresh
// lock, bounded by lockMaxWait.
func (m *Manager) awaitOtherRefresh(ctx context.Context, stale domain.SocialToken) (*domain.SocialToken, error) {
	deadline := m.now().Add(m.lockMaxWait)
	for {
		timer := time.NewTimer(m.lockRetryDelay)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		}

		current, err := m.store.Get(ctx, stale.UserID, stale.Platform)
		if err != nil {
			return nil, err
		}
		if current == nil {
			// The holder deleted the token: refresh failed irrecoverably.
			return nil, apperrors.NewAuthError(string(stale.Platform), stale.UserID, true, nil)
		}
		if !current.ExpiresWithin(m.now(), m.refreshWindow) {
			return current, nil
		}
		if m.now().After(deadline) {
			if current.Expired(m.now()) {
				return nil, apperrors.NewAuthError(string(stale.Platform), stale.UserID, false,
					errors.New("refresh lock contention timeout"))
			}
			return current, nil
		}
	}
}

func (m *Manager) observeRefresh(outcome string) {
	if m.metrics != nil {
		m.metrics.TokenRefreshes.WithLabelValues(outcome).Inc()
	}
}

// OAuthRefresher: the production Refresher over golang.org/x/oauth2.
type OAuthRefresher struct {
	configs map[domain.Platform]*oauth2.Config
}

// NewOAuthRefresher builds per-platform oauth2 configs from the app
// credentials.
func NewOAuthRefresher(cfg config.OAuthConfig) *OAuthRefresher {
	build := func(p config.PlatformOAuth) *oauth2.Config {
		return &oauth2.Config{
			ClientID:     p.ClientID,
			ClientSecret: p.ClientSecret,
			Endpoint:     oauth2.Endpoint{TokenURL: p.TokenURL},
		}
	}
	return &OAuthRefresher{
		configs: map[domain.Platform]*oauth2.Config{
			domain.PlatformTikTok:    build(cfg.TikTok),
			domain.PlatformInstagram: build(cfg.Instagram),
		},
	}
}

// Refresh exchanges the refresh token upstream. An invalid_grant style
// rejection maps to NeedsReauth; anything else is transient.
func (r *OAuthRefresher) Refresh(ctx context.Context, token domain.SocialToken) (*domain.SocialToken, error) {
	oauthCfg, ok := r.configs[token.Platform]
	if !ok {
		return nil, apperrors.NewValidationError("platform", "unsupported platform: "+string(token.Platform))
	}
	if token.RefreshToken == "" {
		return nil, apperrors.NewAuthError(string(token.Platform), token.UserID, true,
			errors.New("no refresh token stored"))
	}

	source := oauthCfg.TokenSource(ctx, &oauth2.Token{RefreshToken: token.RefreshToken})
	fresh, err := source.Token()
	if err != nil {
		var retrieveErr *oauth2.RetrieveError
		if errors.As(err, &retrieveErr) && retrieveErr.Response != nil &&
			retrieveErr.Response.StatusCode >= 400 && retrieveErr.Response.StatusCode < 500 {
			return nil, apperrors.NewAuthError(string(token.Platform), token.UserID, true, err)
		}
		return nil, apperrors.NewAuthError(string(token.Platform), token.UserID, false, err)
	}

	refreshToken := fresh.RefreshToken
	if refreshToken == "" {
		// Providers that do not rotate refresh tokens keep the old one valid.
		refreshToken = token.RefreshToken
	}
	return &domain.SocialToken{
		UserID:       token.UserID,
		Platform:     token.Platform,
		AccessToken:  fresh.AccessToken,
		RefreshToken: refreshToken,
		ExpiresAt:    fresh.Expiry,
	}, nil
}
