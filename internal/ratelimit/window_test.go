package ratelimit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/valkey-io/valkey-go"

	"github.com/rendoarsandi/content-boost-sub002/internal/domain"
	apperrors "github.com/rendoarsandi/content-boost-sub002/pkg/errors"
)

func testWindow(t *testing.T, tiktokLimit int) *Window {
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

	w := New(client)
	w.limits[domain.PlatformTikTok] = tiktokLimit
	return w
}

func TestAllowWithinLimit(t *testing.T) {
	w := testWindow(t, 3)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if err := w.Allow(ctx, domain.PlatformTikTok); err != nil {
			t.Fatalf("Allow call %d: %v", i+1, err)
		}
	}
}

func TestAllowRejectsOverLimit(t *testing.T) {
	w := testWindow(t, 2)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if err := w.Allow(ctx, domain.PlatformTikTok); err != nil {
			t.Fatalf("Allow call %d: %v", i+1, err)
		}
	}

	err := w.Allow(ctx, domain.PlatformTikTok)
	var rlErr *apperrors.RateLimitError
	if !errors.As(err, &rlErr) {
		t.Fatalf("err = %v, want RateLimitError", err)
	}
	if rlErr.Platform != string(domain.PlatformTikTok) {
		t.Errorf("Platform = %q", rlErr.Platform)
	}
	if rlErr.ResetAt.IsZero() || !rlErr.ResetAt.After(time.Now()) {
		t.Errorf("ResetAt = %v, want a future reset time", rlErr.ResetAt)
	}
}

func TestAllowRejectedCallDoesNotBurnBudget(t *testing.T) {
	w := testWindow(t, 1)
	base := time.Now().Truncate(time.Hour).Add(time.Minute)
	w.now = func() time.Time { return base }
	ctx := context.Background()

	if err := w.Allow(ctx, domain.PlatformTikTok); err != nil {
		t.Fatalf("first Allow: %v", err)
	}
	// Hammer the exhausted window; the counter must stay at the limit.
	for i := 0; i < 5; i++ {
		var rlErr *apperrors.RateLimitError
		if err := w.Allow(ctx, domain.PlatformTikTok); !errors.As(err, &rlErr) {
			t.Fatalf("Allow %d: err = %v, want RateLimitError", i, err)
		}
	}

	// A new window starts clean.
	w.now = func() time.Time { return base.Add(w.window) }
	if err := w.Allow(ctx, domain.PlatformTikTok); err != nil {
		t.Fatalf("Allow in next window: %v", err)
	}
}

func TestAllowPlatformsAreIndependent(t *testing.T) {
	w := testWindow(t, 1)
	ctx := context.Background()

	if err := w.Allow(ctx, domain.PlatformTikTok); err != nil {
		t.Fatalf("tiktok Allow: %v", err)
	}
	if err := w.Allow(ctx, domain.PlatformTikTok); err == nil {
		t.Fatal("tiktok window not exhausted")
	}
	// Instagram keeps its own budget.
	if err := w.Allow(ctx, domain.PlatformInstagram); err != nil {
		t.Fatalf("instagram Allow: %v", err)
	}
}

func TestAllowUnsupportedPlatform(t *testing.T) {
	w := testWindow(t, 1)
	if err := w.Allow(context.Background(), domain.Platform("myspace")); !apperrors.IsValidation(err) {
		t.Fatalf("err = %v, want ValidationError", err)
	}
}
