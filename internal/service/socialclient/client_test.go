package socialclient

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/valkey-io/valkey-go"

	"github.com/rendoarsandi/content-boost-sub002/internal/config"
	"github.com/rendoarsandi/content-boost-sub002/internal/domain"
	"github.com/rendoarsandi/content-boost-sub002/internal/ratelimit"
	apperrors "github.com/rendoarsandi/content-boost-sub002/pkg/errors"
)

const tiktokOKResponse = `{
	"data": {"videos": [{
		"id": "content-1",
		"view_count": 1500,
		"like_count": 300,
		"comment_count": 45,
		"share_count": 12
	}]},
	"error": {"code": "ok", "message": ""}
}`

func testWindow(t *testing.T) *ratelimit.Window {
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
	return ratelimit.New(client)
}

func testClient(t *testing.T, tiktokURL string) *Client {
	t.Helper()
	cfg := config.SocialAPIConfig{
		TikTokBaseURL:    tiktokURL,
		InstagramBaseURL: tiktokURL,
		RequestTimeout:   5 * time.Second,
		MaxRetries:       3,
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	c := New(cfg, testWindow(t), nil, logger)
	c.baseDelay = time.Millisecond
	c.maxDelay = 5 * time.Millisecond
	return c
}

func TestFetchMetricsSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer token-1" {
			t.Errorf("Authorization = %q", r.Header.Get("Authorization"))
		}
		w.Write([]byte(tiktokOKResponse))
	}))
	defer srv.Close()

	c := testClient(t, srv.URL)
	snap, err := c.FetchMetrics(context.Background(), domain.PlatformTikTok, "token-1", "content-1", "user-1")
	if err != nil {
		t.Fatalf("FetchMetrics: %v", err)
	}
	if snap.ViewCount != 1500 || snap.LikeCount != 300 || snap.CommentCount != 45 || snap.ShareCount != 12 {
		t.Errorf("counts = %d/%d/%d/%d, want 1500/300/45/12",
			snap.ViewCount, snap.LikeCount, snap.CommentCount, snap.ShareCount)
	}
	if snap.Platform != domain.PlatformTikTok || snap.ContentID != "content-1" {
		t.Errorf("snapshot identity = %s/%s", snap.Platform, snap.ContentID)
	}
}

func TestFetchMetricsRetriesServerErrors(t *testing.T) {
	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) <= 2 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Write([]byte(tiktokOKResponse))
	}))
	defer srv.Close()

	c := testClient(t, srv.URL)
	snap, err := c.FetchMetrics(context.Background(), domain.PlatformTikTok, "token-1", "content-1", "user-1")
	if err != nil {
		t.Fatalf("FetchMetrics after retries: %v", err)
	}
	if snap.ViewCount != 1500 {
		t.Errorf("ViewCount = %d, want 1500", snap.ViewCount)
	}
	if got := calls.Load(); got != 3 {
		t.Errorf("upstream calls = %d, want 3 (two failures, one success)", got)
	}
}

func TestFetchMetricsClientErrorPropagatesImmediately(t *testing.T) {
	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	c := testClient(t, srv.URL)
	_, err := c.FetchMetrics(context.Background(), domain.PlatformTikTok, "token-1", "content-1", "user-1")
	if err == nil {
		t.Fatal("expected error for 400 response")
	}
	var apiErr *apperrors.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("err = %T (%v), want APIError", err, err)
	}
	if apiErr.StatusCode != http.StatusBadRequest {
		t.Errorf("StatusCode = %d, want 400", apiErr.StatusCode)
	}
	if got := calls.Load(); got != 1 {
		t.Errorf("upstream calls = %d, want 1 (no retries on 4xx)", got)
	}
}

func TestFetchMetricsContentNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data":{"videos":[]},"error":{"code":"ok"}}`))
	}))
	defer srv.Close()

	c := testClient(t, srv.URL)
	_, err := c.FetchMetrics(context.Background(), domain.PlatformTikTok, "token-1", "missing", "user-1")
	if err == nil {
		t.Fatal("expected error for missing video")
	}
	var apiErr *apperrors.APIError
	if !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusNotFound {
		t.Fatalf("err = %v, want 404 APIError", err)
	}
}

func TestFetchMetricsUnsupportedPlatform(t *testing.T) {
	c := testClient(t, "http://unused.invalid")
	_, err := c.FetchMetrics(context.Background(), domain.Platform("myspace"), "token-1", "content-1", "user-1")
	if !apperrors.IsValidation(err) {
		t.Fatalf("err = %v, want ValidationError", err)
	}
}
