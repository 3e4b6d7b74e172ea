package socialclient

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/goccy/go-json"

	apperrors "github.com/rendoarsandi/content-boost-sub002/pkg/errors"
)

// tiktokFetcher reads video stats from the TikTok open API.
type tiktokFetcher struct {
	baseURL string
	http    *http.Client
}

type tiktokVideoData struct {
	Data struct {
		Videos []struct {
			ID           string `json:"id"`
			ViewCount    int64  `json:"view_count"`
			LikeCount    int64  `json:"like_count"`
			CommentCount int64  `json:"comment_count"`
			ShareCount   int64  `json:"share_count"`
		} `json:"videos"`
	} `json:"data"`
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func (f *tiktokFetcher) fetch(ctx context.Context, accessToken, contentID string) (rawMetrics, error) {
	endpoint := fmt.Sprintf("%s/v2/video/query/?fields=%s", f.baseURL,
		url.QueryEscape("id,view_count,like_count,comment_count,share_count"))

	body := fmt.Sprintf(`{"filters":{"video_ids":[%q]}}`, contentID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, jsonBody(body))
	if err != nil {
		return rawMetrics{}, apperrors.NewAPIError("tiktok_video_query", 0, err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Content-Type", "application/json")

	payload, err := doRequest(f.http, req, "tiktok_video_query")
	if err != nil {
		return rawMetrics{}, err
	}

	var parsed tiktokVideoData
	if err := json.Unmarshal(payload, &parsed); err != nil {
		return rawMetrics{}, apperrors.NewAPIError("tiktok_video_query", 0, fmt.Errorf("decode response: %w", err))
	}
	if parsed.Error.Code != "" && parsed.Error.Code != "ok" {
		return rawMetrics{}, apperrors.NewAPIError("tiktok_video_query", http.StatusBadRequest,
			fmt.Errorf("provider error %s: %s", parsed.Error.Code, parsed.Error.Message))
	}
	if len(parsed.Data.Videos) == 0 {
		return rawMetrics{}, apperrors.NewAPIError("tiktok_video_query", http.StatusNotFound,
			fmt.Errorf("video %s not found", contentID))
	}

	v := parsed.Data.Videos[0]
	return rawMetrics{
		ViewCount:    v.ViewCount,
		LikeCount:    v.LikeCount,
		CommentCount: v.CommentCount,
		ShareCount:   v.ShareCount,
	}, nil
}

// doRequest executes the request and classifies the response: 2xx returns
// the body, anything else becomes an APIError whose retryability follows the
// status code (network/5xx/429 retryable, other 4xx terminal).
func doRequest(client *http.Client, req *http.Request, operation string) ([]byte, error) {
	resp, err := client.Do(req)
	if err != nil {
		return nil, apperrors.NewAPIError(operation, 0, err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, apperrors.NewAPIError(operation, resp.StatusCode, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, apperrors.NewAPIError(operation, resp.StatusCode,
			fmt.Errorf("unexpected status %d: %s", resp.StatusCode, truncate(payload, 200)))
	}
	return payload, nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
