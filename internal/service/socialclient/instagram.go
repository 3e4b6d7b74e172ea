package socialclient

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/goccy/go-json"

	apperrors "github.com/rendoarsandi/content-boost-sub002/pkg/errors"
)

// instagramFetcher reads media insights from the Instagram graph API.
type instagramFetcher struct {
	baseURL string
	http    *http.Client
}

type instagramInsights struct {
	Data []struct {
		Name   string `json:"name"`
		Values []struct {
			Value int64 `json:"value"`
		} `json:"values"`
	} `json:"data"`
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    int    `json:"code"`
	} `json:"error"`
}

func (f *instagramFetcher) fetch(ctx context.Context, accessToken, contentID string) (rawMetrics, error) {
	query := url.Values{}
	query.Set("metric", "views,likes,comments,shares")
	query.Set("access_token", accessToken)
	endpoint := fmt.Sprintf("%s/%s/insights?%s", f.baseURL, url.PathEscape(contentID), query.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return rawMetrics{}, apperrors.NewAPIError("instagram_insights", 0, err)
	}

	payload, err := doRequest(f.http, req, "instagram_insights")
	if err != nil {
		return rawMetrics{}, err
	}

	var parsed instagramInsights
	if err := json.Unmarshal(payload, &parsed); err != nil {
		return rawMetrics{}, apperrors.NewAPIError("instagram_insights", 0, fmt.Errorf("decode response: %w", err))
	}
	if parsed.Error.Message != "" {
		return rawMetrics{}, apperrors.NewAPIError("instagram_insights", http.StatusBadRequest,
			fmt.Errorf("provider error %d (%s): %s", parsed.Error.Code, parsed.Error.Type, parsed.Error.Message))
	}

	var raw rawMetrics
	for _, metric := range parsed.Data {
		var value int64
		if len(metric.Values) > 0 {
			value = metric.Values[len(metric.Values)-1].Value
		}
		switch strings.ToLower(metric.Name) {
		case "views", "impressions":
			raw.ViewCount = value
		case "likes":
			raw.LikeCount = value
		case "comments":
			raw.CommentCount = value
		case "shares":
			raw.ShareCount = value
		}
	}
	return raw, nil
}

// jsonBody wraps a prebuilt JSON string for request bodies.
func jsonBody(s string) io.Reader {
	return strings.NewReader(s)
}
