// Package verification checks that a submitted content URL actually exists
// and belongs to the claimed platform before the item enters metrics
// tracking. The check scrapes the page's OpenGraph metadata; it is a
// plausibility gate, not an ownership proof.
package verification

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/rendoarsandi/content-boost-sub002/internal/constants"
	"github.com/rendoarsandi/content-boost-sub002/internal/domain"
	apperrors "github.com/rendoarsandi/content-boost-sub002/pkg/errors"
)

// Result: the outcome of one content URL check.
type Result struct {
	Verified bool
	Reason   string
	Title    string
}

// Verifier fetches and inspects content pages.
type Verifier struct {
	client    *http.Client
	userAgent string
}

// New creates a Verifier with the default timeout and user agent.
func New() *Verifier {
	return &Verifier{
		client:    &http.Client{Timeout: constants.VerificationConfig.RequestTimeout},
		userAgent: constants.VerificationConfig.UserAgent,
	}
}

// platformHosts maps each platform to the hostnames its content lives on.
var platformHosts = map[domain.Platform][]string{
	domain.PlatformTikTok:    {"tiktok.com", "vt.tiktok.com", "vm.tiktok.com"},
	domain.PlatformInstagram: {"instagram.com"},
}

// VerifyContent checks that rawURL is a reachable content page on the claimed
// platform. A failed check returns a Result with the reason, not an error;
// errors are reserved for malformed input and network-level failures.
func (v *Verifier) VerifyContent(ctx context.Context, platform domain.Platform, rawURL string) (*Result, error) {
	parsed, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return nil, apperrors.NewValidationError("url", "malformed content URL")
	}
	if parsed.Scheme != "https" {
		return &Result{Reason: "content URL must use https"}, nil
	}
	if !hostMatches(platform, parsed.Hostname()) {
		return &Result{Reason: fmt.Sprintf("host %s does not belong to %s", parsed.Hostname(), platform)}, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, parsed.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("build verification request: %w", err)
	}
	req.Header.Set("User-Agent", v.userAgent)

	resp, err := v.client.Do(req)
	if err != nil {
		return nil, apperrors.NewAPIError("verify_content", 0, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone {
		return &Result{Reason: "content not found"}, nil
	}
	if resp.StatusCode >= 400 {
		return nil, apperrors.NewAPIError("verify_content", resp.StatusCode,
			fmt.Errorf("unexpected status fetching %s", parsed.Hostname()))
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse content page: %w", err)
	}

	title := metaContent(doc, "og:title")
	if title == "" {
		title = strings.TrimSpace(doc.Find("title").First().Text())
	}
	ogType := metaContent(doc, "og:type")

	// Removed or private posts commonly resolve to the platform's generic
	// landing page, which carries no og:title.
	if title == "" && ogType == "" {
		return &Result{Reason: "page has no content metadata, likely removed or private"}, nil
	}
	return &Result{Verified: true, Title: title}, nil
}

func hostMatches(platform domain.Platform, host string) bool {
	host = strings.ToLower(host)
	for _, allowed := range platformHosts[platform] {
		if host == allowed || strings.HasSuffix(host, "."+allowed) {
			return true
		}
	}
	return false
}

func metaContent(doc *goquery.Document, property string) string {
	content, _ := doc.Find(fmt.Sprintf(`meta[property=%q]`, property)).First().Attr("content")
	return strings.TrimSpace(content)
}
