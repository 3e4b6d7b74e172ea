package domain

import "time"

// ViewMetricsSnapshot: one observation of a single piece of content at a
// point in time. Immutable once stored; the next fetch for the same content
// supersedes it rather than mutating it. Counts are non-negative after
// normalization.
type ViewMetricsSnapshot struct {
	Platform     Platform  `json:"platform"`
	ContentID    string    `json:"contentId"`
	PromoterID   string    `json:"promoterId"`
	CampaignID   string    `json:"campaignId"`
	ViewCount    int64     `json:"viewCount"`
	LikeCount    int64     `json:"likeCount"`
	CommentCount int64     `json:"commentCount"`
	ShareCount   int64     `json:"shareCount"`
	// EngagementRate is derived during normalization:
	// (likes+comments+shares) / views, 0 when there are no views.
	EngagementRate float64   `json:"engagementRate"`
	Timestamp      time.Time `json:"timestamp"`
}

// SnapshotDelta: the change between two consecutive snapshots of the same
// content. New views for a period are attributed from deltas, never from the
// absolute counters, so a re-fetch cannot double-pay.
type SnapshotDelta struct {
	Platform     Platform  `json:"platform"`
	ContentID    string    `json:"contentId"`
	PromoterID   string    `json:"promoterId"`
	CampaignID   string    `json:"campaignId"`
	ViewDelta    int64     `json:"viewDelta"`
	LikeDelta    int64     `json:"likeDelta"`
	CommentDelta int64     `json:"commentDelta"`
	ShareDelta   int64     `json:"shareDelta"`
	Timestamp    time.Time `json:"timestamp"`
}

// DeltaFrom computes the delta between s and the previous snapshot for the
// same content. A nil previous snapshot means first observation: the full
// counts are the delta. Counter resets upstream (previous > current) clamp
// the delta to zero instead of going negative.
func (s ViewMetricsSnapshot) DeltaFrom(prev *ViewMetricsSnapshot) SnapshotDelta {
	d := SnapshotDelta{
		Platform:   s.Platform,
		ContentID:  s.ContentID,
		PromoterID: s.PromoterID,
		CampaignID: s.CampaignID,
		Timestamp:  s.Timestamp,
	}
	if prev == nil {
		d.ViewDelta = s.ViewCount
		d.LikeDelta = s.LikeCount
		d.CommentDelta = s.CommentCount
		d.ShareDelta = s.ShareCount
		return d
	}
	d.ViewDelta = clampNonNegative(s.ViewCount - prev.ViewCount)
	d.LikeDelta = clampNonNegative(s.LikeCount - prev.LikeCount)
	d.CommentDelta = clampNonNegative(s.CommentCount - prev.CommentCount)
	d.ShareDelta = clampNonNegative(s.ShareCount - prev.ShareCount)
	return d
}

func clampNonNegative(v int64) int64 {
	if v < 0 {
		return 0
	}
	return v
}
