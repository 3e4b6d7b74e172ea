// Package fraud scores promoter/campaign pairs for automated engagement.
// The engine is pure: it reads a window of snapshots and returns an
// assessment, no I/O, so every boundary is unit-testable.
//
// Threshold convention, applied uniformly: ratio and spike triggers fire on
// strictly-greater-than comparison (a value exactly at the threshold does
// not trigger), while score-to-action bands use inclusive lower bounds
// (a score exactly at a band boundary lands in the higher band).
package fraud

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/rendoarsandi/content-boost-sub002/internal/config"
	"github.com/rendoarsandi/content-boost-sub002/internal/constants"
	"github.com/rendoarsandi/content-boost-sub002/internal/domain"
)

// Score weights. Ratio anomalies can reach 70 on their own; a spike
// contributes the remaining 30, so a ban (>=90) requires both signals.
const (
	likeRatioWeight    = 40.0
	commentRatioWeight = 30.0
	spikeWeight        = 30.0
)

// Engine: the detection configuration. Construct once, share freely; Detect
// has no mutable state.
type Engine struct {
	viewLikeRatioMax    float64
	viewCommentRatioMax float64
	spikeWindow         time.Duration
	spikeThresholdPct   float64
}

// New creates an Engine from configuration.
func New(cfg config.FraudConfig) *Engine {
	e := &Engine{
		viewLikeRatioMax:    cfg.ViewLikeRatioMax,
		viewCommentRatioMax: cfg.ViewCommentRatioMax,
		spikeWindow:         cfg.SpikeWindow,
		spikeThresholdPct:   cfg.SpikeThresholdPct,
	}
	if e.viewLikeRatioMax <= 0 {
		e.viewLikeRatioMax = constants.FraudConfig.ViewLikeRatioMax
	}
	if e.viewCommentRatioMax <= 0 {
		e.viewCommentRatioMax = constants.FraudConfig.ViewCommentRatioMax
	}
	if e.spikeWindow <= 0 {
		e.spikeWindow = constants.FraudConfig.SpikeWindow
	}
	if e.spikeThresholdPct <= 0 {
		e.spikeThresholdPct = constants.FraudConfig.SpikeThresholdPct
	}
	return e
}

// Detect scores one pair over its snapshot window. Snapshots must be in
// arrival order; the last element is the current observation. An empty
// window yields a zero assessment with action none.
func (e *Engine) Detect(promoterID, campaignID string, snapshots []domain.ViewMetricsSnapshot) domain.FraudAssessment {
	assessment := domain.FraudAssessment{
		PromoterID: promoterID,
		CampaignID: campaignID,
		Confidence: domain.ConfidenceLow,
		Action:     domain.ActionNone,
		Reason:     "no data",
	}
	if len(snapshots) == 0 {
		return assessment
	}

	latest := snapshots[len(snapshots)-1]
	assessment.AssessedAt = latest.Timestamp

	metrics := domain.FraudMetrics{
		ViewLikeRatio:    engagementRatio(latest.ViewCount, latest.LikeCount),
		ViewCommentRatio: engagementRatio(latest.ViewCount, latest.CommentCount),
	}

	// Spike detection needs history: a single snapshot evaluates ratios only.
	if len(snapshots) > 1 {
		baseline, ok := e.windowBaseline(snapshots, latest.Timestamp)
		if ok && baseline > 0 {
			metrics.SpikePercentage = float64(latest.ViewCount-baseline) / float64(baseline) * 100
			metrics.SpikeDetected = metrics.SpikePercentage > e.spikeThresholdPct
		}
	}
	assessment.Metrics = metrics

	score, reasons := e.score(metrics)
	assessment.BotScore = score
	assessment.Confidence, assessment.Action = bandFor(score)
	if len(reasons) == 0 {
		assessment.Reason = "no anomalies detected"
	} else {
		assessment.Reason = strings.Join(reasons, "; ")
	}
	return assessment
}

// windowBaseline returns the view count of the earliest snapshot inside the
// trailing window ending at the latest observation.
func (e *Engine) windowBaseline(snapshots []domain.ViewMetricsSnapshot, latest time.Time) (int64, bool) {
	cutoff := latest.Add(-e.spikeWindow)
	for _, s := range snapshots[:len(snapshots)-1] {
		if !s.Timestamp.Before(cutoff) {
			return s.ViewCount, true
		}
	}
	return 0, false
}

// score combines ratio excess and spike severity into [0,100], collecting a
// human-readable reason per triggered rule.
func (e *Engine) score(m domain.FraudMetrics) (int, []string) {
	var total float64
	var reasons []string

	if m.ViewLikeRatio > e.viewLikeRatioMax {
		excess := (m.ViewLikeRatio - e.viewLikeRatioMax) / e.viewLikeRatioMax
		total += likeRatioWeight * math.Min(1, excess)
		reasons = append(reasons, fmt.Sprintf("view:like ratio %.1f exceeds %.1f", m.ViewLikeRatio, e.viewLikeRatioMax))
	}
	if m.ViewCommentRatio > e.viewCommentRatioMax {
		excess := (m.ViewCommentRatio - e.viewCommentRatioMax) / e.viewCommentRatioMax
		total += commentRatioWeight * math.Min(1, excess)
		reasons = append(reasons, fmt.Sprintf("view:comment ratio %.1f exceeds %.1f", m.ViewCommentRatio, e.viewCommentRatioMax))
	}
	if m.SpikeDetected {
		// Severity saturates at double the threshold.
		severity := math.Min(1, m.SpikePercentage/(2*e.spikeThresholdPct))
		total += spikeWeight * severity
		reasons = append(reasons, fmt.Sprintf("view spike %.0f%% exceeds %.0f%%", m.SpikePercentage, e.spikeThresholdPct))
	}

	score := int(math.Round(math.Min(100, math.Max(0, total))))
	return score, reasons
}

// engagementRatio is views per engagement unit. Zero views is defined as
// ratio 0, not a division error; zero engagements on non-zero views divide
// by one so pure view-bot traffic still produces a large ratio.
func engagementRatio(views, engagements int64) float64 {
	if views == 0 {
		return 0
	}
	if engagements < 1 {
		engagements = 1
	}
	return float64(views) / float64(engagements)
}

// bandFor maps a score to confidence and action with inclusive lower bounds.
func bandFor(score int) (domain.Confidence, domain.Action) {
	switch {
	case score >= constants.FraudConfig.BanScore:
		return domain.ConfidenceHigh, domain.ActionBan
	case score >= constants.FraudConfig.WarningScore:
		return domain.ConfidenceMedium, domain.ActionWarning
	case score >= constants.FraudConfig.MonitorScore:
		return domain.ConfidenceLow, domain.ActionMonitor
	default:
		return domain.ConfidenceLow, domain.ActionNone
	}
}
