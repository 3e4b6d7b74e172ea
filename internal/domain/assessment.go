package domain

import "time"

// Confidence grades how certain a fraud assessment is.
type Confidence string

const (
	ConfidenceLow    Confidence = "low"
	ConfidenceMedium Confidence = "medium"
	ConfidenceHigh   Confidence = "high"
)

// Action is the recommended response to a fraud assessment. The engine only
// recommends; the caller applies it when auto-actions are enabled.
type Action string

const (
	ActionNone    Action = "none"
	ActionMonitor Action = "monitor"
	ActionWarning Action = "warning"
	ActionBan     Action = "ban"
)

// FraudMetrics: the raw signals behind a bot score.
type FraudMetrics struct {
	ViewLikeRatio    float64 `json:"viewLikeRatio"`
	ViewCommentRatio float64 `json:"viewCommentRatio"`
	SpikeDetected    bool    `json:"spikeDetected"`
	SpikePercentage  float64 `json:"spikePercentage"`
}

// FraudAssessment: the scoring result for one promoter/campaign pair over a
// window of snapshots. Recomputed each analysis cycle and replaced, never
// mutated in place.
type FraudAssessment struct {
	PromoterID string       `json:"promoterId"`
	CampaignID string       `json:"campaignId"`
	BotScore   int          `json:"botScore"` // 0-100
	Confidence Confidence   `json:"confidence"`
	Action     Action       `json:"action"`
	Metrics    FraudMetrics `json:"metrics"`
	Reason     string       `json:"reason"`
	AssessedAt time.Time    `json:"assessedAt"`
}

// Legitimate reports whether views scored under this assessment count toward
// payout. Only a ban marks the pair's views as bot traffic; monitor and
// warning keep paying while the pair is watched.
func (a FraudAssessment) Legitimate() bool {
	return a.Action != ActionBan
}
