package repository

import (
	"time"
)

// SnapshotRow: the metrics time-series. Append-only; one row per fetch.
type SnapshotRow struct {
	ID           int64     `gorm:"primaryKey;autoIncrement"`
	Platform     string    `gorm:"size:16;index:idx_snapshots_content,priority:1"`
	ContentID    string    `gorm:"size:128;index:idx_snapshots_content,priority:2"`
	PromoterID   string    `gorm:"size:64;index:idx_snapshots_pair,priority:1"`
	CampaignID   string    `gorm:"size:64;index:idx_snapshots_pair,priority:2"`
	ViewCount    int64
	LikeCount    int64
	CommentCount int64
	ShareCount   int64
	Engagement   float64
	ObservedAt   time.Time `gorm:"index"`
	CreatedAt    time.Time
}

// TableName pins the table used by both the ORM and the raw insert path.
func (SnapshotRow) TableName() string { return "view_metrics_snapshots" }

// AssessmentRow: the fraud audit trail, one row per analysis cycle per pair.
type AssessmentRow struct {
	ID               int64  `gorm:"primaryKey;autoIncrement"`
	PromoterID       string `gorm:"size:64;index:idx_assessments_pair,priority:1"`
	CampaignID       string `gorm:"size:64;index:idx_assessments_pair,priority:2"`
	BotScore         int
	Confidence       string `gorm:"size:8"`
	Action           string `gorm:"size:8"`
	ViewLikeRatio    float64
	ViewCommentRatio float64
	SpikeDetected    bool
	SpikePercentage  float64
	Reason           string    `gorm:"size:512"`
	AssessedAt       time.Time `gorm:"index"`
	CreatedAt        time.Time
}

func (AssessmentRow) TableName() string { return "fraud_assessments" }

// AppliedActionRow: the audit log of automatically applied fraud actions.
type AppliedActionRow struct {
	ID         int64  `gorm:"primaryKey;autoIncrement"`
	PromoterID string `gorm:"size:64;index"`
	CampaignID string `gorm:"size:64"`
	Action     string `gorm:"size:8"`
	BotScore   int
	Reason     string `gorm:"size:512"`
	AppliedAt  time.Time
	CreatedAt  time.Time
}

func (AppliedActionRow) TableName() string { return "fraud_applied_actions" }

// ViewRecordRow: per-cycle view deltas attributed to a pair, flagged by the
// fraud engine. The settlement batch aggregates these per period.
type ViewRecordRow struct {
	ID           int64  `gorm:"primaryKey;autoIncrement"`
	PromoterID   string `gorm:"size:64;index:idx_views_pair_time,priority:1"`
	CampaignID   string `gorm:"size:64;index:idx_views_pair_time,priority:2"`
	ViewCount    int64
	IsLegitimate bool
	RecordedAt   time.Time `gorm:"index:idx_views_pair_time,priority:3"`
	CreatedAt    time.Time
}

func (ViewRecordRow) TableName() string { return "view_records" }

// PayoutRow: one payout calculation per promoter/campaign/period.
type PayoutRow struct {
	ID              string `gorm:"primaryKey;size:36"`
	BatchID         string `gorm:"size:36;index"`
	PromoterID      string `gorm:"size:64;index"`
	CampaignID      string `gorm:"size:64"`
	PeriodStart     time.Time
	PeriodEnd       time.Time
	TotalViews      int64
	LegitimateViews int64
	BotViews        int64
	RatePerView     float64
	GrossAmount     int64
	PlatformFee     int64
	NetAmount       int64
	Status          string `gorm:"size:16;index"`
	FailureReason   string `gorm:"size:512"`
	Warnings        string `gorm:"size:1024"` // JSON-encoded list
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

func (PayoutRow) TableName() string { return "payout_calculations" }

// BatchRow: one settlement batch run.
type BatchRow struct {
	ID            string    `gorm:"primaryKey;size:36"`
	Date          time.Time `gorm:"index"`
	TotalJobs     int
	CompletedJobs int
	FailedJobs    int
	TotalAmount   int64
	Status        string `gorm:"size:16"`
	StartedAt     time.Time
	CompletedAt   time.Time
	Results       string `gorm:"type:text"` // JSON-encoded job results
	CreatedAt     time.Time
}

func (BatchRow) TableName() string { return "payout_batches" }

// PromotionRow: active promoter/campaign pairs and their per-view rate.
// Authored by the campaign service; this daemon only reads and suspends.
type PromotionRow struct {
	ID          int64  `gorm:"primaryKey;autoIncrement"`
	PromoterID  string `gorm:"size:64;uniqueIndex:idx_promotions_pair,priority:1"`
	CampaignID  string `gorm:"size:64;uniqueIndex:idx_promotions_pair,priority:2"`
	RatePerView float64
	Active      bool `gorm:"index"`
	Suspended   bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func (PromotionRow) TableName() string { return "promotions" }

// TrackedContentRow: content items registered for metrics collection, with
// the verification outcome recorded before tracking starts.
type TrackedContentRow struct {
	ID             int64  `gorm:"primaryKey;autoIncrement"`
	Platform       string `gorm:"size:16;uniqueIndex:idx_tracked_content,priority:1"`
	ContentID      string `gorm:"size:128;uniqueIndex:idx_tracked_content,priority:2"`
	ContentURL     string `gorm:"size:512"`
	PromoterID     string `gorm:"size:64;index"`
	CampaignID     string `gorm:"size:64"`
	UserID         string `gorm:"size:64"`
	Verified       bool
	VerifyReason   string `gorm:"size:512"`
	TrackingActive bool   `gorm:"index"`
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

func (TrackedContentRow) TableName() string { return "tracked_contents" }

// DeadLetterRow: collection jobs that exhausted their retries, kept for
// manual inspection.
type DeadLetterRow struct {
	ID         int64  `gorm:"primaryKey;autoIncrement"`
	JobID      string `gorm:"size:36;index"`
	Platform   string `gorm:"size:16"`
	ContentID  string `gorm:"size:128"`
	PromoterID string `gorm:"size:64"`
	CampaignID string `gorm:"size:64"`
	Attempts   int
	LastError  string `gorm:"size:1024"`
	FailedAt   time.Time
	CreatedAt  time.Time
}

func (DeadLetterRow) TableName() string { return "ingest_dead_letters" }

// RevenueRow: accumulated platform fees per settlement period.
type RevenueRow struct {
	ID          int64     `gorm:"primaryKey;autoIncrement"`
	PeriodStart time.Time `gorm:"uniqueIndex"`
	TotalFees   int64
	UpdatedAt   time.Time
}

func (RevenueRow) TableName() string { return "platform_revenue" }

// NotificationRow: rendered payout notifications, the dispatch audit trail.
type NotificationRow struct {
	ID           string `gorm:"primaryKey;size:36"`
	RecipientID  string `gorm:"size:64;index"`
	TemplateType string `gorm:"size:32"`
	Title        string `gorm:"size:256"`
	Body         string `gorm:"size:2048"`
	CreatedAt    time.Time
}

func (NotificationRow) TableName() string { return "notifications" }
