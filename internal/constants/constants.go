package constants

import "time"

// KeyPrefix holds the Valkey key namespaces. Every key the daemon writes
// starts with one of these so operators can scan and expire by concern.
var KeyPrefix = struct {
	Token         string
	TokenLock     string
	RateLimit     string
	MetricsLast   string
	BatchLock     string
	AppliedAction string
}{
	Token:         "token",
	TokenLock:     "lock:token",
	RateLimit:     "ratelimit",
	MetricsLast:   "metrics:last",
	BatchLock:     "lock:payout:batch",
	AppliedAction: "fraud:action",
}

// RateLimits is the per-platform request budget per rolling hour window.
var RateLimits = struct {
	TikTokPerHour    int
	InstagramPerHour int
	Window           time.Duration
}{
	TikTokPerHour:    100,
	InstagramPerHour: 200,
	Window:           1 * time.Hour,
}

// RetryConfig is the shared retry policy for platform API calls and
// payment gateway calls: delay = min(MaxDelay, BaseDelay * Multiplier^attempt).
var RetryConfig = struct {
	MaxAttempts int
	BaseDelay   time.Duration
	Multiplier  float64
	MaxDelay    time.Duration
}{
	MaxAttempts: 3,
	BaseDelay:   1 * time.Second,
	Multiplier:  2.0,
	MaxDelay:    30 * time.Second,
}

// TokenConfig governs credential refresh.
// RefreshWindow: tokens expiring within this window are refreshed eagerly.
// LockTTL: upper bound on how long a refresh lock may be held.
// LockRetryDelay: wait between re-reads while another process refreshes.
var TokenConfig = struct {
	RefreshWindow  time.Duration
	LockTTL        time.Duration
	LockRetryDelay time.Duration
	LockMaxWait    time.Duration
}{
	RefreshWindow:  24 * time.Hour,
	LockTTL:        30 * time.Second,
	LockRetryDelay: 150 * time.Millisecond,
	LockMaxWait:    5 * time.Second,
}

// FraudConfig holds the detection thresholds. Ratio and spike triggers use
// strictly-greater comparison; score bands use inclusive lower bounds.
var FraudConfig = struct {
	ViewLikeRatioMax    float64
	ViewCommentRatioMax float64
	SpikeWindow         time.Duration
	SpikeThresholdPct   float64
	BanScore            int
	WarningScore        int
	MonitorScore        int
}{
	ViewLikeRatioMax:    10,
	ViewCommentRatioMax: 100,
	SpikeWindow:         5 * time.Minute,
	SpikeThresholdPct:   500,
	BanScore:            90,
	WarningScore:        50,
	MonitorScore:        20,
}

// PayoutConfig holds settlement economics in integer rupiah.
var PayoutConfig = struct {
	MinAmount          int64
	PlatformFeePercent float64
	BotRatioAlert      float64
	Timezone           string
	SettlementHour     int
	SettlementMinute   int
}{
	MinAmount:          1000,
	PlatformFeePercent: 5,
	BotRatioAlert:      0.9,
	Timezone:           "Asia/Jakarta",
	SettlementHour:     0,
	SettlementMinute:   0,
}

// IngestConfig drives the metrics collection loop.
var IngestConfig = struct {
	Interval        time.Duration
	RetryDelay      time.Duration
	MaxRetries      int
	DuplicateWindow time.Duration
}{
	Interval:        60 * time.Second,
	RetryDelay:      5 * time.Second,
	MaxRetries:      3,
	DuplicateWindow: 10 * time.Second,
}

// PaymentConfig bounds gateway interactions.
var PaymentConfig = struct {
	MaxConcurrency     int
	DefaultConcurrency int
	MinConcurrency     int
	MaxStatusPolls     int
	PollInterval       time.Duration
}{
	MaxConcurrency:     5,
	DefaultConcurrency: 3,
	MinConcurrency:     2,
	MaxStatusPolls:     10,
	PollInterval:       2 * time.Second,
}

// QueueConfig is the collection-job stream setup. MaxLen caps the stream
// with approximate trimming on every XADD; acked entries do not leave the
// stream on their own.
var QueueConfig = struct {
	Stream        string
	Group         string
	BlockTimeout  time.Duration
	ReadCount     int64
	Concurrency   int
	MaxLen        int64
	AckMaxRetries int
	AckRetryDelay time.Duration
}{
	Stream:        "ingest:jobs",
	Group:         "settlementd",
	BlockTimeout:  5 * time.Second,
	ReadCount:     16,
	Concurrency:   8,
	MaxLen:        100_000,
	AckMaxRetries: 3,
	AckRetryDelay: 200 * time.Millisecond,
}

// DatabaseConfig is the connection pool tuning.
var DatabaseConfig = struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	PingTimeout     time.Duration
}{
	MaxOpenConns:    25,
	MaxIdleConns:    5,
	ConnMaxLifetime: 5 * time.Minute,
	PingTimeout:     5 * time.Second,
}

// ServerTimeout is the ops HTTP server timeout set.
var ServerTimeout = struct {
	ReadHeader time.Duration
	Idle       time.Duration
	Shutdown   time.Duration
	Request    time.Duration
}{
	ReadHeader: 5 * time.Second,
	Idle:       60 * time.Second,
	Shutdown:   10 * time.Second,
	Request:    10 * time.Second,
}

// VerificationConfig bounds the content URL checks run before a piece of
// content is admitted into metrics tracking.
var VerificationConfig = struct {
	RequestTimeout time.Duration
	UserAgent      string
}{
	RequestTimeout: 15 * time.Second,
	UserAgent:      "Mozilla/5.0 (compatible; ContentBoostBot/1.0)",
}
