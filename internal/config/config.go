// Package config assembles the daemon's runtime configuration from the
// environment. Every recognized option has a default; Load fails only on
// values that cannot be parsed or that make no operational sense.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/rendoarsandi/content-boost-sub002/internal/constants"
)

// Config: the full settlement daemon configuration.
type Config struct {
	Valkey       ValkeyConfig
	Postgres     PostgresConfig
	Server       ServerConfig
	Log          LogConfig
	Telemetry    TelemetryConfig
	OAuth        OAuthConfig
	SocialAPI    SocialAPIConfig
	Fraud        FraudConfig
	Payout       PayoutConfig
	Ingest       IngestConfig
	Payment      PaymentConfig
	Notification NotificationConfig
	Version      string
}

// ValkeyConfig: shared key-value store connection settings.
type ValkeyConfig struct {
	Addr        string
	Username    string
	Password    string
	DB          int
	DialTimeout time.Duration
	UseTLS      bool
}

// PostgresConfig: relational store connection settings.
type PostgresConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
}

// DSN renders the lib/pq connection string.
func (c PostgresConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode)
}

// ServerConfig: the ops HTTP server surface.
type ServerConfig struct {
	Host              string
	Port              int
	APIKey            string
	AdminUser         string
	AdminPasswordHash string // bcrypt hash; empty disables admin routes
	CORSOrigins       []string
}

// Addr returns host:port.
func (c ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// LogConfig: file logging settings. An empty Dir keeps logging on stdout only.
type LogConfig struct {
	Dir        string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

// TelemetryConfig: OTLP tracing settings.
type TelemetryConfig struct {
	Enabled      bool
	Endpoint     string
	SamplerRatio float64
	Insecure     bool
}

// PlatformOAuth: one platform's OAuth refresh endpoint and app credential.
type PlatformOAuth struct {
	TokenURL     string
	ClientID     string
	ClientSecret string
}

// OAuthConfig: per-platform OAuth settings for token refresh.
type OAuthConfig struct {
	TikTok    PlatformOAuth
	Instagram PlatformOAuth
}

// SocialAPIConfig: read-API base URLs per platform. Overridable so tests and
// sandboxes can point at fakes.
type SocialAPIConfig struct {
	TikTokBaseURL    string
	InstagramBaseURL string
	RequestTimeout   time.Duration
	MaxRetries       int
}

// FraudConfig: detection thresholds and whether recommended actions are
// applied automatically.
type FraudConfig struct {
	ViewLikeRatioMax    float64
	ViewCommentRatioMax float64
	SpikeWindow         time.Duration
	SpikeThresholdPct   float64
	EnableAutoActions   bool
}

// PayoutConfig: settlement economics and schedule.
type PayoutConfig struct {
	PlatformFeePercent float64
	MinPayoutAmount    int64
	Timezone           string
	BotRatioAlert      float64
	Concurrency        int
}

// Location resolves the settlement timezone.
func (c PayoutConfig) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid settlement timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}

// IngestConfig: metrics collection loop settings.
type IngestConfig struct {
	Interval        time.Duration
	MaxRetries      int
	RetryDelay      time.Duration
	DuplicateWindow time.Duration
	QueueConsumer   string // consumer name within the group
}

// PaymentConfig: gateway settings.
type PaymentConfig struct {
	Gateway        string // "sandbox" or "http"
	GatewayBaseURL string
	GatewayAPIKey  string
	MaxRetries     int
	BaseDelay      time.Duration
	MaxDelay       time.Duration
	Concurrency    int
	MaxStatusPolls int
	PollInterval   time.Duration
}

// NotificationConfig: dispatcher settings.
type NotificationConfig struct {
	// TemplatePath optionally overrides the embedded template catalog.
	TemplatePath string
}

// Load reads the full configuration from the environment.
func Load() (*Config, error) {
	valkeyCfg, err := loadValkey()
	if err != nil {
		return nil, err
	}
	postgresCfg, err := loadPostgres()
	if err != nil {
		return nil, err
	}
	serverCfg, err := loadServer()
	if err != nil {
		return nil, err
	}
	logCfg, err := loadLog()
	if err != nil {
		return nil, err
	}
	telemetryCfg, err := loadTelemetry()
	if err != nil {
		return nil, err
	}
	socialCfg, err := loadSocialAPI()
	if err != nil {
		return nil, err
	}
	fraudCfg, err := loadFraud()
	if err != nil {
		return nil, err
	}
	payoutCfg, err := loadPayout()
	if err != nil {
		return nil, err
	}
	ingestCfg, err := loadIngest()
	if err != nil {
		return nil, err
	}
	paymentCfg, err := loadPayment()
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Valkey:    valkeyCfg,
		Postgres:  postgresCfg,
		Server:    serverCfg,
		Log:       logCfg,
		Telemetry: telemetryCfg,
		OAuth: OAuthConfig{
			TikTok: PlatformOAuth{
				TokenURL:     StringFromEnv("TIKTOK_TOKEN_URL", "https://open.tiktokapis.com/v2/oauth/token/"),
				ClientID:     StringFromEnv("TIKTOK_CLIENT_ID", ""),
				ClientSecret: StringFromEnv("TIKTOK_CLIENT_SECRET", ""),
			},
			Instagram: PlatformOAuth{
				TokenURL:     StringFromEnv("INSTAGRAM_TOKEN_URL", "https://graph.instagram.com/refresh_access_token"),
				ClientID:     StringFromEnv("INSTAGRAM_CLIENT_ID", ""),
				ClientSecret: StringFromEnv("INSTAGRAM_CLIENT_SECRET", ""),
			},
		},
		SocialAPI: socialCfg,
		Fraud:     fraudCfg,
		Payout:    payoutCfg,
		Ingest:    ingestCfg,
		Payment:   paymentCfg,
		Notification: NotificationConfig{
			TemplatePath: StringFromEnv("NOTIFICATION_TEMPLATE_PATH", ""),
		},
		Version: StringFromEnv("APP_VERSION", "dev"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks cross-field consistency.
func (c *Config) Validate() error {
	if c.Payout.PlatformFeePercent < 0 || c.Payout.PlatformFeePercent >= 100 {
		return fmt.Errorf("invalid PLATFORM_FEE_PERCENT: %v", c.Payout.PlatformFeePercent)
	}
	if c.Payout.MinPayoutAmount < 0 {
		return fmt.Errorf("invalid MIN_PAYOUT_AMOUNT: %d", c.Payout.MinPayoutAmount)
	}
	if _, err := c.Payout.Location(); err != nil {
		return err
	}
	if c.Payment.Gateway != "sandbox" && c.Payment.Gateway != "http" {
		return fmt.Errorf("invalid PAYMENT_GATEWAY: %q", c.Payment.Gateway)
	}
	if c.Payment.Gateway == "http" && strings.TrimSpace(c.Payment.GatewayBaseURL) == "" {
		return fmt.Errorf("PAYMENT_GATEWAY_BASE_URL required for http gateway")
	}
	return nil
}

func loadValkey() (ValkeyConfig, error) {
	db, err := IntFromEnv("VALKEY_DB", 0)
	if err != nil {
		return ValkeyConfig{}, err
	}
	dialTimeout, err := DurationSecondsFromEnv("VALKEY_DIAL_TIMEOUT_SECONDS", 10)
	if err != nil {
		return ValkeyConfig{}, err
	}
	useTLS, err := BoolFromEnv("VALKEY_USE_TLS", false)
	if err != nil {
		return ValkeyConfig{}, err
	}
	return ValkeyConfig{
		Addr:        StringFromEnvFirstNonEmpty([]string{"VALKEY_ADDR", "REDIS_ADDR"}, "localhost:6379"),
		Username:    StringFromEnv("VALKEY_USERNAME", ""),
		Password:    StringFromEnvFirstNonEmpty([]string{"VALKEY_PASSWORD", "REDIS_PASSWORD"}, ""),
		DB:          db,
		DialTimeout: dialTimeout,
		UseTLS:      useTLS,
	}, nil
}

func loadPostgres() (PostgresConfig, error) {
	port, err := IntFromEnv("POSTGRES_PORT", 5432)
	if err != nil {
		return PostgresConfig{}, err
	}
	return PostgresConfig{
		Host:     StringFromEnv("POSTGRES_HOST", "localhost"),
		Port:     port,
		User:     StringFromEnv("POSTGRES_USER", "contentboost"),
		Password: StringFromEnv("POSTGRES_PASSWORD", ""),
		Database: StringFromEnv("POSTGRES_DB", "contentboost"),
		SSLMode:  StringFromEnv("POSTGRES_SSLMODE", "disable"),
	}, nil
}

func loadServer() (ServerConfig, error) {
	port, err := IntFromEnv("SERVER_PORT", 8091)
	if err != nil {
		return ServerConfig{}, err
	}
	var origins []string
	for _, o := range strings.Split(StringFromEnv("CORS_ORIGINS", ""), ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	return ServerConfig{
		Host:              StringFromEnv("SERVER_HOST", "0.0.0.0"),
		Port:              port,
		APIKey:            StringFromEnv("HTTP_API_KEY", ""),
		AdminUser:         StringFromEnv("ADMIN_USER", "admin"),
		AdminPasswordHash: StringFromEnv("ADMIN_PASSWORD_HASH", ""),
		CORSOrigins:       origins,
	}, nil
}

func loadLog() (LogConfig, error) {
	dir := StringFromEnv("LOG_DIR", "")
	if strings.TrimSpace(dir) == "" {
		return LogConfig{}, nil
	}
	maxSize, err := IntFromEnv("LOG_FILE_MAX_SIZE_MB", 10)
	if err != nil {
		return LogConfig{}, err
	}
	maxBackups, err := IntFromEnv("LOG_FILE_MAX_BACKUPS", 5)
	if err != nil {
		return LogConfig{}, err
	}
	maxAge, err := IntFromEnv("LOG_FILE_MAX_AGE_DAYS", 14)
	if err != nil {
		return LogConfig{}, err
	}
	compress, err := BoolFromEnv("LOG_FILE_COMPRESS", true)
	if err != nil {
		return LogConfig{}, err
	}
	return LogConfig{
		Dir:        dir,
		MaxSizeMB:  maxSize,
		MaxBackups: maxBackups,
		MaxAgeDays: maxAge,
		Compress:   compress,
	}, nil
}

func loadTelemetry() (TelemetryConfig, error) {
	enabled, err := BoolFromEnv("OTEL_ENABLED", false)
	if err != nil {
		return TelemetryConfig{}, err
	}
	ratio, err := Float64FromEnv("OTEL_SAMPLER_RATIO", 1.0)
	if err != nil {
		return TelemetryConfig{}, err
	}
	insecure, err := BoolFromEnv("OTEL_INSECURE", true)
	if err != nil {
		return TelemetryConfig{}, err
	}
	return TelemetryConfig{
		Enabled:      enabled,
		Endpoint:     StringFromEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
		SamplerRatio: ratio,
		Insecure:     insecure,
	}, nil
}

func loadSocialAPI() (SocialAPIConfig, error) {
	timeout, err := DurationSecondsFromEnv("SOCIAL_API_TIMEOUT_SECONDS", 15)
	if err != nil {
		return SocialAPIConfig{}, err
	}
	maxRetries, err := IntFromEnv("SOCIAL_API_MAX_RETRIES", constants.RetryConfig.MaxAttempts)
	if err != nil {
		return SocialAPIConfig{}, err
	}
	return SocialAPIConfig{
		TikTokBaseURL:    StringFromEnv("TIKTOK_API_BASE_URL", "https://open.tiktokapis.com"),
		InstagramBaseURL: StringFromEnv("INSTAGRAM_API_BASE_URL", "https://graph.instagram.com"),
		RequestTimeout:   timeout,
		MaxRetries:       maxRetries,
	}, nil
}

func loadFraud() (FraudConfig, error) {
	viewLike, err := Float64FromEnv("FRAUD_VIEW_LIKE_RATIO_MAX", constants.FraudConfig.ViewLikeRatioMax)
	if err != nil {
		return FraudConfig{}, err
	}
	viewComment, err := Float64FromEnv("FRAUD_VIEW_COMMENT_RATIO_MAX", constants.FraudConfig.ViewCommentRatioMax)
	if err != nil {
		return FraudConfig{}, err
	}
	spikeWindow, err := DurationSecondsFromEnv("FRAUD_SPIKE_WINDOW_SECONDS", int64(constants.FraudConfig.SpikeWindow.Seconds()))
	if err != nil {
		return FraudConfig{}, err
	}
	spikePct, err := Float64FromEnv("FRAUD_SPIKE_THRESHOLD_PCT", constants.FraudConfig.SpikeThresholdPct)
	if err != nil {
		return FraudConfig{}, err
	}
	autoActions, err := BoolFromEnv("FRAUD_AUTO_ACTIONS_ENABLED", true)
	if err != nil {
		return FraudConfig{}, err
	}
	return FraudConfig{
		ViewLikeRatioMax:    viewLike,
		ViewCommentRatioMax: viewComment,
		SpikeWindow:         spikeWindow,
		SpikeThresholdPct:   spikePct,
		EnableAutoActions:   autoActions,
	}, nil
}

func loadPayout() (PayoutConfig, error) {
	fee, err := Float64FromEnv("PLATFORM_FEE_PERCENT", constants.PayoutConfig.PlatformFeePercent)
	if err != nil {
		return PayoutConfig{}, err
	}
	minAmount, err := Int64FromEnv("MIN_PAYOUT_AMOUNT", constants.PayoutConfig.MinAmount)
	if err != nil {
		return PayoutConfig{}, err
	}
	botAlert, err := Float64FromEnv("PAYOUT_BOT_RATIO_ALERT", constants.PayoutConfig.BotRatioAlert)
	if err != nil {
		return PayoutConfig{}, err
	}
	concurrency, err := IntFromEnv("PAYOUT_CONCURRENCY", constants.PaymentConfig.DefaultConcurrency)
	if err != nil {
		return PayoutConfig{}, err
	}
	return PayoutConfig{
		PlatformFeePercent: fee,
		MinPayoutAmount:    minAmount,
		Timezone:           StringFromEnv("SETTLEMENT_TIMEZONE", constants.PayoutConfig.Timezone),
		BotRatioAlert:      botAlert,
		Concurrency:        concurrency,
	}, nil
}

func loadIngest() (IngestConfig, error) {
	interval, err := DurationSecondsFromEnv("INGEST_INTERVAL_SECONDS", int64(constants.IngestConfig.Interval.Seconds()))
	if err != nil {
		return IngestConfig{}, err
	}
	maxRetries, err := IntFromEnv("INGEST_MAX_RETRIES", constants.IngestConfig.MaxRetries)
	if err != nil {
		return IngestConfig{}, err
	}
	retryDelay, err := DurationSecondsFromEnv("INGEST_RETRY_DELAY_SECONDS", int64(constants.IngestConfig.RetryDelay.Seconds()))
	if err != nil {
		return IngestConfig{}, err
	}
	dupWindow, err := DurationSecondsFromEnv("INGEST_DUPLICATE_WINDOW_SECONDS", int64(constants.IngestConfig.DuplicateWindow.Seconds()))
	if err != nil {
		return IngestConfig{}, err
	}
	return IngestConfig{
		Interval:        interval,
		MaxRetries:      maxRetries,
		RetryDelay:      retryDelay,
		DuplicateWindow: dupWindow,
		QueueConsumer:   StringFromEnv("INGEST_CONSUMER_NAME", "settlementd-1"),
	}, nil
}

func loadPayment() (PaymentConfig, error) {
	maxRetries, err := IntFromEnv("PAYMENT_MAX_RETRIES", constants.RetryConfig.MaxAttempts)
	if err != nil {
		return PaymentConfig{}, err
	}
	baseDelay, err := DurationMillisFromEnv("PAYMENT_RETRY_BASE_DELAY_MS", constants.RetryConfig.BaseDelay.Milliseconds())
	if err != nil {
		return PaymentConfig{}, err
	}
	maxDelay, err := DurationMillisFromEnv("PAYMENT_RETRY_MAX_DELAY_MS", constants.RetryConfig.MaxDelay.Milliseconds())
	if err != nil {
		return PaymentConfig{}, err
	}
	concurrency, err := IntFromEnv("PAYMENT_CONCURRENCY", constants.PaymentConfig.DefaultConcurrency)
	if err != nil {
		return PaymentConfig{}, err
	}
	maxPolls, err := IntFromEnv("PAYMENT_MAX_STATUS_POLLS", constants.PaymentConfig.MaxStatusPolls)
	if err != nil {
		return PaymentConfig{}, err
	}
	pollInterval, err := DurationMillisFromEnv("PAYMENT_POLL_INTERVAL_MS", constants.PaymentConfig.PollInterval.Milliseconds())
	if err != nil {
		return PaymentConfig{}, err
	}
	return PaymentConfig{
		Gateway:        StringFromEnv("PAYMENT_GATEWAY", "sandbox"),
		GatewayBaseURL: StringFromEnv("PAYMENT_GATEWAY_BASE_URL", ""),
		GatewayAPIKey:  StringFromEnv("PAYMENT_GATEWAY_API_KEY", ""),
		MaxRetries:     maxRetries,
		BaseDelay:      baseDelay,
		MaxDelay:       maxDelay,
		Concurrency:    concurrency,
		MaxStatusPolls: maxPolls,
		PollInterval:   pollInterval,
	}, nil
}
