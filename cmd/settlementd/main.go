// Command settlementd runs the content-boost settlement pipeline: metrics
// ingestion from social platforms, fraud scoring, daily payout settlement,
// payment execution, and the ops HTTP surface — all in one supervised
// process.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/rendoarsandi/content-boost-sub002/internal/bootstrap"
	"github.com/rendoarsandi/content-boost-sub002/internal/config"
	"github.com/rendoarsandi/content-boost-sub002/internal/constants"
	"github.com/rendoarsandi/content-boost-sub002/internal/domain"
	"github.com/rendoarsandi/content-boost-sub002/internal/lock"
	"github.com/rendoarsandi/content-boost-sub002/internal/metrics"
	"github.com/rendoarsandi/content-boost-sub002/internal/queue"
	"github.com/rendoarsandi/content-boost-sub002/internal/ratelimit"
	"github.com/rendoarsandi/content-boost-sub002/internal/repository"
	"github.com/rendoarsandi/content-boost-sub002/internal/scheduler"
	"github.com/rendoarsandi/content-boost-sub002/internal/server"
	"github.com/rendoarsandi/content-boost-sub002/internal/service/credentials"
	"github.com/rendoarsandi/content-boost-sub002/internal/service/database"
	"github.com/rendoarsandi/content-boost-sub002/internal/service/fraud"
	"github.com/rendoarsandi/content-boost-sub002/internal/service/ingest"
	"github.com/rendoarsandi/content-boost-sub002/internal/service/notification"
	"github.com/rendoarsandi/content-boost-sub002/internal/service/payment"
	"github.com/rendoarsandi/content-boost-sub002/internal/service/payout"
	"github.com/rendoarsandi/content-boost-sub002/internal/service/socialclient"
	"github.com/rendoarsandi/content-boost-sub002/internal/service/verification"
	"github.com/rendoarsandi/content-boost-sub002/internal/telemetry"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "settlementd: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	config.LoadDotenvIfPresent()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger := bootstrap.NewLogger()
	if fileLogger, logErr := bootstrap.EnableFileLogging(cfg.Log, "settlementd.log", cfg.Telemetry.Enabled); logErr != nil {
		return fmt.Errorf("enable file logging: %w", logErr)
	} else if fileLogger != nil {
		logger = fileLogger
	}
	slog.SetDefault(logger)

	logger.Info("settlementd_starting", "version", cfg.Version)

	ctx := context.Background()

	shutdownTelemetry, err := telemetry.Setup(ctx, telemetry.Config{
		Enabled:      cfg.Telemetry.Enabled,
		Endpoint:     cfg.Telemetry.Endpoint,
		ServiceName:  "settlementd",
		SamplerRatio: cfg.Telemetry.SamplerRatio,
		Insecure:     cfg.Telemetry.Insecure,
	}, logger)
	if err != nil {
		return fmt.Errorf("telemetry setup: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTelemetry(shutdownCtx); err != nil {
			logger.Warn("telemetry_shutdown_failed", "err", err)
		}
	}()

	valkeyClient, closeValkey, err := bootstrap.NewAndPingValkeyClient(ctx, cfg.Valkey, logger)
	if err != nil {
		return fmt.Errorf("valkey: %w", err)
	}
	defer closeValkey()

	pg, err := database.NewPostgresService(cfg.Postgres, logger)
	if err != nil {
		return fmt.Errorf("postgres: %w", err)
	}
	defer func() {
		if err := pg.Close(); err != nil {
			logger.Warn("postgres_close_failed", "err", err)
		}
	}()

	repo := repository.New(pg.GORM(), pg.SQL())
	if err := repo.AutoMigrate(ctx); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}

	m := metrics.New()
	locker := lock.New(valkeyClient)

	// Credentials: Valkey-backed token store with lock-guarded OAuth refresh.
	creds := credentials.NewManager(
		credentials.NewStore(valkeyClient),
		locker,
		credentials.NewOAuthRefresher(cfg.OAuth),
		m,
		logger,
	)

	social := socialclient.New(cfg.SocialAPI, ratelimit.New(valkeyClient), m, logger)
	fraudEngine := fraud.New(cfg.Fraud)

	catalog, err := notification.LoadCatalog(cfg.Notification.TemplatePath)
	if err != nil {
		return fmt.Errorf("notification templates: %w", err)
	}
	dispatcher := notification.NewDispatcher(catalog, repo, nil, logger)

	jobs := queue.NewStreamQueue(valkeyClient, logger, queue.StreamConfig{
		Stream:        constants.QueueConfig.Stream,
		Group:         constants.QueueConfig.Group,
		Name:          cfg.Ingest.QueueConsumer,
		ReadCount:     constants.QueueConfig.ReadCount,
		Block:         constants.QueueConfig.BlockTimeout,
		Concurrency:   constants.QueueConfig.Concurrency,
		MaxLen:        constants.QueueConfig.MaxLen,
		AckMaxRetries: constants.QueueConfig.AckMaxRetries,
		AckRetryDelay: constants.QueueConfig.AckRetryDelay,
	})

	worker := ingest.NewWorker(repo, creds, social, fraudEngine, dispatcher, jobs, cfg.Ingest, cfg.Fraud, m, logger)
	tracker := ingest.NewTracker(repo, jobs, logger)
	registrar := ingest.NewRegistrar(repo, verification.New(), logger)

	payoutEngine := payout.NewEngine(cfg.Payout)
	coordinator, err := payout.NewCoordinator(payoutEngine, repo, locker, dispatcher, cfg.Payout, m, logger)
	if err != nil {
		return fmt.Errorf("payout coordinator: %w", err)
	}

	var gateway payment.GatewayProvider
	switch cfg.Payment.Gateway {
	case "http":
		gateway = payment.NewHTTPGateway(cfg.Payment.GatewayBaseURL, cfg.Payment.GatewayAPIKey, 0)
	default:
		gateway = payment.NewSandboxGateway(1)
	}
	processor := payment.NewProcessor(gateway, repo, dispatcher, cfg.Payment, m, logger)

	location, err := cfg.Payout.Location()
	if err != nil {
		return err
	}
	opsServer := server.New(cfg.Server, repo, coordinator, registrar, m, location, cfg.Version, logger)

	settleAndPay := func(ctx context.Context, date time.Time) error {
		batch, err := coordinator.RunDailyBatch(ctx, date)
		if err != nil {
			if errors.Is(err, payout.ErrBatchInProgress) {
				logger.Warn("settlement_skipped_in_progress", "date", date.Format("2006-01-02"))
				return nil
			}
			return err
		}
		return executePayments(ctx, processor, batch, cfg.Payout.MinPayoutAmount, logger)
	}

	daily := scheduler.NewDailyJob(
		constants.PayoutConfig.SettlementHour,
		constants.PayoutConfig.SettlementMinute,
		location,
		logger,
	)

	return bootstrap.RunTasks(ctx, logger,
		bootstrap.BackgroundTask{
			Name: "queue-consumer",
			Run:  worker.Run,
		},
		bootstrap.BackgroundTask{
			Name: "ingest-scheduler",
			Run: func(ctx context.Context) error {
				return scheduler.IngestLoop(ctx, cfg.Ingest.Interval, logger, tracker.EnqueueDue)
			},
		},
		bootstrap.BackgroundTask{
			Name: "daily-settlement",
			Run: func(ctx context.Context) error {
				return daily.Run(ctx, settleAndPay)
			},
		},
		bootstrap.BackgroundTask{
			Name: "ops-server",
			Run: func(ctx context.Context) error {
				return serveHTTP(ctx, opsServer.HTTPServer(), logger)
			},
		},
	)
}

// executePayments turns a settled batch into gateway transfers. Payouts below
// the minimum are skipped and carry forward unpaid.
func executePayments(ctx context.Context, processor *payment.Processor, batch *domain.PayoutBatch, minAmount int64, logger *slog.Logger) error {
	var requests []domain.PaymentRequest
	for _, result := range batch.Results {
		if result.Payout == nil {
			continue
		}
		calc := *result.Payout
		if calc.BelowMinimum(minAmount) {
			logger.Info("payout_carried_forward",
				"promoter_id", calc.PromoterID, "campaign_id", calc.CampaignID, "net_amount", calc.NetAmount)
			continue
		}
		requests = append(requests, domain.PaymentRequest{
			PayoutID:    calc.ID,
			RecipientID: calc.PromoterID,
			Amount:      calc.NetAmount,
			Currency:    "IDR",
			Reference:   calc.CampaignID,
		})
	}
	if len(requests) == 0 {
		return nil
	}

	results, err := processor.ProcessBatch(ctx, requests)
	if err != nil {
		return fmt.Errorf("payment batch: %w", err)
	}
	completed := 0
	for _, r := range results {
		if r.Status == domain.PaymentCompleted {
			completed++
		}
	}
	logger.Info("payment_batch_finished",
		"batch_id", batch.ID,
		"requested", len(requests),
		"completed", completed,
	)
	return nil
}

// serveHTTP runs the ops server until ctx is cancelled, then drains it.
func serveHTTP(ctx context.Context, srv *http.Server, logger *slog.Logger) error {
	errCh := make(chan error, 1)
	go func() {
		logger.Info("ops_server_listening", "addr", srv.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), constants.ServerTimeout.Shutdown)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown: %w", err)
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
