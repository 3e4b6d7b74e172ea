// Command manualpayout runs the settlement batch for one date from the
// command line, against the same stores the daemon uses. Intended for
// operators re-running a missed or corrected settlement day.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/rendoarsandi/content-boost-sub002/internal/bootstrap"
	"github.com/rendoarsandi/content-boost-sub002/internal/config"
	"github.com/rendoarsandi/content-boost-sub002/internal/lock"
	"github.com/rendoarsandi/content-boost-sub002/internal/metrics"
	"github.com/rendoarsandi/content-boost-sub002/internal/repository"
	"github.com/rendoarsandi/content-boost-sub002/internal/service/database"
	"github.com/rendoarsandi/content-boost-sub002/internal/service/notification"
	"github.com/rendoarsandi/content-boost-sub002/internal/service/payout"
)

func main() {
	dateFlag := flag.String("date", "", "settlement date, YYYY-MM-DD (default: yesterday)")
	flag.Parse()

	if err := run(*dateFlag); err != nil {
		fmt.Fprintf(os.Stderr, "manualpayout: %v\n", err)
		os.Exit(1)
	}
}

func run(dateArg string) error {
	config.LoadDotenvIfPresent()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger := bootstrap.NewLogger()

	location, err := cfg.Payout.Location()
	if err != nil {
		return err
	}
	date := time.Now().In(location).AddDate(0, 0, -1)
	if dateArg != "" {
		date, err = time.ParseInLocation("2006-01-02", dateArg, location)
		if err != nil {
			return fmt.Errorf("invalid -date, want YYYY-MM-DD: %w", err)
		}
	}

	ctx := context.Background()

	valkeyClient, closeValkey, err := bootstrap.NewAndPingValkeyClient(ctx, cfg.Valkey, logger)
	if err != nil {
		return fmt.Errorf("valkey: %w", err)
	}
	defer closeValkey()

	pg, err := database.NewPostgresService(cfg.Postgres, logger)
	if err != nil {
		return fmt.Errorf("postgres: %w", err)
	}
	defer pg.Close()

	repo := repository.New(pg.GORM(), pg.SQL())

	catalog, err := notification.LoadCatalog(cfg.Notification.TemplatePath)
	if err != nil {
		return fmt.Errorf("notification templates: %w", err)
	}
	dispatcher := notification.NewDispatcher(catalog, repo, nil, logger)

	coordinator, err := payout.NewCoordinator(
		payout.NewEngine(cfg.Payout),
		repo,
		lock.New(valkeyClient),
		dispatcher,
		cfg.Payout,
		metrics.New(),
		logger,
	)
	if err != nil {
		return fmt.Errorf("payout coordinator: %w", err)
	}

	batch, err := coordinator.ExecuteManualPayout(ctx, date)
	if err != nil {
		return err
	}

	fmt.Printf("batch %s for %s: status=%s jobs=%d completed=%d failed=%d total=Rp%d\n",
		batch.ID, batch.Date.Format("2006-01-02"), batch.Status,
		batch.TotalJobs, batch.CompletedJobs, batch.FailedJobs, batch.TotalAmount)
	for _, result := range batch.Results {
		if result.Error != "" {
			fmt.Printf("  FAILED %s/%s: %s\n", result.PromoterID, result.CampaignID, result.Error)
			continue
		}
		if result.Payout != nil {
			fmt.Printf("  %s/%s: views=%d legit=%d net=Rp%d warnings=%d\n",
				result.PromoterID, result.CampaignID,
				result.Payout.TotalViews, result.Payout.LegitimateViews,
				result.Payout.NetAmount, len(result.Payout.Warnings))
		}
	}
	return nil
}
