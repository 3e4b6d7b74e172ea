package bootstrap

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/valkey-io/valkey-go"

	"github.com/rendoarsandi/content-boost-sub002/internal/config"
	"github.com/rendoarsandi/content-boost-sub002/internal/valkeyx"
)

// NewAndPingValkeyClient creates the shared Valkey client and verifies
// connectivity before anything depends on it.
func NewAndPingValkeyClient(ctx context.Context, cfg config.ValkeyConfig, logger *slog.Logger) (valkey.Client, func(), error) {
	client, err := valkeyx.NewClient(valkeyx.Config{
		Addr:        cfg.Addr,
		Username:    cfg.Username,
		Password:    cfg.Password,
		DB:          cfg.DB,
		DialTimeout: cfg.DialTimeout,
		UseTLS:      cfg.UseTLS,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("create valkey client failed: %w", err)
	}

	closeFn := func() {
		client.Close()
		logger.Debug("valkey_client_closed")
	}

	if pingErr := valkeyx.Ping(ctx, client); pingErr != nil {
		closeFn()
		return nil, nil, fmt.Errorf("valkey ping failed: %w", pingErr)
	}
	return client, closeFn, nil
}
