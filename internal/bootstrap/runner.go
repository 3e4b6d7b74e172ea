// Package bootstrap wires the daemon together: logging, storage clients, and
// the supervised task group that keeps every background loop under one
// signal-aware context.
package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"
)

// BackgroundTask: one supervised loop (scheduler, queue consumer, server).
type BackgroundTask struct {
	Name string
	Run  func(ctx context.Context) error
}

// RunTasks supervises every task under a signal-aware errgroup. The first
// task error (or SIGINT/SIGTERM) cancels the shared context; RunTasks
// returns after every task has wound down.
func RunTasks(ctx context.Context, logger *slog.Logger, tasks ...BackgroundTask) error {
	signalCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(signalCtx)
	for _, task := range tasks {
		t := task
		if t.Run == nil {
			continue
		}
		g.Go(func() error {
			logger.Info("task_start", "task", t.Name)
			if err := t.Run(gctx); err != nil {
				logger.Error("task_failed", "task", t.Name, "err", err)
				return fmt.Errorf("%s failed: %w", t.Name, err)
			}
			logger.Info("task_stopped", "task", t.Name)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return fmt.Errorf("run tasks failed: %w", err)
	}
	return nil
}
