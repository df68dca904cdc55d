package main

import (
	"context"
	"fmt"
	"time"

	"github.com/smallbiznis/paybridge/internal/config"
	"github.com/smallbiznis/paybridge/internal/migration"
	"github.com/smallbiznis/paybridge/internal/observability"
	"github.com/smallbiznis/paybridge/pkg/db"
	"github.com/spf13/cobra"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const commandTimeout = 30 * time.Second

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			var log *zap.Logger
			app := fx.New(
				fx.NopLogger,
				config.Module,
				observability.Module,
				db.Module,
				migration.Module,
				fx.Populate(&log),
			)
			if err := runOnce(cmd.Context(), app); err != nil {
				return fmt.Errorf("migrate: %w", err)
			}
			log.Info("migrations applied")
			return nil
		},
	}
}

// runOnce starts and stops app, for commands that do their work during
// construction or between the two.
func runOnce(ctx context.Context, app *fx.App, work ...func(context.Context) error) error {
	if err := app.Err(); err != nil {
		return err
	}
	if ctx == nil {
		ctx = context.Background()
	}
	startCtx, cancel := context.WithTimeout(ctx, commandTimeout)
	defer cancel()
	if err := app.Start(startCtx); err != nil {
		return err
	}

	var workErr error
	for _, fn := range work {
		if workErr = fn(startCtx); workErr != nil {
			break
		}
	}

	stopCtx, stopCancel := context.WithTimeout(context.Background(), commandTimeout)
	defer stopCancel()
	if err := app.Stop(stopCtx); err != nil && workErr == nil {
		return err
	}
	return workErr
}
