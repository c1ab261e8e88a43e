package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/wekeepgrowing/semo-backend-monorepo/billing-sync/internal/config"
	"github.com/wekeepgrowing/semo-backend-monorepo/billing-sync/internal/domain/entity"
	"github.com/wekeepgrowing/semo-backend-monorepo/billing-sync/internal/infrastructure/database"
	pkglogger "github.com/wekeepgrowing/semo-backend-monorepo/billing-sync/pkg/logger"
	"go.uber.org/zap"
)

func newActivitiesCmd() *cobra.Command {
	var (
		filter entity.ActivityFilter
		since  time.Duration
		asJSON bool
	)

	cmd := &cobra.Command{
		Use:   "activities",
		Short: "List stored activity records, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig()
			if err != nil {
				return err
			}

			logger, err := pkglogger.NewZapLogger(pkglogger.Config{Level: "error", Format: "console", Output: "stderr"})
			if err != nil {
				return err
			}
			defer logger.Sync()

			db, err := database.NewConnection(&cfg.Database, false, logger)
			if err != nil {
				return err
			}
			defer func() {
				if err := database.Close(db, logger); err != nil {
					logger.Error("Failed to close database connection", zap.Error(err))
				}
			}()

			if since > 0 {
				filter.Since = time.Now().Add(-since)
			}

			repos := database.NewRepositories(db, logger)
			records, err := repos.Activity.List(cmd.Context(), filter)
			if err != nil {
				return fmt.Errorf("failed to list activities: %w", err)
			}

			for _, record := range records {
				if err := printRecord(cmd.OutOrStdout(), record, asJSON); err != nil {
					return err
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&filter.Type, "type", "", "activity type, e.g. billing.invoice.paid")
	cmd.Flags().StringVar(&filter.AccountID, "account", "", "account id")
	cmd.Flags().IntVar(&filter.Limit, "limit", 50, "maximum records to print")
	cmd.Flags().DurationVar(&since, "since", 0, "only records newer than this, e.g. 24h")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print records as JSON lines")
	return cmd
}
