package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/wekeepgrowing/semo-backend-monorepo/billing-sync/internal/config"
	"github.com/wekeepgrowing/semo-backend-monorepo/billing-sync/internal/domain/entity"
	"github.com/wekeepgrowing/semo-backend-monorepo/billing-sync/internal/usecase/billing"
	"github.com/wekeepgrowing/semo-backend-monorepo/billing-sync/pkg/messaging"
)

func newTailCmd() *cobra.Command {
	var (
		accountID string
		asJSON    bool
	)

	cmd := &cobra.Command{
		Use:   "tail",
		Short: "Follow activity records as they are published",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig()
			if err != nil {
				return err
			}
			if !cfg.Redis.Enabled() {
				return fmt.Errorf("redis is not configured")
			}

			client, err := messaging.NewRedisClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
			if err != nil {
				return err
			}
			defer client.Close()

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			channel := billing.ActivityChannel
			if accountID != "" {
				channel = billing.AccountActivityChannel(accountID)
			}

			messages, err := client.Subscribe(ctx, channel)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "Following %s\n", channel)

			for msg := range messages {
				var record entity.ActivityRecord
				if err := json.Unmarshal(msg.Payload, &record); err != nil {
					fmt.Fprintf(cmd.ErrOrStderr(), "skipping malformed message: %v\n", err)
					continue
				}
				if err := printRecord(cmd.OutOrStdout(), &record, asJSON); err != nil {
					return err
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&accountID, "account", "", "only follow one account")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print records as JSON lines")
	return cmd
}
