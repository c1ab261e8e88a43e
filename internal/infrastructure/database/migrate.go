package database

import (
	"fmt"

	"github.com/wekeepgrowing/semo-backend-monorepo/billing-sync/internal/domain/model"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Migrate runs database migrations
func Migrate(db *gorm.DB, logger *zap.Logger) error {
	logger.Info("Running database migrations...")

	if err := createCustomTypes(db); err != nil {
		logger.Error("Failed to create custom types", zap.Error(err))
		return err
	}

	err := db.AutoMigrate(
		&model.Account{},
		&model.ActivityRecord{},
		&model.StripeWebhookEvent{},
	)
	if err != nil {
		logger.Error("Failed to run migrations", zap.Error(err))
		return err
	}

	if err := createCustomIndexes(db); err != nil {
		logger.Error("Failed to create custom indexes", zap.Error(err))
		return err
	}

	logger.Info("Database migrations completed successfully")
	return nil
}

func createCustomTypes(db *gorm.DB) error {
	var exists bool
	if err := db.Raw(`SELECT EXISTS (SELECT 1 FROM pg_type WHERE typname = 'webhook_status')`).Scan(&exists).Error; err != nil {
		return fmt.Errorf("failed to check webhook_status type: %w", err)
	}
	if exists {
		return nil
	}
	return db.Exec(fmt.Sprintf(`CREATE TYPE webhook_status AS ENUM ('%s', '%s', '%s', '%s')`,
		model.WebhookStatusPending,
		model.WebhookStatusProcessing,
		model.WebhookStatusCompleted,
		model.WebhookStatusFailed,
	)).Error
}

// createCustomIndexes creates the partial indexes GORM tags cannot express
func createCustomIndexes(db *gorm.DB) error {
	// replay scan
	if err := db.Exec(`CREATE INDEX IF NOT EXISTS idx_webhook_events_retry ON stripe_webhook_events (next_retry_at) WHERE status = 'failed'`).Error; err != nil {
		return err
	}

	if err := db.Exec(`CREATE INDEX IF NOT EXISTS idx_activity_records_account_timestamp ON activity_records (account_id, timestamp DESC) WHERE account_id IS NOT NULL`).Error; err != nil {
		return err
	}

	return nil
}
