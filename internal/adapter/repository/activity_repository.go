package repository

import (
	"context"
	"fmt"

	"github.com/wekeepgrowing/semo-backend-monorepo/billing-sync/internal/domain/entity"
	"github.com/wekeepgrowing/semo-backend-monorepo/billing-sync/internal/domain/model"
	"github.com/wekeepgrowing/semo-backend-monorepo/billing-sync/internal/domain/repository"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	defaultActivityLimit = 50
	maxActivityLimit     = 500
)

type activityRepository struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewActivityRepository creates a new activity repository
func NewActivityRepository(db *gorm.DB, logger *zap.Logger) repository.ActivityRepository {
	return &activityRepository{
		db:     db,
		logger: logger,
	}
}

// Append inserts one audit record. Records are never updated.
func (r *activityRepository) Append(ctx context.Context, record *entity.ActivityRecord) error {
	if err := r.db.WithContext(ctx).Create(model.NewActivityRecord(record)).Error; err != nil {
		r.logger.Error("Failed to append activity record",
			zap.String("event_id", record.EventID),
			zap.String("type", record.Type),
			zap.Error(err))
		return fmt.Errorf("failed to append activity record: %w", err)
	}
	return nil
}

// List returns records matching the filter, newest first
func (r *activityRepository) List(ctx context.Context, filter entity.ActivityFilter) ([]*entity.ActivityRecord, error) {
	query := r.db.WithContext(ctx).Model(&model.ActivityRecord{})

	if filter.Type != "" {
		query = query.Where("type = ?", filter.Type)
	}
	if filter.AccountID != "" {
		query = query.Where("account_id = ?", filter.AccountID)
	}
	if !filter.Since.IsZero() {
		query = query.Where("timestamp >= ?", filter.Since)
	}
	if !filter.Until.IsZero() {
		query = query.Where("timestamp < ?", filter.Until)
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = defaultActivityLimit
	}
	if limit > maxActivityLimit {
		limit = maxActivityLimit
	}

	var rows []model.ActivityRecord
	if err := query.Order("timestamp DESC").Limit(limit).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list activity records: %w", err)
	}

	records := make([]*entity.ActivityRecord, 0, len(rows))
	for i := range rows {
		records = append(records, rows[i].ToEntity())
	}
	return records, nil
}
