package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/wekeepgrowing/semo-backend-monorepo/billing-sync/internal/domain/entity"
	domainErrors "github.com/wekeepgrowing/semo-backend-monorepo/billing-sync/internal/domain/errors"
	"github.com/wekeepgrowing/semo-backend-monorepo/billing-sync/internal/domain/model"
	"github.com/wekeepgrowing/semo-backend-monorepo/billing-sync/internal/domain/repository"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type accountRepository struct {
	db     *gorm.DB
	logger *zap.Logger
	now    func() time.Time
}

// NewAccountRepository creates a new account repository
func NewAccountRepository(db *gorm.DB, logger *zap.Logger) repository.AccountRepository {
	return &accountRepository{
		db:     db,
		logger: logger,
		now:    time.Now,
	}
}

// GetAccount retrieves an account by id
func (r *accountRepository) GetAccount(ctx context.Context, accountID string) (*entity.Account, error) {
	var account model.Account

	err := r.db.WithContext(ctx).
		Where("account_id = ?", accountID).
		First(&account).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domainErrors.ErrAccountNotFound
		}
		return nil, fmt.Errorf("failed to get account: %w", err)
	}

	return account.ToEntity(), nil
}

// UpdateAccount writes only the columns named by the field set, together with
// updated_at and version, in a single UPDATE. When the set carries a guard the
// write only applies if no newer event of the same family has been applied.
func (r *accountRepository) UpdateAccount(ctx context.Context, accountID string, fields *entity.FieldSet) error {
	if err := fields.Validate(); err != nil {
		return fmt.Errorf("invalid field set: %w", err)
	}

	updates := map[string]interface{}{
		"updated_at": r.now(),
		"version":    gorm.Expr("version + 1"),
	}
	for field, value := range fields.Set {
		updates[model.BillingColumns[field]] = value
	}
	for _, field := range fields.Unset {
		updates[model.BillingColumns[field]] = gorm.Expr("NULL")
	}

	query := r.db.WithContext(ctx).
		Model(&model.Account{}).
		Where("account_id = ?", accountID)

	if guard := fields.Guard; guard != nil {
		column := model.FamilyEventColumns[guard.Family]
		query = query.Where(fmt.Sprintf("(%s IS NULL OR %s <= ?)", column, column), guard.EventAt)
		updates[column] = guard.EventAt
	}

	result := query.Updates(updates)
	if result.Error != nil {
		r.logger.Error("Failed to update account",
			zap.String("account_id", accountID),
			zap.Error(result.Error))
		return fmt.Errorf("failed to update account: %w", result.Error)
	}

	if result.RowsAffected > 0 {
		return nil
	}

	var count int64
	if err := r.db.WithContext(ctx).
		Model(&model.Account{}).
		Where("account_id = ?", accountID).
		Count(&count).Error; err != nil {
		return fmt.Errorf("failed to check account: %w", err)
	}

	if count == 0 {
		return domainErrors.ErrAccountNotFound
	}
	return domainErrors.ErrStaleUpdate
}
