package repository

import (
	"context"

	"github.com/wekeepgrowing/semo-backend-monorepo/billing-sync/internal/domain/entity"
)

type AccountRepository interface {
	GetAccount(ctx context.Context, accountID string) (*entity.Account, error)
	// UpdateAccount applies a partial update and bumps updated_at in the same write.
	UpdateAccount(ctx context.Context, accountID string, fields *entity.FieldSet) error
}
