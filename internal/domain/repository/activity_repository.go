package repository

import (
	"context"

	"github.com/wekeepgrowing/semo-backend-monorepo/billing-sync/internal/domain/entity"
)

type ActivityRepository interface {
	Append(ctx context.Context, record *entity.ActivityRecord) error
	List(ctx context.Context, filter entity.ActivityFilter) ([]*entity.ActivityRecord, error)
}
