package database

import (
	"github.com/wekeepgrowing/semo-backend-monorepo/billing-sync/internal/adapter/repository"
	domainRepo "github.com/wekeepgrowing/semo-backend-monorepo/billing-sync/internal/domain/repository"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Repositories holds all repository instances
type Repositories struct {
	Account  domainRepo.AccountRepository
	Activity domainRepo.ActivityRepository
	Webhook  domainRepo.WebhookEventRepository
}

// NewRepositories creates new repository instances with database connection
func NewRepositories(db *gorm.DB, logger *zap.Logger) *Repositories {
	return &Repositories{
		Account:  repository.NewAccountRepository(db, logger),
		Activity: repository.NewActivityRepository(db, logger),
		Webhook:  repository.NewWebhookRepository(db, logger),
	}
}
