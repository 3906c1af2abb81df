package schedule

import (
	"context"
	"time"

	"github.com/m04kA/SMC-ScheduleEngine/internal/domain"
	"github.com/m04kA/SMC-ScheduleEngine/internal/integrations/catalogservice"
)

// ScheduleRepository интерфейс репозитория правил и исключений доступности
type ScheduleRepository interface {
	GetCurrentRules(ctx context.Context, tenantID, resourceID int64) ([]*domain.AvailabilityRule, error)
	ReplaceRules(ctx context.Context, tenantID, resourceID int64, rules []*domain.AvailabilityRule) ([]*domain.AvailabilityRule, error)
	GetExceptionsInRange(ctx context.Context, tenantID, resourceID int64, from, to time.Time) ([]*domain.AvailabilityException, error)
	UpsertException(ctx context.Context, exc *domain.AvailabilityException) (*domain.AvailabilityException, error)
	DeleteException(ctx context.Context, tenantID, resourceID int64, date time.Time) error
}

// CatalogServiceClient интерфейс клиента для CatalogService
type CatalogServiceClient interface {
	GetResource(ctx context.Context, tenantID, resourceID int64) (*catalogservice.Resource, error)
}

// TransactionManager интерфейс для управления транзакциями
type TransactionManager interface {
	DoSerializable(ctx context.Context, fn func(ctx context.Context) error) error
}

// Logger интерфейс для логирования
type Logger interface {
	Info(format string, v ...interface{})
	Warn(format string, v ...interface{})
	Error(format string, v ...interface{})
}
