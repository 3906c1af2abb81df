package create_booking

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/m04kA/SMC-ScheduleEngine/internal/domain"
	"github.com/m04kA/SMC-ScheduleEngine/internal/integrations/catalogservice"
	"github.com/m04kA/SMC-ScheduleEngine/internal/service/slotcalendar"
)

// BookingRepository интерфейс репозитория бронирований
type BookingRepository interface {
	Create(ctx context.Context, booking *domain.Booking) (*domain.Booking, error)
	GetByClientGeneratedID(ctx context.Context, tenantID int64, clientID uuid.UUID) (*domain.Booking, error)
	GetActiveInWindow(ctx context.Context, tenantID, resourceID int64, startAt, endAt time.Time, excludeID *uuid.UUID) ([]*domain.Booking, error)
	LockClientGeneratedID(ctx context.Context, tenantID int64, clientID uuid.UUID, timeout time.Duration) error
}

// ScheduleRepository интерфейс репозитория правил и исключений доступности
type ScheduleRepository interface {
	GetCurrentRules(ctx context.Context, tenantID, resourceID int64) ([]*domain.AvailabilityRule, error)
	GetExceptionsInRange(ctx context.Context, tenantID, resourceID int64, from, to time.Time) ([]*domain.AvailabilityException, error)
}

// OutboxRepository интерфейс репозитория outbox-событий
type OutboxRepository interface {
	Append(ctx context.Context, event *domain.OutboxEvent) error
}

// IntervalAllocator интерфейс аллокатора окон ресурса
type IntervalAllocator interface {
	Reserve(ctx context.Context, tenantID, resourceID int64, startAt, endAt time.Time, excludeID *uuid.UUID) ([]*domain.Booking, error)
}

// SlotCalendar интерфейс календаря слотов
type SlotCalendar interface {
	Slots(p slotcalendar.Params) (*slotcalendar.Sequence, error)
	ValidateWindow(p slotcalendar.Params, startAt, endAt time.Time) error
}

// CatalogServiceClient интерфейс клиента для CatalogService
type CatalogServiceClient interface {
	GetResource(ctx context.Context, tenantID, resourceID int64) (*catalogservice.Resource, error)
	GetService(ctx context.Context, tenantID, serviceID int64) (*catalogservice.Service, error)
	GetCustomer(ctx context.Context, tenantID, customerID int64) (*catalogservice.Customer, error)
}

// TransactionManager интерфейс для управления транзакциями
type TransactionManager interface {
	DoSerializable(ctx context.Context, fn func(ctx context.Context) error) error
}

// TimeProvider интерфейс для получения текущего времени (для тестирования)
type TimeProvider interface {
	Now() time.Time
}

// Logger интерфейс для логирования
type Logger interface {
	Info(format string, v ...interface{})
	Warn(format string, v ...interface{})
	Error(format string, v ...interface{})
}

// RealTimeProvider реальный провайдер времени для production
type RealTimeProvider struct{}

// Now возвращает текущее время
func (p *RealTimeProvider) Now() time.Time {
	return time.Now()
}
