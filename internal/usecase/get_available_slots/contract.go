package get_available_slots

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
	GetActiveInWindow(ctx context.Context, tenantID, resourceID int64, startAt, endAt time.Time, excludeID *uuid.UUID) ([]*domain.Booking, error)
}

// ScheduleRepository интерфейс репозитория правил и исключений доступности
type ScheduleRepository interface {
	GetCurrentRules(ctx context.Context, tenantID, resourceID int64) ([]*domain.AvailabilityRule, error)
	GetExceptionsInRange(ctx context.Context, tenantID, resourceID int64, from, to time.Time) ([]*domain.AvailabilityException, error)
}

// SlotCalendar интерфейс календаря слотов
type SlotCalendar interface {
	Slots(p slotcalendar.Params) (*slotcalendar.Sequence, error)
}

// CatalogServiceClient интерфейс клиента для CatalogService
type CatalogServiceClient interface {
	GetResource(ctx context.Context, tenantID, resourceID int64) (*catalogservice.Resource, error)
	GetService(ctx context.Context, tenantID, serviceID int64) (*catalogservice.Service, error)
}

// Logger интерфейс для логирования
type Logger interface {
	Info(format string, v ...interface{})
	Warn(format string, v ...interface{})
	Error(format string, v ...interface{})
}
