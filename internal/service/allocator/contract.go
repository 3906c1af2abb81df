package allocator

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/m04kA/SMC-ScheduleEngine/internal/domain"
)

// BookingRepository интерфейс репозитория бронирований.
// Аллокатору нужны только блокировка ресурса и выборка пересечений.
type BookingRepository interface {
	LockResource(ctx context.Context, tenantID, resourceID int64) error
	GetActiveInWindow(ctx context.Context, tenantID, resourceID int64, startAt, endAt time.Time, excludeID *uuid.UUID) ([]*domain.Booking, error)
}

// Logger интерфейс для логирования
type Logger interface {
	Info(format string, v ...interface{})
	Warn(format string, v ...interface{})
	Error(format string, v ...interface{})
}
