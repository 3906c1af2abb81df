package get_booking

import (
	"context"

	"github.com/google/uuid"

	"github.com/m04kA/SMC-ScheduleEngine/internal/service/bookings/models"
)

type BookingService interface {
	GetByID(ctx context.Context, tenantID int64, id uuid.UUID) (*models.BookingResponse, error)
}

type Logger interface {
	Info(format string, v ...interface{})
	Warn(format string, v ...interface{})
	Error(format string, v ...interface{})
}
