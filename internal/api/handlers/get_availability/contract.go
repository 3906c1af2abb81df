package get_availability

import (
	"context"
	"time"

	"github.com/m04kA/SMC-ScheduleEngine/internal/service/schedule/models"
)

type ScheduleService interface {
	GetAvailability(ctx context.Context, tenantID, resourceID int64, from, to time.Time) (*models.AvailabilityResponse, error)
}

type Logger interface {
	Info(format string, v ...interface{})
	Warn(format string, v ...interface{})
	Error(format string, v ...interface{})
}
