package update_availability

import (
	"context"
	"time"

	"github.com/m04kA/SMC-ScheduleEngine/internal/service/schedule/models"
)

type ScheduleService interface {
	ReplaceRules(ctx context.Context, req *models.ReplaceRulesRequest) (*models.AvailabilityResponse, error)
	UpsertException(ctx context.Context, req *models.UpsertExceptionRequest) (*models.ExceptionResponse, error)
	DeleteException(ctx context.Context, tenantID, resourceID int64, date time.Time) error
}

type Logger interface {
	Info(format string, v ...interface{})
	Warn(format string, v ...interface{})
	Error(format string, v ...interface{})
}
