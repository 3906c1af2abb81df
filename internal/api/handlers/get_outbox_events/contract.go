package get_outbox_events

import (
	"context"

	"github.com/m04kA/SMC-ScheduleEngine/internal/domain"
)

type OutboxRepository interface {
	GetByTenant(ctx context.Context, tenantID int64, status *domain.OutboxStatus, limit int) ([]*domain.OutboxEvent, error)
}

type Logger interface {
	Info(format string, v ...interface{})
	Warn(format string, v ...interface{})
	Error(format string, v ...interface{})
}
