package dispatcher

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/m04kA/SMC-ScheduleEngine/internal/domain"
)

// OutboxRepository интерфейс репозитория outbox-событий
type OutboxRepository interface {
	FetchPending(ctx context.Context, batchSize int) ([]*domain.OutboxEvent, error)
	MarkDispatched(ctx context.Context, id uuid.UUID) error
	RescheduleAttempt(ctx context.Context, id uuid.UUID, readyAt time.Time, lastError string) error
	MarkFailed(ctx context.Context, id uuid.UUID, lastError string) error
}

// Publisher интерфейс публикации событий в брокер
type Publisher interface {
	Publish(routingKey, messageID string, body []byte) error
}

// TransactionManager интерфейс для управления транзакциями
type TransactionManager interface {
	DoSerializable(ctx context.Context, fn func(ctx context.Context) error) error
}

// MetricsCollector интерфейс метрик доставки событий
type MetricsCollector interface {
	ObserveOutboxDispatch(eventCode string, duration time.Duration, err error)
}

// Logger интерфейс для логирования
type Logger interface {
	Info(format string, v ...interface{})
	Warn(format string, v ...interface{})
	Error(format string, v ...interface{})
}
