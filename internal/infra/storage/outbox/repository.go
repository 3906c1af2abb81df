package outbox

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/google/uuid"

	"github.com/m04kA/SMC-ScheduleEngine/internal/domain"
	"github.com/m04kA/SMC-ScheduleEngine/pkg/dbmetrics"
	"github.com/m04kA/SMC-ScheduleEngine/pkg/psqlbuilder"
)

var eventColumns = []string{
	"id",
	"tenant_id",
	"event_code",
	"payload",
	"status",
	"ready_at",
	"attempt_count",
	"last_error",
	"created_at",
}

// Repository репозиторий outbox-событий
type Repository struct {
	db dbmetrics.DBExecutor
}

// NewRepository создает новый экземпляр репозитория outbox
func NewRepository(db dbmetrics.DBExecutor) *Repository {
	return &Repository{db: db}
}

// Append записывает событие. Требует активную транзакцию: событие должно
// закоммититься вместе с изменением бронирования или не существовать вовсе.
func (r *Repository) Append(ctx context.Context, event *domain.OutboxEvent) error {
	if !dbmetrics.IsInTransaction(ctx) {
		return ErrNotInTransaction
	}
	executor := dbmetrics.GetExecutor(ctx, r.db)

	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	if event.Status == "" {
		event.Status = domain.OutboxStatusPending
	}

	insertBuilder := psqlbuilder.Insert("outbox_events").
		Columns(
			"id",
			"tenant_id",
			"event_code",
			"payload",
			"status",
			"ready_at",
		)

	if event.ReadyAt.IsZero() {
		insertBuilder = insertBuilder.Values(
			event.ID,
			event.TenantID,
			event.EventCode,
			[]byte(event.Payload),
			event.Status,
			squirrel.Expr("NOW()"),
		)
	} else {
		insertBuilder = insertBuilder.Values(
			event.ID,
			event.TenantID,
			event.EventCode,
			[]byte(event.Payload),
			event.Status,
			event.ReadyAt,
		)
	}

	query, args, err := insertBuilder.
		Suffix("RETURNING ready_at, created_at").
		ToSql()
	if err != nil {
		return fmt.Errorf("%w: Append - build insert query: %v", ErrBuildQuery, err)
	}

	if err := executor.QueryRowContext(ctx, query, args...).Scan(&event.ReadyAt, &event.CreatedAt); err != nil {
		return fmt.Errorf("%w: Append - execute insert: %v", ErrExecQuery, err)
	}

	return nil
}

// FetchPending забирает пачку готовых к доставке событий.
// FOR UPDATE SKIP LOCKED позволяет нескольким воркерам диспетчера
// опрашивать таблицу параллельно без дублирования доставки.
// Вызывается внутри транзакции воркера.
func (r *Repository) FetchPending(ctx context.Context, batchSize int) ([]*domain.OutboxEvent, error) {
	executor := dbmetrics.GetExecutor(ctx, r.db)

	query, args, err := psqlbuilder.Select(eventColumns...).
		From("outbox_events").
		Where(squirrel.Eq{"status": domain.OutboxStatusPending}).
		Where(squirrel.LtOrEq{"ready_at": time.Now().UTC()}).
		OrderBy("ready_at ASC, created_at ASC").
		Limit(uint64(batchSize)).
		Suffix("FOR UPDATE SKIP LOCKED").
		ToSql()

	if err != nil {
		return nil, fmt.Errorf("%w: FetchPending - build select query: %v", ErrBuildQuery, err)
	}

	rows, err := executor.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: FetchPending - execute query: %v", ErrExecQuery, err)
	}
	defer rows.Close()

	return scanEvents(rows)
}

// MarkDispatched помечает событие доставленным
func (r *Repository) MarkDispatched(ctx context.Context, id uuid.UUID) error {
	return r.updateStatus(ctx, id, func(b squirrel.UpdateBuilder) squirrel.UpdateBuilder {
		return b.Set("status", domain.OutboxStatusDispatched)
	})
}

// RescheduleAttempt увеличивает счётчик попыток и назначает следующую
// попытку на readyAt (backoff рассчитывает диспетчер)
func (r *Repository) RescheduleAttempt(ctx context.Context, id uuid.UUID, readyAt time.Time, lastError string) error {
	return r.updateStatus(ctx, id, func(b squirrel.UpdateBuilder) squirrel.UpdateBuilder {
		return b.
			Set("attempt_count", squirrel.Expr("attempt_count + 1")).
			Set("ready_at", readyAt).
			Set("last_error", lastError)
	})
}

// MarkFailed помечает событие окончательно недоставленным
func (r *Repository) MarkFailed(ctx context.Context, id uuid.UUID, lastError string) error {
	return r.updateStatus(ctx, id, func(b squirrel.UpdateBuilder) squirrel.UpdateBuilder {
		return b.
			Set("status", domain.OutboxStatusFailed).
			Set("attempt_count", squirrel.Expr("attempt_count + 1")).
			Set("last_error", lastError)
	})
}

// GetByTenant возвращает события тенанта (для отладочных/админских ручек)
func (r *Repository) GetByTenant(ctx context.Context, tenantID int64, status *domain.OutboxStatus, limit int) ([]*domain.OutboxEvent, error) {
	executor := dbmetrics.GetExecutor(ctx, r.db)

	selectBuilder := psqlbuilder.Select(eventColumns...).
		From("outbox_events").
		Where(squirrel.Eq{"tenant_id": tenantID}).
		OrderBy("created_at DESC").
		Limit(uint64(limit))

	if status != nil {
		selectBuilder = selectBuilder.Where(squirrel.Eq{"status": *status})
	}

	query, args, err := selectBuilder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("%w: GetByTenant - build select query: %v", ErrBuildQuery, err)
	}

	rows, err := executor.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: GetByTenant - execute query: %v", ErrExecQuery, err)
	}
	defer rows.Close()

	return scanEvents(rows)
}

func (r *Repository) updateStatus(ctx context.Context, id uuid.UUID, apply func(squirrel.UpdateBuilder) squirrel.UpdateBuilder) error {
	executor := dbmetrics.GetExecutor(ctx, r.db)

	query, args, err := apply(psqlbuilder.Update("outbox_events")).
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("%w: updateStatus - build update query: %v", ErrBuildQuery, err)
	}

	result, err := executor.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("%w: updateStatus - execute update: %v", ErrExecQuery, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: updateStatus - get rows affected: %v", ErrExecQuery, err)
	}

	if rowsAffected == 0 {
		return ErrEventNotFound
	}

	return nil
}

func scanEvents(rows *sql.Rows) ([]*domain.OutboxEvent, error) {
	events := make([]*domain.OutboxEvent, 0)

	for rows.Next() {
		var event domain.OutboxEvent
		var payload []byte

		err := rows.Scan(
			&event.ID,
			&event.TenantID,
			&event.EventCode,
			&payload,
			&event.Status,
			&event.ReadyAt,
			&event.AttemptCount,
			&event.LastError,
			&event.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("%w: scanEvents - scan row: %v", ErrScanRow, err)
		}

		event.Payload = payload
		events = append(events, &event)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: scanEvents - rows error: %v", ErrScanRow, err)
	}

	return events, nil
}
