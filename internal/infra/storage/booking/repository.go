package booking

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/m04kA/SMC-ScheduleEngine/internal/domain"
	"github.com/m04kA/SMC-ScheduleEngine/pkg/dbmetrics"
	"github.com/m04kA/SMC-ScheduleEngine/pkg/psqlbuilder"
)

const (
	// Код ошибки PostgreSQL unique_violation
	pgUniqueViolation = "23505"
	// Код ошибки PostgreSQL lock_not_available (lock_timeout истёк)
	pgLockNotAvailable = "55P03"
)

var bookingColumns = []string{
	"id",
	"tenant_id",
	"resource_id",
	"service_id",
	"customer_id",
	"start_at",
	"end_at",
	"status",
	"client_generated_id",
	"rescheduled_from",
	"cancellation_reason",
	"cancelled_at",
	"created_at",
	"updated_at",
}

// Repository репозиторий для работы с бронированиями
type Repository struct {
	db DBExecutor
}

// NewRepository создает новый экземпляр репозитория бронирований
func NewRepository(db DBExecutor) *Repository {
	return &Repository{db: db}
}

// Create создает новое бронирование.
// Вызывается только внутри транзакции, открытой usecase-ом создания:
// вставка идёт после advisory lock ресурса и проверки пересечений,
// уникальный индекс (tenant_id, client_generated_id) остаётся страховкой
// от двойной отправки - его нарушение маппится в ErrDuplicateClientID.
func (r *Repository) Create(ctx context.Context, booking *domain.Booking) (*domain.Booking, error) {
	executor := dbmetrics.GetExecutor(ctx, r.db)

	if booking.ID == uuid.Nil {
		booking.ID = uuid.New()
	}

	query, args, err := psqlbuilder.Insert("bookings").
		Columns(
			"id",
			"tenant_id",
			"resource_id",
			"service_id",
			"customer_id",
			"start_at",
			"end_at",
			"status",
			"client_generated_id",
			"rescheduled_from",
		).
		Values(
			booking.ID,
			booking.TenantID,
			booking.ResourceID,
			booking.ServiceID,
			booking.CustomerID,
			booking.StartAt,
			booking.EndAt,
			booking.Status,
			booking.ClientGeneratedID,
			booking.RescheduledFrom,
		).
		Suffix("RETURNING created_at, updated_at").
		ToSql()

	if err != nil {
		return nil, fmt.Errorf("%w: Create - build insert query: %v", ErrBuildQuery, err)
	}

	var createdAt, updatedAt sql.NullTime
	err = executor.QueryRowContext(ctx, query, args...).Scan(&createdAt, &updatedAt)

	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && string(pqErr.Code) == pgUniqueViolation {
			return nil, ErrDuplicateClientID
		}
		return nil, fmt.Errorf("%w: Create - execute insert: %v", ErrExecQuery, err)
	}

	booking.CreatedAt = createdAt.Time
	booking.UpdatedAt = updatedAt.Time

	return booking, nil
}

// GetByID получает бронирование по ID
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Booking, error) {
	executor := dbmetrics.GetExecutor(ctx, r.db)

	selectBuilder := psqlbuilder.Select(bookingColumns...).
		From("bookings").
		Where(squirrel.Eq{"id": id})

	// Внутри транзакции блокируем строку - переходы статусов
	// одного бронирования линеаризуются
	if dbmetrics.IsInTransaction(ctx) {
		selectBuilder = selectBuilder.Suffix("FOR UPDATE")
	}

	query, args, err := selectBuilder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("%w: GetByID - build select query: %v", ErrBuildQuery, err)
	}

	booking, err := scanBooking(executor.QueryRowContext(ctx, query, args...))
	if err == sql.ErrNoRows {
		return nil, ErrBookingNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: GetByID - scan booking: %v", ErrScanRow, err)
	}

	return booking, nil
}

// GetByClientGeneratedID ищет бронирование по ключу идемпотентности
func (r *Repository) GetByClientGeneratedID(ctx context.Context, tenantID int64, clientID uuid.UUID) (*domain.Booking, error) {
	executor := dbmetrics.GetExecutor(ctx, r.db)

	query, args, err := psqlbuilder.Select(bookingColumns...).
		From("bookings").
		Where(squirrel.Eq{"tenant_id": tenantID, "client_generated_id": clientID}).
		ToSql()

	if err != nil {
		return nil, fmt.Errorf("%w: GetByClientGeneratedID - build select query: %v", ErrBuildQuery, err)
	}

	booking, err := scanBooking(executor.QueryRowContext(ctx, query, args...))
	if err == sql.ErrNoRows {
		return nil, ErrBookingNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: GetByClientGeneratedID - scan booking: %v", ErrScanRow, err)
	}

	return booking, nil
}

// GetActiveInWindow возвращает активные бронирования ресурса, пересекающие
// окно [startAt, endAt). Пересечение полуоткрытое: a.start < b.end AND b.start < a.end.
// excludeID исключает собственное бронирование при переносе.
// Внутри транзакции строки блокируются FOR UPDATE - это часть протокола
// резервирования аллокатора.
func (r *Repository) GetActiveInWindow(
	ctx context.Context,
	tenantID, resourceID int64,
	startAt, endAt time.Time,
	excludeID *uuid.UUID,
) ([]*domain.Booking, error) {
	executor := dbmetrics.GetExecutor(ctx, r.db)

	activeStatusStrings := make([]string, len(domain.ActiveStatuses))
	for i, s := range domain.ActiveStatuses {
		activeStatusStrings[i] = string(s)
	}

	selectBuilder := psqlbuilder.Select(bookingColumns...).
		From("bookings").
		Where(squirrel.Eq{"tenant_id": tenantID, "resource_id": resourceID}).
		Where(squirrel.Eq{"status": activeStatusStrings}).
		Where(squirrel.Lt{"start_at": endAt}).
		Where(squirrel.Gt{"end_at": startAt}).
		OrderBy("start_at ASC")

	if excludeID != nil {
		selectBuilder = selectBuilder.Where(squirrel.NotEq{"id": *excludeID})
	}

	if dbmetrics.IsInTransaction(ctx) {
		selectBuilder = selectBuilder.Suffix("FOR UPDATE")
	}

	query, args, err := selectBuilder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("%w: GetActiveInWindow - build select query: %v", ErrBuildQuery, err)
	}

	rows, err := executor.QueryContext(ctx, query, args...)
	if err != nil {
		if isLockTimeout(err) {
			return nil, ErrLockTimeout
		}
		return nil, fmt.Errorf("%w: GetActiveInWindow - execute query: %v", ErrExecQuery, err)
	}
	defer rows.Close()

	return scanBookings(rows)
}

// GetByResourceWithFilter получает бронирования ресурса с гибкой фильтрацией
func (r *Repository) GetByResourceWithFilter(ctx context.Context, filter domain.ResourceBookingsFilter) ([]*domain.Booking, error) {
	executor := dbmetrics.GetExecutor(ctx, r.db)

	selectBuilder := psqlbuilder.Select(bookingColumns...).
		From("bookings").
		Where(squirrel.Eq{"tenant_id": filter.TenantID, "resource_id": filter.ResourceID})

	// Фильтрация по периоду (пересечение с окном, а не вхождение в него)
	if filter.EndAt != nil {
		selectBuilder = selectBuilder.Where(squirrel.Lt{"start_at": *filter.EndAt})
	}
	if filter.StartAt != nil {
		selectBuilder = selectBuilder.Where(squirrel.Gt{"end_at": *filter.StartAt})
	}

	// Фильтрация по статусу
	if filter.Status != nil {
		selectBuilder = selectBuilder.Where(squirrel.Eq{"status": *filter.Status})
	} else if !filter.IncludeInactive {
		activeStatusStrings := make([]string, len(domain.ActiveStatuses))
		for i, s := range domain.ActiveStatuses {
			activeStatusStrings[i] = string(s)
		}
		selectBuilder = selectBuilder.Where(squirrel.Eq{"status": activeStatusStrings})
	}

	selectBuilder = selectBuilder.OrderBy("start_at ASC")

	query, args, err := selectBuilder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("%w: GetByResourceWithFilter - build select query: %v", ErrBuildQuery, err)
	}

	rows, err := executor.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: GetByResourceWithFilter - execute query: %v", ErrExecQuery, err)
	}
	defer rows.Close()

	return scanBookings(rows)
}

// GetByCustomerID получает бронирования клиента, опционально фильтруя по статусу
func (r *Repository) GetByCustomerID(ctx context.Context, tenantID, customerID int64, status *domain.BookingStatus) ([]*domain.Booking, error) {
	executor := dbmetrics.GetExecutor(ctx, r.db)

	selectBuilder := psqlbuilder.Select(bookingColumns...).
		From("bookings").
		Where(squirrel.Eq{"tenant_id": tenantID, "customer_id": customerID}).
		OrderBy("start_at DESC")

	if status != nil {
		selectBuilder = selectBuilder.Where(squirrel.Eq{"status": *status})
	}

	query, args, err := selectBuilder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("%w: GetByCustomerID - build select query: %v", ErrBuildQuery, err)
	}

	rows, err := executor.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: GetByCustomerID - execute query: %v", ErrExecQuery, err)
	}
	defer rows.Close()

	return scanBookings(rows)
}

// UpdateStatusIf условно переводит бронирование в новый статус.
// WHERE status = expected линеаризует переходы: из двух конкурентных
// обновлений одного бронирования пройдет только одно, второе получит
// ErrStatusNotExpected (или ErrBookingNotFound, если записи нет).
func (r *Repository) UpdateStatusIf(ctx context.Context, id uuid.UUID, expected, next domain.BookingStatus) error {
	executor := dbmetrics.GetExecutor(ctx, r.db)

	query, args, err := psqlbuilder.Update("bookings").
		Set("status", next).
		Set("updated_at", squirrel.Expr("NOW()")).
		Where(squirrel.Eq{"id": id, "status": expected}).
		ToSql()

	if err != nil {
		return fmt.Errorf("%w: UpdateStatusIf - build update query: %v", ErrBuildQuery, err)
	}

	result, err := executor.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("%w: UpdateStatusIf - execute update: %v", ErrExecQuery, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: UpdateStatusIf - get rows affected: %v", ErrExecQuery, err)
	}

	if rowsAffected == 0 {
		// Либо бронирования нет, либо статус уже другой
		if _, getErr := r.GetByID(ctx, id); getErr != nil {
			return ErrBookingNotFound
		}
		return ErrStatusNotExpected
	}

	return nil
}

// CancelIf условно отменяет бронирование с указанием причины
func (r *Repository) CancelIf(ctx context.Context, id uuid.UUID, expected domain.BookingStatus, reason string) error {
	executor := dbmetrics.GetExecutor(ctx, r.db)

	query, args, err := psqlbuilder.Update("bookings").
		Set("status", domain.StatusCancelled).
		Set("cancellation_reason", reason).
		Set("cancelled_at", squirrel.Expr("NOW()")).
		Set("updated_at", squirrel.Expr("NOW()")).
		Where(squirrel.Eq{"id": id, "status": expected}).
		ToSql()

	if err != nil {
		return fmt.Errorf("%w: CancelIf - build update query: %v", ErrBuildQuery, err)
	}

	result, err := executor.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("%w: CancelIf - execute update: %v", ErrExecQuery, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: CancelIf - get rows affected: %v", ErrExecQuery, err)
	}

	if rowsAffected == 0 {
		if _, getErr := r.GetByID(ctx, id); getErr != nil {
			return ErrBookingNotFound
		}
		return ErrStatusNotExpected
	}

	return nil
}

// LockResource берёт advisory lock на ресурс в рамках текущей транзакции.
// Это точка взаимного исключения аллокатора: два конкурирующих резервирования
// одного ресурса упорядочиваются здесь, проигравший увидит строку победителя.
// Лок снимается автоматически при завершении транзакции.
func (r *Repository) LockResource(ctx context.Context, tenantID, resourceID int64) error {
	if !dbmetrics.IsInTransaction(ctx) {
		return ErrNotInTransaction
	}
	executor := dbmetrics.GetExecutor(ctx, r.db)

	// SET LOCAL lock_timeout из LockClientGeneratedID действует на всю
	// транзакцию, поэтому ожидание здесь тоже может истечь
	key := fmt.Sprintf("resource:%d:%d", tenantID, resourceID)
	if _, err := executor.ExecContext(ctx, "SELECT pg_advisory_xact_lock(hashtextextended($1, 0))", key); err != nil {
		if isLockTimeout(err) {
			return ErrLockTimeout
		}
		return fmt.Errorf("%w: LockResource - acquire advisory lock: %v", ErrExecQuery, err)
	}

	return nil
}

// LockClientGeneratedID сериализует конкурентные ретраи одного и того же
// запроса на создание: advisory lock по ключу идемпотентности с ограничением
// времени ожидания. Дубликат, не дождавшийся исхода первой попытки,
// получает ErrLockTimeout - клиенту безопасно повторить позже.
func (r *Repository) LockClientGeneratedID(ctx context.Context, tenantID int64, clientID uuid.UUID, timeout time.Duration) error {
	if !dbmetrics.IsInTransaction(ctx) {
		return ErrNotInTransaction
	}
	executor := dbmetrics.GetExecutor(ctx, r.db)

	// SET LOCAL действует до конца транзакции
	if _, err := executor.ExecContext(ctx, fmt.Sprintf("SET LOCAL lock_timeout = %d", timeout.Milliseconds())); err != nil {
		return fmt.Errorf("%w: LockClientGeneratedID - set lock_timeout: %v", ErrExecQuery, err)
	}

	key := fmt.Sprintf("idem:%d:%s", tenantID, clientID)
	if _, err := executor.ExecContext(ctx, "SELECT pg_advisory_xact_lock(hashtextextended($1, 0))", key); err != nil {
		if isLockTimeout(err) {
			return ErrLockTimeout
		}
		return fmt.Errorf("%w: LockClientGeneratedID - acquire advisory lock: %v", ErrExecQuery, err)
	}

	return nil
}

// isLockTimeout распознаёт ошибку lock_not_available: истёк lock_timeout
func isLockTimeout(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && string(pqErr.Code) == pgLockNotAvailable
}

// scanBooking сканирует одну строку результата
func scanBooking(row *sql.Row) (*domain.Booking, error) {
	var booking domain.Booking
	var createdAt, updatedAt sql.NullTime

	err := row.Scan(
		&booking.ID,
		&booking.TenantID,
		&booking.ResourceID,
		&booking.ServiceID,
		&booking.CustomerID,
		&booking.StartAt,
		&booking.EndAt,
		&booking.Status,
		&booking.ClientGeneratedID,
		&booking.RescheduledFrom,
		&booking.CancellationReason,
		&booking.CancelledAt,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return nil, err
	}

	booking.CreatedAt = createdAt.Time
	booking.UpdatedAt = updatedAt.Time
	booking.StartAt = booking.StartAt.UTC()
	booking.EndAt = booking.EndAt.UTC()

	return &booking, nil
}

// scanBookings сканирует результаты запроса в слайс бронирований
func scanBookings(rows *sql.Rows) ([]*domain.Booking, error) {
	bookings := make([]*domain.Booking, 0)

	for rows.Next() {
		var booking domain.Booking
		var createdAt, updatedAt sql.NullTime

		err := rows.Scan(
			&booking.ID,
			&booking.TenantID,
			&booking.ResourceID,
			&booking.ServiceID,
			&booking.CustomerID,
			&booking.StartAt,
			&booking.EndAt,
			&booking.Status,
			&booking.ClientGeneratedID,
			&booking.RescheduledFrom,
			&booking.CancellationReason,
			&booking.CancelledAt,
			&createdAt,
			&updatedAt,
		)

		if err != nil {
			return nil, fmt.Errorf("%w: scanBookings - scan row: %v", ErrScanRow, err)
		}

		booking.CreatedAt = createdAt.Time
		booking.UpdatedAt = updatedAt.Time
		booking.StartAt = booking.StartAt.UTC()
		booking.EndAt = booking.EndAt.UTC()

		bookings = append(bookings, &booking)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: scanBookings - rows error: %v", ErrScanRow, err)
	}

	return bookings, nil
}
