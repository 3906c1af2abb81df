package schedule

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"

	"github.com/m04kA/SMC-ScheduleEngine/internal/domain"
	"github.com/m04kA/SMC-ScheduleEngine/pkg/dbmetrics"
	"github.com/m04kA/SMC-ScheduleEngine/pkg/psqlbuilder"
	"github.com/m04kA/SMC-ScheduleEngine/pkg/types"
)

var ruleColumns = []string{
	"id",
	"tenant_id",
	"resource_id",
	"weekday",
	"date_from",
	"date_to",
	"start_time",
	"end_time",
	"buffer_before_minutes",
	"buffer_after_minutes",
	"version",
	"superseded_at",
	"created_at",
}

var exceptionColumns = []string{
	"id",
	"tenant_id",
	"resource_id",
	"date",
	"closed",
	"start_time",
	"end_time",
	"created_at",
}

// Repository репозиторий правил и исключений доступности
type Repository struct {
	db dbmetrics.DBExecutor
}

// NewRepository создает новый экземпляр репозитория расписаний
func NewRepository(db dbmetrics.DBExecutor) *Repository {
	return &Repository{db: db}
}

// GetCurrentRules возвращает действующие (не superseded) правила ресурса
func (r *Repository) GetCurrentRules(ctx context.Context, tenantID, resourceID int64) ([]*domain.AvailabilityRule, error) {
	executor := dbmetrics.GetExecutor(ctx, r.db)

	query, args, err := psqlbuilder.Select(ruleColumns...).
		From("availability_rules").
		Where(squirrel.Eq{"tenant_id": tenantID, "resource_id": resourceID}).
		Where(squirrel.Eq{"superseded_at": nil}).
		OrderBy("weekday ASC NULLS LAST, start_time ASC").
		ToSql()

	if err != nil {
		return nil, fmt.Errorf("%w: GetCurrentRules - build select query: %v", ErrBuildQuery, err)
	}

	rows, err := executor.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: GetCurrentRules - execute query: %v", ErrExecQuery, err)
	}
	defer rows.Close()

	return scanRules(rows)
}

// ReplaceRules заменяет правила ресурса новой версией.
// Старые правила помечаются superseded_at и не изменяются - история
// версий сохраняется. Вызывается внутри транзакции.
func (r *Repository) ReplaceRules(ctx context.Context, tenantID, resourceID int64, rules []*domain.AvailabilityRule) ([]*domain.AvailabilityRule, error) {
	executor := dbmetrics.GetExecutor(ctx, r.db)

	// 1. Определяем текущую версию
	var currentVersion sql.NullInt64
	versionQuery, versionArgs, err := psqlbuilder.Select("MAX(version)").
		From("availability_rules").
		Where(squirrel.Eq{"tenant_id": tenantID, "resource_id": resourceID}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("%w: ReplaceRules - build version query: %v", ErrBuildQuery, err)
	}
	if err := executor.QueryRowContext(ctx, versionQuery, versionArgs...).Scan(&currentVersion); err != nil {
		return nil, fmt.Errorf("%w: ReplaceRules - scan version: %v", ErrScanRow, err)
	}

	newVersion := int(currentVersion.Int64) + 1

	// 2. Помечаем действующие правила как superseded
	supersedeQuery, supersedeArgs, err := psqlbuilder.Update("availability_rules").
		Set("superseded_at", squirrel.Expr("NOW()")).
		Where(squirrel.Eq{"tenant_id": tenantID, "resource_id": resourceID, "superseded_at": nil}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("%w: ReplaceRules - build supersede query: %v", ErrBuildQuery, err)
	}
	if _, err := executor.ExecContext(ctx, supersedeQuery, supersedeArgs...); err != nil {
		return nil, fmt.Errorf("%w: ReplaceRules - supersede current rules: %v", ErrExecQuery, err)
	}

	// 3. Вставляем новые правила
	created := make([]*domain.AvailabilityRule, 0, len(rules))
	for _, rule := range rules {
		rule.TenantID = tenantID
		rule.ResourceID = resourceID
		rule.Version = newVersion

		var weekday interface{}
		if rule.Weekday != nil {
			weekday = int(*rule.Weekday)
		}

		query, args, err := psqlbuilder.Insert("availability_rules").
			Columns(
				"tenant_id",
				"resource_id",
				"weekday",
				"date_from",
				"date_to",
				"start_time",
				"end_time",
				"buffer_before_minutes",
				"buffer_after_minutes",
				"version",
			).
			Values(
				rule.TenantID,
				rule.ResourceID,
				weekday,
				rule.DateFrom,
				rule.DateTo,
				rule.StartTime,
				rule.EndTime,
				rule.BufferBeforeMinutes,
				rule.BufferAfterMinutes,
				rule.Version,
			).
			Suffix("RETURNING id, created_at").
			ToSql()
		if err != nil {
			return nil, fmt.Errorf("%w: ReplaceRules - build insert query: %v", ErrBuildQuery, err)
		}

		if err := executor.QueryRowContext(ctx, query, args...).Scan(&rule.ID, &rule.CreatedAt); err != nil {
			return nil, fmt.Errorf("%w: ReplaceRules - execute insert: %v", ErrExecQuery, err)
		}

		created = append(created, rule)
	}

	return created, nil
}

// GetExceptionsInRange возвращает исключения ресурса на диапазон дат [from, to]
func (r *Repository) GetExceptionsInRange(ctx context.Context, tenantID, resourceID int64, from, to time.Time) ([]*domain.AvailabilityException, error) {
	executor := dbmetrics.GetExecutor(ctx, r.db)

	query, args, err := psqlbuilder.Select(exceptionColumns...).
		From("availability_exceptions").
		Where(squirrel.Eq{"tenant_id": tenantID, "resource_id": resourceID}).
		Where(squirrel.GtOrEq{"date": from}).
		Where(squirrel.LtOrEq{"date": to}).
		OrderBy("date ASC").
		ToSql()

	if err != nil {
		return nil, fmt.Errorf("%w: GetExceptionsInRange - build select query: %v", ErrBuildQuery, err)
	}

	rows, err := executor.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: GetExceptionsInRange - execute query: %v", ErrExecQuery, err)
	}
	defer rows.Close()

	return scanExceptions(rows)
}

// UpsertException создает или заменяет исключение на дату.
// На одну дату ресурса может быть только одно исключение.
func (r *Repository) UpsertException(ctx context.Context, exc *domain.AvailabilityException) (*domain.AvailabilityException, error) {
	executor := dbmetrics.GetExecutor(ctx, r.db)

	query, args, err := psqlbuilder.Insert("availability_exceptions").
		Columns(
			"tenant_id",
			"resource_id",
			"date",
			"closed",
			"start_time",
			"end_time",
		).
		Values(
			exc.TenantID,
			exc.ResourceID,
			exc.Date,
			exc.Closed,
			exc.StartTime,
			exc.EndTime,
		).
		Suffix(`ON CONFLICT (tenant_id, resource_id, date) DO UPDATE
			SET closed = EXCLUDED.closed,
			    start_time = EXCLUDED.start_time,
			    end_time = EXCLUDED.end_time
			RETURNING id, created_at`).
		ToSql()

	if err != nil {
		return nil, fmt.Errorf("%w: UpsertException - build upsert query: %v", ErrBuildQuery, err)
	}

	if err := executor.QueryRowContext(ctx, query, args...).Scan(&exc.ID, &exc.CreatedAt); err != nil {
		return nil, fmt.Errorf("%w: UpsertException - execute upsert: %v", ErrExecQuery, err)
	}

	return exc, nil
}

// DeleteException удаляет исключение на дату
func (r *Repository) DeleteException(ctx context.Context, tenantID, resourceID int64, date time.Time) error {
	executor := dbmetrics.GetExecutor(ctx, r.db)

	query, args, err := psqlbuilder.Delete("availability_exceptions").
		Where(squirrel.Eq{"tenant_id": tenantID, "resource_id": resourceID, "date": date}).
		ToSql()

	if err != nil {
		return fmt.Errorf("%w: DeleteException - build delete query: %v", ErrBuildQuery, err)
	}

	result, err := executor.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("%w: DeleteException - execute delete: %v", ErrExecQuery, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: DeleteException - get rows affected: %v", ErrExecQuery, err)
	}

	if rowsAffected == 0 {
		return ErrExceptionNotFound
	}

	return nil
}

func scanRules(rows *sql.Rows) ([]*domain.AvailabilityRule, error) {
	rules := make([]*domain.AvailabilityRule, 0)

	for rows.Next() {
		var rule domain.AvailabilityRule
		var weekday sql.NullInt64

		err := rows.Scan(
			&rule.ID,
			&rule.TenantID,
			&rule.ResourceID,
			&weekday,
			&rule.DateFrom,
			&rule.DateTo,
			&rule.StartTime,
			&rule.EndTime,
			&rule.BufferBeforeMinutes,
			&rule.BufferAfterMinutes,
			&rule.Version,
			&rule.SupersededAt,
			&rule.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("%w: scanRules - scan row: %v", ErrScanRow, err)
		}

		if weekday.Valid {
			wd := time.Weekday(weekday.Int64)
			rule.Weekday = &wd
		}

		rules = append(rules, &rule)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: scanRules - rows error: %v", ErrScanRow, err)
	}

	return rules, nil
}

func scanExceptions(rows *sql.Rows) ([]*domain.AvailabilityException, error) {
	exceptions := make([]*domain.AvailabilityException, 0)

	for rows.Next() {
		var exc domain.AvailabilityException
		var startTime, endTime sql.NullString

		err := rows.Scan(
			&exc.ID,
			&exc.TenantID,
			&exc.ResourceID,
			&exc.Date,
			&exc.Closed,
			&startTime,
			&endTime,
			&exc.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("%w: scanExceptions - scan row: %v", ErrScanRow, err)
		}

		if startTime.Valid {
			ts, err := parseDBTime(startTime.String)
			if err != nil {
				return nil, fmt.Errorf("%w: scanExceptions - parse start_time: %v", ErrScanRow, err)
			}
			exc.StartTime = &ts
		}
		if endTime.Valid {
			ts, err := parseDBTime(endTime.String)
			if err != nil {
				return nil, fmt.Errorf("%w: scanExceptions - parse end_time: %v", ErrScanRow, err)
			}
			exc.EndTime = &ts
		}

		exceptions = append(exceptions, &exc)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: scanExceptions - rows error: %v", ErrScanRow, err)
	}

	return exceptions, nil
}

// parseDBTime нормализует время из Postgres ("10:00:00") в TimeString
func parseDBTime(s string) (types.TimeString, error) {
	var ts types.TimeString
	if err := ts.Scan(s); err != nil {
		return "", err
	}
	return ts, nil
}
