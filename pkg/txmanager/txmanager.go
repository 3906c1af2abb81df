// Package txmanager transaction manager поверх dbmetrics.DB.
// Активная транзакция пробрасывается в репозитории через context.
package txmanager

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/m04kA/SMC-ScheduleEngine/pkg/dbmetrics"
)

const (
	// Код ошибки PostgreSQL serialization_failure
	pgSerializationFailure = "40001"
	// Код ошибки PostgreSQL deadlock_detected
	pgDeadlockDetected = "40P01"

	// defaultRetries количество повторов сериализуемой транзакции после
	// serialization failure. Одна повторная попытка, дальше ошибка уходит
	// вызывающему - бесконечные ретраи под нагрузкой дают livelock.
	defaultRetries = 1
)

// ErrSerializationFailure возвращается, когда транзакция не прошла даже после повтора
var ErrSerializationFailure = errors.New("txmanager: serialization failure after retries")

// TransactionManager менеджер сериализуемых транзакций
type TransactionManager struct {
	db      *dbmetrics.DB
	retries int
}

// NewTransactionManager создает менеджер с дефолтным числом повторов
func NewTransactionManager(db *dbmetrics.DB) *TransactionManager {
	return &TransactionManager{db: db, retries: defaultRetries}
}

// NewTransactionManagerWithRetries создает менеджер с указанным числом повторов
func NewTransactionManagerWithRetries(db *dbmetrics.DB, retries int) *TransactionManager {
	if retries < 0 {
		retries = 0
	}
	return &TransactionManager{db: db, retries: retries}
}

// DoSerializable выполняет fn внутри транзакции с уровнем изоляции Serializable.
// При serialization failure повторяет транзакцию ограниченное число раз.
func (m *TransactionManager) DoSerializable(ctx context.Context, fn func(ctx context.Context) error) error {
	var lastErr error

	for attempt := 0; attempt <= m.retries; attempt++ {
		err := m.runOnce(ctx, fn)
		if err == nil {
			return nil
		}
		if !isRetryable(err) {
			return err
		}
		lastErr = err
	}

	return fmt.Errorf("%w: %v", ErrSerializationFailure, lastErr)
}

func (m *TransactionManager) runOnce(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	tx, err := m.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return fmt.Errorf("txmanager: begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	txCtx := dbmetrics.WithTx(ctx, tx)

	if err := fn(txCtx); err != nil {
		_ = tx.Rollback()
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("txmanager: commit transaction: %w", err)
	}

	return nil
}

// isRetryable определяет, стоит ли повторять транзакцию
func isRetryable(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code) == pgSerializationFailure || string(pqErr.Code) == pgDeadlockDetected
	}
	return false
}
