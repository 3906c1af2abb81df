// Package simpletxmanager transaction manager поверх обычного *sql.DB,
// без обёртки метрик. Используется, когда метрики в конфиге отключены.
package simpletxmanager

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/m04kA/SMC-ScheduleEngine/pkg/dbmetrics"
)

const (
	pgSerializationFailure = "40001"
	pgDeadlockDetected     = "40P01"

	defaultRetries = 1
)

// ErrSerializationFailure возвращается, когда транзакция не прошла даже после повтора
var ErrSerializationFailure = errors.New("simpletxmanager: serialization failure after retries")

// TransactionManager менеджер сериализуемых транзакций без метрик
type TransactionManager struct {
	db      *sql.DB
	retries int
}

// NewTransactionManager создает менеджер транзакций
func NewTransactionManager(db *sql.DB) *TransactionManager {
	return &TransactionManager{db: db, retries: defaultRetries}
}

// NewTransactionManagerWithRetries создает менеджер транзакций с заданным числом повторов
func NewTransactionManagerWithRetries(db *sql.DB, retries int) *TransactionManager {
	if retries < 0 {
		retries = defaultRetries
	}
	return &TransactionManager{db: db, retries: retries}
}

// DoSerializable выполняет fn внутри сериализуемой транзакции с ограниченным повтором
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
		return fmt.Errorf("simpletxmanager: begin transaction: %w", err)
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
		return fmt.Errorf("simpletxmanager: commit transaction: %w", err)
	}

	return nil
}

func isRetryable(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code) == pgSerializationFailure || string(pqErr.Code) == pgDeadlockDetected
	}
	return false
}
