package booking

import "errors"

var (
	// ErrBookingNotFound возвращается, когда бронирование не найдено
	ErrBookingNotFound = errors.New("booking.repository: booking not found")

	// ErrDuplicateClientID возвращается при нарушении уникальности
	// (tenant_id, client_generated_id) - повторная отправка того же запроса
	ErrDuplicateClientID = errors.New("booking.repository: duplicate client generated id")

	// ErrStatusNotExpected возвращается, когда условное обновление статуса
	// не прошло: текущий статус отличается от ожидаемого
	ErrStatusNotExpected = errors.New("booking.repository: booking status is not the expected one")

	// ErrLockTimeout возвращается, когда ожидание advisory lock превысило lock_timeout
	ErrLockTimeout = errors.New("booking.repository: lock wait timeout")

	// ErrNotInTransaction возвращается при вызове операций, требующих транзакцию, вне её
	ErrNotInTransaction = errors.New("booking.repository: operation requires an active transaction")

	// ErrBuildQuery возвращается при ошибке построения SQL запроса
	ErrBuildQuery = errors.New("booking.repository: failed to build query")

	// ErrExecQuery возвращается при ошибке выполнения SQL запроса
	ErrExecQuery = errors.New("booking.repository: failed to execute query")

	// ErrScanRow возвращается при ошибке сканирования результата запроса
	ErrScanRow = errors.New("booking.repository: failed to scan row")
)
