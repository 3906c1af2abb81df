package allocator

import "errors"

var (
	// ErrWindowConflict запрошенное окно пересекается с активным бронированием
	ErrWindowConflict = errors.New("service.allocator: window conflicts with active booking")

	// ErrLockTimeout ожидание блокировки ресурса превысило lock_timeout транзакции
	ErrLockTimeout = errors.New("service.allocator: lock wait timeout")

	// ErrInternal внутренняя ошибка аллокатора
	ErrInternal = errors.New("service.allocator: internal error")
)
