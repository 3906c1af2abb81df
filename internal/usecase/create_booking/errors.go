package create_booking

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrResourceNotFound возвращается, когда ресурс не найден в каталоге
	ErrResourceNotFound = errors.New("create_booking: resource not found")

	// ErrServiceNotFound возвращается, когда услуга не найдена
	ErrServiceNotFound = errors.New("create_booking: service not found")

	// ErrCustomerNotFound возвращается, когда клиент не найден
	ErrCustomerNotFound = errors.New("create_booking: customer not found")

	// ErrWindowNotBookable возвращается, когда запрошенное окно не лежит
	// в опубликованной доступности ресурса
	ErrWindowNotBookable = errors.New("create_booking: window is outside published availability")

	// ErrWindowConflict возвращается, когда окно пересекается с активным бронированием
	ErrWindowConflict = errors.New("create_booking: window conflicts with an existing booking")

	// ErrStartInPast возвращается при попытке забронировать окно в прошлом
	ErrStartInPast = errors.New("create_booking: start time is in the past")

	// ErrIdempotencyLockTimeout возвращается, когда конкурентный запрос с тем же
	// clientGeneratedId держит блокировку дольше допустимого. Запрос можно повторить.
	ErrIdempotencyLockTimeout = errors.New("create_booking: concurrent request with the same client id, retry later")

	// ErrResourceLockTimeout возвращается, когда ожидание блокировки ресурса
	// при резервировании превысило lock_timeout транзакции. Запрос можно повторить.
	ErrResourceLockTimeout = errors.New("create_booking: resource is busy, retry later")

	// ErrInvalidInput возвращается при некорректных входных данных
	ErrInvalidInput = errors.New("create_booking: invalid input data")

	// ErrInternal возвращается при внутренних ошибках usecase
	ErrInternal = errors.New("create_booking: internal error")
)

// ConflictError ошибка конфликта окна с деталями: какие бронирования мешают
// и какие ближайшие слоты свободны. errors.Is(err, ErrWindowConflict) == true.
type ConflictError struct {
	Conflicts   []ConflictWindow
	Suggestions []SlotSuggestion
}

// ConflictWindow занятое окно, помешавшее бронированию
type ConflictWindow struct {
	StartAt time.Time
	EndAt   time.Time
}

// SlotSuggestion свободный слот, предлагаемый взамен
type SlotSuggestion struct {
	StartAt time.Time
	EndAt   time.Time
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%v: %d conflicting booking(s), %d suggestion(s)",
		ErrWindowConflict, len(e.Conflicts), len(e.Suggestions))
}

func (e *ConflictError) Unwrap() error {
	return ErrWindowConflict
}
