package reschedule_booking

import "errors"

var (
	// ErrBookingNotFound возвращается, когда бронирование не найдено
	ErrBookingNotFound = errors.New("reschedule_booking: booking not found")

	// ErrCannotReschedule возвращается, когда бронирование нельзя перенести
	// (заезд уже состоялся или статус терминальный)
	ErrCannotReschedule = errors.New("reschedule_booking: booking cannot be rescheduled")

	// ErrWindowNotBookable возвращается, когда новое окно не лежит
	// в опубликованной доступности ресурса
	ErrWindowNotBookable = errors.New("reschedule_booking: window is outside published availability")

	// ErrWindowConflict возвращается, когда новое окно пересекается с чужим бронированием
	ErrWindowConflict = errors.New("reschedule_booking: window conflicts with an existing booking")

	// ErrStartInPast возвращается при попытке перенести в прошлое
	ErrStartInPast = errors.New("reschedule_booking: new start time is in the past")

	// ErrInvalidInput возвращается при некорректных входных данных
	ErrInvalidInput = errors.New("reschedule_booking: invalid input data")

	// ErrInternal возвращается при внутренних ошибках usecase
	ErrInternal = errors.New("reschedule_booking: internal error")
)
