package bookings

import "errors"

var (
	// ErrBookingNotFound бронирование не найдено или принадлежит другому арендатору
	ErrBookingNotFound = errors.New("service.bookings: booking not found")

	// ErrInvalidTransition переход статуса недопустим для текущего состояния
	ErrInvalidTransition = errors.New("service.bookings: status transition is not allowed")

	// ErrTooEarlyForNoShow неявку можно зафиксировать только после начала окна
	ErrTooEarlyForNoShow = errors.New("service.bookings: no-show cannot be recorded before the booking start")

	// ErrInvalidInput невалидные входные данные
	ErrInvalidInput = errors.New("service.bookings: invalid input")

	// ErrInternal внутренняя ошибка сервиса
	ErrInternal = errors.New("service.bookings: internal error")
)
