package apply_payment_result

import "errors"

var (
	// ErrBookingNotFound возвращается, когда бронирование не найдено
	// или принадлежит другому тенанту
	ErrBookingNotFound = errors.New("apply_payment_result: booking not found")

	// ErrNotAwaitingPayment возвращается, когда бронирование уже не ждёт оплату
	ErrNotAwaitingPayment = errors.New("apply_payment_result: booking is not awaiting payment")

	// ErrInvalidInput возвращается при некорректных входных данных
	ErrInvalidInput = errors.New("apply_payment_result: invalid input data")

	// ErrInternal возвращается при внутренних ошибках usecase
	ErrInternal = errors.New("apply_payment_result: internal error")
)
