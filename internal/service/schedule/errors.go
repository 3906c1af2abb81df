package schedule

import "errors"

var (
	// ErrResourceNotFound ресурс не найден в каталоге
	ErrResourceNotFound = errors.New("service.schedule: resource not found")

	// ErrExceptionNotFound исключение на указанную дату не найдено
	ErrExceptionNotFound = errors.New("service.schedule: availability exception not found")

	// ErrInvalidInput невалидные входные данные
	ErrInvalidInput = errors.New("service.schedule: invalid input")

	// ErrInternal внутренняя ошибка сервиса
	ErrInternal = errors.New("service.schedule: internal error")
)
