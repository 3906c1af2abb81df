package slotcalendar

import "errors"

var (
	// ErrInvalidRange возвращается, когда конец диапазона раньше начала
	// или диапазон превышает максимальную глубину просмотра
	ErrInvalidRange = errors.New("slotcalendar: invalid date range")

	// ErrUnknownTimezone возвращается при некорректной таймзоне ресурса
	ErrUnknownTimezone = errors.New("slotcalendar: unknown resource timezone")

	// ErrNonexistentLocalTime возвращается, когда локальное время попадает
	// в пропущенный час перевода времени (spring forward)
	ErrNonexistentLocalTime = errors.New("slotcalendar: local time does not exist on this date")

	// ErrAmbiguousLocalTime возвращается, когда локальное время попадает
	// в повторённый час перевода времени (fall back)
	ErrAmbiguousLocalTime = errors.New("slotcalendar: local time is ambiguous on this date")

	// ErrWindowNotBookable возвращается, когда запрошенное окно не лежит
	// в опубликованной доступности ресурса
	ErrWindowNotBookable = errors.New("slotcalendar: requested window is outside published availability")

	// ErrInvalidRule возвращается при некорректном правиле доступности
	ErrInvalidRule = errors.New("slotcalendar: invalid availability rule")
)
