package domain

import (
	"time"

	"github.com/google/uuid"
)

// BookingStatus represents the status of a booking
type BookingStatus string

const (
	StatusPending   BookingStatus = "pending"
	StatusConfirmed BookingStatus = "confirmed"
	StatusCheckedIn BookingStatus = "checked_in"
	StatusCompleted BookingStatus = "completed"
	StatusCancelled BookingStatus = "cancelled"
	StatusNoShow    BookingStatus = "no_show"
	StatusFailed    BookingStatus = "failed"
)

// statusPrecedence порядок приоритета статусов. Используется двумя способами:
// как направление state machine (статус движется только вверх по приоритету)
// и как tie-break при гонке конкурентных обновлений одного бронирования -
// побеждает статус с большим приоритетом.
var statusPrecedence = map[BookingStatus]int{
	StatusFailed:    0,
	StatusPending:   1,
	StatusConfirmed: 2,
	StatusCheckedIn: 3,
	StatusCompleted: 4,
	StatusNoShow:    5,
	StatusCancelled: 6,
}

// Precedence возвращает приоритет статуса. Неизвестный статус имеет приоритет -1.
func (s BookingStatus) Precedence() int {
	p, ok := statusPrecedence[s]
	if !ok {
		return -1
	}
	return p
}

// IsValid проверяет, что статус известен системе
func (s BookingStatus) IsValid() bool {
	_, ok := statusPrecedence[s]
	return ok
}

// allowedTransitions явный список допустимых переходов state machine.
// Приоритет отсекает движение "назад", этот список отсекает перескоки
// (например pending -> completed минуя confirmed).
var allowedTransitions = map[BookingStatus][]BookingStatus{
	StatusPending:   {StatusConfirmed, StatusCancelled, StatusFailed},
	StatusConfirmed: {StatusCheckedIn, StatusCancelled, StatusNoShow},
	StatusCheckedIn: {StatusCompleted, StatusNoShow},
	// completed, cancelled, no_show, failed - терминальные
}

// CanTransitionTo проверяет допустимость перехода статуса
func (s BookingStatus) CanTransitionTo(next BookingStatus) bool {
	for _, allowed := range allowedTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// IsTerminal возвращает true для терминальных статусов
func (s BookingStatus) IsTerminal() bool {
	return len(allowedTransitions[s]) == 0 && s.IsValid()
}

// Booking represents a reservation of a resource time window
type Booking struct {
	ID                uuid.UUID
	TenantID          int64
	ResourceID        int64
	ServiceID         int64
	CustomerID        int64
	StartAt           time.Time // UTC
	EndAt             time.Time // UTC
	Status            BookingStatus
	ClientGeneratedID uuid.UUID  // ключ идемпотентности, генерируется клиентом
	RescheduledFrom   *uuid.UUID // ссылка на бронирование, которое это заменило

	CancellationReason *string
	CancelledAt        *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// IsActive returns true if the booking occupies the resource calendar
// (participates in overlap checking)
func (b *Booking) IsActive() bool {
	return b.Status == StatusPending ||
		b.Status == StatusConfirmed ||
		b.Status == StatusCheckedIn
}

// CanBeCancelled returns true if the booking can be cancelled
func (b *Booking) CanBeCancelled() bool {
	return b.Status.CanTransitionTo(StatusCancelled)
}

// CanBeRescheduled returns true if a new window can be allocated in place of this one
func (b *Booking) CanBeRescheduled() bool {
	return b.Status == StatusPending || b.Status == StatusConfirmed
}

// Overlaps проверяет пересечение бронирования с окном [start, end).
// Полуоткрытые интервалы: бронирования, граничащие по времени, не пересекаются.
func (b *Booking) Overlaps(start, end time.Time) bool {
	return b.StartAt.Before(end) && start.Before(b.EndAt)
}

// ResourceBookingsFilter фильтр для получения бронирований ресурса
type ResourceBookingsFilter struct {
	TenantID        int64
	ResourceID      int64
	StartAt         *time.Time     // Начало периода (опционально)
	EndAt           *time.Time     // Конец периода (опционально)
	Status          *BookingStatus // Фильтр по статусу (опционально)
	IncludeInactive bool           // Включать ли неактивные бронирования
}
