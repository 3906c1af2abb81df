package domain

import (
	"time"

	"github.com/m04kA/SMC-ScheduleEngine/pkg/types"
)

// ResourceType тип бронируемого ресурса
type ResourceType string

const (
	ResourceTypePerson    ResourceType = "person"
	ResourceTypeRoom      ResourceType = "room"
	ResourceTypeEquipment ResourceType = "equipment"
)

// Resource represents a bookable resource. Owned by the external catalog -
// the engine only reads it.
type Resource struct {
	ID       int64
	TenantID int64
	Type     ResourceType
	Timezone string // IANA timezone, например "Europe/Moscow"
}

// Location загружает IANA-таймзону ресурса
func (r *Resource) Location() (*time.Location, error) {
	return time.LoadLocation(r.Timezone)
}

// AvailabilityRule правило повторяющейся доступности ресурса.
// Время начала/конца задаётся в локальном времени ресурса и конвертируется
// в UTC на каждую конкретную дату. Правила версионируются: обновление
// создаёт новую версию, старая помечается superseded_at, но не изменяется -
// слоты, рассчитанные в прошлом, остаются объяснимыми.
type AvailabilityRule struct {
	ID         int64
	TenantID   int64
	ResourceID int64

	Weekday  *time.Weekday // nil, если правило задано диапазоном дат
	DateFrom *time.Time    // опциональная привязка к диапазону дат
	DateTo   *time.Time

	StartTime types.TimeString // локальное время ресурса
	EndTime   types.TimeString

	BufferBeforeMinutes int
	BufferAfterMinutes  int

	Version      int
	SupersededAt *time.Time
	CreatedAt    time.Time
}

// IsCurrent возвращает true, если правило не заменено новой версией
func (r *AvailabilityRule) IsCurrent() bool {
	return r.SupersededAt == nil
}

// AppliesTo проверяет, действует ли правило на указанную дату
// (дата в локальной таймзоне ресурса)
func (r *AvailabilityRule) AppliesTo(date time.Time) bool {
	if r.DateFrom != nil && date.Before(truncateToDay(*r.DateFrom)) {
		return false
	}
	if r.DateTo != nil && date.After(truncateToDay(*r.DateTo)) {
		return false
	}
	if r.Weekday != nil && date.Weekday() != *r.Weekday {
		return false
	}
	return true
}

// AvailabilityException исключение для конкретной даты.
// Всегда имеет приоритет над повторяющимися правилами.
type AvailabilityException struct {
	ID         int64
	TenantID   int64
	ResourceID int64
	Date       time.Time // дата в локальной таймзоне ресурса, без времени

	// Closed = true: ресурс закрыт весь день.
	// Closed = false: открыт только в окне [StartTime, EndTime).
	Closed    bool
	StartTime *types.TimeString
	EndTime   *types.TimeString

	CreatedAt time.Time
}

func truncateToDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
