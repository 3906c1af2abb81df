package domain

import "time"

// Slot represents a bookable time window, aligned to the slot grid.
// Both instants are UTC.
type Slot struct {
	StartAt time.Time
	EndAt   time.Time
}

// Duration возвращает длительность слота
func (s Slot) Duration() time.Duration {
	return s.EndAt.Sub(s.StartAt)
}

// Overlaps проверяет пересечение двух полуоткрытых интервалов
func (s Slot) Overlaps(other Slot) bool {
	return s.StartAt.Before(other.EndAt) && other.StartAt.Before(s.EndAt)
}

// Contains проверяет, что окно [start, end) лежит целиком внутри слота
func (s Slot) Contains(start, end time.Time) bool {
	return !start.Before(s.StartAt) && !end.After(s.EndAt)
}
