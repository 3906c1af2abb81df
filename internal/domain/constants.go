package domain

// Default engine values
const (
	DefaultSlotGridMinutes     = 15
	DefaultMaxLookaheadDays    = 90
	DefaultConflictSuggestions = 3
)

// Business validation constants
const (
	MinServiceDurationMinutes   = 5
	MaxServiceDurationMinutes   = 480 // 8 hours
	MaxBufferMinutes            = 240
	MaxCancellationReasonLength = 500
)

// Time format constants
const (
	TimeFormat = "15:04"      // HH:MM
	DateFormat = "2006-01-02" // YYYY-MM-DD
)

// ActiveStatuses статусы, занимающие календарь ресурса.
// Участвуют в проверке пересечений при резервировании окна.
var ActiveStatuses = []BookingStatus{
	StatusPending,
	StatusConfirmed,
	StatusCheckedIn,
}

// InactiveStatuses статусы, не блокирующие календарь
var InactiveStatuses = []BookingStatus{
	StatusCompleted,
	StatusCancelled,
	StatusNoShow,
	StatusFailed,
}
