package slotcalendar

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/m04kA/SMC-ScheduleEngine/internal/domain"
	"github.com/m04kA/SMC-ScheduleEngine/pkg/ptr"
	"github.com/m04kA/SMC-ScheduleEngine/pkg/types"
)

// dailyRules правила "открыто каждый день" в указанном окне
func dailyRules(start, end types.TimeString, bufBefore, bufAfter int) []*domain.AvailabilityRule {
	rules := make([]*domain.AvailabilityRule, 0, 7)
	for wd := time.Sunday; wd <= time.Saturday; wd++ {
		weekday := wd
		rules = append(rules, &domain.AvailabilityRule{
			Weekday:             &weekday,
			StartTime:           start,
			EndTime:             end,
			BufferBeforeMinutes: bufBefore,
			BufferAfterMinutes:  bufAfter,
			Version:             1,
		})
	}
	return rules
}

func utcDate(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestCalendar_Slots_SingleOpenDay(t *testing.T) {
	cal := New(15, 90)

	day := utcDate(2025, 10, 15)
	seq, err := cal.Slots(Params{
		Timezone:        "UTC",
		Rules:           dailyRules("09:00", "17:00", 0, 0),
		ServiceDuration: time.Hour,
		From:            day,
		To:              day,
	})
	require.NoError(t, err)

	slots := seq.Collect(0)
	require.NotEmpty(t, slots)

	// Первый слот 09:00-10:00, последний 16:00-17:00, шаг сетки 15 минут
	assert.Equal(t, time.Date(2025, 10, 15, 9, 0, 0, 0, time.UTC), slots[0].StartAt)
	assert.Equal(t, time.Date(2025, 10, 15, 10, 0, 0, 0, time.UTC), slots[0].EndAt)

	last := slots[len(slots)-1]
	assert.Equal(t, time.Date(2025, 10, 15, 16, 0, 0, 0, time.UTC), last.StartAt)
	assert.Equal(t, time.Date(2025, 10, 15, 17, 0, 0, 0, time.UTC), last.EndAt)

	// 09:00..16:00 с шагом 15 минут = 29 слотов
	assert.Len(t, slots, 29)

	for i := 1; i < len(slots); i++ {
		assert.True(t, slots[i].StartAt.After(slots[i-1].StartAt), "слоты должны быть упорядочены")
	}
}

func TestCalendar_Slots_SubtractsActiveBookings(t *testing.T) {
	cal := New(15, 90)

	day := utcDate(2025, 10, 15)
	booking := &domain.Booking{
		Status:  domain.StatusConfirmed,
		StartAt: time.Date(2025, 10, 15, 10, 0, 0, 0, time.UTC),
		EndAt:   time.Date(2025, 10, 15, 11, 0, 0, 0, time.UTC),
	}

	seq, err := cal.Slots(Params{
		Timezone:        "UTC",
		Rules:           dailyRules("09:00", "17:00", 0, 0),
		Bookings:        []*domain.Booking{booking},
		ServiceDuration: time.Hour,
		From:            day,
		To:              day,
	})
	require.NoError(t, err)

	starts := make(map[string]bool)
	for {
		slot, ok := seq.Next()
		if !ok {
			break
		}
		starts[slot.StartAt.Format("15:04")] = true
	}

	// Граничащие слоты остаются, пересекающиеся исчезают
	assert.True(t, starts["09:00"])
	assert.True(t, starts["11:00"])
	assert.False(t, starts["09:15"]) // 09:15-10:15 пересекает 10:00-11:00
	assert.False(t, starts["10:00"])
	assert.False(t, starts["10:30"])
	assert.False(t, starts["10:45"])
}

func TestCalendar_Slots_CancelledBookingDoesNotBlock(t *testing.T) {
	cal := New(15, 90)

	day := utcDate(2025, 10, 15)
	cancelled := &domain.Booking{
		Status:  domain.StatusCancelled,
		StartAt: time.Date(2025, 10, 15, 10, 0, 0, 0, time.UTC),
		EndAt:   time.Date(2025, 10, 15, 11, 0, 0, 0, time.UTC),
	}

	seq, err := cal.Slots(Params{
		Timezone:        "UTC",
		Rules:           dailyRules("09:00", "17:00", 0, 0),
		Bookings:        []*domain.Booking{cancelled},
		ServiceDuration: time.Hour,
		From:            day,
		To:              day,
	})
	require.NoError(t, err)

	slots := seq.Collect(0)
	assert.Len(t, slots, 29, "отменённое бронирование не должно блокировать слоты")
}

func TestCalendar_Slots_Buffers(t *testing.T) {
	cal := New(15, 90)

	day := utcDate(2025, 10, 15)
	// Буфер до 15 минут: первый слот не раньше 09:15.
	// Буфер после 30 минут: последний слот заканчивается не позже 16:30.
	seq, err := cal.Slots(Params{
		Timezone:        "UTC",
		Rules:           dailyRules("09:00", "17:00", 15, 30),
		ServiceDuration: time.Hour,
		From:            day,
		To:              day,
	})
	require.NoError(t, err)

	slots := seq.Collect(0)
	require.NotEmpty(t, slots)

	assert.Equal(t, time.Date(2025, 10, 15, 9, 15, 0, 0, time.UTC), slots[0].StartAt)
	last := slots[len(slots)-1]
	assert.Equal(t, time.Date(2025, 10, 15, 16, 30, 0, 0, time.UTC), last.EndAt)
}

func TestCalendar_Slots_ClosedException(t *testing.T) {
	cal := New(15, 90)

	day := utcDate(2025, 10, 15)
	seq, err := cal.Slots(Params{
		Timezone: "UTC",
		Rules:    dailyRules("09:00", "17:00", 0, 0),
		Exceptions: []*domain.AvailabilityException{
			{Date: day, Closed: true},
		},
		ServiceDuration: time.Hour,
		From:            day,
		To:              day,
	})
	require.NoError(t, err)

	assert.Empty(t, seq.Collect(0), "закрытый день не должен давать слотов")
}

func TestCalendar_Slots_OpenOverrideException(t *testing.T) {
	cal := New(15, 90)

	day := utcDate(2025, 10, 15)
	seq, err := cal.Slots(Params{
		Timezone: "UTC",
		Rules:    dailyRules("09:00", "17:00", 0, 0),
		Exceptions: []*domain.AvailabilityException{
			{
				Date:      day,
				StartTime: ptr.Ptr(types.TimeString("12:00")),
				EndTime:   ptr.Ptr(types.TimeString("14:00")),
			},
		},
		ServiceDuration: time.Hour,
		From:            day,
		To:              day,
	})
	require.NoError(t, err)

	slots := seq.Collect(0)
	require.NotEmpty(t, slots)

	// Исключение имеет приоритет над правилом: слоты только в 12:00-14:00
	assert.Equal(t, time.Date(2025, 10, 15, 12, 0, 0, 0, time.UTC), slots[0].StartAt)
	last := slots[len(slots)-1]
	assert.Equal(t, time.Date(2025, 10, 15, 14, 0, 0, 0, time.UTC), last.EndAt)
}

func TestCalendar_Slots_InvalidRange(t *testing.T) {
	cal := New(15, 30)

	from := utcDate(2025, 10, 15)

	_, err := cal.Slots(Params{
		Timezone:        "UTC",
		ServiceDuration: time.Hour,
		From:            from,
		To:              from.AddDate(0, 0, -1),
	})
	assert.ErrorIs(t, err, ErrInvalidRange)

	_, err = cal.Slots(Params{
		Timezone:        "UTC",
		ServiceDuration: time.Hour,
		From:            from,
		To:              from.AddDate(0, 0, 31),
	})
	assert.ErrorIs(t, err, ErrInvalidRange)
}

func TestCalendar_Slots_SpringForwardSkipsNonexistentHour(t *testing.T) {
	cal := New(30, 90)

	loc, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)

	// 9 марта 2025: перевод 02:00 -> 03:00, локального часа 02:xx не существует
	day := time.Date(2025, 3, 9, 0, 0, 0, 0, loc)

	seq, err := cal.Slots(Params{
		Timezone:        "America/New_York",
		Rules:           dailyRules("01:00", "05:00", 0, 0),
		ServiceDuration: 30 * time.Minute,
		From:            day,
		To:              day,
	})
	require.NoError(t, err)

	for {
		slot, ok := seq.Next()
		if !ok {
			break
		}
		localHour := slot.StartAt.In(loc).Hour()
		assert.NotEqual(t, 2, localHour, "слот не должен начинаться в пропущенном часе")
	}
}

func TestCalendar_Slots_FallBackSkipsAmbiguousHour(t *testing.T) {
	cal := New(30, 90)

	loc, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)

	// 2 ноября 2025: перевод 02:00 -> 01:00, локальный час 01:xx повторяется дважды
	day := time.Date(2025, 11, 2, 0, 0, 0, 0, loc)

	seq, err := cal.Slots(Params{
		Timezone:        "America/New_York",
		Rules:           dailyRules("00:00", "05:00", 0, 0),
		ServiceDuration: 30 * time.Minute,
		From:            day,
		To:              day,
	})
	require.NoError(t, err)

	for {
		slot, ok := seq.Next()
		if !ok {
			break
		}
		localHour := slot.StartAt.In(loc).Hour()
		assert.NotEqual(t, 1, localHour, "неоднозначное локальное время должно отклоняться, не угадываться")
	}
}

func TestCalendar_Sequence_LazyAndRestartable(t *testing.T) {
	cal := New(15, 90)

	from := utcDate(2025, 10, 13)
	to := utcDate(2025, 10, 17)

	seq, err := cal.Slots(Params{
		Timezone:        "UTC",
		Rules:           dailyRules("09:00", "17:00", 0, 0),
		ServiceDuration: time.Hour,
		From:            from,
		To:              to,
	})
	require.NoError(t, err)

	// Ранняя остановка
	firstThree := seq.Collect(3)
	require.Len(t, firstThree, 3)

	// Reset начинает сначала
	seq.Reset()
	again := seq.Collect(3)
	assert.Equal(t, firstThree, again)

	// Полный проход: 5 дней по 29 слотов
	seq.Reset()
	all := seq.Collect(0)
	assert.Len(t, all, 5*29)
}

func TestCalendar_ValidateWindow(t *testing.T) {
	cal := New(15, 90)

	params := Params{
		Timezone: "UTC",
		Rules:    dailyRules("09:00", "17:00", 0, 0),
	}

	// Окно на сетке внутри доступности
	err := cal.ValidateWindow(params,
		time.Date(2025, 10, 15, 10, 30, 0, 0, time.UTC),
		time.Date(2025, 10, 15, 11, 30, 0, 0, time.UTC),
	)
	assert.NoError(t, err)

	// Вне рабочих часов
	err = cal.ValidateWindow(params,
		time.Date(2025, 10, 15, 18, 0, 0, 0, time.UTC),
		time.Date(2025, 10, 15, 19, 0, 0, 0, time.UTC),
	)
	assert.ErrorIs(t, err, ErrWindowNotBookable)

	// Не на сетке
	err = cal.ValidateWindow(params,
		time.Date(2025, 10, 15, 10, 7, 0, 0, time.UTC),
		time.Date(2025, 10, 15, 11, 7, 0, 0, time.UTC),
	)
	assert.ErrorIs(t, err, ErrWindowNotBookable)

	// start_at >= end_at
	err = cal.ValidateWindow(params,
		time.Date(2025, 10, 15, 11, 0, 0, 0, time.UTC),
		time.Date(2025, 10, 15, 10, 0, 0, 0, time.UTC),
	)
	assert.ErrorIs(t, err, ErrInvalidRange)
}

func TestResolveLocal(t *testing.T) {
	loc, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)

	// Обычное время
	got, err := ResolveLocal(2025, time.March, 10, 12, 0, loc)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 3, 10, 12, 0, 0, 0, loc).UTC(), got)

	// Пропущенный час (spring forward)
	_, err = ResolveLocal(2025, time.March, 9, 2, 30, loc)
	assert.ErrorIs(t, err, ErrNonexistentLocalTime)

	// Повторённый час (fall back)
	_, err = ResolveLocal(2025, time.November, 2, 1, 30, loc)
	assert.ErrorIs(t, err, ErrAmbiguousLocalTime)
}
