package allocator

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/m04kA/SMC-ScheduleEngine/internal/domain"
	bookingRepo "github.com/m04kA/SMC-ScheduleEngine/internal/infra/storage/booking"
	"github.com/m04kA/SMC-ScheduleEngine/internal/service/slotcalendar"
	"github.com/m04kA/SMC-ScheduleEngine/pkg/types"
)

type nopLogger struct{}

func (nopLogger) Info(string, ...interface{})  {}
func (nopLogger) Warn(string, ...interface{})  {}
func (nopLogger) Error(string, ...interface{}) {}

// fakeBookingRepo имитация репозитория: хранит бронирования в памяти
// и считает захваты блокировки ресурса
type fakeBookingRepo struct {
	bookings  []*domain.Booking
	lockCalls int
	lockErr   error
}

func (f *fakeBookingRepo) LockResource(_ context.Context, _, _ int64) error {
	f.lockCalls++
	return f.lockErr
}

func (f *fakeBookingRepo) GetActiveInWindow(
	_ context.Context,
	tenantID, resourceID int64,
	startAt, endAt time.Time,
	excludeID *uuid.UUID,
) ([]*domain.Booking, error) {
	var out []*domain.Booking
	for _, b := range f.bookings {
		if b.TenantID != tenantID || b.ResourceID != resourceID {
			continue
		}
		if !b.IsActive() {
			continue
		}
		if excludeID != nil && b.ID == *excludeID {
			continue
		}
		if b.Overlaps(startAt, endAt) {
			out = append(out, b)
		}
	}
	return out, nil
}

func mkBooking(resourceID int64, status domain.BookingStatus, start, end time.Time) *domain.Booking {
	return &domain.Booking{
		ID:         uuid.New(),
		TenantID:   1,
		ResourceID: resourceID,
		Status:     status,
		StartAt:    start,
		EndAt:      end,
	}
}

func TestAllocator_Reserve_FreeWindow(t *testing.T) {
	repo := &fakeBookingRepo{}
	alloc := New(repo, nopLogger{})

	start := time.Date(2025, 10, 15, 10, 0, 0, 0, time.UTC)
	conflicts, err := alloc.Reserve(context.Background(), 1, 7, start, start.Add(time.Hour), nil)

	require.NoError(t, err)
	assert.Empty(t, conflicts)
	assert.Equal(t, 1, repo.lockCalls, "ресурс должен быть заблокирован до проверки пересечений")
}

func TestAllocator_Reserve_Conflict(t *testing.T) {
	start := time.Date(2025, 10, 15, 10, 0, 0, 0, time.UTC)
	existing := mkBooking(7, domain.StatusConfirmed, start, start.Add(time.Hour))

	repo := &fakeBookingRepo{bookings: []*domain.Booking{existing}}
	alloc := New(repo, nopLogger{})

	// Частичное пересечение
	conflicts, err := alloc.Reserve(context.Background(), 1, 7, start.Add(30*time.Minute), start.Add(90*time.Minute), nil)

	assert.ErrorIs(t, err, ErrWindowConflict)
	require.Len(t, conflicts, 1)
	assert.Equal(t, existing.ID, conflicts[0].ID)
}

func TestAllocator_Reserve_AdjacentWindowsDoNotConflict(t *testing.T) {
	start := time.Date(2025, 10, 15, 10, 0, 0, 0, time.UTC)
	existing := mkBooking(7, domain.StatusConfirmed, start, start.Add(time.Hour))

	repo := &fakeBookingRepo{bookings: []*domain.Booking{existing}}
	alloc := New(repo, nopLogger{})

	// Полуоткрытые интервалы: конец одного равен началу другого
	conflicts, err := alloc.Reserve(context.Background(), 1, 7, start.Add(time.Hour), start.Add(2*time.Hour), nil)

	require.NoError(t, err)
	assert.Empty(t, conflicts)
}

func TestAllocator_Reserve_InactiveBookingDoesNotConflict(t *testing.T) {
	start := time.Date(2025, 10, 15, 10, 0, 0, 0, time.UTC)
	cancelled := mkBooking(7, domain.StatusCancelled, start, start.Add(time.Hour))

	repo := &fakeBookingRepo{bookings: []*domain.Booking{cancelled}}
	alloc := New(repo, nopLogger{})

	conflicts, err := alloc.Reserve(context.Background(), 1, 7, start, start.Add(time.Hour), nil)

	require.NoError(t, err)
	assert.Empty(t, conflicts)
}

func TestAllocator_Reserve_ExcludeIDForReschedule(t *testing.T) {
	start := time.Date(2025, 10, 15, 10, 0, 0, 0, time.UTC)
	own := mkBooking(7, domain.StatusConfirmed, start, start.Add(time.Hour))

	repo := &fakeBookingRepo{bookings: []*domain.Booking{own}}
	alloc := New(repo, nopLogger{})

	// Перенос на пересекающееся окно: своё бронирование исключается
	conflicts, err := alloc.Reserve(context.Background(), 1, 7, start.Add(30*time.Minute), start.Add(90*time.Minute), &own.ID)

	require.NoError(t, err)
	assert.Empty(t, conflicts)
}

func TestAllocator_Reserve_LockFailure(t *testing.T) {
	repo := &fakeBookingRepo{lockErr: errors.New("not in transaction")}
	alloc := New(repo, nopLogger{})

	start := time.Date(2025, 10, 15, 10, 0, 0, 0, time.UTC)
	_, err := alloc.Reserve(context.Background(), 1, 7, start, start.Add(time.Hour), nil)

	assert.ErrorIs(t, err, ErrInternal)
}

func TestAllocator_Reserve_LockTimeout(t *testing.T) {
	repo := &fakeBookingRepo{lockErr: bookingRepo.ErrLockTimeout}
	alloc := New(repo, nopLogger{})

	// Истёкший lock_timeout - не внутренняя ошибка, а сигнал повторить позже
	start := time.Date(2025, 10, 15, 10, 0, 0, 0, time.UTC)
	_, err := alloc.Reserve(context.Background(), 1, 7, start, start.Add(time.Hour), nil)

	assert.ErrorIs(t, err, ErrLockTimeout)
	assert.NotErrorIs(t, err, ErrInternal)
}

func TestSuggest_RanksByDistanceFromRequestedStart(t *testing.T) {
	cal := slotcalendar.New(15, 90)

	day := time.Date(2025, 10, 15, 0, 0, 0, 0, time.UTC)
	weekday := day.Weekday()
	booked := mkBooking(7, domain.StatusConfirmed,
		time.Date(2025, 10, 15, 10, 0, 0, 0, time.UTC),
		time.Date(2025, 10, 15, 11, 0, 0, 0, time.UTC),
	)

	seq, err := cal.Slots(slotcalendar.Params{
		Timezone: "UTC",
		Rules: []*domain.AvailabilityRule{{
			Weekday:   &weekday,
			StartTime: types.TimeString("09:00"),
			EndTime:   types.TimeString("17:00"),
			Version:   1,
		}},
		Bookings:        []*domain.Booking{booked},
		ServiceDuration: time.Hour,
		From:            day,
		To:              day,
	})
	require.NoError(t, err)

	// Запрошенное окно 10:00-11:00 занято; ближайшие свободные старты - 09:00 и 11:00
	suggestions := Suggest(seq, time.Date(2025, 10, 15, 10, 0, 0, 0, time.UTC), 3)
	require.Len(t, suggestions, 3)

	first := suggestions[0].StartAt
	second := suggestions[1].StartAt
	assert.Equal(t, time.Date(2025, 10, 15, 9, 0, 0, 0, time.UTC), first,
		"при равном расстоянии предпочтение более раннему слоту")
	assert.Equal(t, time.Date(2025, 10, 15, 11, 0, 0, 0, time.UTC), second)
}

func TestSuggest_ZeroLimit(t *testing.T) {
	cal := slotcalendar.New(15, 90)
	day := time.Date(2025, 10, 15, 0, 0, 0, 0, time.UTC)

	seq, err := cal.Slots(slotcalendar.Params{
		Timezone:        "UTC",
		ServiceDuration: time.Hour,
		From:            day,
		To:              day,
	})
	require.NoError(t, err)

	assert.Nil(t, Suggest(seq, day, 0))
}
