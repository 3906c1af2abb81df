package allocator

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/m04kA/SMC-ScheduleEngine/internal/domain"
	bookingRepo "github.com/m04kA/SMC-ScheduleEngine/internal/infra/storage/booking"
	"github.com/m04kA/SMC-ScheduleEngine/internal/service/slotcalendar"
)

// Allocator отвечает за атомарное резервирование окон ресурса.
// Стратегия пессимистичная: advisory-блокировка ресурса на время
// транзакции, затем выборка пересечений с FOR UPDATE. Вызывать Reserve
// можно только внутри транзакции - вне её LockResource вернёт ошибку.
type Allocator struct {
	bookingRepo BookingRepository
	logger      Logger
}

// New создает новый аллокатор интервалов
func New(bookingRepo BookingRepository, logger Logger) *Allocator {
	return &Allocator{
		bookingRepo: bookingRepo,
		logger:      logger,
	}
}

// Reserve резервирует окно [startAt, endAt) ресурса. Из двух конкурентных
// попыток на пересекающиеся окна выигрывает ровно одна: вторая ждёт
// блокировку ресурса и увидит уже созданную запись.
//
// excludeID исключает бронирование из проверки пересечений - нужен при
// переносе, чтобы старое бронирование не конфликтовало само с собой.
//
// При конфликте возвращает пересекающиеся бронирования и ErrWindowConflict.
func (a *Allocator) Reserve(
	ctx context.Context,
	tenantID, resourceID int64,
	startAt, endAt time.Time,
	excludeID *uuid.UUID,
) ([]*domain.Booking, error) {
	if err := a.bookingRepo.LockResource(ctx, tenantID, resourceID); err != nil {
		if errors.Is(err, bookingRepo.ErrLockTimeout) {
			a.logger.Warn("Reserve: lock wait timeout for resource=%d tenant=%d", resourceID, tenantID)
			return nil, ErrLockTimeout
		}
		a.logger.Error("Reserve: failed to lock resource=%d tenant=%d: %v", resourceID, tenantID, err)
		return nil, fmt.Errorf("%w: Reserve - lock resource: %v", ErrInternal, err)
	}

	conflicts, err := a.bookingRepo.GetActiveInWindow(ctx, tenantID, resourceID, startAt, endAt, excludeID)
	if err != nil {
		if errors.Is(err, bookingRepo.ErrLockTimeout) {
			a.logger.Warn("Reserve: lock wait timeout fetching overlaps for resource=%d", resourceID)
			return nil, ErrLockTimeout
		}
		a.logger.Error("Reserve: failed to fetch overlapping bookings for resource=%d: %v", resourceID, err)
		return nil, fmt.Errorf("%w: Reserve - fetch overlapping bookings: %v", ErrInternal, err)
	}

	if len(conflicts) > 0 {
		a.logger.Warn("Reserve: window [%s, %s) on resource=%d conflicts with %d booking(s)",
			startAt.Format(time.RFC3339), endAt.Format(time.RFC3339), resourceID, len(conflicts))
		return conflicts, ErrWindowConflict
	}

	a.logger.Info("Reserve: window [%s, %s) on resource=%d is free",
		startAt.Format(time.RFC3339), endAt.Format(time.RFC3339), resourceID)
	return nil, nil
}

// Suggest подбирает до limit свободных слотов, ближайших к запрошенному
// началу. Слоты берутся из календаря с учётом существующих бронирований,
// сортировка - по расстоянию от requestedStart, при равенстве раньше тот,
// что раньше по времени.
func Suggest(seq *slotcalendar.Sequence, requestedStart time.Time, limit int) []domain.Slot {
	if limit <= 0 {
		return nil
	}

	slots := seq.Collect(0)
	sort.SliceStable(slots, func(i, j int) bool {
		di := absDuration(slots[i].StartAt.Sub(requestedStart))
		dj := absDuration(slots[j].StartAt.Sub(requestedStart))
		if di != dj {
			return di < dj
		}
		return slots[i].StartAt.Before(slots[j].StartAt)
	})

	if len(slots) > limit {
		slots = slots[:limit]
	}
	return slots
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}
