package reschedule_booking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/m04kA/SMC-ScheduleEngine/internal/domain"
	bookingRepo "github.com/m04kA/SMC-ScheduleEngine/internal/infra/storage/booking"
	catalogClient "github.com/m04kA/SMC-ScheduleEngine/internal/integrations/catalogservice"
	"github.com/m04kA/SMC-ScheduleEngine/internal/service/allocator"
	"github.com/m04kA/SMC-ScheduleEngine/internal/service/slotcalendar"
	"github.com/m04kA/SMC-ScheduleEngine/pkg/ptr"
)

// reasonRescheduled причина отмены исходного бронирования при переносе
const reasonRescheduled = "rescheduled"

// Request модель запроса на перенос бронирования
type Request struct {
	TenantID          int64     // ID арендатора
	BookingID         uuid.UUID // ID переносимого бронирования
	NewStartAt        time.Time // Новое начало окна, UTC
	ClientGeneratedID uuid.UUID // Ключ идемпотентности новой записи
}

// Response модель ответа с новым бронированием
type Response struct {
	ID              uuid.UUID  // ID нового бронирования
	RescheduledFrom *uuid.UUID // ID исходного бронирования
	StartAt         time.Time
	EndAt           time.Time
	Status          string
	Replayed        bool // true - перенос с этим ключом уже выполнялся
}

// UseCase use case переноса бронирования.
//
// Перенос не изменяет исходную запись, а создаёт новую со ссылкой
// rescheduled_from. Новое окно резервируется ДО отмены старого - если
// новое окно занять не удалось, исходное бронирование остаётся в силе.
type UseCase struct {
	bookingRepo   BookingRepository
	scheduleRepo  ScheduleRepository
	outboxRepo    OutboxRepository
	alloc         IntervalAllocator
	calendar      SlotCalendar
	catalogClient CatalogServiceClient
	txManager     TransactionManager
	timeProvider  TimeProvider
	logger        Logger
}

// NewUseCase создает новый экземпляр use case
func NewUseCase(
	bookingRepo BookingRepository,
	scheduleRepo ScheduleRepository,
	outboxRepo OutboxRepository,
	alloc IntervalAllocator,
	calendar SlotCalendar,
	catalogClient CatalogServiceClient,
	txManager TransactionManager,
	logger Logger,
) *UseCase {
	return &UseCase{
		bookingRepo:   bookingRepo,
		scheduleRepo:  scheduleRepo,
		outboxRepo:    outboxRepo,
		alloc:         alloc,
		calendar:      calendar,
		catalogClient: catalogClient,
		txManager:     txManager,
		timeProvider:  &RealTimeProvider{},
		logger:        logger,
	}
}

// Execute выполняет use case переноса бронирования
func (uc *UseCase) Execute(ctx context.Context, req *Request) (*Response, error) {
	uc.logger.Info("RescheduleBooking: tenant=%d, booking=%s, newStart=%s",
		req.TenantID, req.BookingID, req.NewStartAt.Format(time.RFC3339))

	if err := validateRequest(req); err != nil {
		uc.logger.Warn("RescheduleBooking: validation failed: %v", err)
		return nil, err
	}

	now := uc.timeProvider.Now().UTC()
	newStartAt := req.NewStartAt.UTC()

	if newStartAt.Before(now) {
		uc.logger.Warn("RescheduleBooking: newStart=%s is in the past", newStartAt.Format(time.RFC3339))
		return nil, ErrStartInPast
	}

	var (
		result   *domain.Booking
		replayed bool
	)

	err := uc.txManager.DoSerializable(ctx, func(txCtx context.Context) error {
		// 1. Загружаем исходное бронирование с блокировкой
		original, err := uc.bookingRepo.GetByID(txCtx, req.BookingID)
		if err != nil {
			if errors.Is(err, bookingRepo.ErrBookingNotFound) {
				uc.logger.Warn("RescheduleBooking: booking id=%s not found", req.BookingID)
				return ErrBookingNotFound
			}
			uc.logger.Error("RescheduleBooking: failed to get booking id=%s: %v", req.BookingID, err)
			return fmt.Errorf("%w: failed to get booking: %v", ErrInternal, err)
		}
		if original.TenantID != req.TenantID {
			uc.logger.Warn("RescheduleBooking: booking id=%s belongs to another tenant", req.BookingID)
			return ErrBookingNotFound
		}

		// 2. Повтор с тем же ключом идемпотентности возвращает уже созданную
		// запись. Проверяется ДО статуса исходного бронирования: после первого
		// переноса оно уже отменено.
		existing, err := uc.bookingRepo.GetByClientGeneratedID(txCtx, req.TenantID, req.ClientGeneratedID)
		if err != nil && !errors.Is(err, bookingRepo.ErrBookingNotFound) {
			uc.logger.Error("RescheduleBooking: failed to check clientId=%s: %v", req.ClientGeneratedID, err)
			return fmt.Errorf("%w: failed to check client id: %v", ErrInternal, err)
		}
		if existing != nil {
			result = existing
			replayed = true
			return nil
		}

		if !original.CanBeRescheduled() {
			uc.logger.Warn("RescheduleBooking: booking id=%s in status=%s cannot be rescheduled",
				req.BookingID, original.Status)
			return ErrCannotReschedule
		}

		duration := original.EndAt.Sub(original.StartAt)
		newEndAt := newStartAt.Add(duration)

		// 3. Проверяем новое окно по опубликованной доступности
		resource, err := uc.catalogClient.GetResource(txCtx, req.TenantID, original.ResourceID)
		if err != nil {
			if errors.Is(err, catalogClient.ErrResourceNotFound) {
				uc.logger.Warn("RescheduleBooking: resource id=%d not found", original.ResourceID)
				return fmt.Errorf("%w: resource not found", ErrInternal)
			}
			uc.logger.Error("RescheduleBooking: failed to get resource id=%d: %v", original.ResourceID, err)
			return fmt.Errorf("%w: failed to get resource: %v", ErrInternal, err)
		}

		calParams, err := uc.loadCalendarParams(txCtx, req.TenantID, original.ResourceID,
			resource.Timezone, newStartAt, duration)
		if err != nil {
			return err
		}
		if err := uc.calendar.ValidateWindow(calParams, newStartAt, newEndAt); err != nil {
			switch {
			case errors.Is(err, slotcalendar.ErrWindowNotBookable):
				return ErrWindowNotBookable
			case errors.Is(err, slotcalendar.ErrInvalidRange):
				return fmt.Errorf("%w: %v", ErrInvalidInput, err)
			default:
				return fmt.Errorf("%w: calendar error: %v", ErrInternal, err)
			}
		}

		// 4. Резервируем новое окно, исключая исходное бронирование из проверки -
		// перенос на пересекающееся со старым окно допустим
		if _, err := uc.alloc.Reserve(txCtx, req.TenantID, original.ResourceID,
			newStartAt, newEndAt, &original.ID); err != nil {
			if errors.Is(err, allocator.ErrWindowConflict) {
				uc.logger.Warn("RescheduleBooking: new window conflicts for booking id=%s", req.BookingID)
				return ErrWindowConflict
			}
			uc.logger.Error("RescheduleBooking: allocator error: %v", err)
			return fmt.Errorf("%w: allocator error: %v", ErrInternal, err)
		}

		// 5. Создаем новую запись. Статус наследуется: неоплаченное остаётся
		// неоплаченным, подтвержденное - подтвержденным.
		replacement := &domain.Booking{
			TenantID:          original.TenantID,
			ResourceID:        original.ResourceID,
			ServiceID:         original.ServiceID,
			CustomerID:        original.CustomerID,
			StartAt:           newStartAt,
			EndAt:             newEndAt,
			Status:            original.Status,
			ClientGeneratedID: req.ClientGeneratedID,
			RescheduledFrom:   &original.ID,
		}

		created, err := uc.bookingRepo.Create(txCtx, replacement)
		if err != nil {
			if errors.Is(err, bookingRepo.ErrDuplicateClientID) {
				dup, readErr := uc.bookingRepo.GetByClientGeneratedID(txCtx, req.TenantID, req.ClientGeneratedID)
				if readErr != nil {
					return fmt.Errorf("%w: failed to read duplicate booking: %v", ErrInternal, readErr)
				}
				result = dup
				replayed = true
				return nil
			}
			uc.logger.Error("RescheduleBooking: failed to create replacement: %v", err)
			return fmt.Errorf("%w: failed to create replacement: %v", ErrInternal, err)
		}

		// 6. Старое бронирование отменяется только ПОСЛЕ успешного резервирования нового
		if err := uc.bookingRepo.CancelIf(txCtx, original.ID, original.Status, reasonRescheduled); err != nil {
			uc.logger.Error("RescheduleBooking: failed to cancel original id=%s: %v", original.ID, err)
			return fmt.Errorf("%w: failed to cancel original booking: %v", ErrInternal, err)
		}

		// 7. События: перенос для новой записи, отмена для старой
		prevStatus := original.Status
		rescheduledEvent, err := domain.NewBookingEvent(domain.EventBookingRescheduled, created, nil, nil)
		if err != nil {
			return fmt.Errorf("%w: failed to build rescheduled event: %v", ErrInternal, err)
		}
		if err := uc.outboxRepo.Append(txCtx, rescheduledEvent); err != nil {
			return fmt.Errorf("%w: failed to append rescheduled event: %v", ErrInternal, err)
		}

		cancelled := *original
		cancelled.Status = domain.StatusCancelled
		cancelled.CancellationReason = ptr.Ptr(reasonRescheduled)
		cancelledEvent, err := domain.NewBookingEvent(domain.EventBookingCancelled, &cancelled, &prevStatus, ptr.Ptr(reasonRescheduled))
		if err != nil {
			return fmt.Errorf("%w: failed to build cancelled event: %v", ErrInternal, err)
		}
		if err := uc.outboxRepo.Append(txCtx, cancelledEvent); err != nil {
			return fmt.Errorf("%w: failed to append cancelled event: %v", ErrInternal, err)
		}

		result = created
		return nil
	})
	if err != nil {
		return nil, err
	}

	uc.logger.Info("RescheduleBooking: booking id=%s rescheduled to id=%s", req.BookingID, result.ID)
	return &Response{
		ID:              result.ID,
		RescheduledFrom: result.RescheduledFrom,
		StartAt:         result.StartAt,
		EndAt:           result.EndAt,
		Status:          string(result.Status),
		Replayed:        replayed,
	}, nil
}

// loadCalendarParams загружает правила и исключения для проверки нового окна
func (uc *UseCase) loadCalendarParams(
	ctx context.Context,
	tenantID, resourceID int64,
	timezone string,
	startAt time.Time,
	duration time.Duration,
) (slotcalendar.Params, error) {
	rules, err := uc.scheduleRepo.GetCurrentRules(ctx, tenantID, resourceID)
	if err != nil {
		uc.logger.Error("RescheduleBooking: failed to fetch rules: %v", err)
		return slotcalendar.Params{}, fmt.Errorf("%w: failed to fetch rules: %v", ErrInternal, err)
	}

	exceptions, err := uc.scheduleRepo.GetExceptionsInRange(ctx, tenantID, resourceID,
		startAt.AddDate(0, 0, -1), startAt.AddDate(0, 0, 1))
	if err != nil {
		uc.logger.Error("RescheduleBooking: failed to fetch exceptions: %v", err)
		return slotcalendar.Params{}, fmt.Errorf("%w: failed to fetch exceptions: %v", ErrInternal, err)
	}

	return slotcalendar.Params{
		Timezone:        timezone,
		Rules:           rules,
		Exceptions:      exceptions,
		ServiceDuration: duration,
		From:            startAt,
		To:              startAt,
	}, nil
}

// validateRequest валидирует входные данные запроса
func validateRequest(req *Request) error {
	if req.TenantID <= 0 {
		return fmt.Errorf("%w: tenantID must be positive", ErrInvalidInput)
	}
	if req.BookingID == uuid.Nil {
		return fmt.Errorf("%w: bookingID is required", ErrInvalidInput)
	}
	if req.NewStartAt.IsZero() {
		return fmt.Errorf("%w: newStartAt is required", ErrInvalidInput)
	}
	if req.ClientGeneratedID == uuid.Nil {
		return fmt.Errorf("%w: clientGeneratedId is required", ErrInvalidInput)
	}
	return nil
}
