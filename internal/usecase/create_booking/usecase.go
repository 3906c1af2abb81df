package create_booking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/m04kA/SMC-ScheduleEngine/internal/domain"
	bookingRepo "github.com/m04kA/SMC-ScheduleEngine/internal/infra/storage/booking"
	catalogClient "github.com/m04kA/SMC-ScheduleEngine/internal/integrations/catalogservice"
	"github.com/m04kA/SMC-ScheduleEngine/internal/service/allocator"
	"github.com/m04kA/SMC-ScheduleEngine/internal/service/slotcalendar"
)

// UseCase use case создания бронирования.
//
// Создание идемпотентно по (tenantId, clientGeneratedId): повторный запрос
// с тем же ключом возвращает исходное бронирование, даже если остальные
// параметры отличаются. Конкурентные дубли сериализуются advisory-блокировкой
// ключа идемпотентности, уникальный индекс в БД - последний рубеж.
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

	suggestionLimit  int
	idempLockTimeout time.Duration
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
	suggestionLimit int,
	idempLockTimeout time.Duration,
	logger Logger,
) *UseCase {
	if suggestionLimit <= 0 {
		suggestionLimit = domain.DefaultConflictSuggestions
	}
	return &UseCase{
		bookingRepo:      bookingRepo,
		scheduleRepo:     scheduleRepo,
		outboxRepo:       outboxRepo,
		alloc:            alloc,
		calendar:         calendar,
		catalogClient:    catalogClient,
		txManager:        txManager,
		timeProvider:     &RealTimeProvider{},
		logger:           logger,
		suggestionLimit:  suggestionLimit,
		idempLockTimeout: idempLockTimeout,
	}
}

// Execute выполняет use case создания бронирования
func (uc *UseCase) Execute(ctx context.Context, req *Request) (*Response, error) {
	uc.logger.Info("CreateBooking: tenant=%d, resource=%d, service=%d, customer=%d, start=%s, clientId=%s",
		req.TenantID, req.ResourceID, req.ServiceID, req.CustomerID,
		req.StartAt.Format(time.RFC3339), req.ClientGeneratedID)

	// 1. Валидация входных данных
	if err := validateRequest(req); err != nil {
		uc.logger.Warn("CreateBooking: validation failed: %v", err)
		return nil, err
	}

	now := uc.timeProvider.Now().UTC()
	startAt := req.StartAt.UTC()

	if err := validateStartAt(startAt, now); err != nil {
		uc.logger.Warn("CreateBooking: start=%s is in the past", startAt.Format(time.RFC3339))
		return nil, err
	}

	// 2. Загружаем ресурс, услугу и клиента из каталога
	resource, err := uc.catalogClient.GetResource(ctx, req.TenantID, req.ResourceID)
	if err != nil {
		if errors.Is(err, catalogClient.ErrResourceNotFound) {
			uc.logger.Warn("CreateBooking: resource id=%d not found", req.ResourceID)
			return nil, ErrResourceNotFound
		}
		uc.logger.Error("CreateBooking: failed to get resource id=%d: %v", req.ResourceID, err)
		return nil, fmt.Errorf("%w: failed to get resource: %v", ErrInternal, err)
	}

	service, err := uc.catalogClient.GetService(ctx, req.TenantID, req.ServiceID)
	if err != nil {
		if errors.Is(err, catalogClient.ErrServiceNotFound) {
			uc.logger.Warn("CreateBooking: service id=%d not found", req.ServiceID)
			return nil, ErrServiceNotFound
		}
		uc.logger.Error("CreateBooking: failed to get service id=%d: %v", req.ServiceID, err)
		return nil, fmt.Errorf("%w: failed to get service: %v", ErrInternal, err)
	}

	if _, err := uc.catalogClient.GetCustomer(ctx, req.TenantID, req.CustomerID); err != nil {
		if errors.Is(err, catalogClient.ErrCustomerNotFound) {
			uc.logger.Warn("CreateBooking: customer id=%d not found", req.CustomerID)
			return nil, ErrCustomerNotFound
		}
		uc.logger.Error("CreateBooking: failed to get customer id=%d: %v", req.CustomerID, err)
		return nil, fmt.Errorf("%w: failed to get customer: %v", ErrInternal, err)
	}

	// 3. Конец окна определяется длительностью услуги
	duration := time.Duration(service.DurationMinutes) * time.Minute
	if service.DurationMinutes < domain.MinServiceDurationMinutes || service.DurationMinutes > domain.MaxServiceDurationMinutes {
		uc.logger.Warn("CreateBooking: service id=%d has invalid duration %d minutes", req.ServiceID, service.DurationMinutes)
		return nil, fmt.Errorf("%w: service duration is out of range", ErrInvalidInput)
	}
	endAt := startAt.Add(duration)

	// Статус нового бронирования зависит от того, требует ли услуга оплаты
	initialStatus := domain.StatusConfirmed
	if service.PaymentRequired {
		initialStatus = domain.StatusPending
	}

	var (
		result   *domain.Booking
		replayed bool
		conflict *ConflictError
	)

	// 4. Резервирование и запись в одной сериализуемой транзакции
	err = uc.txManager.DoSerializable(ctx, func(txCtx context.Context) error {
		// 4.1. Сериализуем конкурентные дубли по ключу идемпотентности
		if err := uc.bookingRepo.LockClientGeneratedID(txCtx, req.TenantID, req.ClientGeneratedID, uc.idempLockTimeout); err != nil {
			if errors.Is(err, bookingRepo.ErrLockTimeout) {
				uc.logger.Warn("CreateBooking: idempotency lock timeout for clientId=%s", req.ClientGeneratedID)
				return ErrIdempotencyLockTimeout
			}
			uc.logger.Error("CreateBooking: failed to lock clientId=%s: %v", req.ClientGeneratedID, err)
			return fmt.Errorf("%w: failed to lock client id: %v", ErrInternal, err)
		}

		// 4.2. Повторный запрос возвращает исходное бронирование
		existing, err := uc.bookingRepo.GetByClientGeneratedID(txCtx, req.TenantID, req.ClientGeneratedID)
		if err != nil && !errors.Is(err, bookingRepo.ErrBookingNotFound) {
			uc.logger.Error("CreateBooking: failed to check clientId=%s: %v", req.ClientGeneratedID, err)
			return fmt.Errorf("%w: failed to check client id: %v", ErrInternal, err)
		}
		if existing != nil {
			uc.logger.Info("CreateBooking: clientId=%s already used by booking id=%s, replaying",
				req.ClientGeneratedID, existing.ID)
			result = existing
			replayed = true
			return nil
		}

		// 4.3. Проверяем, что окно лежит в опубликованной доступности
		calParams, err := uc.loadCalendarParams(txCtx, req.TenantID, req.ResourceID, resource.Timezone, startAt, duration)
		if err != nil {
			return err
		}
		if err := uc.calendar.ValidateWindow(calParams, startAt, endAt); err != nil {
			return uc.mapCalendarErr(err)
		}

		// 4.4. Резервируем окно
		conflicts, err := uc.alloc.Reserve(txCtx, req.TenantID, req.ResourceID, startAt, endAt, nil)
		if err != nil {
			if errors.Is(err, allocator.ErrWindowConflict) {
				conflict = uc.buildConflict(txCtx, calParams, conflicts, startAt)
				return err
			}
			// lock_timeout действует до конца транзакции, ожидание блокировки
			// ресурса тоже может истечь
			if errors.Is(err, allocator.ErrLockTimeout) {
				uc.logger.Warn("CreateBooking: resource=%d is busy, lock wait timed out", req.ResourceID)
				return ErrResourceLockTimeout
			}
			uc.logger.Error("CreateBooking: allocator error: %v", err)
			return fmt.Errorf("%w: allocator error: %v", ErrInternal, err)
		}

		// 4.5. Создаем бронирование
		booking := &domain.Booking{
			TenantID:          req.TenantID,
			ResourceID:        req.ResourceID,
			ServiceID:         req.ServiceID,
			CustomerID:        req.CustomerID,
			StartAt:           startAt,
			EndAt:             endAt,
			Status:            initialStatus,
			ClientGeneratedID: req.ClientGeneratedID,
		}

		created, err := uc.bookingRepo.Create(txCtx, booking)
		if err != nil {
			// Уникальный индекс - последний рубеж идемпотентности
			if errors.Is(err, bookingRepo.ErrDuplicateClientID) {
				original, readErr := uc.bookingRepo.GetByClientGeneratedID(txCtx, req.TenantID, req.ClientGeneratedID)
				if readErr != nil {
					uc.logger.Error("CreateBooking: duplicate clientId=%s but original not readable: %v",
						req.ClientGeneratedID, readErr)
					return fmt.Errorf("%w: failed to read original booking: %v", ErrInternal, readErr)
				}
				result = original
				replayed = true
				return nil
			}
			uc.logger.Error("CreateBooking: failed to create booking: %v", err)
			return fmt.Errorf("%w: failed to create booking: %v", ErrInternal, err)
		}

		// 4.6. Пишем события в той же транзакции
		if err := uc.appendEvents(txCtx, created); err != nil {
			return err
		}

		result = created
		return nil
	})

	if err != nil {
		if conflict != nil {
			return nil, conflict
		}
		return nil, err
	}

	if replayed {
		uc.logger.Info("CreateBooking: replayed booking id=%s for clientId=%s", result.ID, req.ClientGeneratedID)
	} else {
		uc.logger.Info("CreateBooking: successfully created booking id=%s status=%s", result.ID, result.Status)
	}

	return &Response{
		ID:                result.ID,
		TenantID:          result.TenantID,
		ResourceID:        result.ResourceID,
		ServiceID:         result.ServiceID,
		CustomerID:        result.CustomerID,
		StartAt:           result.StartAt,
		EndAt:             result.EndAt,
		Status:            string(result.Status),
		ClientGeneratedID: result.ClientGeneratedID,
		RescheduledFrom:   result.RescheduledFrom,
		Replayed:          replayed,
		CreatedAt:         result.CreatedAt,
		UpdatedAt:         result.UpdatedAt,
	}, nil
}

// loadCalendarParams загружает правила и исключения ресурса для проверки окна.
// Диапазон исключений берётся с запасом в сутки по обе стороны - границы
// локального дня ресурса не совпадают с границами дня UTC.
func (uc *UseCase) loadCalendarParams(
	ctx context.Context,
	tenantID, resourceID int64,
	timezone string,
	startAt time.Time,
	duration time.Duration,
) (slotcalendar.Params, error) {
	rules, err := uc.scheduleRepo.GetCurrentRules(ctx, tenantID, resourceID)
	if err != nil {
		uc.logger.Error("CreateBooking: failed to fetch rules for resource=%d: %v", resourceID, err)
		return slotcalendar.Params{}, fmt.Errorf("%w: failed to fetch rules: %v", ErrInternal, err)
	}

	exceptions, err := uc.scheduleRepo.GetExceptionsInRange(ctx, tenantID, resourceID,
		startAt.AddDate(0, 0, -1), startAt.AddDate(0, 0, 1))
	if err != nil {
		uc.logger.Error("CreateBooking: failed to fetch exceptions for resource=%d: %v", resourceID, err)
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

// buildConflict собирает детали конфликта: занятые окна и ближайшие
// свободные слоты того же дня
func (uc *UseCase) buildConflict(
	ctx context.Context,
	calParams slotcalendar.Params,
	conflicts []*domain.Booking,
	requestedStart time.Time,
) *ConflictError {
	ce := &ConflictError{}
	for _, b := range conflicts {
		ce.Conflicts = append(ce.Conflicts, ConflictWindow{StartAt: b.StartAt, EndAt: b.EndAt})
	}

	// Для подсказок пересчитываем слоты дня с учётом всех активных бронирований
	dayBookings, err := uc.bookingRepo.GetActiveInWindow(ctx,
		conflicts[0].TenantID, conflicts[0].ResourceID,
		requestedStart.AddDate(0, 0, -1), requestedStart.AddDate(0, 0, 1), nil)
	if err != nil {
		uc.logger.Warn("CreateBooking: failed to fetch bookings for suggestions: %v", err)
		return ce
	}

	calParams.Bookings = dayBookings
	seq, err := uc.calendar.Slots(calParams)
	if err != nil {
		uc.logger.Warn("CreateBooking: failed to compute suggestions: %v", err)
		return ce
	}

	for _, slot := range allocator.Suggest(seq, requestedStart, uc.suggestionLimit) {
		ce.Suggestions = append(ce.Suggestions, SlotSuggestion{StartAt: slot.StartAt, EndAt: slot.EndAt})
	}

	return ce
}

// appendEvents пишет события создания бронирования в outbox
func (uc *UseCase) appendEvents(ctx context.Context, b *domain.Booking) error {
	event, err := domain.NewBookingEvent(domain.EventBookingCreated, b, nil, nil)
	if err != nil {
		return fmt.Errorf("%w: failed to build created event: %v", ErrInternal, err)
	}
	if err := uc.outboxRepo.Append(ctx, event); err != nil {
		uc.logger.Error("CreateBooking: failed to append created event: %v", err)
		return fmt.Errorf("%w: failed to append created event: %v", ErrInternal, err)
	}

	// Ожидающее оплаты бронирование дополнительно уведомляет платёжный сервис
	if b.Status == domain.StatusPending {
		payEvent, err := domain.NewBookingEvent(domain.EventPaymentRequired, b, nil, nil)
		if err != nil {
			return fmt.Errorf("%w: failed to build payment event: %v", ErrInternal, err)
		}
		if err := uc.outboxRepo.Append(ctx, payEvent); err != nil {
			uc.logger.Error("CreateBooking: failed to append payment event: %v", err)
			return fmt.Errorf("%w: failed to append payment event: %v", ErrInternal, err)
		}
	}

	return nil
}

// mapCalendarErr переводит ошибки календаря в ошибки usecase
func (uc *UseCase) mapCalendarErr(err error) error {
	switch {
	case errors.Is(err, slotcalendar.ErrWindowNotBookable):
		uc.logger.Warn("CreateBooking: window is outside published availability")
		return ErrWindowNotBookable
	case errors.Is(err, slotcalendar.ErrInvalidRange):
		uc.logger.Warn("CreateBooking: invalid window: %v", err)
		return fmt.Errorf("%w: %v", ErrInvalidInput, err)
	case errors.Is(err, slotcalendar.ErrUnknownTimezone):
		uc.logger.Error("CreateBooking: resource has unknown timezone: %v", err)
		return fmt.Errorf("%w: %v", ErrInternal, err)
	default:
		uc.logger.Error("CreateBooking: calendar error: %v", err)
		return fmt.Errorf("%w: calendar error: %v", ErrInternal, err)
	}
}
