package get_available_slots

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/m04kA/SMC-ScheduleEngine/internal/service/slotcalendar"

	catalogClient "github.com/m04kA/SMC-ScheduleEngine/internal/integrations/catalogservice"
)

// UseCase use case расчёта доступных слотов ресурса.
// Чтение без транзакции: результат - моментальный снимок, его актуальность
// гарантируется только в момент резервирования.
type UseCase struct {
	bookingRepo   BookingRepository
	scheduleRepo  ScheduleRepository
	calendar      SlotCalendar
	catalogClient CatalogServiceClient
	logger        Logger
}

// NewUseCase создает новый экземпляр use case
func NewUseCase(
	bookingRepo BookingRepository,
	scheduleRepo ScheduleRepository,
	calendar SlotCalendar,
	catalogClient CatalogServiceClient,
	logger Logger,
) *UseCase {
	return &UseCase{
		bookingRepo:   bookingRepo,
		scheduleRepo:  scheduleRepo,
		calendar:      calendar,
		catalogClient: catalogClient,
		logger:        logger,
	}
}

// Execute выполняет use case получения доступных слотов
func (uc *UseCase) Execute(ctx context.Context, req *Request) (*Response, error) {
	uc.logger.Info("GetAvailableSlots: tenant=%d, resource=%d, service=%d, from=%s, to=%s",
		req.TenantID, req.ResourceID, req.ServiceID,
		req.From.Format("2006-01-02"), req.To.Format("2006-01-02"))

	if err := validateRequest(req); err != nil {
		uc.logger.Warn("GetAvailableSlots: validation failed: %v", err)
		return nil, err
	}

	// 1. Загружаем ресурс и услугу из каталога
	resource, err := uc.catalogClient.GetResource(ctx, req.TenantID, req.ResourceID)
	if err != nil {
		if errors.Is(err, catalogClient.ErrResourceNotFound) {
			uc.logger.Warn("GetAvailableSlots: resource id=%d not found", req.ResourceID)
			return nil, ErrResourceNotFound
		}
		uc.logger.Error("GetAvailableSlots: failed to get resource id=%d: %v", req.ResourceID, err)
		return nil, fmt.Errorf("%w: failed to get resource: %v", ErrInternal, err)
	}

	service, err := uc.catalogClient.GetService(ctx, req.TenantID, req.ServiceID)
	if err != nil {
		if errors.Is(err, catalogClient.ErrServiceNotFound) {
			uc.logger.Warn("GetAvailableSlots: service id=%d not found", req.ServiceID)
			return nil, ErrServiceNotFound
		}
		uc.logger.Error("GetAvailableSlots: failed to get service id=%d: %v", req.ServiceID, err)
		return nil, fmt.Errorf("%w: failed to get service: %v", ErrInternal, err)
	}

	// 2. Загружаем правила, исключения и активные бронирования диапазона.
	// Сутки запаса по краям: границы локального дня ресурса не совпадают с UTC.
	rules, err := uc.scheduleRepo.GetCurrentRules(ctx, req.TenantID, req.ResourceID)
	if err != nil {
		uc.logger.Error("GetAvailableSlots: failed to fetch rules: %v", err)
		return nil, fmt.Errorf("%w: failed to fetch rules: %v", ErrInternal, err)
	}

	exceptions, err := uc.scheduleRepo.GetExceptionsInRange(ctx, req.TenantID, req.ResourceID,
		req.From.AddDate(0, 0, -1), req.To.AddDate(0, 0, 1))
	if err != nil {
		uc.logger.Error("GetAvailableSlots: failed to fetch exceptions: %v", err)
		return nil, fmt.Errorf("%w: failed to fetch exceptions: %v", ErrInternal, err)
	}

	bookings, err := uc.bookingRepo.GetActiveInWindow(ctx, req.TenantID, req.ResourceID,
		req.From.AddDate(0, 0, -1), req.To.AddDate(0, 0, 2), nil)
	if err != nil {
		uc.logger.Error("GetAvailableSlots: failed to fetch bookings: %v", err)
		return nil, fmt.Errorf("%w: failed to fetch bookings: %v", ErrInternal, err)
	}

	// 3. Рассчитываем слоты
	seq, err := uc.calendar.Slots(slotcalendar.Params{
		Timezone:        resource.Timezone,
		Rules:           rules,
		Exceptions:      exceptions,
		Bookings:        bookings,
		ServiceDuration: time.Duration(service.DurationMinutes) * time.Minute,
		From:            req.From,
		To:              req.To,
	})
	if err != nil {
		if errors.Is(err, slotcalendar.ErrInvalidRange) {
			uc.logger.Warn("GetAvailableSlots: invalid range: %v", err)
			return nil, fmt.Errorf("%w: %v", ErrInvalidRange, err)
		}
		uc.logger.Error("GetAvailableSlots: calendar error: %v", err)
		return nil, fmt.Errorf("%w: calendar error: %v", ErrInternal, err)
	}

	collected := seq.Collect(req.Limit)
	slots := make([]Slot, len(collected))
	for i, s := range collected {
		slots[i] = Slot{StartAt: s.StartAt, EndAt: s.EndAt}
	}

	uc.logger.Info("GetAvailableSlots: resource=%d has %d available slots in range", req.ResourceID, len(slots))
	return &Response{
		ResourceID: req.ResourceID,
		ServiceID:  req.ServiceID,
		Timezone:   resource.Timezone,
		Slots:      slots,
	}, nil
}

// validateRequest валидирует входные данные запроса
func validateRequest(req *Request) error {
	if req.TenantID <= 0 {
		return fmt.Errorf("%w: tenantID must be positive", ErrInvalidInput)
	}
	if req.ResourceID <= 0 {
		return fmt.Errorf("%w: resourceID must be positive", ErrInvalidInput)
	}
	if req.ServiceID <= 0 {
		return fmt.Errorf("%w: serviceID must be positive", ErrInvalidInput)
	}
	if req.From.IsZero() || req.To.IsZero() {
		return fmt.Errorf("%w: from and to are required", ErrInvalidInput)
	}
	if req.Limit < 0 {
		return fmt.Errorf("%w: limit must not be negative", ErrInvalidInput)
	}
	return nil
}
