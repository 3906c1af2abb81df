package bookings

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/m04kA/SMC-ScheduleEngine/internal/domain"
	bookingRepo "github.com/m04kA/SMC-ScheduleEngine/internal/infra/storage/booking"
	"github.com/m04kA/SMC-ScheduleEngine/internal/service/bookings/models"
)

// Service управляет жизненным циклом бронирования после создания:
// подтверждение, заезд, завершение, отмена, неявка, сбой оплаты.
// Каждый переход выполняется в serializable-транзакции вместе с записью
// outbox-события, так что потребители событий видят все переходы ровно
// в том порядке, в котором их увидела БД.
type Service struct {
	bookingRepo BookingRepository
	outboxRepo  OutboxRepository
	txManager   TransactionManager
	timer       TimeProvider
	logger      Logger
}

// NewService создает новый экземпляр сервиса жизненного цикла бронирований
func NewService(
	bookingRepo BookingRepository,
	outboxRepo OutboxRepository,
	txManager TransactionManager,
	timer TimeProvider,
	logger Logger,
) *Service {
	return &Service{
		bookingRepo: bookingRepo,
		outboxRepo:  outboxRepo,
		txManager:   txManager,
		timer:       timer,
		logger:      logger,
	}
}

// GetByID получает бронирование по ID в рамках арендатора
func (s *Service) GetByID(ctx context.Context, tenantID int64, id uuid.UUID) (*models.BookingResponse, error) {
	s.logger.Info("GetByID: fetching booking id=%s for tenant=%d", id, tenantID)

	booking, err := s.getForTenant(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}

	return models.FromDomainBooking(booking), nil
}

// GetCustomerBookings получает историю бронирований клиента
// Опционально фильтрует по статусу
func (s *Service) GetCustomerBookings(ctx context.Context, req *models.GetCustomerBookingsRequest) (*models.BookingListResponse, error) {
	s.logger.Info("GetCustomerBookings: fetching bookings for customer=%d tenant=%d, status=%v",
		req.CustomerID, req.TenantID, req.Status)

	var domainStatus *domain.BookingStatus
	if req.Status != nil {
		status, err := models.ToDomainBookingStatus(*req.Status)
		if err != nil {
			s.logger.Warn("GetCustomerBookings: invalid status=%s for customer=%d", *req.Status, req.CustomerID)
			return nil, fmt.Errorf("%w: invalid status", ErrInvalidInput)
		}
		domainStatus = &status
	}

	bookings, err := s.bookingRepo.GetByCustomerID(ctx, req.TenantID, req.CustomerID, domainStatus)
	if err != nil {
		s.logger.Error("GetCustomerBookings: repository error for customer=%d: %v", req.CustomerID, err)
		return nil, fmt.Errorf("%w: GetCustomerBookings - repository error: %v", ErrInternal, err)
	}

	s.logger.Info("GetCustomerBookings: successfully fetched %d bookings for customer=%d", len(bookings), req.CustomerID)
	return models.FromDomainBookingList(bookings), nil
}

// GetResourceBookings получает бронирования ресурса с гибкой фильтрацией
// Поддерживает фильтрацию по периоду, статусу и включению неактивных бронирований
func (s *Service) GetResourceBookings(ctx context.Context, req *models.GetResourceBookingsRequest) (*models.BookingListResponse, error) {
	s.logger.Info("GetResourceBookings: fetching bookings for resource=%d tenant=%d", req.ResourceID, req.TenantID)

	filter, err := req.ToDomainFilter()
	if err != nil {
		s.logger.Warn("GetResourceBookings: invalid filter for resource=%d: %v", req.ResourceID, err)
		return nil, fmt.Errorf("%w: invalid filter", ErrInvalidInput)
	}

	bookings, err := s.bookingRepo.GetByResourceWithFilter(ctx, filter)
	if err != nil {
		s.logger.Error("GetResourceBookings: repository error for resource=%d: %v", req.ResourceID, err)
		return nil, fmt.Errorf("%w: GetResourceBookings - repository error: %v", ErrInternal, err)
	}

	s.logger.Info("GetResourceBookings: successfully fetched %d bookings for resource=%d", len(bookings), req.ResourceID)
	return models.FromDomainBookingList(bookings), nil
}

// Confirm подтверждает бронирование (pending -> confirmed)
func (s *Service) Confirm(ctx context.Context, tenantID int64, id uuid.UUID) (*models.BookingResponse, error) {
	return s.transition(ctx, tenantID, id, domain.StatusConfirmed, domain.EventBookingConfirmed, nil)
}

// CheckIn фиксирует заезд клиента (confirmed -> checked_in)
func (s *Service) CheckIn(ctx context.Context, tenantID int64, id uuid.UUID) (*models.BookingResponse, error) {
	return s.transition(ctx, tenantID, id, domain.StatusCheckedIn, domain.EventBookingCheckedIn, nil)
}

// Complete завершает оказание услуги (checked_in -> completed)
func (s *Service) Complete(ctx context.Context, tenantID int64, id uuid.UUID) (*models.BookingResponse, error) {
	return s.transition(ctx, tenantID, id, domain.StatusCompleted, domain.EventBookingCompleted, nil)
}

// Fail помечает бронирование несостоявшимся из-за сбоя оплаты (pending -> failed)
func (s *Service) Fail(ctx context.Context, tenantID int64, id uuid.UUID, reason *string) (*models.BookingResponse, error) {
	return s.transition(ctx, tenantID, id, domain.StatusFailed, domain.EventBookingFailed, reason)
}

// MarkNoShow фиксирует неявку клиента. Допустима только после начала окна
// бронирования - до start_at неявки не существует.
func (s *Service) MarkNoShow(ctx context.Context, tenantID int64, id uuid.UUID) (*models.BookingResponse, error) {
	now := s.timer.Now()

	var resp *models.BookingResponse
	err := s.txManager.DoSerializable(ctx, func(ctx context.Context) error {
		booking, err := s.getForTenant(ctx, tenantID, id)
		if err != nil {
			return err
		}

		if now.Before(booking.StartAt) {
			s.logger.Warn("MarkNoShow: booking id=%s has not started yet (start_at=%s)", id, booking.StartAt)
			return ErrTooEarlyForNoShow
		}

		resp, err = s.applyTransition(ctx, booking, domain.StatusNoShow, domain.EventBookingNoShow, nil)
		return err
	})
	if err != nil {
		return nil, err
	}
	return resp, nil
}

// Cancel отменяет бронирование с указанием причины.
// Отмена имеет наивысший приоритет среди переходов, но терминальные
// статусы не перезаписывает.
func (s *Service) Cancel(ctx context.Context, tenantID int64, id uuid.UUID, req *models.CancelBookingRequest) (*models.BookingResponse, error) {
	s.logger.Info("Cancel: cancelling booking id=%s for tenant=%d", id, tenantID)

	var resp *models.BookingResponse
	err := s.txManager.DoSerializable(ctx, func(ctx context.Context) error {
		booking, err := s.getForTenant(ctx, tenantID, id)
		if err != nil {
			return err
		}

		if !booking.CanBeCancelled() {
			s.logger.Warn("Cancel: booking id=%s cannot be cancelled, status=%s", id, booking.Status)
			return ErrInvalidTransition
		}

		if err := s.bookingRepo.CancelIf(ctx, id, booking.Status, req.CancellationReason); err != nil {
			return s.mapConditionalUpdateErr("Cancel", id, err)
		}

		prev := booking.Status
		now := s.timer.Now()
		booking.Status = domain.StatusCancelled
		booking.CancellationReason = &req.CancellationReason
		booking.CancelledAt = &now
		booking.UpdatedAt = now

		if err := s.appendEvent(ctx, domain.EventBookingCancelled, booking, &prev, &req.CancellationReason); err != nil {
			return err
		}

		resp = models.FromDomainBooking(booking)
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Cancel: successfully cancelled booking id=%s", id)
	return resp, nil
}

// transition выполняет стандартный переход статуса в транзакции
func (s *Service) transition(
	ctx context.Context,
	tenantID int64,
	id uuid.UUID,
	next domain.BookingStatus,
	eventCode string,
	reason *string,
) (*models.BookingResponse, error) {
	s.logger.Info("transition: booking id=%s tenant=%d -> %s", id, tenantID, next)

	var resp *models.BookingResponse
	err := s.txManager.DoSerializable(ctx, func(ctx context.Context) error {
		booking, err := s.getForTenant(ctx, tenantID, id)
		if err != nil {
			return err
		}

		resp, err = s.applyTransition(ctx, booking, next, eventCode, reason)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("transition: booking id=%s is now %s", id, next)
	return resp, nil
}

// applyTransition проверяет state machine, обновляет статус условно
// и пишет outbox-событие. Вызывается внутри транзакции.
func (s *Service) applyTransition(
	ctx context.Context,
	booking *domain.Booking,
	next domain.BookingStatus,
	eventCode string,
	reason *string,
) (*models.BookingResponse, error) {
	if !booking.Status.CanTransitionTo(next) {
		s.logger.Warn("applyTransition: booking id=%s transition %s -> %s is not allowed",
			booking.ID, booking.Status, next)
		return nil, ErrInvalidTransition
	}

	if err := s.bookingRepo.UpdateStatusIf(ctx, booking.ID, booking.Status, next); err != nil {
		return nil, s.mapConditionalUpdateErr("applyTransition", booking.ID, err)
	}

	prev := booking.Status
	booking.Status = next
	booking.UpdatedAt = s.timer.Now()

	if err := s.appendEvent(ctx, eventCode, booking, &prev, reason); err != nil {
		return nil, err
	}

	return models.FromDomainBooking(booking), nil
}

// getForTenant получает бронирование и проверяет принадлежность арендатору.
// Чужое бронирование неотличимо от несуществующего.
func (s *Service) getForTenant(ctx context.Context, tenantID int64, id uuid.UUID) (*domain.Booking, error) {
	booking, err := s.bookingRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, bookingRepo.ErrBookingNotFound) {
			s.logger.Warn("getForTenant: booking id=%s not found", id)
			return nil, ErrBookingNotFound
		}
		s.logger.Error("getForTenant: repository error for booking id=%s: %v", id, err)
		return nil, fmt.Errorf("%w: getForTenant - repository error: %v", ErrInternal, err)
	}

	if booking.TenantID != tenantID {
		s.logger.Warn("getForTenant: booking id=%s belongs to tenant=%d, requested by tenant=%d",
			id, booking.TenantID, tenantID)
		return nil, ErrBookingNotFound
	}

	return booking, nil
}

func (s *Service) appendEvent(ctx context.Context, eventCode string, b *domain.Booking, prev *domain.BookingStatus, reason *string) error {
	event, err := domain.NewBookingEvent(eventCode, b, prev, reason)
	if err != nil {
		s.logger.Error("appendEvent: failed to build event %s for booking id=%s: %v", eventCode, b.ID, err)
		return fmt.Errorf("%w: appendEvent - build event: %v", ErrInternal, err)
	}

	if err := s.outboxRepo.Append(ctx, event); err != nil {
		s.logger.Error("appendEvent: failed to append event %s for booking id=%s: %v", eventCode, b.ID, err)
		return fmt.Errorf("%w: appendEvent - append outbox event: %v", ErrInternal, err)
	}

	return nil
}

// mapConditionalUpdateErr переводит ошибки условного обновления в ошибки сервиса.
// Несовпадение ожидаемого статуса означает конкурентный переход - для
// вызывающего это тот же недопустимый переход.
func (s *Service) mapConditionalUpdateErr(op string, id uuid.UUID, err error) error {
	if errors.Is(err, bookingRepo.ErrBookingNotFound) {
		s.logger.Warn("%s: booking id=%s disappeared during update", op, id)
		return ErrBookingNotFound
	}
	if errors.Is(err, bookingRepo.ErrStatusNotExpected) {
		s.logger.Warn("%s: booking id=%s status changed concurrently", op, id)
		return ErrInvalidTransition
	}
	s.logger.Error("%s: repository error for booking id=%s: %v", op, id, err)
	return fmt.Errorf("%w: %s - repository error: %v", ErrInternal, op, err)
}
