package apply_payment_result

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/m04kA/SMC-ScheduleEngine/internal/domain"
	bookingRepo "github.com/m04kA/SMC-ScheduleEngine/internal/infra/storage/booking"
)

// Request входные данные callback платёжного провайдера
type Request struct {
	TenantID      int64
	BookingID     uuid.UUID
	Success       bool
	FailureReason *string
}

// Response результат применения платежа
type Response struct {
	ID        uuid.UUID
	Status    domain.BookingStatus
	Replayed  bool
	UpdatedAt time.Time
}

// UseCase применяет результат оплаты к бронированию, ожидающему подтверждения
type UseCase struct {
	bookingRepo BookingRepository
	outboxRepo  OutboxRepository
	txManager   TransactionManager
	timer       TimeProvider
	logger      Logger
}

// NewUseCase создает новый UseCase для применения результата оплаты
func NewUseCase(
	bookings BookingRepository,
	outbox OutboxRepository,
	txManager TransactionManager,
	logger Logger,
) *UseCase {
	return &UseCase{
		bookingRepo: bookings,
		outboxRepo:  outbox,
		txManager:   txManager,
		timer:       &RealTimeProvider{},
		logger:      logger,
	}
}

// Execute переводит pending-бронирование в confirmed при успешной оплате
// или в failed при отказе. Повторная доставка того же результата - no-op.
func (uc *UseCase) Execute(ctx context.Context, req Request) (*Response, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	target := domain.StatusConfirmed
	eventCode := domain.EventBookingConfirmed
	if !req.Success {
		target = domain.StatusFailed
		eventCode = domain.EventBookingFailed
	}

	var result *Response

	err := uc.txManager.DoSerializable(ctx, func(txCtx context.Context) error {
		booking, err := uc.bookingRepo.GetByID(txCtx, req.BookingID)
		if err != nil {
			if errors.Is(err, bookingRepo.ErrBookingNotFound) {
				return ErrBookingNotFound
			}
			uc.logger.Error("ApplyPaymentResult: failed to get booking id=%s: %v", req.BookingID, err)
			return fmt.Errorf("%w: failed to get booking: %v", ErrInternal, err)
		}
		// Чужой тенант неотличим от отсутствующего бронирования
		if booking.TenantID != req.TenantID {
			return ErrBookingNotFound
		}

		// Повторная доставка callback: статус уже применён
		if booking.Status == target {
			result = &Response{ID: booking.ID, Status: booking.Status, Replayed: true, UpdatedAt: booking.UpdatedAt}
			return nil
		}
		if booking.Status != domain.StatusPending {
			uc.logger.Warn("ApplyPaymentResult: booking id=%s in status=%s is not awaiting payment",
				booking.ID, booking.Status)
			return ErrNotAwaitingPayment
		}

		if err := uc.bookingRepo.UpdateStatusIf(txCtx, booking.ID, domain.StatusPending, target); err != nil {
			if errors.Is(err, bookingRepo.ErrStatusNotExpected) {
				return ErrNotAwaitingPayment
			}
			uc.logger.Error("ApplyPaymentResult: failed to update booking id=%s: %v", booking.ID, err)
			return fmt.Errorf("%w: failed to update booking: %v", ErrInternal, err)
		}

		prev := booking.Status
		booking.Status = target
		booking.UpdatedAt = uc.timer.Now().UTC()

		var reason *string
		if !req.Success {
			reason = req.FailureReason
		}
		event, err := domain.NewBookingEvent(eventCode, booking, &prev, reason)
		if err != nil {
			return fmt.Errorf("%w: failed to build event: %v", ErrInternal, err)
		}
		if err := uc.outboxRepo.Append(txCtx, event); err != nil {
			uc.logger.Error("ApplyPaymentResult: failed to append event for booking id=%s: %v", booking.ID, err)
			return fmt.Errorf("%w: failed to append event: %v", ErrInternal, err)
		}

		result = &Response{ID: booking.ID, Status: booking.Status, UpdatedAt: booking.UpdatedAt}
		return nil
	})
	if err != nil {
		return nil, err
	}

	uc.logger.Info("ApplyPaymentResult: booking id=%s -> status=%s (replayed=%v)",
		result.ID, result.Status, result.Replayed)
	return result, nil
}

func validateRequest(req Request) error {
	if req.TenantID <= 0 {
		return fmt.Errorf("%w: tenantId must be positive", ErrInvalidInput)
	}
	if req.BookingID == uuid.Nil {
		return fmt.Errorf("%w: bookingId is required", ErrInvalidInput)
	}
	return nil
}
