package payment_callback

import (
	"errors"
	"net/http"

	"github.com/google/uuid"

	"github.com/m04kA/SMC-ScheduleEngine/internal/api/handlers"
	applyPaymentResult "github.com/m04kA/SMC-ScheduleEngine/internal/usecase/apply_payment_result"
)

const (
	msgInvalidRequestBody = "некорректное тело запроса"
	msgInvalidBookingID   = "некорректный bookingId, ожидается UUID"
	msgNotFound           = "бронирование не найдено"
	msgNotAwaitingPayment = "бронирование не ожидает оплату"
	msgInvalidInput       = "некорректные входные данные"
)

// PaymentCallbackRequest тело callback платёжного провайдера.
// Тенант передаётся в теле: провайдер не ходит через API-gateway.
type PaymentCallbackRequest struct {
	TenantID      int64   `json:"tenantId"`
	BookingID     string  `json:"bookingId"` // UUID
	Success       bool    `json:"success"`
	FailureReason *string `json:"failureReason,omitempty"`
}

// PaymentCallbackResponse подтверждение применения результата оплаты
type PaymentCallbackResponse struct {
	BookingID string `json:"bookingId"`
	Status    string `json:"status"`
}

type Handler struct {
	useCase ApplyPaymentResultUseCase
	logger  Logger
}

func NewHandler(useCase ApplyPaymentResultUseCase, logger Logger) *Handler {
	return &Handler{
		useCase: useCase,
		logger:  logger,
	}
}

// Handle POST /internal/payments/callback
func (h *Handler) Handle(w http.ResponseWriter, r *http.Request) {
	var req PaymentCallbackRequest
	if err := handlers.DecodeJSON(r, &req); err != nil {
		h.logger.Warn("POST /internal/payments/callback - Invalid request body: %v", err)
		handlers.RespondBadRequest(w, msgInvalidRequestBody)
		return
	}

	bookingID, err := uuid.Parse(req.BookingID)
	if err != nil {
		h.logger.Warn("POST /internal/payments/callback - Invalid booking ID: %v", err)
		handlers.RespondBadRequest(w, msgInvalidBookingID)
		return
	}

	result, err := h.useCase.Execute(r.Context(), applyPaymentResult.Request{
		TenantID:      req.TenantID,
		BookingID:     bookingID,
		Success:       req.Success,
		FailureReason: req.FailureReason,
	})
	if err != nil {
		switch {
		case errors.Is(err, applyPaymentResult.ErrBookingNotFound):
			h.logger.Warn("POST /internal/payments/callback - Booking not found: booking_id=%s, tenant_id=%d",
				bookingID, req.TenantID)
			handlers.RespondNotFound(w, msgNotFound)

		case errors.Is(err, applyPaymentResult.ErrNotAwaitingPayment):
			h.logger.Warn("POST /internal/payments/callback - Not awaiting payment: booking_id=%s", bookingID)
			handlers.RespondError(w, http.StatusConflict, msgNotAwaitingPayment)

		case errors.Is(err, applyPaymentResult.ErrInvalidInput):
			h.logger.Warn("POST /internal/payments/callback - Invalid input: %v", err)
			handlers.RespondBadRequest(w, msgInvalidInput)

		default:
			h.logger.Error("POST /internal/payments/callback - Failed to apply: booking_id=%s, error=%v",
				bookingID, err)
			handlers.RespondInternalError(w)
		}
		return
	}

	h.logger.Info("POST /internal/payments/callback - Applied: booking_id=%s, status=%s, replayed=%v",
		result.ID, result.Status, result.Replayed)
	handlers.RespondJSON(w, http.StatusOK, PaymentCallbackResponse{
		BookingID: result.ID.String(),
		Status:    string(result.Status),
	})
}
