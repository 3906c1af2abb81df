package transition_booking

import (
	"context"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/m04kA/SMC-ScheduleEngine/internal/api/handlers"
	"github.com/m04kA/SMC-ScheduleEngine/internal/api/middleware"
	"github.com/m04kA/SMC-ScheduleEngine/internal/service/bookings"
	"github.com/m04kA/SMC-ScheduleEngine/internal/service/bookings/models"
)

const (
	msgInvalidBookingID  = "некорректный ID бронирования"
	msgNotFound          = "бронирование не найдено"
	msgInvalidTransition = "переход статуса недопустим"
	msgTooEarlyForNoShow = "неявку можно отметить только после начала окна"
	msgMissingTenantID   = "отсутствует ID арендатора"
)

// Handler обрабатывает переходы статуса по жизненному циклу бронирования:
// явка, завершение, неявка. Отмена и перенос живут в отдельных обработчиках.
type Handler struct {
	service BookingService
	logger  Logger
}

func NewHandler(service BookingService, logger Logger) *Handler {
	return &Handler{
		service: service,
		logger:  logger,
	}
}

// HandleCheckIn PATCH /api/v1/bookings/{bookingId}/check-in
func (h *Handler) HandleCheckIn(w http.ResponseWriter, r *http.Request) {
	h.handle(w, r, "check-in", h.service.CheckIn)
}

// HandleComplete PATCH /api/v1/bookings/{bookingId}/complete
func (h *Handler) HandleComplete(w http.ResponseWriter, r *http.Request) {
	h.handle(w, r, "complete", h.service.Complete)
}

// HandleNoShow PATCH /api/v1/bookings/{bookingId}/no-show
func (h *Handler) HandleNoShow(w http.ResponseWriter, r *http.Request) {
	h.handle(w, r, "no-show", h.service.MarkNoShow)
}

func (h *Handler) handle(
	w http.ResponseWriter,
	r *http.Request,
	action string,
	transition func(ctx context.Context, tenantID int64, id uuid.UUID) (*models.BookingResponse, error),
) {
	tenantID, ok := middleware.GetTenantID(r.Context())
	if !ok {
		h.logger.Warn("PATCH /bookings/{id}/%s - Missing tenant ID", action)
		handlers.RespondUnauthorized(w, msgMissingTenantID)
		return
	}

	vars := mux.Vars(r)
	bookingID, err := uuid.Parse(vars["bookingId"])
	if err != nil {
		h.logger.Warn("PATCH /bookings/{id}/%s - Invalid booking ID: %v", action, err)
		handlers.RespondBadRequest(w, msgInvalidBookingID)
		return
	}

	booking, err := transition(r.Context(), tenantID, bookingID)
	if err != nil {
		switch {
		case errors.Is(err, bookings.ErrBookingNotFound):
			h.logger.Warn("PATCH /bookings/{id}/%s - Booking not found: booking_id=%s, tenant_id=%d",
				action, bookingID, tenantID)
			handlers.RespondNotFound(w, msgNotFound)

		case errors.Is(err, bookings.ErrTooEarlyForNoShow):
			h.logger.Warn("PATCH /bookings/{id}/%s - Too early for no-show: booking_id=%s", action, bookingID)
			handlers.RespondError(w, http.StatusConflict, msgTooEarlyForNoShow)

		case errors.Is(err, bookings.ErrInvalidTransition):
			h.logger.Warn("PATCH /bookings/{id}/%s - Invalid transition: booking_id=%s", action, bookingID)
			handlers.RespondError(w, http.StatusConflict, msgInvalidTransition)

		default:
			h.logger.Error("PATCH /bookings/{id}/%s - Transition failed: booking_id=%s, error=%v",
				action, bookingID, err)
			handlers.RespondInternalError(w)
		}
		return
	}

	h.logger.Info("PATCH /bookings/{id}/%s - Transition applied: booking_id=%s, tenant_id=%d, status=%s",
		action, bookingID, tenantID, booking.Status)
	handlers.RespondJSON(w, http.StatusOK, booking)
}
