package create_booking

import (
	"errors"
	"net/http"

	"github.com/m04kA/SMC-ScheduleEngine/internal/api/handlers"
	"github.com/m04kA/SMC-ScheduleEngine/internal/api/middleware"
	createBooking "github.com/m04kA/SMC-ScheduleEngine/internal/usecase/create_booking"
)

const (
	msgInvalidRequestBody = "некорректное тело запроса"
	msgInvalidStartAt     = "некорректный формат startAt, ожидается RFC3339"
	msgInvalidClientID    = "некорректный clientGeneratedId, ожидается UUID"
	msgMissingTenantID    = "отсутствует ID арендатора"
	msgWindowConflict     = "окно пересекается с существующим бронированием"
	msgWindowNotBookable  = "окно вне опубликованной доступности ресурса"
	msgStartInPast        = "время начала уже прошло"
	msgResourceNotFound   = "ресурс не найден"
	msgServiceNotFound    = "услуга не найдена"
	msgCustomerNotFound   = "клиент не найден"
	msgRetryLater         = "конкурентный запрос с тем же clientGeneratedId, повторите позже"
	msgResourceBusy       = "ресурс занят конкурентной операцией, повторите позже"
	msgInvalidInput       = "некорректные входные данные"
)

type Handler struct {
	useCase CreateBookingUseCase
	logger  Logger
}

func NewHandler(useCase CreateBookingUseCase, logger Logger) *Handler {
	return &Handler{
		useCase: useCase,
		logger:  logger,
	}
}

// Handle POST /api/v1/bookings
func (h *Handler) Handle(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := middleware.GetTenantID(r.Context())
	if !ok {
		h.logger.Warn("POST /bookings - Missing tenant ID")
		handlers.RespondUnauthorized(w, msgMissingTenantID)
		return
	}

	var req CreateBookingRequest
	if err := handlers.DecodeJSON(r, &req); err != nil {
		h.logger.Warn("POST /bookings - Invalid request body: %v", err)
		handlers.RespondBadRequest(w, msgInvalidRequestBody)
		return
	}

	useCaseReq, err := req.ToUseCaseRequest(tenantID)
	if err != nil {
		h.logger.Warn("POST /bookings - Failed to parse request: %v", err)
		if errors.Is(err, errInvalidUUID) {
			handlers.RespondBadRequest(w, msgInvalidClientID)
		} else {
			handlers.RespondBadRequest(w, msgInvalidStartAt)
		}
		return
	}

	result, err := h.useCase.Execute(r.Context(), useCaseReq)
	if err != nil {
		var conflictErr *createBooking.ConflictError

		switch {
		case errors.As(err, &conflictErr):
			h.logger.Warn("POST /bookings - Window conflict: tenant_id=%d, resource_id=%d, conflicts=%d",
				tenantID, req.ResourceID, len(conflictErr.Conflicts))
			handlers.RespondJSON(w, http.StatusConflict, FromConflictError(conflictErr, msgWindowConflict))

		case errors.Is(err, createBooking.ErrWindowConflict):
			h.logger.Warn("POST /bookings - Window conflict: tenant_id=%d, resource_id=%d", tenantID, req.ResourceID)
			handlers.RespondError(w, http.StatusConflict, msgWindowConflict)

		case errors.Is(err, createBooking.ErrWindowNotBookable):
			h.logger.Warn("POST /bookings - Window not bookable: tenant_id=%d, resource_id=%d", tenantID, req.ResourceID)
			handlers.RespondBadRequest(w, msgWindowNotBookable)

		case errors.Is(err, createBooking.ErrStartInPast):
			h.logger.Warn("POST /bookings - Start in past: tenant_id=%d, resource_id=%d", tenantID, req.ResourceID)
			handlers.RespondBadRequest(w, msgStartInPast)

		case errors.Is(err, createBooking.ErrResourceNotFound):
			h.logger.Warn("POST /bookings - Resource not found: tenant_id=%d, resource_id=%d", tenantID, req.ResourceID)
			handlers.RespondNotFound(w, msgResourceNotFound)

		case errors.Is(err, createBooking.ErrServiceNotFound):
			h.logger.Warn("POST /bookings - Service not found: tenant_id=%d, service_id=%d", tenantID, req.ServiceID)
			handlers.RespondNotFound(w, msgServiceNotFound)

		case errors.Is(err, createBooking.ErrCustomerNotFound):
			h.logger.Warn("POST /bookings - Customer not found: tenant_id=%d, customer_id=%d", tenantID, req.CustomerID)
			handlers.RespondNotFound(w, msgCustomerNotFound)

		case errors.Is(err, createBooking.ErrIdempotencyLockTimeout):
			h.logger.Warn("POST /bookings - Idempotency lock timeout: tenant_id=%d, client_id=%s",
				tenantID, req.ClientGeneratedID)
			w.Header().Set("Retry-After", "1")
			handlers.RespondError(w, http.StatusServiceUnavailable, msgRetryLater)

		case errors.Is(err, createBooking.ErrResourceLockTimeout):
			h.logger.Warn("POST /bookings - Resource lock timeout: tenant_id=%d, resource_id=%d",
				tenantID, req.ResourceID)
			w.Header().Set("Retry-After", "1")
			handlers.RespondError(w, http.StatusServiceUnavailable, msgResourceBusy)

		case errors.Is(err, createBooking.ErrInvalidInput):
			h.logger.Warn("POST /bookings - Invalid input: tenant_id=%d, error=%v", tenantID, err)
			handlers.RespondBadRequest(w, msgInvalidInput)

		default:
			h.logger.Error("POST /bookings - Failed to create booking: tenant_id=%d, resource_id=%d, error=%v",
				tenantID, req.ResourceID, err)
			handlers.RespondInternalError(w)
		}
		return
	}

	status := http.StatusCreated
	if result.Replayed {
		// Повтор идемпотентного запроса возвращает исходную запись
		status = http.StatusOK
	}

	h.logger.Info("POST /bookings - Booking created: booking_id=%s, tenant_id=%d, resource_id=%d, replayed=%v",
		result.ID, tenantID, req.ResourceID, result.Replayed)
	handlers.RespondJSON(w, status, FromUseCaseResponse(result))
}
