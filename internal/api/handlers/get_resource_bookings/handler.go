package get_resource_bookings

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/m04kA/SMC-ScheduleEngine/internal/api/handlers"
	"github.com/m04kA/SMC-ScheduleEngine/internal/api/middleware"
	"github.com/m04kA/SMC-ScheduleEngine/internal/service/bookings"
	"github.com/m04kA/SMC-ScheduleEngine/internal/service/bookings/models"
)

const (
	msgInvalidResourceID = "некорректный ID ресурса"
	msgInvalidDate       = "некорректный формат даты, ожидается RFC3339"
	msgInvalidFilter     = "некорректный фильтр"
	msgMissingTenantID   = "отсутствует ID арендатора"
)

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

// Handle GET /api/v1/resources/{resourceId}/bookings?startAt&endAt&status&includeInactive
func (h *Handler) Handle(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := middleware.GetTenantID(r.Context())
	if !ok {
		h.logger.Warn("GET /resources/{id}/bookings - Missing tenant ID")
		handlers.RespondUnauthorized(w, msgMissingTenantID)
		return
	}

	vars := mux.Vars(r)
	resourceID, err := strconv.ParseInt(vars["resourceId"], 10, 64)
	if err != nil {
		h.logger.Warn("GET /resources/{id}/bookings - Invalid resource ID: %v", err)
		handlers.RespondBadRequest(w, msgInvalidResourceID)
		return
	}

	req := &models.GetResourceBookingsRequest{
		TenantID:   tenantID,
		ResourceID: resourceID,
	}

	query := r.URL.Query()
	if raw := query.Get("startAt"); raw != "" {
		startAt, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			h.logger.Warn("GET /resources/{id}/bookings - Invalid startAt: %v", err)
			handlers.RespondBadRequest(w, msgInvalidDate)
			return
		}
		req.StartAt = &startAt
	}
	if raw := query.Get("endAt"); raw != "" {
		endAt, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			h.logger.Warn("GET /resources/{id}/bookings - Invalid endAt: %v", err)
			handlers.RespondBadRequest(w, msgInvalidDate)
			return
		}
		req.EndAt = &endAt
	}
	if status := query.Get("status"); status != "" {
		req.Status = &status
	}
	if query.Get("includeInactive") == "true" {
		req.IncludeInactive = true
	}

	result, err := h.service.GetResourceBookings(r.Context(), req)
	if err != nil {
		switch {
		case errors.Is(err, bookings.ErrInvalidInput):
			h.logger.Warn("GET /resources/{id}/bookings - Invalid filter: resource_id=%d, error=%v",
				resourceID, err)
			handlers.RespondBadRequest(w, msgInvalidFilter)

		default:
			h.logger.Error("GET /resources/{id}/bookings - Failed to get bookings: resource_id=%d, error=%v",
				resourceID, err)
			handlers.RespondInternalError(w)
		}
		return
	}

	h.logger.Info("GET /resources/{id}/bookings - Bookings retrieved: tenant_id=%d, resource_id=%d, count=%d",
		tenantID, resourceID, len(result.Bookings))
	handlers.RespondJSON(w, http.StatusOK, result)
}
