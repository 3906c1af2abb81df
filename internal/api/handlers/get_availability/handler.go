package get_availability

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/m04kA/SMC-ScheduleEngine/internal/api/handlers"
	"github.com/m04kA/SMC-ScheduleEngine/internal/api/middleware"
	"github.com/m04kA/SMC-ScheduleEngine/internal/domain"
	"github.com/m04kA/SMC-ScheduleEngine/internal/service/schedule"
)

const (
	msgInvalidResourceID = "некорректный ID ресурса"
	msgInvalidDate       = "некорректный формат даты, ожидается YYYY-MM-DD"
	msgMissingTenantID   = "отсутствует ID арендатора"
	msgResourceNotFound  = "ресурс не найден"
)

// defaultRangeDays диапазон исключений в ответе, когда from/to не заданы
const defaultRangeDays = 30

type Handler struct {
	service ScheduleService
	logger  Logger
}

func NewHandler(service ScheduleService, logger Logger) *Handler {
	return &Handler{
		service: service,
		logger:  logger,
	}
}

// Handle GET /api/v1/resources/{resourceId}/availability?from&to
func (h *Handler) Handle(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := middleware.GetTenantID(r.Context())
	if !ok {
		h.logger.Warn("GET /resources/{id}/availability - Missing tenant ID")
		handlers.RespondUnauthorized(w, msgMissingTenantID)
		return
	}

	vars := mux.Vars(r)
	resourceID, err := strconv.ParseInt(vars["resourceId"], 10, 64)
	if err != nil {
		h.logger.Warn("GET /resources/{id}/availability - Invalid resource ID: %v", err)
		handlers.RespondBadRequest(w, msgInvalidResourceID)
		return
	}

	query := r.URL.Query()

	from := time.Now().UTC().Truncate(24 * time.Hour)
	if raw := query.Get("from"); raw != "" {
		from, err = time.Parse(domain.DateFormat, raw)
		if err != nil {
			h.logger.Warn("GET /resources/{id}/availability - Invalid from date: %v", err)
			handlers.RespondBadRequest(w, msgInvalidDate)
			return
		}
	}

	to := from.AddDate(0, 0, defaultRangeDays)
	if raw := query.Get("to"); raw != "" {
		to, err = time.Parse(domain.DateFormat, raw)
		if err != nil {
			h.logger.Warn("GET /resources/{id}/availability - Invalid to date: %v", err)
			handlers.RespondBadRequest(w, msgInvalidDate)
			return
		}
	}

	result, err := h.service.GetAvailability(r.Context(), tenantID, resourceID, from, to)
	if err != nil {
		switch {
		case errors.Is(err, schedule.ErrResourceNotFound):
			h.logger.Warn("GET /resources/{id}/availability - Resource not found: tenant_id=%d, resource_id=%d",
				tenantID, resourceID)
			handlers.RespondNotFound(w, msgResourceNotFound)

		default:
			h.logger.Error("GET /resources/{id}/availability - Failed to get availability: resource_id=%d, error=%v",
				resourceID, err)
			handlers.RespondInternalError(w)
		}
		return
	}

	h.logger.Info("GET /resources/{id}/availability - Availability retrieved: tenant_id=%d, resource_id=%d, rules=%d",
		tenantID, resourceID, len(result.Rules))
	handlers.RespondJSON(w, http.StatusOK, result)
}
