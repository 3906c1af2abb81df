package update_availability

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
	"github.com/m04kA/SMC-ScheduleEngine/internal/service/schedule/models"
)

const (
	msgInvalidResourceID  = "некорректный ID ресурса"
	msgInvalidRequestBody = "некорректное тело запроса"
	msgInvalidDate        = "некорректный формат даты, ожидается YYYY-MM-DD"
	msgInvalidRules       = "некорректные правила доступности"
	msgInvalidException   = "некорректное исключение доступности"
	msgMissingTenantID    = "отсутствует ID арендатора"
	msgResourceNotFound   = "ресурс не найден"
	msgExceptionNotFound  = "исключение на указанную дату не найдено"
)

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

// HandleReplaceRules PUT /api/v1/resources/{resourceId}/availability
func (h *Handler) HandleReplaceRules(w http.ResponseWriter, r *http.Request) {
	tenantID, resourceID, ok := h.tenantAndResource(w, r, "PUT /resources/{id}/availability")
	if !ok {
		return
	}

	var req ReplaceRulesRequest
	if err := handlers.DecodeJSON(r, &req); err != nil {
		h.logger.Warn("PUT /resources/{id}/availability - Invalid request body: %v", err)
		handlers.RespondBadRequest(w, msgInvalidRequestBody)
		return
	}

	result, err := h.service.ReplaceRules(r.Context(), &models.ReplaceRulesRequest{
		TenantID:   tenantID,
		ResourceID: resourceID,
		Rules:      req.Rules,
	})
	if err != nil {
		switch {
		case errors.Is(err, schedule.ErrResourceNotFound):
			h.logger.Warn("PUT /resources/{id}/availability - Resource not found: tenant_id=%d, resource_id=%d",
				tenantID, resourceID)
			handlers.RespondNotFound(w, msgResourceNotFound)

		case errors.Is(err, schedule.ErrInvalidInput):
			h.logger.Warn("PUT /resources/{id}/availability - Invalid rules: resource_id=%d, error=%v",
				resourceID, err)
			handlers.RespondBadRequest(w, msgInvalidRules)

		default:
			h.logger.Error("PUT /resources/{id}/availability - Failed to replace rules: resource_id=%d, error=%v",
				resourceID, err)
			handlers.RespondInternalError(w)
		}
		return
	}

	h.logger.Info("PUT /resources/{id}/availability - Rules replaced: tenant_id=%d, resource_id=%d, rules=%d",
		tenantID, resourceID, len(result.Rules))
	handlers.RespondJSON(w, http.StatusOK, result)
}

// HandleUpsertException PUT /api/v1/resources/{resourceId}/availability/exceptions
func (h *Handler) HandleUpsertException(w http.ResponseWriter, r *http.Request) {
	tenantID, resourceID, ok := h.tenantAndResource(w, r, "PUT /resources/{id}/availability/exceptions")
	if !ok {
		return
	}

	var req UpsertExceptionRequest
	if err := handlers.DecodeJSON(r, &req); err != nil {
		h.logger.Warn("PUT /resources/{id}/availability/exceptions - Invalid request body: %v", err)
		handlers.RespondBadRequest(w, msgInvalidRequestBody)
		return
	}

	result, err := h.service.UpsertException(r.Context(), &models.UpsertExceptionRequest{
		TenantID:   tenantID,
		ResourceID: resourceID,
		Date:       req.Date,
		Closed:     req.Closed,
		StartTime:  req.StartTime,
		EndTime:    req.EndTime,
	})
	if err != nil {
		switch {
		case errors.Is(err, schedule.ErrResourceNotFound):
			h.logger.Warn("PUT /resources/{id}/availability/exceptions - Resource not found: resource_id=%d",
				resourceID)
			handlers.RespondNotFound(w, msgResourceNotFound)

		case errors.Is(err, schedule.ErrInvalidInput):
			h.logger.Warn("PUT /resources/{id}/availability/exceptions - Invalid exception: resource_id=%d, error=%v",
				resourceID, err)
			handlers.RespondBadRequest(w, msgInvalidException)

		default:
			h.logger.Error("PUT /resources/{id}/availability/exceptions - Failed to upsert: resource_id=%d, error=%v",
				resourceID, err)
			handlers.RespondInternalError(w)
		}
		return
	}

	h.logger.Info("PUT /resources/{id}/availability/exceptions - Exception upserted: tenant_id=%d, resource_id=%d, date=%s",
		tenantID, resourceID, req.Date)
	handlers.RespondJSON(w, http.StatusOK, result)
}

// HandleDeleteException DELETE /api/v1/resources/{resourceId}/availability/exceptions/{date}
func (h *Handler) HandleDeleteException(w http.ResponseWriter, r *http.Request) {
	tenantID, resourceID, ok := h.tenantAndResource(w, r, "DELETE /resources/{id}/availability/exceptions/{date}")
	if !ok {
		return
	}

	vars := mux.Vars(r)
	date, err := time.Parse(domain.DateFormat, vars["date"])
	if err != nil {
		h.logger.Warn("DELETE /resources/{id}/availability/exceptions/{date} - Invalid date: %v", err)
		handlers.RespondBadRequest(w, msgInvalidDate)
		return
	}

	if err := h.service.DeleteException(r.Context(), tenantID, resourceID, date); err != nil {
		switch {
		case errors.Is(err, schedule.ErrExceptionNotFound):
			h.logger.Warn("DELETE /resources/{id}/availability/exceptions/{date} - Not found: resource_id=%d, date=%s",
				resourceID, vars["date"])
			handlers.RespondNotFound(w, msgExceptionNotFound)

		default:
			h.logger.Error("DELETE /resources/{id}/availability/exceptions/{date} - Failed: resource_id=%d, error=%v",
				resourceID, err)
			handlers.RespondInternalError(w)
		}
		return
	}

	h.logger.Info("DELETE /resources/{id}/availability/exceptions/{date} - Exception deleted: tenant_id=%d, resource_id=%d, date=%s",
		tenantID, resourceID, vars["date"])
	handlers.RespondJSON(w, http.StatusNoContent, nil)
}

func (h *Handler) tenantAndResource(w http.ResponseWriter, r *http.Request, op string) (int64, int64, bool) {
	tenantID, ok := middleware.GetTenantID(r.Context())
	if !ok {
		h.logger.Warn("%s - Missing tenant ID", op)
		handlers.RespondUnauthorized(w, msgMissingTenantID)
		return 0, 0, false
	}

	resourceID, err := strconv.ParseInt(mux.Vars(r)["resourceId"], 10, 64)
	if err != nil {
		h.logger.Warn("%s - Invalid resource ID: %v", op, err)
		handlers.RespondBadRequest(w, msgInvalidResourceID)
		return 0, 0, false
	}
	return tenantID, resourceID, true
}
