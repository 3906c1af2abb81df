package get_outbox_events

import (
	"net/http"
	"strconv"

	"github.com/m04kA/SMC-ScheduleEngine/internal/api/handlers"
	"github.com/m04kA/SMC-ScheduleEngine/internal/api/middleware"
	"github.com/m04kA/SMC-ScheduleEngine/internal/domain"
)

const (
	msgInvalidStatus   = "некорректный статус события"
	msgInvalidLimit    = "некорректный limit"
	msgMissingTenantID = "отсутствует ID арендатора"
)

const (
	defaultLimit = 50
	maxLimit     = 500
)

type Handler struct {
	outboxRepo OutboxRepository
	logger     Logger
}

func NewHandler(outboxRepo OutboxRepository, logger Logger) *Handler {
	return &Handler{
		outboxRepo: outboxRepo,
		logger:     logger,
	}
}

// Handle GET /api/v1/outbox-events?status&limit
//
// Отладочная ручка: показывает очередь событий тенанта, чтобы при
// инцидентах доставки не ходить в БД руками.
func (h *Handler) Handle(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := middleware.GetTenantID(r.Context())
	if !ok {
		h.logger.Warn("GET /outbox-events - Missing tenant ID")
		handlers.RespondUnauthorized(w, msgMissingTenantID)
		return
	}

	query := r.URL.Query()

	var status *domain.OutboxStatus
	if raw := query.Get("status"); raw != "" {
		s := domain.OutboxStatus(raw)
		switch s {
		case domain.OutboxStatusPending, domain.OutboxStatusDispatched, domain.OutboxStatusFailed:
			status = &s
		default:
			h.logger.Warn("GET /outbox-events - Invalid status: %s", raw)
			handlers.RespondBadRequest(w, msgInvalidStatus)
			return
		}
	}

	limit := defaultLimit
	if raw := query.Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			h.logger.Warn("GET /outbox-events - Invalid limit: %s", raw)
			handlers.RespondBadRequest(w, msgInvalidLimit)
			return
		}
		if parsed > maxLimit {
			parsed = maxLimit
		}
		limit = parsed
	}

	events, err := h.outboxRepo.GetByTenant(r.Context(), tenantID, status, limit)
	if err != nil {
		h.logger.Error("GET /outbox-events - Failed to get events: tenant_id=%d, error=%v", tenantID, err)
		handlers.RespondInternalError(w)
		return
	}

	h.logger.Info("GET /outbox-events - Events retrieved: tenant_id=%d, count=%d", tenantID, len(events))
	handlers.RespondJSON(w, http.StatusOK, toResponse(events))
}
