package get_outbox_events

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/m04kA/SMC-ScheduleEngine/internal/domain"
)

// OutboxEventJSON outbox-событие в ответе ручки
type OutboxEventJSON struct {
	ID           uuid.UUID       `json:"id"`
	EventCode    string          `json:"eventCode"`
	Payload      json.RawMessage `json:"payload"`
	Status       string          `json:"status"`
	ReadyAt      time.Time       `json:"readyAt"`
	AttemptCount int             `json:"attemptCount"`
	LastError    *string         `json:"lastError,omitempty"`
	CreatedAt    time.Time       `json:"createdAt"`
}

// OutboxEventsResponse ответ на запрос событий тенанта
type OutboxEventsResponse struct {
	Events []OutboxEventJSON `json:"events"`
}

func toResponse(events []*domain.OutboxEvent) *OutboxEventsResponse {
	resp := &OutboxEventsResponse{Events: make([]OutboxEventJSON, 0, len(events))}
	for _, e := range events {
		resp.Events = append(resp.Events, OutboxEventJSON{
			ID:           e.ID,
			EventCode:    e.EventCode,
			Payload:      e.Payload,
			Status:       string(e.Status),
			ReadyAt:      e.ReadyAt,
			AttemptCount: e.AttemptCount,
			LastError:    e.LastError,
			CreatedAt:    e.CreatedAt,
		})
	}
	return resp
}
