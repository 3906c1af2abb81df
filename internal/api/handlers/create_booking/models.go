package create_booking

import (
	"errors"
	"time"

	"github.com/google/uuid"

	createBooking "github.com/m04kA/SMC-ScheduleEngine/internal/usecase/create_booking"
)

var errInvalidUUID = errors.New("invalid clientGeneratedId")

// CreateBookingRequest HTTP request model
type CreateBookingRequest struct {
	ResourceID        int64  `json:"resourceId"`
	ServiceID         int64  `json:"serviceId"`
	CustomerID        int64  `json:"customerId"`
	StartAt           string `json:"startAt"`           // RFC3339, "2025-10-15T10:00:00Z"
	ClientGeneratedID string `json:"clientGeneratedId"` // UUID, ключ идемпотентности
}

// BookingResponse HTTP response model
type BookingResponse struct {
	ID                string  `json:"id"`
	ResourceID        int64   `json:"resourceId"`
	ServiceID         int64   `json:"serviceId"`
	CustomerID        int64   `json:"customerId"`
	StartAt           string  `json:"startAt"`
	EndAt             string  `json:"endAt"`
	Status            string  `json:"status"`
	ClientGeneratedID string  `json:"clientGeneratedId"`
	RescheduledFrom   *string `json:"rescheduledFrom,omitempty"`
	CreatedAt         string  `json:"createdAt"`
	UpdatedAt         string  `json:"updatedAt"`
}

// ConflictResponse тело ответа 409: занятые окна и ближайшие свободные слоты
type ConflictResponse struct {
	Message     string       `json:"message"`
	Conflicts   []WindowJSON `json:"conflicts"`
	Suggestions []WindowJSON `json:"suggestions"`
}

type WindowJSON struct {
	StartAt string `json:"startAt"`
	EndAt   string `json:"endAt"`
}

// ToUseCaseRequest конвертирует HTTP запрос в модель use case
func (r *CreateBookingRequest) ToUseCaseRequest(tenantID int64) (*createBooking.Request, error) {
	startAt, err := time.Parse(time.RFC3339, r.StartAt)
	if err != nil {
		return nil, err
	}

	clientID, err := uuid.Parse(r.ClientGeneratedID)
	if err != nil {
		return nil, errInvalidUUID
	}

	return &createBooking.Request{
		TenantID:          tenantID,
		ResourceID:        r.ResourceID,
		ServiceID:         r.ServiceID,
		CustomerID:        r.CustomerID,
		StartAt:           startAt,
		ClientGeneratedID: clientID,
	}, nil
}

// FromUseCaseResponse конвертирует ответ use case в HTTP response
func FromUseCaseResponse(resp *createBooking.Response) *BookingResponse {
	out := &BookingResponse{
		ID:                resp.ID.String(),
		ResourceID:        resp.ResourceID,
		ServiceID:         resp.ServiceID,
		CustomerID:        resp.CustomerID,
		StartAt:           resp.StartAt.Format(time.RFC3339),
		EndAt:             resp.EndAt.Format(time.RFC3339),
		Status:            resp.Status,
		ClientGeneratedID: resp.ClientGeneratedID.String(),
		CreatedAt:         resp.CreatedAt.Format(time.RFC3339),
		UpdatedAt:         resp.UpdatedAt.Format(time.RFC3339),
	}
	if resp.RescheduledFrom != nil {
		from := resp.RescheduledFrom.String()
		out.RescheduledFrom = &from
	}
	return out
}

// FromConflictError конвертирует детали конфликта в тело 409 ответа
func FromConflictError(conflictErr *createBooking.ConflictError, message string) *ConflictResponse {
	resp := &ConflictResponse{
		Message:     message,
		Conflicts:   make([]WindowJSON, 0, len(conflictErr.Conflicts)),
		Suggestions: make([]WindowJSON, 0, len(conflictErr.Suggestions)),
	}
	for _, c := range conflictErr.Conflicts {
		resp.Conflicts = append(resp.Conflicts, WindowJSON{
			StartAt: c.StartAt.Format(time.RFC3339),
			EndAt:   c.EndAt.Format(time.RFC3339),
		})
	}
	for _, s := range conflictErr.Suggestions {
		resp.Suggestions = append(resp.Suggestions, WindowJSON{
			StartAt: s.StartAt.Format(time.RFC3339),
			EndAt:   s.EndAt.Format(time.RFC3339),
		})
	}
	return resp
}
