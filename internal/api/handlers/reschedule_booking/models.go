package reschedule_booking

import (
	"errors"
	"time"

	"github.com/google/uuid"

	rescheduleBooking "github.com/m04kA/SMC-ScheduleEngine/internal/usecase/reschedule_booking"
)

var errInvalidUUID = errors.New("invalid clientGeneratedId")

// RescheduleBookingRequest HTTP request model
type RescheduleBookingRequest struct {
	NewStartAt        string `json:"newStartAt"`        // RFC3339
	ClientGeneratedID string `json:"clientGeneratedId"` // UUID, ключ идемпотентности
}

// RescheduleBookingResponse HTTP response model
type RescheduleBookingResponse struct {
	ID              string  `json:"id"`
	RescheduledFrom *string `json:"rescheduledFrom,omitempty"`
	StartAt         string  `json:"startAt"`
	EndAt           string  `json:"endAt"`
	Status          string  `json:"status"`
}

// ToUseCaseRequest конвертирует HTTP запрос в модель use case
func (r *RescheduleBookingRequest) ToUseCaseRequest(tenantID int64, bookingID uuid.UUID) (*rescheduleBooking.Request, error) {
	newStartAt, err := time.Parse(time.RFC3339, r.NewStartAt)
	if err != nil {
		return nil, err
	}

	clientID, err := uuid.Parse(r.ClientGeneratedID)
	if err != nil {
		return nil, errInvalidUUID
	}

	return &rescheduleBooking.Request{
		TenantID:          tenantID,
		BookingID:         bookingID,
		NewStartAt:        newStartAt,
		ClientGeneratedID: clientID,
	}, nil
}

// FromUseCaseResponse конвертирует ответ use case в HTTP response
func FromUseCaseResponse(resp *rescheduleBooking.Response) *RescheduleBookingResponse {
	out := &RescheduleBookingResponse{
		ID:      resp.ID.String(),
		StartAt: resp.StartAt.Format(time.RFC3339),
		EndAt:   resp.EndAt.Format(time.RFC3339),
		Status:  resp.Status,
	}
	if resp.RescheduledFrom != nil {
		from := resp.RescheduledFrom.String()
		out.RescheduledFrom = &from
	}
	return out
}
