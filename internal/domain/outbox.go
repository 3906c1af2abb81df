package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// OutboxStatus статус outbox-события
type OutboxStatus string

const (
	OutboxStatusPending    OutboxStatus = "pending"
	OutboxStatusDispatched OutboxStatus = "dispatched"
	OutboxStatusFailed     OutboxStatus = "failed"
)

// Коды событий движка. Потребители: нотификации, платежи, realtime push.
const (
	EventBookingCreated     = "booking_created"
	EventBookingConfirmed   = "booking_confirmed"
	EventBookingCheckedIn   = "booking_checked_in"
	EventBookingCompleted   = "booking_completed"
	EventBookingCancelled   = "booking_cancelled"
	EventBookingNoShow      = "booking_no_show"
	EventBookingFailed      = "booking_failed"
	EventBookingRescheduled = "booking_rescheduled"
	EventPaymentRequired    = "payment_required"
)

// OutboxEvent durably recorded side-effect intent. Записывается в той же
// транзакции, что и изменение бронирования; доставляется отдельным
// диспетчером. Движок после записи событие не изменяет - статус двигает
// только диспетчер.
type OutboxEvent struct {
	ID           uuid.UUID
	TenantID     int64
	EventCode    string
	Payload      json.RawMessage
	Status       OutboxStatus
	ReadyAt      time.Time
	AttemptCount int
	LastError    *string
	CreatedAt    time.Time
}

// BookingEventPayload полезная нагрузка событий бронирования
type BookingEventPayload struct {
	BookingID       uuid.UUID      `json:"bookingId"`
	TenantID        int64          `json:"tenantId"`
	ResourceID      int64          `json:"resourceId"`
	ServiceID       int64          `json:"serviceId"`
	CustomerID      int64          `json:"customerId"`
	StartAt         time.Time      `json:"startAt"`
	EndAt           time.Time      `json:"endAt"`
	Status          BookingStatus  `json:"status"`
	PreviousStatus  *BookingStatus `json:"previousStatus,omitempty"`
	RescheduledFrom *uuid.UUID     `json:"rescheduledFrom,omitempty"`
	Reason          *string        `json:"reason,omitempty"`
}

// NewBookingEvent собирает outbox-событие по бронированию
func NewBookingEvent(eventCode string, b *Booking, prev *BookingStatus, reason *string) (*OutboxEvent, error) {
	payload, err := json.Marshal(BookingEventPayload{
		BookingID:       b.ID,
		TenantID:        b.TenantID,
		ResourceID:      b.ResourceID,
		ServiceID:       b.ServiceID,
		CustomerID:      b.CustomerID,
		StartAt:         b.StartAt,
		EndAt:           b.EndAt,
		Status:          b.Status,
		PreviousStatus:  prev,
		RescheduledFrom: b.RescheduledFrom,
		Reason:          reason,
	})
	if err != nil {
		return nil, err
	}

	return &OutboxEvent{
		ID:        uuid.New(),
		TenantID:  b.TenantID,
		EventCode: eventCode,
		Payload:   payload,
		Status:    OutboxStatusPending,
	}, nil
}
