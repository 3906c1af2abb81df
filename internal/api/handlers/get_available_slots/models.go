package get_available_slots

import (
	"time"

	getAvailableSlots "github.com/m04kA/SMC-ScheduleEngine/internal/usecase/get_available_slots"
)

// SlotJSON доступное окно в HTTP ответе
type SlotJSON struct {
	StartAt string `json:"startAt"` // RFC3339, UTC
	EndAt   string `json:"endAt"`
}

// AvailableSlotsResponse HTTP response model
type AvailableSlotsResponse struct {
	ResourceID int64      `json:"resourceId"`
	ServiceID  int64      `json:"serviceId"`
	Timezone   string     `json:"timezone"`
	Slots      []SlotJSON `json:"slots"`
}

// FromUseCaseResponse конвертирует ответ use case в HTTP response
func FromUseCaseResponse(resp *getAvailableSlots.Response) *AvailableSlotsResponse {
	out := &AvailableSlotsResponse{
		ResourceID: resp.ResourceID,
		ServiceID:  resp.ServiceID,
		Timezone:   resp.Timezone,
		Slots:      make([]SlotJSON, 0, len(resp.Slots)),
	}
	for _, s := range resp.Slots {
		out.Slots = append(out.Slots, SlotJSON{
			StartAt: s.StartAt.Format(time.RFC3339),
			EndAt:   s.EndAt.Format(time.RFC3339),
		})
	}
	return out
}
