package update_availability

import (
	"github.com/m04kA/SMC-ScheduleEngine/internal/service/schedule/models"
)

// ReplaceRulesRequest HTTP тело PUT availability: полный новый набор правил.
// Пустой список допустим - ресурс перестаёт принимать бронирования.
type ReplaceRulesRequest struct {
	Rules []models.RuleInput `json:"rules"`
}

// UpsertExceptionRequest HTTP тело PUT availability/exceptions
type UpsertExceptionRequest struct {
	Date      string  `json:"date"` // "2025-10-15", локальная дата ресурса
	Closed    bool    `json:"closed"`
	StartTime *string `json:"startTime,omitempty"`
	EndTime   *string `json:"endTime,omitempty"`
}
