package models

import (
	"errors"
	"time"

	"github.com/m04kA/SMC-ScheduleEngine/internal/domain"
	"github.com/m04kA/SMC-ScheduleEngine/pkg/types"
)

var (
	// ErrInvalidWeekday возвращается при дне недели вне диапазона 0-6
	ErrInvalidWeekday = errors.New("weekday must be between 0 (Sunday) and 6 (Saturday)")

	// ErrInvalidDate возвращается при некорректном формате даты
	ErrInvalidDate = errors.New("date must be in YYYY-MM-DD format")
)

// Request модели

// RuleInput одно правило доступности в запросе на замену
type RuleInput struct {
	Weekday             *int    `json:"weekday,omitempty"`  // 0 = Sunday ... 6 = Saturday
	DateFrom            *string `json:"dateFrom,omitempty"` // "2025-10-15"
	DateTo              *string `json:"dateTo,omitempty"`
	StartTime           string  `json:"startTime"` // локальное время ресурса, "09:00"
	EndTime             string  `json:"endTime"`
	BufferBeforeMinutes int     `json:"bufferBeforeMinutes,omitempty"`
	BufferAfterMinutes  int     `json:"bufferAfterMinutes,omitempty"`
}

// ReplaceRulesRequest запрос на замену правил доступности ресурса.
// Пустой список правил допустим - ресурс становится недоступным.
type ReplaceRulesRequest struct {
	TenantID   int64       `json:"tenantId"`
	ResourceID int64       `json:"resourceId"`
	Rules      []RuleInput `json:"rules"`
}

// UpsertExceptionRequest запрос на создание или замену исключения на дату
type UpsertExceptionRequest struct {
	TenantID   int64   `json:"tenantId"`
	ResourceID int64   `json:"resourceId"`
	Date       string  `json:"date"` // "2025-10-15"
	Closed     bool    `json:"closed"`
	StartTime  *string `json:"startTime,omitempty"`
	EndTime    *string `json:"endTime,omitempty"`
}

// ToDomainRule конвертирует input в domain модель
func (r *RuleInput) ToDomainRule() (*domain.AvailabilityRule, error) {
	rule := &domain.AvailabilityRule{
		StartTime:           types.TimeString(r.StartTime),
		EndTime:             types.TimeString(r.EndTime),
		BufferBeforeMinutes: r.BufferBeforeMinutes,
		BufferAfterMinutes:  r.BufferAfterMinutes,
	}

	if r.Weekday != nil {
		if *r.Weekday < 0 || *r.Weekday > 6 {
			return nil, ErrInvalidWeekday
		}
		wd := time.Weekday(*r.Weekday)
		rule.Weekday = &wd
	}

	if r.DateFrom != nil {
		d, err := parseDate(*r.DateFrom)
		if err != nil {
			return nil, err
		}
		rule.DateFrom = &d
	}
	if r.DateTo != nil {
		d, err := parseDate(*r.DateTo)
		if err != nil {
			return nil, err
		}
		rule.DateTo = &d
	}

	return rule, nil
}

// ToDomainException конвертирует request в domain модель
func (r *UpsertExceptionRequest) ToDomainException() (*domain.AvailabilityException, error) {
	date, err := parseDate(r.Date)
	if err != nil {
		return nil, err
	}

	exc := &domain.AvailabilityException{
		TenantID:   r.TenantID,
		ResourceID: r.ResourceID,
		Date:       date,
		Closed:     r.Closed,
	}

	if r.StartTime != nil {
		ts := types.TimeString(*r.StartTime)
		exc.StartTime = &ts
	}
	if r.EndTime != nil {
		ts := types.TimeString(*r.EndTime)
		exc.EndTime = &ts
	}

	return exc, nil
}

// Response модели

// RuleResponse ответ с данными правила доступности
type RuleResponse struct {
	ID                  int64   `json:"id"`
	Weekday             *int    `json:"weekday,omitempty"`
	DateFrom            *string `json:"dateFrom,omitempty"`
	DateTo              *string `json:"dateTo,omitempty"`
	StartTime           string  `json:"startTime"`
	EndTime             string  `json:"endTime"`
	BufferBeforeMinutes int     `json:"bufferBeforeMinutes"`
	BufferAfterMinutes  int     `json:"bufferAfterMinutes"`
	Version             int     `json:"version"`
}

// ExceptionResponse ответ с данными исключения
type ExceptionResponse struct {
	ID        int64   `json:"id"`
	Date      string  `json:"date"`
	Closed    bool    `json:"closed"`
	StartTime *string `json:"startTime,omitempty"`
	EndTime   *string `json:"endTime,omitempty"`
}

// AvailabilityResponse действующие правила и исключения ресурса
type AvailabilityResponse struct {
	ResourceID int64               `json:"resourceId"`
	Timezone   string              `json:"timezone"`
	Rules      []RuleResponse      `json:"rules"`
	Exceptions []ExceptionResponse `json:"exceptions"`
}

// Методы конвертации

// FromDomainRule конвертирует domain модель в DTO
func FromDomainRule(rule *domain.AvailabilityRule) RuleResponse {
	resp := RuleResponse{
		ID:                  rule.ID,
		StartTime:           rule.StartTime.String(),
		EndTime:             rule.EndTime.String(),
		BufferBeforeMinutes: rule.BufferBeforeMinutes,
		BufferAfterMinutes:  rule.BufferAfterMinutes,
		Version:             rule.Version,
	}

	if rule.Weekday != nil {
		wd := int(*rule.Weekday)
		resp.Weekday = &wd
	}
	if rule.DateFrom != nil {
		s := rule.DateFrom.Format(domain.DateFormat)
		resp.DateFrom = &s
	}
	if rule.DateTo != nil {
		s := rule.DateTo.Format(domain.DateFormat)
		resp.DateTo = &s
	}

	return resp
}

// FromDomainRuleList конвертирует список domain моделей в DTO
func FromDomainRuleList(rules []*domain.AvailabilityRule) []RuleResponse {
	out := make([]RuleResponse, len(rules))
	for i, rule := range rules {
		out[i] = FromDomainRule(rule)
	}
	return out
}

// FromDomainException конвертирует domain модель в DTO
func FromDomainException(exc *domain.AvailabilityException) ExceptionResponse {
	resp := ExceptionResponse{
		ID:     exc.ID,
		Date:   exc.Date.Format(domain.DateFormat),
		Closed: exc.Closed,
	}

	if exc.StartTime != nil {
		s := exc.StartTime.String()
		resp.StartTime = &s
	}
	if exc.EndTime != nil {
		s := exc.EndTime.String()
		resp.EndTime = &s
	}

	return resp
}

// FromDomainExceptionList конвертирует список domain моделей в DTO
func FromDomainExceptionList(exceptions []*domain.AvailabilityException) []ExceptionResponse {
	out := make([]ExceptionResponse, len(exceptions))
	for i, exc := range exceptions {
		out[i] = FromDomainException(exc)
	}
	return out
}

func parseDate(s string) (time.Time, error) {
	d, err := time.Parse(domain.DateFormat, s)
	if err != nil {
		return time.Time{}, ErrInvalidDate
	}
	return d, nil
}
