package schedule

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/m04kA/SMC-ScheduleEngine/internal/domain"
	scheduleRepo "github.com/m04kA/SMC-ScheduleEngine/internal/infra/storage/schedule"
	catalogClient "github.com/m04kA/SMC-ScheduleEngine/internal/integrations/catalogservice"
	"github.com/m04kA/SMC-ScheduleEngine/internal/service/schedule/models"
)

// Service сервис управления расписанием доступности ресурсов
type Service struct {
	scheduleRepo  ScheduleRepository
	catalogClient CatalogServiceClient
	txManager     TransactionManager
	logger        Logger
}

// NewService создает новый экземпляр сервиса расписаний
func NewService(
	scheduleRepo ScheduleRepository,
	catalogClient CatalogServiceClient,
	txManager TransactionManager,
	logger Logger,
) *Service {
	return &Service{
		scheduleRepo:  scheduleRepo,
		catalogClient: catalogClient,
		txManager:     txManager,
		logger:        logger,
	}
}

// GetAvailability возвращает действующие правила ресурса и исключения
// на диапазон дат [from, to]
func (s *Service) GetAvailability(ctx context.Context, tenantID, resourceID int64, from, to time.Time) (*models.AvailabilityResponse, error) {
	s.logger.Info("GetAvailability: fetching availability for resource=%d tenant=%d", resourceID, tenantID)

	if to.Before(from) {
		return nil, fmt.Errorf("%w: to precedes from", ErrInvalidInput)
	}

	resource, err := s.getResource(ctx, tenantID, resourceID)
	if err != nil {
		return nil, err
	}

	rules, err := s.scheduleRepo.GetCurrentRules(ctx, tenantID, resourceID)
	if err != nil {
		s.logger.Error("GetAvailability: failed to fetch rules for resource=%d: %v", resourceID, err)
		return nil, fmt.Errorf("%w: GetAvailability - fetch rules: %v", ErrInternal, err)
	}

	exceptions, err := s.scheduleRepo.GetExceptionsInRange(ctx, tenantID, resourceID, from, to)
	if err != nil {
		s.logger.Error("GetAvailability: failed to fetch exceptions for resource=%d: %v", resourceID, err)
		return nil, fmt.Errorf("%w: GetAvailability - fetch exceptions: %v", ErrInternal, err)
	}

	s.logger.Info("GetAvailability: resource=%d has %d rules and %d exceptions", resourceID, len(rules), len(exceptions))
	return &models.AvailabilityResponse{
		ResourceID: resourceID,
		Timezone:   resource.Timezone,
		Rules:      models.FromDomainRuleList(rules),
		Exceptions: models.FromDomainExceptionList(exceptions),
	}, nil
}

// ReplaceRules заменяет весь набор правил ресурса новой версией.
// Старые версии не изменяются - только помечаются как замененные.
// Пустой список правил допустим: ресурс перестаёт быть бронируемым.
func (s *Service) ReplaceRules(ctx context.Context, req *models.ReplaceRulesRequest) (*models.AvailabilityResponse, error) {
	s.logger.Info("ReplaceRules: replacing rules for resource=%d tenant=%d, count=%d",
		req.ResourceID, req.TenantID, len(req.Rules))

	resource, err := s.getResource(ctx, req.TenantID, req.ResourceID)
	if err != nil {
		return nil, err
	}

	rules := make([]*domain.AvailabilityRule, 0, len(req.Rules))
	for i, input := range req.Rules {
		rule, err := input.ToDomainRule()
		if err != nil {
			s.logger.Warn("ReplaceRules: rule #%d is invalid: %v", i, err)
			return nil, fmt.Errorf("%w: rule #%d: %v", ErrInvalidInput, i, err)
		}
		if err := s.validateRule(rule); err != nil {
			s.logger.Warn("ReplaceRules: rule #%d validation failed: %v", i, err)
			return nil, fmt.Errorf("%w: rule #%d: %v", ErrInvalidInput, i, err)
		}
		rules = append(rules, rule)
	}

	var created []*domain.AvailabilityRule
	err = s.txManager.DoSerializable(ctx, func(ctx context.Context) error {
		var txErr error
		created, txErr = s.scheduleRepo.ReplaceRules(ctx, req.TenantID, req.ResourceID, rules)
		return txErr
	})
	if err != nil {
		s.logger.Error("ReplaceRules: repository error for resource=%d: %v", req.ResourceID, err)
		return nil, fmt.Errorf("%w: ReplaceRules - repository error: %v", ErrInternal, err)
	}

	s.logger.Info("ReplaceRules: resource=%d now has %d rules", req.ResourceID, len(created))
	return &models.AvailabilityResponse{
		ResourceID: req.ResourceID,
		Timezone:   resource.Timezone,
		Rules:      models.FromDomainRuleList(created),
		Exceptions: []models.ExceptionResponse{},
	}, nil
}

// UpsertException создает или заменяет исключение на дату.
// Одна дата ресурса - одно исключение.
func (s *Service) UpsertException(ctx context.Context, req *models.UpsertExceptionRequest) (*models.ExceptionResponse, error) {
	s.logger.Info("UpsertException: upserting exception for resource=%d tenant=%d date=%s",
		req.ResourceID, req.TenantID, req.Date)

	if _, err := s.getResource(ctx, req.TenantID, req.ResourceID); err != nil {
		return nil, err
	}

	exc, err := req.ToDomainException()
	if err != nil {
		s.logger.Warn("UpsertException: invalid request for resource=%d: %v", req.ResourceID, err)
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	if err := s.validateException(exc); err != nil {
		s.logger.Warn("UpsertException: validation failed for resource=%d: %v", req.ResourceID, err)
		return nil, err
	}

	created, err := s.scheduleRepo.UpsertException(ctx, exc)
	if err != nil {
		s.logger.Error("UpsertException: repository error for resource=%d: %v", req.ResourceID, err)
		return nil, fmt.Errorf("%w: UpsertException - repository error: %v", ErrInternal, err)
	}

	s.logger.Info("UpsertException: exception id=%d stored for resource=%d date=%s", created.ID, req.ResourceID, req.Date)
	resp := models.FromDomainException(created)
	return &resp, nil
}

// DeleteException удаляет исключение на дату
func (s *Service) DeleteException(ctx context.Context, tenantID, resourceID int64, date time.Time) error {
	s.logger.Info("DeleteException: deleting exception for resource=%d tenant=%d date=%s",
		resourceID, tenantID, date.Format(domain.DateFormat))

	if err := s.scheduleRepo.DeleteException(ctx, tenantID, resourceID, date); err != nil {
		if errors.Is(err, scheduleRepo.ErrExceptionNotFound) {
			s.logger.Warn("DeleteException: exception not found for resource=%d date=%s",
				resourceID, date.Format(domain.DateFormat))
			return ErrExceptionNotFound
		}
		s.logger.Error("DeleteException: repository error for resource=%d: %v", resourceID, err)
		return fmt.Errorf("%w: DeleteException - repository error: %v", ErrInternal, err)
	}

	s.logger.Info("DeleteException: exception deleted for resource=%d date=%s",
		resourceID, date.Format(domain.DateFormat))
	return nil
}

// Вспомогательные методы

// getResource получает ресурс из каталога и проверяет его существование
func (s *Service) getResource(ctx context.Context, tenantID, resourceID int64) (*catalogClient.Resource, error) {
	resource, err := s.catalogClient.GetResource(ctx, tenantID, resourceID)
	if err != nil {
		if errors.Is(err, catalogClient.ErrResourceNotFound) {
			s.logger.Warn("getResource: resource id=%d not found for tenant=%d", resourceID, tenantID)
			return nil, ErrResourceNotFound
		}
		s.logger.Error("getResource: failed to get resource id=%d: %v", resourceID, err)
		return nil, fmt.Errorf("%w: getResource - failed to get resource: %v", ErrInternal, err)
	}
	return resource, nil
}

// validateRule валидирует одно правило доступности
func (s *Service) validateRule(rule *domain.AvailabilityRule) error {
	if err := rule.StartTime.Validate(); err != nil {
		return fmt.Errorf("invalid startTime: %v", err)
	}
	if err := rule.EndTime.Validate(); err != nil {
		return fmt.Errorf("invalid endTime: %v", err)
	}
	if !rule.StartTime.IsBefore(rule.EndTime) {
		return fmt.Errorf("startTime %s must be before endTime %s", rule.StartTime, rule.EndTime)
	}

	if rule.BufferBeforeMinutes < 0 || rule.BufferBeforeMinutes > domain.MaxBufferMinutes {
		return fmt.Errorf("bufferBeforeMinutes must be between 0 and %d", domain.MaxBufferMinutes)
	}
	if rule.BufferAfterMinutes < 0 || rule.BufferAfterMinutes > domain.MaxBufferMinutes {
		return fmt.Errorf("bufferAfterMinutes must be between 0 and %d", domain.MaxBufferMinutes)
	}

	if rule.Weekday == nil && rule.DateFrom == nil && rule.DateTo == nil {
		return fmt.Errorf("rule must specify a weekday or a date range")
	}
	if rule.DateFrom != nil && rule.DateTo != nil && rule.DateTo.Before(*rule.DateFrom) {
		return fmt.Errorf("dateTo must not precede dateFrom")
	}

	return nil
}

// validateException валидирует исключение: либо закрытый день,
// либо переопределённое окно со временем начала и конца
func (s *Service) validateException(exc *domain.AvailabilityException) error {
	if exc.Closed {
		if exc.StartTime != nil || exc.EndTime != nil {
			return fmt.Errorf("%w: a closed day cannot carry an override window", ErrInvalidInput)
		}
		return nil
	}

	if exc.StartTime == nil || exc.EndTime == nil {
		return fmt.Errorf("%w: an open exception requires startTime and endTime", ErrInvalidInput)
	}
	if err := exc.StartTime.Validate(); err != nil {
		return fmt.Errorf("%w: invalid startTime: %v", ErrInvalidInput, err)
	}
	if err := exc.EndTime.Validate(); err != nil {
		return fmt.Errorf("%w: invalid endTime: %v", ErrInvalidInput, err)
	}
	if !exc.StartTime.IsBefore(*exc.EndTime) {
		return fmt.Errorf("%w: startTime must be before endTime", ErrInvalidInput)
	}

	return nil
}
