package create_booking

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// validateRequest валидирует входные данные запроса
func validateRequest(req *Request) error {
	if req.TenantID <= 0 {
		return fmt.Errorf("%w: tenantID must be positive", ErrInvalidInput)
	}

	if req.ResourceID <= 0 {
		return fmt.Errorf("%w: resourceID must be positive", ErrInvalidInput)
	}

	if req.ServiceID <= 0 {
		return fmt.Errorf("%w: serviceID must be positive", ErrInvalidInput)
	}

	if req.CustomerID <= 0 {
		return fmt.Errorf("%w: customerID must be positive", ErrInvalidInput)
	}

	if req.StartAt.IsZero() {
		return fmt.Errorf("%w: startAt is required", ErrInvalidInput)
	}

	if req.ClientGeneratedID == uuid.Nil {
		return fmt.Errorf("%w: clientGeneratedId is required", ErrInvalidInput)
	}

	return nil
}

// validateStartAt проверяет, что начало окна не в прошлом
func validateStartAt(startAt, now time.Time) error {
	if startAt.Before(now) {
		return ErrStartInPast
	}
	return nil
}
