package payment_callback

import (
	"context"

	applyPaymentResult "github.com/m04kA/SMC-ScheduleEngine/internal/usecase/apply_payment_result"
)

type ApplyPaymentResultUseCase interface {
	Execute(ctx context.Context, req applyPaymentResult.Request) (*applyPaymentResult.Response, error)
}

type Logger interface {
	Info(format string, v ...interface{})
	Warn(format string, v ...interface{})
	Error(format string, v ...interface{})
}
