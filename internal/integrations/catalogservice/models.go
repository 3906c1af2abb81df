package catalogservice

// Resource модель ресурса из CatalogService
type Resource struct {
	ID       int64  `json:"id"`
	TenantID int64  `json:"tenantId"`
	Type     string `json:"type"` // person / room / equipment
	Timezone string `json:"timezone"`
}

// Service модель услуги из CatalogService
type Service struct {
	ID              int64  `json:"id"`
	TenantID        int64  `json:"tenantId"`
	Name            string `json:"name"`
	DurationMinutes int    `json:"durationMinutes"`
	PaymentRequired bool   `json:"paymentRequired"`
}

// Customer модель клиента из CatalogService
type Customer struct {
	ID       int64  `json:"id"`
	TenantID int64  `json:"tenantId"`
	Name     string `json:"name"`
}

// Logger интерфейс для логирования
type Logger interface {
	Info(format string, v ...interface{})
	Warn(format string, v ...interface{})
	Error(format string, v ...interface{})
}
