package create_booking

import (
	"time"

	"github.com/google/uuid"
)

// Request модель запроса на создание бронирования
type Request struct {
	TenantID          int64     // ID арендатора (из заголовка X-Tenant-ID)
	ResourceID        int64     // ID ресурса
	ServiceID         int64     // ID услуги (определяет длительность окна)
	CustomerID        int64     // ID клиента
	StartAt           time.Time // Начало окна, UTC
	ClientGeneratedID uuid.UUID // Ключ идемпотентности, генерируется клиентом
}

// Response модель ответа с созданным бронированием
type Response struct {
	ID                uuid.UUID  // ID бронирования
	TenantID          int64      // ID арендатора
	ResourceID        int64      // ID ресурса
	ServiceID         int64      // ID услуги
	CustomerID        int64      // ID клиента
	StartAt           time.Time  // Начало окна, UTC
	EndAt             time.Time  // Конец окна, UTC
	Status            string     // Статус бронирования
	ClientGeneratedID uuid.UUID  // Ключ идемпотентности
	RescheduledFrom   *uuid.UUID // Заполнено, если бронирование создано переносом

	// Replayed = true: запрос с этим clientGeneratedId уже выполнялся,
	// возвращено исходное бронирование без изменений
	Replayed bool

	CreatedAt time.Time
	UpdatedAt time.Time
}
