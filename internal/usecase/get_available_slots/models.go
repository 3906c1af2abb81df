package get_available_slots

import "time"

// Request модель запроса на получение доступных слотов
type Request struct {
	TenantID   int64     // ID арендатора
	ResourceID int64     // ID ресурса
	ServiceID  int64     // ID услуги (определяет длительность слота)
	From       time.Time // Первый день диапазона
	To         time.Time // Последний день диапазона (включительно)
	Limit      int       // Максимум слотов в ответе (0 - без ограничения)
}

// Response модель ответа со списком доступных слотов
type Response struct {
	ResourceID int64  // ID ресурса
	ServiceID  int64  // ID услуги
	Timezone   string // IANA-таймзона ресурса
	Slots      []Slot // Слоты в порядке возрастания времени начала
}

// Slot доступное для бронирования окно
type Slot struct {
	StartAt time.Time // UTC
	EndAt   time.Time // UTC
}
