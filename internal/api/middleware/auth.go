package middleware

import (
	"context"
	"net/http"
	"strconv"

	"github.com/m04kA/SMC-ScheduleEngine/internal/api/handlers"
)

type contextKey string

const tenantIDKey contextKey = "tenantID"

// HeaderTenantID заголовок, через который вызывающая сторона передаёт тенанта.
// Проставляется API-gateway после аутентификации.
const HeaderTenantID = "X-Tenant-ID"

// TenantAuth извлекает tenant ID из заголовка и кладёт его в контекст запроса.
// Запросы без валидного тенанта до обработчиков не доходят.
func TenantAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := r.Header.Get(HeaderTenantID)
		if raw == "" {
			handlers.RespondUnauthorized(w, "отсутствует заголовок "+HeaderTenantID)
			return
		}

		tenantID, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || tenantID <= 0 {
			handlers.RespondUnauthorized(w, "некорректный заголовок "+HeaderTenantID)
			return
		}

		ctx := context.WithValue(r.Context(), tenantIDKey, tenantID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetTenantID возвращает tenant ID из контекста запроса
func GetTenantID(ctx context.Context) (int64, bool) {
	tenantID, ok := ctx.Value(tenantIDKey).(int64)
	return tenantID, ok
}
