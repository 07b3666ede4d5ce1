package orchestrator

import (
	"context"
	"net/http"

	"github.com/google/uuid"
)

// Тип для ключа в контексте (избегаем коллизий)
type ctxKey string

const requestIDKey ctxKey = "request_id"

// TracingMiddleware инициализирует сквозной Request-ID для каждого запроса
func TracingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// 1. Пытаемся достать ID из заголовка (если пришел от прокси)
		requestID := r.Header.Get("X-Request-ID")

		// 2. Если его нет — генерируем новый
		if requestID == "" {
			requestID = uuid.New().String()
		}

		// 3. Кладем в контекст
		ctx := context.WithValue(r.Context(), requestIDKey, requestID)

		// 4. Добавляем в ответ, чтобы клиент тоже знал ID своего запроса
		w.Header().Set("X-Request-ID", requestID)

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// extractRequestID помогает безопасно достать ID в любом месте кода
func extractRequestID(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDKey).(string); ok {
		return id
	}
	return uuid.New().String() // запрос без middleware все равно получает сквозной ID
}
