package auth

import (
	"context"
	"net/http"

	"github.com/xela07ax/identity-fusion-orchestrator/internal/domain"
	"go.uber.org/zap"
)

// TokenValidator — интерфейс, который должны реализовать и шлюз, и консоль
type TokenValidator interface {
	VerifyToken(tokenStr string) (*domain.CustomClaims, error)
}

// Тип для ключей в контексте (избегаем коллизий)
type ctxKey string

const (
	scopesKey ctxKey = "user_scopes"
	userIDKey ctxKey = "user_id"
)

func NewMiddleware(v TokenValidator, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			claims, err := v.VerifyToken(authHeader)
			if err != nil {
				logger.Warn("auth failure", zap.Error(err))
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			// Прокидываем данные в контекст
			ctx := context.WithValue(r.Context(), scopesKey, claims.Scopes)
			ctx = context.WithValue(ctx, userIDKey, claims.UserID)

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// HasScope проверяет право из токена в любом месте под Middleware
func HasScope(ctx context.Context, scope string) bool {
	scopes, ok := ctx.Value(scopesKey).(map[string]bool)
	return ok && scopes[scope]
}

// UserID достает ID оператора из контекста (для Accountability в логах)
func UserID(ctx context.Context) string {
	id, _ := ctx.Value(userIDKey).(string)
	return id
}
