package middlewarectx

import (
	"log/slog"
	"net/http"
	"slices"
	"time"

	"github.com/go-chi/render"

	"github.com/magabrotheeeer/lesson-platform/internal/http/response"
	"github.com/magabrotheeeer/lesson-platform/internal/lib/entitlement"
)

// RequireRole создает middleware, пропускающий только пользователей
// с одной из перечисленных ролей.
func RequireRole(log *slog.Logger, roles ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, ok := UserFromContext(r.Context())
			if !ok {
				log.Error("user identification missing")
				w.WriteHeader(http.StatusUnauthorized)
				render.JSON(w, r, response.Error("authentication required"))
				return
			}
			if !slices.Contains(roles, user.Role) {
				log.Error("insufficient permissions",
					slog.String("user_uid", user.UID), slog.String("role", user.Role))
				w.WriteHeader(http.StatusForbidden)
				render.JSON(w, r, response.Error("insufficient permissions"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireSubscription создает middleware для проверки права на платный
// контент. Решение принимается только по снимку подписки пользователя,
// загруженному в рамках текущего запроса, без обращения к провайдеру.
func RequireSubscription(log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, ok := UserFromContext(r.Context())
			if !ok {
				log.Error("user identification missing")
				w.WriteHeader(http.StatusUnauthorized)
				render.JSON(w, r, response.Error("authentication required"))
				return
			}
			if !entitlement.IsActive(user.Subscription, time.Now()) {
				log.Error("subscription required, access denied", slog.String("user_uid", user.UID))
				w.WriteHeader(http.StatusForbidden)
				render.JSON(w, r, response.Error("active subscription required to access this content"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
