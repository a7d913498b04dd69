// Package middlewarectx содержит HTTP middleware для проверки JWT токенов
// и ограничения доступа по роли и состоянию подписки.
//
// JWTMiddleware проверяет наличие и валидность access-токена в заголовке
// Authorization, загружает пользователя и добавляет его в контекст запроса.
// OptionalJWTMiddleware делает то же, но при любой ошибке продолжает
// обработку анонимно: наличие идентичности в контексте всегда явное.
package middlewarectx

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/lesson-platform/internal/http/response"
	libjwt "github.com/magabrotheeeer/lesson-platform/internal/lib/jwt"
	"github.com/magabrotheeeer/lesson-platform/internal/models"
)

// Key тип для ключей контекста HTTP-запроса.
type Key string

// userKey — ключ для аутентифицированного пользователя в контексте.
const userKey Key = "user"

// TokenParser описывает проверку access-токена.
type TokenParser interface {
	ParseAccessToken(tokenStr string) (*libjwt.AccessClaims, error)
}

// UserLoader описывает загрузку пользователя из хранилища. Пользователь
// загружается на каждый запрос: гейты по подписке всегда видят свежий снимок.
type UserLoader interface {
	GetUser(ctx context.Context, userUID string) (*models.User, error)
}

// UserFromContext возвращает пользователя из контекста запроса.
// Второе значение сообщает, была ли идентичность установлена.
func UserFromContext(ctx context.Context) (*models.User, bool) {
	user, ok := ctx.Value(userKey).(*models.User)
	return user, ok
}

// ContextWithUser возвращает контекст с установленной идентичностью.
func ContextWithUser(ctx context.Context, user *models.User) context.Context {
	return context.WithValue(ctx, userKey, user)
}

func resolveUser(r *http.Request, parser TokenParser, users UserLoader) (*models.User, bool) {
	authHeader := r.Header.Get("Authorization")
	if !strings.HasPrefix(authHeader, "Bearer ") {
		return nil, false
	}
	tokenStr := strings.TrimPrefix(authHeader, "Bearer ")

	claims, err := parser.ParseAccessToken(tokenStr)
	if err != nil {
		return nil, false
	}
	user, err := users.GetUser(r.Context(), claims.UserUID)
	if err != nil {
		return nil, false
	}
	return user, true
}

// JWTMiddleware возвращает middleware, требующий валидный access-токен.
//
// Если токен валиден и пользователь существует, пользователь добавляется
// в контекст запроса, иначе возвращается HTTP 401 Unauthorized.
func JWTMiddleware(parser TokenParser, users UserLoader, log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			const op = "middlewarectx.JWTMiddleware"

			log := log.With(
				slog.String("op", op),
				slog.String("request_id", middleware.GetReqID(r.Context())),
			)

			user, ok := resolveUser(r, parser, users)
			if !ok {
				log.Error("missing, invalid or expired access token")
				w.WriteHeader(http.StatusUnauthorized)
				render.JSON(w, r, response.Error("invalid or expired token"))
				return
			}
			ctx := context.WithValue(r.Context(), userKey, user)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// OptionalJWTMiddleware возвращает middleware, пытающийся аутентифицировать
// запрос. Любая ошибка проверки не прерывает обработку: запрос продолжается
// без идентичности в контексте.
func OptionalJWTMiddleware(parser TokenParser, users UserLoader) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if user, ok := resolveUser(r, parser, users); ok {
				ctx := context.WithValue(r.Context(), userKey, user)
				r = r.WithContext(ctx)
			}
			next.ServeHTTP(w, r)
		})
	}
}
