// Package lessonplatform собирает HTTP-приложение платформы уроков:
// подключения, сервисы, маршруты и жизненный цикл сервера.
package lessonplatform

import (
	"log/slog"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/magabrotheeeer/lesson-platform/internal/http/handlers/auth/login"
	"github.com/magabrotheeeer/lesson-platform/internal/http/handlers/auth/logout"
	"github.com/magabrotheeeer/lesson-platform/internal/http/handlers/auth/profile"
	"github.com/magabrotheeeer/lesson-platform/internal/http/handlers/auth/refresh"
	"github.com/magabrotheeeer/lesson-platform/internal/http/handlers/auth/register"
	lessoncreate "github.com/magabrotheeeer/lesson-platform/internal/http/handlers/lesson/create"
	lessonlist "github.com/magabrotheeeer/lesson-platform/internal/http/handlers/lesson/list"
	lessonread "github.com/magabrotheeeer/lesson-platform/internal/http/handlers/lesson/read"
	lessonremove "github.com/magabrotheeeer/lesson-platform/internal/http/handlers/lesson/remove"
	lessonupdate "github.com/magabrotheeeer/lesson-platform/internal/http/handlers/lesson/update"
	"github.com/magabrotheeeer/lesson-platform/internal/http/handlers/subscription/cancel"
	"github.com/magabrotheeeer/lesson-platform/internal/http/handlers/subscription/checkout"
	"github.com/magabrotheeeer/lesson-platform/internal/http/handlers/subscription/portal"
	"github.com/magabrotheeeer/lesson-platform/internal/http/handlers/subscription/status"
	"github.com/magabrotheeeer/lesson-platform/internal/http/handlers/subscription/webhook"
	userlist "github.com/magabrotheeeer/lesson-platform/internal/http/handlers/user/list"
	userread "github.com/magabrotheeeer/lesson-platform/internal/http/handlers/user/read"
	userremove "github.com/magabrotheeeer/lesson-platform/internal/http/handlers/user/remove"
	userupdate "github.com/magabrotheeeer/lesson-platform/internal/http/handlers/user/update"
	"github.com/magabrotheeeer/lesson-platform/internal/http/middlewarectx"
	libjwt "github.com/magabrotheeeer/lesson-platform/internal/lib/jwt"
	"github.com/magabrotheeeer/lesson-platform/internal/models"
	authservice "github.com/magabrotheeeer/lesson-platform/internal/services/auth"
	lessonservice "github.com/magabrotheeeer/lesson-platform/internal/services/lesson"
	subservice "github.com/magabrotheeeer/lesson-platform/internal/services/subscription"
	userservice "github.com/magabrotheeeer/lesson-platform/internal/services/user"
	"github.com/magabrotheeeer/lesson-platform/internal/storage/repository"
)

// RegisterRoutes регистрирует все маршруты приложения.
func RegisterRoutes(
	r chi.Router,
	logger *slog.Logger,
	tokens *libjwt.PairMaker,
	storage *repository.Storage,
	authService *authservice.AuthService,
	lessonService *lessonservice.Service,
	subscriptionService *subservice.Service,
	userService *userservice.Service,
	webhookSecret string,
) {
	// Глобальные middleware
	r.Use(
		middleware.RequestID,
		middleware.Logger,
		middleware.Recoverer,
		middleware.URLFormat,
	)

	r.Route("/api/v1", func(r chi.Router) {
		// Открытые конечные точки
		r.Post("/auth/register", register.New(logger, authService).ServeHTTP)
		r.Post("/auth/login", login.New(logger, authService).ServeHTTP)
		r.Post("/auth/refresh", refresh.New(logger, authService).ServeHTTP)
		r.Post("/auth/logout", logout.New(logger, authService).ServeHTTP)

		// Webhook провайдера (без аутентификации, подпись проверяется телом)
		r.Post("/subscriptions/webhook", webhook.New(logger, subscriptionService, webhookSecret).ServeHTTP)

		// Каталог читается и анонимно: идентичность добавляется,
		// если токен есть и валиден
		r.Group(func(r chi.Router) {
			r.Use(middlewarectx.OptionalJWTMiddleware(tokens, storage))
			r.Get("/lessons", lessonlist.New(logger, lessonService).ServeHTTP)
			r.Get("/lessons/{uid}", lessonread.New(logger, lessonService).ServeHTTP)
		})

		// Группа с обязательной JWT аутентификацией
		r.Group(func(r chi.Router) {
			r.Use(middlewarectx.JWTMiddleware(tokens, storage, logger))
			r.Use(middlewarectx.RateLimitMiddleware(logger))
			r.Get("/auth/profile", profile.New(logger, authService).ServeHTTP)
			r.Put("/users/profile", userupdate.New(logger, userService).ServeHTTP)
			r.Post("/subscriptions/checkout", checkout.New(logger, subscriptionService).ServeHTTP)
			r.Post("/subscriptions/portal", portal.New(logger, subscriptionService).ServeHTTP)
			r.Get("/subscriptions/status", status.New(logger, subscriptionService).ServeHTTP)
			r.Delete("/subscriptions", cancel.New(logger, subscriptionService).ServeHTTP)

			// Управление каталогом и пользователями доступно
			// только администраторам
			r.Group(func(r chi.Router) {
				r.Use(middlewarectx.RequireRole(logger, models.RoleAdmin))
				r.Post("/lessons", lessoncreate.New(logger, lessonService).ServeHTTP)
				r.Put("/lessons/{uid}", lessonupdate.New(logger, lessonService).ServeHTTP)
				r.Delete("/lessons/{uid}", lessonremove.New(logger, lessonService).ServeHTTP)
				r.Get("/users", userlist.New(logger, userService).ServeHTTP)
				r.Get("/users/{uid}", userread.New(logger, userService).ServeHTTP)
				r.Delete("/users/{uid}", userremove.New(logger, userService).ServeHTTP)
			})
		})
	})

	r.Handle("/metrics", promhttp.Handler())
}
