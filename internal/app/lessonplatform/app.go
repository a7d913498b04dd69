package lessonplatform

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi"
	"github.com/streadway/amqp"

	"github.com/magabrotheeeer/lesson-platform/internal/cache"
	"github.com/magabrotheeeer/lesson-platform/internal/config"
	libjwt "github.com/magabrotheeeer/lesson-platform/internal/lib/jwt"
	"github.com/magabrotheeeer/lesson-platform/internal/lib/rabbitmq"
	"github.com/magabrotheeeer/lesson-platform/internal/migrations"
	"github.com/magabrotheeeer/lesson-platform/internal/paymentprovider"
	authservice "github.com/magabrotheeeer/lesson-platform/internal/services/auth"
	lessonservice "github.com/magabrotheeeer/lesson-platform/internal/services/lesson"
	subservice "github.com/magabrotheeeer/lesson-platform/internal/services/subscription"
	userservice "github.com/magabrotheeeer/lesson-platform/internal/services/user"
	"github.com/magabrotheeeer/lesson-platform/internal/storage/repository"
)

// App инкапсулирует HTTP-сервер и его зависимости.
type App struct {
	server     *http.Server
	logger     *slog.Logger
	db         *repository.Storage
	rabbitConn *amqp.Connection
	rabbitCh   *amqp.Channel
}

// New собирает приложение: хранилище с миграциями, кеш, брокер,
// клиента провайдера, сервисы и роутер.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	db, err := repository.New(cfg.StorageConnectionString)
	if err != nil {
		return nil, err
	}
	if err = migrations.Run(db.DB, cfg.MigrationsPath); err != nil {
		return nil, err
	}

	cacheRedis, err := cache.InitServer(ctx, cfg.RedisConnection)
	if err != nil {
		return nil, err
	}

	conn, err := rabbitmq.Connect(cfg.RabbitMQURL, cfg.RabbitMQMaxRetries, cfg.RabbitMQRetryDelay)
	if err != nil {
		return nil, err
	}
	ch, err := rabbitmq.SetupChannel(conn, rabbitmq.GetNotificationQueues())
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	publisher := rabbitmq.NewPublisher(ch, rabbitmq.NotificationsExchange)

	tokens := libjwt.NewPairMaker(
		cfg.JWTToken.AccessSecretKey,
		cfg.JWTToken.RefreshSecretKey,
		cfg.JWTToken.AccessTokenTTL,
		cfg.JWTToken.RefreshTokenTTL,
	)
	providerClient := paymentprovider.NewClient(cfg.Billing.APIURL, cfg.Billing.SecretKey, cfg.Billing.Timeout)

	authService := authservice.NewAuthService(db, tokens, logger)
	lessonService := lessonservice.New(db, cacheRedis, logger)
	subscriptionService := subservice.New(db, db, providerClient, publisher, cfg.Billing.PriceID, logger)
	userService := userservice.New(db, logger)

	router := chi.NewRouter()
	RegisterRoutes(router, logger, tokens, db, authService, lessonService, subscriptionService, userService, cfg.Billing.WebhookSecret)

	srv := &http.Server{
		Addr:         cfg.AddressHTTP,
		Handler:      router,
		ReadTimeout:  cfg.TimeoutHTTP,
		WriteTimeout: cfg.TimeoutHTTP,
		IdleTimeout:  cfg.IdleTimeout,
	}

	return &App{
		server:     srv,
		logger:     logger,
		db:         db,
		rabbitConn: conn,
		rabbitCh:   ch,
	}, nil
}

// Run запускает HTTP-сервер и блокируется до его остановки либо отмены
// контекста. При отмене сервер останавливается gracefully.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("HTTP server starting on", slog.String("address", a.server.Addr))
		err := a.server.ListenAndServe()
		if errors.Is(err, http.ErrServerClosed) {
			errCh <- nil
		} else {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		timeoutCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		a.logger.Info("shutting down HTTP server gracefully")
		err := a.server.Shutdown(timeoutCtx)
		if closeErr := a.rabbitCh.Close(); closeErr != nil {
			a.logger.Error("failed to close rabbitmq channel", slog.Any("err", closeErr))
		}
		if closeErr := a.rabbitConn.Close(); closeErr != nil {
			a.logger.Error("failed to close rabbitmq connection", slog.Any("err", closeErr))
		}
		if closeErr := a.db.DB.Close(); closeErr != nil {
			a.logger.Error("failed to close storage", slog.Any("err", closeErr))
		}
		return err
	}
}
