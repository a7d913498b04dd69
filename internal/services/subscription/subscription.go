// Package subscription содержит бизнес-логику биллинга: реконсиляцию
// локального состояния подписки по webhook-событиям провайдера и операции
// оформления, отмены и чтения статуса подписки.
package subscription

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/magabrotheeeer/lesson-platform/internal/lib/sl"
	"github.com/magabrotheeeer/lesson-platform/internal/models"
	"github.com/magabrotheeeer/lesson-platform/internal/paymentprovider"
	"github.com/magabrotheeeer/lesson-platform/internal/storage/repository"
)

// Доменные ошибки сервиса подписок.
var (
	// ErrUserNotFound возвращается, когда событие провайдера ссылается на
	// клиента, которому не соответствует ни один локальный пользователь.
	// Это сигнал о расхождении данных, его нельзя молча глотать.
	ErrUserNotFound = errors.New("no local user for billing customer")
	// ErrNoSubscription возвращается, когда у пользователя нет подписки.
	ErrNoSubscription = errors.New("no subscription found for this user")
	// ErrPaymentProvider оборачивает любые сбои вызовов к провайдеру.
	ErrPaymentProvider = errors.New("payment provider error")
)

// UserRepository описывает нужные реконсилятору операции над пользователями.
type UserRepository interface {
	GetUser(ctx context.Context, userUID string) (*models.User, error)
	GetUserByCustomerID(ctx context.Context, customerID string) (*models.User, error)
	SetUserCustomerID(ctx context.Context, userUID, customerID string) error
	UpdateUserSnapshot(ctx context.Context, userUID string, snap models.SubscriptionSnapshot) error
	CancelUserSnapshot(ctx context.Context, userUID string) error
}

// RecordRepository описывает операции над отдельными записями подписок.
type RecordRepository interface {
	UpsertSubscriptionRecord(ctx context.Context, rec models.SubscriptionRecord) error
	MarkSubscriptionCancelled(ctx context.Context, userUID string) error
	GetSubscriptionRecord(ctx context.Context, userUID string) (*models.SubscriptionRecord, error)
}

// BillingClient описывает контракт клиента платежного провайдера.
// В тестах подменяется фейковой реализацией.
type BillingClient interface {
	CreateCustomer(ctx context.Context, email, name, userUID string) (*paymentprovider.Customer, error)
	CreateCheckoutSession(ctx context.Context, customerID, priceID, successURL, cancelURL string) (*paymentprovider.CheckoutSession, error)
	CreateBillingPortalSession(ctx context.Context, customerID, returnURL string) (*paymentprovider.PortalSession, error)
	GetSubscription(ctx context.Context, subscriptionID string) (*paymentprovider.Subscription, error)
	CancelSubscription(ctx context.Context, subscriptionID string) (*paymentprovider.Subscription, error)
}

// Publisher описывает публикацию уведомлений в брокер сообщений.
type Publisher interface {
	Publish(routingKey string, message any) error
}

// Service реализует реконсиляцию подписок и операции биллинга.
type Service struct {
	users     UserRepository
	records   RecordRepository
	provider  BillingClient
	publisher Publisher
	priceID   string
	log       *slog.Logger
}

// New создает новый экземпляр Service. publisher может быть nil,
// тогда уведомления не публикуются.
func New(users UserRepository, records RecordRepository, provider BillingClient,
	publisher Publisher, priceID string, log *slog.Logger) *Service {
	return &Service{
		users:     users,
		records:   records,
		provider:  provider,
		publisher: publisher,
		priceID:   priceID,
		log:       log,
	}
}

// mapSnapshotStatus переводит статус провайдера в статус снимка пользователя:
// права на контент дает только active, все прочее — inactive.
func mapSnapshotStatus(providerStatus string) string {
	if providerStatus == "active" {
		return models.SubscriptionStatusActive
	}
	return models.SubscriptionStatusInactive
}

// mapRecordStatus переводит статус провайдера в статус записи подписки,
// сохраняя больше деталей, чем снимок.
func mapRecordStatus(providerStatus string) string {
	switch providerStatus {
	case "active":
		return models.SubscriptionStatusActive
	case "past_due":
		return models.SubscriptionStatusPastDue
	case "canceled", "cancelled":
		return models.SubscriptionStatusCancelled
	default:
		return models.SubscriptionStatusInactive
	}
}

// HandleEvent применяет webhook-событие провайдера к локальному состоянию.
// Каждый обработчик идемпотентен: состояние всегда перезаписывается
// авторитетными полями провайдера, без инкрементов и слияний, а записи
// защищены от отката устаревшим событием. Неизвестные типы событий — no-op.
func (s *Service) HandleEvent(ctx context.Context, event *paymentprovider.Event) error {
	const op = "subscription.HandleEvent"

	switch event.Type {
	case paymentprovider.EventSubscriptionCreated, paymentprovider.EventSubscriptionUpdated:
		sub, err := decodeSubscription(event)
		if err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
		return s.applySubscription(ctx, sub)

	case paymentprovider.EventSubscriptionDeleted:
		sub, err := decodeSubscription(event)
		if err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
		return s.applyDeleted(ctx, sub)

	case paymentprovider.EventPaymentSucceeded, paymentprovider.EventPaymentFailed:
		invoice, err := decodeInvoice(event)
		if err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
		if invoice.SubscriptionID == "" {
			s.log.Info("invoice without subscription, skipping", slog.String("invoice_id", invoice.ID))
			return nil
		}
		// Счет — не источник истины о подписке: перечитываем её у провайдера
		// и применяем как обычное обновление.
		sub, err := s.provider.GetSubscription(ctx, invoice.SubscriptionID)
		if err != nil {
			return fmt.Errorf("%s: %w: %v", op, ErrPaymentProvider, err)
		}
		if err := s.applySubscription(ctx, sub); err != nil {
			return err
		}
		if event.Type == paymentprovider.EventPaymentFailed {
			s.notifyPaymentFailed(ctx, sub.CustomerID)
		}
		return nil

	default:
		s.log.Info("ignored webhook event", slog.String("event_type", event.Type))
		return nil
	}
}

func (s *Service) applySubscription(ctx context.Context, sub *paymentprovider.Subscription) error {
	const op = "subscription.applySubscription"

	user, err := s.users.GetUserByCustomerID(ctx, sub.CustomerID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return fmt.Errorf("%s: %w: customer %s", op, ErrUserNotFound, sub.CustomerID)
		}
		return fmt.Errorf("%s: %w", op, err)
	}

	periodEnd := time.Unix(sub.CurrentPeriodEnd, 0).UTC()
	snapshot := models.SubscriptionSnapshot{
		Status:           mapSnapshotStatus(sub.Status),
		CustomerID:       sub.CustomerID,
		SubscriptionID:   sub.ID,
		CurrentPeriodEnd: &periodEnd,
	}
	if err := s.users.UpdateUserSnapshot(ctx, user.UID, snapshot); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	rec := models.SubscriptionRecord{
		UserUID:            user.UID,
		CustomerID:         sub.CustomerID,
		SubscriptionID:     sub.ID,
		Status:             mapRecordStatus(sub.Status),
		CurrentPeriodStart: time.Unix(sub.CurrentPeriodStart, 0).UTC(),
		CurrentPeriodEnd:   periodEnd,
		CancelAtPeriodEnd:  sub.CancelAtPeriodEnd,
	}
	if err := s.records.UpsertSubscriptionRecord(ctx, rec); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	s.log.Info("subscription reconciled",
		slog.String("user_uid", user.UID),
		slog.String("status", rec.Status),
		slog.Time("current_period_end", periodEnd))
	return nil
}

func (s *Service) applyDeleted(ctx context.Context, sub *paymentprovider.Subscription) error {
	const op = "subscription.applyDeleted"

	user, err := s.users.GetUserByCustomerID(ctx, sub.CustomerID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return fmt.Errorf("%s: %w: customer %s", op, ErrUserNotFound, sub.CustomerID)
		}
		return fmt.Errorf("%s: %w", op, err)
	}

	// Отмена терминальна: статус форсируется, последний известный конец
	// периода сохраняется.
	if err := s.users.CancelUserSnapshot(ctx, user.UID); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if err := s.records.MarkSubscriptionCancelled(ctx, user.UID); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	s.log.Info("subscription cancelled", slog.String("user_uid", user.UID))
	return nil
}

func (s *Service) notifyPaymentFailed(ctx context.Context, customerID string) {
	if s.publisher == nil {
		return
	}
	user, err := s.users.GetUserByCustomerID(ctx, customerID)
	if err != nil {
		s.log.Warn("failed to load user for payment notice", sl.Err(err))
		return
	}
	notice := models.PaymentFailureNotice{
		Email:     user.Email,
		FirstName: user.FirstName,
		LastName:  user.LastName,
	}
	// Сбой публикации не должен провалить обработку webhook.
	if err := s.publisher.Publish("payment.failed", notice); err != nil {
		s.log.Warn("failed to publish payment failure notice", sl.Err(err))
	}
}
