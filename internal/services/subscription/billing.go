package subscription

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/magabrotheeeer/lesson-platform/internal/lib/entitlement"
	"github.com/magabrotheeeer/lesson-platform/internal/models"
	"github.com/magabrotheeeer/lesson-platform/internal/paymentprovider"
	"github.com/magabrotheeeer/lesson-platform/internal/storage/repository"
)

// Status — сводка состояния подписки пользователя для ответа API.
type Status struct {
	HasSubscription    bool       `json:"has_subscription"`
	Status             string     `json:"status,omitempty"`
	CurrentPeriodStart *time.Time `json:"current_period_start,omitempty"`
	CurrentPeriodEnd   *time.Time `json:"current_period_end,omitempty"`
	CancelAtPeriodEnd  bool       `json:"cancel_at_period_end"`
	IsActive           bool       `json:"is_active"`
}

func decodeSubscription(event *paymentprovider.Event) (*paymentprovider.Subscription, error) {
	var sub paymentprovider.Subscription
	if err := json.Unmarshal(event.Data.Object, &sub); err != nil {
		return nil, fmt.Errorf("decode subscription object: %w", err)
	}
	return &sub, nil
}

func decodeInvoice(event *paymentprovider.Event) (*paymentprovider.Invoice, error) {
	var invoice paymentprovider.Invoice
	if err := json.Unmarshal(event.Data.Object, &invoice); err != nil {
		return nil, fmt.Errorf("decode invoice object: %w", err)
	}
	return &invoice, nil
}

// CreateCheckoutSession создает сессию оформления подписки. При первом
// обращении регистрирует пользователя как клиента у провайдера и сохраняет
// ссылку на него локально.
func (s *Service) CreateCheckoutSession(ctx context.Context, userUID, successURL, cancelURL string) (*paymentprovider.CheckoutSession, error) {
	const op = "subscription.CreateCheckoutSession"

	user, err := s.users.GetUser(ctx, userUID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	customerID := user.Subscription.CustomerID
	if customerID == "" {
		customer, err := s.provider.CreateCustomer(ctx, user.Email,
			user.FirstName+" "+user.LastName, user.UID)
		if err != nil {
			return nil, fmt.Errorf("%s: %w: %v", op, ErrPaymentProvider, err)
		}
		customerID = customer.ID
		if err := s.users.SetUserCustomerID(ctx, user.UID, customerID); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		s.log.Info("created billing customer",
			slog.String("user_uid", user.UID), slog.String("customer_id", customerID))
	}

	session, err := s.provider.CreateCheckoutSession(ctx, customerID, s.priceID, successURL, cancelURL)
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %v", op, ErrPaymentProvider, err)
	}
	return session, nil
}

// CreateBillingPortalSession создает сессию личного кабинета биллинга.
func (s *Service) CreateBillingPortalSession(ctx context.Context, userUID, returnURL string) (*paymentprovider.PortalSession, error) {
	const op = "subscription.CreateBillingPortalSession"

	user, err := s.users.GetUser(ctx, userUID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if user.Subscription.CustomerID == "" {
		return nil, ErrNoSubscription
	}

	session, err := s.provider.CreateBillingPortalSession(ctx, user.Subscription.CustomerID, returnURL)
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %v", op, ErrPaymentProvider, err)
	}
	return session, nil
}

// GetStatus возвращает сводку состояния подписки: актуальное состояние у
// провайдера, локальную запись и результат проверки права доступа.
func (s *Service) GetStatus(ctx context.Context, userUID string) (*Status, error) {
	const op = "subscription.GetStatus"

	user, err := s.users.GetUser(ctx, userUID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if user.Subscription.SubscriptionID == "" {
		return &Status{HasSubscription: false}, nil
	}

	sub, err := s.provider.GetSubscription(ctx, user.Subscription.SubscriptionID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %v", op, ErrPaymentProvider, err)
	}

	periodStart := time.Unix(sub.CurrentPeriodStart, 0).UTC()
	periodEnd := time.Unix(sub.CurrentPeriodEnd, 0).UTC()
	// is_active считается по только что полученным у провайдера данным,
	// чтобы не противоречить остальным полям ответа.
	fresh := models.SubscriptionSnapshot{
		Status:           mapSnapshotStatus(sub.Status),
		CurrentPeriodEnd: &periodEnd,
	}
	status := &Status{
		HasSubscription:    true,
		Status:             mapRecordStatus(sub.Status),
		CurrentPeriodStart: &periodStart,
		CurrentPeriodEnd:   &periodEnd,
		CancelAtPeriodEnd:  sub.CancelAtPeriodEnd,
		IsActive:           entitlement.IsActive(fresh, time.Now()),
	}

	if rec, err := s.records.GetSubscriptionRecord(ctx, userUID); err == nil {
		status.CancelAtPeriodEnd = status.CancelAtPeriodEnd || rec.CancelAtPeriodEnd
	} else if !errors.Is(err, repository.ErrSubscriptionNotFound) {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return status, nil
}

// Cancel помечает подписку к отмене в конце оплаченного периода.
func (s *Service) Cancel(ctx context.Context, userUID string) (*Status, error) {
	const op = "subscription.Cancel"

	user, err := s.users.GetUser(ctx, userUID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if user.Subscription.SubscriptionID == "" {
		return nil, ErrNoSubscription
	}

	sub, err := s.provider.CancelSubscription(ctx, user.Subscription.SubscriptionID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %v", op, ErrPaymentProvider, err)
	}

	periodEnd := time.Unix(sub.CurrentPeriodEnd, 0).UTC()
	s.log.Info("subscription cancellation requested",
		slog.String("user_uid", user.UID), slog.Time("current_period_end", periodEnd))
	return &Status{
		HasSubscription:   true,
		Status:            mapRecordStatus(sub.Status),
		CurrentPeriodEnd:  &periodEnd,
		CancelAtPeriodEnd: sub.CancelAtPeriodEnd,
	}, nil
}
