package paymentprovider

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client — HTTP-клиент биллингового API. Все методы возвращают ошибку,
// если провайдер ответил не-2xx статусом.
type Client struct {
	secretKey  string
	apiURL     string
	httpClient *http.Client
}

// NewClient создаёт нового клиента биллингового API.
func NewClient(apiURL, secretKey string, timeout time.Duration) *Client {
	return &Client{
		secretKey:  secretKey,
		apiURL:     apiURL,
		httpClient: &http.Client{Timeout: timeout},
	}
}

func (c *Client) do(ctx context.Context, method, path string, params url.Values, out any) error {
	const op = "paymentprovider.do"
	var body io.Reader
	if params != nil {
		body = strings.NewReader(params.Encode())
	}
	req, err := http.NewRequestWithContext(ctx, method, c.apiURL+path, body)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	req.Header.Set("Authorization", "Bearer "+c.secretKey)
	if params != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%s: unexpected status %s", op, resp.Status)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// CreateCustomer регистрирует клиента у провайдера. Идентификатор
// пользователя передается в метаданных для обратной связи.
func (c *Client) CreateCustomer(ctx context.Context, email, name, userUID string) (*Customer, error) {
	params := url.Values{}
	params.Set("email", email)
	params.Set("name", name)
	params.Set("metadata[user_uid]", userUID)

	var customer Customer
	if err := c.do(ctx, http.MethodPost, "/customers", params, &customer); err != nil {
		return nil, err
	}
	return &customer, nil
}

// CreateCheckoutSession создает сессию оформления подписки на тариф priceID.
func (c *Client) CreateCheckoutSession(ctx context.Context, customerID, priceID, successURL, cancelURL string) (*CheckoutSession, error) {
	params := url.Values{}
	params.Set("customer", customerID)
	params.Set("mode", "subscription")
	params.Set("line_items[0][price]", priceID)
	params.Set("line_items[0][quantity]", "1")
	params.Set("success_url", successURL)
	params.Set("cancel_url", cancelURL)

	var session CheckoutSession
	if err := c.do(ctx, http.MethodPost, "/checkout/sessions", params, &session); err != nil {
		return nil, err
	}
	return &session, nil
}

// CreateBillingPortalSession создает сессию личного кабинета биллинга.
func (c *Client) CreateBillingPortalSession(ctx context.Context, customerID, returnURL string) (*PortalSession, error) {
	params := url.Values{}
	params.Set("customer", customerID)
	params.Set("return_url", returnURL)

	var session PortalSession
	if err := c.do(ctx, http.MethodPost, "/billing_portal/sessions", params, &session); err != nil {
		return nil, err
	}
	return &session, nil
}

// GetSubscription возвращает актуальное состояние подписки у провайдера.
func (c *Client) GetSubscription(ctx context.Context, subscriptionID string) (*Subscription, error) {
	var sub Subscription
	if err := c.do(ctx, http.MethodGet, "/subscriptions/"+subscriptionID, nil, &sub); err != nil {
		return nil, err
	}
	return &sub, nil
}

// CancelSubscription помечает подписку к отмене в конце оплаченного периода.
func (c *Client) CancelSubscription(ctx context.Context, subscriptionID string) (*Subscription, error) {
	params := url.Values{}
	params.Set("cancel_at_period_end", "true")

	var sub Subscription
	if err := c.do(ctx, http.MethodPost, "/subscriptions/"+subscriptionID, params, &sub); err != nil {
		return nil, err
	}
	return &sub, nil
}
