package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/magabrotheeeer/lesson-platform/internal/models"
)

// UpsertSubscriptionRecord создает или обновляет запись подписки пользователя.
// Upsert по user_uid делает повторную доставку одного webhook-события
// идемпотентной. Условие в DO UPDATE не даёт устаревшему событию откатить
// конец периода назад; статус cancelled применяется всегда и терминален:
// повтор события с тем же концом периода хранящийся cancelled не перебивает,
// вернуть запись в active может только строго более новый период.
func (s *Storage) UpsertSubscriptionRecord(ctx context.Context, rec models.SubscriptionRecord) error {
	const op = "storage.UpsertSubscriptionRecord"

	query := `INSERT INTO subscriptions (user_uid, customer_id, subscription_id, status,
			      current_period_start, current_period_end, cancel_at_period_end, updated_at)
			  VALUES ($1, $2, $3, $4, $5, $6, $7, now())
			  ON CONFLICT (user_uid) DO UPDATE
			  SET customer_id = EXCLUDED.customer_id,
			      subscription_id = EXCLUDED.subscription_id,
			      status = EXCLUDED.status,
			      current_period_start = EXCLUDED.current_period_start,
			      current_period_end = EXCLUDED.current_period_end,
			      cancel_at_period_end = EXCLUDED.cancel_at_period_end,
			      updated_at = now()
			  WHERE EXCLUDED.status = 'cancelled'
			     OR subscriptions.current_period_end < EXCLUDED.current_period_end
			     OR (subscriptions.current_period_end = EXCLUDED.current_period_end
			         AND subscriptions.status <> 'cancelled')`
	if _, err := s.DB.ExecContext(ctx, query,
		rec.UserUID, rec.CustomerID, rec.SubscriptionID, rec.Status,
		rec.CurrentPeriodStart, rec.CurrentPeriodEnd, rec.CancelAtPeriodEnd); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// MarkSubscriptionCancelled переводит запись подписки в cancelled
// с cancel_at_period_end=true, не трогая границы периода.
func (s *Storage) MarkSubscriptionCancelled(ctx context.Context, userUID string) error {
	const op = "storage.MarkSubscriptionCancelled"

	query := `UPDATE subscriptions
			  SET status = $1,
			      cancel_at_period_end = TRUE,
			      updated_at = now()
			  WHERE user_uid = $2`
	if _, err := s.DB.ExecContext(ctx, query, models.SubscriptionStatusCancelled, userUID); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// GetSubscriptionRecord возвращает запись подписки пользователя.
func (s *Storage) GetSubscriptionRecord(ctx context.Context, userUID string) (*models.SubscriptionRecord, error) {
	const op = "storage.GetSubscriptionRecord"

	query := `SELECT user_uid, customer_id, subscription_id, status,
			      current_period_start, current_period_end, cancel_at_period_end, updated_at
			  FROM subscriptions
			  WHERE user_uid = $1`
	rec := &models.SubscriptionRecord{}
	if err := s.DB.QueryRowContext(ctx, query, userUID).Scan(
		&rec.UserUID, &rec.CustomerID, &rec.SubscriptionID, &rec.Status,
		&rec.CurrentPeriodStart, &rec.CurrentPeriodEnd, &rec.CancelAtPeriodEnd,
		&rec.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, ErrSubscriptionNotFound)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return rec, nil
}
