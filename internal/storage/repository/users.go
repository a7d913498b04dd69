package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/magabrotheeeer/lesson-platform/internal/models"
)

const userColumns = `uid, email, password_hash, first_name, last_name, role,
			      subscription_status, customer_id, subscription_id, current_period_end, created_at`

func scanUser(row *sql.Row) (*models.User, error) {
	u := &models.User{}
	var customerID, subscriptionID sql.NullString
	var currentPeriodEnd sql.NullTime
	if err := row.Scan(&u.UID, &u.Email, &u.PasswordHash, &u.FirstName, &u.LastName,
		&u.Role, &u.Subscription.Status, &customerID, &subscriptionID,
		&currentPeriodEnd, &u.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	if customerID.Valid {
		u.Subscription.CustomerID = customerID.String
	}
	if subscriptionID.Valid {
		u.Subscription.SubscriptionID = subscriptionID.String
	}
	if currentPeriodEnd.Valid {
		u.Subscription.CurrentPeriodEnd = &currentPeriodEnd.Time
	}
	return u, nil
}

// RegisterUser сохраняет нового пользователя в базу данных и возвращает его UID.
// Нарушение уникальности email транслируется в ErrDuplicateEmail.
func (s *Storage) RegisterUser(ctx context.Context, user models.User) (string, error) {
	const op = "storage.RegisterUser"

	var newUID string
	query := `INSERT INTO users (email, password_hash, first_name, last_name, role,
			      subscription_status)
			  VALUES ($1, $2, $3, $4, $5, $6)
			  RETURNING uid;`
	if err := s.DB.QueryRowContext(ctx, query,
		user.Email, user.PasswordHash, user.FirstName, user.LastName, user.Role,
		user.Subscription.Status).Scan(&newUID); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return "", fmt.Errorf("%s: %w", op, ErrDuplicateEmail)
		}
		return "", fmt.Errorf("%s: %w", op, err)
	}
	return newUID, nil
}

// GetUserByEmail возвращает пользователя по его email.
func (s *Storage) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	const op = "storage.GetUserByEmail"

	query := `SELECT ` + userColumns + `
			  FROM users
			  WHERE email = $1`
	u, err := scanUser(s.DB.QueryRowContext(ctx, query, email))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return u, nil
}

// GetUser возвращает пользователя по его UID.
func (s *Storage) GetUser(ctx context.Context, userUID string) (*models.User, error) {
	const op = "storage.GetUser"

	query := `SELECT ` + userColumns + `
			  FROM users
			  WHERE uid = $1`
	u, err := scanUser(s.DB.QueryRowContext(ctx, query, userUID))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return u, nil
}

// GetUserByCustomerID возвращает пользователя по идентификатору клиента
// у платежного провайдера. Используется реконсилятором webhook-событий.
func (s *Storage) GetUserByCustomerID(ctx context.Context, customerID string) (*models.User, error) {
	const op = "storage.GetUserByCustomerID"

	query := `SELECT ` + userColumns + `
			  FROM users
			  WHERE customer_id = $1`
	u, err := scanUser(s.DB.QueryRowContext(ctx, query, customerID))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return u, nil
}

// UpdateUserProfile обновляет изменяемые поля профиля пользователя.
// Пустая строка означает «поле не менять». Возвращает обновленного
// пользователя; нарушение уникальности email транслируется в ErrDuplicateEmail.
func (s *Storage) UpdateUserProfile(ctx context.Context, userUID, email, firstName, lastName string) (*models.User, error) {
	const op = "storage.UpdateUserProfile"

	query := `UPDATE users
			  SET email = COALESCE(NULLIF($1, ''), email),
			      first_name = COALESCE(NULLIF($2, ''), first_name),
			      last_name = COALESCE(NULLIF($3, ''), last_name)
			  WHERE uid = $4
			  RETURNING ` + userColumns
	u, err := scanUser(s.DB.QueryRowContext(ctx, query, email, firstName, lastName, userUID))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return nil, fmt.Errorf("%s: %w", op, ErrDuplicateEmail)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return u, nil
}

// ListUsers возвращает страницу пользователей, отсортированных от новых
// к старым, и общее количество пользователей.
func (s *Storage) ListUsers(ctx context.Context, limit, offset int) ([]*models.User, int, error) {
	const op = "storage.ListUsers"

	var total int
	if err := s.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("%s: %w", op, err)
	}

	query := `SELECT ` + userColumns + `
			  FROM users
			  ORDER BY created_at DESC
			  LIMIT $1 OFFSET $2`
	rows, err := s.DB.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("%s: %w", op, err)
	}
	defer func() { _ = rows.Close() }()

	var users []*models.User
	for rows.Next() {
		u := &models.User{}
		var customerID, subscriptionID sql.NullString
		var currentPeriodEnd sql.NullTime
		if err := rows.Scan(&u.UID, &u.Email, &u.PasswordHash, &u.FirstName, &u.LastName,
			&u.Role, &u.Subscription.Status, &customerID, &subscriptionID,
			&currentPeriodEnd, &u.CreatedAt); err != nil {
			return nil, 0, fmt.Errorf("%s: %w", op, err)
		}
		if customerID.Valid {
			u.Subscription.CustomerID = customerID.String
		}
		if subscriptionID.Valid {
			u.Subscription.SubscriptionID = subscriptionID.String
		}
		if currentPeriodEnd.Valid {
			u.Subscription.CurrentPeriodEnd = &currentPeriodEnd.Time
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("%s: %w", op, err)
	}
	return users, total, nil
}

// DeleteUser удаляет пользователя. Запись подписки удаляется каскадно.
func (s *Storage) DeleteUser(ctx context.Context, userUID string) error {
	const op = "storage.DeleteUser"

	res, err := s.DB.ExecContext(ctx, `DELETE FROM users WHERE uid = $1`, userUID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if rows == 0 {
		return fmt.Errorf("%s: %w", op, ErrUserNotFound)
	}
	return nil
}

// AppendRefreshToken добавляет выданный refresh-токен в набор токенов пользователя.
func (s *Storage) AppendRefreshToken(ctx context.Context, userUID, token string) error {
	const op = "storage.AppendRefreshToken"

	query := `UPDATE users
			  SET refresh_tokens = array_append(refresh_tokens, $1)
			  WHERE uid = $2`
	res, err := s.DB.ExecContext(ctx, query, token, userUID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if rows == 0 {
		return fmt.Errorf("%s: %w", op, ErrUserNotFound)
	}
	return nil
}

// RotateRefreshToken атомарно заменяет предъявленный refresh-токен новым.
// Выполняется одним UPDATE с условием членства предъявленного токена в наборе:
// из двух конкурентных запросов с одним и тем же старым токеном ровно один
// проходит, второй получает rotated=false.
func (s *Storage) RotateRefreshToken(ctx context.Context, userUID, oldToken, newToken string) (bool, error) {
	const op = "storage.RotateRefreshToken"

	query := `UPDATE users
			  SET refresh_tokens = array_append(array_remove(refresh_tokens, $1), $2)
			  WHERE uid = $3 AND $1 = ANY(refresh_tokens)`
	res, err := s.DB.ExecContext(ctx, query, oldToken, newToken, userUID)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	return rows > 0, nil
}

// RemoveRefreshToken удаляет предъявленный refresh-токен у владеющего им
// пользователя. Отсутствие токена не является ошибкой: выход из системы
// идемпотентен.
func (s *Storage) RemoveRefreshToken(ctx context.Context, token string) error {
	const op = "storage.RemoveRefreshToken"

	query := `UPDATE users
			  SET refresh_tokens = array_remove(refresh_tokens, $1)
			  WHERE $1 = ANY(refresh_tokens)`
	if _, err := s.DB.ExecContext(ctx, query, token); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// SetUserCustomerID сохраняет идентификатор клиента у провайдера,
// полученный при первом оформлении подписки.
func (s *Storage) SetUserCustomerID(ctx context.Context, userUID, customerID string) error {
	const op = "storage.SetUserCustomerID"

	query := `UPDATE users
			  SET customer_id = $1
			  WHERE uid = $2`
	if _, err := s.DB.ExecContext(ctx, query, customerID, userUID); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// UpdateUserSnapshot перезаписывает снимок подписки пользователя данными
// провайдера. Условие на current_period_end защищает от повторной доставки
// устаревшего события после более нового: конец периода не регрессирует.
// Статус cancelled терминален: событие с тем же концом периода его не
// перебивает, выйти из cancelled может только строго более новый период.
func (s *Storage) UpdateUserSnapshot(ctx context.Context, userUID string, snap models.SubscriptionSnapshot) error {
	const op = "storage.UpdateUserSnapshot"

	query := `UPDATE users
			  SET subscription_status = $1,
			      customer_id = $2,
			      subscription_id = $3,
			      current_period_end = $4
			  WHERE uid = $5
			    AND (current_period_end IS NULL
			         OR current_period_end < $4
			         OR (current_period_end = $4 AND subscription_status <> $6))`
	if _, err := s.DB.ExecContext(ctx, query,
		snap.Status, snap.CustomerID, snap.SubscriptionID, snap.CurrentPeriodEnd, userUID,
		models.SubscriptionStatusCancelled); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// CancelUserSnapshot принудительно переводит снимок подписки в cancelled,
// сохраняя последний известный конец периода. Отмена терминальна и
// применяется без защиты от регрессии.
func (s *Storage) CancelUserSnapshot(ctx context.Context, userUID string) error {
	const op = "storage.CancelUserSnapshot"

	query := `UPDATE users
			  SET subscription_status = $1
			  WHERE uid = $2`
	if _, err := s.DB.ExecContext(ctx, query, models.SubscriptionStatusCancelled, userUID); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}
