package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/magabrotheeeer/subscription-billing/internal/lib/apperr"
	"github.com/magabrotheeeer/subscription-billing/internal/models"
)

const userColumns = `id, email, username, password_hash, role, external_customer_ref, created_at`

func scanUser(row rowScanner) (*models.User, error) {
	var u models.User
	var customerRef sql.NullString
	if err := row.Scan(&u.ID, &u.Email, &u.Username, &u.PasswordHash, &u.Role, &customerRef, &u.CreatedAt); err != nil {
		return nil, err
	}
	u.ExternalCustomerRef = stringPtr(customerRef)
	return &u, nil
}

// GetUser возвращает пользователя по ID.
func (s *Storage) GetUser(ctx context.Context, userID string) (*models.User, error) {
	const op = "storage.GetUser"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	u, err := scanUser(s.DB.QueryRowContext(ctx, query, userID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", op, apperr.NotFound("user"))
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return u, nil
}

// GetUserByEmail возвращает пользователя по email.
func (s *Storage) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	const op = "storage.GetUserByEmail"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1`
	u, err := scanUser(s.DB.QueryRowContext(ctx, query, email))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", op, apperr.NotFound("user"))
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return u, nil
}

// SetExternalCustomerRef сохраняет ID клиента в платёжном шлюзе.
func (s *Storage) SetExternalCustomerRef(ctx context.Context, userID, customerRef string) error {
	const op = "storage.SetExternalCustomerRef"

	res, err := s.DB.ExecContext(ctx, `UPDATE users SET external_customer_ref = $1 WHERE id = $2`, customerRef, userID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", op, apperr.NotFound("user"))
	}
	return nil
}

// EnsureAdmin создаёт администратора, если пользователя с таким email ещё нет.
// Возвращает true, если запись была создана.
func (s *Storage) EnsureAdmin(ctx context.Context, email, username, passwordHash string) (bool, error) {
	const op = "storage.EnsureAdmin"

	query := `INSERT INTO users (email, username, password_hash, role)
			  VALUES ($1, $2, $3, $4)
			  ON CONFLICT (email) DO NOTHING`
	res, err := s.DB.ExecContext(ctx, query, email, username, passwordHash, models.RoleAdmin)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	return n == 1, nil
}
