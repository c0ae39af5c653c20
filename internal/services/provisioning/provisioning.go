// Package provisioning создаёт учётную запись администратора при развёртывании.
package provisioning

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/magabrotheeeer/subscription-billing/internal/lib/apperr"
	"github.com/magabrotheeeer/subscription-billing/internal/lib/password"
	"github.com/magabrotheeeer/subscription-billing/internal/models"
)

// Repository создаёт администратора, если его ещё нет.
type Repository interface {
	EnsureAdmin(ctx context.Context, email, username, passwordHash string) (bool, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
}

// Admin: параметры учётной записи администратора.
type Admin struct {
	Email    string
	Username string
	Password string
}

type Service struct {
	repo Repository
	log  *slog.Logger
}

func New(repo Repository, log *slog.Logger) *Service {
	return &Service{repo: repo, log: log}
}

// EnsureAdmin идемпотентно создаёт администратора. Существующая запись не меняется.
func (s *Service) EnsureAdmin(ctx context.Context, admin Admin) (bool, error) {
	const op = "provisioning.EnsureAdmin"

	email := strings.ToLower(strings.TrimSpace(admin.Email))
	if email == "" || !strings.Contains(email, "@") {
		return false, fmt.Errorf("%s: %w", op, apperr.Validation("admin email is invalid"))
	}
	username := admin.Username
	if username == "" {
		username = strings.SplitN(email, "@", 2)[0]
	}

	hash, err := password.GetHash(admin.Password)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, apperr.Validation(err.Error()))
	}
	created, err := s.repo.EnsureAdmin(ctx, email, username, hash)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	if created {
		s.log.Info("admin account created", slog.String("email", email))
		return true, nil
	}

	existing, err := s.repo.GetUserByEmail(ctx, email)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	if existing.Role != models.RoleAdmin {
		return false, fmt.Errorf("%s: %w", op, apperr.Conflict("email belongs to a non-admin account"))
	}
	// Пароль существующего администратора не перезаписывается.
	if err := password.CompareHash(existing.PasswordHash, admin.Password); err != nil {
		s.log.Warn("admin password differs from configured one, left unchanged", slog.String("email", email))
	}
	s.log.Info("admin account already exists", slog.String("email", email))
	return false, nil
}
