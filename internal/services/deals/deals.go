// Package deals отдаёт сделки пользователя и привязывает к ним планы.
package deals

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/magabrotheeeer/subscription-billing/internal/models"
)

// Repository: операции хранилища для сделок.
type Repository interface {
	GetDeal(ctx context.Context, dealID string) (*models.Deal, error)
	ListDealsByUser(ctx context.Context, userID string) ([]*models.Deal, error)
	AddPlanToDeal(ctx context.Context, dealID, planID string) error
	GetPlan(ctx context.Context, planID string) (*models.Plan, error)
}

type Service struct {
	repo Repository
	log  *slog.Logger
}

func New(repo Repository, log *slog.Logger) *Service {
	return &Service{repo: repo, log: log}
}

// List возвращает сделки пользователя.
func (s *Service) List(ctx context.Context, userID string) ([]*models.Deal, error) {
	const op = "deals.List"
	list, err := s.repo.ListDealsByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return list, nil
}

// AddPlan добавляет план в сделку. Повторное добавление возвращает ErrConflict.
func (s *Service) AddPlan(ctx context.Context, dealID, planID string) (*models.Deal, error) {
	const op = "deals.AddPlan"

	if _, err := s.repo.GetDeal(ctx, dealID); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if _, err := s.repo.GetPlan(ctx, planID); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err := s.repo.AddPlanToDeal(ctx, dealID, planID); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	deal, err := s.repo.GetDeal(ctx, dealID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	s.log.Info("plan added to deal", slog.String("deal_id", dealID), slog.String("plan_id", planID))
	return deal, nil
}
