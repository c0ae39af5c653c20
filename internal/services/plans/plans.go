// Package plans ведёт каталог тарифных планов и связанные с ними товары в платёжном шлюзе.
package plans

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/magabrotheeeer/subscription-billing/internal/lib/apperr"
	"github.com/magabrotheeeer/subscription-billing/internal/lib/sl"
	"github.com/magabrotheeeer/subscription-billing/internal/models"
	"github.com/magabrotheeeer/subscription-billing/internal/paymentgateway"
)

const cacheTTL = time.Hour

// Repository: операции хранилища для планов.
type Repository interface {
	GetPlan(ctx context.Context, planID string) (*models.Plan, error)
	CreatePlan(ctx context.Context, plan models.Plan) (string, error)
	DeactivatePlan(ctx context.Context, planID string) error
}

// Gateway создаёт и деактивирует товары плана в шлюзе.
type Gateway interface {
	CreateProduct(ctx context.Context, name string, price decimal.Decimal, interval string) (*paymentgateway.Product, error)
	DeactivateProduct(ctx context.Context, productRef, priceRef string) error
}

// Cache: кэш планов.
type Cache interface {
	Get(ctx context.Context, key string, result any) (bool, error)
	Set(ctx context.Context, key string, value any, expiration time.Duration) error
	Invalidate(ctx context.Context, key string) error
}

// Service: каталог планов.
type Service struct {
	repo    Repository
	gateway Gateway
	cache   Cache
	log     *slog.Logger
}

// New создаёт Service.
func New(repo Repository, gateway Gateway, cache Cache, log *slog.Logger) *Service {
	return &Service{repo: repo, gateway: gateway, cache: cache, log: log}
}

func cacheKey(planID string) string {
	return "plan:" + planID
}

// GetPlan возвращает план, сначала из кэша.
func (s *Service) GetPlan(ctx context.Context, planID string) (*models.Plan, error) {
	const op = "plans.GetPlan"

	var cached models.Plan
	found, err := s.cache.Get(ctx, cacheKey(planID), &cached)
	if err != nil {
		s.log.Warn("failed to read plan from cache", slog.String("plan_id", planID), sl.Err(err))
	}
	if found {
		return &cached, nil
	}

	plan, err := s.repo.GetPlan(ctx, planID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err := s.cache.Set(ctx, cacheKey(planID), plan, cacheTTL); err != nil {
		s.log.Warn("failed to cache plan", slog.String("plan_id", planID), sl.Err(err))
	}
	return plan, nil
}

// Create создаёт товар и цену в шлюзе, затем план. Если план не сохранился,
// товар в шлюзе деактивируется.
func (s *Service) Create(ctx context.Context, req models.PlanCreate) (*models.Plan, error) {
	const op = "plans.Create"
	log := s.log.With(sl.Op(op), slog.String("name", req.Name))

	if !req.Price.IsPositive() {
		return nil, fmt.Errorf("%s: %w", op, apperr.Validation("price must be positive"))
	}

	product, err := s.gateway.CreateProduct(ctx, req.Name, req.Price, req.Interval)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	plan := models.Plan{
		Name:               req.Name,
		Price:              req.Price,
		Interval:           req.Interval,
		PayoutRange:        req.PayoutRange,
		ExternalProductRef: product.ProductRef,
		ExternalPriceRef:   product.PriceRef,
		Active:             true,
	}
	id, err := s.repo.CreatePlan(ctx, plan)
	if err != nil {
		log.Error("failed to store plan, rolling back gateway product",
			slog.String("product_ref", product.ProductRef), sl.Err(err))
		if rbErr := s.gateway.DeactivateProduct(ctx, product.ProductRef, product.PriceRef); rbErr != nil {
			log.Error("failed to roll back gateway product", slog.String("product_ref", product.ProductRef), sl.Err(rbErr))
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	plan.ID = id

	log.Info("plan created", slog.String("plan_id", id), slog.String("product_ref", product.ProductRef))
	return &plan, nil
}

// Delete деактивирует план и его товар в шлюзе. Существующие пакеты плана не затрагиваются.
func (s *Service) Delete(ctx context.Context, planID string) error {
	const op = "plans.Delete"
	log := s.log.With(sl.Op(op), slog.String("plan_id", planID))

	plan, err := s.repo.GetPlan(ctx, planID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if err := s.repo.DeactivatePlan(ctx, planID); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if err := s.cache.Invalidate(ctx, cacheKey(planID)); err != nil {
		log.Warn("failed to invalidate plan cache", sl.Err(err))
	}
	if plan.ExternalProductRef != "" || plan.ExternalPriceRef != "" {
		if err := s.gateway.DeactivateProduct(ctx, plan.ExternalProductRef, plan.ExternalPriceRef); err != nil {
			log.Error("failed to deactivate gateway product", sl.Err(err))
		}
	}
	log.Info("plan deactivated")
	return nil
}
