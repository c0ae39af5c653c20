package billingapi

import (
	"context"

	"github.com/magabrotheeeer/subscription-billing/internal/models"
	"github.com/magabrotheeeer/subscription-billing/internal/services/plans"
	"github.com/magabrotheeeer/subscription-billing/internal/storage/repository"
)

// cachedStore: хранилище, в котором планы читаются через кэш каталога.
type cachedStore struct {
	*repository.Storage
	plans *plans.Service
}

func (s cachedStore) GetPlan(ctx context.Context, planID string) (*models.Plan, error) {
	return s.plans.GetPlan(ctx, planID)
}
