package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/magabrotheeeer/subscription-billing/internal/lib/apperr"
	"github.com/magabrotheeeer/subscription-billing/internal/models"
)

const planColumns = `id, name, price, interval, payout_range, external_product_ref, external_price_ref, active`

func scanPlan(row rowScanner) (*models.Plan, error) {
	var p models.Plan
	var productRef, priceRef sql.NullString
	if err := row.Scan(&p.ID, &p.Name, &p.Price, &p.Interval, &p.PayoutRange, &productRef, &priceRef, &p.Active); err != nil {
		return nil, err
	}
	p.ExternalProductRef = productRef.String
	p.ExternalPriceRef = priceRef.String
	return &p, nil
}

// GetPlan возвращает план по ID.
func (s *Storage) GetPlan(ctx context.Context, planID string) (*models.Plan, error) {
	const op = "storage.GetPlan"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT ` + planColumns + ` FROM plans WHERE id = $1`
	p, err := scanPlan(s.DB.QueryRowContext(ctx, query, planID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", op, apperr.NotFound("plan"))
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return p, nil
}

// CreatePlan сохраняет план и возвращает его ID.
func (s *Storage) CreatePlan(ctx context.Context, plan models.Plan) (string, error) {
	const op = "storage.CreatePlan"

	query := `INSERT INTO plans (name, price, interval, payout_range, external_product_ref, external_price_ref, active)
			  VALUES ($1, $2, $3, $4, $5, $6, true)
			  RETURNING id`
	var id string
	if err := s.DB.QueryRowContext(ctx, query, plan.Name, plan.Price, plan.Interval, plan.PayoutRange,
		plan.ExternalProductRef, plan.ExternalPriceRef).Scan(&id); err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	return id, nil
}

// DeactivatePlan помечает план неактивным.
func (s *Storage) DeactivatePlan(ctx context.Context, planID string) error {
	const op = "storage.DeactivatePlan"

	res, err := s.DB.ExecContext(ctx, `UPDATE plans SET active = false WHERE id = $1`, planID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", op, apperr.NotFound("plan"))
	}
	return nil
}
