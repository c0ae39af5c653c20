package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/magabrotheeeer/subscription-billing/internal/lib/apperr"
	"github.com/magabrotheeeer/subscription-billing/internal/models"
)

// resetDeal обнуляет метрики сделки пакета. payoutDate == nil очищает дату выплаты
// и список планов сделки, иначе дата проставляется.
func resetDeal(ctx context.Context, q querier, packageID string, payoutDate *time.Time) error {
	if _, err := q.ExecContext(ctx, `UPDATE deals
		SET active_deals = 0, completed_deals = 0, payout_amount = 0, tokens = 0, payout_date = $2
		WHERE package_id = $1`, packageID, payoutDate); err != nil {
		return err
	}
	if payoutDate != nil {
		return nil
	}
	_, err := q.ExecContext(ctx, `DELETE FROM deal_plans
		WHERE deal_id IN (SELECT id FROM deals WHERE package_id = $1)`, packageID)
	return err
}

const dealQuery = `SELECT d.id, d.package_id, d.user_id, d.active_deals, d.completed_deals, d.payout_amount,
		d.payout_date, d.tokens, COALESCE(string_agg(dp.plan_id::text, ',' ORDER BY dp.added_at), '')
	FROM deals d
	LEFT JOIN deal_plans dp ON dp.deal_id = d.id`

const dealGroupBy = ` GROUP BY d.id, d.package_id, d.user_id, d.active_deals, d.completed_deals,
		d.payout_amount, d.payout_date, d.tokens`

func scanDeal(row rowScanner) (*models.Deal, error) {
	var d models.Deal
	var payoutDate sql.NullTime
	var planIDs string
	if err := row.Scan(&d.ID, &d.PackageID, &d.UserID, &d.ActiveDeals, &d.CompletedDeals, &d.PayoutAmount,
		&payoutDate, &d.Tokens, &planIDs); err != nil {
		return nil, err
	}
	d.PayoutDate = timePtr(payoutDate)
	d.PlanIDs = []string{}
	if planIDs != "" {
		d.PlanIDs = strings.Split(planIDs, ",")
	}
	return &d, nil
}

// GetDeal возвращает сделку по ID.
func (s *Storage) GetDeal(ctx context.Context, dealID string) (*models.Deal, error) {
	const op = "storage.GetDeal"

	d, err := scanDeal(s.DB.QueryRowContext(ctx, dealQuery+` WHERE d.id = $1`+dealGroupBy, dealID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", op, apperr.NotFound("deal"))
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return d, nil
}

// ListDealsByUser возвращает сделки пользователя.
func (s *Storage) ListDealsByUser(ctx context.Context, userID string) ([]*models.Deal, error) {
	const op = "storage.ListDealsByUser"

	rows, err := s.DB.QueryContext(ctx, dealQuery+` WHERE d.user_id = $1`+dealGroupBy+` ORDER BY d.id`, userID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var result []*models.Deal
	for rows.Next() {
		d, err := scanDeal(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		result = append(result, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}

// AddPlanToDeal добавляет план в сделку. Повторное добавление: ErrConflict.
func (s *Storage) AddPlanToDeal(ctx context.Context, dealID, planID string) error {
	const op = "storage.AddPlanToDeal"

	_, err := s.DB.ExecContext(ctx, `INSERT INTO deal_plans (deal_id, plan_id) VALUES ($1, $2)`, dealID, planID)
	if isUniqueViolation(err) {
		return fmt.Errorf("%s: %w", op, apperr.Conflict("plan already added to this deal"))
	}
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}
