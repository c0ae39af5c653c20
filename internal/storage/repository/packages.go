package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/magabrotheeeer/subscription-billing/internal/lib/apperr"
	"github.com/magabrotheeeer/subscription-billing/internal/models"
)

const packageColumns = `id, user_id, plan_id, status, start_date, paid_months, remaining_months,
	next_billing_date, tokens, payout_amount, refund_stopped, billing_stopped,
	external_subscription_ref, created_at`

func scanPackage(row rowScanner) (*models.UserPackage, error) {
	var p models.UserPackage
	var nextBilling sql.NullTime
	var subRef sql.NullString
	if err := row.Scan(&p.ID, &p.UserID, &p.PlanID, &p.Status, &p.StartDate, &p.PaidMonths, &p.RemainingMonths,
		&nextBilling, &p.Tokens, &p.PayoutAmount, &p.RefundStopped, &p.BillingStopped,
		&subRef, &p.CreatedAt); err != nil {
		return nil, err
	}
	p.NextBillingDate = timePtr(nextBilling)
	p.ExternalSubscriptionRef = stringPtr(subRef)
	return &p, nil
}

func collectPackages(rows *sql.Rows) ([]*models.UserPackage, error) {
	defer func() {
		_ = rows.Close()
	}()
	var result []*models.UserPackage
	for rows.Next() {
		p, err := scanPackage(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// GetPackage возвращает пакет по ID.
func (s *Storage) GetPackage(ctx context.Context, packageID string) (*models.UserPackage, error) {
	const op = "storage.GetPackage"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT ` + packageColumns + ` FROM user_packages WHERE id = $1`
	p, err := scanPackage(s.DB.QueryRowContext(ctx, query, packageID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", op, apperr.NotFound("package"))
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return p, nil
}

// ListPackagesByUser возвращает пакеты пользователя, старые первыми.
func (s *Storage) ListPackagesByUser(ctx context.Context, userID string) ([]*models.UserPackage, error) {
	const op = "storage.ListPackagesByUser"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT ` + packageColumns + ` FROM user_packages
			  WHERE user_id = $1
			  ORDER BY created_at, id`
	rows, err := s.DB.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	result, err := collectPackages(rows)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}

// CreatePackage в одной транзакции списывает токены, создаёт пакет, его сделку
// и, если передана, запись журнала списаний.
func (s *Storage) CreatePackage(ctx context.Context, np models.NewPackage) error {
	const op = "storage.CreatePackage"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		pkg := np.Package
		for _, d := range np.Deductions {
			if err := deductTokens(ctx, tx, d.PackageID, pkg.UserID, d.Amount); err != nil {
				return err
			}
		}

		query := `INSERT INTO user_packages (id, user_id, plan_id, status, start_date, paid_months,
				      remaining_months, next_billing_date, tokens, payout_amount, refund_stopped,
				      billing_stopped, external_subscription_ref)
				  VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`
		if _, err := tx.ExecContext(ctx, query, pkg.ID, pkg.UserID, pkg.PlanID, pkg.Status, pkg.StartDate,
			pkg.PaidMonths, pkg.RemainingMonths, pkg.NextBillingDate, pkg.Tokens, pkg.PayoutAmount,
			pkg.RefundStopped, pkg.BillingStopped, pkg.ExternalSubscriptionRef); err != nil {
			return err
		}

		if _, err := tx.ExecContext(ctx, `INSERT INTO deals (id, package_id, user_id) VALUES ($1, $2, $3)`,
			uuid.NewString(), pkg.ID, pkg.UserID); err != nil {
			return err
		}

		if np.BillingLog != nil {
			return insertBillingLog(ctx, tx, *np.BillingLog)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// deductTokens атомарно уменьшает tokens, не допуская отрицательного остатка.
func deductTokens(ctx context.Context, q querier, packageID, userID string, amount decimal.Decimal) error {
	res, err := q.ExecContext(ctx, `UPDATE user_packages
		SET tokens = tokens - $1, updated_at = NOW()
		WHERE id = $2 AND user_id = $3 AND tokens >= $1`, amount, packageID, userID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return apperr.Conflict("insufficient tokens on package " + packageID)
	}
	return nil
}

// SetPackageSubscriptionRef привязывает пакет к регулярному соглашению в шлюзе.
func (s *Storage) SetPackageSubscriptionRef(ctx context.Context, packageID, subscriptionRef string) error {
	const op = "storage.SetPackageSubscriptionRef"

	res, err := s.DB.ExecContext(ctx, `UPDATE user_packages
		SET external_subscription_ref = $1, updated_at = NOW()
		WHERE id = $2`, subscriptionRef, packageID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", op, apperr.NotFound("package"))
	}
	return nil
}

// CompleteSettlement списывает токены, пишет журнал и переводит пакет в PAYOUT_PENDING.
// Пакет должен быть ACTIVE и иметь не меньше Discount токенов, иначе ErrConflict.
func (s *Storage) CompleteSettlement(ctx context.Context, st models.Settlement) (*models.UserPackage, error) {
	const op = "storage.CompleteSettlement"

	var pkg *models.UserPackage
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		query := `UPDATE user_packages
				  SET tokens = tokens - $2,
				      paid_months = $3,
				      remaining_months = 0,
				      billing_stopped = true,
				      refund_stopped = true,
				      status = $4,
				      next_billing_date = NULL,
				      updated_at = NOW()
				  WHERE id = $1 AND status = $5 AND tokens >= $2
				  RETURNING ` + packageColumns
		var err error
		pkg, err = scanPackage(tx.QueryRowContext(ctx, query, st.PackageID, st.Discount, models.PlanTermMonths,
			models.PackagePayoutPending, models.PackageActive))
		if errors.Is(err, sql.ErrNoRows) {
			return apperr.Conflict("package changed during settlement")
		}
		if err != nil {
			return err
		}
		return insertBillingLog(ctx, tx, st.BillingLog)
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return pkg, nil
}

// RemovePackage переводит пакет в REMOVED и обнуляет его сделку.
// Повторное удаление возвращает текущий пакет и changed=false.
func (s *Storage) RemovePackage(ctx context.Context, packageID string) (pkg *models.UserPackage, changed bool, err error) {
	const op = "storage.RemovePackage"

	err = s.withTx(ctx, func(tx *sql.Tx) error {
		current, err := scanPackage(tx.QueryRowContext(ctx,
			`SELECT `+packageColumns+` FROM user_packages WHERE id = $1 FOR UPDATE`, packageID))
		if errors.Is(err, sql.ErrNoRows) {
			return apperr.NotFound("package")
		}
		if err != nil {
			return err
		}
		switch current.Status {
		case models.PackageRemoved:
			pkg = current
			return nil
		case models.PackagePayoutCompleted:
			return apperr.Conflict("package payout already completed")
		}

		query := `UPDATE user_packages
				  SET status = $2,
				      refund_stopped = true,
				      billing_stopped = true,
				      tokens = 0,
				      payout_amount = 0,
				      paid_months = 0,
				      remaining_months = $3,
				      next_billing_date = NULL,
				      updated_at = NOW()
				  WHERE id = $1
				  RETURNING ` + packageColumns
		pkg, err = scanPackage(tx.QueryRowContext(ctx, query, packageID, models.PackageRemoved, models.PlanTermMonths))
		if err != nil {
			return err
		}
		if err := resetDeal(ctx, tx, packageID, nil); err != nil {
			return err
		}
		// Необработанная заявка уходит вместе с пакетом, одобрять больше нечего.
		if _, err := tx.ExecContext(ctx, `DELETE FROM payout_requests
			WHERE package_id = $1 AND processed_at IS NULL`, packageID); err != nil {
			return err
		}
		changed = true
		return nil
	})
	if err != nil {
		return nil, false, fmt.Errorf("%s: %w", op, err)
	}
	return pkg, changed, nil
}

// UpdateDashboard применяет только заданные поля к пакету и его сделке.
func (s *Storage) UpdateDashboard(ctx context.Context, packageID string, upd models.DashboardUpdate) (*models.UserPackage, error) {
	const op = "storage.UpdateDashboard"

	pkgSet := newSetBuilder()
	pkgSet.add("tokens", upd.Tokens)
	pkgSet.add("payout_amount", upd.PayoutAmount)
	pkgSet.add("status", upd.Status)
	pkgSet.add("remaining_months", upd.RemainingMonths)
	pkgSet.add("paid_months", upd.PaidMonths)
	pkgSet.add("next_billing_date", upd.NextBillingDate)

	dealSet := newSetBuilder()
	dealSet.add("active_deals", upd.ActiveDeals)
	dealSet.add("completed_deals", upd.CompletedDeals)
	dealSet.add("payout_amount", upd.PayoutAmount)
	dealSet.add("payout_date", upd.PayoutDate)
	dealSet.add("tokens", upd.Tokens)

	var pkg *models.UserPackage
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var err error
		if pkgSet.empty() {
			pkg, err = scanPackage(tx.QueryRowContext(ctx,
				`SELECT `+packageColumns+` FROM user_packages WHERE id = $1 FOR UPDATE`, packageID))
		} else {
			query := `UPDATE user_packages SET ` + pkgSet.clause() + `, updated_at = NOW()
					  WHERE id = $` + pkgSet.nextPlaceholder() + ` RETURNING ` + packageColumns
			pkg, err = scanPackage(tx.QueryRowContext(ctx, query, append(pkgSet.args, packageID)...))
		}
		if errors.Is(err, sql.ErrNoRows) {
			return apperr.NotFound("package")
		}
		if err != nil {
			return err
		}

		if dealSet.empty() {
			return nil
		}
		query := `UPDATE deals SET ` + dealSet.clause() + ` WHERE package_id = $` + dealSet.nextPlaceholder()
		res, err := tx.ExecContext(ctx, query, append(dealSet.args, packageID)...)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return apperr.NotFound("deal")
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return pkg, nil
}

// ListAccrualCandidates возвращает ACTIVE пакеты без остановки возвратов
// с ценой плана и списком уже начисленных вех.
func (s *Storage) ListAccrualCandidates(ctx context.Context) ([]models.AccrualCandidate, error) {
	const op = "storage.ListAccrualCandidates"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT p.id, p.start_date, pl.price, COALESCE(string_agg(r.milestone, ','), '')
			  FROM user_packages p
			  JOIN plans pl ON pl.id = p.plan_id
			  LEFT JOIN refund_logs r ON r.package_id = p.id
			  WHERE p.status = $1 AND p.refund_stopped = false
			  GROUP BY p.id, p.start_date, pl.price
			  ORDER BY p.start_date`
	rows, err := s.DB.QueryContext(ctx, query, models.PackageActive)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var result []models.AccrualCandidate
	for rows.Next() {
		var c models.AccrualCandidate
		var accrued string
		if err := rows.Scan(&c.PackageID, &c.StartDate, &c.PlanPrice, &accrued); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		if accrued != "" {
			c.AccruedMilestones = strings.Split(accrued, ",")
		}
		result = append(result, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}

// setBuilder собирает SET-часть UPDATE только из заданных (не nil) полей.
type setBuilder struct {
	parts []string
	args  []any
}

func newSetBuilder() *setBuilder {
	return &setBuilder{}
}

func (b *setBuilder) add(column string, value any) {
	if isNil(value) {
		return
	}
	b.args = append(b.args, value)
	b.parts = append(b.parts, fmt.Sprintf("%s = $%d", column, len(b.args)))
}

func (b *setBuilder) empty() bool {
	return len(b.parts) == 0
}

func (b *setBuilder) clause() string {
	return strings.Join(b.parts, ", ")
}

func (b *setBuilder) nextPlaceholder() string {
	return fmt.Sprint(len(b.args) + 1)
}

func isNil(v any) bool {
	switch p := v.(type) {
	case nil:
		return true
	case *int:
		return p == nil
	case *decimal.Decimal:
		return p == nil
	case *models.PackageStatus:
		return p == nil
	case *time.Time:
		return p == nil
	}
	return false
}
