package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/magabrotheeeer/subscription-billing/internal/lib/apperr"
	"github.com/magabrotheeeer/subscription-billing/internal/models"
)

const paymentColumns = `id, user_id, package_id, plan_id, amount, status, external_charge_ref, external_price_ref,
	external_product_ref, payment_method_ref, cancel_at_period_end, canceled_at, end_date, previous_plan_id, created_at`

func scanPayment(row rowScanner) (*models.SubscriptionPayment, error) {
	var p models.SubscriptionPayment
	var canceledAt, endDate sql.NullTime
	var previousPlan sql.NullString
	if err := row.Scan(&p.ID, &p.UserID, &p.PackageID, &p.PlanID, &p.Amount, &p.Status, &p.ExternalChargeRef,
		&p.ExternalPriceRef, &p.ExternalProductRef, &p.PaymentMethodRef, &p.CancelAtPeriodEnd, &canceledAt,
		&endDate, &previousPlan, &p.CreatedAt); err != nil {
		return nil, err
	}
	p.CanceledAt = timePtr(canceledAt)
	p.EndDate = timePtr(endDate)
	p.PreviousPlanID = stringPtr(previousPlan)
	return &p, nil
}

// ListPaymentsByUser возвращает платежи пользователя, новые первыми.
func (s *Storage) ListPaymentsByUser(ctx context.Context, userID string) ([]*models.SubscriptionPayment, error) {
	const op = "storage.ListPaymentsByUser"

	rows, err := s.DB.QueryContext(ctx, `SELECT `+paymentColumns+` FROM subscription_payments
		WHERE user_id = $1 ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var result []*models.SubscriptionPayment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		result = append(result, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}

// InsertSubscriptionPayment добавляет строку платежа.
func (s *Storage) InsertSubscriptionPayment(ctx context.Context, p models.SubscriptionPayment) error {
	const op = "storage.InsertSubscriptionPayment"

	_, err := s.DB.ExecContext(ctx, `INSERT INTO subscription_payments (user_id, package_id, plan_id, amount,
			status, external_charge_ref, external_price_ref, external_product_ref, payment_method_ref)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		p.UserID, p.PackageID, p.PlanID, p.Amount, p.Status, p.ExternalChargeRef, p.ExternalPriceRef,
		p.ExternalProductRef, p.PaymentMethodRef)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// MarkSubscriptionCanceled отмечает отмену соглашения по пакету в конце периода.
func (s *Storage) MarkSubscriptionCanceled(ctx context.Context, packageID string, canceledAt time.Time, endDate *time.Time) error {
	const op = "storage.MarkSubscriptionCanceled"

	res, err := s.DB.ExecContext(ctx, `UPDATE subscription_payments
		SET cancel_at_period_end = true, canceled_at = $2, end_date = $3
		WHERE id = (
			SELECT id FROM subscription_payments WHERE package_id = $1 ORDER BY created_at DESC LIMIT 1
		)`, packageID, canceledAt, endDate)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", op, apperr.NotFound("subscription payment"))
	}
	return nil
}

// RecordPlanChange переводит пакет на новый план и запоминает предыдущий в последнем платеже.
func (s *Storage) RecordPlanChange(ctx context.Context, packageID, newPlanID, previousPlanID string) error {
	const op = "storage.RecordPlanChange"

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `UPDATE user_packages SET plan_id = $2, updated_at = NOW() WHERE id = $1`,
			packageID, newPlanID)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return apperr.NotFound("package")
		}
		_, err = tx.ExecContext(ctx, `UPDATE subscription_payments
			SET previous_plan_id = $3, plan_id = $2
			WHERE id = (
				SELECT id FROM subscription_payments WHERE package_id = $1 ORDER BY created_at DESC LIMIT 1
			)`, packageID, newPlanID, previousPlanID)
		return err
	})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}
