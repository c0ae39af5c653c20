package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/magabrotheeeer/subscription-billing/internal/lib/apperr"
	"github.com/magabrotheeeer/subscription-billing/internal/models"
)

func insertBillingLog(ctx context.Context, q querier, l models.BillingLog) error {
	_, err := q.ExecContext(ctx, `INSERT INTO billing_logs (package_id, amount, month_number, status, gateway_ref)
		VALUES ($1, $2, $3, $4, $5)`, l.PackageID, l.Amount, l.MonthNumber, l.Status, l.GatewayRef)
	return err
}

// recordWebhookEvent фиксирует ID события шлюза. false: событие уже обрабатывалось.
func recordWebhookEvent(ctx context.Context, q querier, eventID, eventType string) (bool, error) {
	res, err := q.ExecContext(ctx, `INSERT INTO webhook_events (event_id, event_type)
		VALUES ($1, $2)
		ON CONFLICT (event_id) DO NOTHING`, eventID, eventType)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// MarkWebhookEvent фиксирует событие без изменения пакетов. false: дубликат.
func (s *Storage) MarkWebhookEvent(ctx context.Context, eventID, eventType string) (bool, error) {
	const op = "storage.MarkWebhookEvent"

	fresh, err := recordWebhookEvent(ctx, s.DB, eventID, eventType)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	return fresh, nil
}

// ApplyInvoicePaid в одной транзакции фиксирует событие, продвигает счётчики месяцев
// пакета и добавляет строку платежа. Для повторного события возвращает applied=false.
// Если пакет не найден, событие не фиксируется.
func (s *Storage) ApplyInvoicePaid(ctx context.Context, inv models.InvoicePaid) (pkg *models.UserPackage, applied bool, err error) {
	const op = "storage.ApplyInvoicePaid"
	select {
	case <-ctx.Done():
		return nil, false, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	err = s.withTx(ctx, func(tx *sql.Tx) error {
		fresh, err := recordWebhookEvent(ctx, tx, inv.EventID, inv.EventType)
		if err != nil {
			return err
		}
		if !fresh {
			return nil
		}

		query := `UPDATE user_packages
				  SET paid_months = paid_months + CASE WHEN remaining_months > 0 THEN 1 ELSE 0 END,
				      remaining_months = GREATEST(remaining_months - 1, 0),
				      next_billing_date = $2,
				      status = CASE WHEN status = $3 THEN status ELSE $4 END,
				      updated_at = NOW()
				  WHERE external_subscription_ref = $1
				    AND status NOT IN ($5, $6)
				  RETURNING ` + packageColumns
		pkg, err = scanPackage(tx.QueryRowContext(ctx, query, inv.SubscriptionRef, inv.NextBillingDate,
			models.PackagePayoutPending, models.PackageActive, models.PackageRemoved, models.PackagePayoutCompleted))
		if errors.Is(err, sql.ErrNoRows) {
			return apperr.NotFound("package")
		}
		if err != nil {
			return err
		}

		p := inv.Payment
		if _, err := tx.ExecContext(ctx, `INSERT INTO subscription_payments (user_id, package_id, plan_id, amount,
				status, external_charge_ref, external_price_ref, external_product_ref, payment_method_ref)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
			pkg.UserID, pkg.ID, pkg.PlanID, p.Amount, p.Status, p.ExternalChargeRef, p.ExternalPriceRef,
			p.ExternalProductRef, p.PaymentMethodRef); err != nil {
			return err
		}
		applied = true
		return nil
	})
	if err != nil {
		return nil, false, fmt.Errorf("%s: %w", op, err)
	}
	return pkg, applied, nil
}

// StopBillingBySubscriptionRef фиксирует событие и ставит billing_stopped всем пакетам соглашения.
// Возвращает число затронутых пакетов и false для повторного события.
func (s *Storage) StopBillingBySubscriptionRef(ctx context.Context, eventID, eventType, subscriptionRef string) (int, bool, error) {
	const op = "storage.StopBillingBySubscriptionRef"

	var affected int64
	applied := false
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		fresh, err := recordWebhookEvent(ctx, tx, eventID, eventType)
		if err != nil {
			return err
		}
		if !fresh {
			return nil
		}
		res, err := tx.ExecContext(ctx, `UPDATE user_packages
			SET billing_stopped = true, updated_at = NOW()
			WHERE external_subscription_ref = $1`, subscriptionRef)
		if err != nil {
			return err
		}
		affected, err = res.RowsAffected()
		if err != nil {
			return err
		}
		applied = true
		return nil
	})
	if err != nil {
		return 0, false, fmt.Errorf("%s: %w", op, err)
	}
	return int(affected), applied, nil
}

// ListBillingLogs возвращает журнал списаний пакета.
func (s *Storage) ListBillingLogs(ctx context.Context, packageID string) ([]models.BillingLog, error) {
	const op = "storage.ListBillingLogs"

	rows, err := s.DB.QueryContext(ctx, `SELECT id, package_id, amount, month_number, status, gateway_ref, created_at
		FROM billing_logs WHERE package_id = $1 ORDER BY created_at, id`, packageID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var result []models.BillingLog
	for rows.Next() {
		var l models.BillingLog
		if err := rows.Scan(&l.ID, &l.PackageID, &l.Amount, &l.MonthNumber, &l.Status, &l.GatewayRef, &l.CreatedAt); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		result = append(result, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}
