package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/magabrotheeeer/subscription-billing/internal/models"
)

// AccrueMilestone начисляет токены по вехе, если для пары (пакет, веха) ещё нет записи.
// Строка пакета блокируется до конца транзакции, поэтому параллельные прогоны
// видят запись друг друга и не начисляют дважды. Возвращает true, если начисление произошло.
func (s *Storage) AccrueMilestone(ctx context.Context, packageID, milestone string, percent, amount decimal.Decimal) (bool, error) {
	const op = "storage.AccrueMilestone"
	select {
	case <-ctx.Done():
		return false, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	accrued := false
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var status models.PackageStatus
		var refundStopped bool
		err := tx.QueryRowContext(ctx, `SELECT status, refund_stopped FROM user_packages WHERE id = $1 FOR UPDATE`,
			packageID).Scan(&status, &refundStopped)
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		if err != nil {
			return err
		}
		if status != models.PackageActive || refundStopped {
			return nil
		}

		var exists bool
		if err := tx.QueryRowContext(ctx, `SELECT EXISTS (
				SELECT 1 FROM refund_logs WHERE package_id = $1 AND milestone = $2
			)`, packageID, milestone).Scan(&exists); err != nil {
			return err
		}
		if exists {
			return nil
		}

		res, err := tx.ExecContext(ctx, `INSERT INTO refund_logs (package_id, milestone, percent, amount)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (package_id, milestone) DO NOTHING`, packageID, milestone, percent, amount)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return nil
		}

		if _, err := tx.ExecContext(ctx, `UPDATE user_packages
			SET tokens = tokens + $1, updated_at = NOW()
			WHERE id = $2`, amount, packageID); err != nil {
			return err
		}
		accrued = true
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	return accrued, nil
}

// ListRefundLogs возвращает журнал начислений пакета.
func (s *Storage) ListRefundLogs(ctx context.Context, packageID string) ([]models.RefundLog, error) {
	const op = "storage.ListRefundLogs"

	rows, err := s.DB.QueryContext(ctx, `SELECT id, package_id, milestone, percent, amount, created_at
		FROM refund_logs WHERE package_id = $1 ORDER BY created_at, id`, packageID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var result []models.RefundLog
	for rows.Next() {
		var r models.RefundLog
		if err := rows.Scan(&r.ID, &r.PackageID, &r.Milestone, &r.Percent, &r.Amount, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		result = append(result, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}
