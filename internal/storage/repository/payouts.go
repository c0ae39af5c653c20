package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/magabrotheeeer/subscription-billing/internal/lib/apperr"
	"github.com/magabrotheeeer/subscription-billing/internal/models"
)

const payoutColumns = `id, package_id, user_id, wallet_address, stablecoin, network, metadata,
	approved, processed_at, created_at`

func scanPayout(row rowScanner) (*models.PayoutRequest, error) {
	var r models.PayoutRequest
	var processedAt sql.NullTime
	if err := row.Scan(&r.ID, &r.PackageID, &r.UserID, &r.WalletAddress, &r.Stablecoin, &r.Network, &r.Metadata,
		&r.Approved, &processedAt, &r.CreatedAt); err != nil {
		return nil, err
	}
	r.ProcessedAt = timePtr(processedAt)
	return &r, nil
}

// HasPendingPayout проверяет наличие необработанной заявки по пакету.
func (s *Storage) HasPendingPayout(ctx context.Context, packageID string) (bool, error) {
	const op = "storage.HasPendingPayout"

	var exists bool
	err := s.DB.QueryRowContext(ctx, `SELECT EXISTS (
			SELECT 1 FROM payout_requests WHERE package_id = $1 AND processed_at IS NULL
		)`, packageID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	return exists, nil
}

// CreatePayoutRequest сохраняет заявку. Вторая необработанная заявка по пакету
// отклоняется уникальным индексом и возвращается как ErrConflict.
func (s *Storage) CreatePayoutRequest(ctx context.Context, r models.PayoutRequest) error {
	const op = "storage.CreatePayoutRequest"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	_, err := s.DB.ExecContext(ctx, `INSERT INTO payout_requests (id, package_id, user_id, wallet_address,
			stablecoin, network, metadata, approved)
		VALUES ($1, $2, $3, $4, $5, $6, $7, false)`,
		r.ID, r.PackageID, r.UserID, r.WalletAddress, r.Stablecoin, r.Network, r.Metadata)
	if isUniqueViolation(err) {
		return fmt.Errorf("%s: %w", op, apperr.Conflict("pending payout request already exists"))
	}
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// ApprovePayout одобряет заявку и завершает выплату по пакету в одной транзакции.
func (s *Storage) ApprovePayout(ctx context.Context, requestID string, now time.Time) (*models.PayoutRequest, error) {
	const op = "storage.ApprovePayout"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	var req *models.PayoutRequest
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var err error
		req, err = scanPayout(tx.QueryRowContext(ctx, `UPDATE payout_requests
			SET approved = true, processed_at = $2
			WHERE id = $1 AND approved = false
			RETURNING `+payoutColumns, requestID, now))
		if errors.Is(err, sql.ErrNoRows) {
			var approved bool
			err = tx.QueryRowContext(ctx, `SELECT approved FROM payout_requests WHERE id = $1`, requestID).Scan(&approved)
			if errors.Is(err, sql.ErrNoRows) {
				return apperr.NotFound("payout request")
			}
			if err != nil {
				return err
			}
			return apperr.Conflict("payout request already approved")
		}
		if err != nil {
			return err
		}

		res, err := tx.ExecContext(ctx, `UPDATE user_packages
			SET status = $2,
			    tokens = 0,
			    payout_amount = 0,
			    refund_stopped = true,
			    billing_stopped = true,
			    remaining_months = 0,
			    next_billing_date = NULL,
			    updated_at = NOW()
			WHERE id = $1 AND status = $3`, req.PackageID, models.PackagePayoutCompleted, models.PackagePayoutPending)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return apperr.Conflict("package is not awaiting payout")
		}

		return resetDeal(ctx, tx, req.PackageID, &now)
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return req, nil
}

// ListPendingPayouts возвращает необработанные заявки, старые первыми.
func (s *Storage) ListPendingPayouts(ctx context.Context) ([]*models.PayoutRequest, error) {
	const op = "storage.ListPendingPayouts"

	rows, err := s.DB.QueryContext(ctx, `SELECT `+payoutColumns+` FROM payout_requests
		WHERE processed_at IS NULL ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var result []*models.PayoutRequest
	for rows.Next() {
		r, err := scanPayout(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		result = append(result, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}
