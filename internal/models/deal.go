package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Deal: агрегат дашборда, один к одному с пакетом.
type Deal struct {
	ID             string          `json:"id"`
	PackageID      string          `json:"package_id"`
	UserID         string          `json:"user_id"`
	ActiveDeals    int             `json:"active_deals"`
	CompletedDeals int             `json:"completed_deals"`
	PayoutAmount   decimal.Decimal `json:"payout_amount"`
	PayoutDate     *time.Time      `json:"payout_date,omitempty"`
	Tokens         decimal.Decimal `json:"tokens"`
	PlanIDs        []string        `json:"plan_ids"`
}

// DashboardUpdate: частичное обновление пакета и сделки.
// Применяются только поля, отличные от nil.
type DashboardUpdate struct {
	ActiveDeals     *int             `json:"activeDeals,omitempty" validate:"omitempty,min=0"`
	CompletedDeals  *int             `json:"completedDeals,omitempty" validate:"omitempty,min=0"`
	Tokens          *decimal.Decimal `json:"tokens,omitempty"`
	PayoutAmount    *decimal.Decimal `json:"payoutAmount,omitempty"`
	PayoutDate      *time.Time       `json:"payoutDate,omitempty"`
	Status          *PackageStatus   `json:"status,omitempty"`
	RemainingMonths *int             `json:"remainingMonths,omitempty" validate:"omitempty,min=0,max=12"`
	PaidMonths      *int             `json:"paidMonths,omitempty" validate:"omitempty,min=0,max=12"`
	NextBillingDate *time.Time       `json:"nextBillingDate,omitempty"`
}

// Empty сообщает, что в запросе нет ни одного поля.
func (u DashboardUpdate) Empty() bool {
	return u.ActiveDeals == nil && u.CompletedDeals == nil && u.Tokens == nil &&
		u.PayoutAmount == nil && u.PayoutDate == nil && u.Status == nil &&
		u.RemainingMonths == nil && u.PaidMonths == nil && u.NextBillingDate == nil
}
