// Package models содержит доменные структуры биллинга: пакеты пользователей,
// сделки, журналы начислений и списаний, заявки на выплату и платежи по подписке.
package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// PlanTermMonths: полный срок плана в месяцах.
const PlanTermMonths = 12

// PackageStatus: состояние пакета пользователя.
type PackageStatus string

const (
	// PackageActive: пакет оплачивается и начисляет токены.
	PackageActive PackageStatus = "ACTIVE"
	// PackagePayoutPending: остаток погашен, пакет ожидает выплаты.
	PackagePayoutPending PackageStatus = "PAYOUT_PENDING"
	// PackagePayoutCompleted: выплата одобрена администратором.
	PackagePayoutCompleted PackageStatus = "PAYOUT_COMPLETED"
	// PackageRemoved: пакет удалён администратором.
	PackageRemoved PackageStatus = "REMOVED"
)

// IsTerminal сообщает, является ли состояние конечным.
func (s PackageStatus) IsTerminal() bool {
	return s == PackagePayoutCompleted || s == PackageRemoved
}

// Valid проверяет, что значение входит в перечисление.
func (s PackageStatus) Valid() bool {
	switch s {
	case PackageActive, PackagePayoutPending, PackagePayoutCompleted, PackageRemoved:
		return true
	}
	return false
}

// UserPackage: экземпляр плана, купленный пользователем.
type UserPackage struct {
	ID                      string          `json:"id"`
	UserID                  string          `json:"user_id"`
	PlanID                  string          `json:"plan_id"`
	Status                  PackageStatus   `json:"status"`
	StartDate               time.Time       `json:"start_date"`
	PaidMonths              int             `json:"paid_months"`
	RemainingMonths         int             `json:"remaining_months"`
	NextBillingDate         *time.Time      `json:"next_billing_date,omitempty"`
	Tokens                  decimal.Decimal `json:"tokens"`
	PayoutAmount            decimal.Decimal `json:"payout_amount"`
	RefundStopped           bool            `json:"refund_stopped"`
	BillingStopped          bool            `json:"billing_stopped"`
	ExternalSubscriptionRef *string         `json:"external_subscription_ref,omitempty"`
	CreatedAt               time.Time       `json:"created_at"`
}

// AccrualCandidate: активный пакет вместе с ценой плана и уже начисленными вехами.
type AccrualCandidate struct {
	PackageID         string
	StartDate         time.Time
	PlanPrice         decimal.Decimal
	AccruedMilestones []string
}

// TokenDeduction: списание токенов с конкретного пакета.
type TokenDeduction struct {
	PackageID string
	Amount    decimal.Decimal
}

// NewPackage: пакет вместе со всем, что должно сохраниться в одной транзакции.
type NewPackage struct {
	Package    UserPackage
	Deductions []TokenDeduction
	BillingLog *BillingLog
}

// Settlement: итог погашения остатка перед выплатой.
type Settlement struct {
	PackageID  string
	Discount   decimal.Decimal
	BillingLog BillingLog
}

// InvoicePaid: данные успешного регулярного списания из вебхука.
type InvoicePaid struct {
	EventID         string
	EventType       string
	SubscriptionRef string
	NextBillingDate time.Time
	Payment         SubscriptionPayment
}
