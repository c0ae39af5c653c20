package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// PaymentStatus: статус платежа по подписке.
type PaymentStatus string

const (
	PaymentPending           PaymentStatus = "PENDING"
	PaymentProcessing        PaymentStatus = "PROCESSING"
	PaymentCompleted         PaymentStatus = "COMPLETED"
	PaymentFailed            PaymentStatus = "FAILED"
	PaymentCancelled         PaymentStatus = "CANCELLED"
	PaymentRefunded          PaymentStatus = "REFUNDED"
	PaymentPartiallyRefunded PaymentStatus = "PARTIALLY_REFUNDED"
)

// SubscriptionPayment: строка журнала платежей по регулярному соглашению.
type SubscriptionPayment struct {
	ID                 string          `json:"id"`
	UserID             string          `json:"user_id"`
	PackageID          string          `json:"package_id"`
	PlanID             string          `json:"plan_id"`
	Amount             decimal.Decimal `json:"amount"`
	Status             PaymentStatus   `json:"status"`
	ExternalChargeRef  string          `json:"external_charge_ref,omitempty"`
	ExternalPriceRef   string          `json:"external_price_ref,omitempty"`
	ExternalProductRef string          `json:"external_product_ref,omitempty"`
	PaymentMethodRef   string          `json:"payment_method_ref,omitempty"`
	CancelAtPeriodEnd  bool            `json:"cancel_at_period_end"`
	CanceledAt         *time.Time      `json:"canceled_at,omitempty"`
	EndDate            *time.Time      `json:"end_date,omitempty"`
	PreviousPlanID     *string         `json:"previous_plan_id,omitempty"`
	CreatedAt          time.Time       `json:"created_at"`
}

// PaymentMethod: сохранённая карта пользователя.
type PaymentMethod struct {
	ID        string `json:"id"`
	Brand     string `json:"brand"`
	Last4     string `json:"last4"`
	ExpMonth  int64  `json:"exp_month"`
	ExpYear   int64  `json:"exp_year"`
	IsDefault bool   `json:"is_default"`
}
