package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Milestone: порог возраста пакета, после которого начисляется возврат.
type Milestone struct {
	Tag     string
	Day     int
	Percent decimal.Decimal
}

// Milestones: фиксированная таблица начислений.
var Milestones = []Milestone{
	{Tag: "DAY_90", Day: 90, Percent: decimal.NewFromInt(15)},
	{Tag: "DAY_180", Day: 180, Percent: decimal.NewFromInt(20)},
	{Tag: "DAY_270", Day: 270, Percent: decimal.NewFromInt(15)},
	{Tag: "DAY_360", Day: 360, Percent: decimal.NewFromInt(50)},
}

// RefundLog: запись об одном начислении по вехе.
type RefundLog struct {
	ID        int64           `json:"id"`
	PackageID string          `json:"package_id"`
	Milestone string          `json:"milestone"`
	Percent   decimal.Decimal `json:"percent"`
	Amount    decimal.Decimal `json:"amount"`
	CreatedAt time.Time       `json:"created_at"`
}

// BillingStatus: статус списания в журнале.
type BillingStatus string

const (
	// BillingSucceeded: списание прошло.
	BillingSucceeded BillingStatus = "SUCCEEDED"
	// BillingSettled: остаток закрыт токенами без списания.
	BillingSettled BillingStatus = "SETTLED"
)

// BillingLog: запись об успешном списании.
type BillingLog struct {
	ID          int64           `json:"id"`
	PackageID   string          `json:"package_id"`
	Amount      decimal.Decimal `json:"amount"`
	MonthNumber int             `json:"month_number"`
	Status      BillingStatus   `json:"status"`
	GatewayRef  string          `json:"gateway_ref,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
}

// PackageHistory: пакет вместе с журналами списаний и начислений.
type PackageHistory struct {
	Package     *UserPackage `json:"package"`
	BillingLogs []BillingLog `json:"billing_logs"`
	RefundLogs  []RefundLog  `json:"refund_logs"`
}
