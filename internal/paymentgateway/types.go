package paymentgateway

import (
	"time"

	"github.com/shopspring/decimal"
)

// Типы событий вебхука, которые обрабатывает биллинг.
const (
	EventInvoicePaid         = "invoice.payment_succeeded"
	EventInvoiceFailed       = "invoice.payment_failed"
	EventSubscriptionDeleted = "customer.subscription.deleted"
)

// BillingReasonSubscriptionCreate: первый счёт нового соглашения.
const BillingReasonSubscriptionCreate = "subscription_create"

// Варианты пересчёта при смене цены соглашения.
const (
	ProrationCreate        = "create_prorations"
	ProrationAlwaysInvoice = "always_invoice"
)

// ChargeRequest: разовое списание с сохранённого способа оплаты.
type ChargeRequest struct {
	CustomerRef      string
	PaymentMethodRef string
	Amount           decimal.Decimal
	Description      string
	IdempotencyKey   string
	Metadata         map[string]string
}

// Charge: результат разового списания.
type Charge struct {
	ID     string
	Status string
	Amount decimal.Decimal
}

// SubscriptionRequest: параметры нового регулярного соглашения.
type SubscriptionRequest struct {
	CustomerRef      string
	PriceRef         string
	PaymentMethodRef string
	// TrialEnd откладывает первое регулярное списание, если задан.
	TrialEnd *time.Time
	Metadata map[string]string
}

// SubscriptionItem: позиция соглашения.
type SubscriptionItem struct {
	ID       string
	PriceRef string
}

// Subscription: регулярное соглашение в шлюзе.
type Subscription struct {
	ID                string
	Status            string
	CustomerRef       string
	Items             []SubscriptionItem
	CancelAtPeriodEnd bool
	CurrentPeriodEnd  time.Time
}

// Product: товар и цена, созданные для плана.
type Product struct {
	ProductRef string
	PriceRef   string
}

// Invoice: данные счёта из вебхука.
type Invoice struct {
	ID              string
	CustomerRef     string
	CustomerEmail   string
	SubscriptionRef string
	BillingReason   string
	AmountPaid      decimal.Decimal
	ChargeRef       string
	PriceRef        string
	ProductRef      string
	PaymentMethod   string
}

// Event: проверенное событие вебхука.
type Event struct {
	ID              string
	Type            string
	Invoice         *Invoice
	SubscriptionRef string
}
