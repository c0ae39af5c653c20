// Package paymentgateway: адаптер платёжного шлюза Stripe: клиенты, способы оплаты,
// регулярные соглашения, разовые списания, товары и проверка вебхуков.
//
// Наружу пакет отдаёт собственные типы, ошибки stripe приводятся к apperr.GatewayError.
package paymentgateway

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"

	"github.com/magabrotheeeer/subscription-billing/internal/config"
	"github.com/magabrotheeeer/subscription-billing/internal/lib/apperr"
	"github.com/magabrotheeeer/subscription-billing/internal/models"
)

// Client: обёртка над client.API с валютой и секретом вебхуков из конфигурации.
type Client struct {
	api           *client.API
	currency      string
	webhookSecret string
}

// New создаёт клиент шлюза. Глобальный stripe.Key не используется.
func New(cfg config.Stripe) *Client {
	currency := cfg.Currency
	if currency == "" {
		currency = string(stripe.CurrencyUSD)
	}
	return &Client{
		api:           client.New(cfg.SecretKey, nil),
		currency:      currency,
		webhookSecret: cfg.WebhookSecret,
	}
}

// CreateCustomer создаёт клиента шлюза и возвращает его ID.
func (c *Client) CreateCustomer(ctx context.Context, userID, email, name string) (string, error) {
	const op = "paymentgateway.CreateCustomer"

	params := &stripe.CustomerParams{
		Email: stripe.String(email),
		Name:  stripe.String(name),
	}
	params.Context = ctx
	params.AddMetadata("user_id", userID)
	params.SetIdempotencyKey("customer-" + userID)

	cus, err := c.api.Customers.New(params)
	if err != nil {
		return "", wrapError(op, err)
	}
	return cus.ID, nil
}

// DefaultPaymentMethod возвращает способ оплаты клиента по умолчанию или пустую строку.
func (c *Client) DefaultPaymentMethod(ctx context.Context, customerRef string) (string, error) {
	const op = "paymentgateway.DefaultPaymentMethod"

	params := &stripe.CustomerParams{}
	params.Context = ctx
	cus, err := c.api.Customers.Get(customerRef, params)
	if err != nil {
		return "", wrapError(op, err)
	}
	if cus.InvoiceSettings == nil || cus.InvoiceSettings.DefaultPaymentMethod == nil {
		return "", nil
	}
	return cus.InvoiceSettings.DefaultPaymentMethod.ID, nil
}

// SetDefaultPaymentMethod назначает способ оплаты по умолчанию для счетов клиента.
func (c *Client) SetDefaultPaymentMethod(ctx context.Context, customerRef, paymentMethodRef string) error {
	const op = "paymentgateway.SetDefaultPaymentMethod"

	params := &stripe.CustomerParams{
		InvoiceSettings: &stripe.CustomerInvoiceSettingsParams{
			DefaultPaymentMethod: stripe.String(paymentMethodRef),
		},
	}
	params.Context = ctx
	if _, err := c.api.Customers.Update(customerRef, params); err != nil {
		return wrapError(op, err)
	}
	return nil
}

// AttachPaymentMethod привязывает способ оплаты к клиенту.
func (c *Client) AttachPaymentMethod(ctx context.Context, customerRef, paymentMethodRef string) (*models.PaymentMethod, error) {
	const op = "paymentgateway.AttachPaymentMethod"

	params := &stripe.PaymentMethodAttachParams{
		Customer: stripe.String(customerRef),
	}
	params.Context = ctx
	pm, err := c.api.PaymentMethods.Attach(paymentMethodRef, params)
	if err != nil {
		return nil, wrapError(op, err)
	}
	result := toPaymentMethod(pm)
	return &result, nil
}

// GetPaymentMethod возвращает способ оплаты и ID клиента, к которому он привязан.
func (c *Client) GetPaymentMethod(ctx context.Context, paymentMethodRef string) (*models.PaymentMethod, string, error) {
	const op = "paymentgateway.GetPaymentMethod"

	params := &stripe.PaymentMethodParams{}
	params.Context = ctx
	pm, err := c.api.PaymentMethods.Get(paymentMethodRef, params)
	if err != nil {
		return nil, "", wrapError(op, err)
	}
	owner := ""
	if pm.Customer != nil {
		owner = pm.Customer.ID
	}
	result := toPaymentMethod(pm)
	return &result, owner, nil
}

// ListPaymentMethods возвращает карты клиента с отметкой способа по умолчанию.
func (c *Client) ListPaymentMethods(ctx context.Context, customerRef string) ([]models.PaymentMethod, error) {
	const op = "paymentgateway.ListPaymentMethods"

	defaultRef, err := c.DefaultPaymentMethod(ctx, customerRef)
	if err != nil {
		return nil, err
	}

	params := &stripe.PaymentMethodListParams{
		Customer: stripe.String(customerRef),
		Type:     stripe.String(string(stripe.PaymentMethodTypeCard)),
	}
	params.Context = ctx

	result := []models.PaymentMethod{}
	iter := c.api.PaymentMethods.List(params)
	for iter.Next() {
		pm := toPaymentMethod(iter.PaymentMethod())
		pm.IsDefault = pm.ID == defaultRef
		result = append(result, pm)
	}
	if err := iter.Err(); err != nil {
		return nil, wrapError(op, err)
	}
	return result, nil
}

// Charge создаёт и сразу подтверждает разовое списание без участия пользователя.
// Списание, не дошедшее до succeeded, считается ошибкой шлюза.
func (c *Client) Charge(ctx context.Context, req ChargeRequest) (*Charge, error) {
	const op = "paymentgateway.Charge"

	params := &stripe.PaymentIntentParams{
		Amount:        stripe.Int64(ToCents(req.Amount)),
		Currency:      stripe.String(c.currency),
		Customer:      stripe.String(req.CustomerRef),
		PaymentMethod: stripe.String(req.PaymentMethodRef),
		OffSession:    stripe.Bool(true),
		Confirm:       stripe.Bool(true),
	}
	if req.Description != "" {
		params.Description = stripe.String(req.Description)
	}
	params.Context = ctx
	for k, v := range req.Metadata {
		params.AddMetadata(k, v)
	}
	if req.IdempotencyKey != "" {
		params.SetIdempotencyKey(req.IdempotencyKey)
	}

	pi, err := c.api.PaymentIntents.New(params)
	if err != nil {
		return nil, wrapError(op, err)
	}
	if pi.Status != stripe.PaymentIntentStatusSucceeded {
		return nil, fmt.Errorf("%s: %w", op, &apperr.GatewayError{
			Code:    string(pi.Status),
			Message: "payment " + pi.ID + " was not completed",
		})
	}
	return &Charge{
		ID:     pi.ID,
		Status: string(pi.Status),
		Amount: FromCents(pi.Amount),
	}, nil
}

// CreateSubscription создаёт регулярное соглашение из одной позиции.
func (c *Client) CreateSubscription(ctx context.Context, req SubscriptionRequest) (*Subscription, error) {
	const op = "paymentgateway.CreateSubscription"

	params := &stripe.SubscriptionParams{
		Customer: stripe.String(req.CustomerRef),
		Items: []*stripe.SubscriptionItemsParams{
			{Price: stripe.String(req.PriceRef)},
		},
	}
	if req.PaymentMethodRef != "" {
		params.DefaultPaymentMethod = stripe.String(req.PaymentMethodRef)
	}
	if req.TrialEnd != nil {
		params.TrialEnd = stripe.Int64(req.TrialEnd.Unix())
	}
	params.Context = ctx
	for k, v := range req.Metadata {
		params.AddMetadata(k, v)
	}

	sub, err := c.api.Subscriptions.New(params)
	if err != nil {
		return nil, wrapError(op, err)
	}
	return toSubscription(sub), nil
}

// GetSubscription возвращает соглашение по ID.
func (c *Client) GetSubscription(ctx context.Context, subscriptionRef string) (*Subscription, error) {
	const op = "paymentgateway.GetSubscription"

	params := &stripe.SubscriptionParams{}
	params.Context = ctx
	sub, err := c.api.Subscriptions.Get(subscriptionRef, params)
	if err != nil {
		return nil, wrapError(op, err)
	}
	return toSubscription(sub), nil
}

// SetCancelAtPeriodEnd включает или снимает отмену соглашения в конце периода.
func (c *Client) SetCancelAtPeriodEnd(ctx context.Context, subscriptionRef string, cancel bool) (*Subscription, error) {
	const op = "paymentgateway.SetCancelAtPeriodEnd"

	params := &stripe.SubscriptionParams{
		CancelAtPeriodEnd: stripe.Bool(cancel),
	}
	params.Context = ctx
	sub, err := c.api.Subscriptions.Update(subscriptionRef, params)
	if err != nil {
		return nil, wrapError(op, err)
	}
	return toSubscription(sub), nil
}

// ChangeSubscriptionPrice заменяет цену позиции itemID с заданным пересчётом.
func (c *Client) ChangeSubscriptionPrice(ctx context.Context, subscriptionRef, itemID, priceRef, proration string) (*Subscription, error) {
	const op = "paymentgateway.ChangeSubscriptionPrice"

	params := &stripe.SubscriptionParams{
		Items: []*stripe.SubscriptionItemsParams{
			{ID: stripe.String(itemID), Price: stripe.String(priceRef)},
		},
		ProrationBehavior: stripe.String(proration),
	}
	params.Context = ctx
	sub, err := c.api.Subscriptions.Update(subscriptionRef, params)
	if err != nil {
		return nil, wrapError(op, err)
	}
	return toSubscription(sub), nil
}

// CancelSubscription немедленно отменяет соглашение.
func (c *Client) CancelSubscription(ctx context.Context, subscriptionRef string) error {
	const op = "paymentgateway.CancelSubscription"

	params := &stripe.SubscriptionCancelParams{}
	params.Context = ctx
	if _, err := c.api.Subscriptions.Cancel(subscriptionRef, params); err != nil {
		return wrapError(op, err)
	}
	return nil
}

// CreateProduct создаёт товар и регулярную цену. Если цену создать не удалось,
// товар деактивируется.
func (c *Client) CreateProduct(ctx context.Context, name string, price decimal.Decimal, interval string) (*Product, error) {
	const op = "paymentgateway.CreateProduct"

	productParams := &stripe.ProductParams{
		Name: stripe.String(name),
	}
	productParams.Context = ctx
	product, err := c.api.Products.New(productParams)
	if err != nil {
		return nil, wrapError(op, err)
	}

	priceParams := &stripe.PriceParams{
		Product:    stripe.String(product.ID),
		UnitAmount: stripe.Int64(ToCents(price)),
		Currency:   stripe.String(c.currency),
		Recurring: &stripe.PriceRecurringParams{
			Interval: stripe.String(interval),
		},
	}
	priceParams.Context = ctx
	p, err := c.api.Prices.New(priceParams)
	if err != nil {
		rollback := &stripe.ProductParams{Active: stripe.Bool(false)}
		rollback.Context = ctx
		_, _ = c.api.Products.Update(product.ID, rollback)
		return nil, wrapError(op, err)
	}

	return &Product{ProductRef: product.ID, PriceRef: p.ID}, nil
}

// DeactivateProduct деактивирует цену и товар плана.
func (c *Client) DeactivateProduct(ctx context.Context, productRef, priceRef string) error {
	const op = "paymentgateway.DeactivateProduct"

	if priceRef != "" {
		params := &stripe.PriceParams{Active: stripe.Bool(false)}
		params.Context = ctx
		if _, err := c.api.Prices.Update(priceRef, params); err != nil {
			return wrapError(op, err)
		}
	}
	if productRef != "" {
		params := &stripe.ProductParams{Active: stripe.Bool(false)}
		params.Context = ctx
		if _, err := c.api.Products.Update(productRef, params); err != nil {
			return wrapError(op, err)
		}
	}
	return nil
}

func toPaymentMethod(pm *stripe.PaymentMethod) models.PaymentMethod {
	result := models.PaymentMethod{ID: pm.ID}
	if pm.Card != nil {
		result.Brand = string(pm.Card.Brand)
		result.Last4 = pm.Card.Last4
		result.ExpMonth = pm.Card.ExpMonth
		result.ExpYear = pm.Card.ExpYear
	}
	return result
}

func toSubscription(sub *stripe.Subscription) *Subscription {
	result := &Subscription{
		ID:                sub.ID,
		Status:            string(sub.Status),
		CancelAtPeriodEnd: sub.CancelAtPeriodEnd,
	}
	if sub.CurrentPeriodEnd > 0 {
		result.CurrentPeriodEnd = time.Unix(sub.CurrentPeriodEnd, 0).UTC()
	}
	if sub.Customer != nil {
		result.CustomerRef = sub.Customer.ID
	}
	if sub.Items != nil {
		for _, item := range sub.Items.Data {
			si := SubscriptionItem{ID: item.ID}
			if item.Price != nil {
				si.PriceRef = item.Price.ID
			}
			result.Items = append(result.Items, si)
		}
	}
	return result
}
