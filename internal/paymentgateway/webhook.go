package paymentgateway

import (
	"encoding/json"
	"fmt"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/webhook"

	"github.com/magabrotheeeer/subscription-billing/internal/lib/apperr"
)

// ParseEvent проверяет подпись вебхука общим секретом и разбирает событие.
// Для неизвестных типов возвращается событие без Invoice и SubscriptionRef.
func (c *Client) ParseEvent(payload []byte, signature string) (*Event, error) {
	const op = "paymentgateway.ParseEvent"

	evt, err := webhook.ConstructEventWithOptions(payload, signature, c.webhookSecret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %v", op, apperr.ErrUnauthorized, err)
	}

	result := &Event{ID: evt.ID, Type: string(evt.Type)}
	if evt.Data == nil {
		return result, nil
	}

	switch result.Type {
	case EventInvoicePaid, EventInvoiceFailed:
		var inv stripe.Invoice
		if err := json.Unmarshal(evt.Data.Raw, &inv); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		result.Invoice = toInvoice(&inv)
		result.SubscriptionRef = result.Invoice.SubscriptionRef
	case EventSubscriptionDeleted:
		var sub stripe.Subscription
		if err := json.Unmarshal(evt.Data.Raw, &sub); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		result.SubscriptionRef = sub.ID
	}
	return result, nil
}

func toInvoice(inv *stripe.Invoice) *Invoice {
	result := &Invoice{
		ID:            inv.ID,
		CustomerEmail: inv.CustomerEmail,
		BillingReason: string(inv.BillingReason),
		AmountPaid:    FromCents(inv.AmountPaid),
	}
	if inv.Customer != nil {
		result.CustomerRef = inv.Customer.ID
	}
	if inv.Subscription != nil {
		result.SubscriptionRef = inv.Subscription.ID
	}
	if inv.PaymentIntent != nil {
		result.ChargeRef = inv.PaymentIntent.ID
	}
	if inv.DefaultPaymentMethod != nil {
		result.PaymentMethod = inv.DefaultPaymentMethod.ID
	}
	if inv.Lines != nil && len(inv.Lines.Data) > 0 {
		if price := inv.Lines.Data[0].Price; price != nil {
			result.PriceRef = price.ID
			if price.Product != nil {
				result.ProductRef = price.Product.ID
			}
		}
	}
	return result
}
