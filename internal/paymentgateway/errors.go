package paymentgateway

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v76"

	"github.com/magabrotheeeer/subscription-billing/internal/lib/apperr"
)

var hundred = decimal.NewFromInt(100)

// ToCents переводит сумму в минимальные единицы валюты с банковским округлением.
func ToCents(amount decimal.Decimal) int64 {
	return amount.Mul(hundred).RoundBank(0).IntPart()
}

// FromCents переводит минимальные единицы валюты в сумму.
func FromCents(cents int64) decimal.Decimal {
	return decimal.New(cents, -2)
}

// wrapError приводит ошибку stripe к apperr.GatewayError, сохраняя код и сообщение шлюза.
func wrapError(op string, err error) error {
	if err == nil {
		return nil
	}
	var stripeErr *stripe.Error
	if errors.As(err, &stripeErr) {
		code := string(stripeErr.Code)
		if stripeErr.DeclineCode != "" {
			code = string(stripeErr.DeclineCode)
		}
		return fmt.Errorf("%s: %w", op, &apperr.GatewayError{Code: code, Message: stripeErr.Msg})
	}
	return fmt.Errorf("%s: %w", op, &apperr.GatewayError{Message: err.Error()})
}
