package models

import "github.com/shopspring/decimal"

// Plan: тарифный план. Price - цена за месяц.
type Plan struct {
	ID                 string          `json:"id"`
	Name               string          `json:"name"`
	Price              decimal.Decimal `json:"price"`
	Interval           string          `json:"interval"`
	PayoutRange        string          `json:"payout_range,omitempty"`
	ExternalProductRef string          `json:"external_product_ref,omitempty"`
	ExternalPriceRef   string          `json:"external_price_ref,omitempty"`
	Active             bool            `json:"active"`
}

// PlanCreate: запрос на создание плана.
type PlanCreate struct {
	Name        string          `json:"name" validate:"required"`
	Price       decimal.Decimal `json:"price" validate:"required"`
	Interval    string          `json:"interval" validate:"required,oneof=day week month year"`
	PayoutRange string          `json:"payout_range"`
}
