package models

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v79"

	"goflare.io/estore/models/enum"
)

// Payment 每張訂單對應一筆付款紀錄
type Payment struct {
	ID              uint64             `json:"id"`
	OrderID         uint64             `json:"order_id"`
	CustomerID      uint64             `json:"customer_id"`
	Method          enum.PaymentMethod `json:"method"`
	Address         string             `json:"address"`
	Amount          decimal.Decimal    `json:"amount"`
	Currency        stripe.Currency    `json:"currency"`
	Status          enum.PaymentStatus `json:"status"`
	PaymentIntentID string             `json:"payment_intent_id,omitempty"`
	CreatedAt       time.Time          `json:"created_at"`
	UpdatedAt       time.Time          `json:"updated_at"`
}
