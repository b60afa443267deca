package models

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v79"

	"goflare.io/estore/models/enum"
)

// Cart 代表購物車
type Cart struct {
	ID         uint64          `json:"id"`
	CustomerID uint64          `json:"customer_id"`
	Status     enum.CartStatus `json:"status"`
	Currency   stripe.Currency `json:"currency"`
	Items      []*CartItem     `json:"items"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
	ExpiresAt  time.Time       `json:"expires_at"`
}

// CartItem 代表購物車中的單個商品項目，價格在加入時快照
type CartItem struct {
	ID            uint64          `json:"id"`
	CartID        uint64          `json:"cart_id"`
	ProductID     uint64          `json:"product_id"`
	ProductPlanID *uint64         `json:"product_plan_id,omitempty"`
	Quantity      uint64          `json:"quantity"`
	UnitPrice     decimal.Decimal `json:"unit_price"`
	PlanPrice     decimal.Decimal `json:"plan_price"`
}

func (ci *CartItem) Subtotal() decimal.Decimal {
	return ci.UnitPrice.Add(ci.PlanPrice).Mul(decimal.NewFromInt(int64(ci.Quantity)))
}

func (c *Cart) Total() decimal.Decimal {
	total := decimal.Zero
	for _, item := range c.Items {
		total = total.Add(item.Subtotal())
	}
	return total
}

func (c *Cart) Expired(now time.Time) bool {
	return !c.ExpiresAt.IsZero() && now.After(c.ExpiresAt)
}

// SamePlan 比較兩個可為空的方案 ID
func SamePlan(a, b *uint64) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
