package estore

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v79"

	"goflare.io/estore/models/enum"
)

// OrderEntry 下單時的單一商品，價格由服務端決定
type OrderEntry struct {
	ProductID     uint64  `json:"product_id"`
	ProductPlanID *uint64 `json:"product_plan_id,omitempty"`
	Quantity      uint64  `json:"quantity"`
}

type PlaceOrderRequest struct {
	CustomerID      uint64             `json:"customer_id"`
	Entries         []OrderEntry       `json:"entries"`
	Type            enum.OrderType     `json:"type"`
	PaymentMethod   enum.PaymentMethod `json:"payment_method"`
	Address         string             `json:"address"`
	PickupAt        *time.Time         `json:"pickup_at,omitempty"`
	Currency        stripe.Currency    `json:"currency,omitempty"`
	PaymentIntentID string             `json:"payment_intent_id,omitempty"`
}

type CheckoutRequest struct {
	CustomerID      uint64             `json:"customer_id"`
	Type            enum.OrderType     `json:"type"`
	PaymentMethod   enum.PaymentMethod `json:"payment_method"`
	Address         string             `json:"address"`
	PickupAt        *time.Time         `json:"pickup_at,omitempty"`
	PaymentIntentID string             `json:"payment_intent_id,omitempty"`
}

// SaveProductRequest ID 為 0 時新增商品。Quantity 只在新增時使用
type SaveProductRequest struct {
	ID          uint64          `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	Image       string          `json:"image"`
	SerialNo    string          `json:"serial_no"`
	Quantity    int64           `json:"quantity"`
	Vendor      string          `json:"vendor"`
	CategoryIDs []uint64        `json:"category_ids"`
}

type RegisterUserRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Address  string `json:"address"`
}

// placement 下單與結帳共用的訂單資訊
type placement struct {
	customerID      uint64
	orderType       enum.OrderType
	method          enum.PaymentMethod
	address         string
	pickupAt        *time.Time
	currency        stripe.Currency
	paymentIntentID string
}
