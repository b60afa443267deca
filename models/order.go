package models

import (
	"time"

	"github.com/shopspring/decimal"

	"goflare.io/estore/models/enum"
)

// Order 代表訂單
type Order struct {
	ID         uint64           `json:"id"`
	CustomerID uint64           `json:"customer_id"`
	Type       enum.OrderType   `json:"type"`
	Status     enum.OrderStatus `json:"status"`
	PickupAt   *time.Time       `json:"pickup_at,omitempty"`
	Payment    *Payment         `json:"payment,omitempty"`
	Items      []*ProductOrder  `json:"items"`
	CreatedAt  time.Time        `json:"created_at"`
	UpdatedAt  time.Time        `json:"updated_at"`
}

// ProductOrder 代表訂單中的單個商品項目
type ProductOrder struct {
	ID              uint64          `json:"id"`
	OrderID         uint64          `json:"order_id"`
	ProductID       uint64          `json:"product_id"`
	ProductPlanID   *uint64         `json:"product_plan_id,omitempty"`
	Quantity        uint64          `json:"quantity"`
	SerialNo        string          `json:"serial_no"`
	Amount          decimal.Decimal `json:"amount"`
	ReturnRequested bool            `json:"return_requested"`
	IsReturned      bool            `json:"is_returned"`
}

// 訂單狀態轉換表，READY/DELIVERED 依訂單類型另外限制
var orderTransitions = map[enum.OrderStatus][]enum.OrderStatus{
	enum.OrderStatusPending:   {enum.OrderStatusAccepted, enum.OrderStatusRejected, enum.OrderStatusCancelled},
	enum.OrderStatusAccepted:  {enum.OrderStatusPreparing},
	enum.OrderStatusPreparing: {enum.OrderStatusReady, enum.OrderStatusDelivered},
	enum.OrderStatusReady:     {enum.OrderStatusCompleted, enum.OrderStatusReturnRequested, enum.OrderStatusReturned},
	enum.OrderStatusDelivered: {enum.OrderStatusCompleted, enum.OrderStatusReturnRequested, enum.OrderStatusReturned},
	enum.OrderStatusCompleted: {enum.OrderStatusReturnRequested, enum.OrderStatusReturned},
	enum.OrderStatusReturnRequested: {
		enum.OrderStatusReturned,
		enum.OrderStatusReturnRejected,
	},
}

// AllowChangeStatus 檢查狀態轉換是否有效
func (o *Order) AllowChangeStatus(next enum.OrderStatus) bool {
	switch next {
	case enum.OrderStatusReady:
		if o.Type != enum.OrderTypePickup {
			return false
		}
	case enum.OrderStatusDelivered:
		if o.Type != enum.OrderTypeDelivery {
			return false
		}
	}
	for _, s := range orderTransitions[o.Status] {
		if s == next {
			return true
		}
	}
	return false
}

func (o *Order) CanCancel() bool {
	return o.Status == enum.OrderStatusPending
}

func (o *Order) CanReturn() bool {
	return o.Status.Returnable()
}

// AllItemsReturned 當訂單沒有任何項目時回傳 false
func (o *Order) AllItemsReturned() bool {
	if len(o.Items) == 0 {
		return false
	}
	for _, item := range o.Items {
		if !item.IsReturned {
			return false
		}
	}
	return true
}

func (o *Order) Item(itemID uint64) (*ProductOrder, bool) {
	for _, item := range o.Items {
		if item.ID == itemID {
			return item, true
		}
	}
	return nil, false
}

// OutstandingAmount 尚未退貨項目的金額總和
func (o *Order) OutstandingAmount() decimal.Decimal {
	total := decimal.Zero
	for _, item := range o.Items {
		if !item.IsReturned {
			total = total.Add(item.Amount)
		}
	}
	return total
}
