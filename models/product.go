package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type Product struct {
	ID          uint64          `json:"id"`
	Name        string          `json:"name"`
	Slug        string          `json:"slug"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	Image       string          `json:"image"`
	SerialNo    string          `json:"serial_no"`
	Quantity    int64           `json:"quantity"`
	Vendor      string          `json:"vendor"`
	Plans       []*ProductPlan  `json:"plans,omitempty"`
	Categories  []*Category     `json:"categories,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// ProductPlan 商品的保固/維修方案，Guarantee 與 Maintenance 以年為單位
type ProductPlan struct {
	ID          uint64          `json:"id"`
	ProductID   uint64          `json:"product_id"`
	Name        string          `json:"name"`
	Price       decimal.Decimal `json:"price"`
	Guarantee   int             `json:"guarantee"`
	Maintenance int             `json:"maintenance"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

func (p *Product) InStock() bool {
	return p.Quantity > 0
}

func (p *Product) Plan(planID uint64) (*ProductPlan, bool) {
	for _, plan := range p.Plans {
		if plan.ID == planID {
			return plan, true
		}
	}
	return nil, false
}
