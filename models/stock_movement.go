package models

import (
	"time"

	"goflare.io/estore/models/enum"
)

type StockMovement struct {
	ID            uint64                          `json:"id"`
	ProductID     uint64                          `json:"product_id"`
	Quantity      int64                           `json:"quantity"`
	Type          enum.StockMovementType          `json:"type"`
	ReferenceType enum.StockMovementReferenceType `json:"reference_type"`
	ReferenceID   uint64                          `json:"reference_id"`
	CreatedAt     time.Time                       `json:"created_at"`
}
