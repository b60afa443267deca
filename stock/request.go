package stock

import (
	"time"

	"goflare.io/estore/models/enum"
)

type ReduceStockParams struct {
	ProductID   uint64
	Quantity    uint64
	LastUpdated time.Time
}

type RestockParams struct {
	ProductID   uint64
	Quantity    uint64
	LastUpdated time.Time
}

// AdjustStockParams Delta 可為負數
type AdjustStockParams struct {
	ProductID   uint64
	Delta       int64
	LastUpdated time.Time
}

type CreateStockMovementParams struct {
	ProductID     uint64
	Quantity      int64
	Type          enum.StockMovementType
	ReferenceID   uint64
	ReferenceType enum.StockMovementReferenceType
}
