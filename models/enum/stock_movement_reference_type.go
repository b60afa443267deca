package enum

type StockMovementReferenceType string

const (
	StockMovementReferenceTypeOrder      StockMovementReferenceType = "order"
	StockMovementReferenceTypeReturn     StockMovementReferenceType = "return"
	StockMovementReferenceTypeAdjustment StockMovementReferenceType = "adjustment"
)
