package domain

type StockLine struct {
	ProductID string `json:"productId" validate:"required,uuid"`
	Quantity  int    `json:"quantity" validate:"min=1,max=1000000"`
}

type StockRequest struct {
	Items []StockLine `json:"items" validate:"required,min=1,max=100,dive"`
}

type StockLevel struct {
	ProductID        string `json:"productId"`
	StockQuantity    int    `json:"stockQuantity"`
	ReservedQuantity int    `json:"reservedQuantity"`
}
