package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type OrderItem struct {
	ID          string          `json:"id"`
	ProductID   string          `json:"productId"`
	ProductName string          `json:"productName"`
	SellerID    string          `json:"sellerId"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unitPrice"`
	TotalPrice  decimal.Decimal `json:"totalPrice"`
}

type Order struct {
	ID                string          `json:"id"`
	OrderNumber       string          `json:"orderNumber"`
	UserID            string          `json:"userId"`
	Status            OrderStatus     `json:"status"`
	PaymentStatus     PaymentStatus   `json:"paymentStatus"`
	Items             []OrderItem     `json:"items"`
	Subtotal          decimal.Decimal `json:"subtotal"`
	ShippingCost      decimal.Decimal `json:"shippingCost"`
	Tax               decimal.Decimal `json:"tax"`
	Total             decimal.Decimal `json:"total"`
	ShippingAddressID string          `json:"shippingAddressId"`
	BillingAddressID  string          `json:"billingAddressId"`
	PaymentMethodID   string          `json:"paymentMethodId"`
	Notes             string          `json:"notes,omitempty"`
	CreatedAt         time.Time       `json:"createdAt"`
	UpdatedAt         time.Time       `json:"updatedAt"`
}

// StockLines returns the inventory lines held by the order.
func (o Order) StockLines() []StockLine {
	lines := make([]StockLine, 0, len(o.Items))
	for _, item := range o.Items {
		lines = append(lines, StockLine{ProductID: item.ProductID, Quantity: item.Quantity})
	}
	return lines
}

type OrderItemInput struct {
	ProductID string `json:"productId" validate:"required,uuid"`
	Quantity  int    `json:"quantity" validate:"min=1,max=1000"`
}

type OrderCreateData struct {
	Items             []OrderItemInput `json:"items" validate:"required,min=1,max=100,dive"`
	ShippingAddressID string           `json:"shippingAddressId" validate:"required,uuid"`
	BillingAddressID  string           `json:"billingAddressId" validate:"omitempty,uuid"`
	PaymentMethodID   string           `json:"paymentMethodId" validate:"required,uuid"`
	Notes             string           `json:"notes" validate:"max=500"`
}

type OrderStatusUpdate struct {
	Status OrderStatus `json:"status" validate:"required,enum"`
}
