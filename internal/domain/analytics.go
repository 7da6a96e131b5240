package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type SalesAnalyticsQuery struct {
	StartDate *time.Time `json:"startDate,omitempty"`
	EndDate   *time.Time `json:"endDate,omitempty"`
	SellerID  *string    `json:"sellerId,omitempty" validate:"omitempty,uuid"`
}

type ProductSales struct {
	ProductID    string          `json:"productId"`
	ProductName  string          `json:"productName"`
	QuantitySold int             `json:"quantitySold"`
	Revenue      decimal.Decimal `json:"revenue"`
}

type SalesAnalytics struct {
	StartDate         *time.Time          `json:"startDate,omitempty"`
	EndDate           *time.Time          `json:"endDate,omitempty"`
	TotalRevenue      decimal.Decimal     `json:"totalRevenue"`
	TotalOrders       int                 `json:"totalOrders"`
	ItemsSold         int                 `json:"itemsSold"`
	AverageOrderValue decimal.Decimal     `json:"averageOrderValue"`
	OrdersByStatus    map[OrderStatus]int `json:"ordersByStatus"`
	TopProducts       []ProductSales      `json:"topProducts"`
}
