package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Filters are sets of optional predicates combined with AND. A nil field
// imposes no constraint; numeric ranges are inclusive.

type ProductFilters struct {
	Search    *string          `json:"search,omitempty" validate:"omitempty,max=200"`
	Category  *string          `json:"category,omitempty" validate:"omitempty,max=100"`
	Brand     *string          `json:"brand,omitempty" validate:"omitempty,max=100"`
	SellerID  *string          `json:"sellerId,omitempty" validate:"omitempty,uuid"`
	Status    *ProductStatus   `json:"status,omitempty" validate:"omitempty,enum"`
	MinPrice  *decimal.Decimal `json:"minPrice,omitempty" validate:"omitempty,gte=0"`
	MaxPrice  *decimal.Decimal `json:"maxPrice,omitempty" validate:"omitempty,gte=0"`
	MinRating *float64         `json:"minRating,omitempty" validate:"omitempty,min=0,max=5"`
	InStock   *bool            `json:"inStock,omitempty"`
	Tags      []string         `json:"tags,omitempty" validate:"max=20,dive,max=50"`
}

type OrderFilters struct {
	Status        *OrderStatus     `json:"status,omitempty" validate:"omitempty,enum"`
	PaymentStatus *PaymentStatus   `json:"paymentStatus,omitempty" validate:"omitempty,enum"`
	UserID        *string          `json:"userId,omitempty" validate:"omitempty,uuid"`
	StartDate     *time.Time       `json:"startDate,omitempty"`
	EndDate       *time.Time       `json:"endDate,omitempty"`
	MinTotal      *decimal.Decimal `json:"minTotal,omitempty" validate:"omitempty,gte=0"`
	MaxTotal      *decimal.Decimal `json:"maxTotal,omitempty" validate:"omitempty,gte=0"`
}

type ReviewFilters struct {
	Rating       *int  `json:"rating,omitempty" validate:"omitempty,min=1,max=5"`
	MinRating    *int  `json:"minRating,omitempty" validate:"omitempty,min=1,max=5"`
	MaxRating    *int  `json:"maxRating,omitempty" validate:"omitempty,min=1,max=5"`
	VerifiedOnly *bool `json:"verifiedOnly,omitempty"`
}
