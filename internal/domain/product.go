package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Stored amounts are NUMERIC(12,2) and quantities INTEGER.
var (
	MaxPrice  = decimal.RequireFromString("99999999.99")
	MaxAmount = decimal.RequireFromString("9999999999.99")
)

const MoneyScale = 2

type ProductVariant struct {
	ID            string            `json:"id"`
	Name          string            `json:"name" validate:"required,max=100"`
	SKU           string            `json:"sku" validate:"required,max=64"`
	Price         *decimal.Decimal  `json:"price,omitempty" validate:"omitempty,gte=0"`
	StockQuantity int               `json:"stockQuantity" validate:"gte=0,lte=2147483647"`
	Attributes    map[string]string `json:"attributes,omitempty"`
}

type Product struct {
	ID               string            `json:"id"`
	SellerID         string            `json:"sellerId"`
	Name             string            `json:"name"`
	Description      string            `json:"description"`
	SKU              string            `json:"sku"`
	Price            decimal.Decimal   `json:"price"`
	CompareAtPrice   *decimal.Decimal  `json:"compareAtPrice,omitempty"`
	StockQuantity    int               `json:"stockQuantity"`
	ReservedQuantity int               `json:"reservedQuantity"`
	Category         string            `json:"category"`
	Brand            string            `json:"brand,omitempty"`
	Status           ProductStatus     `json:"status"`
	Images           []string          `json:"images"`
	Tags             []string          `json:"tags"`
	Specifications   map[string]string `json:"specifications,omitempty"`
	Variants         []ProductVariant  `json:"variants"`
	Rating           *float64          `json:"rating,omitempty"`
	ReviewCount      int               `json:"reviewCount"`
	CreatedAt        time.Time         `json:"createdAt"`
	UpdatedAt        time.Time         `json:"updatedAt"`
}

// OwnedBy reports whether the user may manage the product.
func (p Product) OwnedBy(u AuthenticatedUser) bool {
	return u.IsAdmin() || p.SellerID == u.ID
}

type ProductCreateData struct {
	Name           string            `json:"name" validate:"required,max=200"`
	Description    string            `json:"description" validate:"max=5000"`
	SKU            string            `json:"sku" validate:"required,max=64"`
	Price          decimal.Decimal   `json:"price" validate:"gte=0"`
	CompareAtPrice *decimal.Decimal  `json:"compareAtPrice" validate:"omitempty,gte=0"`
	StockQuantity  int               `json:"stockQuantity" validate:"gte=0,lte=2147483647"`
	Category       string            `json:"category" validate:"required,max=100"`
	Brand          string            `json:"brand" validate:"max=100"`
	Status         ProductStatus     `json:"status" validate:"omitempty,enum"`
	Images         []string          `json:"images" validate:"max=10,dive,url"`
	Tags           []string          `json:"tags" validate:"max=20,dive,required,max=50"`
	Specifications map[string]string `json:"specifications" validate:"max=50"`
	Variants       []ProductVariant  `json:"variants" validate:"max=50,dive"`
}

// ProductUpdateData carries only the fields being changed.
type ProductUpdateData struct {
	Name           *string            `json:"name" validate:"omitempty,min=1,max=200"`
	Description    *string            `json:"description" validate:"omitempty,max=5000"`
	SKU            *string            `json:"sku" validate:"omitempty,min=1,max=64"`
	Price          *decimal.Decimal   `json:"price" validate:"omitempty,gte=0"`
	CompareAtPrice *decimal.Decimal   `json:"compareAtPrice" validate:"omitempty,gte=0"`
	StockQuantity  *int               `json:"stockQuantity" validate:"omitempty,gte=0,lte=2147483647"`
	Category       *string            `json:"category" validate:"omitempty,min=1,max=100"`
	Brand          *string            `json:"brand" validate:"omitempty,max=100"`
	Status         *ProductStatus     `json:"status" validate:"omitempty,enum"`
	Images         *[]string          `json:"images" validate:"omitempty,max=10,dive,url"`
	Tags           *[]string          `json:"tags" validate:"omitempty,max=20,dive,required,max=50"`
	Specifications *map[string]string `json:"specifications" validate:"omitempty,max=50"`
	Variants       *[]ProductVariant  `json:"variants" validate:"omitempty,max=50,dive"`
}

// Empty reports whether the update changes nothing.
func (u ProductUpdateData) Empty() bool {
	return u.Name == nil && u.Description == nil && u.SKU == nil && u.Price == nil &&
		u.CompareAtPrice == nil && u.StockQuantity == nil && u.Category == nil &&
		u.Brand == nil && u.Status == nil && u.Images == nil && u.Tags == nil &&
		u.Specifications == nil && u.Variants == nil
}
