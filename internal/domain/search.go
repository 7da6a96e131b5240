package domain

import "github.com/shopspring/decimal"

type SearchQuery struct {
	Query     string           `json:"q" validate:"max=200"`
	Category  *string          `json:"category,omitempty" validate:"omitempty,max=100"`
	Brand     *string          `json:"brand,omitempty" validate:"omitempty,max=100"`
	MinPrice  *decimal.Decimal `json:"minPrice,omitempty" validate:"omitempty,gte=0"`
	MaxPrice  *decimal.Decimal `json:"maxPrice,omitempty" validate:"omitempty,gte=0"`
	MinRating *float64         `json:"minRating,omitempty" validate:"omitempty,min=0,max=5"`
}

// Filters narrows the query to the predicates shared with product listing.
func (q SearchQuery) Filters() ProductFilters {
	status := ProductStatusActive
	f := ProductFilters{
		Category:  q.Category,
		Brand:     q.Brand,
		Status:    &status,
		MinPrice:  q.MinPrice,
		MaxPrice:  q.MaxPrice,
		MinRating: q.MinRating,
	}
	if q.Query != "" {
		f.Search = &q.Query
	}
	return f
}

// Bucket is the number of matching products sharing one facet value.
type Bucket struct {
	Key   string `json:"key"`
	Count int    `json:"count"`
}

type PriceRangeBucket struct {
	Key   string           `json:"key"`
	From  decimal.Decimal  `json:"from"`
	To    *decimal.Decimal `json:"to,omitempty"`
	Count int              `json:"count"`
}

type SearchAggregations struct {
	Categories  []Bucket           `json:"categories"`
	Brands      []Bucket           `json:"brands"`
	PriceRanges []PriceRangeBucket `json:"priceRanges"`
	Ratings     []Bucket           `json:"ratings"`
}

type SearchResult struct {
	Products     []Product          `json:"products"`
	Aggregations SearchAggregations `json:"aggregations"`
}

// PriceRanges are the fixed price facets; the last range is open ended.
var PriceRanges = []PriceRangeBucket{
	{Key: "0-25", From: decimal.Zero, To: decimalPtr(25)},
	{Key: "25-50", From: decimal.NewFromInt(25), To: decimalPtr(50)},
	{Key: "50-100", From: decimal.NewFromInt(50), To: decimalPtr(100)},
	{Key: "100-250", From: decimal.NewFromInt(100), To: decimalPtr(250)},
	{Key: "250+", From: decimal.NewFromInt(250)},
}

func decimalPtr(v int64) *decimal.Decimal {
	d := decimal.NewFromInt(v)
	return &d
}
