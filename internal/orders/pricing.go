package orders

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/joao-fontenele/marketplace/internal/apperr"
	"github.com/joao-fontenele/marketplace/internal/domain"
)

var (
	FreeShippingThreshold = decimal.NewFromInt(50)
	FlatShippingCost      = decimal.NewFromInt(5)
)

// Price fills the order lines and totals from catalogue prices. Lines naming a
// product that is missing or not ACTIVE are reported as field errors.
func Price(order *domain.Order, items []domain.OrderItemInput, catalog map[string]domain.Product) error {
	var fields []apperr.FieldError
	lines := make([]domain.OrderItem, 0, len(items))
	subtotal := decimal.Zero

	for i, in := range items {
		p, ok := catalog[in.ProductID]
		if !ok || p.Status != domain.ProductStatusActive {
			fields = append(fields, apperr.FieldError{
				Field:   fmt.Sprintf("items[%d].productId", i),
				Message: "product does not exist or is not available",
			})
			continue
		}

		total := p.Price.Mul(decimal.NewFromInt(int64(in.Quantity)))
		lines = append(lines, domain.OrderItem{
			ProductID:   p.ID,
			ProductName: p.Name,
			SellerID:    p.SellerID,
			Quantity:    in.Quantity,
			UnitPrice:   p.Price,
			TotalPrice:  total,
		})
		subtotal = subtotal.Add(total)
	}

	if len(fields) > 0 {
		return apperr.Validation(fields...)
	}

	shipping := ShippingCost(subtotal)
	if subtotal.Add(shipping).GreaterThan(domain.MaxAmount) {
		return apperr.Validation(apperr.FieldError{
			Field:   "items",
			Message: "order total must be at most " + domain.MaxAmount.StringFixed(domain.MoneyScale),
		})
	}

	order.Items = lines
	order.Subtotal = subtotal
	order.ShippingCost = shipping
	order.Tax = decimal.Zero
	order.Total = subtotal.Add(order.ShippingCost).Add(order.Tax)
	return nil
}

func ShippingCost(subtotal decimal.Decimal) decimal.Decimal {
	if subtotal.GreaterThanOrEqual(FreeShippingThreshold) {
		return decimal.Zero
	}
	return FlatShippingCost
}

// NewOrderNumber returns a human readable reference such as ORD-20260301-1A2B3C4D.
func NewOrderNumber(now time.Time) string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
	return "ORD-" + now.UTC().Format("20060102") + "-" + suffix
}
