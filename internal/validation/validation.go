// Package validation checks request shapes and reports every violated
// constraint at once as an apperr Validation error.
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/joao-fontenele/marketplace/internal/apperr"
	"github.com/joao-fontenele/marketplace/internal/domain"
)

var validate = newValidator()

type enum interface{ Valid() bool }

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())

	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		switch name {
		case "-":
			return ""
		case "":
			return f.Name
		}
		return name
	})

	v.RegisterCustomTypeFunc(func(field reflect.Value) any {
		d, ok := field.Interface().(decimal.Decimal)
		if !ok {
			return nil
		}
		return d.InexactFloat64()
	}, decimal.Decimal{})

	if err := v.RegisterValidation("enum", func(fl validator.FieldLevel) bool {
		e, ok := fl.Field().Interface().(enum)
		return ok && e.Valid()
	}); err != nil {
		panic(err)
	}

	v.RegisterStructValidation(productCreateLevel, domain.ProductCreateData{})
	v.RegisterStructValidation(productUpdateLevel, domain.ProductUpdateData{})
	v.RegisterStructValidation(productVariantLevel, domain.ProductVariant{})
	v.RegisterStructValidation(productFiltersLevel, domain.ProductFilters{})
	v.RegisterStructValidation(orderFiltersLevel, domain.OrderFilters{})
	v.RegisterStructValidation(reviewFiltersLevel, domain.ReviewFilters{})
	v.RegisterStructValidation(searchQueryLevel, domain.SearchQuery{})
	v.RegisterStructValidation(analyticsQueryLevel, domain.SalesAnalyticsQuery{})

	return v
}

// Struct validates v and returns nil or an *apperr.Error of kind Validation
// listing every failed field.
func Struct(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return apperr.Internal(fmt.Errorf("validate %T: %w", v, err))
	}

	fields := make([]apperr.FieldError, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, apperr.FieldError{
			Field:   fieldPath(fe),
			Message: message(fe),
		})
	}
	return apperr.Validation(fields...)
}

// fieldPath drops the root struct name from the namespace, leaving the wire path.
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if _, rest, ok := strings.Cut(ns, "."); ok {
		return rest
	}
	return fe.Field()
}

func message(fe validator.FieldError) string {
	p := fe.Param()
	switch fe.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "uuid":
		return "must be a valid UUID"
	case "url":
		return "must be a valid URL"
	case "enum":
		return fmt.Sprintf("%q is not an allowed value", fmt.Sprint(fe.Value()))
	case "ne":
		return "must not be " + p
	case "numeric":
		return "must contain only digits"
	case "iso3166_1_alpha2":
		return "must be a two-letter ISO 3166 country code"
	case "e164":
		return "must be a phone number in E.164 format"
	case "len":
		return "must be exactly " + p + " " + unit(fe.Kind())
	case "min":
		if u := unit(fe.Kind()); u != "" {
			return "must contain at least " + p + " " + u
		}
		return "must be at least " + p
	case "max":
		if u := unit(fe.Kind()); u != "" {
			return "must contain at most " + p + " " + u
		}
		return "must be at most " + p
	case "gt":
		return "must be greater than " + p
	case "gte":
		return "must be greater than or equal to " + p
	case "lt":
		return "must be less than " + p
	case "lte":
		return "must be less than or equal to " + p
	case "gtefield":
		return "must be greater than or equal to " + p
	case "money":
		return fmt.Sprintf("must be at most %s with at most %d decimal places", p, domain.MoneyScale)
	}
	return "is invalid"
}

func unit(k reflect.Kind) string {
	switch k {
	case reflect.String:
		return "characters"
	case reflect.Slice, reflect.Array, reflect.Map:
		return "items"
	}
	return ""
}

func productCreateLevel(sl validator.StructLevel) {
	p := sl.Current().Interface().(domain.ProductCreateData)
	money(sl, &p.Price, "price", "Price")
	money(sl, p.CompareAtPrice, "compareAtPrice", "CompareAtPrice")
}

func productUpdateLevel(sl validator.StructLevel) {
	p := sl.Current().Interface().(domain.ProductUpdateData)
	money(sl, p.Price, "price", "Price")
	money(sl, p.CompareAtPrice, "compareAtPrice", "CompareAtPrice")
}

func productVariantLevel(sl validator.StructLevel) {
	v := sl.Current().Interface().(domain.ProductVariant)
	money(sl, v.Price, "price", "Price")
}

// money reports amounts the catalogue cannot store. Negative values are left
// to the gte tag.
func money(sl validator.StructLevel, d *decimal.Decimal, name, field string) {
	if d == nil || d.IsNegative() {
		return
	}
	if d.GreaterThan(domain.MaxPrice) || !d.Equal(d.Round(domain.MoneyScale)) {
		sl.ReportError(*d, name, field, "money", domain.MaxPrice.StringFixed(domain.MoneyScale))
	}
}

func productFiltersLevel(sl validator.StructLevel) {
	f := sl.Current().Interface().(domain.ProductFilters)
	decimalRange(sl, f.MinPrice, f.MaxPrice, "minPrice", "maxPrice", "MaxPrice")
}

func orderFiltersLevel(sl validator.StructLevel) {
	f := sl.Current().Interface().(domain.OrderFilters)
	decimalRange(sl, f.MinTotal, f.MaxTotal, "minTotal", "maxTotal", "MaxTotal")
	if f.StartDate != nil && f.EndDate != nil && f.EndDate.Before(*f.StartDate) {
		sl.ReportError(f.EndDate, "endDate", "EndDate", "gtefield", "startDate")
	}
}

func reviewFiltersLevel(sl validator.StructLevel) {
	f := sl.Current().Interface().(domain.ReviewFilters)
	if f.MinRating != nil && f.MaxRating != nil && *f.MaxRating < *f.MinRating {
		sl.ReportError(f.MaxRating, "maxRating", "MaxRating", "gtefield", "minRating")
	}
}

func searchQueryLevel(sl validator.StructLevel) {
	q := sl.Current().Interface().(domain.SearchQuery)
	decimalRange(sl, q.MinPrice, q.MaxPrice, "minPrice", "maxPrice", "MaxPrice")
}

func analyticsQueryLevel(sl validator.StructLevel) {
	q := sl.Current().Interface().(domain.SalesAnalyticsQuery)
	if q.StartDate != nil && q.EndDate != nil && q.EndDate.Before(*q.StartDate) {
		sl.ReportError(q.EndDate, "endDate", "EndDate", "gtefield", "startDate")
	}
}

func decimalRange(sl validator.StructLevel, lo, hi *decimal.Decimal, loName, hiName, hiField string) {
	if lo != nil && hi != nil && hi.LessThan(*lo) {
		sl.ReportError(*hi, hiName, hiField, "gtefield", loName)
	}
}
